// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/adamjm/seldon-core/pkg/codec"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

// Checksum modes.
const (
	ModeImage  = "img"
	ModeText   = "txt"
	ModeString = "str"
	ModeBinary = "bin"
)

// Checksum takes whole messages and answers a one-element ndarray derived
// from the uploaded content, echoing the request meta untouched:
//
//	img  checksum of binData after checking it decodes as an image
//	bin  checksum of binData
//	txt  binData as text
//	str  strData
type Checksum struct {
	mode string
}

// NewChecksum creates a checksum component. An empty mode means bin.
func NewChecksum(s Settings) (*Checksum, error) {
	mode := s.Mode
	if mode == "" {
		mode = ModeBinary
	}
	switch mode {
	case ModeImage, ModeText, ModeString, ModeBinary:
	default:
		return nil, errors.Newf(errors.CodeRegistrationFailure, "unknown checksum mode %q", mode)
	}
	return &Checksum{mode: mode}, nil
}

func (c *Checksum) PredictRawREST(_ context.Context, req *prediction.JSONMessage) (*prediction.JSONMessage, error) {
	var bin []byte
	if req.BinData != nil {
		bin = *req.BinData
	}
	v, err := c.answer(bin, req.BinData != nil, req.StrData)
	if err != nil {
		return nil, err
	}
	return &prediction.JSONMessage{
		Meta: req.Meta,
		Data: &prediction.JSONDefaultData{NDArray: []any{v}},
	}, nil
}

func (c *Checksum) PredictRawGRPC(_ context.Context, req *prediction.SeldonMessage) (*prediction.SeldonMessage, error) {
	v, err := c.answer(req.BinData, req.BinData != nil, req.StrData)
	if err != nil {
		return nil, err
	}
	return &prediction.SeldonMessage{
		Meta: req.Meta,
		Data: &prediction.DefaultData{
			NDArray: &structpb.ListValue{Values: []*structpb.Value{structpb.NewStringValue(v)}},
		},
	}, nil
}

func (c *Checksum) SendFeedbackRawREST(context.Context, *prediction.JSONFeedback) (*prediction.JSONMessage, error) {
	return &prediction.JSONMessage{}, nil
}

func (c *Checksum) SendFeedbackRawGRPC(context.Context, *prediction.Feedback) (*prediction.SeldonMessage, error) {
	return &prediction.SeldonMessage{}, nil
}

func (c *Checksum) answer(bin []byte, hasBin bool, str *string) (string, error) {
	switch c.mode {
	case ModeString:
		if str == nil {
			return "", errors.New(errors.CodeInvalidInput, "strData is required", nil)
		}
		return *str, nil
	case ModeText:
		if !hasBin {
			return "", errors.New(errors.CodeInvalidInput, "binData is required", nil)
		}
		return string(bin), nil
	case ModeImage:
		if !hasBin {
			return "", errors.New(errors.CodeInvalidInput, "binData is required", nil)
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(bin)); err != nil {
			return "", errors.New(errors.CodeInvalidInput, "binData is not an image", err)
		}
		return codec.Checksum(bin), nil
	default:
		if !hasBin {
			return "", errors.New(errors.CodeInvalidInput, "binData is required", nil)
		}
		return codec.Checksum(bin), nil
	}
}
