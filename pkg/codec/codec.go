// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec converts between the wire schemas of both transports and
// the canonical envelope.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/message"
	"github.com/adamjm/seldon-core/pkg/prediction"
	"github.com/adamjm/seldon-core/pkg/tftensor"
)

// Encoding selects a wire format.
type Encoding string

const (
	JSON  Encoding = "json"
	Proto Encoding = "proto"
)

// TensorCodec converts opaque tensor payloads between their binary form,
// their JSON form and the canonical numeric array.
type TensorCodec interface {
	FromJSON(data []byte) ([]byte, error)
	ToJSON(raw []byte) ([]byte, error)
	ToArray(raw []byte) (message.Array, error)
	FromArray(arr message.Array) ([]byte, error)
}

// Codec decodes and encodes envelopes. It is safe for concurrent use.
type Codec struct {
	tensors TensorCodec
}

// Option configures a Codec.
type Option func(*Codec)

// WithTensorCodec installs the opaque tensor sub-codec. Without one, any
// envelope carrying a tftensor fails with CodeUnsupportedEncoding.
func WithTensorCodec(tc TensorCodec) Option {
	return func(c *Codec) {
		c.tensors = tc
	}
}

// New returns a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns a Codec with the tftensor sub-codec installed.
func Default() *Codec {
	return New(WithTensorCodec(tftensor.New()))
}

// ToArray flattens a numeric payload, decoding opaque tensors through the
// installed sub-codec.
func (c *Codec) ToArray(p message.Payload) (message.Array, error) {
	t, ok := p.(message.OpaqueTensor)
	if !ok {
		return message.ToArray(p)
	}
	tc, err := c.tensorCodec()
	if err != nil {
		return message.Array{}, err
	}
	arr, err := tc.ToArray(t.Proto)
	if err != nil {
		return message.Array{}, errors.New(errors.CodeMalformedPayload, "tftensor is not numeric", err)
	}
	return arr, nil
}

// Resolve turns a component result into an encodable payload for a request
// of the given kind. A numeric result answering a tftensor request is
// encoded as a tftensor; everything else follows message.Resolve.
func (c *Codec) Resolve(result message.Payload, requestKind message.Kind, classNames []string) (message.Payload, error) {
	arr, ok := result.(message.Array)
	if !ok || requestKind != message.KindTFTensor || c.tensors == nil {
		return message.Resolve(result, requestKind, classNames)
	}
	arr, err := arr.Normalize()
	if err != nil {
		return nil, err
	}
	raw, err := c.tensors.FromArray(arr)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "encoding tftensor result", err)
	}
	names := append([]string(nil), classNames...)
	if len(names) == 0 {
		names = message.SynthesizeNames(message.Columns(arr))
	}
	return message.OpaqueTensor{Names: names, Proto: raw}, nil
}

// Decode parses wire bytes in the given encoding into an envelope.
func (c *Codec) Decode(wire []byte, enc Encoding) (*message.Envelope, error) {
	switch enc {
	case JSON:
		var m prediction.JSONMessage
		if err := json.Unmarshal(wire, &m); err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid JSON message", err)
		}
		return c.FromJSON(&m)
	case Proto:
		var m prediction.SeldonMessage
		if err := m.Unmarshal(wire); err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid binary message", err)
		}
		return c.FromProto(&m)
	default:
		return nil, errors.Newf(errors.CodeUnsupportedEncoding, "unknown encoding %q", enc)
	}
}

// Encode renders an envelope in the given encoding.
func (c *Codec) Encode(env *message.Envelope, enc Encoding) ([]byte, error) {
	switch enc {
	case JSON:
		m, err := c.ToJSON(env)
		if err != nil {
			return nil, err
		}
		return json.Marshal(m)
	case Proto:
		m, err := c.ToProto(env)
		if err != nil {
			return nil, err
		}
		return m.Marshal()
	default:
		return nil, errors.Newf(errors.CodeUnsupportedEncoding, "unknown encoding %q", enc)
	}
}

// DecodeFeedback parses a feedback message in the given encoding.
func (c *Codec) DecodeFeedback(wire []byte, enc Encoding) (*message.Feedback, error) {
	switch enc {
	case JSON:
		var f prediction.JSONFeedback
		if err := json.Unmarshal(wire, &f); err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid JSON feedback", err)
		}
		return c.FeedbackFromJSON(&f)
	case Proto:
		var f prediction.Feedback
		if err := f.Unmarshal(wire); err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid binary feedback", err)
		}
		return c.FeedbackFromProto(&f)
	default:
		return nil, errors.Newf(errors.CodeUnsupportedEncoding, "unknown encoding %q", enc)
	}
}

// EncodeFeedback renders a feedback message in the given encoding.
func (c *Codec) EncodeFeedback(fb *message.Feedback, enc Encoding) ([]byte, error) {
	switch enc {
	case JSON:
		f, err := c.FeedbackToJSON(fb)
		if err != nil {
			return nil, err
		}
		return json.Marshal(f)
	case Proto:
		f, err := c.FeedbackToProto(fb)
		if err != nil {
			return nil, err
		}
		return f.Marshal()
	default:
		return nil, errors.Newf(errors.CodeUnsupportedEncoding, "unknown encoding %q", enc)
	}
}

func (c *Codec) tensorCodec() (TensorCodec, error) {
	if c.tensors == nil {
		return nil, errors.New(errors.CodeUnsupportedEncoding, "tftensor payloads are not supported", nil)
	}
	return c.tensors, nil
}

func checkTensor(shape []int, n int) error {
	for _, d := range shape {
		if d < 0 {
			return errors.Newf(errors.CodeMalformedPayload, "tensor shape %v has a negative dimension", shape)
		}
	}
	if message.Size(shape) != n {
		return errors.Newf(errors.CodeMalformedPayload, "tensor shape %v does not match %d values", shape, n)
	}
	return nil
}

func ambiguous(keys []string) error {
	return errors.New(errors.CodeMalformedPayload, fmt.Sprintf("expected one payload, found %v", keys), nil)
}
