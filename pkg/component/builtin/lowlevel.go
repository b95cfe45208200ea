// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"

	"github.com/adamjm/seldon-core/pkg/prediction"
)

// LowLevel works on transport messages directly. It answers [9, 9] on both
// transports and acknowledges feedback.
type LowLevel struct {
	settings Settings
}

// NewLowLevel creates a transport-level component.
func NewLowLevel(s Settings) *LowLevel {
	return &LowLevel{settings: s}
}

func (c *LowLevel) PredictREST(context.Context, *prediction.JSONMessage) (*prediction.JSONMessage, error) {
	return &prediction.JSONMessage{
		Data: &prediction.JSONDefaultData{NDArray: []any{9.0, 9.0}},
	}, nil
}

func (c *LowLevel) PredictGRPC(context.Context, *prediction.SeldonMessage) (*prediction.SeldonMessage, error) {
	return &prediction.SeldonMessage{
		Data: &prediction.DefaultData{
			Tensor: &prediction.Tensor{Shape: []int32{2, 1}, Values: []float64{9, 9}},
		},
	}, nil
}

func (c *LowLevel) SendFeedbackREST(context.Context, *prediction.JSONFeedback) (*prediction.JSONMessage, error) {
	return &prediction.JSONMessage{}, nil
}

func (c *LowLevel) SendFeedbackGRPC(context.Context, *prediction.Feedback) (*prediction.SeldonMessage, error) {
	return &prediction.SeldonMessage{}, nil
}

func (c *LowLevel) Tags() map[string]any { return copyTags(c.settings.Tags) }
