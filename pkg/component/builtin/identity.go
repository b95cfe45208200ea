// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/adamjm/seldon-core/pkg/codec"
	"github.com/adamjm/seldon-core/pkg/component"
	"github.com/adamjm/seldon-core/pkg/message"
)

var arrays = codec.Default()

// Identity answers every prediction with its features, or with a configured
// constant vector. For a batch of numeric rows the constant is repeated once
// per row.
type Identity struct {
	settings  Settings
	predicts  atomic.Int64
	feedbacks atomic.Int64
}

// NewIdentity creates an identity component.
func NewIdentity(s Settings) *Identity {
	return &Identity{settings: s}
}

func (c *Identity) Predict(ctx context.Context, features message.Payload, names []string, meta message.Meta) (message.Payload, error) {
	c.predicts.Add(1)
	slog.Default().DebugContext(ctx, "builtin.identity.predict",
		slog.String("puid", meta.CorrelationID),
		slog.String("kind", string(features.Kind())),
		slog.Int("names", len(names)),
	)
	if c.settings.Constant != nil {
		return c.constant(features), nil
	}
	return features, nil
}

func (c *Identity) constant(features message.Payload) message.Array {
	width := len(c.settings.Constant)
	arr, err := arrays.ToArray(features)
	if err != nil || len(arr.Shape) < 2 {
		return message.Array{Shape: []int{width}, Values: append([]float64(nil), c.settings.Constant...)}
	}
	rows := arr.Shape[0]
	values := make([]float64, 0, rows*width)
	for range rows {
		values = append(values, c.settings.Constant...)
	}
	return message.Array{Shape: []int{rows, width}, Values: values}
}

func (c *Identity) SendFeedback(ctx context.Context, _ message.Payload, _ []string, reward float64, _ message.Payload) (message.Payload, error) {
	c.feedbacks.Add(1)
	slog.Default().DebugContext(ctx, "builtin.identity.feedback", slog.Float64("reward", reward))
	return nil, nil
}

func (c *Identity) Tags() map[string]any { return copyTags(c.settings.Tags) }

func (c *Identity) Metrics() []message.Metric {
	return append([]message.Metric(nil), c.settings.Metrics...)
}

func (c *Identity) ClassNames() []string { return c.settings.ClassNames }

// Metadata reports the component name, version and call counts.
func (c *Identity) Metadata() map[string]any {
	return map[string]any{
		"name":      "identity",
		"versions":  []string{c.settings.Version},
		"predicts":  c.predicts.Load(),
		"feedbacks": c.feedbacks.Load(),
	}
}

func (c *Identity) Check(context.Context) component.HealthResult {
	return component.HealthResult{Status: component.HealthHealthy, LastCheck: time.Now()}
}
