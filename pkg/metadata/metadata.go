// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package metadata builds response metadata from the request metadata and
// what the component reports.
package metadata

import (
	"github.com/google/uuid"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/message"
)

// NewCorrelationID returns a fresh correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}

// EnsureCorrelationID returns meta with a correlation id, generating one
// when the request carried none.
func EnsureCorrelationID(meta message.Meta) message.Meta {
	if meta.CorrelationID == "" {
		meta.CorrelationID = NewCorrelationID()
	}
	return meta
}

// Build returns the response metadata. The correlation id is copied from
// input or generated; tags and metrics come only from the component. The
// first metric with an unrecognized kind fails the whole build.
func Build(input message.Meta, tags map[string]any, metrics []message.Metric) (message.Meta, error) {
	if err := ValidateMetrics(metrics); err != nil {
		return message.Meta{}, err
	}
	out := message.Meta{
		CorrelationID: input.CorrelationID,
		Tags:          make(map[string]any, len(tags)),
	}
	if out.CorrelationID == "" {
		out.CorrelationID = NewCorrelationID()
	}
	for k, v := range tags {
		out.Tags[k] = v
	}
	if len(metrics) > 0 {
		out.Metrics = make([]message.Metric, len(metrics))
		copy(out.Metrics, metrics)
	}
	passthrough := input.Clone()
	out.Routing = passthrough.Routing
	out.RequestPath = passthrough.RequestPath
	return out, nil
}

// ValidateMetrics checks metric kinds in order.
func ValidateMetrics(metrics []message.Metric) error {
	for i, m := range metrics {
		if !m.Kind.Valid() {
			return errors.Newf(errors.CodeInvalidMetrics, "unknown metric type %q", m.Kind).
				WithContext("metric_key", m.Key).
				WithContext("metric_index", i)
		}
	}
	return nil
}

// Merge folds component tags and metrics into meta already produced by the
// component. Component-set fields of meta win over the aggregated ones
// except the correlation id, which matches the request whenever it has one.
func Merge(request, produced message.Meta, tags map[string]any, metrics []message.Metric) (message.Meta, error) {
	if request.CorrelationID == "" {
		request.CorrelationID = produced.CorrelationID
	}
	built, err := Build(request, tags, metrics)
	if err != nil {
		return message.Meta{}, err
	}
	if err := ValidateMetrics(produced.Metrics); err != nil {
		return message.Meta{}, err
	}
	for k, v := range produced.Tags {
		built.Tags[k] = v
	}
	built.Metrics = append(built.Metrics, produced.Metrics...)
	if produced.Routing != nil {
		built.Routing = produced.Routing
	}
	if produced.RequestPath != nil {
		built.RequestPath = produced.RequestPath
	}
	return built, nil
}
