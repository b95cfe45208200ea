// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires OpenTelemetry tracing, metrics and slog for the
// gateway.
package telemetry

import (
	"sort"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on gateway spans and instruments.
const (
	AttrComponent   = "seldon.component"
	AttrOperation   = "seldon.operation"
	AttrTransport   = "seldon.transport"
	AttrStrategy    = "seldon.strategy"
	AttrOutcome     = "seldon.outcome" // success, error
	AttrErrorCode   = "error.code"
	AttrRecoverable = "error.recoverable"
	AttrMetricKey   = "seldon.metric.key"
	AttrMetricTag   = "seldon.metric.tag."
)

// RequestAttributes returns the attributes describing one dispatch.
func RequestAttributes(component, operation, transport, strategy string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrOperation, operation),
		attribute.String(AttrTransport, transport),
		attribute.String(AttrStrategy, strategy),
	}
	if component != "" {
		attrs = append(attrs, attribute.String(AttrComponent, component))
	}
	return attrs
}

// MetricAttributes returns the attributes for a component-reported metric.
// Tags become seldon.metric.tag.<name> in a stable order.
func MetricAttributes(component, key string, tags map[string]string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrMetricKey, key)}
	if component != "" {
		attrs = append(attrs, attribute.String(AttrComponent, component))
	}
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		attrs = append(attrs, attribute.String(AttrMetricTag+name, tags[name]))
	}
	return attrs
}
