// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/message"
)

// Instrument names.
const (
	MetricRequests        = "seldon.requests.total"
	MetricRequestDuration = "seldon.request.duration"
	MetricErrors          = "seldon.errors.total"
	MetricComponentCount  = "seldon.component.counter"
	MetricComponentGauge  = "seldon.component.gauge"
	MetricComponentTimer  = "seldon.component.timer"
)

// RequestMetrics records one measurement per dispatch and exports the
// metrics components report: COUNTER to a counter, GAUGE to a gauge and
// TIMER to a histogram in milliseconds.
type RequestMetrics struct {
	component string

	requests metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter

	counter metric.Float64Counter
	gauge   metric.Float64Gauge
	timer   metric.Float64Histogram
}

// NewRequestMetrics creates the instruments on mp, or on the global meter
// provider when mp is nil.
func NewRequestMetrics(mp metric.MeterProvider, component string) (*RequestMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("seldon/gateway")
	m := &RequestMetrics{component: component}
	var err error
	if m.requests, err = meter.Int64Counter(MetricRequests,
		metric.WithDescription("Dispatched requests by operation, transport, strategy and outcome")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("Dispatch latency"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter(MetricErrors,
		metric.WithDescription("Failed requests by error code")); err != nil {
		return nil, err
	}
	if m.counter, err = meter.Float64Counter(MetricComponentCount,
		metric.WithDescription("COUNTER metrics reported by the component")); err != nil {
		return nil, err
	}
	if m.gauge, err = meter.Float64Gauge(MetricComponentGauge,
		metric.WithDescription("GAUGE metrics reported by the component")); err != nil {
		return nil, err
	}
	if m.timer, err = meter.Float64Histogram(MetricComponentTimer,
		metric.WithDescription("TIMER metrics reported by the component"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveRequest records the outcome and latency of one dispatch.
func (m *RequestMetrics) ObserveRequest(ctx context.Context, operation, transport, strategy string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := RequestAttributes(m.component, operation, transport, strategy)
	outcome := "success"
	if err != nil {
		outcome = "error"
		ge := errors.AsGatewayError(err)
		m.errors.Add(ctx, 1, metric.WithAttributes(append(attrs,
			attribute.String(AttrErrorCode, string(ge.Code)),
			attribute.Bool(AttrRecoverable, ge.Recoverable),
		)...))
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String(AttrOutcome, outcome))...))
	m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

// ObserveMetrics exports component-reported metrics.
func (m *RequestMetrics) ObserveMetrics(ctx context.Context, metrics []message.Metric) {
	if m == nil {
		return
	}
	for _, mt := range metrics {
		opt := metric.WithAttributes(MetricAttributes(m.component, mt.Key, mt.Tags)...)
		switch mt.Kind {
		case message.MetricCounter:
			m.counter.Add(ctx, mt.Value, opt)
		case message.MetricGauge:
			m.gauge.Record(ctx, mt.Value, opt)
		case message.MetricTimer:
			m.timer.Record(ctx, mt.Value, opt)
		}
	}
}
