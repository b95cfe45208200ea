// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/message"
)

func TestInit(t *testing.T) {
	shutdown, err := Init("test-service", "v0.0.1")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitWithConfig(t *testing.T) {
	shutdown, err := InitWithConfig("svc", "v1", Config{Exporter: "none"})
	if err != nil || shutdown(context.Background()) != nil {
		t.Fatalf("expected none exporter to succeed, got %v", err)
	}
	if otel.GetTextMapPropagator() == nil || len(otel.GetTextMapPropagator().Fields()) == 0 {
		t.Fatalf("expected a propagator to be installed")
	}
	if _, err := InitWithConfig("svc", "v1", Config{Exporter: "otlp"}); err == nil {
		t.Fatalf("expected error without an otlp endpoint")
	}
	if _, err := InitWithConfig("svc", "v1", Config{Exporter: "zipkin"}); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestOTLPHeaders(t *testing.T) {
	h := otlpHeaders(Config{OTLPHeaders: map[string]string{"x-api-key": "k"}, OTLPUser: "admin", OTLPToken: "pw"})
	if h["x-api-key"] != "k" || h["authorization"] != "Basic YWRtaW46cHc=" {
		t.Fatalf("unexpected headers %v", h)
	}
	h = otlpHeaders(Config{OTLPHeaders: map[string]string{"authorization": "Bearer t"}, OTLPUser: "admin", OTLPToken: "pw"})
	if h["authorization"] != "Bearer t" {
		t.Fatalf("expected explicit authorization to win, got %v", h)
	}
}

func TestConfigureSlogAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "info", "json")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "rest.request")
	span.End()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if rec["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("expected trace_id in %v", rec)
	}

	buf.Reset()
	logger.Debug("hidden")
	SetLogLevel("debug")
	logger.Debug("shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) || bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Fatalf("unexpected output after level change: %s", buf.String())
	}
	SetLogLevel("info")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRequestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewRequestMetrics(mp, "identity")
	if err != nil {
		t.Fatalf("NewRequestMetrics: %v", err)
	}
	ctx := context.Background()
	m.ObserveRequest(ctx, "predict", "rest", "canonical", 5*time.Millisecond, nil)
	m.ObserveRequest(ctx, "predict", "rest", "canonical", time.Millisecond, errors.New(errors.CodeMalformedPayload, "bad", nil))
	m.ObserveMetrics(ctx, []message.Metric{
		{Kind: message.MetricCounter, Key: "hits", Value: 2, Tags: map[string]string{"env": "test"}},
		{Kind: message.MetricCounter, Key: "hits", Value: 3, Tags: map[string]string{"env": "test"}},
		{Kind: message.MetricGauge, Key: "temp", Value: 21.5},
		{Kind: message.MetricTimer, Key: "lat", Value: 12},
	})

	got := collect(t, reader)

	requests := got[MetricRequests].Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range requests.DataPoints {
		total += dp.Value
	}
	if total != 2 || len(requests.DataPoints) != 2 {
		t.Fatalf("expected two request points summing to 2, got %+v", requests.DataPoints)
	}

	errs := got[MetricErrors].Data.(metricdata.Sum[int64])
	if len(errs.DataPoints) != 1 {
		t.Fatalf("expected one error point, got %+v", errs.DataPoints)
	}
	if v, _ := errs.DataPoints[0].Attributes.Value(attribute.Key(AttrErrorCode)); v.AsString() != "MALFORMED_PAYLOAD" {
		t.Fatalf("unexpected error code attribute %v", v)
	}

	counter := got[MetricComponentCount].Data.(metricdata.Sum[float64])
	if len(counter.DataPoints) != 1 || counter.DataPoints[0].Value != 5 {
		t.Fatalf("expected counter 5, got %+v", counter.DataPoints)
	}
	if v, _ := counter.DataPoints[0].Attributes.Value(attribute.Key(AttrMetricTag + "env")); v.AsString() != "test" {
		t.Fatalf("expected tag attribute, got %v", v)
	}

	gauge := got[MetricComponentGauge].Data.(metricdata.Gauge[float64])
	if len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != 21.5 {
		t.Fatalf("unexpected gauge %+v", gauge.DataPoints)
	}

	timer := got[MetricComponentTimer].Data.(metricdata.Histogram[float64])
	if len(timer.DataPoints) != 1 || timer.DataPoints[0].Count != 1 || timer.DataPoints[0].Sum != 12 {
		t.Fatalf("unexpected timer %+v", timer.DataPoints)
	}
}

func TestNilRequestMetrics(t *testing.T) {
	var m *RequestMetrics
	m.ObserveRequest(context.Background(), "predict", "rest", "raw", 0, nil)
	m.ObserveMetrics(context.Background(), []message.Metric{{Kind: message.MetricCounter, Key: "k", Value: 1}})
}

func TestMetricAttributesOrder(t *testing.T) {
	attrs := MetricAttributes("c", "k", map[string]string{"b": "2", "a": "1"})
	want := []string{AttrMetricKey, AttrComponent, AttrMetricTag + "a", AttrMetricTag + "b"}
	for i, kv := range attrs {
		if string(kv.Key) != want[i] {
			t.Fatalf("attribute %d: expected %s, got %s", i, want[i], kv.Key)
		}
	}
}
