// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package message defines the canonical in-memory envelope every transport
// decodes into and encodes from.
package message

import "fmt"

// MetricKind classifies a component-reported metric.
type MetricKind string

const (
	MetricCounter MetricKind = "COUNTER"
	MetricGauge   MetricKind = "GAUGE"
	MetricTimer   MetricKind = "TIMER"
)

// Valid reports whether k is one of the recognized kinds.
func (k MetricKind) Valid() bool {
	switch k {
	case MetricCounter, MetricGauge, MetricTimer:
		return true
	default:
		return false
	}
}

// Metric is a single measurement reported by a component.
type Metric struct {
	Kind  MetricKind
	Key   string
	Value float64
	Tags  map[string]string
}

// Meta is the envelope metadata.
type Meta struct {
	// CorrelationID is the wire field "puid".
	CorrelationID string
	Tags          map[string]any
	Routing       map[string]int32
	RequestPath   map[string]string
	Metrics       []Metric
}

// Clone returns a copy of m with fresh maps and slices.
func (m Meta) Clone() Meta {
	out := Meta{CorrelationID: m.CorrelationID}
	if m.Tags != nil {
		out.Tags = make(map[string]any, len(m.Tags))
		for k, v := range m.Tags {
			out.Tags[k] = v
		}
	}
	if m.Routing != nil {
		out.Routing = make(map[string]int32, len(m.Routing))
		for k, v := range m.Routing {
			out.Routing[k] = v
		}
	}
	if m.RequestPath != nil {
		out.RequestPath = make(map[string]string, len(m.RequestPath))
		for k, v := range m.RequestPath {
			out.RequestPath[k] = v
		}
	}
	if m.Metrics != nil {
		out.Metrics = append([]Metric(nil), m.Metrics...)
	}
	return out
}

// StatusFlag is the outcome flag carried by Status.
type StatusFlag string

const (
	StatusSuccess StatusFlag = "SUCCESS"
	StatusFailure StatusFlag = "FAILURE"
)

// Status describes the outcome of a request. Error responses carry one.
type Status struct {
	Code   int32
	Info   string
	Reason string
	Flag   StatusFlag
}

// Envelope is the canonical message exchanged between the transports and
// the component. Payload may be nil only on acknowledgements and status
// responses.
type Envelope struct {
	Meta    Meta
	Payload Payload
	Status  *Status
}

// PayloadKind returns the payload discriminant, or the empty kind.
func (e *Envelope) PayloadKind() Kind {
	if e == nil || e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// Feedback carries a reward signal for an earlier prediction.
type Feedback struct {
	Request  *Envelope
	Response *Envelope
	Reward   float64
	Truth    *Envelope
}

func (f *Feedback) String() string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("feedback(reward=%g request=%s)", f.Reward, f.Request.PayloadKind())
}
