// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package component defines the capabilities a pluggable inference component
// can implement. The dispatcher inspects a component once, at registration,
// and picks for every operation and transport the most specific capability:
// a raw-message override, then a transport-specific override, then the
// canonical call.
//
// A single component value serves all requests concurrently. Implementations
// must be safe for concurrent use; the gateway does not serialize calls.
package component

import (
	"context"

	"github.com/adamjm/seldon-core/pkg/message"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

// Component is any value implementing at least one predict and one feedback
// capability below.
type Component any

// Predictor is the canonical predict capability. features has its names
// stripped; names carries them separately. A nil names slice means the
// request had none. The result may be an Array, in which case the gateway
// picks the wire form.
type Predictor interface {
	Predict(ctx context.Context, features message.Payload, names []string, meta message.Meta) (message.Payload, error)
}

// RESTPredictor handles the JSON message directly. The gateway still merges
// the correlation id, tags and metrics into the returned meta.
type RESTPredictor interface {
	PredictREST(ctx context.Context, req *prediction.JSONMessage) (*prediction.JSONMessage, error)
}

// GRPCPredictor is the binary counterpart of RESTPredictor.
type GRPCPredictor interface {
	PredictGRPC(ctx context.Context, req *prediction.SeldonMessage) (*prediction.SeldonMessage, error)
}

// RawRESTPredictor receives the JSON message untouched and its result is
// returned untouched.
type RawRESTPredictor interface {
	PredictRawREST(ctx context.Context, req *prediction.JSONMessage) (*prediction.JSONMessage, error)
}

// RawGRPCPredictor is the binary counterpart of RawRESTPredictor.
type RawGRPCPredictor interface {
	PredictRawGRPC(ctx context.Context, req *prediction.SeldonMessage) (*prediction.SeldonMessage, error)
}

// FeedbackReceiver is the canonical feedback capability. truth is nil when
// the feedback carried none. A nil result acknowledges with metadata only.
type FeedbackReceiver interface {
	SendFeedback(ctx context.Context, features message.Payload, names []string, reward float64, truth message.Payload) (message.Payload, error)
}

// RESTFeedbackReceiver handles the JSON feedback directly.
type RESTFeedbackReceiver interface {
	SendFeedbackREST(ctx context.Context, fb *prediction.JSONFeedback) (*prediction.JSONMessage, error)
}

// GRPCFeedbackReceiver handles the binary feedback directly.
type GRPCFeedbackReceiver interface {
	SendFeedbackGRPC(ctx context.Context, fb *prediction.Feedback) (*prediction.SeldonMessage, error)
}

// RawRESTFeedbackReceiver receives the JSON feedback untouched.
type RawRESTFeedbackReceiver interface {
	SendFeedbackRawREST(ctx context.Context, fb *prediction.JSONFeedback) (*prediction.JSONMessage, error)
}

// RawGRPCFeedbackReceiver receives the binary feedback untouched.
type RawGRPCFeedbackReceiver interface {
	SendFeedbackRawGRPC(ctx context.Context, fb *prediction.Feedback) (*prediction.SeldonMessage, error)
}

// Tagger reports tags to attach to every non-raw response.
type Tagger interface {
	Tags() map[string]any
}

// MetricsReporter reports metrics to attach to every non-raw response.
type MetricsReporter interface {
	Metrics() []message.Metric
}

// ClassNamer names the output columns of numeric results.
type ClassNamer interface {
	ClassNames() []string
}

// MetadataProvider describes the component for the /metadata endpoint.
type MetadataProvider interface {
	Metadata() map[string]any
}

// ContractProvider supplies the document served at /seldon.json.
type ContractProvider interface {
	Contract() map[string]any
}
