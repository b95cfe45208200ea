// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch routes predict and feedback requests from any transport
// to the component, using the strategy resolved at registration.
package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamjm/seldon-core/pkg/codec"
	"github.com/adamjm/seldon-core/pkg/component"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/message"
	"github.com/adamjm/seldon-core/pkg/metadata"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

// Observer receives per-request measurements. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveRequest(ctx context.Context, operation, transport, strategy string, elapsed time.Duration, err error)
	ObserveMetrics(ctx context.Context, metrics []message.Metric)
}

// Dispatcher is shared by every transport handler. It is immutable after
// New and safe for concurrent use.
type Dispatcher struct {
	comp     component.Component
	name     string
	plan     Plan
	codec    *codec.Codec
	observer Observer
	tracer   trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCodec sets the codec used by the canonical strategy.
func WithCodec(c *codec.Codec) Option {
	return func(d *Dispatcher) {
		d.codec = c
	}
}

// WithObserver installs a request observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithName names the component in logs, traces and health reports.
func WithName(name string) Option {
	return func(d *Dispatcher) {
		d.name = name
	}
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// New registers comp and resolves its dispatch plan.
func New(comp component.Component, opts ...Option) (*Dispatcher, error) {
	plan, err := Resolve(comp)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{comp: comp, plan: plan, name: fmt.Sprintf("%T", comp)}
	for _, opt := range opts {
		opt(d)
	}
	if d.codec == nil {
		d.codec = codec.Default()
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer("seldon/dispatch")
	}
	slog.Default().Info("dispatch.register",
		slog.String("component", d.name),
		slog.String("plan", plan.String()),
	)
	return d, nil
}

// Plan returns the resolved plan.
func (d *Dispatcher) Plan() Plan { return d.plan }

// Component returns the registered component.
func (d *Dispatcher) Component() component.Component { return d.comp }

// Name returns the component name.
func (d *Dispatcher) Name() string { return d.name }

// Codec returns the codec used by the canonical strategy.
func (d *Dispatcher) Codec() *codec.Codec { return d.codec }

// PredictREST serves a JSON predict request.
func (d *Dispatcher) PredictREST(ctx context.Context, req *prediction.JSONMessage) (out *prediction.JSONMessage, err error) {
	strategy := d.plan.PredictREST
	ctx, finish := d.begin(ctx, OpPredict, REST, strategy)
	defer func() { finish(err) }()

	switch strategy {
	case StrategyRaw:
		return invoke(ctx, func() (*prediction.JSONMessage, error) {
			return d.comp.(component.RawRESTPredictor).PredictRawREST(ctx, req)
		})
	case StrategyTransport:
		reqMeta := metadata.EnsureCorrelationID(codec.MetaFromJSON(jsonMeta(req)))
		res, err := invoke(ctx, func() (*prediction.JSONMessage, error) {
			return d.comp.(component.RESTPredictor).PredictREST(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		return d.mergeJSON(ctx, reqMeta, res)
	case StrategyCanonical:
		env, err := d.codec.FromJSON(req)
		if err != nil {
			return nil, err
		}
		res, err := d.predict(ctx, env)
		if err != nil {
			return nil, err
		}
		return d.codec.ToJSON(res)
	default:
		return nil, unimplemented(OpPredict, REST)
	}
}

// PredictGRPC serves a binary predict request.
func (d *Dispatcher) PredictGRPC(ctx context.Context, req *prediction.SeldonMessage) (out *prediction.SeldonMessage, err error) {
	strategy := d.plan.PredictGRPC
	ctx, finish := d.begin(ctx, OpPredict, GRPC, strategy)
	defer func() { finish(err) }()

	switch strategy {
	case StrategyRaw:
		return invoke(ctx, func() (*prediction.SeldonMessage, error) {
			return d.comp.(component.RawGRPCPredictor).PredictRawGRPC(ctx, req)
		})
	case StrategyTransport:
		reqMeta := metadata.EnsureCorrelationID(codec.MetaFromProto(protoMeta(req)))
		res, err := invoke(ctx, func() (*prediction.SeldonMessage, error) {
			return d.comp.(component.GRPCPredictor).PredictGRPC(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		return d.mergeProto(ctx, reqMeta, res)
	case StrategyCanonical:
		env, err := d.codec.FromProto(req)
		if err != nil {
			return nil, err
		}
		res, err := d.predict(ctx, env)
		if err != nil {
			return nil, err
		}
		return d.codec.ToProto(res)
	default:
		return nil, unimplemented(OpPredict, GRPC)
	}
}

// FeedbackREST serves a JSON feedback request.
func (d *Dispatcher) FeedbackREST(ctx context.Context, fb *prediction.JSONFeedback) (out *prediction.JSONMessage, err error) {
	strategy := d.plan.FeedbackREST
	ctx, finish := d.begin(ctx, OpFeedback, REST, strategy)
	defer func() { finish(err) }()

	switch strategy {
	case StrategyRaw:
		return invoke(ctx, func() (*prediction.JSONMessage, error) {
			return d.comp.(component.RawRESTFeedbackReceiver).SendFeedbackRawREST(ctx, fb)
		})
	case StrategyTransport:
		var reqMeta message.Meta
		if fb != nil {
			reqMeta = codec.MetaFromJSON(jsonMeta(fb.Request))
		}
		reqMeta = metadata.EnsureCorrelationID(reqMeta)
		res, err := invoke(ctx, func() (*prediction.JSONMessage, error) {
			return d.comp.(component.RESTFeedbackReceiver).SendFeedbackREST(ctx, fb)
		})
		if err != nil {
			return nil, err
		}
		return d.mergeJSON(ctx, reqMeta, res)
	case StrategyCanonical:
		decoded, err := d.codec.FeedbackFromJSON(fb)
		if err != nil {
			return nil, err
		}
		res, err := d.feedback(ctx, decoded)
		if err != nil {
			return nil, err
		}
		return d.codec.ToJSON(res)
	default:
		return nil, unimplemented(OpFeedback, REST)
	}
}

// FeedbackGRPC serves a binary feedback request.
func (d *Dispatcher) FeedbackGRPC(ctx context.Context, fb *prediction.Feedback) (out *prediction.SeldonMessage, err error) {
	strategy := d.plan.FeedbackGRPC
	ctx, finish := d.begin(ctx, OpFeedback, GRPC, strategy)
	defer func() { finish(err) }()

	switch strategy {
	case StrategyRaw:
		return invoke(ctx, func() (*prediction.SeldonMessage, error) {
			return d.comp.(component.RawGRPCFeedbackReceiver).SendFeedbackRawGRPC(ctx, fb)
		})
	case StrategyTransport:
		var reqMeta message.Meta
		if fb != nil {
			reqMeta = codec.MetaFromProto(protoMeta(fb.Request))
		}
		reqMeta = metadata.EnsureCorrelationID(reqMeta)
		res, err := invoke(ctx, func() (*prediction.SeldonMessage, error) {
			return d.comp.(component.GRPCFeedbackReceiver).SendFeedbackGRPC(ctx, fb)
		})
		if err != nil {
			return nil, err
		}
		return d.mergeProto(ctx, reqMeta, res)
	case StrategyCanonical:
		decoded, err := d.codec.FeedbackFromProto(fb)
		if err != nil {
			return nil, err
		}
		res, err := d.feedback(ctx, decoded)
		if err != nil {
			return nil, err
		}
		return d.codec.ToProto(res)
	default:
		return nil, unimplemented(OpFeedback, GRPC)
	}
}

// Predict runs the canonical predict path on an already decoded envelope.
// Bindings without a native wire format of their own use it.
func (d *Dispatcher) Predict(ctx context.Context, env *message.Envelope) (out *message.Envelope, err error) {
	strategy := StrategyNone
	if _, ok := d.comp.(component.Predictor); ok {
		strategy = StrategyCanonical
	}
	ctx, finish := d.begin(ctx, OpPredict, "canonical", strategy)
	defer func() { finish(err) }()
	if strategy == StrategyNone {
		return nil, unimplemented(OpPredict, "canonical")
	}
	return d.predict(ctx, env)
}

// Feedback runs the canonical feedback path on an already decoded message.
func (d *Dispatcher) Feedback(ctx context.Context, fb *message.Feedback) (out *message.Envelope, err error) {
	strategy := StrategyNone
	if _, ok := d.comp.(component.FeedbackReceiver); ok {
		strategy = StrategyCanonical
	}
	ctx, finish := d.begin(ctx, OpFeedback, "canonical", strategy)
	defer func() { finish(err) }()
	if strategy == StrategyNone {
		return nil, unimplemented(OpFeedback, "canonical")
	}
	return d.feedback(ctx, fb)
}

func (d *Dispatcher) predict(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
	if env == nil || env.Payload == nil {
		return nil, errors.New(errors.CodeMalformedPayload, "request has no payload", nil)
	}
	meta := metadata.EnsureCorrelationID(env.Meta)
	features, names := message.StripNames(env.Payload)
	result, err := invoke(ctx, func() (message.Payload, error) {
		return d.comp.(component.Predictor).Predict(ctx, features, names, meta)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New(errors.CodeComponentFailure, "component returned no prediction", nil)
	}
	payload, err := d.codec.Resolve(result, env.Payload.Kind(), d.classNames())
	if err != nil {
		return nil, err
	}
	return d.respond(ctx, meta, payload)
}

func (d *Dispatcher) feedback(ctx context.Context, fb *message.Feedback) (*message.Envelope, error) {
	if fb == nil || fb.Request == nil {
		return nil, errors.New(errors.CodeMalformedPayload, "feedback has no request", nil)
	}
	meta := metadata.EnsureCorrelationID(fb.Request.Meta)
	var features message.Payload
	var names []string
	if fb.Request.Payload != nil {
		features, names = message.StripNames(fb.Request.Payload)
	}
	var truth message.Payload
	if fb.Truth != nil {
		truth = fb.Truth.Payload
	}
	result, err := invoke(ctx, func() (message.Payload, error) {
		return d.comp.(component.FeedbackReceiver).SendFeedback(ctx, features, names, fb.Reward, truth)
	})
	if err != nil {
		return nil, err
	}
	if result != nil {
		if result, err = d.codec.Resolve(result, fb.Request.PayloadKind(), d.classNames()); err != nil {
			return nil, err
		}
	}
	return d.respond(ctx, meta, result)
}

func (d *Dispatcher) respond(ctx context.Context, meta message.Meta, payload message.Payload) (*message.Envelope, error) {
	tags, metrics := d.reported()
	out, err := metadata.Build(meta, tags, metrics)
	if err != nil {
		return nil, err
	}
	d.observeMetrics(ctx, out.Metrics)
	return &message.Envelope{Meta: out, Payload: payload}, nil
}

func (d *Dispatcher) mergeJSON(ctx context.Context, reqMeta message.Meta, res *prediction.JSONMessage) (*prediction.JSONMessage, error) {
	if res == nil {
		return nil, errors.New(errors.CodeComponentFailure, "component returned no message", nil)
	}
	tags, metrics := d.reported()
	merged, err := metadata.Merge(reqMeta, codec.MetaFromJSON(res.Meta), tags, metrics)
	if err != nil {
		return nil, err
	}
	d.observeMetrics(ctx, merged.Metrics)
	res.Meta = codec.MetaToJSON(merged)
	return res, nil
}

func (d *Dispatcher) mergeProto(ctx context.Context, reqMeta message.Meta, res *prediction.SeldonMessage) (*prediction.SeldonMessage, error) {
	if res == nil {
		return nil, errors.New(errors.CodeComponentFailure, "component returned no message", nil)
	}
	tags, metrics := d.reported()
	merged, err := metadata.Merge(reqMeta, codec.MetaFromProto(res.Meta), tags, metrics)
	if err != nil {
		return nil, err
	}
	meta, err := codec.MetaToProto(merged)
	if err != nil {
		return nil, err
	}
	d.observeMetrics(ctx, merged.Metrics)
	res.Meta = meta
	return res, nil
}

func (d *Dispatcher) reported() (map[string]any, []message.Metric) {
	var tags map[string]any
	var metrics []message.Metric
	if t, ok := d.comp.(component.Tagger); ok {
		tags = t.Tags()
	}
	if m, ok := d.comp.(component.MetricsReporter); ok {
		metrics = m.Metrics()
	}
	return tags, metrics
}

func (d *Dispatcher) classNames() []string {
	if c, ok := d.comp.(component.ClassNamer); ok {
		return c.ClassNames()
	}
	return nil
}

func (d *Dispatcher) observeMetrics(ctx context.Context, metrics []message.Metric) {
	if d.observer != nil && len(metrics) > 0 {
		d.observer.ObserveMetrics(ctx, metrics)
	}
}

// begin opens the span for one dispatch and returns the function that
// closes it.
func (d *Dispatcher) begin(ctx context.Context, op Operation, t Transport, s Strategy) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "Dispatch."+string(op), trace.WithAttributes(
		attribute.String("component.name", d.name),
		attribute.String("dispatch.transport", string(t)),
		attribute.String("dispatch.strategy", s.String()),
	))
	return ctx, func(err error) {
		defer span.End()
		elapsed := time.Since(start)
		if d.observer != nil {
			d.observer.ObserveRequest(ctx, string(op), string(t), s.String(), elapsed, err)
		}
		if err == nil {
			return
		}
		ge := errors.AsGatewayError(err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(ge.Code))
		level := slog.LevelWarn
		if errors.IsClientError(ge.Code) {
			level = slog.LevelDebug
		}
		slog.Default().Log(ctx, level, "dispatch."+string(op)+".error",
			slog.String("component", d.name),
			slog.String("transport", string(t)),
			slog.String("strategy", s.String()),
			slog.String("code", string(ge.Code)),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	}
}

// invoke calls the component, converting panics and plain errors into
// gateway errors.
func invoke[T any](ctx context.Context, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = zero
			err = errors.New(errors.CodeComponentFailure, fmt.Sprintf("component panicked: %v", r), nil)
		}
	}()
	out, err = fn()
	if err != nil {
		err = componentError(ctx, err)
	}
	return out, err
}

func componentError(ctx context.Context, err error) error {
	var ge *errors.GatewayError
	if stderrors.As(err, &ge) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.New(errors.CodeTimeout, "component exceeded the request deadline", err).WithRecoverable(true)
	}
	return errors.New(errors.CodeComponentFailure, "component failed", err)
}

func unimplemented(op Operation, t Transport) error {
	return errors.Newf(errors.CodeUnimplemented, "component does not implement %s over %s", op, t).
		WithContext("operation", string(op)).
		WithContext("transport", string(t))
}

func jsonMeta(m *prediction.JSONMessage) *prediction.JSONMeta {
	if m == nil {
		return nil
	}
	return m.Meta
}

func protoMeta(m *prediction.SeldonMessage) *prediction.Meta {
	if m == nil {
		return nil
	}
	return m.Meta
}
