// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"

	"github.com/adamjm/seldon-core/pkg/component"
	"github.com/adamjm/seldon-core/pkg/errors"
)

// Strategy is how one operation is invoked on the component.
type Strategy int

const (
	// StrategyNone means the component cannot serve the operation.
	StrategyNone Strategy = iota
	// StrategyCanonical decodes to the canonical envelope and calls the
	// high-level capability.
	StrategyCanonical
	// StrategyTransport hands the transport-native message to the
	// component and merges metadata into its answer.
	StrategyTransport
	// StrategyRaw hands the transport-native message to the component and
	// returns its answer untouched.
	StrategyRaw
)

func (s Strategy) String() string {
	switch s {
	case StrategyCanonical:
		return "canonical"
	case StrategyTransport:
		return "transport"
	case StrategyRaw:
		return "raw"
	default:
		return "none"
	}
}

// Transport identifies an ingress protocol.
type Transport string

const (
	REST Transport = "rest"
	GRPC Transport = "grpc"
)

// Operation identifies a dispatchable operation.
type Operation string

const (
	OpPredict  Operation = "predict"
	OpFeedback Operation = "feedback"
)

// Plan is the resolved strategy per operation and transport. It is
// computed once and never mutated.
type Plan struct {
	PredictREST  Strategy
	PredictGRPC  Strategy
	FeedbackREST Strategy
	FeedbackGRPC Strategy
}

// Strategy returns the entry for op on t.
func (p Plan) Strategy(op Operation, t Transport) Strategy {
	switch {
	case op == OpPredict && t == REST:
		return p.PredictREST
	case op == OpPredict && t == GRPC:
		return p.PredictGRPC
	case op == OpFeedback && t == REST:
		return p.FeedbackREST
	case op == OpFeedback && t == GRPC:
		return p.FeedbackGRPC
	default:
		return StrategyNone
	}
}

func (p Plan) String() string {
	return fmt.Sprintf("predict[rest=%s grpc=%s] feedback[rest=%s grpc=%s]",
		p.PredictREST, p.PredictGRPC, p.FeedbackREST, p.FeedbackGRPC)
}

// Resolve inspects comp and builds its plan. Precedence per entry is raw
// override, then transport override, then canonical. It fails with
// CodeRegistrationFailure when no predict or no feedback strategy exists
// on any transport.
func Resolve(comp component.Component) (Plan, error) {
	if comp == nil {
		return Plan{}, errors.New(errors.CodeRegistrationFailure, "no component", nil)
	}
	_, canonicalPredict := comp.(component.Predictor)
	_, canonicalFeedback := comp.(component.FeedbackReceiver)

	pick := func(raw, transport, canonical bool) Strategy {
		switch {
		case raw:
			return StrategyRaw
		case transport:
			return StrategyTransport
		case canonical:
			return StrategyCanonical
		default:
			return StrategyNone
		}
	}

	var p Plan
	{
		_, raw := comp.(component.RawRESTPredictor)
		_, tr := comp.(component.RESTPredictor)
		p.PredictREST = pick(raw, tr, canonicalPredict)
	}
	{
		_, raw := comp.(component.RawGRPCPredictor)
		_, tr := comp.(component.GRPCPredictor)
		p.PredictGRPC = pick(raw, tr, canonicalPredict)
	}
	{
		_, raw := comp.(component.RawRESTFeedbackReceiver)
		_, tr := comp.(component.RESTFeedbackReceiver)
		p.FeedbackREST = pick(raw, tr, canonicalFeedback)
	}
	{
		_, raw := comp.(component.RawGRPCFeedbackReceiver)
		_, tr := comp.(component.GRPCFeedbackReceiver)
		p.FeedbackGRPC = pick(raw, tr, canonicalFeedback)
	}

	if p.PredictREST == StrategyNone && p.PredictGRPC == StrategyNone {
		return Plan{}, errors.Newf(errors.CodeRegistrationFailure, "component %T has no predict capability", comp)
	}
	if p.FeedbackREST == StrategyNone && p.FeedbackGRPC == StrategyNone {
		return Plan{}, errors.Newf(errors.CodeRegistrationFailure, "component %T has no feedback capability", comp)
	}
	return p, nil
}
