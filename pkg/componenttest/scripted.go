// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package componenttest provides a scripted component for exercising the
// gateway bindings without a real model.
package componenttest

import (
	"context"
	"sync"

	"github.com/adamjm/seldon-core/pkg/message"
)

// Response is one scripted answer. When Err is set, Payload is ignored.
type Response struct {
	Payload message.Payload
	Err     error
	// Condition, when set, selects the response only for matching calls.
	Condition func(Call) bool
}

// Call records one invocation of the component.
type Call struct {
	Op       string // predict or feedback
	Features message.Payload
	Names    []string
	Meta     message.Meta
	Reward   float64
	Truth    message.Payload
}

// Scripted is a canonical component that answers from a queue of responses
// and records every call. With an empty queue it echoes the features.
type Scripted struct {
	mu        sync.Mutex
	responses []Response
	calls     []Call
	defaultFn func(Call) (message.Payload, error)
	tags      map[string]any
	metrics   []message.Metric
}

// NewScripted creates a scripted component.
func NewScripted() *Scripted {
	return &Scripted{}
}

// Respond queues a successful response.
func (s *Scripted) Respond(p message.Payload) *Scripted {
	return s.Add(Response{Payload: p})
}

// Fail queues an error.
func (s *Scripted) Fail(err error) *Scripted {
	return s.Add(Response{Err: err})
}

// Add queues a fully configured response.
func (s *Scripted) Add(r Response) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return s
}

// WithDefault answers calls once the queue is exhausted.
func (s *Scripted) WithDefault(fn func(Call) (message.Payload, error)) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultFn = fn
	return s
}

// WithTags sets the tags reported on every response.
func (s *Scripted) WithTags(tags map[string]any) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = tags
	return s
}

// WithMetrics sets the metrics reported on every response.
func (s *Scripted) WithMetrics(metrics ...message.Metric) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = metrics
	return s
}

func (s *Scripted) Predict(ctx context.Context, features message.Payload, names []string, meta message.Meta) (message.Payload, error) {
	return s.answer(ctx, Call{Op: "predict", Features: features, Names: names, Meta: meta})
}

func (s *Scripted) SendFeedback(ctx context.Context, features message.Payload, names []string, reward float64, truth message.Payload) (message.Payload, error) {
	return s.answer(ctx, Call{Op: "feedback", Features: features, Names: names, Reward: reward, Truth: truth})
}

func (s *Scripted) Tags() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags
}

func (s *Scripted) Metrics() []message.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *Scripted) answer(ctx context.Context, call Call) (message.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	for i, r := range s.responses {
		if r.Condition != nil && !r.Condition(call) {
			continue
		}
		s.responses = append(s.responses[:i], s.responses[i+1:]...)
		s.mu.Unlock()
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Payload, nil
	}
	fn := s.defaultFn
	s.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	return call.Features, nil
}

// Calls returns a copy of the recorded calls.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// LastCall returns the most recent call, or nil.
func (s *Scripted) LastCall() *Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	c := s.calls[len(s.calls)-1]
	return &c
}

// CallCount returns the number of recorded calls.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Reset clears the queue and the recorded calls.
func (s *Scripted) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = nil
	s.calls = nil
}
