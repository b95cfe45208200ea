// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/adamjm/seldon-core/pkg/errors"
)

// BreakerState is the state of a circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that close it.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration
	Name     string
}

// Breaker stops calling a failing endpoint for a while. Calls run outside
// the lock, so concurrent callers are not serialized.
type Breaker struct {
	config    BreakerConfig
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	if config.Cooldown == 0 {
		config.Cooldown = 10 * time.Second
	}
	if config.Name == "" {
		config.Name = "breaker"
	}
	return &Breaker{config: config, state: StateClosed, now: time.Now}
}

// Do runs fn when the circuit allows it and records the outcome. An open
// circuit fails fast with a recoverable CodeUnavailable error.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn()
	}
	if err := b.allow(); err != nil {
		return zero, err
	}
	value, err := fn()
	b.record(err)
	return value, err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		b.transition(StateHalfOpen)
	}
	if b.state == StateOpen {
		return errors.New(errors.CodeUnavailable, "circuit breaker open", nil).
			WithContext("breaker", b.config.Name).
			WithRecoverable(true)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.successes = 0
		if b.state == StateHalfOpen || b.failures >= b.config.FailureThreshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
		return
	}
	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

// must hold b.mu
func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	slog.Default().Info("resilience.breaker.transition",
		slog.String("breaker", b.config.Name),
		slog.String("from", string(b.state)),
		slog.String("to", string(to)),
	)
	b.state = to
	b.failures = 0
	b.successes = 0
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}
