// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience bounds and retries calls: request timeouts for the
// transport handlers, and retry with backoff plus a circuit breaker for the
// clients.
package resilience

import (
	"context"
	"time"

	"github.com/adamjm/seldon-core/pkg/errors"
)

// Timeout runs fn with a deadline of d. fn receives the bounded context.
// When the deadline passes first, Timeout returns CodeTimeout without
// waiting for fn. A zero d runs fn with ctx unchanged.
func Timeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, errors.New(errors.CodeTimeout, "request exceeded timeout", ctx.Err()).
			WithContext("timeout", d.String()).
			WithRecoverable(true)
	case res := <-done:
		return res.value, res.err
	}
}
