// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/prediction"
	"github.com/adamjm/seldon-core/pkg/resilience"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// Client wraps the seldon.protos.Model client with timeouts, retries and
// an optional circuit breaker.
type Client struct {
	raw     prediction.ModelClient
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
	creds   credentials.PerRPCCredentials
}

// NewClient creates a client from an existing connection.
func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{
		raw:     prediction.NewModelClient(conn),
		timeout: 10 * time.Second,
		retry:   resilience.DefaultRetryConfig().WithMaxAttempts(1).WithIsRecoverable(retryableError),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Dial connects to target without transport security.
func Dial(target string, opts ...ClientOption) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, errors.New(errors.CodeUnavailable, "cannot create grpc client", err).WithContext("target", target)
	}
	return NewClient(conn, opts...), conn, nil
}

// WithTimeout sets a per-attempt timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetries sets the number of retries after the first attempt.
func WithRetries(retries int) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.retry = c.retry.WithMaxAttempts(retries + 1)
		}
	}
}

// WithBreaker guards calls with a circuit breaker.
func WithBreaker(b *resilience.Breaker) ClientOption {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithCredentials attaches per-RPC credentials to outgoing calls.
func WithCredentials(creds credentials.PerRPCCredentials) ClientOption {
	return func(c *Client) {
		c.creds = creds
	}
}

// Predict calls the Predict RPC.
func (c *Client) Predict(ctx context.Context, req *prediction.SeldonMessage, opts ...grpc.CallOption) (*prediction.SeldonMessage, error) {
	return call(ctx, c, func(ctx context.Context, opts []grpc.CallOption) (*prediction.SeldonMessage, error) {
		return c.raw.Predict(ctx, req, opts...)
	}, opts)
}

// SendFeedback calls the SendFeedback RPC.
func (c *Client) SendFeedback(ctx context.Context, fb *prediction.Feedback, opts ...grpc.CallOption) (*prediction.SeldonMessage, error) {
	return call(ctx, c, func(ctx context.Context, opts []grpc.CallOption) (*prediction.SeldonMessage, error) {
		return c.raw.SendFeedback(ctx, fb, opts...)
	}, opts)
}

func call[T any](ctx context.Context, c *Client, fn func(context.Context, []grpc.CallOption) (T, error), opts []grpc.CallOption) (T, error) {
	if c.creds != nil {
		opts = append(opts, grpc.PerRPCCredentials(c.creds))
	}
	return resilience.Retry(ctx, c.retry, func(ctx context.Context) (T, error) {
		return resilience.Do(c.breaker, func() (T, error) {
			ctx, cancel := context.WithTimeout(injectTraceContext(ctx), c.timeout)
			defer cancel()
			out, err := fn(ctx, opts)
			if err != nil {
				var zero T
				return zero, FromGRPCStatus(err)
			}
			return out, nil
		})
	})
}

func retryableError(err error) bool {
	ge := errors.AsGatewayError(err)
	return ge.Recoverable && ge.Code == errors.CodeUnavailable
}
