// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/prediction"
	"github.com/adamjm/seldon-core/pkg/resilience"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// Client calls a gateway over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewClient creates a client for the gateway at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		timeout: 10 * time.Second,
		retry:   resilience.DefaultRetryConfig().WithMaxAttempts(1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithClientTimeout sets a per-attempt timeout.
func WithClientTimeout(timeout time.Duration) ClientOption {
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

// Predict posts req to the predictions endpoint.
func (c *Client) Predict(ctx context.Context, req *prediction.JSONMessage) (*prediction.JSONMessage, error) {
	return c.post(ctx, PathPredictions, req)
}

// SendFeedback posts fb to the feedback endpoint.
func (c *Client) SendFeedback(ctx context.Context, fb *prediction.JSONFeedback) (*prediction.JSONMessage, error) {
	return c.post(ctx, PathFeedbackV1, fb)
}

func (c *Client) post(ctx context.Context, path string, body any) (*prediction.JSONMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.New(errors.CodeMalformedPayload, "cannot encode request", err)
	}
	return resilience.Retry(ctx, c.retry, func(ctx context.Context) (*prediction.JSONMessage, error) {
		return resilience.Do(c.breaker, func() (*prediction.JSONMessage, error) {
			ctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return c.do(ctx, path, payload)
		})
	})
}

func (c *Client) do(ctx context.Context, path string, payload []byte) (*prediction.JSONMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "cannot build request", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable, "request failed", err).
			WithContext("url", req.URL.String()).
			WithRecoverable(true)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable, "cannot read response", err).WithRecoverable(true)
	}

	out := &prediction.JSONMessage{}
	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, statusError(resp.StatusCode, nil, string(data))
		}
		return nil, errors.New(errors.CodeMalformedPayload, "invalid response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, out.Status, "")
	}
	return out, nil
}

// statusError rebuilds a gateway error from a failure response.
func statusError(code int, st *prediction.JSONStatus, text string) error {
	errCode := errors.CodeInternal
	msg := fmt.Sprintf("gateway answered %d", code)
	if st != nil {
		if st.Reason != "" {
			errCode = errors.ErrorCode(st.Reason)
		}
		if st.Info != "" {
			msg = st.Info
		}
	} else if text != "" {
		msg = strings.TrimSpace(text)
	}
	ge := errors.New(errCode, msg, nil).WithContext("http_status", code)
	ge.StatusCode = code
	return ge.WithRecoverable(code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout || code == http.StatusBadGateway)
}
