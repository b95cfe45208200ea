// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/prediction"
	"github.com/adamjm/seldon-core/pkg/resilience"
)

const defaultTimeout = 10 * time.Second

// ClientOption customizes the MCP client wrapper behavior.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
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

// Client calls the prediction tools of a gateway over MCP.
type Client struct {
	mcpClient client.MCPClient
	timeout   time.Duration
	retry     resilience.RetryConfig
}

// NewClient wraps an initialized MCP client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	out := &Client{
		mcpClient: c,
		timeout:   defaultTimeout,
		retry:     resilience.DefaultRetryConfig().WithMaxAttempts(1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(out)
		}
	}
	return out
}

// NewHTTPClient connects to the streamable HTTP endpoint at url and runs
// the initialize handshake.
func NewHTTPClient(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	httpClient, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable, "cannot create mcp client", err).WithContext("url", url)
	}
	if err := httpClient.Start(ctx); err != nil {
		return nil, errors.New(errors.CodeUnavailable, "cannot start mcp client", err).WithContext("url", url)
	}
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{Name: "seldon-gateway", Version: "0.1.0"}
	if _, err := httpClient.Initialize(ctx, initRequest); err != nil {
		_ = httpClient.Close()
		return nil, errors.New(errors.CodeUnavailable, "mcp initialize failed", err).WithContext("url", url)
	}
	return NewClient(httpClient, opts...), nil
}

// ListTools retrieves the tools the server offers.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	res, err := c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable, "list tools failed", err)
	}
	return res.Tools, nil
}

// Predict calls the predict tool.
func (c *Client) Predict(ctx context.Context, req *prediction.JSONMessage) (*prediction.JSONMessage, error) {
	return c.call(ctx, ToolPredict, req)
}

// SendFeedback calls the send_feedback tool.
func (c *Client) SendFeedback(ctx context.Context, fb *prediction.JSONFeedback) (*prediction.JSONMessage, error) {
	return c.call(ctx, ToolSendFeedback, fb)
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func (c *Client) call(ctx context.Context, tool string, in any) (*prediction.JSONMessage, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, errors.New(errors.CodeMalformedPayload, "cannot encode request", err)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = map[string]any{argJSON: string(payload)}

	res, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (*mcp.CallToolResult, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		res, err := c.mcpClient.CallTool(ctx, req)
		if err != nil {
			return nil, errors.New(errors.CodeUnavailable, "tool call failed", err).
				WithContext("tool", tool).
				WithRecoverable(true)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	text := resultText(res)
	if res.IsError {
		return nil, toolError(text)
	}
	out := &prediction.JSONMessage{}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return nil, errors.New(errors.CodeMalformedPayload, "invalid tool result", err)
	}
	return out, nil
}

func resultText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// toolError rebuilds a gateway error from "CODE: message" tool output.
func toolError(text string) error {
	code, msg, ok := strings.Cut(text, ": ")
	if !ok {
		return errors.New(errors.CodeInternal, text, nil)
	}
	return errors.New(errors.ErrorCode(code), msg, nil)
}
