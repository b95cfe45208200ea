// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the prediction API as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/adamjm/seldon-core/pkg/dispatch"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/prediction"
	"github.com/adamjm/seldon-core/pkg/resilience"
)

// Tool names.
const (
	ToolPredict      = "predict"
	ToolSendFeedback = "send_feedback"

	argJSON = "json"
)

// Server wraps the mcp-go server with the prediction tools registered.
type Server struct {
	mcpServer  *server.MCPServer
	dispatcher *dispatch.Dispatcher
	timeout    time.Duration
}

// NewServer creates an MCP server for d. A positive timeout bounds every
// tool call.
func NewServer(d *dispatch.Dispatcher, name, version string, timeout time.Duration) *Server {
	s := &Server{
		mcpServer:  server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		dispatcher: d,
		timeout:    timeout,
	}
	s.mcpServer.AddTool(mcp.NewTool(ToolPredict,
		mcp.WithDescription("Run the "+d.Name()+" component on a SeldonMessage and return the response message."),
		mcp.WithString(argJSON, mcp.Required(), mcp.Description("SeldonMessage as JSON")),
	), s.handlePredict)
	s.mcpServer.AddTool(mcp.NewTool(ToolSendFeedback,
		mcp.WithDescription("Send a Feedback message with a reward to the "+d.Name()+" component."),
		mcp.WithString(argJSON, mcp.Required(), mcp.Description("Feedback as JSON")),
	), s.handleFeedback)
	return s
}

// Handler returns the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// ServeStdio serves the tools on standard input and output.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handlePredict(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := &prediction.JSONMessage{}
	if res := decodeArg(req, in); res != nil {
		return res, nil
	}
	out, err := resilience.Timeout(ctx, s.timeout, func(ctx context.Context) (*prediction.JSONMessage, error) {
		return s.dispatcher.PredictREST(ctx, in)
	})
	return result(out, err)
}

func (s *Server) handleFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := &prediction.JSONFeedback{}
	if res := decodeArg(req, in); res != nil {
		return res, nil
	}
	out, err := resilience.Timeout(ctx, s.timeout, func(ctx context.Context) (*prediction.JSONMessage, error) {
		return s.dispatcher.FeedbackREST(ctx, in)
	})
	return result(out, err)
}

// decodeArg returns a tool error result when the json argument is missing
// or invalid.
func decodeArg(req mcp.CallToolRequest, out any) *mcp.CallToolResult {
	raw, err := req.RequireString(argJSON)
	if err != nil {
		return mcp.NewToolResultError(string(errors.CodeInvalidInput) + ": " + err.Error())
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return mcp.NewToolResultError(string(errors.CodeMalformedPayload) + ": " + err.Error())
	}
	return nil
}

func result(out *prediction.JSONMessage, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		ge := errors.AsGatewayError(err)
		return mcp.NewToolResultError(string(ge.Code) + ": " + ge.Message), nil
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(string(errors.CodeInternal) + ": " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
