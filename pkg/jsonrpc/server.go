// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonrpc exposes the prediction API as JSON-RPC 2.0 methods
// Predict and SendFeedback.
package jsonrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/adamjm/seldon-core/pkg/dispatch"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/prediction"
	"github.com/adamjm/seldon-core/pkg/resilience"
)

// Error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Methods.
const (
	MethodPredict      = "Predict"
	MethodSendFeedback = "SendFeedback"
)

// Server is an http.Handler serving JSON-RPC 2.0 over POST.
type Server struct {
	dispatcher *dispatch.Dispatcher
	timeout    time.Duration
}

// New creates the JSON-RPC binding for d. A positive timeout bounds every
// call.
func New(d *dispatch.Dispatcher, timeout time.Duration) *Server {
	return &Server{dispatcher: d, timeout: timeout}
}

// ServeHTTP handles JSON-RPC 2.0 requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, rpcError{Code: CodeParseError, Message: "invalid json"})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeError(w, req.ID, rpcError{Code: CodeInvalidRequest, Message: "invalid request"})
		return
	}
	switch req.Method {
	case MethodPredict:
		s.handlePredict(w, r, req)
	case MethodSendFeedback:
		s.handleFeedback(w, r, req)
	default:
		writeError(w, req.ID, rpcError{Code: CodeMethodNotFound, Message: "method not found"})
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	payload := &prediction.JSONMessage{}
	if err := decodeParams(req.Params, payload); err != nil {
		writeError(w, req.ID, rpcError{Code: CodeInvalidParams, Message: err.Error()})
		return
	}
	resp, err := resilience.Timeout(r.Context(), s.timeout, func(ctx context.Context) (*prediction.JSONMessage, error) {
		return s.dispatcher.PredictREST(ctx, payload)
	})
	if err != nil {
		writeRPCError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resp)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	payload := &prediction.JSONFeedback{}
	if err := decodeParams(req.Params, payload); err != nil {
		writeError(w, req.ID, rpcError{Code: CodeInvalidParams, Message: err.Error()})
		return
	}
	resp, err := resilience.Timeout(r.Context(), s.timeout, func(ctx context.Context) (*prediction.JSONMessage, error) {
		return s.dispatcher.FeedbackREST(ctx, payload)
	})
	if err != nil {
		writeRPCError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resp)
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errors.New(errors.CodeInvalidInput, "params are required", nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.New(errors.CodeMalformedPayload, "invalid params", err)
	}
	return nil
}

func writeResult(w http.ResponseWriter, id any, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeRPCError(w, id, errors.New(errors.CodeInternal, "cannot encode result", err))
		return
	}
	writeJSON(w, rpcResponse{JSONRPC: "2.0", ID: id, Result: json.RawMessage(raw)})
}

// writeRPCError maps gateway errors onto JSON-RPC codes. The gateway code
// travels in error.data.
func writeRPCError(w http.ResponseWriter, id any, err error) {
	ge := errors.AsGatewayError(err)
	code := CodeInternalError
	switch {
	case errors.IsClientError(ge.Code):
		code = CodeInvalidParams
	case ge.Code == errors.CodeUnimplemented:
		code = CodeMethodNotFound
	}
	writeError(w, id, rpcError{
		Code:    code,
		Message: ge.Message,
		Data:    &errorData{Reason: string(ge.Code), Status: ge.StatusCode},
	})
}

func writeError(w http.ResponseWriter, id any, err rpcError) {
	writeJSON(w, rpcResponse{JSONRPC: "2.0", ID: id, Error: &err})
}

func writeJSON(w http.ResponseWriter, payload rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *errorData `json:"data,omitempty"`
}

type errorData struct {
	Reason string `json:"reason"`
	Status int    `json:"status"`
}
