// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/adamjm/seldon-core/pkg/component/builtin"
	"github.com/adamjm/seldon-core/pkg/dispatch"
	"github.com/adamjm/seldon-core/pkg/message"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

type grpcPredictor struct{}

func (grpcPredictor) PredictGRPC(context.Context, *prediction.SeldonMessage) (*prediction.SeldonMessage, error) {
	return &prediction.SeldonMessage{}, nil
}

func (grpcPredictor) SendFeedback(context.Context, message.Payload, []string, float64, message.Payload) (message.Payload, error) {
	return nil, nil
}

func newServer(t *testing.T, comp any) *Server {
	t.Helper()
	if comp == nil {
		var err error
		comp, err = builtin.New("identity", builtin.Settings{Tags: map[string]any{"mytag": "v"}})
		if err != nil {
			t.Fatalf("builtin.New: %v", err)
		}
	}
	d, err := dispatch.New(comp)
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	return New(d, 0)
}

type response struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func call(t *testing.T, srv *Server, body string) response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/jsonrpc", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestPredict(t *testing.T) {
	srv := newServer(t, nil)
	resp := call(t, srv, `{"jsonrpc":"2.0","id":"1","method":"Predict","params":{"meta":{"puid":"123"},"data":{"ndarray":[[1,2]]}}}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	if resp.ID != "1" {
		t.Fatalf("expected id 1, got %v", resp.ID)
	}
	var msg prediction.JSONMessage
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if msg.Meta.Puid != "123" || msg.Meta.Tags["mytag"] != "v" {
		t.Fatalf("unexpected meta %+v", msg.Meta)
	}
	if !reflect.DeepEqual(msg.Data.NDArray, []any{[]any{1.0, 2.0}}) {
		t.Fatalf("unexpected ndarray %v", msg.Data.NDArray)
	}
}

func TestSendFeedback(t *testing.T) {
	srv := newServer(t, nil)
	resp := call(t, srv, `{"jsonrpc":"2.0","id":2,"method":"SendFeedback","params":{"request":{"data":{"ndarray":[1]}},"reward":1}}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	if len(resp.Result) == 0 {
		t.Fatalf("expected a result")
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		comp   any
		body   string
		code   int
		reason string
	}{
		{"parse", nil, `{"jsonrpc":`, CodeParseError, ""},
		{"version", nil, `{"jsonrpc":"1.0","id":1,"method":"Predict"}`, CodeInvalidRequest, ""},
		{"unknown method", nil, `{"jsonrpc":"2.0","id":1,"method":"Explain","params":{}}`, CodeMethodNotFound, ""},
		{"missing params", nil, `{"jsonrpc":"2.0","id":1,"method":"Predict"}`, CodeInvalidParams, ""},
		{"no payload", nil, `{"jsonrpc":"2.0","id":1,"method":"Predict","params":{}}`, CodeInvalidParams, "MALFORMED_PAYLOAD"},
		{"two payloads", nil, `{"jsonrpc":"2.0","id":1,"method":"Predict","params":{"strData":"a","binData":"YQ=="}}`, CodeInvalidParams, "MALFORMED_PAYLOAD"},
		{"unimplemented", grpcPredictor{}, `{"jsonrpc":"2.0","id":1,"method":"Predict","params":{"strData":"a"}}`, CodeMethodNotFound, "UNIMPLEMENTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, newServer(t, tt.comp), tt.body)
			if resp.Error == nil {
				t.Fatalf("expected error, got result %s", resp.Result)
			}
			if resp.Error.Code != tt.code {
				t.Fatalf("expected code %d, got %d (%s)", tt.code, resp.Error.Code, resp.Error.Message)
			}
			if tt.reason != "" && (resp.Error.Data == nil || resp.Error.Data.Reason != tt.reason) {
				t.Fatalf("expected reason %s, got %+v", tt.reason, resp.Error.Data)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jsonrpc", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
