// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("unexpected token")
	ge := New(CodeMalformedPayload, "invalid data", cause)

	if ge.Code != CodeMalformedPayload {
		t.Errorf("expected CodeMalformedPayload, got %v", ge.Code)
	}
	if ge.Message != "invalid data" {
		t.Errorf("expected message 'invalid data', got %q", ge.Message)
	}
	if !errors.Is(ge, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
	if ge.StatusCode != 400 {
		t.Errorf("expected status 400, got %d", ge.StatusCode)
	}
}

func TestWithContext(t *testing.T) {
	ge := New(CodeComponentFailure, "predict failed", nil)
	ge.WithContext("component", "identity").WithContext("transport", "rest")

	if ge.Context["component"] != "identity" {
		t.Errorf("expected context component to be 'identity'")
	}
	if ge.Context["transport"] != "rest" {
		t.Errorf("expected context transport to be 'rest'")
	}
}

func TestWithRecoverable(t *testing.T) {
	ge := New(CodeTimeout, "deadline", nil)
	if ge.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}
	ge.WithRecoverable(true)
	if !ge.Recoverable {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		ge       *GatewayError
		expected string
	}{
		{
			name:     "with cause",
			ge:       New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			ge:       New(CodeInvalidMetrics, "unknown metric type \"BAD\"", nil),
			expected: "[INVALID_METRICS_SCHEMA] unknown metric type \"BAD\"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ge.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAsGatewayError(t *testing.T) {
	if AsGatewayError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}

	ge := New(CodeUnimplemented, "no feedback", nil)
	wrapped := fmt.Errorf("dispatch: %w", ge)
	if got := AsGatewayError(wrapped); got != ge {
		t.Fatalf("expected wrapped gateway error to be found, got %v", got)
	}

	plain := AsGatewayError(errors.New("boom"))
	if plain.Code != CodeInternal {
		t.Fatalf("expected CodeInternal, got %v", plain.Code)
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(CodeRegistrationFailure, "no capability", nil))
	if !HasCode(err, CodeRegistrationFailure) {
		t.Fatalf("expected HasCode to match")
	}
	if HasCode(err, CodeInternal) {
		t.Fatalf("expected HasCode not to match other codes")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Fatalf("expected HasCode false for plain errors")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeInvalidInput, 400},
		{CodeMalformedPayload, 400},
		{CodeUnsupportedEncoding, 400},
		{CodeInvalidMetrics, 400},
		{CodeNotFound, 404},
		{CodeUnimplemented, 501},
		{CodeTimeout, 504},
		{CodeUnavailable, 503},
		{CodeComponentFailure, 500},
		{CodeRegistrationFailure, 500},
		{CodeInternal, 500},
	}
	for _, tt := range tests {
		if got := HTTPStatus(New(tt.code, "x", nil)); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.code, tt.want, got)
		}
	}
	if got := HTTPStatus(nil); got != 200 {
		t.Errorf("expected 200 for nil, got %d", got)
	}
}

func TestMarshalJSON(t *testing.T) {
	ge := New(CodeComponentFailure, "predict failed", errors.New("boom")).
		WithContext("component", "identity")
	data, err := json.Marshal(ge)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["code"] != "COMPONENT_FAILURE" {
		t.Errorf("unexpected code %v", decoded["code"])
	}
	if decoded["error"] != "boom" {
		t.Errorf("unexpected error %v", decoded["error"])
	}
	if decoded["status_code"] != float64(500) {
		t.Errorf("unexpected status_code %v", decoded["status_code"])
	}
}
