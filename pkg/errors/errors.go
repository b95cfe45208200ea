// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the typed errors shared by the codec, the
// metadata aggregator, the dispatcher and the transport handlers.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies gateway errors for transport mapping and monitoring.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the request could not be read at all
	// (missing parameter, unreadable form).
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeMalformedPayload indicates the payload is missing, ambiguous or
	// does not decode into any known variant.
	CodeMalformedPayload ErrorCode = "MALFORMED_PAYLOAD"

	// CodeUnsupportedEncoding indicates a payload encoding the gateway has
	// no codec for.
	CodeUnsupportedEncoding ErrorCode = "UNSUPPORTED_ENCODING"

	// CodeInvalidMetrics indicates a component reported a metric with an
	// unrecognized kind.
	CodeInvalidMetrics ErrorCode = "INVALID_METRICS_SCHEMA"

	// CodeComponentFailure indicates the component raised during invocation.
	CodeComponentFailure ErrorCode = "COMPONENT_FAILURE"

	// CodeRegistrationFailure indicates a component exposes neither a
	// predict nor a feedback capability.
	CodeRegistrationFailure ErrorCode = "REGISTRATION_FAILURE"

	// CodeUnimplemented indicates the component has no strategy for the
	// requested operation on this transport.
	CodeUnimplemented ErrorCode = "UNIMPLEMENTED"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeUnavailable indicates the remote side cannot be reached right now.
	CodeUnavailable ErrorCode = "UNAVAILABLE"
)

// GatewayError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type GatewayError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int // HTTP status for REST responses
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *GatewayError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		StatusCode  int                    `json:"status_code"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
		StatusCode:  e.StatusCode,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new GatewayError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *GatewayError {
	return &GatewayError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...any) *GatewayError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *GatewayError) WithContext(key string, value interface{}) *GatewayError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *GatewayError) WithRecoverable(recoverable bool) *GatewayError {
	e.Recoverable = recoverable
	return e
}

// AsGatewayError returns err as a GatewayError, searching the wrap chain.
// Errors that are not gateway errors are wrapped as CodeInternal.
func AsGatewayError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		return ge
	}
	return New(CodeInternal, "internal error", err)
}

// HasCode reports whether err is a GatewayError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ge *GatewayError
	if !stderrors.As(err, &ge) {
		return false
	}
	return ge.Code == code
}

// IsClientError reports whether the code is caused by the caller's input.
func IsClientError(code ErrorCode) bool {
	switch code {
	case CodeInvalidInput, CodeMalformedPayload, CodeUnsupportedEncoding, CodeInvalidMetrics:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the HTTP status for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return AsGatewayError(err).StatusCode
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch {
	case IsClientError(code):
		return http.StatusBadRequest
	case code == CodeNotFound:
		return http.StatusNotFound
	case code == CodeUnimplemented:
		return http.StatusNotImplemented
	case code == CodeTimeout:
		return http.StatusGatewayTimeout
	case code == CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
