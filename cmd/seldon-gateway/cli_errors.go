// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/adamjm/seldon-core/pkg/errors"
)

// CLIError wraps a GatewayError with a hint for the operator.
type CLIError struct {
	*errors.GatewayError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(ge *errors.GatewayError, hint string) *CLIError {
	return &CLIError{GatewayError: ge, Hint: hint}
}

// Error returns the message followed by the hint.
func (e *CLIError) Error() string {
	if e.GatewayError == nil {
		return "unknown error"
	}
	msg := e.GatewayError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the gateway error to errors.As.
func (e *CLIError) Unwrap() error {
	return e.GatewayError
}

// PrintError prints the error to stderr.
func (e *CLIError) PrintError(asJSON bool) {
	e.write(os.Stderr, asJSON)
}

func (e *CLIError) write(w io.Writer, asJSON bool) {
	if asJSON {
		writeJSONError(w, string(e.Code), e.Message, e.Hint)
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", e.Code, e.Message)
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// WrapConnectionError wraps a transport failure with a hint naming addr.
func WrapConnectionError(err error, addr string) *CLIError {
	ge := errors.AsGatewayError(err)
	if ge.Code == errors.CodeInternal {
		ge = errors.New(errors.CodeUnavailable, "connection failed", err).WithRecoverable(true)
	}
	ge.WithContext("address", addr)
	switch ge.Code {
	case errors.CodeUnavailable:
		return NewCLIError(ge, fmt.Sprintf("check if the gateway is running at %s", addr))
	case errors.CodeTimeout:
		return NewCLIError(ge, "try increasing timeout with --timeout flag or check gateway health")
	case errors.CodeUnimplemented:
		return NewCLIError(ge, "the served component does not implement this operation on this transport")
	}
	if errors.IsClientError(ge.Code) {
		return NewCLIError(ge, "check the request envelope; exactly one payload key is allowed")
	}
	return NewCLIError(ge, "")
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	ge := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg)
	return NewCLIError(ge, "run 'seldon-gateway help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	ge := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath)
	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(ge, hint)
}

// NewRegistrationError reports a component the gateway refused to serve.
func NewRegistrationError(err error, name string) *CLIError {
	ge := errors.AsGatewayError(err).WithContext("component", name)
	return NewCLIError(ge, "set component.name to one of the built-in components")
}

// PrintSimpleError prints an error that carries no hint.
func PrintSimpleError(err error, asJSON bool) {
	ge := errors.AsGatewayError(err)
	if asJSON {
		writeJSONError(os.Stderr, string(ge.Code), err.Error(), "")
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
}

func writeJSONError(w io.Writer, code, message, hint string) {
	payload, _ := json.Marshal(map[string]any{"error": map[string]string{
		"code":    code,
		"message": message,
		"hint":    hint,
	}})
	fmt.Fprintln(w, string(payload))
}
