// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/adamjm/seldon-core/pkg/errors"
)

// ErrorDomain is the domain of the ErrorInfo detail attached to failures.
const ErrorDomain = "seldon.gateway"

// ToGRPCStatus converts err to a gRPC status error carrying a
// google.rpc.ErrorInfo detail whose reason is the gateway error code.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	ge := errors.AsGatewayError(err)
	st := status.New(mapErrorCodeToGRPC(ge.Code), ge.Message)
	info := &errdetails.ErrorInfo{Reason: string(ge.Code), Domain: ErrorDomain}
	if len(ge.Context) > 0 {
		info.Metadata = make(map[string]string, len(ge.Context))
		for k, v := range ge.Context {
			info.Metadata[k] = fmt.Sprint(v)
		}
	}
	if detailed, derr := st.WithDetails(info); derr == nil {
		st = detailed
	}
	return st.Err()
}

// FromGRPCStatus rebuilds a gateway error from a gRPC status error.
func FromGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errors.New(errors.CodeUnavailable, "rpc failed", err).WithRecoverable(true)
	}
	code := mapGRPCToErrorCode(st.Code())
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == ErrorDomain {
			code = errors.ErrorCode(info.Reason)
		}
	}
	return errors.New(code, st.Message(), err).
		WithContext("grpc_code", st.Code().String()).
		WithRecoverable(retryable(st.Code()))
}

func mapErrorCodeToGRPC(code errors.ErrorCode) codes.Code {
	switch {
	case errors.IsClientError(code):
		return codes.InvalidArgument
	case code == errors.CodeNotFound:
		return codes.NotFound
	case code == errors.CodeUnimplemented:
		return codes.Unimplemented
	case code == errors.CodeTimeout:
		return codes.DeadlineExceeded
	case code == errors.CodeUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func mapGRPCToErrorCode(c codes.Code) errors.ErrorCode {
	switch c {
	case codes.InvalidArgument:
		return errors.CodeInvalidInput
	case codes.NotFound:
		return errors.CodeNotFound
	case codes.Unimplemented:
		return errors.CodeUnimplemented
	case codes.DeadlineExceeded:
		return errors.CodeTimeout
	case codes.Unavailable:
		return errors.CodeUnavailable
	default:
		return errors.CodeInternal
	}
}

func retryable(c codes.Code) bool {
	switch c {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
