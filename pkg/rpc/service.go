// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc is the gRPC binding of the prediction API.
package rpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/adamjm/seldon-core/pkg/dispatch"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

// Service implements seldon.protos.Model by delegating to a dispatcher.
type Service struct {
	dispatcher *dispatch.Dispatcher
}

var _ prediction.ModelServer = (*Service)(nil)

// NewService creates the gRPC service for d.
func NewService(d *dispatch.Dispatcher) *Service {
	return &Service{dispatcher: d}
}

func (s *Service) Predict(ctx context.Context, req *prediction.SeldonMessage) (*prediction.SeldonMessage, error) {
	if s.dispatcher == nil {
		return nil, status.Error(codes.Unimplemented, "Predict handler not configured")
	}
	resp, err := s.dispatcher.PredictGRPC(ctx, req)
	if err != nil {
		return nil, ToGRPCStatus(err)
	}
	return resp, nil
}

func (s *Service) SendFeedback(ctx context.Context, req *prediction.Feedback) (*prediction.SeldonMessage, error) {
	if s.dispatcher == nil {
		return nil, status.Error(codes.Unimplemented, "SendFeedback handler not configured")
	}
	resp, err := s.dispatcher.FeedbackGRPC(ctx, req)
	if err != nil {
		return nil, ToGRPCStatus(err)
	}
	return resp, nil
}
