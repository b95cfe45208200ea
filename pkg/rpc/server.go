// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/adamjm/seldon-core/pkg/component"
	"github.com/adamjm/seldon-core/pkg/dispatch"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server hosts the seldon.protos.Model service and the standard health
// service.
type Server struct {
	dispatcher *dispatch.Dispatcher
	timeout    time.Duration
	token      string
	reflection bool
	registry   *component.HealthRegistry
	extra      []grpc.ServerOption

	grpc   *grpc.Server
	health *health.Server
}

// WithRequestTimeout bounds every call.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithAuthToken requires callers to present token as a bearer token.
func WithAuthToken(token string) ServerOption {
	return func(s *Server) {
		s.token = token
	}
}

// WithReflection registers the reflection service.
func WithReflection(enabled bool) ServerOption {
	return func(s *Server) {
		s.reflection = enabled
	}
}

// WithHealthRegistry derives the serving status from r.
func WithHealthRegistry(r *component.HealthRegistry) ServerOption {
	return func(s *Server) {
		s.registry = r
	}
}

// WithGRPCOptions appends raw grpc server options.
func WithGRPCOptions(opts ...grpc.ServerOption) ServerOption {
	return func(s *Server) {
		s.extra = append(s.extra, opts...)
	}
}

// NewServer creates the gRPC binding for d.
func NewServer(d *dispatch.Dispatcher, opts ...ServerOption) *Server {
	s := &Server{dispatcher: d}
	for _, opt := range opts {
		opt(s)
	}
	grpcOpts := append([]grpc.ServerOption{
		prediction.ServerCodec(),
		grpc.ChainUnaryInterceptor(
			UnaryTraceInterceptor(),
			UnaryLoggingInterceptor(),
			UnaryAuthInterceptor(s.token),
			UnaryTimeoutInterceptor(s.timeout),
		),
	}, s.extra...)
	s.grpc = grpc.NewServer(grpcOpts...)
	prediction.RegisterModelServer(s.grpc, NewService(d))

	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(prediction.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if s.reflection {
		reflection.Register(s.grpc)
	}
	return s
}

// GRPC returns the underlying grpc server.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// RefreshHealth updates the health service from the registry.
func (s *Server) RefreshHealth(ctx context.Context) {
	if s.registry == nil {
		return
	}
	_, overall := s.registry.CheckAll(ctx)
	st := healthpb.HealthCheckResponse_SERVING
	if overall == component.HealthUnhealthy {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(prediction.ServiceName, st)
	s.health.SetServingStatus("", st)
}

// Serve accepts connections on lis until Stop or GracefulStop.
func (s *Server) Serve(lis net.Listener) error {
	slog.Default().Info("rpc.server.listening", slog.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Shutdown drains in-flight calls, forcing a stop when ctx ends first.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}
