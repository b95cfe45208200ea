// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package prediction

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "seldon.protos.Model"

	PredictMethod      = "/seldon.protos.Model/Predict"
	SendFeedbackMethod = "/seldon.protos.Model/SendFeedback"
)

// ModelServer is the server API for the seldon.protos.Model service.
type ModelServer interface {
	Predict(context.Context, *SeldonMessage) (*SeldonMessage, error)
	SendFeedback(context.Context, *Feedback) (*SeldonMessage, error)
}

// ModelServiceDesc describes the seldon.protos.Model service. Servers using
// it must be created with ServerCodec.
var ModelServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ModelServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "SendFeedback", Handler: sendFeedbackHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "prediction.proto",
}

// RegisterModelServer registers srv on s.
func RegisterModelServer(s grpc.ServiceRegistrar, srv ModelServer) {
	s.RegisterService(&ModelServiceDesc, srv)
}

// frame holds undecoded request bytes so that schema errors surface as
// InvalidArgument instead of the transport's generic unmarshal failure.
type frame struct{ data []byte }

func (f *frame) Marshal() ([]byte, error) { return f.data, nil }

func (f *frame) Unmarshal(b []byte) error {
	f.data = append([]byte(nil), b...)
	return nil
}

func decode(dec func(any) error, into wireMessage) error {
	f := new(frame)
	if err := dec(f); err != nil {
		return err
	}
	if err := into.Unmarshal(f.data); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SeldonMessage)
	if err := decode(dec, in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ModelServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PredictMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ModelServer).Predict(ctx, req.(*SeldonMessage))
	}
	return interceptor(ctx, in, info, handler)
}

func sendFeedbackHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Feedback)
	if err := decode(dec, in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ModelServer).SendFeedback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SendFeedbackMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ModelServer).SendFeedback(ctx, req.(*Feedback))
	}
	return interceptor(ctx, in, info, handler)
}

// ModelClient is the client API for the seldon.protos.Model service.
type ModelClient interface {
	Predict(ctx context.Context, in *SeldonMessage, opts ...grpc.CallOption) (*SeldonMessage, error)
	SendFeedback(ctx context.Context, in *Feedback, opts ...grpc.CallOption) (*SeldonMessage, error)
}

type modelClient struct {
	cc grpc.ClientConnInterface
}

// NewModelClient returns a client that encodes with Codec regardless of the
// connection's default codec.
func NewModelClient(cc grpc.ClientConnInterface) ModelClient {
	return &modelClient{cc: cc}
}

func (c *modelClient) Predict(ctx context.Context, in *SeldonMessage, opts ...grpc.CallOption) (*SeldonMessage, error) {
	out := new(SeldonMessage)
	if err := c.cc.Invoke(ctx, PredictMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *modelClient) SendFeedback(ctx context.Context, in *Feedback, opts ...grpc.CallOption) (*SeldonMessage, error) {
	out := new(SeldonMessage)
	if err := c.cc.Invoke(ctx, SendFeedbackMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}

// wireMessage is implemented by the hand-encoded schema types.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// Codec is a gRPC codec for the prediction schema. Regular protobuf
// messages fall through to the protobuf runtime so that other services,
// such as grpc.health.v1, can share the server.
type Codec struct{}

// ServerCodec returns the server option installing Codec.
func ServerCodec() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case wireMessage:
		return m.Marshal()
	case proto.Message:
		return proto.Marshal(m)
	default:
		return nil, fmt.Errorf("prediction codec: cannot marshal %T", v)
	}
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case wireMessage:
		return m.Unmarshal(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		return fmt.Errorf("prediction codec: cannot unmarshal into %T", v)
	}
}

// Name implements encoding.Codec.
func (Codec) Name() string { return "proto" }
