// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/adamjm/seldon-core/pkg/codec"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/prediction"
	"github.com/adamjm/seldon-core/pkg/rest"
	"github.com/adamjm/seldon-core/pkg/rpc"
)

const (
	transportREST = "rest"
	transportGRPC = "grpc"
)

type requestFlags struct {
	transport string
	data      string
	file      string
	retries   int
}

func parseRequestFlags(name string, args []string) (requestFlags, error) {
	var rf requestFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&rf.transport, "transport", transportREST, "rest or grpc")
	fs.StringVar(&rf.data, "data", "", "JSON envelope")
	fs.StringVar(&rf.file, "file", "", "file holding the JSON envelope, - for stdin")
	fs.IntVar(&rf.retries, "retries", 0, "retries after the first attempt")
	if err := fs.Parse(args); err != nil {
		return rf, err
	}
	if fs.NArg() > 0 {
		return rf, fmt.Errorf("unexpected args: %v", fs.Args())
	}
	if rf.transport != transportREST && rf.transport != transportGRPC {
		return rf, fmt.Errorf("unknown transport %q, want rest or grpc", rf.transport)
	}
	if (rf.data == "") == (rf.file == "") {
		return rf, fmt.Errorf("exactly one of --data or --file is required")
	}
	return rf, nil
}

func (rf requestFlags) body(stdin io.Reader) ([]byte, error) {
	switch {
	case rf.data != "":
		return []byte(rf.data), nil
	case rf.file == "-":
		return io.ReadAll(stdin)
	default:
		return os.ReadFile(rf.file)
	}
}

func runPredict(ctx context.Context, global globalFlags, args []string) error {
	rf, err := parseRequestFlags("predict", args)
	if err != nil {
		return NewInvalidArgumentError("predict", err.Error())
	}
	raw, err := rf.body(os.Stdin)
	if err != nil {
		return NewInvalidArgumentError("file", err.Error())
	}
	req := &prediction.JSONMessage{}
	if err := json.Unmarshal(raw, req); err != nil {
		return NewCLIError(errors.New(errors.CodeMalformedPayload, "invalid json message", err), "pass a JSON envelope such as {\"data\":{\"ndarray\":[[1,2]]}}")
	}
	resp, err := predict(ctx, global, rf, req)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, resp)
}

func runFeedback(ctx context.Context, global globalFlags, args []string) error {
	rf, err := parseRequestFlags("feedback", args)
	if err != nil {
		return NewInvalidArgumentError("feedback", err.Error())
	}
	raw, err := rf.body(os.Stdin)
	if err != nil {
		return NewInvalidArgumentError("file", err.Error())
	}
	fb := &prediction.JSONFeedback{}
	if err := json.Unmarshal(raw, fb); err != nil {
		return NewCLIError(errors.New(errors.CodeMalformedPayload, "invalid feedback", err), "pass a JSON object with request, response, reward and truth")
	}
	resp, err := feedback(ctx, global, rf, fb)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, resp)
}

func predict(ctx context.Context, global globalFlags, rf requestFlags, req *prediction.JSONMessage) (*prediction.JSONMessage, error) {
	if rf.transport == transportREST {
		resp, err := restClient(global, rf).Predict(ctx, req)
		if err != nil {
			return nil, WrapConnectionError(err, global.HTTPURL)
		}
		return resp, nil
	}

	c := codec.Default()
	env, err := c.FromJSON(req)
	if err != nil {
		return nil, NewCLIError(errors.AsGatewayError(err), "check the request envelope; exactly one payload key is allowed")
	}
	msg, err := c.ToProto(env)
	if err != nil {
		return nil, NewCLIError(errors.AsGatewayError(err), "")
	}
	client, closeConn, err := grpcClient(global, rf)
	if err != nil {
		return nil, err
	}
	defer closeConn()
	out, err := client.Predict(ctx, msg)
	if err != nil {
		return nil, WrapConnectionError(err, global.GRPCAddr)
	}
	return protoToJSON(c, out)
}

func feedback(ctx context.Context, global globalFlags, rf requestFlags, fb *prediction.JSONFeedback) (*prediction.JSONMessage, error) {
	if rf.transport == transportREST {
		resp, err := restClient(global, rf).SendFeedback(ctx, fb)
		if err != nil {
			return nil, WrapConnectionError(err, global.HTTPURL)
		}
		return resp, nil
	}

	c := codec.Default()
	canonical, err := c.FeedbackFromJSON(fb)
	if err != nil {
		return nil, NewCLIError(errors.AsGatewayError(err), "check the request, response and truth envelopes")
	}
	msg, err := c.FeedbackToProto(canonical)
	if err != nil {
		return nil, NewCLIError(errors.AsGatewayError(err), "")
	}
	client, closeConn, err := grpcClient(global, rf)
	if err != nil {
		return nil, err
	}
	defer closeConn()
	out, err := client.SendFeedback(ctx, msg)
	if err != nil {
		return nil, WrapConnectionError(err, global.GRPCAddr)
	}
	return protoToJSON(c, out)
}

func restClient(global globalFlags, rf requestFlags) *rest.Client {
	return rest.NewClient(global.HTTPURL,
		rest.WithClientTimeout(global.Timeout),
		rest.WithRetries(rf.retries),
	)
}

func grpcClient(global globalFlags, rf requestFlags) (*rpc.Client, func(), error) {
	opts := []rpc.ClientOption{
		rpc.WithTimeout(global.Timeout),
		rpc.WithRetries(rf.retries),
	}
	if token := os.Getenv("SELDON_AUTH_TOKEN"); token != "" {
		opts = append(opts, rpc.WithCredentials(rpc.BearerToken(token, false)))
	}
	client, conn, err := rpc.Dial(global.GRPCAddr, opts...)
	if err != nil {
		return nil, nil, WrapConnectionError(err, global.GRPCAddr)
	}
	return client, func() { _ = conn.Close() }, nil
}

// protoToJSON renders a gRPC response in the REST form for printing.
func protoToJSON(c *codec.Codec, m *prediction.SeldonMessage) (*prediction.JSONMessage, error) {
	env, err := c.FromProto(m)
	if err != nil {
		return nil, NewCLIError(errors.AsGatewayError(err), "")
	}
	out, err := c.ToJSON(env)
	if err != nil {
		return nil, NewCLIError(errors.AsGatewayError(err), "")
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
