// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/adamjm/seldon-core/pkg/config"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/gateway"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

func TestParseGlobalFlags(t *testing.T) {
	flags, rest, err := parseGlobalFlags([]string{
		"--config", "gw.yaml", "--set=log.level=debug", "--profile", "dev",
		"--http=http://h:1", "--grpc", "g:2", "--timeout", "3s", "--json",
		"predict", "--transport", "grpc",
	})
	if err != nil {
		t.Fatalf("parseGlobalFlags: %v", err)
	}
	wantArgs := []string{"--config", "gw.yaml", "--set", "log.level=debug", "--profile", "dev"}
	if !reflect.DeepEqual(flags.ConfigArgs, wantArgs) {
		t.Fatalf("config args = %v, want %v", flags.ConfigArgs, wantArgs)
	}
	if flags.HTTPURL != "http://h:1" || flags.GRPCAddr != "g:2" || flags.Timeout != 3*time.Second || !flags.JSON {
		t.Fatalf("unexpected flags %+v", flags)
	}
	if !reflect.DeepEqual(rest, []string{"predict", "--transport", "grpc"}) {
		t.Fatalf("unexpected remaining args %v", rest)
	}
	if got := configFlag(flags.ConfigArgs, "--config"); got != "gw.yaml" {
		t.Fatalf("configFlag = %q", got)
	}
}

func TestParseGlobalFlagsErrors(t *testing.T) {
	cases := [][]string{
		{"--config"},
		{"--timeout", "soon"},
		{"--bogus", "x"},
	}
	for _, args := range cases {
		if _, _, err := parseGlobalFlags(args); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestParseRequestFlags(t *testing.T) {
	if _, err := parseRequestFlags("predict", []string{"--transport", "soap", "--data", "{}"}); err == nil {
		t.Fatalf("expected unknown transport error")
	}
	if _, err := parseRequestFlags("predict", nil); err == nil {
		t.Fatalf("expected missing body error")
	}
	if _, err := parseRequestFlags("predict", []string{"--data", "{}", "--file", "x"}); err == nil {
		t.Fatalf("expected exclusive body error")
	}
	rf, err := parseRequestFlags("predict", []string{"--file", "-"})
	if err != nil {
		t.Fatalf("parseRequestFlags: %v", err)
	}
	body, err := rf.body(strings.NewReader(`{"strData":"hi"}`))
	if err != nil || string(body) != `{"strData":"hi"}` {
		t.Fatalf("body = %q, %v", body, err)
	}
}

func TestCLIErrorOutput(t *testing.T) {
	ce := NewInvalidArgumentError("x", "bad")
	var buf bytes.Buffer
	ce.write(&buf, false)
	if !strings.Contains(buf.String(), "Error [INVALID_INPUT]") || !strings.Contains(buf.String(), "Hint:") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
	buf.Reset()
	ce.write(&buf, true)
	if !strings.HasPrefix(buf.String(), `{"error":{"code":"INVALID_INPUT"`) {
		t.Fatalf("unexpected json output %q", buf.String())
	}
}

func TestWrapConnectionError(t *testing.T) {
	ce := WrapConnectionError(errors.New(errors.CodeUnimplemented, "no", nil), "addr")
	if ce.Code != errors.CodeUnimplemented || ce.Hint == "" {
		t.Fatalf("unexpected %+v", ce)
	}
	ce = WrapConnectionError(context.DeadlineExceeded, "addr")
	if ce.Code != errors.CodeUnavailable || !strings.Contains(ce.Hint, "addr") {
		t.Fatalf("unexpected %+v", ce)
	}
}

func startGateway(t *testing.T) globalFlags {
	t.Helper()
	g, err := gateway.New(&config.Config{
		Server:    config.ServerConfig{HTTPAddr: "http", GRPCAddr: "grpc", ShutdownTimeout: time.Second},
		Component: config.ComponentConfig{Name: "identity"},
	})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = g.Serve(ctx, httpLis, grpcLis)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return globalFlags{
		HTTPURL:  "http://" + httpLis.Addr().String(),
		GRPCAddr: grpcLis.Addr().String(),
		Timeout:  5 * time.Second,
	}
}

func TestPredictBothTransports(t *testing.T) {
	global := startGateway(t)
	for _, transport := range []string{transportREST, transportGRPC} {
		t.Run(transport, func(t *testing.T) {
			req := &prediction.JSONMessage{Meta: &prediction.JSONMeta{Puid: "p1"}, StrData: ptr("hello")}
			resp, err := predict(context.Background(), global, requestFlags{transport: transport}, req)
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			if resp.Meta.Puid != "p1" {
				t.Fatalf("expected puid p1, got %q", resp.Meta.Puid)
			}
			if resp.StrData == nil || *resp.StrData != "hello" {
				t.Fatalf("expected strData hello, got %v", resp.StrData)
			}
		})
	}
}

func TestPredictTFTensorBothTransports(t *testing.T) {
	global := startGateway(t)
	tensor := `{"dtype":"DT_INT64","tensorShape":{"dim":[{"size":"2"}]},"int64Val":["1","2"]}`
	for _, transport := range []string{transportREST, transportGRPC} {
		t.Run(transport, func(t *testing.T) {
			req := &prediction.JSONMessage{Data: &prediction.JSONDefaultData{TFTensor: json.RawMessage(tensor)}}
			resp, err := predict(context.Background(), global, requestFlags{transport: transport}, req)
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			if resp.Data == nil {
				t.Fatalf("expected data in response")
			}
			var got, want map[string]any
			if err := json.Unmarshal(resp.Data.TFTensor, &got); err != nil {
				t.Fatalf("unmarshal tftensor %q: %v", resp.Data.TFTensor, err)
			}
			if err := json.Unmarshal([]byte(tensor), &want); err != nil {
				t.Fatalf("unmarshal expected: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("expected %v, got %v", want, got)
			}
		})
	}
}

func TestFeedbackBothTransports(t *testing.T) {
	global := startGateway(t)
	for _, transport := range []string{transportREST, transportGRPC} {
		t.Run(transport, func(t *testing.T) {
			fb := &prediction.JSONFeedback{
				Request:  &prediction.JSONMessage{StrData: ptr("in")},
				Response: &prediction.JSONMessage{StrData: ptr("out")},
				Reward:   1,
			}
			if _, err := feedback(context.Background(), global, requestFlags{transport: transport}, fb); err != nil {
				t.Fatalf("feedback: %v", err)
			}
		})
	}
}

func TestPredictUnreachable(t *testing.T) {
	global := globalFlags{HTTPURL: "http://127.0.0.1:1", Timeout: time.Second}
	req := &prediction.JSONMessage{StrData: ptr("x")}
	_, err := predict(context.Background(), global, requestFlags{transport: transportREST}, req)
	ce, ok := err.(*CLIError)
	if !ok || ce.Code != errors.CodeUnavailable {
		t.Fatalf("expected unavailable CLI error, got %v", err)
	}
}

func ptr(s string) *string { return &s }
