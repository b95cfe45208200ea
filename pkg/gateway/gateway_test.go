// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/adamjm/seldon-core/pkg/componenttest"
	"github.com/adamjm/seldon-core/pkg/config"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/message"
	"github.com/adamjm/seldon-core/pkg/prediction"
	"github.com/adamjm/seldon-core/pkg/rest"
	"github.com/adamjm/seldon-core/pkg/rpc"
	"github.com/adamjm/seldon-core/pkg/tftensor"
)

const (
	tensorJSON   = `{"meta":{"puid":"abc"},"data":{"tensor":{"shape":[1,2],"values":[1,2]}}}`
	tftensorJSON = `{"dtype":"DT_INT64","tensorShape":{"dim":[{"size":"2"}]},"int64Val":["1","2"]}`
)

func testConfig(httpAddr, grpcAddr string) *config.Config {
	return &config.Config{
		Log: config.LogConfig{Level: "info", Format: "text"},
		Server: config.ServerConfig{
			HTTPAddr:        httpAddr,
			GRPCAddr:        grpcAddr,
			RequestTimeout:  2 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Component: config.ComponentConfig{
			Name: "identity",
			Tags: map[string]any{"model": "demo"},
			Metrics: []config.MetricConfig{
				{Type: "counter", Key: "calls", Value: 1},
			},
		},
		JSONRPC: config.JSONRPCConfig{Enabled: true, Path: "/jsonrpc"},
		MCP:     config.MCPConfig{Enabled: true, Path: "/mcp", Name: "test"},
	}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return lis
}

func serve(t *testing.T, g *Gateway, httpLis, grpcLis net.Listener) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Serve(ctx, httpLis, grpcLis) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("Serve did not return after cancel")
		}
	})
}

func restRequest(t *testing.T) *prediction.JSONMessage {
	t.Helper()
	m := &prediction.JSONMessage{}
	if err := json.Unmarshal([]byte(tensorJSON), m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func grpcRequest() *prediction.SeldonMessage {
	return &prediction.SeldonMessage{
		Meta: &prediction.Meta{Puid: "abc"},
		Data: &prediction.DefaultData{Tensor: &prediction.Tensor{Shape: []int32{1, 2}, Values: []float64{1, 2}}},
	}
}

func TestSettings(t *testing.T) {
	s := Settings(config.ComponentConfig{
		Version: "v2",
		Metrics: []config.MetricConfig{
			{Type: "gauge", Key: "load", Value: 0.5, Tags: map[string]string{"zone": "a"}},
			{Type: "Timer", Key: "latency", Value: 12},
		},
	})
	if s.Version != "v2" {
		t.Fatalf("expected version v2, got %q", s.Version)
	}
	if len(s.Metrics) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(s.Metrics))
	}
	if s.Metrics[0].Kind != message.MetricGauge || s.Metrics[1].Kind != message.MetricTimer {
		t.Fatalf("unexpected kinds %q %q", s.Metrics[0].Kind, s.Metrics[1].Kind)
	}
	if s.Metrics[0].Tags["zone"] != "a" {
		t.Fatalf("expected tag zone=a, got %v", s.Metrics[0].Tags)
	}
}

func TestNewUnknownComponent(t *testing.T) {
	cfg := testConfig(":0", ":1")
	cfg.Component.Name = "nope"
	if _, err := New(cfg); !errors.HasCode(err, errors.CodeRegistrationFailure) {
		t.Fatalf("expected registration failure, got %v", err)
	}
}

func TestNewMissingContractFile(t *testing.T) {
	cfg := testConfig(":0", ":1")
	cfg.Component.ContractFile = t.TempDir() + "/missing.yaml"
	if _, err := New(cfg); !errors.HasCode(err, errors.CodeRegistrationFailure) {
		t.Fatalf("expected registration failure, got %v", err)
	}
}

func TestSeparatePorts(t *testing.T) {
	g, err := New(testConfig("http", "grpc"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.SharedPort() {
		t.Fatalf("expected separate ports")
	}
	httpLis, grpcLis := listen(t), listen(t)
	serve(t, g, httpLis, grpcLis)

	restResp, err := rest.NewClient("http://"+httpLis.Addr().String()).Predict(context.Background(), restRequest(t))
	if err != nil {
		t.Fatalf("rest Predict: %v", err)
	}
	if restResp.Meta.Puid != "abc" || restResp.Meta.Tags["model"] != "demo" {
		t.Fatalf("unexpected rest meta %+v", restResp.Meta)
	}

	c, conn, err := rpc.Dial(grpcLis.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	grpcResp, err := c.Predict(context.Background(), grpcRequest())
	if err != nil {
		t.Fatalf("grpc Predict: %v", err)
	}
	if grpcResp.Meta.Puid != "abc" || grpcResp.Meta.Tags["model"].GetStringValue() != "demo" {
		t.Fatalf("unexpected grpc meta %+v", grpcResp.Meta)
	}
	if len(grpcResp.Meta.Metrics) != len(restResp.Meta.Metrics) {
		t.Fatalf("metrics differ: grpc %d rest %d", len(grpcResp.Meta.Metrics), len(restResp.Meta.Metrics))
	}
}

func TestSharedPort(t *testing.T) {
	g, err := New(testConfig(":0", ":0"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !g.SharedPort() {
		t.Fatalf("expected shared port")
	}
	lis := listen(t)
	serve(t, g, lis, nil)
	addr := lis.Addr().String()

	if _, err := rest.NewClient("http://"+addr).Predict(context.Background(), restRequest(t)); err != nil {
		t.Fatalf("rest Predict: %v", err)
	}
	c, conn, err := rpc.Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	resp, err := c.Predict(context.Background(), grpcRequest())
	if err != nil {
		t.Fatalf("grpc Predict over shared port: %v", err)
	}
	if resp.Meta.Puid != "abc" {
		t.Fatalf("expected puid abc, got %q", resp.Meta.Puid)
	}
}

func TestMountedBindings(t *testing.T) {
	g, err := New(testConfig("http", "grpc"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(g.Handler())
	defer ts.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"Predict","params":` + tensorJSON + `}`
	resp, err := http.Post(ts.URL+"/jsonrpc", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("jsonrpc post: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Result *prediction.JSONMessage `json:"result"`
		Error  any                     `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != nil || out.Result == nil || out.Result.Meta.Puid != "abc" {
		t.Fatalf("unexpected jsonrpc response %+v", out)
	}

	if g.MCP() == nil {
		t.Fatalf("expected MCP server")
	}

	contractResp, err := http.Get(ts.URL + rest.PathContract)
	if err != nil {
		t.Fatalf("get contract: %v", err)
	}
	contractResp.Body.Close()
	if contractResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for contract, got %d", contractResp.StatusCode)
	}
}

func TestDisabledBindings(t *testing.T) {
	cfg := testConfig("http", "grpc")
	cfg.JSONRPC.Enabled = false
	cfg.MCP.Enabled = false
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.MCP() != nil {
		t.Fatalf("expected no MCP server")
	}
	ts := httptest.NewServer(g.Handler())
	defer ts.Close()
	resp, err := http.Post(ts.URL+"/jsonrpc", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestComponentFailureParity(t *testing.T) {
	comp := componenttest.NewScripted().
		WithMetrics(message.Metric{Kind: message.MetricGauge, Key: "load", Value: 1}).
		Fail(stderrors.New("model exploded")).
		Fail(stderrors.New("model exploded"))
	g, err := New(testConfig("http", "grpc"), WithComponent("scripted", comp))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	httpLis, grpcLis := listen(t), listen(t)
	serve(t, g, httpLis, grpcLis)

	_, restErr := rest.NewClient("http://"+httpLis.Addr().String()).Predict(context.Background(), restRequest(t))
	if !errors.HasCode(restErr, errors.CodeComponentFailure) || errors.HTTPStatus(restErr) != http.StatusInternalServerError {
		t.Fatalf("expected rest component failure, got %v", restErr)
	}

	c, conn, err := rpc.Dial(grpcLis.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_, grpcErr := c.Predict(context.Background(), grpcRequest())
	if !errors.HasCode(grpcErr, errors.CodeComponentFailure) {
		t.Fatalf("expected grpc component failure, got %v", grpcErr)
	}
	if comp.CallCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", comp.CallCount())
	}

	resp, err := c.Predict(context.Background(), grpcRequest())
	if err != nil {
		t.Fatalf("Predict after queue drained: %v", err)
	}
	if len(resp.Meta.Metrics) != 1 || resp.Meta.Metrics[0].Key != "load" {
		t.Fatalf("expected scripted metric, got %+v", resp.Meta.Metrics)
	}
	if got := comp.LastCall().Meta.CorrelationID; got != "abc" {
		t.Fatalf("expected puid abc reach the component, got %q", got)
	}
}

func TestTFTensorOverBothTransports(t *testing.T) {
	g, err := New(testConfig("http", "grpc"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	httpLis, grpcLis := listen(t), listen(t)
	serve(t, g, httpLis, grpcLis)

	q := url.Values{"json": {`{"data":{"tftensor":` + tftensorJSON + `}}`}}
	resp, err := http.Get("http://" + httpLis.Addr().String() + rest.PathPredict + "?" + q.Encode())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out prediction.JSONMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data == nil || len(out.Data.TFTensor) == 0 {
		t.Fatalf("expected tftensor in rest response, got %+v", out.Data)
	}
	var got, want map[string]any
	if err := json.Unmarshal(out.Data.TFTensor, &got); err != nil {
		t.Fatalf("unmarshal tftensor: %v", err)
	}
	if err := json.Unmarshal([]byte(tftensorJSON), &want); err != nil {
		t.Fatalf("unmarshal expected: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	raw, err := tftensor.New().FromJSON([]byte(tftensorJSON))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	c, conn, err := rpc.Dial(grpcLis.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	grpcResp, err := c.Predict(context.Background(), &prediction.SeldonMessage{Data: &prediction.DefaultData{TFTensor: raw}})
	if err != nil {
		t.Fatalf("grpc Predict: %v", err)
	}
	if grpcResp.Data == nil || !bytes.Equal(grpcResp.Data.TFTensor, raw) {
		t.Fatalf("expected tftensor echoed over grpc, got %+v", grpcResp.Data)
	}
}

func TestConstantAnswersTFTensorRequest(t *testing.T) {
	cfg := testConfig("http", "grpc")
	cfg.Component.Constant = []float64{0.25, 0.75}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(g.Handler())
	defer ts.Close()

	body := `{"data":{"tftensor":` + tftensorJSON + `}}`
	resp, err := http.Post(ts.URL+rest.PathPredict, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Data struct {
			TFTensor struct {
				Dtype     string    `json:"dtype"`
				DoubleVal []float64 `json:"doubleVal"`
			} `json:"tftensor"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data.TFTensor.Dtype != "DT_DOUBLE" || !reflect.DeepEqual(out.Data.TFTensor.DoubleVal, []float64{0.25, 0.75}) {
		t.Fatalf("unexpected tftensor %+v", out.Data.TFTensor)
	}
}
