// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9000" || cfg.Server.GRPCAddr != ":5000" {
		t.Errorf("unexpected addresses %q %q", cfg.Server.HTTPAddr, cfg.Server.GRPCAddr)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected 10s shutdown timeout, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxMultipartMemory != 32<<20 {
		t.Errorf("unexpected multipart memory %d", cfg.Server.MaxMultipartMemory)
	}
	if cfg.Component.Name != "identity" || cfg.Telemetry.Exporter != "none" {
		t.Errorf("unexpected defaults %+v %+v", cfg.Component, cfg.Telemetry)
	}
	if cfg.MCP.Path != "/mcp" || cfg.JSONRPC.Path != "/jsonrpc" {
		t.Errorf("unexpected binding paths %q %q", cfg.MCP.Path, cfg.JSONRPC.Path)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
server:
  request_timeout: 2s
component:
  name: checksum
  mode: img
  tags:
    mytag: 1
  class_names: [a, b]
  metrics:
    - type: COUNTER
      key: hits
      value: 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.RequestTimeout != 2*time.Second {
		t.Errorf("expected 2s, got %s", cfg.Server.RequestTimeout)
	}
	c := cfg.Component
	if c.Name != "checksum" || c.Mode != "img" || !reflect.DeepEqual(c.ClassNames, []string{"a", "b"}) {
		t.Errorf("unexpected component %+v", c)
	}
	if len(c.Metrics) != 1 || c.Metrics[0].Type != "COUNTER" || c.Metrics[0].Key != "hits" {
		t.Errorf("unexpected metrics %+v", c.Metrics)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SELDON_SERVER_HTTP_ADDR", ":8080")
	t.Setenv("SELDON_COMPONENT_NAME", "lowlevel")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("expected :8080 from env, got %s", cfg.Server.HTTPAddr)
	}
	if cfg.Component.Name != "lowlevel" {
		t.Errorf("expected lowlevel from env, got %s", cfg.Component.Name)
	}
}

func TestLoadWithProfile(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "config.yaml")
	writeFile(t, basePath, `
component:
  name: identity
  version: v1
log:
  level: info
`)
	writeFile(t, filepath.Join(dir, "config.dev.yaml"), `
component:
  name: checksum
log:
  level: debug
`)

	tests := []struct {
		profile     string
		wantName    string
		wantLevel   string
		wantVersion string
	}{
		{"", "identity", "info", "v1"},
		{"dev", "checksum", "debug", "v1"},
		{"staging", "identity", "info", "v1"},
	}
	for _, tc := range tests {
		t.Run("profile="+tc.profile, func(t *testing.T) {
			cfg, err := LoadWithProfile(basePath, tc.profile)
			if err != nil {
				t.Fatalf("LoadWithProfile failed: %v", err)
			}
			if cfg.Component.Name != tc.wantName || cfg.Log.Level != tc.wantLevel || cfg.Component.Version != tc.wantVersion {
				t.Errorf("got %s/%s/%s", cfg.Component.Name, cfg.Log.Level, cfg.Component.Version)
			}
		})
	}
}

func TestLoadWithCLI(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "config.yaml")
	writeFile(t, basePath, "component:\n  name: identity\n")
	writeFile(t, filepath.Join(dir, "config.dev.yaml"), "component:\n  name: lowlevel\n")
	t.Setenv("SELDON_LOG_LEVEL", "warn")

	cfg, err := LoadWithCLI([]string{
		"serve",
		"--config=" + basePath,
		"--env", "dev",
		"--set", "log.level=debug",
		"--set", "server.request_timeout=3s",
		"--set", "jsonrpc.enabled=true",
		"--set", "component.constant=[1,2]",
		"--set", "telemetry.otlp_headers.x-api-key=secret",
	})
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}
	if cfg.Component.Name != "lowlevel" {
		t.Errorf("expected profile overlay, got %s", cfg.Component.Name)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected --set to beat env, got %s", cfg.Log.Level)
	}
	if cfg.Server.RequestTimeout != 3*time.Second || !cfg.JSONRPC.Enabled {
		t.Errorf("unexpected overrides %+v %+v", cfg.Server, cfg.JSONRPC)
	}
	if !reflect.DeepEqual(cfg.Component.Constant, []float64{1, 2}) {
		t.Errorf("unexpected constant %v", cfg.Component.Constant)
	}
	if cfg.Telemetry.OTLPHeaders["x-api-key"] != "secret" {
		t.Errorf("unexpected headers %v", cfg.Telemetry.OTLPHeaders)
	}
}

func TestParseCLIOverridesErrors(t *testing.T) {
	for _, args := range [][]string{{"--config"}, {"--set"}, {"--set", "invalid"}, {"--set", "=x"}} {
		if _, _, err := parseCLIOverrides(args); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestProfileConfigPath(t *testing.T) {
	dir := t.TempDir()
	devPath := filepath.Join(dir, "config.dev.yaml")
	writeFile(t, devPath, "log: {}\n")
	basePath := filepath.Join(dir, "config.yaml")

	tests := []struct {
		base, profile, want string
	}{
		{basePath, "dev", devPath},
		{basePath, "prod", ""},
		{basePath, "", ""},
		{"", "dev", ""},
	}
	for _, tc := range tests {
		if got := profileConfigPath(tc.base, tc.profile); got != tc.want {
			t.Errorf("profileConfigPath(%q, %q) = %q, want %q", tc.base, tc.profile, got, tc.want)
		}
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SELDON_SERVER_HTTP_ADDR":          "server.http_addr",
		"SELDON_TELEMETRY_OTLP_ENDPOINT":   "telemetry.otlp_endpoint",
		"SELDON_COMPONENT_CONTRACT_FILE":   "component.contract_file",
		"SELDON_SERVER_MAX_MULTIPART_SIZE": "server.max_multipart_size",
		"SELDON_OTHER_THING":               "other.thing",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
