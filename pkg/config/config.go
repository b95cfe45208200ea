// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads gateway settings from defaults, a YAML file, an
// optional profile overlay, a .env file, SELDON_* environment variables and
// command-line overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "SELDON_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Component ComponentConfig `koanf:"component"`
	JSONRPC   JSONRPCConfig   `koanf:"jsonrpc"`
	MCP       MCPConfig       `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type ServerConfig struct {
	HTTPAddr string `koanf:"http_addr"`
	// GRPCAddr equal to HTTPAddr serves both protocols on one port.
	GRPCAddr           string        `koanf:"grpc_addr"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
	MaxMultipartMemory int64         `koanf:"max_multipart_memory"`
	AuthToken          string        `koanf:"auth_token"`
	Reflection         bool          `koanf:"reflection"`
	WatchConfig        bool          `koanf:"watch_config"`
}

type TelemetryConfig struct {
	Exporter           string            `koanf:"exporter"` // none, stdout, otlp
	ServiceName        string            `koanf:"service_name"`
	OTLPEndpoint       string            `koanf:"otlp_endpoint"`
	OTLPInsecure       bool              `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int               `koanf:"otlp_timeout_seconds"`
	OTLPHeaders        map[string]string `koanf:"otlp_headers"`
	OTLPUser           string            `koanf:"otlp_user"`
	OTLPToken          string            `koanf:"otlp_token"`
}

// ComponentConfig selects and parameterizes the built-in component.
type ComponentConfig struct {
	Name         string         `koanf:"name"`
	Version      string         `koanf:"version"`
	ContractFile string         `koanf:"contract_file"`
	Tags         map[string]any `koanf:"tags"`
	Metrics      []MetricConfig `koanf:"metrics"`
	ClassNames   []string       `koanf:"class_names"`
	Constant     []float64      `koanf:"constant"`
	Mode         string         `koanf:"mode"`
}

type MetricConfig struct {
	Type  string            `koanf:"type"`
	Key   string            `koanf:"key"`
	Value float64           `koanf:"value"`
	Tags  map[string]string `koanf:"tags"`
}

type JSONRPCConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type MCPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
	Name    string `koanf:"name"`
}

var defaults = map[string]any{
	"log.level":                      "info",
	"log.format":                     "text",
	"server.http_addr":               ":9000",
	"server.grpc_addr":               ":5000",
	"server.request_timeout":         "0s",
	"server.shutdown_timeout":        "10s",
	"server.max_multipart_memory":    32 << 20,
	"telemetry.exporter":             "none",
	"telemetry.service_name":         "seldon-gateway",
	"telemetry.otlp_timeout_seconds": 10,
	"component.name":                 "identity",
	"jsonrpc.path":                   "/jsonrpc",
	"mcp.path":                       "/mcp",
	"mcp.name":                       "seldon-gateway",
}

// Load reads defaults, the file at path (when set) and the environment.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile also overlays <name>.<profile><ext> next to path when
// that file exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI understands --config, --profile (alias --env) and repeated
// --set key=value arguments. Other arguments are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	opts, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(opts.path, opts.profile, sets)
}

func load(path, profile string, sets map[string]any) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if overlay := profileConfigPath(path, profile); overlay != "" {
			if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile %s: %w", overlay, err)
			}
		}
	}

	// .env never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// SELDON_SERVER_HTTP_ADDR -> server.http_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, value := range sets {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var sections = []string{"log", "server", "telemetry", "component", "jsonrpc", "mcp"}

// envKey maps SELDON_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return strings.ReplaceAll(key, "_", ".")
}

// profileConfigPath returns the profile overlay for base, or "" when it
// does not exist.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

type cliOptions struct {
	path    string
	profile string
}

func parseCLIOverrides(args []string) (cliOptions, map[string]any, error) {
	var opts cliOptions
	sets := map[string]any{}
	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(args[i], "=")
		switch name {
		case "--config", "-config", "--profile", "-profile", "--env", "-env", "--set", "-set":
		default:
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("flag %s needs a value", name)
			}
			i++
			value = args[i]
		}
		switch strings.TrimLeft(name, "-") {
		case "config":
			opts.path = value
		case "profile", "env":
			opts.profile = value
		case "set":
			key, raw, ok := strings.Cut(value, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return opts, nil, fmt.Errorf("invalid --set %q, want key=value", value)
			}
			sets[strings.TrimSpace(key)] = parseValue(raw)
		}
	}
	return opts, sets, nil
}

// parseValue decodes JSON objects and arrays; everything else stays a string
// and is converted when unmarshalled.
func parseValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}
