// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the seldon-gateway command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/adamjm/seldon-core/pkg/gateway"
)

const (
	defaultGRPCAddr = "localhost:5000"
	defaultHTTPURL  = "http://localhost:9000"
)

type globalFlags struct {
	ConfigArgs []string
	GRPCAddr   string
	HTTPURL    string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(NewInvalidArgumentError("flags", err.Error()))
	}
	if global.Help {
		printUsage()
		return
	}

	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		ensureNoArgs(args)
		err = runServe(ctx, global)
	case "mcp":
		err = runMCPStdio(global, args)
	case "predict":
		err = runPredict(ctx, global, args)
	case "feedback":
		err = runFeedback(ctx, global, args)
	case "version":
		printVersion()
	case "help":
		printUsage()
	default:
		err = NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd))
	}
	if err != nil {
		fatalJSON(err, global.JSON)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{
		GRPCAddr: getenv("SELDON_GRPC_TARGET", defaultGRPCAddr),
		HTTPURL:  getenv("SELDON_HTTP_URL", defaultHTTPURL),
		Timeout:  30 * time.Second,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "-h", "--help":
			flags.Help = true
			return flags, nil, nil
		case "--json":
			flags.JSON = true
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", name)
			}
			value = args[i+1]
			i++
		}
		switch name {
		case "--config", "--set", "--profile":
			flags.ConfigArgs = append(flags.ConfigArgs, name, value)
		case "--grpc":
			flags.GRPCAddr = value
		case "--http":
			flags.HTTPURL = value
		case "--timeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout %q: %w", value, err)
			}
			flags.Timeout = d
		default:
			return flags, nil, fmt.Errorf("unknown flag %s", name)
		}
	}
	return flags, nil, nil
}

// configFlag returns the last value given for name in the config args.
func configFlag(args []string, name string) string {
	value := ""
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == name {
			value = args[i+1]
		}
	}
	return value
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println(`Seldon prediction gateway

Usage:
  seldon-gateway [global flags] [command] [args]

Global flags:
  --config <path>      Path to config.yaml
  --profile <name>     Config profile overlay (config.<name>.yaml)
  --set key=value      Override config (repeatable)
  --http <url>         Gateway HTTP base URL for client commands (default http://localhost:9000)
  --grpc <addr>        Gateway gRPC target for client commands (default localhost:5000)
  --timeout <dur>      Client request timeout (default 30s)
  --json               JSON errors

Commands:
  serve                Serve the configured component (default)
  mcp                  Serve the MCP tools over stdio
  predict  [--transport rest|grpc] [--data <json> | --file <path|->]
  feedback [--transport rest|grpc] [--data <json> | --file <path|->]
  version`)
}

func printVersion() {
	fmt.Printf("seldon-gateway %s\n", gateway.Version)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(NewInvalidArgumentError("args", fmt.Sprintf("unexpected args: %v", args)))
	}
}

func fatal(err error) {
	fatalJSON(err, false)
}

func fatalJSON(err error, json bool) {
	if ce, ok := err.(*CLIError); ok {
		ce.PrintError(json)
	} else {
		PrintSimpleError(err, json)
	}
	os.Exit(1)
}
