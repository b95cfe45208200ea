// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/adamjm/seldon-core/pkg/config"
	"github.com/adamjm/seldon-core/pkg/gateway"
	"github.com/adamjm/seldon-core/pkg/telemetry"
)

func runServe(ctx context.Context, global globalFlags) error {
	cfg, watcher, err := loadConfig(global)
	if err != nil {
		return err
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, gateway.Version, telemetryConfig(cfg.Telemetry))
	if err != nil {
		return NewConfigError(err, configFlag(global.ConfigArgs, "--config"))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			slog.Default().Warn("telemetry.shutdown.failed", slog.String("error", err.Error()))
		}
	}()

	g, err := gateway.New(cfg)
	if err != nil {
		return NewRegistrationError(err, cfg.Component.Name)
	}
	if watcher != nil {
		watcher.OnChange(g.ApplyConfig)
		watcher.Start(ctx)
		defer watcher.Stop()
	}
	if err := g.Run(ctx); err != nil {
		return WrapConnectionError(err, cfg.Server.HTTPAddr)
	}
	return nil
}

// runMCPStdio serves the MCP tools on stdin/stdout. Logs go to stderr so
// they never corrupt the protocol stream.
func runMCPStdio(global globalFlags, args []string) error {
	ensureNoArgs(args)
	cfg, _, err := loadConfig(global)
	if err != nil {
		return err
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	cfg.MCP.Enabled = true
	g, err := gateway.New(cfg)
	if err != nil {
		return NewRegistrationError(err, cfg.Component.Name)
	}
	return g.MCP().ServeStdio()
}

// loadConfig loads the configuration. When server.watch_config is set and
// a file was given, it also returns a watcher over that file.
func loadConfig(global globalFlags) (*config.Config, *config.Watcher, error) {
	path := configFlag(global.ConfigArgs, "--config")
	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		return nil, nil, NewConfigError(err, path)
	}
	if !cfg.Server.WatchConfig || path == "" {
		return cfg, nil, nil
	}
	w, err := config.NewWatcher(path,
		config.WithProfile(configFlag(global.ConfigArgs, "--profile")),
		config.WithOverrides(global.ConfigArgs),
	)
	if err != nil {
		return nil, nil, NewConfigError(err, path)
	}
	return w.Config(), w, nil
}

func telemetryConfig(c config.TelemetryConfig) telemetry.Config {
	return telemetry.Config{
		Exporter:           c.Exporter,
		OTLPEndpoint:       c.OTLPEndpoint,
		OTLPInsecure:       c.OTLPInsecure,
		OTLPTimeoutSeconds: c.OTLPTimeoutSeconds,
		OTLPHeaders:        c.OTLPHeaders,
		OTLPUser:           c.OTLPUser,
		OTLPToken:          c.OTLPToken,
	}
}
