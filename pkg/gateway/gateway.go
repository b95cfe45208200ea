// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway assembles a component, its dispatcher and every transport
// binding into one process.
package gateway

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/adamjm/seldon-core/pkg/codec"
	"github.com/adamjm/seldon-core/pkg/component"
	"github.com/adamjm/seldon-core/pkg/component/builtin"
	"github.com/adamjm/seldon-core/pkg/config"
	"github.com/adamjm/seldon-core/pkg/contract"
	"github.com/adamjm/seldon-core/pkg/dispatch"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/jsonrpc"
	"github.com/adamjm/seldon-core/pkg/mcp"
	"github.com/adamjm/seldon-core/pkg/message"
	"github.com/adamjm/seldon-core/pkg/rest"
	"github.com/adamjm/seldon-core/pkg/rpc"
	"github.com/adamjm/seldon-core/pkg/telemetry"
)

const (
	healthInterval  = 10 * time.Second
	defaultShutdown = 10 * time.Second
)

// Version is reported by the MCP server and the CLI. Release builds set it
// with -ldflags.
var Version = "dev"

// Option customizes the gateway wiring.
type Option func(*Gateway)

// WithComponent serves comp instead of the configured built-in.
func WithComponent(name string, comp component.Component) Option {
	return func(g *Gateway) {
		g.name = name
		g.comp = comp
	}
}

// WithObserver replaces the OpenTelemetry request metrics.
func WithObserver(o dispatch.Observer) Option {
	return func(g *Gateway) {
		g.observer = o
	}
}

// Gateway is a running set of bindings around one component.
type Gateway struct {
	cfg      *config.Config
	name     string
	comp     component.Component
	observer dispatch.Observer

	dispatcher *dispatch.Dispatcher
	health     *component.HealthRegistry
	rest       *rest.Server
	rpc        *rpc.Server
	mcp        *mcp.Server
}

// New registers the component and builds every binding. A component that
// cannot be registered fails here, before anything listens.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	g := &Gateway{cfg: cfg}
	for _, opt := range opts {
		opt(g)
	}
	if g.comp == nil {
		comp, err := builtin.New(cfg.Component.Name, Settings(cfg.Component))
		if err != nil {
			return nil, err
		}
		g.name, g.comp = cfg.Component.Name, comp
	}
	if g.observer == nil {
		m, err := telemetry.NewRequestMetrics(nil, g.name)
		if err != nil {
			return nil, errors.New(errors.CodeInternal, "cannot create request metrics", err)
		}
		g.observer = m
	}

	d, err := dispatch.New(g.comp,
		dispatch.WithName(g.name),
		dispatch.WithObserver(g.observer),
		dispatch.WithCodec(codec.Default()),
	)
	if err != nil {
		return nil, err
	}
	g.dispatcher = d

	doc, err := contract.Load(g.comp, cfg.Component.ContractFile)
	if err != nil {
		return nil, err
	}

	g.health = component.NewHealthRegistry()
	g.health.Register(g.name, g.comp)

	g.rest = rest.New(d,
		rest.WithTimeout(cfg.Server.RequestTimeout),
		rest.WithHealth(g.health),
		rest.WithContract(doc),
		rest.WithMaxMultipartMemory(cfg.Server.MaxMultipartMemory),
	)
	if cfg.JSONRPC.Enabled {
		g.rest.Handle(cfg.JSONRPC.Path, jsonrpc.New(d, cfg.Server.RequestTimeout))
	}
	if cfg.MCP.Enabled {
		g.mcp = mcp.NewServer(d, cfg.MCP.Name, Version, cfg.Server.RequestTimeout)
		g.rest.Handle(cfg.MCP.Path, g.mcp.Handler())
	}
	g.rpc = rpc.NewServer(d,
		rpc.WithRequestTimeout(cfg.Server.RequestTimeout),
		rpc.WithAuthToken(cfg.Server.AuthToken),
		rpc.WithReflection(cfg.Server.Reflection),
		rpc.WithHealthRegistry(g.health),
	)

	slog.Default().Info("gateway.component.registered",
		slog.String("component", g.name),
		slog.String("plan", d.Plan().String()),
	)
	return g, nil
}

// Settings converts the component section of the configuration.
func Settings(c config.ComponentConfig) builtin.Settings {
	s := builtin.Settings{
		Version:    c.Version,
		Tags:       c.Tags,
		ClassNames: c.ClassNames,
		Constant:   c.Constant,
		Mode:       c.Mode,
	}
	for _, m := range c.Metrics {
		s.Metrics = append(s.Metrics, message.Metric{
			Kind:  message.MetricKind(strings.ToUpper(m.Type)),
			Key:   m.Key,
			Value: m.Value,
			Tags:  m.Tags,
		})
	}
	return s
}

// Dispatcher returns the dispatcher shared by every binding.
func (g *Gateway) Dispatcher() *dispatch.Dispatcher { return g.dispatcher }

// MCP returns the MCP server, or nil when it is disabled.
func (g *Gateway) MCP() *mcp.Server { return g.mcp }

// SharedPort reports whether HTTP and gRPC are served on one listener.
func (g *Gateway) SharedPort() bool {
	return g.cfg.Server.GRPCAddr == "" || g.cfg.Server.GRPCAddr == g.cfg.Server.HTTPAddr
}

// Handler returns the HTTP handler. In shared-port mode it also routes
// HTTP/2 gRPC requests to the gRPC server.
func (g *Gateway) Handler() http.Handler {
	if !g.SharedPort() {
		return g.rest
	}
	grpcServer := g.rpc.GRPC()
	mixed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor == 2 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc") {
			grpcServer.ServeHTTP(w, r)
			return
		}
		g.rest.ServeHTTP(w, r)
	})
	return h2c.NewHandler(mixed, &http2.Server{})
}

// Run listens on the configured addresses and serves until ctx ends.
func (g *Gateway) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", g.cfg.Server.HTTPAddr)
	if err != nil {
		return errors.New(errors.CodeUnavailable, "cannot listen", err).WithContext("addr", g.cfg.Server.HTTPAddr)
	}
	var grpcLis net.Listener
	if !g.SharedPort() {
		grpcLis, err = net.Listen("tcp", g.cfg.Server.GRPCAddr)
		if err != nil {
			_ = httpLis.Close()
			return errors.New(errors.CodeUnavailable, "cannot listen", err).WithContext("addr", g.cfg.Server.GRPCAddr)
		}
	}
	return g.Serve(ctx, httpLis, grpcLis)
}

// Serve serves on the given listeners until ctx ends, then drains. grpcLis
// is ignored in shared-port mode.
func (g *Gateway) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	httpServer := &http.Server{Handler: g.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 2)

	slog.Default().Info("gateway.http.listening",
		slog.String("addr", httpLis.Addr().String()),
		slog.Bool("shared_grpc", g.SharedPort()),
	)
	go func() {
		if err := httpServer.Serve(httpLis); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if !g.SharedPort() && grpcLis != nil {
		go func() {
			if err := g.rpc.Serve(grpcLis); err != nil {
				errCh <- err
			}
		}()
	}
	go g.watchHealth(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		slog.Default().Error("gateway.serve.failed", slog.String("error", serveErr.Error()))
	}

	grace := g.cfg.Server.ShutdownTimeout
	if grace <= 0 {
		grace = defaultShutdown
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	slog.Default().Info("gateway.shutdown", slog.Duration("timeout", grace))
	if err := httpServer.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	g.rpc.Shutdown(shutdownCtx)
	return serveErr
}

func (g *Gateway) watchHealth(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	g.rpc.RefreshHealth(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.rpc.RefreshHealth(ctx)
		}
	}
}

// ApplyConfig applies the settings that can change without a restart.
func (g *Gateway) ApplyConfig(cfg *config.Config) {
	telemetry.SetLogLevel(cfg.Log.Level)
	slog.Default().Info("gateway.config.applied", slog.String("log_level", cfg.Log.Level))
}
