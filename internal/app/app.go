// Package app wires the geomcp subsystems into a running server: the Maps
// upstream client, the tool registry and dispatcher, the SSE transport
// bridge, health endpoints, and the stdio MCP mode.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order. For testing, inject doubles via functional
// options (WithUpstream, WithMetrics).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/routewise/geomcp/internal/config"
	"github.com/routewise/geomcp/internal/geotools"
	"github.com/routewise/geomcp/internal/health"
	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/mcpserver"
	"github.com/routewise/geomcp/internal/observe"
	"github.com/routewise/geomcp/internal/resilience"
	"github.com/routewise/geomcp/internal/tool"
	"github.com/routewise/geomcp/internal/transport"
)

// serviceName identifies this server in health responses and telemetry.
const serviceName = "geomcp"

// Version is the build version reported by health endpoints and the MCP
// handshake. Overridden at link time for release builds.
var Version = "dev"

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	upstream   geotools.Upstream
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	sessions   *transport.Manager
	bridge     *transport.Bridge
	handler    http.Handler
	httpSrv    *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithUpstream injects a mapping backend instead of creating a Maps client
// from config.
func WithUpstream(u geotools.Upstream) Option {
	return func(a *App) { a.upstream = u }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. cfg must already be
// validated (see [config.Load]).
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initUpstream(); err != nil {
		return nil, fmt.Errorf("app: init upstream: %w", err)
	}
	if err := a.initTools(); err != nil {
		return nil, fmt.Errorf("app: init tools: %w", err)
	}
	if err := a.initTransport(); err != nil {
		return nil, fmt.Errorf("app: init transport: %w", err)
	}
	return a, nil
}

// initUpstream creates the Maps client unless one was injected.
func (a *App) initUpstream() error {
	if a.upstream != nil {
		return nil
	}
	var opts []maps.Option
	if a.cfg.Maps.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(a.cfg.Maps.BaseURL))
	}
	if a.cfg.Maps.RoadsBaseURL != "" {
		opts = append(opts, maps.WithRoadsBaseURL(a.cfg.Maps.RoadsBaseURL))
	}
	if a.cfg.Maps.TimeoutSeconds > 0 {
		opts = append(opts, maps.WithTimeout(time.Duration(a.cfg.Maps.TimeoutSeconds)*time.Second))
	}
	client, err := maps.NewClient(a.cfg.Maps.APIKey, opts...)
	if err != nil {
		return err
	}
	a.upstream = client
	return nil
}

// initTools builds the geotools service, registry, and dispatcher.
func (a *App) initTools() error {
	svc, err := geotools.New(a.upstream, geotoolsConfig(a.cfg), a.metrics)
	if err != nil {
		return err
	}

	a.registry = tool.NewRegistry()
	if err := svc.RegisterAll(a.registry); err != nil {
		return err
	}
	a.dispatcher = tool.NewDispatcher(a.registry, a.metrics)
	slog.Info("tools registered", "count", a.registry.Len())
	return nil
}

// initTransport builds the session manager, bridge, and HTTP handler stack.
// The bridge endpoints are matched before the mux so /sse and /messages are
// never trailing-slash redirected.
func (a *App) initTransport() error {
	a.sessions = transport.NewManager(transport.ManagerConfig{
		QueueSize:   a.cfg.Session.QueueSize,
		IdleTimeout: time.Duration(a.cfg.Session.IdleTimeoutSeconds) * time.Second,
	})
	bridge, err := transport.NewBridge(a.sessions, a.dispatcher, a.metrics)
	if err != nil {
		return err
	}
	a.bridge = bridge
	a.closers = append(a.closers, func() error {
		a.sessions.CloseAll()
		return nil
	})

	mux := http.NewServeMux()
	a.healthHandler().Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.handler = bridge.Wrap(observe.Middleware(a.metrics)(mux))
	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// healthHandler builds the liveness and readiness endpoints.
func (a *App) healthHandler() *health.Handler {
	return health.New(serviceName, Version,
		health.Checker{
			Name: "registry",
			Check: func(context.Context) error {
				if a.registry.Len() == 0 {
					return errors.New("no tools registered")
				}
				return nil
			},
		},
		health.Checker{
			Name: "upstream",
			Check: func(context.Context) error {
				if a.cfg.Maps.APIKey == "" {
					return errors.New("api key not configured")
				}
				return nil
			},
		},
	)
}

// Handler returns the full HTTP handler stack. Used by tests.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves until ctx is cancelled. In SSE mode it runs the HTTP server and
// the idle-session sweeper; in stdio mode it speaks MCP on stdin/stdout.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Server.Transport == config.TransportStdio {
		return a.runStdio(ctx)
	}
	return a.runHTTP(ctx)
}

func (a *App) runHTTP(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.bridge.StartSweeper(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		slog.Info("server listening",
			"addr", a.cfg.Server.ListenAddr,
			"tls", a.cfg.Server.TLS != nil,
		)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	return g.Wait()
}

func (a *App) runStdio(ctx context.Context) error {
	srv, err := mcpserver.New(serviceName, Version, a.registry, a.dispatcher)
	if err != nil {
		return fmt.Errorf("app: mcp server: %w", err)
	}
	slog.Info("serving mcp on stdio", "tools", a.registry.Len())
	return srv.RunStdio(ctx)
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// geotoolsConfig maps the loaded config onto the geotools tunables.
func geotoolsConfig(cfg *config.Config) geotools.Config {
	return geotools.Config{
		DefaultRadiusM: cfg.Tools.DefaultRadiusM,
		MaxRadiusM:     cfg.Tools.MaxRadiusM,
		MaxResults:     cfg.Tools.MaxResults,
		Retry: resilience.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			MinWait:     time.Duration(cfg.Retry.MinWaitSeconds * float64(time.Second)),
			MaxWait:     time.Duration(cfg.Retry.MaxWaitSeconds * float64(time.Second)),
			Jitter:      cfg.Retry.Jitter,
		},
		Safety: geotools.SafetyConfig{
			TrafficWeight:   cfg.Safety.TrafficWeight,
			RoadWeight:      cfg.Safety.RoadWeight,
			TimeWeight:      cfg.Safety.TimeWeight,
			NightStartHour:  cfg.Safety.NightStartHour,
			NightEndHour:    cfg.Safety.NightEndHour,
			MaxSamplePoints: cfg.Safety.MaxSamplePoints,
			HighSpeedKPH:    cfg.Safety.HighSpeedKPH,
		},
	}
}
