package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/goleak"

	"cors-proxy/internal/client"
	"cors-proxy/internal/config"
	"cors-proxy/internal/handler"
	"cors-proxy/internal/metrics"
	"cors-proxy/internal/middleware"
	"cors-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("cors-proxy"),
		kong.Description("Reverse proxy that forwards every request to one upstream and adds permissive CORS headers.\n\n"+
			"Start:  cors-proxy --host http://127.0.0.1:8888/\n"+
			"Access: http://127.0.0.1:4000/<your api path>"),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			config.Load,
			newLogger,
			metrics.New,
			newEcho,
			client.NewUpstreamClient,
			service.NewProxyService,
			handler.NewProxyHandler,
		),
		fx.Invoke(checkGoroutineLeaks, handler.RegisterRoutes, startServer, startMetricsServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newEcho(logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.IdleTimeout = 120 * time.Second
	// Read and write timeouts stay disabled: request and response bodies are
	// streamed and bounded by the upstream timeout instead.
	e.Server.ReadTimeout = 0
	e.Server.WriteTimeout = 0

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.MetricsMiddleware(m))

	return e
}

func startServer(lc fx.Lifecycle, e *echo.Echo, uc *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("cors proxy listening",
				"addr", "http://"+addr,
				"upstream", cfg.Upstream.BaseURL,
			)
			logger.Info("example", "url", "http://"+addr+"/your/api/path")
			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			err := e.Shutdown(ctx)
			uc.CloseIdleConnections()
			return err
		},
	})
}

// startMetricsServer serves Prometheus metrics on a separate listener so the
// catch-all proxy route never shadows them.
func startMetricsServer(lc fx.Lifecycle, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) {
	if cfg.Metrics.Listen == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("bind metrics %s: %w", srv.Addr, err)
			}
			logger.Info("serving metrics", "addr", "http://"+srv.Addr+"/metrics")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// checkGoroutineLeaks reports goroutines still running after shutdown.
// It is invoked first: fx runs OnStop hooks in reverse, so this one fires
// after every server has stopped.
func checkGoroutineLeaks(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) {
	if !cfg.Debug.Goleak {
		return
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := goleak.Find(); err != nil {
				logger.Warn("goroutine leak detected", "err", err)
			}
			return nil
		},
	})
}
