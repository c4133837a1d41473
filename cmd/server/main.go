package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/mojiokoshin-live/external/config"
	repositoryimpl "github.com/foxseedlab/mojiokoshin-live/external/repository"
	transcriberimpl "github.com/foxseedlab/mojiokoshin-live/external/transcriber"
	"github.com/foxseedlab/mojiokoshin-live/internal/config"
	"github.com/foxseedlab/mojiokoshin-live/internal/metrics"
	"github.com/foxseedlab/mojiokoshin-live/internal/session"
	"github.com/foxseedlab/mojiokoshin-live/internal/transcriber"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do/v2"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	// Load the model before accepting connections so the first block is not delayed.
	slog.Info("startup: loading speech model")
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}
	registry, err := do.Invoke[*prometheus.Registry](injector)
	if err != nil {
		slog.Error("failed to resolve metrics registry", "error", err)
		os.Exit(1)
	}

	runServer(cfg, injector, manager, registry)
}

func mustLoadConfig() *config.ServerConfig {
	cfg, err := configloader.LoadServer()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.ServerConfig) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.ServerConfig) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	transcriber.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func runServer(cfg *config.ServerConfig, injector do.Injector, manager *session.Manager, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle(cfg.WSPath, manager)
	mux.Handle("/healthz", manager.HealthHandler())
	journal := manager.JournalHandler()
	mux.Handle("/sessions", journal)
	mux.Handle("/sessions/", journal)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("startup: listening", "addr", cfg.ListenAddr, "ws_path", cfg.WSPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	exitCode := 0
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			slog.Error("http server failed", "error", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(ctx); err != nil {
		slog.Error("session shutdown incomplete", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	_ = injector.Shutdown()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
