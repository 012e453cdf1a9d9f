package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/shelfscan/api"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/metrics"
	"github.com/use-agent/shelfscan/renderer"
	"github.com/use-agent/shelfscan/search"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("shelfscan starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Browser.Engine,
		"maxSessions", cfg.Browser.MaxSessions,
		"siteBase", cfg.Search.SiteBase,
	)

	// ── 3. Renderer + search service ────────────────────────────────
	// No browser starts here; each search launches its own session.
	engine, err := renderer.New(cfg.Browser, cfg.Search)
	if err != nil {
		slog.Error("failed to initialise renderer", "error", err)
		os.Exit(1)
	}

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New()
	}

	svc, err := search.NewService(engine, cfg, rec)
	if err != nil {
		slog.Error("failed to initialise search service", "error", err)
		os.Exit(1)
	}

	// ── 4. Setup router ─────────────────────────────────────────────
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var metricsHandler http.Handler
	if rec != nil {
		metricsHandler = rec.Handler()
	}
	router := api.NewRouter(ctx, svc, metricsHandler, cfg, time.Now())

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// In-flight searches may be mid-navigation, so allow a full timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Search.NavigationTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("shelfscan stopped", "activeSessions", svc.ActiveSessions())
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
