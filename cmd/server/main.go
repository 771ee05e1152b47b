package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldops/portal-sync/internal/api"
	"fieldops/portal-sync/internal/app"
	"fieldops/portal-sync/internal/config"
	"fieldops/portal-sync/internal/jobs"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"
	"fieldops/portal-sync/internal/routes"
	"fieldops/portal-sync/internal/workers"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// @title Portal Sync API
// @version 1.0
// @description Keeps a local mirror of the field-service platform in sync.
// @BasePath /
func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	logging.Info("Portal sync starting up",
		"environment", cfg.App.Env,
		"timestamp", time.Now().Format(time.RFC3339),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("Server exited with error", "error", err)
		_ = logging.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	metricsReg := metrics.NewMetricsRegistry()

	a, err := app.New(ctx, cfg, metricsReg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	// runs left running by a crashed process would otherwise stay running forever
	if n, err := a.Reconciliation.RecoverStaleRuns(ctx); err != nil {
		logging.Warn("Failed to recover stale reconciliation runs", "error", err)
	} else if n > 0 {
		logging.Warn("Marked stale reconciliation runs as failed", "count", n)
	}

	if a.Relay != nil {
		go a.Relay.Run(ctx)
	}

	workers.InitWorkers(ctx, cfg.Webhook, a.Queue, a.Webhooks, metricsReg)

	jobs.InitializeJobs(ctx, cfg.Reconciliation, cfg.Webhook, a.Reconciliation, a.Webhooks)

	deps := a.Dependencies()
	deps.UpSince = time.Now()
	router := routes.RegisterRoutes(cfg, api.NewHandlers(deps), metricsReg, promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Server starting", "port", cfg.Server.Port, "environment", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
