package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/evanofslack/dyndns-sync/internal/config"
	"github.com/evanofslack/dyndns-sync/internal/ipresolver"
	"github.com/evanofslack/dyndns-sync/internal/journal"
	"github.com/evanofslack/dyndns-sync/internal/logger"
	"github.com/evanofslack/dyndns-sync/internal/metrics"
	"github.com/evanofslack/dyndns-sync/internal/provider/httpapi"
	"github.com/evanofslack/dyndns-sync/internal/reconcile"
)

const defaultConfigPath = "config.yaml"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	configPath := defaultConfigPath
	if p := os.Getenv("DYNDNS_SYNC_CONFIG"); p != "" {
		configPath = p
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Env)

	// Initialize metrics
	metrics := metrics.New(true)

	// Set up HTTP server for metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: mux,
	}

	// Start http server in background
	go func() {
		slog.Info("Starting metrics server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jrnl, err := journal.New(cfg.JournalPath, metrics)
	if err != nil {
		slog.Error("Failed to initialize journal", "error", err)
		os.Exit(1)
	}
	defer jrnl.Close()

	dns, err := httpapi.New(cfg.APIURL, cfg.APIKey, metrics)
	if err != nil {
		slog.Error("Failed to initialize DNS provider client", "error", err)
		os.Exit(1)
	}

	resolver := ipresolver.New(cfg.PublicIP.Endpoints, metrics)
	engine := reconcile.NewEngine(dns, resolver, jrnl, cfg, metrics)

	slog.Info("Starting dyndns-sync service", "zones", len(cfg.Zones), "intervalMinutes", cfg.UpdateIntervalMinutes)

	interval := time.Duration(cfg.UpdateIntervalMinutes) * time.Minute
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go runSyncLoop(ctx, wg, engine, metrics, interval)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("Shutdown signal received")
	cancel()

	serverShutdownCtx, cancelServer := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelServer()
	if err := server.Shutdown(serverShutdownCtx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}

	// Wait for sync loop to finish
	wg.Wait()
	slog.Info("Service shutdown complete")
}

// runSyncLoop runs one pass per tick. Passes never overlap: there is a
// single goroutine and each pass completes before the next wait begins.
// Cancellation interrupts only the wait between passes, never a pass in
// progress.
func runSyncLoop(ctx context.Context, wg *sync.WaitGroup, engine reconcile.Engine, metrics *metrics.Metrics, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := performPass(engine, metrics); err != nil {
			slog.Error("Reconciliation pass failed", "error", err)
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			slog.Info("Stopping sync loop")
			return
		}
	}
}

func performPass(engine reconcile.Engine, metrics *metrics.Metrics) error {
	slog.Info("Starting reconciliation pass")
	start := time.Now()
	defer func() {
		metrics.SetPassDuration(time.Since(start))
	}()

	// A pass in progress is allowed to complete, so it does not run on
	// the loop's cancellable context.
	results, err := engine.RunPass(context.Background())
	if err != nil {
		metrics.IncPassRun(false)
		return err
	}

	slog.Info("Reconciliation pass completed",
		"added", len(results.Added),
		"removed", len(results.Removed),
		"skipped", results.Skipped,
		"failures", len(results.Failures),
		"failedZones", len(results.FailedZones))
	metrics.IncPassRun(len(results.Failures) == 0 && len(results.FailedZones) == 0)

	return nil
}
