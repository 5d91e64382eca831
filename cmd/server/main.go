// Package main is the entrypoint for the clipfetch API server.
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

	"github.com/clipfetch/clipfetch/internal/api"
	"github.com/clipfetch/clipfetch/internal/api/handler"
	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/extract"
	"github.com/clipfetch/clipfetch/internal/reaper"
	"github.com/clipfetch/clipfetch/internal/scheduler"
	"github.com/clipfetch/clipfetch/internal/store"
	"github.com/clipfetch/clipfetch/internal/transcode"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "download_dir", cfg.Store.DownloadDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Artifact store: owns the downloads dir, recovers surviving artifacts,
	// sweeps staging orphans from any previous crash.
	artifacts, err := store.Open(cfg.Store.DownloadDir, cfg.Store.CapacityBytes)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	redact := []string{cfg.Store.DownloadDir}
	extractor := extract.New(extract.Config{
		BinPath:    cfg.Tools.YtdlpPath,
		Timeout:    cfg.Tools.ExtractTimeout,
		OutputCap:  cfg.Tools.OutputCapBytes,
		RedactDirs: redact,
	})
	transcoder := transcode.New(transcode.Config{
		BinPath:    cfg.Tools.FfmpegPath,
		Timeout:    cfg.Tools.TranscodeTimeout,
		OutputCap:  cfg.Tools.OutputCapBytes,
		RedactDirs: redact,
	})

	sched := scheduler.New(scheduler.Config{
		Workers:            cfg.Pipeline.Workers,
		QueueCapacity:      cfg.Pipeline.QueueCapacity,
		PerHostConcurrency: cfg.Pipeline.PerHostConcurrency,
		PerHostRate:        cfg.Pipeline.PerHostRate,
		PerHostBurst:       cfg.Pipeline.PerHostBurst,
		RetryLimit:         cfg.Pipeline.RetryLimit,
		RetryBaseDelay:     cfg.Pipeline.RetryBaseDelay,
	}, extractor, transcoder, extract.RawFormat, artifacts)

	reap := reaper.New(reaper.Config{
		Interval:          cfg.Retention.ReaperInterval,
		JobRetention:      cfg.Retention.JobRetention,
		UnclaimedGrace:    cfg.Retention.UnclaimedGrace,
		ArtifactTTL:       cfg.Retention.ArtifactTTL,
		StagingStaleAfter: cfg.Tools.ExtractTimeout + cfg.Tools.TranscodeTimeout,
	}, sched, artifacts)
	sched.SetReclaimer(reap)

	sched.Start(ctx)
	go reap.Run(ctx)

	deps := api.Dependencies{
		SubmitHandler: handler.NewSubmitHandler(sched, cfg.Pipeline.MaxAwaitWait),
		StatusHandler: handler.NewStatusHandler(sched),
		StreamHandler: handler.NewStreamHandler(artifacts),
		ProbeHandler:  handler.NewProbeHandler(extractor),
		StatsHandler:  handler.NewStatsHandler(sched, artifacts),
		HealthHandler: handler.NewHealthHandler(),
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // artifact streams can be large
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	sched.Wait()
	slog.Info("server stopped gracefully")
	return nil
}
