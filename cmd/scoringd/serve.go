package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KeyesCode/clipforge/internal/api"
	"github.com/KeyesCode/clipforge/internal/config"
	"github.com/KeyesCode/clipforge/internal/events"
	"github.com/KeyesCode/clipforge/internal/highlight"
	"github.com/KeyesCode/clipforge/internal/ingest"
	"github.com/KeyesCode/clipforge/internal/jobs"
	"github.com/KeyesCode/clipforge/internal/store"
	"github.com/KeyesCode/clipforge/internal/webhook"
	"github.com/KeyesCode/clipforge/internal/worker"
)

func runServe() error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel, os.Stdout)

	slog.Info("scoring service starting",
		"port", cfg.Port,
		"nats_url", cfg.NatsURL,
		"workers", cfg.Workers,
		"job_ttl", cfg.JobTTL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Engine configuration, from environment plus tuning file.
	sc, err := config.LoadScoring(cfg.ScoringFilePath)
	if err != nil {
		return err
	}
	engine := highlight.NewEngine(engineConfig(cfg, sc))

	// Step 2: Connect to database. Persistence is optional; without it
	// the service still scores but highlight queries answer 503.
	var ds store.DataStore
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		ds = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, highlight persistence disabled")
	}

	// Step 3: Connect the event publisher to NATS.
	pub, err := events.NewPublisher(cfg.NatsURL)
	if err != nil {
		return fmt.Errorf("connect event publisher: %w", err)
	}
	defer pub.Close()

	// Step 4: Job store with TTL eviction.
	jobStore := jobs.NewStore(cfg.JobTTL)
	jobStore.Start(ctx)

	// Step 5: Worker pool.
	pool := worker.New(worker.Config{
		Engine: engine,
		Jobs:   jobStore,
		Size:   cfg.Workers,
		Store:  ds,
		Bus:    pub,
		Hooks:  webhook.NewSender(cfg.WebhookTimeout),
	})

	// Step 6: Start consuming queued scoring requests.
	consumer, err := ingest.New(cfg.NatsURL, pool)
	if err != nil {
		return fmt.Errorf("connect request consumer: %w", err)
	}
	defer consumer.Close()
	if err := consumer.Start(); err != nil {
		return fmt.Errorf("start request consumer: %w", err)
	}

	// Step 7: Start HTTP API.
	srv := api.NewServer(ds, pool, jobStore, cfg.Port, pub.Connected)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("scoring service ready", "port", cfg.Port)

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("shutting down", "signal", sig)
	cancel()
	slog.Info("scoring service stopped")
	return nil
}
