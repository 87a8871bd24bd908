package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KeyesCode/clipforge/internal/config"
	"github.com/KeyesCode/clipforge/internal/highlight"
	"github.com/KeyesCode/clipforge/internal/jobs"
	"github.com/KeyesCode/clipforge/internal/worker"
)

const scoreTimeout = 5 * time.Minute

// runScore scores a batch file offline: no database, no NATS, result on
// stdout. Useful for tuning keyword tables against recorded chunks.
func runScore(path string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel, os.Stderr) // keep stdout clean for the result

	sc, err := config.LoadScoring(cfg.ScoringFilePath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var req worker.ScoreRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse batch file %s: %w", path, err)
	}
	if req.StreamID == "" {
		req.StreamID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	pool := worker.New(worker.Config{
		Engine: highlight.NewEngine(engineConfig(cfg, sc)),
		Jobs:   jobs.NewStore(cfg.JobTTL),
		Size:   cfg.Workers,
	})

	ctx, cancel := context.WithTimeout(context.Background(), scoreTimeout)
	defer cancel()

	res, err := pool.ScoreBatch(ctx, req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
