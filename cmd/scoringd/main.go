package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/KeyesCode/clipforge/internal/config"
	"github.com/KeyesCode/clipforge/internal/highlight"
	"github.com/KeyesCode/clipforge/internal/signals"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "scoringd",
		Short:        "Multi-modal highlight scoring service for recorded broadcasts",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.SilenceErrors = true

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the scoring HTTP API and NATS request consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	score := &cobra.Command{
		Use:   "score <batch.json>",
		Short: "Score one batch file and print the ranked result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(args[0])
		},
	}

	root.AddCommand(serve, score)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// engineConfig merges environment settings with the optional tuning
// file. The two cover disjoint parameters: the environment owns the
// operational thresholds, the file owns keyword tables and extraction
// tuning.
func engineConfig(cfg config.Config, sc config.Scoring) highlight.Config {
	kw := highlight.DefaultKeywords()
	if len(sc.Keywords.Intensity) > 0 {
		kw.Intensity = sc.Keywords.Intensity
	}
	if len(sc.Keywords.Excitement) > 0 {
		kw.Excitement = sc.Keywords.Excitement
	}
	if len(sc.Keywords.Superlative) > 0 {
		kw.Superlative = sc.Keywords.Superlative
	}
	if len(sc.Keywords.ContextCue) > 0 {
		kw.ContextCue = sc.Keywords.ContextCue
	}

	return highlight.Config{
		HighlightThreshold: cfg.HighlightThreshold,
		MinDuration:        cfg.MinHighlightDuration,
		MaxDuration:        cfg.MaxHighlightDuration,
		ClusterMaxGap:      sc.ClusterMaxGap,
		Extraction: signals.Params{
			EnergyPeakThreshold:   sc.Extraction.EnergyPeakThreshold,
			VolumePeakThreshold:   sc.Extraction.VolumePeakThreshold,
			SpectralFluxThreshold: sc.Extraction.SpectralFluxThreshold,
			SpectralFluxNorm:      sc.Extraction.SpectralFluxNorm,
			MotionPeakThreshold:   sc.Extraction.MotionPeakThreshold,
		},
		Keywords: kw,
	}
}
