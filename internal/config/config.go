package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	NatsURL         string
	DatabaseURL     string
	LogLevel        string
	Workers         int
	JobTTL          time.Duration
	WebhookTimeout  time.Duration
	ScoringFilePath string

	HighlightThreshold   float64
	MinHighlightDuration float64
	MaxHighlightDuration float64
}

func Load() Config {
	return Config{
		Port:            envInt("SCORING_PORT", 8004),
		NatsURL:         envStr("NATS_URL", "nats://localhost:4222"),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		Workers:         envInt("SCORING_WORKERS", 0),
		JobTTL:          time.Duration(envInt("JOB_TTL_MINUTES", 60)) * time.Minute,
		WebhookTimeout:  time.Duration(envInt("WEBHOOK_TIMEOUT_MS", 10000)) * time.Millisecond,
		ScoringFilePath: envStr("SCORING_CONFIG", ""),

		HighlightThreshold:   envFloat("HIGHLIGHT_THRESHOLD", 0.3),
		MinHighlightDuration: envFloat("MIN_HIGHLIGHT_DURATION", 5.0),
		MaxHighlightDuration: envFloat("MAX_HIGHLIGHT_DURATION", 60.0),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
