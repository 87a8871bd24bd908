package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scoring is the optional tuning file for the highlight engine. Every
// field is optional; zero values keep the engine's built-in defaults.
// Operational parameters (port, thresholds, worker count) stay in the
// environment and are never read from this file.
type Scoring struct {
	ClusterMaxGap float64 `yaml:"cluster_max_gap"`

	Extraction ExtractionTuning `yaml:"extraction"`
	Keywords   KeywordTables    `yaml:"keywords"`
}

// ExtractionTuning overrides the signal extraction thresholds.
type ExtractionTuning struct {
	EnergyPeakThreshold   float64 `yaml:"energy_peak_threshold"`
	VolumePeakThreshold   float64 `yaml:"volume_peak_threshold"`
	SpectralFluxThreshold float64 `yaml:"spectral_flux_threshold"`
	SpectralFluxNorm      float64 `yaml:"spectral_flux_norm"`
	MotionPeakThreshold   float64 `yaml:"motion_peak_threshold"`
}

// KeywordTables overrides the built-in speech keyword lists. Only
// non-empty tables replace their defaults, so a file can retune one
// table without restating the others.
type KeywordTables struct {
	Intensity   []string `yaml:"intensity"`
	Excitement  []string `yaml:"excitement"`
	Superlative []string `yaml:"superlative"`
	ContextCue  []string `yaml:"context_cue"`
}

// LoadScoring reads the scoring tuning file. An empty path or a missing
// file yields the zero Scoring; only an unreadable or malformed file is
// an error.
func LoadScoring(path string) (Scoring, error) {
	var s Scoring
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read scoring config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse scoring config %s: %w", path, err)
	}
	return s, nil
}
