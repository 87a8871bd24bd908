package highlight

import (
	"fmt"
	"math"
	"strings"

	"github.com/KeyesCode/clipforge/internal/signals"
)

// Additive scoring weights. The base score comes from the candidate
// type; source bonuses are added on top, the subtotal is shaped by
// duration, and the context bonus lands after shaping.
const (
	baseSpeechScore = 0.30
	baseAudioScore  = 0.25
	baseVisionScore = 0.20
	baseFusionScore = 0.40

	intensityBonusWeight  = 0.10
	excitementBonusWeight = 0.15
	fusionBonusWeight     = 0.30
	modalityBonusWeight   = 0.05

	shortCutoff  = 5.0
	mediumCutoff = 10.0
	longCutoff   = 45.0
	shortFactor  = 0.3
	mediumFactor = 0.7
	longFactor   = 0.8

	contextBonusCap     = 0.3
	contextSpeechBonus  = 0.1
	contextAudioWeight  = 0.05
	contextVisionWeight = 0.03
)

// Confidence shaping.
const (
	confidenceBase       = 0.5
	confidenceFusion     = 0.3
	confidenceExcitement = 0.2
	confidenceIntensity  = 0.1
	confidenceDuration   = 0.1

	highIntensityFloor = 0.7
	optimalDurationMin = 15.0
	optimalDurationMax = 30.0
)

// scoreCandidate applies the additive model to one candidate and records
// every named contribution in the breakdown.
func (e *Engine) scoreCandidate(c Candidate, sig signals.Bundle) Scored {
	base := baseTypeScore(c.Type)
	intensityBonus := c.Intensity * intensityBonusWeight
	excitementBonus := c.Excitement * excitementBonusWeight

	var fusionBonus, modalityBonus float64
	if c.Type == TypeFusion {
		fusionBonus = c.FusionScore * fusionBonusWeight
		modalityBonus = float64(len(c.Modalities)) * modalityBonusWeight
	}

	factor := durationFactor(c.Duration)
	ctx := e.contextBonus(c, sig)
	subtotal := base + intensityBonus + excitementBonus + fusionBonus + modalityBonus
	score := clamp(subtotal*factor+ctx, 0, 1)

	return Scored{
		Candidate:  c,
		Score:      score,
		Confidence: segmentConfidence(c),
		Breakdown: map[string]float64{
			"base_type_score":  base,
			"intensity_bonus":  intensityBonus,
			"excitement_bonus": excitementBonus,
			"fusion_bonus":     fusionBonus,
			"modality_bonus":   modalityBonus,
			"duration_factor":  factor,
			"context_bonus":    ctx,
		},
		Reasons: segmentReasons(c),
	}
}

func baseTypeScore(t string) float64 {
	switch {
	case t == TypeFusion:
		return baseFusionScore
	case strings.HasPrefix(t, "speech"):
		return baseSpeechScore
	case strings.HasPrefix(t, "audio"):
		return baseAudioScore
	case strings.HasPrefix(t, "vision"):
		return baseVisionScore
	}
	return 0
}

// durationFactor penalizes windows too short to carry context and, more
// gently, windows long enough to drag.
func durationFactor(duration float64) float64 {
	switch {
	case duration < shortCutoff:
		return shortFactor
	case duration < mediumCutoff:
		return mediumFactor
	case duration > longCutoff:
		return longFactor
	}
	return 1.0
}

// contextBonus rewards a candidate window for the signal activity it
// overlaps, across all three modalities, capped at contextBonusCap.
func (e *Engine) contextBonus(c Candidate, sig signals.Bundle) float64 {
	start, end := c.StartTime, c.End()
	var bonus float64
	for _, seg := range sig.Speech {
		if overlaps(start, end, seg.Start, seg.End) && e.cfg.Keywords.HasContextCue(seg.Text) {
			bonus += contextSpeechBonus
		}
	}
	for _, peak := range sig.Peaks {
		if overlaps(start, end, peak.Start, peak.End) {
			bonus += peak.Intensity * contextAudioWeight
		}
	}
	for _, ev := range sig.Vision {
		if overlaps(start, end, ev.Start, ev.End) {
			bonus += ev.Intensity * contextVisionWeight
		}
	}
	return math.Min(bonus, contextBonusCap)
}

func segmentConfidence(c Candidate) float64 {
	conf := confidenceBase
	if c.Type == TypeFusion {
		conf += confidenceFusion
	}
	if c.Excitement > 0 {
		conf += confidenceExcitement
	}
	if c.Intensity > highIntensityFloor {
		conf += confidenceIntensity
	}
	if c.Duration >= optimalDurationMin && c.Duration <= optimalDurationMax {
		conf += confidenceDuration
	}
	return math.Min(conf, 1.0)
}

func segmentReasons(c Candidate) []string {
	var reasons []string
	switch {
	case c.Type == TypeFusion:
		reasons = append(reasons, "Multiple events detected: "+strings.Join(c.Modalities, ", "))
	case strings.HasPrefix(c.Type, "speech"):
		reasons = append(reasons, "Contains high-intensity speech")
		if c.Excitement > 0 {
			reasons = append(reasons, "Excitement keywords detected")
		}
	case strings.HasPrefix(c.Type, audioTypePrefix):
		reasons = append(reasons, fmt.Sprintf("Audio %s detected", strings.TrimPrefix(c.Type, audioTypePrefix)))
	case strings.HasPrefix(c.Type, visionTypePrefix):
		reasons = append(reasons, fmt.Sprintf("Visual event: %s", strings.TrimPrefix(c.Type, visionTypePrefix)))
	}
	if c.Intensity > highIntensityFloor {
		reasons = append(reasons, "High intensity detected")
	}
	if c.Duration >= optimalDurationMin && c.Duration <= optimalDurationMax {
		reasons = append(reasons, "Optimal highlight duration")
	}
	return reasons
}

// overlaps reports any non-zero intersection of [aStart,aEnd) and
// [bStart,bEnd).
func overlaps(aStart, aEnd, bStart, bEnd float64) bool {
	return aStart < bEnd && bStart < aEnd
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
