package highlight

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/KeyesCode/clipforge/internal/signals"
)

// Generator proposes candidate windows from one chunk's extracted
// signals. Generators are pure and independent; their outputs are
// concatenated before scoring, so a new modality can be added by
// registering another Generator without touching the scorer or selector.
type Generator func(sig signals.Bundle, duration float64) []Candidate

// Window shaping constants for the per-modality generators.
const (
	speechPrePad  = 5.0
	speechPostPad = 10.0

	// Long utterances are candidates even without keyword hits.
	longUtteranceRunes = 100

	audioBaseDuration  = 15.0
	audioIntensitySpan = 15.0
	audioPreFraction   = 0.3

	sceneWindow   = 20.0
	scenePreRoll  = 3.0
	motionMaxSpan = 25.0
	faceWindow    = 15.0
	facePreRoll   = 2.0
	genericWindow = 20.0
)

// speechCandidates emits one candidate per speech segment that shows
// keyword intensity, excitement, or unusually long sustained speech.
func (e *Engine) speechCandidates(sig signals.Bundle, duration float64) []Candidate {
	var out []Candidate
	for _, seg := range sig.Speech {
		intensity := e.cfg.Keywords.IntensityScore(seg.Text)
		excitement := e.cfg.Keywords.ExcitementScore(seg.Text)
		if intensity == 0 && excitement == 0 && utf8.RuneCountInString(seg.Text) <= longUtteranceRunes {
			continue
		}
		start := math.Max(0, seg.Start-speechPrePad)
		end := math.Min(duration, seg.End+speechPostPad)
		out = append(out, Candidate{
			StartTime:  start,
			Duration:   end - start,
			Type:       TypeSpeech,
			Intensity:  float64(intensity),
			Excitement: float64(excitement),
			Text:       truncateRunes(seg.Text, 100),
			Reason:     fmt.Sprintf("High-intensity speech: %q", truncateRunes(seg.Text, 50)),
		})
	}
	return out
}

// audioCandidates widens each detected peak into a window whose length
// scales with intensity, starting slightly before the peak itself.
func (e *Engine) audioCandidates(sig signals.Bundle, duration float64) []Candidate {
	var out []Candidate
	for _, peak := range sig.Peaks {
		base := audioBaseDuration + peak.Intensity*audioIntensitySpan
		start := math.Max(0, peak.PeakTime-base*audioPreFraction)
		out = append(out, Candidate{
			StartTime: start,
			Duration:  math.Min(base, duration-start),
			Type:      audioTypePrefix + peak.Type,
			Intensity: peak.Intensity,
			PeakTime:  peak.PeakTime,
			Reason:    fmt.Sprintf("Audio %s detected (intensity: %.2f)", peak.Type, peak.Intensity),
		})
	}
	return out
}

// visionCandidates shapes a window per vision event; the width depends
// on the event type.
func (e *Engine) visionCandidates(sig signals.Bundle, duration float64) []Candidate {
	var out []Candidate
	for _, ev := range sig.Vision {
		var start, dur float64
		switch ev.Type {
		case signals.VisionSceneChange:
			start = math.Max(0, ev.Start-scenePreRoll)
			dur = math.Min(sceneWindow, duration-start)
		case signals.VisionMotion:
			start = ev.Start
			dur = math.Min(motionMaxSpan, ev.End-ev.Start)
		case signals.VisionFaceDetected:
			start = math.Max(0, ev.Start-facePreRoll)
			dur = math.Min(faceWindow, duration-start)
		default:
			start = ev.Start
			dur = math.Min(genericWindow, ev.End-ev.Start)
		}
		out = append(out, Candidate{
			StartTime: start,
			Duration:  dur,
			Type:      visionTypePrefix + ev.Type,
			Intensity: ev.Intensity,
			Reason:    fmt.Sprintf("Visual event: %s (confidence: %.2f)", ev.Type, ev.Intensity),
		})
	}
	return out
}

// normalizeCandidates applies the uniform clamping policy: every window
// is clipped to [0, duration] and candidates that collapse to a
// non-positive duration are dropped.
func normalizeCandidates(cands []Candidate, duration float64) []Candidate {
	out := cands[:0]
	for _, c := range cands {
		start := math.Max(0, c.StartTime)
		end := math.Min(duration, c.StartTime+c.Duration)
		if end-start <= 0 {
			continue
		}
		c.StartTime = start
		c.Duration = end - start
		out = append(out, c)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
