package highlight

import (
	"testing"

	"github.com/KeyesCode/clipforge/internal/signals"
)

func TestBaseTypeScore(t *testing.T) {
	cases := []struct {
		typ  string
		want float64
	}{
		{TypeSpeech, 0.30},
		{"audio_energy", 0.25},
		{"audio_spectral", 0.25},
		{"vision_scene_change", 0.20},
		{TypeFusion, 0.40},
		{"unknown", 0},
	}
	for _, tc := range cases {
		if got := baseTypeScore(tc.typ); !approx(got, tc.want) {
			t.Errorf("baseTypeScore(%q): expected %v, got %v", tc.typ, tc.want, got)
		}
	}
}

func TestScoreCandidateAdditiveModel(t *testing.T) {
	e := NewEngine(Config{})
	empty := signals.Bundle{}

	s := e.scoreCandidate(Candidate{Type: TypeSpeech, Duration: 20, Intensity: 2, Excitement: 2}, empty)
	// 0.3 base + 0.2 intensity + 0.3 excitement, no shaping, no context.
	if !approx(s.Score, 0.8) {
		t.Errorf("expected score 0.8, got %v", s.Score)
	}
	if !approx(s.Breakdown["base_type_score"], 0.3) ||
		!approx(s.Breakdown["intensity_bonus"], 0.2) ||
		!approx(s.Breakdown["excitement_bonus"], 0.3) {
		t.Errorf("unexpected breakdown: %v", s.Breakdown)
	}
}

func TestScoreCandidateFusionBonuses(t *testing.T) {
	e := NewEngine(Config{})
	c := Candidate{
		Type:        TypeFusion,
		Duration:    20,
		FusionScore: 0.5,
		Modalities:  []string{ModalitySpeech, ModalityAudio},
	}
	s := e.scoreCandidate(c, signals.Bundle{})
	// 0.4 base + 0.15 fusion + 0.1 modalities.
	if !approx(s.Score, 0.65) {
		t.Errorf("expected score 0.65, got %v", s.Score)
	}
	if !approx(s.Breakdown["fusion_bonus"], 0.15) || !approx(s.Breakdown["modality_bonus"], 0.1) {
		t.Errorf("unexpected fusion breakdown: %v", s.Breakdown)
	}
}

func TestScoreCandidateDurationShaping(t *testing.T) {
	e := NewEngine(Config{})
	cases := []struct {
		dur  float64
		want float64
	}{
		{3, 0.09},  // 0.3 * 0.3
		{7, 0.21},  // 0.3 * 0.7
		{20, 0.3},  // unchanged
		{50, 0.24}, // 0.3 * 0.8
	}
	for _, tc := range cases {
		s := e.scoreCandidate(Candidate{Type: TypeSpeech, Duration: tc.dur}, signals.Bundle{})
		if !approx(s.Score, tc.want) {
			t.Errorf("duration %v: expected score %v, got %v", tc.dur, tc.want, s.Score)
		}
		if !approx(s.Breakdown["duration_factor"], durationFactor(tc.dur)) {
			t.Errorf("duration %v: breakdown factor mismatch: %v", tc.dur, s.Breakdown)
		}
	}
}

func TestScoreCandidateContextBonus(t *testing.T) {
	e := NewEngine(Config{})
	sig := signals.Bundle{
		Speech: []signals.SpeechSegment{{Start: 1, End: 3, Text: "clip this moment"}},
		Peaks:  []signals.AudioPeak{{Start: 5, End: 6, Intensity: 0.8, Type: signals.PeakEnergy}},
		Vision: []signals.VisionEvent{{Start: 7, End: 8, Type: signals.VisionMotion, Intensity: 1}},
	}
	c := Candidate{Type: TypeSpeech, StartTime: 0, Duration: 20}

	s := e.scoreCandidate(c, sig)
	// 0.1 speech cue + 0.8*0.05 audio + 1*0.03 vision = 0.17 on top of
	// the 0.3 base.
	if !approx(s.Breakdown["context_bonus"], 0.17) {
		t.Errorf("expected context bonus 0.17, got %v", s.Breakdown["context_bonus"])
	}
	if !approx(s.Score, 0.47) {
		t.Errorf("expected score 0.47, got %v", s.Score)
	}

	// A candidate that overlaps nothing earns no bonus.
	far := e.scoreCandidate(Candidate{Type: TypeSpeech, StartTime: 40, Duration: 20}, sig)
	if !approx(far.Breakdown["context_bonus"], 0) {
		t.Errorf("expected no context bonus, got %v", far.Breakdown["context_bonus"])
	}
}

func TestContextBonusCapped(t *testing.T) {
	e := NewEngine(Config{})
	var speech []signals.SpeechSegment
	for i := 0; i < 5; i++ {
		speech = append(speech, signals.SpeechSegment{
			Start: float64(i), End: float64(i) + 1, Text: "highlight worthy",
		})
	}
	sig := signals.Bundle{Speech: speech}

	bonus := e.contextBonus(Candidate{StartTime: 0, Duration: 20}, sig)
	if !approx(bonus, contextBonusCap) {
		t.Errorf("expected bonus capped at %v, got %v", contextBonusCap, bonus)
	}
}

func TestScoreClampedToOne(t *testing.T) {
	e := NewEngine(Config{})
	s := e.scoreCandidate(Candidate{Type: TypeSpeech, Duration: 20, Intensity: 10}, signals.Bundle{})
	if !approx(s.Score, 1.0) {
		t.Errorf("expected clamped score 1.0, got %v", s.Score)
	}
}

func TestScoreMonotonicInIntensityAndExcitement(t *testing.T) {
	e := NewEngine(Config{})
	empty := signals.Bundle{}
	prev := -1.0
	for _, intensity := range []float64{0, 1, 2, 3} {
		s := e.scoreCandidate(Candidate{Type: TypeSpeech, Duration: 20, Intensity: intensity}, empty)
		if s.Score < prev {
			t.Errorf("score decreased when intensity rose to %v: %v < %v", intensity, s.Score, prev)
		}
		prev = s.Score
	}
	prev = -1.0
	for _, excitement := range []float64{0, 2, 4} {
		s := e.scoreCandidate(Candidate{Type: TypeSpeech, Duration: 20, Excitement: excitement}, empty)
		if s.Score < prev {
			t.Errorf("score decreased when excitement rose to %v: %v < %v", excitement, s.Score, prev)
		}
		prev = s.Score
	}
}

func TestSegmentConfidence(t *testing.T) {
	cases := []struct {
		name string
		cand Candidate
		want float64
	}{
		{"floor", Candidate{Type: TypeSpeech, Duration: 10}, 0.5},
		{"fusion", Candidate{Type: TypeFusion, Duration: 10}, 0.8},
		{"excited speech", Candidate{Type: TypeSpeech, Duration: 10, Excitement: 2}, 0.7},
		{"intense, optimal duration", Candidate{Type: TypeSpeech, Duration: 20, Intensity: 0.9}, 0.7},
		{"everything, clamped", Candidate{Type: TypeFusion, Duration: 20, Intensity: 0.9, Excitement: 2}, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := segmentConfidence(tc.cand); !approx(got, tc.want) {
				t.Errorf("expected confidence %v, got %v", tc.want, got)
			}
		})
	}
}

func TestSegmentReasons(t *testing.T) {
	r := segmentReasons(Candidate{Type: TypeSpeech, Duration: 20, Intensity: 1, Excitement: 2})
	want := []string{
		"Contains high-intensity speech",
		"Excitement keywords detected",
		"High intensity detected",
		"Optimal highlight duration",
	}
	if len(r) != len(want) {
		t.Fatalf("expected %d reasons, got %v", len(want), r)
	}
	for i := range want {
		if r[i] != want[i] {
			t.Errorf("reason %d: expected %q, got %q", i, want[i], r[i])
		}
	}

	r = segmentReasons(Candidate{Type: TypeFusion, Duration: 12, Modalities: []string{ModalitySpeech, ModalityAudio}})
	if len(r) != 1 || r[0] != "Multiple events detected: speech, audio" {
		t.Errorf("unexpected fusion reasons: %v", r)
	}
}
