package highlight

import (
	"math/rand"
	"testing"
)

func scoredAt(start, dur, score float64) Scored {
	return Scored{Candidate: Candidate{StartTime: start, Duration: dur, Type: TypeSpeech}, Score: score}
}

func TestSelectSegmentsKeepsHigherScoreOnContainment(t *testing.T) {
	// The second segment sits fully inside the first and outscores it;
	// only the inner one may survive.
	input := []Scored{
		scoredAt(10, 15, 0.6),
		scoredAt(12, 8, 0.8),
	}
	out := selectSegments(input, 5, 60)
	if len(out) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(out))
	}
	if !approx(out[0].Score, 0.8) {
		t.Errorf("expected winning score 0.8, got %v", out[0].Score)
	}
}

func TestSelectSegmentsShortInsideLongRejected(t *testing.T) {
	// The long window wins on score; the short one is fully covered, so
	// its own overlap fraction (100%) rejects it even though the long
	// segment's fraction is small.
	input := []Scored{
		scoredAt(0, 60, 0.9),
		scoredAt(0, 10, 0.8),
	}
	out := selectSegments(input, 5, 60)
	if len(out) != 1 || !approx(out[0].Duration, 60) {
		t.Fatalf("expected only the long segment, got %+v", out)
	}
}

func TestSelectSegmentsHalfOverlapAllowed(t *testing.T) {
	// Exactly 50% of either duration does not exceed the limit.
	input := []Scored{
		scoredAt(0, 10, 0.9),
		scoredAt(5, 10, 0.8),
	}
	out := selectSegments(input, 5, 60)
	if len(out) != 2 {
		t.Fatalf("expected both segments at exactly half overlap, got %d", len(out))
	}
}

func TestSelectSegmentsFilters(t *testing.T) {
	input := []Scored{
		scoredAt(0, 4, 0.9),     // under min duration
		scoredAt(10, 61, 0.9),   // over max duration
		scoredAt(80, 20, 0.1),   // at the score floor (strictly-greater required)
		scoredAt(120, 20, 0.11), // barely above the floor
	}
	out := selectSegments(input, 5, 60)
	if len(out) != 1 {
		t.Fatalf("expected 1 surviving segment, got %d", len(out))
	}
	if !approx(out[0].StartTime, 120) {
		t.Errorf("expected the 0.11-scored segment, got start=%v", out[0].StartTime)
	}
}

func TestSelectSegmentsOutputSortedByStart(t *testing.T) {
	input := []Scored{
		scoredAt(30, 10, 0.9),
		scoredAt(0, 10, 0.5),
		scoredAt(60, 10, 0.7),
	}
	out := selectSegments(input, 5, 60)
	if len(out) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].StartTime < out[i-1].StartTime {
			t.Errorf("output not sorted by start: %v after %v", out[i].StartTime, out[i-1].StartTime)
		}
	}
}

func TestSelectSegmentsOverlapInvariant(t *testing.T) {
	// Property: whatever the input, no two accepted segments may overlap
	// by more than half of either one's duration.
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(20)
		input := make([]Scored, 0, n)
		for i := 0; i < n; i++ {
			input = append(input, scoredAt(
				rng.Float64()*100,
				5+rng.Float64()*55,
				0.11+rng.Float64()*0.89,
			))
		}
		out := selectSegments(input, 5, 60)
		for i := 0; i < len(out); i++ {
			if out[i].Duration < 5 || out[i].Duration > 60 {
				t.Fatalf("iter %d: duration out of bounds: %v", iter, out[i].Duration)
			}
			if out[i].Score <= 0.1 {
				t.Fatalf("iter %d: score at or under floor: %v", iter, out[i].Score)
			}
			for j := i + 1; j < len(out); j++ {
				ov := overlapDuration(out[i].StartTime, out[i].End(), out[j].StartTime, out[j].End())
				if ov/out[i].Duration > 0.5+1e-9 || ov/out[j].Duration > 0.5+1e-9 {
					t.Fatalf("iter %d: segments [%v,%v] and [%v,%v] overlap beyond 50%%",
						iter, out[i].StartTime, out[i].End(), out[j].StartTime, out[j].End())
				}
			}
		}

		// Selection is idempotent: re-running on its own output changes
		// nothing.
		again := selectSegments(out, 5, 60)
		if len(again) != len(out) {
			t.Fatalf("iter %d: reselection changed segment count %d -> %d", iter, len(out), len(again))
		}
	}
}
