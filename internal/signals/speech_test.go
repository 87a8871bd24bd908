package signals

import (
	"encoding/json"
	"testing"
)

func TestExtractSpeechSegments(t *testing.T) {
	raw := json.RawMessage(`{"segments":[
		{"start":5,"end":8,"text":"that was amazing","confidence":0.92},
		{"end":9,"text":"missing start"},
		{"start":12,"end":12,"text":"zero length"},
		{"start":14,"end":16,"text":"   "}
	]}`)

	segs := ExtractSpeech(raw, 30)
	if len(segs) != 1 {
		t.Fatalf("expected 1 valid segment, got %d", len(segs))
	}
	s := segs[0]
	if !approx(s.Start, 5) || !approx(s.End, 8) {
		t.Errorf("expected [5,8], got [%v,%v]", s.Start, s.End)
	}
	if s.Text != "that was amazing" {
		t.Errorf("unexpected text %q", s.Text)
	}
	if !approx(s.Confidence, 0.92) {
		t.Errorf("expected confidence 0.92, got %v", s.Confidence)
	}
}

func TestExtractSpeechClampsToChunkBounds(t *testing.T) {
	raw := json.RawMessage(`{"segments":[{"start":-2,"end":50,"text":"runs over"}]}`)
	segs := ExtractSpeech(raw, 30)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if !approx(segs[0].Start, 0) || !approx(segs[0].End, 30) {
		t.Errorf("expected clamp to [0,30], got [%v,%v]", segs[0].Start, segs[0].End)
	}
}

func TestExtractSpeechFlatTranscript(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"text field", `{"text":"a flat transcript"}`},
		{"transcript fallback", `{"transcript":"a flat transcript"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			segs := ExtractSpeech(json.RawMessage(tc.raw), 42)
			if len(segs) != 1 {
				t.Fatalf("expected 1 synthesized segment, got %d", len(segs))
			}
			s := segs[0]
			if !approx(s.Start, 0) || !approx(s.End, 42) {
				t.Errorf("expected [0,42], got [%v,%v]", s.Start, s.End)
			}
			if !approx(s.Confidence, flatTranscriptConfidence) {
				t.Errorf("expected confidence %v, got %v", flatTranscriptConfidence, s.Confidence)
			}
		})
	}
}

func TestExtractSpeechPrefersSegmentsOverFlatText(t *testing.T) {
	raw := json.RawMessage(`{"text":"whole chunk","segments":[{"start":1,"end":2,"text":"timed"}]}`)
	segs := ExtractSpeech(raw, 30)
	if len(segs) != 1 || segs[0].Text != "timed" {
		t.Fatalf("expected the timed segment to win, got %+v", segs)
	}
}

func TestExtractSpeechDegradesGracefully(t *testing.T) {
	cases := []struct {
		name string
		raw  json.RawMessage
	}{
		{"nil payload", nil},
		{"malformed json", json.RawMessage(`{"segments":`)},
		{"wrong shape", json.RawMessage(`[1,2,3]`)},
		{"empty object", json.RawMessage(`{}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if segs := ExtractSpeech(tc.raw, 30); len(segs) != 0 {
				t.Errorf("expected no segments, got %d", len(segs))
			}
		})
	}
}
