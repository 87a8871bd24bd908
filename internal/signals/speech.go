package signals

import (
	"encoding/json"
	"strings"
)

// flatTranscriptConfidence is assigned to the synthetic segment built from
// a transcript that has text but no timing information.
const flatTranscriptConfidence = 0.5

type rawTranscription struct {
	Text       string       `json:"text"`
	Transcript string       `json:"transcript"`
	Segments   []rawSegment `json:"segments"`
}

type rawSegment struct {
	Start      *float64 `json:"start"`
	End        *float64 `json:"end"`
	Text       *string  `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// ExtractSpeech parses a transcript payload into timed speech segments.
// It accepts either a segment list (speech-model native format) or a flat
// transcript, which becomes a single segment spanning the whole chunk.
// Segments missing start, end, or text are dropped.
func ExtractSpeech(raw json.RawMessage, duration float64) []SpeechSegment {
	if len(raw) == 0 || duration <= 0 {
		return nil
	}
	var tr rawTranscription
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil
	}

	var out []SpeechSegment
	for _, seg := range tr.Segments {
		if seg.Start == nil || seg.End == nil || seg.Text == nil {
			continue
		}
		text := strings.TrimSpace(*seg.Text)
		if text == "" {
			continue
		}
		start := clamp(*seg.Start, 0, duration)
		end := clamp(*seg.End, 0, duration)
		if end <= start {
			continue
		}
		conf := 0.0
		if seg.Confidence != nil {
			conf = clamp(*seg.Confidence, 0, 1)
		}
		out = append(out, SpeechSegment{Start: start, End: end, Text: text, Confidence: conf})
	}
	if len(out) > 0 {
		return out
	}

	// Flat transcript with no usable timing: one segment covering the chunk.
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		text = strings.TrimSpace(tr.Transcript)
	}
	if text != "" {
		return []SpeechSegment{{
			Start:      0,
			End:        duration,
			Text:       text,
			Confidence: flatTranscriptConfidence,
		}}
	}
	return nil
}
