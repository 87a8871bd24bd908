package highlight

import (
	"sort"

	"github.com/KeyesCode/clipforge/internal/signals"
)

// Defaults for the externally configurable parameters.
const (
	DefaultHighlightThreshold = 0.3
	DefaultMinDuration        = 5.0
	DefaultMaxDuration        = 60.0
	DefaultClusterMaxGap      = 10.0
)

// Fallback applied to chunks with no usable signal so they still
// participate in stream-level ranking instead of disappearing.
const (
	BaselineScore      = 0.2
	baselineConfidence = 0.3
)

// Config carries the engine tunables. Zero values fall back to defaults,
// so Config{} is usable as-is.
type Config struct {
	HighlightThreshold float64
	MinDuration        float64
	MaxDuration        float64
	ClusterMaxGap      float64
	Extraction         signals.Params
	Keywords           Classifier
}

func (c Config) withDefaults() Config {
	if c.HighlightThreshold <= 0 {
		c.HighlightThreshold = DefaultHighlightThreshold
	}
	if c.MinDuration <= 0 {
		c.MinDuration = DefaultMinDuration
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.ClusterMaxGap <= 0 {
		c.ClusterMaxGap = DefaultClusterMaxGap
	}
	if c.Keywords == nil {
		c.Keywords = DefaultKeywords()
	}
	return c
}

// Engine scores chunks. It holds only read-only configuration and the
// registered generator list, so one Engine may be shared by any number
// of goroutines.
type Engine struct {
	cfg        Config
	generators []Generator
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg.withDefaults()}
	e.generators = []Generator{
		e.speechCandidates,
		e.audioCandidates,
		e.visionCandidates,
		e.fusionCandidates,
	}
	return e
}

// Threshold returns the configured stream-level highlight threshold.
func (e *Engine) Threshold() float64 { return e.cfg.HighlightThreshold }

// MinDuration returns the configured minimum highlight duration.
func (e *Engine) MinDuration() float64 { return e.cfg.MinDuration }

// MaxDuration returns the configured maximum highlight duration.
func (e *Engine) MaxDuration() float64 { return e.cfg.MaxDuration }

// AnalyzeChunk runs extraction, generation, scoring, and overlap
// resolution for one chunk. It never fails: malformed payloads degrade
// to absent signals, and a chunk with no signal at all receives the
// baseline score.
func (e *Engine) AnalyzeChunk(chunk Chunk) ChunkResult {
	sig := signals.Extract(chunk.Transcription, chunk.Vision, chunk.AudioFeatures, chunk.Duration, e.cfg.Extraction)
	counts := SignalCounts{Speech: len(sig.Speech), Audio: len(sig.Peaks), Vision: len(sig.Vision)}

	if sig.Empty() {
		return ChunkResult{
			ChunkID:    chunk.ID,
			Highlights: []Highlight{e.baselineHighlight(chunk)},
			Signals:    counts,
			Baseline:   true,
		}
	}

	var candidates []Candidate
	for _, gen := range e.generators {
		candidates = append(candidates, gen(sig, chunk.Duration)...)
	}
	candidates = normalizeCandidates(candidates, chunk.Duration)

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, e.scoreCandidate(c, sig))
	}

	selected := selectSegments(scored, e.cfg.MinDuration, e.cfg.MaxDuration)
	highlights := make([]Highlight, 0, len(selected))
	for _, s := range selected {
		highlights = append(highlights, buildHighlight(chunk, s, counts, sig.Faces))
	}
	return ChunkResult{ChunkID: chunk.ID, Highlights: highlights, Signals: counts}
}

// Rank concatenates every chunk's highlights, applies the threshold
// uniformly, and sorts descending by score. Ties order by absolute
// start time, then chunk id, so identical input yields identical output.
func (e *Engine) Rank(results []ChunkResult, threshold float64) []Highlight {
	out := []Highlight{}
	for _, res := range results {
		for _, h := range res.Highlights {
			if h.Score >= threshold {
				out = append(out, h)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		as, bs := firstSegmentStart(a), firstSegmentStart(b)
		if as != bs {
			return as < bs
		}
		return a.ChunkID < b.ChunkID
	})
	return out
}

func buildHighlight(chunk Chunk, s Scored, counts SignalCounts, faces signals.FaceSummary) Highlight {
	meta := map[string]any{
		"type":           s.Type,
		"chunk_duration": chunk.Duration,
		"signal_counts":  counts,
	}
	if faces.TotalFaces > 0 {
		meta["face_summary"] = faces
	}
	return Highlight{
		ChunkID:    chunk.ID,
		StreamID:   chunk.StreamID,
		Score:      s.Score,
		Confidence: s.Confidence,
		Breakdown:  s.Breakdown,
		Segments: []Segment{{
			StartTime:         s.StartTime,
			Duration:          s.Duration,
			Confidence:        s.Confidence,
			Reason:            s.Reason,
			AbsoluteStartTime: chunk.StartTime + s.StartTime,
		}},
		Reasons:  s.Reasons,
		Metadata: meta,
	}
}

func (e *Engine) baselineHighlight(chunk Chunk) Highlight {
	dur := clamp(chunk.Duration, 0, e.cfg.MaxDuration)
	return Highlight{
		ChunkID:    chunk.ID,
		StreamID:   chunk.StreamID,
		Score:      BaselineScore,
		Confidence: baselineConfidence,
		Segments: []Segment{{
			StartTime:         0,
			Duration:          dur,
			Confidence:        baselineConfidence,
			Reason:            "No signal data; baseline score applied",
			AbsoluteStartTime: chunk.StartTime,
		}},
		Reasons:  []string{"No usable signal data in chunk"},
		Metadata: map[string]any{"baseline": true, "chunk_duration": chunk.Duration},
	}
}

func firstSegmentStart(h Highlight) float64 {
	if len(h.Segments) == 0 {
		return 0
	}
	return h.Segments[0].AbsoluteStartTime
}
