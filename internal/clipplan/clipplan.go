// Package clipplan turns per-chunk highlight scores into render-ready
// clip plans: each plan is a run of consecutive chunks anchored on a
// high-scoring chunk and expanded while the neighbors hold up.
package clipplan

import (
	"fmt"
	"sort"
	"time"
)

// Options bound clip construction. Zero values fall back to defaults.
type Options struct {
	MaxClips     int
	MinScore     float64
	MinDuration  float64
	MaxDuration  float64
	ChunkSeconds float64
}

const (
	defaultMaxClips     = 10
	defaultMinScore     = 0.3
	defaultMinDuration  = 30.0
	defaultMaxDuration  = 120.0
	defaultChunkSeconds = 30.0

	// Neighbors must reach this fraction of the anchor's score to be
	// pulled into the clip.
	expansionFraction = 0.7
)

func (o Options) withDefaults() Options {
	if o.MaxClips <= 0 {
		o.MaxClips = defaultMaxClips
	}
	if o.MinScore <= 0 {
		o.MinScore = defaultMinScore
	}
	if o.MinDuration <= 0 {
		o.MinDuration = defaultMinDuration
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = defaultMaxDuration
	}
	if o.ChunkSeconds <= 0 {
		o.ChunkSeconds = defaultChunkSeconds
	}
	return o
}

// Plan is one proposed clip spanning consecutive chunks of a stream.
type Plan struct {
	ClipID     string    `json:"clip_id"`
	StreamID   string    `json:"stream_id"`
	StartChunk string    `json:"start_chunk"`
	EndChunk   string    `json:"end_chunk"`
	Chunks     []string  `json:"chunks"`
	Score      float64   `json:"score"`
	Duration   float64   `json:"duration"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Build generates clip plans from per-chunk scores. Chunk ids are
// assumed to sort chronologically. Anchors are visited in descending
// score order (ties by chunk id); a chunk that already joined a clip is
// skipped as an anchor but may still be absorbed by a later expansion.
func Build(streamID string, scores map[string]float64, opts Options) []Plan {
	opts = opts.withDefaults()
	if len(scores) == 0 {
		return nil
	}

	ordered := make([]string, 0, len(scores))
	for id := range scores {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	type anchor struct {
		id    string
		score float64
	}
	var anchors []anchor
	for id, score := range scores {
		if score >= opts.MinScore {
			anchors = append(anchors, anchor{id: id, score: score})
		}
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].score != anchors[j].score {
			return anchors[i].score > anchors[j].score
		}
		return anchors[i].id < anchors[j].id
	})

	used := make(map[string]bool)
	var plans []Plan
	for _, a := range anchors {
		if len(plans) >= opts.MaxClips {
			break
		}
		if used[a.id] {
			continue
		}
		plan, ok := expand(a.id, a.score, ordered, scores, opts)
		if !ok {
			continue
		}
		for _, id := range plan.Chunks {
			used[id] = true
		}
		plan.ClipID = fmt.Sprintf("%s_clip_%d", streamID, len(plans)+1)
		plan.StreamID = streamID
		plans = append(plans, plan)
	}
	return plans
}

// expand grows the clip around the anchor chunk: first backwards, then
// forwards, while neighbors stay above the expansion threshold and the
// clip fits the maximum duration; finally it pads to the minimum.
func expand(center string, score float64, ordered []string, scores map[string]float64, opts Options) (Plan, bool) {
	centerIdx := -1
	for i, id := range ordered {
		if id == center {
			centerIdx = i
			break
		}
	}
	if centerIdx < 0 {
		return Plan{}, false
	}

	duration := opts.ChunkSeconds
	start, end := centerIdx, centerIdx
	threshold := score * expansionFraction

	for start > 0 &&
		duration+opts.ChunkSeconds <= opts.MaxDuration &&
		scores[ordered[start-1]] >= threshold {
		start--
		duration += opts.ChunkSeconds
	}
	for end < len(ordered)-1 &&
		duration+opts.ChunkSeconds <= opts.MaxDuration &&
		scores[ordered[end+1]] >= threshold {
		end++
		duration += opts.ChunkSeconds
	}

	for duration < opts.MinDuration && (start > 0 || end < len(ordered)-1) {
		if start > 0 {
			start--
		} else {
			end++
		}
		duration += opts.ChunkSeconds
	}
	if duration < opts.MinDuration {
		return Plan{}, false
	}

	chunks := make([]string, end-start+1)
	copy(chunks, ordered[start:end+1])
	return Plan{
		StartChunk: ordered[start],
		EndChunk:   ordered[end],
		Chunks:     chunks,
		Score:      score,
		Duration:   duration,
	}, true
}
