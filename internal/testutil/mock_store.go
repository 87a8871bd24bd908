package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/KeyesCode/clipforge/internal/clipplan"
	"github.com/KeyesCode/clipforge/internal/highlight"
)

// MockStore is a thread-safe in-memory implementation of store.DataStore for testing.
type MockStore struct {
	mu sync.Mutex

	Highlights map[string][]highlight.Highlight // key: stream id
	ClipPlans  map[string][]clipplan.Plan
	Stats      map[string]map[string]any

	InsertHighlightsErr error
	InsertClipPlansErr  error
	UpsertStatsErr      error
	PingErr             error

	InsertHighlightCalls int
	InsertClipPlanCalls  int
	UpsertStatsCalls     int
}

func NewMockStore() *MockStore {
	return &MockStore{
		Highlights: make(map[string][]highlight.Highlight),
		ClipPlans:  make(map[string][]clipplan.Plan),
		Stats:      make(map[string]map[string]any),
	}
}

func (m *MockStore) InsertHighlights(_ context.Context, streamID string, hls []highlight.Highlight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertHighlightCalls++
	if m.InsertHighlightsErr != nil {
		return m.InsertHighlightsErr
	}
	m.Highlights[streamID] = append(m.Highlights[streamID], hls...)
	return nil
}

func (m *MockStore) QueryHighlights(_ context.Context, streamID string, minScore float64, limit int) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]highlight.Highlight, 0, len(m.Highlights[streamID]))
	for _, h := range m.Highlights[streamID] {
		if h.Score >= minScore {
			kept = append(kept, h)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].ChunkID < kept[j].ChunkID
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	var results []map[string]any
	for _, h := range kept {
		results = append(results, map[string]any{
			"chunk_id":   h.ChunkID,
			"stream_id":  streamID,
			"score":      h.Score,
			"confidence": h.Confidence,
			"breakdown":  h.Breakdown,
			"segments":   h.Segments,
			"reasons":    h.Reasons,
			"metadata":   h.Metadata,
		})
	}
	return results, nil
}

func (m *MockStore) InsertClipPlans(_ context.Context, plans []clipplan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertClipPlanCalls++
	if m.InsertClipPlansErr != nil {
		return m.InsertClipPlansErr
	}
	for _, p := range plans {
		m.ClipPlans[p.StreamID] = append(m.ClipPlans[p.StreamID], p)
	}
	return nil
}

func (m *MockStore) QueryClipPlans(_ context.Context, streamID string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []map[string]any
	for _, p := range m.ClipPlans[streamID] {
		results = append(results, map[string]any{
			"clip_id":     p.ClipID,
			"stream_id":   p.StreamID,
			"start_chunk": p.StartChunk,
			"end_chunk":   p.EndChunk,
			"chunks":      p.Chunks,
			"score":       p.Score,
			"duration":    p.Duration,
		})
	}
	return results, nil
}

func (m *MockStore) UpsertStreamStats(_ context.Context, streamID string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertStatsCalls++
	if m.UpsertStatsErr != nil {
		return m.UpsertStatsErr
	}
	stats := m.Stats[streamID]
	if stats == nil {
		stats = map[string]any{"stream_id": streamID}
		m.Stats[streamID] = stats
	}
	for field, value := range updates {
		switch field {
		case "add_chunks":
			stats["chunks_scored"] = asFloat(stats["chunks_scored"]) + asFloat(value)
		case "add_highlights":
			stats["highlights_found"] = asFloat(stats["highlights_found"]) + asFloat(value)
		case "add_clips":
			stats["clips_planned"] = asFloat(stats["clips_planned"]) + asFloat(value)
		case "add_processing_ms":
			stats["total_processing_ms"] = asFloat(stats["total_processing_ms"]) + asFloat(value)
		case "max_score":
			if asFloat(value) > asFloat(stats["max_score"]) {
				stats["max_score"] = asFloat(value)
			}
		default:
			stats[field] = value
		}
	}
	return nil
}

func (m *MockStore) GetStreamStats(_ context.Context, streamID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, ok := m.Stats[streamID]
	if !ok {
		return nil, fmt.Errorf("stats not found for %s", streamID)
	}
	// Return a copy.
	cp := make(map[string]any, len(stats))
	for k, v := range stats {
		cp[k] = v
	}
	return cp, nil
}

func (m *MockStore) Ping(_ context.Context) error {
	return m.PingErr
}

func (m *MockStore) Close() {}

// SeedHighlights stores highlights for a stream without counting as an insert call.
func (m *MockStore) SeedHighlights(streamID string, hls []highlight.Highlight) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Highlights[streamID] = append(m.Highlights[streamID], hls...)
}

// HighlightCount returns total highlights stored for a stream.
func (m *MockStore) HighlightCount(streamID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Highlights[streamID])
}

// GetInsertCalls returns how many times InsertHighlights was called.
func (m *MockStore) GetInsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.InsertHighlightCalls
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
