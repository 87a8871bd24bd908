package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/KeyesCode/clipforge/internal/clipplan"
	"github.com/KeyesCode/clipforge/internal/events"
	"github.com/KeyesCode/clipforge/internal/highlight"
	"github.com/KeyesCode/clipforge/internal/jobs"
	"github.com/KeyesCode/clipforge/internal/testutil"
	"github.com/KeyesCode/clipforge/internal/webhook"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// recordingBus captures published envelopes for assertions.
type recordingBus struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (b *recordingBus) Publish(_ context.Context, env events.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envs = append(b.envs, env)
	return nil
}

func (b *recordingBus) byType(eventType string) []events.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Envelope
	for _, e := range b.envs {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// speechChunk yields one speech-based highlight scoring 0.5.
func speechChunk(id string) ChunkPayload {
	return ChunkPayload{
		ChunkID: id,
		Data: ChunkData{
			Transcription: json.RawMessage(`{"segments":[{"start":5,"end":8,"text":"that was absolutely amazing!!"}]}`),
			Duration:      30,
		},
	}
}

// silentChunk has no signal data, so it scores the 0.2 baseline.
func silentChunk(id string) ChunkPayload {
	return ChunkPayload{ChunkID: id, Data: ChunkData{Duration: 30}}
}

func newTestPool(ms *testutil.MockStore, bus events.Bus) *Pool {
	return New(Config{
		Engine: highlight.NewEngine(highlight.Config{}),
		Jobs:   jobs.NewStore(time.Minute),
		Size:   2,
		Store:  ms,
		Bus:    bus,
	})
}

func TestScoreBatch_RanksAcrossChunks(t *testing.T) {
	ms := testutil.NewMockStore()
	bus := &recordingBus{}
	p := newTestPool(ms, bus)

	req := ScoreRequest{
		StreamID: "s1",
		Chunks:   []ChunkPayload{speechChunk("a"), silentChunk("b")},
	}

	res, err := p.ScoreBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The baseline 0.2 chunk falls under the default 0.3 threshold.
	if len(res.Highlights) != 1 {
		t.Fatalf("expected 1 ranked highlight, got %d", len(res.Highlights))
	}
	if res.Highlights[0].ChunkID != "a" {
		t.Errorf("expected chunk a first, got %s", res.Highlights[0].ChunkID)
	}

	if !approx(res.ChunkScores["a"], 0.5) {
		t.Errorf("expected chunk a score 0.5, got %v", res.ChunkScores["a"])
	}
	if !approx(res.ChunkScores["b"], 0.2) {
		t.Errorf("expected chunk b baseline 0.2, got %v", res.ChunkScores["b"])
	}

	if res.Stats.TotalChunks != 2 {
		t.Errorf("expected 2 total chunks, got %d", res.Stats.TotalChunks)
	}
	if res.Stats.HighlightCount != 1 {
		t.Errorf("expected 1 highlight, got %d", res.Stats.HighlightCount)
	}
	if !approx(res.Stats.AverageScore, 0.35) {
		t.Errorf("expected average 0.35, got %v", res.Stats.AverageScore)
	}
	if !approx(res.Stats.MaxScore, 0.5) {
		t.Errorf("expected max 0.5, got %v", res.Stats.MaxScore)
	}

	if ms.HighlightCount("s1") != 1 {
		t.Errorf("expected 1 persisted highlight, got %d", ms.HighlightCount("s1"))
	}
	stats, err := ms.GetStreamStats(context.Background(), "s1")
	if err != nil {
		t.Fatalf("expected stream stats row: %v", err)
	}
	if stats["chunks_scored"].(float64) != 2 {
		t.Errorf("expected 2 chunks recorded, got %v", stats["chunks_scored"])
	}
	if _, ok := stats["total_processing_ms"]; !ok {
		t.Error("expected processing time recorded in stream stats")
	}

	scored := bus.byType(events.TypeHighlightsScored)
	if len(scored) != 1 {
		t.Fatalf("expected 1 highlights.scored event, got %d", len(scored))
	}
	data, ok := scored[0].Data.(events.HighlightsScored)
	if !ok {
		t.Fatalf("expected HighlightsScored payload, got %T", scored[0].Data)
	}
	if data.StreamID != "s1" || data.TotalChunks != 2 || data.HighlightCount != 1 {
		t.Errorf("unexpected event payload: %+v", data)
	}
}

func TestScoreBatch_EmptyBatch(t *testing.T) {
	ms := testutil.NewMockStore()
	p := newTestPool(ms, nil)

	res, err := p.ScoreBatch(context.Background(), ScoreRequest{StreamID: "s1"})
	if err != nil {
		t.Fatalf("expected empty batch to succeed, got %v", err)
	}
	if res.Highlights == nil {
		t.Error("expected non-nil highlight slice")
	}
	if len(res.Highlights) != 0 {
		t.Errorf("expected 0 highlights, got %d", len(res.Highlights))
	}
	if res.Stats.TotalChunks != 0 {
		t.Errorf("expected 0 chunks, got %d", res.Stats.TotalChunks)
	}
	if ms.GetInsertCalls() != 0 {
		t.Errorf("expected no store writes for empty batch, got %d", ms.GetInsertCalls())
	}
}

func TestScoreBatch_ThresholdOverride(t *testing.T) {
	p := newTestPool(testutil.NewMockStore(), nil)

	zero := 0.0
	req := ScoreRequest{
		StreamID: "s1",
		Chunks:   []ChunkPayload{speechChunk("a"), silentChunk("b")},
		Options:  Options{HighlightThreshold: &zero},
	}

	res, err := p.ScoreBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Highlights) != 2 {
		t.Errorf("expected baseline kept at threshold 0, got %d highlights", len(res.Highlights))
	}
}

func TestScoreBatch_CanceledContext(t *testing.T) {
	p := newTestPool(testutil.NewMockStore(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ScoreBatch(ctx, ScoreRequest{
		StreamID: "s1",
		Chunks:   []ChunkPayload{speechChunk("a")},
	}); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestScoreBatch_Callback(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotBody, err = io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read callback body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(Config{
		Engine: highlight.NewEngine(highlight.Config{}),
		Jobs:   jobs.NewStore(time.Minute),
		Hooks:  webhook.NewSender(2 * time.Second),
	})

	req := ScoreRequest{
		StreamID: "s1",
		Chunks:   []ChunkPayload{speechChunk("a")},
		Options:  Options{CallbackURL: srv.URL},
	}
	if _, err := p.ScoreBatch(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var delivered Result
	if err := json.Unmarshal(gotBody, &delivered); err != nil {
		t.Fatalf("unmarshal callback body: %v", err)
	}
	if delivered.StreamID != "s1" {
		t.Errorf("expected stream s1 in callback, got %s", delivered.StreamID)
	}
	if len(delivered.Highlights) != 1 {
		t.Errorf("expected 1 highlight in callback, got %d", len(delivered.Highlights))
	}
}

func TestSubmit_CompletesJob(t *testing.T) {
	js := jobs.NewStore(time.Minute)
	p := New(Config{
		Engine: highlight.NewEngine(highlight.Config{}),
		Jobs:   js,
	})

	jobID := p.Submit(ScoreRequest{
		StreamID: "s1",
		Chunks:   []ChunkPayload{speechChunk("a")},
	})
	if jobID == "" {
		t.Fatal("expected a job id")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		job, ok := js.Get(jobID)
		if !ok {
			t.Fatal("job disappeared")
		}
		if job.Status == jobs.StatusCompleted {
			res, ok := job.Result.(*Result)
			if !ok {
				t.Fatalf("expected *Result, got %T", job.Result)
			}
			if res.JobID != jobID {
				t.Errorf("expected job id %s on result, got %s", jobID, res.JobID)
			}
			if len(res.Highlights) != 1 {
				t.Errorf("expected 1 highlight, got %d", len(res.Highlights))
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, status %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScoreOne_RecoversPanic(t *testing.T) {
	// A nil engine makes AnalyzeChunk panic; the chunk must come back
	// empty instead of killing the batch.
	bus := &recordingBus{}
	p := New(Config{Jobs: jobs.NewStore(time.Minute), Bus: bus})

	res := p.scoreOne("s1", ChunkPayload{ChunkID: "c1"})
	if res.ChunkID != "c1" {
		t.Errorf("expected chunk id preserved, got %q", res.ChunkID)
	}
	if len(res.Highlights) != 0 {
		t.Errorf("expected no highlights from panicked chunk, got %d", len(res.Highlights))
	}

	failed := bus.byType(events.TypeAnalysisFailed)
	if len(failed) != 1 {
		t.Fatalf("expected 1 chunk.analysis_failed event, got %d", len(failed))
	}
	data, ok := failed[0].Data.(events.Failure)
	if !ok || data.ResourceID != "c1" {
		t.Errorf("unexpected failure payload: %#v", failed[0].Data)
	}
}

func TestAnalyzeChunk_PublishesEvent(t *testing.T) {
	ms := testutil.NewMockStore()
	bus := &recordingBus{}
	p := newTestPool(ms, bus)

	res := p.AnalyzeChunk(context.Background(), "s1", speechChunk("c1"), "corr-1")
	if len(res.Highlights) != 1 {
		t.Fatalf("expected 1 highlight, got %d", len(res.Highlights))
	}
	if ms.HighlightCount("s1") != 1 {
		t.Errorf("expected highlight persisted, got %d", ms.HighlightCount("s1"))
	}

	analyzed := bus.byType(events.TypeChunkAnalyzed)
	if len(analyzed) != 1 {
		t.Fatalf("expected 1 chunk.analyzed event, got %d", len(analyzed))
	}
	if analyzed[0].CorrelationID != "corr-1" {
		t.Errorf("expected correlation id carried through, got %s", analyzed[0].CorrelationID)
	}
	data, ok := analyzed[0].Data.(events.ChunkAnalyzed)
	if !ok {
		t.Fatalf("expected ChunkAnalyzed payload, got %T", analyzed[0].Data)
	}
	if data.ChunkID != "c1" || !approx(data.TopScore, 0.5) {
		t.Errorf("unexpected payload: %+v", data)
	}
}

func TestGenerateClips(t *testing.T) {
	ms := testutil.NewMockStore()
	bus := &recordingBus{}
	p := newTestPool(ms, bus)

	ms.SeedHighlights("s1", []highlight.Highlight{
		{ChunkID: "c01", Score: 0.9},
		{ChunkID: "c02", Score: 0.7},
		{ChunkID: "c03", Score: 0.2},
	})

	plans, err := p.GenerateClips(context.Background(), "s1", clipplan.Options{}, "corr-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(plans))
	}
	if plans[0].ClipID != "s1_clip_1" {
		t.Errorf("expected s1_clip_1, got %s", plans[0].ClipID)
	}
	if plans[0].StartChunk != "c01" || plans[0].EndChunk != "c02" {
		t.Errorf("expected span c01..c02, got %s..%s", plans[0].StartChunk, plans[0].EndChunk)
	}
	if plans[0].CreatedAt.IsZero() {
		t.Error("expected created_at stamped")
	}

	stored, err := ms.QueryClipPlans(context.Background(), "s1")
	if err != nil {
		t.Fatalf("query clip plans: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("expected 1 persisted plan, got %d", len(stored))
	}

	generated := bus.byType(events.TypeClipGenerated)
	if len(generated) != 1 {
		t.Fatalf("expected 1 clip.generated event, got %d", len(generated))
	}
	data := generated[0].Data.(events.ClipGenerated)
	if data.ClipsGenerated != 1 || len(data.Clips) != 1 {
		t.Errorf("unexpected payload: %+v", data)
	}
}

func TestGenerateClips_NoScores(t *testing.T) {
	bus := &recordingBus{}
	p := newTestPool(testutil.NewMockStore(), bus)

	_, err := p.GenerateClips(context.Background(), "missing", clipplan.Options{}, "")
	if !errors.Is(err, ErrNoScores) {
		t.Errorf("expected ErrNoScores, got %v", err)
	}
	if len(bus.byType(events.TypeClipFailed)) != 1 {
		t.Error("expected clip.generation_failed event")
	}
}

func TestGenerateClips_NoStore(t *testing.T) {
	p := New(Config{
		Engine: highlight.NewEngine(highlight.Config{}),
		Jobs:   jobs.NewStore(time.Minute),
	})

	_, err := p.GenerateClips(context.Background(), "s1", clipplan.Options{}, "")
	if !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore, got %v", err)
	}
}
