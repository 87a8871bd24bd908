// Package worker runs the highlight engine over scoring batches on a
// bounded pool and fans results out to storage, the bus, and callbacks.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/KeyesCode/clipforge/internal/clipplan"
	"github.com/KeyesCode/clipforge/internal/events"
	"github.com/KeyesCode/clipforge/internal/highlight"
	"github.com/KeyesCode/clipforge/internal/jobs"
	"github.com/KeyesCode/clipforge/internal/store"
	"github.com/KeyesCode/clipforge/internal/webhook"
)

// ErrNoStore is returned by operations that need persistence when the
// pool was built without a database.
var ErrNoStore = errors.New("persistence not configured")

// ErrNoScores is returned by clip generation when a stream has no stored
// highlight scores to plan from.
var ErrNoScores = errors.New("no highlight scores for stream")

// batchTimeout bounds background scoring of one submitted batch.
const batchTimeout = 5 * time.Minute

// ScoreRequest is one scoring batch: a stream plus its chunks.
type ScoreRequest struct {
	StreamID string         `json:"stream_id"`
	JobID    string         `json:"job_id,omitempty"`
	Chunks   []ChunkPayload `json:"chunks"`
	Options  Options        `json:"options"`
}

// ChunkPayload carries one chunk and its collaborator-produced signal data.
type ChunkPayload struct {
	ChunkID string    `json:"chunk_id"`
	Data    ChunkData `json:"chunk_data"`
}

// ChunkData holds the raw model-service outputs for a chunk. Signal
// payloads stay raw JSON; the engine tolerates whatever shape they have.
type ChunkData struct {
	Transcription json.RawMessage `json:"transcription,omitempty"`
	Vision        json.RawMessage `json:"vision,omitempty"`
	AudioFeatures json.RawMessage `json:"audio_features,omitempty"`
	Duration      float64         `json:"duration"`
	StartTime     float64         `json:"start_time"`
}

// Chunk converts the payload into the engine's input form.
func (cp ChunkPayload) Chunk(streamID string) highlight.Chunk {
	return highlight.Chunk{
		ID:            cp.ChunkID,
		StreamID:      streamID,
		StartTime:     cp.Data.StartTime,
		Duration:      cp.Data.Duration,
		Transcription: cp.Data.Transcription,
		Vision:        cp.Data.Vision,
		AudioFeatures: cp.Data.AudioFeatures,
	}
}

// Options tune a single request.
type Options struct {
	Sync               bool     `json:"sync,omitempty"`
	HighlightThreshold *float64 `json:"highlight_threshold,omitempty"`
	CallbackURL        string   `json:"callback_url,omitempty"`
}

// Stats summarizes a scored batch.
type Stats struct {
	TotalChunks    int     `json:"total_chunks"`
	HighlightCount int     `json:"highlight_count"`
	AverageScore   float64 `json:"average_score"`
	MaxScore       float64 `json:"max_score"`
	ProcessingMs   int64   `json:"processing_ms"`
}

// Result is the outcome of one scored batch: the ranked highlights plus
// the per-chunk best scores that clip planning consumes.
type Result struct {
	StreamID    string                `json:"stream_id"`
	JobID       string                `json:"job_id,omitempty"`
	Highlights  []highlight.Highlight `json:"highlights"`
	ChunkScores map[string]float64    `json:"chunk_scores"`
	Stats       Stats                 `json:"stats"`
}

// Config wires the pool's collaborators. Store, Bus, and Hooks may be nil.
type Config struct {
	Engine *highlight.Engine
	Jobs   *jobs.Store
	Size   int
	Store  store.DataStore
	Bus    events.Bus
	Hooks  *webhook.Sender
}

// Pool scores batches with bounded parallelism. Scoring is CPU-bound, so
// the pool defaults to one worker per CPU.
type Pool struct {
	engine *highlight.Engine
	jobs   *jobs.Store
	size   int

	store store.DataStore
	bus   events.Bus
	hooks *webhook.Sender
}

func New(cfg Config) *Pool {
	size := cfg.Size
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		engine: cfg.Engine,
		jobs:   cfg.Jobs,
		size:   size,
		store:  cfg.Store,
		bus:    cfg.Bus,
		hooks:  cfg.Hooks,
	}
}

// Submit queues a batch for background scoring and returns its job id.
func (p *Pool) Submit(req ScoreRequest) string {
	job := p.jobs.Create(req.JobID, req.StreamID)
	req.JobID = job.ID
	go p.process(req)
	return job.ID
}

func (p *Pool) process(req ScoreRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	res, err := p.ScoreBatch(ctx, req)
	if err != nil {
		slog.Error("batch scoring failed", "job_id", req.JobID, "stream_id", req.StreamID, "error", err)
		p.jobs.Fail(req.JobID, err)
		p.publish(ctx, events.New(events.TypeScoringFailed, req.JobID, events.Failure{
			ResourceID: req.StreamID,
			Error:      err.Error(),
		}))
		return
	}
	p.jobs.Complete(req.JobID, res)
}

// ScoreBatch scores every chunk in the request and returns the ranked
// result. Chunks are scored in parallel; a panic while scoring one chunk
// loses only that chunk. An empty batch returns an empty result.
func (p *Pool) ScoreBatch(ctx context.Context, req ScoreRequest) (*Result, error) {
	started := time.Now()

	threshold := p.engine.Threshold()
	if req.Options.HighlightThreshold != nil {
		threshold = *req.Options.HighlightThreshold
	}

	results := make([]highlight.ChunkResult, len(req.Chunks))
	sem := make(chan struct{}, p.size)
	var wg sync.WaitGroup

	for i, cp := range req.Chunks {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, cp ChunkPayload) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.scoreOne(req.StreamID, cp)
		}(i, cp)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := p.engine.Rank(results, threshold)

	chunkScores := make(map[string]float64, len(results))
	var sum, maxScore float64
	for _, cr := range results {
		best := 0.0
		for _, h := range cr.Highlights {
			if h.Score > best {
				best = h.Score
			}
		}
		chunkScores[cr.ChunkID] = best
		sum += best
		if best > maxScore {
			maxScore = best
		}
	}
	avg := 0.0
	if len(results) > 0 {
		avg = sum / float64(len(results))
	}

	result := &Result{
		StreamID:    req.StreamID,
		JobID:       req.JobID,
		Highlights:  ranked,
		ChunkScores: chunkScores,
		Stats: Stats{
			TotalChunks:    len(req.Chunks),
			HighlightCount: len(ranked),
			AverageScore:   avg,
			MaxScore:       maxScore,
			ProcessingMs:   time.Since(started).Milliseconds(),
		},
	}

	if p.store != nil && len(req.Chunks) > 0 {
		if err := p.store.InsertHighlights(ctx, req.StreamID, ranked); err != nil {
			slog.Error("failed to persist highlights", "stream_id", req.StreamID, "error", err)
		}
		updates := map[string]any{
			"add_chunks":        int64(len(req.Chunks)),
			"add_highlights":    int64(len(ranked)),
			"add_processing_ms": result.Stats.ProcessingMs,
			"avg_score":         avg,
			"max_score":         maxScore,
			"last_scored_at":    time.Now().UTC(),
		}
		if err := p.store.UpsertStreamStats(ctx, req.StreamID, updates); err != nil {
			slog.Error("failed to update stream stats", "stream_id", req.StreamID, "error", err)
		}
	}

	p.publish(ctx, events.New(events.TypeHighlightsScored, req.JobID, events.HighlightsScored{
		StreamID:       req.StreamID,
		TotalChunks:    len(req.Chunks),
		HighlightCount: len(ranked),
		AverageScore:   avg,
		MaxScore:       maxScore,
		JobID:          req.JobID,
	}))

	if req.Options.CallbackURL != "" && p.hooks != nil {
		if err := p.hooks.Send(ctx, req.Options.CallbackURL, result); err != nil {
			slog.Warn("callback delivery failed", "url", req.Options.CallbackURL, "error", err)
		}
	}

	slog.Info("batch scored",
		"stream_id", req.StreamID,
		"chunks", len(req.Chunks),
		"highlights", len(ranked),
		"duration_ms", result.Stats.ProcessingMs,
	)
	return result, nil
}

// AnalyzeChunk scores a single chunk synchronously, persists any
// highlights, and announces the result on the bus.
func (p *Pool) AnalyzeChunk(ctx context.Context, streamID string, cp ChunkPayload, correlationID string) highlight.ChunkResult {
	res := p.scoreOne(streamID, cp)

	if p.store != nil && len(res.Highlights) > 0 {
		if err := p.store.InsertHighlights(ctx, streamID, res.Highlights); err != nil {
			slog.Error("failed to persist highlights", "chunk_id", res.ChunkID, "error", err)
		}
	}

	top := 0.0
	for _, h := range res.Highlights {
		if h.Score > top {
			top = h.Score
		}
	}
	p.publish(ctx, events.New(events.TypeChunkAnalyzed, correlationID, events.ChunkAnalyzed{
		ChunkID:        res.ChunkID,
		StreamID:       streamID,
		HighlightCount: len(res.Highlights),
		TopScore:       top,
	}))

	return res
}

// GenerateClips builds clip plans from a stream's stored highlight
// scores, persists them, and announces the result.
func (p *Pool) GenerateClips(ctx context.Context, streamID string, opts clipplan.Options, correlationID string) ([]clipplan.Plan, error) {
	if p.store == nil {
		return nil, ErrNoStore
	}

	rows, err := p.store.QueryHighlights(ctx, streamID, 0, 0)
	if err != nil {
		err = fmt.Errorf("load highlight scores: %w", err)
		p.publish(ctx, events.New(events.TypeClipFailed, correlationID, events.Failure{
			ResourceID: streamID,
			Error:      err.Error(),
		}))
		return nil, err
	}
	if len(rows) == 0 {
		err = fmt.Errorf("%w %s", ErrNoScores, streamID)
		p.publish(ctx, events.New(events.TypeClipFailed, correlationID, events.Failure{
			ResourceID: streamID,
			Error:      err.Error(),
		}))
		return nil, err
	}

	scores := make(map[string]float64, len(rows))
	for _, row := range rows {
		id, _ := row["chunk_id"].(string)
		if id == "" {
			continue
		}
		if score, ok := row["score"].(float64); ok && score > scores[id] {
			scores[id] = score
		}
	}

	plans := clipplan.Build(streamID, scores, opts)
	now := time.Now().UTC()
	for i := range plans {
		plans[i].CreatedAt = now
	}

	if len(plans) > 0 {
		if err := p.store.InsertClipPlans(ctx, plans); err != nil {
			slog.Error("failed to persist clip plans", "stream_id", streamID, "error", err)
		}
		if err := p.store.UpsertStreamStats(ctx, streamID, map[string]any{"add_clips": int64(len(plans))}); err != nil {
			slog.Error("failed to update stream stats", "stream_id", streamID, "error", err)
		}
	}

	summaries := make([]events.ClipSummary, len(plans))
	for i, pl := range plans {
		summaries[i] = events.ClipSummary{ClipID: pl.ClipID, Score: pl.Score, Duration: pl.Duration}
	}
	p.publish(ctx, events.New(events.TypeClipGenerated, correlationID, events.ClipGenerated{
		StreamID:       streamID,
		ClipsGenerated: len(plans),
		Clips:          summaries,
	}))

	slog.Info("clip plans generated", "stream_id", streamID, "clips", len(plans))
	return plans, nil
}

// scoreOne runs the engine over one chunk, recovering a panic so a bad
// chunk never takes down the batch.
func (p *Pool) scoreOne(streamID string, cp ChunkPayload) (res highlight.ChunkResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chunk scoring panicked", "chunk_id", cp.ChunkID, "panic", r)
			p.publish(context.Background(), events.New(events.TypeAnalysisFailed, "", events.Failure{
				ResourceID: cp.ChunkID,
				Error:      fmt.Sprint(r),
			}))
			res = highlight.ChunkResult{ChunkID: cp.ChunkID}
		}
	}()
	return p.engine.AnalyzeChunk(cp.Chunk(streamID))
}

func (p *Pool) publish(ctx context.Context, env events.Envelope) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, env); err != nil {
		slog.Error("failed to publish event", "type", env.EventType, "error", err)
	}
}
