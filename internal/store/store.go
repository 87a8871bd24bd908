package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KeyesCode/clipforge/internal/clipplan"
	"github.com/KeyesCode/clipforge/internal/highlight"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertHighlights batch-inserts scored highlights into stream_highlights.
func (s *Store) InsertHighlights(ctx context.Context, streamID string, hls []highlight.Highlight) error {
	if len(hls) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, len(hls))
	for i, h := range hls {
		breakdown, err := json.Marshal(h.Breakdown)
		if err != nil {
			return fmt.Errorf("marshal breakdown for %s: %w", h.ChunkID, err)
		}
		segments, err := json.Marshal(h.Segments)
		if err != nil {
			return fmt.Errorf("marshal segments for %s: %w", h.ChunkID, err)
		}
		reasons, err := json.Marshal(h.Reasons)
		if err != nil {
			return fmt.Errorf("marshal reasons for %s: %w", h.ChunkID, err)
		}
		metadata, err := json.Marshal(h.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", h.ChunkID, err)
		}
		rows[i] = []any{uuid.NewString(), h.ChunkID, streamID, h.Score, h.Confidence, breakdown, segments, reasons, metadata, now}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"stream_highlights"},
		[]string{"highlight_id", "chunk_id", "stream_id", "score", "confidence", "breakdown", "segments", "reasons", "metadata", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy highlights: %w", err)
	}

	slog.Debug("inserted highlights", "stream_id", streamID, "count", len(hls))
	return nil
}

// QueryHighlights returns stored highlights for a stream at or above a
// score floor, best first.
func (s *Store) QueryHighlights(ctx context.Context, streamID string, minScore float64, limit int) ([]map[string]any, error) {
	q := `SELECT highlight_id, chunk_id, stream_id, score, confidence, breakdown, segments, reasons, metadata, created_at
		FROM stream_highlights WHERE stream_id = $1 AND score >= $2 ORDER BY score DESC, chunk_id`
	args := []any{streamID, minScore}

	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		var (
			hid, cid, sid                          string
			score, confidence                      float64
			breakdown, segments, reasons, metadata json.RawMessage
			createdAt                              time.Time
		)
		if err := rows.Scan(&hid, &cid, &sid, &score, &confidence, &breakdown, &segments, &reasons, &metadata, &createdAt); err != nil {
			return nil, err
		}
		results = append(results, map[string]any{
			"highlight_id": hid,
			"chunk_id":     cid,
			"stream_id":    sid,
			"score":        score,
			"confidence":   confidence,
			"breakdown":    breakdown,
			"segments":     segments,
			"reasons":      reasons,
			"metadata":     metadata,
			"created_at":   createdAt,
		})
	}
	return results, rows.Err()
}

// InsertClipPlans batch-inserts clip plans into clip_plans.
func (s *Store) InsertClipPlans(ctx context.Context, plans []clipplan.Plan) error {
	if len(plans) == 0 {
		return nil
	}

	rows := make([][]any, len(plans))
	for i, p := range plans {
		chunks, err := json.Marshal(p.Chunks)
		if err != nil {
			return fmt.Errorf("marshal chunks for %s: %w", p.ClipID, err)
		}
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		rows[i] = []any{p.ClipID, p.StreamID, p.StartChunk, p.EndChunk, chunks, p.Score, p.Duration, createdAt}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"clip_plans"},
		[]string{"clip_id", "stream_id", "start_chunk", "end_chunk", "chunks", "score", "duration", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy clip plans: %w", err)
	}

	slog.Debug("inserted clip plans", "count", len(plans))
	return nil
}

// QueryClipPlans returns the clip plans for a stream in creation order.
func (s *Store) QueryClipPlans(ctx context.Context, streamID string) ([]map[string]any, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT clip_id, stream_id, start_chunk, end_chunk, chunks, score, duration, created_at
		 FROM clip_plans WHERE stream_id = $1 ORDER BY created_at, clip_id`,
		streamID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		var (
			cid, sid, startChunk, endChunk string
			chunks                         json.RawMessage
			score, duration                float64
			createdAt                      time.Time
		)
		if err := rows.Scan(&cid, &sid, &startChunk, &endChunk, &chunks, &score, &duration, &createdAt); err != nil {
			return nil, err
		}
		results = append(results, map[string]any{
			"clip_id":     cid,
			"stream_id":   sid,
			"start_chunk": startChunk,
			"end_chunk":   endChunk,
			"chunks":      chunks,
			"score":       score,
			"duration":    duration,
			"created_at":  createdAt,
		})
	}
	return results, rows.Err()
}

// UpsertStreamStats updates rolling scoring statistics for a stream.
func (s *Store) UpsertStreamStats(ctx context.Context, streamID string, updates map[string]any) error {
	// Ensure row exists.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stream_stats (stream_id)
		VALUES ($1)
		ON CONFLICT (stream_id) DO NOTHING
	`, streamID)
	if err != nil {
		return fmt.Errorf("ensure stream_stats row: %w", err)
	}

	for field, value := range updates {
		var q string
		switch field {
		case "add_chunks":
			q = `UPDATE stream_stats SET chunks_scored = chunks_scored + $2, updated_at = now() WHERE stream_id = $1`
		case "add_highlights":
			q = `UPDATE stream_stats SET highlights_found = highlights_found + $2, updated_at = now() WHERE stream_id = $1`
		case "add_clips":
			q = `UPDATE stream_stats SET clips_planned = clips_planned + $2, updated_at = now() WHERE stream_id = $1`
		case "add_processing_ms":
			q = `UPDATE stream_stats SET total_processing_ms = total_processing_ms + $2, updated_at = now() WHERE stream_id = $1`
		case "avg_score":
			q = `UPDATE stream_stats SET avg_score = $2, updated_at = now() WHERE stream_id = $1`
		case "max_score":
			q = `UPDATE stream_stats SET max_score = GREATEST(max_score, $2), updated_at = now() WHERE stream_id = $1`
		case "last_scored_at":
			q = `UPDATE stream_stats SET last_scored_at = $2, updated_at = now() WHERE stream_id = $1`
		default:
			continue
		}
		if _, err := s.pool.Exec(ctx, q, streamID, value); err != nil {
			return fmt.Errorf("update stream stat %s: %w", field, err)
		}
	}

	return nil
}

// GetStreamStats returns the scoring statistics row for a stream.
func (s *Store) GetStreamStats(ctx context.Context, streamID string) (map[string]any, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT stream_id, chunks_scored, highlights_found, clips_planned, avg_score, max_score, total_processing_ms, last_scored_at, updated_at
		FROM stream_stats
		WHERE stream_id = $1
	`, streamID)

	var (
		sid                             string
		chunksScored, highlights, clips int64
		processingMs                    int64
		avgScore, maxScore              float64
		lastScoredAt                    *time.Time
		updatedAt                       time.Time
	)
	if err := row.Scan(&sid, &chunksScored, &highlights, &clips, &avgScore, &maxScore, &processingMs, &lastScoredAt, &updatedAt); err != nil {
		return nil, err
	}

	result := map[string]any{
		"stream_id":           sid,
		"chunks_scored":       chunksScored,
		"highlights_found":    highlights,
		"clips_planned":       clips,
		"avg_score":           avgScore,
		"max_score":           maxScore,
		"total_processing_ms": processingMs,
		"updated_at":          updatedAt,
	}
	if lastScoredAt != nil {
		result["last_scored_at"] = *lastScoredAt
	}
	return result, nil
}
