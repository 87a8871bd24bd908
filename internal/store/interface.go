package store

import (
	"context"

	"github.com/KeyesCode/clipforge/internal/clipplan"
	"github.com/KeyesCode/clipforge/internal/highlight"
)

// DataStore is the interface consumed by the worker pool and the API.
// The concrete implementation is *Store (pgx-backed).
type DataStore interface {
	InsertHighlights(ctx context.Context, streamID string, hls []highlight.Highlight) error
	QueryHighlights(ctx context.Context, streamID string, minScore float64, limit int) ([]map[string]any, error)
	InsertClipPlans(ctx context.Context, plans []clipplan.Plan) error
	QueryClipPlans(ctx context.Context, streamID string) ([]map[string]any, error)
	UpsertStreamStats(ctx context.Context, streamID string, updates map[string]any) error
	GetStreamStats(ctx context.Context, streamID string) (map[string]any, error)
	Ping(ctx context.Context) error
	Close()
}
