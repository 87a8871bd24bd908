// Package events defines the envelope ClipForge services exchange on the
// bus, the event types the scoring service emits, and a JetStream-backed
// publisher for them.
package events

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire format shared by every ClipForge service.
type Envelope struct {
	EventID       string    `json:"eventId"`
	EventType     string    `json:"eventType"`
	Timestamp     time.Time `json:"timestamp"`
	Version       string    `json:"version"`
	Source        string    `json:"source"`
	CorrelationID string    `json:"correlationId"`
	Data          any       `json:"data"`
}

const (
	// SchemaVersion is stamped on every published envelope.
	SchemaVersion = "1.0"
	// SourceName identifies this service on the bus.
	SourceName = "scoring_svc"
)

// Event types emitted by the scoring service.
const (
	TypeChunkAnalyzed    = "chunk.analyzed"
	TypeHighlightsScored = "highlights.scored"
	TypeClipGenerated    = "clip.generated"

	TypeAnalysisFailed = "chunk.analysis_failed"
	TypeScoringFailed  = "highlights.scoring_failed"
	TypeClipFailed     = "clip.generation_failed"
)

// New builds an envelope with a fresh event id and UTC timestamp. An empty
// correlation id gets one generated so downstream joins never break.
func New(eventType, correlationID string, data any) Envelope {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return Envelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		Version:       SchemaVersion,
		Source:        SourceName,
		CorrelationID: correlationID,
		Data:          data,
	}
}

// Subject returns the NATS subject an event type publishes on. Failure
// types route under the shared failed.> branch so one consumer can watch
// all of them.
func Subject(eventType string) string {
	if strings.HasSuffix(eventType, "_failed") {
		area, _, _ := strings.Cut(eventType, ".")
		return "clipforge.scoring.failed." + area
	}
	return "clipforge.scoring." + eventType
}

// Decode parses an envelope, filling missing identity fields with
// generated values. It never drops an event that is valid JSON.
func Decode(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, err
	}

	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}

	if e.Timestamp.IsZero() {
		slog.Warn("event missing timestamp, using receive time", "event_id", e.EventID)
		e.Timestamp = time.Now().UTC()
	}

	return e, nil
}

// ChunkAnalyzed is the data payload for TypeChunkAnalyzed.
type ChunkAnalyzed struct {
	ChunkID        string  `json:"chunkId"`
	StreamID       string  `json:"streamId"`
	HighlightCount int     `json:"highlightCount"`
	TopScore       float64 `json:"topScore"`
	JobID          string  `json:"jobId,omitempty"`
}

// HighlightsScored is the data payload for TypeHighlightsScored.
type HighlightsScored struct {
	StreamID       string  `json:"streamId"`
	TotalChunks    int     `json:"totalChunks"`
	HighlightCount int     `json:"highlightCount"`
	AverageScore   float64 `json:"averageScore"`
	MaxScore       float64 `json:"maxScore"`
	JobID          string  `json:"jobId,omitempty"`
}

// ClipSummary is one entry in a ClipGenerated payload.
type ClipSummary struct {
	ClipID   string  `json:"clipId"`
	Score    float64 `json:"score"`
	Duration float64 `json:"duration"`
}

// ClipGenerated is the data payload for TypeClipGenerated.
type ClipGenerated struct {
	StreamID       string        `json:"streamId"`
	ClipsGenerated int           `json:"clipsGenerated"`
	Clips          []ClipSummary `json:"clips"`
	JobID          string        `json:"jobId,omitempty"`
}

// Failure is the data payload for the *_failed event types.
type Failure struct {
	ResourceID string `json:"resourceId"`
	Error      string `json:"error"`
}
