// Package highlight implements the chunk scoring engine: signal-driven
// candidate generation, additive scoring, overlap resolution, and
// stream-level ranking. The engine is stateless; every call operates on
// its own inputs and read-only configuration, so chunks may be scored
// concurrently without locking.
package highlight

import "encoding/json"

// Candidate segment types. Audio and vision candidates carry a subtype
// suffix (audio_energy, vision_scene_change, ...).
const (
	TypeSpeech = "speech_based"
	TypeFusion = "multi_modal_fusion"

	audioTypePrefix  = "audio_"
	visionTypePrefix = "vision_"
)

// Modalities that can participate in a fusion cluster, in canonical order.
const (
	ModalitySpeech = "speech"
	ModalityAudio  = "audio"
	ModalityVision = "vision"
)

// Chunk is the engine's read-only input: one unit of stream time plus the
// optional raw payloads produced by the collaborator analysis services.
type Chunk struct {
	ID            string
	StreamID      string
	StartTime     float64
	Duration      float64
	Transcription json.RawMessage
	Vision        json.RawMessage
	AudioFeatures json.RawMessage
}

// Candidate is a generator-proposed time window before scoring. Source
// fields are populated per type: Intensity holds the keyword count for
// speech candidates and the signal intensity for audio/vision ones.
type Candidate struct {
	StartTime   float64
	Duration    float64
	Type        string
	Intensity   float64
	Excitement  float64
	Text        string
	PeakTime    float64
	EventCount  int
	Modalities  []string
	FusionScore float64
	Reason      string
}

// End returns the candidate's exclusive end time.
func (c Candidate) End() float64 { return c.StartTime + c.Duration }

// Scored is a candidate extended with its score, confidence, named score
// contributions, and human-readable selection reasons.
type Scored struct {
	Candidate
	Score      float64
	Confidence float64
	Breakdown  map[string]float64
	Reasons    []string
}

// Segment is the suggested clip window carried by a Highlight. Times are
// chunk-relative except AbsoluteStartTime, which is offset into the stream.
type Segment struct {
	StartTime         float64 `json:"startTime"`
	Duration          float64 `json:"duration"`
	Confidence        float64 `json:"confidence"`
	Reason            string  `json:"reason"`
	AbsoluteStartTime float64 `json:"absoluteStartTime"`
}

// Highlight is the externally visible scoring unit, created once per
// selected segment and never mutated afterwards.
type Highlight struct {
	ChunkID    string             `json:"chunkId"`
	StreamID   string             `json:"streamId,omitempty"`
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Breakdown  map[string]float64 `json:"breakdown,omitempty"`
	Segments   []Segment          `json:"suggestedSegments"`
	Reasons    []string           `json:"reasons,omitempty"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

// SignalCounts summarizes how many events each extractor produced.
type SignalCounts struct {
	Speech int `json:"speech_segments"`
	Audio  int `json:"audio_peaks"`
	Vision int `json:"vision_events"`
}

// ChunkResult is the full outcome of scoring one chunk. Baseline marks
// chunks that carried no usable signal and received the fallback score.
type ChunkResult struct {
	ChunkID    string       `json:"chunk_id"`
	Highlights []Highlight  `json:"highlights"`
	Signals    SignalCounts `json:"signal_counts"`
	Baseline   bool         `json:"baseline,omitempty"`
}
