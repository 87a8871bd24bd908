// Package signals turns the raw collaborator payloads attached to a chunk
// (transcript, audio features, vision analysis) into typed, timestamped
// signal events. Missing or malformed payloads degrade to empty slices,
// never errors.
package signals

import "encoding/json"

// Peak types produced by audio extraction.
const (
	PeakEnergy   = "energy"
	PeakVolume   = "volume"
	PeakSpectral = "spectral"
)

// Vision event types.
const (
	VisionSceneChange  = "scene_change"
	VisionMotion       = "motion"
	VisionFaceDetected = "face_detected"
)

// SpeechSegment is a timed span of transcribed speech within a chunk.
type SpeechSegment struct {
	Start      float64
	End        float64
	Text       string
	Confidence float64
}

// AudioPeak is a local maximum in one of the chunk's audio signal arrays,
// widened into a candidate window.
type AudioPeak struct {
	Start     float64
	End       float64
	PeakTime  float64
	Intensity float64
	Type      string
}

// VisionEvent is a visual occurrence (scene change, motion burst, face
// appearance) with an associated window and intensity.
type VisionEvent struct {
	Start     float64
	End       float64
	Type      string
	Intensity float64
}

// FaceSummary aggregates face-tracking observations for chunk metadata.
type FaceSummary struct {
	TotalFaces    int      `json:"total_faces"`
	UniqueFaces   []string `json:"unique_faces"`
	AvgConfidence float64  `json:"avg_confidence"`
}

// Bundle holds every signal extracted from one chunk.
type Bundle struct {
	Speech []SpeechSegment
	Peaks  []AudioPeak
	Vision []VisionEvent
	Faces  FaceSummary
}

// Empty reports whether no signal of any modality was extracted.
func (b Bundle) Empty() bool {
	return len(b.Speech) == 0 && len(b.Peaks) == 0 && len(b.Vision) == 0
}

// Params are the extraction thresholds. Zero values are replaced by
// defaults, so Params{} behaves like DefaultParams().
type Params struct {
	EnergyPeakThreshold   float64
	VolumePeakThreshold   float64
	SpectralFluxThreshold float64
	SpectralFluxNorm      float64
	MotionPeakThreshold   float64
}

func DefaultParams() Params {
	return Params{
		EnergyPeakThreshold:   0.7,
		VolumePeakThreshold:   0.7,
		SpectralFluxThreshold: 2.0,
		SpectralFluxNorm:      5.0,
		MotionPeakThreshold:   0.6,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.EnergyPeakThreshold <= 0 {
		p.EnergyPeakThreshold = d.EnergyPeakThreshold
	}
	if p.VolumePeakThreshold <= 0 {
		p.VolumePeakThreshold = d.VolumePeakThreshold
	}
	if p.SpectralFluxThreshold <= 0 {
		p.SpectralFluxThreshold = d.SpectralFluxThreshold
	}
	if p.SpectralFluxNorm <= 0 {
		p.SpectralFluxNorm = d.SpectralFluxNorm
	}
	if p.MotionPeakThreshold <= 0 {
		p.MotionPeakThreshold = d.MotionPeakThreshold
	}
	return p
}

// Extract runs all three extractors over one chunk's raw payloads.
func Extract(transcription, vision, audio json.RawMessage, duration float64, p Params) Bundle {
	p = p.withDefaults()
	events, faces := ExtractVision(vision, duration, p)
	return Bundle{
		Speech: ExtractSpeech(transcription, duration),
		Peaks:  ExtractAudioPeaks(audio, duration, p),
		Vision: events,
		Faces:  faces,
	}
}

// OrderedSet is a string set that remembers insertion order.
type OrderedSet struct {
	seen  map[string]struct{}
	items []string
}

func NewOrderedSet() *OrderedSet {
	return &OrderedSet{seen: make(map[string]struct{})}
}

// Add inserts s if not already present and reports whether it was added.
func (o *OrderedSet) Add(s string) bool {
	if _, ok := o.seen[s]; ok {
		return false
	}
	o.seen[s] = struct{}{}
	o.items = append(o.items, s)
	return true
}

func (o *OrderedSet) Len() int { return len(o.items) }

// Items returns the members in insertion order. The returned slice is
// owned by the set and must not be mutated.
func (o *OrderedSet) Items() []string { return o.items }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
