package signals

import (
	"encoding/json"
	"math"
)

// Window paddings for vision events.
const (
	scenePrePad  = 2.0
	scenePostPad = 3.0
	facePrePad   = 1.0
	facePostPad  = 4.0
)

const defaultVisionConfidence = 0.5

type rawVision struct {
	SceneChanges    []json.RawMessage `json:"scene_changes"`
	MotionIntensity []float64         `json:"motion_intensity"`
	FaceTracking    []rawFaceEvent    `json:"face_tracking"`
}

type rawSceneChange struct {
	Timestamp  *float64 `json:"timestamp"`
	Confidence *float64 `json:"confidence"`
}

type rawFaceEvent struct {
	Timestamp  *float64 `json:"timestamp"`
	Start      *float64 `json:"start"`
	FaceID     string   `json:"face_id"`
	Confidence *float64 `json:"confidence"`
}

// ExtractVision parses a vision payload into timed events plus a face
// summary. Scene changes may be bare timestamps or objects; motion is a
// uniformly sampled intensity array peak-detected like audio; face
// tracking events carry ids that are deduplicated in first-seen order.
func ExtractVision(raw json.RawMessage, duration float64, p Params) ([]VisionEvent, FaceSummary) {
	if len(raw) == 0 || duration <= 0 {
		return nil, FaceSummary{}
	}
	p = p.withDefaults()
	var rv rawVision
	if err := json.Unmarshal(raw, &rv); err != nil {
		return nil, FaceSummary{}
	}

	var events []VisionEvent

	for _, entry := range rv.SceneChanges {
		t, conf, ok := decodeSceneChange(entry)
		if !ok || t < 0 || t > duration {
			continue
		}
		events = append(events, VisionEvent{
			Start:     math.Max(0, t-scenePrePad),
			End:       math.Min(duration, t+scenePostPad),
			Type:      VisionSceneChange,
			Intensity: conf,
		})
	}

	if idxs := detectPeaks(rv.MotionIntensity, p.MotionPeakThreshold); len(idxs) > 0 {
		step := duration / float64(len(rv.MotionIntensity))
		for _, i := range idxs {
			t := float64(i) * step
			events = append(events, VisionEvent{
				Start:     math.Max(0, t-peakPrePad),
				End:       math.Min(duration, t+peakPostPad),
				Type:      VisionMotion,
				Intensity: clamp(rv.MotionIntensity[i], 0, 1),
			})
		}
	}

	faces := NewOrderedSet()
	var summary FaceSummary
	var confSum float64
	var confCount int
	for _, fe := range rv.FaceTracking {
		t := fe.Timestamp
		if t == nil {
			t = fe.Start
		}
		if t == nil || *t < 0 || *t > duration {
			continue
		}
		conf := defaultVisionConfidence
		if fe.Confidence != nil {
			conf = clamp(*fe.Confidence, 0, 1)
			confSum += conf
			confCount++
		}
		summary.TotalFaces++
		if fe.FaceID != "" {
			faces.Add(fe.FaceID)
		}
		events = append(events, VisionEvent{
			Start:     math.Max(0, *t-facePrePad),
			End:       math.Min(duration, *t+facePostPad),
			Type:      VisionFaceDetected,
			Intensity: conf,
		})
	}
	summary.UniqueFaces = faces.Items()
	if confCount > 0 {
		summary.AvgConfidence = confSum / float64(confCount)
	}

	return events, summary
}

func decodeSceneChange(raw json.RawMessage) (t, confidence float64, ok bool) {
	var ts float64
	if err := json.Unmarshal(raw, &ts); err == nil {
		return ts, defaultVisionConfidence, true
	}
	var sc rawSceneChange
	if err := json.Unmarshal(raw, &sc); err != nil || sc.Timestamp == nil {
		return 0, 0, false
	}
	conf := defaultVisionConfidence
	if sc.Confidence != nil {
		conf = clamp(*sc.Confidence, 0, 1)
	}
	return *sc.Timestamp, conf, true
}
