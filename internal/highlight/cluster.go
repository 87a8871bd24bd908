package highlight

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KeyesCode/clipforge/internal/signals"
)

// Fusion candidate gating.
const (
	fusionPrePad      = 5.0
	fusionPostPad     = 8.0
	minFusionDuration = 10.0
	minFusionScore    = 0.3
)

// clusterEvent reduces one signal occurrence of any modality to the
// fields clustering and fusion scoring need.
type clusterEvent struct {
	start    float64
	end      float64
	modality string

	// Exactly one of the following is set, matching modality.
	speech *signals.SpeechSegment
	audio  *signals.AudioPeak
	vision *signals.VisionEvent
}

func modalityRank(m string) int {
	switch m {
	case ModalitySpeech:
		return 0
	case ModalityAudio:
		return 1
	default:
		return 2
	}
}

// collectEvents flattens all three signal lists into cluster events,
// sorted by start time with a full deterministic tie-break.
func collectEvents(sig signals.Bundle) []clusterEvent {
	events := make([]clusterEvent, 0, len(sig.Speech)+len(sig.Peaks)+len(sig.Vision))
	for i := range sig.Speech {
		s := &sig.Speech[i]
		events = append(events, clusterEvent{start: s.Start, end: s.End, modality: ModalitySpeech, speech: s})
	}
	for i := range sig.Peaks {
		p := &sig.Peaks[i]
		events = append(events, clusterEvent{start: p.Start, end: p.End, modality: ModalityAudio, audio: p})
	}
	for i := range sig.Vision {
		v := &sig.Vision[i]
		events = append(events, clusterEvent{start: v.Start, end: v.End, modality: ModalityVision, vision: v})
	}
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.end != b.end {
			return a.end < b.end
		}
		return modalityRank(a.modality) < modalityRank(b.modality)
	})
	return events
}

// clusterEvents groups start-sorted events whose gap to the running
// cluster's maximum end stays within maxGap. Single linear pass.
func clusterEvents(events []clusterEvent, maxGap float64) [][]clusterEvent {
	if len(events) == 0 {
		return nil
	}
	var clusters [][]clusterEvent
	current := []clusterEvent{events[0]}
	maxEnd := events[0].end
	for _, ev := range events[1:] {
		if ev.start-maxEnd <= maxGap {
			current = append(current, ev)
			if ev.end > maxEnd {
				maxEnd = ev.end
			}
			continue
		}
		clusters = append(clusters, current)
		current = []clusterEvent{ev}
		maxEnd = ev.end
	}
	return append(clusters, current)
}

// fusionCandidates emits one candidate per multi-event cluster that is
// long enough and scores above the fusion floor.
func (e *Engine) fusionCandidates(sig signals.Bundle, duration float64) []Candidate {
	clusters := clusterEvents(collectEvents(sig), e.cfg.ClusterMaxGap)

	var out []Candidate
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		minStart, maxEnd := cluster[0].start, cluster[0].end
		for _, ev := range cluster[1:] {
			minStart = math.Min(minStart, ev.start)
			maxEnd = math.Max(maxEnd, ev.end)
		}
		start := math.Max(0, minStart-fusionPrePad)
		end := math.Min(duration, maxEnd+fusionPostPad)
		if end-start < minFusionDuration {
			continue
		}
		score := e.fusionScore(cluster)
		if score <= minFusionScore {
			continue
		}
		modalities := distinctModalities(cluster)
		out = append(out, Candidate{
			StartTime:   start,
			Duration:    end - start,
			Type:        TypeFusion,
			EventCount:  len(cluster),
			Modalities:  modalities,
			FusionScore: score,
			Reason: fmt.Sprintf("Multi-modal event cluster (%d events: %s)",
				len(cluster), strings.Join(modalities, ", ")),
		})
	}
	return out
}

// fusionScore rates a cluster by modality spread, temporal density, and
// per-event quality. Result is capped at 1.
func (e *Engine) fusionScore(cluster []clusterEvent) float64 {
	if len(cluster) == 0 {
		return 0
	}
	score := float64(len(distinctModalities(cluster))) * 0.15

	if len(cluster) > 1 {
		minStart, maxEnd := cluster[0].start, cluster[0].end
		for _, ev := range cluster[1:] {
			minStart = math.Min(minStart, ev.start)
			maxEnd = math.Max(maxEnd, ev.end)
		}
		if span := maxEnd - minStart; span > 0 {
			density := float64(len(cluster)) / span
			score += math.Min(density*0.1, 0.3)
		}
	}

	for _, ev := range cluster {
		switch ev.modality {
		case ModalitySpeech:
			if e.cfg.Keywords.HasSuperlative(ev.speech.Text) {
				score += 0.2
			}
		case ModalityAudio:
			score += ev.audio.Intensity * 0.15
		case ModalityVision:
			score += ev.vision.Intensity * 0.1
		}
	}
	return math.Min(score, 1.0)
}

// distinctModalities lists the modalities present in canonical order.
func distinctModalities(cluster []clusterEvent) []string {
	var present [3]bool
	for _, ev := range cluster {
		present[modalityRank(ev.modality)] = true
	}
	var out []string
	for i, name := range []string{ModalitySpeech, ModalityAudio, ModalityVision} {
		if present[i] {
			out = append(out, name)
		}
	}
	return out
}
