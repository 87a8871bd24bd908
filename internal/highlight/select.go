package highlight

import (
	"math"
	"sort"
)

// Candidates scoring at or below this floor never reach selection.
const minSelectableScore = 0.1

// selectSegments filters scored candidates by duration bounds and the
// score floor, then greedily accepts them in descending score order,
// rejecting any segment whose intersection with an accepted one exceeds
// half of either segment's duration. Accepted segments are returned in
// start-time order.
func selectSegments(scored []Scored, minDuration, maxDuration float64) []Scored {
	eligible := make([]Scored, 0, len(scored))
	for _, s := range scored {
		if s.Duration < minDuration || s.Duration > maxDuration || s.Score <= minSelectableScore {
			continue
		}
		eligible = append(eligible, s)
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.Duration != b.Duration {
			return a.Duration < b.Duration
		}
		return a.Type < b.Type
	})

	var accepted []Scored
	for _, cand := range eligible {
		if conflicts(cand, accepted) {
			continue
		}
		accepted = append(accepted, cand)
	}

	sort.Slice(accepted, func(i, j int) bool {
		a, b := accepted[i], accepted[j]
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.Duration != b.Duration {
			return a.Duration < b.Duration
		}
		return a.Score > b.Score
	})
	return accepted
}

func conflicts(c Scored, accepted []Scored) bool {
	for _, ex := range accepted {
		ov := overlapDuration(c.StartTime, c.End(), ex.StartTime, ex.End())
		if ov <= 0 {
			continue
		}
		if ov/c.Duration > 0.5 || ov/ex.Duration > 0.5 {
			return true
		}
	}
	return false
}

func overlapDuration(aStart, aEnd, bStart, bEnd float64) float64 {
	return math.Max(0, math.Min(aEnd, bEnd)-math.Max(aStart, bStart))
}
