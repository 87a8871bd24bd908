package highlight

import "strings"

// Classifier matches utterance text against the keyword tables that drive
// speech candidate generation and context bonuses. Implementations must
// be safe for concurrent use.
type Classifier interface {
	// IntensityScore counts matched intensity keywords.
	IntensityScore(text string) int
	// ExcitementScore counts matched excitement phrases, weighted.
	ExcitementScore(text string) int
	// HasSuperlative reports whether text contains a superlative cue.
	HasSuperlative(text string) bool
	// HasContextCue reports whether text contains an explicit
	// clip-worthiness cue.
	HasContextCue(text string) bool
}

const excitementWeight = 2

// KeywordSet is the table-driven Classifier. Matching is case-insensitive
// substring containment, so multi-word phrases are supported.
type KeywordSet struct {
	Intensity   []string
	Excitement  []string
	Superlative []string
	ContextCue  []string
}

// DefaultKeywords returns the built-in tables tuned for live-stream
// commentary.
func DefaultKeywords() KeywordSet {
	return KeywordSet{
		Intensity: []string{
			"wow", "amazing", "incredible", "perfect", "insane", "unbelievable",
			"clutch", "epic", "awesome", "brilliant", "outstanding",
		},
		Excitement: []string{
			"oh my god", "holy", "damn", "shit", "fuck", "yes!", "no way",
			"are you kidding", "you've got to be",
		},
		Superlative: []string{
			"amazing", "incredible", "wow", "perfect", "insane",
		},
		ContextCue: []string{
			"clip", "highlight", "amazing", "incredible", "perfect",
		},
	}
}

func (k KeywordSet) IntensityScore(text string) int {
	return countMatches(text, k.Intensity)
}

func (k KeywordSet) ExcitementScore(text string) int {
	return countMatches(text, k.Excitement) * excitementWeight
}

func (k KeywordSet) HasSuperlative(text string) bool {
	return anyMatch(text, k.Superlative)
}

func (k KeywordSet) HasContextCue(text string) bool {
	return anyMatch(text, k.ContextCue)
}

func countMatches(text string, words []string) int {
	text = strings.ToLower(text)
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func anyMatch(text string, words []string) bool {
	text = strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
