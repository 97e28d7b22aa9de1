package voice

import (
	"strings"
	"unicode/utf8"

	"github.com/rbright/dpt/internal/transcript"
)

// DefaultWakePhrases is the stock phrase list. The short entries favor
// recall over precision; raise the detector threshold to tighten it.
var DefaultWakePhrases = []string{"헤이디피티", "헤이dpt", "디피티", "dpt", "야", "저기"}

// WakeMatch describes the phrase that opened the gate.
type WakeMatch struct {
	Phrase string
	// Score is the folded phrase length over the folded utterance length.
	Score float64
}

// WakeDetector matches folded utterances against a phrase set.
type WakeDetector struct {
	phrases   []string
	threshold float64
}

// NewWakeDetector folds phrases once. A threshold of zero accepts any
// substring hit.
func NewWakeDetector(phrases []string, threshold float64) *WakeDetector {
	folded := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases))
	for _, phrase := range phrases {
		key := transcript.Fold(phrase)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		folded = append(folded, key)
	}
	return &WakeDetector{phrases: folded, threshold: threshold}
}

// Phrases returns the folded phrase list.
func (d *WakeDetector) Phrases() []string {
	return append([]string(nil), d.phrases...)
}

// Match returns the best-scoring phrase contained in text whose score
// reaches the threshold.
func (d *WakeDetector) Match(text string) (WakeMatch, bool) {
	folded := transcript.Fold(text)
	if folded == "" {
		return WakeMatch{}, false
	}
	total := float64(utf8.RuneCountInString(folded))

	var best WakeMatch
	found := false
	for _, phrase := range d.phrases {
		if !strings.Contains(folded, phrase) {
			continue
		}
		score := float64(utf8.RuneCountInString(phrase)) / total
		if score < d.threshold {
			continue
		}
		if !found || score > best.Score {
			best = WakeMatch{Phrase: phrase, Score: score}
			found = true
		}
	}
	return best, found
}
