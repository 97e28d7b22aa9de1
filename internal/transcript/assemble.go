// Package transcript joins recognized speech segments and folds text for
// phrase matching.
package transcript

import (
	"strings"
	"unicode"
)

// Options controls transcript assembly formatting behavior.
type Options struct {
	TrailingSpace bool
}

// Assemble joins final ASR segments with single spaces.
func Assemble(finalSegments []string, opts Options) string {
	if len(finalSegments) == 0 {
		return ""
	}

	normalized := Clean(strings.Join(finalSegments, " "))
	if normalized == "" {
		return ""
	}

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

// Clean collapses runs of whitespace and trims the ends.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Fold lowercases text and drops whitespace and punctuation, so
// "헤이, DPT!" and "헤이dpt" compare equal.
func Fold(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
