package schedule

import "math"

const (
	dateWeight     = 0.35
	timeWeight     = 0.35
	locationWeight = 0.05
	coverageWeight = 0.25
)

type signals struct {
	date     bool
	time     bool
	location bool
	coverage float64
}

// score weighs how much of the input was understood. An explicit time always
// adds more than the coverage term can take away, so date+time outranks the
// same text without its time.
func score(s signals) float64 {
	total := 0.0
	if s.date {
		total += dateWeight
	}
	if s.time {
		total += timeWeight
	}
	if s.location {
		total += locationWeight
	}
	total += coverageWeight * s.coverage
	total = math.Max(0, math.Min(1, total))
	return math.Round(total*1000) / 1000
}

// coverage is the share of non-space runes in text that fall inside spans.
func coverage(text string, spans []span) float64 {
	total := countLetters(text)
	if total == 0 {
		return 0
	}
	matched := 0
	for _, sp := range spans {
		matched += countLetters(text[sp.start:sp.end])
	}
	return math.Min(1, float64(matched)/float64(total))
}
