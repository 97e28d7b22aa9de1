// Package schedule turns free-form Korean schedule phrases into structured
// calendar candidates anchored to a reference time.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoParse reports input without a resolvable date or time.
var ErrNoParse = errors.New("no schedule found")

// Schedule is one parsed calendar candidate.
type Schedule struct {
	Title        string     `json:"title"`
	Date         time.Time  `json:"date"`
	End          *time.Time `json:"end,omitempty"`
	HasTime      bool       `json:"has_time"`
	HasEndTime   bool       `json:"has_end_time"`
	Location     string     `json:"location,omitempty"`
	Confidence   float64    `json:"confidence"`
	Recurrence   string     `json:"recurrence,omitempty"`
	OriginalText string     `json:"original_text"`
}

// Normalizer rewrites input text before extraction.
type Normalizer interface {
	Normalize(text string) string
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(string) string

// Normalize calls f(text).
func (f NormalizerFunc) Normalize(text string) string {
	return f(text)
}

// Parser extracts schedules. The zero value parses without normalization.
type Parser struct {
	normalizer Normalizer
}

// New returns a parser that runs normalizer before extraction. A nil
// normalizer leaves input untouched.
func New(normalizer Normalizer) *Parser {
	return &Parser{normalizer: normalizer}
}

// Parse extracts a schedule with no normalization step.
func Parse(text string, reference time.Time) (Schedule, error) {
	return (*Parser)(nil).Parse(text, reference)
}

// Parse extracts the leftmost date and time phrases from text, resolves them
// against reference, and derives a title and optional location from what is
// left. It returns an error wrapping ErrNoParse when nothing resolves.
func (p *Parser) Parse(text string, reference time.Time) (Schedule, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Schedule{}, fmt.Errorf("%w: empty input", ErrNoParse)
	}

	normalized := raw
	if p != nil && p.normalizer != nil {
		normalized = strings.TrimSpace(p.normalizer.Normalize(raw))
	}

	work := newScratch(normalized)

	date, hasDate := findDate(work.String())
	if hasDate {
		work.blank(date.span)
	}

	clock, hasTime, err := findTime(work.String())
	if err != nil {
		return Schedule{}, err
	}
	if hasTime {
		work.blank(clock.span)
	}

	if !hasDate && !hasTime {
		return Schedule{}, fmt.Errorf("%w: no date or time phrase in %q", ErrNoParse, raw)
	}

	var at *clockTime
	if hasTime {
		at = &clock.from
		if clock.startNextDay {
			at = &lastMinute
		}
	}
	day, recurrence, err := date.resolve(hasDate, reference, at)
	if err != nil {
		return Schedule{}, err
	}

	result := Schedule{
		Date:         day,
		HasTime:      hasTime,
		Recurrence:   recurrence,
		OriginalText: raw,
	}
	if hasTime {
		startDay := day
		if clock.startNextDay {
			startDay = day.AddDate(0, 0, 1)
		}
		result.Date = clock.from.on(startDay)
		if clock.to != nil {
			endDay := startDay
			if clock.endNextDay {
				endDay = startDay.AddDate(0, 0, 1)
			}
			end := clock.to.on(endDay)
			result.End = &end
			result.HasEndTime = true
		}
	}

	location, locationSpan, hasLocation := findLocation(work.String())
	if hasLocation {
		work.blank(locationSpan)
		result.Location = location
	}

	result.Title = cleanTitle(work.String())
	if result.Title == "" {
		result.Title = raw
	}

	var matched []span
	if hasDate {
		matched = append(matched, date.span)
	}
	if hasTime {
		matched = append(matched, clock.span)
	}
	result.Confidence = score(signals{
		date:     hasDate,
		time:     hasTime,
		location: hasLocation,
		coverage: coverage(normalized, matched),
	})

	return result, nil
}

// lastMinute stands in for a midnight that ends the named day when deciding
// whether that day is still ahead of the reference.
var lastMinute = clockTime{hour: 23, minute: 59}

// IsNoParse reports whether err came from an input with nothing to schedule.
func IsNoParse(err error) bool {
	return errors.Is(err, ErrNoParse)
}
