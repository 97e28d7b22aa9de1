package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

type dateKind int

const (
	dateNone dateKind = iota
	dateRecurring
	dateWeekly
	dateYear
	dateMonthDay
	dateRelative
	dateWeekday
)

type dateMatch struct {
	span
	kind    dateKind
	offset  int // days for relative phrases, weeks for weekly phrases
	weekday int
	year    int
	month   int
	day     int
	freq    rrule.Frequency
}

type dateFinder func(string) (dateMatch, bool)

// Earlier finders win ties on the same start offset.
var dateFinders = []dateFinder{
	findRecurring,
	findWeekly,
	findYearDate,
	findMonthDay,
	findRelative,
	findWeekday,
}

// findDate returns the leftmost date phrase in s.
func findDate(s string) (dateMatch, bool) {
	var (
		best  dateMatch
		found bool
	)
	for _, find := range dateFinders {
		candidate, ok := find(s)
		if !ok {
			continue
		}
		if !found || candidate.start < best.start {
			best = candidate
			found = true
		}
	}
	return best, found
}

func findRecurring(s string) (dateMatch, bool) {
	m, ok := findFirst(recurringPattern, s, nil)
	if !ok {
		return dateMatch{}, false
	}
	out := dateMatch{span: m.span, kind: dateRecurring}
	switch {
	case m.group(1) != "":
		out.freq = rrule.WEEKLY
		out.weekday = weekdayByChar[m.group(1)]
	case m.group(2) != "":
		out.freq = rrule.MONTHLY
		out.day, _ = strconv.Atoi(m.group(2))
	default:
		out.freq = rrule.DAILY
	}
	return out, true
}

func findWeekly(s string) (dateMatch, bool) {
	m, ok := findFirst(weeklyPattern, s, nil)
	if !ok {
		return dateMatch{}, false
	}
	weeks := 0
	switch m.group(1) {
	case "다음", "담":
		weeks = 1
	case "다다음":
		weeks = 2
	}
	return dateMatch{span: m.span, kind: dateWeekly, offset: weeks, weekday: weekdayByChar[m.group(2)]}, true
}

func findYearDate(s string) (dateMatch, bool) {
	m, ok := findFirst(yearDatePattern, s, nil)
	if !ok {
		return dateMatch{}, false
	}
	base := 1
	if m.group(1) == "" {
		base = 4
	}
	year, _ := strconv.Atoi(m.group(base))
	month, _ := strconv.Atoi(m.group(base + 1))
	day, _ := strconv.Atoi(m.group(base + 2))
	return dateMatch{span: m.span, kind: dateYear, year: year, month: month, day: day}, true
}

func findMonthDay(s string) (dateMatch, bool) {
	m, ok := findFirst(monthDayPattern, s, nil)
	if !ok {
		return dateMatch{}, false
	}
	month, _ := strconv.Atoi(m.group(1))
	day, _ := strconv.Atoi(m.group(2))
	return dateMatch{span: m.span, kind: dateMonthDay, month: month, day: day}, true
}

func findRelative(s string) (dateMatch, bool) {
	m, ok := findFirst(relativePattern, s, nil)
	if !ok {
		return dateMatch{}, false
	}
	days := 0
	switch word := m.group(0); {
	case word == "내일":
		days = 1
	case word == "모레" || strings.HasPrefix(word, "내일"):
		days = 2
	case word == "글피":
		days = 3
	}
	return dateMatch{span: m.span, kind: dateRelative, offset: days}, true
}

func findWeekday(s string) (dateMatch, bool) {
	m, ok := findFirst(weekdayPattern, s, nil)
	if !ok {
		return dateMatch{}, false
	}
	return dateMatch{span: m.span, kind: dateWeekday, weekday: weekdayByChar[m.group(1)]}, true
}

// resolve turns the matched phrase into a calendar day (midnight in the
// reference location). at is the extracted time of day, if any. Recurring
// phrases also return their RRULE body.
func (d dateMatch) resolve(found bool, reference time.Time, at *clockTime) (time.Time, string, error) {
	today := midnight(reference)
	if !found {
		return today, "", nil
	}

	switch d.kind {
	case dateRelative:
		return today.AddDate(0, 0, d.offset), "", nil
	case dateWeekly:
		weekStart := today.AddDate(0, 0, -int(today.Weekday()))
		return weekStart.AddDate(0, 0, d.weekday+7*d.offset), "", nil
	case dateWeekday:
		return nextWeekday(reference, time.Weekday(d.weekday), at), "", nil
	case dateYear:
		if !validDate(d.year, d.month, d.day) {
			return time.Time{}, "", invalidDate(d.year, d.month, d.day)
		}
		return time.Date(d.year, time.Month(d.month), d.day, 0, 0, 0, 0, reference.Location()), "", nil
	case dateMonthDay:
		return upcomingMonthDay(today, d.month, d.day)
	case dateRecurring:
		return d.firstOccurrence(reference, at)
	default:
		return today, "", nil
	}
}

// nextWeekday resolves a bare weekday to its next occurrence after reference.
// Today only counts when a time was given and that time is still ahead.
func nextWeekday(reference time.Time, weekday time.Weekday, at *clockTime) time.Time {
	today := midnight(reference)
	delta := (int(weekday) - int(today.Weekday()) + 7) % 7
	if delta == 0 && (at == nil || !at.on(today).After(reference)) {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

// upcomingMonthDay picks the first year, starting with today's, in which the
// month/day exists and is not already past.
func upcomingMonthDay(today time.Time, month, day int) (time.Time, string, error) {
	if !validDate(2000, month, day) {
		return time.Time{}, "", invalidDate(0, month, day)
	}
	for year := today.Year(); year <= today.Year()+8; year++ {
		if !validDate(year, month, day) {
			continue
		}
		candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, today.Location())
		if !candidate.Before(today) {
			return candidate, "", nil
		}
	}
	return time.Time{}, "", invalidDate(0, month, day)
}

func (d dateMatch) firstOccurrence(reference time.Time, at *clockTime) (time.Time, string, error) {
	start := midnight(reference)
	if at != nil {
		start = at.on(start)
	}

	opt := rrule.ROption{Freq: d.freq, Dtstart: start}
	switch d.freq {
	case rrule.WEEKLY:
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[d.weekday]}
	case rrule.MONTHLY:
		if d.day < 1 || d.day > 31 {
			return time.Time{}, "", invalidDate(0, 0, d.day)
		}
		opt.Bymonthday = []int{d.day}
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: recurrence: %v", ErrNoParse, err)
	}
	next := rule.After(reference, false)
	if next.IsZero() {
		return time.Time{}, "", fmt.Errorf("%w: recurrence has no upcoming occurrence", ErrNoParse)
	}
	return midnight(next.In(reference.Location())), rule.OrigOptions.RRuleString(), nil
}

var rruleWeekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

func invalidDate(year, month, day int) error {
	if year == 0 {
		return fmt.Errorf("%w: invalid date %d월 %d일", ErrNoParse, month, day)
	}
	return fmt.Errorf("%w: invalid date %04d-%02d-%02d", ErrNoParse, year, month, day)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
