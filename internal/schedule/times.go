package schedule

import (
	"fmt"
	"strconv"
	"time"
)

type clockTime struct {
	hour   int
	minute int
}

// on places c on the calendar day of day.
func (c clockTime) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, day.Location())
}

type timeMatch struct {
	span
	from       clockTime
	to         *clockTime
	endNextDay bool
	// startNextDay marks 밤 12시: the midnight that ends the named day.
	startNextDay bool
}

// timeFinder reports the first phrase its pattern accepts. When the phrase
// names an impossible clock reading it still returns ok with the phrase span
// and an ErrNoParse error, so the caller can decide whether it was selected.
type timeFinder func(string) (timeMatch, bool, error)

// Earlier finders win ties on the same start offset.
var timeFinders = []timeFinder{
	findTimeRange,
	findMeridiemTime,
	findNoonTime,
	findColonTime,
	findHourTime,
}

// findTime returns the leftmost time-of-day phrase in s. Only the selected
// phrase is validated: an impossible reading there is ErrNoParse, while one
// further right is ignored.
func findTime(s string) (timeMatch, bool, error) {
	var (
		best    timeMatch
		bestErr error
		found   bool
	)
	for _, find := range timeFinders {
		candidate, ok, err := find(s)
		if !ok {
			continue
		}
		if !found || candidate.span.start < best.span.start {
			best, bestErr, found = candidate, err, true
		}
	}
	if bestErr != nil {
		return timeMatch{}, false, bestErr
	}
	return best, found, nil
}

func findTimeRange(s string) (timeMatch, bool, error) {
	m, ok := findFirst(rangePattern, s, func(m match, s string) bool {
		if !notDuration(m, s) {
			return false
		}
		// A bare "1-2" is a count, not a time range.
		return m.group(1) != "" || m.group(7) != "" ||
			m.group(3) != "" || m.group(6) != "" ||
			m.group(9) != "" || m.group(12) != ""
	})
	if !ok {
		return timeMatch{}, false, nil
	}

	startRaw, startMinute, err := clockParts(m.group(2), m.group(4), m.group(5), m.group(6))
	if err != nil {
		return timeMatch{span: m.span}, true, err
	}
	endRaw, endMinute, err := clockParts(m.group(8), m.group(10), m.group(11), m.group(12))
	if err != nil {
		return timeMatch{span: m.span}, true, err
	}

	startHour := inferHour(startRaw, m.group(1))
	startNextDay := false
	if startHour == 24 {
		startHour, startNextDay = 0, true
	}
	endHour := endRaw
	if meridiem := m.group(7); meridiem != "" {
		endHour = inferHour(endRaw, meridiem)
		if endHour < startHour {
			endHour += 24
		}
	} else if startNextDay {
		endHour = endRaw
	} else {
		endHour = inferHour(endRaw, "")
		if endHour < startHour {
			endHour += 12
		}
	}

	start := clockTime{hour: startHour, minute: startMinute}
	if err := start.validate(); err != nil {
		return timeMatch{span: m.span}, true, err
	}

	nextDay := false
	if endHour >= 24 {
		endHour -= 24
		nextDay = true
	}
	end := clockTime{hour: endHour, minute: endMinute}
	if err := end.validate(); err != nil {
		return timeMatch{span: m.span}, true, err
	}

	return timeMatch{span: m.span, from: start, to: &end, endNextDay: nextDay, startNextDay: startNextDay}, true, nil
}

func findMeridiemTime(s string) (timeMatch, bool, error) {
	m, ok := findFirst(meridiemPattern, s, notDuration)
	if !ok {
		return timeMatch{}, false, nil
	}
	hour, minute, err := clockParts(m.group(2), m.group(3), m.group(4), "")
	if err != nil {
		return timeMatch{span: m.span}, true, err
	}
	return single(m.span, inferHour(hour, m.group(1)), minute)
}

func findNoonTime(s string) (timeMatch, bool, error) {
	m, ok := findFirst(noonPattern, s, nil)
	if !ok {
		return timeMatch{}, false, nil
	}
	hour := 12
	if m.group(0) == "자정" {
		hour = 0
	}
	return single(m.span, hour, 0)
}

func findColonTime(s string) (timeMatch, bool, error) {
	m, ok := findFirst(colonPattern, s, nil)
	if !ok {
		return timeMatch{}, false, nil
	}
	hour, minute, err := clockParts(m.group(2), "", "", m.group(3))
	if err != nil {
		return timeMatch{span: m.span}, true, err
	}
	if meridiem := m.group(1); meridiem != "" {
		hour = inferHour(hour, meridiem)
	}
	return single(m.span, hour, minute)
}

func findHourTime(s string) (timeMatch, bool, error) {
	m, ok := findFirst(hourPattern, s, notDuration)
	if !ok {
		return timeMatch{}, false, nil
	}
	hour, minute, err := clockParts(m.group(1), m.group(2), m.group(3), "")
	if err != nil {
		return timeMatch{span: m.span}, true, err
	}
	return single(m.span, inferHour(hour, ""), minute)
}

func single(sp span, hour int, minute int) (timeMatch, bool, error) {
	nextDay := false
	if hour == 24 {
		hour, nextDay = 0, true
	}
	c := clockTime{hour: hour, minute: minute}
	if err := c.validate(); err != nil {
		return timeMatch{span: sp}, true, err
	}
	return timeMatch{span: sp, from: c, startNextDay: nextDay}, true, nil
}

// clockParts reads the hour plus whichever minute form was spoken.
func clockParts(hourText, minuteText, half, colonMinute string) (int, int, error) {
	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: hour %q", ErrNoParse, hourText)
	}
	minute := 0
	switch {
	case minuteText != "":
		minute, err = strconv.Atoi(minuteText)
	case colonMinute != "":
		minute, err = strconv.Atoi(colonMinute)
	case half != "":
		minute = 30
	}
	if err != nil {
		return 0, 0, fmt.Errorf("%w: minute in %q", ErrNoParse, hourText)
	}
	return hour, minute, nil
}

func (c clockTime) validate() error {
	if c.hour < 0 || c.hour > 23 || c.minute < 0 || c.minute > 59 {
		return fmt.Errorf("%w: invalid time %02d:%02d", ErrNoParse, c.hour, c.minute)
	}
	return nil
}

// inferHour maps a spoken hour to 24-hour form. Without a meridiem word,
// hours 1-6 are read as afternoon since meetings rarely start before 7am.
// 밤 12시 returns 24, the midnight at the end of the day.
func inferHour(hour int, meridiem string) int {
	switch meridiem {
	case "오후", "저녁", "밤":
		if meridiem == "밤" && hour == 12 {
			return 24
		}
		if hour < 12 {
			return hour + 12
		}
		return hour
	case "오전", "아침":
		if hour == 12 {
			return 0
		}
		return hour
	case "점심":
		if hour < 10 {
			return hour + 12
		}
		return hour
	case "":
		if hour > 0 && hour < 7 {
			return hour + 12
		}
		return hour
	default:
		return hour
	}
}
