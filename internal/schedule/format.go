package schedule

import (
	"fmt"
	"time"
)

// FormatFriendly renders date as spoken Korean relative to reference:
// 오늘, 내일, "M월 D일", or "YYYY년 M월 D일" outside the reference year.
// The output parses back to the same calendar day.
func FormatFriendly(date time.Time, reference time.Time) string {
	date = date.In(reference.Location())
	today := midnight(reference)
	day := midnight(date)

	switch {
	case day.Equal(today):
		return "오늘"
	case day.Equal(today.AddDate(0, 0, 1)):
		return "내일"
	case day.Year() != today.Year():
		return fmt.Sprintf("%d년 %d월 %d일", day.Year(), int(day.Month()), day.Day())
	default:
		return fmt.Sprintf("%d월 %d일", int(day.Month()), day.Day())
	}
}

// FormatClock renders the time of day as "오전 9시" or "오후 3시 30분".
func FormatClock(t time.Time) string {
	meridiem := "오전"
	hour := t.Hour()
	if hour >= 12 {
		meridiem = "오후"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	if t.Minute() == 0 {
		return fmt.Sprintf("%s %d시", meridiem, hour)
	}
	return fmt.Sprintf("%s %d시 %d분", meridiem, hour, t.Minute())
}

// Describe renders a short spoken summary such as "내일 오후 3시 회의".
func (s Schedule) Describe(reference time.Time) string {
	out := FormatFriendly(s.Date, reference)
	if s.HasTime {
		out += " " + FormatClock(s.Date)
	}
	return out + " " + s.Title
}
