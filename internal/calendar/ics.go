package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

const (
	productID = "-//rbright//dpt//KO"
	icalUTC   = "20060102T150405Z"
)

// WriteICS renders events as a VCALENDAR stamped at now.
func WriteICS(w io.Writer, name string, events []Event, now time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)

	for _, event := range events {
		ve := cal.AddEvent(event.ID)
		ve.SetDtStampTime(now)
		if !event.Created.IsZero() {
			ve.SetCreatedTime(event.Created)
		}
		ve.SetSummary(event.Title)
		if event.Location != "" {
			ve.SetLocation(event.Location)
		}
		if event.Source != "" {
			ve.SetDescription(event.Source)
		}
		if event.AllDay {
			ve.SetAllDayStartAt(event.Start)
			if !event.End.IsZero() {
				ve.SetAllDayEndAt(event.End)
			}
		} else {
			ve.SetStartAt(event.Start)
			if !event.End.IsZero() {
				ve.SetEndAt(event.End)
			}
		}
		if event.RRule != "" {
			ve.AddRrule(strings.TrimPrefix(event.RRule, "RRULE:"))
		}
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("write ics: %w", err)
	}
	return nil
}

// ReadICS parses VEVENTs back into events. Events without a UID or start
// are skipped.
func ReadICS(r io.Reader) ([]Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	var events []Event
	for _, ve := range cal.Events() {
		event, ok := readEvent(ve)
		if ok {
			events = append(events, event)
		}
	}
	return events, nil
}

func readEvent(ve *ical.VEvent) (Event, bool) {
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return Event{}, false
	}
	event := Event{ID: uid.Value}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		event.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		event.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		event.Source = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		event.RRule = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyCreated); p != nil {
		if created, err := time.Parse(icalUTC, p.Value); err == nil {
			event.Created = created
		}
	}

	if start := ve.GetProperty(ical.ComponentPropertyDtStart); start != nil && !strings.Contains(start.Value, "T") {
		event.AllDay = true
		begin, err := ve.GetAllDayStartAt()
		if err != nil {
			return Event{}, false
		}
		event.Start = begin
		if end, err := ve.GetAllDayEndAt(); err == nil {
			event.End = end
		}
		return event, true
	}

	begin, err := ve.GetStartAt()
	if err != nil {
		return Event{}, false
	}
	event.Start = begin
	if end, err := ve.GetEndAt(); err == nil {
		event.End = end
	}
	return event, true
}
