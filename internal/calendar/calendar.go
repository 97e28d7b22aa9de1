// Package calendar stores events created from parsed schedules and renders
// them as an iCalendar feed.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/dpt/internal/schedule"
)

// Event is one calendar entry.
type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"all_day"`
	Location string    `json:"location,omitempty"`
	RRule    string    `json:"rrule,omitempty"`
	Source   string    `json:"source,omitempty"`
	Created  time.Time `json:"created"`
}

// FromSchedule converts a parsed schedule into an event. Timed schedules
// without an end last defaultDuration; dateless-time schedules become
// all-day events on their date.
func FromSchedule(s schedule.Schedule, defaultDuration time.Duration) Event {
	event := Event{
		Title:    s.Title,
		Start:    s.Date,
		Location: s.Location,
		RRule:    s.Recurrence,
		Source:   s.OriginalText,
	}
	switch {
	case s.HasTime && s.End != nil:
		event.End = *s.End
	case s.HasTime:
		event.End = s.Date.Add(defaultDuration)
	default:
		event.AllDay = true
		event.End = s.Date.AddDate(0, 0, 1)
	}
	return event
}

// Options configures a Calendar.
type Options struct {
	// Path is an optional .ics file that is loaded on open and rewritten
	// after every change.
	Path   string
	Name   string
	Logger *slog.Logger
}

// Calendar is an in-memory event list with optional ICS persistence.
type Calendar struct {
	path   string
	name   string
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu     sync.RWMutex
	events []Event
}

// Open creates a calendar and loads any events already in opts.Path.
func Open(opts Options) (*Calendar, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "dpt"
	}
	c := &Calendar{
		path:   strings.TrimSpace(opts.Path),
		name:   name,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	if c.path == "" {
		return c, nil
	}

	file, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("open calendar %q: %w", c.path, err)
	}
	defer file.Close()

	events, err := ReadICS(file)
	if err != nil {
		return nil, fmt.Errorf("read calendar %q: %w", c.path, err)
	}
	c.events = events
	c.sortLocked()
	return c, nil
}

// Name returns the calendar display name.
func (c *Calendar) Name() string {
	return c.name
}

// Add assigns an ID and creation time, stores the event, and persists the
// calendar when a path is configured.
func (c *Calendar) Add(_ context.Context, event Event) (Event, error) {
	if strings.TrimSpace(event.Title) == "" {
		return Event{}, fmt.Errorf("calendar event title is required")
	}
	if event.Start.IsZero() {
		return Event{}, fmt.Errorf("calendar event start is required")
	}
	if !event.End.IsZero() && event.End.Before(event.Start) {
		return Event{}, fmt.Errorf("calendar event ends before it starts")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if event.ID == "" {
		event.ID = c.newID()
	}
	if event.Created.IsZero() {
		event.Created = c.now()
	}
	c.events = append(c.events, event)
	c.sortLocked()

	if err := c.persistLocked(); err != nil {
		c.removeLocked(event.ID)
		return Event{}, err
	}
	c.logger.Info("calendar event added", "id", event.ID, "title", event.Title, "start", event.Start)
	return event, nil
}

// Remove deletes an event by ID. It reports whether one was removed.
func (c *Calendar) Remove(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.removeLocked(id) {
		return false, nil
	}
	return true, c.persistLocked()
}

// Events returns all events ordered by start time.
func (c *Calendar) Events() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Event(nil), c.events...)
}

// Between returns events starting in [from, to).
func (c *Calendar) Between(from, to time.Time) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Event
	for _, event := range c.events {
		if !event.Start.Before(from) && event.Start.Before(to) {
			out = append(out, event)
		}
	}
	return out
}

func (c *Calendar) sortLocked() {
	sort.SliceStable(c.events, func(i, j int) bool {
		return c.events[i].Start.Before(c.events[j].Start)
	})
}

func (c *Calendar) removeLocked(id string) bool {
	for i, event := range c.events {
		if event.ID == id {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return true
		}
	}
	return false
}

// persistLocked rewrites the ICS file through a temp file and rename.
func (c *Calendar) persistLocked() error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create calendar dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".dpt-calendar-*.ics")
	if err != nil {
		return fmt.Errorf("create calendar temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteICS(tmp, c.name, c.events, c.now()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close calendar temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace calendar %q: %w", c.path, err)
	}
	return nil
}
