package calendar

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/dpt/internal/schedule"
	"github.com/stretchr/testify/require"
)

var seoul = time.FixedZone("KST", 9*60*60)

func TestFromScheduleTimedWithoutEndUsesDefaultDuration(t *testing.T) {
	start := time.Date(2026, 10, 16, 15, 0, 0, 0, seoul)
	event := FromSchedule(schedule.Schedule{
		Title:        "회의",
		Date:         start,
		HasTime:      true,
		Location:     "3층 회의실",
		OriginalText: "내일 오후 3시 3층 회의실에서 회의",
	}, time.Hour)

	require.Equal(t, "회의", event.Title)
	require.Equal(t, start, event.Start)
	require.Equal(t, start.Add(time.Hour), event.End)
	require.False(t, event.AllDay)
	require.Equal(t, "3층 회의실", event.Location)
	require.Equal(t, "내일 오후 3시 3층 회의실에서 회의", event.Source)
}

func TestFromScheduleKeepsExplicitEnd(t *testing.T) {
	start := time.Date(2026, 10, 16, 14, 0, 0, 0, seoul)
	end := start.Add(2 * time.Hour)
	event := FromSchedule(schedule.Schedule{Title: "워크숍", Date: start, HasTime: true, End: &end, HasEndTime: true}, time.Hour)
	require.Equal(t, end, event.End)
}

func TestFromScheduleDateOnlyIsAllDay(t *testing.T) {
	day := time.Date(2026, 10, 20, 0, 0, 0, 0, seoul)
	event := FromSchedule(schedule.Schedule{Title: "휴가", Date: day, Recurrence: "FREQ=WEEKLY;BYDAY=TU"}, time.Hour)
	require.True(t, event.AllDay)
	require.Equal(t, day.AddDate(0, 0, 1), event.End)
	require.Equal(t, "FREQ=WEEKLY;BYDAY=TU", event.RRule)
}

func TestAddAssignsIDAndSorts(t *testing.T) {
	cal, err := Open(Options{})
	require.NoError(t, err)
	ids := []string{"b", "a"}
	cal.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	later := time.Date(2026, 10, 17, 9, 0, 0, 0, seoul)
	earlier := time.Date(2026, 10, 16, 9, 0, 0, 0, seoul)

	first, err := cal.Add(context.Background(), Event{Title: "나중", Start: later})
	require.NoError(t, err)
	require.Equal(t, "b", first.ID)
	require.False(t, first.Created.IsZero())

	_, err = cal.Add(context.Background(), Event{Title: "먼저", Start: earlier})
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 2)
	require.Equal(t, "먼저", events[0].Title)
	require.Equal(t, "나중", events[1].Title)

	require.Len(t, cal.Between(earlier, later), 1)
	require.Equal(t, "dpt", cal.Name())
}

func TestAddRejectsInvalidEvents(t *testing.T) {
	cal, err := Open(Options{})
	require.NoError(t, err)

	start := time.Date(2026, 10, 16, 9, 0, 0, 0, seoul)
	_, err = cal.Add(context.Background(), Event{Start: start})
	require.ErrorContains(t, err, "title")

	_, err = cal.Add(context.Background(), Event{Title: "x"})
	require.ErrorContains(t, err, "start")

	_, err = cal.Add(context.Background(), Event{Title: "x", Start: start, End: start.Add(-time.Minute)})
	require.ErrorContains(t, err, "ends before")
	require.Empty(t, cal.Events())
}

func TestRemove(t *testing.T) {
	cal, err := Open(Options{})
	require.NoError(t, err)

	event, err := cal.Add(context.Background(), Event{Title: "회의", Start: time.Now()})
	require.NoError(t, err)

	removed, err := cal.Remove(context.Background(), event.ID)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = cal.Remove(context.Background(), event.ID)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestICSFilePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dpt.ics")

	cal, err := Open(Options{Path: path, Name: "업무"})
	require.NoError(t, err)

	start := time.Date(2026, 10, 16, 15, 0, 0, 0, seoul)
	timed, err := cal.Add(context.Background(), Event{
		Title:    "팀 회의",
		Start:    start,
		End:      start.Add(time.Hour),
		Location: "본관",
		Source:   "내일 오후 3시 본관에서 팀 회의",
	})
	require.NoError(t, err)

	day := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	_, err = cal.Add(context.Background(), Event{
		Title:  "운동",
		Start:  day,
		End:    day.AddDate(0, 0, 1),
		AllDay: true,
		RRule:  "FREQ=WEEKLY;BYDAY=TU",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	require.Contains(t, body, "BEGIN:VCALENDAR")
	require.Contains(t, body, "X-WR-CALNAME:업무")
	require.Contains(t, body, "RRULE:FREQ=WEEKLY;BYDAY=TU")

	reopened, err := Open(Options{Path: path})
	require.NoError(t, err)
	events := reopened.Events()
	require.Len(t, events, 2)

	require.Equal(t, timed.ID, events[0].ID)
	require.Equal(t, "팀 회의", events[0].Title)
	require.True(t, events[0].Start.Equal(start))
	require.True(t, events[0].End.Equal(start.Add(time.Hour)))
	require.Equal(t, "본관", events[0].Location)
	require.Equal(t, "내일 오후 3시 본관에서 팀 회의", events[0].Source)
	require.False(t, events[0].AllDay)

	require.Equal(t, "운동", events[1].Title)
	require.True(t, events[1].AllDay)
	require.Equal(t, "FREQ=WEEKLY;BYDAY=TU", events[1].RRule)
	require.Equal(t, 20, events[1].Start.Day())
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ics")
	require.NoError(t, os.WriteFile(path, []byte("this is not a calendar\n"), 0o600))

	_, err := Open(Options{Path: path})
	require.Error(t, err)
	require.Contains(t, err.Error(), path)
}

func TestWriteICSEmptyCalendar(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, "dpt", nil, time.Now()))
	require.True(t, strings.HasPrefix(buf.String(), "BEGIN:VCALENDAR"))
	require.Contains(t, buf.String(), "PRODID:"+productID)
	require.NotContains(t, buf.String(), "BEGIN:VEVENT")
}
