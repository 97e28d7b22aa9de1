package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatFriendly(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	require.Equal(t, "오늘", FormatFriendly(at(2026, time.October, 14, 23, 0), reference))
	require.Equal(t, "내일", FormatFriendly(at(2026, time.October, 15, 0, 0), reference))
	require.Equal(t, "10월 20일", FormatFriendly(at(2026, time.October, 20, 9, 0), reference))
	require.Equal(t, "2027년 1월 3일", FormatFriendly(at(2027, time.January, 3, 9, 0), reference))
}

func TestFormatClock(t *testing.T) {
	require.Equal(t, "오전 12시", FormatClock(at(2026, time.October, 14, 0, 0)))
	require.Equal(t, "오전 9시", FormatClock(at(2026, time.October, 14, 9, 0)))
	require.Equal(t, "오후 12시", FormatClock(at(2026, time.October, 14, 12, 0)))
	require.Equal(t, "오후 3시 30분", FormatClock(at(2026, time.October, 14, 15, 30)))
}

func TestDescribe(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	got := mustParse(t, "내일 오후 3시 회의", reference)
	require.Equal(t, "내일 오후 3시 회의", got.Describe(reference))

	allDay := mustParse(t, "12월 25일 파티", reference)
	require.Equal(t, "12월 25일 파티", allDay.Describe(reference))
}

func TestInferHour(t *testing.T) {
	require.Equal(t, 15, inferHour(3, ""))
	require.Equal(t, 9, inferHour(9, ""))
	require.Equal(t, 0, inferHour(0, ""))
	require.Equal(t, 12, inferHour(12, "오후"))
	require.Equal(t, 0, inferHour(12, "오전"))
	require.Equal(t, 13, inferHour(1, "점심"))
	require.Equal(t, 11, inferHour(11, "점심"))
	require.Equal(t, 22, inferHour(10, "밤"))
	require.Equal(t, 24, inferHour(12, "밤"))
	require.Equal(t, 12, inferHour(12, "저녁"))
}
