package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("KST", 9*60*60)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, kst)
}

func mustParse(t *testing.T, text string, reference time.Time) Schedule {
	t.Helper()
	got, err := Parse(text, reference)
	require.NoError(t, err, text)
	return got
}

func TestParseBareWeekdayResolvesToNextOccurrence(t *testing.T) {
	wednesday := at(2026, time.October, 14, 10, 0)
	require.Equal(t, time.Wednesday, wednesday.Weekday())

	got := mustParse(t, "화요일 3시 회의", wednesday)
	require.Equal(t, at(2026, time.October, 20, 15, 0), got.Date)
	require.True(t, got.HasTime)
	require.Equal(t, "회의", got.Title)
	require.Equal(t, 6, int(got.Date.Sub(at(2026, time.October, 14, 15, 0)).Hours()/24))
}

func TestParseBareWeekdayTodayOnlyWhenTimeStillAhead(t *testing.T) {
	tuesday := at(2026, time.October, 13, 10, 0)
	require.Equal(t, time.Tuesday, tuesday.Weekday())

	later := mustParse(t, "화요일 3시 회의", tuesday)
	require.Equal(t, at(2026, time.October, 13, 15, 0), later.Date)

	passed := mustParse(t, "화요일 9시 회의", tuesday)
	require.Equal(t, at(2026, time.October, 20, 9, 0), passed.Date)

	allDay := mustParse(t, "화요일 회의", tuesday)
	require.Equal(t, at(2026, time.October, 20, 0, 0), allDay.Date)
	require.False(t, allDay.HasTime)
}

func TestParseTodayAfternoonSeminar(t *testing.T) {
	monday := at(2026, time.October, 12, 9, 0)
	require.Equal(t, time.Monday, monday.Weekday())

	got := mustParse(t, "오늘 오후 2시 세미나", monday)
	require.Equal(t, at(2026, time.October, 12, 14, 0), got.Date)
	require.True(t, got.HasTime)
	require.Contains(t, got.Title, "세미나")
	require.NotContains(t, got.Title, "오늘")
	require.NotContains(t, got.Title, "2시")
	require.Equal(t, "오늘 오후 2시 세미나", got.OriginalText)
}

func TestParseWithoutDateOrTimeIsNoParse(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	for _, text := range []string{"", "   ", "회의 준비하기", "팀 회식 장소 알아보기", "2시간 회의"} {
		_, err := Parse(text, reference)
		require.Error(t, err, text)
		require.True(t, IsNoParse(err), text)
	}
}

func TestParseImplausibleDateIsNoParse(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	for _, text := range []string{"2월 30일 회의", "13월 1일 회의", "2026년 4월 31일 회의", "4/31 회의", "25시 회의", "오후 3시 75분 회의"} {
		_, err := Parse(text, reference)
		require.ErrorIs(t, err, ErrNoParse, text)
	}
}

func TestParseValidatesOnlySelectedTime(t *testing.T) {
	monday := at(2026, time.October, 12, 9, 0)

	got := mustParse(t, "내일 오후 3시 회의, 예산 99:99", monday)
	require.Equal(t, at(2026, time.October, 13, 15, 0), got.Date)
	require.True(t, got.HasTime)

	_, err := Parse("예산 99:99 보고 오후 3시", monday)
	require.ErrorIs(t, err, ErrNoParse)
}

func TestParseNightTwelveIsFollowingMidnight(t *testing.T) {
	monday := at(2026, time.October, 12, 9, 0)

	tonight := mustParse(t, "밤 12시 서버 점검", monday)
	require.Equal(t, at(2026, time.October, 13, 0, 0), tonight.Date)
	require.Equal(t, "서버 점검", tonight.Title)

	tomorrow := mustParse(t, "내일 밤 12시 배포", monday)
	require.Equal(t, at(2026, time.October, 14, 0, 0), tomorrow.Date)

	window := mustParse(t, "밤 12시부터 2시까지 점검", monday)
	require.Equal(t, at(2026, time.October, 13, 0, 0), window.Date)
	require.NotNil(t, window.End)
	require.Equal(t, at(2026, time.October, 13, 2, 0), *window.End)

	tuesday := at(2026, time.October, 13, 10, 0)
	sameNight := mustParse(t, "화요일 밤 12시 백업", tuesday)
	require.Equal(t, at(2026, time.October, 14, 0, 0), sameNight.Date)
}

func TestParseRelativeDays(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	tests := []struct {
		text string
		want time.Time
	}{
		{text: "오늘 회의", want: at(2026, time.October, 14, 0, 0)},
		{text: "내일 회의", want: at(2026, time.October, 15, 0, 0)},
		{text: "모레 회의", want: at(2026, time.October, 16, 0, 0)},
		{text: "내일모레 회의", want: at(2026, time.October, 16, 0, 0)},
		{text: "글피 회의", want: at(2026, time.October, 17, 0, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got := mustParse(t, tc.text, reference)
			require.Equal(t, tc.want, got.Date)
			require.False(t, got.HasTime)
			require.Equal(t, "회의", got.Title)
		})
	}
}

func TestParseWeeklyPhrases(t *testing.T) {
	wednesday := at(2026, time.October, 14, 10, 0)
	tests := []struct {
		text string
		want time.Time
	}{
		{text: "이번주 금요일 회식", want: at(2026, time.October, 16, 0, 0)},
		{text: "다음주 화요일 회의", want: at(2026, time.October, 20, 0, 0)},
		{text: "다음 주 화요일 회의", want: at(2026, time.October, 20, 0, 0)},
		{text: "담주 수요일 회의", want: at(2026, time.October, 21, 0, 0)},
		{text: "다다음주 월요일 회의", want: at(2026, time.October, 26, 0, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got := mustParse(t, tc.text, wednesday)
			require.Equal(t, tc.want, got.Date)
		})
	}
}

func TestParseAbsoluteDates(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	tests := []struct {
		text string
		want time.Time
	}{
		{text: "12월 25일 파티", want: at(2026, time.December, 25, 0, 0)},
		{text: "12/25 파티", want: at(2026, time.December, 25, 0, 0)},
		{text: "12.25 파티", want: at(2026, time.December, 25, 0, 0)},
		{text: "10월 14일 파티", want: at(2026, time.October, 14, 0, 0)},
		{text: "10월 5일 파티", want: at(2027, time.October, 5, 0, 0)},
		{text: "2월 29일 파티", want: at(2028, time.February, 29, 0, 0)},
		{text: "2027년 3월 1일 파티", want: at(2027, time.March, 1, 0, 0)},
		{text: "2026-11-03 파티", want: at(2026, time.November, 3, 0, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got := mustParse(t, tc.text, reference)
			require.Equal(t, tc.want, got.Date)
			require.Equal(t, "파티", got.Title)
		})
	}
}

func TestParseTimesOfDay(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	tests := []struct {
		text      string
		wantHour  int
		wantMin   int
		wantTitle string
	}{
		{text: "내일 3시 회의", wantHour: 15, wantTitle: "회의"},
		{text: "내일 9시 회의", wantHour: 9, wantTitle: "회의"},
		{text: "내일 12시 회의", wantHour: 12, wantTitle: "회의"},
		{text: "내일 아침 8시 조깅", wantHour: 8, wantTitle: "조깅"},
		{text: "내일 오전 12시 배포", wantHour: 0, wantTitle: "배포"},
		{text: "내일 점심 12시 약속", wantHour: 12, wantTitle: "약속"},
		{text: "내일 점심 1시 약속", wantHour: 13, wantTitle: "약속"},
		{text: "내일 저녁 7시 반 약속", wantHour: 19, wantMin: 30, wantTitle: "약속"},
		{text: "내일 밤 10시 통화", wantHour: 22, wantTitle: "통화"},
		{text: "내일 2시 15분 면담", wantHour: 14, wantMin: 15, wantTitle: "면담"},
		{text: "내일 14:30 리뷰", wantHour: 14, wantMin: 30, wantTitle: "리뷰"},
		{text: "내일 오후 2:30 리뷰", wantHour: 14, wantMin: 30, wantTitle: "리뷰"},
		{text: "내일 정오 점심", wantHour: 12, wantTitle: "점심"},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got := mustParse(t, tc.text, reference)
			require.True(t, got.HasTime)
			require.Equal(t, at(2026, time.October, 15, tc.wantHour, tc.wantMin), got.Date)
			require.Equal(t, tc.wantTitle, got.Title)
		})
	}
}

func TestParseTimeOnlyUsesReferenceDay(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	got := mustParse(t, "3시 회의", reference)
	require.Equal(t, at(2026, time.October, 14, 15, 0), got.Date)
	require.True(t, got.HasTime)
}

func TestParseTimeRanges(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)

	workshop := mustParse(t, "내일 오후 2시부터 4시까지 워크숍", reference)
	require.Equal(t, at(2026, time.October, 15, 14, 0), workshop.Date)
	require.True(t, workshop.HasEndTime)
	require.NotNil(t, workshop.End)
	require.Equal(t, at(2026, time.October, 15, 16, 0), *workshop.End)
	require.Equal(t, "워크숍", workshop.Title)

	overnight := mustParse(t, "내일 오후 11시부터 1시까지 야간 작업", reference)
	require.Equal(t, at(2026, time.October, 15, 23, 0), overnight.Date)
	require.Equal(t, at(2026, time.October, 16, 1, 0), *overnight.End)

	tilde := mustParse(t, "내일 10~12시 교육", reference)
	require.Equal(t, at(2026, time.October, 15, 10, 0), tilde.Date)
	require.Equal(t, at(2026, time.October, 15, 12, 0), *tilde.End)

	colon := mustParse(t, "내일 10:00 - 16:00 행사", reference)
	require.Equal(t, at(2026, time.October, 15, 16, 0), *colon.End)
}

func TestParseCountIsNotTimeRange(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	got := mustParse(t, "내일 1-2명 면접", reference)
	require.False(t, got.HasTime)
	require.Nil(t, got.End)
}

func TestParseLocation(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)

	got := mustParse(t, "내일 3시에 305호에서 팀 회의 잡아줘", reference)
	require.Equal(t, "305호", got.Location)
	require.Equal(t, "팀 회의", got.Title)

	hall := mustParse(t, "내일 오후 2시 대회의실 주간 보고", reference)
	require.Equal(t, "대회의실", hall.Location)
	require.Equal(t, "주간 보고", hall.Title)

	none := mustParse(t, "내일 3시 확실 체크", reference)
	require.Empty(t, none.Location)

	room := mustParse(t, "목요일 오후 4시 교수회의 본관 301호", reference)
	require.Equal(t, "본관 301호", room.Location)
	require.Equal(t, "교수회의", room.Title)

	split := mustParse(t, "내일 2시 본관에서 면담, 카페 예약", reference)
	require.Equal(t, "본관", split.Location)
}

func TestParseTitleCleanup(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	tests := map[string]string{
		"내일 3시에 회의 있어":      "회의",
		"내일 3시 부터 면담입니다":    "면담",
		"내일 오후 4시 치과 등록해줘":  "치과",
		"내일 오후 4시 치과 추가해 줘": "치과",
		"내일은 3시 회의!":        "회의",
		"내일 이사회 3시":         "이사회",
	}
	for text, want := range tests {
		got := mustParse(t, text, reference)
		require.Equal(t, want, got.Title, text)
	}
}

func TestParseTitleFallsBackToRawInput(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	got := mustParse(t, "내일 3시", reference)
	require.Equal(t, "내일 3시", got.Title)
}

func TestParseLeftmostDateWins(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	got := mustParse(t, "모레 또는 내일 회의", reference)
	require.Equal(t, at(2026, time.October, 16, 0, 0), got.Date)
}

func TestParseRecurrence(t *testing.T) {
	wednesday := at(2026, time.October, 14, 10, 0)

	weekly := mustParse(t, "매주 화요일 3시 회의", wednesday)
	require.Equal(t, at(2026, time.October, 20, 15, 0), weekly.Date)
	require.Contains(t, weekly.Recurrence, "FREQ=WEEKLY")
	require.Contains(t, weekly.Recurrence, "BYDAY=TU")
	require.Equal(t, "회의", weekly.Title)

	daily := mustParse(t, "매일 9시 스탠드업", wednesday)
	require.Equal(t, at(2026, time.October, 15, 9, 0), daily.Date)
	require.Contains(t, daily.Recurrence, "FREQ=DAILY")

	monthly := mustParse(t, "매월 5일 정산", wednesday)
	require.Equal(t, at(2026, time.November, 5, 0, 0), monthly.Date)
	require.Contains(t, monthly.Recurrence, "FREQ=MONTHLY")
}

func TestParseUsesNormalizer(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	parser := New(NormalizerFunc(func(text string) string {
		return strings.ReplaceAll(text, "주간회의", "주간 회의")
	}))

	got, err := parser.Parse("내일 3시 주간회의", reference)
	require.NoError(t, err)
	require.Equal(t, "주간 회의", got.Title)
	require.Equal(t, "내일 3시 주간회의", got.OriginalText)
}

func TestParseNilNormalizerLeavesInput(t *testing.T) {
	got, err := New(nil).Parse("내일 회의", at(2026, time.October, 14, 10, 0))
	require.NoError(t, err)
	require.Equal(t, "회의", got.Title)
}

func TestConfidenceRewardsExplicitTime(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	pairs := [][2]string{
		{"내일 3시 회의", "내일 회의"},
		{"12월 25일 오후 6시 파티", "12월 25일 파티"},
		{"다음주 화요일 오전 10시 305호에서 면접", "다음주 화요일 305호에서 면접"},
		{"화요일 3시 회의", "화요일 회의"},
	}
	for _, pair := range pairs {
		withTime := mustParse(t, pair[0], reference)
		withoutTime := mustParse(t, pair[1], reference)
		require.True(t, withTime.HasTime, pair[0])
		require.Greater(t, withTime.Confidence, withoutTime.Confidence, pair[0])
		require.LessOrEqual(t, withTime.Confidence, 1.0)
		require.GreaterOrEqual(t, withoutTime.Confidence, 0.0)
	}
}

func TestConfidenceThresholds(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	full := mustParse(t, "내일 오후 3시 회의", reference)
	require.Greater(t, full.Confidence, 0.7)

	dateOnly := mustParse(t, "내일 회의", reference)
	require.Greater(t, dateOnly.Confidence, 0.4)
	require.Less(t, dateOnly.Confidence, 0.7)
}

func TestRoundTripThroughFriendlyFormat(t *testing.T) {
	reference := at(2026, time.October, 14, 10, 0)
	inputs := []string{
		"오늘 오후 2시 세미나",
		"내일 회의",
		"모레 3시 면담",
		"화요일 3시 회의",
		"다음주 금요일 회식",
		"10월 5일 워크숍",
		"12/25 파티",
		"3시 회의",
		"매주 월요일 주간 보고",
	}
	for _, text := range inputs {
		t.Run(text, func(t *testing.T) {
			first := mustParse(t, text, reference)
			again := mustParse(t, FormatFriendly(first.Date, reference)+" "+first.Title, reference)
			require.Equal(t, first.Date.Year(), again.Date.Year())
			require.Equal(t, first.Date.YearDay(), again.Date.YearDay())
		})
	}
}
