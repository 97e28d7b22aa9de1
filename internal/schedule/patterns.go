package schedule

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const meridiemWords = `오전|오후|아침|점심|저녁|밤`

// clockPattern captures hour, 시 marker, minutes, 반 marker, and colon minutes.
const clockPattern = `(\d{1,2})(?:\s*(시)(?:\s*(\d{1,2})\s*분|\s*(반))?|:(\d{2}))?`

var (
	recurringPattern = regexp.MustCompile(`매일|매주\s*([월화수목금토일])요일|매월\s*(\d{1,2})\s*일`)
	weeklyPattern    = regexp.MustCompile(`(다다음|이번|다음|담)\s*주\s*([월화수목금토일])요일`)
	yearDatePattern  = regexp.MustCompile(`\b(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일|\b(\d{4})[-./](\d{1,2})[-./](\d{1,2})\b`)
	monthDayPattern  = regexp.MustCompile(`\b(\d{1,2})\s*[월./]\s*(\d{1,2})(?:\s*일)?`)
	relativePattern  = regexp.MustCompile(`오늘|내일\s*모레|내일|모레|글피`)
	weekdayPattern   = regexp.MustCompile(`([월화수목금토일])요일`)

	rangePattern = regexp.MustCompile(
		`(?:(` + meridiemWords + `)\s*)?\b` + clockPattern +
			`\s*(?:부터|~|-)\s*(?:(` + meridiemWords + `)\s*)?` + clockPattern + `(?:\s*까지)?`,
	)
	meridiemPattern = regexp.MustCompile(`(` + meridiemWords + `)\s*(\d{1,2})\s*시(?:\s*(\d{1,2})\s*분|\s*(반))?`)
	noonPattern     = regexp.MustCompile(`정오|자정`)
	colonPattern    = regexp.MustCompile(`(?:(` + meridiemWords + `)\s*)?\b(\d{1,2}):(\d{2})`)
	hourPattern     = regexp.MustCompile(`\b(\d{1,2})\s*시(?:\s*(\d{1,2})\s*분|\s*(반))?`)
)

var weekdayByChar = map[string]int{
	"일": 0, "월": 1, "화": 2, "수": 3, "목": 4, "금": 5, "토": 6,
}

// span is a half-open byte range into the working text.
type span struct {
	start int
	end   int
}

type match struct {
	span
	groups []string
}

// group returns capture i or "" when it did not participate.
func (m match) group(i int) string {
	if i < 0 || i >= len(m.groups) {
		return ""
	}
	return m.groups[i]
}

// findFirst returns the leftmost match of re in s that accept allows.
func findFirst(re *regexp.Regexp, s string, accept func(match, string) bool) (match, bool) {
	for _, idx := range re.FindAllStringSubmatchIndex(s, -1) {
		m := match{span: span{start: idx[0], end: idx[1]}, groups: make([]string, len(idx)/2)}
		for g := 0; g < len(idx)/2; g++ {
			if idx[2*g] >= 0 {
				m.groups[g] = s[idx[2*g]:idx[2*g+1]]
			}
		}
		if accept == nil || accept(m, s) {
			return m, true
		}
	}
	return match{}, false
}

// notDuration rejects "N시간" where 시 starts a duration word.
func notDuration(m match, s string) bool {
	return !strings.HasPrefix(s[m.end:], "간")
}

// scratch is the working copy of the input. Consumed phrases are overwritten
// with spaces so byte offsets stay stable across extraction passes.
type scratch struct {
	buf []byte
}

func newScratch(s string) *scratch {
	return &scratch{buf: []byte(s)}
}

func (w *scratch) String() string {
	return string(w.buf)
}

func (w *scratch) blank(sp span) {
	for i := sp.start; i < sp.end && i < len(w.buf); i++ {
		w.buf[i] = ' '
	}
}

type field struct {
	span
	text string
}

// fieldsWithOffsets splits s on whitespace and keeps each word's byte range.
func fieldsWithOffsets(s string) []field {
	var out []field
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, field{span: span{start: start, end: i}, text: s[start:i]})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, field{span: span{start: start, end: len(s)}, text: s[start:]})
	}
	return out
}

// countLetters counts non-space runes.
func countLetters(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if !unicode.IsSpace(r) {
			n++
		}
		s = s[size:]
	}
	return n
}
