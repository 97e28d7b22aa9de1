package schedule

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var placeSuffixes = []string{"카페", "식당", "센터", "호", "실", "관", "홀"}

// Words that end like a place but are not one.
var notPlaces = map[string]bool{
	"사실": true, "확실": true, "진실": true, "현실": true,
	"번호": true, "기호": true, "신호": true, "보호": true, "선호": true,
	"관계": true,
}

var (
	leadingParticles  = wordSet("은", "는", "이", "가", "을", "를", "에", "로", "에서", "부터", "까지")
	trailingParticles = wordSet("에", "에서", "부터", "까지", "은", "는", "을", "를")
	requestEnding     = regexp.MustCompile(`\s*(?:입니다|잡아\s?줘|할게|하자|있어|추가해\s?줘|등록해\s?줘|해\s?줘)$`)
)

// findLocation returns the first run of adjacent place words, so
// "본관 301호" stays one location. A trailing 에서 ends the run and is
// dropped from the returned name.
func findLocation(s string) (string, span, bool) {
	fields := fieldsWithOffsets(s)
	for i, f := range fields {
		place, ok := placeName(f.text)
		if !ok {
			continue
		}
		parts := []string{place}
		sp := f.span
		for j := i + 1; j < len(fields) && !closesPlace(fields[j-1].text); j++ {
			next, ok := placeName(fields[j].text)
			if !ok {
				break
			}
			parts = append(parts, next)
			sp.end = fields[j].end
		}
		return strings.Join(parts, " "), sp, true
	}
	return "", span{}, false
}

// closesPlace reports a word after which no further place word can follow:
// one marked with 에서 or followed by punctuation.
func closesPlace(word string) bool {
	trimmed := strings.TrimRight(word, ",.!?")
	return trimmed != word || strings.HasSuffix(trimmed, "에서")
}

func placeName(word string) (string, bool) {
	word = strings.TrimRight(word, ",.!?")
	if place, ok := strings.CutSuffix(word, "에서"); ok {
		if place == "" {
			return "", false
		}
		return place, true
	}
	if notPlaces[word] || utf8.RuneCountInString(word) < 2 {
		return "", false
	}
	for _, suffix := range placeSuffixes {
		if strings.HasSuffix(word, suffix) {
			return word, true
		}
	}
	return "", false
}

// cleanTitle strips dangling particles and request endings left behind once
// date, time, and place phrases have been blanked out.
func cleanTitle(s string) string {
	words := trimParticles(splitWords(s))
	title := strings.TrimSpace(requestEnding.ReplaceAllString(strings.Join(words, " "), ""))
	return strings.Join(trimParticles(splitWords(title)), " ")
}

func splitWords(s string) []string {
	raw := strings.Fields(s)
	out := raw[:0]
	for _, w := range raw {
		w = strings.Trim(w, ",.!?~")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func trimParticles(words []string) []string {
	for len(words) > 0 && leadingParticles[words[0]] {
		words = words[1:]
	}
	for len(words) > 0 && trailingParticles[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return words
}

func wordSet(words ...string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}
