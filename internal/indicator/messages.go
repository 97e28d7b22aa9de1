package indicator

import (
	"os"
	"strings"

	"github.com/rbright/dpt/internal/voice"
)

type locale string

const (
	localeKorean  locale = "ko"
	localeEnglish locale = "en"
)

type messages struct {
	waiting   string
	dictating string
	active    string
	errorText string
}

var catalog = map[locale]messages{
	localeKorean: {
		waiting:   "호출어를 기다리는 중",
		dictating: "듣고 있습니다…",
		active:    "말씀하세요…",
		errorText: "음성 인식 오류",
	},
	localeEnglish: {
		waiting:   "Waiting for wake phrase",
		dictating: "Listening…",
		active:    "Go ahead…",
		errorText: "Speech recognition error",
	},
}

// listening is the status line while the recognizer runs in mode.
func (m messages) listening(mode voice.Mode) string {
	if mode == voice.ModeLocal {
		return m.dictating
	}
	return m.waiting
}

// messagesFromEnv follows the POSIX lookup order for LC_MESSAGES.
func messagesFromEnv() messages {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return catalog[resolveLocale(v)]
		}
	}
	return catalog[localeKorean]
}

// resolveLocale maps a POSIX locale such as en_US.UTF-8 onto the catalog.
// Anything without an English entry gets Korean.
func resolveLocale(raw string) locale {
	lang, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), "_")
	lang, _, _ = strings.Cut(lang, ".")
	if _, ok := catalog[locale(lang)]; ok {
		return locale(lang)
	}
	return localeKorean
}
