package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Voice: VoiceConfig{
			Locale:          "ko-KR",
			RestartDelayMS:  1000,
			MeterIntervalMS: 100,
			Acknowledgement: "네?",
			ActiveHintText:  "듣고 있습니다...",
			PermissionText:  "마이크 권한이 없습니다.",
			FailureText:     "음성 인식을 사용할 수 없습니다.",
		},
		Wake: WakeConfig{
			Phrases:   []string{"헤이디피티", "헤이dpt", "디피티", "dpt", "야", "저기"},
			Threshold: 0,
		},
		Parser: ParserConfig{
			AutoThreshold:          0.4,
			ConfirmThreshold:       0.7,
			DefaultDurationMinutes: 60,
			Timezone:               "Asia/Seoul",
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		STT: STTConfig{
			URL:           "wss://api.elevenlabs.io",
			APIKeyEnv:     "ELEVENLABS_API_KEY",
			Model:         "scribe_v1",
			DialTimeoutMS: 3000,
		},
		TTS: TTSConfig{
			Backend:   "realtime",
			URL:       "wss://api.elevenlabs.io",
			APIKeyEnv: "ELEVENLABS_API_KEY",
			Model:     "eleven_multilingual_v2",
		},
		Dictionary: DictionaryConfig{Store: "memory"},
		Calendar:   CalendarConfig{Name: "dpt"},
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8787",
			GRPCAddr: "127.0.0.1:8788",
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "desktop",
			DesktopAppName: "dpt",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
			InfoTimeoutMS:  1200,
		},
		Paste:     PasteConfig{Enable: false},
		Clipboard: MustCommand(clipboard),
		Debug:     DebugConfig{},
	}
}
