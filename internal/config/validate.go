package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"
)

var (
	ttsBackends       = []string{"realtime", "command", "none"}
	indicatorBackends = []string{"desktop", "log"}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Voice.Locale) == "" {
		return nil, fmt.Errorf("voice.locale must not be empty")
	}
	if cfg.Voice.RestartDelayMS < 0 {
		return nil, fmt.Errorf("voice.restart_delay_ms must be >= 0")
	}
	if cfg.Voice.MeterIntervalMS <= 0 {
		return nil, fmt.Errorf("voice.meter_interval_ms must be > 0")
	}
	if cfg.Voice.MeterIntervalMS < 20 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("voice.meter_interval_ms=%d is very short; expect extra CPU use", cfg.Voice.MeterIntervalMS)})
	}

	if len(cfg.Wake.Phrases) == 0 {
		return nil, fmt.Errorf("wake.phrases must not be empty")
	}
	if cfg.Wake.Threshold < 0 || cfg.Wake.Threshold > 1 {
		return nil, fmt.Errorf("wake.threshold must be within [0, 1]")
	}

	if cfg.Parser.AutoThreshold < 0 || cfg.Parser.AutoThreshold > 1 {
		return nil, fmt.Errorf("parser.auto_threshold must be within [0, 1]")
	}
	if cfg.Parser.ConfirmThreshold < 0 || cfg.Parser.ConfirmThreshold > 1 {
		return nil, fmt.Errorf("parser.confirm_threshold must be within [0, 1]")
	}
	if cfg.Parser.AutoThreshold > cfg.Parser.ConfirmThreshold {
		return nil, fmt.Errorf("parser.auto_threshold must be <= parser.confirm_threshold")
	}
	if cfg.Parser.DefaultDurationMinutes <= 0 {
		return nil, fmt.Errorf("parser.default_duration_minutes must be > 0")
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("parser.timezone: %w", err)
	}

	if err := validateEndpoint("stt.url", cfg.STT.URL); err != nil {
		return nil, err
	}
	if cfg.STT.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("stt.dial_timeout_ms must be > 0")
	}

	ttsBackend := strings.ToLower(strings.TrimSpace(cfg.TTS.Backend))
	if !oneOf(ttsBackend, ttsBackends) {
		return nil, fmt.Errorf("tts.backend must be one of: %s", strings.Join(ttsBackends, ", "))
	}
	switch ttsBackend {
	case "realtime":
		if err := validateEndpoint("tts.url", cfg.TTS.URL); err != nil {
			return nil, err
		}
		if strings.TrimSpace(cfg.TTS.VoiceID) == "" {
			warnings = append(warnings, Warning{Message: "tts.voice_id is empty; spoken feedback is disabled"})
		}
	case "command":
		if cfg.TTS.Command.Empty() {
			return nil, fmt.Errorf("tts.command must not be empty when tts.backend=command")
		}
	}

	if strings.HasPrefix(cfg.Dictionary.Store, "postgres") && !strings.Contains(cfg.Dictionary.Store, "://") {
		return nil, fmt.Errorf("dictionary.store must be a postgres:// URL, a sqlite path or memory")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if !oneOf(backend, indicatorBackends) {
		return nil, fmt.Errorf("indicator.backend must be one of: %s", strings.Join(indicatorBackends, ", "))
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if cfg.Indicator.InfoTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.info_timeout_ms must be >= 0")
	}

	if cfg.Clipboard.Empty() {
		return nil, fmt.Errorf("clipboard_cmd must not be empty")
	}
	if cfg.Paste.Enable && cfg.PasteCmd.Empty() {
		return nil, fmt.Errorf("paste_cmd must not be empty when paste.enable=true")
	}

	return warnings, nil
}

// Location resolves the parser timezone. An empty value means local time.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Parser.Timezone)
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// RestartDelay returns the recognizer restart backoff.
func (c VoiceConfig) RestartDelay() time.Duration {
	return time.Duration(c.RestartDelayMS) * time.Millisecond
}

// MeterInterval returns the volume sampling period.
func (c VoiceConfig) MeterInterval() time.Duration {
	return time.Duration(c.MeterIntervalMS) * time.Millisecond
}

func validateEndpoint(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	switch parsed.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("%s must use ws, wss, http or https", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
