package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsoncConfig struct {
	Voice      *jsoncVoice      `json:"voice"`
	Wake       *jsoncWake       `json:"wake"`
	Parser     *jsoncParser     `json:"parser"`
	Audio      *jsoncAudio      `json:"audio"`
	STT        *jsoncSTT        `json:"stt"`
	TTS        *jsoncTTS        `json:"tts"`
	Dictionary *jsoncDictionary `json:"dictionary"`
	Calendar   *jsoncCalendar   `json:"calendar"`
	Server     *jsoncServer     `json:"server"`
	Indicator  *jsoncIndicator  `json:"indicator"`
	Paste      *jsoncPaste      `json:"paste"`

	ClipboardCmd *string     `json:"clipboard_cmd"`
	PasteCmd     *string     `json:"paste_cmd"`
	Debug        *jsoncDebug `json:"debug"`
}

type jsoncVoice struct {
	Locale          *string `json:"locale"`
	RestartDelayMS  *int    `json:"restart_delay_ms"`
	MeterIntervalMS *int    `json:"meter_interval_ms"`
	Acknowledgement *string `json:"acknowledgement"`
	ActiveHint      *string `json:"active_hint"`
	PermissionText  *string `json:"permission_text"`
	FailureText     *string `json:"failure_text"`
}

type jsoncWake struct {
	Phrases   *jsoncStringList `json:"phrases"`
	Threshold *float64         `json:"threshold"`
}

type jsoncParser struct {
	AutoThreshold          *float64 `json:"auto_threshold"`
	ConfirmThreshold       *float64 `json:"confirm_threshold"`
	DefaultDurationMinutes *int     `json:"default_duration_minutes"`
	Timezone               *string  `json:"timezone"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncSTT struct {
	URL           *string `json:"url"`
	APIKeyEnv     *string `json:"api_key_env"`
	Model         *string `json:"model"`
	DialTimeoutMS *int    `json:"dial_timeout_ms"`
}

type jsoncTTS struct {
	Backend   *string `json:"backend"`
	URL       *string `json:"url"`
	APIKeyEnv *string `json:"api_key_env"`
	Model     *string `json:"model"`
	VoiceID   *string `json:"voice_id"`
	Command   *string `json:"command"`
}

type jsoncDictionary struct {
	Store *string `json:"store"`
	Seed  *string `json:"seed"`
}

type jsoncCalendar struct {
	ICSPath *string `json:"ics_path"`
	Name    *string `json:"name"`
}

type jsoncServer struct {
	HTTPAddr *string `json:"http_addr"`
	GRPCAddr *string `json:"grpc_addr"`
}

type jsoncIndicator struct {
	Enable           *bool   `json:"enable"`
	Backend          *string `json:"backend"`
	DesktopAppName   *string `json:"desktop_app_name"`
	SoundEnable      *bool   `json:"sound_enable"`
	SoundWakeFile    *string `json:"sound_wake_file"`
	SoundCommandFile *string `json:"sound_command_file"`
	SoundStopFile    *string `json:"sound_stop_file"`
	SoundErrorFile   *string `json:"sound_error_file"`
	ErrorTimeoutMS   *int    `json:"error_timeout_ms"`
	InfoTimeoutMS    *int    `json:"info_timeout_ms"`
}

type jsoncPaste struct {
	Enable        *bool `json:"enable"`
	TrailingSpace *bool `json:"trailing_space"`
}

type jsoncDebug struct {
	AudioDump  *bool `json:"audio_dump"`
	StreamDump *bool `json:"stream_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	plain, err := stripJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	var payload jsoncConfig
	if err := decodeStrict(plain, &payload); err != nil {
		return Config{}, nil, err
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func parseCommand(field string, raw *string) (CommandConfig, error) {
	command, err := NewCommand(*raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return command, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if v := payload.Voice; v != nil {
		setString(&cfg.Voice.Locale, v.Locale)
		setInt(&cfg.Voice.RestartDelayMS, v.RestartDelayMS)
		setInt(&cfg.Voice.MeterIntervalMS, v.MeterIntervalMS)
		setString(&cfg.Voice.Acknowledgement, v.Acknowledgement)
		setString(&cfg.Voice.ActiveHintText, v.ActiveHint)
		setString(&cfg.Voice.PermissionText, v.PermissionText)
		setString(&cfg.Voice.FailureText, v.FailureText)
	}

	if w := payload.Wake; w != nil {
		if w.Phrases != nil {
			phrases := make([]string, 0, len(*w.Phrases))
			for _, phrase := range *w.Phrases {
				phrase = strings.TrimSpace(phrase)
				if phrase == "" {
					continue
				}
				phrases = append(phrases, phrase)
			}
			if len(phrases) == 0 {
				warnings = append(warnings, Warning{Message: "wake.phrases is empty; keeping the previous phrase list"})
			} else {
				cfg.Wake.Phrases = phrases
			}
		}
		setFloat(&cfg.Wake.Threshold, w.Threshold)
	}

	if p := payload.Parser; p != nil {
		setFloat(&cfg.Parser.AutoThreshold, p.AutoThreshold)
		setFloat(&cfg.Parser.ConfirmThreshold, p.ConfirmThreshold)
		setInt(&cfg.Parser.DefaultDurationMinutes, p.DefaultDurationMinutes)
		setString(&cfg.Parser.Timezone, p.Timezone)
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if s := payload.STT; s != nil {
		setString(&cfg.STT.URL, s.URL)
		setString(&cfg.STT.APIKeyEnv, s.APIKeyEnv)
		setString(&cfg.STT.Model, s.Model)
		setInt(&cfg.STT.DialTimeoutMS, s.DialTimeoutMS)
	}

	if t := payload.TTS; t != nil {
		setString(&cfg.TTS.Backend, t.Backend)
		setString(&cfg.TTS.URL, t.URL)
		setString(&cfg.TTS.APIKeyEnv, t.APIKeyEnv)
		setString(&cfg.TTS.Model, t.Model)
		setString(&cfg.TTS.VoiceID, t.VoiceID)
		if t.Command != nil {
			command, err := parseCommand("tts.command", t.Command)
			if err != nil {
				return nil, err
			}
			cfg.TTS.Command = command
		}
	}

	if d := payload.Dictionary; d != nil {
		setString(&cfg.Dictionary.Store, d.Store)
		setString(&cfg.Dictionary.Seed, d.Seed)
	}

	if c := payload.Calendar; c != nil {
		setString(&cfg.Calendar.ICSPath, c.ICSPath)
		setString(&cfg.Calendar.Name, c.Name)
	}

	if s := payload.Server; s != nil {
		setString(&cfg.Server.HTTPAddr, s.HTTPAddr)
		setString(&cfg.Server.GRPCAddr, s.GRPCAddr)
	}

	if i := payload.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.SoundWakeFile, i.SoundWakeFile)
		setString(&cfg.Indicator.SoundCommandFile, i.SoundCommandFile)
		setString(&cfg.Indicator.SoundStopFile, i.SoundStopFile)
		setString(&cfg.Indicator.SoundErrorFile, i.SoundErrorFile)
		setInt(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
		setInt(&cfg.Indicator.InfoTimeoutMS, i.InfoTimeoutMS)
	}

	if payload.Paste != nil {
		setBool(&cfg.Paste.Enable, payload.Paste.Enable)
		setBool(&cfg.Paste.TrailingSpace, payload.Paste.TrailingSpace)
	}

	if payload.ClipboardCmd != nil {
		command, err := parseCommand("clipboard_cmd", payload.ClipboardCmd)
		if err != nil {
			return nil, err
		}
		cfg.Clipboard = command
	}

	if payload.PasteCmd != nil {
		command, err := parseCommand("paste_cmd", payload.PasteCmd)
		if err != nil {
			return nil, err
		}
		cfg.PasteCmd = command
	}

	if payload.Debug != nil {
		setBool(&cfg.Debug.EnableAudioDump, payload.Debug.AudioDump)
		setBool(&cfg.Debug.EnableStreamDump, payload.Debug.StreamDump)
	}

	return warnings, nil
}
