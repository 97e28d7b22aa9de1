// Package config resolves, parses, validates, and defaults dpt configuration.
package config

// Config is the fully materialized runtime configuration used by dpt.
type Config struct {
	Voice      VoiceConfig
	Wake       WakeConfig
	Parser     ParserConfig
	Audio      AudioConfig
	STT        STTConfig
	TTS        TTSConfig
	Dictionary DictionaryConfig
	Calendar   CalendarConfig
	Server     ServerConfig
	Indicator  IndicatorConfig
	Paste      PasteConfig
	Clipboard  CommandConfig
	PasteCmd   CommandConfig
	Debug      DebugConfig
}

// VoiceConfig controls the listening session and its spoken/visual feedback.
type VoiceConfig struct {
	Locale          string
	RestartDelayMS  int
	MeterIntervalMS int
	Acknowledgement string
	ActiveHintText  string
	PermissionText  string
	FailureText     string
}

// WakeConfig controls wake phrase detection in global mode.
type WakeConfig struct {
	Phrases   []string
	Threshold float64
}

// ParserConfig controls how captured commands become calendar events.
type ParserConfig struct {
	AutoThreshold          float64
	ConfirmThreshold       float64
	DefaultDurationMinutes int
	Timezone               string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// STTConfig points at the realtime speech-to-text service.
type STTConfig struct {
	URL           string
	APIKeyEnv     string
	Model         string
	DialTimeoutMS int
}

// TTSConfig selects how spoken feedback is produced.
type TTSConfig struct {
	// Backend is one of realtime, command or none.
	Backend   string
	URL       string
	APIKeyEnv string
	Model     string
	VoiceID   string
	Command   CommandConfig
}

// DictionaryConfig selects the term dictionary store and optional seed file.
type DictionaryConfig struct {
	Store string
	Seed  string
}

// CalendarConfig controls where created events are written.
type CalendarConfig struct {
	ICSPath string
	Name    string
}

// ServerConfig controls the network surfaces of `dpt serve`.
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// IndicatorConfig controls notification and audio cue behavior.
type IndicatorConfig struct {
	Enable           bool
	Backend          string
	DesktopAppName   string
	SoundEnable      bool
	SoundWakeFile    string
	SoundCommandFile string
	SoundStopFile    string
	SoundErrorFile   string
	ErrorTimeoutMS   int
	InfoTimeoutMS    int
}

// PasteConfig controls whether dictated text is pasted after it is copied.
type PasteConfig struct {
	Enable bool
	// TrailingSpace appends one space so consecutive dictations do not run
	// together when pasted.
	TrailingSpace bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump  bool
	EnableStreamDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
