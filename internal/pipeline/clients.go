package pipeline

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rbright/dpt/internal/audio"
	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/realtime"
)

// NewSTTClient builds a realtime client for the stt section of cfg.
func NewSTTClient(cfg config.Config, debug io.Writer) *realtime.Client {
	return realtime.New(realtime.Config{
		BaseURL:     cfg.STT.URL,
		APIKey:      apiKey(cfg.STT.APIKeyEnv),
		STTModel:    cfg.STT.Model,
		SampleRate:  audio.SampleRate,
		DialTimeout: time.Duration(cfg.STT.DialTimeoutMS) * time.Millisecond,
		DebugSink:   debug,
	})
}

// NewTTSClient builds a realtime client for the tts section of cfg.
func NewTTSClient(cfg config.Config) *realtime.Client {
	return realtime.New(realtime.Config{
		BaseURL:     cfg.TTS.URL,
		APIKey:      apiKey(cfg.TTS.APIKeyEnv),
		TTSModel:    cfg.TTS.Model,
		VoiceID:     cfg.TTS.VoiceID,
		SampleRate:  audio.SampleRate,
		DialTimeout: time.Duration(cfg.STT.DialTimeoutMS) * time.Millisecond,
	})
}

func apiKey(env string) string {
	env = strings.TrimSpace(env)
	if env == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(env))
}
