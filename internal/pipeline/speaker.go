package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbright/dpt/internal/audio"
	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/output"
	"github.com/rbright/dpt/internal/voice"
)

// Speaker synthesizes speech through the realtime TTS endpoint and plays it
// on the default Pulse sink.
type Speaker struct {
	sampleRate int
	synthesize func(ctx context.Context, text string) ([]byte, error)
	play       func(ctx context.Context, samples []int16, sampleRate int, mediaName string) error
}

var _ voice.Synthesizer = (*Speaker)(nil)

// NewSpeaker wires a Speaker to the tts section of cfg.
func NewSpeaker(cfg config.Config) *Speaker {
	client := NewTTSClient(cfg)
	return &Speaker{
		sampleRate: client.SampleRate(),
		synthesize: client.Synthesize,
		play:       audio.Play,
	}
}

// Speak blocks until playback drains or ctx ends.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pcm, err := s.synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	return s.play(ctx, audio.PCM16(pcm), s.sampleRate, "dpt speech")
}

// NewSynthesizer picks the speech backend named by tts.backend.
func NewSynthesizer(cfg config.Config, logger *slog.Logger) voice.Synthesizer {
	switch strings.ToLower(strings.TrimSpace(cfg.TTS.Backend)) {
	case "realtime":
		if strings.TrimSpace(cfg.TTS.VoiceID) == "" {
			loggerOrDiscard(logger).Warn("tts.voice_id is empty; spoken feedback disabled")
			return nil
		}
		return NewSpeaker(cfg)
	case "command":
		return output.NewCommandSpeaker(cfg.TTS.Command)
	default:
		return nil
	}
}
