package output

import (
	"context"
	"fmt"
	"strings"

	"github.com/rbright/dpt/internal/config"
)

// CommandSpeaker speaks text by piping it to an external TTS command such as
// `espeak-ng -v ko`.
type CommandSpeaker struct {
	cmd config.CommandConfig
}

func NewCommandSpeaker(cmd config.CommandConfig) *CommandSpeaker {
	return &CommandSpeaker{cmd: cmd}
}

// Speak blocks until the command exits or ctx ends.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := pipeTo(ctx, s.cmd, text, 0); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}
