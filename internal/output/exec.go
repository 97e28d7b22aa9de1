// Package output delivers captured text to the desktop through external
// commands: dictation to the clipboard, feedback to a TTS program.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/dpt/internal/config"
)

var errEmptyCommand = errors.New("command is empty")

// pipeTo runs cmd with input on stdin and waits for it to exit. A failure
// carries the last line the command wrote to stderr.
func pipeTo(ctx context.Context, cmd config.CommandConfig, input string, timeout time.Duration) error {
	if cmd.Empty() {
		return errEmptyCommand
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Stdin = strings.NewReader(input)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	c.WaitDelay = 500 * time.Millisecond

	if err := c.Run(); err != nil {
		if line := lastLine(stderr.String()); line != "" {
			return fmt.Errorf("%s: %w: %s", cmd.Argv[0], err, line)
		}
		return fmt.Errorf("%s: %w", cmd.Argv[0], err)
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
