// Package logging writes dpt's JSONL log under the XDG state directory.
package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// LevelEnv overrides the default info level (debug, info, warn, error).
	LevelEnv = "DPT_LOG_LEVEL"
	// FormatEnv selects "text" output instead of JSON lines.
	FormatEnv = "DPT_LOG_FORMAT"

	// MaxSize is the size at which the log is rotated on the next open.
	MaxSize int64 = 8 << 20
)

// Runtime owns the logger and its file.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New opens the log file, rotating a previous log that grew past MaxSize
// to log.jsonl.1. Each record carries the process id and the subcommand.
func New(command string) (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}
	if err := rotate(path, MaxSize); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	logger := slog.New(newHandler(f)).With("pid", os.Getpid())
	if command != "" {
		logger = logger.With("cmd", command)
	}
	return Runtime{Logger: logger, Path: path, closer: f}, nil
}

// Discard is the fallback when the log file cannot be opened.
func Discard() Runtime {
	return Runtime{Logger: slog.New(slog.DiscardHandler)}
}

func newHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(FormatEnv)), "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func levelFromEnv() slog.Level {
	raw := strings.TrimSpace(os.Getenv(LevelEnv))
	if strings.EqualFold(raw, "warning") {
		raw = "warn"
	}
	var level slog.Level
	if raw == "" || level.UnmarshalText([]byte(raw)) != nil {
		return slog.LevelInfo
	}
	return level
}

func rotate(path string, limit int64) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < limit {
		return nil
	}
	return os.Rename(path, path+".1")
}

// resolveLogPath prefers XDG_STATE_HOME and falls back to ~/.local/state.
func resolveLogPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "dpt", "log.jsonl"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "dpt", "log.jsonl"), nil
}
