package output

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/transcript"
)

const commandTimeout = 2 * time.Second

// Committer hands local-mode dictation to the desktop: the text goes to
// clipboard_cmd and, when paste is enabled, paste_cmd types it into the
// focused window.
type Committer struct {
	clipboard config.CommandConfig
	paste     config.CommandConfig
	pasteOn   bool
	trailing  bool
	logger    *slog.Logger
}

func NewCommitter(cfg config.Config, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Committer{
		clipboard: cfg.Clipboard,
		paste:     cfg.PasteCmd,
		pasteOn:   cfg.Paste.Enable,
		trailing:  cfg.Paste.TrailingSpace,
		logger:    logger,
	}
}

// Commit copies the dictation with its whitespace collapsed. Blank text is
// ignored. A paste failure is logged and leaves the clipboard set.
func (c *Committer) Commit(ctx context.Context, dictation string) error {
	text := transcript.Assemble([]string{dictation}, transcript.Options{TrailingSpace: c.trailing})
	if text == "" {
		return nil
	}

	if err := pipeTo(ctx, c.clipboard, text, commandTimeout); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	c.logger.Debug("dictation copied", "chars", len([]rune(text)))

	if !c.pasteOn {
		return nil
	}
	if err := pipeTo(ctx, c.paste, "", commandTimeout); err != nil {
		c.logger.Error("paste failed; clipboard remains set", "error", err.Error())
	}
	return nil
}
