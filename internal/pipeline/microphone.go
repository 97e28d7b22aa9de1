// Package pipeline binds the voice session to Pulse capture and the
// realtime speech service.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rbright/dpt/internal/audio"
	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/voice"
)

type selectFunc func(ctx context.Context, input, fallback string) (audio.Selection, error)

// Microphone opens a metering-only capture on the configured input.
type Microphone struct {
	cfg    config.AudioConfig
	logger *slog.Logger

	selectDevice selectFunc
	start        func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (io.Closer, error)
}

var _ voice.Microphone = (*Microphone)(nil)

// NewMicrophone constructs a Pulse-backed microphone.
func NewMicrophone(cfg config.AudioConfig, logger *slog.Logger) *Microphone {
	return &Microphone{
		cfg:          cfg,
		logger:       loggerOrDiscard(logger),
		selectDevice: audio.SelectDevice,
		start: func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (io.Closer, error) {
			capture, err := audio.StartCapture(ctx, device, opts)
			if err != nil {
				return nil, err
			}
			return capture, nil
		},
	}
}

// Open copies raw PCM from the selected source into sink.
func (m *Microphone) Open(ctx context.Context, sink io.Writer) (io.Closer, error) {
	selection, err := resolveDevice(ctx, m.selectDevice, m.cfg, m.logger)
	if err != nil {
		return nil, err
	}
	closer, err := m.start(ctx, selection.Device, audio.CaptureOptions{
		Tap:       sink,
		MediaName: "dpt level meter",
	})
	if err != nil {
		return nil, classifyAudioError(err)
	}
	return closer, nil
}

func resolveDevice(ctx context.Context, selectDevice selectFunc, cfg config.AudioConfig, logger *slog.Logger) (audio.Selection, error) {
	selection, err := selectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return audio.Selection{}, classifyAudioError(err)
	}
	if selection.Warning != "" {
		logger.Warn(selection.Warning)
	}
	logger.Debug("audio input selected", "device", describeDevice(selection.Device), "fallback", selection.Fallback)
	return selection, nil
}

// classifyAudioError maps a muted or inaccessible input to a permission denial.
func classifyAudioError(err error) error {
	if errors.Is(err, audio.ErrInputBlocked) || errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %v", voice.ErrPermissionDenied, err)
	}
	return err
}

// describeDevice formats device metadata for logs.
func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
