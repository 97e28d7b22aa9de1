// Package indicator turns voice session activity into desktop notifications
// and short audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/fsm"
	"github.com/rbright/dpt/internal/voice"
)

const (
	dispatchTimeout = 400 * time.Millisecond
	queueSize       = 16
)

// Notifier shows session state through the configured backend. It
// implements voice.Notifier and voice.Observer.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	bus      desktopBus
	cue      func(context.Context, cueKind) error

	jobs      chan func(context.Context)
	done      chan struct{}
	closeOnce sync.Once

	mu                    sync.Mutex
	closed                bool
	lastState             fsm.State
	desktopNotificationID uint32
	soundMu               sync.Mutex
}

var (
	_ voice.Notifier = (*Notifier)(nil)
	_ voice.Observer = (*Notifier)(nil)
)

// New creates a notifier from config and starts its dispatch worker.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := &Notifier{
		cfg:       cfg,
		logger:    logger,
		messages:  messagesFromEnv(),
		bus:       newDesktopBus(),
		jobs:      make(chan func(context.Context), queueSize),
		done:      make(chan struct{}),
		lastState: fsm.StateStopped,
	}
	n.cue = func(ctx context.Context, kind cueKind) error { return emitCue(ctx, kind, n.cfg) }
	go n.work()
	return n
}

// Close drains queued notifications and stops the worker.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.jobs)
		n.mu.Unlock()
		<-n.done
	})
}

// Info shows a short informational message.
func (n *Notifier) Info(_ context.Context, message string) {
	n.enqueue(func(ctx context.Context) error {
		return n.notify(ctx, n.cfg.InfoTimeoutMS, message, urgencyNormal)
	})
}

// Error shows an error message and plays the error cue.
func (n *Notifier) Error(_ context.Context, message string) {
	n.playCue(cueError)
	if strings.TrimSpace(message) == "" {
		message = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	n.enqueue(func(ctx context.Context) error {
		return n.notify(ctx, timeout, message, urgencyCritical)
	})
}

// StateChanged keeps a persistent status notification in step with the session.
func (n *Notifier) StateChanged(state fsm.State, mode voice.Mode) {
	n.mu.Lock()
	previous := n.lastState
	n.lastState = state
	n.mu.Unlock()

	switch state {
	case fsm.StateListening:
		if previous == fsm.StateStarting {
			n.playCue(cueListen)
		}
		text := n.messages.listening(mode)
		n.enqueue(func(ctx context.Context) error { return n.notify(ctx, 0, text, urgencyNormal) })
	case fsm.StateActive:
		text := n.messages.active
		n.enqueue(func(ctx context.Context) error { return n.notify(ctx, 0, text, urgencyNormal) })
	case fsm.StateStopped:
		if previous != fsm.StateStopped {
			n.playCue(cueStop)
		}
		n.enqueue(n.dismiss)
	}
}

// WakeDetected plays the wake cue.
func (n *Notifier) WakeDetected(phrase string, score float64) {
	n.playCue(cueWake)
	n.logger.Debug("indicator wake", "phrase", phrase, "score", score)
}

// CommandCaptured plays the command cue.
func (n *Notifier) CommandCaptured(voice.Mode) {
	n.playCue(cueCommand)
}

func (n *Notifier) StreamRestarted() {}

func (n *Notifier) RecognitionError(string, bool) {}

func (n *Notifier) enqueue(fn func(context.Context) error) {
	if !n.cfg.Enable {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.jobs <- func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			n.log("indicator dispatch failed", err)
		}
	}:
	default:
		n.logger.Debug("indicator queue full; dropping notification")
	}
}

func (n *Notifier) work() {
	defer close(n.done)
	for job := range n.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		job(ctx)
		cancel()
	}
}

// notify dispatches indicator output through the configured backend.
func (n *Notifier) notify(ctx context.Context, timeoutMS int, text string, level urgency) error {
	if !n.desktop() {
		n.logger.Info("indicator", "text", text, "timeout_ms", timeoutMS, "critical", level == urgencyCritical)
		return nil
	}

	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "dpt"
	}

	id, err := n.bus.notify(ctx, notification{
		appName:   appName,
		replaceID: replaceID,
		summary:   text,
		urgency:   level,
		timeoutMS: timeoutMS,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// dismiss closes the current desktop notification ID when present.
func (n *Notifier) dismiss(ctx context.Context) error {
	if !n.desktop() {
		return nil
	}

	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return n.bus.dismiss(ctx, id)
}

func (n *Notifier) desktop() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := n.cue(ctx, kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
