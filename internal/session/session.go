// Package session runs the owner process: one voice session, the consumers
// fed from its command slot, and the IPC surface that controls it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/dpt/internal/fsm"
	"github.com/rbright/dpt/internal/ipc"
	"github.com/rbright/dpt/internal/voice"
)

// ErrNotRunning is returned for start requests that arrive outside Run.
var ErrNotRunning = errors.New("owner session is not running")

type action int

const (
	actionStop action = iota + 1
)

// Voice is the subset of voice.Session the controller drives.
type Voice interface {
	StartGlobal(ctx context.Context, activeHint bool) error
	StartLocal(ctx context.Context) error
	Stop()
	Snapshot() voice.Snapshot
	Err() error
	TakeCommand() (string, bool)
	Subscribe(buffer int) (<-chan voice.Snapshot, func())
}

// Committer consumes commands drained from the voice session's slot:
// schedule creation in global mode, dictation in local mode.
type Committer interface {
	Commit(ctx context.Context, command string) error
}

type CommitFunc func(ctx context.Context, command string) error

func (f CommitFunc) Commit(ctx context.Context, command string) error { return f(ctx, command) }

// Start selects what Run does first. An empty Mode leaves the session
// stopped until an IPC or API request starts it.
type Start struct {
	Mode   voice.Mode
	Active bool
}

// Result is the lifecycle summary returned by one Run invocation.
type Result struct {
	State       fsm.State
	Mode        voice.Mode
	Commands    int
	LastCommand string
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Options wires command consumers. A mode without a committer keeps its
// commands in the slot for IPC take.
type Options struct {
	Logger *slog.Logger
	// Global consumes wake-gated commands.
	Global Committer
	// Local consumes dictation commands.
	Local Committer
	// KeepAlive keeps Run going after the voice session stops or fails.
	KeepAlive bool
}

// Controller owns a voice session for the lifetime of one Run.
type Controller struct {
	logger    *slog.Logger
	voice     Voice
	global    Committer
	local     Committer
	keepAlive bool

	mu          sync.RWMutex
	runCtx      context.Context
	commands    int
	lastCommand string

	actions chan action
}

// NewController constructs a controller around v.
func NewController(v Voice, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		logger:    logger,
		voice:     v,
		global:    opts.Global,
		local:     opts.Local,
		keepAlive: opts.KeepAlive,
		actions:   make(chan action, 1),
	}
}

// State returns the current voice state.
func (c *Controller) State() fsm.State {
	return c.voice.Snapshot().State
}

// Run starts the session as requested and serves it until ctx ends, a stop
// is requested, or (without KeepAlive) the session stops or fails.
func (c *Controller) Run(ctx context.Context, start Start) Result {
	result := Result{StartedAt: time.Now()}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots, unsubscribe := c.voice.Subscribe(8)
	defer unsubscribe()

	c.mu.Lock()
	c.runCtx = runCtx
	c.commands = 0
	c.lastCommand = ""
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.runCtx = nil
		c.mu.Unlock()
	}()

	var inflight sync.WaitGroup
	defer inflight.Wait()
	defer cancel()

	done := make(chan struct{}, 1)
	busy := false
	tryDispatch := func(snap voice.Snapshot) {
		if busy || !snap.HasCommand {
			return
		}
		committer := c.committerFor(snap.Mode)
		if committer == nil {
			return
		}
		command, ok := c.voice.TakeCommand()
		if !ok {
			return
		}
		busy = true
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			c.dispatch(runCtx, committer, snap.Mode, command)
			done <- struct{}{}
		}()
	}

	if start.Mode != "" {
		if err := c.begin(runCtx, start.Mode, start.Active); err != nil {
			if !c.keepAlive {
				return c.finish(result, err)
			}
			c.logger.Warn("initial voice start failed; waiting for requests", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.voice.Stop()
			return c.finish(result, nil)
		case a := <-c.actions:
			switch a {
			case actionStop:
				c.voice.Stop()
				if !c.keepAlive {
					return c.finish(result, nil)
				}
			default:
				c.voice.Stop()
				return c.finish(result, fmt.Errorf("unknown action %d", a))
			}
		case <-done:
			busy = false
			tryDispatch(c.voice.Snapshot())
		case snap, ok := <-snapshots:
			if !ok {
				return c.finish(result, nil)
			}
			tryDispatch(snap)
			if c.keepAlive {
				continue
			}
			if snap.State == fsm.StateStopped || snap.State == fsm.StateError {
				return c.finish(result, c.voice.Err())
			}
		}
	}
}

// finish stamps the summary fields shared by every Run exit.
func (c *Controller) finish(result Result, err error) Result {
	snap := c.voice.Snapshot()
	c.mu.RLock()
	defer c.mu.RUnlock()
	result.State = snap.State
	result.Mode = snap.Mode
	result.Commands = c.commands
	result.LastCommand = c.lastCommand
	result.Err = err
	result.FinishedAt = time.Now()
	return result
}

func (c *Controller) begin(ctx context.Context, mode voice.Mode, active bool) error {
	var err error
	switch mode {
	case voice.ModeLocal:
		err = c.voice.StartLocal(ctx)
	case voice.ModeGlobal:
		err = c.voice.StartGlobal(ctx, active)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return fmt.Errorf("start %s session: %w", mode, err)
	}
	return nil
}

func (c *Controller) committerFor(mode voice.Mode) Committer {
	if mode == voice.ModeLocal {
		return c.local
	}
	return c.global
}

func (c *Controller) dispatch(ctx context.Context, committer Committer, mode voice.Mode, command string) {
	err := committer.Commit(ctx, command)

	c.mu.Lock()
	c.commands++
	c.lastCommand = command
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("command dispatch failed", "mode", string(mode), "error", err)
		return
	}
	c.logger.Info("command dispatched", "mode", string(mode), "chars", len([]rune(command)))
}

// Handle serves IPC commands for the owner session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.respond(c.voice.Snapshot(), "status")
	case ipc.CommandStop:
		return c.requestStop()
	case ipc.CommandStartGlobal:
		return c.requestStart(voice.ModeGlobal, req.Active)
	case ipc.CommandStartLocal:
		return c.requestStart(voice.ModeLocal, false)
	case ipc.CommandTake:
		return c.take()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestStop enqueues a stop action when there is something to stop.
func (c *Controller) requestStop() ipc.Response {
	snap := c.voice.Snapshot()
	if snap.State == fsm.StateStopped {
		return ipc.Response{OK: false, State: string(snap.State), Error: "cannot stop from state stopped"}
	}

	select {
	case c.actions <- actionStop:
		return c.respond(snap, "stop requested")
	default:
		return c.respond(snap, "stop already requested")
	}
}

func (c *Controller) requestStart(mode voice.Mode, active bool) ipc.Response {
	c.mu.RLock()
	ctx := c.runCtx
	c.mu.RUnlock()
	if ctx == nil {
		return ipc.Response{OK: false, State: string(c.State()), Error: ErrNotRunning.Error()}
	}

	if err := c.begin(ctx, mode, active); err != nil {
		return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
	}
	return c.respond(c.voice.Snapshot(), fmt.Sprintf("%s listening", mode))
}

func (c *Controller) take() ipc.Response {
	command, ok := c.voice.TakeCommand()
	resp := c.respond(c.voice.Snapshot(), "command taken")
	if !ok {
		resp.Message = "no command pending"
		return resp
	}
	resp.Command = command
	return resp
}

func (c *Controller) respond(snap voice.Snapshot, message string) ipc.Response {
	return ipc.Response{
		OK:         true,
		State:      string(snap.State),
		Mode:       string(snap.Mode),
		Listening:  snap.Listening,
		Active:     snap.Active,
		Volume:     snap.Volume,
		Speaking:   snap.Speaking,
		Transcript: snap.Transcript,
		Message:    message,
		Error:      snap.Error,
	}
}
