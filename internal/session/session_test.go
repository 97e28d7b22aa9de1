package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/dpt/internal/fsm"
	"github.com/rbright/dpt/internal/ipc"
	"github.com/rbright/dpt/internal/voice"
)

type fakeVoice struct {
	mu       sync.Mutex
	snap     voice.Snapshot
	err      error
	startErr error
	starts   []string
	subs     []chan voice.Snapshot
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{snap: voice.Snapshot{State: fsm.StateStopped, Mode: voice.ModeGlobal}}
}

func (f *fakeVoice) StartGlobal(_ context.Context, active bool) error {
	return f.start(voice.ModeGlobal, active)
}

func (f *fakeVoice) StartLocal(context.Context) error {
	return f.start(voice.ModeLocal, false)
}

func (f *fakeVoice) start(mode voice.Mode, active bool) error {
	f.mu.Lock()
	f.starts = append(f.starts, fmt.Sprintf("%s:%t", mode, active))
	startErr := f.startErr
	f.mu.Unlock()

	if startErr != nil {
		f.update(func(s *voice.Snapshot) {
			s.State = fsm.StateError
			s.Listening = false
		}, startErr)
		return startErr
	}
	f.update(func(s *voice.Snapshot) {
		s.Mode = mode
		s.Listening = true
		s.State = fsm.StateListening
		s.Active = mode == voice.ModeLocal || active
		if mode == voice.ModeGlobal && active {
			s.State = fsm.StateActive
		}
	}, nil)
	return nil
}

func (f *fakeVoice) Stop() {
	f.update(func(s *voice.Snapshot) {
		s.State = fsm.StateStopped
		s.Listening = false
		s.Active = false
	}, nil)
}

func (f *fakeVoice) capture(command string) {
	f.update(func(s *voice.Snapshot) {
		s.LastCommand = command
		s.HasCommand = true
	}, nil)
}

func (f *fakeVoice) fail(err error) {
	f.update(func(s *voice.Snapshot) {
		s.State = fsm.StateStopped
		s.Listening = false
		s.Error = err.Error()
	}, err)
}

func (f *fakeVoice) update(change func(*voice.Snapshot), err error) {
	f.mu.Lock()
	change(&f.snap)
	f.err = err
	snap := f.snap
	subs := append([]chan voice.Snapshot(nil), f.subs...)
	f.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (f *fakeVoice) Snapshot() voice.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeVoice) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeVoice) TakeCommand() (string, bool) {
	f.mu.Lock()
	if !f.snap.HasCommand {
		f.mu.Unlock()
		return "", false
	}
	command := f.snap.LastCommand
	f.mu.Unlock()

	f.update(func(s *voice.Snapshot) {
		s.LastCommand = ""
		s.HasCommand = false
	}, f.Err())
	return command, true
}

func (f *fakeVoice) Subscribe(buffer int) (<-chan voice.Snapshot, func()) {
	ch := make(chan voice.Snapshot, buffer)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, sub := range f.subs {
			if sub == ch {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				return
			}
		}
	}
}

func (f *fakeVoice) startCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.starts...)
}

func TestHandleStatusAndUnknownCommand(t *testing.T) {
	ctrl := NewController(newFakeVoice(), Options{})

	status := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, status.OK)
	require.Equal(t, string(fsm.StateStopped), status.State)
	require.Equal(t, string(voice.ModeGlobal), status.Mode)

	unknown := ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestRequestGuardsOutsideRun(t *testing.T) {
	ctrl := NewController(newFakeVoice(), Options{})

	stop := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, stop.OK)
	require.Contains(t, stop.Error, "cannot stop from state stopped")

	start := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStartGlobal})
	require.False(t, start.OK)
	require.Equal(t, ErrNotRunning.Error(), start.Error)

	take := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandTake})
	require.True(t, take.OK)
	require.Empty(t, take.Command)
	require.Equal(t, "no command pending", take.Message)
}

func TestRequestStopAlreadyRequested(t *testing.T) {
	fv := newFakeVoice()
	require.NoError(t, fv.StartGlobal(context.Background(), false))
	ctrl := NewController(fv, Options{})

	ctrl.actions <- actionStop
	resp := ctrl.requestStop()
	require.True(t, resp.OK)
	require.Equal(t, "stop already requested", resp.Message)
}

func TestRunDispatchesGlobalCommands(t *testing.T) {
	fv := newFakeVoice()
	committed := make(chan string, 1)
	ctrl := NewController(fv, Options{
		Global: CommitFunc(func(_ context.Context, command string) error {
			committed <- command
			return nil
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- ctrl.Run(ctx, Start{Mode: voice.ModeGlobal})
	}()

	waitForState(t, ctrl, fsm.StateListening)
	fv.capture("내일 오후 3시 회의")

	select {
	case command := <-committed:
		require.Equal(t, "내일 오후 3시 회의", command)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
	waitFor(t, func() bool {
		ctrl.mu.RLock()
		defer ctrl.mu.RUnlock()
		return ctrl.commands == 1
	})

	resp := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandStop})
	require.True(t, resp.OK)
	require.Equal(t, "stop requested", resp.Message)

	result := <-resultCh
	require.NoError(t, result.Err)
	require.Equal(t, fsm.StateStopped, result.State)
	require.Equal(t, 1, result.Commands)
	require.Equal(t, "내일 오후 3시 회의", result.LastCommand)
	require.False(t, result.FinishedAt.Before(result.StartedAt))
	require.Equal(t, []string{"global:false"}, fv.startCalls())
}

func TestRunKeepsCommandForTakeWithoutCommitter(t *testing.T) {
	fv := newFakeVoice()
	ctrl := NewController(fv, Options{
		Global: CommitFunc(func(context.Context, string) error {
			t.Error("global committer must not see local commands")
			return nil
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- ctrl.Run(ctx, Start{Mode: voice.ModeLocal})
	}()

	waitForState(t, ctrl, fsm.StateListening)
	fv.capture("hello world")

	first := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandTake})
	require.True(t, first.OK)
	require.Equal(t, "hello world", first.Command)
	require.Equal(t, string(voice.ModeLocal), first.Mode)

	second := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandTake})
	require.True(t, second.OK)
	require.Empty(t, second.Command)

	cancel()
	result := <-resultCh
	require.NoError(t, result.Err)
	require.Equal(t, fsm.StateStopped, result.State)
	require.Zero(t, result.Commands)
}

func TestRunReturnsPermissionDenied(t *testing.T) {
	fv := newFakeVoice()
	fv.startErr = voice.ErrPermissionDenied
	ctrl := NewController(fv, Options{})

	result := ctrl.Run(context.Background(), Start{Mode: voice.ModeGlobal, Active: true})
	require.ErrorIs(t, result.Err, voice.ErrPermissionDenied)
	require.Equal(t, fsm.StateError, result.State)
	require.NotZero(t, result.FinishedAt)
}

func TestRunEndsWhenSessionFails(t *testing.T) {
	fv := newFakeVoice()
	ctrl := NewController(fv, Options{})

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- ctrl.Run(context.Background(), Start{Mode: voice.ModeGlobal})
	}()

	waitForState(t, ctrl, fsm.StateListening)
	fv.fail(voice.ErrFatalRecognition)

	select {
	case result := <-resultCh:
		require.True(t, errors.Is(result.Err, voice.ErrFatalRecognition))
		require.Equal(t, fsm.StateStopped, result.State)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run to end")
	}
}

func TestRunLogsDispatchFailureAndContinues(t *testing.T) {
	fv := newFakeVoice()
	calls := make(chan string, 2)
	ctrl := NewController(fv, Options{
		Local: CommitFunc(func(_ context.Context, command string) error {
			calls <- command
			return errors.New("clipboard unavailable")
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- ctrl.Run(ctx, Start{Mode: voice.ModeLocal})
	}()

	waitForState(t, ctrl, fsm.StateListening)
	fv.capture("first")
	require.Equal(t, "first", <-calls)
	waitFor(t, func() bool { return !fv.Snapshot().HasCommand })
	fv.capture("second")
	require.Equal(t, "second", <-calls)

	cancel()
	result := <-resultCh
	require.NoError(t, result.Err)
}

func TestKeepAliveServesStartRequests(t *testing.T) {
	fv := newFakeVoice()
	ctrl := NewController(fv, Options{KeepAlive: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- ctrl.Run(ctx, Start{})
	}()

	waitFor(t, func() bool {
		ctrl.mu.RLock()
		defer ctrl.mu.RUnlock()
		return ctrl.runCtx != nil
	})

	global := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandStartGlobal, Active: true})
	require.True(t, global.OK, global.Error)
	require.Equal(t, string(fsm.StateActive), global.State)
	require.True(t, global.Active)

	stop := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandStop})
	require.True(t, stop.OK)
	waitForState(t, ctrl, fsm.StateStopped)

	local := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandStartLocal})
	require.True(t, local.OK, local.Error)
	require.Equal(t, string(voice.ModeLocal), local.Mode)

	select {
	case <-resultCh:
		t.Fatal("keep-alive run ended before cancellation")
	default:
	}

	cancel()
	result := <-resultCh
	require.NoError(t, result.Err)
	require.Equal(t, []string{"global:true", "local:false"}, fv.startCalls())
}

func waitForState(t *testing.T, ctrl *Controller, desired fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State() == desired {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s (current=%s)", desired, ctrl.State())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}
