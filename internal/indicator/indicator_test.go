package indicator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/fsm"
	"github.com/rbright/dpt/internal/voice"
)

// fakeBus records calls in busctl argument order and assigns id 42.
type fakeBus struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeBus) call(_ context.Context, method string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+"|"+strings.Join(args, "|"))
	if f.err != nil {
		return "", f.err
	}
	if method == "Notify" {
		return "u 42", nil
	}
	return "", nil
}

func (f *fakeBus) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestNotifier(t *testing.T, cfg config.IndicatorConfig, logger *slog.Logger) (*Notifier, *fakeBus) {
	t.Helper()
	cfg.SoundEnable = false
	bus := &fakeBus{}
	n := New(cfg, logger)
	n.bus = desktopBus{call: bus.call}
	return n, bus
}

func TestDesktopNotifierFollowsSessionState(t *testing.T) {
	t.Setenv("LC_ALL", "en_US.UTF-8")
	notifier, bus := newTestNotifier(t, config.Default().Indicator, nil)

	notifier.StateChanged(fsm.StateStarting, voice.ModeGlobal)
	notifier.StateChanged(fsm.StateListening, voice.ModeGlobal)
	notifier.Info(context.Background(), "hello")
	notifier.Error(context.Background(), "")
	notifier.StateChanged(fsm.StateStopped, voice.ModeGlobal)
	notifier.Close()

	require.Equal(t, []string{
		"Notify|susssasa{sv}i|dpt|0|audio-input-microphone|Waiting for wake phrase||0|0|0",
		"Notify|susssasa{sv}i|dpt|42|audio-input-microphone|hello||0|0|1200",
		"Notify|susssasa{sv}i|dpt|42|dialog-error|Speech recognition error||0|1|urgency|y|2|1600",
		"CloseNotification|u|42",
	}, bus.recorded())
}

func TestDesktopNotifierShowsLocalAndActiveText(t *testing.T) {
	t.Setenv("LC_ALL", "ko_KR.UTF-8")
	notifier, bus := newTestNotifier(t, config.Default().Indicator, nil)

	notifier.StateChanged(fsm.StateListening, voice.ModeLocal)
	notifier.StateChanged(fsm.StateActive, voice.ModeGlobal)
	notifier.Close()

	calls := bus.recorded()
	require.Len(t, calls, 2)
	require.Contains(t, calls[0], "|듣고 있습니다…|")
	require.Contains(t, calls[1], "|말씀하세요…|")
}

func TestErrorFallsBackToDefaultTimeout(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.ErrorTimeoutMS = 0
	notifier, bus := newTestNotifier(t, cfg, nil)

	notifier.Error(context.Background(), "custom error")
	notifier.Close()

	require.Equal(t, []string{
		"Notify|susssasa{sv}i|dpt|0|dialog-error|custom error||0|1|urgency|y|2|1200",
	}, bus.recorded())
}

func TestLogBackendWritesToLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Indicator
	cfg.Backend = "log"
	notifier, bus := newTestNotifier(t, cfg, slog.New(slog.NewJSONHandler(&buf, nil)))

	notifier.Info(context.Background(), "회의 일정을 추가했습니다")
	notifier.Error(context.Background(), "저장 실패")
	notifier.StateChanged(fsm.StateStopped, voice.ModeGlobal)
	notifier.Close()

	require.Contains(t, buf.String(), "회의 일정을 추가했습니다")
	require.Contains(t, buf.String(), `"critical":true`)
	require.Empty(t, bus.recorded())
}

func TestDisabledNotifierSkipsDispatch(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.Enable = false
	notifier, bus := newTestNotifier(t, cfg, nil)

	notifier.StateChanged(fsm.StateListening, voice.ModeGlobal)
	notifier.Info(context.Background(), "ignored")
	notifier.Error(context.Background(), "ignored")
	notifier.Close()

	require.Empty(t, bus.recorded())
}

func TestBusFailureIsLoggedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	notifier, bus := newTestNotifier(t, config.Default().Indicator, logger)
	bus.err = errors.New("no session bus")

	notifier.Info(context.Background(), "hello")
	notifier.Close()

	require.Contains(t, buf.String(), "no session bus")
}

func TestNotifyAfterCloseIsIgnored(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.Backend = "log"
	notifier, _ := newTestNotifier(t, cfg, nil)

	notifier.Close()
	notifier.Close()
	require.NotPanics(t, func() { notifier.Info(context.Background(), "late") })
}

func TestDesktopBusRejectsOddReplies(t *testing.T) {
	for _, reply := range []string{"", "s hello", "u notanumber"} {
		bus := desktopBus{call: func(context.Context, string, ...string) (string, error) { return reply, nil }}
		_, err := bus.notify(context.Background(), notification{appName: "dpt", summary: "x"})
		require.Error(t, err, reply)
	}

	bus := desktopBus{call: func(_ context.Context, method string, args ...string) (string, error) {
		return "", fmt.Errorf("%s failed", method)
	}}
	require.ErrorContains(t, bus.dismiss(context.Background(), 7), "dismiss 7")
}

func TestCuesFollowSessionEvents(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.Enable = false

	notifier := New(cfg, nil)
	defer notifier.Close()

	var (
		mu     sync.Mutex
		played []cueKind
	)
	notifier.cue = func(_ context.Context, kind cueKind) error {
		mu.Lock()
		played = append(played, kind)
		mu.Unlock()
		return nil
	}

	notifier.StateChanged(fsm.StateStarting, voice.ModeGlobal)
	notifier.StateChanged(fsm.StateListening, voice.ModeGlobal)
	notifier.WakeDetected("디피티", 0.5)
	notifier.CommandCaptured(voice.ModeGlobal)
	notifier.Error(context.Background(), "boom")
	notifier.StateChanged(fsm.StateStopped, voice.ModeGlobal)
	// A repeated stop is not a new transition.
	notifier.StateChanged(fsm.StateStopped, voice.ModeGlobal)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(played) == 5
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []cueKind{cueListen, cueWake, cueCommand, cueError, cueStop}, played)
}
