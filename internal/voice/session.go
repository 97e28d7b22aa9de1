package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rbright/dpt/internal/audio"
	"github.com/rbright/dpt/internal/fsm"
	"github.com/rbright/dpt/internal/transcript"
)

// Options configures a Session. Zero durations, an empty locale, a nil
// clock and a nil logger take defaults. Empty feedback texts are skipped.
type Options struct {
	Microphone  Microphone
	Meter       Meter
	Synthesizer Synthesizer
	Notifier    Notifier
	Observer    Observer
	Wake        *WakeDetector
	Clock       clockwork.Clock
	Logger      *slog.Logger

	Locale        string
	RestartDelay  time.Duration
	MeterInterval time.Duration

	// Acknowledgement is spoken when the wake phrase opens the gate.
	Acknowledgement string
	// ActiveHintText is shown when a global start skips the wake gate.
	ActiveHintText string
	// PermissionText is shown when microphone access is refused.
	PermissionText string
	// FailureText is shown when the recognizer fails for good.
	FailureText string
}

// DefaultOptions returns the stock Korean feedback and timings.
func DefaultOptions() Options {
	return Options{
		Locale:          "ko-KR",
		RestartDelay:    time.Second,
		MeterInterval:   100 * time.Millisecond,
		Acknowledgement: "네?",
		ActiveHintText:  "듣고 있습니다...",
		PermissionText:  "마이크 권한이 없습니다.",
		FailureText:     "음성 인식을 사용할 수 없습니다.",
	}
}

// Snapshot is a read-only copy of the observable session state.
type Snapshot struct {
	State              fsm.State `json:"state"`
	Mode               Mode      `json:"mode"`
	Listening          bool      `json:"listening"`
	Active             bool      `json:"active"`
	Transcript         string    `json:"transcript"`
	LastCommand        string    `json:"last_command,omitempty"`
	HasCommand         bool      `json:"has_command"`
	Volume             int       `json:"volume"`
	Speaking           bool      `json:"speaking"`
	PermissionsGranted bool      `json:"permissions_granted"`
	Error              string    `json:"error,omitempty"`
}

// Session owns one recognizer stream at a time plus the microphone used for
// metering. All methods are safe for concurrent use.
type Session struct {
	recognizer Recognizer
	mic        Microphone
	meter      Meter
	synth      Synthesizer
	notify     Notifier
	observer   Observer
	wake       *WakeDetector
	clock      clockwork.Clock
	logger     *slog.Logger
	opts       Options

	slot *commandSlot

	mu                 sync.Mutex
	state              fsm.State
	mode               Mode
	activateOnReady    bool
	transcript         string
	volume             int
	permissionsGranted bool
	lastErr            error

	// gen invalidates start and restart work begun before a stop.
	gen uint64
	// streamID invalidates events from streams that are no longer current.
	streamID uint64

	runCtx    context.Context
	runCancel context.CancelFunc
	stream    Stream
	micHandle io.Closer
	meterStop chan struct{}
	meterDone chan struct{}
	restart   clockwork.Timer

	speaking     bool
	speechID     uint64
	speechCancel context.CancelFunc

	subMu         sync.Mutex
	subs          map[int]chan Snapshot
	nextSub       int
	observedState fsm.State
	observedMode  Mode
}

// New constructs a stopped session.
func New(recognizer Recognizer, opts Options) *Session {
	defaults := DefaultOptions()
	if opts.Locale == "" {
		opts.Locale = defaults.Locale
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaults.RestartDelay
	}
	if opts.MeterInterval <= 0 {
		opts.MeterInterval = defaults.MeterInterval
	}

	s := &Session{
		recognizer:    recognizer,
		mic:           opts.Microphone,
		meter:         opts.Meter,
		synth:         opts.Synthesizer,
		notify:        opts.Notifier,
		observer:      opts.Observer,
		wake:          opts.Wake,
		clock:         opts.Clock,
		logger:        opts.Logger,
		opts:          opts,
		slot:          newCommandSlot(),
		state:         fsm.StateStopped,
		mode:          ModeGlobal,
		subs:          make(map[int]chan Snapshot),
		observedState: fsm.StateStopped,
		observedMode:  ModeGlobal,
	}
	if s.meter == nil {
		s.meter = audio.NewLevelMeter()
	}
	if s.synth == nil {
		s.synth = noopSynthesizer{}
	}
	if s.notify == nil {
		s.notify = noopNotifier{}
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if s.wake == nil {
		s.wake = NewWakeDetector(DefaultWakePhrases, 0)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// StartGlobal begins wake-gated listening. With activeHint the gate starts
// open so the next finalized utterance is taken as a command.
func (s *Session) StartGlobal(ctx context.Context, activeHint bool) error {
	return s.start(ctx, ModeGlobal, activeHint)
}

// StartLocal begins dictation listening where every finalized utterance is
// a command.
func (s *Session) StartLocal(ctx context.Context) error {
	return s.start(ctx, ModeLocal, false)
}

// start blocks while the microphone and first recognizer stream open. A
// session that is already running switches mode in place.
func (s *Session) start(ctx context.Context, mode Mode, activate bool) error {
	s.mu.Lock()
	if s.state == fsm.StateStarting || fsm.Listening(s.state) {
		hinted := s.switchModeLocked(mode, activate)
		s.mu.Unlock()
		s.publish()
		if hinted {
			s.inform(ctx, s.opts.ActiveHintText)
		}
		return nil
	}

	next, err := fsm.Transition(s.state, fsm.EventStart)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	s.mode = mode
	s.activateOnReady = mode == ModeGlobal && activate
	s.transcript = ""
	s.lastErr = nil
	s.gen++
	gen := s.gen
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCtx = runCtx
	s.runCancel = cancel
	s.mu.Unlock()
	s.publish()

	s.logger.Info("voice session starting", "mode", string(mode), "active_hint", activate)

	var micHandle io.Closer
	if s.mic != nil {
		handle, err := s.mic.Open(runCtx, s.meter)
		switch {
		case err == nil:
			micHandle = handle
		case !s.current(gen):
			return nil
		case errors.Is(err, ErrPermissionDenied):
			s.terminate(gen, 0, fsm.EventDeny, err)
			return err
		default:
			s.logger.Warn("microphone unavailable; continuing without level meter", "error", err)
		}
	}

	stream, err := s.recognizer.Open(runCtx, s.opts.Locale)
	if err != nil {
		closeQuietly(micHandle)
		if !s.current(gen) {
			return nil
		}
		if errors.Is(err, ErrPermissionDenied) {
			s.terminate(gen, 0, fsm.EventDeny, err)
			return err
		}
		cause := fmt.Errorf("%w: open recognizer: %v", ErrFatalRecognition, err)
		s.terminate(gen, 0, fsm.EventFail, cause)
		return cause
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		_ = stream.Close()
		closeQuietly(micHandle)
		return nil
	}
	s.state, _ = fsm.Transition(s.state, fsm.EventReady)
	hinted := false
	if s.activateOnReady {
		s.state, _ = fsm.Transition(s.state, fsm.EventActivate)
		s.activateOnReady = false
		hinted = true
	}
	if micHandle != nil {
		s.micHandle = micHandle
		s.permissionsGranted = true
		s.meterStop = make(chan struct{})
		s.meterDone = make(chan struct{})
		go s.runMeter(s.meterStop, s.meterDone)
	}
	s.streamID++
	id := s.streamID
	s.stream = stream
	s.mu.Unlock()

	go s.pump(id, stream)
	s.publish()
	s.logger.Info("voice session listening", "mode", string(mode), "metering", micHandle != nil)
	if hinted {
		s.inform(ctx, s.opts.ActiveHintText)
	}
	return nil
}

// switchModeLocked retargets a running session and reports whether the
// wake gate was opened by the hint.
func (s *Session) switchModeLocked(mode Mode, activate bool) bool {
	s.mode = mode
	s.transcript = ""
	if s.state == fsm.StateStarting {
		s.activateOnReady = mode == ModeGlobal && activate
		return false
	}
	if mode == ModeGlobal && activate {
		if s.state == fsm.StateActive {
			return false
		}
		s.state, _ = fsm.Transition(s.state, fsm.EventActivate)
		return true
	}
	s.state, _ = fsm.Transition(s.state, fsm.EventDisarm)
	return false
}

// Stop ends the session from any state. Calling it again is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == fsm.StateStopped {
		s.mu.Unlock()
		return
	}
	s.state, _ = fsm.Transition(s.state, fsm.EventStop)
	s.gen++
	s.transcript = ""
	s.activateOnReady = false
	res := s.detachLocked()
	s.mu.Unlock()

	s.release(res)
	s.publish()
	s.logger.Info("voice session stopped")
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	command, pending := s.slot.peek()
	snap := Snapshot{
		State:              s.state,
		Mode:               s.mode,
		Listening:          fsm.Listening(s.state),
		Active:             s.state == fsm.StateActive || (s.mode == ModeLocal && fsm.Listening(s.state)),
		Transcript:         s.transcript,
		LastCommand:        command,
		HasCommand:         pending,
		Volume:             s.volume,
		Speaking:           s.speaking,
		PermissionsGranted: s.permissionsGranted,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// Err returns the error that moved the session to ERROR or STOPPED, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// TakeCommand consumes the pending command, if there is one.
func (s *Session) TakeCommand() (string, bool) {
	command, ok := s.slot.take()
	if ok {
		s.publish()
	}
	return command, ok
}

// WaitCommand blocks until a command is captured and consumes it.
func (s *Session) WaitCommand(ctx context.Context) (string, error) {
	command, err := s.slot.wait(ctx)
	if err == nil {
		s.publish()
	}
	return command, err
}

// Subscribe streams snapshots after every change. Slow subscribers only see
// the latest snapshot. The returned func unsubscribes.
func (s *Session) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// publish fans the latest snapshot out and reports state changes.
func (s *Session) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	snap := s.Snapshot()
	if snap.State != s.observedState || snap.Mode != s.observedMode {
		s.observedState = snap.State
		s.observedMode = snap.Mode
		s.observer.StateChanged(snap.State, snap.Mode)
	}
	for _, ch := range s.subs {
		offer(ch, snap)
	}
}

func offer(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// pump delivers one stream's events in order, then handles its end.
func (s *Session) pump(id uint64, stream Stream) {
	for event := range stream.Events() {
		s.handle(id, event)
	}
	if ended := s.ended(id); ended != nil {
		_ = ended.Close()
	}
}

func (s *Session) handle(id uint64, event Event) {
	switch event.Type {
	case EventError:
		s.recognitionError(id, event)
	case EventPartial, EventFinal:
		s.result(id, event)
	}
}

func (s *Session) result(id uint64, event Event) {
	final := event.Type == EventFinal
	text := transcript.Clean(event.Text)

	s.mu.Lock()
	if id != s.streamID || !fsm.Listening(s.state) {
		s.mu.Unlock()
		return
	}
	s.transcript = text

	var (
		woke     bool
		match    WakeMatch
		captured bool
	)
	switch {
	case s.mode == ModeLocal || s.state == fsm.StateActive:
		if final && text != "" {
			s.slot.put(text)
			s.transcript = ""
			s.state, _ = fsm.Transition(s.state, fsm.EventCommand)
			captured = true
		}
	default:
		if m, ok := s.wake.Match(text); ok {
			s.state, _ = fsm.Transition(s.state, fsm.EventActivate)
			s.transcript = ""
			match = m
			woke = true
		}
	}
	mode := s.mode
	s.mu.Unlock()

	if woke {
		s.logger.Info("wake phrase detected", "phrase", match.Phrase, "score", match.Score)
		s.observer.WakeDetected(match.Phrase, match.Score)
		s.Speak(s.opts.Acknowledgement, nil)
	}
	if captured {
		s.logger.Info("voice command captured", "mode", string(mode), "chars", len([]rune(text)))
		s.observer.CommandCaptured(mode)
	}
	s.publish()
}

func (s *Session) recognitionError(id uint64, event Event) {
	class := classify(event.Code)
	s.observer.RecognitionError(event.Code, class != errorTransient)

	switch class {
	case errorTransient:
		s.logger.Debug("transient recognition error ignored", "code", event.Code)
	case errorDenied:
		s.terminate(0, id, fsm.EventDeny, fmt.Errorf("%w: %s", ErrPermissionDenied, event.Code))
	default:
		detail := event.Code
		if event.Detail != "" {
			detail += ": " + event.Detail
		}
		s.terminate(0, id, fsm.EventFail, fmt.Errorf("%w: %s", ErrFatalRecognition, detail))
	}
}

// ended clears the finished stream and schedules a restart when the
// session is still listening. It returns the stream for the caller to close.
func (s *Session) ended(id uint64) Stream {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.streamID || s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil
	if !fsm.Listening(s.state) {
		return stream
	}

	gen := s.gen
	s.restart = s.clock.AfterFunc(s.opts.RestartDelay, func() {
		s.restartStream(gen)
	})
	s.logger.Debug("recognition stream ended; restart scheduled", "delay", s.opts.RestartDelay)
	return stream
}

// RestartPending reports whether a restart timer is armed.
func (s *Session) RestartPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restart != nil
}

func (s *Session) restartStream(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !fsm.Listening(s.state) {
		s.mu.Unlock()
		return
	}
	s.restart = nil
	ctx := s.runCtx
	s.mu.Unlock()

	stream, err := s.recognizer.Open(ctx, s.opts.Locale)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			s.terminate(gen, 0, fsm.EventDeny, err)
			return
		}
		s.terminate(gen, 0, fsm.EventFail, fmt.Errorf("%w: reopen recognizer: %v", ErrFatalRecognition, err))
		return
	}

	s.mu.Lock()
	if gen != s.gen || !fsm.Listening(s.state) {
		s.mu.Unlock()
		_ = stream.Close()
		return
	}
	s.streamID++
	id := s.streamID
	s.stream = stream
	s.mu.Unlock()

	s.observer.StreamRestarted()
	s.logger.Debug("recognition stream restarted")
	go s.pump(id, stream)
}

// terminate applies a deny or fail event unless the session moved on.
// A zero gen or streamID skips that staleness check.
func (s *Session) terminate(gen, streamID uint64, event fsm.Event, cause error) {
	s.mu.Lock()
	if (gen != 0 && gen != s.gen) || (streamID != 0 && streamID != s.streamID) {
		s.mu.Unlock()
		return
	}
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.gen++
	s.transcript = ""
	s.activateOnReady = false
	s.lastErr = cause
	res := s.detachLocked()
	s.mu.Unlock()

	s.release(res)
	s.publish()

	ctx := context.Background()
	if event == fsm.EventDeny {
		s.logger.Error("voice session denied microphone access", "error", cause)
		s.alert(ctx, s.opts.PermissionText)
		return
	}
	s.logger.Error("voice session stopped after recognition failure", "error", cause)
	s.alert(ctx, s.opts.FailureText)
}

type resources struct {
	restart   clockwork.Timer
	meterDone chan struct{}
	stream    Stream
	mic       io.Closer
	cancel    context.CancelFunc
}

func (s *Session) detachLocked() resources {
	if s.meterStop != nil {
		close(s.meterStop)
	}
	res := resources{
		restart:   s.restart,
		meterDone: s.meterDone,
		stream:    s.stream,
		mic:       s.micHandle,
		cancel:    s.runCancel,
	}
	s.restart = nil
	s.meterStop = nil
	s.meterDone = nil
	s.stream = nil
	s.micHandle = nil
	s.runCancel = nil
	s.volume = 0
	return res
}

// release tears resources down in order: the restart timer and meter ticker
// are gone before the stream and microphone close.
func (s *Session) release(res resources) {
	if res.restart != nil {
		res.restart.Stop()
	}
	if res.meterDone != nil {
		<-res.meterDone
	}
	if res.stream != nil {
		if err := res.stream.Close(); err != nil {
			s.logger.Debug("close recognition stream", "error", err)
		}
	}
	closeQuietly(res.mic)
	if res.cancel != nil {
		res.cancel()
	}
	s.meter.Reset()
}

func (s *Session) runMeter(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.opts.MeterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			level := s.meter.Level()
			s.mu.Lock()
			select {
			case <-stop:
				s.mu.Unlock()
				return
			default:
			}
			changed := level != s.volume
			s.volume = level
			s.mu.Unlock()
			if changed {
				s.publish()
			}
		}
	}
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Session) inform(ctx context.Context, text string) {
	if text != "" {
		s.notify.Info(ctx, text)
	}
}

func (s *Session) alert(ctx context.Context, text string) {
	if text != "" {
		s.notify.Error(ctx, text)
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
