// Package voice runs a continuous speech-recognition session with a wake
// phrase gate, a single-slot command hand-off, a live input level and
// spoken feedback.
package voice

import (
	"context"
	"errors"
	"io"

	"github.com/rbright/dpt/internal/fsm"
)

var (
	// ErrPermissionDenied means the microphone or recognizer refused access.
	// The session parks in ERROR until started again.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrFatalRecognition wraps recognizer failures that stop the session.
	ErrFatalRecognition = errors.New("speech recognition failed")
)

// Mode selects how finalized utterances are treated.
type Mode string

const (
	// ModeGlobal requires a wake phrase before each command.
	ModeGlobal Mode = "global"
	// ModeLocal treats every finalized utterance as a command.
	ModeLocal Mode = "local"
)

// EventType classifies recognizer stream events.
type EventType string

const (
	EventPartial EventType = "partial"
	EventFinal   EventType = "final"
	EventError   EventType = "error"
)

// Recognizer error codes with special handling. Any other code is fatal.
const (
	CodeNoSpeech          = "no-speech"
	CodeSpeechTimeout     = "speech-timeout"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
)

// Event is one recognizer result or error.
type Event struct {
	Type   EventType
	Text   string
	Code   string
	Detail string
}

// Recognizer opens continuous, interim-results recognition streams.
type Recognizer interface {
	Open(ctx context.Context, locale string) (Stream, error)
}

// Stream delivers events until the recognizer ends the session, at which
// point Events is closed.
type Stream interface {
	Events() <-chan Event
	Close() error
}

// Microphone opens the input device and copies raw s16le PCM into sink
// until the returned closer is closed. Open returns an error wrapping
// ErrPermissionDenied when access is refused.
type Microphone interface {
	Open(ctx context.Context, sink io.Writer) (io.Closer, error)
}

// Meter turns written PCM into a 0-100 level.
type Meter interface {
	io.Writer
	Level() int
	Reset()
}

// Synthesizer speaks text and blocks until playback finishes or ctx ends.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Notifier shows short user-facing messages.
type Notifier interface {
	Info(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// Observer receives session telemetry.
type Observer interface {
	StateChanged(state fsm.State, mode Mode)
	WakeDetected(phrase string, score float64)
	CommandCaptured(mode Mode)
	StreamRestarted()
	RecognitionError(code string, fatal bool)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(context.Context, string) error

func (f SynthesizerFunc) Speak(ctx context.Context, text string) error {
	return f(ctx, text)
}

type noopSynthesizer struct{}

func (noopSynthesizer) Speak(context.Context, string) error { return nil }

type noopNotifier struct{}

func (noopNotifier) Info(context.Context, string)  {}
func (noopNotifier) Error(context.Context, string) {}

type noopObserver struct{}

func (noopObserver) StateChanged(fsm.State, Mode)  {}
func (noopObserver) WakeDetected(string, float64)  {}
func (noopObserver) CommandCaptured(Mode)          {}
func (noopObserver) StreamRestarted()              {}
func (noopObserver) RecognitionError(string, bool) {}

type errorClass int

const (
	errorTransient errorClass = iota
	errorDenied
	errorFatal
)

func classify(code string) errorClass {
	switch code {
	case CodeNoSpeech, CodeSpeechTimeout:
		return errorTransient
	case CodeNotAllowed, CodeServiceNotAllowed:
		return errorDenied
	default:
		return errorFatal
	}
}

// JoinObservers fans telemetry out to every non-nil observer in order.
func JoinObservers(observers ...Observer) Observer {
	joined := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			joined = append(joined, o)
		}
	}
	return joined
}

type multiObserver []Observer

func (m multiObserver) StateChanged(state fsm.State, mode Mode) {
	for _, o := range m {
		o.StateChanged(state, mode)
	}
}

func (m multiObserver) WakeDetected(phrase string, score float64) {
	for _, o := range m {
		o.WakeDetected(phrase, score)
	}
}

func (m multiObserver) CommandCaptured(mode Mode) {
	for _, o := range m {
		o.CommandCaptured(mode)
	}
}

func (m multiObserver) StreamRestarted() {
	for _, o := range m {
		o.StreamRestarted()
	}
}

func (m multiObserver) RecognitionError(code string, fatal bool) {
	for _, o := range m {
		o.RecognitionError(code, fatal)
	}
}
