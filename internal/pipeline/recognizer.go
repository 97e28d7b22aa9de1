package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/dpt/internal/audio"
	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/realtime"
	"github.com/rbright/dpt/internal/voice"
)

// sttStream is the subset of *realtime.Stream the recognizer drives.
type sttStream interface {
	Events() <-chan realtime.Event
	SendAudio(chunk []byte) error
	Err() error
	Close() error
}

// chunkSource is the subset of *audio.Capture the recognizer drains.
type chunkSource interface {
	Chunks() <-chan []byte
	Stop() error
}

// Recognizer streams microphone audio to the realtime STT service and
// translates its events for the voice session.
type Recognizer struct {
	cfg    config.Config
	logger *slog.Logger

	selectDevice selectFunc
	transcribe   func(ctx context.Context, locale string, debug io.Writer) (sttStream, error)
	capture      func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (chunkSource, error)
}

var _ voice.Recognizer = (*Recognizer)(nil)

// NewRecognizer wires a recognizer to Pulse capture and the STT endpoint in cfg.
func NewRecognizer(cfg config.Config, logger *slog.Logger) *Recognizer {
	return &Recognizer{
		cfg:          cfg,
		logger:       loggerOrDiscard(logger),
		selectDevice: audio.SelectDevice,
		transcribe: func(ctx context.Context, locale string, debug io.Writer) (sttStream, error) {
			client := NewSTTClient(cfg, debug)
			stream, err := client.Transcribe(ctx, locale)
			if err != nil {
				return nil, err
			}
			return stream, nil
		},
		capture: func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (chunkSource, error) {
			capture, err := audio.StartCapture(ctx, device, opts)
			if err != nil {
				return nil, err
			}
			return capture, nil
		},
	}
}

// Open starts one recognition stream. The stream ends when the service
// closes the session, the input device goes away, or Close is called.
func (r *Recognizer) Open(ctx context.Context, locale string) (voice.Stream, error) {
	selection, err := resolveDevice(ctx, r.selectDevice, r.cfg.Audio, r.logger)
	if err != nil {
		return nil, err
	}

	var rec *debugRecorder
	if r.cfg.Debug.EnableStreamDump || r.cfg.Debug.EnableAudioDump {
		rec, err = newDebugRecorder(time.Now(), r.cfg.Debug.EnableStreamDump, r.cfg.Debug.EnableAudioDump)
		if err != nil {
			r.logger.Warn("debug dumps disabled for this stream", "error", err.Error())
		} else {
			r.logger.Debug("recording debug dumps", "dir", rec.dir)
		}
	}

	stt, err := r.transcribe(ctx, locale, rec.eventSink())
	if err != nil {
		_ = rec.Close()
		if errors.Is(err, realtime.ErrUnauthorized) {
			return nil, fmt.Errorf("%w: %v", voice.ErrPermissionDenied, err)
		}
		return nil, err
	}

	s := &recognitionStream{
		stt:    stt,
		events: make(chan voice.Event, 64),
		done:   make(chan struct{}),
		logger: r.logger,
		debug:  rec,
	}
	opts := audio.CaptureOptions{Chunks: true, MediaName: "dpt recognition", Tap: rec.audioTap()}

	capture, err := r.capture(ctx, selection.Device, opts)
	if err != nil {
		_ = stt.Close()
		_ = rec.Close()
		return nil, classifyAudioError(err)
	}
	s.capture = capture

	s.wg.Add(2)
	go s.sendLoop()
	go s.readLoop()
	return s, nil
}

type recognitionStream struct {
	stt     sttStream
	capture chunkSource
	logger  *slog.Logger

	events chan voice.Event
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	debug  *debugRecorder
}

func (s *recognitionStream) Events() <-chan voice.Event {
	return s.events
}

// Close stops capture and the STT session, then waits for both loops.
func (s *recognitionStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.capture.Stop()
		err = s.stt.Close()
		s.wg.Wait()
		if debugErr := s.debug.Close(); debugErr != nil {
			s.logger.Warn("unable to finish debug dumps", "error", debugErr.Error())
		}
	})
	return err
}

// sendLoop forwards capture chunks until capture ends or a send fails.
// Either way the STT session is closed so readLoop ends the stream.
func (s *recognitionStream) sendLoop() {
	defer s.wg.Done()
	defer func() { _ = s.stt.Close() }()

	for chunk := range s.capture.Chunks() {
		if err := s.stt.SendAudio(chunk); err != nil {
			s.logger.Debug("stt send failed", "error", err.Error())
			_ = s.capture.Stop()
			for range s.capture.Chunks() {
			}
			return
		}
	}
}

func (s *recognitionStream) readLoop() {
	defer s.wg.Done()
	defer close(s.events)

	for event := range s.stt.Events() {
		translated, keep, end := translateEvent(event)
		if end {
			s.logger.Debug("stt session ended by server", "code", event.Code)
			break
		}
		if !keep {
			continue
		}
		select {
		case s.events <- translated:
		case <-s.done:
			return
		}
	}
	if err := s.stt.Err(); err != nil {
		s.logger.Debug("stt receive ended", "error", err.Error())
	}
	_ = s.capture.Stop()
}

// translateEvent maps service events onto recognizer events. end reports a
// session the server closed on purpose; the voice session restarts it.
func translateEvent(event realtime.Event) (translated voice.Event, keep bool, end bool) {
	switch event.Type {
	case realtime.EventPartial:
		return voice.Event{Type: voice.EventPartial, Text: event.Text}, true, false
	case realtime.EventCommitted:
		return voice.Event{Type: voice.EventFinal, Text: event.Text}, true, false
	}

	code := event.Code
	switch event.Code {
	case realtime.CodeSessionTimeLimit:
		return voice.Event{}, false, true
	case realtime.CodeInsufficientAudio:
		code = voice.CodeNoSpeech
	case realtime.CodeAuthError:
		code = voice.CodeServiceNotAllowed
	}
	return voice.Event{Type: voice.EventError, Code: code, Detail: event.Detail}, true, false
}
