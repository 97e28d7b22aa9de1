package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
)

// EventType classifies transcription events.
type EventType string

const (
	EventPartial   EventType = "partial"
	EventCommitted EventType = "committed"
	EventError     EventType = "error"
)

// Server error message types with well-known meaning.
const (
	CodeAuthError         = "auth_error"
	CodeQuotaExceeded     = "quota_exceeded"
	CodeInsufficientAudio = "insufficient_audio_activity"
	CodeSessionTimeLimit  = "session_time_limit_exceeded"
)

// Event is one transcription update from the server.
type Event struct {
	Type   EventType
	Text   string
	Code   string
	Detail string
}

type serverMessage struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	Error       string `json:"error"`
}

type audioChunk struct {
	MessageType string `json:"message_type"`
	Audio       string `json:"audio_base_64"`
	Commit      bool   `json:"commit"`
	SampleRate  int    `json:"sample_rate"`
}

// Stream is one speech-to-text session. Events closes when the server ends
// the session or Close is called.
type Stream struct {
	conn       *websocket.Conn
	sampleRate int
	debug      io.Writer

	writeMu sync.Mutex
	events  chan Event
	done    chan struct{}

	closeOnce sync.Once

	mu      sync.Mutex
	recvErr error
	closed  bool
}

// Transcribe opens a VAD-committed transcription session for locale.
func (c *Client) Transcribe(ctx context.Context, locale string) (*Stream, error) {
	query := url.Values{}
	query.Set("model_id", c.cfg.STTModel)
	query.Set("commit_strategy", "vad")
	query.Set("audio_format", "pcm_"+strconv.Itoa(c.cfg.SampleRate))
	if code := languageCode(locale); code != "" {
		query.Set("language_code", code)
	}
	target, err := c.endpoint("/v1/speech-to-text/realtime", query)
	if err != nil {
		return nil, err
	}

	conn, err := c.dial(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("dial stt websocket: %w", err)
	}

	s := &Stream{
		conn:       conn,
		sampleRate: c.cfg.SampleRate,
		debug:      c.cfg.DebugSink,
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Events returns transcription updates in server order.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// SendAudio sends one chunk of s16le mono PCM.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	return s.send(audioChunk{
		MessageType: "input_audio_chunk",
		Audio:       base64.StdEncoding.EncodeToString(chunk),
		SampleRate:  s.sampleRate,
	})
}

// Commit asks the server to finalize the pending utterance.
func (s *Stream) Commit() error {
	return s.send(audioChunk{
		MessageType: "input_audio_chunk",
		Commit:      true,
		SampleRate:  s.sampleRate,
	})
}

func (s *Stream) send(msg audioChunk) error {
	s.mu.Lock()
	closed := s.closed
	recvErr := s.recvErr
	s.mu.Unlock()

	if closed {
		return errors.New("stt stream already closed")
	}
	if recvErr != nil {
		return fmt.Errorf("stt receive loop failed: %w", recvErr)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

// Err returns the receive error that ended the stream, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvErr
}

// Close ends the session. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)

		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadlineSoon(),
		)
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *Stream) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if !s.closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.recvErr = err
			}
			s.mu.Unlock()
			return
		}
		if s.debug != nil {
			_, _ = s.debug.Write(append(data, '\n'))
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		event, ok := decodeEvent(msg)
		if !ok {
			continue
		}
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func decodeEvent(msg serverMessage) (Event, bool) {
	switch msg.MessageType {
	case "partial_transcript":
		return Event{Type: EventPartial, Text: msg.Text}, true
	case "committed_transcript", "committed_transcript_with_timestamps":
		return Event{Type: EventCommitted, Text: msg.Text}, true
	case "", "session_started", "input_audio_chunk":
		return Event{}, false
	default:
		return Event{Type: EventError, Code: msg.MessageType, Detail: msg.Error}, true
	}
}
