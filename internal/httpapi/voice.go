package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/dpt/internal/voice"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
)

type startRequest struct {
	Mode   string `json:"mode,omitempty"`
	Active bool   `json:"active,omitempty"`
}

type speakRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleVoiceState(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Voice == nil {
		unavailable(w, "voice session")
		return
	}
	respondJSON(w, http.StatusOK, s.opts.Voice.Snapshot())
}

func (s *Server) handleVoiceStart(w http.ResponseWriter, r *http.Request) {
	if s.opts.Voice == nil {
		unavailable(w, "voice session")
		return
	}

	var req startRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var err error
	switch voice.Mode(strings.ToLower(strings.TrimSpace(req.Mode))) {
	case "", voice.ModeGlobal:
		err = s.opts.Voice.StartGlobal(s.runCtx, req.Active)
	case voice.ModeLocal:
		err = s.opts.Voice.StartLocal(s.runCtx)
	default:
		respondError(w, http.StatusBadRequest, "invalid_mode", "mode must be global or local")
		return
	}
	if err != nil {
		if errors.Is(err, voice.ErrPermissionDenied) {
			respondError(w, http.StatusForbidden, "permission_denied", err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "start_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.opts.Voice.Snapshot())
}

func (s *Server) handleVoiceStop(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Voice == nil {
		unavailable(w, "voice session")
		return
	}
	s.opts.Voice.Stop()
	respondJSON(w, http.StatusOK, s.opts.Voice.Snapshot())
}

func (s *Server) handleVoiceTake(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Voice == nil {
		unavailable(w, "voice session")
		return
	}
	command, ok := s.opts.Voice.TakeCommand()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"command": command})
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.opts.Voice == nil {
		unavailable(w, "voice session")
		return
	}

	var req speakRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	s.opts.Voice.Speak(req.Text, nil)
	respondJSON(w, http.StatusAccepted, map[string]bool{"speaking": true})
}

func (s *Server) handleStopSpeaking(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Voice == nil {
		unavailable(w, "voice session")
		return
	}
	s.opts.Voice.StopSpeaking()
	w.WriteHeader(http.StatusNoContent)
}

// handleVoiceStream pushes the current snapshot and then every change
// until the client goes away.
func (s *Server) handleVoiceStream(w http.ResponseWriter, r *http.Request) {
	if s.opts.Voice == nil {
		unavailable(w, "voice session")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	snapshots, unsubscribe := s.opts.Voice.Subscribe(4)
	defer unsubscribe()

	// The read side only watches for close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.writeSnapshot(conn, s.opts.Voice.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-s.runCtx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(streamWriteTimeout),
			)
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := s.writeSnapshot(conn, snap); err != nil {
				s.logger.Debug("voice stream write failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn, snap voice.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(snap)
}
