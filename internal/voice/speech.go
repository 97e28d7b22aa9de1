package voice

import (
	"context"
	"errors"
	"strings"
)

// Speak starts speaking text and returns at once, cutting off any utterance
// already in progress. onDone runs only when playback finishes on its own.
func (s *Session) Speak(text string, onDone func()) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.speechCancel != nil {
		s.speechCancel()
	}
	s.speechID++
	id := s.speechID
	s.speechCancel = cancel
	s.speaking = true
	s.mu.Unlock()
	s.publish()

	go func() {
		defer cancel()
		err := s.synth.Speak(ctx, text)

		s.mu.Lock()
		current := id == s.speechID
		if current {
			s.speaking = false
			s.speechCancel = nil
		}
		s.mu.Unlock()
		if !current {
			return
		}
		s.publish()

		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("speech synthesis failed", "error", err)
			}
			return
		}
		if onDone != nil {
			onDone()
		}
	}()
}

// StopSpeaking cancels the current utterance without running its callback.
func (s *Session) StopSpeaking() {
	s.mu.Lock()
	if s.speechCancel != nil {
		s.speechCancel()
		s.speechCancel = nil
	}
	s.speechID++
	wasSpeaking := s.speaking
	s.speaking = false
	s.mu.Unlock()

	if wasSpeaking {
		s.publish()
	}
}

// Speaking reports whether an utterance is playing.
func (s *Session) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}
