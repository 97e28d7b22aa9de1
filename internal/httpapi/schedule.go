package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/dpt/internal/schedule"
)

type parseRequest struct {
	Text string `json:"text"`
	// Reference is RFC 3339; empty means now.
	Reference string `json:"reference,omitempty"`
}

type parseResponse struct {
	Schedule    schedule.Schedule `json:"schedule"`
	Description string            `json:"description"`
	// Accepted is true when confidence clears the auto-create threshold.
	Accepted  bool `json:"accepted"`
	Confident bool `json:"confident"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if s.opts.Parser == nil {
		unavailable(w, "schedule parser")
		return
	}

	var req parseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	reference := s.clock.Now().In(s.opts.Location)
	if req.Reference != "" {
		parsed, err := time.Parse(time.RFC3339, req.Reference)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_reference", err.Error())
			return
		}
		reference = parsed.In(s.opts.Location)
	}

	result, err := s.opts.Parser.Parse(req.Text, reference)
	if err != nil {
		if errors.Is(err, schedule.ErrNoParse) {
			respondError(w, http.StatusUnprocessableEntity, "no_parse", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "parse_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, parseResponse{
		Schedule:    result,
		Description: result.Describe(reference),
		Accepted:    result.Confidence > s.opts.AutoThreshold,
		Confident:   result.Confidence >= s.opts.ConfirmThreshold,
	})
}
