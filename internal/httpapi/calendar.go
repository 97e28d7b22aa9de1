package httpapi

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rbright/dpt/internal/calendar"
)

func (s *Server) handleCalendarFeed(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Calendar == nil {
		unavailable(w, "calendar")
		return
	}

	var buf bytes.Buffer
	if err := calendar.WriteICS(&buf, s.opts.Calendar.Name(), s.opts.Calendar.Events(), s.clock.Now()); err != nil {
		respondError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+s.opts.Calendar.Name()+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleListEvents returns every event, or those starting in [from, to)
// when both RFC 3339 bounds are given.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Calendar == nil {
		unavailable(w, "calendar")
		return
	}

	query := r.URL.Query()
	rawFrom, rawTo := strings.TrimSpace(query.Get("from")), strings.TrimSpace(query.Get("to"))
	events := s.opts.Calendar.Events()
	if rawFrom != "" || rawTo != "" {
		from, err := time.Parse(time.RFC3339, rawFrom)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_range", "from: "+err.Error())
			return
		}
		to, err := time.Parse(time.RFC3339, rawTo)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_range", "to: "+err.Error())
			return
		}
		events = s.opts.Calendar.Between(from, to)
	}
	if events == nil {
		events = []calendar.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleRemoveEvent(w http.ResponseWriter, r *http.Request) {
	if s.opts.Calendar == nil {
		unavailable(w, "calendar")
		return
	}

	removed, err := s.opts.Calendar.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "remove_failed", err.Error())
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "not_found", "event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
