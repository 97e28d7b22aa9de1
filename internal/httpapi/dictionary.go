package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rbright/dpt/internal/dictionary"
)

type learnRequest struct {
	Keyword     string `json:"keyword"`
	Replacement string `json:"replacement"`
	Type        string `json:"type,omitempty"`
}

func (s *Server) handleListDictionary(w http.ResponseWriter, r *http.Request) {
	if s.opts.Dictionary == nil {
		unavailable(w, "dictionary")
		return
	}
	entries := s.opts.Dictionary.Entries()
	if text := strings.TrimSpace(r.URL.Query().Get("match")); text != "" {
		entries = s.opts.Dictionary.FindMatches(text)
	}
	if entries == nil {
		entries = []dictionary.Entry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	if s.opts.Dictionary == nil {
		unavailable(w, "dictionary")
		return
	}

	var req learnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	kind, err := dictionary.ParseKind(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_type", err.Error())
		return
	}
	if strings.TrimSpace(req.Keyword) == "" || strings.TrimSpace(req.Replacement) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "keyword and replacement are required")
		return
	}

	entry, err := s.opts.Dictionary.Learn(r.Context(), req.Keyword, req.Replacement, kind)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "learn_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	if s.opts.Dictionary == nil {
		unavailable(w, "dictionary")
		return
	}

	keyword := strings.TrimSpace(chi.URLParam(r, "keyword"))
	if keyword == "" {
		keyword = strings.TrimSpace(r.URL.Query().Get("keyword"))
	}
	if keyword == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "keyword is required")
		return
	}

	if err := s.opts.Dictionary.Forget(r.Context(), keyword); err != nil {
		if errors.Is(err, dictionary.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "forget_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
