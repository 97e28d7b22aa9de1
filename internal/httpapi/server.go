// Package httpapi serves the schedule parser, the term dictionary, voice
// session control and the calendar feed over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/rbright/dpt/internal/calendar"
	"github.com/rbright/dpt/internal/dictionary"
	"github.com/rbright/dpt/internal/schedule"
	"github.com/rbright/dpt/internal/voice"
)

// Voice is the session surface exposed over HTTP.
type Voice interface {
	StartGlobal(ctx context.Context, activeHint bool) error
	StartLocal(ctx context.Context) error
	Stop()
	Snapshot() voice.Snapshot
	Subscribe(buffer int) (<-chan voice.Snapshot, func())
	Speak(text string, onDone func())
	StopSpeaking()
	TakeCommand() (string, bool)
}

// Parser resolves schedule text against a reference time.
type Parser interface {
	Parse(text string, reference time.Time) (schedule.Schedule, error)
}

// Dictionary is the term store surface.
type Dictionary interface {
	Entries() []dictionary.Entry
	Learn(ctx context.Context, keyword, replacement string, kind dictionary.Kind) (dictionary.Entry, error)
	Forget(ctx context.Context, keyword string) error
	FindMatches(text string) []dictionary.Entry
}

// Calendar is the read side of the event sink.
type Calendar interface {
	Name() string
	Events() []calendar.Event
	Between(from, to time.Time) []calendar.Event
	Remove(ctx context.Context, id string) (bool, error)
}

// Options wires the server. Nil collaborators disable their routes with 503.
type Options struct {
	Voice      Voice
	Parser     Parser
	Dictionary Dictionary
	Calendar   Calendar
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Clock   clockwork.Clock
	// Location resolves parse reference times.
	Location         *time.Location
	AutoThreshold    float64
	ConfirmThreshold float64
	Logger           *slog.Logger
	// AllowAnyOrigin disables the same-origin check on the websocket stream.
	AllowAnyOrigin bool
}

type Server struct {
	opts     Options
	clock    clockwork.Clock
	logger   *slog.Logger
	upgrader websocket.Upgrader
	// runCtx outlives requests; sessions started over HTTP keep running.
	runCtx context.Context
}

func New(ctx context.Context, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	allowAny := opts.AllowAnyOrigin
	return &Server{
		opts:   opts,
		clock:  opts.Clock,
		logger: opts.Logger,
		runCtx: ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAny {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/schedule/parse", s.handleParse)

		r.Get("/dictionary", s.handleListDictionary)
		r.Post("/dictionary", s.handleLearn)
		r.Delete("/dictionary", s.handleForget)
		r.Delete("/dictionary/{keyword}", s.handleForget)

		r.Get("/voice", s.handleVoiceState)
		r.Post("/voice/start", s.handleVoiceStart)
		r.Post("/voice/stop", s.handleVoiceStop)
		r.Post("/voice/take", s.handleVoiceTake)
		r.Post("/voice/speak", s.handleSpeak)
		r.Delete("/voice/speak", s.handleStopSpeaking)
		r.Get("/voice/stream", s.handleVoiceStream)

		r.Get("/calendar.ics", s.handleCalendarFeed)
		r.Get("/calendar/events", s.handleListEvents)
		r.Delete("/calendar/events/{id}", s.handleRemoveEvent)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.opts.Voice != nil {
		snap := s.opts.Voice.Snapshot()
		body["voice_state"] = snap.State
		body["listening"] = snap.Listening
	}
	respondJSON(w, http.StatusOK, body)
}

// logRequests writes one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func unavailable(w http.ResponseWriter, what string) {
	respondError(w, http.StatusServiceUnavailable, "unavailable", what+" is not configured")
}
