// Package observability exposes Prometheus instruments for the voice
// session and the schedule assistant.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbright/dpt/internal/assistant"
	"github.com/rbright/dpt/internal/fsm"
	"github.com/rbright/dpt/internal/voice"
)

// Metrics groups all Prometheus instruments used by the daemon. It
// implements voice.Observer.
type Metrics struct {
	registry *prometheus.Registry

	Listening         prometheus.Gauge
	StateChanges      *prometheus.CounterVec
	WakeDetections    prometheus.Counter
	WakeScore         prometheus.Histogram
	Commands          *prometheus.CounterVec
	StreamRestarts    prometheus.Counter
	RecognitionErrors *prometheus.CounterVec
	Schedules         *prometheus.CounterVec
	ParseConfidence   prometheus.Histogram
}

// NewMetrics registers instruments on a private registry together with
// the Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Listening: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voice_listening",
			Help:      "1 while the voice session is listening.",
		}),
		StateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_state_changes_total",
			Help:      "Voice session state changes by state and mode.",
		}, []string{"state", "mode"}),
		WakeDetections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wake_detections_total",
			Help:      "Wake phrases that opened the command gate.",
		}),
		WakeScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wake_score",
			Help:      "Matched phrase length over utterance length.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1},
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_captured_total",
			Help:      "Commands placed in the command slot by mode.",
		}, []string{"mode"}),
		StreamRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_restarts_total",
			Help:      "Recognizer streams reopened after the recognizer ended them.",
		}),
		RecognitionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Recognizer errors by code and whether they stopped the session.",
		}, []string{"code", "fatal"}),
		Schedules: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_commands_total",
			Help:      "Assistant command outcomes.",
		}, []string{"outcome"}),
		ParseConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_confidence",
			Help:      "Confidence of parsed schedules.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) StateChanged(state fsm.State, mode voice.Mode) {
	m.StateChanges.WithLabelValues(string(state), string(mode)).Inc()
	if fsm.Listening(state) {
		m.Listening.Set(1)
		return
	}
	m.Listening.Set(0)
}

func (m *Metrics) WakeDetected(_ string, score float64) {
	m.WakeDetections.Inc()
	m.WakeScore.Observe(score)
}

func (m *Metrics) CommandCaptured(mode voice.Mode) {
	m.Commands.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) StreamRestarted() {
	m.StreamRestarts.Inc()
}

func (m *Metrics) RecognitionError(code string, fatal bool) {
	m.RecognitionErrors.WithLabelValues(code, strconv.FormatBool(fatal)).Inc()
}

// ObserveResult records one assistant outcome. It fits assistant.Options.OnResult.
func (m *Metrics) ObserveResult(result assistant.Result) {
	m.Schedules.WithLabelValues(string(result.Outcome)).Inc()
	if result.Schedule != nil {
		m.ParseConfidence.Observe(result.Schedule.Confidence)
	}
}
