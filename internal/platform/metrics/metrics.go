package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// Every method is safe to call on a nil *Metrics.
type Metrics struct {
	// HTTP latency by route pattern
	EndpointLatency *prometheus.HistogramVec

	// Recovered editor failures by kind: "authentication", "profile_load", "profile_save"
	EditorFailures *prometheus.CounterVec

	// Profile writes by outcome: "saved", "failed"
	ProfileSaves *prometheus.CounterVec

	SessionsActive prometheus.Gauge

	// Index document store latency by store and operation
	IndexLatency *prometheus.HistogramVec

	// Document update events by outcome
	EventsPublished *prometheus.CounterVec

	// Circuit breaker transitions by breaker name and new state
	BreakerTransitions *prometheus.CounterVec
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers metrics with reg. Tests pass a fresh registry so
// repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "selfid_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method"}),

		EditorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "selfid_editor_failures_total",
			Help: "Recovered profile editor failures by kind",
		}, []string{"kind"}),

		ProfileSaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "selfid_profile_saves_total",
			Help: "Profile submissions by outcome",
		}, []string{"outcome"}),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "selfid_editor_sessions_active",
			Help: "Number of open editor sessions",
		}),

		IndexLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "selfid_index_operation_duration_seconds",
			Help:    "Duration of identity index document operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"store", "op"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "selfid_document_events_total",
			Help: "Document update events by publish outcome",
		}, []string{"outcome"}),

		BreakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "selfid_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		}, []string{"breaker", "state"}),
	}
}

func (m *Metrics) ObserveEndpointLatency(route, method string, d time.Duration) {
	if m != nil {
		m.EndpointLatency.WithLabelValues(route, method).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementEditorFailure(kind string) {
	if m != nil {
		m.EditorFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementProfileSave(outcome string) {
	if m != nil {
		m.ProfileSaves.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementSessionsActive() {
	if m != nil {
		m.SessionsActive.Inc()
	}
}

func (m *Metrics) DecrementSessionsActive() {
	if m != nil {
		m.SessionsActive.Dec()
	}
}

// ObserveIndexLatency records the duration of a store operation.
func (m *Metrics) ObserveIndexLatency(store, op string, d time.Duration) {
	if m != nil {
		m.IndexLatency.WithLabelValues(store, op).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementEventsPublished(outcome string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementBreakerTransition(breaker, state string) {
	if m != nil {
		m.BreakerTransitions.WithLabelValues(breaker, state).Inc()
	}
}
