package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the scheduling widget host.
type Metrics struct {
	// ActionsTotal counts dispatched widget actions by kind and outcome.
	ActionsTotal *prometheus.CounterVec

	// BookingsCompleted counts submitted bookings.
	BookingsCompleted prometheus.Counter

	// SessionsStarted counts new widget sessions.
	SessionsStarted prometheus.Counter

	// SessionStoreFallbacks counts reads/writes served by the fallback store.
	SessionStoreFallbacks *prometheus.CounterVec

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited prometheus.Counter

	// RequestDuration is the API handler latency.
	RequestDuration *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ActionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "widget_actions_total",
				Help:      "Count of widget actions by kind and result.",
			},
			[]string{"action", "result"},
		),

		BookingsCompleted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_completed_total",
				Help:      "Count of submitted bookings handed off to the calendar.",
			},
		),

		SessionsStarted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Count of widget sessions created.",
			},
		),

		SessionStoreFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_store_fallbacks_total",
				Help:      "Count of session store operations served by the fallback store.",
			},
			[]string{"op"},
		),

		RateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Count of requests rejected by the rate limiter.",
			},
		),

		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "API request latency.",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"route", "code"},
		),
	}
}

// Action result labels.
const (
	ResultApplied  = "applied"
	ResultNoop     = "noop"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// IncAction increments the action counter.
func (m *Metrics) IncAction(action, result string) {
	m.ActionsTotal.WithLabelValues(action, result).Inc()
}

func (m *Metrics) IncBookingCompleted() {
	m.BookingsCompleted.Inc()
}

func (m *Metrics) IncSessionStarted() {
	m.SessionsStarted.Inc()
}

func (m *Metrics) IncFallback(op string) {
	m.SessionStoreFallbacks.WithLabelValues(op).Inc()
}

func (m *Metrics) IncRateLimited() {
	m.RateLimited.Inc()
}

// ObserveRequest records handler latency in seconds.
func (m *Metrics) ObserveRequest(route, code string, seconds float64) {
	m.RequestDuration.WithLabelValues(route, code).Observe(seconds)
}
