package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the session and routing layer
type Metrics struct {
	// Transport metrics, labelled by backend target name
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TransportErrors *prometheus.CounterVec

	// AuthExpirations counts responses that forced the session to clear
	AuthExpirations *prometheus.CounterVec

	// Operations counts facade operations by outcome
	Operations *prometheus.CounterVec

	// SessionClears counts effective clears of the credential store
	SessionClears prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_requests_total",
				Help: "Total number of backend requests by target and status class",
			},
			[]string{"target", "status_class"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_request_duration_seconds",
				Help:    "Backend request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0},
			},
			[]string{"target"},
		),
		TransportErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_transport_errors_total",
				Help: "Total number of requests that failed before a response was received",
			},
			[]string{"target"},
		),
		AuthExpirations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_auth_expirations_total",
				Help: "Total number of authorization failures that cleared the session",
			},
			[]string{"target"},
		),
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_operations_total",
				Help: "Total number of auth operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		SessionClears: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_session_clears_total",
				Help: "Total number of times an authenticated session was cleared",
			},
		),
	}
}

// RecordRequest records a completed request
func (m *Metrics) RecordRequest(target string, status int, duration time.Duration) {
	m.Requests.WithLabelValues(target, StatusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordTransportError records a request that never produced a response
func (m *Metrics) RecordTransportError(target string) {
	m.TransportErrors.WithLabelValues(target).Inc()
}

// RecordExpiration records an authorization failure on target
func (m *Metrics) RecordExpiration(target string) {
	m.AuthExpirations.WithLabelValues(target).Inc()
}

// RecordOperation records the outcome of a facade operation
func (m *Metrics) RecordOperation(operation, outcome string) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

// StatusClass maps an HTTP status to "2xx", "4xx" and so on
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
