// Package metrics exposes Prometheus instrumentation for comparisons, conversions
// and HTTP requests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Comparisons by outcome: ok, unknown_country, not_found, error
	Comparisons *prometheus.CounterVec

	// Conversions by outcome: ok, identity, ambiguous, nonexistent, invalid
	Conversions *prometheus.CounterVec

	// Rows produced by the last world offset table
	WorldRows prometheus.Gauge

	// Live history sessions
	Sessions prometheus.Gauge

	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Comparisons: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worldtz_comparisons_total",
			Help: "Country comparisons by outcome",
		}, []string{"outcome"}),

		Conversions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worldtz_conversions_total",
			Help: "Time-of-day conversions by outcome",
		}, []string{"outcome"}),

		WorldRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worldtz_world_table_rows",
			Help: "Countries in the most recent world offset table",
		}),

		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worldtz_history_sessions",
			Help: "Sessions holding a comparison history",
		}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worldtz_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
	}
}

// IncrementComparison records a comparison outcome.
func (m *Metrics) IncrementComparison(outcome string) {
	if m != nil {
		m.Comparisons.WithLabelValues(outcome).Inc()
	}
}

// IncrementConversion records a conversion outcome.
func (m *Metrics) IncrementConversion(outcome string) {
	if m != nil {
		m.Conversions.WithLabelValues(outcome).Inc()
	}
}

// SetWorldRows records the size of the latest world table.
func (m *Metrics) SetWorldRows(n int) {
	if m != nil {
		m.WorldRows.Set(float64(n))
	}
}

// SetSessions records the number of live history sessions.
func (m *Metrics) SetSessions(n int) {
	if m != nil {
		m.Sessions.Set(float64(n))
	}
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, status).Observe(d.Seconds())
	}
}
