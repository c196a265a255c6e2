// Package metrics defines Prometheus metrics for the dashboard server.
//
// Metric naming follows Prometheus conventions:
//   - dashboard_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's metric collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// LoginAttemptsTotal counts login attempts by outcome (success, failure, error).
	LoginAttemptsTotal *prometheus.CounterVec

	// TokenRejectionsTotal counts rejected bearer tokens by kind (malformed, expired).
	TokenRejectionsTotal *prometheus.CounterVec

	// RequestDurationSeconds is a histogram of HTTP request duration by status code.
	RequestDurationSeconds *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_login_attempts_total",
				Help: "Total number of login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		TokenRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_token_rejections_total",
				Help: "Total number of rejected bearer tokens by kind.",
			},
			[]string{"kind"},
		),
		RequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.LoginAttemptsTotal,
		m.TokenRejectionsTotal,
		m.RequestDurationSeconds,
	)

	return m
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TokenRejected implements auth.TokenRejectionRecorder.
func (m *Metrics) TokenRejected(kind string) {
	m.TokenRejectionsTotal.WithLabelValues(kind).Inc()
}

// Reset zeroes all collectors. Admin-triggered.
func (m *Metrics) Reset() {
	m.LoginAttemptsTotal.Reset()
	m.TokenRejectionsTotal.Reset()
	m.RequestDurationSeconds.Reset()
}

// Middleware records request duration labeled by status code.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RequestDurationSeconds.
			WithLabelValues(strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
