package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the report service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Report metrics
	ReportRequests *prometheus.CounterVec
	ReportDuration *prometheus.HistogramVec

	// Store metrics
	StoreErrors *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "traffic_report_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traffic_report_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ReportRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "traffic_report_reports_total",
			Help: "Report builds by preset and outcome.",
		}, []string{"preset", "outcome"}),

		ReportDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traffic_report_report_duration_seconds",
			Help:    "Time spent assembling a report.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"preset"}),

		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "traffic_report_store_errors_total",
			Help: "Traffic store query failures by operation.",
		}, []string{"operation"}),

		RateLimitHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "traffic_report_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"limiter"}),
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordReport records the outcome of a report build.
func (m *Metrics) RecordReport(preset, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ReportRequests.WithLabelValues(preset, outcome).Inc()
	m.ReportDuration.WithLabelValues(preset).Observe(duration.Seconds())
}

// RecordStoreError records a failed store query.
func (m *Metrics) RecordStoreError(operation string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(operation).Inc()
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(limiter).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
