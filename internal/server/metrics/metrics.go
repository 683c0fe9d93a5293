// Package metrics exposes Prometheus collectors for the session lifecycle,
// asset uploads, the orphan sweeper and HTTP traffic.
//
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rotation outcomes.
const (
	RotationRotated = "rotated"
	RotationInvalid = "invalid"
	RotationReuse   = "reuse"
	RotationFailed  = "failed"
)

// Upload outcomes.
const (
	UploadBound        = "bound"
	UploadMissingInput = "missing_input"
	UploadFailed       = "upload_failed"
	UploadBindFailed   = "bind_failed"
)

type Metrics struct {
	registry *prometheus.Registry

	sessionsIssued       prometheus.Counter
	issueFailures        prometheus.Counter
	rotations            *prometheus.CounterVec
	revocations          prometheus.Counter
	uploads              *prometheus.CounterVec
	compensations        prometheus.Counter
	compensationFailures prometheus.Counter
	sweptBlobs           prometheus.Counter
	sweepErrors          prometheus.Counter
	httpInFlight         prometheus.Gauge
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry together
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessions_issued_total",
			Help: "Token pairs issued and persisted.",
		}),
		issueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_issue_failures_total",
			Help: "Token pair issuances that failed.",
		}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_rotations_total",
			Help: "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_revocations_total",
			Help: "Sessions revoked.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asset_uploads_total",
			Help: "Upload-and-bind operations by outcome.",
		}, []string{"outcome"}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compensations_total",
			Help: "Blob deletions issued to undo a failed bind.",
		}),
		compensationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compensation_failures_total",
			Help: "Compensating blob deletions that failed.",
		}),
		sweptBlobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_deleted_blobs_total",
			Help: "Orphaned blobs deleted by the sweeper.",
		}),
		sweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_errors_total",
			Help: "Sweeper passes that failed.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsIssued, m.issueFailures, m.rotations, m.revocations,
		m.uploads, m.compensations, m.compensationFailures,
		m.sweptBlobs, m.sweepErrors,
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SessionIssued() {
	if m != nil {
		m.sessionsIssued.Inc()
	}
}

func (m *Metrics) SessionIssueFailed() {
	if m != nil {
		m.issueFailures.Inc()
	}
}

func (m *Metrics) Rotation(outcome string) {
	if m != nil {
		m.rotations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) SessionRevoked() {
	if m != nil {
		m.revocations.Inc()
	}
}

func (m *Metrics) Upload(outcome string) {
	if m != nil {
		m.uploads.WithLabelValues(outcome).Inc()
	}
}

// Compensation records one compensating delete and whether it failed.
func (m *Metrics) Compensation(err error) {
	if m == nil {
		return
	}
	m.compensations.Inc()
	if err != nil {
		m.compensationFailures.Inc()
	}
}

func (m *Metrics) Swept(deleted int, err error) {
	if m == nil {
		return
	}
	m.sweptBlobs.Add(float64(deleted))
	if err != nil {
		m.sweepErrors.Inc()
	}
}

// Instrument measures in-flight requests, request counts and latency. The
// path label is the matched ServeMux pattern so ids in URLs do not explode
// label cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
