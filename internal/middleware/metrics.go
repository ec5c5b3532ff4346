package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricGateDecisions         = "fuelgate_gate_decisions_total"
	MetricAuthzCacheLookups     = "fuelgate_authz_cache_lookups_total"
	MetricThreatsDetected       = "fuelgate_threats_detected_total"
	MetricAuditEvents           = "fuelgate_audit_events_total"
	MetricCollaboratorDuration  = "fuelgate_collaborator_duration_seconds"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestSizeBytes  = "http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
)

// Metrics contains Prometheus metrics for the gateway.
// All operations are thread-safe, and the gateway recording methods are
// no-ops on a nil *Metrics.
type Metrics struct {
	gateDecisions        *prometheus.CounterVec
	authzCacheLookups    *prometheus.CounterVec
	threatsDetected      *prometheus.CounterVec
	auditEvents          *prometheus.CounterVec
	collaboratorDuration *prometheus.HistogramVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGateDecisions,
				Help: "Total number of gateway decisions by outcome",
			},
			[]string{"decision"},
		),
		authzCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuthzCacheLookups,
				Help: "Total number of authorization cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),
		threatsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricThreatsDetected,
				Help: "Total number of requests with detected threats by severity",
			},
			[]string{"severity"},
		),
		auditEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuditEvents,
				Help: "Total number of audit events by outcome (recorded, failed, dropped)",
			},
			[]string{"outcome"},
		),
		collaboratorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricCollaboratorDuration,
				Help:    "Duration of session, profile and permission lookups in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 3.0},
			},
			[]string{"collaborator", "result"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestSizeBytes,
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8), // 100 B to ~100 MB
			},
			[]string{"method", "path", "status"},
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPResponseSizeBytes,
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8), // 100 B to ~100 MB
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncGateDecision counts one pipeline outcome, e.g. "allowed" or
// "login_redirect".
func (m *Metrics) IncGateDecision(decision string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(decision).Inc()
}

// IncCacheLookup counts an authorization cache hit or miss.
func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.authzCacheLookups.WithLabelValues(result).Inc()
}

// IncThreat counts a request whose scan found threats of the given severity.
func (m *Metrics) IncThreat(severity string) {
	if m == nil {
		return
	}
	m.threatsDetected.WithLabelValues(severity).Inc()
}

// IncAuditOutcome counts an audit dispatch outcome.
func (m *Metrics) IncAuditOutcome(outcome string) {
	if m == nil {
		return
	}
	m.auditEvents.WithLabelValues(outcome).Inc()
}

// ObserveCollaborator records how long a collaborator call took.
// collaborator: "session", "profile" or "permissions"
// result: "ok" or "error"
func (m *Metrics) ObserveCollaborator(collaborator, result string, duration float64) {
	if m == nil {
		return
	}
	m.collaboratorDuration.WithLabelValues(collaborator, result).Observe(duration)
}

// ObserveHTTPRequest records HTTP request metrics.
// method: HTTP method (e.g., "GET", "POST")
// path: Normalized request path (e.g., "/orders/{id}")
// status: HTTP status code (e.g., 200, 404)
// duration: Request duration in seconds
// requestSize: Request body size in bytes
// responseSize: Response body size in bytes
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, requestSize, responseSize int64) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": status,
	}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
	m.httpRequestSize.With(labels).Observe(float64(requestSize))
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.gateDecisions,
		m.authzCacheLookups,
		m.threatsDetected,
		m.auditEvents,
		m.collaboratorDuration,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpRequestSize,
		m.httpResponseSize,
	}
}
