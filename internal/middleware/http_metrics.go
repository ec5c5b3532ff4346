package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// idSegment matches numeric and UUID path segments.
var idSegment = regexp.MustCompile(`^(?:[0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// staticRoutes are recorded as-is.
var staticRoutes = map[string]bool{
	"/":                true,
	"/login":           true,
	"/signup":          true,
	"/reset-password":  true,
	"/error":           true,
	"/dashboard":       true,
	"/checkout":        true,
	"/calendar":        true,
	"/order-history":   true,
	"/menu-templates":  true,
	"/team-management": true,
	"/settings":        true,
	"/admin":           true,
	"/admin/users":     true,
	"/api/health":      true,
	"/health":          true,
	"/ready":           true,
	"/metrics":         true,
}

// dynamicPages are page prefixes followed by exactly one id segment.
var dynamicPages = []string{
	"/orders/",
	"/menu-templates/",
	"/admin/teams/",
}

// assetPrefixes collapse every static asset under one label.
var assetPrefixes = []string{
	"/_next/",
	"/static/",
}

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /orders/123 to /orders/{id}.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	for _, prefix := range assetPrefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix + "*"
		}
	}

	// Page ids are opaque, so any single segment counts
	for _, prefix := range dynamicPages {
		if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return prefix + "{id}"
		}
	}

	// API routes: replace id-shaped segments wherever they occur
	if strings.HasPrefix(path, "/api/") {
		parts := strings.Split(path, "/")
		for i, part := range parts {
			if idSegment.MatchString(part) {
				parts[i] = "{id}"
			}
		}
		return strings.Join(parts, "/")
	}

	// Fallback: return as-is for unknown patterns
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exclude health check endpoints from metrics
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			// Wrap response writer to capture status and size
			mrw := newMetricsResponseWriter(w)

			// Get request size from Content-Length header
			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			// Call the next handler
			next.ServeHTTP(mrw, r)

			// Calculate duration in seconds
			duration := time.Since(start).Seconds()

			// Normalize path to prevent cardinality explosion
			normalizedPath := normalizePath(r.URL.Path)

			// Record metrics
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
