package audit

import (
	"net"
	"net/http"
	"strings"

	"github.com/athleticlabs/fuelgate/internal/middleware"
)

// NewEvent builds an event for r attributed to userID and teamID.
func NewEvent(r *http.Request, userID, teamID string) Event {
	return Event{
		UserID:    userID,
		TeamID:    teamID,
		Path:      r.URL.Path,
		Method:    r.Method,
		IPAddress: ExtractIPAddress(r),
		UserAgent: r.UserAgent(),
		RequestID: middleware.GetRequestID(r.Context()),
	}
}

// ExtractIPAddress extracts the client IP address from an HTTP request.
// It checks X-Forwarded-For, X-Real-IP, and RemoteAddr in that order.
// The port is stripped so the value fits an inet column.
func ExtractIPAddress(r *http.Request) string {
	// Use the first IP in the chain, trimming whitespace per RFC 7239
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return stripPort(first)
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return stripPort(xri)
	}

	return stripPort(r.RemoteAddr)
}

// stripPort removes a port from addr, handling IPv6 brackets. Values
// without a port are returned unchanged.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
