// Package audit records which authenticated user reached which route.
//
// Writes are best-effort: the gateway hands events to a Dispatcher, which
// records them on a bounded set of goroutines so that a slow or failing
// sink can never delay or alter a response.
package audit

import (
	"time"
)

// Event describes one authorized request.
type Event struct {
	UserID    string
	TeamID    string // empty when the user belongs to no team
	Path      string
	Method    string
	IPAddress string
	UserAgent string
	RequestID string
}

// Entry is a stored audit event.
type Entry struct {
	ID        string
	Event     Event
	CreatedAt time.Time
}
