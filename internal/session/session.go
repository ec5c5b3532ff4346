// Package session resolves the current user from request cookies.
//
// Two backends are provided: JWTStore validates a signed session token held
// in the cookie itself, and RedisStore looks an opaque token up in Redis.
package session

import (
	"context"
	"errors"
	"net/http"
)

// DefaultCookieName is the session cookie read when none is configured.
const DefaultCookieName = "fuelgate_session"

// ErrInvalidSession is returned when a session cookie is present but cannot
// be trusted.
var ErrInvalidSession = errors.New("invalid session")

// Session is the resolved session for one request.
type Session struct {
	UserID string
}

// Store resolves a session from request cookies. Lookup returns (nil, nil)
// when the request carries no session cookie.
type Store interface {
	Lookup(ctx context.Context, cookies []*http.Cookie) (*Session, error)
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, cookies []*http.Cookie) (*Session, error)

// Lookup implements Store.
func (f StoreFunc) Lookup(ctx context.Context, cookies []*http.Cookie) (*Session, error) {
	return f(ctx, cookies)
}

// cookieValue returns the value of the first non-empty cookie called name.
func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c != nil && c.Name == name && c.Value != "" {
			return c.Value
		}
	}
	return ""
}
