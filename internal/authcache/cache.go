// Package authcache memoizes per-user profile and permission snapshots for a
// fixed TTL so the request pipeline can skip repeated profile-store lookups.
//
// Entries are never invalidated early. A permission change made server-side
// becomes visible once the user's entry expires.
package authcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/athleticlabs/fuelgate/internal/identity"
)

// DefaultTTL is the lifetime of a cache entry.
const DefaultTTL = 5 * time.Minute

// Entry is a cached snapshot for one user.
type Entry struct {
	Profile identity.Profile
	// Permissions is nil until a route first requires a permission check.
	Permissions identity.Permissions
	ExpiresAt   time.Time
}

// HasPermissions reports whether permissions have been resolved for the
// entry.
func (e Entry) HasPermissions() bool {
	return e.Permissions != nil
}

// Cache is a TTL cache keyed by user id. It is safe for concurrent use.
// Two concurrent misses for the same user may both populate the cache; the
// last Set wins.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the time source. Used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache whose entries live for ttl. A non-positive ttl falls
// back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the entry for userID. An entry at or past its expiry is
// deleted and reported as a miss.
func (c *Cache) Get(userID string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return Entry{}, false
	}
	if !c.now().Before(e.ExpiresAt) {
		delete(c.entries, userID)
		return Entry{}, false
	}
	e.Permissions = e.Permissions.Clone()
	return e, true
}

// Set stores a fresh snapshot for the profile's user, replacing any existing
// entry and dropping previously attached permissions.
func (c *Cache) Set(userID string, profile identity.Profile) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := Entry{
		Profile:   profile,
		ExpiresAt: c.now().Add(c.ttl),
	}
	c.entries[userID] = e
	return e
}

// AttachPermissions records resolved permissions on the existing entry for
// userID without changing its expiry. It returns false when there is no
// live entry to attach to.
func (c *Cache) AttachPermissions(userID string, perms identity.Permissions) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok || !c.now().Before(e.ExpiresAt) {
		return false
	}
	if perms == nil {
		perms = identity.Permissions{}
	}
	e.Permissions = perms.Clone()
	c.entries[userID] = e
	return true
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep deletes every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired entries every interval until ctx is done. It
// blocks and should be started in its own goroutine.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				slog.Debug("swept expired authorization cache entries", "removed", n)
			}
		case <-ctx.Done():
			slog.Info("stopping authorization cache janitor")
			return
		}
	}
}
