package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyUserID is returned when an event carries no user id.
var ErrEmptyUserID = errors.New("audit event user id cannot be empty")

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Repository is a Sink that can also be queried.
type Repository interface {
	Sink

	// QueryByUser returns a user's entries, newest first.
	// Limit caps the number of entries returned (0 = no limit).
	QueryByUser(ctx context.Context, userID string, limit int) ([]*Entry, error)
}

// DefaultMemoryCapacity bounds the in-memory repository when no capacity is
// given.
const DefaultMemoryCapacity = 10000

// InMemoryRepository is a bounded in-memory implementation of Repository.
// Once full, each new entry overwrites the oldest one. Thread-safe via
// RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
	next    int
	full    bool
}

// NewInMemoryRepository creates an in-memory audit repository holding at
// most capacity entries. A capacity <= 0 uses DefaultMemoryCapacity.
func NewInMemoryRepository(capacity int) *InMemoryRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &InMemoryRepository{entries: make([]*Entry, capacity)}
}

// Record implements Sink.
func (r *InMemoryRepository) Record(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.UserID == "" {
		return ErrEmptyUserID
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		Event:     ev,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.entries[r.next] = entry
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
	return nil
}

// QueryByUser implements Repository.
func (r *InMemoryRepository) QueryByUser(_ context.Context, userID string, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry
	for n := 0; n < r.lenLocked(); n++ {
		i := (r.next - 1 - n + len(r.entries)) % len(r.entries)
		if r.entries[i].Event.UserID != userID {
			continue
		}
		entryCopy := *r.entries[i]
		results = append(results, &entryCopy)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Len returns the number of stored entries.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

func (r *InMemoryRepository) lenLocked() int {
	if r.full {
		return len(r.entries)
	}
	return r.next
}
