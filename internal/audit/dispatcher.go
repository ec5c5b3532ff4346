package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Dispatch outcomes reported to the outcome hook.
const (
	OutcomeRecorded = "recorded"
	OutcomeFailed   = "failed"
	OutcomeDropped  = "dropped"
)

// Defaults for NewDispatcher.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxInFlight = 256
)

// ErrDispatcherClosed is reported in logs for events dispatched after Close.
var ErrDispatcherClosed = errors.New("audit dispatcher closed")

// Dispatcher writes events to a Sink without blocking the caller.
//
// At most maxInFlight writes run at once; events beyond that are dropped
// and logged. Every write gets its own timeout detached from the request
// context, so a finished response does not cancel its audit write.
type Dispatcher struct {
	sink      Sink
	logger    *slog.Logger
	timeout   time.Duration
	slots     chan struct{}
	onOutcome func(outcome string)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used for write failures.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTimeout bounds each sink write.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMaxInFlight bounds the number of concurrent sink writes.
func WithMaxInFlight(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.slots = make(chan struct{}, n)
		}
	}
}

// WithOutcomeHook registers a function called once per dispatched event
// with one of the Outcome constants. Used for metrics.
func WithOutcomeHook(fn func(outcome string)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onOutcome = fn
	}
}

// NewDispatcher creates a dispatcher writing to sink.
func NewDispatcher(sink Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:    sink,
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		slots:   make(chan struct{}, DefaultMaxInFlight),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch hands ev to the sink on a background goroutine and returns
// immediately. It never blocks and never reports an error to the caller.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, ErrDispatcherClosed)
		return
	}

	select {
	case d.slots <- struct{}{}:
	default:
		d.drop(ev, fmt.Errorf("%d writes already in flight", cap(d.slots)))
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.slots }()
		d.write(ev)
	}()
}

func (d *Dispatcher) write(ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("audit sink panicked",
				slog.Any("panic", rec),
				slog.String("user_id", ev.UserID),
				slog.String("path", ev.Path))
			d.report(OutcomeFailed)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Record(ctx, ev); err != nil {
		d.logger.Warn("failed to record audit event",
			slog.String("error", err.Error()),
			slog.String("user_id", ev.UserID),
			slog.String("path", ev.Path),
			slog.String("request_id", ev.RequestID))
		d.report(OutcomeFailed)
		return
	}
	d.report(OutcomeRecorded)
}

func (d *Dispatcher) drop(ev Event, reason error) {
	d.logger.Warn("dropped audit event",
		slog.String("reason", reason.Error()),
		slog.String("user_id", ev.UserID),
		slog.String("path", ev.Path))
	d.report(OutcomeDropped)
}

func (d *Dispatcher) report(outcome string) {
	if d.onOutcome != nil {
		d.onOutcome(outcome)
	}
}

// Close stops accepting events and waits for in-flight writes until ctx
// is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit drain interrupted: %w", ctx.Err())
	}
}
