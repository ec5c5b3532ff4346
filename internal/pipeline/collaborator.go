package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Collaborator names used in logs and metrics.
const (
	collaboratorSession     = "session"
	collaboratorProfile     = "profile"
	collaboratorPermissions = "permissions"
)

type callResult[T any] struct {
	value    T
	err      error
	panicked any
}

// call runs fn under the collaborator timeout. fn runs on its own goroutine
// so a collaborator that ignores its context still cannot hold the request
// past the deadline. A panic inside fn is re-raised on the caller's
// goroutine.
func call[T any](ctx context.Context, p *Pipeline, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CollaboratorTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan callResult[T], 1)
	go func() {
		var res callResult[T]
		defer func() {
			res.panicked = recover()
			done <- res
		}()
		res.value, res.err = fn(ctx)
	}()

	var res callResult[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("%s lookup: %w", name, ctx.Err())
	}

	p.deps.Metrics.ObserveCollaborator(name, callOutcome(res), time.Since(start).Seconds())
	if res.panicked != nil {
		panic(res.panicked)
	}
	return res.value, res.err
}

func callOutcome[T any](res callResult[T]) string {
	switch {
	case res.panicked != nil:
		return "panic"
	case res.err == nil:
		return "ok"
	case errors.Is(res.err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
