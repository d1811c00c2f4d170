// Package async provides utilities for managing async operations with graceful shutdown.
package async

import (
	"context"
	"sync"
	"time"
)

// Runner tracks fire-and-forget background work, such as response cache
// population, so graceful shutdown can wait for it instead of dropping it.
type Runner struct {
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a new Runner.
func New() *Runner {
	return &Runner{
		done: make(chan struct{}),
	}
}

// Close signals shutdown and waits for all background work to complete.
// Contexts handed out by Context() are cancelled when Close is called.
func (r *Runner) Close() {
	close(r.done)
	r.wg.Wait()
}

// Context returns a context that is cancelled when either the timeout
// expires or Close() is called. The caller must call the returned cancel
// function when done. The internal goroutine is tracked by the Runner's
// WaitGroup so shutdown waits for all context watchers to complete.
func (r *Runner) Context(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	r.wg.Go(func() {
		select {
		case <-r.done:
			cancel()
		case <-ctx.Done():
		}
	})

	return ctx, cancel
}

// Go starts background work in a goroutine tracked for shutdown.
func (r *Runner) Go(fn func()) {
	r.wg.Go(fn)
}
