// Package coalesce shares one upstream call among concurrent callers asking
// for the same thing. Sessions starting together all resolve the default
// city, and the refresh job fetches the same coordinates for every session
// viewing a city; both collapse to a single Open-Meteo request.
package coalesce

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout bounds how long a shared call may run.
const DefaultTimeout = 10 * time.Second

// call is a single upstream request that several callers may wait for.
type call[T any] struct {
	mu      sync.Mutex
	result  T
	err     error
	waiters []chan struct{}
}

// Group coalesces concurrent Do calls by key.
type Group[T any] struct {
	mu       sync.Mutex
	inFlight map[string]*call[T]
	timeout  time.Duration
}

func NewGroup[T any](timeout time.Duration) *Group[T] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Group[T]{inFlight: make(map[string]*call[T]), timeout: timeout}
}

// Do runs fn for key unless a call for key is already in flight, in which
// case it waits for that call's result. shared reports whether the result
// came from another caller's call.
//
// fn runs detached from ctx cancellation (bounded by the group timeout) so a
// caller giving up does not fail the others; the caller itself still returns
// as soon as ctx is done.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (result T, shared bool, err error) {
	g.mu.Lock()
	c, exists := g.inFlight[key]
	if !exists {
		c = &call[T]{}
		g.inFlight[key] = c
	}
	notify := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, notify)
	c.mu.Unlock()
	g.mu.Unlock()

	if !exists {
		go g.run(ctx, key, c, fn)
	}

	select {
	case <-notify:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.result, exists, c.err
	case <-ctx.Done():
		var zero T
		return zero, exists, ctx.Err()
	}
}

func (g *Group[T]) run(ctx context.Context, key string, c *call[T], fn func(ctx context.Context) (T, error)) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()
	result, err := fn(runCtx)

	// Unregister first so callers arriving after completion start a fresh call.
	g.mu.Lock()
	delete(g.inFlight, key)
	g.mu.Unlock()

	c.mu.Lock()
	c.result, c.err = result, err
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, notify := range waiters {
		close(notify)
	}
}

// InFlight returns how many keys currently have a call running.
func (g *Group[T]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
