package http

import (
	"context"
	"sync/atomic"
	"time"
)

const defaultDrainInterval = 100 * time.Millisecond

// InFlightTracker counts widget requests still being served so shutdown can
// drain them after the listener closes.
type InFlightTracker struct {
	count atomic.Int64
}

// Begin marks a request as started and returns the func that ends it.
func (t *InFlightTracker) Begin() (end func()) {
	t.count.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			t.count.Add(-1)
		}
	}
}

func (t *InFlightTracker) Count() int64 { return t.count.Load() }

// WaitForZero polls until no request is in flight or ctx is done.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	if checkInterval <= 0 {
		checkInterval = defaultDrainInterval
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for t.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// requests is fed by MetricsMiddleware.
var requests = &InFlightTracker{}

func InFlightCount() int64 {
	return requests.Count()
}

// WaitForInFlight blocks until in-flight requests reach zero or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return requests.WaitForZero(ctx, checkInterval)
}
