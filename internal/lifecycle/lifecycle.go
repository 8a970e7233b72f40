// Package lifecycle holds process-wide readiness and shutdown flags read by
// the health handler.
package lifecycle

import "sync/atomic"

var (
	ready        atomic.Bool
	shuttingDown atomic.Bool
)

// SetReady marks startup complete (store reachable, refresher scheduled).
func SetReady(v bool) {
	ready.Store(v)
}

func IsReady() bool {
	return ready.Load()
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// Status names the lifecycle phase: starting, ready or shutting-down.
func Status() string {
	switch {
	case IsShuttingDown():
		return "shutting-down"
	case IsReady():
		return "ready"
	default:
		return "starting"
	}
}
