// Package circuitbreaker fails Open-Meteo calls fast after repeated upstream
// failures so that a down API does not hold every session's request open
// until its timeout.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the circuit is open, and to callers that
// arrive while the half-open probe is still running.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the circuit breaker state. Its integer value is exported as the
// circuitBreakerState gauge.
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards one upstream API. A nil *CircuitBreaker always calls fn.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	probing          bool
	lastFailureTime  time.Time
	now              func() time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	component        string
	isFailure        func(error) bool
	onStateChange    func(from, to State)
}

type Config struct {
	FailureThreshold int
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout   time.Duration
	Component string
	// IsFailure decides whether an error counts against the upstream.
	// Defaults to DefaultIsFailure.
	IsFailure     func(error) bool
	OnStateChange func(from, to State)
}

// DefaultIsFailure counts every error except caller cancellation: a session
// that superseded its own request says nothing about upstream health.
func DefaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = DefaultIsFailure
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		component:        cfg.Component,
		isFailure:        cfg.IsFailure,
		onStateChange:    cfg.OnStateChange,
		now:              time.Now,
	}
}

// Call runs fn when the circuit allows it. Once Timeout has passed in the
// open state, exactly one caller probes the upstream (half-open); the rest
// get ErrOpen until the probe settles.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if cb == nil {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	probe, transition, err := cb.admit()
	cb.notify(transition)
	if err != nil {
		return err
	}

	callErr := fn()
	cb.notify(cb.record(probe, callErr))
	return callErr
}

type transition struct {
	from, to State
	changed  bool
}

func (cb *CircuitBreaker) admit() (probe bool, t transition, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.timeout {
			return false, t, fmt.Errorf("%s: %w", cb.component, ErrOpen)
		}
		t = cb.setState(StateHalfOpen)
		cb.probing = true
		return true, t, nil
	case StateHalfOpen:
		if cb.probing {
			return false, t, fmt.Errorf("%s: %w", cb.component, ErrOpen)
		}
		cb.probing = true
		return true, t, nil
	}
	return false, t, nil
}

func (cb *CircuitBreaker) record(probe bool, err error) transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probing = false
	}

	if err != nil {
		if !cb.isFailure(err) {
			return transition{}
		}
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			return cb.setState(StateOpen)
		}
		return transition{}
	}

	cb.failureCount = 0
	if cb.state != StateHalfOpen {
		return transition{}
	}
	cb.successCount++
	if cb.successCount >= cb.successThreshold {
		return cb.setState(StateClosed)
	}
	return transition{}
}

// setState must be called with mu held. Counters reset on every change.
func (cb *CircuitBreaker) setState(to State) transition {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
	return transition{from: from, to: to, changed: from != to}
}

func (cb *CircuitBreaker) notify(t transition) {
	if t.changed && cb.onStateChange != nil {
		cb.onStateChange(t.from, t.to)
	}
}

func (cb *CircuitBreaker) State() State {
	if cb == nil {
		return StateClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
