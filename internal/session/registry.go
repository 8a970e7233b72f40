// Package session maps browser session ids to their application controllers.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/cuaca/internal/app"
	"github.com/kjstillabower/cuaca/internal/observability"
)

// CookieName carries the session id.
const CookieName = "cuaca_sid"

// DefaultIdleTTL is how long a session survives without requests.
const DefaultIdleTTL = 30 * time.Minute

// Factory builds an unstarted controller for sid.
type Factory func(sid string) *app.Controller

type entry struct {
	ctrl     *app.Controller
	lastSeen time.Time
}

// Registry holds live sessions. Evicted sessions lose their in-memory state;
// their persisted preferences stay in the store.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	factory Factory
	idleTTL time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func NewRegistry(factory Factory, idleTTL time.Duration, logger *zap.Logger) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*entry),
		factory: factory,
		idleTTL: idleTTL,
		now:     time.Now,
		logger:  logger,
	}
}

// Get returns the live controller for sid and marks it active.
func (r *Registry) Get(sid string) (*app.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.ctrl, true
}

// GetOrCreate returns the controller for sid, creating and starting one if
// none is live. created reports whether Start ran; its error is returned for
// logging only, since failures are already reflected in the bindings.
func (r *Registry) GetOrCreate(ctx context.Context, sid string) (ctrl *app.Controller, created bool, err error) {
	r.mu.Lock()
	if e, ok := r.entries[sid]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.ctrl, false, nil
	}
	ctrl = r.factory(sid)
	r.entries[sid] = &entry{ctrl: ctrl, lastSeen: r.now()}
	n := len(r.entries)
	r.mu.Unlock()

	observability.ActiveSessions.Set(float64(n))
	r.logger.Debug("session created", observability.SessionField(sid))
	return ctrl, true, ctrl.Start(ctx)
}

// Controllers returns a snapshot of every live controller.
func (r *Registry) Controllers() []*app.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*app.Controller, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.ctrl)
	}
	return out
}

// EvictIdle drops sessions not seen within the idle TTL and returns how many
// were removed.
func (r *Registry) EvictIdle() int {
	r.mu.Lock()
	cutoff := r.now().Add(-r.idleTTL)
	evicted := 0
	for sid, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, sid)
			evicted++
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	observability.ActiveSessions.Set(float64(n))
	if evicted > 0 {
		r.logger.Info("evicted idle sessions", zap.Int("evicted", evicted), zap.Int("remaining", n))
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
