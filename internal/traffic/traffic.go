// Package traffic keeps sliding windows of upstream call outcomes per API so
// the health handler can report a degraded upstream.
package traffic

import (
	"sync"
	"time"
)

// maxAge bounds how long outcomes are retained regardless of query window.
const maxAge = 10 * time.Minute

var defaultTracker = NewTracker()

// RecordSuccess records a successful call to api.
func RecordSuccess(api string) {
	defaultTracker.RecordSuccess(api)
}

// RecordError records a failed call to api (network, non-2xx, parse).
func RecordError(api string) {
	defaultTracker.RecordError(api)
}

// ErrorRate returns (errorCount, totalCount) for api within the window.
func ErrorRate(api string, window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(api, window)
}

// APIs returns every api name seen so far.
func APIs() []string {
	return defaultTracker.APIs()
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type outcomes struct {
	successTimes []time.Time
	errorTimes   []time.Time
}

// Tracker maintains per-api sliding windows of outcome timestamps.
type Tracker struct {
	mu   sync.Mutex
	apis map[string]*outcomes
	now  func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{apis: make(map[string]*outcomes), now: time.Now}
}

func (t *Tracker) RecordSuccess(api string) {
	t.record(api, false)
}

func (t *Tracker) RecordError(api string) {
	t.record(api, true)
}

func (t *Tracker) record(api string, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.apis[api]
	if !ok {
		o = &outcomes{}
		t.apis[api] = o
	}
	now := t.now()
	if failed {
		o.errorTimes = append(o.errorTimes, now)
	} else {
		o.successTimes = append(o.successTimes, now)
	}
	o.prune(now.Add(-maxAge))
}

// ErrorRate returns (errorCount, totalCount) for api within the window.
func (t *Tracker) ErrorRate(api string, window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.apis[api]
	if !ok {
		return 0, 0
	}
	cutoff := t.now().Add(-window)
	errCount := countSince(o.errorTimes, cutoff)
	return errCount, errCount + countSince(o.successTimes, cutoff)
}

func (t *Tracker) APIs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.apis))
	for api := range t.apis {
		out = append(out, api)
	}
	return out
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apis = make(map[string]*outcomes)
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// prune drops timestamps before cutoff. Slices are append-ordered.
func (o *outcomes) prune(cutoff time.Time) {
	trim := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	trim(&o.successTimes)
	trim(&o.errorTimes)
}
