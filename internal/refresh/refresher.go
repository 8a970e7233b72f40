// Package refresh runs the periodic weather-only refresh for every live
// session.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/cuaca/internal/app"
	"github.com/kjstillabower/cuaca/internal/observability"
)

const (
	DefaultInterval    = 5 * time.Minute
	DefaultConcurrency = 8
)

// Source lists live sessions and drops idle ones.
type Source interface {
	Controllers() []*app.Controller
	EvictIdle() int
}

type Refresher struct {
	source      Source
	interval    time.Duration
	concurrency int
	logger      *zap.Logger

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

func New(source Source, interval time.Duration, concurrency int, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{source: source, interval: interval, concurrency: concurrency, logger: logger}
}

// Result counts the sessions touched by one run.
type Result struct {
	Refreshed int
	Stale     int
	Failed    int
}

// RunOnce evicts idle sessions, then refreshes the rest concurrently.
func (r *Refresher) RunOnce(ctx context.Context) Result {
	start := time.Now()
	logger := r.logger.With(zap.String("run_id", uuid.NewString()))

	r.source.EvictIdle()
	ctrls := r.source.Controllers()

	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.concurrency)
	)
	for _, c := range ctrls {
		wg.Add(1)
		sem <- struct{}{}
		go func(c *app.Controller) {
			defer wg.Done()
			defer func() { <-sem }()

			err := c.AutoRefresh(ctx)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Refreshed++
				observability.RefreshSessionsTotal.WithLabelValues("ok").Inc()
			case errors.Is(err, app.ErrStale):
				res.Stale++
				observability.RefreshSessionsTotal.WithLabelValues("stale").Inc()
			default:
				res.Failed++
				observability.RefreshSessionsTotal.WithLabelValues("error").Inc()
				logger.Debug("session refresh failed", observability.SessionField(c.SessionID()), zap.Error(err))
			}
		}(c)
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.RefreshRunDuration.Observe(duration)
	result := "ok"
	if res.Failed > 0 {
		result = "partial"
	}
	observability.RefreshRunsTotal.WithLabelValues(result).Inc()
	logger.Info("auto refresh complete",
		zap.Int("sessions", len(ctrls)),
		zap.Int("refreshed", res.Refreshed),
		zap.Int("stale", res.Stale),
		zap.Int("failed", res.Failed),
		zap.Float64("duration_seconds", duration))
	return res
}

// Start schedules RunOnce every interval. A run still in progress when the
// next tick arrives delays that tick instead of overlapping it.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler != nil {
		return errors.New("refresher already started")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func(ctx context.Context) {
			runCtx, cancel := context.WithTimeout(ctx, r.interval)
			defer cancel()
			r.RunOnce(runCtx)
		}),
		gocron.WithName("auto-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule auto refresh: %w", err)
	}

	s.Start()
	r.scheduler = s
	r.logger.Info("auto refresh scheduled", zap.Duration("interval", r.interval))
	return nil
}

// Stop cancels scheduled runs and waits for a running one to return.
func (r *Refresher) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler == nil {
		return nil
	}
	err := r.scheduler.Shutdown()
	r.scheduler = nil
	return err
}
