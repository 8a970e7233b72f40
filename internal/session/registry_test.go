package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/cuaca/internal/app"
	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/prefs"
	"github.com/kjstillabower/cuaca/internal/store"
)

type stubGeocoder struct {
	mu    sync.Mutex
	calls int
}

func (s *stubGeocoder) ResolveCity(context.Context, string) (models.Coordinates, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return models.Coordinates{Name: "Jakarta", Country: "Indonesia", Lat: -6.2, Lon: 106.8}, nil
}

func (s *stubGeocoder) Suggest(context.Context, string) ([]models.Suggestion, error) {
	return nil, nil
}

type stubWeather struct{}

func (stubWeather) FetchCurrentAndForecast(context.Context, models.Coordinates) (models.Snapshot, error) {
	return models.Snapshot{Temperature: 30, ObservedAt: time.Now()}, nil
}

func newTestRegistry(t *testing.T, geo *stubGeocoder) *Registry {
	t.Helper()
	s := store.NewInMemoryStore()
	return NewRegistry(func(sid string) *app.Controller {
		return app.New(geo, stubWeather{}, prefs.NewAdapter(s, sid, nil), app.Options{SessionID: sid})
	}, time.Minute, nil)
}

func TestRegistry_GetOrCreate(t *testing.T) {
	geo := &stubGeocoder{}
	r := newTestRegistry(t, geo)
	ctx := context.Background()

	c1, created, err := r.GetOrCreate(ctx, "a")
	if err != nil || !created {
		t.Fatalf("GetOrCreate() = (created=%v, err=%v)", created, err)
	}
	if c1.View().CityName != "Jakarta, Indonesia" {
		t.Error("new session should run the initial load")
	}

	c2, created, _ := r.GetOrCreate(ctx, "a")
	if created || c2 != c1 {
		t.Error("second GetOrCreate should return the live controller")
	}
	if geo.calls != 1 {
		t.Errorf("geocode calls = %d, want 1", geo.calls)
	}

	if _, ok := r.Get("b"); ok {
		t.Error("Get() of unknown session ok = true")
	}
	if r.Len() != 1 || len(r.Controllers()) != 1 {
		t.Errorf("Len() = %d", r.Len())
	}
}

func TestRegistry_EvictIdle(t *testing.T) {
	r := newTestRegistry(t, &stubGeocoder{})
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, _, _ = r.GetOrCreate(ctx, "old")
	now = now.Add(50 * time.Second)
	_, _, _ = r.GetOrCreate(ctx, "fresh")
	now = now.Add(20 * time.Second)

	if n := r.EvictIdle(); n != 1 {
		t.Fatalf("EvictIdle() = %d, want 1", n)
	}
	if _, ok := r.Get("old"); ok {
		t.Error("idle session survived eviction")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Error("active session was evicted")
	}
}

func TestRegistry_GetTouches(t *testing.T) {
	r := newTestRegistry(t, &stubGeocoder{})
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, _, _ = r.GetOrCreate(context.Background(), "a")
	now = now.Add(50 * time.Second)
	r.Get("a")
	now = now.Add(50 * time.Second)

	if n := r.EvictIdle(); n != 0 {
		t.Errorf("EvictIdle() = %d, want 0 for a recently used session", n)
	}
}
