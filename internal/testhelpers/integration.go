//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/cuaca/internal/app"
	"github.com/kjstillabower/cuaca/internal/client"
	"github.com/kjstillabower/cuaca/internal/geocode"
	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/prefs"
	"github.com/kjstillabower/cuaca/internal/store"
)

// Jakarta is the default city as the live geocoder resolves it.
var Jakarta = models.Coordinates{Lat: -6.2, Lon: 106.8, Name: "Jakarta", Country: "Indonesia"}

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	WeatherURL    string
	GeocodingURL  string
	StoreBackend  string // "in_memory" (default), "memcached", "redis" or "sqlite"
	MemcachedAddr string
	RedisAddr     string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test when SKIP_LIVE_UPSTREAM is set (offline CI).
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("SKIP_LIVE_UPSTREAM") != "" {
		t.Skip("SKIP_LIVE_UPSTREAM set, skipping live Open-Meteo test")
	}

	cfg := IntegrationTestConfig{
		WeatherURL:    envOr("WEATHER_API_URL", "https://api.open-meteo.com/v1/forecast"),
		GeocodingURL:  envOr("GEOCODING_URL", "https://geocoding-api.open-meteo.com/v1/search"),
		StoreBackend:  envOr("INTEGRATION_STORE_BACKEND", store.BackendInMemory),
		MemcachedAddr: envOr("MEMCACHED_ADDRS", "localhost:11211"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
	}
	return cfg
}

// SetupIntegrationFactory builds a session factory over the live upstreams.
// Returns the factory and a cleanup that closes the store.
func SetupIntegrationFactory(t *testing.T, cfg IntegrationTestConfig) (func(sid string) *app.Controller, func()) {
	t.Helper()
	geo, err := geocode.NewClient(cfg.GeocodingURL, 10*time.Second)
	if err != nil {
		t.Fatalf("geocode.NewClient() error = %v", err)
	}
	weather, err := client.NewOpenMeteoClient(cfg.WeatherURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}

	st, err := store.New(store.Options{
		Backend:          cfg.StoreBackend,
		MemcachedAddrs:   cfg.MemcachedAddr,
		MemcachedTimeout: 500 * time.Millisecond,
		RedisAddr:        cfg.RedisAddr,
		RedisTimeout:     500 * time.Millisecond,
		SQLitePath:       ":memory:",
	})
	if err != nil {
		t.Logf("store backend %q not available (%v), using in-memory store", cfg.StoreBackend, err)
		st = store.NewInMemoryStore()
	}

	factory := func(sid string) *app.Controller {
		return app.New(geo, weather, prefs.NewAdapter(st, sid, nil), app.Options{SessionID: sid})
	}
	return factory, func() { _ = st.Close() }
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
