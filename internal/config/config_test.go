package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `
server:
  port: "8080"
geocoding:
  url: "https://geo.example.com/v1/search"
  timeout: "2s"
weather_api:
  url: "https://api.example.com/v1/forecast"
  timeout: "3s"
store:
  backend: "in_memory"
`

func TestLoad_Minimal(t *testing.T) {
	clearEnv(t)
	chdirWithConfig(t, minimalEnvYAML)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GeocodingURL != "https://geo.example.com/v1/search" {
		t.Errorf("GeocodingURL = %q", cfg.GeocodingURL)
	}
	if cfg.GeocodingTimeout != 2*time.Second || cfg.WeatherAPITimeout != 3*time.Second {
		t.Errorf("timeouts = %v/%v, want 2s/3s", cfg.GeocodingTimeout, cfg.WeatherAPITimeout)
	}
	if cfg.StoreBackend != "in_memory" {
		t.Errorf("StoreBackend = %q, want in_memory", cfg.StoreBackend)
	}
	if cfg.DefaultCity != "Jakarta" {
		t.Errorf("DefaultCity = %q, want Jakarta", cfg.DefaultCity)
	}
	if cfg.BannerTTL != 5*time.Second || cfg.SpinnerHold != 500*time.Millisecond {
		t.Errorf("BannerTTL/SpinnerHold = %v/%v", cfg.BannerTTL, cfg.SpinnerHold)
	}
	if cfg.RefreshInterval != 5*time.Minute || cfg.RefreshConcurrency != 8 {
		t.Errorf("refresh = %v/%d", cfg.RefreshInterval, cfg.RefreshConcurrency)
	}
	if cfg.SessionIdleTTL != 30*time.Minute {
		t.Errorf("SessionIdleTTL = %v", cfg.SessionIdleTTL)
	}
	if cfg.SQLitePath != "data/cuaca.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.DegradedErrorPct != 50 || cfg.DegradedMinSamples != 5 {
		t.Errorf("degraded = %d/%d", cfg.DegradedErrorPct, cfg.DegradedMinSamples)
	}
}

func TestLoad_DefaultUpstreamURLs(t *testing.T) {
	clearEnv(t)
	chdirWithConfig(t, `
store:
  backend: "in_memory"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GeocodingURL != "https://geocoding-api.open-meteo.com/v1/search" {
		t.Errorf("GeocodingURL = %q", cfg.GeocodingURL)
	}
	if cfg.WeatherAPIURL != "https://api.open-meteo.com/v1/forecast" {
		t.Errorf("WeatherAPIURL = %q", cfg.WeatherAPIURL)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_NAME", "nonexistent")
	chdirWithConfig(t, minimalEnvYAML)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load() error = %v, want message about config file not found", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	clearEnv(t)
	chdirWithConfig(t, "server: [[[")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestLoad_DurationFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty weather timeout",
			yaml: `
weather_api:
  timeout: ""
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.WeatherAPITimeout != 5*time.Second {
					t.Errorf("WeatherAPITimeout = %v, want 5s", cfg.WeatherAPITimeout)
				}
			},
		},
		{
			name: "invalid banner ttl",
			yaml: `
ui:
  banner_ttl: "soon"
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.BannerTTL != 5*time.Second {
					t.Errorf("BannerTTL = %v, want 5s", cfg.BannerTTL)
				}
			},
		},
		{
			name: "negative refresh interval",
			yaml: `
refresh:
  interval: "-1m"
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.RefreshInterval != 5*time.Minute {
					t.Errorf("RefreshInterval = %v, want 5m", cfg.RefreshInterval)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			chdirWithConfig(t, tt.yaml)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_ValidationFailsWhenTimeoutZero(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"weather", "weather_api:\n  timeout: \"0s\"\n", "weather_api.timeout"},
		{"geocoding", "geocoding:\n  timeout: \"0s\"\n", "geocoding.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			chdirWithConfig(t, tt.yaml)
			cfg, err := Load()
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if cfg != nil {
				t.Fatalf("Load() expected nil config on error, got %+v", cfg)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoad_RequestTimeoutCoversBothUpstreams(t *testing.T) {
	clearEnv(t)
	chdirWithConfig(t, minimalEnvYAML+`
request:
  timeout: "1s"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 6*time.Second {
		t.Errorf("RequestTimeout = %v, want 6s", cfg.RequestTimeout)
	}
}

func TestLoad_StoreBackend(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     string
		want    string
		wantErr bool
	}{
		{name: "default", yaml: "", want: "in_memory"},
		{name: "yaml redis", yaml: "store:\n  backend: redis\n", want: "redis"},
		{name: "env overrides yaml", yaml: "store:\n  backend: redis\n", env: "SQLITE", want: "sqlite"},
		{name: "memcached", yaml: "store:\n  backend: memcached\n", want: "memcached"},
		{name: "unknown", yaml: "store:\n  backend: etcd\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.env != "" {
				t.Setenv("STORE_BACKEND", tt.env)
			}
			chdirWithConfig(t, tt.yaml)
			cfg, err := Load()
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "store.backend") {
					t.Errorf("Load() error = %v, want store.backend error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.StoreBackend != tt.want {
				t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MEMCACHED_ADDRS", "mc1:11211,mc2:11211")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("SQLITE_PATH", "/var/lib/cuaca.db")
	chdirWithConfig(t, minimalEnvYAML)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.SQLitePath != "/var/lib/cuaca.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
}

func TestLoad_CircuitBreakerAndHealth(t *testing.T) {
	clearEnv(t)
	chdirWithConfig(t, minimalEnvYAML+`
circuit_breaker:
  enabled: true
  failure_threshold: 3
  success_threshold: 1
  timeout: "10s"
health:
  degraded_window: "2m"
  degraded_error_pct: 25
  degraded_min_samples: 10
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.CircuitBreakerEnabled || cfg.CircuitBreakerFailureThreshold != 3 || cfg.CircuitBreakerSuccessThreshold != 1 || cfg.CircuitBreakerTimeout != 10*time.Second {
		t.Errorf("circuit breaker = %v/%d/%d/%v", cfg.CircuitBreakerEnabled, cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerSuccessThreshold, cfg.CircuitBreakerTimeout)
	}
	if cfg.DegradedWindow != 2*time.Minute || cfg.DegradedErrorPct != 25 || cfg.DegradedMinSamples != 10 {
		t.Errorf("health = %v/%d/%d", cfg.DegradedWindow, cfg.DegradedErrorPct, cfg.DegradedMinSamples)
	}
}

func TestLoad_Coalesce(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantEnabled bool
		wantTimeout time.Duration
	}{
		{"default on", "", true, 10 * time.Second},
		{"disabled", "coalesce:\n  enabled: false\n", false, 10 * time.Second},
		{"custom timeout", "coalesce:\n  enabled: true\n  timeout: \"3s\"\n", true, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			chdirWithConfig(t, tt.yaml)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.CoalesceEnabled != tt.wantEnabled || cfg.CoalesceTimeout != tt.wantTimeout {
				t.Errorf("coalesce = %v/%v, want %v/%v", cfg.CoalesceEnabled, cfg.CoalesceTimeout, tt.wantEnabled, tt.wantTimeout)
			}
		})
	}
}

func TestLoad_DegradedPctAbove100(t *testing.T) {
	clearEnv(t)
	chdirWithConfig(t, "health:\n  degraded_error_pct: 150\n")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "degraded_error_pct") {
		t.Errorf("Load() error = %v, want degraded_error_pct error", err)
	}
}

// TestLoad_ProjectDevConfig loads the checked-in config/dev.yaml.
func TestLoad_ProjectDevConfig(t *testing.T) {
	clearEnv(t)
	origWd, _ := os.Getwd()
	if err := os.Chdir(findProjectRoot(t)); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ENV_NAME", "STORE_BACKEND", "MEMCACHED_ADDRS", "REDIS_ADDR", "REDIS_PASSWORD", "SQLITE_PATH", "SERVER_PORT"} {
		t.Setenv(key, "")
	}
}

func chdirWithConfig(t *testing.T, content string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	writeEnvFile(t, dir, content)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}
