package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/cuaca/internal/app"
	"github.com/kjstillabower/cuaca/internal/circuitbreaker"
	"github.com/kjstillabower/cuaca/internal/client"
	"github.com/kjstillabower/cuaca/internal/coalesce"
	"github.com/kjstillabower/cuaca/internal/config"
	"github.com/kjstillabower/cuaca/internal/geocode"
	httphandler "github.com/kjstillabower/cuaca/internal/http"
	"github.com/kjstillabower/cuaca/internal/lifecycle"
	"github.com/kjstillabower/cuaca/internal/observability"
	"github.com/kjstillabower/cuaca/internal/prefs"
	"github.com/kjstillabower/cuaca/internal/refresh"
	"github.com/kjstillabower/cuaca/internal/session"
	"github.com/kjstillabower/cuaca/internal/store"
)

func main() {
	envErr := godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("load .env", zap.Error(envErr))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	geoClient, err := geocode.NewClient(cfg.GeocodingURL, cfg.GeocodingTimeout)
	if err != nil {
		logger.Fatal("geocoding client", zap.Error(err))
	}
	weatherClient, err := client.NewOpenMeteoClient(cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		geoClient.SetCircuitBreaker(newBreaker(cfg, geocode.APIName, logger))
		weatherClient.SetCircuitBreaker(newBreaker(cfg, client.APIName, logger))
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold), zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var geo geocode.Geocoder = geoClient
	var weather client.WeatherClient = weatherClient
	if cfg.CoalesceEnabled {
		geo = coalesce.NewGeocoder(geoClient, cfg.CoalesceTimeout)
		weather = coalesce.NewWeather(weatherClient, cfg.CoalesceTimeout)
	}

	st, err := store.New(store.Options{
		Backend:               cfg.StoreBackend,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      cfg.MemcachedTimeout,
		MemcachedMaxIdleConns: cfg.MemcachedMaxIdleConns,
		RedisAddr:             cfg.RedisAddr,
		RedisPassword:         cfg.RedisPassword,
		RedisDB:               cfg.RedisDB,
		RedisTimeout:          cfg.RedisTimeout,
		SQLitePath:            cfg.SQLitePath,
	})
	if err != nil {
		logger.Fatal("store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	logger.Info("store backend", zap.String("backend", cfg.StoreBackend))

	registry := session.NewRegistry(func(sid string) *app.Controller {
		return app.New(geo, weather, prefs.NewAdapter(st, sid, logger), app.Options{
			SessionID:   sid,
			DefaultCity: cfg.DefaultCity,
			SpinnerHold: cfg.SpinnerHold,
			BannerTTL:   cfg.BannerTTL,
			Logger:      logger,
		})
	}, cfg.SessionIdleTTL, logger)

	refresher := refresh.New(registry, cfg.RefreshInterval, cfg.RefreshConcurrency, logger)
	if err := refresher.Start(); err != nil {
		logger.Fatal("refresh scheduler", zap.Error(err))
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(registry, &httphandler.HealthConfig{
		DegradedWindow:     cfg.DegradedWindow,
		DegradedErrorPct:   cfg.DegradedErrorPct,
		DegradedMinSamples: cfg.DegradedMinSamples,
		StoreBackend:       cfg.StoreBackend,
		StorePing:          st.Ping,
	}, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	lifecycle.SetReady(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := refresher.Stop(); err != nil {
		logger.Error("refresh scheduler stop", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newBreaker builds a per-upstream breaker that mirrors its state into the
// circuitBreakerState gauge.
func newBreaker(cfg *config.Config, api string, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(api).Set(float64(circuitbreaker.StateClosed))
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        api,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.CircuitBreakerState.WithLabelValues(api).Set(float64(to))
			logger.Warn("circuit breaker transition", zap.String("api", api), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}
