package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/cuaca/internal/observability"
)

// RouterConfig carries the per-route reliability settings.
type RouterConfig struct {
	// Limiter guards /suggest. nil disables rate limiting.
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
}

// NewRouter wires every widget and ops route onto a gorilla/mux router.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter().UseEncodedPath()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	ui := router.PathPrefix("/").Subrouter()
	if cfg.RequestTimeout > 0 {
		ui.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	ui.HandleFunc("/", h.GetPage).Methods(http.MethodGet)
	ui.HandleFunc("/api/state", h.GetState).Methods(http.MethodGet)
	ui.HandleFunc("/search", h.PostSearch).Methods(http.MethodPost)
	ui.HandleFunc("/suggest/select", h.PostSelectSuggestion).Methods(http.MethodPost)
	ui.HandleFunc("/unit", h.PostUnit).Methods(http.MethodPost)
	ui.HandleFunc("/theme", h.PostTheme).Methods(http.MethodPost)
	ui.HandleFunc("/refresh", h.PostRefresh).Methods(http.MethodPost)
	ui.HandleFunc("/favorites", h.PostFavorite).Methods(http.MethodPost)
	ui.HandleFunc("/favorites/{name}/load", h.PostLoadFavorite).Methods(http.MethodPost)
	ui.HandleFunc("/favorites/{name}/delete", h.PostDeleteFavorite).Methods(http.MethodPost)
	ui.Handle("/suggest", RateLimitMiddleware(cfg.Limiter)(http.HandlerFunc(h.GetSuggest))).Methods(http.MethodGet)

	return router
}
