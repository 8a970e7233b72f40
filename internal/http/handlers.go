package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/cuaca/internal/app"
	"github.com/kjstillabower/cuaca/internal/degraded"
	"github.com/kjstillabower/cuaca/internal/lifecycle"
	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/observability"
	"github.com/kjstillabower/cuaca/internal/session"
	"github.com/kjstillabower/cuaca/internal/validation"
	"github.com/kjstillabower/cuaca/internal/view"
)

// storePingTimeout bounds the store check in /health.
const storePingTimeout = 2 * time.Second

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinSamples int
	StoreBackend       string
	// StorePing, when set, is called to check store reachability.
	StorePing func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions         *session.Registry
	healthConfig     *HealthConfig
	logger           *zap.Logger
	now              func() time.Time
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(sessions *session.Registry, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions:     sessions,
		healthConfig: healthConfig,
		logger:       logger,
		now:          time.Now,
	}
}

// controller returns the caller's session controller, issuing a new session
// cookie when the request carries none or a malformed one.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) *app.Controller {
	sid := ""
	if c, err := r.Cookie(session.CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			sid = id.String()
		}
	}
	if sid == "" {
		sid = uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    sid,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	ctrl, created, err := h.sessions.GetOrCreate(r.Context(), sid)
	if created && err != nil {
		h.requestLogger(r).Debug("initial load failed", observability.SessionField(sid), zap.Error(err))
	}
	return ctrl
}

// GetPage handles GET /.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)

	var buf bytes.Buffer
	if err := view.RenderPage(&buf, ctrl.TakeView(), h.now()); err != nil {
		h.requestLogger(r).Error("render page", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GetState handles GET /api/state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller(w, r).View())
}

// PostSearch handles POST /search. A blank query is a no-op.
func (h *Handler) PostSearch(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	raw := r.FormValue("q")
	if strings.TrimSpace(raw) == "" {
		h.respond(w, r, ctrl)
		return
	}
	q, err := validation.ValidateQuery(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	h.logOutcome(r, "search", ctrl.Search(r.Context(), q))
	h.respond(w, r, ctrl)
}

type suggestResponse struct {
	Seq         uint64              `json:"seq"`
	Stale       bool                `json:"stale"`
	Suggestions []models.Suggestion `json:"suggestions"`
}

// GetSuggest handles GET /suggest?q=. A stale completion answers 200 with
// stale=true so the page can drop it.
func (h *Handler) GetSuggest(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	prefix, err := validation.ValidatePrefix(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	seq, list, err := ctrl.Suggest(r.Context(), prefix)
	switch {
	case errors.Is(err, app.ErrStale):
		writeJSON(w, http.StatusOK, suggestResponse{Seq: seq, Stale: true, Suggestions: []models.Suggestion{}})
	case err != nil:
		writeServiceError(w, r, err)
	default:
		if list == nil {
			list = []models.Suggestion{}
		}
		writeJSON(w, http.StatusOK, suggestResponse{Seq: seq, Suggestions: list})
	}
}

// PostSelectSuggestion handles POST /suggest/select.
func (h *Handler) PostSelectSuggestion(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	name, err := validation.ValidateQuery(r.FormValue("name"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	h.logOutcome(r, "select_suggestion", ctrl.SelectSuggestion(r.Context(), name))
	h.respond(w, r, ctrl)
}

// PostUnit handles POST /unit.
func (h *Handler) PostUnit(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	ctrl.ToggleUnit()
	h.respond(w, r, ctrl)
}

// PostTheme handles POST /theme.
func (h *Handler) PostTheme(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	h.logOutcome(r, "toggle_theme", ctrl.ToggleTheme(r.Context()))
	h.respond(w, r, ctrl)
}

// PostRefresh handles POST /refresh.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	h.logOutcome(r, "refresh", ctrl.Refresh(r.Context()))
	h.respond(w, r, ctrl)
}

// PostFavorite handles POST /favorites.
func (h *Handler) PostFavorite(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	h.logOutcome(r, "add_favorite", ctrl.AddFavorite(r.Context()))
	h.respond(w, r, ctrl)
}

// PostLoadFavorite handles POST /favorites/{name}/load.
func (h *Handler) PostLoadFavorite(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	name, ok := favoriteName(w, r)
	if !ok {
		return
	}
	err := ctrl.LoadFavorite(r.Context(), name)
	if errors.Is(err, app.ErrNotFavorite) {
		writeError(w, r, http.StatusNotFound, "NOT_FAVORITE", "city is not in favorites")
		return
	}
	h.logOutcome(r, "load_favorite", err)
	h.respond(w, r, ctrl)
}

// PostDeleteFavorite handles POST /favorites/{name}/delete. Removing an absent
// name succeeds.
func (h *Handler) PostDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	name, ok := favoriteName(w, r)
	if !ok {
		return
	}
	h.logOutcome(r, "remove_favorite", ctrl.RemoveFavorite(r.Context(), name))
	h.respond(w, r, ctrl)
}

// favoriteName decodes the {name} path variable. The router keeps paths
// encoded so names containing "/" survive routing.
func favoriteName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(mux.Vars(r)["name"])
	if err == nil {
		name = strings.TrimSpace(name)
	}
	if err != nil || name == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_NAME", "favorite name is required")
		return "", false
	}
	return name, true
}

// respond finishes a POST: bindings JSON for API clients, otherwise a
// redirect back to the page.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, ctrl *app.Controller) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, ctrl.TakeView())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// logOutcome records controller errors. They are already shown in the
// bindings, so they never change the HTTP status.
func (h *Handler) logOutcome(r *http.Request, action string, err error) {
	if err == nil {
		return
	}
	h.requestLogger(r).Debug("action completed with error", zap.String("action", action), zap.Error(err))
}

func (h *Handler) requestLogger(r *http.Request) *zap.Logger {
	return observability.LoggerFromContext(r.Context(), h.logger)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	storeOK    bool
	upstreams  degraded.Report
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"store": "healthy"}
	if !result.storeOK {
		checks["store"] = "unhealthy"
	}
	for _, rate := range result.upstreams.Rates {
		checks[rate.API] = "healthy"
	}
	for _, api := range result.upstreams.Breached {
		checks[api] = "unhealthy"
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "cuaca",
		"version":   "dev",
		"lifecycle": lifecycle.Status(),
		"checks":    checks,
		"upstreams": result.upstreams.Rates,
		"sessions":  h.sessions.Len(),
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && h.healthConfig.StoreBackend != "" {
		resp["store"] = h.healthConfig.StoreBackend
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > store unreachable > degraded > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	res := healthResult{status: "healthy", statusCode: http.StatusOK, storeOK: true}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		pingCtx, cancel := context.WithTimeout(ctx, storePingTimeout)
		res.storeOK = h.healthConfig.StorePing(pingCtx) == nil
		cancel()
	}
	if h.healthConfig != nil {
		res.upstreams = degraded.Evaluate(h.healthConfig.DegradedWindow, float64(h.healthConfig.DegradedErrorPct), h.healthConfig.DegradedMinSamples)
	}

	switch {
	case lifecycle.IsShuttingDown():
		res.status, res.statusCode, res.reason = "shutting-down", http.StatusServiceUnavailable, "signal"
	case !res.storeOK:
		res.status, res.statusCode, res.reason = "unhealthy", http.StatusServiceUnavailable, "store_unreachable"
	case res.upstreams.Degraded:
		res.status, res.statusCode, res.reason = "degraded", http.StatusServiceUnavailable, "error_rate_breach"
	}
	return res
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError writes a 503 for upstream failures and logs the cause at DEBUG.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch suggestions")
	observability.LoggerFromContext(r.Context(), nil).Debug("upstream error", zap.Error(err))
}
