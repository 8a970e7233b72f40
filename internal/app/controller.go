// Package app holds the per-session application controller: it owns the widget
// state, drives the city-resolution pipeline and writes every result into
// view bindings.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kjstillabower/cuaca/internal/client"
	"github.com/kjstillabower/cuaca/internal/favorites"
	"github.com/kjstillabower/cuaca/internal/geocode"
	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/observability"
	"github.com/kjstillabower/cuaca/internal/prefs"
	"github.com/kjstillabower/cuaca/internal/units"
	"github.com/kjstillabower/cuaca/internal/view"
)

const (
	DefaultCity        = "Jakarta"
	DefaultSpinnerHold = 500 * time.Millisecond
)

var (
	// ErrStale reports a completion discarded because a newer request was
	// issued while it was in flight.
	ErrStale = errors.New("superseded by a newer request")

	ErrNotFavorite = errors.New("city is not a favorite")
)

type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseResolvingCity    Phase = "resolving_city"
	PhaseRenderingWeather Phase = "rendering_weather"
)

// State is the widget's application state. Coords is nil until the first
// successful geocode; Snapshot is nil until the first successful fetch.
type State struct {
	Unit      units.Unit
	Theme     prefs.Theme
	City      string
	Coords    *models.Coordinates
	Snapshot  *models.Snapshot
	Favorites []models.Favorite
	Phase     Phase
}

type Options struct {
	SessionID   string
	DefaultCity string
	SpinnerHold time.Duration
	BannerTTL   time.Duration
	Logger      *zap.Logger

	// Now and AfterFunc default to the time package.
	Now       func() time.Time
	AfterFunc func(d time.Duration, f func())
}

type Controller struct {
	geo     geocode.Geocoder
	weather client.WeatherClient
	prefs   *prefs.Adapter
	render  *view.Renderer
	logger  *zap.Logger

	sid         string
	defaultCity string
	spinnerHold time.Duration
	now         func() time.Time
	afterFunc   func(time.Duration, func())

	mu         sync.Mutex
	state      State
	favs       *favorites.Manager
	b          view.Bindings
	citySeq    uint64
	weatherSeq uint64
	suggestSeq uint64
	refreshGen uint64
}

func New(geo geocode.Geocoder, weather client.WeatherClient, adapter *prefs.Adapter, opts Options) *Controller {
	if opts.DefaultCity == "" {
		opts.DefaultCity = DefaultCity
	}
	if opts.SpinnerHold <= 0 {
		opts.SpinnerHold = DefaultSpinnerHold
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}

	var persist favorites.Persister
	if adapter != nil {
		persist = adapter
	}

	return &Controller{
		geo:         geo,
		weather:     weather,
		prefs:       adapter,
		render:      view.NewRenderer(opts.BannerTTL),
		logger:      opts.Logger.With(observability.SessionField(opts.SessionID)),
		sid:         opts.SessionID,
		defaultCity: opts.DefaultCity,
		spinnerHold: opts.SpinnerHold,
		now:         opts.Now,
		afterFunc:   opts.AfterFunc,
		state: State{
			Unit:      units.Metric,
			Theme:     prefs.Light,
			Favorites: []models.Favorite{},
			Phase:     PhaseIdle,
		},
		favs: favorites.NewManager(nil, persist),
		b:    view.NewBindings(),
	}
}

func (c *Controller) SessionID() string { return c.sid }

// Start performs the initial page load: persisted theme and favorites, then
// the default city through the full pipeline.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.prefs != nil {
		c.state.Theme = c.prefs.LoadTheme(ctx)
		c.favs = favorites.NewManager(c.prefs.LoadFavorites(ctx), c.prefs)
	}
	c.state.Favorites = c.favs.List()
	c.render.Preferences(&c.b, c.state.Unit, c.state.Theme)
	c.render.Favorites(&c.b, c.state.Favorites)
	city := c.defaultCity
	c.mu.Unlock()

	return c.resolve(ctx, city)
}

// Search runs the pipeline for query. A blank query does nothing.
func (c *Controller) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	return c.resolve(ctx, query)
}

// SelectSuggestion searches for a clicked suggestion.
func (c *Controller) SelectSuggestion(ctx context.Context, name string) error {
	return c.Search(ctx, name)
}

// LoadFavorite runs the pipeline for a saved city.
func (c *Controller) LoadFavorite(ctx context.Context, name string) error {
	c.mu.Lock()
	ok := c.favs.Contains(name)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFavorite, name)
	}
	return c.resolve(ctx, name)
}

// resolve is the Resolving City -> Rendering Weather pipeline. The controller
// lock is not held across network calls; each completion re-checks its token.
func (c *Controller) resolve(ctx context.Context, city string) error {
	logger := c.requestLogger(ctx).With(zap.String("city", city))

	c.mu.Lock()
	c.citySeq++
	token := c.citySeq
	c.suggestSeq++
	c.render.ClearSuggestions(&c.b)
	c.render.ClearBanner(&c.b)
	c.state.City = city
	c.state.Phase = PhaseResolvingCity
	c.mu.Unlock()

	coords, err := c.geo.ResolveCity(ctx, city)

	c.mu.Lock()
	if token != c.citySeq {
		c.mu.Unlock()
		observability.CityLookupsTotal.WithLabelValues("stale").Inc()
		return ErrStale
	}
	if err != nil {
		c.state.Phase = PhaseIdle
		if errors.Is(err, geocode.ErrNotFound) {
			c.render.Banner(&c.b, MsgCityNotFound, c.now())
			c.mu.Unlock()
			observability.CityLookupsTotal.WithLabelValues("not_found").Inc()
			logger.Info("city not found")
			return err
		}
		c.render.Banner(&c.b, MsgGeocodeFailed, c.now())
		c.mu.Unlock()
		observability.CityLookupsTotal.WithLabelValues("error").Inc()
		logger.Warn("city lookup failed", zap.Error(err))
		return err
	}
	observability.CityLookupsTotal.WithLabelValues("found").Inc()

	c.state.Coords = &coords
	c.render.Location(&c.b, coords)
	c.b.Map.Center(coords.Lat, coords.Lon, coords.Name)
	c.state.Phase = PhaseRenderingWeather
	c.weatherSeq++
	wtoken := c.weatherSeq
	c.mu.Unlock()

	return c.fetchWeather(ctx, logger, coords, token, wtoken)
}

// fetchWeather applies a weather result only if neither a newer city search
// nor a newer weather fetch was issued meanwhile.
func (c *Controller) fetchWeather(ctx context.Context, logger *zap.Logger, coords models.Coordinates, cityToken, weatherToken uint64) error {
	snap, err := c.weather.FetchCurrentAndForecast(ctx, coords)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cityToken != c.citySeq || weatherToken != c.weatherSeq {
		return ErrStale
	}
	c.state.Phase = PhaseIdle
	if err != nil {
		c.render.Banner(&c.b, MsgWeatherFailed, c.now())
		logger.Warn("weather fetch failed", zap.String("city", coords.Name), zap.Error(err))
		return err
	}
	c.state.Snapshot = &snap
	c.render.Snapshot(&c.b, snap, c.state.Unit)
	return nil
}

// Refresh re-fetches weather for the active city and shows the spinner until
// the fetch completes plus the spinner hold. Without an active city it does
// nothing.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Coords == nil {
		c.mu.Unlock()
		return nil
	}
	c.refreshGen++
	gen := c.refreshGen
	c.b.Refreshing = true
	c.mu.Unlock()

	err := c.refreshWeather(ctx)

	c.afterFunc(c.spinnerHold, func() {
		c.mu.Lock()
		if gen == c.refreshGen {
			c.b.Refreshing = false
		}
		c.mu.Unlock()
	})
	return err
}

// AutoRefresh is the timer-driven weather-only refresh.
func (c *Controller) AutoRefresh(ctx context.Context) error {
	return c.refreshWeather(ctx)
}

func (c *Controller) refreshWeather(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Coords == nil {
		c.mu.Unlock()
		return nil
	}
	coords := *c.state.Coords
	cityToken := c.citySeq
	c.weatherSeq++
	wtoken := c.weatherSeq
	c.state.Phase = PhaseRenderingWeather
	c.mu.Unlock()

	return c.fetchWeather(ctx, c.requestLogger(ctx), coords, cityToken, wtoken)
}

// Suggest looks up autocomplete candidates for prefix and returns the request
// token with them. A short prefix clears the list without a network call. A
// stale completion returns ErrStale and leaves the bindings alone.
func (c *Controller) Suggest(ctx context.Context, prefix string) (uint64, []models.Suggestion, error) {
	prefix = strings.TrimSpace(prefix)

	c.mu.Lock()
	c.suggestSeq++
	token := c.suggestSeq
	if utf8.RuneCountInString(prefix) < geocode.MinPrefixLength {
		c.render.ClearSuggestions(&c.b)
		c.mu.Unlock()
		observability.SuggestionsTotal.WithLabelValues("skipped").Inc()
		return token, []models.Suggestion{}, nil
	}
	c.mu.Unlock()

	list, err := c.geo.Suggest(ctx, prefix)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.suggestSeq {
		observability.SuggestionsTotal.WithLabelValues("stale").Inc()
		return token, nil, ErrStale
	}
	if err != nil {
		observability.SuggestionsTotal.WithLabelValues("error").Inc()
		c.requestLogger(ctx).Debug("suggest failed", zap.String("prefix", prefix), zap.Error(err))
		return token, nil, err
	}
	if list == nil {
		list = []models.Suggestion{}
	}
	observability.SuggestionsTotal.WithLabelValues("served").Inc()
	c.render.Suggestions(&c.b, list)
	return token, list, nil
}

// ToggleUnit flips the display unit and reformats the last snapshot. It never
// touches the network.
func (c *Controller) ToggleUnit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Unit = c.state.Unit.Toggle()
	c.render.Preferences(&c.b, c.state.Unit, c.state.Theme)
	if c.state.Snapshot != nil {
		c.render.Snapshot(&c.b, *c.state.Snapshot, c.state.Unit)
	}
}

// ToggleTheme flips the theme and persists it. The in-memory theme changes
// even if persisting fails.
func (c *Controller) ToggleTheme(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Theme = c.state.Theme.Toggle()
	c.render.Preferences(&c.b, c.state.Unit, c.state.Theme)
	if c.prefs == nil {
		return nil
	}
	if err := c.prefs.SaveTheme(ctx, c.state.Theme); err != nil {
		c.requestLogger(ctx).Warn("persist theme failed", zap.Error(err))
		return err
	}
	return nil
}

// AddFavorite saves the active city. Missing city shows the banner; duplicate
// and success show a notice.
func (c *Controller) AddFavorite(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var active *models.Coordinates
	if c.state.Coords != nil {
		cp := *c.state.Coords
		active = &cp
	}
	fav, err := c.favs.Add(ctx, active)
	switch {
	case errors.Is(err, favorites.ErrNoActiveCity):
		c.render.Banner(&c.b, MsgNoActiveCity, c.now())
		return err
	case errors.Is(err, favorites.ErrDuplicate):
		c.render.Notice(&c.b, MsgDuplicate)
		return err
	case err != nil:
		c.requestLogger(ctx).Warn("persist favorites failed", zap.Error(err))
	}

	c.state.Favorites = c.favs.List()
	c.render.Favorites(&c.b, c.state.Favorites)
	c.render.Notice(&c.b, msgAdded(fav.Name))
	return err
}

// RemoveFavorite deletes name from the list. An absent name is a no-op.
func (c *Controller) RemoveFavorite(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, err := c.favs.Remove(ctx, name)
	if err != nil {
		c.requestLogger(ctx).Warn("persist favorites failed", zap.Error(err))
	}
	if removed {
		c.state.Favorites = c.favs.List()
		c.render.Favorites(&c.b, c.state.Favorites)
	}
	return err
}

// State returns a copy of the application state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Favorites = append([]models.Favorite{}, c.state.Favorites...)
	if c.state.Coords != nil {
		cp := *c.state.Coords
		s.Coords = &cp
	}
	if c.state.Snapshot != nil {
		cp := *c.state.Snapshot
		cp.Daily = append([]models.DailyForecast{}, c.state.Snapshot.Daily...)
		s.Snapshot = &cp
	}
	return s
}

// View returns the current bindings with expired banners dropped.
func (c *Controller) View() view.Bindings {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.b.Expire(c.now())
	return c.b.Clone()
}

// TakeView is View that also consumes the one-shot notice.
func (c *Controller) TakeView() view.Bindings {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.b.Expire(c.now())
	out := c.b.Clone()
	c.b.Notice = ""
	return out
}

func (c *Controller) requestLogger(ctx context.Context) *zap.Logger {
	l := observability.LoggerFromContext(ctx, c.logger)
	if l == c.logger {
		return l
	}
	return l.With(observability.SessionField(c.sid))
}
