// Package view turns domain values into display strings. It writes into
// Bindings and never performs I/O.
package view

import (
	"fmt"
	"time"

	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/prefs"
	"github.com/kjstillabower/cuaca/internal/units"
	"github.com/kjstillabower/cuaca/internal/weathercode"
)

const (
	HumidityPlaceholder = "-"
	NoFavoritesText     = "Belum ada kota favorit"
	MaxForecastCards    = 5

	DefaultBannerTTL = 5 * time.Second
)

type Renderer struct {
	bannerTTL time.Duration
}

// NewRenderer returns a Renderer whose banners stay up for bannerTTL
// (DefaultBannerTTL if zero).
func NewRenderer(bannerTTL time.Duration) *Renderer {
	if bannerTTL <= 0 {
		bannerTTL = DefaultBannerTTL
	}
	return &Renderer{bannerTTL: bannerTTL}
}

// Location shows the resolved city name and its coordinates.
func (r *Renderer) Location(b *Bindings, c models.Coordinates) {
	b.CityName = fmt.Sprintf("%s, %s", c.Name, c.Country)
	b.Coords = fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lon)
}

// Snapshot formats current conditions and up to MaxForecastCards daily cards
// in the given unit. Humidity is not reported upstream.
func (r *Renderer) Snapshot(b *Bindings, snap models.Snapshot, unit units.Unit) {
	b.Timestamp = LongDateTime(snap.ObservedAt)
	b.Temp = units.FormatTemp(snap.Temperature, unit)
	b.Wind = units.FormatWind(snap.WindSpeed, unit)
	b.Humidity = HumidityPlaceholder
	b.Condition = weathercode.Lookup(snap.WeatherCode).String()

	n := len(snap.Daily)
	if n > MaxForecastCards {
		n = MaxForecastCards
	}
	cards := make([]ForecastCard, 0, n)
	for _, d := range snap.Daily[:n] {
		e := weathercode.Lookup(d.WeatherCode)
		cards = append(cards, ForecastCard{
			Date:  ShortDate(d.Date),
			Icon:  e.Icon,
			Label: e.Label,
			Max:   "Max: " + units.FormatTemp(d.TempMax, unit),
			Min:   "Min: " + units.FormatTemp(d.TempMin, unit),
		})
	}
	b.Forecast = cards
}

func (r *Renderer) Favorites(b *Bindings, favs []models.Favorite) {
	b.Favorites = append([]models.Favorite{}, favs...)
	if len(favs) == 0 {
		b.FavoritesEmpty = NoFavoritesText
	} else {
		b.FavoritesEmpty = ""
	}
}

func (r *Renderer) Suggestions(b *Bindings, list []models.Suggestion) {
	b.Suggestions = append([]models.Suggestion{}, list...)
	b.SuggestionsOpen = len(list) > 0
}

func (r *Renderer) ClearSuggestions(b *Bindings) {
	r.Suggestions(b, nil)
}

// Banner shows msg until now plus the banner TTL. A later call replaces it.
func (r *Renderer) Banner(b *Bindings, msg string, now time.Time) {
	b.Banner = Banner{Message: msg, ExpiresAt: now.Add(r.bannerTTL)}
}

func (r *Renderer) ClearBanner(b *Bindings) {
	b.Banner = Banner{}
}

func (r *Renderer) Notice(b *Bindings, msg string) {
	b.Notice = msg
}

func (r *Renderer) Preferences(b *Bindings, unit units.Unit, theme prefs.Theme) {
	b.UnitLabel = unit.Label()
	b.ThemeIcon = theme.Icon()
	b.DarkTheme = theme == prefs.Dark
}
