package view

import (
	"time"

	"github.com/kjstillabower/cuaca/internal/mapview"
	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/units"
)

// Bindings holds every display value of the widget. The page template and the
// JSON state endpoint both read it; only the Renderer and the controller write
// it.
type Bindings struct {
	CityName  string `json:"cityName"`
	Coords    string `json:"coords"`
	Timestamp string `json:"timestamp"`
	Temp      string `json:"temp"`
	Condition string `json:"condition"`
	Humidity  string `json:"humidity"`
	Wind      string `json:"wind"`

	Forecast []ForecastCard `json:"forecast"`

	Banner Banner `json:"banner"`
	Notice string `json:"notice,omitempty"`

	Suggestions     []models.Suggestion `json:"suggestions"`
	SuggestionsOpen bool                `json:"suggestionsOpen"`

	Favorites      []models.Favorite `json:"favorites"`
	FavoritesEmpty string            `json:"favoritesEmpty,omitempty"`

	UnitLabel  string `json:"unitLabel"`
	ThemeIcon  string `json:"themeIcon"`
	DarkTheme  bool   `json:"darkTheme"`
	Refreshing bool   `json:"refreshing"`

	Map mapview.View `json:"map"`
}

type ForecastCard struct {
	Date  string `json:"date"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
	Max   string `json:"max"`
	Min   string `json:"min"`
}

// Banner is the transient error line. It is visible until ExpiresAt.
type Banner struct {
	Message   string    `json:"message,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func (b Banner) Visible(now time.Time) bool {
	return b.Message != "" && now.Before(b.ExpiresAt)
}

// NewBindings returns the bindings of a freshly loaded page.
func NewBindings() Bindings {
	return Bindings{
		Humidity:       HumidityPlaceholder,
		Forecast:       []ForecastCard{},
		Suggestions:    []models.Suggestion{},
		Favorites:      []models.Favorite{},
		FavoritesEmpty: NoFavoritesText,
		UnitLabel:      units.Metric.Label(),
		ThemeIcon:      "🌙",
		Map:            mapview.New(),
	}
}

// Expire drops a banner whose display time has passed.
func (b *Bindings) Expire(now time.Time) {
	if b.Banner.Message != "" && !b.Banner.Visible(now) {
		b.Banner = Banner{}
	}
}

// Clone returns a copy that shares no slices or pointers with b.
func (b Bindings) Clone() Bindings {
	out := b
	out.Forecast = append([]ForecastCard{}, b.Forecast...)
	out.Suggestions = append([]models.Suggestion{}, b.Suggestions...)
	out.Favorites = append([]models.Favorite{}, b.Favorites...)
	if b.Map.Marker != nil {
		m := *b.Map.Marker
		out.Map.Marker = &m
	}
	return out
}
