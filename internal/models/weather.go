package models

import "time"

// Coordinates is the active city produced by a successful geocode.
type Coordinates struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
}

// Favorite is one entry of the persisted favorites list. Name is the identity.
type Favorite struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Snapshot is the result of one weather fetch: current conditions plus up to
// five daily entries in upstream order. Values are metric (°C, m/s).
type Snapshot struct {
	Temperature float64         `json:"temperature"`
	WindSpeed   float64         `json:"windSpeed"`
	WeatherCode int             `json:"weatherCode"`
	ObservedAt  time.Time       `json:"observedAt"`
	Daily       []DailyForecast `json:"daily"`
}

type DailyForecast struct {
	Date        time.Time `json:"date"`
	TempMax     float64   `json:"tempMax"`
	TempMin     float64   `json:"tempMin"`
	WeatherCode int       `json:"weatherCode"`
}
