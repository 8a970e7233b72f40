package coalesce

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/cuaca/internal/client"
	"github.com/kjstillabower/cuaca/internal/geocode"
	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/observability"
)

// Geocoder wraps a geocode.Geocoder so identical concurrent lookups share one
// upstream request. Keys are case-insensitive.
type Geocoder struct {
	next     geocode.Geocoder
	resolves *Group[models.Coordinates]
	suggests *Group[[]models.Suggestion]
}

var _ geocode.Geocoder = (*Geocoder)(nil)

func NewGeocoder(next geocode.Geocoder, timeout time.Duration) *Geocoder {
	return &Geocoder{
		next:     next,
		resolves: NewGroup[models.Coordinates](timeout),
		suggests: NewGroup[[]models.Suggestion](timeout),
	}
}

func (g *Geocoder) ResolveCity(ctx context.Context, name string) (models.Coordinates, error) {
	coords, shared, err := g.resolves.Do(ctx, normalize(name), func(ctx context.Context) (models.Coordinates, error) {
		return g.next.ResolveCity(ctx, name)
	})
	if shared {
		observability.CoalescedRequestsTotal.WithLabelValues(geocode.APIName).Inc()
	}
	return coords, err
}

// Suggest returns a private copy of the shared list.
func (g *Geocoder) Suggest(ctx context.Context, prefix string) ([]models.Suggestion, error) {
	list, shared, err := g.suggests.Do(ctx, normalize(prefix), func(ctx context.Context) ([]models.Suggestion, error) {
		return g.next.Suggest(ctx, prefix)
	})
	if shared {
		observability.CoalescedRequestsTotal.WithLabelValues(geocode.APIName).Inc()
	}
	if list == nil {
		return nil, err
	}
	return append([]models.Suggestion(nil), list...), err
}

// Weather wraps a client.WeatherClient so concurrent fetches for the same
// coordinates share one upstream request.
type Weather struct {
	next  client.WeatherClient
	group *Group[models.Snapshot]
}

var _ client.WeatherClient = (*Weather)(nil)

func NewWeather(next client.WeatherClient, timeout time.Duration) *Weather {
	return &Weather{next: next, group: NewGroup[models.Snapshot](timeout)}
}

func (w *Weather) FetchCurrentAndForecast(ctx context.Context, coords models.Coordinates) (models.Snapshot, error) {
	snap, shared, err := w.group.Do(ctx, coordsKey(coords), func(ctx context.Context) (models.Snapshot, error) {
		return w.next.FetchCurrentAndForecast(ctx, coords)
	})
	if shared {
		observability.CoalescedRequestsTotal.WithLabelValues(client.APIName).Inc()
	}
	snap.Daily = append([]models.DailyForecast(nil), snap.Daily...)
	return snap, err
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// coordsKey rounds to four decimals, the precision the widget displays.
func coordsKey(c models.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 4, 64)
}
