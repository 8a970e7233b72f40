// Package geocode resolves Indonesian city names to coordinates using the
// Open-Meteo geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kjstillabower/cuaca/internal/circuitbreaker"
	"github.com/kjstillabower/cuaca/internal/client"
	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/observability"
	"github.com/kjstillabower/cuaca/internal/traffic"
)

const (
	// APIName labels geocoding calls in metrics and traffic windows.
	APIName = "geocoding"

	// CountryCode restricts every lookup to Indonesia.
	CountryCode    = "ID"
	DefaultCountry = "Indonesia"

	// MinPrefixLength is the shortest prefix that triggers a suggestion lookup.
	MinPrefixLength = 2
	MaxSuggestions  = 5
)

var (
	// ErrNotFound means the upstream returned zero results.
	ErrNotFound = errors.New("city not found")

	// ErrFetch covers network failure, non-2xx status and malformed payloads.
	ErrFetch = errors.New("geocoding failed")
)

type Geocoder interface {
	ResolveCity(ctx context.Context, name string) (models.Coordinates, error)
	Suggest(ctx context.Context, prefix string) ([]models.Suggestion, error)
}

type Client struct {
	apiURL  string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

func NewClient(apiURL string, timeout time.Duration) (*Client, error) {
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("invalid geocoding API URL %q: %w", apiURL, err)
	}
	return &Client{
		apiURL:  apiURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// SetCircuitBreaker installs cb around every upstream call. nil disables it.
func (c *Client) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type searchResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

// ResolveCity looks up the single best match for name within Indonesia.
func (c *Client) ResolveCity(ctx context.Context, name string) (models.Coordinates, error) {
	resp, err := c.search(ctx, name, 1)
	if err != nil {
		return models.Coordinates{}, err
	}
	if len(resp.Results) == 0 {
		return models.Coordinates{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	r := resp.Results[0]
	country := r.Country
	if country == "" {
		country = DefaultCountry
	}
	return models.Coordinates{
		Lat:     r.Latitude,
		Lon:     r.Longitude,
		Name:    r.Name,
		Country: country,
	}, nil
}

// Suggest returns up to MaxSuggestions candidates for prefix. A trimmed prefix
// shorter than MinPrefixLength returns nil without calling the network.
func (c *Client) Suggest(ctx context.Context, prefix string) ([]models.Suggestion, error) {
	prefix = strings.TrimSpace(prefix)
	if utf8.RuneCountInString(prefix) < MinPrefixLength {
		return nil, nil
	}

	resp, err := c.search(ctx, prefix, MaxSuggestions)
	if err != nil {
		return nil, err
	}

	out := make([]models.Suggestion, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, models.Suggestion{
			Name:        r.Name,
			DisplayName: r.Name + ", " + DefaultCountry,
			Lat:         r.Latitude,
			Lon:         r.Longitude,
		})
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, name string, count int) (searchResponse, error) {
	var resp searchResponse
	err := c.breaker.Call(ctx, func() error {
		var callErr error
		resp, callErr = c.callAPI(ctx, name, count)
		return callErr
	})
	if err != nil {
		traffic.RecordError(APIName)
		observability.UpstreamErrorsTotal.WithLabelValues(APIName, string(client.CategorizeError(err))).Inc()
		return searchResponse{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	traffic.RecordSuccess(APIName)
	return resp, nil
}

func (c *Client) callAPI(ctx context.Context, name string, count int) (searchResponse, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, name, count)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(APIName, "error").Inc()
		return searchResponse{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(APIName, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(APIName, "error").Observe(time.Since(start).Seconds())
		if client.IsTimeout(err) {
			return searchResponse{}, fmt.Errorf("request timeout: %w", err)
		}
		return searchResponse{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := observability.StatusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(APIName, status).Inc()
	observability.UpstreamDuration.WithLabelValues(APIName, status).Observe(time.Since(start).Seconds())

	if err := client.HandleErrorResponse(resp); err != nil {
		return searchResponse{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return searchResponse{}, fmt.Errorf("read response body: %w", err)
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return searchResponse{}, fmt.Errorf("%w: parse response: %v", client.ErrMalformed, err)
	}
	return decoded, nil
}

func (c *Client) buildRequest(ctx context.Context, name string, count int) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("name", name)
	params.Set("count", strconv.Itoa(count))
	params.Set("country", CountryCode)
	params.Set("language", "id")
	params.Set("format", "json")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}
