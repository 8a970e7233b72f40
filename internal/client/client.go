package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/kjstillabower/cuaca/internal/circuitbreaker"
	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/observability"
	"github.com/kjstillabower/cuaca/internal/traffic"
)

// APIName labels weather forecast calls in metrics and traffic windows.
const APIName = "weather"

// ForecastDays is how many daily entries a Snapshot keeps.
const ForecastDays = 5

type WeatherClient interface {
	FetchCurrentAndForecast(ctx context.Context, coords models.Coordinates) (models.Snapshot, error)
}

var (
	// ErrFetch covers network failure, non-2xx status and malformed payloads.
	ErrFetch = errors.New("weather fetch failed")

	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrMalformed       = errors.New("malformed response")
)

type OpenMeteoClient struct {
	apiURL  string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

func NewOpenMeteoClient(apiURL string, timeout time.Duration) (*OpenMeteoClient, error) {
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("invalid weather API URL %q: %w", apiURL, err)
	}
	return &OpenMeteoClient{
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker installs cb around every upstream call. nil disables it.
func (c *OpenMeteoClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type forecastResponse struct {
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Timezone         string `json:"timezone"`
	CurrentWeather   *struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
		Time        string  `json:"time"`
	} `json:"current_weather"`
	Daily *struct {
		Time             []string  `json:"time"`
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
		WeatherCode      []int     `json:"weathercode"`
	} `json:"daily"`
}

// FetchCurrentAndForecast issues a single forecast call for coords. Any
// failure discards the whole response and wraps ErrFetch; there are no retries.
func (c *OpenMeteoClient) FetchCurrentAndForecast(ctx context.Context, coords models.Coordinates) (models.Snapshot, error) {
	var snap models.Snapshot
	err := c.breaker.Call(ctx, func() error {
		var callErr error
		snap, callErr = c.callAPI(ctx, coords)
		return callErr
	})
	if err != nil {
		traffic.RecordError(APIName)
		observability.UpstreamErrorsTotal.WithLabelValues(APIName, string(CategorizeError(err))).Inc()
		return models.Snapshot{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	traffic.RecordSuccess(APIName)
	return snap, nil
}

func (c *OpenMeteoClient) callAPI(ctx context.Context, coords models.Coordinates) (models.Snapshot, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, coords)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(APIName, "error").Inc()
		return models.Snapshot{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(APIName, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(APIName, "error").Observe(duration)

		if IsTimeout(err) {
			return models.Snapshot{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.Snapshot{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := observability.StatusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(APIName, status).Inc()
	observability.UpstreamDuration.WithLabelValues(APIName, status).Observe(time.Since(start).Seconds())

	if err := HandleErrorResponse(resp); err != nil {
		return models.Snapshot{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp forecastResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: parse response: %v", ErrMalformed, err)
	}

	return mapResponse(apiResp)
}

func (c *OpenMeteoClient) buildRequest(ctx context.Context, coords models.Coordinates) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	params.Set("current_weather", "true")
	params.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode")
	params.Set("timezone", "auto")
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

// IsTimeout reports whether err is a deadline or transport timeout. Caller
// cancellation is not a timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// HandleErrorResponse maps a non-2xx upstream status to a sentinel error.
func HandleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

// mapResponse converts the upstream payload, keeping the first ForecastDays
// daily entries in the order given.
func mapResponse(apiResp forecastResponse) (models.Snapshot, error) {
	cw := apiResp.CurrentWeather
	if cw == nil {
		return models.Snapshot{}, fmt.Errorf("%w: missing current_weather", ErrMalformed)
	}
	d := apiResp.Daily
	if d == nil {
		return models.Snapshot{}, fmt.Errorf("%w: missing daily", ErrMalformed)
	}
	n := len(d.Time)
	if len(d.Temperature2mMax) != n || len(d.Temperature2mMin) != n || len(d.WeatherCode) != n {
		return models.Snapshot{}, fmt.Errorf("%w: daily arrays differ in length", ErrMalformed)
	}

	loc := responseLocation(apiResp.Timezone, apiResp.UTCOffsetSeconds)
	observed, err := time.ParseInLocation("2006-01-02T15:04", cw.Time, loc)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: current_weather.time %q: %v", ErrMalformed, cw.Time, err)
	}

	if n > ForecastDays {
		n = ForecastDays
	}
	daily := make([]models.DailyForecast, 0, n)
	for i := 0; i < n; i++ {
		date, err := time.ParseInLocation("2006-01-02", d.Time[i], loc)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("%w: daily.time[%d] %q: %v", ErrMalformed, i, d.Time[i], err)
		}
		daily = append(daily, models.DailyForecast{
			Date:        date,
			TempMax:     d.Temperature2mMax[i],
			TempMin:     d.Temperature2mMin[i],
			WeatherCode: d.WeatherCode[i],
		})
	}

	return models.Snapshot{
		Temperature: cw.Temperature,
		WindSpeed:   cw.WindSpeed,
		WeatherCode: cw.WeatherCode,
		ObservedAt:  observed,
		Daily:       daily,
	}, nil
}

// responseLocation resolves the IANA zone the upstream reported, falling back
// to a fixed offset when the zone database lacks it.
func responseLocation(name string, offsetSeconds int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if offsetSeconds != 0 {
		return time.FixedZone(name, offsetSeconds)
	}
	return time.UTC
}
