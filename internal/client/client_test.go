package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/cuaca/internal/circuitbreaker"
	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/observability"
)

var jakarta = models.Coordinates{Lat: -6.2, Lon: 106.8, Name: "Jakarta", Country: "Indonesia"}

const sevenDayBody = `{
  "latitude": -6.25, "longitude": 106.75,
  "utc_offset_seconds": 25200, "timezone": "Asia/Jakarta",
  "current_weather": {"temperature": 29.4, "windspeed": 3.6, "weathercode": 2, "time": "2026-10-19T14:00"},
  "daily": {
    "time": ["2026-10-19","2026-10-20","2026-10-21","2026-10-22","2026-10-23","2026-10-24","2026-10-25"],
    "temperature_2m_max": [32.1, 31.5, 30.9, 33.0, 32.4, 31.0, 30.2],
    "temperature_2m_min": [24.0, 24.3, 23.8, 24.9, 25.1, 24.4, 23.9],
    "weathercode": [2, 61, 95, 3, 80, 1, 0]
  }
}`

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var captured http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestNewOpenMeteoClient_InvalidURL(t *testing.T) {
	if _, err := NewOpenMeteoClient("not a url", time.Second); err == nil {
		t.Fatal("NewOpenMeteoClient() expected error for invalid URL")
	}
}

func TestOpenMeteoClient_FetchCurrentAndForecast_Success(t *testing.T) {
	server, captured := newTestServer(t, http.StatusOK, sevenDayBody)

	c, err := NewOpenMeteoClient(server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	got, err := c.FetchCurrentAndForecast(ctx, jakarta)
	if err != nil {
		t.Fatalf("FetchCurrentAndForecast() error = %v", err)
	}

	q := captured.URL.Query()
	wantParams := map[string]string{
		"latitude":        "-6.2",
		"longitude":       "106.8",
		"current_weather": "true",
		"daily":           "temperature_2m_max,temperature_2m_min,weathercode",
		"timezone":        "auto",
	}
	for k, v := range wantParams {
		if q.Get(k) != v {
			t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
		}
	}
	if captured.Header.Get("X-Correlation-ID") != "corr-1" {
		t.Errorf("X-Correlation-ID = %q, want corr-1", captured.Header.Get("X-Correlation-ID"))
	}

	if got.Temperature != 29.4 || got.WindSpeed != 3.6 || got.WeatherCode != 2 {
		t.Errorf("current = %+v", got)
	}
	if got.ObservedAt.Hour() != 14 || got.ObservedAt.Day() != 19 {
		t.Errorf("ObservedAt = %v, want 2026-10-19 14:00 local", got.ObservedAt)
	}
	if _, offset := got.ObservedAt.Zone(); offset != 7*3600 {
		t.Errorf("ObservedAt offset = %d, want +7h", offset)
	}
}

// TestOpenMeteoClient_TruncatesToFiveDays verifies the forecast keeps exactly
// the first five daily entries in upstream order.
func TestOpenMeteoClient_TruncatesToFiveDays(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, sevenDayBody)
	c, _ := NewOpenMeteoClient(server.URL, 2*time.Second)

	got, err := c.FetchCurrentAndForecast(context.Background(), jakarta)
	if err != nil {
		t.Fatalf("FetchCurrentAndForecast() error = %v", err)
	}
	if len(got.Daily) != ForecastDays {
		t.Fatalf("len(Daily) = %d, want %d", len(got.Daily), ForecastDays)
	}
	wantCodes := []int{2, 61, 95, 3, 80}
	wantMax := []float64{32.1, 31.5, 30.9, 33.0, 32.4}
	for i, d := range got.Daily {
		if d.WeatherCode != wantCodes[i] || d.TempMax != wantMax[i] {
			t.Errorf("Daily[%d] = %+v, want code %d max %v", i, d, wantCodes[i], wantMax[i])
		}
		if d.Date.Day() != 19+i {
			t.Errorf("Daily[%d].Date = %v, want day %d", i, d.Date, 19+i)
		}
	}
}

// TestOpenMeteoClient_KeepsInputOrder verifies dates are not re-sorted.
func TestOpenMeteoClient_KeepsInputOrder(t *testing.T) {
	body := `{"timezone":"UTC","current_weather":{"temperature":1,"windspeed":1,"weathercode":0,"time":"2026-10-19T00:00"},
	"daily":{"time":["2026-10-21","2026-10-19"],"temperature_2m_max":[1,2],"temperature_2m_min":[0,1],"weathercode":[0,1]}}`
	server, _ := newTestServer(t, http.StatusOK, body)
	c, _ := NewOpenMeteoClient(server.URL, 2*time.Second)

	got, err := c.FetchCurrentAndForecast(context.Background(), jakarta)
	if err != nil {
		t.Fatalf("FetchCurrentAndForecast() error = %v", err)
	}
	if len(got.Daily) != 2 || got.Daily[0].Date.Day() != 21 || got.Daily[1].Date.Day() != 19 {
		t.Errorf("Daily = %+v, want input order 21 then 19", got.Daily)
	}
}

func TestOpenMeteoClient_ErrorHandling(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"500 server error", http.StatusInternalServerError, `{}`, ErrUpstreamFailure},
		{"400 bad request", http.StatusBadRequest, `{"error":true,"reason":"bad latitude"}`, ErrUpstreamFailure},
		{"429 rate limited", http.StatusTooManyRequests, ``, ErrRateLimited},
		{"invalid json", http.StatusOK, `{"current_weather":`, nil},
		{"missing current_weather", http.StatusOK, `{"daily":{"time":[],"temperature_2m_max":[],"temperature_2m_min":[],"weathercode":[]}}`, ErrMalformed},
		{"missing daily", http.StatusOK, `{"current_weather":{"temperature":1,"windspeed":1,"weathercode":0,"time":"2026-10-19T00:00"}}`, ErrMalformed},
		{"ragged daily arrays", http.StatusOK, `{"current_weather":{"temperature":1,"windspeed":1,"weathercode":0,"time":"2026-10-19T00:00"},
			"daily":{"time":["2026-10-19","2026-10-20"],"temperature_2m_max":[1],"temperature_2m_min":[0,1],"weathercode":[0,1]}}`, ErrMalformed},
		{"bad time", http.StatusOK, `{"current_weather":{"temperature":1,"windspeed":1,"weathercode":0,"time":"yesterday"},
			"daily":{"time":[],"temperature_2m_max":[],"temperature_2m_min":[],"weathercode":[]}}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.status, tt.body)
			c, err := NewOpenMeteoClient(server.URL, 2*time.Second)
			if err != nil {
				t.Fatalf("NewOpenMeteoClient() error = %v", err)
			}

			_, err = c.FetchCurrentAndForecast(context.Background(), jakarta)
			if err == nil {
				t.Fatal("FetchCurrentAndForecast() expected error, got nil")
			}
			if !errors.Is(err, ErrFetch) {
				t.Errorf("error = %v, want ErrFetch", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenMeteoClient_NoRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, _ := NewOpenMeteoClient(server.URL, 2*time.Second)
	if _, err := c.FetchCurrentAndForecast(context.Background(), jakarta); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestOpenMeteoClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	c, _ := NewOpenMeteoClient(server.URL, 50*time.Millisecond)
	_, err := c.FetchCurrentAndForecast(context.Background(), jakarta)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("error = %v, want ErrFetch", err)
	}
	if CategorizeError(err) != ErrorCategoryTimeout {
		t.Errorf("CategorizeError() = %v, want timeout", CategorizeError(err))
	}
}

func TestOpenMeteoClient_CircuitBreakerFailsFast(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, _ := NewOpenMeteoClient(server.URL, 2*time.Second)
	c.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 1, Timeout: time.Minute, Component: APIName}))

	_, _ = c.FetchCurrentAndForecast(context.Background(), jakarta)
	_, err := c.FetchCurrentAndForecast(context.Background(), jakarta)
	if !errors.Is(err, circuitbreaker.ErrOpen) || !errors.Is(err, ErrFetch) {
		t.Errorf("error = %v, want ErrFetch wrapping ErrOpen", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if !strings.Contains(err.Error(), "weather") {
		t.Errorf("error %q should name the component", err)
	}
}
