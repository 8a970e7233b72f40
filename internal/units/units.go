// Package units converts and formats temperature and wind speed for display.
package units

import (
	"fmt"
	"math"
	"strings"
)

// Unit selects how values are displayed. Raw data is always metric.
type Unit string

const (
	Metric   Unit = "metric"
	Imperial Unit = "imperial"
)

const mphPerMetrePerSecond = 2.23694

// Parse returns the unit named by s, defaulting to Metric.
func Parse(s string) Unit {
	if strings.EqualFold(strings.TrimSpace(s), string(Imperial)) {
		return Imperial
	}
	return Metric
}

// Toggle returns the other unit.
func (u Unit) Toggle() Unit {
	if u == Imperial {
		return Metric
	}
	return Imperial
}

// Label is the text of the unit toggle button.
func (u Unit) Label() string {
	if u == Imperial {
		return "°F / °C"
	}
	return "°C / °F"
}

func ToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func ToMph(ms float64) float64 {
	return ms * mphPerMetrePerSecond
}

// FormatTemp renders a Celsius value rounded to the nearest integer in unit u.
func FormatTemp(c float64, u Unit) string {
	if u == Imperial {
		return fmt.Sprintf("%d°F", roundInt(ToFahrenheit(c)))
	}
	return fmt.Sprintf("%d°C", roundInt(c))
}

// FormatWind renders a m/s value with one decimal place in unit u.
func FormatWind(ms float64, u Unit) string {
	if u == Imperial {
		return fmt.Sprintf("%.1f mph", ToMph(ms))
	}
	return fmt.Sprintf("%.1f m/s", ms)
}

// roundInt rounds halves toward +Inf: 2.5 -> 3, -2.5 -> -2.
func roundInt(v float64) int {
	return int(math.Floor(v + 0.5))
}
