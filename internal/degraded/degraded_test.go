package degraded

import (
	"testing"
	"time"

	"github.com/kjstillabower/cuaca/internal/traffic"
)

// TestEvaluate_Empty verifies that no recorded traffic is never degraded.
func TestEvaluate_Empty(t *testing.T) {
	traffic.Reset()
	rep := Evaluate(time.Minute, 50, 1)
	if rep.Degraded || len(rep.Rates) != 0 {
		t.Errorf("Evaluate() = %+v, want healthy and empty", rep)
	}
}

// TestEvaluate_Breach verifies that an API at or above the threshold trips the
// check while a healthy API does not.
func TestEvaluate_Breach(t *testing.T) {
	traffic.Reset()
	for i := 0; i < 3; i++ {
		traffic.RecordError("weather")
	}
	traffic.RecordSuccess("weather")
	for i := 0; i < 4; i++ {
		traffic.RecordSuccess("geocoding")
	}

	rep := Evaluate(time.Minute, 50, 4)
	if !rep.Degraded {
		t.Fatal("Evaluate() Degraded = false, want true")
	}
	if len(rep.Breached) != 1 || rep.Breached[0] != "weather" {
		t.Errorf("Breached = %v, want [weather]", rep.Breached)
	}
	if len(rep.Rates) != 2 || rep.Rates[0].API != "geocoding" || rep.Rates[1].Pct != 75 {
		t.Errorf("Rates = %+v", rep.Rates)
	}
}

func TestEvaluate_Thresholds(t *testing.T) {
	rate := func(errs, total int) func(string, time.Duration) (int, int) {
		return func(string, time.Duration) (int, int) { return errs, total }
	}
	tests := []struct {
		name       string
		errs       int
		total      int
		pct        float64
		minSamples int
		want       bool
	}{
		{"below threshold", 1, 10, 20, 5, false},
		{"exactly at threshold", 2, 10, 20, 5, true},
		{"too few samples", 3, 3, 20, 5, false},
		{"default min samples", 5, 5, 20, 0, true},
		{"disabled threshold", 10, 10, 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := evaluate([]string{"weather"}, rate(tt.errs, tt.total), time.Minute, tt.pct, tt.minSamples)
			if rep.Degraded != tt.want {
				t.Errorf("Degraded = %v, want %v (%+v)", rep.Degraded, tt.want, rep.Rates)
			}
		})
	}
}
