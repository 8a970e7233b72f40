package traffic

import (
	"sort"
	"testing"
	"time"
)

func TestErrorRate_Empty(t *testing.T) {
	Reset()
	if errs, total := ErrorRate("weather", time.Minute); errs != 0 || total != 0 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 0)", errs, total)
	}
}

// TestErrorRate_PerAPI verifies that outcomes are counted separately per api.
func TestErrorRate_PerAPI(t *testing.T) {
	Reset()
	RecordSuccess("weather")
	RecordSuccess("weather")
	RecordError("weather")
	RecordError("geocoding")

	if errs, total := ErrorRate("weather", time.Minute); errs != 1 || total != 3 {
		t.Errorf("ErrorRate(weather) = (%d, %d), want (1, 3)", errs, total)
	}
	if errs, total := ErrorRate("geocoding", time.Minute); errs != 1 || total != 1 {
		t.Errorf("ErrorRate(geocoding) = (%d, %d), want (1, 1)", errs, total)
	}

	apis := APIs()
	sort.Strings(apis)
	if len(apis) != 2 || apis[0] != "geocoding" || apis[1] != "weather" {
		t.Errorf("APIs() = %v", apis)
	}
}

func TestTracker_WindowAndPrune(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	tr.RecordError("weather")
	now = now.Add(2 * time.Minute)
	tr.RecordSuccess("weather")

	if errs, total := tr.ErrorRate("weather", time.Minute); errs != 0 || total != 1 {
		t.Errorf("ErrorRate(1m) = (%d, %d), want (0, 1)", errs, total)
	}
	if errs, total := tr.ErrorRate("weather", 5*time.Minute); errs != 1 || total != 2 {
		t.Errorf("ErrorRate(5m) = (%d, %d), want (1, 2)", errs, total)
	}

	now = now.Add(maxAge + time.Minute)
	tr.RecordSuccess("weather")
	if n := len(tr.apis["weather"].errorTimes); n != 0 {
		t.Errorf("errorTimes after prune = %d, want 0", n)
	}
}

func TestReset(t *testing.T) {
	RecordError("weather")
	Reset()
	if errs, total := ErrorRate("weather", time.Minute); errs != 0 || total != 0 {
		t.Errorf("after Reset ErrorRate() = (%d, %d), want (0, 0)", errs, total)
	}
}
