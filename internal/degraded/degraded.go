// Package degraded decides whether the upstream APIs are failing often enough
// for the health check to report the service as degraded.
package degraded

import (
	"sort"
	"time"

	"github.com/kjstillabower/cuaca/internal/traffic"
)

// DefaultMinSamples is the smallest window population that can trip the check.
const DefaultMinSamples = 5

// APIRate is one upstream's outcome counts within the window.
type APIRate struct {
	API    string  `json:"api"`
	Errors int     `json:"errors"`
	Total  int     `json:"total"`
	Pct    float64 `json:"errorPct"`
}

// Report is the evaluation result. Breached lists the APIs at or above the
// threshold, in name order.
type Report struct {
	Degraded bool      `json:"degraded"`
	Breached []string  `json:"breached,omitempty"`
	Rates    []APIRate `json:"rates"`
}

// Evaluate reads the shared traffic tracker. An API with fewer than
// minSamples outcomes in window never counts as breached.
func Evaluate(window time.Duration, thresholdPct float64, minSamples int) Report {
	return evaluate(traffic.APIs(), traffic.ErrorRate, window, thresholdPct, minSamples)
}

func evaluate(apis []string, rate func(string, time.Duration) (int, int), window time.Duration, thresholdPct float64, minSamples int) Report {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	sort.Strings(apis)

	rep := Report{Rates: make([]APIRate, 0, len(apis))}
	for _, api := range apis {
		errs, total := rate(api, window)
		r := APIRate{API: api, Errors: errs, Total: total}
		if total > 0 {
			r.Pct = float64(errs) * 100 / float64(total)
		}
		rep.Rates = append(rep.Rates, r)
		if thresholdPct > 0 && total >= minSamples && r.Pct >= thresholdPct {
			rep.Breached = append(rep.Breached, api)
		}
	}
	rep.Degraded = len(rep.Breached) > 0
	return rep
}
