package client

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/kjstillabower/cuaca/internal/circuitbreaker"
)

// ErrorCategory labels upstreamErrorsTotal. Values are stable.
type ErrorCategory string

const (
	ErrorCategoryCanceled       ErrorCategory = "canceled"
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryNetwork        ErrorCategory = "network"
	ErrorCategoryRateLimited    ErrorCategory = "rate_limited"
	ErrorCategoryUpstreamStatus ErrorCategory = "upstream_status"
	ErrorCategoryParsing        ErrorCategory = "parsing"
	ErrorCategoryCircuitOpen    ErrorCategory = "circuit_open"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// sentinelCategories is checked in order; the first match wins.
var sentinelCategories = []struct {
	target   error
	category ErrorCategory
}{
	{context.Canceled, ErrorCategoryCanceled},
	{context.DeadlineExceeded, ErrorCategoryTimeout},
	{circuitbreaker.ErrOpen, ErrorCategoryCircuitOpen},
	{ErrRateLimited, ErrorCategoryRateLimited},
	{ErrUpstreamFailure, ErrorCategoryUpstreamStatus},
	{ErrMalformed, ErrorCategoryParsing},
}

// CategorizeError classifies a weather or geocoding failure. A session
// superseding its own search shows up as canceled, not as an outage.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	for _, s := range sentinelCategories {
		if errors.Is(err, s.target) {
			return s.category
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorCategoryNetwork
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "timeout"):
		return ErrorCategoryTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "no such host"):
		return ErrorCategoryNetwork
	}
	return ErrorCategoryUnknown
}
