package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"climate-intelligence/internal/circuitbreaker"
)

// TestCategorizeError verifies the stable error-to-label mapping used by the
// providerErrorsTotal metric.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled", context.Canceled, ErrorCategoryTimeout},
		{"missing key", fmt.Errorf("%w: NEWSDATA_API_KEY not set", ErrMissingAPIKey), ErrorCategoryMissingAPIKey},
		{"invalid key", fmt.Errorf("%w: rejected by upstream", ErrInvalidAPIKey), ErrorCategoryInvalidAPIKey},
		{"not found", ErrNotFound, ErrorCategoryNotFound},
		{"rate limited", ErrRateLimited, ErrorCategoryRateLimited},
		{"upstream wrapped", fmt.Errorf("exhausted retries: %w", ErrUpstreamFailure), ErrorCategoryUpstream5xx},
		{"breaker open", fmt.Errorf("noaa: %w", circuitbreaker.ErrOpen), ErrorCategoryBreakerOpen},
		{"timeout string", errors.New("request timeout: deadline exceeded"), ErrorCategoryTimeout},
		{"parse failure", errors.New("parse worldbank response: unexpected end"), ErrorCategoryParsing},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{"unknown", errors.New("something odd"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
