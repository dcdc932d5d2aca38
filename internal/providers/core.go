// Package providers contains thin wrappers over the upstream climate, weather
// and news APIs. Each wrapper normalizes one provider's responses into the
// shared models and reports failures as sentinel errors; none of them fabricate
// data on error.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/health"
	"climate-intelligence/internal/observability"
)

// Provider name labels used in metrics, health tracking and logs.
const (
	NameOpenWeather = "openweather"
	NameNewsData    = "newsdata"
	NameNOAA        = "noaa"
	NameWorldBank   = "worldbank"
	NameOpenAQ      = "openaq"
	NameGISS        = "giss"
)

var (
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
)

// RetryConfig holds retry parameters shared by all provider wrappers.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (rc RetryConfig) withDefaults() RetryConfig {
	if rc.Attempts <= 0 {
		rc.Attempts = 3
	}
	if rc.BaseDelay <= 0 {
		rc.BaseDelay = 100 * time.Millisecond
	}
	if rc.MaxDelay <= 0 {
		rc.MaxDelay = 2 * time.Second
	}
	return rc
}

// caller is the shared HTTP plumbing behind every provider wrapper: per-attempt
// timeout, retries with exponential backoff, optional circuit breaker, and call
// metrics labeled by provider.
type caller struct {
	name    string
	client  *http.Client
	timeout time.Duration
	retry   RetryConfig
	breaker *circuitbreaker.CircuitBreaker
}

func newCaller(name string, timeout time.Duration, retry RetryConfig, breaker *circuitbreaker.CircuitBreaker) caller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return caller{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		retry:   retry.withDefaults(),
		breaker: breaker,
	}
}

// getJSON fetches rawURL and decodes the response body into out.
func (c *caller) getJSON(ctx context.Context, rawURL string, query url.Values, header http.Header, out interface{}) error {
	body, err := c.get(ctx, rawURL, query, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", c.name, err)
	}
	return nil
}

// get fetches rawURL with retries and returns the raw response body.
// The final outcome, after retries, feeds health tracking; a rejected
// credential additionally flags the provider key as invalid.
func (c *caller) get(ctx context.Context, rawURL string, query url.Values, header http.Header) ([]byte, error) {
	body, err := c.getWithRetry(ctx, rawURL, query, header)
	if err != nil {
		health.RecordError(c.name)
		observability.ProviderErrorsTotal.WithLabelValues(c.name, string(CategorizeError(err))).Inc()
		if errors.Is(err, ErrInvalidAPIKey) {
			health.MarkKeyInvalid(c.name)
		}
		return nil, err
	}
	health.RecordSuccess(c.name)
	return body, nil
}

func (c *caller) getWithRetry(ctx context.Context, rawURL string, query url.Values, header http.Header) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.retry.Attempts; attempt++ {
		if attempt > 0 {
			observability.ProviderRetriesTotal.WithLabelValues(c.name).Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.callOnce(ctx, rawURL, query, header)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

// callOnce runs a single attempt, routed through the circuit breaker when one
// is configured.
func (c *caller) callOnce(ctx context.Context, rawURL string, query url.Values, header http.Header) ([]byte, error) {
	var body []byte
	fn := func() error {
		b, err := c.doRequest(ctx, rawURL, query, header)
		body = b
		return err
	}
	if c.breaker != nil {
		if err := c.breaker.Call(ctx, fn); err != nil {
			return nil, err
		}
		return body, nil
	}
	if err := fn(); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *caller) doRequest(ctx context.Context, rawURL string, query url.Values, header http.Header) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, rawURL, query, header)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues(c.name, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderCallsTotal.WithLabelValues(c.name, "error").Inc()
		observability.ProviderCallDuration.WithLabelValues(c.name, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(c.name, status).Inc()
	observability.ProviderCallDuration.WithLabelValues(c.name, status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (c *caller) buildRequest(ctx context.Context, rawURL string, query url.Values, header http.Header) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for k := range header {
		req.Header.Set(k, header.Get(k))
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

func (c *caller) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retry.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retry.MaxDelay) {
		delay = float64(c.retry.MaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// An open breaker means the provider is already known bad; retrying
	// inside the same request would only spin.
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "context canceled") {
		return true
	}

	return false
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: rejected by upstream", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
