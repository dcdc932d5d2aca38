package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMetrics_Usable verifies that every metric accepts its label dimensions
// without panic, matching usage across the providers, web, service, and cache
// packages. Routes use path templates to keep cardinality bounded.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/weather/{location}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/v1/weather/{location}").Observe(0.01)
	HTTPRequestsInFlight.Inc()
	HTTPRequestsInFlight.Dec()

	ProviderCallsTotal.WithLabelValues("openweather", "success").Inc()
	ProviderCallsTotal.WithLabelValues("openweather", "error").Inc()
	ProviderCallDuration.WithLabelValues("openweather", "success").Observe(0.1)
	ProviderRetriesTotal.WithLabelValues("noaa").Inc()
	ProviderErrorsTotal.WithLabelValues("noaa", "timeout").Inc()

	CacheHitsTotal.WithLabelValues("weather").Inc()
	CacheErrorsTotal.WithLabelValues("get", "timeout").Inc()
	CacheOperationDurationSeconds.WithLabelValues("set", "ok").Observe(0.001)
	StaleServesTotal.WithLabelValues("news").Inc()
	CacheStampedeDetectedTotal.WithLabelValues("indicators").Inc()
	CoalescedRequestsTotal.WithLabelValues("weather").Inc()
	CacheWarmingTotal.Inc()
	CacheWarmingErrorsTotal.Inc()
	CacheWarmingDurationSeconds.Observe(1.2)

	WeatherQueriesTotal.Inc()
	WeatherQueriesByLocationTotal.WithLabelValues("london").Inc()
	WeatherQueriesByLocationTotal.WithLabelValues("other").Inc()
	RateLimitDeniedTotal.Inc()

	CircuitBreakerTransitionsTotal.WithLabelValues("newsdata", "closed", "open").Inc()
	CircuitBreakerState.WithLabelValues("newsdata").Set(1)
}

// TestSetTrackedLocations_and_RecordWeatherQuery verifies the allow-list:
// tracked locations get their own label, everything else folds into "other".
func TestSetTrackedLocations_and_RecordWeatherQuery(t *testing.T) {
	SetTrackedLocations([]string{"london", "delhi"})
	RecordWeatherQuery("London")
	RecordWeatherQuery("unknown-city")
	SetTrackedLocations(nil) // reset for other tests
}

// TestBreakerMetricHelpers verifies the helpers main wires into the breaker
// OnStateChange hook.
func TestBreakerMetricHelpers(t *testing.T) {
	RecordCircuitBreakerTransition("giss", "closed", "open")
	RecordCircuitBreakerTransition("giss", "open", "half_open")
	SetCircuitBreakerStateGauge("giss", 2)
	RecordShutdownInFlight(3)
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler
// serves the text exposition format from the private registry.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	RegisterRateLimitGauges(time.Minute)

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "weatherQueriesTotal") {
		t.Error("MetricsHandler response should contain application metrics")
	}
	if !strings.Contains(body, "rateLimitRequestsInWindow") {
		t.Error("MetricsHandler response should contain the rate limit window gauges")
	}
}
