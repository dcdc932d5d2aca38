//go:build integration
// +build integration

// Package testhelpers builds live provider stacks for opt-in integration
// tests. Everything here needs real credentials and network access; run with
// go test -tags=integration.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"climate-intelligence/internal/cache"
	"climate-intelligence/internal/providers"
	"climate-intelligence/internal/service"
)

// IntegrationConfig carries the environment knobs for live tests.
type IntegrationConfig struct {
	OpenWeatherKey string
	OpenWeatherURL string // empty means the real endpoint
	CacheBackend   string // "in_memory" or "memcached"
	MemcachedAddrs string
}

// GetIntegrationConfig reads the environment and skips the test when
// OPENWEATHER_API_KEY is absent.
func GetIntegrationConfig(t *testing.T) IntegrationConfig {
	key := os.Getenv("OPENWEATHER_API_KEY")
	if key == "" {
		t.Skip("OPENWEATHER_API_KEY not set, skipping integration test")
	}

	addrs := os.Getenv("MEMCACHED_ADDRS")
	if addrs == "" {
		addrs = "localhost:11211"
	}

	return IntegrationConfig{
		OpenWeatherKey: key,
		OpenWeatherURL: os.Getenv("OPENWEATHER_URL"),
		CacheBackend:   os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddrs: addrs,
	}
}

// SetupIntegrationWeather builds a live OpenWeather client with one retry and
// no breaker, so a flaky call fails fast instead of tripping anything.
func SetupIntegrationWeather(cfg IntegrationConfig) *providers.OpenWeatherClient {
	retry := providers.RetryConfig{Attempts: 2, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	return providers.NewOpenWeatherClient(cfg.OpenWeatherKey, cfg.OpenWeatherURL, 5*time.Second, retry, nil)
}

// SetupIntegrationService builds a DataService backed by the live OpenWeather
// API and the configured cache backend. Returns the service, the cache for
// direct inspection, and a cleanup func. Memcached falls back to the
// in-memory cache when the server is unreachable.
func SetupIntegrationService(t *testing.T, cfg IntegrationConfig) (*service.DataService, cache.Cache, func()) {
	weather := SetupIntegrationWeather(cfg)

	var cacheSvc cache.Cache
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, 500*time.Millisecond, 2, 0)
		if err == nil {
			err = mc.Ping()
		}
		if err == nil {
			cacheSvc = mc
			cleanup = func() { mc.Close() }
			t.Logf("using memcached at %s", cfg.MemcachedAddrs)
		} else {
			t.Logf("memcached not available (%v), using in-memory cache", err)
		}
	}
	if cacheSvc == nil {
		cacheSvc = cache.NewInMemoryCache(0)
	}

	svc := service.New(service.Providers{Weather: weather}, cacheSvc, service.Config{
		WeatherTTL:      5 * time.Minute,
		DefaultLocation: "London",
	})
	return svc, cacheSvc, cleanup
}
