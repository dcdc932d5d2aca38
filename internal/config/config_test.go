package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// managedEnvVars is every variable Load consults; tests clear them so ambient
// shell state cannot leak into assertions.
var managedEnvVars = []string{
	"ENV_NAME",
	"NEWSDATA_API_KEY",
	"OPENWEATHER_API_KEY",
	"NOAA_API_TOKEN",
	"OPENAQ_API_KEY",
	"PORT",
	"LOG_LEVEL",
	"CACHE_BACKEND",
	"MEMCACHED_ADDRS",
	"DEFAULT_LOCATION",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedEnvVars {
		if saved, ok := os.LookupEnv(key); ok {
			key, saved := key, saved
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, saved) })
		}
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

const minimalYAML = `
server:
  port: "8501"
providers:
  timeout: "5s"
request:
  timeout: "15s"
cache:
  backend: "in_memory"
  weather_ttl: "30m"
reliability:
  retry_max_attempts: 3
  retry_base_delay: "100ms"
  retry_max_delay: "2s"
shutdown:
  timeout: "10s"
`

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults when config file absent", err)
	}
	if cfg.ServerPort != "8501" {
		t.Errorf("ServerPort = %q, want 8501", cfg.ServerPort)
	}
	if cfg.DefaultLocation != "London" {
		t.Errorf("DefaultLocation = %q, want London", cfg.DefaultLocation)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.WeatherTTL != 30*time.Minute {
		t.Errorf("WeatherTTL = %v, want 30m", cfg.WeatherTTL)
	}
	if cfg.NewsTTL != time.Hour {
		t.Errorf("NewsTTL = %v, want 1h", cfg.NewsTTL)
	}
	if cfg.ClimateTTL != 24*time.Hour {
		t.Errorf("ClimateTTL = %v, want 24h", cfg.ClimateTTL)
	}
	if !cfg.ServeStale {
		t.Error("ServeStale = false, want true by default")
	}
	if !cfg.CoalesceEnabled {
		t.Error("CoalesceEnabled = false, want true by default")
	}
	if cfg.WarmInterval != 0 {
		t.Errorf("WarmInterval = %v, want 0 (periodic re-warming off)", cfg.WarmInterval)
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.RetryAttempts)
	}
}

func TestLoad_MissingKeysNotFatal(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil despite missing keys", err)
	}
	missing := cfg.MissingKeys()
	want := []string{"openweather", "newsdata", "noaa", "openaq"}
	if len(missing) != len(want) {
		t.Fatalf("MissingKeys() = %v, want %v", missing, want)
	}
	for i, p := range want {
		if missing[i] != p {
			t.Errorf("MissingKeys()[%d] = %q, want %q", i, missing[i], p)
		}
	}
}

func TestLoad_KeysFromEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("OPENWEATHER_API_KEY", "ow-key")
	t.Setenv("NEWSDATA_API_KEY", "nd-key")
	t.Setenv("NOAA_API_TOKEN", "noaa-token")
	t.Setenv("OPENAQ_API_KEY", "aq-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenWeatherAPIKey != "ow-key" || cfg.NewsdataAPIKey != "nd-key" ||
		cfg.NOAAAPIToken != "noaa-token" || cfg.OpenAQAPIKey != "aq-key" {
		t.Errorf("keys not applied from env: %+v", cfg)
	}
	if missing := cfg.MissingKeys(); len(missing) != 0 {
		t.Errorf("MissingKeys() = %v, want empty", missing)
	}
}

func TestLoad_FileValuesApplied(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
server:
  port: "9000"
dashboard:
  default_location: "Oslo"
  tracked_locations: ["Oslo", "Bergen"]
providers:
  timeout: "3s"
  openweather_url: "https://ow.example.com"
cache:
  backend: "memcached"
  weather_ttl: "10m"
  news_ttl: "20m"
  climate_ttl: "48h"
  serve_stale: false
  memcached:
    addrs: "10.0.0.5:11211"
    timeout: "250ms"
    max_idle_conns: 4
coalesce:
  enabled: false
reliability:
  rate_limit_rps: 10
  rate_limit_burst: 20
  breaker_failure_threshold: 7
lifecycle:
  overload_window: "30s"
  overload_threshold_pct: 90
  idle_threshold_req_per_min: 3
  idle_window: "2m"
  minimum_lifespan: "1m"
  degraded_window: "45s"
  degraded_error_pct: 10
`)
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q, want 9000", cfg.ServerPort)
	}
	if cfg.DefaultLocation != "Oslo" {
		t.Errorf("DefaultLocation = %q, want Oslo", cfg.DefaultLocation)
	}
	if len(cfg.TrackedLocations) != 2 || cfg.TrackedLocations[1] != "Bergen" {
		t.Errorf("TrackedLocations = %v, want [Oslo Bergen]", cfg.TrackedLocations)
	}
	if cfg.ProviderTimeout != 3*time.Second {
		t.Errorf("ProviderTimeout = %v, want 3s", cfg.ProviderTimeout)
	}
	if cfg.OpenWeatherURL != "https://ow.example.com" {
		t.Errorf("OpenWeatherURL = %q", cfg.OpenWeatherURL)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.WeatherTTL != 10*time.Minute || cfg.NewsTTL != 20*time.Minute || cfg.ClimateTTL != 48*time.Hour {
		t.Errorf("TTLs = %v/%v/%v, want 10m/20m/48h", cfg.WeatherTTL, cfg.NewsTTL, cfg.ClimateTTL)
	}
	if cfg.ServeStale {
		t.Error("ServeStale = true, want explicit false honored")
	}
	if cfg.CoalesceEnabled {
		t.Error("CoalesceEnabled = true, want explicit false honored")
	}
	if cfg.MemcachedAddrs != "10.0.0.5:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.MemcachedTimeout != 250*time.Millisecond {
		t.Errorf("MemcachedTimeout = %v, want 250ms", cfg.MemcachedTimeout)
	}
	if cfg.MemcachedMaxIdleConns != 4 {
		t.Errorf("MemcachedMaxIdleConns = %d, want 4", cfg.MemcachedMaxIdleConns)
	}
	if cfg.RateLimitRPS != 10 || cfg.RateLimitBurst != 20 {
		t.Errorf("rate limit = %d/%d, want 10/20", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.BreakerFailureThreshold != 7 {
		t.Errorf("BreakerFailureThreshold = %d, want 7", cfg.BreakerFailureThreshold)
	}
	if cfg.OverloadWindow != 30*time.Second || cfg.OverloadThresholdPct != 90 {
		t.Errorf("overload = %v/%d, want 30s/90", cfg.OverloadWindow, cfg.OverloadThresholdPct)
	}
	if cfg.IdleThresholdReqPerMin != 3 || cfg.IdleWindow != 2*time.Minute {
		t.Errorf("idle = %d/%v, want 3/2m", cfg.IdleThresholdReqPerMin, cfg.IdleWindow)
	}
	if cfg.MinimumLifespan != time.Minute {
		t.Errorf("MinimumLifespan = %v, want 1m", cfg.MinimumLifespan)
	}
	if cfg.DegradedWindow != 45*time.Second || cfg.DegradedErrorPct != 10 {
		t.Errorf("degraded = %v/%d, want 45s/10", cfg.DegradedWindow, cfg.DegradedErrorPct)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, minimalYAML)
	chdir(t, dir)
	t.Setenv("PORT", "9100")
	t.Setenv("CACHE_BACKEND", "Memcached")
	t.Setenv("MEMCACHED_ADDRS", "cache1:11211,cache2:11211")
	t.Setenv("DEFAULT_LOCATION", "Berlin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9100" {
		t.Errorf("ServerPort = %q, want env override 9100", cfg.ServerPort)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached (lowered)", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "cache1:11211,cache2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.DefaultLocation != "Berlin" {
		t.Errorf("DefaultLocation = %q, want Berlin", cfg.DefaultLocation)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NEWSDATA_API_KEY=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	chdir(t, dir)
	// godotenv sets real process env; undo after.
	t.Cleanup(func() { os.Unsetenv("NEWSDATA_API_KEY") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.NewsdataAPIKey != "from-dotenv" {
		t.Errorf("NewsdataAPIKey = %q, want from-dotenv", cfg.NewsdataAPIKey)
	}
}

func TestLoad_EmptyDurationFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
providers:
  timeout: ""
`)
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProviderTimeout != 5*time.Second {
		t.Errorf("ProviderTimeout = %v, want 5s default", cfg.ProviderTimeout)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
cache:
  weather_ttl: "invalid"
`)
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherTTL != 30*time.Minute {
		t.Errorf("WeatherTTL = %v, want 30m default", cfg.WeatherTTL)
	}
}

func TestLoad_ProviderTimeoutZeroFails(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
providers:
  timeout: "0s"
`)
	chdir(t, dir)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want error for zero provider timeout")
	}
	if cfg != nil {
		t.Fatalf("Load() config = %+v, want nil on error", cfg)
	}
	if !strings.Contains(err.Error(), "providers.timeout") {
		t.Errorf("Load() error = %v, want message about providers.timeout", err)
	}
}

func TestLoad_RequestTimeoutStretched(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
providers:
  timeout: "5s"
request:
  timeout: "2s"
`)
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 6*time.Second {
		t.Errorf("RequestTimeout = %v, want stretched to 6s", cfg.RequestTimeout)
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
cache:
  backend: "redis"
`)
	chdir(t, dir)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want error for unknown cache backend")
	}
	if !strings.Contains(err.Error(), "cache.backend") {
		t.Errorf("Load() error = %v, want message about cache.backend", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, "not: valid: yaml: [[[")
	chdir(t, dir)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for invalid config YAML, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestLoad_EnvNameSelectsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	prodYAML := "server:\n  port: \"8502\"\n"
	if err := os.WriteFile(filepath.Join(configDir, "prod.yaml"), []byte(prodYAML), 0644); err != nil {
		t.Fatalf("write prod.yaml: %v", err)
	}
	chdir(t, dir)
	t.Setenv("ENV_NAME", "prod")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EnvName != "prod" {
		t.Errorf("EnvName = %q, want prod", cfg.EnvName)
	}
	if cfg.ServerPort != "8502" {
		t.Errorf("ServerPort = %q, want 8502 from prod.yaml", cfg.ServerPort)
	}
}

// TestCoverageGaps_IntentionallyUntested documents paths we reviewed but chose not to test.
// Run with -v to see skip reasons. These gaps do not affect coverage targets.
func TestCoverageGaps_IntentionallyUntested(t *testing.T) {
	t.Run("Load_read_config_error", func(t *testing.T) {
		t.Skip("ReadFile error path (permission denied, etc.) would require injecting failure; not worth portability cost")
	})
	t.Run("envconfig_process_error", func(t *testing.T) {
		t.Skip("envconfig.Process only fails on malformed struct tags, which cannot happen with a compiled struct")
	})
	t.Run("Getwd_failure", func(t *testing.T) {
		t.Skip("working directory removal mid-test is OS-specific and flaky")
	})
}
