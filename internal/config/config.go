package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds dashboard configuration loaded from YAML and env.
type Config struct {
	EnvName    string
	ServerPort string
	LogLevel   string

	DefaultLocation  string
	TrackedLocations []string

	NewsdataAPIKey    string
	OpenWeatherAPIKey string
	NOAAAPIToken      string
	OpenAQAPIKey      string

	// Optional upstream URL overrides; empty selects each client's default.
	OpenWeatherURL string
	NewsdataURL    string
	NOAACDOURL     string
	NOAANWSURL     string
	WorldBankURL   string
	OpenAQURL      string
	GISSURL        string

	ProviderTimeout time.Duration
	RequestTimeout  time.Duration

	WeatherTTL time.Duration
	NewsTTL    time.Duration
	ClimateTTL time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	StaleWindow           time.Duration
	ServeStale            bool
	WarmOnStart           bool
	WarmInterval          time.Duration // 0 disables periodic re-warming

	CoalesceEnabled bool
	CoalesceTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerCooldown         time.Duration

	ShutdownTimeout time.Duration

	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	IdleThresholdReqPerMin int
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Dashboard struct {
		DefaultLocation  string   `yaml:"default_location"`
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"dashboard"`

	Providers struct {
		Timeout        string `yaml:"timeout"`
		OpenWeatherURL string `yaml:"openweather_url"`
		NewsdataURL    string `yaml:"newsdata_url"`
		NOAACDOURL     string `yaml:"noaa_cdo_url"`
		NOAANWSURL     string `yaml:"noaa_nws_url"`
		WorldBankURL   string `yaml:"worldbank_url"`
		OpenAQURL      string `yaml:"openaq_url"`
		GISSURL        string `yaml:"giss_url"`
	} `yaml:"providers"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend      string `yaml:"backend"`
		WeatherTTL   string `yaml:"weather_ttl"`
		NewsTTL      string `yaml:"news_ttl"`
		ClimateTTL   string `yaml:"climate_ttl"`
		StaleWindow  string `yaml:"stale_window"`
		ServeStale   *bool  `yaml:"serve_stale"`
		WarmOnStart  *bool  `yaml:"warm_on_start"`
		WarmInterval string `yaml:"warm_interval"`
		Memcached    struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Coalesce struct {
		Enabled *bool  `yaml:"enabled"`
		Timeout string `yaml:"timeout"`
	} `yaml:"coalesce"`

	Reliability struct {
		RetryMaxAttempts        int    `yaml:"retry_max_attempts"`
		RetryBaseDelay          string `yaml:"retry_base_delay"`
		RetryMaxDelay           string `yaml:"retry_max_delay"`
		RateLimitRPS            int    `yaml:"rate_limit_rps"`
		RateLimitBurst          int    `yaml:"rate_limit_burst"`
		BreakerFailureThreshold int    `yaml:"breaker_failure_threshold"`
		BreakerSuccessThreshold int    `yaml:"breaker_success_threshold"`
		BreakerCooldown         string `yaml:"breaker_cooldown"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

// envOverrides maps environment variables onto loaded config. Applied last so
// deploy-time env always wins over the YAML file.
type envOverrides struct {
	NewsdataAPIKey    string `envconfig:"NEWSDATA_API_KEY"`
	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY"`
	NOAAAPIToken      string `envconfig:"NOAA_API_TOKEN"`
	OpenAQAPIKey      string `envconfig:"OPENAQ_API_KEY"`
	Port              string `envconfig:"PORT"`
	LogLevel          string `envconfig:"LOG_LEVEL"`
	CacheBackend      string `envconfig:"CACHE_BACKEND"`
	MemcachedAddrs    string `envconfig:"MEMCACHED_ADDRS"`
	DefaultLocation   string `envconfig:"DEFAULT_LOCATION"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev), then
// overlays environment variables. A .env file in the working directory is
// loaded first when present. A missing YAML file yields defaults rather than
// an error; missing API keys are not an error either, the affected providers
// simply report unready.
func Load() (*Config, error) {
	// Best effort; absent in most deployments.
	_ = godotenv.Load()

	env := strings.TrimSpace(os.Getenv("ENV_NAME"))
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{EnvName: env}

	cfg.ServerPort = strings.TrimSpace(fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8501"
	}
	cfg.LogLevel = strings.TrimSpace(fc.Logging.Level)

	cfg.DefaultLocation = strings.TrimSpace(fc.Dashboard.DefaultLocation)
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = "London"
	}
	cfg.TrackedLocations = fc.Dashboard.TrackedLocations
	if len(cfg.TrackedLocations) == 0 {
		cfg.TrackedLocations = []string{cfg.DefaultLocation}
	}

	cfg.OpenWeatherURL = fc.Providers.OpenWeatherURL
	cfg.NewsdataURL = fc.Providers.NewsdataURL
	cfg.NOAACDOURL = fc.Providers.NOAACDOURL
	cfg.NOAANWSURL = fc.Providers.NOAANWSURL
	cfg.WorldBankURL = fc.Providers.WorldBankURL
	cfg.OpenAQURL = fc.Providers.OpenAQURL
	cfg.GISSURL = fc.Providers.GISSURL

	cfg.ProviderTimeout = parseDurationOrZero(fc.Providers.Timeout, 5*time.Second)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.WeatherTTL = parseDuration(fc.Cache.WeatherTTL, 30*time.Minute)
	cfg.NewsTTL = parseDuration(fc.Cache.NewsTTL, time.Hour)
	cfg.ClimateTTL = parseDuration(fc.Cache.ClimateTTL, 24*time.Hour)
	cfg.StaleWindow = parseDuration(fc.Cache.StaleWindow, 24*time.Hour)
	cfg.ServeStale = boolOr(fc.Cache.ServeStale, true)
	cfg.WarmOnStart = boolOr(fc.Cache.WarmOnStart, true)
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.CoalesceEnabled = boolOr(fc.Coalesce.Enabled, true)
	cfg.CoalesceTimeout = parseDuration(fc.Coalesce.Timeout, 10*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}
	cfg.BreakerFailureThreshold = fc.Reliability.BreakerFailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Reliability.BreakerSuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerCooldown = parseDuration(fc.Reliability.BreakerCooldown, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.IdleThresholdReqPerMin = fc.Lifecycle.IdleThresholdReqPerMin
	if cfg.IdleThresholdReqPerMin <= 0 {
		cfg.IdleThresholdReqPerMin = 5
	}
	cfg.IdleWindow = parseDuration(fc.Lifecycle.IdleWindow, 5*time.Minute)
	cfg.MinimumLifespan = parseDuration(fc.Lifecycle.MinimumLifespan, 5*time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	var overrides envOverrides
	if err := envconfig.Process("", &overrides); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}
	applyEnv(cfg, overrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, env envOverrides) {
	if env.NewsdataAPIKey != "" {
		cfg.NewsdataAPIKey = env.NewsdataAPIKey
	}
	if env.OpenWeatherAPIKey != "" {
		cfg.OpenWeatherAPIKey = env.OpenWeatherAPIKey
	}
	if env.NOAAAPIToken != "" {
		cfg.NOAAAPIToken = env.NOAAAPIToken
	}
	if env.OpenAQAPIKey != "" {
		cfg.OpenAQAPIKey = env.OpenAQAPIKey
	}
	if env.Port != "" {
		cfg.ServerPort = env.Port
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.CacheBackend != "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(env.CacheBackend))
	}
	if env.MemcachedAddrs != "" {
		cfg.MemcachedAddrs = strings.TrimSpace(env.MemcachedAddrs)
	}
	if env.DefaultLocation != "" {
		cfg.DefaultLocation = strings.TrimSpace(env.DefaultLocation)
	}
}

// MissingKeys names the providers whose credential is absent. The dashboard
// starts regardless; callers log the list once at startup.
func (c *Config) MissingKeys() []string {
	var missing []string
	if c.OpenWeatherAPIKey == "" {
		missing = append(missing, "openweather")
	}
	if c.NewsdataAPIKey == "" {
		missing = append(missing, "newsdata")
	}
	if c.NOAAAPIToken == "" {
		missing = append(missing, "noaa")
	}
	if c.OpenAQAPIKey == "" {
		missing = append(missing, "openaq")
	}
	return missing
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty
// string or parse error. Zero and negative results pass through.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func boolOr(v *bool, defaultVal bool) bool {
	if v == nil {
		return defaultVal
	}
	return *v
}

// validate performs post-load checks. The request timeout is stretched to
// exceed the per-provider timeout so handler deadlines never fire first.
func validate(cfg *Config) error {
	if cfg.ProviderTimeout <= 0 {
		return fmt.Errorf("providers.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.ProviderTimeout {
		cfg.RequestTimeout = cfg.ProviderTimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
