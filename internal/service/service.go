// Package service is the single data chokepoint between the web layer and the
// upstream providers: every dataset goes through a cache-aside fetch with
// stampede detection, optional request coalescing, and a stale-cache fallback
// when the upstream is down.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"climate-intelligence/internal/cache"
	"climate-intelligence/internal/climate"
	"climate-intelligence/internal/models"
	"climate-intelligence/internal/observability"
	"climate-intelligence/internal/providers"
)

// Dataset labels, used for cache keys and metric labels.
const (
	DatasetWeather    = "weather"
	DatasetForecast   = "forecast"
	DatasetNews       = "news"
	DatasetIndicators = "indicators"
	DatasetAirQuality = "air_quality"
	DatasetAnomalies  = "anomalies"
	DatasetStations   = "stations"
)

// WarmDatasets are prefetched at startup for the default location.
var WarmDatasets = []string{DatasetWeather, DatasetForecast, DatasetNews, DatasetIndicators, DatasetAnomalies}

// WeatherProvider supplies current conditions and forecasts.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, location string) (models.WeatherReading, error)
	Forecast(ctx context.Context, location string) (models.Forecast, error)
	Ready() bool
}

// NewsProvider supplies climate news pages.
type NewsProvider interface {
	LatestNews(ctx context.Context, query string, size int, page string) (models.NewsPage, error)
	Ready() bool
}

// IndicatorProvider supplies World Bank development indicators.
type IndicatorProvider interface {
	Indicator(ctx context.Context, country, code string) (models.ClimateIndicator, error)
}

// AirQualityProvider supplies latest air quality measurements.
type AirQualityProvider interface {
	LatestByCity(ctx context.Context, city string) (models.AirQualityReport, error)
}

// AnomalyProvider supplies the observed global temperature anomaly series.
type AnomalyProvider interface {
	TemperatureAnomalies(ctx context.Context) (models.AnnualSeries, error)
}

// StationProvider supplies NOAA station data for a coordinate.
type StationProvider interface {
	StationData(ctx context.Context, lat, lon float64) (models.StationReport, error)
}

// Providers bundles the upstream clients the service draws from.
type Providers struct {
	Weather    WeatherProvider
	News       NewsProvider
	Indicators IndicatorProvider
	AirQuality AirQualityProvider
	Anomalies  AnomalyProvider
	Stations   StationProvider
}

// Config controls TTLs per dataset class and the fallback behaviour.
type Config struct {
	WeatherTTL      time.Duration // current weather and forecast, default 30m
	NewsTTL         time.Duration // news pages, default 1h
	ClimateTTL      time.Duration // slow-moving climate datasets, default 24h
	ServeStale      bool          // serve expired cache entries when the upstream fails
	CoalesceEnabled bool
	CoalesceTimeout time.Duration
	DefaultLocation string // default "London"
}

func (c Config) withDefaults() Config {
	if c.WeatherTTL <= 0 {
		c.WeatherTTL = 30 * time.Minute
	}
	if c.NewsTTL <= 0 {
		c.NewsTTL = time.Hour
	}
	if c.ClimateTTL <= 0 {
		c.ClimateTTL = 24 * time.Hour
	}
	if c.DefaultLocation == "" {
		c.DefaultLocation = "London"
	}
	return c
}

// DataService orchestrates dataset retrieval using the cache-aside pattern
// with upstream fallback.
type DataService struct {
	providers       Providers
	cache           cache.Cache
	cfg             Config
	stampedeTracker *stampedeTracker
	coalescer       *requestCoalescer // nil when coalescing is disabled
}

// New creates a DataService over the given providers and cache backend.
func New(p Providers, c cache.Cache, cfg Config) *DataService {
	cfg = cfg.withDefaults()
	var coalescer *requestCoalescer
	if cfg.CoalesceEnabled && cfg.CoalesceTimeout > 0 {
		coalescer = newRequestCoalescer(cfg.CoalesceTimeout)
	}
	return &DataService{
		providers:       p,
		cache:           c,
		cfg:             cfg,
		stampedeTracker: newStampedeTracker(),
		coalescer:       coalescer,
	}
}

// DefaultLocation is the location warmed at startup and used when a request
// does not name one.
func (s *DataService) DefaultLocation() string {
	return s.cfg.DefaultLocation
}

// fetch runs the cache-aside path for one dataset key: fresh cache hit wins,
// otherwise fn produces the payload (coalesced across concurrent callers when
// enabled) and the result is cached. When fn fails, an expired entry within
// the stale window is served instead. The bool reports a stale serve.
func (s *DataService) fetch(ctx context.Context, dataset, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, bool, error) {
	start := time.Now()
	logger := observability.ContextLogger(ctx)

	getStart := time.Now()
	cached, ok, err := s.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
	} else if ok {
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
		observability.CacheHitsTotal.WithLabelValues(dataset).Inc()
		logger.Debug("cache hit", zap.String("key", key), zap.Duration("duration", time.Since(start)))
		return cached, false, nil
	}

	concurrentMisses := s.stampedeTracker.RecordMiss(key)
	defer s.stampedeTracker.RecordHit(key)
	if concurrentMisses > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(dataset).Inc()
	}
	logger.Debug("cache miss, fetching upstream", zap.String("key", key))

	var payload []byte
	var upstreamErr error
	if s.coalescer != nil {
		var shared bool
		payload, shared, upstreamErr = s.coalescer.GetOrDo(ctx, key, fn)
		if shared {
			observability.CoalescedRequestsTotal.WithLabelValues(dataset).Inc()
		}
	} else {
		payload, upstreamErr = fn()
	}
	if upstreamErr != nil {
		if s.cfg.ServeStale {
			stale, storedAt, ok, staleErr := s.cache.GetStale(ctx, key)
			if staleErr == nil && ok {
				observability.StaleServesTotal.WithLabelValues(dataset).Inc()
				logger.Info("serving stale cache",
					zap.String("key", key),
					zap.Duration("age", time.Since(storedAt)),
					zap.Error(upstreamErr))
				return stale, true, nil
			}
		}
		return nil, false, fmt.Errorf("fetch %s: %w", key, upstreamErr)
	}

	setStart := time.Now()
	if setErr := s.cache.Set(ctx, key, payload, ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
	} else {
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
	}
	logger.Debug("dataset served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return payload, false, nil
}

// fetchInto is fetch plus the JSON round-trip: produce marshals the fresh
// value, out receives the cached or fresh payload.
func (s *DataService) fetchInto(ctx context.Context, dataset, key string, ttl time.Duration, out interface{}, produce func() (interface{}, error)) (bool, error) {
	payload, stale, err := s.fetch(ctx, dataset, key, ttl, func() ([]byte, error) {
		v, err := produce()
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", dataset, err)
	}
	return stale, nil
}

// CurrentWeather returns current conditions for a location, cached for the
// weather TTL.
func (s *DataService) CurrentWeather(ctx context.Context, location string) (models.WeatherReading, error) {
	loc := s.effectiveLocation(location)
	observability.RecordWeatherQuery(loc)

	var out models.WeatherReading
	stale, err := s.fetchInto(ctx, DatasetWeather, DatasetWeather+":"+loc, s.cfg.WeatherTTL, &out, func() (interface{}, error) {
		return s.providers.Weather.CurrentWeather(ctx, loc)
	})
	if err != nil {
		return models.WeatherReading{}, err
	}
	out.Stale = stale
	return out, nil
}

// Forecast returns the 5-day forecast for a location, cached for the weather
// TTL.
func (s *DataService) Forecast(ctx context.Context, location string) (models.Forecast, error) {
	loc := s.effectiveLocation(location)

	var out models.Forecast
	stale, err := s.fetchInto(ctx, DatasetForecast, DatasetForecast+":"+loc, s.cfg.WeatherTTL, &out, func() (interface{}, error) {
		return s.providers.Weather.Forecast(ctx, loc)
	})
	if err != nil {
		return models.Forecast{}, err
	}
	out.Stale = stale
	return out, nil
}

// ClimateNews returns a page of climate news. The page token requests the
// next page; empty means the first.
func (s *DataService) ClimateNews(ctx context.Context, query string, size int, page string) (models.NewsPage, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		q = providers.DefaultNewsQuery
	}
	key := fmt.Sprintf("%s:%s:%d:%s", DatasetNews, strings.ToLower(q), size, page)

	var out models.NewsPage
	stale, err := s.fetchInto(ctx, DatasetNews, key, s.cfg.NewsTTL, &out, func() (interface{}, error) {
		return s.providers.News.LatestNews(ctx, q, size, page)
	})
	if err != nil {
		return models.NewsPage{}, err
	}
	out.Stale = stale
	return out, nil
}

// Indicator returns one World Bank indicator series for a country ("all" or
// empty for worldwide).
func (s *DataService) Indicator(ctx context.Context, country, code string) (models.ClimateIndicator, error) {
	c := strings.ToLower(strings.TrimSpace(country))
	if c == "" {
		c = "all"
	}
	key := fmt.Sprintf("indicator:%s:%s", c, code)

	var out models.ClimateIndicator
	stale, err := s.fetchInto(ctx, DatasetIndicators, key, s.cfg.ClimateTTL, &out, func() (interface{}, error) {
		return s.providers.Indicators.Indicator(ctx, c, code)
	})
	if err != nil {
		return models.ClimateIndicator{}, err
	}
	out.Stale = stale
	return out, nil
}

// Indicators returns every known World Bank indicator for a country. Failed
// indicators are omitted; an error is returned only if all of them failed.
func (s *DataService) Indicators(ctx context.Context, country string) ([]models.ClimateIndicator, error) {
	var (
		out     []models.ClimateIndicator
		lastErr error
	)
	for _, known := range providers.KnownIndicators {
		ind, err := s.Indicator(ctx, country, known.Code)
		if err != nil {
			lastErr = err
			observability.ContextLogger(ctx).Warn("indicator unavailable",
				zap.String("code", known.Code), zap.Error(err))
			continue
		}
		out = append(out, ind)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// AirQuality returns the latest measurements near a location.
func (s *DataService) AirQuality(ctx context.Context, location string) (models.AirQualityReport, error) {
	loc := s.effectiveLocation(location)

	var out models.AirQualityReport
	stale, err := s.fetchInto(ctx, DatasetAirQuality, DatasetAirQuality+":"+loc, s.cfg.ClimateTTL, &out, func() (interface{}, error) {
		return s.providers.AirQuality.LatestByCity(ctx, loc)
	})
	if err != nil {
		return models.AirQualityReport{}, err
	}
	out.Stale = stale
	return out, nil
}

// TemperatureAnomalies returns the observed GISS anomaly series, falling back
// to the built-in reference series when the upstream cannot be reached.
func (s *DataService) TemperatureAnomalies(ctx context.Context) (models.AnnualSeries, error) {
	var out models.AnnualSeries
	stale, err := s.fetchInto(ctx, DatasetAnomalies, DatasetAnomalies+":global", s.cfg.ClimateTTL, &out, func() (interface{}, error) {
		return s.providers.Anomalies.TemperatureAnomalies(ctx)
	})
	if err != nil {
		observability.ContextLogger(ctx).Warn("anomaly series unavailable, using reference data", zap.Error(err))
		return climate.TemperatureAnomalies(), nil
	}
	out.Stale = stale
	return out, nil
}

// StationData returns NOAA station data for a coordinate.
func (s *DataService) StationData(ctx context.Context, lat, lon float64) (models.StationReport, error) {
	key := fmt.Sprintf("%s:%.4f:%.4f", DatasetStations, lat, lon)

	var out models.StationReport
	stale, err := s.fetchInto(ctx, DatasetStations, key, s.cfg.ClimateTTL, &out, func() (interface{}, error) {
		return s.providers.Stations.StationData(ctx, lat, lon)
	})
	if err != nil {
		return models.StationReport{}, err
	}
	out.Stale = stale
	return out, nil
}

// Prefetch warms one dataset for the default location. Implements the cache
// warmer's fetcher.
func (s *DataService) Prefetch(ctx context.Context, dataset string) error {
	switch dataset {
	case DatasetWeather:
		_, err := s.CurrentWeather(ctx, s.cfg.DefaultLocation)
		return err
	case DatasetForecast:
		_, err := s.Forecast(ctx, s.cfg.DefaultLocation)
		return err
	case DatasetNews:
		_, err := s.ClimateNews(ctx, "", 10, "")
		return err
	case DatasetIndicators:
		_, err := s.Indicators(ctx, "all")
		return err
	case DatasetAirQuality:
		_, err := s.AirQuality(ctx, s.cfg.DefaultLocation)
		return err
	case DatasetAnomalies:
		_, err := s.TemperatureAnomalies(ctx)
		return err
	default:
		return fmt.Errorf("unknown dataset %q", dataset)
	}
}

func (s *DataService) effectiveLocation(location string) string {
	loc := normalizeLocation(location)
	if loc == "" {
		loc = normalizeLocation(s.cfg.DefaultLocation)
	}
	return loc
}

// categorizeCacheError returns a stable label for cache error metrics.
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}

// normalizeLocation trims and lowercases so cache keys and API requests are
// consistent regardless of input format.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
