package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"climate-intelligence/internal/cache"
	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/config"
	"climate-intelligence/internal/health"
	"climate-intelligence/internal/lifecycle"
	"climate-intelligence/internal/observability"
	"climate-intelligence/internal/providers"
	"climate-intelligence/internal/service"
	"climate-intelligence/internal/web"
)

const (
	templateGlob = "web/templates/*.html"
	staticDir    = "web/static"

	shutdownInFlightWait  = 5 * time.Second
	inFlightCheckInterval = 100 * time.Millisecond
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if missing := cfg.MissingKeys(); len(missing) > 0 {
		logger.Warn("provider credentials missing; those providers serve fallback data only",
			zap.Strings("providers", missing))
	}

	retry := providers.RetryConfig{
		Attempts:  cfg.RetryAttempts,
		BaseDelay: cfg.RetryBaseDelay,
		MaxDelay:  cfg.RetryMaxDelay,
	}
	weather := providers.NewOpenWeatherClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL, cfg.ProviderTimeout, retry, newBreaker(cfg, providers.NameOpenWeather))
	news := providers.NewNewsDataClient(cfg.NewsdataAPIKey, cfg.NewsdataURL, cfg.ProviderTimeout, retry, newBreaker(cfg, providers.NameNewsData))
	noaa := providers.NewNOAAClient(cfg.NOAAAPIToken, cfg.NOAACDOURL, cfg.NOAANWSURL, cfg.ProviderTimeout, retry, newBreaker(cfg, providers.NameNOAA))
	worldBank := providers.NewWorldBankClient(cfg.WorldBankURL, cfg.ProviderTimeout, retry, newBreaker(cfg, providers.NameWorldBank))
	openAQ := providers.NewOpenAQClient(cfg.OpenAQAPIKey, cfg.OpenAQURL, cfg.ProviderTimeout, retry, newBreaker(cfg, providers.NameOpenAQ))
	giss := providers.NewGISSClient(cfg.GISSURL, cfg.ProviderTimeout, retry, newBreaker(cfg, providers.NameGISS))

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.StaleWindow)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache(cfg.StaleWindow)
		logger.Info("cache backend: in_memory")
	}

	svc := service.New(service.Providers{
		Weather:    weather,
		News:       news,
		Indicators: worldBank,
		AirQuality: openAQ,
		Anomalies:  giss,
		Stations:   noaa,
	}, cacheSvc, service.Config{
		WeatherTTL:      cfg.WeatherTTL,
		NewsTTL:         cfg.NewsTTL,
		ClimateTTL:      cfg.ClimateTTL,
		ServeStale:      cfg.ServeStale,
		CoalesceEnabled: cfg.CoalesceEnabled,
		CoalesceTimeout: cfg.CoalesceTimeout,
		DefaultLocation: cfg.DefaultLocation,
	})

	healthConfig := &health.Config{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		RateLimitBurst:         cfg.RateLimitBurst,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		StartTime:              time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	templates := web.LoadTemplates(templateGlob, logger)
	handler := web.NewHandler(svc, templates, healthConfig, logger)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)
	observability.SetTrackedLocations(cfg.TrackedLocations)

	if cfg.WarmOnStart {
		warmer := cache.NewWarmer(svc, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, service.WarmDatasets); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(context.Background(), service.WarmDatasets, cfg.WarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	router := mux.NewRouter()
	router.Use(web.CorrelationIDMiddleware(logger))
	router.Use(web.TrafficMiddleware)
	router.Use(web.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	pages := router.NewRoute().Subrouter()
	pages.Use(web.TimeoutMiddleware(cfg.RequestTimeout))
	pages.HandleFunc("/", handler.Home).Methods("GET")
	pages.HandleFunc("/news", handler.News).Methods("GET")
	pages.HandleFunc("/weather", handler.Weather).Methods("GET")
	pages.HandleFunc("/analysis", handler.Analysis).Methods("GET")
	pages.HandleFunc("/risk", handler.Risk).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(web.RateLimitMiddleware(limiter))
	api.Use(web.TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/weather/{location}", handler.APIWeather).Methods("GET")
	api.HandleFunc("/forecast/{location}", handler.APIForecast).Methods("GET")
	api.HandleFunc("/news", handler.APINews).Methods("GET")
	api.HandleFunc("/indicators", handler.APIIndicators).Methods("GET")
	api.HandleFunc("/indicator/{code}", handler.APIIndicator).Methods("GET")
	api.HandleFunc("/air-quality/{location}", handler.APIAirQuality).Methods("GET")
	api.HandleFunc("/climate/series", handler.APIClimateSeries).Methods("GET")
	api.HandleFunc("/risk/{region}", handler.APIRisk).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("dashboard starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.String("env", cfg.EnvName))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := web.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), shutdownInFlightWait)
	defer waitCancel()
	if err := web.WaitForInFlight(waitCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", web.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// newBreaker builds the per-provider circuit breaker with its state wired
// into the breaker metrics.
func newBreaker(cfg *config.Config, name string) *circuitbreaker.CircuitBreaker {
	cb := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerCooldown,
		Name:             name,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(name, from.String(), to.String())
			observability.SetCircuitBreakerStateGauge(name, breakerStateValue(to))
		},
	})
	observability.SetCircuitBreakerStateGauge(name, breakerStateValue(circuitbreaker.StateClosed))
	return cb
}

func breakerStateValue(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.StateOpen:
		return 1
	case circuitbreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
