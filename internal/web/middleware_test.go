package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"climate-intelligence/internal/health"
	"climate-intelligence/internal/models"
	"climate-intelligence/internal/observability"
	"climate-intelligence/internal/service"
)

func TestMiddleware_ThroughHandler(t *testing.T) {
	weather := &stubWeather{reading: models.WeatherReading{Temperature: 12.0}}
	handler := newTestHandler(t, service.Providers{Weather: weather}, nil)

	logger, _ := zap.NewDevelopment()
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/v1/weather/{location}", handler.APIWeather)

	req := httptest.NewRequest("GET", "/api/v1/weather/lisbon", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	weather := &stubWeather{reading: models.WeatherReading{Temperature: 12.0}}
	handler := newTestHandler(t, service.Providers{Weather: weather}, nil)

	logger, _ := zap.NewDevelopment()
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/v1/weather/{location}", handler.APIWeather)

	req := httptest.NewRequest("GET", "/api/v1/weather/lisbon", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
}

func TestMiddleware_MetricsRecordsNonOK(t *testing.T) {
	weather := &stubWeather{err: errors.New("upstream down")}
	handler := newTestHandler(t, service.Providers{Weather: weather}, nil)

	logger, _ := zap.NewDevelopment()
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/v1/weather/{location}", handler.APIWeather)

	req := httptest.NewRequest("GET", "/api/v1/weather/lisbon", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestTimeoutMiddleware_CancelsContextAfterTimeout(t *testing.T) {
	slow := &stubWeather{}
	slow.block = make(chan struct{})
	defer close(slow.block)

	handler := newTestHandler(t, service.Providers{Weather: slow}, nil)

	logger, _ := zap.NewDevelopment()
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(TimeoutMiddleware(50 * time.Millisecond))
	router.HandleFunc("/api/v1/weather/{location}", handler.APIWeather)

	req := httptest.NewRequest("GET", "/api/v1/weather/lisbon", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d (timeout should cause upstream error)", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	health.Reset()
	defer health.Reset()

	weather := &stubWeather{reading: models.WeatherReading{Temperature: 10.0}}
	handler := newTestHandler(t, service.Providers{Weather: weather}, nil)

	logger, _ := zap.NewDevelopment()
	limiter := rate.NewLimiter(1, 2)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(RateLimitMiddleware(limiter))
	router.HandleFunc("/api/v1/weather/{location}", handler.APIWeather)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/v1/weather/lisbon", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
		} else {
			if w.Code != http.StatusTooManyRequests {
				t.Errorf("request %d: status = %d, want 429", i, w.Code)
			}
			envelope := decodeErrorEnvelope(t, w)
			if envelope["code"] != "RATE_LIMITED" {
				t.Errorf("error.code = %q, want RATE_LIMITED", envelope["code"])
			}
		}
	}

	if got := health.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount = %d, want 1", got)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	weather := &stubWeather{reading: models.WeatherReading{Temperature: 10.0}}
	handler := newTestHandler(t, service.Providers{Weather: weather}, nil)

	logger, _ := zap.NewDevelopment()
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(RateLimitMiddleware(nil))
	router.HandleFunc("/api/v1/weather/{location}", handler.APIWeather)

	req := httptest.NewRequest("GET", "/api/v1/weather/lisbon", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (nil limiter should allow)", w.Code)
	}
}

func TestTrafficMiddleware_SkipsInfraRoutes(t *testing.T) {
	health.Reset()
	defer health.Reset()

	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	router := mux.NewRouter()
	router.Use(TrafficMiddleware)
	router.HandleFunc("/health", ok)
	router.HandleFunc("/metrics", ok)
	router.PathPrefix("/static/").HandlerFunc(ok)
	router.HandleFunc("/news", ok)

	for _, path := range []string{"/health", "/metrics", "/static/style.css", "/news"} {
		req := httptest.NewRequest("GET", path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := health.RequestCount(time.Minute); got != 1 {
		t.Errorf("RequestCount = %d, want 1 (only /news is traffic)", got)
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	base := InFlightCount()

	var during int64
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/news", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if during != base+1 {
		t.Errorf("in-flight during request = %d, want %d", during, base+1)
	}
	if got := InFlightCount(); got != base {
		t.Errorf("in-flight after request = %d, want %d", got, base)
	}
}

func TestMiddleware_MetricsRoute(t *testing.T) {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.Use(MetricsMiddleware)
	router.Handle("/metrics", observability.MetricsHandler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSubrouter_APIRouteWithTimeoutAndRateLimit(t *testing.T) {
	weather := &stubWeather{reading: models.WeatherReading{Temperature: 10.0}}
	handler := newTestHandler(t, service.Providers{Weather: weather}, nil)

	logger, _ := zap.NewDevelopment()
	limiter := rate.NewLimiter(10, 10)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(RateLimitMiddleware(limiter))
	api.Use(TimeoutMiddleware(5 * time.Second))
	api.HandleFunc("/weather/{location}", handler.APIWeather).Methods("GET")

	router.HandleFunc("/health", handler.GetHealth).Methods("GET")

	req := httptest.NewRequest("GET", "/api/v1/weather/lisbon", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (subrouter should route /api/v1/weather/{location})", w.Code)
	}
}
