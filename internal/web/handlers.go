// Package web holds the dashboard's HTTP surface: page handlers rendered
// from templates, the JSON API under /api/v1, the health endpoint and the
// middleware stack.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/climate"
	"climate-intelligence/internal/health"
	"climate-intelligence/internal/models"
	"climate-intelligence/internal/observability"
	"climate-intelligence/internal/providers"
	"climate-intelligence/internal/service"
	"climate-intelligence/internal/validation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc       *service.DataService
	templates *Templates
	healthCfg *health.Config
	logger    *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(svc *service.DataService, templates *Templates, healthCfg *health.Config, logger *zap.Logger) *Handler {
	return &Handler{
		svc:       svc,
		templates: templates,
		healthCfg: healthCfg,
		logger:    logger,
	}
}

// APIWeather handles GET /api/v1/weather/{location}.
func (h *Handler) APIWeather(w http.ResponseWriter, r *http.Request) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"], validation.MinLocationLen, validation.MaxLocationLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}
	reading, err := h.svc.CurrentWeather(r.Context(), location)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// APIForecast handles GET /api/v1/forecast/{location}.
func (h *Handler) APIForecast(w http.ResponseWriter, r *http.Request) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"], validation.MinLocationLen, validation.MaxLocationLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}
	forecast, err := h.svc.Forecast(r.Context(), location)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

// APINews handles GET /api/v1/news?q=&size=&page=.
func (h *Handler) APINews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	size := 10
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 50 {
			writeError(w, r, http.StatusBadRequest, "INVALID_SIZE", "size must be between 1 and 50")
			return
		}
		size = n
	}
	page, err := h.svc.ClimateNews(r.Context(), q, size, r.URL.Query().Get("page"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// APIIndicators handles GET /api/v1/indicators?country=.
func (h *Handler) APIIndicators(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	indicators, err := h.svc.Indicators(r.Context(), country)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"indicators": indicators})
}

// APIIndicator handles GET /api/v1/indicator/{code}?country=.
func (h *Handler) APIIndicator(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(mux.Vars(r)["code"])
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_INDICATOR", "indicator code is required")
		return
	}
	indicator, err := h.svc.Indicator(r.Context(), r.URL.Query().Get("country"), code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indicator)
}

// APIAirQuality handles GET /api/v1/air-quality/{location}.
func (h *Handler) APIAirQuality(w http.ResponseWriter, r *http.Request) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"], validation.MinLocationLen, validation.MaxLocationLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}
	report, err := h.svc.AirQuality(r.Context(), location)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// APIClimateSeries handles GET /api/v1/climate/series?metric=&from=.
// Reference series always resolve; the temperature series prefers live
// observations and falls back to the reference data.
func (h *Handler) APIClimateSeries(w http.ResponseWriter, r *http.Request) {
	metric, err := validation.ValidateMetric(r.URL.Query().Get("metric"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "UNKNOWN_METRIC", "metric must be one of "+strings.Join(climate.Metrics(), ", "))
		return
	}
	from, err := validation.ValidateTimeframe(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_TIMEFRAME", "from must be one of the offered start years")
		return
	}

	var series []models.AnnualSeries
	include := func(m string) bool { return metric == "" || metric == m }

	if include(climate.MetricTemperature) {
		s, err := h.svc.TemperatureAnomalies(r.Context())
		if err != nil {
			s = climate.TemperatureAnomalies()
		}
		series = append(series, s)
	}
	if include(climate.MetricCO2) {
		series = append(series, climate.CO2Concentration())
	}
	if include(climate.MetricSeaLevel) {
		series = append(series, climate.SeaLevelRise())
	}
	if include(climate.MetricExtremes) {
		series = append(series, climate.ExtremeEvents()...)
	}
	if include(climate.MetricAirQuality) {
		series = append(series, climate.AirQuality(""))
	}

	for i := range series {
		series[i] = climate.Since(series[i], from)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":   from,
		"series": series,
	})
}

// APIRisk handles GET /api/v1/risk/{region}.
func (h *Handler) APIRisk(w http.ResponseWriter, r *http.Request) {
	region, err := validation.ValidateRegion(mux.Vars(r)["region"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REGION", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, climate.RiskProfile(region))
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := health.Compute(h.healthCfg)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.Status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.Status),
			zap.String("reason", result.Reason))
	}
	h.healthStatusPrev = result.Status
	h.healthStatusMu.Unlock()

	checks := health.ProviderChecks(h.healthCfg)
	if h.healthCfg != nil && h.healthCfg.CachePing != nil {
		if h.healthCfg.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.Status,
		"service":   "climate-intelligence",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.StatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with code, message, and
// requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": requestID(r.Context()),
		},
	})
}

// requestID pulls the correlation ID the middleware stored, empty when the
// request skipped the middleware stack.
func requestID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeServiceError maps an upstream failure onto the error envelope. The
// underlying error is logged, never exposed.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, providers.ErrMissingAPIKey):
		writeError(w, r, http.StatusServiceUnavailable, "MISSING_API_KEY", "provider credential not configured")
	case errors.Is(err, providers.ErrInvalidAPIKey):
		writeError(w, r, http.StatusServiceUnavailable, "INVALID_API_KEY", "provider credential rejected by upstream")
	case errors.Is(err, providers.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no data for the requested location")
	case errors.Is(err, providers.ErrRateLimited):
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMITED", "upstream rate limit reached")
	case errors.Is(err, circuitbreaker.ErrOpen):
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "provider temporarily disabled")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "unable to fetch upstream data")
	}
	observability.ContextLogger(r.Context()).Debug("upstream error", zap.Error(err))
}
