package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/climate"
	"climate-intelligence/internal/format"
	"climate-intelligence/internal/models"
	"climate-intelligence/internal/providers"
	"climate-intelligence/internal/validation"
)

const (
	newsPageSize = 10
	forecastDays = 5
)

// Home handles GET /: headline indicators and navigation.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	v := homeView{
		basePage: h.page(r, "Climate Intelligence", "home"),
		Date:     time.Now().Format("Monday, January 2, 2006"),
		Cards:    indicatorCards(climate.Indicators()),
	}
	h.templates.Render(w, "home.html", v)
}

// News handles GET /news. Pagination is the opaque ?page= token from the
// previous response.
func (h *Handler) News(w http.ResponseWriter, r *http.Request) {
	v := newsView{
		basePage: h.page(r, "Climate News", "news"),
		Query:    providers.DefaultNewsQuery,
	}
	page, err := h.svc.ClimateNews(r.Context(), "", newsPageSize, r.URL.Query().Get("page"))
	if err != nil {
		v.Warning, v.Error = describeFailure(err, "NewsData")
	} else {
		v.Articles = articleViews(page.Items)
		v.NextPage = page.NextPage
		v.Stale = page.Stale
	}
	h.templates.Render(w, "news.html", v)
}

// Weather handles GET /weather?location=. Validation failures re-render the
// form with the message instead of an error page.
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("location")
	if raw == "" {
		raw = h.svc.DefaultLocation()
	}
	v := weatherView{basePage: h.page(r, "Weather", "weather")}

	location, err := validation.ValidateLocation(raw, validation.MinLocationLen, validation.MaxLocationLen)
	if err != nil {
		v.Location = raw
		v.Error = err.Error()
		h.templates.Render(w, "weather.html", v)
		return
	}
	v.Location = format.TitleCase(location)

	reading, err := h.svc.CurrentWeather(r.Context(), location)
	if err != nil {
		v.Warning, v.Error = describeFailure(err, "OpenWeather")
	} else {
		fillCurrent(&v, reading)
	}

	forecast, err := h.svc.Forecast(r.Context(), location)
	if err != nil {
		if v.Warning == "" && v.Error == "" {
			v.Warning, v.Error = describeFailure(err, "OpenWeather")
		}
	} else {
		v.Days = dayViews(forecast.Daily(forecastDays))
	}
	h.templates.Render(w, "weather.html", v)
}

// Analysis handles GET /analysis?from=&show=. Unknown parameters fall back to
// the full record rather than erroring.
func (h *Handler) Analysis(w http.ResponseWriter, r *http.Request) {
	v := analysisView{
		basePage:   h.page(r, "Climate Analysis", "analysis"),
		Timeframes: climate.Timeframes,
		Metrics:    metricOptions(),
	}
	from, err := validation.ValidateTimeframe(r.URL.Query().Get("from"))
	if err != nil {
		from = climate.Timeframes[0]
		v.Warning = "Unknown timeframe, showing the full record."
	}
	show, err := validation.ValidateMetric(r.URL.Query().Get("show"))
	if err != nil {
		show = ""
		v.Warning = "Unknown metric filter, showing all charts."
	}
	v.From = from
	v.Show = show
	include := func(metric string) bool { return show == "" || show == metric }

	if include(climate.MetricTemperature) {
		temps, err := h.svc.TemperatureAnomalies(r.Context())
		if err != nil {
			temps = climate.TemperatureAnomalies()
		}
		v.Charts = h.appendChart(v.Charts, "chart-temperature", chartPayload{
			Kind:   "line",
			Title:  "Global Temperature Anomaly",
			YAxis:  temps.Unit,
			Series: []chartSeries{trace("Anomaly", sincePoints(temps.Points, from))},
		})
	}
	if include(climate.MetricCO2) {
		co2 := climate.CO2Concentration()
		v.Charts = h.appendChart(v.Charts, "chart-co2", chartPayload{
			Kind:   "line",
			Title:  "Atmospheric CO₂ Concentration",
			YAxis:  co2.Unit,
			Series: []chartSeries{trace("CO₂", sincePoints(co2.Points, from))},
			Thresholds: []chartThreshold{
				{Label: "Pre-industrial", Value: climate.CO2PreIndustrialPPM},
				{Label: "Safe target", Value: climate.CO2TargetPPM},
			},
		})
	}
	if include(climate.MetricSeaLevel) {
		sea := climate.SeaLevelRise()
		v.Charts = h.appendChart(v.Charts, "chart-sea-level", chartPayload{
			Kind:   "line",
			Title:  "Sea Level Rise",
			YAxis:  sea.Unit,
			Series: []chartSeries{trace("Sea level", sincePoints(sea.Points, from))},
		})
	}
	if include(climate.MetricExtremes) {
		payload := chartPayload{
			Kind:  "line",
			Title: "Extreme Weather Events",
			YAxis: "events per year",
		}
		for _, s := range climate.ExtremeEvents() {
			payload.Series = append(payload.Series, trace(format.TitleCase(s.Metric), sincePoints(s.Points, from)))
		}
		v.Charts = h.appendChart(v.Charts, "chart-extremes", payload)
	}
	if include(climate.MetricAirQuality) {
		air := climate.AirQuality("")
		v.Charts = h.appendChart(v.Charts, "chart-air-quality", chartPayload{
			Kind:   "line",
			Title:  "Global PM2.5 Exposure",
			YAxis:  air.Unit,
			Series: []chartSeries{trace("PM2.5", sincePoints(air.Points, from))},
			Thresholds: []chartThreshold{
				{Label: "WHO guideline", Value: climate.PM25WHOGuideline},
				{Label: "Unhealthy", Value: climate.PM25UnhealthyLevel},
			},
		})
	}

	regional := chartPayload{
		Kind:  "line",
		Title: "Regional Temperature Comparison",
		YAxis: "°C anomaly",
	}
	for _, rs := range climate.RegionalComparison() {
		regional.Series = append(regional.Series, trace(rs.Region, sincePoints(rs.Points, from)))
	}
	v.Charts = h.appendChart(v.Charts, "chart-regions", regional)

	projections := chartPayload{
		Kind:  "line",
		Title: "Warming Projections to 2100",
		YAxis: "°C above pre-industrial",
		Thresholds: []chartThreshold{
			{Label: "1.5°C target", Value: climate.WarmingTargetC},
			{Label: "2.0°C critical", Value: climate.WarmingCriticalC},
		},
	}
	for _, p := range climate.Projections() {
		projections.Series = append(projections.Series, trace(fmt.Sprintf("%s (%s)", p.Scenario, p.Label), p.Points))
	}
	v.Charts = h.appendChart(v.Charts, "chart-projections", projections)

	h.templates.Render(w, "analysis.html", v)
}

// Risk handles GET /risk?location=. Regions without a dedicated profile get
// the global assessment under their own name.
func (h *Handler) Risk(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("location")
	if raw == "" {
		raw = "Global"
	}
	v := riskView{
		basePage: h.page(r, "Risk Assessment", "risk"),
		Regions:  climate.RiskRegions(),
	}

	region, err := validation.ValidateRegion(raw)
	if err != nil {
		v.Region = raw
		v.Error = err.Error()
		h.templates.Render(w, "risk.html", v)
		return
	}
	profile := climate.RiskProfile(region)
	v.Region = profile.Region
	v.Factors = factorViews(profile.Factors)

	temps, err := h.svc.TemperatureAnomalies(r.Context())
	if err != nil {
		temps = climate.TemperatureAnomalies()
	}
	v.Charts = h.appendChart(v.Charts, "chart-risk-warming", chartPayload{
		Kind:   "line",
		Title:  "Warming vs Paris Agreement Targets",
		YAxis:  temps.Unit,
		Series: []chartSeries{trace("Anomaly", temps.Points)},
		Thresholds: []chartThreshold{
			{Label: "1.5°C target", Value: climate.WarmingTargetC},
			{Label: "2.0°C critical", Value: climate.WarmingCriticalC},
		},
	})

	air := climate.AirQuality(region)
	v.Charts = h.appendChart(v.Charts, "chart-risk-air", chartPayload{
		Kind:   "line",
		Title:  fmt.Sprintf("PM2.5 Exposure: %s", profile.Region),
		YAxis:  air.Unit,
		Series: []chartSeries{trace("PM2.5", air.Points)},
		Thresholds: []chartThreshold{
			{Label: "WHO guideline", Value: climate.PM25WHOGuideline},
			{Label: "Unhealthy", Value: climate.PM25UnhealthyLevel},
		},
	})

	floods := climate.FloodEvents()
	v.Charts = h.appendChart(v.Charts, "chart-risk-water", chartPayload{
		Kind:   "bar",
		Title:  "Major Flood Events Worldwide",
		YAxis:  floods.Unit,
		Series: []chartSeries{trace("Floods", floods.Points)},
	})

	h.templates.Render(w, "risk.html", v)
}

func (h *Handler) page(r *http.Request, title, active string) basePage {
	return newBasePage(title, active, requestID(r.Context()))
}

// appendChart marshals one chart payload into its page slot. A payload that
// fails to marshal is logged and omitted; the rest of the page still renders.
func (h *Handler) appendChart(charts []chartView, id string, p chartPayload) []chartView {
	raw, err := json.Marshal(p)
	if err != nil {
		h.logger.Warn("chart omitted", zap.String("chart", id), zap.Error(err))
		return charts
	}
	return append(charts, chartView{ID: id, Title: p.Title, JSON: template.JS(raw)})
}

// describeFailure turns an upstream error into page copy: a warning for
// credential problems, an error block for everything else.
func describeFailure(err error, provider string) (warning, errMsg string) {
	switch {
	case errors.Is(err, providers.ErrMissingAPIKey):
		return fmt.Sprintf("%s API key is not configured. Live data is unavailable.", provider), ""
	case errors.Is(err, providers.ErrInvalidAPIKey):
		return fmt.Sprintf("The configured %s API key was rejected. Check the credential.", provider), ""
	case errors.Is(err, providers.ErrNotFound):
		return "", "No data found for that location."
	case errors.Is(err, providers.ErrRateLimited):
		return "", fmt.Sprintf("%s rate limit reached. Try again shortly.", provider)
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "", fmt.Sprintf("%s is temporarily disabled after repeated failures.", provider)
	default:
		return "", fmt.Sprintf("Unable to reach %s right now.", provider)
	}
}

func trace(name string, pts []models.SeriesPoint) chartSeries {
	s := chartSeries{
		Name:   name,
		Years:  make([]int, 0, len(pts)),
		Values: make([]float64, 0, len(pts)),
	}
	for _, p := range pts {
		s.Years = append(s.Years, p.Year)
		s.Values = append(s.Values, p.Value)
	}
	return s
}

func sincePoints(pts []models.SeriesPoint, year int) []models.SeriesPoint {
	for i, p := range pts {
		if p.Year >= year {
			return pts[i:]
		}
	}
	return nil
}
