package web

import (
	"fmt"
	"time"

	"climate-intelligence/internal/climate"
	"climate-intelligence/internal/format"
	"climate-intelligence/internal/models"
)

// basePage carries the fields every page template needs. Warning holds the
// missing-credential banner, Error the upstream-failure block; both render
// only when non-empty.
type basePage struct {
	Title     string
	Active    string
	Warning   string
	Error     string
	RequestID string
	Year      int
}

func (b basePage) base() basePage { return b }

// pageView is anything renderable by Templates.Render.
type pageView interface {
	base() basePage
}

func newBasePage(title, active, requestID string) basePage {
	return basePage{
		Title:     title,
		Active:    active,
		RequestID: requestID,
		Year:      time.Now().Year(),
	}
}

type indicatorCard struct {
	Label string
	Value string
	Delta string
}

type homeView struct {
	basePage
	Date  string
	Cards []indicatorCard
}

func indicatorCards(ind models.GlobalIndicators) []indicatorCard {
	return []indicatorCard{
		{
			Label: "Global Temperature Anomaly",
			Value: format.Temperature(fmtFloat(ind.TemperatureAnomalyC)),
			Delta: format.Delta(fmt.Sprintf("%.2f", ind.TemperatureDeltaC), "°C"),
		},
		{
			Label: "Atmospheric CO₂",
			Value: fmt.Sprintf("%.0f ppm", ind.CO2PPM),
			Delta: format.Delta(fmtFloat(ind.CO2DeltaPPM), " ppm"),
		},
		{
			Label: "Sea Level Rise",
			Value: fmt.Sprintf("%.1f mm/year", ind.SeaLevelRiseMMYr),
			Delta: format.Delta(fmtFloat(ind.SeaLevelDeltaMMYr), " mm"),
		},
	}
}

type articleView struct {
	Title       string
	Link        string
	Source      string
	Published   string
	Description string
	Keywords    []string
}

type newsView struct {
	basePage
	Query    string
	Articles []articleView
	NextPage string
	Stale    bool
}

func articleViews(items []models.NewsItem) []articleView {
	out := make([]articleView, 0, len(items))
	for _, item := range items {
		out = append(out, articleView{
			Title:       item.Title,
			Link:        item.Link,
			Source:      item.Source,
			Published:   format.PublishDate(item.PublishedAt),
			Description: item.Description,
			Keywords:    item.Keywords,
		})
	}
	return out
}

type dayView struct {
	Label      string
	Temp       string
	Conditions string
}

type weatherView struct {
	basePage
	Location   string
	HasCurrent bool
	Temp       string
	FeelsLike  string
	Conditions string
	Humidity   string
	Wind       string
	Sunrise    string
	Sunset     string
	MapLink    string
	Stale      bool
	Days       []dayView
}

func fillCurrent(v *weatherView, reading models.WeatherReading) {
	v.HasCurrent = true
	v.Temp = format.Temperature(fmtFloat(reading.Temperature))
	v.FeelsLike = format.Temperature(fmtFloat(reading.FeelsLike))
	v.Conditions = format.TitleCase(reading.Conditions)
	v.Humidity = format.Percent(fmt.Sprintf("%d", reading.Humidity))
	v.Wind = format.WindSpeed(fmtFloat(reading.WindSpeed))
	v.Sunrise = format.ClockTime(reading.Sunrise)
	v.Sunset = format.ClockTime(reading.Sunset)
	v.Stale = reading.Stale
	if reading.Coord.Lat != 0 || reading.Coord.Lon != 0 {
		v.MapLink = fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.4f&mlon=%.4f#map=10/%.4f/%.4f",
			reading.Coord.Lat, reading.Coord.Lon, reading.Coord.Lat, reading.Coord.Lon)
	}
}

func dayViews(entries []models.ForecastEntry) []dayView {
	out := make([]dayView, 0, len(entries))
	for _, e := range entries {
		out = append(out, dayView{
			Label:      e.Time.Format("Mon, Jan 2"),
			Temp:       format.Temperature(fmtFloat(e.Temperature)),
			Conditions: format.TitleCase(e.Conditions),
		})
	}
	return out
}

type metricOption struct {
	Value string
	Label string
}

var metricLabels = map[string]string{
	climate.MetricTemperature: "Temperature",
	climate.MetricCO2:         "CO₂ Concentration",
	climate.MetricSeaLevel:    "Sea Level",
	climate.MetricExtremes:    "Extreme Events",
	climate.MetricAirQuality:  "Air Quality",
}

func metricOptions() []metricOption {
	opts := make([]metricOption, 0, len(climate.Metrics()))
	for _, m := range climate.Metrics() {
		opts = append(opts, metricOption{Value: m, Label: metricLabels[m]})
	}
	return opts
}

type analysisView struct {
	basePage
	From       int
	Show       string
	Timeframes []int
	Metrics    []metricOption
	Charts     []chartView
}

type factorView struct {
	Category string
	Pct      int
	Band     string
}

type riskView struct {
	basePage
	Region  string
	Regions []string
	Factors []factorView
	Charts  []chartView
}

// riskBand buckets a 0..1 risk level for styling.
func riskBand(level float64) string {
	switch {
	case level < climate.RiskLowBand:
		return "low"
	case level < climate.RiskMediumBand:
		return "medium"
	case level < climate.RiskHighBand:
		return "high"
	default:
		return "very-high"
	}
}

func factorViews(factors []models.RiskFactor) []factorView {
	out := make([]factorView, 0, len(factors))
	for _, f := range factors {
		out = append(out, factorView{
			Category: f.Category,
			Pct:      int(f.Level*100 + 0.5),
			Band:     riskBand(f.Level),
		})
	}
	return out
}
