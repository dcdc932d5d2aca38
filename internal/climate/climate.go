// Package climate holds the built-in reference datasets behind the analysis
// and risk pages: annual series for the headline climate metrics, chart
// thresholds, warming projections and regional risk profiles. The series carry
// small year-to-year variability generated from a fixed seed, so every call
// returns identical data and no live provider is needed to render them.
package climate

import (
	"math"
	"math/rand"
	"strings"
	"sync"

	"climate-intelligence/internal/models"
)

// Dataset keys accepted by the series endpoint.
const (
	MetricTemperature = "temperature"
	MetricCO2         = "co2"
	MetricSeaLevel    = "sea_level"
	MetricExtremes    = "extreme_events"
	MetricAirQuality  = "air_quality"
)

// Metrics lists the dataset keys the series endpoint accepts.
func Metrics() []string {
	return []string{MetricTemperature, MetricCO2, MetricSeaLevel, MetricExtremes, MetricAirQuality}
}

// Chart reference thresholds.
const (
	CO2PreIndustrialPPM = 280.0
	CO2TargetPPM        = 350.0
	PM25WHOGuideline    = 5.0
	PM25UnhealthyLevel  = 35.0
	WarmingTargetC      = 1.5
	WarmingCriticalC    = 2.0
)

// Risk band boundaries on the 0-1 risk scale.
const (
	RiskLowBand    = 0.25
	RiskMediumBand = 0.5
	RiskHighBand   = 0.75
)

// Timeframes are the start years the analysis page can be filtered from.
var Timeframes = []int{1850, 1900, 1950, 2000}

const referenceSeed = 1880

// Air quality region classes.
const (
	airGlobal    = "global"
	airDeveloped = "developed"
	airAsia      = "asia"
	airDefault   = "default"
)

// reference holds every generated series. Built once on first use.
type reference struct {
	temperature models.AnnualSeries
	co2         models.AnnualSeries
	seaLevel    models.AnnualSeries
	events      []models.AnnualSeries
	floods      models.AnnualSeries
	air         map[string]models.AnnualSeries
	regional    []models.RegionSeries
}

var (
	once sync.Once
	ref  reference
)

// Indicators returns the headline global climate numbers for the home page.
func Indicators() models.GlobalIndicators {
	return models.GlobalIndicators{
		TemperatureAnomalyC: 1.1,
		TemperatureDeltaC:   0.02,
		CO2PPM:              418,
		CO2DeltaPPM:         2.5,
		SeaLevelRiseMMYr:    3.4,
		SeaLevelDeltaMMYr:   0.1,
	}
}

// TemperatureAnomalies returns the reference global temperature anomaly
// series, 1880-2022, relative to the 1951-1980 mean.
func TemperatureAnomalies() models.AnnualSeries {
	return cloneSeries(load().temperature)
}

// CO2Concentration returns the reference atmospheric CO2 series, 1960-2022.
func CO2Concentration() models.AnnualSeries {
	return cloneSeries(load().co2)
}

// SeaLevelRise returns the reference sea level series, 1900-2022, in mm
// relative to 1900.
func SeaLevelRise() models.AnnualSeries {
	return cloneSeries(load().seaLevel)
}

// ExtremeEvents returns annual counts of floods, droughts, storms and
// wildfires, 1980-2022.
func ExtremeEvents() []models.AnnualSeries {
	src := load().events
	out := make([]models.AnnualSeries, len(src))
	for i, s := range src {
		out[i] = cloneSeries(s)
	}
	return out
}

// FloodEvents returns the major flood event series for the water risk tab,
// 1980-2022.
func FloodEvents() models.AnnualSeries {
	return cloneSeries(load().floods)
}

// AirQuality returns the reference annual PM2.5 series for a region,
// 2000-2022. Regions sharing a class (global, developed, industrialising
// Asia, other) share a series.
func AirQuality(region string) models.AnnualSeries {
	return cloneSeries(load().air[airClass(region)])
}

// Since returns a copy of the series starting at the given year.
func Since(s models.AnnualSeries, year int) models.AnnualSeries {
	out := s
	out.Points = nil
	for _, p := range s.Points {
		if p.Year >= year {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

func load() *reference {
	once.Do(func() {
		rng := rand.New(rand.NewSource(referenceSeed))
		ref.temperature = buildTemperature(rng)
		ref.co2 = buildCO2(rng)
		ref.seaLevel = buildSeaLevel(rng)
		ref.events = buildEvents(rng)
		ref.floods = buildFloods(rng)
		ref.air = buildAirQuality(rng)
		ref.regional = buildRegional(rng)
	})
	return &ref
}

func buildTemperature(rng *rand.Rand) models.AnnualSeries {
	const first, last = 1880, 2022
	n := last - first + 1
	points := make([]models.SeriesPoint, n)
	for i := 0; i < n; i++ {
		points[i] = models.SeriesPoint{
			Year:  first + i,
			Value: -0.4 + 0.01*float64(i) + uniform(rng, -0.15, 0.15),
		}
	}
	// Warming accelerates over the last fifty years
	for i := n - 50; i < n; i++ {
		points[i].Value += float64(i-(n-50)) * 0.01
	}
	return models.AnnualSeries{
		Metric: "temperature_anomaly",
		Unit:   "°C vs 1951-1980 mean",
		Source: "reference",
		Points: points,
	}
}

func buildCO2(rng *rand.Rand) models.AnnualSeries {
	const first, last = 1960, 2022
	n := last - first + 1
	points := make([]models.SeriesPoint, n)
	for i := 0; i < n; i++ {
		points[i] = models.SeriesPoint{
			Year:  first + i,
			Value: 315 + 1.5*float64(i) + uniform(rng, -1, 1),
		}
	}
	// Emissions growth compounds over the last thirty years
	for i := n - 30; i < n; i++ {
		points[i].Value += float64(i-(n-30)) * 0.05
	}
	return models.AnnualSeries{
		Metric: "co2_concentration",
		Unit:   "ppm",
		Source: "reference",
		Points: points,
	}
}

func buildSeaLevel(rng *rand.Rand) models.AnnualSeries {
	const first, last = 1900, 2022
	n := last - first + 1
	points := make([]models.SeriesPoint, n)
	for i := 0; i < n; i++ {
		year := first + i
		var base float64
		switch {
		case year < 1970:
			base = float64(i) * 0.1
		case year < 1990:
			base = 70*0.1 + float64(year-1970)*0.15
		default:
			base = 70*0.1 + 20*0.15 + float64(year-1990)*0.3
		}
		points[i] = models.SeriesPoint{Year: year, Value: base + uniform(rng, -0.5, 0.5)}
	}
	return models.AnnualSeries{
		Metric: "sea_level_rise",
		Unit:   "mm since 1900",
		Source: "reference",
		Points: points,
	}
}

func buildEvents(rng *rand.Rand) []models.AnnualSeries {
	const first, last = 1980, 2022
	n := last - first + 1
	kinds := []struct {
		metric             string
		base, trend        float64
		jitterLo, jitterHi float64
		recentFactor       float64
	}{
		{"floods", 10, 0.3, -3, 3, 2},
		{"droughts", 8, 0.2, -2, 2, 1.8},
		{"storms", 12, 0.25, -3, 3, 1.5},
		{"wildfires", 5, 0.35, -1, 2, 2.5},
	}
	out := make([]models.AnnualSeries, 0, len(kinds))
	for _, k := range kinds {
		points := make([]models.SeriesPoint, n)
		for i := 0; i < n; i++ {
			points[i] = models.SeriesPoint{
				Year:  first + i,
				Value: k.base + k.trend*float64(i) + uniform(rng, k.jitterLo, k.jitterHi),
			}
		}
		// Frequency climbs faster over the last twenty years
		for i := n - 20; i < n; i++ {
			points[i].Value += float64(i-(n-20)) * 0.1 * k.recentFactor
		}
		out = append(out, models.AnnualSeries{
			Metric: k.metric,
			Unit:   "events",
			Source: "reference",
			Points: points,
		})
	}
	return out
}

func buildFloods(rng *rand.Rand) models.AnnualSeries {
	const first, last = 1980, 2022
	n := last - first + 1
	points := make([]models.SeriesPoint, n)
	for i := 0; i < n; i++ {
		points[i] = models.SeriesPoint{
			Year:  first + i,
			Value: 15 + 0.3*float64(i) + math.Pow(float64(i), 1.5)/100 + uniform(rng, -3, 4),
		}
	}
	return models.AnnualSeries{
		Metric: "major_flood_events",
		Unit:   "events",
		Source: "reference",
		Points: points,
	}
}

func buildAirQuality(rng *rand.Rand) map[string]models.AnnualSeries {
	const first, last = 2000, 2022
	n := last - first + 1
	out := make(map[string]models.AnnualSeries, 4)

	build := func(class string, value func(i, year int) float64) {
		points := make([]models.SeriesPoint, n)
		for i := 0; i < n; i++ {
			year := first + i
			points[i] = models.SeriesPoint{Year: year, Value: value(i, year)}
		}
		out[class] = models.AnnualSeries{
			Metric: "pm25",
			Unit:   "µg/m³",
			Source: "reference",
			Points: points,
		}
	}

	build(airGlobal, func(i, year int) float64 {
		return 25 - 0.1*float64(i) + uniform(rng, -1, 1)
	})
	build(airDeveloped, func(i, year int) float64 {
		v := 20 - 0.4*float64(i) + uniform(rng, -1, 1)
		return math.Max(5, v)
	})
	// Rises through 2009, then declines from the peak
	var asiaPeak float64
	build(airAsia, func(i, year int) float64 {
		if year < 2010 {
			v := 30 + float64(i) + uniform(rng, -2, 2)
			asiaPeak = v
			return v
		}
		return asiaPeak - float64(year-2010)*1.2 + uniform(rng, -2, 2)
	})
	build(airDefault, func(i, year int) float64 {
		return 18 - 0.2*float64(i) + uniform(rng, -2, 2)
	})
	return out
}

func airClass(region string) string {
	switch strings.ToLower(strings.TrimSpace(region)) {
	case "", "global", "world", "earth":
		return airGlobal
	case "us", "usa", "united states", "europe", "eu", "uk":
		return airDeveloped
	case "china", "india", "asia":
		return airAsia
	default:
		return airDefault
	}
}

func cloneSeries(s models.AnnualSeries) models.AnnualSeries {
	out := s
	out.Points = append([]models.SeriesPoint(nil), s.Points...)
	return out
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
