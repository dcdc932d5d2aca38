package climate

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"climate-intelligence/internal/models"
)

// Categories assessed in every regional risk profile, in canonical order.
var riskCategories = [...]string{
	"Floods",
	"Droughts",
	"Heatwaves",
	"Storms",
	"Sea Level Rise",
	"Water Scarcity",
	"Agriculture Impact",
	"Biodiversity Loss",
}

// Risk levels per region class, indexed like riskCategories. Drawn from
// ND-GAIN, WorldRiskIndex and IPCC AR6 assessments.
var riskLevels = map[string][8]float64{
	"global":        {0.68, 0.72, 0.81, 0.65, 0.55, 0.70, 0.63, 0.77},
	"united states": {0.62, 0.58, 0.70, 0.75, 0.60, 0.55, 0.48, 0.65},
	"europe":        {0.58, 0.52, 0.68, 0.53, 0.45, 0.49, 0.42, 0.61},
	"china":         {0.71, 0.65, 0.69, 0.62, 0.68, 0.78, 0.67, 0.79},
	"india":         {0.79, 0.75, 0.83, 0.69, 0.71, 0.85, 0.77, 0.72},
	"australia":     {0.65, 0.78, 0.86, 0.60, 0.55, 0.74, 0.65, 0.69},
	"brazil":        {0.70, 0.65, 0.63, 0.48, 0.42, 0.58, 0.69, 0.82},
	"africa":        {0.73, 0.86, 0.80, 0.60, 0.58, 0.88, 0.85, 0.75},
	"japan":         {0.72, 0.45, 0.68, 0.82, 0.75, 0.48, 0.52, 0.60},
	"island states": {0.75, 0.68, 0.65, 0.85, 0.92, 0.80, 0.78, 0.83},
}

// RiskProfile returns the climate risk assessment for a region, highest risk
// first. Regions without a dedicated profile get the global one.
func RiskProfile(region string) models.RiskProfile {
	levels := riskLevels[riskKey(region)]
	factors := make([]models.RiskFactor, len(riskCategories))
	for i, cat := range riskCategories {
		factors[i] = models.RiskFactor{Category: cat, Level: levels[i]}
	}
	sort.SliceStable(factors, func(a, b int) bool {
		return factors[a].Level > factors[b].Level
	})
	name := strings.TrimSpace(region)
	if name == "" {
		name = "Global"
	}
	return models.RiskProfile{Region: name, Factors: factors}
}

func riskKey(region string) string {
	switch strings.ToLower(strings.TrimSpace(region)) {
	case "united states", "us", "usa":
		return "united states"
	case "europe", "eu", "european union":
		return "europe"
	case "china":
		return "china"
	case "india":
		return "india"
	case "australia":
		return "australia"
	case "brazil":
		return "brazil"
	case "africa":
		return "africa"
	case "japan":
		return "japan"
	case "island states", "small island states", "island nations", "pacific islands":
		return "island states"
	default:
		return "global"
	}
}

// RiskRegions lists the regions with a dedicated risk profile, display form.
func RiskRegions() []string {
	return []string{
		"Global",
		"United States",
		"Europe",
		"China",
		"India",
		"Australia",
		"Brazil",
		"Africa",
		"Japan",
		"Island States",
	}
}

// Warming projection scenarios, 2020-2100, degrees above pre-industrial.
var scenarios = []struct {
	id, label     string
	linear, curve float64
}{
	{"SSP1-2.6", "Low Emissions", 0.005, -0.0001},
	{"SSP2-4.5", "Medium Emissions", 0.012, 0},
	{"SSP5-8.5", "High Emissions", 0.025, 0.0003},
}

// Projections returns the projected warming paths for the three emissions
// scenarios. Pure curves, no variability.
func Projections() []models.ProjectionSeries {
	const first, last = 2020, 2100
	n := last - first + 1
	out := make([]models.ProjectionSeries, 0, len(scenarios))
	for _, sc := range scenarios {
		points := make([]models.SeriesPoint, n)
		for i := 0; i < n; i++ {
			points[i] = models.SeriesPoint{
				Year:  first + i,
				Value: 1.1 + sc.linear*float64(i) + sc.curve*math.Pow(float64(i), 1.5),
			}
		}
		out = append(out, models.ProjectionSeries{Scenario: sc.id, Label: sc.label, Points: points})
	}
	return out
}

// Regions compared on the analysis page, with their anomaly baselines and
// warming trends.
var comparisonRegions = []struct {
	name        string
	base, trend float64
}{
	{"Global", -0.2, 0.03},
	{"North America", -0.1, 0.04},
	{"Europe", -0.1, 0.04},
	{"Asia", -0.15, 0.045},
	{"Africa", -0.1, 0.035},
	{"South America", -0.15, 0.025},
	{"Oceania", -0.15, 0.025},
}

// Regions lists the regions available for comparison.
func Regions() []string {
	out := make([]string, len(comparisonRegions))
	for i, r := range comparisonRegions {
		out[i] = r.name
	}
	return out
}

// RegionalComparison returns the temperature anomaly series for every
// comparison region, 1960-2022.
func RegionalComparison() []models.RegionSeries {
	src := load().regional
	out := make([]models.RegionSeries, len(src))
	for i, rs := range src {
		out[i] = models.RegionSeries{
			Region: rs.Region,
			Points: append([]models.SeriesPoint(nil), rs.Points...),
		}
	}
	return out
}

func buildRegional(rng *rand.Rand) []models.RegionSeries {
	const first, last = 1960, 2022
	n := last - first + 1
	out := make([]models.RegionSeries, 0, len(comparisonRegions))
	for _, r := range comparisonRegions {
		points := make([]models.SeriesPoint, n)
		for i := 0; i < n; i++ {
			points[i] = models.SeriesPoint{
				Year: first + i,
				Value: r.base + r.trend*float64(i) +
					0.01*math.Pow(float64(i), 1.5)/100 +
					uniform(rng, -0.2, 0.2),
			}
		}
		out = append(out, models.RegionSeries{Region: r.name, Points: points})
	}
	return out
}
