package models

import "time"

// IndicatorPoint is one year's value for a World Bank indicator. Value is nil
// when the upstream row carries null. Country is set only when the query
// spans multiple countries.
type IndicatorPoint struct {
	Year    int      `json:"year"`
	Value   *float64 `json:"value"`
	Country string   `json:"country,omitempty"`
}

type ClimateIndicator struct {
	Code    string           `json:"code"`
	Name    string           `json:"name"`
	Country string           `json:"country"`
	Unit    string           `json:"unit,omitempty"`
	Points  []IndicatorPoint `json:"points"`
	Stale   bool             `json:"stale,omitempty"`
}

// SeriesPoint is a year/value pair in an annual series.
type SeriesPoint struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// AnnualSeries holds one annual metric, e.g. the GISS temperature anomaly.
type AnnualSeries struct {
	Metric string        `json:"metric"`
	Unit   string        `json:"unit,omitempty"`
	Points []SeriesPoint `json:"points"`
	Source string        `json:"source,omitempty"`
	Stale  bool          `json:"stale,omitempty"`
}

type AirQualityMeasurement struct {
	Station     string      `json:"station"`
	City        string      `json:"city"`
	Coord       Coordinates `json:"coord"`
	Parameter   string      `json:"parameter"`
	Value       float64     `json:"value"`
	Unit        string      `json:"unit"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

type AirQualityReport struct {
	Location     string                  `json:"location"`
	Measurements []AirQualityMeasurement `json:"measurements"`
	Stale        bool                    `json:"stale,omitempty"`
}

// GlobalIndicators are the headline numbers on the home page, with their
// recent year-over-year movement.
type GlobalIndicators struct {
	TemperatureAnomalyC float64 `json:"temperatureAnomalyC"`
	TemperatureDeltaC   float64 `json:"temperatureDeltaC"`
	CO2PPM              float64 `json:"co2Ppm"`
	CO2DeltaPPM         float64 `json:"co2DeltaPpm"`
	SeaLevelRiseMMYr    float64 `json:"seaLevelRiseMmYr"`
	SeaLevelDeltaMMYr   float64 `json:"seaLevelDeltaMmYr"`
}

// RiskFactor is one category of a regional risk profile, scaled 0 to 1.
type RiskFactor struct {
	Category string  `json:"category"`
	Level    float64 `json:"level"`
}

// RiskProfile is a region's climate risk assessment, highest risk first.
type RiskProfile struct {
	Region  string       `json:"region"`
	Factors []RiskFactor `json:"factors"`
}

// RegionSeries is one region's annual temperature anomalies, used for the
// regional comparison chart.
type RegionSeries struct {
	Region string        `json:"region"`
	Points []SeriesPoint `json:"points"`
}

// ProjectionSeries is projected warming under one emissions scenario.
type ProjectionSeries struct {
	Scenario string        `json:"scenario"`
	Label    string        `json:"label"`
	Points   []SeriesPoint `json:"points"`
}

// StationObservation is one daily value from a NOAA GHCND station.
type StationObservation struct {
	Date     time.Time `json:"date"`
	DataType string    `json:"dataType"`
	Value    float64   `json:"value"`
}

// StationReport is the NOAA result for a coordinate: either a weather.gov
// point summary (US) or the nearest CDO station with recent observations.
type StationReport struct {
	Source       string               `json:"source"` // "weather.gov" or "cdo"
	Coord        Coordinates          `json:"coord"`
	StationID    string               `json:"stationId,omitempty"`
	StationName  string               `json:"stationName,omitempty"`
	Elevation    float64              `json:"elevation,omitempty"`
	Forecast     string               `json:"forecast,omitempty"` // forecast office URL for US points
	TimeZone     string               `json:"timeZone,omitempty"`
	Observations []StationObservation `json:"observations,omitempty"`
	Stale        bool                 `json:"stale,omitempty"`
}
