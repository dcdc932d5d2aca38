package models

import "time"

// Coordinates is a WGS84 point as returned by the weather providers.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type WeatherReading struct {
	Location    string      `json:"location"`
	Coord       Coordinates `json:"coord"`
	Temperature float64     `json:"temperature"`
	FeelsLike   float64     `json:"feelsLike"`
	Conditions  string      `json:"conditions"`
	Humidity    int         `json:"humidity"`
	Pressure    int         `json:"pressure"`
	WindSpeed   float64     `json:"windSpeed"`
	Sunrise     int64       `json:"sunrise"` // unix seconds, 0 when absent
	Sunset      int64       `json:"sunset"`
	Timestamp   time.Time   `json:"timestamp"`
	Stale       bool        `json:"stale,omitempty"` // Indicates data served from stale cache
}

// ForecastEntry is one 3-hour forecast slot. The daily view keeps the first
// entry per calendar day.
type ForecastEntry struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
	Conditions  string    `json:"conditions"`
}

type Forecast struct {
	Location string          `json:"location"`
	Entries  []ForecastEntry `json:"entries"`
	Stale    bool            `json:"stale,omitempty"`
}

// Daily reduces 3-hour entries to the first entry of each calendar day,
// capped at max days. Entries are assumed chronological.
func (f Forecast) Daily(max int) []ForecastEntry {
	seen := make(map[string]struct{}, max)
	daily := make([]ForecastEntry, 0, max)
	for _, e := range f.Entries {
		day := e.Time.Format("2006-01-02")
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		daily = append(daily, e)
		if len(daily) == max {
			break
		}
	}
	return daily
}
