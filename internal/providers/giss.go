package providers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/health"
	"climate-intelligence/internal/models"
)

const gissCSVURL = "https://data.giss.nasa.gov/gistemp/tabledata_v4/GLB.Ts+dSST.csv"

// GISSClient fetches the NASA GISTEMP v4 global land-ocean temperature index.
// The upstream is a plain CSV file; no credential needed.
type GISSClient struct {
	csvURL string
	caller
}

func NewGISSClient(csvURL string, timeout time.Duration, retry RetryConfig, breaker *circuitbreaker.CircuitBreaker) *GISSClient {
	if csvURL == "" {
		csvURL = gissCSVURL
	}
	health.SetKeyStatus(NameGISS, health.KeyNotRequired)

	return &GISSClient{
		csvURL: csvURL,
		caller: newCaller(NameGISS, timeout, retry, breaker),
	}
}

// TemperatureAnomalies returns the annual (J-D) global anomaly per year.
// Rows with a missing annual value ("***") are skipped, which covers the
// current partial year.
func (c *GISSClient) TemperatureAnomalies(ctx context.Context) (models.AnnualSeries, error) {
	header := http.Header{}
	header.Set("Accept", "text/csv")

	body, err := c.get(ctx, c.csvURL, nil, header)
	if err != nil {
		return models.AnnualSeries{}, err
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1 // title preamble rows are shorter than data rows
	records, err := reader.ReadAll()
	if err != nil {
		return models.AnnualSeries{}, fmt.Errorf("parse giss csv: %w", err)
	}

	// Find the header row, then the annual mean column within it.
	annualCol := -1
	start := 0
	for i, rec := range records {
		if len(rec) > 0 && strings.TrimSpace(rec[0]) == "Year" {
			for j, col := range rec {
				if strings.TrimSpace(col) == "J-D" {
					annualCol = j
					break
				}
			}
			start = i + 1
			break
		}
	}
	if annualCol < 0 {
		return models.AnnualSeries{}, fmt.Errorf("%w: annual column not found in GISTEMP csv", ErrUpstreamFailure)
	}

	series := models.AnnualSeries{
		Metric: "temperature_anomaly",
		Unit:   "°C vs 1951-1980 mean",
		Source: "NASA GISS",
	}
	for _, rec := range records[start:] {
		if len(rec) <= annualCol {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(rec[annualCol])
		if raw == "" || strings.Contains(raw, "*") {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		series.Points = append(series.Points, models.SeriesPoint{Year: year, Value: v})
	}
	if len(series.Points) == 0 {
		return models.AnnualSeries{}, fmt.Errorf("%w: no annual rows in GISTEMP csv", ErrUpstreamFailure)
	}
	return series, nil
}
