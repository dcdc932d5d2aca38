package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/health"
	"climate-intelligence/internal/models"
)

const openAQBaseURL = "https://api.openaq.org/v2"

// OpenAQClient wraps the OpenAQ latest-measurements endpoint. Works without a
// credential at low rate limits; OPENAQ_API_KEY raises them.
type OpenAQClient struct {
	apiKey  string
	baseURL string
	caller
}

func NewOpenAQClient(apiKey, baseURL string, timeout time.Duration, retry RetryConfig, breaker *circuitbreaker.CircuitBreaker) *OpenAQClient {
	if baseURL == "" {
		baseURL = openAQBaseURL
	}
	status := health.KeyConfigured
	if apiKey == "" {
		status = health.KeyMissing
	}
	health.SetKeyStatus(NameOpenAQ, status)

	return &OpenAQClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		caller:  newCaller(NameOpenAQ, timeout, retry, breaker),
	}
}

type openAQResponse struct {
	Results []struct {
		Location    string `json:"location"`
		City        string `json:"city"`
		Coordinates struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinates"`
		Measurements []struct {
			Parameter   string  `json:"parameter"`
			Value       float64 `json:"value"`
			Unit        string  `json:"unit"`
			LastUpdated string  `json:"lastUpdated"`
		} `json:"measurements"`
	} `json:"results"`
}

// LatestByCity fetches the latest measurements from every station reporting
// for the city, flattened to one row per parameter.
func (c *OpenAQClient) LatestByCity(ctx context.Context, city string) (models.AirQualityReport, error) {
	params := url.Values{}
	params.Set("city", city)
	params.Set("limit", "100")

	var header http.Header
	if c.apiKey != "" {
		header = http.Header{}
		header.Set("X-API-Key", c.apiKey)
	}

	var apiResp openAQResponse
	if err := c.getJSON(ctx, c.baseURL+"/latest", params, header, &apiResp); err != nil {
		return models.AirQualityReport{}, err
	}

	report := models.AirQualityReport{Location: city}
	for _, station := range apiResp.Results {
		coord := models.Coordinates{
			Lat: station.Coordinates.Latitude,
			Lon: station.Coordinates.Longitude,
		}
		for _, m := range station.Measurements {
			updated, _ := time.Parse(time.RFC3339, m.LastUpdated)
			report.Measurements = append(report.Measurements, models.AirQualityMeasurement{
				Station:     station.Location,
				City:        station.City,
				Coord:       coord,
				Parameter:   m.Parameter,
				Value:       m.Value,
				Unit:        m.Unit,
				LastUpdated: updated,
			})
		}
	}
	return report, nil
}
