package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/health"
	"climate-intelligence/internal/models"
)

const (
	noaaCDOBaseURL = "https://www.ncei.noaa.gov/cdo-web/api/v2"
	noaaNWSBaseURL = "https://api.weather.gov"

	// api.weather.gov requires an identifying User-Agent with a contact.
	nwsUserAgent = "ClimateIntelligence/1.0 (climate.insights@example.com)"
)

// NOAAClient routes a coordinate to one of two NOAA services: api.weather.gov
// point metadata for US locations (no credential), or Climate Data Online
// station observations elsewhere (requires NOAA_API_TOKEN).
type NOAAClient struct {
	token  string
	cdoURL string
	nwsURL string
	caller
}

func NewNOAAClient(token, cdoURL, nwsURL string, timeout time.Duration, retry RetryConfig, breaker *circuitbreaker.CircuitBreaker) *NOAAClient {
	if cdoURL == "" {
		cdoURL = noaaCDOBaseURL
	}
	if nwsURL == "" {
		nwsURL = noaaNWSBaseURL
	}
	status := health.KeyConfigured
	if token == "" {
		status = health.KeyMissing
	}
	health.SetKeyStatus(NameNOAA, status)

	return &NOAAClient{
		token:  token,
		cdoURL: strings.TrimSuffix(cdoURL, "/"),
		nwsURL: strings.TrimSuffix(nwsURL, "/"),
		caller: newCaller(NameNOAA, timeout, retry, breaker),
	}
}

// Ready reports whether the CDO path has a token. The weather.gov path works
// without one.
func (c *NOAAClient) Ready() bool {
	return c.token != ""
}

// InUSBounds reports whether the point falls inside the areas served by
// api.weather.gov: the contiguous US, the northern border strip, or Alaska.
func InUSBounds(lat, lon float64) bool {
	if lat >= 25.0 && lat <= 49.5 && lon >= -124.5 && lon <= -66.95 {
		return true
	}
	if lat >= 49.5 && lon >= -124.5 && lon <= -67.4 {
		return true
	}
	if lat >= 54.5 && lat <= 71.5 && lon >= -168.0 && lon <= -140.0 {
		return true
	}
	return false
}

type nwsPointResponse struct {
	Properties struct {
		GridID           string `json:"gridId"`
		Forecast         string `json:"forecast"`
		TimeZone         string `json:"timeZone"`
		RelativeLocation struct {
			Properties struct {
				City  string `json:"city"`
				State string `json:"state"`
			} `json:"properties"`
		} `json:"relativeLocation"`
	} `json:"properties"`
}

type cdoStationsResponse struct {
	Results []struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

type cdoDataResponse struct {
	Results []struct {
		Date     string  `json:"date"`
		Datatype string  `json:"datatype"`
		Value    float64 `json:"value"`
	} `json:"results"`
}

// StationData resolves a coordinate to station metadata and, outside the US,
// the last 30 days of GHCND observations. A location with no nearby CDO
// station yields an empty report, not an error.
func (c *NOAAClient) StationData(ctx context.Context, lat, lon float64) (models.StationReport, error) {
	if InUSBounds(lat, lon) {
		return c.nwsPoint(ctx, lat, lon)
	}
	return c.cdoObservations(ctx, lat, lon)
}

func (c *NOAAClient) nwsPoint(ctx context.Context, lat, lon float64) (models.StationReport, error) {
	header := http.Header{}
	header.Set("User-Agent", nwsUserAgent)
	header.Set("Accept", "application/geo+json")

	rawURL := fmt.Sprintf("%s/points/%.4f,%.4f", c.nwsURL, lat, lon)
	var apiResp nwsPointResponse
	if err := c.getJSON(ctx, rawURL, nil, header, &apiResp); err != nil {
		return models.StationReport{}, err
	}

	report := models.StationReport{
		Source:    "weather.gov",
		Coord:     models.Coordinates{Lat: lat, Lon: lon},
		StationID: apiResp.Properties.GridID,
		Forecast:  apiResp.Properties.Forecast,
		TimeZone:  apiResp.Properties.TimeZone,
	}
	if city := apiResp.Properties.RelativeLocation.Properties.City; city != "" {
		name := city
		if state := apiResp.Properties.RelativeLocation.Properties.State; state != "" {
			name += ", " + state
		}
		report.StationName = name
	}
	return report, nil
}

func (c *NOAAClient) cdoObservations(ctx context.Context, lat, lon float64) (models.StationReport, error) {
	if !c.Ready() {
		return models.StationReport{}, fmt.Errorf("%w: NOAA_API_TOKEN not set", ErrMissingAPIKey)
	}

	header := http.Header{}
	header.Set("token", c.token)

	params := url.Values{}
	params.Set("extent", fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", lat-1, lon-1, lat+1, lon+1))
	params.Set("limit", "1")

	var stations cdoStationsResponse
	if err := c.getJSON(ctx, c.cdoURL+"/stations", params, header, &stations); err != nil {
		return models.StationReport{}, err
	}

	report := models.StationReport{
		Source: "cdo",
		Coord:  models.Coordinates{Lat: lat, Lon: lon},
	}
	if len(stations.Results) == 0 {
		return report, nil
	}
	station := stations.Results[0]
	report.StationID = station.ID
	report.StationName = station.Name
	report.Elevation = station.Elevation

	now := time.Now().UTC()
	dataParams := url.Values{}
	dataParams.Set("datasetid", "GHCND")
	dataParams.Set("stationid", station.ID)
	dataParams.Set("startdate", now.AddDate(0, 0, -30).Format("2006-01-02"))
	dataParams.Set("enddate", now.Format("2006-01-02"))
	dataParams.Set("limit", "1000")

	var data cdoDataResponse
	if err := c.getJSON(ctx, c.cdoURL+"/data", dataParams, header, &data); err != nil {
		return models.StationReport{}, err
	}

	report.Observations = make([]models.StationObservation, 0, len(data.Results))
	for _, r := range data.Results {
		t, err := time.Parse("2006-01-02T15:04:05", r.Date)
		if err != nil {
			continue
		}
		report.Observations = append(report.Observations, models.StationObservation{
			Date:     t,
			DataType: r.Datatype,
			Value:    r.Value,
		})
	}
	return report, nil
}
