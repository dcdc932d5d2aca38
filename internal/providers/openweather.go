package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/health"
	"climate-intelligence/internal/models"
)

const openWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherClient wraps the OpenWeatherMap current weather and forecast
// endpoints. Requires OPENWEATHER_API_KEY; without it every call fails fast
// with ErrMissingAPIKey before any network I/O.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	caller
}

func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration, retry RetryConfig, breaker *circuitbreaker.CircuitBreaker) *OpenWeatherClient {
	if baseURL == "" {
		baseURL = openWeatherBaseURL
	}
	status := health.KeyConfigured
	if apiKey == "" {
		status = health.KeyMissing
	}
	health.SetKeyStatus(NameOpenWeather, status)

	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		caller:  newCaller(NameOpenWeather, timeout, retry, breaker),
	}
}

// Ready reports whether the client has a credential to call the API with.
func (c *OpenWeatherClient) Ready() bool {
	return c.apiKey != ""
}

type weatherCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type openWeatherResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []weatherCondition `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Name string `json:"name"`
}

type openWeatherForecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []weatherCondition `json:"weather"`
	} `json:"list"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

// CurrentWeather fetches current conditions for a city in metric units.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, location string) (models.WeatherReading, error) {
	if !c.Ready() {
		return models.WeatherReading{}, fmt.Errorf("%w: OPENWEATHER_API_KEY not set", ErrMissingAPIKey)
	}

	var apiResp openWeatherResponse
	if err := c.getJSON(ctx, c.baseURL+"/weather", c.query(location), nil, &apiResp); err != nil {
		return models.WeatherReading{}, err
	}
	return c.mapCurrent(apiResp, location), nil
}

// Forecast fetches the 5-day / 3-hour forecast for a city in metric units.
func (c *OpenWeatherClient) Forecast(ctx context.Context, location string) (models.Forecast, error) {
	if !c.Ready() {
		return models.Forecast{}, fmt.Errorf("%w: OPENWEATHER_API_KEY not set", ErrMissingAPIKey)
	}

	var apiResp openWeatherForecastResponse
	if err := c.getJSON(ctx, c.baseURL+"/forecast", c.query(location), nil, &apiResp); err != nil {
		return models.Forecast{}, err
	}

	entries := make([]models.ForecastEntry, 0, len(apiResp.List))
	for _, item := range apiResp.List {
		entries = append(entries, models.ForecastEntry{
			Time:        time.Unix(item.Dt, 0).UTC(),
			Temperature: item.Main.Temp,
			Conditions:  pickConditions(item.Weather),
		})
	}

	name := apiResp.City.Name
	if name == "" {
		name = location
	}
	return models.Forecast{Location: name, Entries: entries}, nil
}

func (c *OpenWeatherClient) query(location string) url.Values {
	params := url.Values{}
	params.Set("q", location)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	return params
}

func (c *OpenWeatherClient) mapCurrent(apiResp openWeatherResponse, location string) models.WeatherReading {
	displayName := apiResp.Name
	if displayName == "" {
		displayName = location
	}

	return models.WeatherReading{
		Location:    displayName,
		Coord:       models.Coordinates{Lat: apiResp.Coord.Lat, Lon: apiResp.Coord.Lon},
		Temperature: apiResp.Main.Temp,
		FeelsLike:   apiResp.Main.FeelsLike,
		Conditions:  pickConditions(apiResp.Weather),
		Humidity:    apiResp.Main.Humidity,
		Pressure:    apiResp.Main.Pressure,
		WindSpeed:   apiResp.Wind.Speed,
		Sunrise:     apiResp.Sys.Sunrise,
		Sunset:      apiResp.Sys.Sunset,
		Timestamp:   time.Now(),
	}
}

func pickConditions(weather []weatherCondition) string {
	if len(weather) == 0 {
		return ""
	}
	conditions := weather[0].Main
	if weather[0].Description != "" {
		conditions = weather[0].Description
	}
	return conditions
}

// ValidateAPIKey probes the API with a known city to check the credential.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	if !c.Ready() {
		return fmt.Errorf("%w: OPENWEATHER_API_KEY not set", ErrMissingAPIKey)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.get(ctx, c.baseURL+"/weather", c.query("London"), nil)
	return err
}
