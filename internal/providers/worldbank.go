package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/health"
	"climate-intelligence/internal/models"
)

const worldBankBaseURL = "https://api.worldbank.org/v2"

// KnownIndicator is a World Bank indicator the analysis page offers.
type KnownIndicator struct {
	Name string
	Code string
	Unit string
}

// KnownIndicators lists the offered indicators in menu order.
var KnownIndicators = []KnownIndicator{
	{"CO2 emissions", "EN.ATM.CO2E.KT", "kt"},
	{"Forest area", "AG.LND.FRST.ZS", "% of land area"},
	{"Renewable energy", "EG.FEC.RNEW.ZS", "% of total final energy consumption"},
	{"Population growth", "SP.POP.GROW", "annual %"},
}

// IndicatorName returns the display name for a code, or the code itself when unknown.
func IndicatorName(code string) string {
	for _, ind := range KnownIndicators {
		if ind.Code == code {
			return ind.Name
		}
	}
	return code
}

func indicatorUnit(code string) string {
	for _, ind := range KnownIndicators {
		if ind.Code == code {
			return ind.Unit
		}
	}
	return ""
}

// WorldBankClient wraps the World Bank open data API. No credential needed.
type WorldBankClient struct {
	baseURL string
	caller
}

func NewWorldBankClient(baseURL string, timeout time.Duration, retry RetryConfig, breaker *circuitbreaker.CircuitBreaker) *WorldBankClient {
	if baseURL == "" {
		baseURL = worldBankBaseURL
	}
	health.SetKeyStatus(NameWorldBank, health.KeyNotRequired)

	return &WorldBankClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		caller:  newCaller(NameWorldBank, timeout, retry, breaker),
	}
}

type worldBankRow struct {
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Country struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Indicator fetches annual values for one indicator. country is a World Bank
// country code; empty or "all" spans every country, in which case each point
// carries its country name.
func (c *WorldBankClient) Indicator(ctx context.Context, country, code string) (models.ClimateIndicator, error) {
	if country == "" {
		country = "all"
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", "1000")

	rawURL := fmt.Sprintf("%s/country/%s/indicator/%s", c.baseURL, url.PathEscape(country), url.PathEscape(code))
	body, err := c.get(ctx, rawURL, params, nil)
	if err != nil {
		return models.ClimateIndicator{}, err
	}

	// The API wraps rows in a two-element array: [paging metadata, rows].
	// Error payloads come back as a one-element array instead.
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return models.ClimateIndicator{}, fmt.Errorf("parse worldbank response: %w", err)
	}
	if len(envelope) < 2 {
		return models.ClimateIndicator{}, fmt.Errorf("%w: worldbank error payload", ErrUpstreamFailure)
	}

	var rows []worldBankRow
	if err := json.Unmarshal(envelope[1], &rows); err != nil {
		return models.ClimateIndicator{}, fmt.Errorf("parse worldbank rows: %w", err)
	}

	multiCountry := strings.EqualFold(country, "all")
	points := make([]models.IndicatorPoint, 0, len(rows))
	for _, row := range rows {
		year, err := strconv.Atoi(row.Date)
		if err != nil {
			continue // date ranges like "2020Q1" are not offered here
		}
		p := models.IndicatorPoint{Year: year, Value: row.Value}
		if multiCountry {
			p.Country = row.Country.Value
		}
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Year < points[j].Year })

	name := IndicatorName(code)
	countryName := country
	if len(rows) > 0 {
		if rows[0].Indicator.Value != "" {
			name = rows[0].Indicator.Value
		}
		if !multiCountry && rows[0].Country.Value != "" {
			countryName = rows[0].Country.Value
		}
	}

	return models.ClimateIndicator{
		Code:    code,
		Name:    name,
		Country: countryName,
		Unit:    indicatorUnit(code),
		Points:  points,
	}, nil
}
