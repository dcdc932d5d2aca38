package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"climate-intelligence/internal/health"
)

// TestIndicator_Success verifies the two-element envelope parsing, null
// tolerance and ascending year order for a single-country query.
func TestIndicator_Success(t *testing.T) {
	health.Reset()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/country/DEU/indicator/EN.ATM.CO2E.KT" {
			t.Errorf("path = %q, want /country/DEU/indicator/EN.ATM.CO2E.KT", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("format") != "json" {
			t.Errorf("format = %q, want json", q.Get("format"))
		}
		if q.Get("per_page") != "1000" {
			t.Errorf("per_page = %q, want 1000", q.Get("per_page"))
		}
		// Rows arrive newest first with occasional nulls.
		fmt.Fprint(w, `[
			{"page": 1, "pages": 1, "per_page": 1000, "total": 3},
			[
				{"indicator": {"id": "EN.ATM.CO2E.KT", "value": "CO2 emissions (kt)"}, "country": {"id": "DE", "value": "Germany"}, "date": "2021", "value": null},
				{"indicator": {"id": "EN.ATM.CO2E.KT", "value": "CO2 emissions (kt)"}, "country": {"id": "DE", "value": "Germany"}, "date": "2020", "value": 644310.0},
				{"indicator": {"id": "EN.ATM.CO2E.KT", "value": "CO2 emissions (kt)"}, "country": {"id": "DE", "value": "Germany"}, "date": "2019", "value": 683370.0}
			]
		]`)
	}))
	defer server.Close()

	c := NewWorldBankClient(server.URL, 5*time.Second, fastRetry, nil)
	got, err := c.Indicator(context.Background(), "DEU", "EN.ATM.CO2E.KT")
	if err != nil {
		t.Fatalf("Indicator() error = %v, want nil", err)
	}

	if got.Code != "EN.ATM.CO2E.KT" {
		t.Errorf("Code = %q, want EN.ATM.CO2E.KT", got.Code)
	}
	if got.Name != "CO2 emissions (kt)" {
		t.Errorf("Name = %q, want upstream indicator name", got.Name)
	}
	if got.Country != "Germany" {
		t.Errorf("Country = %q, want Germany", got.Country)
	}
	if got.Unit != "kt" {
		t.Errorf("Unit = %q, want kt", got.Unit)
	}
	if len(got.Points) != 3 {
		t.Fatalf("len(Points) = %d, want 3", len(got.Points))
	}
	if got.Points[0].Year != 2019 || got.Points[2].Year != 2021 {
		t.Errorf("Points years = %d..%d, want ascending 2019..2021", got.Points[0].Year, got.Points[2].Year)
	}
	if got.Points[0].Value == nil || *got.Points[0].Value != 683370.0 {
		t.Errorf("Points[0].Value = %v, want 683370", got.Points[0].Value)
	}
	if got.Points[2].Value != nil {
		t.Errorf("Points[2].Value = %v, want nil for upstream null", got.Points[2].Value)
	}
	if got.Points[0].Country != "" {
		t.Errorf("Points[0].Country = %q, want empty for single-country query", got.Points[0].Country)
	}
}

// TestIndicator_AllCountriesCarriesCountry verifies that spanning queries tag
// each point with its country.
func TestIndicator_AllCountriesCarriesCountry(t *testing.T) {
	health.Reset()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"total": 2},
			[
				{"indicator": {"id": "SP.POP.GROW", "value": "Population growth (annual %)"}, "country": {"id": "BR", "value": "Brazil"}, "date": "2022", "value": 0.5},
				{"indicator": {"id": "SP.POP.GROW", "value": "Population growth (annual %)"}, "country": {"id": "JP", "value": "Japan"}, "date": "2022", "value": -0.4}
			]
		]`)
	}))
	defer server.Close()

	c := NewWorldBankClient(server.URL, 5*time.Second, fastRetry, nil)
	got, err := c.Indicator(context.Background(), "", "SP.POP.GROW")
	if err != nil {
		t.Fatalf("Indicator() error = %v, want nil", err)
	}
	if got.Country != "all" {
		t.Errorf("Country = %q, want all (empty defaults to all)", got.Country)
	}
	if len(got.Points) != 2 {
		t.Fatalf("len(Points) = %d, want 2", len(got.Points))
	}
	if got.Points[0].Country != "Brazil" || got.Points[1].Country != "Japan" {
		t.Errorf("point countries = %q/%q, want Brazil/Japan", got.Points[0].Country, got.Points[1].Country)
	}
}

// TestIndicator_ErrorPayload verifies that a one-element error envelope maps
// to ErrUpstreamFailure.
func TestIndicator_ErrorPayload(t *testing.T) {
	health.Reset()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"message": [{"id": "120", "value": "Invalid indicator"}]}]`)
	}))
	defer server.Close()

	c := NewWorldBankClient(server.URL, 5*time.Second, fastRetry, nil)
	_, err := c.Indicator(context.Background(), "all", "BOGUS.CODE")
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("Indicator() error = %v, want ErrUpstreamFailure", err)
	}
}

// TestIndicator_SkipsNonAnnualDates verifies that rows with non-numeric dates
// are dropped rather than failing the parse.
func TestIndicator_SkipsNonAnnualDates(t *testing.T) {
	health.Reset()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"total": 2},
			[
				{"indicator": {"id": "X"}, "country": {"id": "DE", "value": "Germany"}, "date": "2020Q1", "value": 1.0},
				{"indicator": {"id": "X"}, "country": {"id": "DE", "value": "Germany"}, "date": "2020", "value": 2.0}
			]
		]`)
	}))
	defer server.Close()

	c := NewWorldBankClient(server.URL, 5*time.Second, fastRetry, nil)
	got, err := c.Indicator(context.Background(), "DEU", "X")
	if err != nil {
		t.Fatalf("Indicator() error = %v, want nil", err)
	}
	if len(got.Points) != 1 || got.Points[0].Year != 2020 {
		t.Errorf("Points = %+v, want single 2020 row", got.Points)
	}
}

// TestIndicatorName_KnownAndUnknown verifies catalog lookups fall back to the
// raw code.
func TestIndicatorName_KnownAndUnknown(t *testing.T) {
	if got := IndicatorName("AG.LND.FRST.ZS"); got != "Forest area" {
		t.Errorf("IndicatorName(AG.LND.FRST.ZS) = %q, want Forest area", got)
	}
	if got := IndicatorName("XX.UNKNOWN"); got != "XX.UNKNOWN" {
		t.Errorf("IndicatorName(XX.UNKNOWN) = %q, want code passthrough", got)
	}
}
