// Command probe exercises each upstream provider once and reports reachability.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"climate-intelligence/internal/config"
	"climate-intelligence/internal/providers"
)

const probeTimeout = 10 * time.Second

// London: exercises the CDO path for points outside api.weather.gov coverage.
const (
	probeLat = 51.5074
	probeLon = -0.1278
)

const (
	statusOK      = "ok"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

type row struct {
	provider string
	status   string
	detail   string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	rows := runProbes(context.Background(), cfg)
	fmt.Print(renderTable(rows))

	for _, r := range rows {
		if r.status == statusFailed {
			os.Exit(1)
		}
	}
}

// runProbes calls every provider once with a bounded context. Providers whose
// credentials are absent are reported as skipped rather than failed, so the
// exit code reflects only reachable-but-broken upstreams.
func runProbes(ctx context.Context, cfg *config.Config) []row {
	retry := providers.RetryConfig{Attempts: 1}
	weather := providers.NewOpenWeatherClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL, cfg.ProviderTimeout, retry, nil)
	news := providers.NewNewsDataClient(cfg.NewsdataAPIKey, cfg.NewsdataURL, cfg.ProviderTimeout, retry, nil)
	noaa := providers.NewNOAAClient(cfg.NOAAAPIToken, cfg.NOAACDOURL, cfg.NOAANWSURL, cfg.ProviderTimeout, retry, nil)
	worldBank := providers.NewWorldBankClient(cfg.WorldBankURL, cfg.ProviderTimeout, retry, nil)
	openAQ := providers.NewOpenAQClient(cfg.OpenAQAPIKey, cfg.OpenAQURL, cfg.ProviderTimeout, retry, nil)
	giss := providers.NewGISSClient(cfg.GISSURL, cfg.ProviderTimeout, retry, nil)

	location := cfg.DefaultLocation
	indicator := providers.KnownIndicators[0]

	probes := []struct {
		name       string
		ready      bool
		skipDetail string
		run        func(context.Context) (string, error)
	}{
		{
			name:       providers.NameOpenWeather,
			ready:      weather.Ready(),
			skipDetail: "OPENWEATHER_API_KEY not set",
			run: func(ctx context.Context) (string, error) {
				r, err := weather.CurrentWeather(ctx, location)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%.1f°C, %s in %s", r.Temperature, r.Conditions, r.Location), nil
			},
		},
		{
			name:       providers.NameNewsData,
			ready:      news.Ready(),
			skipDetail: "NEWSDATA_API_KEY not set",
			run: func(ctx context.Context) (string, error) {
				p, err := news.LatestNews(ctx, "", 3, "")
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d articles for %q", len(p.Items), providers.DefaultNewsQuery), nil
			},
		},
		{
			name:       providers.NameNOAA,
			ready:      noaa.Ready(),
			skipDetail: "NOAA_API_TOKEN not set",
			run: func(ctx context.Context) (string, error) {
				r, err := noaa.StationData(ctx, probeLat, probeLon)
				if err != nil {
					return "", err
				}
				if r.StationName != "" {
					return fmt.Sprintf("%s: %s, %d observations", r.Source, r.StationName, len(r.Observations)), nil
				}
				return fmt.Sprintf("%s: %d observations", r.Source, len(r.Observations)), nil
			},
		},
		{
			name:  providers.NameWorldBank,
			ready: true,
			run: func(ctx context.Context) (string, error) {
				ind, err := worldBank.Indicator(ctx, "", indicator.Code)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%s: %d yearly points", ind.Name, len(ind.Points)), nil
			},
		},
		{
			name:  providers.NameOpenAQ,
			ready: true, // the API key is optional for OpenAQ
			run: func(ctx context.Context) (string, error) {
				r, err := openAQ.LatestByCity(ctx, location)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d measurements in %s", len(r.Measurements), r.Location), nil
			},
		},
		{
			name:  providers.NameGISS,
			ready: true,
			run: func(ctx context.Context) (string, error) {
				s, err := giss.TemperatureAnomalies(ctx)
				if err != nil {
					return "", err
				}
				if len(s.Points) == 0 {
					return "", errors.New("empty anomaly series")
				}
				last := s.Points[len(s.Points)-1]
				return fmt.Sprintf("%d years, %+.2f°C in %d", len(s.Points), last.Value, last.Year), nil
			},
		},
	}

	rows := make([]row, 0, len(probes))
	for _, p := range probes {
		if !p.ready {
			rows = append(rows, row{provider: p.name, status: statusSkipped, detail: p.skipDetail})
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		detail, err := p.run(probeCtx)
		cancel()
		if err != nil {
			rows = append(rows, row{provider: p.name, status: statusFailed, detail: err.Error()})
			continue
		}
		rows = append(rows, row{provider: p.name, status: statusOK, detail: detail})
	}
	return rows
}

// renderTable lays the rows out under a header, sizing columns by display
// width so multi-cell runes such as ° and CJK text stay aligned.
func renderTable(rows []row) string {
	all := append([]row{{provider: "provider", status: "status", detail: "detail"}}, rows...)

	providerWidth, statusWidth, detailWidth := 0, 0, 0
	for _, r := range all {
		if w := runewidth.StringWidth(r.provider); w > providerWidth {
			providerWidth = w
		}
		if w := runewidth.StringWidth(r.status); w > statusWidth {
			statusWidth = w
		}
		if w := runewidth.StringWidth(r.detail); w > detailWidth {
			detailWidth = w
		}
	}

	var sb strings.Builder
	for i, r := range all {
		sb.WriteString(pad(r.provider, providerWidth))
		sb.WriteString(" | ")
		sb.WriteString(pad(r.status, statusWidth))
		sb.WriteString(" | ")
		sb.WriteString(r.detail)
		sb.WriteString("\n")
		if i == 0 {
			sb.WriteString(strings.Repeat("-", providerWidth))
			sb.WriteString("-+-")
			sb.WriteString(strings.Repeat("-", statusWidth))
			sb.WriteString("-+-")
			sb.WriteString(strings.Repeat("-", detailWidth))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func pad(s string, width int) string {
	if n := width - runewidth.StringWidth(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
