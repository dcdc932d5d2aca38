package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"climate-intelligence/internal/circuitbreaker"
	"climate-intelligence/internal/health"
	"climate-intelligence/internal/models"
)

const (
	newsDataBaseURL = "https://newsdata.io/api/1"

	// DefaultNewsQuery is the search used when the caller passes none.
	DefaultNewsQuery = "climate change"

	// maxNewsPageSize is the free-tier cap; larger requests are clamped.
	maxNewsPageSize = 10
)

// NewsDataClient wraps the NewsData.io latest-news endpoint. Requires
// NEWSDATA_API_KEY; pagination uses the opaque nextPage token the API returns.
type NewsDataClient struct {
	apiKey  string
	baseURL string
	caller
}

func NewNewsDataClient(apiKey, baseURL string, timeout time.Duration, retry RetryConfig, breaker *circuitbreaker.CircuitBreaker) *NewsDataClient {
	if baseURL == "" {
		baseURL = newsDataBaseURL
	}
	status := health.KeyConfigured
	if apiKey == "" {
		status = health.KeyMissing
	}
	health.SetKeyStatus(NameNewsData, status)

	return &NewsDataClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		caller:  newCaller(NameNewsData, timeout, retry, breaker),
	}
}

// Ready reports whether the client has a credential to call the API with.
func (c *NewsDataClient) Ready() bool {
	return c.apiKey != ""
}

type newsDataResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Results      []struct {
		Title       string   `json:"title"`
		Link        string   `json:"link"`
		SourceID    string   `json:"source_id"`
		PubDate     string   `json:"pubDate"`
		Description string   `json:"description"`
		Keywords    []string `json:"keywords"`
	} `json:"results"`
	NextPage string `json:"nextPage"`
}

// LatestNews fetches one page of English-language articles matching query.
// An empty page string fetches the first page; use NewsPage.NextPage to walk
// forward.
func (c *NewsDataClient) LatestNews(ctx context.Context, query string, size int, page string) (models.NewsPage, error) {
	if !c.Ready() {
		return models.NewsPage{}, fmt.Errorf("%w: NEWSDATA_API_KEY not set", ErrMissingAPIKey)
	}

	if query == "" {
		query = DefaultNewsQuery
	}
	if size <= 0 || size > maxNewsPageSize {
		size = maxNewsPageSize
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("q", query)
	params.Set("language", "en")
	params.Set("size", strconv.Itoa(size))
	if page != "" {
		params.Set("page", page)
	}

	var apiResp newsDataResponse
	if err := c.getJSON(ctx, c.baseURL+"/latest", params, nil, &apiResp); err != nil {
		return models.NewsPage{}, err
	}
	if apiResp.Status != "success" {
		return models.NewsPage{}, fmt.Errorf("%w: status %q", ErrUpstreamFailure, apiResp.Status)
	}

	items := make([]models.NewsItem, 0, len(apiResp.Results))
	for _, a := range apiResp.Results {
		items = append(items, models.NewsItem{
			Title:       a.Title,
			Link:        a.Link,
			Source:      a.SourceID,
			PublishedAt: a.PubDate,
			Description: a.Description,
			Keywords:    a.Keywords,
		})
	}

	return models.NewsPage{
		Items:        items,
		NextPage:     apiResp.NextPage,
		TotalResults: apiResp.TotalResults,
	}, nil
}
