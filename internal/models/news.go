package models

type NewsItem struct {
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Source      string   `json:"source"`
	PublishedAt string   `json:"publishedAt"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// NewsPage is one page of articles plus the opaque token for the next page.
type NewsPage struct {
	Items        []NewsItem `json:"items"`
	NextPage     string     `json:"nextPage,omitempty"`
	TotalResults int        `json:"totalResults"`
	Stale        bool       `json:"stale,omitempty"`
}
