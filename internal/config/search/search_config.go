package search

import "time"

const (
	ProviderTavily = "tavily"
	ProviderBrave  = "brave"
)

// SearchConfig selects and tunes the web search backend.
type SearchConfig struct {
	Provider        string `json:"provider" yaml:"provider"`
	APIKey          string `json:"apiKey" yaml:"apiKey"`
	APIBase         string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	Depth           string `json:"depth" yaml:"depth"` // "basic" or "advanced"
	MaxResults      int    `json:"maxResults" yaml:"maxResults"`
	CrawlMaxDepth   int    `json:"crawlMaxDepth" yaml:"crawlMaxDepth"`
	CrawlMaxBreadth int    `json:"crawlMaxBreadth" yaml:"crawlMaxBreadth"`
	CacheTTLSeconds int    `json:"cacheTTLSeconds" yaml:"cacheTTLSeconds"` // 0 disables caching
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Provider:        ProviderTavily,
		Depth:           "advanced",
		MaxResults:      5,
		CrawlMaxDepth:   2,
		CrawlMaxBreadth: 5,
		CacheTTLSeconds: 600,
	}
}

// CacheTTL is how long search results are reused; zero disables the cache.
func (c SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
