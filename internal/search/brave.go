package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

const defaultBraveBase = "https://api.search.brave.com/res/v1"

// BraveParams configures a Brave searcher.
type BraveParams struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	// Crawler serves Crawl; Brave has no crawl API.
	Crawler *Crawler
}

// Brave searches the web using the Brave Search API.
type Brave struct {
	apiKey  string
	baseURL string
	client  *http.Client
	crawler *Crawler
}

var _ schema.Searcher = (*Brave)(nil)

// NewBrave constructs a Brave search provider.
func NewBrave(p BraveParams) *Brave {
	base := p.BaseURL
	if base == "" {
		base = defaultBraveBase
	}
	crawler := p.Crawler
	if crawler == nil {
		crawler = NewCrawler(CrawlerParams{})
	}
	return &Brave{
		apiKey:  p.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		client:  defaultClient(p.Client),
		crawler: crawler,
	}
}

// Search queries Brave. Advanced depth asks for extra snippets per result.
func (b *Brave) Search(ctx context.Context, query string, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	const op = "brave search"
	if b.apiKey == "" {
		return nil, schema.NewError(schema.KindSearchUnavailable, op, errors.New("brave API key is missing"))
	}

	n := opts.MaxResults
	if n < 1 {
		n = 5
	}
	if n > 20 {
		n = 20
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/web/search", nil)
	if err != nil {
		return nil, schema.NewError(schema.KindSearchUnavailable, op, err)
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(n))
	if opts.Depth == schema.DepthAdvanced {
		q.Set("extra_snippets", "true")
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, schema.SearchError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp)
	}

	var data struct {
		Web struct {
			Results []struct {
				Title         string   `json:"title"`
				URL           string   `json:"url"`
				Description   string   `json:"description"`
				ExtraSnippets []string `json:"extra_snippets"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, schema.SearchError(op, err)
	}

	results := make([]schema.SearchResult, 0, len(data.Web.Results))
	for _, item := range data.Web.Results {
		if len(results) >= n {
			break
		}
		snippet := item.Description
		if len(item.ExtraSnippets) > 0 {
			snippet = strings.Join(append([]string{snippet}, item.ExtraSnippets...), " … ")
		}
		results = append(results, schema.SearchResult{Title: item.Title, URL: item.URL, Snippet: snippet})
	}
	return results, nil
}

// Crawl delegates to the local crawler.
func (b *Brave) Crawl(ctx context.Context, url string, opts schema.CrawlOptions) (string, error) {
	return b.crawler.Crawl(ctx, url, opts)
}
