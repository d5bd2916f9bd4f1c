package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

const defaultTavilyBase = "https://api.tavily.com"

// TavilyParams configures a Tavily searcher.
type TavilyParams struct {
	APIKey  string
	BaseURL string       // defaults to https://api.tavily.com
	Client  *http.Client // defaults to a client with a 30s timeout
}

// Tavily calls the Tavily search and crawl APIs.
type Tavily struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ schema.Searcher = (*Tavily)(nil)

// NewTavily constructs a Tavily search provider.
func NewTavily(p TavilyParams) *Tavily {
	base := p.BaseURL
	if base == "" {
		base = defaultTavilyBase
	}
	return &Tavily{
		apiKey:  p.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		client:  defaultClient(p.Client),
	}
}

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	depth := opts.Depth
	if !depth.Valid() {
		depth = schema.DepthBasic
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	err := t.post(ctx, "tavily search", "/search", map[string]any{
		"query":        query,
		"search_depth": string(depth),
		"max_results":  maxResults,
	}, &response)
	if err != nil {
		return nil, err
	}

	results := make([]schema.SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, schema.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// Crawl asks Tavily to traverse the site at url and joins the raw content
// of every page it returned.
func (t *Tavily) Crawl(ctx context.Context, url string, opts schema.CrawlOptions) (string, error) {
	var response struct {
		Results []struct {
			URL        string `json:"url"`
			RawContent string `json:"raw_content"`
		} `json:"results"`
	}
	err := t.post(ctx, "tavily crawl", "/crawl", map[string]any{
		"url":         url,
		"max_depth":   opts.MaxDepth,
		"max_breadth": opts.MaxBreadth,
	}, &response)
	if err != nil {
		return "", err
	}

	pages := make([]Page, 0, len(response.Results))
	for _, r := range response.Results {
		pages = append(pages, Page{URL: r.URL, Text: r.RawContent})
	}
	return JoinPages(pages), nil
}

func (t *Tavily) post(ctx context.Context, op, path string, body map[string]any, out any) error {
	if strings.TrimSpace(t.apiKey) == "" {
		return schema.NewError(schema.KindSearchUnavailable, op, errors.New("tavily API key is missing"))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return schema.NewError(schema.KindSearchUnavailable, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return schema.NewError(schema.KindSearchUnavailable, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return schema.SearchError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return schema.SearchError(op, err)
	}
	return nil
}
