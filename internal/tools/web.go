package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/crystaldolphin/researchflow/internal/schema"
	"github.com/crystaldolphin/researchflow/internal/shared/llmutils"
)

// validateURL checks that url is http(s) with a valid domain.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing domain in URL")
	}
	return nil
}

// intParam reads an integer argument decoded from JSON (float64) or set
// directly by Go callers (int).
func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// ---------------------------------------------------------------------------
// SearchTool
// ---------------------------------------------------------------------------

// SearchTool exposes Searcher.Search to the model as "web_search".
type SearchTool struct {
	searcher schema.Searcher
	opts     schema.SearchOptions
	timeout  time.Duration
}

// NewSearchTool creates a SearchTool. maxResults defaults to 5; timeout is
// the per-call deadline (0 disables it).
func NewSearchTool(searcher schema.Searcher, depth schema.SearchDepth, maxResults int, timeout time.Duration) *SearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	if !depth.Valid() {
		depth = schema.DepthAdvanced
	}
	return &SearchTool{
		searcher: searcher,
		opts:     schema.SearchOptions{Depth: depth, MaxResults: maxResults},
		timeout:  timeout,
	}
}

func (t *SearchTool) Name() string { return string(ToolWebSearch) }
func (t *SearchTool) Description() string {
	return "Search the web. Returns titles, URLs, and snippets."
}
func (t *SearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Search query"
			},
			"max_results": {
				"type": "integer",
				"description": "Results (1-10)",
				"minimum": 1,
				"maximum": 10
			}
		},
		"required": ["query"]
	}`)
}

func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("query is required")
	}

	opts := t.opts
	if n, ok := intParam(params, "max_results"); ok {
		opts.MaxResults = min(max(n, 1), 10)
	}

	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	results, err := t.searcher.Search(ctx, query, opts)
	if err != nil {
		return "", schema.SearchError("web_search", err)
	}
	return FormatResults(query, results, opts.MaxResults), nil
}

// FormatResults flattens search results into the text finding handed back
// to the model.
func FormatResults(query string, results []schema.SearchResult, limit int) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results for: %s", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Results for: %s\n\n", query))
	for i, item := range results {
		if limit > 0 && i >= limit {
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, item.Title))
		if item.URL != "" {
			sb.WriteString("\n   " + item.URL)
		}
		if item.Snippet != "" {
			sb.WriteString("\n   " + item.Snippet)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// CrawlTool
// ---------------------------------------------------------------------------

// CrawlTool exposes Searcher.Crawl to the model as "crawl_website".
type CrawlTool struct {
	searcher schema.Searcher
	opts     schema.CrawlOptions
	maxChars int
	timeout  time.Duration
}

// NewCrawlTool creates a CrawlTool. Depth and breadth default to 2 and 5.
func NewCrawlTool(searcher schema.Searcher, maxDepth, maxBreadth, maxChars int, timeout time.Duration) *CrawlTool {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if maxBreadth <= 0 {
		maxBreadth = 5
	}
	if maxChars <= 0 {
		maxChars = 50000
	}
	return &CrawlTool{
		searcher: searcher,
		opts:     schema.CrawlOptions{MaxDepth: maxDepth, MaxBreadth: maxBreadth},
		maxChars: maxChars,
		timeout:  timeout,
	}
}

func (t *CrawlTool) Name() string { return string(ToolCrawlWebsite) }
func (t *CrawlTool) Description() string {
	return "Crawl a specific website and return its readable content."
}
func (t *CrawlTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "Starting URL"
			}
		},
		"required": ["url"]
	}`)
}

func (t *CrawlTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	rawURL, _ := params["url"].(string)
	if rawURL == "" {
		return "", errors.New("url is required")
	}
	if err := validateURL(rawURL); err != nil {
		return "", fmt.Errorf("URL validation failed: %w", err)
	}

	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	text, err := t.searcher.Crawl(ctx, rawURL, t.opts)
	if err != nil {
		return "", schema.SearchError("crawl_website", err)
	}
	if text == "" {
		return fmt.Sprintf("No content found at: %s", rawURL), nil
	}
	if len(text) > t.maxChars {
		text = llmutils.Prefix(text, t.maxChars) + "\n[truncated]"
	}
	return text, nil
}
