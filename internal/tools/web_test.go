package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

type recordingSearcher struct {
	query      string
	opts       schema.SearchOptions
	url        string
	crawlOpts  schema.CrawlOptions
	results    []schema.SearchResult
	page       string
	err        error
	hadTimeout bool
}

func (s *recordingSearcher) Search(ctx context.Context, query string, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	s.query, s.opts = query, opts
	_, s.hadTimeout = ctx.Deadline()
	return s.results, s.err
}

func (s *recordingSearcher) Crawl(_ context.Context, url string, opts schema.CrawlOptions) (string, error) {
	s.url, s.crawlOpts = url, opts
	return s.page, s.err
}

func TestSearchTool_Execute(t *testing.T) {
	s := &recordingSearcher{results: []schema.SearchResult{
		{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"},
		{Title: "Tour", Snippet: "A tour"},
	}}
	tool := NewSearchTool(s, schema.DepthBasic, 5, 0)

	out, err := tool.Execute(context.Background(), map[string]any{"query": " golang ", "max_results": float64(20)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if s.query != "golang" {
		t.Errorf("query = %q", s.query)
	}
	if diff := cmp.Diff(schema.SearchOptions{Depth: schema.DepthBasic, MaxResults: 10}, s.opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	want := "Results for: golang\n\n1. Go\n   https://go.dev\n   The Go language\n2. Tour\n   A tour\n"
	if out != want {
		t.Errorf("output = %q", out)
	}
	if s.hadTimeout {
		t.Error("no deadline expected when timeout is 0")
	}
}

func TestSearchTool_Defaults(t *testing.T) {
	tool := NewSearchTool(&recordingSearcher{}, "bogus", 0, 0)
	if tool.opts.Depth != schema.DepthAdvanced || tool.opts.MaxResults != 5 {
		t.Errorf("defaults = %+v", tool.opts)
	}
}

func TestSearchTool_Errors(t *testing.T) {
	tool := NewSearchTool(&recordingSearcher{}, schema.DepthBasic, 5, 0)
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("expected error for missing query")
	}

	failing := NewSearchTool(&recordingSearcher{err: context.DeadlineExceeded}, schema.DepthBasic, 5, 0)
	_, err := failing.Execute(context.Background(), map[string]any{"query": "q"})
	if !errors.Is(err, schema.ErrSearchTimeout) {
		t.Errorf("expected SearchTimeout, got %v", err)
	}
}

func TestSearchTool_AppliesTimeout(t *testing.T) {
	s := &recordingSearcher{}
	tool := NewSearchTool(s, schema.DepthBasic, 5, 1e9)
	if _, err := tool.Execute(context.Background(), map[string]any{"query": "q"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !s.hadTimeout {
		t.Error("expected per-call deadline")
	}
}

func TestFormatResults_Empty(t *testing.T) {
	if got := FormatResults("q", nil, 5); got != "No results for: q" {
		t.Errorf("FormatResults = %q", got)
	}
}

func TestCrawlTool_Execute(t *testing.T) {
	s := &recordingSearcher{page: strings.Repeat("x", 20)}
	tool := NewCrawlTool(s, 0, 0, 10, 0)

	out, err := tool.Execute(context.Background(), map[string]any{"url": "https://example.com/docs"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if s.crawlOpts != (schema.CrawlOptions{MaxDepth: 2, MaxBreadth: 5}) {
		t.Errorf("crawl options = %+v", s.crawlOpts)
	}
	if out != strings.Repeat("x", 10)+"\n[truncated]" {
		t.Errorf("output = %q", out)
	}
}

func TestCrawlTool_TruncatesOnRuneBoundary(t *testing.T) {
	s := &recordingSearcher{page: strings.Repeat("é", 10)}
	tool := NewCrawlTool(s, 2, 5, 5, 0)

	out, err := tool.Execute(context.Background(), map[string]any{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !utf8.ValidString(out) {
		t.Fatalf("output is not valid UTF-8: %q", out)
	}
	if out != "éé\n[truncated]" {
		t.Errorf("output = %q", out)
	}
}

func TestCrawlTool_RejectsBadURL(t *testing.T) {
	tool := NewCrawlTool(&recordingSearcher{}, 2, 5, 0, 0)
	for _, u := range []string{"", "ftp://example.com", "https://"} {
		if _, err := tool.Execute(context.Background(), map[string]any{"url": u}); err == nil {
			t.Errorf("expected error for %q", u)
		}
	}
}

func TestCrawlTool_EmptyPage(t *testing.T) {
	tool := NewCrawlTool(&recordingSearcher{}, 2, 5, 0, 0)
	out, err := tool.Execute(context.Background(), map[string]any{"url": "https://example.com"})
	if err != nil || out != "No content found at: https://example.com" {
		t.Errorf("Execute = %q, %v", out, err)
	}
}

func TestToolList(t *testing.T) {
	s := &recordingSearcher{}
	list := NewRegistryBuilder().
		WithTool(NewSearchTool(s, schema.DepthBasic, 5, 0)).
		WithTool(NewCrawlTool(s, 2, 5, 0, 0)).
		Build()

	if diff := cmp.Diff([]string{"crawl_website", "web_search"}, list.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if list.Get("shell") != nil {
		t.Error("unknown tool resolved")
	}
	defs := list.Definitions()
	fn := defs[1]["function"].(map[string]any)
	if fn["name"] != "web_search" {
		t.Errorf("definition order: %v", fn["name"])
	}
	params := fn["parameters"].(map[string]any)
	if params["type"] != "object" {
		t.Errorf("parameters not decoded: %v", params)
	}

	var nilList *ToolList
	if nilList.Len() != 0 || nilList.Get("x") != nil {
		t.Error("nil list should be empty")
	}
}
