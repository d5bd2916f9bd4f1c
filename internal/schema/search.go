package schema

import "context"

// SearchDepth selects how thoroughly a provider searches.
type SearchDepth string

const (
	DepthBasic    SearchDepth = "basic"
	DepthAdvanced SearchDepth = "advanced"
)

// Valid reports whether d is a known depth.
func (d SearchDepth) Valid() bool {
	return d == DepthBasic || d == DepthAdvanced
}

// SearchResult is a single item returned by a Searcher.
type SearchResult struct {
	Title   string
	URL     string // optional source identifier
	Snippet string
}

// SearchOptions tunes one search request.
type SearchOptions struct {
	Depth      SearchDepth
	MaxResults int
}

// CrawlOptions bounds a single-site crawl.
type CrawlOptions struct {
	MaxDepth   int
	MaxBreadth int
}

// Searcher is the web-research capability.
//
// Search returns results in provider rank order. Crawl traverses one site
// starting at url and returns its readable text. Implementations must be
// safe for concurrent use and free of side effects beyond network I/O.
// Failures are reported as *Error with KindSearchUnavailable or
// KindSearchTimeout.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
	Crawl(ctx context.Context, url string, opts CrawlOptions) (string, error)
}
