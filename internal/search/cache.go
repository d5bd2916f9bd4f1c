package search

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

// Cached wraps a Searcher with an in-process TTL cache. Only successful
// responses are stored.
type Cached struct {
	next  schema.Searcher
	store *gocache.Cache
}

var _ schema.Searcher = (*Cached)(nil)

// NewCached returns next wrapped in a cache whose entries expire after ttl.
func NewCached(next schema.Searcher, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		store: gocache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Search(ctx context.Context, query string, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	key := fmt.Sprintf("search|%s|%d|%s", opts.Depth, opts.MaxResults, query)
	if v, ok := c.store.Get(key); ok {
		results := v.([]schema.SearchResult)
		return append([]schema.SearchResult(nil), results...), nil
	}

	results, err := c.next.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	c.store.SetDefault(key, append([]schema.SearchResult(nil), results...))
	return results, nil
}

func (c *Cached) Crawl(ctx context.Context, url string, opts schema.CrawlOptions) (string, error) {
	key := fmt.Sprintf("crawl|%d|%d|%s", opts.MaxDepth, opts.MaxBreadth, url)
	if v, ok := c.store.Get(key); ok {
		return v.(string), nil
	}

	text, err := c.next.Crawl(ctx, url, opts)
	if err != nil {
		return "", err
	}
	c.store.SetDefault(key, text)
	return text, nil
}

