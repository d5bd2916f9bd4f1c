// Package search provides schema.Searcher implementations.
//
// Available providers:
//
//   - Tavily: search and crawl through the Tavily API (basic/advanced depth)
//   - Brave: search through the Brave Search API; crawling is done locally
//     with Crawler
//
// Cached wraps any Searcher with a TTL cache so repeated queries inside a
// process do not hit the network again.
//
//	s := search.NewTavily(search.TavilyParams{APIKey: key})
//	results, err := s.Search(ctx, "agent architectures", schema.SearchOptions{Depth: schema.DepthAdvanced, MaxResults: 5})
package search
