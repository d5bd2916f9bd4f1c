package search

import (
	"fmt"
	"log/slog"
	"strings"

	searchcfg "github.com/crystaldolphin/researchflow/internal/config/search"
	"github.com/crystaldolphin/researchflow/internal/schema"
)

// New builds the Searcher selected by cfg, wrapped in a TTL cache when
// cfg.CacheTTLSeconds is positive.
func New(cfg searchcfg.SearchConfig) (schema.Searcher, error) {
	var s schema.Searcher
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", searchcfg.ProviderTavily:
		s = NewTavily(TavilyParams{APIKey: cfg.APIKey, BaseURL: cfg.APIBase})
	case searchcfg.ProviderBrave:
		s = NewBrave(BraveParams{APIKey: cfg.APIKey, BaseURL: cfg.APIBase})
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}

	if ttl := cfg.CacheTTL(); ttl > 0 {
		slog.Debug("Search cache enabled", "ttl", ttl)
		s = NewCached(s, ttl)
	}
	return s, nil
}
