package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crystaldolphin/researchflow/internal/config/search"
)

// Validate reports every setting that would stop a research run, joined
// into one error. A nil result means the pipeline can be built.
func (c *Config) Validate() error {
	var errs []error

	if c.MatchProvider(c.Agents.Research.Model).Provider == nil {
		errs = append(errs, fmt.Errorf("no provider configured for research model %q: set providers.<name>.apiKey", c.Agents.Research.Model))
	}
	if draft := c.Agents.DraftModel(); draft != c.Agents.Research.Model && c.MatchProvider(draft).Provider == nil {
		errs = append(errs, fmt.Errorf("no provider configured for draft model %q", draft))
	}

	switch c.Search.Provider {
	case search.ProviderTavily, search.ProviderBrave:
	default:
		errs = append(errs, fmt.Errorf("search.provider must be %q or %q, got %q", search.ProviderTavily, search.ProviderBrave, c.Search.Provider))
	}
	if strings.TrimSpace(c.Search.APIKey) == "" {
		errs = append(errs, errors.New("search.apiKey is empty"))
	}
	if d := c.Search.Depth; d != "basic" && d != "advanced" {
		errs = append(errs, fmt.Errorf("search.depth must be basic or advanced, got %q", d))
	}
	if c.Search.MaxResults <= 0 {
		errs = append(errs, errors.New("search.maxResults must be positive"))
	}
	if c.Agents.Research.MaxToolIterations <= 0 {
		errs = append(errs, errors.New("agents.research.maxToolIterations must be positive"))
	}
	if c.Timeouts.SearchSeconds <= 0 || c.Timeouts.GenerationSeconds <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}

	return errors.Join(errs...)
}
