package config

import (
	"strings"

	"github.com/crystaldolphin/researchflow/internal/config/provider"
	"github.com/crystaldolphin/researchflow/internal/providers"
)

// MatchResult is the resolved LLM provider config and registry name for a model.
type MatchResult struct {
	Provider *provider.ProviderConfig
	Name     string // e.g. "openrouter", "anthropic"
}

// MatchProvider resolves which provider config to use for model.
// If model is empty, the research model is used.
//
// Priority order:
//  1. Explicit provider prefix in the model string ("deepseek/deepseek-chat" → deepseek)
//  2. Keyword match in the model name (registry order)
//  3. Fallback: the first configured provider in registry order
//
// Local backends match without an API key.
func (c *Config) MatchProvider(model string) MatchResult {
	if model == "" {
		model = c.Agents.Research.Model
	}
	lower := strings.ToLower(model)
	prefix, _, hasPrefix := strings.Cut(lower, "/")
	prefix = strings.ReplaceAll(prefix, "-", "_")

	usable := func(spec providers.Spec) (*provider.ProviderConfig, bool) {
		p := c.Providers.ByName(spec.Name)
		if p == nil {
			return nil, false
		}
		return p, p.APIKey != "" || spec.IsLocal
	}

	if hasPrefix {
		for _, spec := range providers.Registry {
			if prefix != spec.Name && prefix != spec.RoutePrefix {
				continue
			}
			if p, ok := usable(spec); ok {
				return MatchResult{Provider: p, Name: spec.Name}
			}
		}
	}

	for _, spec := range providers.Registry {
		matched := false
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if p, ok := usable(spec); ok {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}

	for _, spec := range providers.Registry {
		if p, ok := usable(spec); ok {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}
	return MatchResult{}
}

// ProviderParams builds the constructor arguments for the Generator that
// serves model.
func (c *Config) ProviderParams(model string) providers.Params {
	m := c.MatchProvider(model)
	p := providers.Params{DefaultModel: model, ProviderName: m.Name}
	if m.Provider != nil {
		p.APIKey = m.Provider.APIKey
		p.APIBase = m.Provider.APIBase
		p.ExtraHeaders = m.Provider.ExtraHeaders
	}
	return p
}
