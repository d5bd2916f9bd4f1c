package provider

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey" yaml:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty" yaml:"extraHeaders,omitempty"`
}

// ProvidersConfig maps a registry name ("openai", "anthropic", ...) to its
// credentials.
type ProvidersConfig map[string]ProviderConfig

func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{}
}

// ByName returns the credentials registered under name, or nil.
func (p ProvidersConfig) ByName(name string) *ProviderConfig {
	pc, ok := p[name]
	if !ok {
		return nil
	}
	return &pc
}
