package providers

import "strings"

// ModelOverride forces request parameters for models matching Pattern.
type ModelOverride struct {
	Pattern   string         // case-insensitive substring of the model name
	Overrides map[string]any // merged into the request body
}

// Spec describes one supported LLM backend.
type Spec struct {
	Name        string   // config key, e.g. "openrouter"
	Keywords    []string // lowercase model-name keywords used for matching
	DisplayName string   // shown by `researchflow status`

	// RoutePrefix is the "<prefix>/" that callers may put in front of a model
	// name to select this backend. It is stripped before the request is sent.
	RoutePrefix string

	IsGateway           bool   // routes any model (OpenRouter, AiHubMix)
	IsLocal             bool   // self-hosted endpoint (vLLM, Ollama)
	DetectByKeyPrefix   string // api key prefix that identifies a gateway
	DetectByBaseKeyword string // api base substring that identifies a gateway
	DefaultAPIBase      string
	StripModelPrefix    bool // gateway wants the bare model name
	Anthropic           bool // speaks the Anthropic Messages API

	ModelOverrides []ModelOverride
}

// Label returns the display name, defaulting to a title-cased Name.
func (s Spec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

// Registry lists the supported backends in match priority order.
var Registry = []Spec{
	{
		Name:        "custom",
		DisplayName: "Custom",
	},
	{
		Name:                "openrouter",
		Keywords:            []string{"openrouter"},
		DisplayName:         "OpenRouter",
		RoutePrefix:         "openrouter",
		IsGateway:           true,
		DetectByKeyPrefix:   "sk-or-",
		DetectByBaseKeyword: "openrouter",
		DefaultAPIBase:      "https://openrouter.ai/api/v1",
	},
	{
		Name:                "aihubmix",
		Keywords:            []string{"aihubmix"},
		DisplayName:         "AiHubMix",
		RoutePrefix:         "aihubmix",
		IsGateway:           true,
		DetectByBaseKeyword: "aihubmix",
		DefaultAPIBase:      "https://aihubmix.com/v1",
		StripModelPrefix:    true,
	},
	{
		Name:           "anthropic",
		Keywords:       []string{"anthropic", "claude"},
		DisplayName:    "Anthropic",
		RoutePrefix:    "anthropic",
		DefaultAPIBase: "https://api.anthropic.com/v1",
		Anthropic:      true,
	},
	{
		Name:           "openai",
		Keywords:       []string{"openai", "gpt"},
		DisplayName:    "OpenAI",
		RoutePrefix:    "openai",
		DefaultAPIBase: "https://api.openai.com/v1",
	},
	{
		Name:           "deepseek",
		Keywords:       []string{"deepseek"},
		DisplayName:    "DeepSeek",
		RoutePrefix:    "deepseek",
		DefaultAPIBase: "https://api.deepseek.com/v1",
	},
	{
		Name:           "gemini",
		Keywords:       []string{"gemini"},
		DisplayName:    "Gemini",
		RoutePrefix:    "gemini",
		DefaultAPIBase: "https://generativelanguage.googleapis.com/v1beta/openai",
	},
	{
		Name:           "groq",
		Keywords:       []string{"groq"},
		DisplayName:    "Groq",
		RoutePrefix:    "groq",
		DefaultAPIBase: "https://api.groq.com/openai/v1",
	},
	{
		Name:           "moonshot",
		Keywords:       []string{"moonshot", "kimi"},
		DisplayName:    "Moonshot",
		RoutePrefix:    "moonshot",
		DefaultAPIBase: "https://api.moonshot.ai/v1",
		ModelOverrides: []ModelOverride{
			{Pattern: "kimi-k2.5", Overrides: map[string]any{"temperature": 1.0}},
		},
	},
	{
		Name:        "vllm",
		Keywords:    []string{"vllm"},
		DisplayName: "vLLM/Local",
		RoutePrefix: "hosted_vllm",
		IsLocal:     true,
	},
	{
		Name:           "ollama",
		Keywords:       []string{"ollama", "llama"},
		DisplayName:    "Ollama",
		RoutePrefix:    "ollama",
		IsLocal:        true,
		DefaultAPIBase: "http://localhost:11434/v1",
	},
}

// normalize lowercases s and folds dashes into underscores.
func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "-", "_")
}

func (s *Spec) matchesKeyword(model string) bool {
	lower := strings.ToLower(model)
	for _, kw := range s.Keywords {
		if strings.Contains(lower, kw) || strings.Contains(normalize(model), normalize(kw)) {
			return true
		}
	}
	return false
}

// FindByModel matches a direct (non-gateway, non-local) backend by an
// explicit "<name>/" prefix first, then by keyword.
func FindByModel(model string) *Spec {
	prefix, _, found := strings.Cut(model, "/")
	var direct []*Spec
	for i := range Registry {
		if !Registry[i].IsGateway && !Registry[i].IsLocal {
			direct = append(direct, &Registry[i])
		}
	}
	if found {
		for _, s := range direct {
			if normalize(prefix) == s.Name {
				return s
			}
		}
	}
	for _, s := range direct {
		if s.matchesKeyword(model) {
			return s
		}
	}
	return nil
}

// FindGateway detects a gateway or local backend by config name, api key
// prefix or api base keyword, in that order.
func FindGateway(name, apiKey, apiBase string) *Spec {
	if s := FindByName(name); s != nil && (s.IsGateway || s.IsLocal) {
		return s
	}
	for i := range Registry {
		s := &Registry[i]
		if s.DetectByKeyPrefix != "" && strings.HasPrefix(apiKey, s.DetectByKeyPrefix) {
			return s
		}
		if s.DetectByBaseKeyword != "" && strings.Contains(apiBase, s.DetectByBaseKeyword) {
			return s
		}
	}
	return nil
}

// FindByName returns the Spec registered under name, or nil.
func FindByName(name string) *Spec {
	for i := range Registry {
		if Registry[i].Name == name {
			return &Registry[i]
		}
	}
	return nil
}
