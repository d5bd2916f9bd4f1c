package agent

// StepConfig configures the model behind one pipeline step.
type StepConfig struct {
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"maxTokens" yaml:"maxTokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// ResearchConfig configures the research step and its tool loop.
type ResearchConfig struct {
	StepConfig        `yaml:",inline"`
	MaxToolIterations int `json:"maxToolIterations" yaml:"maxToolIterations"`
	// RequireSearch rejects an answer given before any tool call.
	RequireSearch bool `json:"requireSearch" yaml:"requireSearch"`
}

// DraftConfig configures the drafting step. An empty model reuses the
// research model.
type DraftConfig struct {
	StepConfig `yaml:",inline"`
}

type AgentsConfig struct {
	Research ResearchConfig `json:"research" yaml:"research"`
	Draft    DraftConfig    `json:"draft" yaml:"draft"`
}

func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		Research: ResearchConfig{
			StepConfig: StepConfig{
				Model:       "openai/gpt-4o-mini",
				MaxTokens:   4096,
				Temperature: 0,
			},
			MaxToolIterations: 5,
		},
		Draft: DraftConfig{
			StepConfig: StepConfig{
				Model:       "openai/gpt-4o",
				MaxTokens:   4096,
				Temperature: 0.3,
			},
		},
	}
}

// DraftModel returns the effective drafting model.
func (a AgentsConfig) DraftModel() string {
	if a.Draft.Model != "" {
		return a.Draft.Model
	}
	return a.Research.Model
}
