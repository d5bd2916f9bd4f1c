package gateway

// GatewayConfig holds gateway process settings.
type GatewayConfig struct {
	// MaxConcurrentRuns bounds how many research runs the gateway serves
	// at once.
	MaxConcurrentRuns int `json:"maxConcurrentRuns" yaml:"maxConcurrentRuns"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{MaxConcurrentRuns: 4}
}

// TimeoutsConfig holds the per-call deadlines, in seconds.
type TimeoutsConfig struct {
	SearchSeconds     int `json:"searchSeconds" yaml:"searchSeconds"`
	GenerationSeconds int `json:"generationSeconds" yaml:"generationSeconds"`
}

func DefaultTimeoutsConfig() TimeoutsConfig {
	return TimeoutsConfig{SearchSeconds: 60, GenerationSeconds: 120}
}
