package channel

// WebSocketConfig configures the WebSocket research endpoint.
type WebSocketConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Host           string   `json:"host" yaml:"host"`
	Port           int      `json:"port" yaml:"port"`
	Path           string   `json:"path" yaml:"path"`
	AllowedOrigins []string `json:"allowedOrigins" yaml:"allowedOrigins"` // empty allows any origin
	AllowFrom      []string `json:"allowFrom" yaml:"allowFrom"`
}

func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Host:           "127.0.0.1",
		Port:           18790,
		Path:           "/ws",
		AllowedOrigins: []string{},
		AllowFrom:      []string{},
	}
}
