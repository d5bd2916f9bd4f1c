// Package config defines the configuration schema for researchflow.
//
// The file lives at ~/.researchflow/config.json (camelCase keys). A
// config.yaml or config.yml file with the same keys is accepted too.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/crystaldolphin/researchflow/internal/config/agent"
	"github.com/crystaldolphin/researchflow/internal/config/channel"
	"github.com/crystaldolphin/researchflow/internal/config/gateway"
	"github.com/crystaldolphin/researchflow/internal/config/provider"
	"github.com/crystaldolphin/researchflow/internal/config/schedule"
	"github.com/crystaldolphin/researchflow/internal/config/search"
)

// Config is the root configuration object.
type Config struct {
	Agents    agent.AgentsConfig       `json:"agents" yaml:"agents"`
	Providers provider.ProvidersConfig `json:"providers" yaml:"providers"`
	Search    search.SearchConfig      `json:"search" yaml:"search"`
	Timeouts  gateway.TimeoutsConfig   `json:"timeouts" yaml:"timeouts"`
	Channels  channel.ChannelsConfig   `json:"channels" yaml:"channels"`
	Gateway   gateway.GatewayConfig    `json:"gateway" yaml:"gateway"`
	Schedule  schedule.ScheduleConfig  `json:"schedule" yaml:"schedule"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Agents:    agent.DefaultAgentsConfig(),
		Providers: provider.DefaultProvidersConfig(),
		Search:    search.DefaultSearchConfig(),
		Timeouts:  gateway.DefaultTimeoutsConfig(),
		Channels:  channel.DefaultChannelsConfig(),
		Gateway:   gateway.DefaultGatewayConfig(),
		Schedule:  schedule.DefaultScheduleConfig(),
	}
}

// SearchTimeout is the deadline applied to every Searcher call.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Timeouts.SearchSeconds) * time.Second
}

// GenerationTimeout is the deadline applied to every Generator call.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Timeouts.GenerationSeconds) * time.Second
}

// CronStorePath returns the scheduled jobs file.
func (c *Config) CronStorePath() string {
	if c.Schedule.StorePath != "" {
		return expandHome(c.Schedule.StorePath)
	}
	return filepath.Join(DataDir(), "cron", "jobs.json")
}

// ReportDir returns the directory scheduled reports are written to.
func (c *Config) ReportDir() string {
	if c.Schedule.ReportDir != "" {
		return expandHome(c.Schedule.ReportDir)
	}
	return filepath.Join(DataDir(), "reports")
}

func expandHome(p string) string {
	if len(p) >= 2 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
