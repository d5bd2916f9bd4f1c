package schedule

// ScheduleConfig controls the scheduled research service.
type ScheduleConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	StorePath string `json:"storePath,omitempty" yaml:"storePath,omitempty"` // defaults to <dataDir>/cron/jobs.json
	ReportDir string `json:"reportDir,omitempty" yaml:"reportDir,omitempty"` // defaults to <dataDir>/reports
}

func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{Enabled: true}
}
