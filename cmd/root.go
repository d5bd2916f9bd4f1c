// Package cmd implements the researchflow CLI using cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/researchflow/internal/config"
	"github.com/crystaldolphin/researchflow/internal/shared/cmdutils"
)

const version = "0.1.0"

var (
	showLogs   bool
	configPath string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "researchflow",
	Short: cmdutils.Logo + " researchflow - web research assistant",
	Long:  cmdutils.Logo + " researchflow searches the web for a question, then drafts a structured answer from what it found",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging(showLogs)
	},
	SilenceUsage: true,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().BoolVar(&showLogs, "logs", false, "Show runtime logs")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.researchflow/config.json)")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scheduleCmd)
}

// setupLogging installs the default slog handler: Info and above with
// --logs, warnings only otherwise.
func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.ConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
