package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/researchflow/internal/providers"
	"github.com/crystaldolphin/researchflow/internal/shared/cmdutils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show researchflow configuration status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := resolveConfigPath()

	fmt.Printf("%s researchflow Status\n\n", cmdutils.Logo)

	cfgMark := "✗"
	if _, err := os.Stat(cfgPath); err == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Research:  %s (max %d tool iterations)\n", cfg.Agents.Research.Model, cfg.Agents.Research.MaxToolIterations)
	fmt.Printf("Draft:     %s\n", cfg.Agents.DraftModel())

	searchMark := "(no API key)"
	if cfg.Search.APIKey != "" {
		searchMark = "✓"
	}
	fmt.Printf("Search:    %s, %s depth, %d results %s\n\n", cfg.Search.Provider, cfg.Search.Depth, cfg.Search.MaxResults, searchMark)

	fmt.Println("Providers:")
	for _, spec := range providers.Registry {
		p := cfg.Providers.ByName(spec.Name)
		if p == nil {
			continue
		}
		label := spec.Label()
		switch {
		case spec.IsLocal:
			if p.APIBase != "" {
				fmt.Printf("  %-20s ✓ %s\n", label, p.APIBase)
			} else {
				fmt.Printf("  %-20s (not set)\n", label)
			}
		case p.APIKey != "":
			fmt.Printf("  %-20s ✓\n", label)
		default:
			fmt.Printf("  %-20s (not set)\n", label)
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nNot ready:\n%v\n", err)
		return nil
	}
	fmt.Println("\n✓ Ready to research")
	return nil
}
