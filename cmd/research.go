package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/researchflow/internal/bus"
	"github.com/crystaldolphin/researchflow/internal/config"
	"github.com/crystaldolphin/researchflow/internal/dependency"
	"github.com/crystaldolphin/researchflow/internal/pipeline"
	"github.com/crystaldolphin/researchflow/internal/report"
	"github.com/crystaldolphin/researchflow/internal/schema"
	"github.com/crystaldolphin/researchflow/internal/shared/cmdutils"
)

var (
	researchDepth      string
	researchMaxResults int
	researchOutput     string
	researchTimeout    time.Duration
)

var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Research a question and print the answer",
	Long: "Research a question on the web and print a structured answer.\n" +
		"Without a query, starts an interactive session.",
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringVar(&researchDepth, "depth", "", "Search depth: basic or advanced (default from config)")
	researchCmd.Flags().IntVar(&researchMaxResults, "max-results", 0, "Results per search (default from config)")
	researchCmd.Flags().StringVarP(&researchOutput, "output", "o", "", "Write the answer as a Markdown report")
	researchCmd.Flags().Lookup("output").NoOptDefVal = report.DefaultFileName
	researchCmd.Flags().DurationVar(&researchTimeout, "timeout", 10*time.Minute, "Overall deadline for one query")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runResearch(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyResearchFlags(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s is incomplete:\n%w", resolveConfigPath(), err)
	}

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(args) == 0 {
		return runInteractive(ctx, container.ServiceLoop())
	}
	return runSingleQuery(ctx, container.Orchestrator(), strings.Join(args, " "))
}

// applyResearchFlags overrides the search settings given on the command line.
func applyResearchFlags(cfg *config.Config) error {
	if researchDepth != "" {
		if !schema.SearchDepth(researchDepth).Valid() {
			return fmt.Errorf("--depth must be basic or advanced, got %q", researchDepth)
		}
		cfg.Search.Depth = researchDepth
	}
	if researchMaxResults < 0 {
		return errors.New("--max-results must be positive")
	}
	if researchMaxResults > 0 {
		cfg.Search.MaxResults = researchMaxResults
	}
	return nil
}

// runSingleQuery researches one query, prints the answer and optionally
// saves it as a report.
func runSingleQuery(ctx context.Context, orch *pipeline.Orchestrator, query string) error {
	ctx, cancel := context.WithTimeout(ctx, researchTimeout)
	defer cancel()

	ctx = pipeline.WithProgress(ctx, func(s string) { cmdutils.PrintProgress(os.Stderr, s) })
	state, err := orch.Execute(ctx, query)
	if err != nil {
		fmt.Fprintln(os.Stderr, pipeline.Describe(err))
		return err
	}

	cmdutils.PrintResponse(os.Stdout, state.Answer)

	if researchOutput == "" {
		return nil
	}
	err = report.WriteFile(researchOutput, report.Report{
		Query:    state.Input,
		Created:  time.Now(),
		Findings: len(state.ResearchData),
		Source:   string(bus.ChannelCLI),
		Answer:   state.Answer,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Report saved to %s\n", researchOutput)
	return nil
}

// runInteractive reads one query per line and answers each before
// prompting again.
func runInteractive(ctx context.Context, loop schema.ServiceLooper) error {
	fmt.Printf("%s Interactive mode (type 'exit' or Ctrl+C to quit)\n\n", cmdutils.Logo)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("You: ")

		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				fmt.Println("\nGoodbye!")
				return nil
			}
			line = strings.TrimSpace(l)
		case <-ctx.Done():
			fmt.Println("\nGoodbye!")
			return nil
		}

		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		qctx, cancel := context.WithTimeout(ctx, researchTimeout)
		qctx = pipeline.WithProgress(qctx, func(s string) { cmdutils.PrintProgress(os.Stdout, s) })
		reply := loop.ProcessDirect(qctx, line, string(bus.ChannelCLI), string(bus.ChatIdDirect))
		cancel()

		cmdutils.PrintResponse(os.Stdout, reply)
	}
}
