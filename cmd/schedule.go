package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/researchflow/internal/bus"
	"github.com/crystaldolphin/researchflow/internal/cron"
	"github.com/crystaldolphin/researchflow/internal/dependency"
	"github.com/crystaldolphin/researchflow/internal/shared/cmdutils"
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"cron"},
	Short:   "Manage scheduled research jobs",
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleEnableCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
}

// scheduleService opens the job store named by the config.
func scheduleService() (*cron.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cron.NewService(cfg.CronStorePath()), nil
}

// ---- list ------------------------------------------------------------------

var scheduleListAll bool

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE: func(_ *cobra.Command, _ []string) error {
		svc, err := scheduleService()
		if err != nil {
			return err
		}
		jobs := svc.ListJobs(scheduleListAll)
		if len(jobs) == 0 {
			fmt.Println("No scheduled jobs.")
			return nil
		}
		fmt.Printf("%-10s %-20s %-25s %-10s %-17s %s\n", "ID", "Name", "Schedule", "Status", "Next Run", "Deliver To")
		fmt.Println(cmdutils.Rule(100))
		for _, j := range jobs {
			status := "enabled"
			if !j.Enabled {
				status = "disabled"
			}
			nextRun := ""
			if j.State.NextRunAtMs != nil {
				nextRun = time.UnixMilli(*j.State.NextRunAtMs).Format("2006-01-02 15:04")
			}
			fmt.Printf("%-10s %-20s %-25s %-10s %-17s %s\n",
				j.ID, cmdutils.Truncate(j.Name, 19), cmdutils.Truncate(formatSchedule(j.Schedule), 24), status, nextRun, deliveryTarget(j.Payload))
		}
		return nil
	},
}

func init() {
	scheduleListCmd.Flags().BoolVarP(&scheduleListAll, "all", "a", false, "Include disabled jobs")
}

// ---- add -------------------------------------------------------------------

var (
	scheduleAddName    string
	scheduleAddQuery   string
	scheduleAddEvery   int
	scheduleAddCron    string
	scheduleAddTZ      string
	scheduleAddAt      string
	scheduleAddDeliver bool
	scheduleAddTo      string
)

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scheduled research job",
	RunE: func(_ *cobra.Command, _ []string) error {
		sched, err := scheduleFromFlags()
		if err != nil {
			return err
		}

		payload := cron.Payload{Query: scheduleAddQuery, Deliver: scheduleAddDeliver}
		if scheduleAddTo != "" {
			ch, chatID, err := bus.ParseRoutingKey(scheduleAddTo)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			channel := string(ch)
			payload.Channel, payload.To = &channel, &chatID
		}
		if payload.Deliver && payload.To == nil {
			return errors.New("--deliver needs --to <channel>:<chat id>")
		}

		svc, err := scheduleService()
		if err != nil {
			return err
		}
		job, err := svc.AddJob(cron.JobSpec{
			Name:           scheduleAddName,
			Schedule:       sched,
			Payload:        payload,
			DeleteAfterRun: sched.Kind == cron.KindAt,
		})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Added job '%s' (%s)\n", job.Name, job.ID)
		return nil
	},
}

func scheduleFromFlags() (cron.Schedule, error) {
	if scheduleAddTZ != "" && scheduleAddCron == "" {
		return cron.Schedule{}, errors.New("--tz can only be used with --cron")
	}

	switch {
	case scheduleAddEvery > 0:
		everyMs := int64(scheduleAddEvery) * 1000
		return cron.Schedule{Kind: cron.KindEvery, EveryMs: &everyMs}, nil
	case scheduleAddCron != "":
		s := cron.Schedule{Kind: cron.KindCron, Expr: &scheduleAddCron}
		if scheduleAddTZ != "" {
			s.TZ = &scheduleAddTZ
		}
		return s, nil
	case scheduleAddAt != "":
		dt, err := time.ParseInLocation("2006-01-02T15:04:05", scheduleAddAt, time.Local)
		if err != nil {
			dt, err = time.Parse(time.RFC3339, scheduleAddAt)
			if err != nil {
				return cron.Schedule{}, fmt.Errorf("invalid --at value %q: %w", scheduleAddAt, err)
			}
		}
		atMs := dt.UnixMilli()
		return cron.Schedule{Kind: cron.KindAt, AtMs: &atMs}, nil
	}
	return cron.Schedule{}, errors.New("must specify --every, --cron, or --at")
}

func init() {
	scheduleAddCmd.Flags().StringVarP(&scheduleAddName, "name", "n", "", "Job name (required)")
	scheduleAddCmd.Flags().StringVarP(&scheduleAddQuery, "query", "q", "", "Research query (required)")
	scheduleAddCmd.Flags().IntVarP(&scheduleAddEvery, "every", "e", 0, "Run every N seconds")
	scheduleAddCmd.Flags().StringVarP(&scheduleAddCron, "cron", "c", "", "Cron expression (e.g. '0 9 * * *')")
	scheduleAddCmd.Flags().StringVar(&scheduleAddTZ, "tz", "", "IANA timezone for --cron")
	scheduleAddCmd.Flags().StringVar(&scheduleAddAt, "at", "", "Run once at ISO datetime")
	scheduleAddCmd.Flags().BoolVarP(&scheduleAddDeliver, "deliver", "d", false, "Also send the answer to a chat")
	scheduleAddCmd.Flags().StringVar(&scheduleAddTo, "to", "", "Delivery target as <channel>:<chat id>, e.g. telegram:12345")

	_ = scheduleAddCmd.MarkFlagRequired("name")
	_ = scheduleAddCmd.MarkFlagRequired("query")
}

// ---- remove / enable -------------------------------------------------------

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		svc, err := scheduleService()
		if err != nil {
			return err
		}
		if svc.RemoveJob(args[0]) {
			fmt.Printf("✓ Removed job %s\n", args[0])
		} else {
			fmt.Printf("Job %s not found\n", args[0])
		}
		return nil
	},
}

var scheduleEnableDisable bool

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <job-id>",
	Short: "Enable (or disable) a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		svc, err := scheduleService()
		if err != nil {
			return err
		}
		job, ok := svc.EnableJob(args[0], !scheduleEnableDisable)
		if !ok {
			fmt.Printf("Job %s not found\n", args[0])
			return nil
		}
		action := "enabled"
		if scheduleEnableDisable {
			action = "disabled"
		}
		fmt.Printf("✓ Job '%s' %s\n", job.Name, action)
		return nil
	},
}

func init() {
	scheduleEnableCmd.Flags().BoolVar(&scheduleEnableDisable, "disable", false, "Disable instead of enable")
}

// ---- run -------------------------------------------------------------------

var scheduleRunForce bool

var scheduleRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a job now and write its report",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config %s is incomplete:\n%w", resolveConfigPath(), err)
		}
		container, err := dependency.New(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		svc := container.CronService()
		if !svc.RunJob(ctx, args[0], scheduleRunForce) {
			fmt.Printf("Failed to run job %s (not found or disabled; use --force)\n", args[0])
			return nil
		}
		for _, j := range svc.ListJobs(true) {
			if j.ID != args[0] {
				continue
			}
			if j.State.LastError != nil {
				return fmt.Errorf("job %s failed: %s", j.ID, *j.State.LastError)
			}
			if j.State.LastReport != nil {
				fmt.Printf("✓ Report written to %s\n", *j.State.LastReport)
				return nil
			}
		}
		fmt.Println("✓ Job executed")
		return nil
	},
}

func init() {
	scheduleRunCmd.Flags().BoolVarP(&scheduleRunForce, "force", "f", false, "Run even if disabled")
}

func formatSchedule(s cron.Schedule) string {
	switch s.Kind {
	case cron.KindEvery:
		if s.EveryMs != nil {
			return fmt.Sprintf("every %ds", *s.EveryMs/1000)
		}
	case cron.KindCron:
		if s.Expr != nil {
			if s.TZ != nil {
				return *s.Expr + " (" + *s.TZ + ")"
			}
			return *s.Expr
		}
	case cron.KindAt:
		return "one-time"
	}
	return s.Kind
}

// deliveryTarget renders where a job's answer is sent, or "-".
func deliveryTarget(p cron.Payload) string {
	if !p.Deliver || p.Channel == nil || p.To == nil {
		return "-"
	}
	return bus.RoutingKey(bus.Channel(*p.Channel), *p.To)
}
