package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethanbaker/riskwatch/internal/api"
	"github.com/ethanbaker/riskwatch/internal/logging"
	"github.com/ethanbaker/riskwatch/internal/pipeline"
	"github.com/ethanbaker/riskwatch/internal/planner"
	"github.com/ethanbaker/riskwatch/internal/scheduler"
	"github.com/ethanbaker/riskwatch/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const defaultRunSchedule = "0 6 * * *"

// app carries what every command needs after flag parsing
type app struct {
	envFile string
	verbose bool

	cfg    *utils.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "riskwatch",
		Short: "Curate a knowledge base of culturally risky terms",
		Long: `riskwatch mines candidate terms (slang, dog whistles, people, groups, trends)
from an LLM or a seed file, verifies them against a public lexicon, merges them into
the stored knowledge base and archives entries that fall out of the rolling window.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = utils.NewConfigFromEnv(a.envFile)

			level := a.cfg.GetWithDefault("LOG_LEVEL", "info")
			if a.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, a.cfg.GetBool("LOG_DEVELOPMENT"))
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	envFile := ".env"
	if v := os.Getenv("ENV_FILE"); v != "" {
		envFile = v
	}
	root.PersistentFlags().StringVar(&a.envFile, "env", envFile, "path to the .env file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd(a), newSweepCmd(a), newPlanCmd(a), newServeCmd(a))
	return root
}

// newRunCmd runs one full curation pass
func newRunCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one curation pass: sweep, re-verify, mine, verify, merge and save",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			w, err := buildPipeline(cmd.Context(), a.cfg, a.logger, true)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, w.Close()) }()

			report, err := w.pipeline.Run(cmd.Context())
			if report != nil {
				if printErr := printReport(cmd, report, asJSON); printErr != nil {
					return multierr.Append(err, printErr)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return cmd
}

// newSweepCmd archives stale entries without mining
func newSweepCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Archive entries outside the rolling window and save",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			w, err := buildPipeline(cmd.Context(), a.cfg, a.logger, false)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, w.Close()) }()

			report, err := w.pipeline.Sweep(cmd.Context())
			if report != nil {
				if printErr := printReport(cmd, report, asJSON); printErr != nil {
					return multierr.Append(err, printErr)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return cmd
}

// newPlanCmd prints the topics a run would mine for a seed
func newPlanCmd(a *app) *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the topic plan for a seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadPlan(a.cfg)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.GetUint64WithDefault("PLAN_SEED", 0)
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}

			topics, err := planner.Plan(plan, seed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed %d: %d topics (per topic %d)\n", seed, len(topics), plan.PerTopic)
			for i, topic := range topics {
				fmt.Fprintf(out, "%3d. %s\n", i+1, topic)
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 0, "shuffle seed (0 derives one from the clock)")
	return cmd
}

// newServeCmd runs curation on a cron schedule and serves the status API
func newServeCmd(a *app) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run curation on RUN_SCHEDULE and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			w, err := buildPipeline(ctx, a.cfg, a.logger, true)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, w.Close()) }()

			m := scheduler.NewManager(a.logger)
			defer m.Stop()

			tasks := []*scheduler.Task{{
				Key:  "curate",
				Spec: a.cfg.GetWithDefault("RUN_SCHEDULE", defaultRunSchedule),
				Run: func(ctx context.Context) error {
					_, err := w.pipeline.Run(ctx)
					return err
				},
			}}
			if spec := a.cfg.Get("SWEEP_SCHEDULE"); spec != "" {
				tasks = append(tasks, &scheduler.Task{
					Key:  "sweep",
					Spec: spec,
					Run: func(ctx context.Context) error {
						_, err := w.pipeline.Sweep(ctx)
						return err
					},
				})
			}
			if err := m.LoadTasks(tasks); err != nil {
				return err
			}

			if runNow {
				go func() { _ = m.RunNow("curate") }()
			}

			return api.Start(ctx, a.cfg, api.Options{
				Reports:  w.pipeline,
				Schedule: m,
				Gatherer: w.registry,
			}, a.logger)
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "start a curation run immediately")
	return cmd
}

func printReport(cmd *cobra.Command, report *pipeline.RunReport, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	_, err := fmt.Fprintf(out,
		"%s %s: %d topics (%d failed), %d mined, %d merged (%d new, %d revived), %d rejected, %d archived; %d active, %d archived total\n",
		report.Kind, report.RunID, report.TopicsAttempted, report.TopicsFailed, report.Mined,
		report.Merged(), report.Inserted, report.Revived, report.Rejected, report.Archived,
		report.TotalActive, report.TotalArchived,
	)
	return err
}
