package cmd

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cronExpr     string
	runImmediate bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the check on a cron schedule until interrupted",
	Long: `schedule replaces the crontab entry for container deployments. Every tick
performs a full, independent pass; a tick that fires while the previous pass
is still running is skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		expr := cfg.Schedule.Cron
		if cronExpr != "" {
			expr = cronExpr
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := gocron.NewScheduler(gocron.WithLocation(cfg.Location()))
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}

		opts := []gocron.JobOption{
			gocron.WithName("medibot-run"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}
		if runImmediate {
			opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
		}

		job, err := s.NewJob(
			gocron.CronJob(expr, false),
			gocron.NewTask(func() {
				// errors are already logged and reported to Telegram
				_ = a.runOnce(ctx)
			}),
			opts...,
		)
		if err != nil {
			_ = s.Shutdown()
			return fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}

		s.Start()
		if next, err := job.NextRun(); err == nil {
			log.Info().Str("cron", expr).Time("next_run", next).Msg("⏰ Scheduler started")
		}

		<-ctx.Done()
		log.Info().Msg("🛑 Stopping scheduler...")
		return s.Shutdown()
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&cronExpr, "cron", "", "cron expression (default from config schedule.cron)")
	scheduleCmd.Flags().BoolVar(&runImmediate, "now", false, "run one pass immediately after start")
	rootCmd.AddCommand(scheduleCmd)
}
