package cmd

import (
	"fmt"

	"medibot/config"
	"medibot/storage"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file without contacting Doctolib or Telegram",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ %s is valid\n", cfgFile)
		for _, msg := range cfg.SkippedDoctors() {
			fmt.Fprintf(out, "⚠️ %s\n", msg)
		}
		fmt.Fprintf(out, "📅 Lookahead: %d days, hourly updates: %t, delay: %s, timeout: %s\n",
			cfg.UpcomingDays, cfg.NotifyHourly, cfg.RequestDelay(), cfg.Timeout())
		fmt.Fprintf(out, "👨‍⚕️ %d doctors:\n", len(cfg.Doctors))
		for i, d := range cfg.Doctors {
			fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, d.Name, d.BookingURL)
		}

		if cfg.Redis.Addr != "" {
			store := storage.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.LockTTL())
			defer store.Close()
			if err := store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("redis %s unreachable: %w", cfg.Redis.Addr, err)
			}
			fmt.Fprintf(out, "🔒 Run lock: redis %s reachable\n", cfg.Redis.Addr)
		}
		return nil
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write an example config file if none exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := config.WriteExample(cfgFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !created {
			fmt.Fprintf(out, "ℹ️ %s already exists, leaving it untouched\n", cfgFile)
			return nil
		}
		fmt.Fprintf(out, "✅ Created example config file at: %s\n", cfgFile)
		fmt.Fprintln(out, "📝 Please edit the file before running medibot.")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "medibot %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd, initConfigCmd, versionCmd)
}
