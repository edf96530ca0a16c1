// Package cmd contains the medibot CLI commands
package cmd

import (
	"context"

	"medibot/config"
	"medibot/logger"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "medibot",
	Short: "Doctolib appointment notifier",
	Long: `medibot checks Doctolib availabilities for a list of doctors and sends a
Telegram message when an appointment shows up within the lookahead window.

Example usage:
  medibot init-config --config /etc/medibot/config.yaml
  medibot validate --config /etc/medibot/config.yaml
  medibot run --config /etc/medibot/config.yaml        # one pass, for crontab
  medibot schedule --config /etc/medibot/config.yaml   # built-in cron loop`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Console()
	},
}

// Execute runs the root command; ctx is cancelled on SIGINT/SIGTERM
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "path to config file")
}

// loadConfig reads the config and switches logging to stdout + log file.
// The returned func closes the log file.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	closer, err := logger.Setup(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	for _, msg := range cfg.SkippedDoctors() {
		log.Warn().Msg("⚠️ " + msg)
	}
	log.Info().Msgf("✅ Configuration OK - %d doctors configured", len(cfg.Doctors))

	return cfg, func() { _ = closer.Close() }, nil
}
