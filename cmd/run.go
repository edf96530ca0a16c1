package cmd

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check all doctors once (crontab entry point)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.runOnce(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
