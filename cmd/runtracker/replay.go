package main

import (
	"github.com/spf13/cobra"

	"github.com/exiletools/runtracker/cmd/runtracker/log"
	"github.com/exiletools/runtracker/internal/app"
	"github.com/exiletools/runtracker/internal/config"
)

var replayCmd = &cobra.Command{
	Use:   "replay <client-log-file>",
	Short: "Re-import runs from an existing client log",
	Long: `Runs the full pipeline over a log file from its beginning, with
notifications disabled. Useful to rebuild history after the settings or
the dialogue tables changed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err := log.NewLogger(cfg.LogLevel, cfg.LogDir)
		if err != nil {
			return err
		}
		defer log.FlushAndClose()

		return app.Replay(cmd.Context(), cfg, logger, args[0])
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
