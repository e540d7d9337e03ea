package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/exiletools/runtracker/cmd/runtracker/log"
	"github.com/exiletools/runtracker/internal/app"
	"github.com/exiletools/runtracker/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Tail the client log and track runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.ValidateForServe(); err != nil {
			return err
		}

		logger, err := log.NewLogger(cfg.LogLevel, cfg.LogDir)
		if err != nil {
			return err
		}
		defer log.FlushAndClose()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return app.Serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
