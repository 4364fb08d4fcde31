package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run scheduled scrapes and the status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer a.Scheduler.Stop()

	a.Logger.Info("geowatch is running")

	// Start returns once ctx is cancelled and the server has shut down
	if err := a.Server.Start(ctx); err != nil {
		return err
	}

	a.Logger.Info("geowatch stopped")
	return nil
}

func init() {
	serveCmd.Flags().String("port", "", "HTTP port (default from SERVER_PORT)")
	serveCmd.Flags().String("schedule", "", "cron schedule of scrape runs (default from SCHEDULE)")
	viper.BindPFlag("SERVER_PORT", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("SCHEDULE", serveCmd.Flags().Lookup("schedule"))
	rootCmd.AddCommand(serveCmd)
}
