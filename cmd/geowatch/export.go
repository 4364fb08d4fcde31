package main

import (
	"github.com/spf13/cobra"
)

var exportPlatform string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "write the JSON exports of the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := signalContext()
		defer cancel()

		return a.Exporter.ExportAll(ctx, exportPlatform)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPlatform, "platform", "", "export a single platform")
	rootCmd.AddCommand(exportCmd)
}
