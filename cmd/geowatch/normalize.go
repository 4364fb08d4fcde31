package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var normalizePlatform string

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "renumber stored seasons of every series as 1..N",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		updated, err := a.DB.NormalizeSeasons(cmd.Context(), normalizePlatform)
		if err != nil {
			return fmt.Errorf("failed to normalize seasons: %w", err)
		}
		fmt.Printf("normalized %d episodes\n", updated)
		return nil
	},
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizePlatform, "platform", "", "normalize a single platform")
	rootCmd.AddCommand(normalizeCmd)
}
