package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/amaumene/geowatch/internal/models"
	"github.com/spf13/cobra"
)

var statsPlatform string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print catalog statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := a.DB.GetStatistics(cmd.Context(), statsPlatform)
		if err != nil {
			return err
		}
		printStats(os.Stdout, stats)
		return nil
	},
}

func printStats(w io.Writer, stats *models.Statistics) {
	fmt.Fprintf(w, "total %d\n", stats.TotalContent)

	kinds := make([]string, 0, len(stats.ByType))
	for kind := range stats.ByType {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %s %d\n", kind, stats.ByType[kind])
	}

	fmt.Fprintf(w, "restricted %d (%.1f%%)\n", stats.GeoRestrictedCount, stats.GeoRestrictedPct)
	fmt.Fprintf(w, "accessible %d\n", stats.AccessibleCount)
	fmt.Fprintf(w, "unknown %d\n", stats.UnknownCount)
	if stats.LastCheck != nil {
		fmt.Fprintf(w, "last check %s\n", stats.LastCheck.Format(time.RFC3339))
	}
}

func init() {
	statsCmd.Flags().StringVar(&statsPlatform, "platform", "", "limit statistics to one platform")
	rootCmd.AddCommand(statsCmd)
}
