package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/amaumene/geowatch/internal/app"
	"github.com/amaumene/geowatch/internal/controllers"
	"github.com/amaumene/geowatch/internal/discovery"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/amaumene/geowatch/internal/services/platform"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Known titles used to smoke-test a platform without walking listings
var (
	testMediaSlugs  = []string{"la-infiltrada", "itoiz-udako-sesioak", "gatibu-azken-kontzertua-zuzenean"}
	testSeriesSlugs = []string{"lau-hankan", "krimenak-gure-kronika-beltza"}
)

var (
	testMode   bool
	mediaSlug  string
	seriesSlug string
	noExport   bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "discover and classify content of the configured platforms",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mediaSlug != "" && seriesSlug != "" {
			return errors.New("--media-slug and --series-slug are mutually exclusive")
		}

		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := signalContext()
		defer cancel()

		return scrape(ctx, a)
	},
}

func scrape(ctx context.Context, a *app.App) error {
	var errs []error
	for _, client := range a.Clients {
		summary, err := scrapeClient(ctx, a.Scrape, client)
		if summary != nil {
			fmt.Println(summary.String())
		}
		if err != nil {
			a.Logger.WithError(err).WithField("platform", client.Name()).Error("Scrape failed")
			errs = append(errs, err)
			if ctx.Err() != nil {
				return errors.Join(errs...)
			}
		}
	}

	if !noExport {
		if err := a.Exporter.ExportAll(ctx, ""); err != nil {
			errs = append(errs, fmt.Errorf("export failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

func scrapeClient(ctx context.Context, scrape *controllers.ScrapeController, client platform.Client) (*controllers.RunSummary, error) {
	switch {
	case mediaSlug != "":
		return scrape.CheckMedia(ctx, client, mediaSlug)
	case seriesSlug != "":
		return scrape.CheckSeries(ctx, client, seriesSlug)
	case testMode:
		return scrape.RunCandidates(ctx, client, testCandidates())
	default:
		return scrape.Run(ctx, client, client.Sources())
	}
}

func testCandidates() []discovery.Candidate {
	candidates := make([]discovery.Candidate, 0, len(testMediaSlugs)+len(testSeriesSlugs))
	for _, slug := range testMediaSlugs {
		candidates = append(candidates, discovery.Candidate{Slug: slug, Kind: models.KindVOD})
	}
	for _, slug := range testSeriesSlugs {
		candidates = append(candidates, discovery.Candidate{Slug: slug, Kind: models.KindSeries})
	}
	return candidates
}

func init() {
	flags := scrapeCmd.Flags()
	flags.String("platform", "", "comma separated platforms to scrape (default from PLATFORMS)")
	flags.Int("limit", 0, "stop after this many items per platform")
	flags.Duration("delay", 0, "pause between platform requests")
	flags.BoolVar(&testMode, "test", false, "check a fixed set of known titles")
	flags.StringVar(&mediaSlug, "media-slug", "", "check a single item")
	flags.StringVar(&seriesSlug, "series-slug", "", "check every episode of a single series")
	flags.BoolVar(&noExport, "no-export", false, "skip the JSON export after scraping")

	viper.BindPFlag("PLATFORMS", flags.Lookup("platform"))
	viper.BindPFlag("ITEM_LIMIT", flags.Lookup("limit"))
	viper.BindPFlag("REQUEST_DELAY", flags.Lookup("delay"))

	rootCmd.AddCommand(scrapeCmd)
}
