package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/amaumene/geowatch/internal/discovery"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/amaumene/geowatch/internal/services/platform"
	"github.com/amaumene/geowatch/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// ErrNotFound is returned when the platform answers 404 for an identifier.
// Such items are skipped and nothing is persisted.
var ErrNotFound = errors.New("content not found")

// ErrNoSeriesContext is returned for a standalone episode whose payload names no series
var ErrNoSeriesContext = errors.New("episode has no series context")

// defaultRestrictionError is stored when a 403 body carries no error code
const defaultRestrictionError = "MEDIA_GEO_RESTRICTED_ACCESS"

// Item is one classifiable catalog entry produced by the resolver
type Item struct {
	Slug          string
	Title         string
	Kind          models.ContentKind
	SeriesSlug    *string
	SeriesTitle   *string
	SeasonNumber  *int
	EpisodeNumber *int
	Metadata      json.RawMessage
	APIRestricted bool
	StatusCode    int // status of the metadata request
}

// Resolution is the outcome of resolving one candidate.
// A series resolves to one item per episode, everything else to a single item.
type Resolution struct {
	Candidate discovery.Candidate
	Items     []*Item
}

// restrictionStub is the metadata stored for items blocked at API level
type restrictionStub struct {
	Error         string `json:"error"`
	APIRestricted bool   `json:"api_restricted"`
}

// episodeSummary is the flattened metadata stored for episodes found in a series tree
type episodeSummary struct {
	EpisodeID     any    `json:"episode_id"`
	EpisodeSlug   string `json:"episode_slug"`
	EpisodeTitle  string `json:"episode_title"`
	EpisodeNumber *int   `json:"episode_number"`
	Duration      *int   `json:"duration"`
	SeriesSlug    string `json:"series_slug"`
	SeriesTitle   string `json:"series_title"`
	SeasonNumber  *int   `json:"season_number"`
	Kind          string `json:"kind"`
	PublishedOn   string `json:"published_on,omitempty"`
}

// Resolver turns candidates into classifiable items
type Resolver struct {
	client platform.Client
	logger *logrus.Logger
}

// NewResolver creates a new resolver
func NewResolver(client platform.Client, logger *logrus.Logger) *Resolver {
	return &Resolver{
		client: client,
		logger: logger,
	}
}

// Resolve fetches the metadata of a candidate.
// A 403 is a valid outcome (API-restricted item), a 404 returns ErrNotFound,
// any other status or transport failure is an error.
func (r *Resolver) Resolve(ctx context.Context, candidate discovery.Candidate) (*Resolution, error) {
	var (
		resp *platform.Response
		err  error
	)
	switch candidate.Kind {
	case models.KindSeries:
		resp, err = r.client.FetchSeries(ctx, candidate.Slug)
	case models.KindLiveChannel:
		resp, err = r.client.FetchChannel(ctx, candidate.Slug)
	default:
		resp, err = r.client.FetchItem(ctx, candidate.Slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", candidate.Slug, err)
	}

	resolution := &Resolution{Candidate: candidate}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		item, err := restrictedItem(candidate, resp)
		if err != nil {
			return nil, err
		}
		resolution.Items = []*Item{item}
		return resolution, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", candidate.Slug, ErrNotFound)
	default:
		return nil, fmt.Errorf("fetching %s returned unexpected status %d", candidate.Slug, resp.StatusCode)
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("metadata of %s is not valid JSON", candidate.Slug)
	}

	switch candidate.Kind {
	case models.KindSeries:
		resolution.Items = r.expandSeries(candidate.Slug, resp.Body)
	case models.KindEpisode:
		item, err := standaloneEpisode(candidate.Slug, resp.Body)
		if err != nil {
			return nil, err
		}
		resolution.Items = []*Item{item}
	default:
		resolution.Items = []*Item{{
			Slug:       candidate.Slug,
			Title:      titleOr(gjson.GetBytes(resp.Body, "title"), candidate.Slug),
			Kind:       candidate.Kind,
			Metadata:   json.RawMessage(resp.Body),
			StatusCode: resp.StatusCode,
		}}
	}

	return resolution, nil
}

// expandSeries walks seasons[*].episodes[*] of a series tree
func (r *Resolver) expandSeries(slug string, body []byte) []*Item {
	tree := gjson.ParseBytes(body)
	seriesSlug := slug
	seriesTitle := titleOr(tree.Get("title"), slug)

	var items []*Item
	for seasonIndex, season := range tree.Get("seasons").Array() {
		seasonNumber := intField(season, "season_number", "number")
		if seasonNumber == nil {
			position := seasonIndex + 1
			seasonNumber = &position
		}

		for _, episode := range season.Get("episodes").Array() {
			episodeSlug := episode.Get("slug").String()
			if episodeSlug == "" {
				r.logger.WithField("series", slug).Debug("Skipping episode without slug")
				continue
			}

			summary := episodeSummary{
				EpisodeID:     episode.Get("id").Value(),
				EpisodeSlug:   episodeSlug,
				EpisodeTitle:  titleOr(episode.Get("title"), episodeSlug),
				EpisodeNumber: intField(episode, "episode_number", "number"),
				Duration:      intField(episode, "duration"),
				SeriesSlug:    seriesSlug,
				SeriesTitle:   seriesTitle,
				SeasonNumber:  seasonNumber,
				Kind:          string(models.KindEpisode),
				PublishedOn:   episode.Get("published_on").String(),
			}
			metadata, err := json.Marshal(summary)
			if err != nil {
				r.logger.WithError(err).WithField("episode", episodeSlug).Error("Failed to encode episode summary")
				continue
			}

			items = append(items, &Item{
				Slug:          episodeSlug,
				Title:         summary.EpisodeTitle,
				Kind:          models.KindEpisode,
				SeriesSlug:    &seriesSlug,
				SeriesTitle:   &seriesTitle,
				SeasonNumber:  seasonNumber,
				EpisodeNumber: summary.EpisodeNumber,
				Metadata:      metadata,
				StatusCode:    http.StatusOK,
			})
		}
	}

	r.logger.WithFields(logrus.Fields{
		"series":   slug,
		"episodes": len(items),
	}).Debug("Expanded series tree")

	return items
}

// standaloneEpisode reads the series context of an episode fetched on its own
func standaloneEpisode(slug string, body []byte) (*Item, error) {
	doc := gjson.ParseBytes(body)

	seriesSlug := firstString(doc, "series.slug", "series_slug")
	if seriesSlug == "" {
		return nil, fmt.Errorf("%s: %w", slug, ErrNoSeriesContext)
	}
	seriesTitle := firstString(doc, "series.title", "series_title")
	if seriesTitle == "" {
		seriesTitle = utils.HumanizeSlug(seriesSlug)
	}

	return &Item{
		Slug:          slug,
		Title:         titleOr(doc.Get("title"), slug),
		Kind:          models.KindEpisode,
		SeriesSlug:    &seriesSlug,
		SeriesTitle:   &seriesTitle,
		SeasonNumber:  intField(doc, "season_number", "season.number"),
		EpisodeNumber: intField(doc, "episode_number", "number"),
		Metadata:      json.RawMessage(body),
		StatusCode:    http.StatusOK,
	}, nil
}

// restrictedItem builds the stub of an item blocked at API level.
// A restricted episode still needs a series slug in the error body.
func restrictedItem(candidate discovery.Candidate, resp *platform.Response) (*Item, error) {
	doc := gjson.ParseBytes(resp.Body)

	stub := restrictionStub{Error: defaultRestrictionError, APIRestricted: true}
	if code := doc.Get("error"); code.Type == gjson.String && code.Str != "" {
		stub.Error = code.Str
	}
	metadata, err := json.Marshal(stub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode restriction stub of %s: %w", candidate.Slug, err)
	}

	item := &Item{
		Slug:          candidate.Slug,
		Title:         utils.HumanizeSlug(candidate.Slug),
		Kind:          candidate.Kind,
		Metadata:      metadata,
		APIRestricted: true,
		StatusCode:    resp.StatusCode,
	}

	if candidate.Kind == models.KindEpisode {
		seriesSlug := firstString(doc, "series.slug", "series_slug")
		if seriesSlug == "" {
			return nil, fmt.Errorf("%s: %w", candidate.Slug, ErrNoSeriesContext)
		}
		seriesTitle := firstString(doc, "series.title", "series_title")
		if seriesTitle == "" {
			seriesTitle = utils.HumanizeSlug(seriesSlug)
		}
		item.SeriesSlug = &seriesSlug
		item.SeriesTitle = &seriesTitle
		item.SeasonNumber = intField(doc, "season_number", "season.number")
		item.EpisodeNumber = intField(doc, "episode_number", "number")
	}

	return item, nil
}

func titleOr(title gjson.Result, slug string) string {
	if title.Type == gjson.String && title.Str != "" {
		return title.Str
	}
	return utils.HumanizeSlug(slug)
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, path := range paths {
		if value := doc.Get(path); value.Type == gjson.String && value.Str != "" {
			return value.Str
		}
	}
	return ""
}

func intField(doc gjson.Result, paths ...string) *int {
	for _, path := range paths {
		if value := doc.Get(path); value.Type == gjson.Number {
			n := int(value.Int())
			return &n
		}
	}
	return nil
}
