package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/geowatch/internal/config"
	"github.com/amaumene/geowatch/internal/discovery"
	"github.com/amaumene/geowatch/internal/metrics"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/amaumene/geowatch/internal/services/platform"
	"github.com/amaumene/geowatch/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errLimitReached stops a run once the configured item limit is hit
var errLimitReached = errors.New("item limit reached")

// RunSummary counts the outcomes of one run
type RunSummary struct {
	RunID      string
	Platform   string
	StartedAt  time.Time
	Duration   time.Duration
	Discovered int // unique identifiers taken from listings
	Checked    int // items classified and stored
	Restricted int
	Accessible int
	Unknown    int
	Skipped    int // not found, ignored or without series context
	Failed     int
}

func (s *RunSummary) String() string {
	return fmt.Sprintf("%s: %d checked (%d restricted, %d accessible, %d unknown), %d skipped, %d failed in %s",
		s.Platform, s.Checked, s.Restricted, s.Accessible, s.Unknown, s.Skipped, s.Failed, s.Duration.Round(time.Millisecond))
}

// ScrapeController runs discovery, resolution, classification and persistence for a platform
type ScrapeController struct {
	db       *models.Database
	ignore   *utils.IgnoreList
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	delay    time.Duration
	limit    int
	maxDepth int
	logger   *logrus.Logger
}

// NewScrapeController creates a new scrape controller
func NewScrapeController(cfg *config.Config, db *models.Database, ignore *utils.IgnoreList, m *metrics.Metrics, tracer trace.Tracer, logger *logrus.Logger) *ScrapeController {
	return &ScrapeController{
		db:       db,
		ignore:   ignore,
		metrics:  m,
		tracer:   tracer,
		delay:    cfg.RequestDelay,
		limit:    cfg.ItemLimit,
		maxDepth: cfg.MaxDepth,
		logger:   logger,
	}
}

// Run walks every discovery source in order and checks each new identifier.
// It fails only when login fails or ctx is cancelled; item failures are counted.
func (c *ScrapeController) Run(ctx context.Context, client platform.Client, sources []platform.Source) (*RunSummary, error) {
	return c.execute(ctx, client, func(r *run) error {
		for _, source := range sources {
			log := c.logger.WithFields(logrus.Fields{
				"platform": client.Name(),
				"source":   source.Name,
			})
			log.Info("Walking discovery source")

			doc, err := r.client.FetchListing(ctx, source)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.WithError(err).Error("Failed to fetch listing")
				continue
			}

			for candidate := range discovery.Extract(doc, source.Kind, discovery.WithMaxDepth(c.maxDepth)) {
				if err := r.process(ctx, candidate); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RunCandidates checks a fixed list of identifiers without walking listings
func (c *ScrapeController) RunCandidates(ctx context.Context, client platform.Client, candidates []discovery.Candidate) (*RunSummary, error) {
	return c.execute(ctx, client, func(r *run) error {
		for _, candidate := range candidates {
			if err := r.process(ctx, candidate); err != nil {
				return err
			}
		}
		return nil
	})
}

// CheckMedia checks a single standalone item, keeping its stored kind when known
func (c *ScrapeController) CheckMedia(ctx context.Context, client platform.Client, slug string) (*RunSummary, error) {
	kind := models.KindVOD
	if rec, err := c.db.GetContent(ctx, client.Name(), slug); err == nil && !rec.Kind.IsSeries() {
		kind = rec.Kind
	}
	return c.RunCandidates(ctx, client, []discovery.Candidate{{Slug: slug, Kind: kind}})
}

// CheckSeries checks every episode of a single series
func (c *ScrapeController) CheckSeries(ctx context.Context, client platform.Client, slug string) (*RunSummary, error) {
	return c.RunCandidates(ctx, client, []discovery.Candidate{{Slug: slug, Kind: models.KindSeries}})
}

func (c *ScrapeController) execute(ctx context.Context, client platform.Client, body func(*run) error) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Platform:  client.Name(),
		StartedAt: time.Now(),
	}

	ctx, span := c.tracer.Start(ctx, "scrape.run", trace.WithAttributes(
		attribute.String("platform", summary.Platform),
		attribute.String("run_id", summary.RunID),
	))
	defer span.End()

	log := c.logger.WithFields(logrus.Fields{
		"platform": summary.Platform,
		"run_id":   summary.RunID,
	})
	log.Info("Starting scrape run")

	paced := newPacedClient(client, c.delay, c.metrics)
	r := &run{
		ctrl:       c,
		client:     paced,
		resolver:   NewResolver(paced, c.logger),
		classifier: NewClassifier(paced, c.logger),
		summary:    summary,
		seen:       make(map[string]struct{}),
		log:        log,
	}

	if err := paced.Login(ctx); err != nil {
		err = fmt.Errorf("login to %s failed: %w", summary.Platform, err)
		c.metrics.RunFinished(summary.Platform, err, time.Since(summary.StartedAt))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	err := body(r)
	if errors.Is(err, errLimitReached) {
		log.WithField("limit", c.limit).Info("Item limit reached, stopping run")
		err = nil
	}

	summary.Duration = time.Since(summary.StartedAt)
	c.metrics.RunFinished(summary.Platform, err, summary.Duration)
	span.SetAttributes(
		attribute.Int("checked", summary.Checked),
		attribute.Int("failed", summary.Failed),
	)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Warn("Scrape run interrupted")
		return summary, err
	}

	log.Info(summary.String())
	return summary, nil
}

// run holds the state of one scraping run
type run struct {
	ctrl       *ScrapeController
	client     *pacedClient
	resolver   *Resolver
	classifier *Classifier
	summary    *RunSummary
	seen       map[string]struct{}
	processed  int
	log        *logrus.Entry
}

// process handles one candidate. Only cancellation and the item limit are returned.
func (r *run) process(ctx context.Context, candidate discovery.Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.seen[candidate.Slug]; ok {
		return nil
	}
	if r.ctrl.limit > 0 && r.processed >= r.ctrl.limit {
		return errLimitReached
	}
	r.seen[candidate.Slug] = struct{}{}
	r.summary.Discovered++

	log := r.log.WithFields(logrus.Fields{
		"slug": candidate.Slug,
		"kind": candidate.Kind,
	})

	if r.ctrl.ignore.Contains(candidate.Slug) {
		log.Debug("Slug is ignored")
		r.skip()
		return nil
	}
	r.processed++

	ctx, span := r.ctrl.tracer.Start(ctx, "scrape.item", trace.WithAttributes(
		attribute.String("slug", candidate.Slug),
		attribute.String("kind", string(candidate.Kind)),
	))
	defer span.End()

	resolution, err := r.resolver.Resolve(ctx, candidate)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrNotFound) {
			log.Info("Content not found, skipping")
			r.skip()
			return nil
		}
		if errors.Is(err, ErrNoSeriesContext) {
			log.Warn("Episode without series context, skipping")
			r.skip()
			return nil
		}
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Error("Failed to resolve content")
		r.fail()
		return nil
	}

	if candidate.Kind.IsSeries() && len(resolution.Items) == 0 {
		log.Info("Series has no episodes")
	}

	for _, item := range resolution.Items {
		if item.Slug != candidate.Slug {
			if _, ok := r.seen[item.Slug]; ok {
				log.WithField("episode", item.Slug).Debug("Episode already checked in this run")
				continue
			}
		}
		r.seen[item.Slug] = struct{}{}
		if err := r.check(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// check classifies and stores one item
func (r *run) check(ctx context.Context, item *Item) error {
	log := r.log.WithFields(logrus.Fields{
		"slug": item.Slug,
		"kind": item.Kind,
	})

	verdict, err := r.classifier.Classify(ctx, item)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrNotFound) {
			log.Info("Manifest not found, skipping")
			r.skip()
			return nil
		}
		log.WithError(err).Error("Failed to classify content")
		r.fail()
		return nil
	}

	previous, err := r.ctrl.db.ContentStatus(ctx, r.summary.Platform, item.Slug)
	if err != nil {
		log.WithError(err).Warn("Failed to read previous status")
	}

	now := time.Now()
	rec := buildRecord(r.summary.Platform, item, verdict, now)
	entry := &models.CheckHistory{
		RunID:           r.summary.RunID,
		CheckedAt:       now,
		IsGeoRestricted: verdict.IsGeoRestricted,
		RestrictionType: verdict.RestrictionType,
		StatusCode:      verdict.StatusCode,
		Error:           verdict.Error,
	}
	if err := r.ctrl.db.SaveCheck(ctx, rec, entry); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Error("Failed to save check")
		r.fail()
		return nil
	}

	if previous != nil && models.StatusLabel(previous.IsGeoRestricted) != models.StatusLabel(verdict.IsGeoRestricted) {
		log.WithFields(logrus.Fields{
			"from": models.StatusLabel(previous.IsGeoRestricted),
			"to":   models.StatusLabel(verdict.IsGeoRestricted),
		}).Info("Restriction status changed")
	}

	r.summary.Checked++
	outcome := models.StatusLabel(verdict.IsGeoRestricted)
	switch outcome {
	case "restricted":
		r.summary.Restricted++
	case "accessible":
		r.summary.Accessible++
	default:
		r.summary.Unknown++
	}
	r.ctrl.metrics.ItemProcessed(r.summary.Platform, outcome)

	log.WithFields(logrus.Fields{
		"status":      outcome,
		"restriction": verdict.RestrictionType,
	}).Debug("Content checked")
	return nil
}

func (r *run) skip() {
	r.summary.Skipped++
	r.ctrl.metrics.ItemProcessed(r.summary.Platform, "skipped")
}

func (r *run) fail() {
	r.summary.Failed++
	r.ctrl.metrics.ItemProcessed(r.summary.Platform, "failed")
}

// buildRecord maps an item and its verdict to the stored record
func buildRecord(platformName string, item *Item, verdict Verdict, now time.Time) *models.ContentRecord {
	rec := &models.ContentRecord{
		Platform:        platformName,
		Slug:            item.Slug,
		Title:           item.Title,
		Kind:            item.Kind,
		SeriesSlug:      item.SeriesSlug,
		SeriesTitle:     item.SeriesTitle,
		SeasonNumber:    item.SeasonNumber,
		EpisodeNumber:   item.EpisodeNumber,
		IsGeoRestricted: verdict.IsGeoRestricted,
		RestrictionType: verdict.RestrictionType,
		Metadata:        string(item.Metadata),
		LastChecked:     now,
	}
	if item.APIRestricted {
		return rec
	}

	doc := gjson.ParseBytes(item.Metadata)
	rec.Duration = intField(doc, "duration")
	rec.Year = intField(doc, "year", "production_year")
	rec.Genres = genres(doc)
	if until := firstString(doc, "available_until"); until != "" {
		rec.AvailableUntil = &until
	}
	if published := publicationDate(doc); published != "" {
		rec.PublicationDate = &published
	}
	return rec
}

// genres returns the genre names as a JSON array, or nil when there are none
func genres(doc gjson.Result) *string {
	var names []string
	for _, genre := range doc.Get("genres").Array() {
		name := genre.String()
		if genre.IsObject() {
			name = genre.Get("name").String()
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return nil
	}
	encoded := string(data)
	return &encoded
}

// publicationDate prefers date_created, then the oldest image date, then published_on
func publicationDate(doc gjson.Result) string {
	if created := firstString(doc, "date_created"); created != "" {
		return created
	}

	oldest := ""
	for _, image := range doc.Get("images").Array() {
		created := image.Get("date_created").String()
		if created != "" && (oldest == "" || created < oldest) {
			oldest = created
		}
	}
	if oldest != "" {
		return oldest
	}

	return firstString(doc, "published_on")
}
