package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/amaumene/geowatch/internal/config"
	"github.com/amaumene/geowatch/internal/metrics"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/amaumene/geowatch/internal/services/platform"
	"github.com/amaumene/geowatch/internal/tracing"
	"github.com/amaumene/geowatch/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory platform keyed by slug
type fakeClient struct {
	name      string
	loginErr  error
	listings  map[string]string
	items     map[string]platform.Response
	channels  map[string]platform.Response
	series    map[string]platform.Response
	manifests map[string]int
	probeErrs map[string]error
	probes    map[string]int
	calls     int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		name:      "primeran.eus",
		listings:  make(map[string]string),
		items:     make(map[string]platform.Response),
		channels:  make(map[string]platform.Response),
		series:    make(map[string]platform.Response),
		manifests: make(map[string]int),
		probeErrs: make(map[string]error),
		probes:    make(map[string]int),
	}
}

func (f *fakeClient) Name() string     { return f.name }
func (f *fakeClient) Language() string { return "eu" }

func (f *fakeClient) Login(ctx context.Context) error {
	f.calls++
	return f.loginErr
}

func (f *fakeClient) Sources() []platform.Source {
	var sources []platform.Source
	for path := range f.listings {
		sources = append(sources, platform.Source{Name: path, Path: path, Kind: models.KindVOD})
	}
	return sources
}

func (f *fakeClient) FetchItem(ctx context.Context, slug string) (*platform.Response, error) {
	return f.lookup(f.items, slug)
}

func (f *fakeClient) FetchChannel(ctx context.Context, slug string) (*platform.Response, error) {
	return f.lookup(f.channels, slug)
}

func (f *fakeClient) FetchSeries(ctx context.Context, slug string) (*platform.Response, error) {
	return f.lookup(f.series, slug)
}

func (f *fakeClient) lookup(responses map[string]platform.Response, slug string) (*platform.Response, error) {
	f.calls++
	resp, ok := responses[slug]
	if !ok {
		return &platform.Response{StatusCode: http.StatusNotFound}, nil
	}
	return &resp, nil
}

func (f *fakeClient) FetchListing(ctx context.Context, source platform.Source) ([]byte, error) {
	f.calls++
	doc, ok := f.listings[source.Path]
	if !ok {
		return nil, fmt.Errorf("listing %s failed with status 404", source.Name)
	}
	return []byte(doc), nil
}

func (f *fakeClient) ProbeRestriction(ctx context.Context, slug string, kind models.ContentKind, language string) (int, error) {
	f.calls++
	f.probes[slug]++
	if err := f.probeErrs[slug]; err != nil {
		return 0, err
	}
	status, ok := f.manifests[slug]
	if !ok {
		return http.StatusNotFound, nil
	}
	return status, nil
}

func (f *fakeClient) item(slug, body string) {
	f.items[slug] = platform.Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

func (f *fakeClient) restricted(slug string) {
	f.items[slug] = platform.Response{
		StatusCode: http.StatusForbidden,
		Body:       []byte(`{"error":"MEDIA_GEO_RESTRICTED_ACCESS"}`),
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type scrapeFixture struct {
	ctrl   *ScrapeController
	db     *models.Database
	client *fakeClient
}

func newScrapeFixture(t *testing.T, cfg *config.Config, logger *logrus.Logger) *scrapeFixture {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{MaxDepth: 32}
	}
	if logger == nil {
		logger = quietLogger()
	}

	db, err := models.NewDatabase("sqlite", filepath.Join(t.TempDir(), "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ignore, err := utils.LoadIgnoreList(cfg.IgnoreFile)
	require.NoError(t, err)

	tracer := tracing.Tracer(tracing.NewProvider(logger))
	return &scrapeFixture{
		ctrl:   NewScrapeController(cfg, db, ignore, metrics.New(), tracer, logger),
		db:     db,
		client: newFakeClient(),
	}
}
