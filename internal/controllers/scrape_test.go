package controllers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/amaumene/geowatch/internal/config"
	"github.com/amaumene/geowatch/internal/discovery"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/amaumene/geowatch/internal/services/platform"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lauHankanTree = `{
	"slug": "lau-hankan",
	"title": "Lau hankan",
	"seasons": [
		{"season_number": 1, "episodes": [
			{"id": 101, "slug": "lau-hankan-1-1", "title": "Lehen atala", "episode_number": 1, "duration": 1500, "published_on": "2024-01-10"},
			{"id": 102, "slug": "lau-hankan-1-2", "title": "Bigarren atala", "episode_number": 2, "duration": 1520},
			{"id": 103, "slug": "lau-hankan-1-3", "episode_number": 3}
		]},
		{"season_number": 2, "episodes": [
			{"id": 201, "slug": "lau-hankan-2-1", "episode_number": 1},
			{"id": 202, "slug": "lau-hankan-2-2", "episode_number": 2}
		]}
	]
}`

func countContent(t *testing.T, db *models.Database) int64 {
	t.Helper()
	stats, err := db.GetStatistics(context.Background(), "")
	require.NoError(t, err)
	return stats.TotalContent
}

func TestScrapeScenarios(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.item("la-infiltrada", `{"slug":"la-infiltrada","title":"La infiltrada","duration":7080,"year":2024,"genres":[{"name":"Thriller"}],"date_created":"2024-11-02"}`)
	f.client.manifests["la-infiltrada"] = http.StatusOK

	f.client.item("itoiz-udako-sesioak", `{"slug":"itoiz-udako-sesioak","title":"Itoiz, udako sesioak","images":[{"file":"b.jpg","date_created":"2023-06-01"},{"file":"a.jpg","date_created":"2023-05-01"}]}`)
	f.client.manifests["itoiz-udako-sesioak"] = http.StatusForbidden

	f.client.restricted("27-ordu")

	summary, err := f.ctrl.RunCandidates(ctx, f.client, []discovery.Candidate{
		{Slug: "la-infiltrada", Kind: models.KindMovie},
		{Slug: "itoiz-udako-sesioak", Kind: models.KindConcert},
		{Slug: "27-ordu", Kind: models.KindDocumentary},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 2, summary.Restricted)
	assert.Equal(t, 1, summary.Accessible)
	assert.NotEmpty(t, summary.RunID)

	accessible, err := f.db.GetContent(ctx, "primeran.eus", "la-infiltrada")
	require.NoError(t, err)
	assert.Equal(t, models.RestrictionManifest200, accessible.RestrictionType)
	require.NotNil(t, accessible.IsGeoRestricted)
	assert.False(t, *accessible.IsGeoRestricted)
	assert.Equal(t, models.KindMovie, accessible.Kind)
	assert.Contains(t, accessible.Metadata, `"duration":7080`)
	require.NotNil(t, accessible.Duration)
	assert.Equal(t, 7080, *accessible.Duration)
	require.NotNil(t, accessible.Genres)
	assert.JSONEq(t, `["Thriller"]`, *accessible.Genres)
	require.NotNil(t, accessible.PublicationDate)
	assert.Equal(t, "2024-11-02", *accessible.PublicationDate)

	manifest, err := f.db.GetContent(ctx, "primeran.eus", "itoiz-udako-sesioak")
	require.NoError(t, err)
	assert.Equal(t, models.RestrictionManifest403, manifest.RestrictionType)
	assert.True(t, *manifest.IsGeoRestricted)
	assert.Contains(t, manifest.Metadata, `"title":"Itoiz, udako sesioak"`)
	assert.NotContains(t, manifest.Metadata, "api_restricted")
	require.NotNil(t, manifest.PublicationDate)
	assert.Equal(t, "2023-05-01", *manifest.PublicationDate)

	api, err := f.db.GetContent(ctx, "primeran.eus", "27-ordu")
	require.NoError(t, err)
	assert.Equal(t, models.RestrictionAPI403, api.RestrictionType)
	assert.True(t, *api.IsGeoRestricted)
	assert.Equal(t, "27 Ordu", api.Title)
	assert.JSONEq(t, `{"error":"MEDIA_GEO_RESTRICTED_ACCESS","api_restricted":true}`, api.Metadata)
	assert.Zero(t, f.client.probes["27-ordu"], "api restricted items are not probed")
}

func TestScrapeSeriesEpisodesAreIndependent(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.series["lau-hankan"] = platform.Response{StatusCode: http.StatusOK, Body: []byte(lauHankanTree)}
	f.client.manifests["lau-hankan-1-1"] = http.StatusOK
	f.client.manifests["lau-hankan-1-2"] = http.StatusForbidden
	f.client.manifests["lau-hankan-1-3"] = http.StatusOK
	f.client.manifests["lau-hankan-2-1"] = http.StatusForbidden
	f.client.manifests["lau-hankan-2-2"] = http.StatusOK

	summary, err := f.ctrl.CheckSeries(ctx, f.client, "lau-hankan")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Checked)
	assert.Equal(t, 2, summary.Restricted)
	assert.Equal(t, 3, summary.Accessible)
	assert.EqualValues(t, 5, countContent(t, f.db))

	_, err = f.db.GetContent(ctx, "primeran.eus", "lau-hankan")
	assert.ErrorIs(t, err, models.ErrNotFound, "the series itself is not a record")

	first, err := f.db.GetContent(ctx, "primeran.eus", "lau-hankan-1-1")
	require.NoError(t, err)
	assert.Equal(t, models.KindEpisode, first.Kind)
	require.NotNil(t, first.SeriesSlug)
	assert.Equal(t, "lau-hankan", *first.SeriesSlug)
	assert.Equal(t, "Lau hankan", *first.SeriesTitle)
	assert.Equal(t, 1, *first.SeasonNumber)
	assert.Equal(t, 1, *first.EpisodeNumber)
	assert.False(t, *first.IsGeoRestricted)
	assert.JSONEq(t, `{
		"episode_id": 101,
		"episode_slug": "lau-hankan-1-1",
		"episode_title": "Lehen atala",
		"episode_number": 1,
		"duration": 1500,
		"series_slug": "lau-hankan",
		"series_title": "Lau hankan",
		"season_number": 1,
		"kind": "episode",
		"published_on": "2024-01-10"
	}`, first.Metadata)
	require.NotNil(t, first.PublicationDate)
	assert.Equal(t, "2024-01-10", *first.PublicationDate)

	blocked, err := f.db.GetContent(ctx, "primeran.eus", "lau-hankan-2-1")
	require.NoError(t, err)
	assert.Equal(t, models.RestrictionManifest403, blocked.RestrictionType)
	assert.Equal(t, 2, *blocked.SeasonNumber)
	assert.Equal(t, "Lau Hankan 2 1", blocked.Title)
}

func TestScrapeRerunIsIdempotent(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.item("la-infiltrada", `{"title":"La infiltrada"}`)
	f.client.manifests["la-infiltrada"] = http.StatusOK
	f.client.series["lau-hankan"] = platform.Response{StatusCode: http.StatusOK, Body: []byte(lauHankanTree)}
	for _, slug := range []string{"lau-hankan-1-1", "lau-hankan-1-2", "lau-hankan-1-3", "lau-hankan-2-1", "lau-hankan-2-2"} {
		f.client.manifests[slug] = http.StatusOK
	}

	candidates := []discovery.Candidate{
		{Slug: "la-infiltrada", Kind: models.KindMovie},
		{Slug: "lau-hankan", Kind: models.KindSeries},
	}

	first, err := f.ctrl.RunCandidates(ctx, f.client, candidates)
	require.NoError(t, err)
	f.client.manifests["la-infiltrada"] = http.StatusForbidden
	second, err := f.ctrl.RunCandidates(ctx, f.client, candidates)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.EqualValues(t, 6, countContent(t, f.db))

	history, err := f.db.History(ctx, "primeran.eus", "la-infiltrada")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.RunID, history[0].RunID)
	assert.Equal(t, models.RestrictionManifest200, history[0].RestrictionType)
	assert.Equal(t, second.RunID, history[1].RunID)
	assert.Equal(t, models.RestrictionManifest403, history[1].RestrictionType)

	episodeHistory, err := f.db.History(ctx, "primeran.eus", "lau-hankan-2-2")
	require.NoError(t, err)
	assert.Len(t, episodeHistory, 2)
}

func TestScrapeNotFoundWritesNothing(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.item("manifest-gone", `{"title":"Gone"}`)

	summary, err := f.ctrl.RunCandidates(ctx, f.client, []discovery.Candidate{
		{Slug: "never-existed", Kind: models.KindMovie},
		{Slug: "manifest-gone", Kind: models.KindMovie},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Checked)
	assert.Zero(t, countContent(t, f.db))

	history, err := f.db.History(ctx, "primeran.eus", "manifest-gone")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestScrapeProbeFailureIsUnknown(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.item("gatibu-azken-kontzertua-zuzenean", `{"title":"Gatibu"}`)
	f.client.probeErrs["gatibu-azken-kontzertua-zuzenean"] = errors.New("connection reset")
	f.client.item("flaky", `{"title":"Flaky"}`)
	f.client.manifests["flaky"] = http.StatusBadGateway

	summary, err := f.ctrl.RunCandidates(ctx, f.client, []discovery.Candidate{
		{Slug: "gatibu-azken-kontzertua-zuzenean", Kind: models.KindConcert},
		{Slug: "flaky", Kind: models.KindMovie},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Unknown)

	rec, err := f.db.GetContent(ctx, "primeran.eus", "gatibu-azken-kontzertua-zuzenean")
	require.NoError(t, err)
	assert.Nil(t, rec.IsGeoRestricted)
	assert.Equal(t, models.RestrictionUnknown, rec.RestrictionType)
	assert.Contains(t, rec.Metadata, "Gatibu")

	history, err := f.db.History(ctx, "primeran.eus", "flaky")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, http.StatusBadGateway, history[0].StatusCode)
	assert.NotEmpty(t, history[0].Error)
}

func TestScrapeDedupAcrossSources(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.listings["/home"] = `{"rows":[{"slug":"carousel","type":"category","children":[
		{"slug":"la-infiltrada","type":"movie"},
		{"slug":"lau-hankan","type":"series"}
	]}]}`
	f.client.listings["/categories"] = `[{"slug":"la-infiltrada","type":"movie"},{"slug":"lau-hankan-1-2","type":"episode"},{"slug":"itoiz-udako-sesioak"}]`

	f.client.item("la-infiltrada", `{"title":"La infiltrada"}`)
	f.client.item("itoiz-udako-sesioak", `{"title":"Itoiz"}`)
	f.client.series["lau-hankan"] = platform.Response{StatusCode: http.StatusOK, Body: []byte(lauHankanTree)}
	for _, slug := range []string{"la-infiltrada", "itoiz-udako-sesioak", "lau-hankan-1-1", "lau-hankan-1-2", "lau-hankan-1-3", "lau-hankan-2-1", "lau-hankan-2-2"} {
		f.client.manifests[slug] = http.StatusOK
	}

	summary, err := f.ctrl.Run(ctx, f.client, []platform.Source{
		{Name: "home", Path: "/home", Kind: models.KindVOD},
		{Name: "broken", Path: "/missing", Kind: models.KindVOD},
		{Name: "categories", Path: "/categories", Kind: models.KindVOD},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 7, summary.Checked)
	for slug, calls := range f.client.probes {
		assert.Equal(t, 1, calls, slug)
	}

	rec, err := f.db.GetContent(ctx, "primeran.eus", "itoiz-udako-sesioak")
	require.NoError(t, err)
	assert.Equal(t, models.KindVOD, rec.Kind)
}

func TestScrapeItemLimit(t *testing.T) {
	f := newScrapeFixture(t, &config.Config{MaxDepth: 32, ItemLimit: 2}, nil)
	ctx := context.Background()

	var candidates []discovery.Candidate
	for _, slug := range []string{"a", "b", "c", "d"} {
		f.client.item(slug, `{}`)
		f.client.manifests[slug] = http.StatusOK
		candidates = append(candidates, discovery.Candidate{Slug: slug, Kind: models.KindMovie})
	}

	summary, err := f.ctrl.RunCandidates(ctx, f.client, candidates)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.EqualValues(t, 2, countContent(t, f.db))
}

func TestScrapeLoginFailureIsFatal(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	f.client.loginErr = platform.ErrAuthRequired
	f.client.item("la-infiltrada", `{}`)

	summary, err := f.ctrl.CheckMedia(context.Background(), f.client, "la-infiltrada")
	assert.ErrorIs(t, err, platform.ErrAuthRequired)
	assert.Nil(t, summary)
	assert.Equal(t, 1, f.client.calls, "nothing but the login is attempted")
	assert.Zero(t, countContent(t, f.db))
}

func TestScrapeCancelledContext(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	f.client.item("la-infiltrada", `{}`)
	f.client.manifests["la-infiltrada"] = http.StatusOK

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ctrl.RunCandidates(ctx, f.client, []discovery.Candidate{{Slug: "la-infiltrada", Kind: models.KindMovie}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, countContent(t, f.db))
}

func TestScrapeIgnoreList(t *testing.T) {
	ignoreFile := filepath.Join(t.TempDir(), "ignore.txt")
	require.NoError(t, os.WriteFile(ignoreFile, []byte("la-infiltrada\n"), 0644))

	f := newScrapeFixture(t, &config.Config{MaxDepth: 32, IgnoreFile: ignoreFile}, nil)
	f.client.item("la-infiltrada", `{}`)
	f.client.manifests["la-infiltrada"] = http.StatusOK

	summary, err := f.ctrl.CheckMedia(context.Background(), f.client, "la-infiltrada")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, f.client.probes["la-infiltrada"])
}

func TestScrapeStandaloneEpisodeNeedsSeries(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.item("orphan-episode", `{"title":"Orphan"}`)
	f.client.item("krimenak-1-1", `{"title":"Lehen atala","series":{"slug":"krimenak-gure-kronika-beltza","title":"Krimenak"},"season_number":2019,"episode_number":1}`)
	f.client.manifests["orphan-episode"] = http.StatusOK
	f.client.manifests["krimenak-1-1"] = http.StatusForbidden

	summary, err := f.ctrl.RunCandidates(ctx, f.client, []discovery.Candidate{
		{Slug: "orphan-episode", Kind: models.KindEpisode},
		{Slug: "krimenak-1-1", Kind: models.KindEpisode},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Checked)

	rec, err := f.db.GetContent(ctx, "primeran.eus", "krimenak-1-1")
	require.NoError(t, err)
	assert.Equal(t, "krimenak-gure-kronika-beltza", *rec.SeriesSlug)
	assert.Equal(t, "Krimenak", *rec.SeriesTitle)
	assert.Equal(t, 2019, *rec.SeasonNumber)
}

func TestScrapeLogsRestrictionChanges(t *testing.T) {
	logger, hook := test.NewNullLogger()
	f := newScrapeFixture(t, nil, logger)
	ctx := context.Background()

	f.client.item("la-infiltrada", `{}`)
	f.client.manifests["la-infiltrada"] = http.StatusOK
	_, err := f.ctrl.CheckMedia(ctx, f.client, "la-infiltrada")
	require.NoError(t, err)

	hook.Reset()
	f.client.manifests["la-infiltrada"] = http.StatusForbidden
	_, err = f.ctrl.CheckMedia(ctx, f.client, "la-infiltrada")
	require.NoError(t, err)

	var changed *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Restriction status changed" {
			changed = entry
		}
	}
	require.NotNil(t, changed)
	assert.Equal(t, "accessible", changed.Data["from"])
	assert.Equal(t, "restricted", changed.Data["to"])
}

func TestCheckMediaKeepsStoredKind(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.item("la-infiltrada", `{}`)
	f.client.manifests["la-infiltrada"] = http.StatusOK

	_, err := f.ctrl.RunCandidates(ctx, f.client, []discovery.Candidate{{Slug: "la-infiltrada", Kind: models.KindMovie}})
	require.NoError(t, err)
	_, err = f.ctrl.CheckMedia(ctx, f.client, "la-infiltrada")
	require.NoError(t, err)

	rec, err := f.db.GetContent(ctx, "primeran.eus", "la-infiltrada")
	require.NoError(t, err)
	assert.Equal(t, models.KindMovie, rec.Kind)
}

func historyRows(t *testing.T, db *models.Database, slug string) int {
	t.Helper()
	entries, err := db.History(context.Background(), "primeran.eus", slug)
	require.NoError(t, err)
	return len(entries)
}

func TestScrapeEpisodeListedBeforeItsSeries(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.listings["/categories"] = `[{"slug":"lau-hankan-1-2","type":"episode"}]`
	f.client.listings["/home"] = `[{"slug":"lau-hankan","type":"series"}]`
	f.client.item("lau-hankan-1-2", `{"title":"Bigarren atala","series":{"slug":"lau-hankan","title":"Lau hankan"}}`)
	f.client.series["lau-hankan"] = platform.Response{StatusCode: http.StatusOK, Body: []byte(lauHankanTree)}
	for _, slug := range []string{"lau-hankan-1-1", "lau-hankan-1-2", "lau-hankan-1-3", "lau-hankan-2-1", "lau-hankan-2-2"} {
		f.client.manifests[slug] = http.StatusOK
	}

	summary, err := f.ctrl.Run(ctx, f.client, []platform.Source{
		{Name: "categories", Path: "/categories", Kind: models.KindVOD},
		{Name: "home", Path: "/home", Kind: models.KindVOD},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Checked)
	assert.Equal(t, 1, f.client.probes["lau-hankan-1-2"])
	assert.Equal(t, 1, historyRows(t, f.db, "lau-hankan-1-2"))
}

func TestScrapeEpisodeRepeatedInTree(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)

	f.client.series["lau-hankan"] = platform.Response{StatusCode: http.StatusOK, Body: []byte(`{
		"slug": "lau-hankan",
		"seasons": [
			{"season_number": 1, "episodes": [{"slug": "e1", "episode_number": 1}]},
			{"season_number": 2, "episodes": [{"slug": "e1", "episode_number": 1}]}
		]
	}`)}
	f.client.manifests["e1"] = http.StatusOK

	summary, err := f.ctrl.CheckSeries(context.Background(), f.client, "lau-hankan")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, f.client.probes["e1"])
	assert.Equal(t, 1, historyRows(t, f.db, "e1"))
}

func TestScrapeSeriesReferenceDoesNotHideSeries(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.listings["/home"] = `[
		{"slug":"lau-hankan-1-2","type":"episode","series":{"slug":"lau-hankan"}},
		{"slug":"lau-hankan","type":"series"}
	]`
	f.client.item("lau-hankan-1-2", `{"title":"Bigarren atala","series":{"slug":"lau-hankan"}}`)
	f.client.series["lau-hankan"] = platform.Response{StatusCode: http.StatusOK, Body: []byte(lauHankanTree)}
	for _, slug := range []string{"lau-hankan-1-1", "lau-hankan-1-2", "lau-hankan-1-3", "lau-hankan-2-1", "lau-hankan-2-2"} {
		f.client.manifests[slug] = http.StatusOK
	}

	summary, err := f.ctrl.Run(ctx, f.client, []platform.Source{{Name: "home", Path: "/home", Kind: models.KindVOD}})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Checked)
	assert.Zero(t, summary.Skipped)
	assert.EqualValues(t, 5, countContent(t, f.db))
}

func TestScrapeRestrictedEpisodeNeedsSeries(t *testing.T) {
	f := newScrapeFixture(t, nil, nil)
	ctx := context.Background()

	f.client.items["krimenak-1-1"] = platform.Response{StatusCode: http.StatusForbidden}
	f.client.items["krimenak-1-2"] = platform.Response{
		StatusCode: http.StatusForbidden,
		Body:       []byte(`{"error":"MEDIA_GEO_RESTRICTED_ACCESS","series_slug":"krimenak-gure-kronika-beltza"}`),
	}

	summary, err := f.ctrl.RunCandidates(ctx, f.client, []discovery.Candidate{
		{Slug: "krimenak-1-1", Kind: models.KindEpisode},
		{Slug: "krimenak-1-2", Kind: models.KindEpisode},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Checked)

	_, err = f.db.GetContent(ctx, "primeran.eus", "krimenak-1-1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	rec, err := f.db.GetContent(ctx, "primeran.eus", "krimenak-1-2")
	require.NoError(t, err)
	assert.Equal(t, models.KindEpisode, rec.Kind)
	require.NotNil(t, rec.SeriesSlug)
	assert.Equal(t, "krimenak-gure-kronika-beltza", *rec.SeriesSlug)
	assert.Equal(t, models.RestrictionAPI403, rec.RestrictionType)
}
