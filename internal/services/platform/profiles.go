package platform

import (
	"fmt"
	"sort"

	"github.com/amaumene/geowatch/internal/models"
)

// Profile describes the endpoints of one platform.
// Path templates take the slug as their first verb; ManifestPath also takes the language.
type Profile struct {
	Name          string
	BaseURL       string
	LoginPath     string // empty when the catalog is public
	ItemPath      string
	SeriesPath    string
	ChannelPath   string
	ManifestPath  string
	LiveProbePath string
	SearchPath    string // takes the escaped query
	Sources       []Source
}

var profiles = map[string]Profile{
	"primeran.eus": {
		Name:          "primeran.eus",
		BaseURL:       "https://primeran.eus",
		LoginPath:     "/api/v1/login",
		ItemPath:      "/api/v1/media/%s",
		SeriesPath:    "/api/v1/series/%s",
		ChannelPath:   "/api/v1/live/%s",
		ManifestPath:  "/manifests/%s/%s/widevine/dash.mpd",
		LiveProbePath: "/api/v1/live/%s/stream",
		SearchPath:    "/api/v1/search?q=%s",
		Sources: []Source{
			{Name: "home", Path: "/api/v1/pages/home", Kind: models.KindVOD},
			{Name: "categories", Path: "/api/v1/categories", Kind: models.KindVOD},
			{Name: "series", Path: "/api/v1/pages/series", Kind: models.KindSeries},
		},
	},
	"makusi.eus": {
		Name:          "makusi.eus",
		BaseURL:       "https://makusi.eus",
		LoginPath:     "/api/v1/login",
		ItemPath:      "/api/v1/media/%s",
		SeriesPath:    "/api/v1/series/%s",
		ChannelPath:   "/api/v1/live/%s",
		ManifestPath:  "/manifests/%s/%s/widevine/dash.mpd",
		LiveProbePath: "/api/v1/live/%s/stream",
		SearchPath:    "/api/v1/search?q=%s",
		Sources: []Source{
			{Name: "home", Path: "/api/v1/pages/home", Kind: models.KindVOD},
			{Name: "categories", Path: "/api/v1/categories", Kind: models.KindVOD},
		},
	},
	"etbon.eus": {
		Name:          "etbon.eus",
		BaseURL:       "https://etbon.eus",
		ItemPath:      "/api/v1/media/%s",
		SeriesPath:    "/api/v1/series/%s",
		ChannelPath:   "/api/v1/channels/%s",
		ManifestPath:  "/manifests/%s/%s/widevine/dash.mpd",
		LiveProbePath: "/api/v1/channels/%s/stream",
		SearchPath:    "/api/v1/search?q=%s",
		Sources: []Source{
			{Name: "home", Path: "/api/v1/pages/home", Kind: models.KindVOD},
			{Name: "live", Path: "/api/v1/channels", Kind: models.KindLiveChannel},
		},
	},
}

// LookupProfile returns the profile registered for a platform name
func LookupProfile(name string) (Profile, error) {
	profile, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown platform %q (known: %v)", name, KnownPlatforms())
	}
	return profile, nil
}

// KnownPlatforms lists the registered platform names
func KnownPlatforms() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
