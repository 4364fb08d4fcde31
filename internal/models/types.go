package models

import "strings"

// ContentKind is the platform-declared kind of a catalog item
type ContentKind string

const (
	KindMovie       ContentKind = "movie"
	KindDocumentary ContentKind = "documentary"
	KindConcert     ContentKind = "concert"
	KindVOD         ContentKind = "vod"
	KindEpisode     ContentKind = "episode"
	KindLiveChannel ContentKind = "live_channel"
	KindSeries      ContentKind = "series"
)

// kindAliases maps the markers seen in platform payloads to a ContentKind
var kindAliases = map[string]ContentKind{
	"movie":        KindMovie,
	"film":         KindMovie,
	"documentary":  KindDocumentary,
	"documental":   KindDocumentary,
	"concert":      KindConcert,
	"vod":          KindVOD,
	"media":        KindVOD,
	"episode":      KindEpisode,
	"live":         KindLiveChannel,
	"live_channel": KindLiveChannel,
	"channel":      KindLiveChannel,
	"series":       KindSeries,
	"serie":        KindSeries,
}

// ParseKind maps a payload marker to a ContentKind.
// The second return value is false for markers that do not denote content.
func ParseKind(marker string) (ContentKind, bool) {
	kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(marker))]
	return kind, ok
}

// IsSeries reports whether the kind is a series tree rather than a playable item
func (k ContentKind) IsSeries() bool {
	return k == KindSeries
}

// RestrictionType tags how a verdict was reached
type RestrictionType string

const (
	RestrictionAPI403      RestrictionType = "api_403"      // metadata endpoint blocked
	RestrictionManifest403 RestrictionType = "manifest_403" // metadata ok, stream blocked
	RestrictionManifest200 RestrictionType = "manifest_200" // accessible
	RestrictionUnknown     RestrictionType = "unknown"      // probe failed
)

// GeoStatus is the tri-state verdict stored in IsGeoRestricted (nil = unknown)
func GeoStatus(restricted bool) *bool {
	return &restricted
}

// StatusLabel renders a tri-state verdict for logs and exports
func StatusLabel(restricted *bool) string {
	switch {
	case restricted == nil:
		return "unknown"
	case *restricted:
		return "restricted"
	default:
		return "accessible"
	}
}
