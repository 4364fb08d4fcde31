package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/amaumene/geowatch/internal/models"
	"github.com/tidwall/gjson"
)

// ContentItem is one entry of content.json
type ContentItem struct {
	Slug              string    `json:"slug"`
	Title             string    `json:"title"`
	Type              string    `json:"type"`
	Duration          *int      `json:"duration"`
	Year              *int      `json:"year"`
	Genres            []string  `json:"genres"`
	SeriesSlug        *string   `json:"series_slug"`
	SeriesTitle       *string   `json:"series_title"`
	SeasonNumber      *int      `json:"season_number"`
	EpisodeNumber     *int      `json:"episode_number"`
	IsGeoRestricted   *bool     `json:"is_geo_restricted"`
	RestrictionType   string    `json:"restriction_type"`
	LastChecked       time.Time `json:"last_checked"`
	Description       any       `json:"description"`
	Thumbnail         any       `json:"thumbnail"`
	AgeRating         any       `json:"age_rating"`
	AccessRestriction any       `json:"access_restriction"`
	AvailableUntil    *string   `json:"available_until"`
	PublicationDate   *string   `json:"publication_date"`
	Languages         []string  `json:"languages"`
	Platform          []string  `json:"platform"`
	MediaType         any       `json:"media_type"`
	ContentURL        string    `json:"content_url"`
}

// RestrictedItem is one entry of geo-restricted.json
type RestrictedItem struct {
	Slug              string    `json:"slug"`
	Title             string    `json:"title"`
	Type              string    `json:"type"`
	SeriesTitle       *string   `json:"series_title"`
	SeasonNumber      *int      `json:"season_number"`
	EpisodeNumber     *int      `json:"episode_number"`
	LastChecked       time.Time `json:"last_checked"`
	Description       any       `json:"description"`
	Thumbnail         any       `json:"thumbnail"`
	AgeRating         any       `json:"age_rating"`
	AccessRestriction any       `json:"access_restriction"`
	AvailableUntil    *string   `json:"available_until"`
	PublicationDate   *string   `json:"publication_date"`
	Languages         []string  `json:"languages"`
	Platform          []string  `json:"platform"`
	MediaType         any       `json:"media_type"`
	ContentURL        string    `json:"content_url"`
}

// NewContentItem flattens a stored record for the dashboard
func NewContentItem(rec *models.ContentRecord) ContentItem {
	doc := gjson.Parse(rec.Metadata)

	season := rec.SeasonNumberNormalized
	if season == nil {
		season = rec.SeasonNumber
	}

	ageRating := value(doc, "age_rating.label")
	if ageRating == nil || ageRating == "" {
		ageRating = value(doc, "age_rating.age")
	}

	return ContentItem{
		Slug:              rec.Slug,
		Title:             rec.Title,
		Type:              string(rec.Kind),
		Duration:          rec.Duration,
		Year:              rec.Year,
		Genres:            decodeGenres(rec.Genres),
		SeriesSlug:        rec.SeriesSlug,
		SeriesTitle:       rec.SeriesTitle,
		SeasonNumber:      season,
		EpisodeNumber:     rec.EpisodeNumber,
		IsGeoRestricted:   rec.IsGeoRestricted,
		RestrictionType:   string(rec.RestrictionType),
		LastChecked:       rec.LastChecked,
		Description:       value(doc, "description"),
		Thumbnail:         value(doc, "images.0.file"),
		AgeRating:         ageRating,
		AccessRestriction: value(doc, "access_restriction"),
		AvailableUntil:    rec.AvailableUntil,
		PublicationDate:   rec.PublicationDate,
		Languages:         languages(doc),
		Platform:          []string{rec.Platform},
		MediaType:         value(doc, "media_type"),
		ContentURL:        contentURL(rec, doc),
	}
}

// Restricted keeps the fields published for restricted items
func (c ContentItem) Restricted() RestrictedItem {
	return RestrictedItem{
		Slug:              c.Slug,
		Title:             c.Title,
		Type:              c.Type,
		SeriesTitle:       c.SeriesTitle,
		SeasonNumber:      c.SeasonNumber,
		EpisodeNumber:     c.EpisodeNumber,
		LastChecked:       c.LastChecked,
		Description:       c.Description,
		Thumbnail:         c.Thumbnail,
		AgeRating:         c.AgeRating,
		AccessRestriction: c.AccessRestriction,
		AvailableUntil:    c.AvailableUntil,
		PublicationDate:   c.PublicationDate,
		Languages:         c.Languages,
		Platform:          c.Platform,
		MediaType:         c.MediaType,
		ContentURL:        c.ContentURL,
	}
}

func value(doc gjson.Result, path string) any {
	result := doc.Get(path)
	if !result.Exists() || result.Type == gjson.Null {
		return nil
	}
	return result.Value()
}

func decodeGenres(raw *string) []string {
	genres := []string{}
	if raw == nil {
		return genres
	}
	if err := json.Unmarshal([]byte(*raw), &genres); err != nil {
		return []string{}
	}
	return genres
}

// languages returns the audio codes, or the subtitle codes when there is no audio track
func languages(doc gjson.Result) []string {
	codes := doc.Get("audios.#.code").Array()
	if len(codes) == 0 {
		codes = doc.Get("subtitle.#.language.code").Array()
	}

	seen := make(map[string]struct{})
	out := []string{}
	for _, code := range codes {
		c := code.String()
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// contentURL prefers the platform URL stored in the metadata and otherwise
// builds the public page URL of the platform
func contentURL(rec *models.ContentRecord, doc gjson.Result) string {
	stored := ""
	doc.Get("platform_urls").ForEach(func(key, url gjson.Result) bool {
		if key.String() == rec.Platform && url.Type == gjson.String {
			stored = url.Str
			return false
		}
		return true
	})
	if stored != "" {
		return stored
	}

	switch rec.Platform {
	case "makusi.eus":
		switch {
		case rec.Kind == models.KindEpisode:
			return fmt.Sprintf("https://makusi.eus/ikusi/w/%s", rec.Slug)
		case rec.SeriesSlug != nil && *rec.SeriesSlug != rec.Slug:
			return fmt.Sprintf("https://makusi.eus/ikusi/w/%s", rec.Slug)
		case rec.Kind == models.KindSeries:
			return fmt.Sprintf("https://makusi.eus/ikusi/s/%s", rec.Slug)
		default:
			return fmt.Sprintf("https://makusi.eus/ikusi/m/%s", rec.Slug)
		}
	case "etbon.eus":
		switch rec.Kind {
		case models.KindLiveChannel:
			return fmt.Sprintf("https://etbon.eus/ch/%s", rec.Slug)
		case models.KindSeries:
			return fmt.Sprintf("https://etbon.eus/s/%s", rec.Slug)
		default:
			return fmt.Sprintf("https://etbon.eus/m/%s", rec.Slug)
		}
	default:
		return fmt.Sprintf("https://primeran.eus/m/%s", rec.Slug)
	}
}
