package models

import "time"

// ContentRecord is the latest known state of one catalog item
type ContentRecord struct {
	ID       uint   `gorm:"primarykey"`
	Platform string `gorm:"not null;uniqueIndex:idx_content_platform_slug"`
	Slug     string `gorm:"not null;uniqueIndex:idx_content_platform_slug"`
	Title    string
	Kind     ContentKind `gorm:"column:type;not null;index:idx_content_type"`

	Duration *int    // seconds
	Year     *int
	Genres   *string // JSON array

	// Episode specific fields, nil for everything else
	SeriesSlug             *string `gorm:"index:idx_content_series_slug"`
	SeriesTitle            *string
	SeasonNumber           *int
	SeasonNumberNormalized *int
	EpisodeNumber          *int

	IsGeoRestricted *bool           `gorm:"index:idx_content_geo_restricted"`
	RestrictionType RestrictionType `gorm:"size:32"`
	Metadata        string          `gorm:"type:text"`

	AvailableUntil  *string `gorm:"index:idx_content_available_until"`
	PublicationDate *string `gorm:"index:idx_content_publication_date"`

	LastChecked time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName pins the table name shared with the dashboard
func (ContentRecord) TableName() string {
	return "content"
}

// CheckHistory is one append-only verdict row
type CheckHistory struct {
	ID        uint           `gorm:"primarykey"`
	ContentID uint           `gorm:"not null;index"`
	Content   *ContentRecord `gorm:"foreignKey:ContentID;constraint:OnDelete:RESTRICT"`
	Platform  string         `gorm:"not null"`
	Slug      string         `gorm:"not null;index:idx_check_history_slug"`
	RunID     string         `gorm:"size:36;index"`

	CheckedAt       time.Time `gorm:"index:idx_check_history_checked_at"`
	IsGeoRestricted *bool
	RestrictionType RestrictionType `gorm:"size:32"`
	StatusCode      int
	Error           string
}

// TableName pins the table name shared with the dashboard
func (CheckHistory) TableName() string {
	return "check_history"
}

// ContentStatus is the stored verdict of an item, used to report changes
type ContentStatus struct {
	IsGeoRestricted *bool
	RestrictionType RestrictionType
}

// Statistics aggregates the catalog for exports and the status API
type Statistics struct {
	TotalContent       int64            `json:"total_content"`
	ByType             map[string]int64 `json:"by_type"`
	GeoRestrictedCount int64            `json:"geo_restricted_count"`
	AccessibleCount    int64            `json:"accessible_count"`
	UnknownCount       int64            `json:"unknown_count"`
	GeoRestrictedPct   float64          `json:"geo_restricted_percentage"`
	LastCheck          *time.Time       `json:"last_check"`
}
