package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// upsertColumns are overwritten when a slug is seen again
var upsertColumns = []string{
	"title", "type", "duration", "year", "genres",
	"series_slug", "series_title", "season_number", "episode_number",
	"is_geo_restricted", "restriction_type", "metadata",
	"available_until", "publication_date", "last_checked", "updated_at",
}

// Database wraps the gorm connection holding the catalog
type Database struct {
	gorm *gorm.DB
}

// NewDatabase opens the catalog database and migrates the schema
func NewDatabase(driver, dsn string, logger *logrus.Logger) (*Database, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	level := gormlogger.Silent
	if logger != nil && logger.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&ContentRecord{}, &CheckHistory{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{gorm: db}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	conn, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return conn.Close()
}

// Content operations

// UpsertContent inserts a record or updates the existing one with the same platform and slug
func (db *Database) UpsertContent(ctx context.Context, rec *ContentRecord) error {
	return upsertContent(db.gorm.WithContext(ctx), rec)
}

// AppendHistory appends a history row for an already stored record
func (db *Database) AppendHistory(ctx context.Context, entry *CheckHistory) error {
	return appendHistory(db.gorm.WithContext(ctx), entry)
}

// SaveCheck upserts the record and appends its history row in one transaction
func (db *Database) SaveCheck(ctx context.Context, rec *ContentRecord, entry *CheckHistory) error {
	return db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertContent(tx, rec); err != nil {
			return err
		}
		entry.ContentID = rec.ID
		entry.Platform = rec.Platform
		entry.Slug = rec.Slug
		return appendHistory(tx, entry)
	})
}

func upsertContent(tx *gorm.DB, rec *ContentRecord) error {
	if rec.Platform == "" || rec.Slug == "" {
		return fmt.Errorf("content record needs platform and slug")
	}
	if rec.LastChecked.IsZero() {
		rec.LastChecked = time.Now()
	}

	rec.ID = 0
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "slug"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.Slug, err)
	}

	// the id reported by an upsert is not reliable across drivers
	var stored ContentRecord
	err = tx.Select("id", "created_at").
		Where("platform = ? AND slug = ?", rec.Platform, rec.Slug).
		Take(&stored).Error
	if err != nil {
		return fmt.Errorf("failed to reload %s: %w", rec.Slug, err)
	}
	rec.ID = stored.ID
	rec.CreatedAt = stored.CreatedAt
	return nil
}

func appendHistory(tx *gorm.DB, entry *CheckHistory) error {
	if entry.ContentID == 0 {
		var stored ContentRecord
		err := tx.Select("id").
			Where("platform = ? AND slug = ?", entry.Platform, entry.Slug).
			Take(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("history for unknown content %s: %w", entry.Slug, ErrNotFound)
		}
		if err != nil {
			return err
		}
		entry.ContentID = stored.ID
	}
	if entry.CheckedAt.IsZero() {
		entry.CheckedAt = time.Now()
	}

	entry.ID = 0
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append history for %s: %w", entry.Slug, err)
	}
	return nil
}

// GetContent retrieves a record by platform and slug
func (db *Database) GetContent(ctx context.Context, platform, slug string) (*ContentRecord, error) {
	var rec ContentRecord
	err := db.gorm.WithContext(ctx).
		Where("platform = ? AND slug = ?", platform, slug).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ContentStatus returns the stored verdict of an item, or nil when it was never checked
func (db *Database) ContentStatus(ctx context.Context, platform, slug string) (*ContentStatus, error) {
	rec, err := db.GetContent(ctx, platform, slug)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ContentStatus{
		IsGeoRestricted: rec.IsGeoRestricted,
		RestrictionType: rec.RestrictionType,
	}, nil
}

// History retrieves the check history of an item, oldest first
func (db *Database) History(ctx context.Context, platform, slug string) ([]CheckHistory, error) {
	var entries []CheckHistory
	err := db.gorm.WithContext(ctx).
		Where("platform = ? AND slug = ?", platform, slug).
		Order("checked_at, id").
		Find(&entries).Error
	return entries, err
}

// ContentFilter narrows EachContent
type ContentFilter struct {
	Platform       string
	Kind           ContentKind
	RestrictedOnly bool
}

// EachContent streams records ordered by title without loading the whole catalog
func (db *Database) EachContent(ctx context.Context, filter ContentFilter, fn func(*ContentRecord) error) error {
	q := db.gorm.WithContext(ctx).Model(&ContentRecord{})
	if filter.Platform != "" {
		q = q.Where("platform = ?", filter.Platform)
	}
	if filter.Kind != "" {
		q = q.Where("type = ?", filter.Kind)
	}
	if filter.RestrictedOnly {
		q = q.Where("is_geo_restricted = ?", true)
	}

	rows, err := q.Order("title, id").Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rec ContentRecord
		if err := db.gorm.ScanRows(rows, &rec); err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetStatistics aggregates the catalog; an empty platform covers all platforms
func (db *Database) GetStatistics(ctx context.Context, platform string) (*Statistics, error) {
	scoped := func() *gorm.DB {
		q := db.gorm.WithContext(ctx).Model(&ContentRecord{})
		if platform != "" {
			q = q.Where("platform = ?", platform)
		}
		return q
	}

	stats := &Statistics{ByType: make(map[string]int64)}

	if err := scoped().Count(&stats.TotalContent).Error; err != nil {
		return nil, err
	}

	var byType []struct {
		Type  string
		Count int64
	}
	if err := scoped().Select("type, count(*) as count").Group("type").Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, row := range byType {
		stats.ByType[row.Type] = row.Count
	}

	if err := scoped().Where("is_geo_restricted = ?", true).Count(&stats.GeoRestrictedCount).Error; err != nil {
		return nil, err
	}
	if err := scoped().Where("is_geo_restricted = ?", false).Count(&stats.AccessibleCount).Error; err != nil {
		return nil, err
	}
	if err := scoped().Where("is_geo_restricted IS NULL").Count(&stats.UnknownCount).Error; err != nil {
		return nil, err
	}

	if stats.TotalContent > 0 {
		stats.GeoRestrictedPct = float64(stats.GeoRestrictedCount) / float64(stats.TotalContent) * 100
	}

	var latest []ContentRecord
	if err := scoped().Select("last_checked").Order("last_checked desc").Limit(1).Find(&latest).Error; err != nil {
		return nil, err
	}
	if len(latest) == 1 {
		last := latest[0].LastChecked
		stats.LastCheck = &last
	}

	return stats, nil
}

// NormalizeSeasons renumbers the seasons of every series as 1..N in ascending order.
// It returns the number of episode rows updated.
func (db *Database) NormalizeSeasons(ctx context.Context, platform string) (int64, error) {
	var seasons []struct {
		Platform     string
		SeriesSlug   string
		SeasonNumber int
	}

	q := db.gorm.WithContext(ctx).Model(&ContentRecord{}).
		Distinct("platform", "series_slug", "season_number").
		Where("type = ? AND series_slug IS NOT NULL AND season_number IS NOT NULL", KindEpisode)
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}
	if err := q.Order("platform, series_slug, season_number").Scan(&seasons).Error; err != nil {
		return 0, fmt.Errorf("failed to list seasons: %w", err)
	}

	var updated int64
	err := db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ordinal := 0
		prevKey := ""
		for _, s := range seasons {
			key := s.Platform + "\x00" + s.SeriesSlug
			if key != prevKey {
				ordinal = 0
				prevKey = key
			}
			ordinal++

			res := tx.Model(&ContentRecord{}).
				Where("platform = ? AND series_slug = ? AND season_number = ?", s.Platform, s.SeriesSlug, s.SeasonNumber).
				Update("season_number_normalized", ordinal)
			if res.Error != nil {
				return res.Error
			}
			updated += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to normalize seasons: %w", err)
	}

	return updated, nil
}
