// Package export writes the catalog as static JSON files for the dashboard.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amaumene/geowatch/internal/config"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	contentFile    = "content.json"
	statisticsFile = "statistics.json"
	restrictedFile = "geo-restricted.json"
)

// Result describes one written export file
type Result struct {
	File          string
	ItemsExported int
	ExportDate    time.Time
}

// Exporter writes JSON exports of the catalog
type Exporter struct {
	db     *models.Database
	dir    string
	logger *logrus.Logger
}

// NewExporter creates a new exporter writing into the configured export directory
func NewExporter(cfg *config.Config, db *models.Database, logger *logrus.Logger) *Exporter {
	return &Exporter{
		db:     db,
		dir:    cfg.ExportDir,
		logger: logger,
	}
}

// ExportAll writes the three export files; an empty platform exports every platform
func (e *Exporter) ExportAll(ctx context.Context, platform string) error {
	if _, err := e.ExportContent(ctx, platform); err != nil {
		return err
	}
	if _, err := e.ExportStatistics(ctx, platform); err != nil {
		return err
	}
	if _, err := e.ExportGeoRestricted(ctx, platform); err != nil {
		return err
	}
	return nil
}

// ExportContent streams every record into content.json behind a statistics header
func (e *Exporter) ExportContent(ctx context.Context, platform string) (*Result, error) {
	stats, err := e.db.GetStatistics(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}

	result := &Result{File: filepath.Join(e.dir, contentFile), ExportDate: time.Now()}
	err = e.writeFile(result.File, func(w *bufio.Writer) error {
		header, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "{\n  \"export_date\": %q,\n  \"statistics\": %s,\n  \"content\": [", result.ExportDate.Format(time.RFC3339), header)

		err = e.db.EachContent(ctx, models.ContentFilter{Platform: platform}, func(rec *models.ContentRecord) error {
			if err := writeItem(w, result.ItemsExported, NewContentItem(rec)); err != nil {
				return err
			}
			result.ItemsExported++
			if result.ItemsExported%1000 == 0 {
				e.logger.WithField("items", result.ItemsExported).Debug("Exporting content")
			}
			return nil
		})
		if err != nil {
			return err
		}

		_, err = w.WriteString("\n  ]\n}\n")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export content: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"file":  result.File,
		"items": result.ItemsExported,
	}).Info("Exported content")
	return result, nil
}

// ExportStatistics writes statistics.json
func (e *Exporter) ExportStatistics(ctx context.Context, platform string) (*models.Statistics, error) {
	stats, err := e.db.GetStatistics(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}

	payload := struct {
		ExportDate string             `json:"export_date"`
		Statistics *models.Statistics `json:"statistics"`
	}{
		ExportDate: time.Now().Format(time.RFC3339),
		Statistics: stats,
	}

	file := filepath.Join(e.dir, statisticsFile)
	err = e.writeFile(file, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export statistics: %w", err)
	}

	e.logger.WithField("file", file).Info("Exported statistics")
	return stats, nil
}

// ExportGeoRestricted streams the restricted records into geo-restricted.json
func (e *Exporter) ExportGeoRestricted(ctx context.Context, platform string) (*Result, error) {
	stats, err := e.db.GetStatistics(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}

	result := &Result{File: filepath.Join(e.dir, restrictedFile), ExportDate: time.Now()}
	err = e.writeFile(result.File, func(w *bufio.Writer) error {
		fmt.Fprintf(w, "{\n  \"export_date\": %q,\n  \"count\": %d,\n  \"content\": [", result.ExportDate.Format(time.RFC3339), stats.GeoRestrictedCount)

		filter := models.ContentFilter{Platform: platform, RestrictedOnly: true}
		err := e.db.EachContent(ctx, filter, func(rec *models.ContentRecord) error {
			if err := writeItem(w, result.ItemsExported, NewContentItem(rec).Restricted()); err != nil {
				return err
			}
			result.ItemsExported++
			return nil
		})
		if err != nil {
			return err
		}

		_, err = w.WriteString("\n  ]\n}\n")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export restricted content: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"file":  result.File,
		"items": result.ItemsExported,
	}).Info("Exported geo-restricted content")
	return result, nil
}

// writeItem appends one array element, indented to sit inside the content array
func writeItem(w *bufio.Writer, index int, item any) error {
	data, err := json.MarshalIndent(item, "    ", "  ")
	if err != nil {
		return err
	}
	if index > 0 {
		w.WriteString(",")
	}
	w.WriteString("\n    ")
	_, err = w.Write(data)
	return err
}

// writeFile writes through a temporary file so readers never see a partial export
func (e *Exporter) writeFile(path string, fill func(*bufio.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
