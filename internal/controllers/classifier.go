package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amaumene/geowatch/internal/models"
	"github.com/amaumene/geowatch/internal/services/platform"
	"github.com/sirupsen/logrus"
)

// Verdict is the restriction classification of one item
type Verdict struct {
	IsGeoRestricted *bool // nil when the probe failed
	RestrictionType models.RestrictionType
	StatusCode      int    // probe status, 0 on transport error
	Error           string // probe failure detail
}

// Classifier decides whether an item is geo-restricted
type Classifier struct {
	client platform.Client
	logger *logrus.Logger
}

// NewClassifier creates a new classifier
func NewClassifier(client platform.Client, logger *logrus.Logger) *Classifier {
	return &Classifier{
		client: client,
		logger: logger,
	}
}

// Classify returns the verdict of an item. Items blocked at API level are
// restricted without a probe. Otherwise the manifest status decides:
// 200 accessible, 403 restricted, 404 ErrNotFound, anything else unknown.
func (c *Classifier) Classify(ctx context.Context, item *Item) (Verdict, error) {
	if item.APIRestricted {
		return Verdict{
			IsGeoRestricted: models.GeoStatus(true),
			RestrictionType: models.RestrictionAPI403,
			StatusCode:      item.StatusCode,
		}, nil
	}

	status, err := c.client.ProbeRestriction(ctx, item.Slug, item.Kind, c.client.Language())
	if err != nil {
		if ctx.Err() != nil {
			return Verdict{}, ctx.Err()
		}
		c.logger.WithError(err).WithField("slug", item.Slug).Warn("Manifest probe failed")
		return Verdict{
			RestrictionType: models.RestrictionUnknown,
			Error:           err.Error(),
		}, nil
	}

	switch status {
	case http.StatusOK:
		return Verdict{
			IsGeoRestricted: models.GeoStatus(false),
			RestrictionType: models.RestrictionManifest200,
			StatusCode:      status,
		}, nil
	case http.StatusForbidden:
		return Verdict{
			IsGeoRestricted: models.GeoStatus(true),
			RestrictionType: models.RestrictionManifest403,
			StatusCode:      status,
		}, nil
	case http.StatusNotFound:
		return Verdict{}, fmt.Errorf("manifest of %s: %w", item.Slug, ErrNotFound)
	default:
		c.logger.WithFields(logrus.Fields{
			"slug":   item.Slug,
			"status": status,
		}).Warn("Unexpected manifest status")
		return Verdict{
			RestrictionType: models.RestrictionUnknown,
			StatusCode:      status,
			Error:           fmt.Sprintf("unexpected manifest status %d", status),
		}, nil
	}
}
