package handlers

import (
	"errors"
	"time"

	"github.com/amaumene/geowatch/internal/export"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ContentHandler serves one catalog item with its verdict history
type ContentHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(db *models.Database, logger *logrus.Logger) *ContentHandler {
	return &ContentHandler{
		db:     db,
		logger: logger,
	}
}

// HistoryEntry is one stored verdict
type HistoryEntry struct {
	RunID           string    `json:"run_id"`
	CheckedAt       time.Time `json:"checked_at"`
	Status          string    `json:"status"`
	RestrictionType string    `json:"restriction_type"`
	StatusCode      int       `json:"status_code"`
	Error           string    `json:"error,omitempty"`
}

// ContentResponse represents the content response
type ContentResponse struct {
	export.ContentItem
	History []HistoryEntry `json:"history"`
}

// Handle answers GET /content/:platform/:slug
func (h *ContentHandler) Handle(c *fiber.Ctx) error {
	platform, slug := c.Params("platform"), c.Params("slug")
	log := h.logger.WithFields(logrus.Fields{
		"platform": platform,
		"slug":     slug,
	})

	rec, err := h.db.GetContent(c.UserContext(), platform, slug)
	if errors.Is(err, models.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Content not found")
	}
	if err != nil {
		log.WithError(err).Error("Failed to get content")
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}

	entries, err := h.db.History(c.UserContext(), platform, slug)
	if err != nil {
		log.WithError(err).Error("Failed to get check history")
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}

	response := ContentResponse{
		ContentItem: export.NewContentItem(rec),
		History:     make([]HistoryEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		response.History = append(response.History, HistoryEntry{
			RunID:           entry.RunID,
			CheckedAt:       entry.CheckedAt,
			Status:          models.StatusLabel(entry.IsGeoRestricted),
			RestrictionType: string(entry.RestrictionType),
			StatusCode:      entry.StatusCode,
			Error:           entry.Error,
		})
	}

	return c.JSON(response)
}
