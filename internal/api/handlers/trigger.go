package handlers

import (
	"errors"

	"github.com/amaumene/geowatch/internal/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Triggerer starts a scrape run in the background
type Triggerer interface {
	Trigger() error
}

// TriggerHandler starts a scrape run on demand
type TriggerHandler struct {
	runner Triggerer
	logger *logrus.Logger
}

// NewTriggerHandler creates a new trigger handler
func NewTriggerHandler(runner Triggerer, logger *logrus.Logger) *TriggerHandler {
	return &TriggerHandler{
		runner: runner,
		logger: logger,
	}
}

// Handle answers POST /api/scrape
func (h *TriggerHandler) Handle(c *fiber.Ctx) error {
	err := h.runner.Trigger()
	if errors.Is(err, scheduler.ErrRunInProgress) {
		h.logger.Info("Scrape requested while a run is in progress")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"status": "running"})
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to trigger scrape")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to trigger scrape")
	}

	h.logger.Info("Scrape triggered over HTTP")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
}
