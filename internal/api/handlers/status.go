package handlers

import (
	"time"

	"github.com/amaumene/geowatch/internal/controllers"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RunStatus reports the state of scheduled scrape runs
type RunStatus interface {
	Running() bool
	LastRuns() []controllers.RunSummary
}

// StatusHandler handles status requests
type StatusHandler struct {
	db     *models.Database
	runs   RunStatus
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler. runs may be nil.
func NewStatusHandler(db *models.Database, runs RunStatus, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		runs:   runs,
		logger: logger,
	}
}

// RunResponse is the summary of the last run of a platform
type RunResponse struct {
	RunID      string    `json:"run_id"`
	Platform   string    `json:"platform"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Discovered int       `json:"discovered"`
	Checked    int       `json:"checked"`
	Restricted int       `json:"restricted"`
	Accessible int       `json:"accessible"`
	Unknown    int       `json:"unknown"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// StatusResponse represents the status response
type StatusResponse struct {
	Platform   string             `json:"platform,omitempty"`
	Statistics *models.Statistics `json:"statistics"`
	Running    bool               `json:"running"`
	LastRuns   []RunResponse      `json:"last_runs"`
}

// Handle answers the status endpoint, optionally scoped with ?platform=
func (h *StatusHandler) Handle(c *fiber.Ctx) error {
	platform := c.Query("platform")

	stats, err := h.db.GetStatistics(c.UserContext(), platform)
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute statistics")
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}

	response := StatusResponse{
		Platform:   platform,
		Statistics: stats,
		LastRuns:   []RunResponse{},
	}

	if h.runs != nil {
		response.Running = h.runs.Running()
		for _, run := range h.runs.LastRuns() {
			if platform != "" && run.Platform != platform {
				continue
			}
			response.LastRuns = append(response.LastRuns, RunResponse{
				RunID:      run.RunID,
				Platform:   run.Platform,
				StartedAt:  run.StartedAt,
				DurationMS: run.Duration.Milliseconds(),
				Discovered: run.Discovered,
				Checked:    run.Checked,
				Restricted: run.Restricted,
				Accessible: run.Accessible,
				Unknown:    run.Unknown,
				Skipped:    run.Skipped,
				Failed:     run.Failed,
			})
		}
	}

	return c.JSON(response)
}
