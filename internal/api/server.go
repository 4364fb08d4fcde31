package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/geowatch/internal/api/handlers"
	"github.com/amaumene/geowatch/internal/api/middleware"
	"github.com/amaumene/geowatch/internal/config"
	"github.com/amaumene/geowatch/internal/metrics"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"
)

// Runner exposes the scheduled runs to the API
type Runner interface {
	handlers.RunStatus
	handlers.Triggerer
}

// Server represents the HTTP server
type Server struct {
	app     *fiber.App
	addr    string
	db      *models.Database
	metrics *metrics.Metrics
	runner  Runner
	logger  *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, m *metrics.Metrics, runner Runner, logger *logrus.Logger) *Server {
	s := &Server{
		addr:    ":" + cfg.ServerPort,
		db:      db,
		metrics: m,
		runner:  runner,
		logger:  logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "geowatch",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           60 * time.Second,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(middleware.Logging(logger))
	s.setupRoutes()

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.app.Get("/health", handlers.NewHealthHandler(s.logger).Handle)
	s.app.Get("/status", handlers.NewStatusHandler(s.db, s.runner, s.logger).Handle)
	s.app.Get("/content/:platform/:slug", handlers.NewContentHandler(s.db, s.logger).Handle)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	if s.runner != nil {
		s.app.Post("/api/scrape", handlers.NewTriggerHandler(s.runner, s.logger).Handle)
	}
}

// handleError renders handler errors as JSON
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}

// Start starts the HTTP server and shuts it down when ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")
	return s.app.ShutdownWithTimeout(10 * time.Second)
}
