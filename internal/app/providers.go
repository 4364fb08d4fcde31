// Package app assembles the geowatch components from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/amaumene/geowatch/internal/api"
	"github.com/amaumene/geowatch/internal/config"
	"github.com/amaumene/geowatch/internal/controllers"
	"github.com/amaumene/geowatch/internal/export"
	"github.com/amaumene/geowatch/internal/metrics"
	"github.com/amaumene/geowatch/internal/models"
	"github.com/amaumene/geowatch/internal/scheduler"
	"github.com/amaumene/geowatch/internal/services/platform"
	"github.com/amaumene/geowatch/internal/tracing"
	"github.com/amaumene/geowatch/internal/utils"
	"github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// App holds the assembled components shared by every command
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *models.Database
	Metrics   *metrics.Metrics
	Clients   []platform.Client
	Scrape    *controllers.ScrapeController
	Exporter  *export.Exporter
	Scheduler *scheduler.Scheduler
	Server    *api.Server
}

// Client returns the configured client of a platform
func (a *App) Client(name string) (platform.Client, error) {
	for _, client := range a.Clients {
		if client.Name() == name {
			return client, nil
		}
	}
	return nil, fmt.Errorf("platform %s is not configured", name)
}

// ProvideLogger creates the application logger
func ProvideLogger(cfg *config.Config) *logrus.Logger {
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFile)
	logger.WithFields(logrus.Fields{
		"platforms": cfg.Platforms,
		"database":  cfg.DatabaseDriver,
	}).Debug("Configuration loaded")
	return logger
}

// ProvideDatabase opens the catalog store
func ProvideDatabase(cfg *config.Config, logger *logrus.Logger) (*models.Database, func(), error) {
	db, err := models.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Error("Failed to close database")
		}
	}
	return db, cleanup, nil
}

// ProvideIgnoreList loads the ignore list, continuing without it on error
func ProvideIgnoreList(cfg *config.Config, logger *logrus.Logger) *utils.IgnoreList {
	ignore, err := utils.LoadIgnoreList(cfg.IgnoreFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load ignore list, continuing without it")
		return &utils.IgnoreList{}
	}
	logger.WithField("entries", ignore.Len()).Debug("Ignore list loaded")
	return ignore
}

// ProvideTracerProvider creates the span-logging tracer provider
func ProvideTracerProvider(logger *logrus.Logger) (*sdktrace.TracerProvider, func()) {
	provider := tracing.NewProvider(logger)
	cleanup := func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to shut down tracer provider")
		}
	}
	return provider, cleanup
}

// ProvideTracer returns the pipeline tracer
func ProvideTracer(provider *sdktrace.TracerProvider) trace.Tracer {
	return tracing.Tracer(provider)
}

// ProvideClients creates one client per configured platform
func ProvideClients(cfg *config.Config, logger *logrus.Logger) ([]platform.Client, error) {
	clients := make([]platform.Client, 0, len(cfg.Platforms))
	for _, name := range cfg.Platforms {
		client, err := platform.NewClient(name, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s client: %w", name, err)
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// ProvideScheduler creates the cron scheduler over every configured platform
func ProvideScheduler(cfg *config.Config, scrape *controllers.ScrapeController, exporter *export.Exporter, clients []platform.Client, logger *logrus.Logger) *scheduler.Scheduler {
	return scheduler.NewScheduler(cfg.Schedule, scrape, exporter, clients, logger)
}
