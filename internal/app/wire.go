//go:build wireinject
// +build wireinject

package app

import (
	"github.com/amaumene/geowatch/internal/api"
	"github.com/amaumene/geowatch/internal/config"
	"github.com/amaumene/geowatch/internal/controllers"
	"github.com/amaumene/geowatch/internal/export"
	"github.com/amaumene/geowatch/internal/metrics"
	"github.com/amaumene/geowatch/internal/scheduler"
	"github.com/google/wire"
)

var providerSet = wire.NewSet(
	ProvideLogger,
	ProvideDatabase,
	ProvideIgnoreList,
	ProvideTracerProvider,
	ProvideTracer,
	ProvideClients,
	ProvideScheduler,
	metrics.New,
	controllers.NewScrapeController,
	export.NewExporter,
	api.NewServer,
	wire.Bind(new(api.Runner), new(*scheduler.Scheduler)),
	wire.Struct(new(App), "*"),
)

// Initialize builds the application from a loaded configuration
func Initialize(cfg *config.Config) (*App, func(), error) {
	wire.Build(providerSet)
	return nil, nil, nil
}
