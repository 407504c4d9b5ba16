//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"listentier/internal"
	"listentier/internal/controllers"
	"listentier/internal/mint"
	"listentier/internal/normalizer"
	"listentier/internal/providers"
	"listentier/internal/scheduler"
	"listentier/internal/services"
	"listentier/internal/spotify"
	"listentier/internal/storage"
	"listentier/internal/structures"
	"listentier/internal/tier"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, func(), error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		storage.NewZstdCompressor,
		storage.NewBlobStore,
		storage.NewHistoryRepository,
		normalizer.New,
		tier.NewCalculatorProvider,
		spotify.NewPlaySource,
		mint.NewMintSink,
		services.NewHistoryService,
		scheduler.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewHandler,
		internal.NewApp,
	)

	return nil, nil, nil
}
