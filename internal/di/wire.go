//go:build wireinject
// +build wireinject

package di

import (
	"SignalDesk/pkg/config"
	"SignalDesk/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvidePostgresPool,
	ProvideClickHouseClient,
	ProvideKafkaConsumer,
	ProvideSharedCache,
)

var repositorySet = wire.NewSet(
	ProvideSignalRepository,
	ProvideAdminSignalRepository,
	ProvideSettingsRepository,
	ProvideCandleService,
	ProvideSignalArchive,
)

var usecaseSet = wire.NewSet(
	ProvideEventHub,
	ProvideEvents,
	ProvideNotifier,
	ProvidePriceResolver,
	ProvideAnalyzer,
	ProvideSignalStore,
	ProvideResultResolver,
	ProvideAdminDispatcher,
	ProvideSystemSettings,
	ProvideAutomation,
	ProvideAdminSignalService,
	ProvideAdminFeed,
	ProvideKafkaAdminHandler,
)

// InitializeApp wires up all dependencies and returns the application and
// a cleanup that closes infrastructure clients.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		repositorySet,
		usecaseSet,
		ProvideAPILimiter,
		ProvideHandlers,
		ProvideApp,
	)
	return nil, nil, nil
}
