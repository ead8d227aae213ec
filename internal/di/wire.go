//go:build wireinject
// +build wireinject

package di

import (
	"github.com/RiverSpider/PavelBot/internal/usecase"
	"github.com/RiverSpider/PavelBot/pkg/config"
	"github.com/RiverSpider/PavelBot/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetricsRegistry,
		ProvideEngineMetrics,

		// Infrastructure clients
		ProvideRedis,
		ProvideCache,
		ProvideKafkaProducer,

		// Broker access
		ProvideBrokerLimiter,
		ProvideGatewayFactory,
		ProvideGatewayProvider,

		// Repositories
		ProvideTokenCipher,
		ProvideUserStore,
		ProvideDigestPublisher,

		// Use cases
		usecase.NewOperationFetcher,
		usecase.NewPortfolioValuator,
		usecase.NewSettingsUseCase,
		ProvideSessionResolver,
		ProvideReportsUseCase,
		ProvideNotificationsUseCase,

		// Background digests
		usecase.NewDailyDigestJob,
		usecase.NewPaymentsDigestJob,
		ProvideDispatcher,
		ProvideJobQueue,
		ProvideDigestScheduler,

		// HTTP
		ProvideRequestLimiter,
		ProvideFinanceHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
