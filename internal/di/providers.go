package di

import (
	"fmt"

	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
	domsvc "github.com/RiverSpider/PavelBot/internal/domain/service"
	"github.com/RiverSpider/PavelBot/internal/handler/api"
	internalrepo "github.com/RiverSpider/PavelBot/internal/repository"
	icache "github.com/RiverSpider/PavelBot/internal/service/cache"
	imetrics "github.com/RiverSpider/PavelBot/internal/service/metrics"
	"github.com/RiverSpider/PavelBot/internal/service/ratelimit"
	"github.com/RiverSpider/PavelBot/internal/service/tinkoff"
	"github.com/RiverSpider/PavelBot/internal/usecase"
	"github.com/RiverSpider/PavelBot/pkg/cache"
	"github.com/RiverSpider/PavelBot/pkg/config"
	xhttp "github.com/RiverSpider/PavelBot/pkg/http"
	"github.com/RiverSpider/PavelBot/pkg/http/middleware"
	pkgkafka "github.com/RiverSpider/PavelBot/pkg/kafka"
	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/metrics"
	"github.com/RiverSpider/PavelBot/pkg/queue"
	"github.com/RiverSpider/PavelBot/pkg/secret"
	"github.com/RiverSpider/PavelBot/pkg/server"
)

const serviceName = "pavelbot"

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("service", serviceName), logger.String("env", cfg.Environment)), nil
}

func ProvideMetricsRegistry() *metrics.Registry {
	return metrics.New(serviceName)
}

func ProvideEngineMetrics(reg *metrics.Registry) domrepo.Metrics {
	return imetrics.NewEngineMetrics(reg)
}

// ProvideRedis connects to Redis. The cache, the settings store and the job
// queue share its pool.
func ProvideRedis(cfg *config.Config) (*cache.RedisCache, error) {
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

func ProvideCache(rc *cache.RedisCache) cache.Service {
	return rc
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *metrics.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMetrics(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideDigestPublisher(cfg *config.Config, producer *pkgkafka.Producer, log *logger.Logger) domrepo.DigestPublisher {
	if producer == nil {
		return internalrepo.NewLogDigestPublisher(log)
	}
	return internalrepo.NewKafkaDigestPublisher(producer, cfg.Kafka.Topics.Notifications)
}

func ProvideTokenCipher(cfg *config.Config) (domsvc.TokenCipher, error) {
	c, err := secret.NewCipher(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("token cipher: %w", err)
	}
	return c, nil
}

// ProvideBrokerLimiter throttles calls to the broker API per token.
func ProvideBrokerLimiter(cfg *config.Config) tinkoff.Waiter {
	return ratelimit.New(float64(cfg.Tinkoff.RateLimit.Capacity), cfg.Tinkoff.RateLimit.Refill)
}

// ProvideRequestLimiter throttles API requests per user.
func ProvideRequestLimiter(cfg *config.Config) middleware.Allower {
	return ratelimit.New(float64(cfg.RateLimit.Capacity), cfg.RateLimit.Refill)
}

func ProvideGatewayFactory(cfg *config.Config, limiter tinkoff.Waiter, log *logger.Logger) domrepo.GatewayFactory {
	return tinkoff.NewFactory(tinkoff.Config{
		BaseURL:       cfg.Tinkoff.BaseURL,
		AppName:       cfg.Tinkoff.AppName,
		Timeout:       cfg.Tinkoff.Timeout,
		RetryAttempts: cfg.Tinkoff.RetryAttempts,
		RetryBackoff:  cfg.Tinkoff.RetryBackoff,
		NameCacheTTL:  cfg.Tinkoff.NameCacheTTL,
		Location:      cfg.Location(),
	}, limiter, log)
}

func ProvideGatewayProvider(factory domrepo.GatewayFactory) domrepo.GatewayProvider {
	return icache.NewClientCache(factory)
}

func ProvideUserStore(c cache.Service, cipher domsvc.TokenCipher, provider domrepo.GatewayProvider, log *logger.Logger) domrepo.UserStore {
	return internalrepo.NewUserStore(c, cipher, provider, log)
}

func ProvideSessionResolver(cfg *config.Config, users domrepo.UserStore, provider domrepo.GatewayProvider) *usecase.SessionResolver {
	return usecase.NewSessionResolver(users, provider, cfg.Tinkoff.Token, cfg.Engine.MaxAccounts)
}

func ProvideReportsUseCase(
	cfg *config.Config,
	sessions *usecase.SessionResolver,
	fetcher *usecase.OperationFetcher,
	valuator *usecase.PortfolioValuator,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.ReportsUseCase {
	return usecase.NewReportsUseCase(sessions, fetcher, valuator, m, log, cfg.Engine.RequestTimeout, cfg.Location())
}

func ProvideNotificationsUseCase(
	cfg *config.Config,
	sessions *usecase.SessionResolver,
	fetcher *usecase.OperationFetcher,
	valuator *usecase.PortfolioValuator,
	log *logger.Logger,
) *usecase.NotificationsUseCase {
	return usecase.NewNotificationsUseCase(sessions, fetcher, valuator, log, cfg.Engine.RequestTimeout, cfg.Location())
}

func ProvideDispatcher(daily *usecase.DailyDigestJob, payments *usecase.PaymentsDigestJob) *queue.Dispatcher {
	return queue.NewDispatcher(daily, payments)
}

func ProvideJobQueue(cfg *config.Config, log *logger.Logger, rc *cache.RedisCache, d *queue.Dispatcher) *queue.RedisQueue {
	return queue.NewRedisQueue(log, queue.Config{
		Name:       cfg.Redis.Prefix + ":" + cfg.Queue.Name,
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		JobTimeout: cfg.Queue.JobTimeout,
	}, rc.Client(), d)
}

// ProvideDigestScheduler returns nil when scheduling is disabled; queued
// jobs are still consumed.
func ProvideDigestScheduler(cfg *config.Config, users domrepo.UserStore, q *queue.RedisQueue, c cache.Service, log *logger.Logger) (*usecase.DigestScheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	return usecase.NewDigestScheduler(users, q, c, log, usecase.ScheduleConfig{
		DailySummary: cfg.Scheduler.DailySummary,
		Payments:     cfg.Scheduler.Payments,
		Location:     cfg.Location(),
	})
}

func ProvideFinanceHandler(
	log *logger.Logger,
	reports *usecase.ReportsUseCase,
	notifications *usecase.NotificationsUseCase,
	settings *usecase.SettingsUseCase,
	limiter middleware.Allower,
) *api.FinanceHandler {
	return api.NewFinanceHandler(log, reports, notifications, settings, limiter)
}

func ProvideHTTPServer(cfg *config.Config, log *logger.Logger, reg *metrics.Registry, h *api.FinanceHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	}
	if !cfg.Metrics.Enabled {
		reg = nil
	} else {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(log, reg, []xhttp.Handler{h}, opts...)
}

// ProvideApp assembles the application and, with Kafka enabled, forwards
// warnings and errors to the ops-log topic.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	scheduler *usecase.DigestScheduler,
	publisher domrepo.DigestPublisher,
	rc *cache.RedisCache,
	producer *pkgkafka.Producer,
) *server.App {
	if producer != nil {
		log.AttachCollector(&logger.CollectorConfig{
			FlushInterval: cfg.Kafka.LogFlush.Interval,
			MaxEntries:    cfg.Kafka.LogFlush.MaxEntries,
			Topic:         cfg.Kafka.Topics.Logs,
			Source:        serviceName,
			Publisher:     producer,
		})
	}
	return server.New(cfg, log, srv, q, scheduler, publisher, rc)
}
