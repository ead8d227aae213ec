package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/internal/usecase"
	"github.com/RiverSpider/PavelBot/pkg/cache"
	"github.com/RiverSpider/PavelBot/pkg/config"
	xhttp "github.com/RiverSpider/PavelBot/pkg/http"
	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/queue"
)

// App owns the long-running parts of the service and their shutdown order.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *xhttp.Server
	jobs       *queue.RedisQueue
	scheduler  *usecase.DigestScheduler
	publisher  domrepo.DigestPublisher
	redis      *cache.RedisCache
}

// New assembles an App. scheduler may be nil when digests are disabled.
func New(
	cfg *config.Config,
	log *logger.Logger,
	httpServer *xhttp.Server,
	jobs *queue.RedisQueue,
	scheduler *usecase.DigestScheduler,
	publisher domrepo.DigestPublisher,
	redis *cache.RedisCache,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		jobs:       jobs,
		scheduler:  scheduler,
		publisher:  publisher,
		redis:      redis,
	}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.jobs.Start(ctx); err != nil {
		a.log.Error("job queue start failed", logger.Error(err))
		a.closeInfra()
		return err
	}
	if a.scheduler != nil {
		a.scheduler.Start()
	}
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		return a.shutdown()
	}

	a.log.Info("application started",
		logger.String("env", a.cfg.Environment),
		logger.Int("port", a.cfg.Server.Port),
		logger.Bool("kafka", a.cfg.Kafka.Enabled))

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first (cron, queue, http) and closes the
// infrastructure clients last.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.log.Warn("scheduler stop error", logger.Error(err))
		}
	}
	if err := a.jobs.Stop(ctx); err != nil {
		a.log.Warn("job queue stop error", logger.Error(err))
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
	}

	a.closeInfra()
	a.log.Info("shutdown complete")
	return nil
}

func (a *App) closeInfra() {
	// the collector publishes through the same producer, flush it first
	a.log.DetachCollector()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("digest publisher close error", logger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", logger.Error(err))
		}
	}
}

