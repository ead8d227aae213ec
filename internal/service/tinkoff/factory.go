package tinkoff

import (
	"github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/pkg/logger"
)

// Factory builds token-bound clients that share one limiter.
type Factory struct {
	cfg     Config
	limiter Waiter
	log     *logger.Logger
}

func NewFactory(cfg Config, limiter Waiter, log *logger.Logger) *Factory {
	return &Factory{cfg: cfg, limiter: limiter, log: log}
}

func (f *Factory) NewGateway(token string) repository.BrokerageGateway {
	return NewClient(f.cfg, token, f.limiter, f.log)
}
