package usecase

import (
	"context"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/internal/services/analytics"
	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/util"

	"github.com/shopspring/decimal"
)

// PortfolioValuator fetches positions per account and values them.
type PortfolioValuator struct {
	metrics     domrepo.Metrics
	log         *logger.Logger
	parallelism int
}

func NewPortfolioValuator(metrics domrepo.Metrics, log *logger.Logger) *PortfolioValuator {
	return &PortfolioValuator{
		metrics:     metrics,
		log:         log.With(logger.String("component", "portfolio_valuator")),
		parallelism: defaultParallelism,
	}
}

// Value merges the positions of every account that could be fetched.
// Failures follow the same rules as OperationFetcher.Fetch.
func (v *PortfolioValuator) Value(ctx context.Context, gw domrepo.BrokerageGateway, accountIDs []string) (models.PortfolioValuation, error) {
	ids := util.Dedupe(accountIDs)
	if len(ids) == 0 {
		return analytics.Valuate(nil), nil
	}

	start := time.Now()
	parts, report, failed := fanOut(ctx, ids, v.parallelism, func(ctx context.Context, id string) ([]models.Position, error) {
		positions, err := gw.GetPositions(ctx, id)
		for i := range positions {
			positions[i].AccountID = id
		}
		return positions, err
	})
	if err := ctx.Err(); err != nil {
		return models.PortfolioValuation{}, err
	}

	v.metrics.RecordFetch("positions", time.Since(start).Seconds(), report.FailureCount())
	for id, err := range failed {
		v.metrics.RecordAccountFailure(models.KindOf(err))
		v.log.Warn("positions fetch failed", logger.Account(id), logger.Error(err))
	}

	var positions []models.Position
	for _, p := range parts {
		positions = append(positions, p...)
	}
	val := analytics.Valuate(positions)
	val.Report = report
	return val, nil
}

// AccountTotals sums position values per account.
func AccountTotals(positions []models.Position) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, p := range positions {
		out[p.AccountID] = out[p.AccountID].Add(p.Value)
	}
	return out
}
