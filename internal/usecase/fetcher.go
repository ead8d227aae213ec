package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/util"
)

// OperationFetcher loads executed operations for several accounts at once.
type OperationFetcher struct {
	metrics     domrepo.Metrics
	log         *logger.Logger
	parallelism int
}

func NewOperationFetcher(metrics domrepo.Metrics, log *logger.Logger) *OperationFetcher {
	return &OperationFetcher{
		metrics:     metrics,
		log:         log.With(logger.String("component", "operation_fetcher")),
		parallelism: defaultParallelism,
	}
}

// Fetch returns the union of the operations of every account that could be
// fetched, ordered by timestamp (ties keep account order). Failed accounts
// contribute nothing and are listed in the report. The only error returned
// is the caller's context being done, in which case nothing is kept.
func (f *OperationFetcher) Fetch(ctx context.Context, gw domrepo.BrokerageGateway, accountIDs []string, from, to time.Time) ([]models.Operation, models.FetchReport, error) {
	ids := util.Dedupe(accountIDs)
	if len(ids) == 0 {
		return []models.Operation{}, models.FetchReport{}, nil
	}

	start := time.Now()
	parts, report, failed := fanOut(ctx, ids, f.parallelism, func(ctx context.Context, id string) ([]models.Operation, error) {
		return gw.GetOperations(ctx, id, from, to)
	})
	if err := ctx.Err(); err != nil {
		return nil, models.FetchReport{}, err
	}

	f.metrics.RecordFetch("operations", time.Since(start).Seconds(), report.FailureCount())
	for id, err := range failed {
		f.metrics.RecordAccountFailure(models.KindOf(err))
		f.log.Warn("operations fetch failed", logger.Account(id), logger.Error(err))
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	ops := make([]models.Operation, 0, total)
	for _, p := range parts {
		ops = append(ops, p...)
	}
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Timestamp.Before(ops[j].Timestamp)
	})
	return ops, report, nil
}
