package usecase

import (
	"context"

	"github.com/RiverSpider/PavelBot/internal/domain/models"

	"golang.org/x/sync/errgroup"
)

// defaultParallelism bounds concurrent broker calls within one fan-out.
const defaultParallelism = 8

// fanOut runs fetch once per key and waits for every call to settle. Task
// errors never cancel siblings: each task writes its own slot and returns
// nil to the group, and failures are collected into the report afterwards.
func fanOut[T any](ctx context.Context, keys []string, limit int, fetch func(ctx context.Context, key string) ([]T, error)) ([][]T, models.FetchReport, map[string]error) {
	results := make([][]T, len(keys))
	errs := make([]error, len(keys))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, key := range keys {
		g.Go(func() error {
			items, err := fetch(ctx, key)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	report := models.FetchReport{Requested: len(keys)}
	var failed map[string]error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if report.Failures == nil {
			report.Failures = make(map[string]models.FetchFailure)
			failed = make(map[string]error)
		}
		report.Failures[keys[i]] = models.FetchFailure{Kind: models.KindOf(err), Message: err.Error()}
		failed[keys[i]] = err
	}
	return results, report, failed
}
