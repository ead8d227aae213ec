package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/internal/services/analytics"
	"github.com/RiverSpider/PavelBot/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ReportsUseCase builds the analytics views for one user. Nothing is kept
// between requests.
type ReportsUseCase struct {
	sessions *SessionResolver
	fetcher  *OperationFetcher
	valuator *PortfolioValuator
	metrics  domrepo.Metrics
	log      *logger.Logger
	timeout  time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewReportsUseCase(
	sessions *SessionResolver,
	fetcher *OperationFetcher,
	valuator *PortfolioValuator,
	metrics domrepo.Metrics,
	log *logger.Logger,
	timeout time.Duration,
	loc *time.Location,
) *ReportsUseCase {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsUseCase{
		sessions: sessions,
		fetcher:  fetcher,
		valuator: valuator,
		metrics:  metrics,
		log:      log.With(logger.String("component", "reports")),
		timeout:  timeout,
		loc:      loc,
		now:      time.Now,
	}
}

// Income summarizes income and commissions over a named period.
func (uc *ReportsUseCase) Income(ctx context.Context, userID int64, period string) (*models.IncomeReport, error) {
	defer uc.observe("income", time.Now())
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	p := domrepo.NormalizePeriod(period)
	from, to := p.Window(uc.now())

	sess, classified, report, err := uc.classified(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	summary := analytics.Summarize(analytics.InWindow(classified, from, to))
	summary.Period = string(p)
	summary.From, summary.To = from, to
	return &models.IncomeReport{Summary: summary, Accounts: len(sess.AccountIDs), Report: report}, nil
}

// Growth computes lifetime growth and the current portfolio value. Both
// fetches run concurrently.
func (uc *ReportsUseCase) Growth(ctx context.Context, userID int64) (*models.GrowthReport, error) {
	defer uc.observe("growth", time.Now())
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	sess, err := uc.sessions.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	from, to := domrepo.PeriodAllTime.Window(uc.now())

	var (
		ops       []models.Operation
		report    models.FetchReport
		valuation models.PortfolioValuation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ops, report, err = uc.fetcher.Fetch(gctx, sess.Gateway, sess.AccountIDs, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		valuation, err = uc.valuator.Value(gctx, sess.Gateway, sess.AccountIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	classified := analytics.ClassifyAll(uc.localize(ops))
	uc.metrics.RecordMalformed(analytics.CountMalformed(classified))

	return &models.GrowthReport{
		Growth:       analytics.SummarizeGrowth(classified),
		CurrentValue: valuation.TotalValue,
		Accounts:     len(sess.AccountIDs),
		Report:       report,
		Valuation:    valuation.Report,
	}, nil
}

// CapitalChart returns the income-driven capital curve for a period.
func (uc *ReportsUseCase) CapitalChart(ctx context.Context, userID int64, period string) (*models.ChartReport, error) {
	return uc.chart(ctx, userID, period, models.ChartCapital)
}

// IncomeChart returns cumulative and daily income for a period.
func (uc *ReportsUseCase) IncomeChart(ctx context.Context, userID int64, period string) (*models.ChartReport, error) {
	return uc.chart(ctx, userID, period, models.ChartIncome)
}

func (uc *ReportsUseCase) chart(ctx context.Context, userID int64, period string, kind models.ChartKind) (*models.ChartReport, error) {
	defer uc.observe("chart_"+string(kind), time.Now())
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	p := domrepo.NormalizePeriod(period)
	from, to := p.Window(uc.now())

	_, classified, report, err := uc.classified(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	buckets := analytics.Aggregate(analytics.InWindow(classified, from, to))
	chart := analytics.BuildChart(kind, buckets)
	chart.Period = string(p)
	return &models.ChartReport{Chart: chart, Buckets: buckets, Report: report}, nil
}

// Accounts lists every broker account with its current value, most
// valuable first.
func (uc *ReportsUseCase) Accounts(ctx context.Context, userID int64) (*models.AccountsReport, error) {
	defer uc.observe("accounts", time.Now())
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	gw, err := uc.sessions.Gateway(ctx, userID)
	if err != nil {
		return nil, err
	}
	accounts, err := gw.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	valuation, err := uc.valuator.Value(ctx, gw, ids)
	if err != nil {
		return nil, err
	}
	if err := valuation.Report.Err(); err != nil {
		return nil, err
	}

	totals := AccountTotals(valuation.Positions)
	for i := range accounts {
		accounts[i].Value = totals[accounts[i].ID]
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Value.GreaterThan(accounts[j].Value)
	})

	return &models.AccountsReport{
		Accounts:   accounts,
		TotalValue: valuation.TotalValue,
		Report:     valuation.Report,
	}, nil
}

// Portfolio values the selected accounts and groups positions by bucket.
func (uc *ReportsUseCase) Portfolio(ctx context.Context, userID int64) (*models.PortfolioValuation, error) {
	defer uc.observe("portfolio", time.Now())
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	sess, err := uc.sessions.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	valuation, err := uc.valuator.Value(ctx, sess.Gateway, sess.AccountIDs)
	if err != nil {
		return nil, err
	}
	if err := valuation.Report.Err(); err != nil {
		return nil, err
	}
	return &valuation, nil
}

// classified resolves the session, fetches [from, to] and classifies the
// result. A fan-out where every account failed is an error.
func (uc *ReportsUseCase) classified(ctx context.Context, userID int64, from, to time.Time) (*Session, []models.ClassifiedOperation, models.FetchReport, error) {
	sess, err := uc.sessions.Resolve(ctx, userID)
	if err != nil {
		return nil, nil, models.FetchReport{}, err
	}

	ops, report, err := uc.fetcher.Fetch(ctx, sess.Gateway, sess.AccountIDs, from, to)
	if err != nil {
		return nil, nil, report, err
	}
	if err := report.Err(); err != nil {
		uc.log.Warn("every account failed",
			logger.User(userID),
			logger.String("kind", string(report.Kind())))
		return nil, nil, report, err
	}

	classified := analytics.ClassifyAll(uc.localize(ops))
	uc.metrics.RecordMalformed(analytics.CountMalformed(classified))
	return sess, classified, report, nil
}

// localize moves timestamps into the reporting time zone so buckets follow
// local calendar dates.
func (uc *ReportsUseCase) localize(ops []models.Operation) []models.Operation {
	for i := range ops {
		ops[i].Timestamp = ops[i].Timestamp.In(uc.loc)
	}
	return ops
}

func (uc *ReportsUseCase) observe(op string, start time.Time) {
	uc.metrics.RecordLatency(op, time.Since(start).Seconds())
}
