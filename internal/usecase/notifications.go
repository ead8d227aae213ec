package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/util"

	"github.com/shopspring/decimal"
)

const defaultCurrency = "rub"

// NotificationsUseCase builds the daily cash-flow summary and the upcoming
// payment calendar.
type NotificationsUseCase struct {
	sessions *SessionResolver
	fetcher  *OperationFetcher
	valuator *PortfolioValuator
	log      *logger.Logger
	timeout  time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewNotificationsUseCase(
	sessions *SessionResolver,
	fetcher *OperationFetcher,
	valuator *PortfolioValuator,
	log *logger.Logger,
	timeout time.Duration,
	loc *time.Location,
) *NotificationsUseCase {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationsUseCase{
		sessions: sessions,
		fetcher:  fetcher,
		valuator: valuator,
		log:      log.With(logger.String("component", "notifications")),
		timeout:  timeout,
		loc:      loc,
		now:      time.Now,
	}
}

// DailySummary reports the gross flow from local midnight until now.
func (uc *NotificationsUseCase) DailySummary(ctx context.Context, userID int64) (*models.DailyFlowSummary, error) {
	return uc.DailySummaryFor(ctx, userID, time.Time{})
}

// DailySummaryFor reports the gross flow of one local calendar day. A zero
// or future day means today, which ends now. Operations without a usable
// payment count with a zero amount.
func (uc *NotificationsUseCase) DailySummaryFor(ctx context.Context, userID int64, day time.Time) (*models.DailyFlowSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	sess, err := uc.sessions.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := uc.now().In(uc.loc)
	if day.IsZero() || day.After(now) {
		day = now
	}
	from := util.StartOfDay(day, uc.loc)
	to := from.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if to.After(now) {
		to = now
	}
	ops, report, err := uc.fetcher.Fetch(ctx, sess.Gateway, sess.AccountIDs, from, to)
	if err != nil {
		return nil, err
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	s := &models.DailyFlowSummary{
		Day:          from,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Operations:   make([]models.FlowOperation, 0, len(ops)),
		Report:       report,
	}
	for _, op := range ops {
		amount := decimal.Zero
		if op.Payment.Valid {
			amount = op.Payment.Decimal
		}
		switch {
		case amount.IsPositive():
			s.TotalIncome = s.TotalIncome.Add(amount)
		case amount.IsNegative():
			s.TotalExpense = s.TotalExpense.Add(amount.Abs())
		}

		currency := op.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		s.Operations = append(s.Operations, models.FlowOperation{
			Date:        op.Timestamp.In(uc.loc),
			Type:        op.Type,
			Amount:      amount,
			Currency:    currency,
			Description: op.Description,
		})
	}
	s.NetFlow = s.TotalIncome.Sub(s.TotalExpense)
	s.OperationsCount = len(s.Operations)
	return s, nil
}

type heldInstrument struct {
	figi string
	uid  string
	name string
	typ  string
}

// UpcomingPayments looks up dividends for held shares and coupons for held
// bonds. Instruments are queried concurrently; one failing instrument only
// drops its own events.
func (uc *NotificationsUseCase) UpcomingPayments(ctx context.Context, userID int64) (*models.UpcomingPayments, error) {
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

	held := make(map[string]heldInstrument)
	var figis []string
	for _, p := range valuation.Positions {
		if p.InstrumentID == "" {
			continue
		}
		if _, ok := held[p.InstrumentID]; ok {
			continue
		}
		held[p.InstrumentID] = heldInstrument{figi: p.InstrumentID, uid: p.InstrumentUID, name: p.Name, typ: p.Type}
		figis = append(figis, p.InstrumentID)
	}

	parts, _, failed := fanOut(ctx, figis, defaultParallelism, func(ctx context.Context, figi string) ([]models.PaymentEvent, error) {
		return uc.paymentsFor(ctx, sess.Gateway, held[figi])
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for figi, err := range failed {
		uc.log.Warn("payment calendar lookup failed", logger.String("figi", figi), logger.Error(err))
	}

	out := &models.UpcomingPayments{
		Dividends: []models.PaymentEvent{},
		Coupons:   []models.PaymentEvent{},
		Report:    valuation.Report,
	}
	for _, events := range parts {
		for _, ev := range events {
			if ev.Kind == models.PaymentDividend {
				out.Dividends = append(out.Dividends, ev)
			} else {
				out.Coupons = append(out.Coupons, ev)
			}
		}
	}
	byDate := func(events []models.PaymentEvent) func(i, j int) bool {
		return func(i, j int) bool { return events[i].Date.Before(events[j].Date) }
	}
	sort.SliceStable(out.Dividends, byDate(out.Dividends))
	sort.SliceStable(out.Coupons, byDate(out.Coupons))
	return out, nil
}

func (uc *NotificationsUseCase) paymentsFor(ctx context.Context, gw domrepo.BrokerageGateway, ins heldInstrument) ([]models.PaymentEvent, error) {
	if ins.typ == "" || (isShare(ins.typ) && ins.uid == "") {
		full, err := gw.GetInstrument(ctx, ins.figi)
		if err != nil {
			return nil, err
		}
		if ins.typ == "" {
			ins.typ = full.Type
		}
		if ins.uid == "" {
			ins.uid = full.UID
		}
		if ins.name == "" {
			ins.name = full.Name
		}
	}

	var (
		events []models.PaymentEvent
		err    error
	)
	switch {
	case isShare(ins.typ):
		events, err = gw.GetUpcomingDividends(ctx, ins.uid)
	case strings.Contains(strings.ToLower(ins.typ), "bond"):
		events, err = gw.GetUpcomingCoupons(ctx, ins.figi)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].InstrumentID = ins.figi
		events[i].Name = ins.name
	}
	return events, nil
}

func isShare(typ string) bool {
	return strings.Contains(strings.ToLower(typ), "share")
}
