package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
)

func day(n int, hour int) time.Time {
	return time.Date(2024, 5, n, hour, 0, 0, 0, time.UTC)
}

func scenarioGateway() *fakeGateway {
	return &fakeGateway{ops: map[string][]models.Operation{
		"a": {
			op("a", day(8, 10), models.OperationTypeDividend, "100"),
			op("a", day(8, 11), models.OperationTypeBrokerCommission, "-5"),
		},
		"b": {
			op("b", day(9, 10), models.OperationTypeCoupon, "50"),
			op("b", day(9, 12), models.OperationTypeBuy, ""),
		},
	}}
}

func TestIncomeScenario(t *testing.T) {
	h := newHarness(scenarioGateway(), "a", "b")

	rep, err := h.reports.Income(context.Background(), 1, "week")
	if err != nil {
		t.Fatalf("income: %v", err)
	}
	s := rep.Summary
	checks := map[string]struct{ got, want string }{
		"total_income":        {s.TotalIncome.String(), "150"},
		"dividend_income":     {s.DividendIncome.String(), "100"},
		"bond_income":         {s.BondIncome.String(), "50"},
		"commission_expenses": {s.CommissionExpenses.String(), "5"},
		"net_income":          {s.NetIncome.String(), "145"},
	}
	for name, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %s, want %s", name, c.got, c.want)
		}
	}
	if s.Period != "week" || rep.Accounts != 2 || s.MalformedCount != 1 {
		t.Fatalf("period=%s accounts=%d malformed=%d", s.Period, rep.Accounts, s.MalformedCount)
	}
	if h.metrics.malformed != 1 {
		t.Fatalf("malformed metric = %d", h.metrics.malformed)
	}
}

func TestIncomeUnknownPeriodFallsBackToWeek(t *testing.T) {
	h := newHarness(scenarioGateway(), "a", "b")

	rep, err := h.reports.Income(context.Background(), 1, "fortnight")
	if err != nil {
		t.Fatalf("income: %v", err)
	}
	if rep.Summary.Period != "week" || !rep.Summary.From.Equal(testNow.Add(-7*24*time.Hour)) {
		t.Fatalf("window = %s %s", rep.Summary.Period, rep.Summary.From)
	}
}

func TestCapitalChartScenario(t *testing.T) {
	h := newHarness(scenarioGateway(), "a", "b")

	rep, err := h.reports.CapitalChart(context.Background(), 1, "week")
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if len(rep.Buckets) != 2 {
		t.Fatalf("buckets = %+v", rep.Buckets)
	}
	if !rep.Buckets[0].CapitalDelta.Equal(dec("95")) || !rep.Buckets[1].CapitalDelta.Equal(dec("50")) {
		t.Fatalf("deltas = %s %s", rep.Buckets[0].CapitalDelta, rep.Buckets[1].CapitalDelta)
	}

	cum := rep.Chart.SeriesByName(models.SeriesCumulativeCapital)
	if cum == nil || len(cum.Points) != 2 {
		t.Fatalf("cumulative series = %+v", cum)
	}
	if !cum.Points[0].Value.Equal(dec("95")) || !cum.Points[1].Value.Equal(dec("145")) {
		t.Fatalf("cumulative = %s %s", cum.Points[0].Value, cum.Points[1].Value)
	}
}

func TestIncomeChartNoData(t *testing.T) {
	h := newHarness(&fakeGateway{}, "a")

	rep, err := h.reports.IncomeChart(context.Background(), 1, "day")
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if !rep.Chart.NoData || len(rep.Chart.Series) != 0 || rep.Chart.Kind != models.ChartIncome {
		t.Fatalf("expected no data, got %+v", rep.Chart)
	}
}

func TestReportsAllAccountsFailed(t *testing.T) {
	gw := &fakeGateway{opsErr: map[string]error{
		"a": errors.New("dial tcp: i/o timeout"),
		"b": models.ErrUnauthorized,
	}}
	h := newHarness(gw, "a", "b")

	_, err := h.reports.Income(context.Background(), 1, "week")
	if !errors.Is(err, models.ErrAllAccountsFailed) {
		t.Fatalf("expected ErrAllAccountsFailed, got %v", err)
	}
	if !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("auth failure should dominate, got %v", err)
	}
}

func TestGrowthDepositOnly(t *testing.T) {
	gw := &fakeGateway{
		ops: map[string][]models.Operation{
			"a": {op("a", day(1, 9), models.OperationTypeInput, "1000")},
		},
		positions: map[string][]models.Position{
			"a": {{InstrumentID: "S1", Type: "share", Quantity: dec("1"), CurrentPrice: dec("1010")}},
		},
	}
	h := newHarness(gw, "a")

	rep, err := h.reports.Growth(context.Background(), 1)
	if err != nil {
		t.Fatalf("growth: %v", err)
	}
	g := rep.Growth
	if !g.TotalInvested.Equal(dec("1000")) || !g.TotalGrowth.IsZero() || !g.NetGrowth.IsZero() {
		t.Fatalf("growth = %+v", g)
	}
	if !g.ROI.Available || !g.ROI.Percent.IsZero() {
		t.Fatalf("roi = %+v", g.ROI)
	}
	if !rep.CurrentValue.Equal(dec("1010")) {
		t.Fatalf("current value = %s", rep.CurrentValue)
	}
}

func TestGrowthWithoutDepositsHasNoROI(t *testing.T) {
	gw := &fakeGateway{ops: map[string][]models.Operation{
		"a": {op("a", day(1, 9), models.OperationTypeCoupon, "40")},
	}}
	h := newHarness(gw, "a")

	rep, err := h.reports.Growth(context.Background(), 1)
	if err != nil {
		t.Fatalf("growth: %v", err)
	}
	if rep.Growth.ROI.Available || rep.Growth.ROI.Reason != models.KindRoiUndefined {
		t.Fatalf("roi must be unavailable: %+v", rep.Growth.ROI)
	}
}

func TestAccountsSortedByValue(t *testing.T) {
	gw := &fakeGateway{
		accounts: []models.Account{{ID: "small", Name: "ИИС"}, {ID: "big", Name: "Брокерский"}},
		positions: map[string][]models.Position{
			"small": {{Quantity: dec("1"), CurrentPrice: dec("10")}},
			"big":   {{Quantity: dec("3"), CurrentPrice: dec("100")}},
		},
	}
	h := newHarness(gw)

	rep, err := h.reports.Accounts(context.Background(), 1)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(rep.Accounts) != 2 || rep.Accounts[0].ID != "big" || !rep.Accounts[0].Value.Equal(dec("300")) {
		t.Fatalf("accounts = %+v", rep.Accounts)
	}
	if !rep.TotalValue.Equal(dec("310")) {
		t.Fatalf("total = %s", rep.TotalValue)
	}
}

func TestPortfolioUsesFirstAccountWithoutSelection(t *testing.T) {
	gw := &fakeGateway{
		accounts: []models.Account{{ID: "first"}, {ID: "second"}},
		positions: map[string][]models.Position{
			"first":  {{Type: "etf", Quantity: dec("4"), CurrentPrice: dec("2.5")}},
			"second": {{Type: "share", Quantity: dec("1"), CurrentPrice: dec("1000")}},
		},
	}
	h := newHarness(gw)

	val, err := h.reports.Portfolio(context.Background(), 1)
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if !val.TotalValue.Equal(dec("10")) || !val.Totals[models.BucketETF].Equal(dec("10")) {
		t.Fatalf("valuation = %+v", val)
	}
}

func TestSessionErrors(t *testing.T) {
	users := newFakeUsers()
	r := NewSessionResolver(users, &fakeProvider{gw: &fakeGateway{}}, "", 0)
	if _, err := r.Resolve(context.Background(), 5); !errors.Is(err, models.ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}

	r = NewSessionResolver(users, &fakeProvider{gw: &fakeGateway{}}, "t.default", 0)
	if _, err := r.Resolve(context.Background(), 5); !errors.Is(err, models.ErrNoAccounts) {
		t.Fatalf("expected ErrNoAccounts, got %v", err)
	}

	r = NewSessionResolver(users, &fakeProvider{gw: &fakeGateway{accountsErr: models.ErrUnauthorized}}, "t.default", 0)
	if _, err := r.Resolve(context.Background(), 5); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSessionCapsSelectedAccounts(t *testing.T) {
	users := newFakeUsers()
	_ = users.SetToken(context.Background(), 1, "t.x")
	_ = users.SetAccounts(context.Background(), 1, []string{"a", "b", "c"})

	r := NewSessionResolver(users, &fakeProvider{gw: &fakeGateway{}}, "", 2)
	sess, err := r.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sess.AccountIDs) != 2 {
		t.Fatalf("accounts = %v", sess.AccountIDs)
	}
}
