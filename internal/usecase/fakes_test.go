package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/pkg/logger"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func payment(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func op(account string, at time.Time, typ models.OperationType, amount string) models.Operation {
	o := models.Operation{AccountID: account, Timestamp: at, Type: typ, Currency: "rub"}
	if amount != "" {
		o.Payment = payment(amount)
	}
	return o
}

type fakeGateway struct {
	mu sync.Mutex

	accounts    []models.Account
	accountsErr error
	ops         map[string][]models.Operation
	opsErr      map[string]error
	positions   map[string][]models.Position
	posErr      map[string]error
	instruments map[string]models.Instrument
	dividends   map[string][]models.PaymentEvent
	coupons     map[string][]models.PaymentEvent
	calendarErr map[string]error
	block       bool

	opsCalls int
}

func (g *fakeGateway) ListAccounts(context.Context) ([]models.Account, error) {
	if g.accountsErr != nil {
		return nil, g.accountsErr
	}
	return append([]models.Account(nil), g.accounts...), nil
}

func (g *fakeGateway) GetPositions(_ context.Context, accountID string) ([]models.Position, error) {
	if err := g.posErr[accountID]; err != nil {
		return nil, err
	}
	return append([]models.Position(nil), g.positions[accountID]...), nil
}

func (g *fakeGateway) GetOperations(ctx context.Context, accountID string, from, to time.Time) ([]models.Operation, error) {
	g.mu.Lock()
	g.opsCalls++
	g.mu.Unlock()

	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := g.opsErr[accountID]; err != nil {
		return nil, err
	}
	var out []models.Operation
	for _, o := range g.ops[accountID] {
		if o.Timestamp.Before(from) || o.Timestamp.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (g *fakeGateway) GetInstrumentName(_ context.Context, id string) string {
	if ins, ok := g.instruments[id]; ok {
		return ins.Name
	}
	return "unknown"
}

func (g *fakeGateway) GetInstrument(_ context.Context, id string) (models.Instrument, error) {
	if err := g.calendarErr[id]; err != nil {
		return models.Instrument{}, err
	}
	return g.instruments[id], nil
}

func (g *fakeGateway) GetUpcomingDividends(_ context.Context, uid string) ([]models.PaymentEvent, error) {
	return g.dividends[uid], nil
}

func (g *fakeGateway) GetUpcomingCoupons(_ context.Context, figi string) ([]models.PaymentEvent, error) {
	if err := g.calendarErr[figi]; err != nil {
		return nil, err
	}
	return g.coupons[figi], nil
}

type fakeUsers struct {
	mu       sync.Mutex
	settings map[int64]*models.UserSettings
	subs     map[models.DigestKind][]int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{settings: map[int64]*models.UserSettings{}, subs: map[models.DigestKind][]int64{}}
}

func (u *fakeUsers) Get(_ context.Context, id int64) (*models.UserSettings, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if st, ok := u.settings[id]; ok {
		cp := *st
		return &cp, nil
	}
	return &models.UserSettings{UserID: id}, nil
}

func (u *fakeUsers) entry(id int64) *models.UserSettings {
	st, ok := u.settings[id]
	if !ok {
		st = &models.UserSettings{UserID: id}
		u.settings[id] = st
	}
	return st
}

func (u *fakeUsers) SetToken(_ context.Context, id int64, token string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entry(id).Token = token
	return nil
}

func (u *fakeUsers) SetAccounts(_ context.Context, id int64, ids []string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entry(id).SelectedAccountIDs = ids
	return nil
}

func (u *fakeUsers) SetSubscriptions(_ context.Context, id int64, daily, payments bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	st := u.entry(id)
	st.DailySummary, st.PaymentReminders = daily, payments
	return nil
}

func (u *fakeUsers) Subscribers(_ context.Context, kind models.DigestKind) ([]int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.subs[kind], nil
}

type fakeProvider struct {
	gw    domrepo.BrokerageGateway
	calls int
}

func (p *fakeProvider) Get(context.Context, string, string) (domrepo.BrokerageGateway, error) {
	p.calls++
	return p.gw, nil
}

func (p *fakeProvider) Invalidate(string) {}

type recordingMetrics struct {
	mu        sync.Mutex
	failures  map[models.ErrorKind]int
	malformed int
	digests   map[models.DigestKind][]bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{failures: map[models.ErrorKind]int{}, digests: map[models.DigestKind][]bool{}}
}

func (m *recordingMetrics) RecordFetch(string, float64, int) {}

func (m *recordingMetrics) RecordAccountFailure(kind models.ErrorKind) {
	m.mu.Lock()
	m.failures[kind]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordMalformed(n int) {
	m.mu.Lock()
	m.malformed += n
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordDigest(kind models.DigestKind, ok bool) {
	m.mu.Lock()
	m.digests[kind] = append(m.digests[kind], ok)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLatency(string, float64) {}

// harness wires the usecases around one fake gateway and user 1 holding
// a token with the given accounts selected.
type harness struct {
	gw            *fakeGateway
	users         *fakeUsers
	metrics       *recordingMetrics
	sessions      *SessionResolver
	fetcher       *OperationFetcher
	valuator      *PortfolioValuator
	reports       *ReportsUseCase
	notifications *NotificationsUseCase
}

func newHarness(gw *fakeGateway, accounts ...string) *harness {
	users := newFakeUsers()
	_ = users.SetToken(context.Background(), 1, "t.token")
	if len(accounts) > 0 {
		_ = users.SetAccounts(context.Background(), 1, accounts)
	}

	m := newRecordingMetrics()
	log := logger.Nop()
	sessions := NewSessionResolver(users, &fakeProvider{gw: gw}, "", 20)
	fetcher := NewOperationFetcher(m, log)
	valuator := NewPortfolioValuator(m, log)

	reports := NewReportsUseCase(sessions, fetcher, valuator, m, log, time.Minute, time.UTC)
	reports.now = func() time.Time { return testNow }
	notifications := NewNotificationsUseCase(sessions, fetcher, valuator, log, time.Minute, time.UTC)
	notifications.now = func() time.Time { return testNow }

	return &harness{
		gw:            gw,
		users:         users,
		metrics:       m,
		sessions:      sessions,
		fetcher:       fetcher,
		valuator:      valuator,
		reports:       reports,
		notifications: notifications,
	}
}
