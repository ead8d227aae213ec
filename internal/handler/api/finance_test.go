package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	"github.com/RiverSpider/PavelBot/internal/usecase"
	xhttp "github.com/RiverSpider/PavelBot/pkg/http"
	"github.com/RiverSpider/PavelBot/pkg/http/middleware"
	"github.com/RiverSpider/PavelBot/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type fakeReports struct {
	err        error
	lastUser   int64
	lastPeriod string
}

func (f *fakeReports) Income(_ context.Context, userID int64, period string) (*models.IncomeReport, error) {
	f.lastUser, f.lastPeriod = userID, period
	if f.err != nil {
		return nil, f.err
	}
	return &models.IncomeReport{Summary: models.PeriodSummary{TotalIncome: decimal.NewFromInt(150)}}, nil
}

func (f *fakeReports) Growth(_ context.Context, userID int64) (*models.GrowthReport, error) {
	f.lastUser = userID
	return &models.GrowthReport{}, f.err
}

func (f *fakeReports) CapitalChart(_ context.Context, userID int64, period string) (*models.ChartReport, error) {
	f.lastUser, f.lastPeriod = userID, period
	return &models.ChartReport{}, f.err
}

func (f *fakeReports) IncomeChart(_ context.Context, userID int64, period string) (*models.ChartReport, error) {
	f.lastUser, f.lastPeriod = userID, period
	return &models.ChartReport{}, f.err
}

func (f *fakeReports) Accounts(_ context.Context, userID int64) (*models.AccountsReport, error) {
	f.lastUser = userID
	return &models.AccountsReport{}, f.err
}

func (f *fakeReports) Portfolio(_ context.Context, userID int64) (*models.PortfolioValuation, error) {
	f.lastUser = userID
	return &models.PortfolioValuation{}, f.err
}

type fakeNotifications struct {
	err     error
	lastDay time.Time
}

func (f *fakeNotifications) DailySummaryFor(_ context.Context, _ int64, day time.Time) (*models.DailyFlowSummary, error) {
	f.lastDay = day
	return &models.DailyFlowSummary{}, f.err
}

func (f *fakeNotifications) UpcomingPayments(context.Context, int64) (*models.UpcomingPayments, error) {
	return &models.UpcomingPayments{}, f.err
}

type fakeSettings struct {
	valid    bool
	err      error
	accounts []string
	daily    bool
}

func (f *fakeSettings) SetToken(context.Context, int64, string) (*usecase.TokenCheck, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.TokenCheck{Valid: f.valid}, nil
}

func (f *fakeSettings) SetAccounts(_ context.Context, _ int64, ids []string) error {
	f.accounts = ids
	return f.err
}

func (f *fakeSettings) SetSubscriptions(_ context.Context, _ int64, daily, _ bool) error {
	f.daily = daily
	return f.err
}

type countingAllower struct{ left int }

func (a *countingAllower) Allow(string) bool {
	if a.left <= 0 {
		return false
	}
	a.left--
	return true
}

func newTestServer(r *fakeReports, n *fakeNotifications, s *fakeSettings, limiter middleware.Allower) *echo.Echo {
	e := echo.New()
	NewFinanceHandler(logger.Nop(), r, n, s, limiter).RegisterRoutes(e.Group("/api"))
	return e
}

func do(e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env xhttp.APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestIncomePassesUserAndPeriod(t *testing.T) {
	reports := &fakeReports{}
	e := newTestServer(reports, &fakeNotifications{}, &fakeSettings{}, nil)

	rec, env := do(e, http.MethodGet, "/api/income?user_id=42&period=month", "")
	if rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if reports.lastUser != 42 || reports.lastPeriod != "month" {
		t.Fatalf("usecase got user=%d period=%q", reports.lastUser, reports.lastPeriod)
	}
	if !strings.Contains(rec.Body.String(), `"total_income":"150"`) {
		t.Fatalf("income not rendered: %s", rec.Body.String())
	}
}

func TestPeriodDefaultsToWeek(t *testing.T) {
	reports := &fakeReports{}
	e := newTestServer(reports, &fakeNotifications{}, &fakeSettings{}, nil)

	rec, _ := do(e, http.MethodGet, "/api/chart/capital?user_id=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if reports.lastPeriod != "week" {
		t.Fatalf("expected default period week, got %q", reports.lastPeriod)
	}
}

func TestRejectsNegativeUser(t *testing.T) {
	e := newTestServer(&fakeReports{}, &fakeNotifications{}, &fakeSettings{}, nil)
	rec, _ := do(e, http.MethodGet, "/api/accounts?user_id=-3", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no token", models.ErrNoToken, http.StatusUnauthorized, "ERR_NO_TOKEN"},
		{"no accounts", models.ErrNoAccounts, http.StatusNotFound, ""},
		{"all failed", fmt.Errorf("income: %w", models.ErrAllAccountsFailed), http.StatusBadGateway, ""},
		{"rejected token", models.ErrUnauthorized, http.StatusUnauthorized, ""},
		{"timeout", fmt.Errorf("fetch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, ""},
		{"busy", models.ErrUserBusy, http.StatusConflict, "ERR_BUSY"},
		{"other", errors.New("redis down"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestServer(&fakeReports{err: tc.err}, &fakeNotifications{}, &fakeSettings{}, nil)
			rec, _ := do(e, http.MethodGet, "/api/growth?user_id=1", "")
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.code != "" && !strings.Contains(rec.Body.String(), tc.code) {
				t.Fatalf("expected code %s in %s", tc.code, rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "redis down") {
				t.Fatalf("internal error leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestAllAccountsRejectedIsUnauthorized(t *testing.T) {
	err := fmt.Errorf("%w: %w", models.ErrAllAccountsFailed, models.ErrUnauthorized)
	appErr := toAppError(err)
	if appErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", appErr.Status)
	}
	if appErr.Params["kind"] != models.KindAuthFailure {
		t.Fatalf("expected auth kind, got %v", appErr.Params["kind"])
	}
}

func TestSetTokenReportsInvalid(t *testing.T) {
	e := newTestServer(&fakeReports{}, &fakeNotifications{}, &fakeSettings{valid: false}, nil)
	rec, _ := do(e, http.MethodPost, "/api/set_token", `{"user_id":5,"token":"t.0123456789"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"valid":false`) {
		t.Fatalf("expected invalid token check: %s", rec.Body.String())
	}
}

func TestSetTokenValidatesBody(t *testing.T) {
	e := newTestServer(&fakeReports{}, &fakeNotifications{}, &fakeSettings{}, nil)
	rec, _ := do(e, http.MethodPost, "/api/set_token", `{"user_id":5,"token":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_REQUIRED") {
		t.Fatalf("expected required error: %s", rec.Body.String())
	}
}

func TestSetAccounts(t *testing.T) {
	settings := &fakeSettings{}
	e := newTestServer(&fakeReports{}, &fakeNotifications{}, settings, nil)

	rec, _ := do(e, http.MethodPost, "/api/set_accounts", `{"user_id":5,"account_ids":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty list: expected 400, got %d", rec.Code)
	}

	rec, _ = do(e, http.MethodPost, "/api/set_accounts", `{"user_id":5,"account_ids":["a1","a2"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(settings.accounts) != 2 || settings.accounts[0] != "a1" {
		t.Fatalf("accounts not forwarded: %v", settings.accounts)
	}
}

func TestSubscriptions(t *testing.T) {
	settings := &fakeSettings{}
	e := newTestServer(&fakeReports{}, &fakeNotifications{}, settings, nil)
	rec, _ := do(e, http.MethodPost, "/api/subscriptions", `{"user_id":5,"daily_summary":true}`)
	if rec.Code != http.StatusOK || !settings.daily {
		t.Fatalf("expected subscription stored, got %d daily=%v", rec.Code, settings.daily)
	}
}

func TestNotificationsRoutes(t *testing.T) {
	e := newTestServer(&fakeReports{}, &fakeNotifications{}, &fakeSettings{}, nil)
	for _, path := range []string{"/api/summary/daily?user_id=1", "/api/payments/upcoming?user_id=1"} {
		rec, _ := do(e, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestDailySummaryDay(t *testing.T) {
	notifications := &fakeNotifications{}
	e := newTestServer(&fakeReports{}, notifications, &fakeSettings{}, nil)

	rec, _ := do(e, http.MethodGet, "/api/summary/daily?user_id=1&day=2024-05-09", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if want := time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC); !notifications.lastDay.Equal(want) {
		t.Fatalf("expected day %v, got %v", want, notifications.lastDay)
	}

	rec, _ = do(e, http.MethodGet, "/api/summary/daily?user_id=1&day=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad day: expected 400, got %d", rec.Code)
	}
}

func TestRateLimitPerUser(t *testing.T) {
	e := newTestServer(&fakeReports{}, &fakeNotifications{}, &fakeSettings{}, &countingAllower{left: 1})

	rec, _ := do(e, http.MethodGet, "/api/portfolio?user_id=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	rec, _ = do(e, http.MethodGet, "/api/portfolio?user_id=1", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
}
