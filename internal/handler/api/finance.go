package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	"github.com/RiverSpider/PavelBot/internal/usecase"
	xhttp "github.com/RiverSpider/PavelBot/pkg/http"
	"github.com/RiverSpider/PavelBot/pkg/http/middleware"
	xlogger "github.com/RiverSpider/PavelBot/pkg/logger"

	"github.com/labstack/echo/v4"
)

type ReportsService interface {
	Income(ctx context.Context, userID int64, period string) (*models.IncomeReport, error)
	Growth(ctx context.Context, userID int64) (*models.GrowthReport, error)
	CapitalChart(ctx context.Context, userID int64, period string) (*models.ChartReport, error)
	IncomeChart(ctx context.Context, userID int64, period string) (*models.ChartReport, error)
	Accounts(ctx context.Context, userID int64) (*models.AccountsReport, error)
	Portfolio(ctx context.Context, userID int64) (*models.PortfolioValuation, error)
}

type NotificationsService interface {
	DailySummaryFor(ctx context.Context, userID int64, day time.Time) (*models.DailyFlowSummary, error)
	UpcomingPayments(ctx context.Context, userID int64) (*models.UpcomingPayments, error)
}

type SettingsService interface {
	SetToken(ctx context.Context, userID int64, token string) (*usecase.TokenCheck, error)
	SetAccounts(ctx context.Context, userID int64, accountIDs []string) error
	SetSubscriptions(ctx context.Context, userID int64, dailySummary, payments bool) error
}

// FinanceHandler serves the finance API under /api.
type FinanceHandler struct {
	logger        *xlogger.Logger
	reports       ReportsService
	notifications NotificationsService
	settings      SettingsService
	limiter       middleware.Allower
}

func NewFinanceHandler(logger *xlogger.Logger, reports ReportsService, notifications NotificationsService, settings SettingsService, limiter middleware.Allower) *FinanceHandler {
	return &FinanceHandler{
		logger:        logger.With(xlogger.String("component", "finance_api")),
		reports:       reports,
		notifications: notifications,
		settings:      settings,
		limiter:       limiter,
	}
}

func (h *FinanceHandler) RegisterRoutes(g *echo.Group) {
	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, middleware.RateLimit(h.limiter, func(c echo.Context) string {
			if id := c.QueryParam("user_id"); id != "" {
				return "user:" + id
			}
			return ""
		}))
	}

	g.GET("/accounts", h.Accounts, mw...)
	g.GET("/portfolio", h.Portfolio, mw...)
	g.GET("/income", h.Income, mw...)
	g.GET("/growth", h.Growth, mw...)
	g.GET("/chart/capital", h.CapitalChart, mw...)
	g.GET("/chart/income", h.IncomeChart, mw...)
	g.GET("/summary/daily", h.DailySummary, mw...)
	g.GET("/payments/upcoming", h.UpcomingPayments, mw...)
	g.POST("/set_token", h.SetToken, mw...)
	g.POST("/set_accounts", h.SetAccounts, mw...)
	g.POST("/subscriptions", h.SetSubscriptions, mw...)
}

func (h *FinanceHandler) Accounts(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.reports.Accounts(c.Request().Context(), req.UserID)
	if err != nil {
		return h.fail(c, "accounts", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FinanceHandler) Portfolio(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.reports.Portfolio(c.Request().Context(), req.UserID)
	if err != nil {
		return h.fail(c, "portfolio", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FinanceHandler) Income(c echo.Context) error {
	req := &models.PeriodRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.reports.Income(c.Request().Context(), req.UserID, req.Period)
	if err != nil {
		return h.fail(c, "income", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FinanceHandler) Growth(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.reports.Growth(c.Request().Context(), req.UserID)
	if err != nil {
		return h.fail(c, "growth", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FinanceHandler) CapitalChart(c echo.Context) error {
	req := &models.PeriodRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.reports.CapitalChart(c.Request().Context(), req.UserID, req.Period)
	if err != nil {
		return h.fail(c, "chart_capital", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FinanceHandler) IncomeChart(c echo.Context) error {
	req := &models.PeriodRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.reports.IncomeChart(c.Request().Context(), req.UserID, req.Period)
	if err != nil {
		return h.fail(c, "chart_income", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FinanceHandler) DailySummary(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var day time.Time
	if raw := c.QueryParam("day"); raw != "" {
		t, ok := xhttp.QueryTime(c, "day")
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("day must be a date (YYYY-MM-DD) or RFC3339 time").WithParam("day", raw))
		}
		day = t
	}
	res, err := h.notifications.DailySummaryFor(c.Request().Context(), req.UserID, day)
	if err != nil {
		return h.fail(c, "daily_summary", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FinanceHandler) UpcomingPayments(c echo.Context) error {
	req := &models.UserRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.notifications.UpcomingPayments(c.Request().Context(), req.UserID)
	if err != nil {
		return h.fail(c, "upcoming_payments", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FinanceHandler) SetToken(c echo.Context) error {
	req := &models.SetTokenRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.settings.SetToken(c.Request().Context(), req.UserID, req.Token)
	if err != nil {
		return h.fail(c, "set_token", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FinanceHandler) SetAccounts(c echo.Context) error {
	req := &models.SetAccountsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.settings.SetAccounts(c.Request().Context(), req.UserID, req.AccountIDs); err != nil {
		return h.fail(c, "set_accounts", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"account_ids": req.AccountIDs})
}

func (h *FinanceHandler) SetSubscriptions(c echo.Context) error {
	req := &models.SubscriptionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.settings.SetSubscriptions(c.Request().Context(), req.UserID, req.DailySummary, req.Payments); err != nil {
		return h.fail(c, "subscriptions", err)
	}
	return xhttp.SuccessResponse(c, req)
}

func (h *FinanceHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.String("code", appErr.Code), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps usecase errors to client-facing ones.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrNoToken):
		return xhttp.NewAppError("ERR_NO_TOKEN", "token", "api token is not set", http.StatusUnauthorized).WithError(err)
	case errors.Is(err, models.ErrUnauthorized):
		return xhttp.UnauthorizedError("api token was rejected by the broker").WithParam("kind", models.KindAuthFailure).WithError(err)
	case errors.Is(err, models.ErrAllAccountsFailed):
		return xhttp.UpstreamError("no account could be fetched").WithParam("kind", models.KindNetworkFailure).WithError(err)
	case errors.Is(err, models.ErrNoAccounts):
		return xhttp.NotFoundError("no brokerage accounts available").WithError(err)
	case errors.Is(err, models.ErrUserBusy):
		return xhttp.NewAppError("ERR_BUSY", "", "settings are being updated, retry shortly", http.StatusConflict).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("request timed out").WithError(err)
	}
	return xhttp.InternalError("internal error").WithError(err)
}
