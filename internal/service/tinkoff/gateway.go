package tinkoff

import (
	"context"
	"strconv"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	"github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/util"
)

const (
	usersService       = "UsersService"
	operationsService  = "OperationsService"
	instrumentsService = "InstrumentsService"

	couponLookBehind  = 30 * 24 * time.Hour
	couponLookAhead   = 60 * 24 * time.Hour
	dividendLookAhead = 365 * 24 * time.Hour
)

var _ repository.BrokerageGateway = (*Client)(nil)

func (c *Client) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var resp getAccountsResponse
	if err := c.call(ctx, usersService, "GetAccounts", struct{}{}, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		out = append(out, models.Account{
			ID:     a.ID,
			Type:   a.Type,
			Status: a.Status,
			Name:   a.Name,
		})
	}
	return out, nil
}

func (c *Client) GetPositions(ctx context.Context, accountID string) ([]models.Position, error) {
	var resp getPortfolioResponse
	if err := c.call(ctx, operationsService, "GetPortfolio", accountRequest{AccountID: accountID}, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		qty := p.Quantity.Decimal()
		price := p.CurrentPrice.Decimal()
		pos := models.Position{
			AccountID:     accountID,
			InstrumentID:  p.Figi,
			InstrumentUID: p.InstrumentUID,
			Name:          c.GetInstrumentName(ctx, p.Figi),
			Quantity:      qty,
			CurrentPrice:  price,
			Value:         price.Mul(qty),
			ExpectedYield: p.ExpectedYield.Decimal(),
			Type:          p.InstrumentType,
		}
		if p.CurrentPrice != nil {
			pos.Currency = p.CurrentPrice.Currency
		}
		out = append(out, pos)
	}
	return out, nil
}

func (c *Client) GetOperations(ctx context.Context, accountID string, from, to time.Time) ([]models.Operation, error) {
	req := getOperationsRequest{
		AccountID: accountID,
		From:      from.UTC(),
		To:        to.UTC(),
		State:     operationStateExecuted,
	}
	var resp getOperationsResponse
	if err := c.call(ctx, operationsService, "GetOperations", req, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Operation, 0, len(resp.Operations))
	for _, op := range resp.Operations {
		currency := op.Currency
		if op.Payment != nil && op.Payment.Currency != "" {
			currency = op.Payment.Currency
		}
		typ := models.OperationType(op.OperationType)
		if typ == "" {
			typ = models.OperationTypeUnspecified
		}
		out = append(out, models.Operation{
			ID:            op.ID,
			AccountID:     accountID,
			Timestamp:     op.Date,
			Type:          typ,
			Payment:       op.Payment.NullDecimal(),
			Currency:      currency,
			InstrumentRef: op.Figi,
			Description:   op.Type,
		})
	}
	return out, nil
}

// GetInstrumentName resolves a FIGI to a display name. Failures are logged
// and mapped to UnknownInstrument; only successful lookups are cached.
func (c *Client) GetInstrumentName(ctx context.Context, instrumentID string) string {
	if instrumentID == "" {
		return UnknownInstrument
	}
	if name, ok := c.names.Get(instrumentID); ok {
		return name
	}

	ins, err := c.GetInstrument(ctx, instrumentID)
	if err != nil || ins.Name == "" {
		c.log.Debug("instrument name lookup failed",
			logger.String("figi", instrumentID),
			logger.Error(err))
		return UnknownInstrument
	}
	return ins.Name
}

func (c *Client) GetInstrument(ctx context.Context, instrumentID string) (models.Instrument, error) {
	var resp instrumentResponse
	req := instrumentByRequest{IDType: idTypeFigi, ID: instrumentID}
	if err := c.call(ctx, instrumentsService, "GetInstrumentBy", req, &resp); err != nil {
		return models.Instrument{}, err
	}

	ins := models.Instrument{
		FIGI: resp.Instrument.Figi,
		UID:  resp.Instrument.UID,
		Name: resp.Instrument.Name,
		Type: resp.Instrument.InstrumentType,
	}
	if ins.FIGI == "" {
		ins.FIGI = instrumentID
	}
	if ins.Name != "" {
		c.names.Set(instrumentID, ins.Name)
	}
	return ins, nil
}

// GetUpcomingDividends returns dividends paid after today.
func (c *Client) GetUpcomingDividends(ctx context.Context, instrumentUID string) ([]models.PaymentEvent, error) {
	now := c.now()
	req := getDividendsRequest{
		InstrumentID: instrumentUID,
		From:         now.UTC(),
		To:           now.Add(dividendLookAhead).UTC(),
	}
	var resp getDividendsResponse
	if err := c.call(ctx, instrumentsService, "GetDividends", req, &resp); err != nil {
		return nil, err
	}

	tomorrow := c.tomorrow(now)
	var out []models.PaymentEvent
	for _, d := range resp.Dividends {
		if d.PaymentDate.Before(tomorrow) {
			continue
		}
		ev := models.PaymentEvent{
			Kind:         models.PaymentDividend,
			InstrumentID: instrumentUID,
			Date:         d.PaymentDate,
			Amount:       d.DividendNet.Decimal(),
		}
		if d.DividendNet != nil {
			ev.Currency = d.DividendNet.Currency
		}
		out = append(out, ev)
	}
	return out, nil
}

// GetUpcomingCoupons returns coupons dated after today, looking at most
// sixty days ahead.
func (c *Client) GetUpcomingCoupons(ctx context.Context, instrumentID string) ([]models.PaymentEvent, error) {
	now := c.now()
	req := getCouponsRequest{
		InstrumentID: instrumentID,
		From:         now.Add(-couponLookBehind).UTC(),
		To:           now.Add(couponLookAhead).UTC(),
	}
	var resp getCouponsResponse
	if err := c.call(ctx, instrumentsService, "GetBondCoupons", req, &resp); err != nil {
		return nil, err
	}

	tomorrow := c.tomorrow(now)
	var out []models.PaymentEvent
	for _, cp := range resp.Events {
		if cp.CouponDate.Before(tomorrow) {
			continue
		}
		n, _ := strconv.Atoi(cp.CouponNumber.String())
		ev := models.PaymentEvent{
			Kind:         models.PaymentCoupon,
			InstrumentID: instrumentID,
			Date:         cp.CouponDate,
			Amount:       cp.PayOneBond.Decimal(),
			CouponNumber: n,
		}
		if cp.PayOneBond != nil {
			ev.Currency = cp.PayOneBond.Currency
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Client) tomorrow(now time.Time) time.Time {
	return util.StartOfDay(now, c.cfg.Location).AddDate(0, 0, 1)
}
