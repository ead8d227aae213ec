package tinkoff

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wire shapes of the broker's REST gateway. int64 fields arrive as JSON
// strings and int32 fields as numbers, but either may be malformed, so
// money parts are kept raw and parsed per record.

type quotation struct {
	Units json.RawMessage `json:"units"`
	Nano  json.RawMessage `json:"nano"`
}

type moneyValue struct {
	Currency string          `json:"currency"`
	Units    json.RawMessage `json:"units"`
	Nano     json.RawMessage `json:"nano"`
}

// rawNumber accepts a JSON number, a quoted number or null.
func rawNumber(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, true
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func toDecimal(units, nano json.RawMessage) (decimal.Decimal, bool) {
	u, ok := rawNumber(units)
	if !ok {
		return decimal.Zero, false
	}
	n, ok := rawNumber(nano)
	if !ok || !n.IsInteger() || n.Abs().GreaterThanOrEqual(decimal.New(1, 9)) {
		return decimal.Zero, false
	}
	return u.Add(n.Shift(-9)), true
}

// Decimal returns zero for a missing quotation.
func (q *quotation) Decimal() decimal.Decimal {
	if q == nil {
		return decimal.Zero
	}
	d, _ := toDecimal(q.Units, q.Nano)
	return d
}

func (m *moneyValue) Decimal() decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	d, _ := toDecimal(m.Units, m.Nano)
	return d
}

// NullDecimal is invalid when the value is missing or unparseable.
func (m *moneyValue) NullDecimal() decimal.NullDecimal {
	if m == nil {
		return decimal.NullDecimal{}
	}
	d, ok := toDecimal(m.Units, m.Nano)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

type accountDTO struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type getAccountsResponse struct {
	Accounts []accountDTO `json:"accounts"`
}

type getOperationsRequest struct {
	AccountID string    `json:"accountId"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	State     string    `json:"state"`
}

type operationDTO struct {
	ID             string      `json:"id"`
	Currency       string      `json:"currency"`
	Payment        *moneyValue `json:"payment"`
	Date           time.Time   `json:"date"`
	Type           string      `json:"type"`
	OperationType  string      `json:"operationType"`
	Figi           string      `json:"figi"`
	InstrumentType string      `json:"instrumentType"`
}

type getOperationsResponse struct {
	Operations []operationDTO `json:"operations"`
}

type accountRequest struct {
	AccountID string `json:"accountId"`
}

type positionDTO struct {
	Figi           string      `json:"figi"`
	InstrumentType string      `json:"instrumentType"`
	InstrumentUID  string      `json:"instrumentUid"`
	Quantity       *quotation  `json:"quantity"`
	CurrentPrice   *moneyValue `json:"currentPrice"`
	ExpectedYield  *quotation  `json:"expectedYield"`
}

type getPortfolioResponse struct {
	Positions []positionDTO `json:"positions"`
}

type instrumentByRequest struct {
	IDType string `json:"idType"`
	ID     string `json:"id"`
}

type instrumentDTO struct {
	Figi           string `json:"figi"`
	UID            string `json:"uid"`
	Name           string `json:"name"`
	InstrumentType string `json:"instrumentType"`
}

type instrumentResponse struct {
	Instrument instrumentDTO `json:"instrument"`
}

type getDividendsRequest struct {
	InstrumentID string    `json:"instrumentId"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
}

type dividendDTO struct {
	DividendNet *moneyValue `json:"dividendNet"`
	PaymentDate time.Time   `json:"paymentDate"`
}

type getDividendsResponse struct {
	Dividends []dividendDTO `json:"dividends"`
}

type getCouponsRequest struct {
	InstrumentID string    `json:"instrumentId"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
}

type couponDTO struct {
	Figi         string      `json:"figi"`
	CouponDate   time.Time   `json:"couponDate"`
	CouponNumber json.Number `json:"couponNumber"`
	PayOneBond   *moneyValue `json:"payOneBond"`
}

type getCouponsResponse struct {
	Events []couponDTO `json:"events"`
}

// errorBody is what the gateway returns alongside a non-2xx status.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
