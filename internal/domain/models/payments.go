package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentKind distinguishes calendar events.
type PaymentKind string

const (
	PaymentDividend PaymentKind = "dividend"
	PaymentCoupon   PaymentKind = "coupon"
)

// PaymentEvent is a scheduled dividend or coupon payment per one unit of
// the instrument.
type PaymentEvent struct {
	Kind         PaymentKind     `json:"kind"`
	InstrumentID string          `json:"instrument_id"`
	Name         string          `json:"name,omitempty"`
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	CouponNumber int             `json:"coupon_number,omitempty"`
}

// UpcomingPayments lists future payments for the instruments held.
type UpcomingPayments struct {
	Dividends []PaymentEvent `json:"dividends"`
	Coupons   []PaymentEvent `json:"coupons"`
	Report    FetchReport    `json:"fetch"`
}

// Empty reports whether nothing is scheduled.
func (u *UpcomingPayments) Empty() bool {
	return len(u.Dividends) == 0 && len(u.Coupons) == 0
}

// FlowOperation is one line of a daily cash-flow summary.
type FlowOperation struct {
	Date        time.Time       `json:"date"`
	Type        OperationType   `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
}

// DailyFlowSummary is the gross in/out flow over one day. TotalExpense is an
// absolute value.
type DailyFlowSummary struct {
	Day             time.Time       `json:"day"`
	TotalIncome     decimal.Decimal `json:"total_income"`
	TotalExpense    decimal.Decimal `json:"total_expense"`
	NetFlow         decimal.Decimal `json:"net_flow"`
	OperationsCount int             `json:"operations_count"`
	Operations      []FlowOperation `json:"operations"`
	Report          FetchReport     `json:"fetch"`
}

// DigestKind names a scheduled notification.
type DigestKind string

const (
	DigestDailySummary DigestKind = "daily_summary"
	DigestPayments     DigestKind = "upcoming_payments"
)

// Digest is published for the chat collaborator to deliver.
type Digest struct {
	ID          string            `json:"id"`
	UserID      int64             `json:"user_id"`
	Kind        DigestKind        `json:"kind"`
	GeneratedAt time.Time         `json:"generated_at"`
	Summary     *DailyFlowSummary `json:"summary,omitempty"`
	Payments    *UpcomingPayments `json:"payments,omitempty"`
}
