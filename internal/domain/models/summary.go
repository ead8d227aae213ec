package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyBucket aggregates the classified operations of one calendar date.
type DailyBucket struct {
	Date           time.Time       `json:"date"`
	CapitalDelta   decimal.Decimal `json:"capital_delta"`
	IncomeDelta    decimal.Decimal `json:"income_delta"`
	OperationCount int             `json:"operation_count"`
}

// PeriodSummary holds income totals for a look-back window.
// CommissionExpenses is an absolute value.
type PeriodSummary struct {
	Period             string          `json:"period"`
	From               time.Time       `json:"from"`
	To                 time.Time       `json:"to"`
	TotalIncome        decimal.Decimal `json:"total_income"`
	BondIncome         decimal.Decimal `json:"bond_income"`
	DividendIncome     decimal.Decimal `json:"dividend_income"`
	CommissionExpenses decimal.Decimal `json:"commission_expenses"`
	NetIncome          decimal.Decimal `json:"net_income"`
	OperationCount     int             `json:"operation_count"`
	MalformedCount     int             `json:"malformed_count"`
}

// ROI is the return on invested capital in percent. Available is false when
// nothing was invested; Percent is zero in that case and must not be shown.
type ROI struct {
	Percent   decimal.Decimal `json:"percent"`
	Available bool            `json:"available"`
	Reason    ErrorKind       `json:"reason,omitempty"`
}

// GrowthSummary holds lifetime growth metrics. Deposits count as invested
// capital and are not part of TotalGrowth.
type GrowthSummary struct {
	TotalGrowth    decimal.Decimal `json:"total_growth"`
	TotalInvested  decimal.Decimal `json:"total_invested"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	NetGrowth      decimal.Decimal `json:"net_growth"`
	ROI            ROI             `json:"roi"`
	MalformedCount int             `json:"malformed_count"`
}
