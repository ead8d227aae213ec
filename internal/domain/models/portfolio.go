package models

import "github.com/shopspring/decimal"

// Account is a read-only snapshot of a brokerage account.
type Account struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Status string          `json:"status"`
	Name   string          `json:"name"`
	Value  decimal.Decimal `json:"value"`
}

// Position is a holding within one account. Value is recomputed as
// CurrentPrice * Quantity by the valuator.
type Position struct {
	AccountID     string          `json:"account_id"`
	InstrumentID  string          `json:"instrument_id"`
	InstrumentUID string          `json:"instrument_uid,omitempty"`
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Value         decimal.Decimal `json:"value"`
	ExpectedYield decimal.Decimal `json:"expected_yield"`
	Currency      string          `json:"currency,omitempty"`
	Type          string          `json:"type"`
}

// PositionBucket groups positions for display.
type PositionBucket string

const (
	BucketStock    PositionBucket = "stock"
	BucketBond     PositionBucket = "bond"
	BucketETF      PositionBucket = "etf"
	BucketCurrency PositionBucket = "currency"
	BucketOther    PositionBucket = "other"
)

// PortfolioValuation is the merged valuation over the requested accounts.
type PortfolioValuation struct {
	TotalValue decimal.Decimal                    `json:"total_value"`
	Positions  []Position                         `json:"positions"`
	Buckets    map[PositionBucket][]Position      `json:"buckets"`
	Totals     map[PositionBucket]decimal.Decimal `json:"totals"`
	Report     FetchReport                        `json:"fetch"`
}

// Instrument carries the identifiers needed to look up payment calendars.
type Instrument struct {
	FIGI string `json:"figi"`
	UID  string `json:"uid"`
	Name string `json:"name"`
	Type string `json:"type"`
}
