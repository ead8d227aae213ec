package models

import "github.com/shopspring/decimal"

// Report envelopes returned by the reports usecase. Each carries the fetch
// report so callers can show which accounts are missing.

type IncomeReport struct {
	Summary  PeriodSummary `json:"summary"`
	Accounts int           `json:"accounts"`
	Report   FetchReport   `json:"fetch"`
}

type GrowthReport struct {
	Growth       GrowthSummary   `json:"growth"`
	CurrentValue decimal.Decimal `json:"current_value"`
	Accounts     int             `json:"accounts"`
	Report       FetchReport     `json:"fetch"`
	Valuation    FetchReport     `json:"valuation_fetch"`
}

type ChartReport struct {
	Chart   ChartData     `json:"chart"`
	Buckets []DailyBucket `json:"buckets"`
	Report  FetchReport   `json:"fetch"`
}

type AccountsReport struct {
	Accounts   []Account       `json:"accounts"`
	TotalValue decimal.Decimal `json:"total_value"`
	Report     FetchReport     `json:"fetch"`
}
