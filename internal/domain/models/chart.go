package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChartKind names the view a chart belongs to.
type ChartKind string

const (
	ChartCapital ChartKind = "capital"
	ChartIncome  ChartKind = "income"
)

// Series names used inside ChartData.
const (
	SeriesCumulativeCapital = "cumulative_capital"
	SeriesDailyCapital      = "daily_capital"
	SeriesCumulativeIncome  = "cumulative_income"
	SeriesDailyIncome       = "daily_income"
)

// ChartPoint is one (date, value) sample.
type ChartPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// ChartSeries is a named sequence of points on a sparse date axis.
type ChartSeries struct {
	Name   string       `json:"name"`
	Points []ChartPoint `json:"points"`
}

// ChartData is what the rendering collaborator receives. NoData is set
// instead of emitting empty series.
type ChartData struct {
	Kind   ChartKind     `json:"kind"`
	Period string        `json:"period,omitempty"`
	NoData bool          `json:"no_data"`
	Series []ChartSeries `json:"series,omitempty"`
}

// SeriesByName returns the named series or nil.
func (d *ChartData) SeriesByName(name string) *ChartSeries {
	for i := range d.Series {
		if d.Series[i].Name == name {
			return &d.Series[i]
		}
	}
	return nil
}
