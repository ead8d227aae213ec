package analytics

import (
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// roiPrecision is the number of decimal places kept by ROI division.
const roiPrecision = 8

// InWindow returns the operations with from <= timestamp <= to, keeping order.
func InWindow(ops []models.ClassifiedOperation, from, to time.Time) []models.ClassifiedOperation {
	out := make([]models.ClassifiedOperation, 0, len(ops))
	for _, op := range ops {
		if op.Timestamp.Before(from) || op.Timestamp.After(to) {
			continue
		}
		out = append(out, op)
	}
	return out
}

// Summarize reduces a windowed operation set into income totals. The caller
// fills in the period name and bounds.
func Summarize(ops []models.ClassifiedOperation) models.PeriodSummary {
	s := models.PeriodSummary{
		TotalIncome:        decimal.Zero,
		BondIncome:         decimal.Zero,
		DividendIncome:     decimal.Zero,
		CommissionExpenses: decimal.Zero,
		NetIncome:          decimal.Zero,
		OperationCount:     len(ops),
	}

	for _, op := range ops {
		if op.Malformed {
			s.MalformedCount++
		}
		switch op.Category {
		case models.CategoryIncomeCoupon:
			s.BondIncome = s.BondIncome.Add(op.Amount)
			s.TotalIncome = s.TotalIncome.Add(op.Amount)
		case models.CategoryIncomeDividend:
			s.DividendIncome = s.DividendIncome.Add(op.Amount)
			s.TotalIncome = s.TotalIncome.Add(op.Amount)
		case models.CategoryExpenseCommission:
			s.CommissionExpenses = s.CommissionExpenses.Add(op.Amount.Abs())
		}
	}

	s.NetIncome = s.TotalIncome.Sub(s.CommissionExpenses)
	return s
}

// SummarizeGrowth reduces the full history into lifetime growth metrics.
// Deposits are invested capital and never count as growth.
func SummarizeGrowth(ops []models.ClassifiedOperation) models.GrowthSummary {
	g := models.GrowthSummary{
		TotalGrowth:    decimal.Zero,
		TotalInvested:  decimal.Zero,
		TotalWithdrawn: decimal.Zero,
	}

	for _, op := range ops {
		if op.Malformed {
			g.MalformedCount++
		}
		switch op.Category {
		case models.CategoryIncomeCoupon, models.CategoryIncomeDividend, models.CategoryExpenseCommission:
			g.TotalGrowth = g.TotalGrowth.Add(op.Amount)
		case models.CategoryCapitalIn:
			g.TotalInvested = g.TotalInvested.Add(op.Amount)
		case models.CategoryCapitalOut:
			g.TotalWithdrawn = g.TotalWithdrawn.Add(op.Amount.Abs())
		}
	}

	g.NetGrowth = g.TotalGrowth.Sub(g.TotalWithdrawn)
	g.ROI = ReturnOnInvestment(g.NetGrowth, g.TotalInvested)
	return g
}

// ReturnOnInvestment computes net/invested*100. It is unavailable unless
// invested is strictly positive.
func ReturnOnInvestment(net, invested decimal.Decimal) models.ROI {
	if !invested.IsPositive() {
		return models.ROI{Percent: decimal.Zero, Reason: models.KindRoiUndefined}
	}
	return models.ROI{
		Percent:   net.Mul(hundred).DivRound(invested, roiPrecision),
		Available: true,
	}
}
