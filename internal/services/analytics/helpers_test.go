package analytics

import (
	"testing"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"

	"github.com/shopspring/decimal"
)

var (
	day1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 3, 2, 15, 30, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func op(ts time.Time, amount string, typ models.OperationType) models.Operation {
	return models.Operation{
		AccountID: "acc-1",
		Timestamp: ts,
		Type:      typ,
		Payment:   decimal.NewNullDecimal(dec(amount)),
		Currency:  "rub",
	}
}

func scenarioOps() []models.Operation {
	return []models.Operation{
		op(day1, "100", models.OperationTypeDividend),
		op(day1.Add(time.Hour), "-5", models.OperationTypeBrokerCommission),
		op(day2, "50", models.OperationTypeCoupon),
	}
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: got %s want %s", name, got, want)
	}
}
