package analytics

import (
	"slices"

	"github.com/RiverSpider/PavelBot/internal/domain/models"

	"github.com/shopspring/decimal"
)

type typeTag uint8

const (
	tagNone typeTag = iota
	tagCoupon
	tagDividend
	tagCommission
	tagDeposit
	tagWithdrawal
)

// operationTags is the closed table of broker types that matter for
// classification. Types missing here carry tagNone.
var operationTags = map[models.OperationType]typeTag{
	models.OperationTypeCoupon:   tagCoupon,
	models.OperationTypeDividend: tagDividend,

	models.OperationTypeBrokerFee:        tagCommission,
	models.OperationTypeBrokerCommission: tagCommission,
	models.OperationTypeServiceFee:       tagCommission,
	models.OperationTypeMarginFee:        tagCommission,
	models.OperationTypeSuccessFee:       tagCommission,
	models.OperationTypeAdviceFee:        tagCommission,

	models.OperationTypeInput:          tagDeposit,
	models.OperationTypeInputSwift:     tagDeposit,
	models.OperationTypeInputAcquiring: tagDeposit,

	models.OperationTypeOutput:          tagWithdrawal,
	models.OperationTypeOutputSwift:     tagWithdrawal,
	models.OperationTypeOutputAcquiring: tagWithdrawal,
}

type rule struct {
	tag      typeTag
	sign     int
	category models.Category
}

// classificationRules are checked in order and the first match wins.
var classificationRules = []rule{
	{tag: tagCoupon, sign: 1, category: models.CategoryIncomeCoupon},
	{tag: tagDividend, sign: 1, category: models.CategoryIncomeDividend},
	{tag: tagCommission, sign: -1, category: models.CategoryExpenseCommission},
	{tag: tagDeposit, sign: 1, category: models.CategoryCapitalIn},
	{tag: tagWithdrawal, sign: -1, category: models.CategoryCapitalOut},
}

// Classify derives the category of op. It is total: an operation without a
// usable payment becomes CategoryOther with a zero amount and is flagged
// as malformed.
func Classify(op models.Operation) models.ClassifiedOperation {
	co := models.ClassifiedOperation{
		Operation: op,
		Category:  models.CategoryOther,
		Amount:    decimal.Zero,
	}
	if !op.Payment.Valid {
		co.Malformed = true
		return co
	}

	co.Amount = op.Payment.Decimal
	tag := operationTags[op.Type]
	sign := co.Amount.Sign()
	for _, r := range classificationRules {
		if r.tag == tag && r.sign == sign {
			co.Category = r.category
			break
		}
	}
	return co
}

// ClassifyAll classifies ops and orders them by timestamp. Operations with
// equal timestamps keep their input order.
func ClassifyAll(ops []models.Operation) []models.ClassifiedOperation {
	out := make([]models.ClassifiedOperation, len(ops))
	for i, op := range ops {
		out[i] = Classify(op)
	}
	slices.SortStableFunc(out, func(a, b models.ClassifiedOperation) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}

// CountMalformed returns how many operations were degraded to Other because
// of a missing or unparseable payment.
func CountMalformed(ops []models.ClassifiedOperation) int {
	n := 0
	for _, op := range ops {
		if op.Malformed {
			n++
		}
	}
	return n
}
