package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationType is the broker's operation type tag, e.g. "OPERATION_TYPE_COUPON".
type OperationType string

const (
	OperationTypeUnspecified OperationType = "OPERATION_TYPE_UNSPECIFIED"

	OperationTypeInput          OperationType = "OPERATION_TYPE_INPUT"
	OperationTypeInputSwift     OperationType = "OPERATION_TYPE_INPUT_SWIFT"
	OperationTypeInputAcquiring OperationType = "OPERATION_TYPE_INPUT_ACQUIRING"

	OperationTypeOutput          OperationType = "OPERATION_TYPE_OUTPUT"
	OperationTypeOutputSwift     OperationType = "OPERATION_TYPE_OUTPUT_SWIFT"
	OperationTypeOutputAcquiring OperationType = "OPERATION_TYPE_OUTPUT_ACQUIRING"

	OperationTypeCoupon   OperationType = "OPERATION_TYPE_COUPON"
	OperationTypeDividend OperationType = "OPERATION_TYPE_DIVIDEND"

	OperationTypeBrokerFee  OperationType = "OPERATION_TYPE_BROKER_FEE"
	OperationTypeServiceFee OperationType = "OPERATION_TYPE_SERVICE_FEE"
	OperationTypeMarginFee  OperationType = "OPERATION_TYPE_MARGIN_FEE"
	OperationTypeSuccessFee OperationType = "OPERATION_TYPE_SUCCESS_FEE"
	OperationTypeAdviceFee  OperationType = "OPERATION_TYPE_ADVICE_FEE"
	// OperationTypeBrokerCommission is a legacy spelling still emitted by
	// older exports of the broker fee.
	OperationTypeBrokerCommission OperationType = "OPERATION_TYPE_BROKER_COMMISSION"

	OperationTypeBuy           OperationType = "OPERATION_TYPE_BUY"
	OperationTypeSell          OperationType = "OPERATION_TYPE_SELL"
	OperationTypeTax           OperationType = "OPERATION_TYPE_TAX"
	OperationTypeDividendTax   OperationType = "OPERATION_TYPE_DIVIDEND_TAX"
	OperationTypeBondRepayment OperationType = "OPERATION_TYPE_BOND_REPAYMENT"
)

// Operation is a single executed ledger entry as reported by the broker.
// Payment is invalid when the broker omitted it or sent an unparseable value.
type Operation struct {
	ID            string              `json:"id"`
	AccountID     string              `json:"account_id"`
	Timestamp     time.Time           `json:"timestamp"`
	Type          OperationType       `json:"type"`
	Payment       decimal.NullDecimal `json:"payment"`
	Currency      string              `json:"currency"`
	InstrumentRef string              `json:"instrument_ref,omitempty"`
	Description   string              `json:"description,omitempty"`
}

// Category is the semantic class derived for an operation. It is never
// stored on the source record.
type Category string

const (
	CategoryIncomeCoupon      Category = "income_coupon"
	CategoryIncomeDividend    Category = "income_dividend"
	CategoryExpenseCommission Category = "expense_commission"
	CategoryCapitalIn         Category = "capital_in"
	CategoryCapitalOut        Category = "capital_out"
	CategoryOther             Category = "other"
)

// IsIncome reports whether c is one of the income categories.
func (c Category) IsIncome() bool {
	return c == CategoryIncomeCoupon || c == CategoryIncomeDividend
}

// ContributesToCapital reports whether amounts of category c move the
// income-driven capital curve.
func (c Category) ContributesToCapital() bool {
	return c.IsIncome() || c == CategoryExpenseCommission
}

// ClassifiedOperation is an Operation with its derived category and the
// normalized signed amount. ExpenseCommission and CapitalOut amounts stay negative.
type ClassifiedOperation struct {
	Operation
	Category  Category        `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Malformed bool            `json:"malformed,omitempty"`
}
