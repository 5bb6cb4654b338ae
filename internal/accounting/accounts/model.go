package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeEquity    AccountType = "Equity"
	AccountTypeRevenue   AccountType = "Revenue"
	AccountTypeExpense   AccountType = "Expense"
	AccountTypeCommon    AccountType = "Common"
)

// Valid reports whether t is a known type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense, AccountTypeCommon:
		return true
	}
	return false
}

// NormalBalance is the side on which an account's balance is positive.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "Debit"
	NormalCredit NormalBalance = "Credit"
)

// Valid reports whether n is a known side.
func (n NormalBalance) Valid() bool {
	return n == NormalDebit || n == NormalCredit
}

// DefaultNormalBalance derives the side from the account type.
func DefaultNormalBalance(t AccountType) NormalBalance {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return NormalDebit
	}
	return NormalCredit
}

// Account models a chart of accounts node.
type Account struct {
	ID            int64           `json:"account_id"`
	CompanyID     int64           `json:"company_id"`
	ParentID      *int64          `json:"parent_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          AccountType     `json:"type"`
	NormalBalance NormalBalance   `json:"normal_balance"`
	IsCore        bool            `json:"is_core"`
	Path          string          `json:"path"`
	Remark        string          `json:"remark"`
	DebitTotal    decimal.Decimal `json:"balance_debit"`
	CreditTotal   decimal.Decimal `json:"balance_credit"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Signed applies the account's normal-balance convention to raw totals.
func (a Account) Signed(debit, credit decimal.Decimal) decimal.Decimal {
	if a.NormalBalance == NormalDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Balance is the signed balance of the accumulated totals.
func (a Account) Balance() decimal.Decimal {
	return a.Signed(a.DebitTotal, a.CreditTotal)
}

// CreateInput describes a new account.
type CreateInput struct {
	Code          string        `json:"code" validate:"required,max=20"`
	Name          string        `json:"name" validate:"required,max=100"`
	Type          AccountType   `json:"type" validate:"required,oneof=Asset Liability Equity Revenue Expense Common"`
	NormalBalance NormalBalance `json:"normal_balance" validate:"omitempty,oneof=Debit Credit"`
	ParentID      *int64        `json:"parent_id" validate:"omitempty,gt=0"`
	IsCore        bool          `json:"is_core"`
	Remark        string        `json:"remark" validate:"max=255"`
}

// UpdateInput carries the only mutable fields.
type UpdateInput struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Remark *string `json:"remark" validate:"omitempty,max=255"`
}
