package journals

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LineInput describes one posting line.
type LineInput struct {
	AccountID int64           `json:"account_id" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo" validate:"max=255"`
}

// CreateInput describes a journal entry. System callers set Post and PostedBy.
type CreateInput struct {
	Date        base.Date   `json:"date"`
	Description string      `json:"description" validate:"max=255"`
	SourceType  SourceType  `json:"source_type" validate:"omitempty,oneof=MANUAL PO SO PAYMENT RECEIPT REVERSAL"`
	SourceID    *int64      `json:"source_id"`
	Post        bool        `json:"post"`
	PostedBy    int64       `json:"posted_by"`
	Lines       []LineInput `json:"lines" validate:"required,dive"`
}

// ReverseInput configures a reversal. Date defaults to the original date.
type ReverseInput struct {
	ActorID int64     `json:"-"`
	Date    base.Date `json:"date"`
	Memo    string    `json:"memo" validate:"max=255"`
}

// Validate enforces line well-formedness and the balance invariant.
func (in CreateInput) Validate() error {
	if in.Date.IsZero() {
		return base.Invalidf("accounting: entry date required")
	}
	if in.SourceType != "" && !in.SourceType.Valid() {
		return base.Invalidf("accounting: unknown source type %q", in.SourceType)
	}
	if in.Post && in.PostedBy == 0 {
		return shared.ErrPostedByRequired
	}
	return ValidateLines(in.Lines)
}

// ValidateLines checks that every line has exactly one positive side with at
// most two decimals and that debits equal credits at minor-unit precision.
func ValidateLines(lines []LineInput) error {
	if len(lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for i, line := range lines {
		if line.AccountID <= 0 {
			return fmt.Errorf("%w: line %d has no account", shared.ErrInvalidLine, i+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative amount", shared.ErrInvalidLine, i+1)
		}
		if line.Debit.IsZero() == line.Credit.IsZero() {
			return fmt.Errorf("%w: line %d", shared.ErrInvalidLine, i+1)
		}
		if !base.HasMoneyPrecision(line.Debit) || !base.HasMoneyPrecision(line.Credit) {
			return fmt.Errorf("%w: line %d exceeds two decimals", shared.ErrInvalidLine, i+1)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !base.MoneyEqual(debit, credit) {
		return fmt.Errorf("%w: debit %s, credit %s", shared.ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

func totals(lines []LineInput) (decimal.Decimal, decimal.Decimal) {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

func reverseLines(lines []Line, memo string) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		m := line.Memo
		if memo != "" {
			m = memo
		}
		out = append(out, LineInput{AccountID: line.AccountID, Debit: line.Credit, Credit: line.Debit, Memo: m})
	}
	return out
}

func inputLines(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo})
	}
	return out
}
