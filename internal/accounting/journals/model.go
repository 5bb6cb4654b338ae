package journals

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceType tags the business event an entry was generated from.
type SourceType string

const (
	SourceManual   SourceType = "MANUAL"
	SourcePO       SourceType = "PO"
	SourceSO       SourceType = "SO"
	SourcePayment  SourceType = "PAYMENT"
	SourceReceipt  SourceType = "RECEIPT"
	SourceReversal SourceType = "REVERSAL"
)

// Valid reports whether s is a known source.
func (s SourceType) Valid() bool {
	switch s {
	case SourceManual, SourcePO, SourceSO, SourcePayment, SourceReceipt, SourceReversal:
		return true
	}
	return false
}

// Entry is a journal header with its lines.
type Entry struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	SourceType  SourceType      `json:"source_type"`
	SourceID    *int64          `json:"source_id"`
	Posted      bool            `json:"posted"`
	PostedBy    int64           `json:"posted_by,omitempty"`
	PostedAt    *time.Time      `json:"posted_at"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	ReversalOf  *int64          `json:"reversal_of"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       []Line          `json:"lines,omitempty"`
}

// Line is one debit or credit posting.
type Line struct {
	ID        int64           `json:"id"`
	EntryID   int64           `json:"entry_id"`
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo"`
}

// Range bounds a query by entry date, inclusive. A zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d time.Time) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// Movement is the aggregated effect of one posted entry on a set of accounts.
type Movement struct {
	EntryID     int64           `json:"entry_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	SourceType  SourceType      `json:"source_type"`
	SourceID    *int64          `json:"source_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// Net is debit minus credit.
func (m Movement) Net() decimal.Decimal {
	return m.Debit.Sub(m.Credit)
}

// AccountSum totals posted lines of one account.
type AccountSum struct {
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// LedgerRow is one posted line of an account ledger.
type LedgerRow struct {
	EntryID     int64           `json:"entry_id"`
	LineID      int64           `json:"line_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	SourceType  SourceType      `json:"source_type"`
	Memo        string          `json:"memo"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// LedgerWindow is a raw page of ledger rows plus the sums of every row
// ordered before it.
type LedgerWindow struct {
	OpeningDebit  decimal.Decimal
	OpeningCredit decimal.Decimal
	Rows          []LedgerRow
	Total         int
}

// LedgerPage is the account ledger response.
type LedgerPage struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Opening   decimal.Decimal `json:"opening_balance"`
	Rows      []LedgerRow     `json:"rows"`
	Total     int             `json:"total"`
	Skip      int             `json:"skip"`
	Limit     int             `json:"limit"`
}

// Drift reports an account whose maintained totals disagree with its postings.
type Drift struct {
	AccountID    int64           `json:"account_id"`
	StoredDebit  decimal.Decimal `json:"stored_debit"`
	StoredCredit decimal.Decimal `json:"stored_credit"`
	PostedDebit  decimal.Decimal `json:"posted_debit"`
	PostedCredit decimal.Decimal `json:"posted_credit"`
}
