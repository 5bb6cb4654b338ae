package bank

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Direction is the bank's perspective: Credit is money in.
type Direction string

const (
	Credit Direction = "Credit"
	Debit  Direction = "Debit"
)

func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

// DefaultCurrency applies when an account is opened without one.
const DefaultCurrency = "CNY"

// AutoMatchRemark tags reconciliations created by a matching run.
const AutoMatchRemark = "auto-matched"

var (
	ErrBankAccountNotFound    = shared.NotFound("BANK_ACCOUNT_NOT_FOUND", "bank: account not found")
	ErrStatementNotFound      = shared.NotFound("STATEMENT_NOT_FOUND", "bank: statement not found")
	ErrReconciliationNotFound = shared.NotFound("RECONCILIATION_NOT_FOUND", "bank: reconciliation not found")
	ErrDuplicateBankAccount   = shared.Duplicate("DUPLICATE_BANK_ACCOUNT", "bank: account number already exists")
	ErrInvalidCurrency        = shared.Validation("INVALID_CURRENCY", "bank: currency must be an ISO 4217 code")
	ErrInvalidAmount          = shared.Validation("INVALID_AMOUNT", "bank: amount must be positive with at most two decimals")
	ErrHasStatements          = shared.Precondition("HAS_STATEMENTS", "bank: account has statements")
	ErrStatementReconciled    = shared.Precondition("STATEMENT_RECONCILED", "bank: statement is reconciled")
	ErrAlreadyReconciled      = shared.Precondition("ALREADY_RECONCILED", "bank: statement or journal already reconciled")
	ErrJournalNotPosted       = shared.Precondition("JOURNAL_NOT_POSTED", "bank: journal entry is not posted")
	ErrJournalOffAccount      = shared.Precondition("JOURNAL_OFF_ACCOUNT", "bank: journal entry does not move the bank account")
	ErrStatementOffAccount    = shared.Validation("STATEMENT_OFF_ACCOUNT", "bank: statement belongs to another bank account")
)

type Account struct {
	ID              int64           `json:"id"`
	CompanyID       int64           `json:"company_id"`
	AccountNumber   string          `json:"account_number"`
	BankName        string          `json:"bank_name"`
	Currency        string          `json:"currency"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`
	LedgerAccountID *int64          `json:"ledger_account_id"`
	Remark          string          `json:"remark"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Statement struct {
	ID            int64           `json:"id"`
	CompanyID     int64           `json:"company_id"`
	BankAccountID int64           `json:"bank_account_id"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Type          Direction       `json:"type"`
	// Balance is the running balance the bank reported, when it did.
	Balance     *decimal.Decimal `json:"balance"`
	Description string           `json:"description"`
	Reconciled  bool             `json:"reconciled"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Signed is the statement amount with money out negative.
func (s Statement) Signed() decimal.Decimal {
	if s.Type == Debit {
		return s.Amount.Neg()
	}
	return s.Amount
}

type Reconciliation struct {
	ID            int64           `json:"id"`
	CompanyID     int64           `json:"company_id"`
	StatementID   int64           `json:"statement_id"`
	JournalID     int64           `json:"journal_id"`
	MatchedAmount decimal.Decimal `json:"matched_amount"`
	MatchDate     time.Time       `json:"match_date"`
	Remark        string          `json:"remark"`
	Auto          bool            `json:"auto"`
	RunID         string          `json:"run_id,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Candidate is a posted entry's net effect on the cash scope, seen from the
// bank: a net debit to cash is money in.
type Candidate struct {
	EntryID     int64               `json:"journal_id"`
	Date        time.Time           `json:"date"`
	Description string              `json:"description"`
	SourceType  journals.SourceType `json:"source_type"`
	Amount      decimal.Decimal     `json:"amount"`
	Direction   Direction           `json:"direction"`
}

func candidateOf(m journals.Movement) (Candidate, bool) {
	net := shared.Money(m.Net())
	if net.IsZero() {
		return Candidate{}, false
	}
	c := Candidate{EntryID: m.EntryID, Date: m.Date, Description: m.Description, SourceType: m.SourceType, Amount: net.Abs(), Direction: Credit}
	if net.IsNegative() {
		c.Direction = Debit
	}
	return c, true
}

type Pair struct {
	Reconciliation Reconciliation `json:"reconciliation"`
	Statement      Statement      `json:"statement"`
	Journal        Candidate      `json:"journal"`
}

// View splits a period into matched pairs and the unmatched remainder on
// each side. The three lists are disjoint.
type View struct {
	BankAccountID       int64       `json:"bank_account_id"`
	Start               time.Time   `json:"start"`
	End                 time.Time   `json:"end"`
	Matched             []Pair      `json:"matched_pairs"`
	UnmatchedStatements []Statement `json:"unmatched_statements"`
	UnmatchedJournals   []Candidate `json:"unmatched_journals"`
}

type MatchResult struct {
	RunID           string           `json:"run_id"`
	MatchedCount    int              `json:"matched_count"`
	Reconciliations []Reconciliation `json:"reconciliations"`
}

type BalanceReport struct {
	BankAccountID           int64           `json:"bank_account_id"`
	AsOf                    time.Time       `json:"as_of"`
	BankBalance             decimal.Decimal `json:"bank_balance"`
	SystemBalance           decimal.Decimal `json:"system_balance"`
	SystemReceivedNotInBank decimal.Decimal `json:"system_received_not_in_bank"`
	SystemPaidNotInBank     decimal.Decimal `json:"system_paid_not_in_bank"`
	BankReceivedNotInSystem decimal.Decimal `json:"bank_received_not_in_system"`
	BankPaidNotInSystem     decimal.Decimal `json:"bank_paid_not_in_system"`
	AdjustedBankBalance     decimal.Decimal `json:"adjusted_bank_balance"`
	AdjustedSystemBalance   decimal.Decimal `json:"adjusted_system_balance"`
	Difference              decimal.Decimal `json:"difference"`
	Balanced                bool            `json:"balanced"`
}

type AccountInput struct {
	AccountNumber   string          `json:"account_number" validate:"required,max=50"`
	BankName        string          `json:"bank_name" validate:"required,max=100"`
	Currency        string          `json:"currency" validate:"omitempty,len=3"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`
	LedgerAccountID *int64          `json:"ledger_account_id" validate:"omitempty,gt=0"`
	Remark          string          `json:"remark" validate:"max=255"`
}

type StatementInput struct {
	Date        shared.Date      `json:"date"`
	Amount      decimal.Decimal  `json:"amount"`
	Type        Direction        `json:"type" validate:"required,oneof=Credit Debit"`
	Balance     *decimal.Decimal `json:"balance"`
	Description string           `json:"description" validate:"max=255"`
}

// ReconciliationInput pairs a statement with a journal entry. BankAccountID,
// when set, must own the statement.
type ReconciliationInput struct {
	BankAccountID int64            `json:"bank_account_id" validate:"omitempty,gt=0"`
	StatementID   int64            `json:"statement_id" validate:"required,gt=0"`
	JournalID     int64            `json:"journal_id" validate:"required,gt=0"`
	MatchedAmount *decimal.Decimal `json:"matched_amount"`
	MatchDate     *shared.Date     `json:"match_date"`
	Remark        string           `json:"remark" validate:"max=255"`
	ActorID       int64            `json:"-"`
}
