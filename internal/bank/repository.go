package bank

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

type Repository interface {
	GetBankAccount(ctx context.Context, companyID, id int64) (Account, error)
	ListBankAccounts(ctx context.Context, companyID int64) ([]Account, error)
	InsertBankAccount(ctx context.Context, a Account) (Account, error)
	UpdateBankAccount(ctx context.Context, a Account) error
	DeleteBankAccount(ctx context.Context, companyID, id int64) error
	CountStatements(ctx context.Context, companyID, bankAccountID int64) (int, error)

	GetStatement(ctx context.Context, companyID, id int64) (Statement, error)
	// ListStatements returns the account's statements within r ordered by
	// date then id, with Reconciled populated.
	ListStatements(ctx context.Context, companyID, bankAccountID int64, r journals.Range) ([]Statement, error)
	InsertStatement(ctx context.Context, s Statement) (Statement, error)
	UpdateStatement(ctx context.Context, s Statement) error
	DeleteStatement(ctx context.Context, companyID, id int64) error

	GetReconciliation(ctx context.Context, companyID, id int64) (Reconciliation, error)
	// ReconciliationsForStatements returns the pairings of the given statements.
	ReconciliationsForStatements(ctx context.Context, companyID int64, statementIDs []int64) ([]Reconciliation, error)
	// ReconciledJournals reports which of journalIDs are already paired.
	ReconciledJournals(ctx context.Context, companyID int64, journalIDs []int64) (map[int64]bool, error)
	// InsertReconciliations stores every pairing or none. A statement or
	// journal already paired fails the batch with ErrAlreadyReconciled.
	InsertReconciliations(ctx context.Context, recs []Reconciliation) ([]Reconciliation, error)
	DeleteReconciliation(ctx context.Context, companyID, id int64) error
}
