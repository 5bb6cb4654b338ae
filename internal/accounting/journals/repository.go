package journals

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository encapsulates committed reads and the transaction boundary.
type Repository interface {
	GetEntry(ctx context.Context, companyID, id int64) (Entry, error)
	// ListEntries returns headers newest first and the total count.
	ListEntries(ctx context.Context, companyID int64, window base.Window) ([]Entry, int, error)
	LedgerWindow(ctx context.Context, companyID, accountID int64, skip, limit int) (LedgerWindow, error)
	// Movements aggregates posted lines on accountIDs per entry within r,
	// ordered by date then entry id.
	Movements(ctx context.Context, companyID int64, accountIDs []int64, r Range) ([]Movement, error)
	// Sums totals posted lines per account within r.
	Sums(ctx context.Context, companyID int64, r Range) ([]AccountSum, error)
	// StoredTotals returns the incrementally maintained account totals.
	StoredTotals(ctx context.Context, companyID int64) ([]AccountSum, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Callers in
// other packages embed it so generated entries commit with their source event.
type TxRepository interface {
	// LockAccounts locks the given accounts in ascending id order.
	LockAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error)
	AccountsByCode(ctx context.Context, companyID int64, codes []string) (map[string]accounts.Account, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	EntryForUpdate(ctx context.Context, companyID, id int64) (Entry, error)
	MarkEntryPosted(ctx context.Context, companyID, id, postedBy int64, at time.Time) error
	AddAccountTotals(ctx context.Context, companyID, accountID int64, debit, credit decimal.Decimal) error
	// ReversalOf returns the id of the entry reversing id, or zero.
	ReversalOf(ctx context.Context, companyID, id int64) (int64, error)
}

// AccountReader resolves a single account for ledger rendering.
type AccountReader interface {
	GetAccount(ctx context.Context, companyID, id int64) (accounts.Account, error)
}
