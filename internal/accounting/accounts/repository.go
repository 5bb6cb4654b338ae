package accounts

import "context"

// Usage counts what blocks an account from being deleted.
type Usage struct {
	Children int
	Postings int
}

// Repository exposes committed reads and the transaction boundary.
type Repository interface {
	GetAccount(ctx context.Context, companyID, id int64) (Account, error)
	// ListAccounts returns accounts ordered by code. A nil parentID lists the whole chart.
	ListAccounts(ctx context.Context, companyID int64, parentID *int64) ([]Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the chart mutations available inside a transaction.
type TxRepository interface {
	AccountByID(ctx context.Context, companyID, id int64) (Account, error)
	AccountByCode(ctx context.Context, companyID int64, code string) (Account, error)
	InsertAccount(ctx context.Context, account Account) (Account, error)
	UpdateAccount(ctx context.Context, account Account) error
	DeleteAccount(ctx context.Context, companyID, id int64) error
	AccountUsage(ctx context.Context, companyID, id int64) (Usage, error)
}
