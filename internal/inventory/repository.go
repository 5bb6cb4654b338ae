package inventory

import "context"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, companyID, productID int64) (Item, error)
	ListItems(ctx context.Context, companyID int64) ([]Item, error)
	ListTransactions(ctx context.Context, companyID int64, filter TransactionFilter) ([]Transaction, error)
}

// TxRepository exposes transactional operations. Order posting embeds it to
// move stock in the same transaction as the journal.
type TxRepository interface {
	// ItemsForUpdate locks the items of productIDs in ascending product id
	// order. Products without stock are absent from the result.
	ItemsForUpdate(ctx context.Context, companyID int64, productIDs []int64) (map[int64]Item, error)
	UpsertItem(ctx context.Context, item Item) error
	InsertInventoryTransaction(ctx context.Context, t Transaction) (Transaction, error)
}
