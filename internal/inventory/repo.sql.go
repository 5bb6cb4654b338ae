package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds inventory mutations to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const itemColumns = `company_id, product_id, quantity, average_cost, locations, updated_at`

func (r *Repository) GetItem(ctx context.Context, companyID, productID int64) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE company_id=$1 AND product_id=$2`, companyID, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

func (r *Repository) ListItems(ctx context.Context, companyID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE company_id=$1 ORDER BY product_id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repository) ListTransactions(ctx context.Context, companyID int64, filter TransactionFilter) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, product_id, type, quantity, unit_cost, source_type, source_id,
 warehouse_location, remark, created_by, created_at
FROM inventory_transactions WHERE company_id=$1 AND ($2::bigint IS NULL OR product_id=$2)
ORDER BY created_at DESC, id DESC OFFSET $3 LIMIT $4`, companyID, filter.ProductID, filter.Window.Skip, filter.Window.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.ProductID, &t.Type, &t.Quantity, &t.UnitCost, &t.SourceType, &t.SourceID,
			&t.WarehouseLocation, &t.Remark, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *txRepository) ItemsForUpdate(ctx context.Context, companyID int64, productIDs []int64) (map[int64]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE company_id=$1 AND product_id = ANY($2)
ORDER BY product_id FOR UPDATE`, companyID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Item, len(productIDs))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[item.ProductID] = item
	}
	return out, rows.Err()
}

func (r *txRepository) UpsertItem(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_items (company_id, product_id, quantity, average_cost, locations, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (company_id, product_id) DO UPDATE SET quantity=EXCLUDED.quantity, average_cost=EXCLUDED.average_cost,
 locations=EXCLUDED.locations, updated_at=EXCLUDED.updated_at`,
		item.CompanyID, item.ProductID, item.Quantity, item.AverageCost, item.Locations, item.UpdatedAt)
	return err
}

func (r *txRepository) InsertInventoryTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_transactions (company_id, product_id, type, quantity, unit_cost, source_type, source_id,
 warehouse_location, remark, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		t.CompanyID, t.ProductID, t.Type, t.Quantity, t.UnitCost, t.SourceType, t.SourceID,
		t.WarehouseLocation, t.Remark, t.CreatedBy, t.CreatedAt).Scan(&t.ID)
	return t, err
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.CompanyID, &item.ProductID, &item.Quantity, &item.AverageCost, &item.Locations, &item.UpdatedAt)
	return item, err
}
