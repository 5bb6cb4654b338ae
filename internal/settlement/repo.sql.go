package settlement

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, orderTx: orders.NewTxRepository(tx)})
	})
}

type orderTx = orders.TxRepository

// txRepository reuses the order store for status and journal writes.
type txRepository struct {
	tx pgx.Tx
	orderTx
}

func (r *repository) ListSettlements(ctx context.Context, companyID int64, kind Kind, window shared.Window) ([]Settlement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, kind, order_id, settle_date, amount, method, remark, COALESCE(journal_id, 0), created_by, created_at
FROM settlements WHERE company_id=$1 AND kind=$2 ORDER BY settle_date DESC, id DESC OFFSET $3 LIMIT $4`, companyID, kind, window.Skip, window.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Settlement
	for rows.Next() {
		var s Settlement
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.Kind, &s.OrderID, &s.Date, &s.Amount, &s.Method, &s.Remark, &s.JournalID, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) OpenOrders(ctx context.Context, companyID int64, kind Kind) ([]OpenOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT o.id, o.counterparty_id, o.order_date, o.total, COALESCE(SUM(s.amount), 0) AS settled
FROM orders o
LEFT JOIN settlements s ON s.order_id = o.id AND s.kind = $3
WHERE o.company_id=$1 AND o.kind=$2 AND o.status='Posted'
GROUP BY o.id
HAVING o.total - COALESCE(SUM(s.amount), 0) > 0
ORDER BY o.order_date, o.id`, companyID, kind.OrderKind(), kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpenOrder
	for rows.Next() {
		var o OpenOrder
		if err := rows.Scan(&o.OrderID, &o.CounterpartyID, &o.Date, &o.Total, &o.Settled); err != nil {
			return nil, err
		}
		o.Outstanding = Outstanding(o.Total, o.Settled)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertSettlement(ctx context.Context, s Settlement) (Settlement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO settlements (company_id, kind, order_id, settle_date, amount, method, remark, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		s.CompanyID, s.Kind, s.OrderID, s.Date, s.Amount, s.Method, s.Remark, s.CreatedBy, s.CreatedAt).Scan(&s.ID)
	return s, err
}

func (r *txRepository) AttachSettlementJournal(ctx context.Context, companyID, id, journalID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE settlements SET journal_id=$3 WHERE company_id=$1 AND id=$2`, companyID, id, journalID)
	return err
}

func (r *txRepository) SettledAmount(ctx context.Context, companyID int64, kind Kind, orderID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM settlements WHERE company_id=$1 AND kind=$2 AND order_id=$3`,
		companyID, kind, orderID).Scan(&sum)
	return sum, err
}
