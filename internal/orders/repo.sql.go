package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type (
	journalTx   = journals.TxRepository
	inventoryTx = inventory.TxRepository
	partnerTx   = partners.TxRepository
)

type txRepository struct {
	tx pgx.Tx
	journalTx
	inventoryTx
	partnerTx
}

// NewTxRepository composes the order, journal, inventory and partner stores
// over one open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{
		tx:          tx,
		journalTx:   journals.NewTxRepository(tx),
		inventoryTx: inventory.NewTxRepository(tx),
		partnerTx:   partners.NewTxRepository(tx),
	}
}

const orderColumns = `id, company_id, kind, counterparty_id, order_date, expected_date, COALESCE(payment_method, ''), remark, status, total,
COALESCE(posted_by, 0), posted_at, journal_id, cost_journal_id, created_at, updated_at`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *repository) GetOrder(ctx context.Context, companyID int64, kind Kind, id int64) (Order, error) {
	return getOrder(ctx, r.pool, companyID, kind, id, "")
}

func (r *repository) ListOrders(ctx context.Context, companyID int64, kind Kind, f Filter) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE company_id=$1 AND kind=$2 AND ($3::text = '' OR status=$3) AND ($4::bigint = 0 OR counterparty_id=$4)
ORDER BY order_date DESC, id DESC OFFSET $5 LIMIT $6`, companyID, kind, string(f.Status), f.CounterpartyID, f.Window.Skip, f.Window.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *txRepository) OrderForUpdate(ctx context.Context, companyID int64, kind Kind, id int64) (Order, error) {
	return getOrder(ctx, r.tx, companyID, kind, id, " FOR UPDATE")
}

func (r *txRepository) SetOrderStatus(ctx context.Context, companyID, id int64, status Status, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE orders SET status=$3, updated_at=$4 WHERE company_id=$1 AND id=$2`, companyID, id, status, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *txRepository) InsertOrder(ctx context.Context, o Order) (Order, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO orders (company_id, kind, counterparty_id, order_date, expected_date, payment_method, remark, status,
 total, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6, ''),$7,$8,$9,$10,$10) RETURNING id`,
		o.CompanyID, o.Kind, o.CounterpartyID, o.Date, o.ExpectedDate, string(o.PaymentMethod), o.Remark, o.Status, o.Total, o.CreatedAt).Scan(&o.ID)
	if err != nil {
		return Order{}, err
	}
	o.UpdatedAt = o.CreatedAt
	if err := r.insertLines(ctx, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *txRepository) ReplaceOrder(ctx context.Context, o Order) (Order, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE orders SET counterparty_id=$3, order_date=$4, expected_date=$5, payment_method=NULLIF($6, ''),
 remark=$7, total=$8, updated_at=$9 WHERE company_id=$1 AND id=$2 AND status='Draft'`,
		o.CompanyID, o.ID, o.CounterpartyID, o.Date, o.ExpectedDate, string(o.PaymentMethod), o.Remark, o.Total, o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Order{}, ErrNotDraft
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id=$1`, o.ID); err != nil {
		return Order{}, err
	}
	if err := r.insertLines(ctx, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *txRepository) insertLines(ctx context.Context, o *Order) error {
	batch := &pgx.Batch{}
	for _, line := range o.Lines {
		batch.Queue(`INSERT INTO order_lines (order_id, company_id, product_id, description, quantity, unit_price, discount_rate, amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			o.ID, o.CompanyID, line.ProductID, line.Description, line.Quantity, line.UnitPrice, line.DiscountRate, line.Amount)
	}
	results := r.tx.SendBatch(ctx, batch)
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
		if err := results.QueryRow().Scan(&o.Lines[i].ID); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

func (r *txRepository) DeleteOrder(ctx context.Context, companyID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM orders WHERE company_id=$1 AND id=$2 AND status='Draft'`, companyID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotDraft
	}
	return nil
}

func (r *txRepository) MarkOrderPosted(ctx context.Context, companyID, id int64, p Posting) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE orders SET status='Posted', posted_by=$3, posted_at=$4, journal_id=$5, cost_journal_id=$6, updated_at=$4
WHERE company_id=$1 AND id=$2 AND status='Draft'`, companyID, id, p.PostedBy, p.PostedAt, p.JournalID, p.CostJournalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotDraft
	}
	return nil
}

func (r *repository) TotalsByStatus(ctx context.Context, companyID int64, kind Kind, counterpartyID int64) ([]StatusTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(total), 0) FROM orders
WHERE company_id=$1 AND kind=$2 AND counterparty_id=$3 GROUP BY status ORDER BY status`, companyID, kind, counterpartyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusTotal
	for rows.Next() {
		var st StatusTotal
		if err := rows.Scan(&st.Status, &st.Orders, &st.Total); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *repository) CreditExposure(ctx context.Context, companyID, customerID, excludeID int64) (decimal.Decimal, error) {
	return creditExposure(ctx, r.pool, companyID, customerID, excludeID)
}

func (r *txRepository) CreditExposure(ctx context.Context, companyID, customerID, excludeID int64) (decimal.Decimal, error) {
	return creditExposure(ctx, r.tx, companyID, customerID, excludeID)
}

func creditExposure(ctx context.Context, q querier, companyID, customerID, excludeID int64) (decimal.Decimal, error) {
	var exposure decimal.Decimal
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(o.total - COALESCE(s.received, 0)), 0)
FROM orders o
LEFT JOIN (SELECT order_id, SUM(amount) AS received FROM settlements WHERE company_id=$1 AND kind='RECEIPT' GROUP BY order_id) s
  ON s.order_id = o.id
WHERE o.company_id=$1 AND o.kind='SO' AND o.status='Posted' AND o.payment_method='Credit' AND o.counterparty_id=$2 AND o.id<>$3`,
		companyID, customerID, excludeID).Scan(&exposure)
	return exposure, err
}

func getOrder(ctx context.Context, q querier, companyID int64, kind Kind, id int64, lock string) (Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE company_id=$1 AND kind=$2 AND id=$3`+lock, companyID, kind, id))
	if err != nil {
		return Order{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, description, quantity, unit_price, discount_rate, amount
FROM order_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice, &l.DiscountRate, &l.Amount); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CompanyID, &o.Kind, &o.CounterpartyID, &o.Date, &o.ExpectedDate, &o.PaymentMethod, &o.Remark, &o.Status, &o.Total,
		&o.PostedBy, &o.PostedAt, &o.JournalID, &o.CostJournalID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}
