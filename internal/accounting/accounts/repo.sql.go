package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Columns is the accounts select list matching ScanAccount.
const Columns = `id, company_id, parent_id, code, name, type, normal_balance, is_core, path, remark,
debit_total, credit_total, created_at, updated_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres chart of accounts repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetAccount(ctx context.Context, companyID, id int64) (Account, error) {
	return ScanAccount(r.pool.QueryRow(ctx, `SELECT `+Columns+` FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *repository) ListAccounts(ctx context.Context, companyID int64, parentID *int64) ([]Account, error) {
	query := `SELECT ` + Columns + ` FROM accounts WHERE company_id=$1`
	args := []any{companyID}
	if parentID != nil {
		query += ` AND parent_id=$2`
		args = append(args, *parentID)
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the chart mutations to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) AccountByID(ctx context.Context, companyID, id int64) (Account, error) {
	return ScanAccount(r.tx.QueryRow(ctx, `SELECT `+Columns+` FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *txRepository) AccountByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	return ScanAccount(r.tx.QueryRow(ctx, `SELECT `+Columns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code))
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, parent_id, code, name, type, normal_balance, is_core, path, remark, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10) RETURNING id`,
		a.CompanyID, a.ParentID, a.Code, a.Name, a.Type, a.NormalBalance, a.IsCore, a.Path, a.Remark, a.CreatedAt)
	if err := row.Scan(&a.ID); err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_company_code") {
			return Account{}, shared.ErrDuplicateCode
		}
		return Account{}, err
	}
	a.UpdatedAt = a.CreatedAt
	return a, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, a Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET name=$3, remark=$4, updated_at=$5 WHERE company_id=$1 AND id=$2`,
		a.CompanyID, a.ID, a.Name, a.Remark, a.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, companyID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) AccountUsage(ctx context.Context, companyID, id int64) (Usage, error) {
	var u Usage
	err := r.tx.QueryRow(ctx, `SELECT
 (SELECT COUNT(*) FROM accounts WHERE company_id=$1 AND parent_id=$2),
 (SELECT COUNT(*) FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id WHERE e.company_id=$1 AND l.account_id=$2)`,
		companyID, id).Scan(&u.Children, &u.Postings)
	return u, err
}

// ScanAccount scans one accounts row selected with Columns.
func ScanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.ParentID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.IsCore, &a.Path, &a.Remark,
		&a.DebitTotal, &a.CreditTotal, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}
