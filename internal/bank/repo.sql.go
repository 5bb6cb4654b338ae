package bank

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, company_id, account_number, bank_name, currency, initial_balance, ledger_account_id, remark, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.AccountNumber, &a.BankName, &a.Currency, &a.InitialBalance, &a.LedgerAccountID, &a.Remark, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrBankAccountNotFound
	}
	return a, err
}

func (r *repository) GetBankAccount(ctx context.Context, companyID, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *repository) ListBankAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE company_id=$1 ORDER BY id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) InsertBankAccount(ctx context.Context, a Account) (Account, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO bank_accounts (company_id, account_number, bank_name, currency, initial_balance, ledger_account_id, remark, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8) RETURNING id`,
		a.CompanyID, a.AccountNumber, a.BankName, a.Currency, a.InitialBalance, a.LedgerAccountID, a.Remark, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_bank_accounts_company_number") {
			return Account{}, ErrDuplicateBankAccount
		}
		return Account{}, err
	}
	a.UpdatedAt = a.CreatedAt
	return a, nil
}

func (r *repository) UpdateBankAccount(ctx context.Context, a Account) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bank_accounts SET account_number=$3, bank_name=$4, currency=$5, initial_balance=$6, ledger_account_id=$7, remark=$8, updated_at=$9
WHERE company_id=$1 AND id=$2`,
		a.CompanyID, a.ID, a.AccountNumber, a.BankName, a.Currency, a.InitialBalance, a.LedgerAccountID, a.Remark, a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_bank_accounts_company_number") {
			return ErrDuplicateBankAccount
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBankAccountNotFound
	}
	return nil
}

func (r *repository) DeleteBankAccount(ctx context.Context, companyID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bank_accounts WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBankAccountNotFound
	}
	return nil
}

func (r *repository) CountStatements(ctx context.Context, companyID, bankAccountID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bank_statements WHERE company_id=$1 AND bank_account_id=$2`, companyID, bankAccountID).Scan(&n)
	return n, err
}

const statementColumns = `s.id, s.company_id, s.bank_account_id, s.statement_date, s.amount, s.type, s.balance, s.description,
EXISTS (SELECT 1 FROM reconciliations rc WHERE rc.statement_id = s.id), s.created_at`

func scanStatement(row pgx.Row) (Statement, error) {
	var s Statement
	err := row.Scan(&s.ID, &s.CompanyID, &s.BankAccountID, &s.Date, &s.Amount, &s.Type, &s.Balance, &s.Description, &s.Reconciled, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Statement{}, ErrStatementNotFound
	}
	return s, err
}

func (r *repository) GetStatement(ctx context.Context, companyID, id int64) (Statement, error) {
	return scanStatement(r.pool.QueryRow(ctx, `SELECT `+statementColumns+` FROM bank_statements s WHERE s.company_id=$1 AND s.id=$2`, companyID, id))
}

func (r *repository) ListStatements(ctx context.Context, companyID, bankAccountID int64, rg journals.Range) ([]Statement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+statementColumns+` FROM bank_statements s
WHERE s.company_id=$1 AND s.bank_account_id=$2
  AND ($3::date IS NULL OR s.statement_date >= $3) AND ($4::date IS NULL OR s.statement_date <= $4)
ORDER BY s.statement_date, s.id`, companyID, bankAccountID, nullDate(rg.From), nullDate(rg.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Statement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) InsertStatement(ctx context.Context, s Statement) (Statement, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO bank_statements (company_id, bank_account_id, statement_date, amount, type, balance, description, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		s.CompanyID, s.BankAccountID, s.Date, s.Amount, s.Type, s.Balance, s.Description, s.CreatedAt).Scan(&s.ID)
	return s, err
}

func (r *repository) UpdateStatement(ctx context.Context, s Statement) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bank_statements SET statement_date=$3, amount=$4, type=$5, balance=$6, description=$7
WHERE company_id=$1 AND id=$2 AND NOT EXISTS (SELECT 1 FROM reconciliations WHERE statement_id=$2)`,
		s.CompanyID, s.ID, s.Date, s.Amount, s.Type, s.Balance, s.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatementReconciled
	}
	return nil
}

func (r *repository) DeleteStatement(ctx context.Context, companyID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bank_statements WHERE company_id=$1 AND id=$2
AND NOT EXISTS (SELECT 1 FROM reconciliations WHERE statement_id=$2)`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatementReconciled
	}
	return nil
}

const reconciliationColumns = `id, company_id, statement_id, journal_id, matched_amount, match_date, remark, auto, run_id, created_by, created_at`

func scanReconciliation(row pgx.Row) (Reconciliation, error) {
	var rc Reconciliation
	err := row.Scan(&rc.ID, &rc.CompanyID, &rc.StatementID, &rc.JournalID, &rc.MatchedAmount, &rc.MatchDate, &rc.Remark, &rc.Auto, &rc.RunID, &rc.CreatedBy, &rc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reconciliation{}, ErrReconciliationNotFound
	}
	return rc, err
}

func (r *repository) GetReconciliation(ctx context.Context, companyID, id int64) (Reconciliation, error) {
	return scanReconciliation(r.pool.QueryRow(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *repository) ReconciliationsForStatements(ctx context.Context, companyID int64, statementIDs []int64) ([]Reconciliation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations WHERE company_id=$1 AND statement_id = ANY($2) ORDER BY id`,
		companyID, statementIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reconciliation
	for rows.Next() {
		rc, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *repository) ReconciledJournals(ctx context.Context, companyID int64, journalIDs []int64) (map[int64]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT journal_id FROM reconciliations WHERE company_id=$1 AND journal_id = ANY($2)`, companyID, journalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *repository) InsertReconciliations(ctx context.Context, recs []Reconciliation) ([]Reconciliation, error) {
	out := make([]Reconciliation, len(recs))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rc := range recs {
			batch.Queue(`INSERT INTO reconciliations (company_id, statement_id, journal_id, matched_amount, match_date, remark, auto, run_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
				rc.CompanyID, rc.StatementID, rc.JournalID, rc.MatchedAmount, rc.MatchDate, rc.Remark, rc.Auto, rc.RunID, rc.CreatedBy, rc.CreatedAt)
		}
		results := tx.SendBatch(ctx, batch)
		for i, rc := range recs {
			if err := results.QueryRow().Scan(&rc.ID); err != nil {
				_ = results.Close()
				return err
			}
			out[i] = rc
		}
		return results.Close()
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, ErrAlreadyReconciled
		}
		return nil, err
	}
	return out, nil
}

func (r *repository) DeleteReconciliation(ctx context.Context, companyID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reconciliations WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReconciliationNotFound
	}
	return nil
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
