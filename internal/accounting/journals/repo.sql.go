package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const entryColumns = `id, company_id, entry_date, description, source_type, source_id, posted, COALESCE(posted_by, 0), posted_at,
total_debit, total_credit, reversal_of, created_at`

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetEntry(ctx context.Context, companyID, id int64) (Entry, error) {
	return getEntry(ctx, r.db, companyID, id, "")
}

func (r *repository) ListEntries(ctx context.Context, companyID int64, window base.Window) ([]Entry, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE company_id=$1`, companyID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1
ORDER BY entry_date DESC, id DESC OFFSET $2 LIMIT $3`, companyID, window.Skip, window.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

const ledgerRows = `WITH ledger AS (
  SELECT l.id AS line_id, e.id AS entry_id, e.entry_date, e.description, e.source_type, l.memo, l.debit, l.credit,
         ROW_NUMBER() OVER (ORDER BY e.entry_date, e.id, l.id) AS rn
  FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
  WHERE e.company_id=$1 AND e.posted AND l.account_id=$2
)`

func (r *repository) LedgerWindow(ctx context.Context, companyID, accountID int64, skip, limit int) (LedgerWindow, error) {
	var w LedgerWindow
	err := r.db.QueryRow(ctx, ledgerRows+`
SELECT COALESCE(SUM(debit) FILTER (WHERE rn <= $3), 0), COALESCE(SUM(credit) FILTER (WHERE rn <= $3), 0), COUNT(*) FROM ledger`,
		companyID, accountID, skip).Scan(&w.OpeningDebit, &w.OpeningCredit, &w.Total)
	if err != nil {
		return LedgerWindow{}, err
	}
	rows, err := r.db.Query(ctx, ledgerRows+`
SELECT entry_id, line_id, entry_date, description, source_type, memo, debit, credit FROM ledger WHERE rn > $3 ORDER BY rn LIMIT $4`,
		companyID, accountID, skip, limit)
	if err != nil {
		return LedgerWindow{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var row LedgerRow
		if err := rows.Scan(&row.EntryID, &row.LineID, &row.Date, &row.Description, &row.SourceType, &row.Memo, &row.Debit, &row.Credit); err != nil {
			return LedgerWindow{}, err
		}
		w.Rows = append(w.Rows, row)
	}
	return w, rows.Err()
}

func (r *repository) Movements(ctx context.Context, companyID int64, accountIDs []int64, rg Range) ([]Movement, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.entry_date, e.description, e.source_type, e.source_id, SUM(l.debit), SUM(l.credit)
FROM journal_entries e JOIN journal_lines l ON l.entry_id = e.id
WHERE e.company_id=$1 AND e.posted AND l.account_id = ANY($2)
  AND ($3::date IS NULL OR e.entry_date >= $3) AND ($4::date IS NULL OR e.entry_date <= $4)
GROUP BY e.id ORDER BY e.entry_date, e.id`, companyID, accountIDs, nullDate(rg.From), nullDate(rg.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.EntryID, &m.Date, &m.Description, &m.SourceType, &m.SourceID, &m.Debit, &m.Credit); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) Sums(ctx context.Context, companyID int64, rg Range) ([]AccountSum, error) {
	return collectSums(r.db.Query(ctx, `SELECT l.account_id, SUM(l.debit), SUM(l.credit)
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.company_id=$1 AND e.posted
  AND ($2::date IS NULL OR e.entry_date >= $2) AND ($3::date IS NULL OR e.entry_date <= $3)
GROUP BY l.account_id ORDER BY l.account_id`, companyID, nullDate(rg.From), nullDate(rg.To)))
}

func (r *repository) StoredTotals(ctx context.Context, companyID int64) ([]AccountSum, error) {
	return collectSums(r.db.Query(ctx, `SELECT id, debit_total, credit_total FROM accounts WHERE company_id=$1 ORDER BY id`, companyID))
}

func collectSums(rows pgx.Rows, err error) ([]AccountSum, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountSum
	for rows.Next() {
		var s AccountSum
		if err := rows.Scan(&s.AccountID, &s.Debit, &s.Credit); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the journal mutations to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) LockAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accounts.Columns+` FROM accounts WHERE company_id=$1 AND id = ANY($2) ORDER BY id FOR UPDATE`, companyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		a, err := accounts.ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *txRepository) AccountsByCode(ctx context.Context, companyID int64, codes []string) (map[string]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accounts.Columns+` FROM accounts WHERE company_id=$1 AND code = ANY($2)`, companyID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]accounts.Account, len(codes))
	for rows.Next() {
		a, err := accounts.ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.Code] = a
	}
	return out, rows.Err()
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, entry_date, description, source_type, source_id, posted, posted_by, posted_at,
 total_debit, total_credit, reversal_of, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		e.CompanyID, e.Date, e.Description, e.SourceType, e.SourceID, e.Posted, nullInt(e.PostedBy), e.PostedAt,
		e.TotalDebit, e.TotalCredit, e.ReversalOf, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_journal_entries_reversal_of") {
			return Entry{}, shared.ErrAlreadyReversed
		}
		return Entry{}, err
	}
	batch := &pgx.Batch{}
	for _, line := range e.Lines {
		batch.Queue(`INSERT INTO journal_lines (entry_id, company_id, account_id, debit, credit, memo) VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			e.ID, e.CompanyID, line.AccountID, line.Debit, line.Credit, line.Memo)
	}
	results := r.tx.SendBatch(ctx, batch)
	for i := range e.Lines {
		e.Lines[i].EntryID = e.ID
		if err := results.QueryRow().Scan(&e.Lines[i].ID); err != nil {
			_ = results.Close()
			return Entry{}, err
		}
	}
	if err := results.Close(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) EntryForUpdate(ctx context.Context, companyID, id int64) (Entry, error) {
	return getEntry(ctx, r.tx, companyID, id, " FOR UPDATE")
}

func (r *txRepository) MarkEntryPosted(ctx context.Context, companyID, id, postedBy int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET posted=TRUE, posted_by=$3, posted_at=$4 WHERE company_id=$1 AND id=$2 AND NOT posted`,
		companyID, id, postedBy, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyPosted
	}
	return nil
}

func (r *txRepository) AddAccountTotals(ctx context.Context, companyID, accountID int64, debit, credit decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET debit_total = debit_total + $3, credit_total = credit_total + $4 WHERE company_id=$1 AND id=$2`,
		companyID, accountID, debit, credit)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) ReversalOf(ctx context.Context, companyID, id int64) (int64, error) {
	var reversalID int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM journal_entries WHERE company_id=$1 AND reversal_of=$2`, companyID, id).Scan(&reversalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return reversalID, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getEntry(ctx context.Context, q querier, companyID, id int64, lock string) (Entry, error) {
	entry, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND id=$2`+lock, companyID, id))
	if err != nil {
		return Entry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, memo FROM journal_lines WHERE entry_id=$1 ORDER BY id`, id)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.CompanyID, &e.Date, &e.Description, &e.SourceType, &e.SourceID, &e.Posted, &e.PostedBy, &e.PostedAt,
		&e.TotalDebit, &e.TotalCredit, &e.ReversalOf, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, shared.ErrJournalNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
