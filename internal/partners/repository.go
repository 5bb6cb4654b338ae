package partners

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Repository interface {
	GetPartner(ctx context.Context, companyID int64, kind Kind, id int64) (Partner, error)
	ListPartners(ctx context.Context, companyID int64, kind Kind, window shared.Window) ([]Partner, error)
	InsertPartner(ctx context.Context, p Partner) (Partner, error)
	UpdatePartner(ctx context.Context, p Partner) error
}

// TxRepository is embedded by order posting. Locking the customer row
// serialises concurrent credit checks against the same limit.
type TxRepository interface {
	PartnerForUpdate(ctx context.Context, companyID int64, kind Kind, id int64) (Partner, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// NewTxRepository binds partner reads to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &repository{db: tx}
}

const columns = `id, company_id, kind, name, contact, phone, email, address, credit_limit, created_at, updated_at`

func (r *repository) GetPartner(ctx context.Context, companyID int64, kind Kind, id int64) (Partner, error) {
	return scanPartner(r.db.QueryRow(ctx, `SELECT `+columns+` FROM partners WHERE company_id=$1 AND kind=$2 AND id=$3`, companyID, kind, id))
}

func (r *repository) PartnerForUpdate(ctx context.Context, companyID int64, kind Kind, id int64) (Partner, error) {
	return scanPartner(r.db.QueryRow(ctx, `SELECT `+columns+` FROM partners WHERE company_id=$1 AND kind=$2 AND id=$3 FOR UPDATE`, companyID, kind, id))
}

func (r *repository) ListPartners(ctx context.Context, companyID int64, kind Kind, window shared.Window) ([]Partner, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM partners WHERE company_id=$1 AND kind=$2 ORDER BY name, id OFFSET $3 LIMIT $4`,
		companyID, kind, window.Skip, window.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) InsertPartner(ctx context.Context, p Partner) (Partner, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO partners (company_id, kind, name, contact, phone, email, address, credit_limit, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9) RETURNING id`,
		p.CompanyID, p.Kind, p.Name, p.Contact, p.Phone, p.Email, p.Address, p.CreditLimit, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_partners_company_kind_name") {
			return Partner{}, ErrDuplicatePartner
		}
		return Partner{}, err
	}
	p.UpdatedAt = p.CreatedAt
	return p, nil
}

func (r *repository) UpdatePartner(ctx context.Context, p Partner) error {
	tag, err := r.db.Exec(ctx, `UPDATE partners SET name=$4, contact=$5, phone=$6, email=$7, address=$8, credit_limit=$9, updated_at=$10
WHERE company_id=$1 AND kind=$2 AND id=$3`,
		p.CompanyID, p.Kind, p.ID, p.Name, p.Contact, p.Phone, p.Email, p.Address, p.CreditLimit, p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_partners_company_kind_name") {
			return ErrDuplicatePartner
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPartnerNotFound
	}
	return nil
}

func scanPartner(row pgx.Row) (Partner, error) {
	var p Partner
	err := row.Scan(&p.ID, &p.CompanyID, &p.Kind, &p.Name, &p.Contact, &p.Phone, &p.Email, &p.Address, &p.CreditLimit, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Partner{}, ErrPartnerNotFound
	}
	return p, err
}
