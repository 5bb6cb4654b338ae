package mappings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Repository interface {
	// Latest returns the highest version for the tenant or ErrMappingNotFound.
	Latest(ctx context.Context, companyID int64) (Set, error)
	// Insert stores set as the next version.
	Insert(ctx context.Context, set Set) (Set, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

type payload struct {
	Codes  Codes       `json:"codes"`
	Report ReportCodes `json:"report"`
}

func (r *repository) Latest(ctx context.Context, companyID int64) (Set, error) {
	var (
		set Set
		raw []byte
	)
	err := r.db.QueryRow(ctx, `SELECT company_id, version, codes, created_by, created_at FROM account_mappings
WHERE company_id=$1 ORDER BY version DESC LIMIT 1`, companyID).
		Scan(&set.CompanyID, &set.Version, &raw, &set.CreatedBy, &set.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Set{}, shared.ErrMappingNotFound
		}
		return Set{}, err
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Set{}, fmt.Errorf("mappings: decode version %d: %w", set.Version, err)
	}
	set.Codes, set.Report = p.Codes, p.Report
	return set, nil
}

func (r *repository) Insert(ctx context.Context, set Set) (Set, error) {
	raw, err := json.Marshal(payload{Codes: set.Codes, Report: set.Report})
	if err != nil {
		return Set{}, err
	}
	err = r.db.QueryRow(ctx, `INSERT INTO account_mappings (company_id, version, codes, created_by, created_at)
SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, $4 FROM account_mappings WHERE company_id=$1
RETURNING version`, set.CompanyID, raw, set.CreatedBy, set.CreatedAt).Scan(&set.Version)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return Set{}, fmt.Errorf("%w: mapping version raced", base.ErrConflict)
		}
		return Set{}, err
	}
	return set, nil
}
