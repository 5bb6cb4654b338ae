package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// CompanyLister discovers the tenants a sweep runs over.
type CompanyLister interface {
	Companies(ctx context.Context) ([]int64, error)
}

// PoolCompanies lists tenants that own a chart of accounts.
type PoolCompanies struct {
	Pool *pgxpool.Pool
}

func (p PoolCompanies) Companies(ctx context.Context) ([]int64, error) {
	if p.Pool == nil {
		return nil, errors.New("jobs: pool not configured")
	}
	rows, err := p.Pool.Query(ctx, `SELECT DISTINCT company_id FROM accounts ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// scopeTimeout caps the work done for one tenant inside a sweep.
const scopeTimeout = 20 * time.Second

// fanOut resolves the tenants of a run and calls fn for each, at most limit
// at a time. A non-zero only restricts the run to that tenant. The first
// failure cancels the remaining tenants.
func fanOut(ctx context.Context, lister CompanyLister, only int64, limit int, fn func(context.Context, int64) error) (int, error) {
	companies := []int64{only}
	if only == 0 {
		if lister == nil {
			return 0, errors.New("jobs: company lister not configured")
		}
		var err error
		if companies, err = lister.Companies(ctx); err != nil {
			return 0, err
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, companyID := range companies {
		g.Go(func() error {
			scopeCtx, cancel := context.WithTimeout(gctx, scopeTimeout)
			defer cancel()
			return fn(scopeCtx, companyID)
		})
	}
	return len(companies), g.Wait()
}
