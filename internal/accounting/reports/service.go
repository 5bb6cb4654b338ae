package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ChartReader lists a tenant's accounts.
type ChartReader interface {
	ListAccounts(ctx context.Context, companyID int64, parentID *int64) ([]accounts.Account, error)
}

// LedgerReader aggregates posted lines.
type LedgerReader interface {
	Sums(ctx context.Context, companyID int64, r journals.Range) ([]journals.AccountSum, error)
	Movements(ctx context.Context, companyID int64, accountIDs []int64, r journals.Range) ([]journals.Movement, error)
}

// MappingResolver returns the tenant's authoritative mapping set.
type MappingResolver interface {
	Current(ctx context.Context, companyID int64) (mappings.Set, error)
}

// Observer is told about every report served.
type Observer interface {
	ReportServed(report string, cached bool)
}

const dateLayout = "2006-01-02"

// Service compiles financial statements from posted ledger data. Results are
// cached per tenant version; the version is bumped whenever posted data
// changes, so a cached report never outlives the ledger it was built from.
type Service struct {
	chart    ChartReader
	ledger   LedgerReader
	mappings MappingResolver
	cache    *cache.Versioned
	flight   singleflight.Group
	observer Observer
	logger   *slog.Logger
}

// NewService wires the readers with an optional cache. A nil cache builds
// every request.
func NewService(chart ChartReader, ledger LedgerReader, resolver MappingResolver, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{chart: chart, ledger: ledger, mappings: resolver, cache: c, logger: logger}
}

// WithObserver attaches a metrics observer.
func (s *Service) WithObserver(o Observer) {
	s.observer = o
}

// LedgerChanged invalidates every cached report of the tenant.
func (s *Service) LedgerChanged(ctx context.Context, companyID int64) {
	if err := s.cache.Bump(ctx, companyID); err != nil {
		s.logger.WarnContext(ctx, "report cache bump failed", slog.Int64("company_id", companyID), slog.Any("error", err))
	}
}

// BalanceSheet reports closing positions as of a date.
func (s *Service) BalanceSheet(ctx context.Context, companyID int64, asOf time.Time) (BalanceSheetViewModel, error) {
	if asOf.IsZero() {
		return BalanceSheetViewModel{}, base.Invalidf("reports: as_of required")
	}
	return fetch(ctx, s, companyID, ReportBalanceSheet, []string{asOf.Format(dateLayout)}, func(ctx context.Context, set mappings.Set) (BalanceSheet, error) {
		balances, err := s.balances(ctx, companyID, journals.Range{}, journals.Range{To: asOf})
		if err != nil {
			return BalanceSheet{}, err
		}
		return BuildBalanceSheet(balances, set.Report, asOf), nil
	})
}

// IncomeStatement reports profit for the period.
func (s *Service) IncomeStatement(ctx context.Context, companyID int64, start, end time.Time) (IncomeStatementViewModel, error) {
	if err := checkPeriod(start, end); err != nil {
		return IncomeStatementViewModel{}, err
	}
	return fetch(ctx, s, companyID, ReportIncomeStatement, period(start, end), func(ctx context.Context, set mappings.Set) (IncomeStatement, error) {
		balances, err := s.balances(ctx, companyID, journals.Range{}, journals.Range{From: start, To: end})
		if err != nil {
			return IncomeStatement{}, err
		}
		return BuildIncomeStatement(balances, set.Codes, set.Report, start, end), nil
	})
}

// CashFlow reports cash movement for the period.
func (s *Service) CashFlow(ctx context.Context, companyID int64, start, end time.Time) (CashFlowViewModel, error) {
	if err := checkPeriod(start, end); err != nil {
		return CashFlowViewModel{}, err
	}
	return fetch(ctx, s, companyID, ReportCashFlow, period(start, end), func(ctx context.Context, set mappings.Set) (CashFlow, error) {
		chart, err := s.chart.ListAccounts(ctx, companyID, nil)
		if err != nil {
			return CashFlow{}, err
		}
		scope := cashScope(chart, set.Report.CashFlowCash)
		if len(scope) == 0 {
			return BuildCashFlow(nil, decimal.Zero, start, end), nil
		}
		before, err := s.ledger.Sums(ctx, companyID, journals.Range{To: dayBefore(start)})
		if err != nil {
			return CashFlow{}, err
		}
		inScope := make(map[int64]bool, len(scope))
		for _, id := range scope {
			inScope[id] = true
		}
		beginning := decimal.Zero
		for _, sum := range before {
			if inScope[sum.AccountID] {
				beginning = beginning.Add(sum.Debit).Sub(sum.Credit)
			}
		}
		movements, err := s.ledger.Movements(ctx, companyID, scope, journals.Range{From: start, To: end})
		if err != nil {
			return CashFlow{}, err
		}
		return BuildCashFlow(movements, beginning, start, end), nil
	})
}

// TrialBalance reports opening, movement and closing per account.
func (s *Service) TrialBalance(ctx context.Context, companyID int64, start, end time.Time) (TrialBalanceViewModel, error) {
	if err := checkPeriod(start, end); err != nil {
		return TrialBalanceViewModel{}, err
	}
	return fetch(ctx, s, companyID, ReportTrialBalance, period(start, end), func(ctx context.Context, _ mappings.Set) (TrialBalance, error) {
		balances, err := s.balances(ctx, companyID, journals.Range{To: dayBefore(start)}, journals.Range{From: start, To: end})
		if err != nil {
			return TrialBalance{}, err
		}
		tb := BuildTrialBalance(balances)
		tb.StartDate, tb.EndDate = start, end
		return tb, nil
	})
}

// Warm builds the month-to-date reports of asOf so the first reader after a
// posting hits the cache.
func (s *Service) Warm(ctx context.Context, companyID int64, asOf time.Time) error {
	start := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	if _, err := s.BalanceSheet(ctx, companyID, end); err != nil {
		return err
	}
	if _, err := s.IncomeStatement(ctx, companyID, start, end); err != nil {
		return err
	}
	if _, err := s.CashFlow(ctx, companyID, start, end); err != nil {
		return err
	}
	_, err := s.TrialBalance(ctx, companyID, start, end)
	return err
}

// balances loads the chart and joins it with sums over both ranges. A zero
// opening range skips the opening query.
func (s *Service) balances(ctx context.Context, companyID int64, opening, moved journals.Range) ([]AccountBalance, error) {
	chart, err := s.chart.ListAccounts(ctx, companyID, nil)
	if err != nil {
		return nil, err
	}
	var before []journals.AccountSum
	if !opening.To.IsZero() {
		if before, err = s.ledger.Sums(ctx, companyID, opening); err != nil {
			return nil, err
		}
	}
	during, err := s.ledger.Sums(ctx, companyID, moved)
	if err != nil {
		return nil, err
	}
	return Balances(chart, before, during), nil
}

type fetched[T any] struct {
	view ViewModel[T]
	hit  bool
}

// fetch serves a report through the cache, coalescing identical concurrent
// builds. The mapping version is part of the key so a new mapping set
// invalidates reports built with the old one.
func fetch[T any](ctx context.Context, s *Service, companyID int64, report string, params []string, build func(context.Context, mappings.Set) (T, error)) (ViewModel[T], error) {
	set, err := s.mappings.Current(ctx, companyID)
	if err != nil {
		return ViewModel[T]{}, err
	}
	load := func(ctx context.Context) (any, error) {
		data, err := build(ctx, set)
		if err != nil {
			return nil, err
		}
		return ViewModel[T]{CompanyID: companyID, Report: report, MappingVersion: set.Version, Data: data}, nil
	}

	parts := append([]string{report}, params...)
	parts = append(parts, fmt.Sprintf("m%d", set.Version))
	key, err := s.cache.BuildKey(ctx, companyID, parts...)
	if err != nil {
		s.logger.WarnContext(ctx, "report cache unavailable", slog.String("report", report), slog.Any("error", err))
		out, err := load(ctx)
		if err != nil {
			return ViewModel[T]{}, err
		}
		s.served(report, false)
		return out.(ViewModel[T]), nil
	}

	ch := s.flight.DoChan(key, func() (any, error) {
		var view ViewModel[T]
		hit, err := s.cache.FetchJSON(ctx, key, &view, load)
		if err != nil {
			return nil, err
		}
		return fetched[T]{view: view, hit: hit}, nil
	})
	select {
	case <-ctx.Done():
		return ViewModel[T]{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return ViewModel[T]{}, res.Err
		}
		out := res.Val.(fetched[T])
		out.view.Cached = out.hit
		s.served(report, out.view.Cached)
		return out.view, nil
	}
}

func (s *Service) served(report string, cached bool) {
	if s.observer != nil {
		s.observer.ReportServed(report, cached)
	}
}

func checkPeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return base.Invalidf("reports: start and end required")
	}
	if end.Before(start) {
		return base.Invalidf("reports: end %s before start %s", end.Format(dateLayout), start.Format(dateLayout))
	}
	return nil
}

func period(start, end time.Time) []string {
	return []string{start.Format(dateLayout), end.Format(dateLayout)}
}

func dayBefore(t time.Time) time.Time {
	return t.AddDate(0, 0, -1)
}

// cashScope resolves the configured cash codes and all their descendants.
func cashScope(chart []accounts.Account, codes []string) []int64 {
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	seen := map[int64]bool{}
	var ids []int64
	for _, acc := range chart {
		if !want[acc.Code] {
			continue
		}
		for _, id := range accounts.SubtreeIDs(chart, acc.ID) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
