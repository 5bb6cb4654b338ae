package journals

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log base.AuditLog) error
}

type Service struct {
	repo     Repository
	accounts AccountReader
	audit    AuditPort
	listener base.LedgerListener
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, accounts AccountReader, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, accounts: accounts, audit: audit, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithListener registers the callback notified after posted data commits.
func (s *Service) WithListener(l base.LedgerListener) {
	s.listener = l
}

// Create persists a manual entry as Draft, or posted when in.Post is set.
func (s *Service) Create(ctx context.Context, companyID int64, in CreateInput) (Entry, error) {
	if in.SourceType == "" {
		in.SourceType = SourceManual
	}
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := s.insert(ctx, tx, companyID, in, nil)
		if err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	action := "journal.create"
	if entry.Posted {
		action = "journal.post"
		s.changed(ctx, companyID)
	}
	s.record(ctx, action, entry)
	return entry, nil
}

// Record validates and posts a system-generated entry inside the caller's
// transaction. Any validation failure is an invariant breach: the caller
// derived the lines and they should balance by construction.
func (s *Service) Record(ctx context.Context, tx TxRepository, companyID int64, in CreateInput) (Entry, error) {
	in.Post = true
	if err := in.Validate(); err != nil {
		s.logger.ErrorContext(ctx, "generated journal rejected",
			slog.Int64("company_id", companyID),
			slog.String("source_type", string(in.SourceType)),
			slog.Any("source_id", in.SourceID),
			slog.Any("error", err))
		return Entry{}, fmt.Errorf("%w: %v", shared.ErrInvariantBreach, err)
	}
	entry, err := s.insert(ctx, tx, companyID, in, nil)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return Entry{}, fmt.Errorf("%w: %v", shared.ErrInvariantBreach, err)
		}
		return Entry{}, err
	}
	return entry, nil
}

// Post moves a Draft entry into the ledger.
func (s *Service) Post(ctx context.Context, companyID, id, actorID int64) (Entry, error) {
	if actorID == 0 {
		return Entry{}, shared.ErrPostedByRequired
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.EntryForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.Posted {
			return shared.ErrAlreadyPosted
		}
		lines := inputLines(current.Lines)
		if err := ValidateLines(lines); err != nil {
			return err
		}
		if _, err := s.lockAccounts(ctx, tx, companyID, lines); err != nil {
			return err
		}
		at := s.now()
		if err := tx.MarkEntryPosted(ctx, companyID, id, actorID, at); err != nil {
			return err
		}
		if err := applyTotals(ctx, tx, companyID, lines); err != nil {
			return err
		}
		current.Posted = true
		current.PostedBy = actorID
		current.PostedAt = &at
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.changed(ctx, companyID)
	s.record(ctx, "journal.post", entry)
	return entry, nil
}

// Reverse posts a REVERSAL entry swapping the sides of every original line.
func (s *Service) Reverse(ctx context.Context, companyID, id int64, in ReverseInput) (Entry, error) {
	if in.ActorID == 0 {
		return Entry{}, shared.ErrPostedByRequired
	}
	var reversal Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.EntryForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if !original.Posted {
			return shared.ErrNotPosted
		}
		existing, err := tx.ReversalOf(ctx, companyID, id)
		if err != nil {
			return err
		}
		if existing != 0 {
			return fmt.Errorf("%w: by entry %d", shared.ErrAlreadyReversed, existing)
		}
		date := original.Date
		if !in.Date.IsZero() {
			date = in.Date.Time
		}
		input := CreateInput{
			Date:        base.NewDate(date),
			Description: defaultReversalMemo(original, in.Memo),
			SourceType:  SourceReversal,
			SourceID:    &original.ID,
			Post:        true,
			PostedBy:    in.ActorID,
			Lines:       reverseLines(original.Lines, in.Memo),
		}
		if err := input.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvariantBreach, err)
		}
		inserted, err := s.insert(ctx, tx, companyID, input, &original.ID)
		if err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.changed(ctx, companyID)
	s.record(ctx, "journal.reverse", reversal)
	return reversal, nil
}

func defaultReversalMemo(original Entry, memo string) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of entry %d", original.ID)
}

func (s *Service) insert(ctx context.Context, tx TxRepository, companyID int64, in CreateInput, reversalOf *int64) (Entry, error) {
	if _, err := s.lockAccounts(ctx, tx, companyID, in.Lines); err != nil {
		return Entry{}, err
	}
	debit, credit := totals(in.Lines)
	now := s.now()
	entry := Entry{
		CompanyID:   companyID,
		Date:        in.Date.Time,
		Description: in.Description,
		SourceType:  in.SourceType,
		SourceID:    in.SourceID,
		Posted:      in.Post,
		TotalDebit:  base.Money(debit),
		TotalCredit: base.Money(credit),
		ReversalOf:  reversalOf,
		CreatedAt:   now,
		Lines:       make([]Line, 0, len(in.Lines)),
	}
	if in.Post {
		entry.PostedBy = in.PostedBy
		entry.PostedAt = &now
	}
	for _, line := range in.Lines {
		entry.Lines = append(entry.Lines, Line{AccountID: line.AccountID, Debit: base.Money(line.Debit), Credit: base.Money(line.Credit), Memo: line.Memo})
	}
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	if in.Post {
		if err := applyTotals(ctx, tx, companyID, in.Lines); err != nil {
			return Entry{}, err
		}
	}
	return inserted, nil
}

// lockAccounts locks every referenced account and fails on any missing one.
func (s *Service) lockAccounts(ctx context.Context, tx TxRepository, companyID int64, lines []LineInput) (map[int64]accounts.Account, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.AccountID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	locked, err := tx.LockAccounts(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, fmt.Errorf("%w: id %d", shared.ErrAccountNotFound, id)
		}
	}
	return locked, nil
}

// applyTotals is the only code path that mutates account totals.
func applyTotals(ctx context.Context, tx TxRepository, companyID int64, lines []LineInput) error {
	type pair struct{ debit, credit decimal.Decimal }
	sums := make(map[int64]pair, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		p, ok := sums[line.AccountID]
		if !ok {
			ids = append(ids, line.AccountID)
		}
		p.debit = p.debit.Add(base.Money(line.Debit))
		p.credit = p.credit.Add(base.Money(line.Credit))
		sums[line.AccountID] = p
	}
	slices.Sort(ids)
	for _, id := range ids {
		p := sums[id]
		if err := tx.AddAccountTotals(ctx, companyID, id, p.debit, p.credit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, companyID, id)
}

// ListResult is a page of entry headers.
type ListResult struct {
	Items      []Entry         `json:"items"`
	Total      int             `json:"total"`
	Skip       int             `json:"skip"`
	Limit      int             `json:"limit"`
	Pagination base.Pagination `json:"pagination"`
}

// List returns entry headers newest first.
func (s *Service) List(ctx context.Context, companyID int64, window base.Window) (ListResult, error) {
	items, total, err := s.repo.ListEntries(ctx, companyID, window)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []Entry{}
	}
	return ListResult{Items: items, Total: total, Skip: window.Skip, Limit: window.Limit, Pagination: window.Paginate(total)}, nil
}

// AccountLedger returns one page of an account's posted lines with running
// balances. Rows before skip are folded into the opening balance, so a row's
// balance does not depend on the page it is read from.
func (s *Service) AccountLedger(ctx context.Context, companyID, accountID int64, window base.Window) (LedgerPage, error) {
	account, err := s.accounts.GetAccount(ctx, companyID, accountID)
	if err != nil {
		return LedgerPage{}, err
	}
	w, err := s.repo.LedgerWindow(ctx, companyID, accountID, window.Skip, window.Limit)
	if err != nil {
		return LedgerPage{}, err
	}
	opening := account.Signed(w.OpeningDebit, w.OpeningCredit)
	running := opening
	for i := range w.Rows {
		running = running.Add(account.Signed(w.Rows[i].Debit, w.Rows[i].Credit))
		w.Rows[i].Balance = running
	}
	if w.Rows == nil {
		w.Rows = []LedgerRow{}
	}
	return LedgerPage{
		AccountID: account.ID,
		Code:      account.Code,
		Name:      account.Name,
		Opening:   opening,
		Rows:      w.Rows,
		Total:     w.Total,
		Skip:      window.Skip,
		Limit:     window.Limit,
	}, nil
}

// LedgerSeq lazily yields every ledger row of an account, fetching batch rows
// at a time. Each range over the sequence starts again from the first row.
func (s *Service) LedgerSeq(ctx context.Context, companyID, accountID int64, batch int) iter.Seq2[LedgerRow, error] {
	if batch <= 0 {
		batch = 100
	}
	return func(yield func(LedgerRow, error) bool) {
		account, err := s.accounts.GetAccount(ctx, companyID, accountID)
		if err != nil {
			yield(LedgerRow{}, err)
			return
		}
		running := decimal.Zero
		for skip := 0; ; skip += batch {
			w, err := s.repo.LedgerWindow(ctx, companyID, accountID, skip, batch)
			if err != nil {
				yield(LedgerRow{}, err)
				return
			}
			for _, row := range w.Rows {
				running = running.Add(account.Signed(row.Debit, row.Credit))
				row.Balance = running
				if !yield(row, nil) {
					return
				}
			}
			if len(w.Rows) < batch {
				return
			}
		}
	}
}

// Verify recomputes every account's totals from posted lines and reports
// the accounts whose maintained totals drifted.
func (s *Service) Verify(ctx context.Context, companyID int64) ([]Drift, error) {
	stored, err := s.repo.StoredTotals(ctx, companyID)
	if err != nil {
		return nil, err
	}
	posted, err := s.repo.Sums(ctx, companyID, Range{})
	if err != nil {
		return nil, err
	}
	recomputed := make(map[int64]AccountSum, len(posted))
	for _, p := range posted {
		recomputed[p.AccountID] = p
	}
	var drifts []Drift
	for _, st := range stored {
		p := recomputed[st.AccountID]
		if base.MoneyEqual(st.Debit, p.Debit) && base.MoneyEqual(st.Credit, p.Credit) {
			continue
		}
		drifts = append(drifts, Drift{
			AccountID:    st.AccountID,
			StoredDebit:  st.Debit,
			StoredCredit: st.Credit,
			PostedDebit:  p.Debit,
			PostedCredit: p.Credit,
		})
	}
	return drifts, nil
}

// ResolveCodes maps account codes to tenant accounts inside a transaction.
// A missing code yields ErrMissingAccount naming it.
func ResolveCodes(ctx context.Context, tx TxRepository, companyID int64, codes ...string) (map[string]accounts.Account, error) {
	unique := slices.Clone(codes)
	slices.Sort(unique)
	unique = slices.Compact(unique)
	found, err := tx.AccountsByCode(ctx, companyID, unique)
	if err != nil {
		return nil, err
	}
	for _, code := range unique {
		if _, ok := found[code]; !ok {
			return nil, fmt.Errorf("%w: code %s", shared.ErrMissingAccount, code)
		}
	}
	return found, nil
}

func (s *Service) changed(ctx context.Context, companyID int64) {
	if s.listener != nil {
		s.listener.LedgerChanged(ctx, companyID)
	}
}

func (s *Service) record(ctx context.Context, action string, entry Entry) {
	if s.audit == nil {
		return
	}
	tenant, _ := base.TenantFromContext(ctx)
	if err := s.audit.Record(ctx, base.AuditLog{
		CompanyID: entry.CompanyID,
		ActorID:   tenant.ActorID,
		Action:    action,
		Entity:    "journal_entry",
		EntityID:  fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"source_type": entry.SourceType,
			"total":       entry.TotalDebit.StringFixed(2),
		},
		At: s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
