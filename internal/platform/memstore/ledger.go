package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type accountRepo struct{ s *Store }

// Accounts returns the chart of accounts repository.
func (s *Store) Accounts() accounts.Repository { return accountRepo{s} }

func (r accountRepo) GetAccount(_ context.Context, companyID, id int64) (accounts.Account, error) {
	var (
		a   accounts.Account
		err error
	)
	r.s.read(func(st *state) { a, err = st.account(companyID, id) })
	return a, err
}

func (r accountRepo) ListAccounts(_ context.Context, companyID int64, parentID *int64) ([]accounts.Account, error) {
	var out []accounts.Account
	r.s.read(func(st *state) {
		for _, a := range st.accounts {
			if a.CompanyID != companyID {
				continue
			}
			if parentID != nil && (a.ParentID == nil || *a.ParentID != *parentID) {
				continue
			}
			out = append(out, a)
		}
	})
	slices.SortFunc(out, func(a, b accounts.Account) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

func (r accountRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.s.write(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (st *state) account(companyID, id int64) (accounts.Account, error) {
	a, ok := st.accounts[id]
	if !ok || a.CompanyID != companyID {
		return accounts.Account{}, accshared.ErrAccountNotFound
	}
	return a, nil
}

func (t *tx) AccountByID(_ context.Context, companyID, id int64) (accounts.Account, error) {
	return t.st.account(companyID, id)
}

func (t *tx) AccountByCode(_ context.Context, companyID int64, code string) (accounts.Account, error) {
	for _, a := range t.st.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return a, nil
		}
	}
	return accounts.Account{}, accshared.ErrAccountNotFound
}

func (t *tx) InsertAccount(ctx context.Context, a accounts.Account) (accounts.Account, error) {
	if _, err := t.AccountByCode(ctx, a.CompanyID, a.Code); err == nil {
		return accounts.Account{}, accshared.ErrDuplicateCode
	}
	a.ID = t.st.id("accounts")
	a.UpdatedAt = a.CreatedAt
	t.st.accounts[a.ID] = a
	return a, nil
}

func (t *tx) UpdateAccount(_ context.Context, a accounts.Account) error {
	current, err := t.st.account(a.CompanyID, a.ID)
	if err != nil {
		return err
	}
	current.Name, current.Remark, current.UpdatedAt = a.Name, a.Remark, a.UpdatedAt
	t.st.accounts[a.ID] = current
	return nil
}

func (t *tx) DeleteAccount(_ context.Context, companyID, id int64) error {
	if _, err := t.st.account(companyID, id); err != nil {
		return err
	}
	delete(t.st.accounts, id)
	return nil
}

func (t *tx) AccountUsage(_ context.Context, companyID, id int64) (accounts.Usage, error) {
	var u accounts.Usage
	for _, a := range t.st.accounts {
		if a.CompanyID == companyID && a.ParentID != nil && *a.ParentID == id {
			u.Children++
		}
	}
	for _, e := range t.st.entries {
		if e.CompanyID != companyID {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == id {
				u.Postings++
			}
		}
	}
	return u, nil
}

type journalRepo struct{ s *Store }

// Journals returns the journal repository.
func (s *Store) Journals() journals.Repository { return journalRepo{s} }

func cloneEntry(e journals.Entry) journals.Entry {
	e.Lines = slices.Clone(e.Lines)
	return e
}

func (st *state) entry(companyID, id int64) (journals.Entry, error) {
	e, ok := st.entries[id]
	if !ok || e.CompanyID != companyID {
		return journals.Entry{}, accshared.ErrJournalNotFound
	}
	return cloneEntry(e), nil
}

// posted returns the tenant's posted entries ordered by date then id.
func (st *state) posted(companyID int64, r journals.Range) []journals.Entry {
	var out []journals.Entry
	for _, e := range st.entries {
		if e.CompanyID == companyID && e.Posted && r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b journals.Entry) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r journalRepo) GetEntry(_ context.Context, companyID, id int64) (journals.Entry, error) {
	var (
		e   journals.Entry
		err error
	)
	r.s.read(func(st *state) { e, err = st.entry(companyID, id) })
	return e, err
}

func (r journalRepo) ListEntries(_ context.Context, companyID int64, window shared.Window) ([]journals.Entry, int, error) {
	var all []journals.Entry
	r.s.read(func(st *state) {
		for _, e := range st.entries {
			if e.CompanyID == companyID {
				e.Lines = nil
				all = append(all, e)
			}
		}
	})
	slices.SortFunc(all, func(a, b journals.Entry) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(all, window), len(all), nil
}

func (r journalRepo) LedgerWindow(_ context.Context, companyID, accountID int64, skip, limit int) (journals.LedgerWindow, error) {
	var rows []journals.LedgerRow
	r.s.read(func(st *state) {
		for _, e := range st.posted(companyID, journals.Range{}) {
			for _, l := range e.Lines {
				if l.AccountID != accountID {
					continue
				}
				rows = append(rows, journals.LedgerRow{
					EntryID: e.ID, LineID: l.ID, Date: e.Date, Description: e.Description,
					SourceType: e.SourceType, Memo: l.Memo, Debit: l.Debit, Credit: l.Credit,
				})
			}
		}
	})
	w := journals.LedgerWindow{Total: len(rows)}
	for i, row := range rows {
		if i < skip {
			w.OpeningDebit = w.OpeningDebit.Add(row.Debit)
			w.OpeningCredit = w.OpeningCredit.Add(row.Credit)
		}
	}
	w.Rows = page(rows, shared.Window{Skip: skip, Limit: limit})
	return w, nil
}

func (r journalRepo) Movements(_ context.Context, companyID int64, accountIDs []int64, rg journals.Range) ([]journals.Movement, error) {
	var out []journals.Movement
	r.s.read(func(st *state) {
		for _, e := range st.posted(companyID, rg) {
			m := journals.Movement{EntryID: e.ID, Date: e.Date, Description: e.Description, SourceType: e.SourceType, SourceID: e.SourceID}
			hit := false
			for _, l := range e.Lines {
				if slices.Contains(accountIDs, l.AccountID) {
					hit = true
					m.Debit = m.Debit.Add(l.Debit)
					m.Credit = m.Credit.Add(l.Credit)
				}
			}
			if hit {
				out = append(out, m)
			}
		}
	})
	return out, nil
}

func (r journalRepo) Sums(_ context.Context, companyID int64, rg journals.Range) ([]journals.AccountSum, error) {
	sums := map[int64]journals.AccountSum{}
	r.s.read(func(st *state) {
		for _, e := range st.posted(companyID, rg) {
			for _, l := range e.Lines {
				s := sums[l.AccountID]
				s.AccountID = l.AccountID
				s.Debit = s.Debit.Add(l.Debit)
				s.Credit = s.Credit.Add(l.Credit)
				sums[l.AccountID] = s
			}
		}
	})
	return sortedSums(sums), nil
}

func (r journalRepo) StoredTotals(_ context.Context, companyID int64) ([]journals.AccountSum, error) {
	sums := map[int64]journals.AccountSum{}
	r.s.read(func(st *state) {
		for _, a := range st.accounts {
			if a.CompanyID == companyID {
				sums[a.ID] = journals.AccountSum{AccountID: a.ID, Debit: a.DebitTotal, Credit: a.CreditTotal}
			}
		}
	})
	return sortedSums(sums), nil
}

func sortedSums(in map[int64]journals.AccountSum) []journals.AccountSum {
	out := make([]journals.AccountSum, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b journals.AccountSum) int { return cmp.Compare(a.AccountID, b.AccountID) })
	return out
}

func (r journalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.s.write(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (t *tx) LockAccounts(_ context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, err := t.st.account(companyID, id); err == nil {
			out[id] = a
		}
	}
	return out, nil
}

func (t *tx) AccountsByCode(_ context.Context, companyID int64, codes []string) (map[string]accounts.Account, error) {
	out := make(map[string]accounts.Account, len(codes))
	for _, a := range t.st.accounts {
		if a.CompanyID == companyID && slices.Contains(codes, a.Code) {
			out[a.Code] = a
		}
	}
	return out, nil
}

func (t *tx) InsertEntry(ctx context.Context, e journals.Entry) (journals.Entry, error) {
	if e.ReversalOf != nil {
		if existing, _ := t.ReversalOf(ctx, e.CompanyID, *e.ReversalOf); existing != 0 {
			return journals.Entry{}, accshared.ErrAlreadyReversed
		}
	}
	e.ID = t.st.id("journal_entries")
	e.Lines = slices.Clone(e.Lines)
	for i := range e.Lines {
		e.Lines[i].ID = t.st.id("journal_lines")
		e.Lines[i].EntryID = e.ID
	}
	t.st.entries[e.ID] = e
	return cloneEntry(e), nil
}

func (t *tx) EntryForUpdate(_ context.Context, companyID, id int64) (journals.Entry, error) {
	return t.st.entry(companyID, id)
}

func (t *tx) MarkEntryPosted(_ context.Context, companyID, id, postedBy int64, at time.Time) error {
	e, err := t.st.entry(companyID, id)
	if err != nil {
		return err
	}
	if e.Posted {
		return accshared.ErrAlreadyPosted
	}
	e.Posted, e.PostedBy, e.PostedAt = true, postedBy, &at
	t.st.entries[id] = e
	return nil
}

func (t *tx) AddAccountTotals(_ context.Context, companyID, accountID int64, debit, credit decimal.Decimal) error {
	a, err := t.st.account(companyID, accountID)
	if err != nil {
		return err
	}
	a.DebitTotal = a.DebitTotal.Add(debit)
	a.CreditTotal = a.CreditTotal.Add(credit)
	t.st.accounts[accountID] = a
	return nil
}

func (t *tx) ReversalOf(_ context.Context, companyID, id int64) (int64, error) {
	for _, e := range t.st.entries {
		if e.CompanyID == companyID && e.ReversalOf != nil && *e.ReversalOf == id {
			return e.ID, nil
		}
	}
	return 0, nil
}

type mappingRepo struct{ s *Store }

// Mappings returns the versioned account mapping repository.
func (s *Store) Mappings() mappings.Repository { return mappingRepo{s} }

func (r mappingRepo) Latest(_ context.Context, companyID int64) (mappings.Set, error) {
	var (
		set mappings.Set
		err error
	)
	r.s.read(func(st *state) {
		versions := st.mappings[companyID]
		if len(versions) == 0 {
			err = accshared.ErrMappingNotFound
			return
		}
		set = versions[len(versions)-1]
	})
	return set, err
}

func (r mappingRepo) Insert(ctx context.Context, set mappings.Set) (mappings.Set, error) {
	err := r.s.write(ctx, func(t *tx) error {
		versions := t.st.mappings[set.CompanyID]
		set.Version = len(versions) + 1
		t.st.mappings[set.CompanyID] = append(slices.Clone(versions), set)
		return nil
	})
	return set, err
}
