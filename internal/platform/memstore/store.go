// Package memstore keeps every ledger table in process memory. It backs the
// test mode of the server and the package tests; transactions are serialised
// by one mutex and roll back by restoring a snapshot.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/bank"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/settlement"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type itemKey struct {
	companyID int64
	productID int64
}

// state is copy-on-write: stored slices are never mutated in place, so a
// shallow clone of every map is a consistent snapshot.
type state struct {
	nextID          map[string]int64
	accounts        map[int64]accounts.Account
	entries         map[int64]journals.Entry
	mappings        map[int64][]mappings.Set
	items           map[itemKey]inventory.Item
	movements       []inventory.Transaction
	partners        map[int64]partners.Partner
	orders          map[int64]orders.Order
	settlements     map[int64]settlement.Settlement
	bankAccounts    map[int64]bank.Account
	statements      map[int64]bank.Statement
	reconciliations map[int64]bank.Reconciliation
}

func newState() *state {
	return &state{
		nextID:          map[string]int64{},
		accounts:        map[int64]accounts.Account{},
		entries:         map[int64]journals.Entry{},
		mappings:        map[int64][]mappings.Set{},
		items:           map[itemKey]inventory.Item{},
		partners:        map[int64]partners.Partner{},
		orders:          map[int64]orders.Order{},
		settlements:     map[int64]settlement.Settlement{},
		bankAccounts:    map[int64]bank.Account{},
		statements:      map[int64]bank.Statement{},
		reconciliations: map[int64]bank.Reconciliation{},
	}
}

func (s *state) clone() *state {
	return &state{
		nextID:          maps.Clone(s.nextID),
		accounts:        maps.Clone(s.accounts),
		entries:         maps.Clone(s.entries),
		mappings:        maps.Clone(s.mappings),
		items:           maps.Clone(s.items),
		movements:       slices.Clone(s.movements),
		partners:        maps.Clone(s.partners),
		orders:          maps.Clone(s.orders),
		settlements:     maps.Clone(s.settlements),
		bankAccounts:    maps.Clone(s.bankAccounts),
		statements:      maps.Clone(s.statements),
		reconciliations: maps.Clone(s.reconciliations),
	}
}

func (s *state) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

// Store is the in-memory backend. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// read runs fn against committed state.
func (s *Store) read(fn func(*state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// write runs fn as one transaction and restores the snapshot on error.
func (s *Store) write(ctx context.Context, fn func(*tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&tx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// tx implements every package's transactional repository over one state.
type tx struct {
	st *state
}

var (
	_ accounts.TxRepository   = (*tx)(nil)
	_ journals.TxRepository   = (*tx)(nil)
	_ inventory.TxRepository  = (*tx)(nil)
	_ partners.TxRepository   = (*tx)(nil)
	_ orders.TxRepository     = (*tx)(nil)
	_ settlement.TxRepository = (*tx)(nil)
)

func page[T any](in []T, w shared.Window) []T {
	if w.Skip >= len(in) {
		return nil
	}
	in = in[w.Skip:]
	if w.Limit > 0 && w.Limit < len(in) {
		in = in[:w.Limit]
	}
	return in
}

// Companies lists every tenant that owns at least one account.
func (s *Store) Companies(context.Context) ([]int64, error) {
	var out []int64
	s.read(func(st *state) {
		seen := map[int64]bool{}
		for _, a := range st.accounts {
			if !seen[a.CompanyID] {
				seen[a.CompanyID] = true
				out = append(out, a.CompanyID)
			}
		}
	})
	slices.Sort(out)
	return out, nil
}
