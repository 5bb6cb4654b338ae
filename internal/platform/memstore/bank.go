package memstore

import (
	"cmp"
	"context"
	"slices"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/bank"
)

type bankRepo struct{ s *Store }

var _ bank.Repository = bankRepo{}

// Bank returns the bank account, statement and reconciliation repository.
func (s *Store) Bank() bank.Repository { return bankRepo{s} }

func (st *state) bankAccount(companyID, id int64) (bank.Account, error) {
	a, ok := st.bankAccounts[id]
	if !ok || a.CompanyID != companyID {
		return bank.Account{}, bank.ErrBankAccountNotFound
	}
	return a, nil
}

func (st *state) accountNumberTaken(a bank.Account) bool {
	for _, other := range st.bankAccounts {
		if other.ID != a.ID && other.CompanyID == a.CompanyID && other.AccountNumber == a.AccountNumber {
			return true
		}
	}
	return false
}

func (st *state) statementReconciled(id int64) bool {
	for _, rc := range st.reconciliations {
		if rc.StatementID == id {
			return true
		}
	}
	return false
}

func (st *state) statement(companyID, id int64) (bank.Statement, error) {
	s, ok := st.statements[id]
	if !ok || s.CompanyID != companyID {
		return bank.Statement{}, bank.ErrStatementNotFound
	}
	s.Reconciled = st.statementReconciled(id)
	return s, nil
}

func (r bankRepo) GetBankAccount(_ context.Context, companyID, id int64) (bank.Account, error) {
	var (
		a   bank.Account
		err error
	)
	r.s.read(func(st *state) { a, err = st.bankAccount(companyID, id) })
	return a, err
}

func (r bankRepo) ListBankAccounts(_ context.Context, companyID int64) ([]bank.Account, error) {
	var out []bank.Account
	r.s.read(func(st *state) {
		for _, a := range st.bankAccounts {
			if a.CompanyID == companyID {
				out = append(out, a)
			}
		}
	})
	slices.SortFunc(out, func(a, b bank.Account) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r bankRepo) InsertBankAccount(ctx context.Context, a bank.Account) (bank.Account, error) {
	err := r.s.write(ctx, func(t *tx) error {
		if t.st.accountNumberTaken(a) {
			return bank.ErrDuplicateBankAccount
		}
		a.ID = t.st.id("bank_accounts")
		a.UpdatedAt = a.CreatedAt
		t.st.bankAccounts[a.ID] = a
		return nil
	})
	if err != nil {
		return bank.Account{}, err
	}
	return a, nil
}

func (r bankRepo) UpdateBankAccount(ctx context.Context, a bank.Account) error {
	return r.s.write(ctx, func(t *tx) error {
		current, err := t.st.bankAccount(a.CompanyID, a.ID)
		if err != nil {
			return err
		}
		if t.st.accountNumberTaken(a) {
			return bank.ErrDuplicateBankAccount
		}
		a.CreatedAt = current.CreatedAt
		t.st.bankAccounts[a.ID] = a
		return nil
	})
}

func (r bankRepo) DeleteBankAccount(ctx context.Context, companyID, id int64) error {
	return r.s.write(ctx, func(t *tx) error {
		if _, err := t.st.bankAccount(companyID, id); err != nil {
			return err
		}
		delete(t.st.bankAccounts, id)
		return nil
	})
}

func (r bankRepo) CountStatements(_ context.Context, companyID, bankAccountID int64) (int, error) {
	n := 0
	r.s.read(func(st *state) {
		for _, s := range st.statements {
			if s.CompanyID == companyID && s.BankAccountID == bankAccountID {
				n++
			}
		}
	})
	return n, nil
}

func (r bankRepo) GetStatement(_ context.Context, companyID, id int64) (bank.Statement, error) {
	var (
		s   bank.Statement
		err error
	)
	r.s.read(func(st *state) { s, err = st.statement(companyID, id) })
	return s, err
}

func (r bankRepo) ListStatements(_ context.Context, companyID, bankAccountID int64, rg journals.Range) ([]bank.Statement, error) {
	var out []bank.Statement
	r.s.read(func(st *state) {
		for id, s := range st.statements {
			if s.CompanyID != companyID || s.BankAccountID != bankAccountID || !rg.Contains(s.Date) {
				continue
			}
			s.Reconciled = st.statementReconciled(id)
			out = append(out, s)
		}
	})
	slices.SortFunc(out, func(a, b bank.Statement) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r bankRepo) InsertStatement(ctx context.Context, s bank.Statement) (bank.Statement, error) {
	err := r.s.write(ctx, func(t *tx) error {
		s.ID = t.st.id("bank_statements")
		t.st.statements[s.ID] = s
		return nil
	})
	return s, err
}

func (r bankRepo) UpdateStatement(ctx context.Context, s bank.Statement) error {
	return r.s.write(ctx, func(t *tx) error {
		current, err := t.st.statement(s.CompanyID, s.ID)
		if err != nil || current.Reconciled {
			return bank.ErrStatementReconciled
		}
		s.BankAccountID, s.CreatedAt, s.Reconciled = current.BankAccountID, current.CreatedAt, false
		t.st.statements[s.ID] = s
		return nil
	})
}

func (r bankRepo) DeleteStatement(ctx context.Context, companyID, id int64) error {
	return r.s.write(ctx, func(t *tx) error {
		current, err := t.st.statement(companyID, id)
		if err != nil || current.Reconciled {
			return bank.ErrStatementReconciled
		}
		delete(t.st.statements, id)
		return nil
	})
}

func (r bankRepo) GetReconciliation(_ context.Context, companyID, id int64) (bank.Reconciliation, error) {
	var (
		rc bank.Reconciliation
		ok bool
	)
	r.s.read(func(st *state) { rc, ok = st.reconciliations[id] })
	if !ok || rc.CompanyID != companyID {
		return bank.Reconciliation{}, bank.ErrReconciliationNotFound
	}
	return rc, nil
}

func (r bankRepo) ReconciliationsForStatements(_ context.Context, companyID int64, statementIDs []int64) ([]bank.Reconciliation, error) {
	var out []bank.Reconciliation
	r.s.read(func(st *state) {
		for _, rc := range st.reconciliations {
			if rc.CompanyID == companyID && slices.Contains(statementIDs, rc.StatementID) {
				out = append(out, rc)
			}
		}
	})
	slices.SortFunc(out, func(a, b bank.Reconciliation) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r bankRepo) ReconciledJournals(_ context.Context, companyID int64, journalIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	r.s.read(func(st *state) {
		for _, rc := range st.reconciliations {
			if rc.CompanyID == companyID && slices.Contains(journalIDs, rc.JournalID) {
				out[rc.JournalID] = true
			}
		}
	})
	return out, nil
}

func (r bankRepo) InsertReconciliations(ctx context.Context, recs []bank.Reconciliation) ([]bank.Reconciliation, error) {
	out := make([]bank.Reconciliation, len(recs))
	err := r.s.write(ctx, func(t *tx) error {
		for i, rc := range recs {
			for _, other := range t.st.reconciliations {
				if other.StatementID == rc.StatementID || (other.CompanyID == rc.CompanyID && other.JournalID == rc.JournalID) {
					return bank.ErrAlreadyReconciled
				}
			}
			rc.ID = t.st.id("reconciliations")
			t.st.reconciliations[rc.ID] = rc
			out[i] = rc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r bankRepo) DeleteReconciliation(ctx context.Context, companyID, id int64) error {
	return r.s.write(ctx, func(t *tx) error {
		rc, ok := t.st.reconciliations[id]
		if !ok || rc.CompanyID != companyID {
			return bank.ErrReconciliationNotFound
		}
		delete(t.st.reconciliations, id)
		return nil
	})
}
