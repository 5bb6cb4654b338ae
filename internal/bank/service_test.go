package bank_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/bank"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
)

var february = journals.Range{From: lt.Day(2024, 2, 1), To: lt.Day(2024, 2, 29)}

func openAccount(t *testing.T, env *lt.Env, number, initial string) bank.Account {
	t.Helper()
	a, err := env.Bank.CreateAccount(env.Context(), lt.CompanyID, bank.AccountInput{
		AccountNumber: number, BankName: "First Bank", InitialBalance: lt.Dec(initial),
	})
	require.NoError(t, err)
	return a
}

func statement(t *testing.T, env *lt.Env, accountID int64, d int, amount string, dir bank.Direction, balance *decimal.Decimal) bank.Statement {
	t.Helper()
	st, err := env.Bank.CreateStatement(env.Context(), lt.CompanyID, accountID, bank.StatementInput{
		Date: shared.NewDate(lt.Day(2024, 2, d)), Amount: lt.Dec(amount), Type: dir, Balance: balance,
	})
	require.NoError(t, err)
	return st
}

func TestAccountLifecycle(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()

	a := openAccount(t, env, "6222-0001", "0")
	require.Equal(t, bank.DefaultCurrency, a.Currency)

	_, err := env.Bank.CreateAccount(ctx, lt.CompanyID, bank.AccountInput{AccountNumber: "6222-0001", BankName: "Other"})
	require.ErrorIs(t, err, bank.ErrDuplicateBankAccount)

	_, err = env.Bank.CreateAccount(ctx, lt.CompanyID, bank.AccountInput{AccountNumber: "6222-0002", BankName: "Other", Currency: "EURO"})
	require.ErrorIs(t, err, bank.ErrInvalidCurrency)

	updated, err := env.Bank.UpdateAccount(ctx, lt.CompanyID, a.ID, bank.AccountInput{AccountNumber: "6222-0001", BankName: "First Bank", Currency: " usd "})
	require.NoError(t, err)
	require.Equal(t, "USD", updated.Currency)

	statement(t, env, a.ID, 1, "10.00", bank.Credit, nil)
	require.ErrorIs(t, env.Bank.DeleteAccount(ctx, lt.CompanyID, a.ID), bank.ErrHasStatements)

	empty := openAccount(t, env, "6222-0003", "0")
	require.NoError(t, env.Bank.DeleteAccount(ctx, lt.CompanyID, empty.ID))
	_, err = env.Bank.GetAccount(ctx, lt.CompanyID, empty.ID)
	require.ErrorIs(t, err, bank.ErrBankAccountNotFound)
}

func TestStatementValidation(t *testing.T) {
	env := lt.New(t)
	a := openAccount(t, env, "6222-0001", "0")

	_, err := env.Bank.CreateStatement(env.Context(), lt.CompanyID, a.ID, bank.StatementInput{
		Date: shared.NewDate(lt.Day(2024, 2, 1)), Amount: lt.Dec("0"), Type: bank.Credit,
	})
	require.ErrorIs(t, err, bank.ErrInvalidAmount)

	_, err = env.Bank.CreateStatement(env.Context(), lt.CompanyID, a.ID, bank.StatementInput{
		Date: shared.NewDate(lt.Day(2024, 2, 1)), Amount: lt.Dec("1"), Type: "Sideways",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = env.Bank.CreateStatement(env.Context(), lt.CompanyID, 999, bank.StatementInput{
		Date: shared.NewDate(lt.Day(2024, 2, 1)), Amount: lt.Dec("1"), Type: bank.Credit,
	})
	require.ErrorIs(t, err, bank.ErrBankAccountNotFound)
}

func TestAutoMatchPairsDepositWithStatement(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	a := openAccount(t, env, "6222-0001", "0")
	deposit := env.Post(t, lt.Day(2024, 2, 1), "1002", "6001", "200.00")
	st := statement(t, env, a.ID, 1, "200.00", bank.Credit, nil)

	res, err := env.Bank.AutoMatch(ctx, lt.CompanyID, a.ID, february, lt.ActorID)
	require.NoError(t, err)
	require.Equal(t, 1, res.MatchedCount)
	require.NotEmpty(t, res.RunID)
	rc := res.Reconciliations[0]
	require.Equal(t, st.ID, rc.StatementID)
	require.Equal(t, deposit.ID, rc.JournalID)
	require.True(t, rc.Auto)
	require.Equal(t, bank.AutoMatchRemark, rc.Remark)
	require.Equal(t, res.RunID, rc.RunID)

	again, err := env.Bank.AutoMatch(ctx, lt.CompanyID, a.ID, february, lt.ActorID)
	require.NoError(t, err)
	require.Zero(t, again.MatchedCount)

	view, err := env.Bank.View(ctx, lt.CompanyID, a.ID, february)
	require.NoError(t, err)
	require.Len(t, view.Matched, 1)
	require.Empty(t, view.UnmatchedStatements)
	require.Empty(t, view.UnmatchedJournals)
	require.Equal(t, deposit.ID, view.Matched[0].Journal.EntryID)

	statements, err := env.Bank.ListStatements(ctx, lt.CompanyID, a.ID, february)
	require.NoError(t, err)
	require.True(t, statements[0].Reconciled)
	require.Contains(t, env.Audit.Actions(), "bank.automatch")
}

func TestAutoMatchSkipsWrongDirectionAndFarDates(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	a := openAccount(t, env, "6222-0001", "0")
	env.Post(t, lt.Day(2024, 2, 1), "2202", "1002", "50.00")
	env.Post(t, lt.Day(2024, 2, 1), "1002", "6001", "70.00")
	statement(t, env, a.ID, 1, "50.00", bank.Credit, nil)
	statement(t, env, a.ID, 20, "70.00", bank.Credit, nil)

	res, err := env.Bank.AutoMatch(ctx, lt.CompanyID, a.ID, february, lt.ActorID)
	require.NoError(t, err)
	require.Zero(t, res.MatchedCount)

	view, err := env.Bank.View(ctx, lt.CompanyID, a.ID, february)
	require.NoError(t, err)
	require.Len(t, view.UnmatchedStatements, 2)
	require.Len(t, view.UnmatchedJournals, 2)
	require.Equal(t, bank.Debit, view.UnmatchedJournals[0].Direction)
}

func TestCashScopeIncludesDescendants(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	parent := env.Account(t, "1002")
	sub, err := env.Accounts.Create(ctx, lt.CompanyID, accounts.CreateInput{
		Code: "100201", Name: "Bank deposits - First Bank", Type: accounts.AccountTypeAsset, ParentID: &parent.ID,
	})
	require.NoError(t, err)

	a, err := env.Bank.CreateAccount(ctx, lt.CompanyID, bank.AccountInput{AccountNumber: "6222-0009", BankName: "First Bank", LedgerAccountID: &parent.ID})
	require.NoError(t, err)
	env.Post(t, lt.Day(2024, 2, 2), "100201", "6001", "30.00")
	env.Post(t, lt.Day(2024, 2, 2), "1001", "6001", "99.00")

	view, err := env.Bank.View(ctx, lt.CompanyID, a.ID, february)
	require.NoError(t, err)
	require.Len(t, view.UnmatchedJournals, 1)
	require.True(t, view.UnmatchedJournals[0].Amount.Equal(lt.Dec("30.00")))
	require.NotZero(t, sub.ID)
}

func TestManualReconciliationGuards(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	a := openAccount(t, env, "6222-0001", "0")
	entry := env.Post(t, lt.Day(2024, 2, 1), "1002", "6001", "200.00")
	first := statement(t, env, a.ID, 1, "200.00", bank.Credit, nil)
	second := statement(t, env, a.ID, 2, "200.00", bank.Credit, nil)

	draft, err := env.Journals.Create(ctx, lt.CompanyID, journals.CreateInput{
		Date: shared.NewDate(lt.Day(2024, 2, 2)),
		Lines: []journals.LineInput{
			{AccountID: env.Account(t, "1002").ID, Debit: lt.Dec("200.00")},
			{AccountID: env.Account(t, "6001").ID, Credit: lt.Dec("200.00")},
		},
	})
	require.NoError(t, err)
	_, err = env.Bank.CreateReconciliation(ctx, lt.CompanyID, bank.ReconciliationInput{StatementID: second.ID, JournalID: draft.ID, ActorID: lt.ActorID})
	require.ErrorIs(t, err, bank.ErrJournalNotPosted)

	rc, err := env.Bank.CreateReconciliation(ctx, lt.CompanyID, bank.ReconciliationInput{StatementID: first.ID, JournalID: entry.ID, Remark: " wire ", ActorID: lt.ActorID})
	require.NoError(t, err)
	require.False(t, rc.Auto)
	require.Equal(t, "wire", rc.Remark)
	require.True(t, rc.MatchedAmount.Equal(lt.Dec("200.00")))

	_, err = env.Bank.CreateReconciliation(ctx, lt.CompanyID, bank.ReconciliationInput{StatementID: first.ID, JournalID: entry.ID, ActorID: lt.ActorID})
	require.ErrorIs(t, err, bank.ErrAlreadyReconciled)
	_, err = env.Bank.CreateReconciliation(ctx, lt.CompanyID, bank.ReconciliationInput{StatementID: second.ID, JournalID: entry.ID, ActorID: lt.ActorID})
	require.ErrorIs(t, err, bank.ErrAlreadyReconciled)

	require.ErrorIs(t, env.Bank.DeleteStatement(ctx, lt.CompanyID, first.ID), bank.ErrStatementReconciled)
	_, err = env.Bank.UpdateStatement(ctx, lt.CompanyID, first.ID, bank.StatementInput{
		Date: shared.NewDate(lt.Day(2024, 2, 1)), Amount: lt.Dec("201.00"), Type: bank.Credit,
	})
	require.ErrorIs(t, err, bank.ErrStatementReconciled)

	require.NoError(t, env.Bank.DeleteReconciliation(ctx, lt.CompanyID, rc.ID, lt.ActorID))
	require.ErrorIs(t, env.Bank.DeleteReconciliation(ctx, lt.CompanyID, rc.ID, lt.ActorID), bank.ErrReconciliationNotFound)
	require.NoError(t, env.Bank.DeleteStatement(ctx, lt.CompanyID, first.ID))
}

func TestManualReconciliationStaysOnTheAccount(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	a := openAccount(t, env, "6222-0001", "0")
	other := openAccount(t, env, "6222-0002", "0")
	st := statement(t, env, a.ID, 1, "200.00", bank.Credit, nil)

	offBank := env.Post(t, lt.Day(2024, 2, 1), "1001", "6001", "200.00")
	_, err := env.Bank.CreateReconciliation(ctx, lt.CompanyID, bank.ReconciliationInput{StatementID: st.ID, JournalID: offBank.ID, ActorID: lt.ActorID})
	require.ErrorIs(t, err, bank.ErrJournalOffAccount)
	require.Equal(t, "JOURNAL_OFF_ACCOUNT", shared.CodeOf(err))

	transfer, err := env.Journals.Create(ctx, lt.CompanyID, journals.CreateInput{
		Date: shared.NewDate(lt.Day(2024, 2, 1)), Post: true, PostedBy: lt.ActorID,
		Lines: []journals.LineInput{
			{AccountID: env.Account(t, "1002").ID, Debit: lt.Dec("50.00")},
			{AccountID: env.Account(t, "1002").ID, Credit: lt.Dec("50.00")},
		},
	})
	require.NoError(t, err)
	_, err = env.Bank.CreateReconciliation(ctx, lt.CompanyID, bank.ReconciliationInput{StatementID: st.ID, JournalID: transfer.ID, ActorID: lt.ActorID})
	require.ErrorIs(t, err, bank.ErrJournalOffAccount, "a round trip through the bank nets to zero")

	deposit := env.Post(t, lt.Day(2024, 2, 1), "1002", "6001", "200.00")
	_, err = env.Bank.CreateReconciliation(ctx, lt.CompanyID, bank.ReconciliationInput{BankAccountID: other.ID, StatementID: st.ID, JournalID: deposit.ID, ActorID: lt.ActorID})
	require.ErrorIs(t, err, bank.ErrStatementOffAccount)

	rc, err := env.Bank.CreateReconciliation(ctx, lt.CompanyID, bank.ReconciliationInput{BankAccountID: a.ID, StatementID: st.ID, JournalID: deposit.ID, ActorID: lt.ActorID})
	require.NoError(t, err)
	require.Equal(t, deposit.ID, rc.JournalID)
}

func TestBalanceReportReconcilesOutstandingItems(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	a := openAccount(t, env, "6222-0001", "0")
	env.Post(t, lt.Day(2024, 2, 1), "1002", "6001", "200.00")
	env.Post(t, lt.Day(2024, 2, 2), "2202", "1002", "80.00")
	statement(t, env, a.ID, 1, "200.00", bank.Credit, nil)
	reported := lt.Dec("185.00")
	statement(t, env, a.ID, 3, "15.00", bank.Debit, &reported)

	_, err := env.Bank.AutoMatch(ctx, lt.CompanyID, a.ID, february, lt.ActorID)
	require.NoError(t, err)

	rep, err := env.Bank.BalanceReport(ctx, lt.CompanyID, a.ID, lt.Day(2024, 2, 29))
	require.NoError(t, err)
	require.True(t, rep.BankBalance.Equal(lt.Dec("185.00")))
	require.True(t, rep.SystemBalance.Equal(lt.Dec("120.00")))
	require.True(t, rep.SystemPaidNotInBank.Equal(lt.Dec("80.00")))
	require.True(t, rep.SystemReceivedNotInBank.IsZero())
	require.True(t, rep.BankPaidNotInSystem.Equal(lt.Dec("15.00")))
	require.True(t, rep.BankReceivedNotInSystem.IsZero())
	require.True(t, rep.AdjustedBankBalance.Equal(lt.Dec("105.00")))
	require.True(t, rep.AdjustedSystemBalance.Equal(lt.Dec("105.00")))
	require.True(t, rep.Balanced)
}

func TestBalanceReportFlagsDifference(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	a := openAccount(t, env, "6222-0001", "10.00")
	env.Post(t, lt.Day(2024, 2, 1), "1002", "6001", "200.00")
	statement(t, env, a.ID, 1, "200.00", bank.Credit, nil)

	rep, err := env.Bank.BalanceReport(ctx, lt.CompanyID, a.ID, lt.Day(2024, 2, 29))
	require.NoError(t, err)
	require.True(t, rep.BankBalance.Equal(lt.Dec("210.00")), "initial balance plus signed statements")
	require.True(t, rep.Difference.Equal(lt.Dec("10.00")))
	require.False(t, rep.Balanced)

	_, err = env.Bank.BalanceReport(ctx, lt.CompanyID, a.ID, lt.Day(2024, 1, 31))
	require.NoError(t, err)
}
