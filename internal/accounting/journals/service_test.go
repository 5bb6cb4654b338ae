package journals_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
)

func TestCreateDraftThenPost(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	cash, capital := env.Account(t, "1001"), env.Account(t, "4001")

	draft, err := env.Journals.Create(ctx, lt.CompanyID, journals.CreateInput{
		Date:        shared.NewDate(lt.Day(2024, 1, 5)),
		Description: "owner contribution",
		Lines: []journals.LineInput{
			{AccountID: cash.ID, Debit: lt.Dec("1000.00")},
			{AccountID: capital.ID, Credit: lt.Dec("1000.00")},
		},
	})
	require.NoError(t, err)
	require.False(t, draft.Posted)
	require.Equal(t, journals.SourceManual, draft.SourceType)
	require.True(t, env.Balance(t, "1001").IsZero(), "drafts leave totals untouched")

	_, err = env.Journals.Post(ctx, lt.CompanyID, draft.ID, 0)
	require.ErrorIs(t, err, accshared.ErrPostedByRequired)

	posted, err := env.Journals.Post(ctx, lt.CompanyID, draft.ID, lt.ActorID)
	require.NoError(t, err)
	require.True(t, posted.Posted)
	require.True(t, env.Balance(t, "1001").Equal(lt.Dec("1000.00")))
	require.True(t, env.Balance(t, "4001").Equal(lt.Dec("1000.00")))

	_, err = env.Journals.Post(ctx, lt.CompanyID, draft.ID, lt.ActorID)
	require.ErrorIs(t, err, accshared.ErrAlreadyPosted)
}

func TestCreateRejectsMalformedLines(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	cash, capital := env.Account(t, "1001"), env.Account(t, "4001")
	date := shared.NewDate(lt.Day(2024, 1, 5))

	cases := []struct {
		name  string
		lines []journals.LineInput
		want  error
	}{
		{"single line", []journals.LineInput{{AccountID: cash.ID, Debit: lt.Dec("1")}}, accshared.ErrTooFewLines},
		{"unbalanced", []journals.LineInput{{AccountID: cash.ID, Debit: lt.Dec("10")}, {AccountID: capital.ID, Credit: lt.Dec("9.98")}}, accshared.ErrUnbalanced},
		{"both sides", []journals.LineInput{{AccountID: cash.ID, Debit: lt.Dec("1"), Credit: lt.Dec("1")}, {AccountID: capital.ID, Credit: lt.Dec("0")}}, accshared.ErrInvalidLine},
		{"three decimals", []journals.LineInput{{AccountID: cash.ID, Debit: lt.Dec("1.005")}, {AccountID: capital.ID, Credit: lt.Dec("1.005")}}, accshared.ErrInvalidLine},
		{"unknown account", []journals.LineInput{{AccountID: 9999, Debit: lt.Dec("1")}, {AccountID: capital.ID, Credit: lt.Dec("1")}}, accshared.ErrAccountNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Journals.Create(ctx, lt.CompanyID, journals.CreateInput{Date: date, Lines: tc.lines})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPrecisionIsCheckedBeforeBalance(t *testing.T) {
	env := lt.New(t)
	_, err := env.Journals.Create(env.Context(), lt.CompanyID, journals.CreateInput{
		Date: shared.NewDate(lt.Day(2024, 1, 5)),
		Lines: []journals.LineInput{
			{AccountID: env.Account(t, "1001").ID, Debit: lt.Dec("10.00")},
			{AccountID: env.Account(t, "4001").ID, Credit: lt.Dec("9.995")},
		},
	})
	require.ErrorIs(t, err, accshared.ErrInvalidLine)
}

func TestReverseSwapsSidesOnce(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	original := env.Post(t, lt.Day(2024, 1, 5), "1001", "4001", "250.00")

	reversal, err := env.Journals.Reverse(ctx, lt.CompanyID, original.ID, journals.ReverseInput{ActorID: lt.ActorID})
	require.NoError(t, err)
	require.Equal(t, journals.SourceReversal, reversal.SourceType)
	require.Equal(t, original.ID, *reversal.ReversalOf)
	require.Equal(t, original.Date, reversal.Date)
	require.True(t, env.Balance(t, "1001").IsZero())
	require.True(t, env.Balance(t, "4001").IsZero())

	_, err = env.Journals.Reverse(ctx, lt.CompanyID, original.ID, journals.ReverseInput{ActorID: lt.ActorID})
	require.ErrorIs(t, err, accshared.ErrAlreadyReversed)
}

func TestReverseRequiresPostedEntry(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	draft, err := env.Journals.Create(ctx, lt.CompanyID, journals.CreateInput{
		Date: shared.NewDate(lt.Day(2024, 1, 5)),
		Lines: []journals.LineInput{
			{AccountID: env.Account(t, "1001").ID, Debit: lt.Dec("5")},
			{AccountID: env.Account(t, "4001").ID, Credit: lt.Dec("5")},
		},
	})
	require.NoError(t, err)

	_, err = env.Journals.Reverse(ctx, lt.CompanyID, draft.ID, journals.ReverseInput{ActorID: lt.ActorID})
	require.ErrorIs(t, err, accshared.ErrNotPosted)

	_, err = env.Journals.Reverse(ctx, lt.CompanyID, 4242, journals.ReverseInput{ActorID: lt.ActorID})
	require.ErrorIs(t, err, accshared.ErrJournalNotFound)
}

func TestRecordTreatsBadGeneratedLinesAsInvariantBreach(t *testing.T) {
	env := lt.New(t)
	cash := env.Account(t, "1001")

	err := env.Store.Journals().WithTx(context.Background(), func(ctx context.Context, tx journals.TxRepository) error {
		_, err := env.Journals.Record(ctx, tx, lt.CompanyID, journals.CreateInput{
			Date:       shared.NewDate(lt.Day(2024, 1, 5)),
			SourceType: journals.SourcePayment,
			PostedBy:   lt.ActorID,
			Lines: []journals.LineInput{
				{AccountID: cash.ID, Debit: lt.Dec("10")},
				{AccountID: cash.ID, Credit: lt.Dec("11")},
			},
		})
		return err
	})
	require.ErrorIs(t, err, accshared.ErrInvariantBreach)
	require.ErrorIs(t, err, shared.ErrInvariant)

	err = env.Store.Journals().WithTx(context.Background(), func(ctx context.Context, tx journals.TxRepository) error {
		_, err := env.Journals.Record(ctx, tx, lt.CompanyID, journals.CreateInput{
			Date:     shared.NewDate(lt.Day(2024, 1, 5)),
			PostedBy: lt.ActorID,
			Lines: []journals.LineInput{
				{AccountID: cash.ID, Debit: lt.Dec("10")},
				{AccountID: 777, Credit: lt.Dec("10")},
			},
		})
		return err
	})
	require.ErrorIs(t, err, accshared.ErrInvariantBreach)
	require.True(t, env.Balance(t, "1001").IsZero(), "the failed transaction rolled back")
}

func TestAccountLedgerBalanceIsPageIndependent(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	cash := env.Account(t, "1001")
	env.Post(t, lt.Day(2024, 1, 1), "1001", "4001", "100.00")
	env.Post(t, lt.Day(2024, 1, 2), "6602", "1001", "30.00")
	env.Post(t, lt.Day(2024, 1, 3), "1001", "6001", "45.50")
	env.Post(t, lt.Day(2024, 1, 4), "6602", "1001", "5.50")

	full, err := env.Journals.AccountLedger(ctx, lt.CompanyID, cash.ID, shared.NewWindow(0, 10, 10))
	require.NoError(t, err)
	require.Equal(t, 4, full.Total)
	require.True(t, full.Opening.IsZero())
	require.True(t, full.Rows[3].Balance.Equal(lt.Dec("110.00")))

	page, err := env.Journals.AccountLedger(ctx, lt.CompanyID, cash.ID, shared.NewWindow(2, 2, 10))
	require.NoError(t, err)
	require.True(t, page.Opening.Equal(lt.Dec("70.00")))
	require.Len(t, page.Rows, 2)
	for i, row := range page.Rows {
		require.True(t, row.Balance.Equal(full.Rows[i+2].Balance))
	}

	var seen int
	for row, err := range env.Journals.LedgerSeq(ctx, lt.CompanyID, cash.ID, 3) {
		require.NoError(t, err)
		require.True(t, row.Balance.Equal(full.Rows[seen].Balance))
		seen++
	}
	require.Equal(t, 4, seen)
}

func TestListEntriesNewestFirst(t *testing.T) {
	env := lt.New(t)
	first := env.Post(t, lt.Day(2024, 1, 1), "1001", "4001", "1.00")
	second := env.Post(t, lt.Day(2024, 1, 3), "1001", "4001", "2.00")
	third := env.Post(t, lt.Day(2024, 1, 3), "1001", "4001", "3.00")

	out, err := env.Journals.List(env.Context(), lt.CompanyID, shared.NewWindow(0, 2, 50))
	require.NoError(t, err)
	require.Equal(t, 3, out.Total)
	require.Equal(t, []int64{third.ID, second.ID}, []int64{out.Items[0].ID, out.Items[1].ID})
	require.Equal(t, shared.Pagination{Page: 1, PerPage: 2, Total: 3, TotalPages: 2}, out.Pagination)

	rest, err := env.Journals.List(env.Context(), lt.CompanyID, shared.NewWindow(2, 2, 50))
	require.NoError(t, err)
	require.Equal(t, first.ID, rest.Items[0].ID)
	require.Equal(t, 2, rest.Pagination.Page)
}

func TestVerifyReportsDrift(t *testing.T) {
	env := lt.New(t)
	env.Post(t, lt.Day(2024, 1, 1), "1001", "4001", "100.00")

	drifts, err := env.Journals.Verify(env.Context(), lt.CompanyID)
	require.NoError(t, err)
	require.Empty(t, drifts)

	cash := env.Account(t, "1001")
	err = env.Store.Journals().WithTx(context.Background(), func(ctx context.Context, tx journals.TxRepository) error {
		return tx.AddAccountTotals(ctx, lt.CompanyID, cash.ID, lt.Dec("1.00"), lt.Dec("0"))
	})
	require.NoError(t, err)

	drifts, err = env.Journals.Verify(env.Context(), lt.CompanyID)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	require.Equal(t, cash.ID, drifts[0].AccountID)
	require.True(t, drifts[0].StoredDebit.Equal(lt.Dec("101.00")))
	require.True(t, drifts[0].PostedDebit.Equal(lt.Dec("100.00")))
}
