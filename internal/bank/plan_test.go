package bank

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

func day(d int) time.Time {
	return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC)
}

func TestPlanPrefersClosestDateThenLowestEntry(t *testing.T) {
	amt := decimal.RequireFromString("200.00")
	statements := []Statement{{ID: 1, Date: day(10), Amount: amt, Type: Credit}}
	candidates := []Candidate{
		{EntryID: 9, Date: day(12), Amount: amt, Direction: Credit},
		{EntryID: 7, Date: day(8), Amount: amt, Direction: Credit},
		{EntryID: 5, Date: day(13), Amount: amt, Direction: Credit},
	}

	out := Plan(statements, candidates, 3)
	require.Len(t, out, 1)
	require.Equal(t, int64(7), out[0].Journal.EntryID, "two days either side ties on distance, lowest id wins")

	candidates = append(candidates, Candidate{EntryID: 11, Date: day(10), Amount: amt, Direction: Credit})
	out = Plan(statements, candidates, 3)
	require.Equal(t, int64(11), out[0].Journal.EntryID)
}

func TestPlanMatchesDirectionAndAmount(t *testing.T) {
	statements := []Statement{
		{ID: 1, Date: day(1), Amount: decimal.RequireFromString("50.00"), Type: Debit},
		{ID: 2, Date: day(1), Amount: decimal.RequireFromString("50.00"), Type: Credit},
	}
	candidates := []Candidate{
		{EntryID: 1, Date: day(1), Amount: decimal.RequireFromString("50.00"), Direction: Credit},
		{EntryID: 2, Date: day(2), Amount: decimal.RequireFromString("50.004"), Direction: Debit},
	}

	out := Plan(statements, candidates, 0)
	require.Len(t, out, 2)
	require.Equal(t, int64(1), out[0].Statement.ID)
	require.Equal(t, int64(2), out[0].Journal.EntryID)
	require.Equal(t, int64(2), out[1].Statement.ID)
	require.Equal(t, int64(1), out[1].Journal.EntryID)
}

func TestPlanUsesEachCandidateOnceInStatementOrder(t *testing.T) {
	amt := decimal.RequireFromString("10.00")
	statements := []Statement{
		{ID: 4, Date: day(5), Amount: amt, Type: Credit},
		{ID: 3, Date: day(5), Amount: amt, Type: Credit},
		{ID: 1, Date: day(20), Amount: amt, Type: Credit},
	}
	candidates := []Candidate{{EntryID: 1, Date: day(5), Amount: amt, Direction: Credit}}

	out := Plan(statements, candidates, 3)
	require.Len(t, out, 1)
	require.Equal(t, int64(3), out[0].Statement.ID)
}

func TestPlanHonoursDateWindow(t *testing.T) {
	amt := decimal.RequireFromString("10.00")
	statements := []Statement{{ID: 1, Date: day(1), Amount: amt, Type: Credit}}
	candidates := []Candidate{{EntryID: 1, Date: day(5), Amount: amt, Direction: Credit}}

	require.Empty(t, Plan(statements, candidates, 3))
	require.Len(t, Plan(statements, candidates, 0), 1)
}

func TestCandidateDirectionFollowsNetDebit(t *testing.T) {
	in, ok := candidateOf(journals.Movement{EntryID: 1, Debit: decimal.RequireFromString("80"), Credit: decimal.RequireFromString("30")})
	require.True(t, ok)
	require.Equal(t, Credit, in.Direction)
	require.True(t, in.Amount.Equal(decimal.RequireFromString("50")))

	out, ok := candidateOf(journals.Movement{EntryID: 2, Credit: decimal.RequireFromString("12.5")})
	require.True(t, ok)
	require.Equal(t, Debit, out.Direction)
	require.True(t, out.Amount.Equal(decimal.RequireFromString("12.5")))

	_, ok = candidateOf(journals.Movement{EntryID: 3, Debit: decimal.RequireFromString("5"), Credit: decimal.RequireFromString("5")})
	require.False(t, ok, "internal transfers inside the cash scope net to zero")
}
