package mappings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	sets map[int64][]Set
}

func (m *memoryRepo) Latest(_ context.Context, companyID int64) (Set, error) {
	versions := m.sets[companyID]
	if len(versions) == 0 {
		return Set{}, shared.ErrMappingNotFound
	}
	return versions[len(versions)-1], nil
}

func (m *memoryRepo) Insert(_ context.Context, set Set) (Set, error) {
	set.Version = len(m.sets[set.CompanyID]) + 1
	m.sets[set.CompanyID] = append(m.sets[set.CompanyID], set)
	return set, nil
}

func TestCurrentFallsBackToDefaults(t *testing.T) {
	svc := NewService(&memoryRepo{sets: map[int64][]Set{}}, nil, nil)
	set, err := svc.Current(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), set.CompanyID)
	require.Zero(t, set.Version)
	require.Equal(t, "1405", set.Codes.Inventory)
	require.Equal(t, "2202", set.Codes.Payable)
	require.Equal(t, []string{"1001", "1002"}, set.Report.CashFlowCash)
	require.Equal(t, 1600, set.Report.CurrentAssetBelow)
}

func TestPutCreatesNewVersionPerTenant(t *testing.T) {
	repo := &memoryRepo{sets: map[int64][]Set{}}
	svc := NewService(repo, nil, nil)
	ctx := base.ContextWithTenant(context.Background(), base.Tenant{CompanyID: 1, ActorID: 9})

	def := Defaults()
	def.Codes.Payable = "2202.01"
	first, err := svc.Put(ctx, 1, PutInput{Codes: def.Codes, Report: def.Report})
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)
	require.Equal(t, int64(9), first.CreatedBy)

	def.Codes.Payable = "2202.02"
	second, err := svc.Put(ctx, 1, PutInput{Codes: def.Codes, Report: def.Report})
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)

	current, err := svc.Current(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "2202.02", current.Codes.Payable)

	other, err := svc.Current(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "2202", other.Codes.Payable)
}

func TestPutRejectsIncompleteSet(t *testing.T) {
	svc := NewService(&memoryRepo{sets: map[int64][]Set{}}, nil, nil)
	def := Defaults()
	def.Codes.Bank = ""
	_, err := svc.Put(context.Background(), 1, PutInput{Codes: def.Codes, Report: def.Report})
	require.ErrorIs(t, err, base.ErrValidation)

	def = Defaults()
	def.Report.CurrentAssetBelow = 0
	_, err = svc.Put(context.Background(), 1, PutInput{Codes: def.Codes, Report: def.Report})
	require.ErrorIs(t, err, base.ErrValidation)
}

func TestSettlementCode(t *testing.T) {
	def := Defaults()
	require.Equal(t, "1001", def.SettlementCode("Cash"))
	require.Equal(t, "1002", def.SettlementCode("BankTransfer"))
	require.Equal(t, "1002", def.SettlementCode("Other"))
}
