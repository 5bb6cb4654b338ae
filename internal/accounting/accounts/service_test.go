package accounts

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	nextID   int64
	accounts map[int64]Account
	postings map[int64]int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[int64]Account), postings: make(map[int64]int)}
}

func (m *memoryRepo) GetAccount(_ context.Context, companyID, id int64) (Account, error) {
	a, ok := m.accounts[id]
	if !ok || a.CompanyID != companyID {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (m *memoryRepo) ListAccounts(_ context.Context, companyID int64, parentID *int64) ([]Account, error) {
	var out []Account
	for _, a := range m.accounts {
		if a.CompanyID != companyID {
			continue
		}
		if parentID != nil && (a.ParentID == nil || *a.ParentID != *parentID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Account, len(m.accounts))
	for k, v := range m.accounts {
		snapshot[k] = v
	}
	next := m.nextID
	if err := fn(ctx, m); err != nil {
		m.accounts = snapshot
		m.nextID = next
		return err
	}
	return nil
}

func (m *memoryRepo) AccountByID(ctx context.Context, companyID, id int64) (Account, error) {
	return m.GetAccount(ctx, companyID, id)
}

func (m *memoryRepo) AccountByCode(_ context.Context, companyID int64, code string) (Account, error) {
	for _, a := range m.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (m *memoryRepo) InsertAccount(_ context.Context, a Account) (Account, error) {
	m.nextID++
	a.ID = m.nextID
	a.UpdatedAt = a.CreatedAt
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memoryRepo) UpdateAccount(_ context.Context, a Account) error {
	m.accounts[a.ID] = a
	return nil
}

func (m *memoryRepo) DeleteAccount(_ context.Context, _ int64, id int64) error {
	delete(m.accounts, id)
	return nil
}

func (m *memoryRepo) AccountUsage(_ context.Context, companyID, id int64) (Usage, error) {
	u := Usage{Postings: m.postings[id]}
	for _, a := range m.accounts {
		if a.CompanyID == companyID && a.ParentID != nil && *a.ParentID == id {
			u.Children++
		}
	}
	return u, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) })
	return svc, repo
}

func TestCreateDefaultsNormalBalanceAndPath(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cash, err := svc.Create(ctx, 1, CreateInput{Code: "1001", Name: "Cash", Type: AccountTypeAsset, IsCore: true})
	require.NoError(t, err)
	require.Equal(t, NormalDebit, cash.NormalBalance)
	require.Equal(t, "1001", cash.Path)

	petty, err := svc.Create(ctx, 1, CreateInput{Code: "1001.01", Name: "Petty cash", Type: AccountTypeAsset, ParentID: &cash.ID, IsCore: true})
	require.NoError(t, err)
	require.False(t, petty.IsCore, "children are never core")
	require.Equal(t, "1001/1001.01", petty.Path)

	revenue, err := svc.Create(ctx, 1, CreateInput{Code: "6001", Name: "Revenue", Type: AccountTypeRevenue})
	require.NoError(t, err)
	require.Equal(t, NormalCredit, revenue.NormalBalance)
}

func TestCreateRejectsDuplicatesAndMismatches(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	parent, err := svc.Create(ctx, 1, CreateInput{Code: "1001", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, CreateInput{Code: "1001", Name: "Again", Type: AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateCode)
	require.ErrorIs(t, err, base.ErrDuplicate)

	_, err = svc.Create(ctx, 2, CreateInput{Code: "1001", Name: "Other tenant", Type: AccountTypeAsset})
	require.NoError(t, err, "codes are unique per tenant only")

	_, err = svc.Create(ctx, 1, CreateInput{Code: "2001", Name: "Loan", Type: AccountTypeLiability, ParentID: &parent.ID})
	require.ErrorIs(t, err, shared.ErrTypeMismatch)

	missing := int64(999)
	_, err = svc.Create(ctx, 1, CreateInput{Code: "1009", Name: "Orphan", Type: AccountTypeAsset, ParentID: &missing})
	require.ErrorIs(t, err, shared.ErrParentNotFound)

	_, err = svc.Create(ctx, 2, CreateInput{Code: "1001.01", Name: "Cross tenant", Type: AccountTypeAsset, ParentID: &parent.ID})
	require.ErrorIs(t, err, shared.ErrParentNotFound)
}

func TestCreateDetectsCorruptParentCycle(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, 1, CreateInput{Code: "1001", Name: "A", Type: AccountTypeAsset})
	require.NoError(t, err)
	b, err := svc.Create(ctx, 1, CreateInput{Code: "1001.01", Name: "B", Type: AccountTypeAsset, ParentID: &a.ID})
	require.NoError(t, err)

	corrupt := repo.accounts[a.ID]
	corrupt.ParentID = &b.ID
	repo.accounts[a.ID] = corrupt

	_, err = svc.Create(ctx, 1, CreateInput{Code: "1001.02", Name: "C", Type: AccountTypeAsset, ParentID: &b.ID})
	require.ErrorIs(t, err, shared.ErrCycle)
}

func TestUpdateAndDeleteGuards(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	core, err := svc.Create(ctx, 1, CreateInput{Code: "1001", Name: "Cash", Type: AccountTypeAsset, IsCore: true})
	require.NoError(t, err)
	name := "Renamed"
	_, err = svc.Update(ctx, 1, core.ID, UpdateInput{Name: &name})
	require.ErrorIs(t, err, shared.ErrCoreAccountProtected)
	require.ErrorIs(t, svc.Delete(ctx, 1, core.ID), shared.ErrCoreAccountProtected)

	parent, err := svc.Create(ctx, 1, CreateInput{Code: "1601", Name: "Fixed", Type: AccountTypeAsset})
	require.NoError(t, err)
	child, err := svc.Create(ctx, 1, CreateInput{Code: "1601.01", Name: "Machines", Type: AccountTypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, 1, parent.ID), shared.ErrHasPostingsOrChildren)

	repo.postings[child.ID] = 1
	err = svc.Delete(ctx, 1, child.ID)
	require.ErrorIs(t, err, shared.ErrHasPostingsOrChildren)
	require.ErrorIs(t, err, base.ErrPrecondition)

	remark := "owned equipment"
	updated, err := svc.Update(ctx, 1, child.ID, UpdateInput{Name: &name, Remark: &remark})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, "owned equipment", updated.Remark)
	require.Equal(t, "1601.01", updated.Code)

	delete(repo.postings, child.ID)
	require.NoError(t, svc.Delete(ctx, 1, child.ID))
	require.NoError(t, svc.Delete(ctx, 1, parent.ID))
	_, err = svc.Get(ctx, 1, parent.ID)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestTreeWalkIsOrderedAndRestartable(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	bank, err := svc.Create(ctx, 1, CreateInput{Code: "1002", Name: "Bank", Type: AccountTypeAsset})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Code: "1001", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Code: "1002.02", Name: "Bank B", Type: AccountTypeAsset, ParentID: &bank.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Code: "1002.01", Name: "Bank A", Type: AccountTypeAsset, ParentID: &bank.ID})
	require.NoError(t, err)

	tree, err := svc.Tree(ctx, 1)
	require.NoError(t, err)

	collect := func() []string {
		var codes []string
		for n := range tree.Walk() {
			codes = append(codes, n.Account.Code)
		}
		return codes
	}
	want := []string{"1001", "1002", "1002.01", "1002.02"}
	require.Equal(t, want, collect())
	require.Equal(t, want, collect())

	for n := range tree.Walk() {
		if n.Account.Code == "1002.01" {
			require.Equal(t, 1, n.Depth)
		}
	}

	all, err := svc.List(ctx, 1, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1002", "1002.01", "1002.02"}, codesOf(Subtree(all, bank.ID)))

	raw, err := json.Marshal(tree)
	require.NoError(t, err)
	var nested []struct {
		Code     string `json:"code"`
		Children []struct {
			Code string `json:"code"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal(raw, &nested))
	require.Len(t, nested, 2)
	require.Equal(t, "1002", nested[1].Code)
	require.Equal(t, "1002.01", nested[1].Children[0].Code)
}

func TestSeedDefaultChartSkipsExisting(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateInput{Code: "1001", Name: "Cash", Type: AccountTypeAsset, IsCore: true})
	require.NoError(t, err)

	created, err := svc.SeedDefaultChart(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, len(DefaultChart())-1, created)

	again, err := svc.SeedDefaultChart(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, again)
}

func TestBalanceFollowsNormalSide(t *testing.T) {
	asset := Account{NormalBalance: NormalDebit, DebitTotal: decimal.NewFromInt(100), CreditTotal: decimal.NewFromInt(30)}
	require.True(t, asset.Balance().Equal(decimal.NewFromInt(70)))
	liability := Account{NormalBalance: NormalCredit, DebitTotal: decimal.NewFromInt(100), CreditTotal: decimal.NewFromInt(30)}
	require.True(t, liability.Balance().Equal(decimal.NewFromInt(-70)))
}

func codesOf(list []Account) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Code)
	}
	return out
}
