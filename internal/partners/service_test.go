package partners

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	partners map[int64]Partner
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{partners: make(map[int64]Partner)}
}

func (r *memoryRepo) GetPartner(_ context.Context, companyID int64, kind Kind, id int64) (Partner, error) {
	p, ok := r.partners[id]
	if !ok || p.CompanyID != companyID || p.Kind != kind {
		return Partner{}, ErrPartnerNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListPartners(_ context.Context, companyID int64, kind Kind, _ shared.Window) ([]Partner, error) {
	var out []Partner
	for _, p := range r.partners {
		if p.CompanyID == companyID && p.Kind == kind {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertPartner(_ context.Context, p Partner) (Partner, error) {
	for _, existing := range r.partners {
		if existing.CompanyID == p.CompanyID && existing.Kind == p.Kind && existing.Name == p.Name {
			return Partner{}, ErrDuplicatePartner
		}
	}
	r.nextID++
	p.ID = r.nextID
	r.partners[p.ID] = p
	return p, nil
}

func (r *memoryRepo) UpdatePartner(_ context.Context, p Partner) error {
	if _, ok := r.partners[p.ID]; !ok {
		return ErrPartnerNotFound
	}
	r.partners[p.ID] = p
	return nil
}

func TestCreateCustomerKeepsCreditLimit(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, 1, KindCustomer, CreateRequest{Name: " Acme ", CreditLimit: decimal.RequireFromString("5000")})
	require.NoError(t, err)
	require.Equal(t, "Acme", c.Name)
	require.Equal(t, "5000.00", c.CreditLimit.StringFixed(2))

	s, err := svc.Create(ctx, 1, KindSupplier, CreateRequest{Name: "Acme", CreditLimit: decimal.RequireFromString("10")})
	require.NoError(t, err, "same name under another kind")
	require.True(t, s.CreditLimit.IsZero())

	_, err = svc.Create(ctx, 1, KindCustomer, CreateRequest{Name: "Acme"})
	require.ErrorIs(t, err, ErrDuplicatePartner)

	_, err = svc.Create(ctx, 1, KindCustomer, CreateRequest{Name: "Neg", CreditLimit: decimal.RequireFromString("-1")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdatePartnerIsTenantScoped(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, 1, KindCustomer, CreateRequest{Name: "Beta"})
	require.NoError(t, err)

	limit := decimal.RequireFromString("4800")
	name := "Beta Ltd"
	updated, err := svc.Update(ctx, 1, KindCustomer, c.ID, UpdateRequest{Name: &name, CreditLimit: &limit})
	require.NoError(t, err)
	require.Equal(t, "Beta Ltd", updated.Name)
	require.Equal(t, "4800.00", updated.CreditLimit.StringFixed(2))

	_, err = svc.Update(ctx, 2, KindCustomer, c.ID, UpdateRequest{Name: &name})
	require.ErrorIs(t, err, ErrPartnerNotFound)
	_, err = svc.Get(ctx, 1, KindSupplier, c.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
