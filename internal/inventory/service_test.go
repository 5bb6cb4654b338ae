package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	items  map[int64]Item
	txs    []Transaction
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	items := make(map[int64]Item, len(r.items))
	for k, v := range r.items {
		items[k] = v
	}
	txs := len(r.txs)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.items = items
		r.txs = r.txs[:txs]
		return err
	}
	return nil
}

func (r *memoryRepo) GetItem(_ context.Context, _ int64, productID int64) (Item, error) {
	item, ok := r.items[productID]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *memoryRepo) ListItems(context.Context, int64) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		out = append(out, item)
	}
	return out, nil
}

func (r *memoryRepo) ListTransactions(_ context.Context, _ int64, filter TransactionFilter) ([]Transaction, error) {
	var out []Transaction
	for _, t := range r.txs {
		if filter.ProductID == nil || *filter.ProductID == t.ProductID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tx *memoryTx) ItemsForUpdate(_ context.Context, _ int64, productIDs []int64) (map[int64]Item, error) {
	out := make(map[int64]Item)
	for _, id := range productIDs {
		if item, ok := tx.repo.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (tx *memoryTx) UpsertItem(_ context.Context, item Item) error {
	tx.repo.items[item.ProductID] = item
	return nil
}

func (tx *memoryTx) InsertInventoryTransaction(_ context.Context, t Transaction) (Transaction, error) {
	tx.repo.nextID++
	t.ID = tx.repo.nextID
	tx.repo.txs = append(tx.repo.txs, t)
	return t, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAverageMovingCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	res, err := svc.Adjust(ctx, 1, AdjustmentInput{ProductID: 1, Type: TransactionTypeIn, Quantity: dec("10"), UnitCost: dec("100000"), Location: "A-01"})
	require.NoError(t, err)
	require.True(t, res.Item.Quantity.Equal(dec("10")))
	require.True(t, res.Item.AverageCost.Equal(dec("100000")))

	res, err = svc.Adjust(ctx, 1, AdjustmentInput{ProductID: 1, Type: TransactionTypeIn, Quantity: dec("5"), UnitCost: dec("120000"), Location: "B-02"})
	require.NoError(t, err)
	require.True(t, res.Item.Quantity.Equal(dec("15")))
	require.Equal(t, "106666.6667", res.Item.AverageCost.StringFixed(4))

	res, err = svc.Adjust(ctx, 1, AdjustmentInput{ProductID: 1, Type: TransactionTypeOut, Quantity: dec("8"), Location: "A-01", Remark: "Issue"})
	require.NoError(t, err)
	require.True(t, res.Item.Quantity.Equal(dec("7")))
	require.Equal(t, "106666.6667", res.Transaction.UnitCost.StringFixed(4))
	require.Equal(t, "106666.6667", res.Item.AverageCost.StringFixed(4))
	require.Equal(t, []string{"A-01", "B-02"}, res.Item.Locations)
}

func TestWeightedAverageFormula(t *testing.T) {
	item := Item{Quantity: dec("3"), AverageCost: dec("2.5")}
	item = ApplyIn(item, dec("1"), dec("4.5"))
	// (3*2.5 + 1*4.5) / 4
	require.Equal(t, "3.0000", item.AverageCost.StringFixed(4))
	require.True(t, item.Quantity.Equal(dec("4")))

	item, err := ApplyOut(item, dec("4"))
	require.NoError(t, err)
	require.True(t, item.Quantity.IsZero())

	_, err = ApplyOut(item, dec("0.0001"))
	require.ErrorIs(t, err, ErrNegativeStock)
	require.ErrorIs(t, err, shared.ErrInvariant)
}

func TestNegativeStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, 1, AdjustmentInput{ProductID: 1, Type: TransactionTypeOut, Quantity: dec("1"), Remark: "negative"})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Empty(t, repo.txs)

	_, err = svc.Adjust(ctx, 1, AdjustmentInput{ProductID: 1, Type: TransactionTypeIn, Quantity: dec("0")})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.Adjust(ctx, 1, AdjustmentInput{ProductID: 1, Type: TransactionTypeIn, Quantity: dec("1"), UnitCost: dec("-1")})
	require.ErrorIs(t, err, ErrInvalidUnitCost)
}

func TestAdjustIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	idem := shared.NewMemoryIdempotency()
	svc := NewService(repo, nil, idem, nil)
	ctx := context.Background()

	in := AdjustmentInput{ProductID: 2, Type: TransactionTypeIn, Quantity: dec("1"), UnitCost: dec("3"), IdempotencyKey: "abc"}
	_, err := svc.Adjust(ctx, 1, in)
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, 1, in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.txs, 1)

	failed := AdjustmentInput{ProductID: 3, Type: TransactionTypeOut, Quantity: dec("1"), IdempotencyKey: "retry"}
	_, err = svc.Adjust(ctx, 1, failed)
	require.ErrorIs(t, err, ErrInsufficientStock)
	_, err = svc.Adjust(ctx, 1, failed)
	require.ErrorIs(t, err, ErrInsufficientStock, "failed attempts release their key")
}
