package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates manual inventory operations and reads.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency shared.IdempotencyPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem shared.IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ApplyIn folds an inbound quantity into the weighted average:
// new_avg = (old_qty*old_avg + qty*unit_cost) / (old_qty + qty).
func ApplyIn(item Item, qty, unitCost decimal.Decimal) Item {
	newQty := item.Quantity.Add(qty)
	if newQty.IsPositive() {
		total := item.Quantity.Mul(item.AverageCost).Add(qty.Mul(unitCost))
		item.AverageCost = total.DivRound(newQty, shared.CostPlaces)
	} else {
		item.AverageCost = unitCost.Round(shared.CostPlaces)
	}
	item.Quantity = newQty.Round(shared.QuantityPlaces)
	return item
}

// ApplyOut removes qty at the current average cost, which stays unchanged.
func ApplyOut(item Item, qty decimal.Decimal) (Item, error) {
	if qty.GreaterThan(item.Quantity) {
		return item, fmt.Errorf("%w: product %d has %s, needs %s", ErrNegativeStock, item.ProductID, item.Quantity, qty)
	}
	item.Quantity = item.Quantity.Sub(qty).Round(shared.QuantityPlaces)
	return item, nil
}

func validateMovement(m Movement) error {
	if m.ProductID <= 0 {
		return shared.Invalidf("inventory: product required")
	}
	if !m.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if m.UnitCost.IsNegative() {
		return ErrInvalidUnitCost
	}
	return nil
}

func addLocation(item Item, location string) Item {
	if location == "" || slices.Contains(item.Locations, location) {
		return item
	}
	item.Locations = append(slices.Clone(item.Locations), location)
	return item
}

// PostIn records an inbound movement against a locked item inside tx.
func PostIn(ctx context.Context, tx TxRepository, item Item, m Movement, at time.Time) (Item, Transaction, error) {
	if err := validateMovement(m); err != nil {
		return item, Transaction{}, err
	}
	unitCost := m.UnitCost.Round(shared.CostPlaces)
	updated := addLocation(ApplyIn(item, m.Quantity, unitCost), m.Location)
	return persist(ctx, tx, updated, m, TransactionTypeIn, unitCost, at)
}

// PostOut records an outbound movement at the item's average cost inside tx.
func PostOut(ctx context.Context, tx TxRepository, item Item, m Movement, at time.Time) (Item, Transaction, error) {
	if err := validateMovement(m); err != nil {
		return item, Transaction{}, err
	}
	updated, err := ApplyOut(item, m.Quantity)
	if err != nil {
		return item, Transaction{}, err
	}
	updated = addLocation(updated, m.Location)
	return persist(ctx, tx, updated, m, TransactionTypeOut, item.AverageCost, at)
}

func persist(ctx context.Context, tx TxRepository, item Item, m Movement, typ TransactionType, unitCost decimal.Decimal, at time.Time) (Item, Transaction, error) {
	item.UpdatedAt = at
	if err := tx.UpsertItem(ctx, item); err != nil {
		return item, Transaction{}, err
	}
	t, err := tx.InsertInventoryTransaction(ctx, Transaction{
		CompanyID:         item.CompanyID,
		ProductID:         item.ProductID,
		Type:              typ,
		Quantity:          m.Quantity.Round(shared.QuantityPlaces),
		UnitCost:          unitCost,
		SourceType:        m.SourceType,
		SourceID:          m.SourceID,
		WarehouseLocation: m.Location,
		Remark:            m.Remark,
		CreatedBy:         m.ActorID,
		CreatedAt:         at,
	})
	if err != nil {
		return item, Transaction{}, err
	}
	return item, t, nil
}

// AdjustmentResult pairs the movement with the resulting position.
type AdjustmentResult struct {
	Transaction Transaction `json:"transaction"`
	Item        Item        `json:"item"`
}

// Adjust posts a manual IN or OUT. A non-empty idempotency key makes the
// request safe to retry.
func (s *Service) Adjust(ctx context.Context, companyID int64, in AdjustmentInput) (AdjustmentResult, error) {
	if in.Source == "" {
		in.Source = SourceAdjustment
	}
	if in.Type != TransactionTypeIn && in.Type != TransactionTypeOut {
		return AdjustmentResult{}, shared.Invalidf("inventory: type must be IN or OUT")
	}
	tenant, _ := shared.TenantFromContext(ctx)
	m := Movement{
		ProductID:  in.ProductID,
		Quantity:   in.Quantity,
		UnitCost:   in.UnitCost,
		SourceType: in.Source,
		Location:   in.Location,
		Remark:     in.Remark,
		ActorID:    tenant.ActorID,
	}
	if err := validateMovement(m); err != nil {
		return AdjustmentResult{}, err
	}

	key := ""
	if in.IdempotencyKey != "" && s.idempotency != nil {
		key = fmt.Sprintf("inventory:%d:%s", companyID, in.IdempotencyKey)
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return AdjustmentResult{}, err
		}
	}

	var res AdjustmentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items, err := tx.ItemsForUpdate(ctx, companyID, []int64{in.ProductID})
		if err != nil {
			return err
		}
		item, ok := items[in.ProductID]
		if !ok {
			item = Item{CompanyID: companyID, ProductID: in.ProductID}
		}
		var (
			updated Item
			t       Transaction
		)
		if in.Type == TransactionTypeIn {
			updated, t, err = PostIn(ctx, tx, item, m, s.now())
		} else {
			if m.Quantity.GreaterThan(item.Quantity) {
				return fmt.Errorf("%w: product %d has %s, needs %s", ErrInsufficientStock, in.ProductID, item.Quantity, m.Quantity)
			}
			updated, t, err = PostOut(ctx, tx, item, m, s.now())
		}
		if err != nil {
			return err
		}
		res = AdjustmentResult{Transaction: t, Item: updated}
		return nil
	})
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return AdjustmentResult{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			CompanyID: companyID,
			ActorID:   tenant.ActorID,
			Action:    fmt.Sprintf("inventory:%s", in.Type),
			Entity:    "inventory_tx",
			EntityID:  fmt.Sprintf("%d", res.Transaction.ID),
			Meta: map[string]any{
				"product_id": in.ProductID,
				"qty":        in.Quantity.String(),
				"source":     in.Source,
			},
			At: s.now(),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit record failed", slog.Any("error", err))
		}
	}
	return res, nil
}

func (s *Service) GetItem(ctx context.Context, companyID, productID int64) (Item, error) {
	return s.repo.GetItem(ctx, companyID, productID)
}

func (s *Service) ListItems(ctx context.Context, companyID int64) ([]Item, error) {
	items, err := s.repo.ListItems(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

func (s *Service) ListTransactions(ctx context.Context, companyID int64, filter TransactionFilter) ([]Transaction, error) {
	if filter.Window.Limit <= 0 {
		filter.Window = shared.NewWindow(filter.Window.Skip, 0, 100)
	}
	out, err := s.repo.ListTransactions(ctx, companyID, filter)
	if err != nil {
		return nil, fmt.Errorf("inventory: list transactions: %w", err)
	}
	if out == nil {
		out = []Transaction{}
	}
	return out, nil
}
