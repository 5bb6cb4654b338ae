package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	// TransactionTypeIn represents an inbound movement.
	TransactionTypeIn TransactionType = "IN"
	// TransactionTypeOut represents an outbound movement.
	TransactionTypeOut TransactionType = "OUT"
)

// SourceType tags what caused a movement.
type SourceType string

const (
	SourcePO         SourceType = "PO"
	SourceSO         SourceType = "SO"
	SourceManual     SourceType = "Manual"
	SourceAdjustment SourceType = "Adjustment"
)

// Item is the running stock position of one product.
type Item struct {
	CompanyID   int64           `json:"company_id"`
	ProductID   int64           `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	// Locations lists distinct warehouse locations in order of first use.
	Locations []string  `json:"warehouse_locations"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Value is quantity times average cost at minor units.
func (i Item) Value() decimal.Decimal {
	return shared.Money(i.Quantity.Mul(i.AverageCost))
}

// Transaction is an append-only movement record.
type Transaction struct {
	ID                int64           `json:"id"`
	CompanyID         int64           `json:"company_id"`
	ProductID         int64           `json:"product_id"`
	Type              TransactionType `json:"type"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	SourceType        SourceType      `json:"source_type"`
	SourceID          *int64          `json:"source_id"`
	WarehouseLocation string          `json:"warehouse_location"`
	Remark            string          `json:"remark"`
	CreatedBy         int64           `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Movement describes one IN or OUT applied inside a caller's transaction.
type Movement struct {
	ProductID int64
	Quantity  decimal.Decimal
	// UnitCost is used for IN only; OUT always leaves at the average cost.
	UnitCost   decimal.Decimal
	SourceType SourceType
	SourceID   *int64
	Location   string
	Remark     string
	ActorID    int64
}

// AdjustmentInput describes a manual stock correction.
type AdjustmentInput struct {
	ProductID      int64           `json:"product_id" validate:"required,gt=0"`
	Type           TransactionType `json:"type" validate:"required,oneof=IN OUT"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Source         SourceType      `json:"source" validate:"omitempty,oneof=Manual Adjustment"`
	Location       string          `json:"warehouse_location" validate:"max=100"`
	Remark         string          `json:"remark" validate:"max=255"`
	IdempotencyKey string          `json:"-"`
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	ProductID *int64
	Window    shared.Window
}

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = shared.Validation("INVALID_QUANTITY", "inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative cost.
	ErrInvalidUnitCost = shared.Validation("INVALID_UNIT_COST", "inventory: unit cost must be >= 0")
	// ErrItemNotFound indicates no stock record for the product.
	ErrItemNotFound = shared.NotFound("ITEM_NOT_FOUND", "inventory: item not found")
	// ErrInsufficientStock is returned when an OUT exceeds the on-hand quantity.
	ErrInsufficientStock = shared.Precondition("INSUFFICIENT_STOCK", "inventory: insufficient stock")
	// ErrMissingCost indicates stock without a cost basis.
	ErrMissingCost = shared.Precondition("MISSING_COST", "inventory: product has no average cost")
	// ErrNegativeStock signals an OUT that slipped past the stock check.
	ErrNegativeStock = shared.NewError(shared.ErrInvariant, "NEGATIVE_STOCK", "inventory: quantity would become negative")
)
