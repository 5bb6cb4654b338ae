package orders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type LineInput struct {
	ProductID    *int64           `json:"product_id" validate:"omitempty,gt=0"`
	Description  string           `json:"description" validate:"max=255"`
	Quantity     decimal.Decimal  `json:"quantity"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	DiscountRate *decimal.Decimal `json:"discount_rate"`
}

// OrderInput creates or replaces a draft. PaymentMethod is required for
// sales orders and ignored for purchase orders.
type OrderInput struct {
	CounterpartyID int64         `json:"counterparty_id" validate:"required,gt=0"`
	Date           shared.Date   `json:"date"`
	ExpectedDate   *shared.Date  `json:"expected_date"`
	PaymentMethod  PaymentMethod `json:"payment_method" validate:"omitempty,oneof=Cash BankTransfer Credit"`
	Remark         string        `json:"remark" validate:"max=500"`
	Lines          []LineInput   `json:"lines" validate:"required,dive"`
}

// PostInput optionally routes received products to warehouse locations.
type PostInput struct {
	Locations map[int64]string `json:"locations"`
	ActorID   int64            `json:"-"`
}

var one = decimal.NewFromInt(1)

func (in OrderInput) validate(kind Kind) error {
	if in.CounterpartyID <= 0 {
		return shared.Invalidf("orders: counterparty required")
	}
	if in.Date.IsZero() {
		return shared.Invalidf("orders: order date required")
	}
	if kind == KindSales && !in.PaymentMethod.Valid() {
		return shared.Invalidf("orders: payment method must be Cash, BankTransfer or Credit")
	}
	if len(in.Lines) == 0 {
		return ErrEmptyOrder
	}
	for i, line := range in.Lines {
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidOrderLine, i+1)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d unit price must not be negative", ErrInvalidOrderLine, i+1)
		}
		if line.DiscountRate != nil && (line.DiscountRate.IsNegative() || line.DiscountRate.GreaterThan(one)) {
			return fmt.Errorf("%w: line %d discount rate must be within [0,1]", ErrInvalidOrderLine, i+1)
		}
	}
	return nil
}

func (in OrderInput) lines() []Line {
	out := make([]Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		rate := one
		if l.DiscountRate != nil {
			rate = *l.DiscountRate
		}
		line := Line{
			ProductID:    l.ProductID,
			Description:  strings.TrimSpace(l.Description),
			Quantity:     l.Quantity.Round(shared.QuantityPlaces),
			UnitPrice:    l.UnitPrice,
			DiscountRate: rate,
		}
		line.Amount = line.LineAmount()
		out = append(out, line)
	}
	return out
}
