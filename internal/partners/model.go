package partners

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Kind separates customers from suppliers sharing one table.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSupplier Kind = "supplier"
)

var (
	ErrPartnerNotFound  = shared.NotFound("PARTNER_NOT_FOUND", "partners: counterparty not found")
	ErrDuplicatePartner = shared.Duplicate("DUPLICATE_PARTNER", "partners: name already registered")
)

// Partner is a customer or supplier. CreditLimit only applies to customers;
// zero means no credit sales are allowed.
type Partner struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	Kind        Kind            `json:"kind"`
	Name        string          `json:"name"`
	Contact     string          `json:"contact"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email"`
	Address     string          `json:"address"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderStats summarises a customer's sales orders. CurrentDebt is the
// unreceived amount on posted credit orders.
type OrderStats struct {
	TotalOrders     int             `json:"total_orders"`
	DraftCount      int             `json:"draft_count"`
	PostedCount     int             `json:"posted_count"`
	CollectedCount  int             `json:"collected_count"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	CurrentDebt     decimal.Decimal `json:"current_debt"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
}

// Detail is a partner with its order statistics when a source is wired.
type Detail struct {
	Partner
	OrderStats *OrderStats `json:"order_stats,omitempty"`
}

type CreateRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Contact     string          `json:"contact" validate:"max=100"`
	Phone       string          `json:"phone" validate:"max=50"`
	Email       string          `json:"email" validate:"omitempty,email"`
	Address     string          `json:"address" validate:"max=255"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

type UpdateRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Contact     *string          `json:"contact,omitempty" validate:"omitempty,max=100"`
	Phone       *string          `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email       *string          `json:"email,omitempty" validate:"omitempty,email"`
	Address     *string          `json:"address,omitempty" validate:"omitempty,max=255"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty"`
}
