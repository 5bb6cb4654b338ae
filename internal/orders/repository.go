package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Filter narrows order listings. An empty Status lists every status.
type Filter struct {
	Status         Status
	CounterpartyID int64
	Window         shared.Window
}

// StatusTotal counts one counterparty's orders in a status.
type StatusTotal struct {
	Status Status
	Orders int
	Total  decimal.Decimal
}

type Repository interface {
	GetOrder(ctx context.Context, companyID int64, kind Kind, id int64) (Order, error)
	ListOrders(ctx context.Context, companyID int64, kind Kind, filter Filter) ([]Order, error)
	TotalsByStatus(ctx context.Context, companyID int64, kind Kind, counterpartyID int64) ([]StatusTotal, error)
	CreditExposure(ctx context.Context, companyID, customerID, excludeID int64) (decimal.Decimal, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// StatusTx is the part of the order store the settlement recorder needs to
// advance a posted order.
type StatusTx interface {
	// OrderForUpdate loads the order with its lines and locks its row.
	OrderForUpdate(ctx context.Context, companyID int64, kind Kind, id int64) (Order, error)
	SetOrderStatus(ctx context.Context, companyID, id int64, status Status, at time.Time) error
}

// TxRepository spans every store an order posting writes to, so stock,
// journals and status commit as one unit.
type TxRepository interface {
	StatusTx
	journals.TxRepository
	inventory.TxRepository
	partners.TxRepository
	InsertOrder(ctx context.Context, order Order) (Order, error)
	// ReplaceOrder rewrites header and lines of a draft.
	ReplaceOrder(ctx context.Context, order Order) (Order, error)
	DeleteOrder(ctx context.Context, companyID, id int64) error
	MarkOrderPosted(ctx context.Context, companyID, id int64, p Posting) error
	// CreditExposure sums the unreceived amount of the customer's posted
	// credit sales orders, excluding excludeID.
	CreditExposure(ctx context.Context, companyID, customerID, excludeID int64) (decimal.Decimal, error)
}
