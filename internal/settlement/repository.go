package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Repository interface {
	ListSettlements(ctx context.Context, companyID int64, kind Kind, window shared.Window) ([]Settlement, error)
	// OpenOrders lists posted orders of the kind's order type that still
	// have an outstanding amount, oldest first.
	OpenOrders(ctx context.Context, companyID int64, kind Kind) ([]OpenOrder, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

type TxRepository interface {
	orders.StatusTx
	journals.TxRepository
	InsertSettlement(ctx context.Context, s Settlement) (Settlement, error)
	AttachSettlementJournal(ctx context.Context, companyID, id, journalID int64) error
	// SettledAmount sums the settlements of kind recorded against orderID.
	SettledAmount(ctx context.Context, companyID int64, kind Kind, orderID int64) (decimal.Decimal, error)
}
