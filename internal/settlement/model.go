package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Kind separates outgoing payments from incoming receipts.
type Kind string

const (
	KindPayment Kind = "PAYMENT"
	KindReceipt Kind = "RECEIPT"
)

// OrderKind is the order type a settlement kind applies to.
func (k Kind) OrderKind() orders.Kind {
	if k == KindReceipt {
		return orders.KindSales
	}
	return orders.KindPurchase
}

type Method string

const (
	MethodCash         Method = "Cash"
	MethodBankTransfer Method = "BankTransfer"
	MethodOther        Method = "Other"
)

func (m Method) Valid() bool {
	return m == MethodCash || m == MethodBankTransfer || m == MethodOther
}

var (
	ErrOrderNotPosted = shared.Precondition("ORDER_NOT_POSTED", "settlement: order is not posted")
	ErrAlreadySettled = shared.Precondition("ALREADY_SETTLED", "settlement: order is already settled")
	ErrMustPayInFull  = shared.Precondition("MUST_PAY_IN_FULL", "settlement: payment must equal the unpaid amount")
	ErrOverReceipt    = shared.Precondition("OVER_RECEIPT", "settlement: receipt exceeds the unreceived amount")
	ErrInvalidAmount  = shared.Validation("INVALID_AMOUNT", "settlement: amount must be positive with at most two decimals")
)

// Settlement is a recorded payment or receipt.
type Settlement struct {
	ID        int64           `json:"id"`
	CompanyID int64           `json:"company_id"`
	Kind      Kind            `json:"kind"`
	OrderID   *int64          `json:"order_id"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Method    Method          `json:"method"`
	Remark    string          `json:"remark"`
	JournalID int64           `json:"journal_id"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

type PaymentInput struct {
	PurchaseOrderID *int64          `json:"purchase_order_id" validate:"omitempty,gt=0"`
	Date            shared.Date     `json:"date"`
	Amount          decimal.Decimal `json:"amount"`
	Method          Method          `json:"method" validate:"required,oneof=Cash BankTransfer Other"`
	Remark          string          `json:"remark" validate:"max=255"`
	ActorID         int64           `json:"-"`
	IdempotencyKey  string          `json:"-"`
}

type ReceiptInput struct {
	SalesOrderID   *int64          `json:"sales_order_id" validate:"omitempty,gt=0"`
	Date           shared.Date     `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Method         Method          `json:"method" validate:"required,oneof=Cash BankTransfer Other"`
	Remark         string          `json:"remark" validate:"max=255"`
	ActorID        int64           `json:"-"`
	IdempotencyKey string          `json:"-"`
}

// request is the kind-independent form both inputs reduce to.
type request struct {
	kind           Kind
	orderID        *int64
	date           shared.Date
	amount         decimal.Decimal
	method         Method
	remark         string
	actorID        int64
	idempotencyKey string
}

// OpenOrder is a posted order with an outstanding balance.
type OpenOrder struct {
	OrderID        int64           `json:"order_id"`
	CounterpartyID int64           `json:"counterparty_id"`
	Date           time.Time       `json:"date"`
	Total          decimal.Decimal `json:"total"`
	Settled        decimal.Decimal `json:"settled"`
	Outstanding    decimal.Decimal `json:"outstanding"`
}
