package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Kind distinguishes purchase from sales orders sharing one table.
type Kind string

const (
	KindPurchase Kind = "PO"
	KindSales    Kind = "SO"
)

// Status is one-directional: Draft -> Posted -> Paid (PO) or Collected (SO).
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusPosted    Status = "Posted"
	StatusPaid      Status = "Paid"
	StatusCollected Status = "Collected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPosted, StatusPaid, StatusCollected:
		return true
	}
	return false
}

// PaymentMethod applies to sales orders.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "Cash"
	MethodBankTransfer PaymentMethod = "BankTransfer"
	MethodCredit       PaymentMethod = "Credit"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodBankTransfer || m == MethodCredit
}

var (
	ErrOrderNotFound       = shared.NotFound("ORDER_NOT_FOUND", "orders: order not found")
	ErrNotDraft            = shared.Precondition("NOT_DRAFT", "orders: order is not a draft")
	ErrInvalidTransition   = shared.Precondition("INVALID_TRANSITION", "orders: status transition not allowed")
	ErrCreditLimitExceeded = shared.Precondition("CREDIT_LIMIT_EXCEEDED", "orders: customer credit limit exceeded")
	ErrEmptyOrder          = shared.Validation("EMPTY_ORDER", "orders: at least one line required")
	ErrInvalidOrderLine    = shared.Validation("INVALID_ORDER_LINE", "orders: invalid order line")
)

// Line is one order item. ProductID is nil for service or expense lines that
// do not move stock.
type Line struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ProductID    *int64          `json:"product_id"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	Amount       decimal.Decimal `json:"amount"`
}

// NetUnitPrice is the unit price after the discount multiplier.
func (l Line) NetUnitPrice() decimal.Decimal {
	return l.UnitPrice.Mul(l.DiscountRate)
}

// LineAmount is round2(quantity x unit_price x discount_rate).
func (l Line) LineAmount() decimal.Decimal {
	return shared.Money(l.Quantity.Mul(l.NetUnitPrice()))
}

// Order is a purchase or sales order with its lines.
type Order struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	Kind           Kind            `json:"kind"`
	CounterpartyID int64           `json:"counterparty_id"`
	Date           time.Time       `json:"date"`
	ExpectedDate   *time.Time      `json:"expected_date"`
	PaymentMethod  PaymentMethod   `json:"payment_method,omitempty"`
	Remark         string          `json:"remark"`
	Status         Status          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	PostedBy       int64           `json:"posted_by,omitempty"`
	PostedAt       *time.Time      `json:"posted_at"`
	JournalID      *int64          `json:"journal_id"`
	CostJournalID  *int64          `json:"cost_journal_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Lines          []Line          `json:"lines,omitempty"`
}

// Reference renders the document number used in journal descriptions.
func (o Order) Reference() string {
	return fmt.Sprintf("%s-%d", o.Kind, o.ID)
}

// Posting carries what the poster writes when an order leaves Draft.
type Posting struct {
	PostedBy      int64
	PostedAt      time.Time
	JournalID     *int64
	CostJournalID *int64
}

func sumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}
