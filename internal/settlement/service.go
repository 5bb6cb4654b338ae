package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type MappingResolver interface {
	Current(ctx context.Context, companyID int64) (mappings.Set, error)
}

type JournalRecorder interface {
	Record(ctx context.Context, tx journals.TxRepository, companyID int64, in journals.CreateInput) (journals.Entry, error)
}

// Service records payments against purchase orders and receipts against
// sales orders, each with exactly one journal entry.
type Service struct {
	repo        Repository
	mappings    MappingResolver
	journal     JournalRecorder
	locker      shared.Locker
	idempotency shared.IdempotencyPort
	audit       AuditPort
	listener    shared.LedgerListener
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(repo Repository, mappings MappingResolver, journal JournalRecorder, locker shared.Locker, idem shared.IdempotencyPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = shared.NoopLocker{}
	}
	return &Service{
		repo:        repo,
		mappings:    mappings,
		journal:     journal,
		locker:      locker,
		idempotency: idem,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) WithListener(l shared.LedgerListener) {
	s.listener = l
}

// RecordPayment pays a supplier. A linked purchase order must be Posted and
// is paid in one go: the amount must match the unpaid total.
func (s *Service) RecordPayment(ctx context.Context, companyID int64, in PaymentInput) (Settlement, error) {
	return s.settle(ctx, companyID, request{
		kind:           KindPayment,
		orderID:        in.PurchaseOrderID,
		date:           in.Date,
		amount:         in.Amount,
		method:         in.Method,
		remark:         in.Remark,
		actorID:        in.ActorID,
		idempotencyKey: in.IdempotencyKey,
	})
}

// RecordReceipt collects from a customer. Receipts may be partial; the
// linked sales order becomes Collected once nothing is outstanding.
func (s *Service) RecordReceipt(ctx context.Context, companyID int64, in ReceiptInput) (Settlement, error) {
	return s.settle(ctx, companyID, request{
		kind:           KindReceipt,
		orderID:        in.SalesOrderID,
		date:           in.Date,
		amount:         in.Amount,
		method:         in.Method,
		remark:         in.Remark,
		actorID:        in.ActorID,
		idempotencyKey: in.IdempotencyKey,
	})
}

func (req request) validate() error {
	if !req.amount.IsPositive() || !shared.HasMoneyPrecision(req.amount) {
		return ErrInvalidAmount
	}
	if !req.method.Valid() {
		return shared.Invalidf("settlement: unknown method %q", req.method)
	}
	if req.date.IsZero() {
		return shared.Invalidf("settlement: date required")
	}
	if req.actorID == 0 {
		return accshared.ErrPostedByRequired
	}
	return nil
}

func (s *Service) settle(ctx context.Context, companyID int64, req request) (Settlement, error) {
	req.remark = strings.TrimSpace(req.remark)
	if err := req.validate(); err != nil {
		return Settlement{}, err
	}
	set, err := s.mappings.Current(ctx, companyID)
	if err != nil {
		return Settlement{}, err
	}

	key := ""
	if req.idempotencyKey != "" && s.idempotency != nil {
		key = fmt.Sprintf("settlement:%s:%d:%s", req.kind, companyID, req.idempotencyKey)
		if err := s.idempotency.CheckAndInsert(ctx, key, "settlement"); err != nil {
			return Settlement{}, err
		}
	}

	var out Settlement
	run := func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			recorded, err := s.apply(ctx, tx, companyID, set, req)
			if err != nil {
				return err
			}
			out = recorded
			return nil
		})
	}
	if req.orderID != nil {
		err = s.locker.WithLock(ctx, shared.OrderLockKey(string(req.kind.OrderKind()), companyID, *req.orderID), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		s.logger.Info("settlement rejected", slog.String("kind", string(req.kind)), slog.String("code", shared.CodeOf(err)), slog.Any("error", err))
		return Settlement{}, err
	}
	if s.listener != nil {
		s.listener.LedgerChanged(ctx, companyID)
	}
	s.record(ctx, out)
	return out, nil
}

// apply runs inside the transaction: guard the order, insert the settlement,
// post its journal and advance the order when fully settled.
func (s *Service) apply(ctx context.Context, tx TxRepository, companyID int64, set mappings.Set, req request) (Settlement, error) {
	at := s.now()
	settledInFull := false
	var order orders.Order
	if req.orderID != nil {
		var err error
		order, err = tx.OrderForUpdate(ctx, companyID, req.kind.OrderKind(), *req.orderID)
		if err != nil {
			return Settlement{}, err
		}
		settledInFull, err = s.check(ctx, tx, companyID, req, order)
		if err != nil {
			return Settlement{}, err
		}
	}

	counter := set.Codes.Payable
	if req.kind == KindReceipt {
		counter = set.Codes.Receivable
	}
	cashCode := set.SettlementCode(string(req.method))
	accts, err := journals.ResolveCodes(ctx, tx, companyID, counter, cashCode)
	if err != nil {
		return Settlement{}, err
	}

	st, err := tx.InsertSettlement(ctx, Settlement{
		CompanyID: companyID,
		Kind:      req.kind,
		OrderID:   req.orderID,
		Date:      req.date.Time,
		Amount:    req.amount,
		Method:    req.method,
		Remark:    req.remark,
		CreatedBy: req.actorID,
		CreatedAt: at,
	})
	if err != nil {
		return Settlement{}, err
	}

	cash := accts[cashCode].ID
	other := accts[counter].ID
	memo := description(req, order)
	lines := []journals.LineInput{
		{AccountID: other, Debit: req.amount, Memo: memo},
		{AccountID: cash, Credit: req.amount, Memo: memo},
	}
	source := journals.SourcePayment
	if req.kind == KindReceipt {
		lines = []journals.LineInput{
			{AccountID: cash, Debit: req.amount, Memo: memo},
			{AccountID: other, Credit: req.amount, Memo: memo},
		}
		source = journals.SourceReceipt
	}
	entry, err := s.journal.Record(ctx, tx, companyID, journals.CreateInput{
		Date:        req.date,
		Description: memo,
		SourceType:  source,
		SourceID:    &st.ID,
		PostedBy:    req.actorID,
		Lines:       lines,
	})
	if err != nil {
		return Settlement{}, err
	}
	if err := tx.AttachSettlementJournal(ctx, companyID, st.ID, entry.ID); err != nil {
		return Settlement{}, err
	}
	st.JournalID = entry.ID

	if settledInFull {
		if req.kind == KindPayment {
			err = orders.MarkPaid(ctx, tx, companyID, order.ID, at)
		} else {
			err = orders.MarkCollected(ctx, tx, companyID, order.ID, at)
		}
		if err != nil {
			return Settlement{}, err
		}
	}
	return st, nil
}

// check validates the amount against what is still open on the order and
// reports whether this settlement closes it.
func (s *Service) check(ctx context.Context, tx TxRepository, companyID int64, req request, order orders.Order) (bool, error) {
	switch order.Status {
	case orders.StatusPosted:
	case orders.StatusPaid, orders.StatusCollected:
		return false, fmt.Errorf("%w: %s is %s", ErrAlreadySettled, order.Reference(), order.Status)
	default:
		return false, fmt.Errorf("%w: %s is %s", ErrOrderNotPosted, order.Reference(), order.Status)
	}
	settled, err := tx.SettledAmount(ctx, companyID, req.kind, order.ID)
	if err != nil {
		return false, err
	}
	open := Outstanding(order.Total, settled)
	if !open.IsPositive() {
		return false, fmt.Errorf("%w: %s has nothing outstanding", ErrAlreadySettled, order.Reference())
	}
	if req.kind == KindPayment {
		if !shared.WithinMinorUnit(req.amount, open) {
			return false, fmt.Errorf("%w: %s unpaid %s, amount %s", ErrMustPayInFull, order.Reference(), open.StringFixed(2), req.amount.StringFixed(2))
		}
		return true, nil
	}
	if req.amount.GreaterThan(open) {
		return false, fmt.Errorf("%w: %s outstanding %s, amount %s", ErrOverReceipt, order.Reference(), open.StringFixed(2), req.amount.StringFixed(2))
	}
	return shared.MoneyEqual(req.amount, open), nil
}

func description(req request, order orders.Order) string {
	label := "Supplier payment"
	if req.kind == KindReceipt {
		label = "Customer receipt"
	}
	if req.orderID != nil {
		label += " " + order.Reference()
	}
	if req.remark != "" {
		label += ": " + req.remark
	}
	return label
}

func (s *Service) ListPayments(ctx context.Context, companyID int64, window shared.Window) ([]Settlement, error) {
	return s.list(ctx, companyID, KindPayment, window)
}

func (s *Service) ListReceipts(ctx context.Context, companyID int64, window shared.Window) ([]Settlement, error) {
	return s.list(ctx, companyID, KindReceipt, window)
}

func (s *Service) list(ctx context.Context, companyID int64, kind Kind, window shared.Window) ([]Settlement, error) {
	if window.Limit <= 0 {
		window = shared.NewWindow(window.Skip, 0, 50)
	}
	out, err := s.repo.ListSettlements(ctx, companyID, kind, window)
	if err != nil {
		return nil, fmt.Errorf("settlement: list %s: %w", strings.ToLower(string(kind)), err)
	}
	if out == nil {
		out = []Settlement{}
	}
	return out, nil
}

// AvailablePurchaseOrders lists posted purchase orders still awaiting payment.
func (s *Service) AvailablePurchaseOrders(ctx context.Context, companyID int64) ([]OpenOrder, error) {
	return s.open(ctx, companyID, KindPayment)
}

// AvailableSalesOrders lists posted sales orders with an outstanding balance.
func (s *Service) AvailableSalesOrders(ctx context.Context, companyID int64) ([]OpenOrder, error) {
	return s.open(ctx, companyID, KindReceipt)
}

func (s *Service) open(ctx context.Context, companyID int64, kind Kind) ([]OpenOrder, error) {
	out, err := s.repo.OpenOrders(ctx, companyID, kind)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []OpenOrder{}
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, st Settlement) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"amount":     st.Amount.StringFixed(2),
		"method":     string(st.Method),
		"journal_id": st.JournalID,
	}
	if st.OrderID != nil {
		meta["order_id"] = *st.OrderID
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: st.CompanyID,
		ActorID:   st.CreatedBy,
		Action:    "settlement." + strings.ToLower(string(st.Kind)),
		Entity:    "settlement",
		EntityID:  fmt.Sprintf("%d", st.ID),
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.Any("error", err))
	}
}

// Outstanding is the open amount of an order after settled has been applied.
func Outstanding(total, settled decimal.Decimal) decimal.Decimal {
	open := total.Sub(settled)
	if open.IsNegative() {
		return decimal.Zero
	}
	return open
}
