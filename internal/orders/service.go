package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PartnerReader verifies counterparties when drafts are written.
type PartnerReader interface {
	GetPartner(ctx context.Context, companyID int64, kind partners.Kind, id int64) (partners.Partner, error)
}

// MappingResolver returns the tenant's authoritative account mapping.
type MappingResolver interface {
	Current(ctx context.Context, companyID int64) (mappings.Set, error)
}

// JournalRecorder posts generated entries inside the caller's transaction.
type JournalRecorder interface {
	Record(ctx context.Context, tx journals.TxRepository, companyID int64, in journals.CreateInput) (journals.Entry, error)
}

// Metrics counts posting outcomes. A nil value disables counting.
type Metrics interface {
	ObservePosting(kind string, err error)
}

type Service struct {
	repo     Repository
	partners PartnerReader
	mappings MappingResolver
	journal  JournalRecorder
	audit    AuditPort
	listener shared.LedgerListener
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, partners PartnerReader, mappings MappingResolver, journal JournalRecorder, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, partners: partners, mappings: mappings, journal: journal, audit: audit, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithListener registers the callback notified after a posting commits.
func (s *Service) WithListener(l shared.LedgerListener) {
	s.listener = l
}

func (s *Service) WithMetrics(m Metrics) {
	s.metrics = m
}

func counterpartyKind(kind Kind) partners.Kind {
	if kind == KindSales {
		return partners.KindCustomer
	}
	return partners.KindSupplier
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, companyID int64, in OrderInput) (Order, error) {
	return s.create(ctx, companyID, KindPurchase, in)
}

func (s *Service) CreateSalesOrder(ctx context.Context, companyID int64, in OrderInput) (Order, error) {
	return s.create(ctx, companyID, KindSales, in)
}

func (s *Service) UpdatePurchaseOrder(ctx context.Context, companyID, id int64, in OrderInput) (Order, error) {
	return s.update(ctx, companyID, KindPurchase, id, in)
}

func (s *Service) UpdateSalesOrder(ctx context.Context, companyID, id int64, in OrderInput) (Order, error) {
	return s.update(ctx, companyID, KindSales, id, in)
}

func (s *Service) DeletePurchaseOrder(ctx context.Context, companyID, id int64) error {
	return s.delete(ctx, companyID, KindPurchase, id)
}

func (s *Service) DeleteSalesOrder(ctx context.Context, companyID, id int64) error {
	return s.delete(ctx, companyID, KindSales, id)
}

func (s *Service) Get(ctx context.Context, companyID int64, kind Kind, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, companyID, kind, id)
}

func (s *Service) List(ctx context.Context, companyID int64, kind Kind, filter Filter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Invalidf("orders: unknown status %q", filter.Status)
	}
	if filter.Window.Limit <= 0 {
		filter.Window = shared.NewWindow(filter.Window.Skip, 0, 50)
	}
	out, err := s.repo.ListOrders(ctx, companyID, kind, filter)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Order{}
	}
	return out, nil
}

// CustomerStats counts the customer's sales orders by status and derives
// current debt and the credit still available under the limit.
func (s *Service) CustomerStats(ctx context.Context, customer partners.Partner) (partners.OrderStats, error) {
	totals, err := s.repo.TotalsByStatus(ctx, customer.CompanyID, KindSales, customer.ID)
	if err != nil {
		return partners.OrderStats{}, err
	}
	stats := partners.OrderStats{TotalSales: decimal.Zero, AvailableCredit: decimal.Zero}
	for _, row := range totals {
		stats.TotalOrders += row.Orders
		switch row.Status {
		case StatusDraft:
			stats.DraftCount = row.Orders
		case StatusPosted:
			stats.PostedCount = row.Orders
		case StatusCollected:
			stats.CollectedCount = row.Orders
		}
		if row.Status == StatusPosted || row.Status == StatusCollected {
			stats.TotalSales = stats.TotalSales.Add(row.Total)
		}
	}
	debt, err := s.repo.CreditExposure(ctx, customer.CompanyID, customer.ID, 0)
	if err != nil {
		return partners.OrderStats{}, err
	}
	stats.CurrentDebt = shared.Money(debt)
	if customer.CreditLimit.IsPositive() {
		stats.AvailableCredit = shared.Money(customer.CreditLimit.Sub(debt))
	}
	stats.TotalSales = shared.Money(stats.TotalSales)
	return stats, nil
}

func (s *Service) draft(ctx context.Context, companyID int64, kind Kind, in OrderInput) (Order, error) {
	if err := in.validate(kind); err != nil {
		return Order{}, err
	}
	if _, err := s.partners.GetPartner(ctx, companyID, counterpartyKind(kind), in.CounterpartyID); err != nil {
		return Order{}, err
	}
	lines := in.lines()
	o := Order{
		CompanyID:      companyID,
		Kind:           kind,
		CounterpartyID: in.CounterpartyID,
		Date:           in.Date.Time,
		Remark:         strings.TrimSpace(in.Remark),
		Status:         StatusDraft,
		Total:          sumLines(lines),
		Lines:          lines,
	}
	if in.ExpectedDate != nil && !in.ExpectedDate.IsZero() {
		d := in.ExpectedDate.Time
		o.ExpectedDate = &d
	}
	if kind == KindSales {
		o.PaymentMethod = in.PaymentMethod
	}
	return o, nil
}

func (s *Service) create(ctx context.Context, companyID int64, kind Kind, in OrderInput) (Order, error) {
	o, err := s.draft(ctx, companyID, kind, in)
	if err != nil {
		return Order{}, err
	}
	o.CreatedAt = s.now()
	var created Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if o.Kind == KindSales && o.PaymentMethod == MethodCredit {
			if err := checkCredit(ctx, tx, o); err != nil {
				return err
			}
		}
		inserted, err := tx.InsertOrder(ctx, o)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, "order.create", created, nil)
	return created, nil
}

func (s *Service) update(ctx context.Context, companyID int64, kind Kind, id int64, in OrderInput) (Order, error) {
	o, err := s.draft(ctx, companyID, kind, in)
	if err != nil {
		return Order{}, err
	}
	var updated Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.OrderForUpdate(ctx, companyID, kind, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: %s is %s", ErrNotDraft, current.Reference(), current.Status)
		}
		o.ID = id
		o.CreatedAt = current.CreatedAt
		o.UpdatedAt = s.now()
		replaced, err := tx.ReplaceOrder(ctx, o)
		if err != nil {
			return err
		}
		updated = replaced
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, "order.update", updated, nil)
	return updated, nil
}

func (s *Service) delete(ctx context.Context, companyID int64, kind Kind, id int64) error {
	var deleted Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.OrderForUpdate(ctx, companyID, kind, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: %s is %s", ErrNotDraft, current.Reference(), current.Status)
		}
		deleted = current
		return tx.DeleteOrder(ctx, companyID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "order.delete", deleted, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, o Order, meta map[string]any) {
	if s.audit == nil {
		return
	}
	tenant, _ := shared.TenantFromContext(ctx)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["kind"] = o.Kind
	meta["total"] = o.Total.StringFixed(2)
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: o.CompanyID,
		ActorID:   tenant.ActorID,
		Action:    action,
		Entity:    "order",
		EntityID:  fmt.Sprintf("%d", o.ID),
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
