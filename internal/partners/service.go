package partners

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StatsSource computes a customer's order statistics.
type StatsSource interface {
	CustomerStats(ctx context.Context, customer Partner) (OrderStats, error)
}

type Service struct {
	repo   Repository
	audit  AuditPort
	stats  StatsSource
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, companyID int64, kind Kind, req CreateRequest) (Partner, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Partner{}, shared.Invalidf("partners: name required")
	}
	if req.CreditLimit.IsNegative() {
		return Partner{}, shared.Invalidf("partners: credit limit must not be negative")
	}
	if kind == KindSupplier {
		req.CreditLimit = decimal.Zero
	}
	now := s.now()
	p, err := s.repo.InsertPartner(ctx, Partner{
		CompanyID:   companyID,
		Kind:        kind,
		Name:        name,
		Contact:     strings.TrimSpace(req.Contact),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Address:     strings.TrimSpace(req.Address),
		CreditLimit: shared.Money(req.CreditLimit),
		CreatedAt:   now,
	})
	if err != nil {
		return Partner{}, err
	}
	s.record(ctx, "partner.create", p)
	return p, nil
}

func (s *Service) Update(ctx context.Context, companyID int64, kind Kind, id int64, req UpdateRequest) (Partner, error) {
	p, err := s.repo.GetPartner(ctx, companyID, kind, id)
	if err != nil {
		return Partner{}, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return Partner{}, shared.Invalidf("partners: name required")
		}
		p.Name = name
	}
	if req.Contact != nil {
		p.Contact = strings.TrimSpace(*req.Contact)
	}
	if req.Phone != nil {
		p.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		p.Email = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		p.Address = strings.TrimSpace(*req.Address)
	}
	if req.CreditLimit != nil && kind == KindCustomer {
		if req.CreditLimit.IsNegative() {
			return Partner{}, shared.Invalidf("partners: credit limit must not be negative")
		}
		p.CreditLimit = shared.Money(*req.CreditLimit)
	}
	p.UpdatedAt = s.now()
	if err := s.repo.UpdatePartner(ctx, p); err != nil {
		return Partner{}, err
	}
	s.record(ctx, "partner.update", p)
	return p, nil
}

func (s *Service) Get(ctx context.Context, companyID int64, kind Kind, id int64) (Partner, error) {
	return s.repo.GetPartner(ctx, companyID, kind, id)
}

// WithStats attaches the source of customer order statistics.
func (s *Service) WithStats(src StatsSource) {
	s.stats = src
}

// Detail loads the partner and, for customers, its order statistics.
func (s *Service) Detail(ctx context.Context, companyID int64, kind Kind, id int64) (Detail, error) {
	p, err := s.repo.GetPartner(ctx, companyID, kind, id)
	if err != nil {
		return Detail{}, err
	}
	out := Detail{Partner: p}
	if kind != KindCustomer || s.stats == nil {
		return out, nil
	}
	stats, err := s.stats.CustomerStats(ctx, p)
	if err != nil {
		return Detail{}, err
	}
	out.OrderStats = &stats
	return out, nil
}

func (s *Service) List(ctx context.Context, companyID int64, kind Kind, window shared.Window) ([]Partner, error) {
	out, err := s.repo.ListPartners(ctx, companyID, kind, window)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Partner{}
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, action string, p Partner) {
	if s.audit == nil {
		return
	}
	tenant, _ := shared.TenantFromContext(ctx)
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: p.CompanyID,
		ActorID:   tenant.ActorID,
		Action:    action,
		Entity:    string(p.Kind),
		EntityID:  fmt.Sprintf("%d", p.ID),
		Meta:      map[string]any{"name": p.Name},
		At:        s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
