package mappings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log base.AuditLog) error
}

// Service resolves the authoritative mapping set per tenant.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// Current returns the latest stored version, or the defaults (version 0)
// when the tenant never stored one.
func (s *Service) Current(ctx context.Context, companyID int64) (Set, error) {
	set, err := s.repo.Latest(ctx, companyID)
	if errors.Is(err, shared.ErrMappingNotFound) {
		def := Defaults()
		def.CompanyID = companyID
		return def, nil
	}
	if err != nil {
		return Set{}, fmt.Errorf("mappings: load latest: %w", err)
	}
	return set, nil
}

// PutInput carries a full replacement mapping.
type PutInput struct {
	Codes  Codes       `json:"codes"`
	Report ReportCodes `json:"report"`
}

// Put stores a new version; earlier versions stay for audit.
func (s *Service) Put(ctx context.Context, companyID int64, in PutInput) (Set, error) {
	tenant, _ := base.TenantFromContext(ctx)
	set := Set{CompanyID: companyID, Codes: in.Codes, Report: in.Report, CreatedBy: tenant.ActorID, CreatedAt: s.now()}
	if err := set.Validate(); err != nil {
		return Set{}, err
	}
	stored, err := s.repo.Insert(ctx, set)
	if err != nil {
		return Set{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, base.AuditLog{
			CompanyID: companyID,
			ActorID:   tenant.ActorID,
			Action:    "mapping.put",
			Entity:    "account_mapping",
			EntityID:  fmt.Sprintf("%d", stored.Version),
			At:        stored.CreatedAt,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit record failed", slog.Any("error", err))
		}
	}
	return stored, nil
}
