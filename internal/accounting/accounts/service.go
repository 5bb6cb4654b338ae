package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// maxDepth bounds the parent walk when validating a new child.
const maxDepth = 64

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

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

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create adds an account to the tenant chart.
func (s *Service) Create(ctx context.Context, companyID int64, in CreateInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" || in.Name == "" {
		return Account{}, internalShared.Invalidf("accounting: code and name are required")
	}
	if !in.Type.Valid() {
		return Account{}, internalShared.Invalidf("accounting: unknown account type %q", in.Type)
	}
	if in.NormalBalance == "" {
		in.NormalBalance = DefaultNormalBalance(in.Type)
	}
	if !in.NormalBalance.Valid() {
		return Account{}, internalShared.Invalidf("accounting: unknown normal balance %q", in.NormalBalance)
	}

	now := s.now()
	account := Account{
		CompanyID:     companyID,
		Code:          in.Code,
		Name:          in.Name,
		Type:          in.Type,
		NormalBalance: in.NormalBalance,
		IsCore:        in.IsCore,
		Path:          in.Code,
		Remark:        in.Remark,
		CreatedAt:     now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.AccountByCode(ctx, companyID, in.Code); err == nil {
			return shared.ErrDuplicateCode
		} else if !errors.Is(err, shared.ErrAccountNotFound) {
			return err
		}
		if in.ParentID != nil {
			parent, err := tx.AccountByID(ctx, companyID, *in.ParentID)
			if err != nil {
				if errors.Is(err, shared.ErrAccountNotFound) {
					return shared.ErrParentNotFound
				}
				return err
			}
			if parent.Type != in.Type {
				return fmt.Errorf("%w: parent %s is %s", shared.ErrTypeMismatch, parent.Code, parent.Type)
			}
			if err := ensureAcyclic(ctx, tx, parent); err != nil {
				return err
			}
			account.ParentID = &parent.ID
			account.IsCore = false
			account.Path = parent.Path + "/" + in.Code
		}
		inserted, err := tx.InsertAccount(ctx, account)
		if err != nil {
			return err
		}
		account = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "account.create", account, map[string]any{"code": account.Code, "type": account.Type})
	return account, nil
}

// ensureAcyclic walks from parent to its root and fails when the chain
// revisits an account or never terminates.
func ensureAcyclic(ctx context.Context, tx TxRepository, parent Account) error {
	seen := map[int64]bool{parent.ID: true}
	current := parent
	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= maxDepth || seen[*current.ParentID] {
			return shared.ErrCycle
		}
		next, err := tx.AccountByID(ctx, parent.CompanyID, *current.ParentID)
		if err != nil {
			if errors.Is(err, shared.ErrAccountNotFound) {
				return nil
			}
			return err
		}
		seen[next.ID] = true
		current = next
	}
	return nil
}

// Update changes the name or remark of a non-core account.
func (s *Service) Update(ctx context.Context, companyID, id int64, in UpdateInput) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.AccountByID(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.IsCore {
			return shared.ErrCoreAccountProtected
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return internalShared.Invalidf("accounting: name cannot be empty")
			}
			current.Name = name
		}
		if in.Remark != nil {
			current.Remark = *in.Remark
		}
		current.UpdatedAt = s.now()
		if err := tx.UpdateAccount(ctx, current); err != nil {
			return err
		}
		account = current
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "account.update", account, map[string]any{"name": account.Name})
	return account, nil
}

// Delete removes an unused, non-core account.
func (s *Service) Delete(ctx context.Context, companyID, id int64) error {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.AccountByID(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.IsCore {
			return shared.ErrCoreAccountProtected
		}
		usage, err := tx.AccountUsage(ctx, companyID, id)
		if err != nil {
			return err
		}
		if usage.Children > 0 || usage.Postings > 0 {
			return fmt.Errorf("%w: %d children, %d postings", shared.ErrHasPostingsOrChildren, usage.Children, usage.Postings)
		}
		account = current
		return tx.DeleteAccount(ctx, companyID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "account.delete", account, map[string]any{"code": account.Code})
	return nil
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID int64, parentID *int64) ([]Account, error) {
	return s.repo.ListAccounts(ctx, companyID, parentID)
}

// Tree returns the whole tenant chart arranged by parent.
func (s *Service) Tree(ctx context.Context, companyID int64) (Tree, error) {
	all, err := s.repo.ListAccounts(ctx, companyID, nil)
	if err != nil {
		return Tree{}, err
	}
	return BuildTree(all), nil
}

// SeedDefaultChart inserts the standard core chart, skipping codes that
// already exist. It returns the number of accounts created.
func (s *Service) SeedDefaultChart(ctx context.Context, companyID int64) (int, error) {
	created := 0
	now := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created = 0
		for _, def := range DefaultChart() {
			if _, err := tx.AccountByCode(ctx, companyID, def.Code); err == nil {
				continue
			} else if !errors.Is(err, shared.ErrAccountNotFound) {
				return err
			}
			_, err := tx.InsertAccount(ctx, Account{
				CompanyID:     companyID,
				Code:          def.Code,
				Name:          def.Name,
				Type:          def.Type,
				NormalBalance: DefaultNormalBalance(def.Type),
				IsCore:        true,
				Path:          def.Code,
				CreatedAt:     now,
			})
			if err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "chart of accounts seeded", slog.Int64("company_id", companyID), slog.Int("created", created))
	return created, nil
}

func (s *Service) record(ctx context.Context, action string, account Account, meta map[string]any) {
	if s.audit == nil {
		return
	}
	tenant, _ := internalShared.TenantFromContext(ctx)
	if err := s.audit.Record(ctx, internalShared.AuditLog{
		CompanyID: account.CompanyID,
		ActorID:   tenant.ActorID,
		Action:    action,
		Entity:    "account",
		EntityID:  fmt.Sprintf("%d", account.ID),
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
