package bank

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers the bank routes; the router mounts them under /bank.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.ListAccounts)
		r.Post("/", h.CreateAccount)
		r.Get("/{id}", h.ShowAccount)
		r.Put("/{id}", h.UpdateAccount)
		r.Delete("/{id}", h.DeleteAccount)
		r.Get("/{id}/statements", h.ListStatements)
		r.Post("/{id}/statements", h.CreateStatement)
		r.Get("/{id}/reconciliation", h.View)
		r.Post("/{id}/auto-match", h.AutoMatch)
		r.Get("/{id}/balance-report", h.BalanceReport)
	})
	r.Put("/statements/{id}", h.UpdateStatement)
	r.Delete("/statements/{id}", h.DeleteStatement)
	r.Post("/reconciliations", h.CreateReconciliation)
	r.Delete("/reconciliations/{id}", h.DeleteReconciliation)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.ListAccounts(r.Context(), tenant.CompanyID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "list bank accounts", err)
		return
	}
	httpx.OK(w, http.StatusOK, out, "")
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AccountInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.CreateAccount(r.Context(), tenant.CompanyID, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "create bank account", err)
		return
	}
	httpx.OK(w, http.StatusCreated, a, "bank account created")
}

func (h *Handler) ShowAccount(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.GetAccount(r.Context(), tenant.CompanyID, id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "get bank account", err)
		return
	}
	httpx.OK(w, http.StatusOK, a, "")
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AccountInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.UpdateAccount(r.Context(), tenant.CompanyID, id, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "update bank account", err)
		return
	}
	httpx.OK(w, http.StatusOK, a, "bank account updated")
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAccount(r.Context(), tenant.CompanyID, id); err != nil {
		httpx.WriteError(w, r, h.logger, "delete bank account", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int64{"id": id}, "bank account deleted")
}

func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rg, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.ListStatements(r.Context(), tenant.CompanyID, id, rg)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "list statements", err)
		return
	}
	httpx.OK(w, http.StatusOK, out, "")
}

func (h *Handler) CreateStatement(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in StatementInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.CreateStatement(r.Context(), tenant.CompanyID, id, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "create statement", err)
		return
	}
	httpx.OK(w, http.StatusCreated, st, "statement created")
}

func (h *Handler) UpdateStatement(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in StatementInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.UpdateStatement(r.Context(), tenant.CompanyID, id, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "update statement", err)
		return
	}
	httpx.OK(w, http.StatusOK, st, "statement updated")
}

func (h *Handler) DeleteStatement(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteStatement(r.Context(), tenant.CompanyID, id); err != nil {
		httpx.WriteError(w, r, h.logger, "delete statement", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int64{"id": id}, "statement deleted")
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rg, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.View(r.Context(), tenant.CompanyID, id, rg)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "reconciliation view", err)
		return
	}
	httpx.OK(w, http.StatusOK, view, "")
}

func (h *Handler) AutoMatch(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rg, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.AutoMatch(r.Context(), tenant.CompanyID, id, rg, tenant.ActorID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "auto-match", err)
		return
	}
	httpx.OK(w, http.StatusOK, res, "auto-match finished")
}

func (h *Handler) BalanceReport(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of", time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.service.BalanceReport(r.Context(), tenant.CompanyID, id, asOf)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "bank balance report", err)
		return
	}
	httpx.OK(w, http.StatusOK, rep, "")
}

func (h *Handler) CreateReconciliation(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ReconciliationInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ActorID = tenant.ActorID
	rc, err := h.service.CreateReconciliation(r.Context(), tenant.CompanyID, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "create reconciliation", err)
		return
	}
	httpx.OK(w, http.StatusCreated, rc, "reconciliation created")
}

func (h *Handler) DeleteReconciliation(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteReconciliation(r.Context(), tenant.CompanyID, id, tenant.ActorID); err != nil {
		httpx.WriteError(w, r, h.logger, "delete reconciliation", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int64{"id": id}, "reconciliation deleted")
}

func dateRange(r *http.Request) (journals.Range, error) {
	start, err := httpx.QueryDate(r, "start", time.Time{})
	if err != nil {
		return journals.Range{}, err
	}
	end, err := httpx.QueryDate(r, "end", time.Time{})
	if err != nil {
		return journals.Range{}, err
	}
	return journals.Range{From: start, To: end}, nil
}
