package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the statements; the router mounts them under /reports.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance-sheet", h.BalanceSheet)
	r.Get("/income-statement", h.IncomeStatement)
	r.Get("/cash-flow", h.CashFlow)
	r.Get("/trial-balance", h.TrialBalance)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of", time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	vm, err := h.service.BalanceSheet(r.Context(), tenant.CompanyID, asOf)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "balance sheet", err)
		return
	}
	httpx.OK(w, http.StatusOK, vm, "")
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, "income statement", func(r *http.Request, companyID int64, start, end time.Time) (any, error) {
		return h.service.IncomeStatement(r.Context(), companyID, start, end)
	})
}

func (h *Handler) CashFlow(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, "cash flow", func(r *http.Request, companyID int64, start, end time.Time) (any, error) {
		return h.service.CashFlow(r.Context(), companyID, start, end)
	})
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, "trial balance", func(r *http.Request, companyID int64, start, end time.Time) (any, error) {
		return h.service.TrialBalance(r.Context(), companyID, start, end)
	})
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request, op string, build func(*http.Request, int64, time.Time, time.Time) (any, error)) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := httpx.QueryDate(r, "start", time.Time{})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := httpx.QueryDate(r, "end", time.Time{})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	vm, err := build(r, tenant.CompanyID, start, end)
	if err != nil {
		httpx.WriteError(w, r, h.logger, op, err)
		return
	}
	httpx.OK(w, http.StatusOK, vm, "")
}
