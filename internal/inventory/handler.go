package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Get("/items/{productID}", h.getItem)
	r.Get("/transactions", h.listTransactions)
	r.Post("/adjustments", h.adjust)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListItems(r.Context(), tenant.CompanyID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "list inventory items", err)
		return
	}
	httpx.OK(w, http.StatusOK, items, "")
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.PathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), tenant.CompanyID, productID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "get inventory item", err)
		return
	}
	httpx.OK(w, http.StatusOK, item, "")
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	skip, err := httpx.QueryInt(r, "skip", 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := TransactionFilter{ProductID: productID, Window: shared.NewWindow(skip, limit, 100)}
	list, err := h.service.ListTransactions(r.Context(), tenant.CompanyID, filter)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "list inventory transactions", err)
		return
	}
	httpx.OK(w, http.StatusOK, list, "")
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AdjustmentInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")
	res, err := h.service.Adjust(r.Context(), tenant.CompanyID, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "inventory adjustment", err)
		return
	}
	httpx.OK(w, http.StatusCreated, res, "adjustment posted")
}
