package partners

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler serves one partner kind; the router mounts a customer and a
// supplier instance.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	kind     Kind
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, kind Kind) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, kind: kind}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
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
	list, err := h.service.List(r.Context(), tenant.CompanyID, h.kind, shared.NewWindow(skip, limit, 50))
	if err != nil {
		httpx.WriteError(w, r, h.logger, "list partners", err)
		return
	}
	httpx.OK(w, http.StatusOK, list, "")
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), tenant.CompanyID, h.kind, req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "create partner", err)
		return
	}
	httpx.OK(w, http.StatusCreated, p, string(h.kind)+" created")
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.service.Detail(r.Context(), tenant.CompanyID, h.kind, id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "get partner", err)
		return
	}
	httpx.OK(w, http.StatusOK, p, "")
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), tenant.CompanyID, h.kind, id, req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "update partner", err)
		return
	}
	httpx.OK(w, http.StatusOK, p, string(h.kind)+" updated")
}
