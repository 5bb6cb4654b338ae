package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/tree", h.Tree)
	r.Post("/seed", h.Seed)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	parentID, err := httpx.QueryInt64(r, "parent_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), tenant.CompanyID, parentID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "list accounts", err)
		return
	}
	if list == nil {
		list = []Account{}
	}
	httpx.OK(w, http.StatusOK, list, "")
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tree, err := h.service.Tree(r.Context(), tenant.CompanyID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "account tree", err)
		return
	}
	httpx.OK(w, http.StatusOK, tree, "")
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
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
	account, err := h.service.Get(r.Context(), tenant.CompanyID, id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "get account", err)
		return
	}
	httpx.OK(w, http.StatusOK, account, "")
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CreateInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.Create(r.Context(), tenant.CompanyID, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "create account", err)
		return
	}
	httpx.OK(w, http.StatusCreated, account, "account created")
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
	var in UpdateInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.Update(r.Context(), tenant.CompanyID, id, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "update account", err)
		return
	}
	httpx.OK(w, http.StatusOK, account, "account updated")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.Delete(r.Context(), tenant.CompanyID, id); err != nil {
		httpx.WriteError(w, r, h.logger, "delete account", err)
		return
	}
	httpx.OK(w, http.StatusOK, nil, "account deleted")
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.SeedDefaultChart(r.Context(), tenant.CompanyID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "seed chart", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int{"created": created}, "chart seeded")
}
