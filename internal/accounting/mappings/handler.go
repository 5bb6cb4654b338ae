package mappings

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
	r.Get("/", h.Get)
	r.Put("/", h.Put)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	set, err := h.service.Current(r.Context(), tenant.CompanyID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "get mapping", err)
		return
	}
	httpx.OK(w, http.StatusOK, set, "")
}

func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in PutInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	set, err := h.service.Put(r.Context(), tenant.CompanyID, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "put mapping", err)
		return
	}
	httpx.OK(w, http.StatusOK, set, "mapping saved")
}
