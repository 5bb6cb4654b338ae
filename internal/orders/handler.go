package orders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler serves one order kind; the router mounts it twice.
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
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/post", h.Post)
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
	filter := Filter{Status: Status(r.URL.Query().Get("status")), Window: shared.NewWindow(skip, limit, 50)}
	list, err := h.service.List(r.Context(), tenant.CompanyID, h.kind, filter)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "list orders", err)
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
	var in OrderInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var o Order
	if h.kind == KindSales {
		o, err = h.service.CreateSalesOrder(r.Context(), tenant.CompanyID, in)
	} else {
		o, err = h.service.CreatePurchaseOrder(r.Context(), tenant.CompanyID, in)
	}
	if err != nil {
		httpx.WriteError(w, r, h.logger, "create order", err)
		return
	}
	httpx.OK(w, http.StatusCreated, o, "order created")
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
	o, err := h.service.Get(r.Context(), tenant.CompanyID, h.kind, id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "get order", err)
		return
	}
	httpx.OK(w, http.StatusOK, o, "")
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
	var in OrderInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var o Order
	if h.kind == KindSales {
		o, err = h.service.UpdateSalesOrder(r.Context(), tenant.CompanyID, id, in)
	} else {
		o, err = h.service.UpdatePurchaseOrder(r.Context(), tenant.CompanyID, id, in)
	}
	if err != nil {
		httpx.WriteError(w, r, h.logger, "update order", err)
		return
	}
	httpx.OK(w, http.StatusOK, o, "order updated")
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
	if h.kind == KindSales {
		err = h.service.DeleteSalesOrder(r.Context(), tenant.CompanyID, id)
	} else {
		err = h.service.DeletePurchaseOrder(r.Context(), tenant.CompanyID, id)
	}
	if err != nil {
		httpx.WriteError(w, r, h.logger, "delete order", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int64{"id": id}, "order deleted")
}

// Post accepts an optional body; purchase orders may route products to
// warehouse locations.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
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
	var in PostInput
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	in.ActorID = tenant.ActorID
	var o Order
	if h.kind == KindSales {
		o, err = h.service.PostSalesOrder(r.Context(), tenant.CompanyID, id, in.ActorID)
	} else {
		o, err = h.service.PostPurchaseOrder(r.Context(), tenant.CompanyID, id, in)
	}
	if err != nil {
		httpx.WriteError(w, r, h.logger, "post order", err)
		return
	}
	httpx.OK(w, http.StatusOK, o, "order posted")
}
