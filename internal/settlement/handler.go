package settlement

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.ListPayments)
		r.Post("/", h.RecordPayment)
		r.Get("/available-orders", h.AvailablePurchaseOrders)
	})
	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", h.ListReceipts)
		r.Post("/", h.RecordReceipt)
		r.Get("/available-orders", h.AvailableSalesOrders)
	})
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in PaymentInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ActorID = tenant.ActorID
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")
	st, err := h.service.RecordPayment(r.Context(), tenant.CompanyID, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "record payment", err)
		return
	}
	httpx.OK(w, http.StatusCreated, st, "payment recorded")
}

func (h *Handler) RecordReceipt(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ReceiptInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ActorID = tenant.ActorID
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")
	st, err := h.service.RecordReceipt(r.Context(), tenant.CompanyID, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "record receipt", err)
		return
	}
	httpx.OK(w, http.StatusCreated, st, "receipt recorded")
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, KindPayment)
}

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, KindReceipt)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, kind Kind) {
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
	window := shared.NewWindow(skip, limit, 50)
	var out []Settlement
	if kind == KindReceipt {
		out, err = h.service.ListReceipts(r.Context(), tenant.CompanyID, window)
	} else {
		out, err = h.service.ListPayments(r.Context(), tenant.CompanyID, window)
	}
	if err != nil {
		httpx.WriteError(w, r, h.logger, "list settlements", err)
		return
	}
	httpx.OK(w, http.StatusOK, out, "")
}

func (h *Handler) AvailablePurchaseOrders(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.AvailablePurchaseOrders(r.Context(), tenant.CompanyID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "available purchase orders", err)
		return
	}
	httpx.OK(w, http.StatusOK, out, "")
}

func (h *Handler) AvailableSalesOrders(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.AvailableSalesOrders(r.Context(), tenant.CompanyID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "available sales orders", err)
		return
	}
	httpx.OK(w, http.StatusOK, out, "")
}
