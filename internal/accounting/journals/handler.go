package journals

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	window, err := pageWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.List(r.Context(), tenant.CompanyID, window)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "list journals", err)
		return
	}
	httpx.OK(w, http.StatusOK, res, "")
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
	if in.Post && in.PostedBy == 0 {
		in.PostedBy = tenant.ActorID
	}
	if in.SourceType == "" {
		in.SourceType = SourceManual
	}
	entry, err := h.service.Create(r.Context(), tenant.CompanyID, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "create journal", err)
		return
	}
	httpx.OK(w, http.StatusCreated, entry, "journal created")
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
	entry, err := h.service.Get(r.Context(), tenant.CompanyID, id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "get journal", err)
		return
	}
	httpx.OK(w, http.StatusOK, entry, "")
}

type postRequest struct {
	PostedBy int64 `json:"posted_by"`
}

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
	req := postRequest{PostedBy: tenant.ActorID}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	entry, err := h.service.Post(r.Context(), tenant.CompanyID, id, req.PostedBy)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "post journal", err)
		return
	}
	httpx.OK(w, http.StatusOK, entry, "journal posted")
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
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
	var in ReverseInput
	if r.ContentLength > 0 {
		if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	in.ActorID = tenant.ActorID
	entry, err := h.service.Reverse(r.Context(), tenant.CompanyID, id, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "reverse journal", err)
		return
	}
	httpx.OK(w, http.StatusCreated, entry, "journal reversed")
}

func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := httpx.PathID(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	window, err := pageWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.AccountLedger(r.Context(), tenant.CompanyID, accountID, window)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "account ledger", err)
		return
	}
	httpx.OK(w, http.StatusOK, page, "")
}

func pageWindow(r *http.Request) (base.Window, error) {
	skip, err := httpx.QueryInt(r, "skip", 0)
	if err != nil {
		return base.Window{}, err
	}
	limit, err := httpx.QueryInt(r, "limit", 0)
	if err != nil {
		return base.Window{}, err
	}
	return base.NewWindow(skip, limit, 50), nil
}
