package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/bank"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/settlement"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// ReadinessProbe reports whether the backing stores can serve traffic.
type ReadinessProbe func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Ready   ReadinessProbe

	AccountsHandler       *accounts.Handler
	JournalsHandler       *journals.Handler
	MappingsHandler       *mappings.Handler
	InventoryHandler      *inventory.Handler
	PurchaseOrdersHandler *orders.Handler
	SalesOrdersHandler    *orders.Handler
	CustomersHandler      *partners.Handler
	SuppliersHandler      *partners.Handler
	SettlementHandler     *settlement.Handler
	BankHandler           *bank.Handler
	ReportsHandler        *reports.Handler
	JobHandler            *jobs.Handler
}

// NewRouter constructs the chi.Router with ledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.OK(w, http.StatusOK, map[string]string{"status": "ok"}, "")
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Ready(ctx); err != nil {
				params.Logger.WarnContext(r.Context(), "readiness probe failed", slog.Any("error", err))
				httpx.Fail(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
				return
			}
		}
		httpx.OK(w, http.StatusOK, map[string]string{"status": "ready"}, "")
	})
	if params.Metrics != nil && (params.Config == nil || params.Config.MetricsEnabled) {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httpx.TenantMiddleware)
		mount(r, "/accounts", params.AccountsHandler)
		mount(r, "/journals", params.JournalsHandler)
		mount(r, "/mappings", params.MappingsHandler)
		mount(r, "/inventory", params.InventoryHandler)
		mount(r, "/purchase-orders", params.PurchaseOrdersHandler)
		mount(r, "/sales-orders", params.SalesOrdersHandler)
		mount(r, "/customers", params.CustomersHandler)
		mount(r, "/suppliers", params.SuppliersHandler)
		mount(r, "/bank", params.BankHandler)
		mount(r, "/reports", params.ReportsHandler)
		mount(r, "/jobs", params.JobHandler)
		if params.SettlementHandler != nil {
			params.SettlementHandler.MountRoutes(r)
		}
	})

	return r
}

type routeMounter interface {
	MountRoutes(chi.Router)
}

// mount attaches a handler under prefix, skipping handlers left unset.
func mount[H interface {
	routeMounter
	comparable
}](r chi.Router, prefix string, h H) {
	var zero H
	if h == zero {
		return
	}
	r.Route(prefix, h.MountRoutes)
}
