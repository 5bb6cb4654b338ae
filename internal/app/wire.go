package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/bank"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/settlement"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// Services holds every engine service of one runtime.
type Services struct {
	Accounts   *accounts.Service
	Journals   *journals.Service
	Mappings   *mappings.Service
	Partners   *partners.Service
	Inventory  *inventory.Service
	Orders     *orders.Service
	Settlement *settlement.Service
	Bank       *bank.Service
	Reports    *reports.Service
}

// Runtime is a fully wired application over one store backend.
type Runtime struct {
	Config    *Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Services  Services
	Companies jobs.CompanyLister
	Ready     ReadinessProbe

	Pool  *pgxpool.Pool
	Redis *redis.Client

	listeners shared.LedgerListeners
	closers   []func()
}

// repositories is the backend-specific half of the wiring.
type repositories struct {
	accounts    accounts.Repository
	journals    journals.Repository
	mappings    mappings.Repository
	partners    partners.Repository
	inventory   inventory.RepositoryPort
	orders      orders.Repository
	settlements settlement.Repository
	bank        bank.Repository
	audit       auditRecorder
	idempotency func() shared.IdempotencyPort
}

type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Build connects the configured backends and wires every service. Redis is
// optional outside production: without it reports are not cached and locks
// are process-local.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	switch {
	case err == nil:
		rt.Redis = client
		rt.closers = append(rt.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
	case cfg.IsProduction():
		return nil, err
	default:
		logger.Warn("redis unavailable, reports uncached and locks local", slog.Any("error", err))
	}

	var repos repositories
	if cfg.UsesMemoryStore() {
		store := memstore.New()
		repos = memoryRepositories(store, logger)
		rt.Companies = store
	} else {
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, cfg.PGDSN, logger); err != nil {
				rt.Close()
				return nil, err
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)
		repos = postgresRepositories(pool)
		rt.Companies = jobs.PoolCompanies{Pool: pool}
		rt.Ready = postgresReady(pool)
	}

	rt.wire(repos)
	return rt, nil
}

func memoryRepositories(store *memstore.Store, logger *slog.Logger) repositories {
	return repositories{
		accounts:    store.Accounts(),
		journals:    store.Journals(),
		mappings:    store.Mappings(),
		partners:    store.Partners(),
		inventory:   store.Inventory(),
		orders:      store.Orders(),
		settlements: store.Settlements(),
		bank:        store.Bank(),
		audit:       shared.NewLogAuditor(logger),
		idempotency: func() shared.IdempotencyPort { return shared.NewMemoryIdempotency() },
	}
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	idem := shared.NewIdempotencyStore(pool)
	return repositories{
		accounts:    accounts.NewRepository(pool),
		journals:    journals.NewRepository(pool),
		mappings:    mappings.NewRepository(pool),
		partners:    partners.NewRepository(pool),
		inventory:   inventory.NewRepository(pool),
		orders:      orders.NewRepository(pool),
		settlements: settlement.NewRepository(pool),
		bank:        bank.NewRepository(pool),
		audit:       shared.NewAuditLogger(pool),
		idempotency: func() shared.IdempotencyPort { return idem },
	}
}

// postgresReady pings the pool and requires a clean, applied schema.
func postgresReady(pool *pgxpool.Pool) ReadinessProbe {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		conn := stdlib.OpenDBFromPool(pool)
		defer conn.Close()
		if _, err := db.SchemaVersion(ctx, conn); err != nil {
			return err
		}
		return nil
	}
}

func (rt *Runtime) wire(repos repositories) {
	logger, cfg := rt.Logger, rt.Config
	var locker shared.Locker = shared.NoopLocker{}
	var reportCache *cache.Versioned
	if rt.Redis != nil {
		locker = lock.NewManager(rt.Redis, lock.Options{}, logger)
		reportCache = cache.NewVersioned(rt.Redis, "odyssey-ledger:reports", cfg.ReportCacheTTL)
	}

	s := &rt.Services
	s.Accounts = accounts.NewService(repos.accounts, repos.audit, logger)
	s.Journals = journals.NewService(repos.journals, repos.accounts, repos.audit, logger)
	s.Mappings = mappings.NewService(repos.mappings, repos.audit, logger)
	s.Partners = partners.NewService(repos.partners, repos.audit, logger)
	s.Inventory = inventory.NewService(repos.inventory, repos.audit, repos.idempotency(), logger)
	s.Orders = orders.NewService(repos.orders, repos.partners, s.Mappings, s.Journals, repos.audit, logger)
	s.Orders.WithMetrics(rt.Metrics)
	s.Partners.WithStats(s.Orders)
	s.Settlement = settlement.NewService(repos.settlements, s.Mappings, s.Journals, locker, repos.idempotency(), repos.audit, logger)
	s.Bank = bank.NewService(repos.bank, repos.journals, repos.accounts, s.Mappings, locker, repos.audit, logger)
	s.Bank.WithMatchDays(cfg.BankMatchMaxDays)
	s.Bank.WithMetrics(rt.Metrics)
	s.Reports = reports.NewService(repos.accounts, repos.journals, s.Mappings, reportCache, logger)
	s.Reports.WithObserver(rt.Metrics)

	rt.listeners = shared.LedgerListeners{s.Reports}
	rt.notify()
}

// AddLedgerListener subscribes l to every posting that changes ledger data.
func (rt *Runtime) AddLedgerListener(l shared.LedgerListener) {
	if l == nil {
		return
	}
	rt.listeners = append(rt.listeners, l)
	rt.notify()
}

func (rt *Runtime) notify() {
	s := rt.Services
	s.Journals.WithListener(rt.listeners)
	s.Orders.WithListener(rt.listeners)
	s.Settlement.WithListener(rt.listeners)
}

// Router builds the HTTP surface over the runtime's services.
func (rt *Runtime) Router(jobHandler *jobs.Handler) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	s, logger := rt.Services, rt.Logger
	return NewRouter(RouterParams{
		Logger:                logger,
		Config:                rt.Config,
		Metrics:               rt.Metrics,
		Ready:                 rt.Ready,
		AccountsHandler:       accounts.NewHandler(logger, s.Accounts, validate),
		JournalsHandler:       journals.NewHandler(logger, s.Journals, validate),
		MappingsHandler:       mappings.NewHandler(logger, s.Mappings, validate),
		InventoryHandler:      inventory.NewHandler(logger, s.Inventory, validate),
		PurchaseOrdersHandler: orders.NewHandler(logger, s.Orders, validate, orders.KindPurchase),
		SalesOrdersHandler:    orders.NewHandler(logger, s.Orders, validate, orders.KindSales),
		CustomersHandler:      partners.NewHandler(logger, s.Partners, validate, partners.KindCustomer),
		SuppliersHandler:      partners.NewHandler(logger, s.Partners, validate, partners.KindSupplier),
		SettlementHandler:     settlement.NewHandler(logger, s.Settlement, validate),
		BankHandler:           bank.NewHandler(logger, s.Bank, validate),
		ReportsHandler:        reports.NewHandler(logger, s.Reports),
		JobHandler:            jobHandler,
	})
}

// Close releases every connection in reverse order of acquisition.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// ErrNoPostgres is returned by commands that need the postgres store.
var ErrNoPostgres = errors.New("app: command requires STORE_DRIVER=postgres")
