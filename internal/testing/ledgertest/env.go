// Package ledgertest wires every ledger service over the in-memory store for
// package tests.
package ledgertest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/bank"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/settlement"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/internal/testing/guard"
)

const (
	CompanyID int64 = 1
	ActorID   int64 = 7
)

// Clock is the fixed instant every service reads as now.
var Clock = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type Env struct {
	Store      *memstore.Store
	Audit      *Audit
	Accounts   *accounts.Service
	Journals   *journals.Service
	Mappings   *mappings.Service
	Partners   *partners.Service
	Inventory  *inventory.Service
	Orders     *orders.Service
	Settlement *settlement.Service
	Bank       *bank.Service
}

// New builds an Env and seeds the default chart for CompanyID.
func New(t testing.TB) *Env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	audit := &Audit{}
	now := func() time.Time { return Clock }

	env := &Env{Store: store, Audit: audit}
	env.Accounts = accounts.NewService(store.Accounts(), audit, logger)
	env.Accounts.WithNow(now)
	env.Journals = journals.NewService(store.Journals(), store.Accounts(), audit, logger)
	env.Journals.WithNow(now)
	env.Mappings = mappings.NewService(store.Mappings(), audit, logger)
	env.Partners = partners.NewService(store.Partners(), audit, logger)
	env.Inventory = inventory.NewService(store.Inventory(), audit, shared.NewMemoryIdempotency(), logger)
	env.Inventory.WithNow(now)
	env.Orders = orders.NewService(store.Orders(), store.Partners(), env.Mappings, env.Journals, audit, logger)
	env.Orders.WithNow(now)
	env.Partners.WithStats(env.Orders)
	env.Settlement = settlement.NewService(store.Settlements(), env.Mappings, env.Journals, shared.NoopLocker{}, shared.NewMemoryIdempotency(), audit, logger)
	env.Settlement.WithNow(now)
	env.Bank = bank.NewService(store.Bank(), store.Journals(), store.Accounts(), env.Mappings, shared.NoopLocker{}, audit, logger)
	env.Bank.WithNow(now)

	_, err := env.Accounts.SeedDefaultChart(env.Context(), CompanyID)
	require.NoError(t, err)
	return env
}

// Context carries the test tenant.
func (e *Env) Context() context.Context {
	return shared.ContextWithTenant(context.Background(), shared.Tenant{CompanyID: CompanyID, ActorID: ActorID})
}

// Account resolves a seeded account by code.
func (e *Env) Account(t testing.TB, code string) accounts.Account {
	t.Helper()
	list, err := e.Accounts.List(e.Context(), CompanyID, nil)
	require.NoError(t, err)
	for _, a := range list {
		if a.Code == code {
			return a
		}
	}
	t.Fatalf("account %s not seeded", code)
	return accounts.Account{}
}

// Balance is the signed maintained balance of the account with code.
func (e *Env) Balance(t testing.TB, code string) decimal.Decimal {
	t.Helper()
	return e.Account(t, code).Balance()
}

// Post records a posted manual entry debiting one code and crediting another.
func (e *Env) Post(t testing.TB, date time.Time, debitCode, creditCode string, amount string) journals.Entry {
	t.Helper()
	amt := Dec(amount)
	entry, err := e.Journals.Create(e.Context(), CompanyID, journals.CreateInput{
		Date:        shared.NewDate(date),
		Description: "manual " + debitCode + "/" + creditCode,
		Post:        true,
		PostedBy:    ActorID,
		Lines: []journals.LineInput{
			{AccountID: e.Account(t, debitCode).ID, Debit: amt},
			{AccountID: e.Account(t, creditCode).ID, Credit: amt},
		},
	})
	require.NoError(t, err)
	return entry
}

func (e *Env) Customer(t testing.TB, name, creditLimit string) partners.Partner {
	t.Helper()
	p, err := e.Partners.Create(e.Context(), CompanyID, partners.KindCustomer, partners.CreateRequest{Name: name, CreditLimit: Dec(creditLimit)})
	require.NoError(t, err)
	return p
}

func (e *Env) Supplier(t testing.TB, name string) partners.Partner {
	t.Helper()
	p, err := e.Partners.Create(e.Context(), CompanyID, partners.KindSupplier, partners.CreateRequest{Name: name})
	require.NoError(t, err)
	return p
}

// Line builds an order line at full price.
func Line(productID int64, qty, price string) orders.LineInput {
	pid := productID
	return orders.LineInput{ProductID: &pid, Quantity: Dec(qty), UnitPrice: Dec(price)}
}

// PostedPurchase creates and posts a single-line purchase order.
func (e *Env) PostedPurchase(t testing.TB, supplierID int64, date time.Time, lines ...orders.LineInput) orders.Order {
	t.Helper()
	o, err := e.Orders.CreatePurchaseOrder(e.Context(), CompanyID, orders.OrderInput{
		CounterpartyID: supplierID, Date: shared.NewDate(date), Lines: lines,
	})
	require.NoError(t, err)
	posted, err := e.Orders.PostPurchaseOrder(e.Context(), CompanyID, o.ID, orders.PostInput{ActorID: ActorID})
	require.NoError(t, err)
	return posted
}

// DraftSale creates a sales order draft.
func (e *Env) DraftSale(t testing.TB, customerID int64, method orders.PaymentMethod, date time.Time, lines ...orders.LineInput) orders.Order {
	t.Helper()
	o, err := e.Orders.CreateSalesOrder(e.Context(), CompanyID, orders.OrderInput{
		CounterpartyID: customerID, Date: shared.NewDate(date), PaymentMethod: method, Lines: lines,
	})
	require.NoError(t, err)
	return o
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Audit collects audit entries in memory. Safe for concurrent use.
type Audit struct {
	mu   sync.Mutex
	Logs []shared.AuditLog
}

func (a *Audit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Logs = append(a.Logs, log)
	return nil
}

// Actions lists the recorded actions in order.
func (a *Audit) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.Logs))
	for _, l := range a.Logs {
		out = append(out, l.Action)
	}
	return out
}
