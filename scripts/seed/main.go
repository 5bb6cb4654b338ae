package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/bank"
	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/partners"
	"github.com/odyssey-erp/odyssey-ledger/internal/settlement"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const actorID int64 = 1

// Seeds one demo company: chart, partners, a received purchase, a credit
// sale, their settlements and a bank statement ready for auto-match.
func main() {
	companyID, err := strconv.ParseInt(getenv("SEED_COMPANY_ID", "1"), 10, 64)
	if err != nil || companyID <= 0 {
		log.Fatalf("invalid SEED_COMPANY_ID: %v", err)
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)
	ctx := shared.ContextWithTenant(context.Background(), shared.Tenant{CompanyID: companyID, ActorID: actorID})

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()
	s := rt.Services

	fmt.Println("→ Seeding chart of accounts...")
	created, err := s.Accounts.SeedDefaultChart(ctx, companyID)
	if err != nil {
		log.Fatalf("seed chart: %v", err)
	}
	fmt.Printf("  %d accounts created\n", created)

	fmt.Println("→ Seeding partners...")
	supplier, err := s.Partners.Create(ctx, companyID, partners.KindSupplier, partners.CreateRequest{Name: "Sumber Makmur Supply", Email: "ap@sumbermakmur.local"})
	if err != nil {
		log.Fatalf("seed supplier: %v", err)
	}
	customer, err := s.Partners.Create(ctx, companyID, partners.KindCustomer, partners.CreateRequest{Name: "Toko Sejahtera", CreditLimit: dec("5000000")})
	if err != nil {
		log.Fatalf("seed customer: %v", err)
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)

	fmt.Println("→ Seeding purchasing...")
	po, err := s.Orders.CreatePurchaseOrder(ctx, companyID, orders.OrderInput{
		CounterpartyID: supplier.ID,
		Date:           shared.NewDate(day.AddDate(0, 0, -7)),
		Lines: []orders.LineInput{
			line(101, "100", "12000"),
			line(102, "40", "45000"),
		},
	})
	if err != nil {
		log.Fatalf("seed purchase order: %v", err)
	}
	po, err = s.Orders.PostPurchaseOrder(ctx, companyID, po.ID, orders.PostInput{
		Locations: map[int64]string{101: "WH-A/01", 102: "WH-A/02"},
		ActorID:   actorID,
	})
	if err != nil {
		log.Fatalf("post purchase order: %v", err)
	}

	fmt.Println("→ Seeding sales...")
	so, err := s.Orders.CreateSalesOrder(ctx, companyID, orders.OrderInput{
		CounterpartyID: customer.ID,
		Date:           shared.NewDate(day.AddDate(0, 0, -3)),
		PaymentMethod:  orders.MethodCredit,
		Lines: []orders.LineInput{
			line(101, "30", "20000"),
			line(102, "10", "70000"),
		},
	})
	if err != nil {
		log.Fatalf("seed sales order: %v", err)
	}
	if so, err = s.Orders.PostSalesOrder(ctx, companyID, so.ID, actorID); err != nil {
		log.Fatalf("post sales order: %v", err)
	}

	fmt.Println("→ Seeding settlements...")
	if _, err := s.Settlement.RecordPayment(ctx, companyID, settlement.PaymentInput{
		PurchaseOrderID: &po.ID,
		Date:            shared.NewDate(day.AddDate(0, 0, -2)),
		Amount:          po.Total,
		Method:          settlement.MethodBankTransfer,
		Remark:          "seed payment",
		ActorID:         actorID,
	}); err != nil {
		log.Fatalf("record payment: %v", err)
	}
	half := so.Total.Div(decimal.NewFromInt(2)).Round(2)
	if _, err := s.Settlement.RecordReceipt(ctx, companyID, settlement.ReceiptInput{
		SalesOrderID: &so.ID,
		Date:         shared.NewDate(day.AddDate(0, 0, -1)),
		Amount:       half,
		Method:       settlement.MethodBankTransfer,
		Remark:       "seed partial receipt",
		ActorID:      actorID,
	}); err != nil {
		log.Fatalf("record receipt: %v", err)
	}

	fmt.Println("→ Seeding bank statements...")
	account, err := s.Bank.CreateAccount(ctx, companyID, bank.AccountInput{
		AccountNumber:  "1234567890",
		BankName:       "Bank Central",
		Currency:       "IDR",
		InitialBalance: dec("0"),
	})
	if err != nil {
		log.Fatalf("seed bank account: %v", err)
	}
	statements := []bank.StatementInput{
		{Date: shared.NewDate(day.AddDate(0, 0, -2)), Amount: po.Total, Type: bank.Debit, Description: "TRF supplier"},
		{Date: shared.NewDate(day), Amount: half, Type: bank.Credit, Description: "TRF customer"},
	}
	for _, in := range statements {
		if _, err := s.Bank.CreateStatement(ctx, companyID, account.ID, in); err != nil {
			log.Fatalf("seed statement: %v", err)
		}
	}

	logger.Info("seed complete", slog.Int64("company_id", companyID), slog.Int64("purchase_order", po.ID), slog.Int64("sales_order", so.ID))
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func line(productID int64, qty, price string) orders.LineInput {
	return orders.LineInput{ProductID: &productID, Quantity: dec(qty), UnitPrice: dec(price)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
