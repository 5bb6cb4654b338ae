package settlement_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/orders"
	"github.com/odyssey-erp/odyssey-ledger/internal/settlement"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
)

func payment(orderID int64, amount string, method settlement.Method) settlement.PaymentInput {
	return settlement.PaymentInput{
		PurchaseOrderID: &orderID,
		Date:            shared.NewDate(lt.Day(2024, 2, 1)),
		Amount:          lt.Dec(amount),
		Method:          method,
		ActorID:         lt.ActorID,
	}
}

func receipt(orderID int64, amount string, method settlement.Method) settlement.ReceiptInput {
	return settlement.ReceiptInput{
		SalesOrderID: &orderID,
		Date:         shared.NewDate(lt.Day(2024, 2, 1)),
		Amount:       lt.Dec(amount),
		Method:       method,
		ActorID:      lt.ActorID,
	}
}

func TestPaymentMustSettleTheWholeOrder(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	supplier := env.Supplier(t, "Acme Supply")
	po := env.PostedPurchase(t, supplier.ID, lt.Day(2024, 1, 5), lt.Line(1, "15", "100.00"))

	_, err := env.Settlement.RecordPayment(ctx, lt.CompanyID, payment(po.ID, "1000.00", settlement.MethodBankTransfer))
	require.ErrorIs(t, err, settlement.ErrMustPayInFull)
	require.Equal(t, "MUST_PAY_IN_FULL", shared.CodeOf(err))

	open, err := env.Settlement.AvailablePurchaseOrders(ctx, lt.CompanyID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.True(t, open[0].Outstanding.Equal(lt.Dec("1500.00")))

	paid, err := env.Settlement.RecordPayment(ctx, lt.CompanyID, payment(po.ID, "1500.00", settlement.MethodBankTransfer))
	require.NoError(t, err)
	require.NotZero(t, paid.JournalID)

	order, err := env.Orders.Get(ctx, lt.CompanyID, orders.KindPurchase, po.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusPaid, order.Status)

	entry, err := env.Journals.Get(ctx, lt.CompanyID, paid.JournalID)
	require.NoError(t, err)
	require.Equal(t, journals.SourcePayment, entry.SourceType)
	require.Equal(t, paid.ID, *entry.SourceID)

	require.True(t, env.Balance(t, "2202").IsZero())
	require.True(t, env.Balance(t, "1002").Equal(lt.Dec("-1500.00")))
	require.True(t, env.Balance(t, "1001").IsZero())

	_, err = env.Settlement.RecordPayment(ctx, lt.CompanyID, payment(po.ID, "1500.00", settlement.MethodBankTransfer))
	require.ErrorIs(t, err, settlement.ErrAlreadySettled)

	open, err = env.Settlement.AvailablePurchaseOrders(ctx, lt.CompanyID)
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestPaymentToleratesOneMinorUnit(t *testing.T) {
	env := lt.New(t)
	supplier := env.Supplier(t, "Acme Supply")
	po := env.PostedPurchase(t, supplier.ID, lt.Day(2024, 1, 5), lt.Line(1, "3", "33.33"))

	_, err := env.Settlement.RecordPayment(env.Context(), lt.CompanyID, payment(po.ID, "100.00", settlement.MethodCash))
	require.NoError(t, err)
	require.True(t, env.Balance(t, "1001").Equal(lt.Dec("-100.00")))
}

func TestReceiptsAccumulateUntilCollected(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	supplier := env.Supplier(t, "Acme Supply")
	customer := env.Customer(t, "Globex", "5000")
	env.PostedPurchase(t, supplier.ID, lt.Day(2024, 1, 2), lt.Line(1, "20", "10.00"))
	so := env.DraftSale(t, customer.ID, orders.MethodCredit, lt.Day(2024, 1, 10), lt.Line(1, "10", "100.00"))
	_, err := env.Orders.PostSalesOrder(ctx, lt.CompanyID, so.ID, lt.ActorID)
	require.NoError(t, err)

	_, err = env.Settlement.RecordReceipt(ctx, lt.CompanyID, receipt(so.ID, "400.00", settlement.MethodCash))
	require.NoError(t, err)

	order, err := env.Orders.Get(ctx, lt.CompanyID, orders.KindSales, so.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusPosted, order.Status)

	open, err := env.Settlement.AvailableSalesOrders(ctx, lt.CompanyID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.True(t, open[0].Settled.Equal(lt.Dec("400.00")))
	require.True(t, open[0].Outstanding.Equal(lt.Dec("600.00")))

	_, err = env.Settlement.RecordReceipt(ctx, lt.CompanyID, receipt(so.ID, "600.01", settlement.MethodCash))
	require.ErrorIs(t, err, settlement.ErrOverReceipt)

	_, err = env.Settlement.RecordReceipt(ctx, lt.CompanyID, receipt(so.ID, "600.00", settlement.MethodBankTransfer))
	require.NoError(t, err)

	order, err = env.Orders.Get(ctx, lt.CompanyID, orders.KindSales, so.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusCollected, order.Status)

	require.True(t, env.Balance(t, "1122").IsZero())
	require.True(t, env.Balance(t, "1001").Equal(lt.Dec("400.00")))
	require.True(t, env.Balance(t, "1002").Equal(lt.Dec("600.00")))

	receipts, err := env.Settlement.ListReceipts(ctx, lt.CompanyID, shared.Window{})
	require.NoError(t, err)
	require.Len(t, receipts, 2)
}

func TestSettlementRequiresPostedOrder(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	supplier := env.Supplier(t, "Acme Supply")
	draft, err := env.Orders.CreatePurchaseOrder(ctx, lt.CompanyID, orders.OrderInput{
		CounterpartyID: supplier.ID, Date: shared.NewDate(lt.Day(2024, 1, 2)), Lines: []orders.LineInput{lt.Line(1, "1", "10.00")},
	})
	require.NoError(t, err)

	_, err = env.Settlement.RecordPayment(ctx, lt.CompanyID, payment(draft.ID, "10.00", settlement.MethodCash))
	require.ErrorIs(t, err, settlement.ErrOrderNotPosted)

	_, err = env.Settlement.RecordReceipt(ctx, lt.CompanyID, receipt(draft.ID, "10.00", settlement.MethodCash))
	require.ErrorIs(t, err, orders.ErrOrderNotFound, "receipts only link sales orders")
	require.True(t, env.Balance(t, "1001").IsZero())
}

func TestSettlementValidatesInput(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()

	in := payment(1, "-5", settlement.MethodCash)
	_, err := env.Settlement.RecordPayment(ctx, lt.CompanyID, in)
	require.ErrorIs(t, err, settlement.ErrInvalidAmount)

	in = payment(1, "5.001", settlement.MethodCash)
	_, err = env.Settlement.RecordPayment(ctx, lt.CompanyID, in)
	require.ErrorIs(t, err, settlement.ErrInvalidAmount)

	in = payment(1, "5", "Cheque")
	_, err = env.Settlement.RecordPayment(ctx, lt.CompanyID, in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUnlinkedPaymentOnlyPostsJournal(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()

	st, err := env.Settlement.RecordPayment(ctx, lt.CompanyID, settlement.PaymentInput{
		Date: shared.NewDate(lt.Day(2024, 2, 3)), Amount: lt.Dec("75.00"), Method: settlement.MethodOther, Remark: " deposit ", ActorID: lt.ActorID,
	})
	require.NoError(t, err)
	require.Nil(t, st.OrderID)
	require.Equal(t, "deposit", st.Remark)
	require.True(t, env.Balance(t, "1002").Equal(lt.Dec("-75.00")), "non-cash methods settle through the bank code")
	require.True(t, env.Balance(t, "2202").Equal(lt.Dec("-75.00")))

	payments, err := env.Settlement.ListPayments(ctx, lt.CompanyID, shared.Window{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, st.JournalID, payments[0].JournalID)
}

func TestIdempotencyKeyGuardsRetries(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	supplier := env.Supplier(t, "Acme Supply")
	po := env.PostedPurchase(t, supplier.ID, lt.Day(2024, 1, 5), lt.Line(1, "1", "50.00"))

	wrong := payment(po.ID, "10.00", settlement.MethodCash)
	wrong.IdempotencyKey = "req-1"
	_, err := env.Settlement.RecordPayment(ctx, lt.CompanyID, wrong)
	require.ErrorIs(t, err, settlement.ErrMustPayInFull)

	in := payment(po.ID, "50.00", settlement.MethodCash)
	in.IdempotencyKey = "req-1"
	_, err = env.Settlement.RecordPayment(ctx, lt.CompanyID, in)
	require.NoError(t, err, "a failed attempt releases its key")

	_, err = env.Settlement.RecordPayment(ctx, lt.CompanyID, in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.True(t, env.Balance(t, "1001").Equal(lt.Dec("-50.00")))
}

func TestConcurrentFullPaymentsLandOnce(t *testing.T) {
	env := lt.New(t)
	ctx := env.Context()
	supplier := env.Supplier(t, "Acme Supply")
	po := env.PostedPurchase(t, supplier.ID, lt.Day(2024, 1, 5), lt.Line(1, "4", "250.00"))

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Settlement.RecordPayment(ctx, lt.CompanyID, payment(po.ID, "1000.00", settlement.MethodBankTransfer))
		}(i)
	}
	wg.Wait()

	landed := 0
	for _, err := range errs {
		if err == nil {
			landed++
			continue
		}
		require.ErrorIs(t, err, settlement.ErrAlreadySettled)
	}
	require.Equal(t, 1, landed)

	order, err := env.Orders.Get(ctx, lt.CompanyID, orders.KindPurchase, po.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusPaid, order.Status)
	require.True(t, env.Balance(t, "2202").IsZero())
	require.True(t, env.Balance(t, "1002").Equal(lt.Dec("-1000.00")))
}
