package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	_ "github.com/odyssey-erp/odyssey-ledger/internal/testing/guard"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(id int64) *int64 { return &id }

func bal(id int64, code string, typ accounts.AccountType, opening, debit, credit string) AccountBalance {
	return AccountBalance{
		AccountID:     id,
		Code:          code,
		Name:          code,
		Type:          typ,
		NormalBalance: accounts.DefaultNormalBalance(typ),
		Opening:       d(opening),
		Debit:         d(debit),
		Credit:        d(credit),
	}
}

func TestBuildTrialBalance(t *testing.T) {
	balances := []AccountBalance{
		bal(1, "1000", accounts.AccountTypeAsset, "1000", "200", "150"),
		bal(2, "1001", accounts.AccountTypeAsset, "500", "100", "50"),
		bal(3, "2000", accounts.AccountTypeLiability, "-1500", "10", "110"),
		bal(4, "3000", accounts.AccountTypeEquity, "0", "0", "0"),
	}

	tb := BuildTrialBalance(balances)
	if len(tb.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(tb.Groups))
	}
	if !tb.TotalDebit.Equal(d("310")) {
		t.Fatalf("unexpected total debit: %v", tb.TotalDebit)
	}
	if !tb.TotalCredit.Equal(d("310")) {
		t.Fatalf("unexpected total credit: %v", tb.TotalCredit)
	}
	if !tb.TotalOpening.IsZero() || !tb.TotalClosing.IsZero() {
		t.Fatalf("unexpected opening/closing totals: %v %v", tb.TotalOpening, tb.TotalClosing)
	}
	if !tb.Balanced {
		t.Fatalf("expected balanced trial balance")
	}
	if !tb.Groups[0].Closing.Equal(d("1600")) {
		t.Fatalf("unexpected closing for group 10: %v", tb.Groups[0].Closing)
	}
}

func TestBuildIncomeStatement(t *testing.T) {
	set := mappings.Defaults()
	selling := bal(5, "6601", accounts.AccountTypeExpense, "0", "0", "0")
	child := bal(6, "6601.01", accounts.AccountTypeExpense, "0", "50", "0")
	child.ParentID = ptr(selling.AccountID)
	balances := []AccountBalance{
		bal(1, "6001", accounts.AccountTypeRevenue, "0", "0", "1200"),
		bal(2, "6401", accounts.AccountTypeExpense, "0", "300", "0"),
		bal(3, "6602", accounts.AccountTypeExpense, "999", "200", "0"),
		bal(4, "6403", accounts.AccountTypeExpense, "0", "100", "0"),
		selling, child,
	}

	is := BuildIncomeStatement(balances, set.Codes, set.Report, time.Time{}, time.Time{})
	if !is.Revenue.Equal(d("1200")) {
		t.Fatalf("expected revenue 1200 got %v", is.Revenue)
	}
	if !is.Cost.Equal(d("300")) {
		t.Fatalf("expected cost 300 got %v", is.Cost)
	}
	if !is.Expenses.Equal(d("250")) {
		t.Fatalf("expected expenses 250 got %v", is.Expenses)
	}
	if len(is.ExpenseBreakdown) != 3 || !is.ExpenseBreakdown[0].Amount.Equal(d("50")) {
		t.Fatalf("unexpected breakdown %+v", is.ExpenseBreakdown)
	}
	if !is.OperatingProfit.Equal(d("650")) || !is.Tax.Equal(d("100")) || !is.NetProfit.Equal(d("550")) {
		t.Fatalf("unexpected profit lines %v %v %v", is.OperatingProfit, is.Tax, is.NetProfit)
	}
}

func TestBuildBalanceSheet(t *testing.T) {
	cash := bal(1, "1001", accounts.AccountTypeAsset, "0", "750", "0")
	petty := bal(2, "1001.01", accounts.AccountTypeAsset, "0", "250", "0")
	petty.ParentID = ptr(cash.AccountID)
	balances := []AccountBalance{
		cash, petty,
		bal(3, "1122", accounts.AccountTypeAsset, "0", "0", "0"),
		bal(4, "1601", accounts.AccountTypeAsset, "0", "500", "0"),
		bal(5, "2202", accounts.AccountTypeLiability, "0", "10", "310"),
		bal(6, "4001", accounts.AccountTypeEquity, "0", "0", "1000"),
		bal(7, "6001", accounts.AccountTypeRevenue, "0", "0", "400"),
		bal(8, "6602", accounts.AccountTypeExpense, "0", "200", "0"),
	}

	bs := BuildBalanceSheet(balances, mappings.Defaults().Report, time.Time{})
	if !bs.Assets.Total.Equal(d("1500")) || !bs.Assets.Current.Equal(d("1000")) || !bs.Assets.NonCurrent.Equal(d("500")) {
		t.Fatalf("unexpected assets %+v", bs.Assets)
	}
	if len(bs.Assets.Details) != 2 {
		t.Fatalf("zero-balance roots should be omitted, got %d rows", len(bs.Assets.Details))
	}
	if got := bs.Assets.Details[0]; !got.Balance.Equal(d("1000")) || len(got.Children) != 1 || !got.Children[0].Balance.Equal(d("250")) {
		t.Fatalf("unexpected cash rollup %+v", got)
	}
	if !bs.Liabilities.Total.Equal(d("300")) || !bs.Liabilities.Current.Equal(d("300")) {
		t.Fatalf("expected liabilities 300 got %v", bs.Liabilities.Total)
	}
	if !bs.Equity.CurrentYearProfit.Equal(d("200")) || !bs.Equity.Total.Equal(d("1200")) {
		t.Fatalf("unexpected equity %+v", bs.Equity)
	}
	if !bs.TotalLiabilitiesAndEquity.Equal(d("1500")) || !bs.Balanced || !bs.BalanceCheck.IsZero() {
		t.Fatalf("expected balanced sheet, check %v", bs.BalanceCheck)
	}
}

func TestBuildBalanceSheetReportsDifference(t *testing.T) {
	balances := []AccountBalance{bal(1, "1001", accounts.AccountTypeAsset, "0", "10", "0")}

	bs := BuildBalanceSheet(balances, mappings.Defaults().Report, time.Time{})
	if bs.Balanced {
		t.Fatalf("one-sided data must not balance")
	}
	if !bs.BalanceCheck.Equal(d("10")) {
		t.Fatalf("expected check 10 got %v", bs.BalanceCheck)
	}
}

func TestBuildCashFlow(t *testing.T) {
	movements := []journals.Movement{
		{EntryID: 1, SourceType: journals.SourceSO, Debit: d("100")},
		{EntryID: 2, SourceType: journals.SourcePayment, Credit: d("30")},
		{EntryID: 3, SourceType: journals.SourceManual, Debit: d("5"), Credit: d("5")},
	}

	cf := BuildCashFlow(movements, d("50"), time.Time{}, time.Time{})
	if !cf.Operating.CashIn.Equal(d("100")) || !cf.Operating.CashOut.Equal(d("30")) {
		t.Fatalf("unexpected operating %+v", cf.Operating)
	}
	if !cf.NetCashFlow.Equal(d("70")) || !cf.EndingCash.Equal(d("120")) {
		t.Fatalf("unexpected net %v ending %v", cf.NetCashFlow, cf.EndingCash)
	}
	if len(cf.Operating.BySource) != 2 || cf.Operating.BySource[0].Source != journals.SourcePayment {
		t.Fatalf("unexpected source breakdown %+v", cf.Operating.BySource)
	}
	if !cf.Investing.Net.IsZero() || !cf.Financing.Net.IsZero() {
		t.Fatalf("investing and financing stay zero")
	}
}
