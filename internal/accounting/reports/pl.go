package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// CodeAmount is one configured code's contribution to a line.
type CodeAmount struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// IncomeStatement contains the structured output for the period.
type IncomeStatement struct {
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Revenue          decimal.Decimal `json:"revenue"`
	Cost             decimal.Decimal `json:"cost"`
	Expenses         decimal.Decimal `json:"expenses"`
	ExpenseBreakdown []CodeAmount    `json:"expense_breakdown"`
	OperatingProfit  decimal.Decimal `json:"operating_profit"`
	Tax              decimal.Decimal `json:"tax"`
	NetProfit        decimal.Decimal `json:"net_profit"`
}

// BuildIncomeStatement buckets period movements by the configured codes. Each
// code includes its descendants; a code missing from the chart contributes
// zero.
func BuildIncomeStatement(balances []AccountBalance, codes mappings.Codes, report mappings.ReportCodes, start, end time.Time) IncomeStatement {
	r := newRollup(balances)
	byCode := make(map[string]AccountBalance, len(balances))
	for _, b := range balances {
		byCode[b.Code] = b
	}
	// Movement only: the opening part of Closing is excluded.
	moved := func(code string) (AccountBalance, decimal.Decimal) {
		acc, ok := byCode[code]
		if !ok {
			return AccountBalance{Code: code}, decimal.Zero
		}
		net := decimal.Zero
		for id := range r.subtree(acc.AccountID) {
			b := r.byID[id]
			net = net.Add(b.Debit).Sub(b.Credit)
		}
		return acc, net
	}

	out := IncomeStatement{StartDate: start, EndDate: end, ExpenseBreakdown: []CodeAmount{}}
	_, rev := moved(codes.Revenue)
	out.Revenue = base.Money(rev.Neg())
	_, cost := moved(report.IncomeCost)
	out.Cost = base.Money(cost)
	for _, code := range report.IncomeExpenses {
		acc, amt := moved(code)
		amt = base.Money(amt)
		out.Expenses = out.Expenses.Add(amt)
		out.ExpenseBreakdown = append(out.ExpenseBreakdown, CodeAmount{Code: code, Name: acc.Name, Amount: amt})
	}
	_, tax := moved(report.IncomeTax)
	out.Tax = base.Money(tax)
	out.OperatingProfit = out.Revenue.Sub(out.Cost).Sub(out.Expenses)
	out.NetProfit = out.OperatingProfit.Sub(out.Tax)
	return out
}
