package reports

import (
	"iter"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// BalanceSheetAccount is a top-level account with its subtree rolled up.
// Children lists the direct children whose rolled-up balance is non-zero.
type BalanceSheetAccount struct {
	AccountID int64                 `json:"account_id"`
	Code      string                `json:"code"`
	Name      string                `json:"name"`
	Balance   decimal.Decimal       `json:"balance"`
	Children  []BalanceSheetAccount `json:"children"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label      string                `json:"label"`
	Current    decimal.Decimal       `json:"current"`
	NonCurrent decimal.Decimal       `json:"non_current"`
	Total      decimal.Decimal       `json:"total"`
	Details    []BalanceSheetAccount `json:"details"`
}

// EquitySection carries equity accounts plus the unclosed profit.
type EquitySection struct {
	Label             string                `json:"label"`
	CurrentYearProfit decimal.Decimal       `json:"current_year_profit"`
	Total             decimal.Decimal       `json:"total"`
	Details           []BalanceSheetAccount `json:"details"`
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	AsOf                      time.Time           `json:"as_of_date"`
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    EquitySection       `json:"equity"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"total_liabilities_and_equity"`
	BalanceCheck              decimal.Decimal     `json:"balance_check"`
	Balanced                  bool                `json:"is_balanced"`
}

// rollup indexes balances by id and parent for subtree sums.
type rollup struct {
	byID     map[int64]AccountBalance
	children map[int64][]int64
}

func newRollup(balances []AccountBalance) rollup {
	r := rollup{byID: make(map[int64]AccountBalance, len(balances)), children: make(map[int64][]int64)}
	for _, b := range balances {
		r.byID[b.AccountID] = b
	}
	for _, b := range balances {
		if b.ParentID != nil {
			if _, ok := r.byID[*b.ParentID]; ok {
				r.children[*b.ParentID] = append(r.children[*b.ParentID], b.AccountID)
			}
		}
	}
	return r
}

// subtree yields id and every descendant once.
func (r rollup) subtree(id int64) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		seen := map[int64]bool{}
		stack := []int64{id}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[cur] {
				continue
			}
			seen[cur] = true
			if !yield(cur) {
				return
			}
			stack = append(stack, r.children[cur]...)
		}
	}
}

// net sums closing net debit over id and its descendants.
func (r rollup) net(id int64) decimal.Decimal {
	total := decimal.Zero
	for cur := range r.subtree(id) {
		total = total.Add(r.byID[cur].Closing())
	}
	return total
}

// signed converts a net debit into the root account's normal-balance sign.
func signed(side accounts.NormalBalance, net decimal.Decimal) decimal.Decimal {
	if side == accounts.NormalDebit {
		return net
	}
	return net.Neg()
}

func (r rollup) line(root AccountBalance) BalanceSheetAccount {
	row := BalanceSheetAccount{
		AccountID: root.AccountID,
		Code:      root.Code,
		Name:      root.Name,
		Balance:   base.Money(signed(root.NormalBalance, r.net(root.AccountID))),
		Children:  []BalanceSheetAccount{},
	}
	for _, childID := range r.children[root.AccountID] {
		child := r.byID[childID]
		bal := base.Money(signed(root.NormalBalance, r.net(childID)))
		if bal.IsZero() {
			continue
		}
		row.Children = append(row.Children, BalanceSheetAccount{AccountID: child.AccountID, Code: child.Code, Name: child.Name, Balance: bal, Children: []BalanceSheetAccount{}})
	}
	sort.Slice(row.Children, func(i, j int) bool { return row.Children[i].Code < row.Children[j].Code })
	return row
}

// codePrefix parses the integer part of a code such as "1001.01". Codes that
// do not parse classify as non-current.
func codePrefix(code string) (int, bool) {
	head, _, _ := strings.Cut(code, ".")
	n, err := strconv.Atoi(head)
	return n, err == nil
}

// BuildBalanceSheet aggregates closing balances into assets, liabilities, and
// equity sections. balances must cover every account of the tenant, closed
// through asOf. The difference between the two sides is reported, never
// corrected.
func BuildBalanceSheet(balances []AccountBalance, codes mappings.ReportCodes, asOf time.Time) BalanceSheet {
	r := newRollup(balances)
	assets := BalanceSheetSection{Label: "Assets", Details: []BalanceSheetAccount{}}
	liabilities := BalanceSheetSection{Label: "Liabilities", Details: []BalanceSheetAccount{}}
	equity := EquitySection{Label: "Equity", Details: []BalanceSheetAccount{}}

	classify := func(sec *BalanceSheetSection, row BalanceSheetAccount, below int) {
		sec.Details = append(sec.Details, row)
		sec.Total = sec.Total.Add(row.Balance)
		if n, ok := codePrefix(row.Code); ok && n < below {
			sec.Current = sec.Current.Add(row.Balance)
		} else {
			sec.NonCurrent = sec.NonCurrent.Add(row.Balance)
		}
	}

	revenue, expense := decimal.Zero, decimal.Zero
	for _, acc := range balances {
		switch acc.Type {
		case accounts.AccountTypeRevenue:
			revenue = revenue.Sub(acc.Closing())
		case accounts.AccountTypeExpense:
			expense = expense.Add(acc.Closing())
		}
		if acc.ParentID != nil {
			if _, ok := r.byID[*acc.ParentID]; ok {
				continue
			}
		}
		row := r.line(acc)
		if row.Balance.IsZero() {
			continue
		}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			classify(&assets, row, codes.CurrentAssetBelow)
		case accounts.AccountTypeLiability:
			classify(&liabilities, row, codes.CurrentLiabilityBelow)
		case accounts.AccountTypeEquity:
			equity.Details = append(equity.Details, row)
			equity.Total = equity.Total.Add(row.Balance)
		}
	}
	equity.CurrentYearProfit = base.Money(revenue.Sub(expense))
	equity.Total = equity.Total.Add(equity.CurrentYearProfit)

	byCode := func(rows []BalanceSheetAccount) {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	}
	byCode(assets.Details)
	byCode(liabilities.Details)
	byCode(equity.Details)

	total := liabilities.Total.Add(equity.Total)
	check := base.Money(assets.Total.Sub(total)).Abs()
	return BalanceSheet{
		AsOf:                      asOf,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		TotalLiabilitiesAndEquity: total,
		BalanceCheck:              check,
		Balanced:                  check.LessThan(base.MinorUnit),
	}
}
