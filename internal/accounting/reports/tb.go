package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountBalance models a general ledger account with aggregated balances.
// Opening and Closing are net debit amounts.
type AccountBalance struct {
	AccountID     int64
	ParentID      *int64
	Code          string
	Name          string
	Type          accounts.AccountType
	NormalBalance accounts.NormalBalance
	Opening       decimal.Decimal
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// Closing computes the closing balance for the account.
func (a AccountBalance) Closing() decimal.Decimal {
	return a.Opening.Add(a.Debit).Sub(a.Credit)
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// Balances joins the chart with opening and period sums. Accounts without
// postings are included with zero amounts.
func Balances(chart []accounts.Account, opening, period []journals.AccountSum) []AccountBalance {
	open := make(map[int64]journals.AccountSum, len(opening))
	for _, s := range opening {
		open[s.AccountID] = s
	}
	moved := make(map[int64]journals.AccountSum, len(period))
	for _, s := range period {
		moved[s.AccountID] = s
	}
	out := make([]AccountBalance, 0, len(chart))
	for _, acc := range chart {
		o, p := open[acc.ID], moved[acc.ID]
		out = append(out, AccountBalance{
			AccountID:     acc.ID,
			ParentID:      acc.ParentID,
			Code:          acc.Code,
			Name:          acc.Name,
			Type:          acc.Type,
			NormalBalance: acc.NormalBalance,
			Opening:       o.Debit.Sub(o.Credit),
			Debit:         p.Debit,
			Credit:        p.Credit,
		})
	}
	return out
}

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Opening   decimal.Decimal `json:"opening"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Closing   decimal.Decimal `json:"closing"`
}

// TrialBalanceGroup aggregates accounts sharing a code prefix.
type TrialBalanceGroup struct {
	Key      string                `json:"key"`
	Accounts []TrialBalanceAccount `json:"accounts"`
	Opening  decimal.Decimal       `json:"opening"`
	Debit    decimal.Decimal       `json:"debit"`
	Credit   decimal.Decimal       `json:"credit"`
	Closing  decimal.Decimal       `json:"closing"`
}

// TrialBalance lists opening, period movement and closing per account.
type TrialBalance struct {
	StartDate    time.Time           `json:"start_date"`
	EndDate      time.Time           `json:"end_date"`
	Groups       []TrialBalanceGroup `json:"groups"`
	TotalDebit   decimal.Decimal     `json:"total_debit"`
	TotalCredit  decimal.Decimal     `json:"total_credit"`
	TotalOpening decimal.Decimal     `json:"total_opening"`
	TotalClosing decimal.Decimal     `json:"total_closing"`
	Balanced     bool                `json:"is_balanced"`
}

// BuildTrialBalance converts account balances into grouped trial balance data.
// Accounts with neither an opening balance nor movement are left out.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range balances {
		if acc.Opening.IsZero() && acc.Debit.IsZero() && acc.Credit.IsZero() {
			continue
		}
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceAccount{
			AccountID: acc.AccountID,
			Code:      acc.Code,
			Name:      acc.Name,
			Opening:   acc.Opening,
			Debit:     acc.Debit,
			Credit:    acc.Credit,
			Closing:   acc.Closing(),
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Opening = grp.Opening.Add(row.Opening)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
		grp.Closing = grp.Closing.Add(row.Closing)
	}

	sort.Strings(keys)
	result := TrialBalance{Groups: []TrialBalanceGroup{}}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalOpening = result.TotalOpening.Add(grp.Opening)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
		result.TotalClosing = result.TotalClosing.Add(grp.Closing)
	}
	result.Balanced = base.MoneyEqual(result.TotalDebit, result.TotalCredit) && result.TotalClosing.Round(base.MoneyPlaces).IsZero()
	return result
}
