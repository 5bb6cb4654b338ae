package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// SourceFlow breaks an activity down by the entry source that moved cash.
type SourceFlow struct {
	Source  journals.SourceType `json:"source_type"`
	CashIn  decimal.Decimal     `json:"cash_in"`
	CashOut decimal.Decimal     `json:"cash_out"`
}

// Activity is one cash-flow section.
type Activity struct {
	CashIn   decimal.Decimal `json:"cash_in"`
	CashOut  decimal.Decimal `json:"cash_out"`
	Net      decimal.Decimal `json:"net"`
	BySource []SourceFlow    `json:"by_source,omitempty"`
}

// CashFlow reports cash movement for a period. EndingCash equals the cash
// balance through the end date, so consecutive periods chain.
type CashFlow struct {
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Operating     Activity        `json:"operating_activities"`
	Investing     Activity        `json:"investing_activities"`
	Financing     Activity        `json:"financing_activities"`
	NetCashFlow   decimal.Decimal `json:"net_cash_flow"`
	BeginningCash decimal.Decimal `json:"beginning_cash"`
	EndingCash    decimal.Decimal `json:"ending_cash"`
}

// BuildCashFlow classifies each entry's net effect on the cash scope as an
// inflow or outflow. Every movement is operating; investing and financing
// stay zero until the chart carries a classification for them.
func BuildCashFlow(movements []journals.Movement, beginning decimal.Decimal, start, end time.Time) CashFlow {
	bySource := map[journals.SourceType]*SourceFlow{}
	op := Activity{}
	for _, m := range movements {
		net := base.Money(m.Net())
		if net.IsZero() {
			continue
		}
		flow, ok := bySource[m.SourceType]
		if !ok {
			flow = &SourceFlow{Source: m.SourceType}
			bySource[m.SourceType] = flow
		}
		if net.IsPositive() {
			op.CashIn = op.CashIn.Add(net)
			flow.CashIn = flow.CashIn.Add(net)
		} else {
			op.CashOut = op.CashOut.Add(net.Neg())
			flow.CashOut = flow.CashOut.Add(net.Neg())
		}
	}
	op.Net = op.CashIn.Sub(op.CashOut)
	op.BySource = make([]SourceFlow, 0, len(bySource))
	for _, f := range bySource {
		op.BySource = append(op.BySource, *f)
	}
	sort.Slice(op.BySource, func(i, j int) bool { return op.BySource[i].Source < op.BySource[j].Source })

	return CashFlow{
		StartDate:     start,
		EndDate:       end,
		Operating:     op,
		NetCashFlow:   op.Net,
		BeginningCash: base.Money(beginning),
		EndingCash:    base.Money(beginning.Add(op.Net)),
	}
}
