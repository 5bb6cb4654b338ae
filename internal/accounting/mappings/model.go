package mappings

import (
	"strings"
	"time"

	base "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Codes names the ledger accounts document posting and settlement touch.
type Codes struct {
	Inventory       string `json:"inventory" validate:"required"`
	Payable         string `json:"payable" validate:"required"`
	Receivable      string `json:"receivable" validate:"required"`
	Revenue         string `json:"revenue" validate:"required"`
	COGS            string `json:"cogs" validate:"required"`
	PurchaseExpense string `json:"purchase_expense" validate:"required"`
	Cash            string `json:"cash" validate:"required"`
	Bank            string `json:"bank" validate:"required"`
}

// ReportCodes configures how statements bucket accounts.
type ReportCodes struct {
	IncomeCost            string   `json:"income_cost" validate:"required"`
	IncomeExpenses        []string `json:"income_expenses" validate:"required,min=1,dive,required"`
	IncomeTax             string   `json:"income_tax" validate:"required"`
	CashFlowCash          []string `json:"cash_flow_cash" validate:"required,min=1,dive,required"`
	CurrentAssetBelow     int      `json:"current_asset_below" validate:"gt=0"`
	CurrentLiabilityBelow int      `json:"current_liability_below" validate:"gt=0"`
}

// Set is one version of a tenant's account mapping.
type Set struct {
	CompanyID int64       `json:"company_id"`
	Version   int         `json:"version"`
	Codes     Codes       `json:"codes"`
	Report    ReportCodes `json:"report"`
	CreatedBy int64       `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// Defaults returns the mapping used by tenants that never stored one.
func Defaults() Set {
	return Set{
		Codes: Codes{
			Inventory:       "1405",
			Payable:         "2202",
			Receivable:      "1122",
			Revenue:         "6001",
			COGS:            "6401",
			PurchaseExpense: "6602",
			Cash:            "1001",
			Bank:            "1002",
		},
		Report: ReportCodes{
			IncomeCost:            "6401",
			IncomeExpenses:        []string{"6601", "6602", "6603"},
			IncomeTax:             "6403",
			CashFlowCash:          []string{"1001", "1002"},
			CurrentAssetBelow:     1600,
			CurrentLiabilityBelow: 2500,
		},
	}
}

// Validate checks a set for missing codes.
func (s Set) Validate() error {
	required := map[string]string{
		"inventory":        s.Codes.Inventory,
		"payable":          s.Codes.Payable,
		"receivable":       s.Codes.Receivable,
		"revenue":          s.Codes.Revenue,
		"cogs":             s.Codes.COGS,
		"purchase_expense": s.Codes.PurchaseExpense,
		"cash":             s.Codes.Cash,
		"bank":             s.Codes.Bank,
		"income_cost":      s.Report.IncomeCost,
		"income_tax":       s.Report.IncomeTax,
	}
	for name, code := range required {
		if strings.TrimSpace(code) == "" {
			return base.Invalidf("mappings: %s code required", name)
		}
	}
	if len(s.Report.IncomeExpenses) == 0 || len(s.Report.CashFlowCash) == 0 {
		return base.Invalidf("mappings: expense and cash-flow code lists cannot be empty")
	}
	if s.Report.CurrentAssetBelow <= 0 || s.Report.CurrentLiabilityBelow <= 0 {
		return base.Invalidf("mappings: balance sheet thresholds must be positive")
	}
	return nil
}

// SettlementCode returns the cash or bank code for a payment method.
func (s Set) SettlementCode(method string) string {
	if strings.EqualFold(method, "Cash") {
		return s.Codes.Cash
	}
	return s.Codes.Bank
}
