package reports

// ViewModel wraps a report with the context it was built in.
type ViewModel[T any] struct {
	CompanyID      int64  `json:"company_id"`
	Report         string `json:"report"`
	MappingVersion int    `json:"mapping_version"`
	// Cached reports whether the payload was served from the report cache.
	Cached bool `json:"cached"`
	Data   T    `json:"data"`
}

// TrialBalanceViewModel holds the trial balance response.
type TrialBalanceViewModel = ViewModel[TrialBalance]

// IncomeStatementViewModel holds the income statement response.
type IncomeStatementViewModel = ViewModel[IncomeStatement]

// BalanceSheetViewModel contains data for the balance sheet report.
type BalanceSheetViewModel = ViewModel[BalanceSheet]

// CashFlowViewModel holds the cash flow response.
type CashFlowViewModel = ViewModel[CashFlow]

const (
	ReportBalanceSheet    = "balance-sheet"
	ReportIncomeStatement = "income-statement"
	ReportCashFlow        = "cash-flow"
	ReportTrialBalance    = "trial-balance"
)
