package accounts

// ChartEntry is one row of the standard chart.
type ChartEntry struct {
	Code string
	Name string
	Type AccountType
}

// DefaultChart lists the core accounts every tenant starts with.
func DefaultChart() []ChartEntry {
	return []ChartEntry{
		{"1001", "Cash on hand", AccountTypeAsset},
		{"1002", "Bank deposits", AccountTypeAsset},
		{"1012", "Other monetary funds", AccountTypeAsset},
		{"1121", "Notes receivable", AccountTypeAsset},
		{"1122", "Accounts receivable", AccountTypeAsset},
		{"1123", "Prepayments", AccountTypeAsset},
		{"1401", "Materials in transit", AccountTypeAsset},
		{"1403", "Raw materials", AccountTypeAsset},
		{"1405", "Merchandise inventory", AccountTypeAsset},
		{"1601", "Fixed assets", AccountTypeAsset},
		{"2001", "Short-term borrowings", AccountTypeLiability},
		{"2201", "Notes payable", AccountTypeLiability},
		{"2202", "Accounts payable", AccountTypeLiability},
		{"2211", "Payroll payable", AccountTypeLiability},
		{"2221", "Taxes payable", AccountTypeLiability},
		{"4001", "Paid-in capital", AccountTypeEquity},
		{"4002", "Capital reserve", AccountTypeEquity},
		{"4103", "Current-year profit", AccountTypeEquity},
		{"4104", "Profit distribution", AccountTypeEquity},
		{"5001", "Production cost", AccountTypeExpense},
		{"5101", "Manufacturing overhead", AccountTypeExpense},
		{"6001", "Main business revenue", AccountTypeRevenue},
		{"6051", "Other business revenue", AccountTypeRevenue},
		{"6111", "Investment income", AccountTypeRevenue},
		{"6401", "Main business cost", AccountTypeExpense},
		{"6402", "Other business cost", AccountTypeExpense},
		{"6403", "Taxes and surcharges", AccountTypeExpense},
		{"6601", "Selling expenses", AccountTypeExpense},
		{"6602", "Administrative expenses", AccountTypeExpense},
		{"6603", "Financial expenses", AccountTypeExpense},
	}
}
