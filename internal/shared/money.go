package shared

import "github.com/shopspring/decimal"

const (
	// MoneyPlaces is the minor-unit precision of every amount.
	MoneyPlaces int32 = 2
	// QuantityPlaces is the precision of stock quantities.
	QuantityPlaces int32 = 4
	// CostPlaces is the precision of weighted-average unit cost.
	CostPlaces int32 = 4
)

// MinorUnit is one cent.
var MinorUnit = decimal.New(1, -MoneyPlaces)

// Money rounds an amount to minor units.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// MoneyEqual compares two amounts at minor-unit precision.
func MoneyEqual(a, b decimal.Decimal) bool {
	return Money(a).Equal(Money(b))
}

// WithinMinorUnit reports |a-b| <= one minor unit.
func WithinMinorUnit(a, b decimal.Decimal) bool {
	return Money(a).Sub(Money(b)).Abs().LessThanOrEqual(MinorUnit)
}

// HasMoneyPrecision reports whether d needs no more than two decimals.
func HasMoneyPrecision(d decimal.Decimal) bool {
	return d.Equal(Money(d))
}
