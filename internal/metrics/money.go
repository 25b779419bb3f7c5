package metrics

import (
	"github.com/shopspring/decimal"
)

// Billing cycles per month for each interval unit.
var intervalMultipliers = map[string]decimal.Decimal{
	"week":  decimal.NewFromFloat(0.25),
	"month": decimal.NewFromInt(1),
	"year":  decimal.NewFromInt(12),
}

// MonthlyValue converts a per-cycle price to its monthly equivalent in cents.
// A non-positive count is treated as 1. Unknown units yield zero.
func MonthlyValue(priceCents int64, intervalUnit string, intervalCount int) decimal.Decimal {
	multiplier, ok := intervalMultipliers[intervalUnit]
	if !ok {
		return decimal.Zero
	}
	if intervalCount <= 0 {
		intervalCount = 1
	}
	divisor := multiplier.Mul(decimal.NewFromInt(int64(intervalCount)))
	return decimal.NewFromInt(priceCents).DivRound(divisor, 8)
}

// ToMajor converts minor currency units to major units.
func ToMajor(cents decimal.Decimal) decimal.Decimal {
	return cents.Shift(-2)
}

// percentOf returns part/whole*100 rounded to one place, or zero.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(1)
}
