package ticket

import "github.com/shopspring/decimal"

// Epsilon is the tolerance used when comparing balances, one currency minor unit.
var Epsilon = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// percentOf returns pct percent of amount rounded to the currency minor unit.
func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	if amount.IsZero() || pct.IsZero() {
		return decimal.Zero
	}
	return round(amount.Mul(pct).Div(hundred))
}

func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
