package ticket

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	// DiscountFixed subtracts a currency amount.
	DiscountFixed DiscountKind = "fixed"
	// DiscountPercent subtracts a percentage (0-100) of the subtotal.
	DiscountPercent DiscountKind = "percent"
)

// Discount is the single sale-level discount.
type Discount struct {
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// Validate checks kind and range of the discount value.
func (d Discount) Validate() error {
	if d.Value.IsNegative() {
		return fmt.Errorf("discount must not be negative: %w", ErrInvalidInput)
	}
	switch d.Kind {
	case DiscountFixed:
		return nil
	case DiscountPercent:
		if d.Value.GreaterThan(hundred) {
			return fmt.Errorf("discount percent above 100: %w", ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("unknown discount kind %q: %w", d.Kind, ErrInvalidInput)
	}
}

// Apply returns the effective discount for subtotal, clamped to [0, subtotal].
func (d Discount) Apply(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch d.Kind {
	case DiscountPercent:
		amount = percentOf(subtotal, d.Value)
	case DiscountFixed:
		amount = round(d.Value)
	default:
		return decimal.Zero
	}
	return clamp(amount, decimal.Zero, subtotal)
}
