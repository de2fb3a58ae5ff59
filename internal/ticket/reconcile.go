package ticket

import "github.com/shopspring/decimal"

// State is the reconciliation state of a sale.
type State string

const (
	StateIncomplete State = "incomplete"
	StateBalanced   State = "balanced"
	StateOverpaid   State = "overpaid"
)

// Summary holds the derived totals of a sale. It is never stored.
type Summary struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalDue       decimal.Decimal `json:"totalDue"`
	TotalFees      decimal.Decimal `json:"totalFees"`
	TotalInterest  decimal.Decimal `json:"totalInterest"`
	TotalPaid      decimal.Decimal `json:"totalPaid"`
	// Balance is signed: negative when payments exceed what is owed.
	Balance   decimal.Decimal `json:"balance"`
	Remaining decimal.Decimal `json:"remaining"`
	State     State           `json:"state"`
}

// Reconcile derives the totals and the state from the raw figures.
func Reconcile(subtotal, discount, fees, interest, paid decimal.Decimal) Summary {
	due := subtotal.Sub(discount)
	if due.IsNegative() {
		due = decimal.Zero
	}
	balance := due.Add(fees).Sub(paid)
	remaining := balance
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Summary{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TotalDue:       due,
		TotalFees:      fees,
		TotalInterest:  interest,
		TotalPaid:      paid,
		Balance:        balance,
		Remaining:      remaining,
		State:          stateOf(balance),
	}
}

func stateOf(balance decimal.Decimal) State {
	switch {
	case balance.GreaterThan(Epsilon):
		return StateIncomplete
	case balance.LessThan(Epsilon.Neg()):
		return StateOverpaid
	default:
		return StateBalanced
	}
}
