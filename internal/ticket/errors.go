package ticket

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput is returned when a value that should have been guarded by the caller reaches the calculator.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyCart is returned when finalizing a sale without lines.
	ErrEmptyCart = errors.New("add at least one item")
	// ErrOverpayment is returned when payments exceed the amount due by more than Epsilon.
	ErrOverpayment = errors.New("payment exceeds sale total")
	// ErrPaymentNotFound is returned when a payment index is out of range.
	ErrPaymentNotFound = errors.New("payment entry not found")
)

// PaymentIncompleteError reports the amount still missing at finalize time.
type PaymentIncompleteError struct {
	Missing decimal.Decimal
}

func (e *PaymentIncompleteError) Error() string {
	return fmt.Sprintf("payment incomplete, missing amount %s", e.Missing.StringFixed(2))
}

// MissingFieldError reports a required relationship that was not selected.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return e.Field + " required"
}

// DuplicateUnitError is returned when a serialized unit is already in the cart.
type DuplicateUnitError struct {
	ItemID string
}

func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("unit %s already in cart", e.ItemID)
}
