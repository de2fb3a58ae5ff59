// Package ticket implements the sale ticket calculator: cart lines, the sale
// discount, card fees and installment interest, and payment reconciliation.
// Everything here is synchronous and free of I/O.
package ticket

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WalkInCustomer is the placeholder customer used when none is selected.
const WalkInCustomer = "walk-in"

// Policy carries the read-only configuration a sale is computed against.
type Policy struct {
	Fees                       FeeSchedule
	StoreCreditMaxInstallments int
	WalkInCustomerID           string
}

func (p Policy) walkIn() string {
	if id := strings.TrimSpace(p.WalkInCustomerID); id != "" {
		return id
	}
	return WalkInCustomer
}

// Sale is the aggregate root of a ticket being rung up.
type Sale struct {
	ID         string    `json:"id"`
	Cart       Cart      `json:"cart"`
	Discount   *Discount `json:"discount,omitempty"`
	Payments   Plan      `json:"payments"`
	SellerID   string    `json:"sellerId,omitempty"`
	CustomerID string    `json:"customerId,omitempty"`

	policy Policy
}

// NewSale returns an empty sale computed against policy.
func NewSale(id string, policy Policy) *Sale {
	s := &Sale{ID: id}
	s.Bind(policy)
	return s
}

// Bind attaches policy to a sale restored from storage and recomputes every payment entry.
func (s *Sale) Bind(policy Policy) {
	s.policy = policy
	s.Payments.bind(policy.Fees, policy.StoreCreditMaxInstallments)
}

// AddLine places an item on the cart.
func (s *Sale) AddLine(item Item, qty int) error {
	return s.Cart.AddLine(item, qty)
}

// RemoveLine removes the line for itemID, reporting whether it existed.
func (s *Sale) RemoveLine(itemID string) bool {
	return s.Cart.RemoveLine(itemID)
}

// SetDiscount replaces the sale discount.
func (s *Sale) SetDiscount(d Discount) error {
	if err := d.Validate(); err != nil {
		return err
	}
	d.Value = round(d.Value)
	s.Discount = &d
	return nil
}

// ClearDiscount removes the sale discount.
func (s *Sale) ClearDiscount() {
	s.Discount = nil
}

// AddPayment appends a payment entry.
func (s *Sale) AddPayment(m Method) (int, bool, error) {
	return s.Payments.Add(m)
}

// SetPaymentAmount updates the amount of payment i.
func (s *Sale) SetPaymentAmount(i int, amount decimal.Decimal) error {
	return s.Payments.SetAmount(i, amount)
}

// SetPaymentInstallments updates the installment count of payment i.
func (s *Sale) SetPaymentInstallments(i, n int) error {
	return s.Payments.SetInstallments(i, n)
}

// SetPaymentInterest updates the interest election of payment i.
func (s *Sale) SetPaymentInterest(i int, elected bool) error {
	return s.Payments.SetInterest(i, elected)
}

// RemovePayment drops payment i.
func (s *Sale) RemovePayment(i int) error {
	return s.Payments.Remove(i)
}

// SetSeller selects the seller.
func (s *Sale) SetSeller(id string) {
	s.SellerID = strings.TrimSpace(id)
}

// SetCustomer selects the customer; an empty id falls back to the walk-in placeholder.
func (s *Sale) SetCustomer(id string) {
	s.CustomerID = strings.TrimSpace(id)
}

// Customer returns the selected customer or the walk-in placeholder.
func (s *Sale) Customer() string {
	if s.CustomerID != "" {
		return s.CustomerID
	}
	return s.policy.walkIn()
}

// DiscountAmount returns the effective discount for the current subtotal.
func (s *Sale) DiscountAmount() decimal.Decimal {
	if s.Discount == nil {
		return decimal.Zero
	}
	return s.Discount.Apply(s.Cart.Subtotal())
}

// Summary recomputes every derived total.
func (s *Sale) Summary() Summary {
	return Reconcile(
		s.Cart.Subtotal(),
		s.DiscountAmount(),
		s.Payments.TotalFees(),
		s.Payments.TotalInterest(),
		s.Payments.TotalPaid(),
	)
}

// SettleAmount returns the amount a new entry of method m must carry to bring
// the balance to zero. Card fees grow with the amount, so the remaining balance
// is grossed up by the fee rate.
func (s *Sale) SettleAmount(m Method) decimal.Decimal {
	remaining := s.Summary().Remaining
	if !remaining.IsPositive() {
		return decimal.Zero
	}
	rate := s.policy.Fees.feeRate(m)
	net := decimal.NewFromInt(1).Sub(rate)
	if !net.IsPositive() {
		return remaining
	}
	return round(remaining.Div(net))
}

// Receipt is the immutable snapshot of a finalized sale.
type Receipt struct {
	SaleID      string    `json:"saleId"`
	SellerID    string    `json:"sellerId"`
	CustomerID  string    `json:"customerId"`
	Lines       []Line    `json:"lines"`
	Discount    *Discount `json:"discount,omitempty"`
	Payments    []Entry   `json:"payments"`
	Summary     Summary   `json:"summary"`
	FinalizedAt time.Time `json:"finalizedAt"`
}

// Check runs the finalize gate without mutating the sale.
func (s *Sale) Check() (Summary, error) {
	summary := s.Summary()
	if s.Cart.Len() == 0 {
		return summary, ErrEmptyCart
	}
	if s.SellerID == "" {
		return summary, &MissingFieldError{Field: "seller"}
	}
	switch summary.State {
	case StateOverpaid:
		return summary, fmt.Errorf("overpaid by %s: %w", summary.Balance.Neg().StringFixed(2), ErrOverpayment)
	case StateIncomplete:
		return summary, &PaymentIncompleteError{Missing: summary.Remaining}
	}
	return summary, nil
}

// Finalize validates the sale and, when it is balanced, returns its receipt
// and resets the cart, discount and payments. A rejected sale is left untouched.
func (s *Sale) Finalize(now time.Time) (Receipt, error) {
	summary, err := s.Check()
	if err != nil {
		return Receipt{}, err
	}
	var discount *Discount
	if s.Discount != nil {
		d := *s.Discount
		discount = &d
	}
	receipt := Receipt{
		SaleID:      s.ID,
		SellerID:    s.SellerID,
		CustomerID:  s.Customer(),
		Lines:       append([]Line(nil), s.Cart.Lines...),
		Discount:    discount,
		Payments:    append([]Entry(nil), s.Payments.Entries...),
		Summary:     summary,
		FinalizedAt: now.UTC(),
	}
	s.Reset()
	return receipt, nil
}

// Reset clears cart, discount and payments. Seller and customer are kept.
func (s *Sale) Reset() {
	s.Cart = Cart{}
	s.Discount = nil
	s.Payments.Entries = nil
}
