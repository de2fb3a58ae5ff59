package ticket

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Method identifies how a payment entry is settled.
type Method string

const (
	MethodCash        Method = "cash"
	MethodPix         Method = "pix"
	MethodDebit       Method = "debit"
	MethodCredit      Method = "credit"
	MethodPromissory  Method = "promissory"
	MethodTradeIn     Method = "trade_in"
	MethodStoreCredit Method = "store_credit"
)

// Methods lists every accepted payment method.
func Methods() []Method {
	return []Method{MethodCash, MethodPix, MethodDebit, MethodCredit, MethodPromissory, MethodTradeIn, MethodStoreCredit}
}

// ParseMethod normalises a method name.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q: %w", s, ErrInvalidInput)
	}
	return m, nil
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	for _, known := range Methods() {
		if m == known {
			return true
		}
	}
	return false
}

// Installable reports whether the method accepts more than one installment.
func (m Method) Installable() bool {
	return m == MethodCredit || m == MethodStoreCredit
}

// Entry is one payment method covering part of the sale.
type Entry struct {
	Method       Method          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
	Interest     bool            `json:"interest"`
	Charges      Charges         `json:"charges"`
}

// Plan is the ordered list of payment entries. Every setter recomputes the
// charges of the entry it touches and of no other.
type Plan struct {
	Entries []Entry `json:"entries"`

	fees           FeeSchedule
	maxStoreCredit int
}

func (p *Plan) bind(fees FeeSchedule, maxStoreCredit int) {
	p.fees = fees
	p.maxStoreCredit = maxStoreCredit
	for i := range p.Entries {
		p.recompute(i)
	}
}

// Add appends an entry with a zero amount and returns its index. needsValuation
// is true for trade-ins, whose amount comes from an external valuation flow.
func (p *Plan) Add(m Method) (index int, needsValuation bool, err error) {
	if !m.Valid() {
		return -1, false, fmt.Errorf("unknown payment method %q: %w", m, ErrInvalidInput)
	}
	p.Entries = append(p.Entries, Entry{Method: m, Amount: decimal.Zero, Installments: 1})
	index = len(p.Entries) - 1
	p.recompute(index)
	return index, m == MethodTradeIn, nil
}

// SetAmount changes the amount covered by entry i.
func (p *Plan) SetAmount(i int, amount decimal.Decimal) error {
	if err := p.check(i); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("amount must not be negative: %w", ErrInvalidInput)
	}
	p.Entries[i].Amount = round(amount)
	p.recompute(i)
	return nil
}

// SetInstallments changes the installment count of entry i.
func (p *Plan) SetInstallments(i, n int) error {
	if err := p.check(i); err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("installments must be positive: %w", ErrInvalidInput)
	}
	m := p.Entries[i].Method
	if !m.Installable() && n != 1 {
		return fmt.Errorf("%s does not accept installments: %w", m, ErrInvalidInput)
	}
	if limit := p.installmentLimit(m); n > limit {
		return fmt.Errorf("%s accepts at most %d installments: %w", m, limit, ErrInvalidInput)
	}
	p.Entries[i].Installments = n
	p.recompute(i)
	return nil
}

// SetInterest records whether the customer elected interest-bearing installments.
func (p *Plan) SetInterest(i int, elected bool) error {
	if err := p.check(i); err != nil {
		return err
	}
	if p.Entries[i].Method != MethodCredit && elected {
		return fmt.Errorf("interest applies to credit only: %w", ErrInvalidInput)
	}
	p.Entries[i].Interest = elected
	p.recompute(i)
	return nil
}

// Remove drops entry i. An empty plan is valid.
func (p *Plan) Remove(i int) error {
	if err := p.check(i); err != nil {
		return err
	}
	p.Entries = append(p.Entries[:i], p.Entries[i+1:]...)
	return nil
}

// TotalPaid sums every entry amount.
func (p Plan) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.Entries {
		total = total.Add(e.Amount)
	}
	return total
}

// TotalFees sums card fees.
func (p Plan) TotalFees() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.Entries {
		total = total.Add(e.Charges.FeeAmount)
	}
	return total
}

// TotalInterest sums installment interest. It is reported but not owed to the store.
func (p Plan) TotalInterest() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.Entries {
		total = total.Add(e.Charges.InterestAmount)
	}
	return total
}

// Len returns the number of entries.
func (p Plan) Len() int {
	return len(p.Entries)
}

func (p *Plan) recompute(i int) {
	e := &p.Entries[i]
	if e.Installments < 1 {
		e.Installments = 1
	}
	e.Charges = p.fees.Charges(e.Method, e.Amount, e.Installments, e.Interest)
}

func (p Plan) installmentLimit(m Method) int {
	if m == MethodStoreCredit && p.maxStoreCredit > 0 {
		return p.maxStoreCredit
	}
	return p.fees.maxInstallments()
}

func (p Plan) check(i int) error {
	if i < 0 || i >= len(p.Entries) {
		return fmt.Errorf("payment %d: %w", i, ErrPaymentNotFound)
	}
	return nil
}
