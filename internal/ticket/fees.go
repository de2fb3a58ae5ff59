package ticket

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Default fee configuration observed at the stores.
var (
	DefaultDebitFeePercent  = decimal.RequireFromString("2.5")
	DefaultCreditFeePercent = decimal.RequireFromString("3.5")
)

const (
	// DefaultInterestFreeInstallments is the installment count up to which credit carries no interest.
	DefaultInterestFreeInstallments = 3
	// DefaultMaxInstallments bounds credit and store-credit installment counts.
	DefaultMaxInstallments = 18
)

// FeeSchedule is the read-only card fee and interest configuration.
type FeeSchedule struct {
	DebitFeePercent          decimal.Decimal         `json:"debitFeePercent"`
	CreditFeePercent         decimal.Decimal         `json:"creditFeePercent"`
	InterestFreeInstallments int                     `json:"interestFreeInstallments"`
	MaxInstallments          int                     `json:"maxInstallments"`
	InterestTable            map[int]decimal.Decimal `json:"interestTable"`
}

// DefaultFeeSchedule returns the observed defaults with an empty interest table.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		DebitFeePercent:          DefaultDebitFeePercent,
		CreditFeePercent:         DefaultCreditFeePercent,
		InterestFreeInstallments: DefaultInterestFreeInstallments,
		MaxInstallments:          DefaultMaxInstallments,
		InterestTable:            map[int]decimal.Decimal{},
	}
}

// Validate rejects negative percentages and malformed table keys.
func (s FeeSchedule) Validate() error {
	if s.DebitFeePercent.IsNegative() || s.CreditFeePercent.IsNegative() {
		return fmt.Errorf("fee percent must not be negative: %w", ErrInvalidInput)
	}
	if s.DebitFeePercent.GreaterThanOrEqual(hundred) || s.CreditFeePercent.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("fee percent must be below 100: %w", ErrInvalidInput)
	}
	if s.InterestFreeInstallments < 0 {
		return fmt.Errorf("interest-free threshold must not be negative: %w", ErrInvalidInput)
	}
	for n, rate := range s.InterestTable {
		if n <= 0 {
			return fmt.Errorf("installment count %d: %w", n, ErrInvalidInput)
		}
		if rate.IsNegative() {
			return fmt.Errorf("interest rate for %d installments: %w", n, ErrInvalidInput)
		}
	}
	return nil
}

// InstallmentCounts returns the table keys in ascending order.
func (s FeeSchedule) InstallmentCounts() []int {
	out := make([]int, 0, len(s.InterestTable))
	for n := range s.InterestTable {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (s FeeSchedule) maxInstallments() int {
	if s.MaxInstallments <= 0 {
		return DefaultMaxInstallments
	}
	return s.MaxInstallments
}

// InterestRate returns the table rate for n installments, zero at or below the interest-free threshold.
func (s FeeSchedule) InterestRate(n int) decimal.Decimal {
	if n <= s.InterestFreeInstallments {
		return decimal.Zero
	}
	rate, ok := s.InterestTable[n]
	if !ok {
		return decimal.Zero
	}
	return rate
}

// feeRate is the flat card fee for method as a fraction.
func (s FeeSchedule) feeRate(m Method) decimal.Decimal {
	switch m {
	case MethodDebit:
		return s.DebitFeePercent.Div(hundred)
	case MethodCredit:
		return s.CreditFeePercent.Div(hundred)
	default:
		return decimal.Zero
	}
}

// Charges holds the derived figures of one payment entry.
type Charges struct {
	FeeAmount         decimal.Decimal `json:"feeAmount"`
	InterestRate      decimal.Decimal `json:"interestRate"`
	InterestAmount    decimal.Decimal `json:"interestAmount"`
	TotalWithInterest decimal.Decimal `json:"totalWithInterest"`
	InstallmentValue  decimal.Decimal `json:"installmentValue"`
}

// Charges computes the fee and interest figures for a payment. It is pure.
func (s FeeSchedule) Charges(m Method, amount decimal.Decimal, installments int, interest bool) Charges {
	if installments < 1 {
		installments = 1
	}
	amount = round(amount)
	c := Charges{
		FeeAmount:         decimal.Zero,
		InterestRate:      decimal.Zero,
		InterestAmount:    decimal.Zero,
		TotalWithInterest: amount,
		InstallmentValue:  amount,
	}
	switch m {
	case MethodDebit:
		c.FeeAmount = percentOf(amount, s.DebitFeePercent)
	case MethodCredit:
		c.FeeAmount = percentOf(amount, s.CreditFeePercent)
		if interest && installments > s.InterestFreeInstallments {
			c.InterestRate = s.InterestRate(installments)
			c.InterestAmount = percentOf(amount, c.InterestRate)
			c.TotalWithInterest = amount.Add(c.InterestAmount)
		}
		c.InstallmentValue = round(c.TotalWithInterest.Div(decimal.NewFromInt(int64(installments))))
	case MethodStoreCredit:
		c.InstallmentValue = round(amount.Div(decimal.NewFromInt(int64(installments))))
	}
	return c
}
