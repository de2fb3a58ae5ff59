package ticket

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var finalizeAt = time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)

func newSale(t *testing.T) *Sale {
	t.Helper()
	return NewSale("sale-1", Policy{Fees: scheduleWithTable(), StoreCreditMaxInstallments: 10})
}

func addPaid(t *testing.T, s *Sale, m Method, amount string) int {
	t.Helper()
	i, _, err := s.AddPayment(m)
	require.NoError(t, err)
	require.NoError(t, s.SetPaymentAmount(i, dec(amount)))
	return i
}

func TestScenarioCashBalanced(t *testing.T) {
	s := newSale(t)
	require.NoError(t, s.AddLine(Item{ID: "imei-1", UnitPrice: dec("3200.00"), Serialized: true}, 1))
	s.SetSeller("seller-7")
	addPaid(t, s, MethodCash, "3200.00")

	summary := s.Summary()
	require.True(t, summary.Subtotal.Equal(dec("3200")))
	require.True(t, summary.Remaining.IsZero())
	require.Equal(t, StateBalanced, summary.State)

	receipt, err := s.Finalize(finalizeAt)
	require.NoError(t, err)
	require.Equal(t, "sale-1", receipt.SaleID)
	require.Equal(t, WalkInCustomer, receipt.CustomerID)
	require.Len(t, receipt.Lines, 1)
	require.Len(t, receipt.Payments, 1)
	require.Equal(t, finalizeAt, receipt.FinalizedAt)

	require.Zero(t, s.Cart.Len())
	require.Zero(t, s.Payments.Len())
	require.Nil(t, s.Discount)
}

func TestScenarioPercentDiscount(t *testing.T) {
	s := newSale(t)
	require.NoError(t, s.AddLine(Item{ID: "imei-1", UnitPrice: dec("3200.00"), Serialized: true}, 1))
	require.NoError(t, s.SetDiscount(Discount{Kind: DiscountPercent, Value: dec("10")}))

	summary := s.Summary()
	require.True(t, summary.DiscountAmount.Equal(dec("320")))
	require.True(t, summary.TotalDue.Equal(dec("2880")))
}

func TestScenarioCreditInstallmentsWithInterest(t *testing.T) {
	s := newSale(t)
	require.NoError(t, s.AddLine(Item{ID: "tv", UnitPrice: dec("1000")}, 1))
	i := addPaid(t, s, MethodCredit, "1000.00")
	require.NoError(t, s.SetPaymentInstallments(i, 6))
	require.NoError(t, s.SetPaymentInterest(i, true))

	c := s.Payments.Entries[i].Charges
	require.True(t, c.InterestRate.Equal(dec("3.5")))
	require.True(t, c.TotalWithInterest.Equal(dec("1035")))
	require.True(t, c.InstallmentValue.Equal(dec("172.50")))
	require.True(t, c.FeeAmount.Equal(dec("35")))

	summary := s.Summary()
	require.True(t, summary.TotalFees.Equal(dec("35")))
	require.True(t, summary.TotalInterest.Equal(dec("35")))
	require.True(t, summary.Remaining.Equal(dec("35")))
	require.Equal(t, StateIncomplete, summary.State)
}

func TestScenarioOverpaymentRejected(t *testing.T) {
	s := newSale(t)
	require.NoError(t, s.AddLine(Item{ID: "speaker", UnitPrice: dec("500")}, 1))
	s.SetSeller("seller-7")
	addPaid(t, s, MethodCash, "300")
	addPaid(t, s, MethodPix, "220")

	_, err := s.Finalize(finalizeAt)
	require.ErrorIs(t, err, ErrOverpayment)
	require.Equal(t, StateOverpaid, s.Summary().State)
	require.True(t, s.Summary().Remaining.IsZero())
	require.Equal(t, 2, s.Payments.Len())
}

func TestScenarioEmptyCartRejected(t *testing.T) {
	s := newSale(t)
	s.SetSeller("seller-7")
	before := *s

	_, err := s.Finalize(finalizeAt)
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Equal(t, before.Cart, s.Cart)
	require.Equal(t, before.Payments.Entries, s.Payments.Entries)
}

func TestScenarioIncompletePayment(t *testing.T) {
	s := newSale(t)
	require.NoError(t, s.AddLine(Item{ID: "case", UnitPrice: dec("100")}, 1))
	s.SetSeller("seller-7")
	addPaid(t, s, MethodCash, "60")

	summary := s.Summary()
	require.True(t, summary.Remaining.Equal(dec("40")))
	require.Equal(t, StateIncomplete, summary.State)

	_, err := s.Finalize(finalizeAt)
	var incomplete *PaymentIncompleteError
	require.True(t, errors.As(err, &incomplete))
	require.True(t, incomplete.Missing.Equal(dec("40")))
	require.Contains(t, err.Error(), "40.00")
	require.Equal(t, 1, s.Cart.Len())
}

func TestFinalizeRequiresSeller(t *testing.T) {
	s := newSale(t)
	require.NoError(t, s.AddLine(Item{ID: "case", UnitPrice: dec("100")}, 1))
	addPaid(t, s, MethodCash, "100")

	_, err := s.Finalize(finalizeAt)
	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "seller", missing.Field)
	require.Equal(t, 1, s.Cart.Len())
	require.Equal(t, 1, s.Payments.Len())
}

func TestFinalizeWithinEpsilon(t *testing.T) {
	s := newSale(t)
	require.NoError(t, s.AddLine(Item{ID: "case", UnitPrice: dec("100")}, 1))
	s.SetSeller("seller-7")
	s.SetCustomer("cust-3")
	addPaid(t, s, MethodCash, "99.99")

	receipt, err := s.Finalize(finalizeAt)
	require.NoError(t, err)
	require.Equal(t, "cust-3", receipt.CustomerID)
}

func TestRemainingDecreasesByPaymentAmount(t *testing.T) {
	s := newSale(t)
	require.NoError(t, s.AddLine(Item{ID: "a", UnitPrice: dec("250")}, 2))
	prior := s.Summary().Remaining

	for _, amount := range []string{"0.01", "120", "379.99", "50"} {
		addPaid(t, s, MethodCash, amount)
		next := s.Summary().Remaining
		want := prior.Sub(dec(amount))
		if want.IsNegative() {
			want = decimal.Zero
		}
		require.True(t, next.Equal(want), "after %s: got %s want %s", amount, next, want)
		prior = next
	}
}

func TestSettleAmountGrossesUpFees(t *testing.T) {
	for _, m := range []Method{MethodCash, MethodDebit, MethodCredit} {
		t.Run(string(m), func(t *testing.T) {
			s := newSale(t)
			require.NoError(t, s.AddLine(Item{ID: "a", UnitPrice: dec("100")}, 1))
			amount := s.SettleAmount(m)
			addPaid(t, s, m, amount.String())
			require.Equal(t, StateBalanced, s.Summary().State, "amount %s", amount)
		})
	}
	s := newSale(t)
	require.True(t, s.SettleAmount(MethodCash).IsZero())
}

func TestSaleRoundTripsThroughJSON(t *testing.T) {
	s := newSale(t)
	require.NoError(t, s.AddLine(Item{ID: "tv", UnitPrice: dec("1000")}, 1))
	require.NoError(t, s.SetDiscount(Discount{Kind: DiscountFixed, Value: dec("100")}))
	i := addPaid(t, s, MethodCredit, "900")
	require.NoError(t, s.SetPaymentInstallments(i, 12))
	require.NoError(t, s.SetPaymentInterest(i, true))

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var restored Sale
	require.NoError(t, json.Unmarshal(raw, &restored))
	restored.Bind(Policy{Fees: scheduleWithTable()})

	want := s.Summary()
	got := restored.Summary()
	require.True(t, want.Balance.Equal(got.Balance))
	require.True(t, want.TotalFees.Equal(got.TotalFees))
	require.True(t, restored.Payments.Entries[i].Charges.InterestRate.Equal(dec("8.9")))
}
