package ticket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newPlan() *Plan {
	p := &Plan{}
	p.bind(scheduleWithTable(), 10)
	return p
}

func TestPlanAddDefaults(t *testing.T) {
	p := newPlan()
	i, valuation, err := p.Add(MethodCash)
	require.NoError(t, err)
	require.False(t, valuation)
	require.Equal(t, 0, i)
	require.True(t, p.Entries[0].Amount.IsZero())
	require.Equal(t, 1, p.Entries[0].Installments)

	i, valuation, err = p.Add(MethodTradeIn)
	require.NoError(t, err)
	require.True(t, valuation)
	require.Equal(t, 1, i)

	_, _, err = p.Add("cheque")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, 2, p.Len())
}

func TestPlanEditsOnlyTouchTheirEntry(t *testing.T) {
	p := newPlan()
	a, _, _ := p.Add(MethodCredit)
	b, _, _ := p.Add(MethodDebit)
	require.NoError(t, p.SetAmount(b, dec("100")))
	before := p.Entries[b]

	require.NoError(t, p.SetAmount(a, dec("1000")))
	require.NoError(t, p.SetInstallments(a, 6))
	require.NoError(t, p.SetInterest(a, true))

	require.Equal(t, before, p.Entries[b])
	require.True(t, p.Entries[a].Charges.InterestRate.Equal(dec("3.5")))
	require.True(t, p.Entries[a].Charges.InstallmentValue.Equal(dec("172.50")))
}

func TestPlanSetterGuards(t *testing.T) {
	p := newPlan()
	cash, _, _ := p.Add(MethodCash)
	store, _, _ := p.Add(MethodStoreCredit)
	credit, _, _ := p.Add(MethodCredit)

	require.ErrorIs(t, p.SetAmount(cash, dec("-1")), ErrInvalidInput)
	require.ErrorIs(t, p.SetInstallments(cash, 2), ErrInvalidInput)
	require.NoError(t, p.SetInstallments(cash, 1))
	require.ErrorIs(t, p.SetInterest(cash, true), ErrInvalidInput)
	require.ErrorIs(t, p.SetInstallments(store, 11), ErrInvalidInput)
	require.NoError(t, p.SetInstallments(store, 10))
	require.ErrorIs(t, p.SetInstallments(credit, 19), ErrInvalidInput)
	require.ErrorIs(t, p.SetInstallments(credit, 0), ErrInvalidInput)
	require.ErrorIs(t, p.SetAmount(7, dec("1")), ErrPaymentNotFound)
	require.ErrorIs(t, p.Remove(-1), ErrPaymentNotFound)
}

func TestPlanRemoveDownToEmpty(t *testing.T) {
	p := newPlan()
	p.Add(MethodCash)
	p.Add(MethodPix)
	require.NoError(t, p.SetAmount(0, dec("10")))
	require.NoError(t, p.SetAmount(1, dec("20")))

	require.NoError(t, p.Remove(0))
	require.True(t, p.TotalPaid().Equal(dec("20")))
	require.NoError(t, p.Remove(0))
	require.Zero(t, p.Len())
	require.True(t, p.TotalPaid().IsZero())
	require.True(t, p.TotalFees().IsZero())
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Credit ")
	require.NoError(t, err)
	require.Equal(t, MethodCredit, m)
	_, err = ParseMethod("voucher")
	require.ErrorIs(t, err, ErrInvalidInput)
}
