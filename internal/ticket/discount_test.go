package ticket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscountApply(t *testing.T) {
	cases := []struct {
		name     string
		discount Discount
		subtotal string
		want     string
	}{
		{name: "percent", discount: Discount{Kind: DiscountPercent, Value: dec("10")}, subtotal: "3200", want: "320"},
		{name: "percent rounds", discount: Discount{Kind: DiscountPercent, Value: dec("7.5")}, subtotal: "99.99", want: "7.5"},
		{name: "fixed", discount: Discount{Kind: DiscountFixed, Value: dec("50")}, subtotal: "200", want: "50"},
		{name: "fixed clamped to subtotal", discount: Discount{Kind: DiscountFixed, Value: dec("500")}, subtotal: "200", want: "200"},
		{name: "empty cart", discount: Discount{Kind: DiscountFixed, Value: dec("10")}, subtotal: "0", want: "0"},
		{name: "full percent", discount: Discount{Kind: DiscountPercent, Value: dec("100")}, subtotal: "42.10", want: "42.10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.discount.Apply(dec(tc.subtotal))
			require.True(t, got.Equal(dec(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestDiscountValidate(t *testing.T) {
	require.NoError(t, Discount{Kind: DiscountPercent, Value: dec("100")}.Validate())
	require.ErrorIs(t, Discount{Kind: DiscountPercent, Value: dec("100.01")}.Validate(), ErrInvalidInput)
	require.ErrorIs(t, Discount{Kind: DiscountFixed, Value: dec("-1")}.Validate(), ErrInvalidInput)
	require.ErrorIs(t, Discount{Kind: "coupon", Value: dec("1")}.Validate(), ErrInvalidInput)
}

func TestDiscountNeverExceedsSubtotal(t *testing.T) {
	subtotals := []string{"0", "0.01", "15", "999.99"}
	values := []string{"0", "0.5", "15", "100", "10000"}
	for _, st := range subtotals {
		for _, v := range values {
			for _, kind := range []DiscountKind{DiscountFixed, DiscountPercent} {
				d := Discount{Kind: kind, Value: dec(v)}
				if d.Validate() != nil {
					continue
				}
				got := d.Apply(dec(st))
				require.False(t, got.IsNegative())
				require.True(t, got.LessThanOrEqual(dec(st)), "%s %s on %s gave %s", kind, v, st, got)
			}
		}
	}
}
