package service

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func amounts(shares []Share) map[string]string {
	out := make(map[string]string, len(shares))
	for _, s := range shares {
		out[s.SellerID] = s.Amount.StringFixed(2)
	}
	return out
}

func TestSplitTotal(t *testing.T) {
	tests := []struct {
		name      string
		subtotals map[string]decimal.Decimal
		total     decimal.Decimal
		want      map[string]string
	}{
		{
			name:      "success: 60/40 with 10.00 discount",
			subtotals: map[string]decimal.Decimal{"shop-a": d("60.00"), "shop-b": d("40.00")},
			total:     d("90.00"),
			want:      map[string]string{"shop-a": "54.00", "shop-b": "36.00"},
		},
		{
			name:      "success: residual cent goes to largest subtotal",
			subtotals: map[string]decimal.Decimal{"shop-a": d("10.00"), "shop-b": d("20.00")},
			total:     d("10.00"),
			want:      map[string]string{"shop-a": "3.33", "shop-b": "6.67"},
		},
		{
			name:      "success: tie on largest subtotal resolved by shop id",
			subtotals: map[string]decimal.Decimal{"shop-c": d("10.00"), "shop-a": d("10.00"), "shop-b": d("10.00")},
			total:     d("10.00"),
			want:      map[string]string{"shop-a": "3.34", "shop-b": "3.33", "shop-c": "3.33"},
		},
		{
			name:      "success: single seller takes everything",
			subtotals: map[string]decimal.Decimal{"shop-a": d("19.99")},
			total:     d("17.49"),
			want:      map[string]string{"shop-a": "17.49"},
		},
		{
			name:      "success: discount covers the whole cart",
			subtotals: map[string]decimal.Decimal{"shop-a": d("5.00"), "shop-b": d("7.00")},
			total:     d("0"),
			want:      map[string]string{"shop-a": "0.00", "shop-b": "0.00"},
		},
		{
			name:      "success: free items only",
			subtotals: map[string]decimal.Decimal{"shop-a": d("0"), "shop-b": d("0")},
			total:     d("0"),
			want:      map[string]string{"shop-a": "0.00", "shop-b": "0.00"},
		},
		{
			name:      "success: free seller alongside paid one",
			subtotals: map[string]decimal.Decimal{"shop-a": d("0"), "shop-b": d("12.50")},
			total:     d("12.50"),
			want:      map[string]string{"shop-a": "0.00", "shop-b": "12.50"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := SplitTotal(tt.subtotals, tt.total)
			assert.Equal(t, tt.want, amounts(shares))
		})
	}
}

func TestSplitTotal_SortedBySeller(t *testing.T) {
	shares := SplitTotal(map[string]decimal.Decimal{"b": d("1"), "c": d("1"), "a": d("1")}, d("3"))
	require.Len(t, shares, 3)
	assert.Equal(t, "a", shares[0].SellerID)
	assert.Equal(t, "b", shares[1].SellerID)
	assert.Equal(t, "c", shares[2].SellerID)
}

func TestSplitTotal_SumsExactly(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := 1 + rnd.Intn(6)
		subtotals := make(map[string]decimal.Decimal, n)
		sum := decimal.Zero
		for j := 0; j < n; j++ {
			v := decimal.New(int64(rnd.Intn(100000)), -minorUnits)
			subtotals[fmt.Sprintf("shop-%d", j)] = v
			sum = sum.Add(v)
		}
		discount := decimal.New(int64(rnd.Intn(20000)), -minorUnits)
		total := sum.Sub(discount)
		if total.IsNegative() {
			total = decimal.Zero
		}

		shares := SplitTotal(subtotals, total)

		got := decimal.Zero
		for _, s := range shares {
			assert.False(t, s.Amount.IsNegative(), "negative share for %s", s.SellerID)
			got = got.Add(s.Amount)
		}
		if sum.IsZero() {
			assert.True(t, got.IsZero())
			continue
		}
		require.True(t, got.Equal(total), "iteration %d: shares sum %s != total %s", i, got, total)
	}
}
