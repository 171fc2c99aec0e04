package coupon

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{name: "success: empty string", raw: "", wantLen: 0},
		{name: "success: fixed and percent", raw: "SAVE10:fixed:10.00, spring:percent:15", wantLen: 2},
		{name: "success: trailing comma", raw: "SAVE10:fixed:10,", wantLen: 1},
		{name: "error: missing value", raw: "SAVE10:fixed", wantErr: true},
		{name: "error: unknown kind", raw: "SAVE10:bogus:1", wantErr: true},
		{name: "error: bad number", raw: "SAVE10:fixed:ten", wantErr: true},
		{name: "error: percent over 100", raw: "ALL:percent:150", wantErr: true},
		{name: "error: negative value", raw: "NEG:fixed:-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, r.Len())
		})
	}
}

func TestStaticResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	r, err := Parse("SAVE10:fixed:10.00,SPRING:percent:15")
	require.NoError(t, err)

	discount, err := r.Resolve(ctx, "save10", decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	assert.Equal(t, "10.00", discount.StringFixed(2))

	discount, err = r.Resolve(ctx, "SPRING", decimal.RequireFromString("33.33"))
	require.NoError(t, err)
	assert.Equal(t, "4.99", discount.StringFixed(2))

	_, err = r.Resolve(ctx, "NOPE", decimal.RequireFromString("1"))
	assert.ErrorIs(t, err, ErrUnknownCoupon)
}
