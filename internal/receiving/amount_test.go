package receiving

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want int64
	}{
		{"dot thousands", "12.000", 12000},
		{"comma thousands", "12,000", 12000},
		{"int passthrough", 12000, 12000},
		{"int64 passthrough", int64(-5), -5},
		{"float rounded", 12.6, 13},
		{"empty", "", 0},
		{"nil", nil, 0},
		{"letters only", "abc", 0},
		{"currency suffix", "150.000 đ", 150000},
		{"dot thousands comma decimals", "1.234.567,89", 1234567},
		{"comma before dot keeps first group", "1,234.56", 1},
		{"trailing dot", "12.000.", 12},
		{"bare digits", "42", 42},
		{"spaces", " 1 200 ", 1200},
		{"overflow", "99999999999999999999", 0},
		{"nan", math.NaN(), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseAmount(tc.raw))
		})
	}
}

func TestParseAmountIdempotent(t *testing.T) {
	for _, raw := range []any{"12.000", "12,000", "1.234.567,89", "150.000 đ", 7, ""} {
		once := ParseAmount(raw)
		assert.Equal(t, once, ParseAmount(once), "input %v", raw)
	}
}
