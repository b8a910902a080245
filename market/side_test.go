package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseSide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Side
		ok   bool
	}{
		{"BUY", Buy, true},
		{"sell", Sell, true},
		{" Buy ", Buy, true},
		{"hold", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseSide(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestGrossPL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		side   Side
		entry  string
		mark   string
		volume string
		want   string
	}{
		{"buy_up", Buy, "100", "110", "10", "100"},
		{"buy_down", Buy, "100", "95", "10", "-50"},
		{"sell_up", Sell, "100", "110", "10", "-100"},
		{"sell_down", Sell, "1.2000", "1.1950", "1000", "5"},
		{"flat", Sell, "42.5", "42.5", "7", "0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := GrossPL(tt.side, d(tt.entry), d(tt.mark), d(tt.volume))
			assert.True(t, d(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestNormalizeCurrency(t *testing.T) {
	t.Parallel()

	code, ok := NormalizeCurrency(" usd")
	assert.True(t, ok)
	assert.Equal(t, "USD", code)

	_, ok = NormalizeCurrency("XYZQ")
	assert.False(t, ok)

	_, ok = NormalizeCurrency("")
	assert.False(t, ok)
}
