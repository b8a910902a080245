package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position or order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide accepts BUY/SELL in any case.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, true
	case Sell:
		return Sell, true
	}
	return "", false
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

// Sign is +1 for BUY and -1 for SELL.
func (s Side) Sign() decimal.Decimal {
	if s == Sell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// GrossPL is the price driven profit of holding volume from entry to mark.
func GrossPL(side Side, entry, mark, volume decimal.Decimal) decimal.Decimal {
	return mark.Sub(entry).Mul(volume).Mul(side.Sign())
}
