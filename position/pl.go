package position

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/market"
)

// UnrealizedPL is the gross P&L of p marked at price.
func UnrealizedPL(p *Position, price decimal.Decimal) decimal.Decimal {
	return market.GrossPL(p.Side, p.OpenPrice, price, p.Volume)
}

// NetPL subtracts the cost of holding a position from its gross P&L. Swap
// is a cost whichever way it was booked.
func NetPL(gross, commission, taxes, swap decimal.Decimal) decimal.Decimal {
	return gross.Sub(commission).Sub(taxes).Sub(swap.Abs())
}
