package position

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// CurrencySummary totals a user's positions held in one currency.
type CurrencySummary struct {
	Currency        string          `json:"currency"`
	Open            int             `json:"open"`
	Closed          int             `json:"closed"`
	UnrealizedPL    decimal.Decimal `json:"unrealized_pl"`
	RealizedGrossPL decimal.Decimal `json:"realized_gross_pl"`
	RealizedNetPL   decimal.Decimal `json:"realized_net_pl"`
	Commission      decimal.Decimal `json:"commission"`
	Taxes           decimal.Decimal `json:"taxes"`
}

// Summary totals open and closed positions per currency, ascending by code.
// Deleted positions do not count.
func (m *Manager) Summary(ctx context.Context, userID string) ([]CurrencySummary, error) {
	list, err := m.List(ctx, userID, ListFilter{})
	if err != nil {
		return nil, err
	}
	return Summarize(list), nil
}

func Summarize(list []*Position) []CurrencySummary {
	byCur := map[string]*CurrencySummary{}
	for _, p := range list {
		if p.Status == StatusDeleted {
			continue
		}
		s, ok := byCur[p.Currency]
		if !ok {
			s = &CurrencySummary{Currency: p.Currency}
			byCur[p.Currency] = s
		}
		s.Commission = s.Commission.Add(p.Commission)
		s.Taxes = s.Taxes.Add(p.Taxes)
		switch p.Status {
		case StatusOpen:
			s.Open++
			s.UnrealizedPL = s.UnrealizedPL.Add(p.GrossPL)
		case StatusClosed:
			s.Closed++
			s.RealizedGrossPL = s.RealizedGrossPL.Add(p.GrossPL)
			s.RealizedNetPL = s.RealizedNetPL.Add(p.NetPL)
		}
	}

	out := make([]CurrencySummary, 0, len(byCur))
	for _, s := range byCur {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
