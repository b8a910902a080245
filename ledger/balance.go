package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/market"
)

// CurrencyBalance is the aggregate of one currency's entries.
type CurrencyBalance struct {
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	TotalInflow  decimal.Decimal `json:"total_inflow"`
	TotalOutflow decimal.Decimal `json:"total_outflow"`
	Count        int             `json:"count"`
}

// Balances is ordered ascending by currency code.
type Balances []CurrencyBalance

// Get returns the balance for code, or a zero balance when there is none.
func (b Balances) Get(code string) CurrencyBalance {
	if c, ok := market.NormalizeCurrency(code); ok {
		code = c
	}
	for _, cb := range b {
		if cb.Currency == code {
			return cb
		}
	}
	return CurrencyBalance{Currency: code}
}

// BalanceQuery selects the entries that make up a balance. A zero Status
// means completed entries only.
type BalanceQuery struct {
	Currency string
	UpTo     *time.Time
	Status   EntryStatus
}

// Flow is the total movement of one entry type in one currency.
type Flow struct {
	Currency string          `json:"currency"`
	Type     EntryType       `json:"type"`
	Total    decimal.Decimal `json:"total"` // sum of magnitudes
	Net      decimal.Decimal `json:"net"`   // sum of signed contributions
	Count    int             `json:"count"`
}

type FlowQuery struct {
	Currency string
	From     *time.Time
	UpTo     *time.Time
	Status   EntryStatus
}

// Aggregator derives balances from ledger entries. It only reads; a result
// may miss writes that commit while it runs.
type Aggregator struct {
	entries Reader
}

func NewAggregator(r Reader) *Aggregator {
	return &Aggregator{entries: r}
}

// ComputeBalances sums the signed contributions of the selected entries per
// currency. No conversion between currencies takes place.
func (a *Aggregator) ComputeBalances(ctx context.Context, userID string, q BalanceQuery) (Balances, error) {
	f, err := balanceFilter(q.Currency, nil, q.UpTo, q.Status)
	if err != nil {
		return nil, err
	}
	entries, err := a.entries.ListEntries(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	return Aggregate(entries), nil
}

// ComputeFlows groups the selected entries by currency and type.
func (a *Aggregator) ComputeFlows(ctx context.Context, userID string, q FlowQuery) ([]Flow, error) {
	f, err := balanceFilter(q.Currency, q.From, q.UpTo, q.Status)
	if err != nil {
		return nil, err
	}
	entries, err := a.entries.ListEntries(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	return Flows(entries), nil
}

// Aggregate folds entries into per-currency balances.
func Aggregate(entries []*Entry) Balances {
	byCur := map[string]*CurrencyBalance{}
	for _, e := range entries {
		cb, ok := byCur[e.Currency]
		if !ok {
			cb = &CurrencyBalance{Currency: e.Currency}
			byCur[e.Currency] = cb
		}
		c := e.Contribution()
		cb.Balance = cb.Balance.Add(c)
		if c.IsNegative() {
			cb.TotalOutflow = cb.TotalOutflow.Add(c.Neg())
		} else {
			cb.TotalInflow = cb.TotalInflow.Add(c)
		}
		cb.Count++
	}

	out := make(Balances, 0, len(byCur))
	for _, cb := range byCur {
		out = append(out, *cb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// Flows folds entries into per-currency, per-type totals.
func Flows(entries []*Entry) []Flow {
	type key struct {
		cur string
		typ EntryType
	}
	byKey := map[key]*Flow{}
	for _, e := range entries {
		k := key{e.Currency, e.Type}
		fl, ok := byKey[k]
		if !ok {
			fl = &Flow{Currency: e.Currency, Type: e.Type}
			byKey[k] = fl
		}
		c := e.Contribution()
		fl.Total = fl.Total.Add(c.Abs())
		fl.Net = fl.Net.Add(c)
		fl.Count++
	}

	out := make([]Flow, 0, len(byKey))
	for _, fl := range byKey {
		out = append(out, *fl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Currency != out[j].Currency {
			return out[i].Currency < out[j].Currency
		}
		return typeRank(out[i].Type) < typeRank(out[j].Type)
	})
	return out
}

func typeRank(t EntryType) int {
	for i, v := range EntryTypes {
		if v == t {
			return i
		}
	}
	return len(EntryTypes)
}

func balanceFilter(currency string, from, upTo *time.Time, status EntryStatus) (Filter, error) {
	if status == "" {
		status = StatusCompleted
	}
	if !status.Valid() {
		return Filter{}, errs.Validation("unknown entry status %q", status)
	}
	f := Filter{Statuses: []EntryStatus{status}, From: from, UpTo: upTo}
	if currency != "" {
		cur, ok := market.NormalizeCurrency(currency)
		if !ok {
			return Filter{}, errs.Validation("unknown currency %q", currency)
		}
		f.Currency = cur
	}
	return f, nil
}
