// Package ledger records cash movements and derives per-currency balances
// from them. Amounts are stored as magnitudes; the sign of a movement comes
// from its type when balances are computed.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	Deposit    EntryType = "deposit"
	Withdrawal EntryType = "withdrawal"
	Dividend   EntryType = "dividend"
	Interest   EntryType = "interest"
	Fee        EntryType = "fee"
	Bonus      EntryType = "bonus"
	Transfer   EntryType = "transfer"
	Adjustment EntryType = "adjustment"
)

// EntryTypes lists every type in display order.
var EntryTypes = []EntryType{Deposit, Withdrawal, Dividend, Interest, Fee, Bonus, Transfer, Adjustment}

func (t EntryType) Valid() bool {
	for _, v := range EntryTypes {
		if t == v {
			return true
		}
	}
	return false
}

// CallerSigned reports whether the amount of this type carries its own sign.
func (t EntryType) CallerSigned() bool {
	return t == Transfer || t == Adjustment
}

type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
	StatusCancelled EntryStatus = "cancelled"
)

func (s EntryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Tax is stored alongside an entry as reported by the broker. Nothing here is
// computed.
type Tax struct {
	Amount   decimal.Decimal `json:"amount"`
	Rate     decimal.Decimal `json:"rate"`
	Country  string          `json:"country,omitempty"`
	Withheld bool            `json:"withheld"`
}

// Entry is one recorded cash movement.
type Entry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Type       EntryType       `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OccurredAt time.Time       `json:"occurred_at"`
	Status     EntryStatus     `json:"status"`
	Comment    string          `json:"comment,omitempty"`
	Symbol     string          `json:"symbol,omitempty"`
	Tax        *Tax            `json:"tax,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	// Version is bumped by the store on every update and checked on write.
	Version int64 `json:"version"`
}

// Contribution is the signed effect of the entry on its currency balance.
func (e *Entry) Contribution() decimal.Decimal {
	switch e.Type {
	case Deposit, Dividend, Interest, Bonus:
		return e.Amount.Abs()
	case Withdrawal, Fee:
		return e.Amount.Abs().Neg()
	default:
		return e.Amount
	}
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Types    []EntryType
	Statuses []EntryStatus
	Currency string
	Symbol   string
	From     *time.Time // inclusive
	UpTo     *time.Time // inclusive
	Limit    int
	Offset   int
}
