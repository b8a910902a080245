// Package order tracks pending limit and stop orders through fills,
// cancellation and expiry. A full fill can open a position.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/position"
)

type Kind string

const (
	Market    Kind = "market"
	Limit     Kind = "limit"
	Stop      Kind = "stop"
	StopLimit Kind = "stop_limit"
)

func (k Kind) Valid() bool {
	switch k {
	case Market, Limit, Stop, StopLimit:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusExecuted  Status = "executed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusExecuted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusCancelled || s == StatusExpired
}

// Execution records a fill. Only the most recent fill is kept.
type Execution struct {
	ExecutedPrice       decimal.Decimal `json:"executed_price"`
	ExecutedVolume      decimal.Decimal `json:"executed_volume"`
	Commission          decimal.Decimal `json:"commission"`
	Fees                decimal.Decimal `json:"fees"`
	ExecutedTime        time.Time       `json:"executed_time"`
	ResultingPositionID string          `json:"resulting_position_id,omitempty"`
}

type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	PortfolioID string      `json:"portfolio_id,omitempty"`
	Symbol      string      `json:"symbol"`
	Kind        Kind        `json:"kind"`
	Side        market.Side `json:"side"`

	// Volume is what remains to be filled.
	Volume         decimal.Decimal `json:"volume"`
	OriginalVolume decimal.Decimal `json:"original_volume"`

	Price         decimal.Decimal `json:"price"`
	StopPrice     decimal.Decimal `json:"stop_price"`
	PurchaseValue decimal.Decimal `json:"purchase_value"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
	ExpiryTime    *time.Time      `json:"expiry_time,omitempty"`
	Comment       string          `json:"comment,omitempty"`
	Execution     *Execution      `json:"execution,omitempty"`

	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	ExpiredAt    *time.Time `json:"expired_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// Active reports whether the order can still be filled.
func (o *Order) Active() bool {
	return o.Status == StatusPending || o.Status == StatusPartial
}

// Filled is the volume executed so far.
func (o *Order) Filled() decimal.Decimal {
	return o.OriginalVolume.Sub(o.Volume)
}

type ListFilter struct {
	Statuses    []Status
	Symbol      string
	PortfolioID string
	Limit       int
	Offset      int
}

// Store persists orders. It follows the same contract as position.Store:
// duplicate ids report errs.ErrDuplicateID, missing or foreign ids report
// errs.ErrNotFound, and UpdateOrder is a version-checked write that reports
// errs.ErrStale when another writer got there first.
type Store interface {
	InsertOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, userID, orderID string) (*Order, error)
	ListOrders(ctx context.Context, userID string, f ListFilter) ([]*Order, error)

	// ListExpirable returns active orders of every user whose expiry is
	// before now.
	ListExpirable(ctx context.Context, now time.Time) ([]*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
}

// PositionOpener opens the position that a full fill produces.
// *position.Manager satisfies it.
type PositionOpener interface {
	Open(ctx context.Context, userID string, spec position.OpenSpec) (*position.Position, error)
}
