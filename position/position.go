// Package position manages the lifecycle of held trade lots: open, mark to
// market, close and delete, together with their profit and loss.
package position

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/market"
)

type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusDeleted Status = "deleted"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed || s == StatusDeleted
}

type Position struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	PortfolioID   string           `json:"portfolio_id,omitempty"`
	Symbol        string           `json:"symbol"`
	Side          market.Side      `json:"side"`
	Volume        decimal.Decimal  `json:"volume"`
	OpenTime      time.Time        `json:"open_time"`
	OpenPrice     decimal.Decimal  `json:"open_price"`
	CloseTime     *time.Time       `json:"close_time,omitempty"`
	ClosePrice    *decimal.Decimal `json:"close_price,omitempty"`
	CurrentPrice  decimal.Decimal  `json:"current_price"`
	PurchaseValue decimal.Decimal  `json:"purchase_value"`
	Commission    decimal.Decimal  `json:"commission"`
	Swap          decimal.Decimal  `json:"swap"`
	Taxes         decimal.Decimal  `json:"taxes"`
	Currency      string           `json:"currency"`
	Status        Status           `json:"status"`
	GrossPL       decimal.Decimal  `json:"gross_pl"`
	NetPL         decimal.Decimal  `json:"net_pl"`
	StopLoss      *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit    *decimal.Decimal `json:"take_profit,omitempty"`
	Comment       string           `json:"comment,omitempty"`
	SourceOrderID string           `json:"source_order_id,omitempty"`
	DeletedAt     *time.Time       `json:"deleted_at,omitempty"`
	DeleteReason  string           `json:"delete_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`

	// Version is bumped by the store on every update and checked on write.
	Version int64 `json:"version"`
}

func (p *Position) IsOpen() bool { return p.Status == StatusOpen }

// ListFilter narrows a listing. With no Statuses, deleted positions are
// left out.
type ListFilter struct {
	Statuses    []Status
	Symbol      string
	PortfolioID string
	Limit       int
	Offset      int
}

// Store persists positions.
//
// InsertPosition reports errs.ErrDuplicateID when the id is taken.
// GetPosition and DeletePosition report errs.ErrNotFound for ids that are
// missing or belong to another user. UpdatePosition writes only when the
// stored version equals p.Version, bumps p.Version on success and reports
// errs.ErrStale otherwise.
type Store interface {
	InsertPosition(ctx context.Context, p *Position) error
	GetPosition(ctx context.Context, userID, positionID string) (*Position, error)
	ListPositions(ctx context.Context, userID string, f ListFilter) ([]*Position, error)
	UpdatePosition(ctx context.Context, p *Position) error
	DeletePosition(ctx context.Context, userID, positionID string) error
}

// PortfolioChecker answers whether a user owns a portfolio.
type PortfolioChecker interface {
	OwnsPortfolio(ctx context.Context, userID, portfolioID string) (bool, error)
}
