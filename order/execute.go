package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/position"
)

// ExecuteSpec describes a fill. A nil Volume fills whatever remains and a
// nil CreatePosition falls back to the manager default.
type ExecuteSpec struct {
	Price          decimal.Decimal
	Volume         *decimal.Decimal
	Commission     decimal.Decimal
	Fees           decimal.Decimal
	Time           time.Time
	CreatePosition *bool
}

// PositionOutcome says what happened to the position a fill may open.
type PositionOutcome string

const (
	PositionSkipped   PositionOutcome = "skipped"
	PositionSucceeded PositionOutcome = "succeeded"
	PositionFailed    PositionOutcome = "failed"
)

type ExecuteResult struct {
	Order     *Order
	Position  *position.Position
	Remaining decimal.Decimal

	PositionOutcome PositionOutcome
	// PositionErr is why the position could not be opened or linked. It
	// never fails the execution.
	PositionErr error
}

// Execute records a fill against an active order. The order transition is
// committed first. When the fill completes the order, a position is opened
// from it and linked back through the execution record. Trouble on the
// position side is logged and reported in the result.
func (m *Manager) Execute(ctx context.Context, userID, orderID string, spec ExecuteSpec) (*ExecuteResult, error) {
	if !spec.Price.IsPositive() {
		return nil, errs.Validation("executed price must be positive")
	}
	if spec.Volume != nil && !spec.Volume.IsPositive() {
		return nil, errs.Validation("executed volume must be positive")
	}
	if spec.Commission.IsNegative() || spec.Fees.IsNegative() {
		return nil, errs.Validation("commission and fees must not be negative")
	}

	var full bool
	o, err := m.mutate(ctx, userID, orderID, "execute", func(o *Order) error {
		if !o.Active() {
			return errs.Conflict("order %q is %s, only active orders can be executed", o.ID, o.Status)
		}
		vol := o.Volume
		if spec.Volume != nil {
			vol = *spec.Volume
		}
		if vol.GreaterThan(o.Volume) {
			return errs.Invariant("executed volume %s exceeds remaining %s", vol, o.Volume)
		}

		now := m.now()
		at := spec.Time
		if at.IsZero() {
			at = now
		}
		// A fill dated after now would open a position that a default
		// close time can never close.
		if at.Before(o.CreatedAt) {
			return errs.Validation("executed time %s is before the order was created at %s",
				at.UTC().Format(time.RFC3339), o.CreatedAt.UTC().Format(time.RFC3339))
		}
		if at.After(now) {
			return errs.Validation("executed time %s is in the future", at.UTC().Format(time.RFC3339))
		}
		o.Execution = &Execution{
			ExecutedPrice:  spec.Price,
			ExecutedVolume: vol,
			Commission:     spec.Commission,
			Fees:           spec.Fees,
			ExecutedTime:   at.UTC(),
		}

		full = vol.GreaterThanOrEqual(o.Volume)
		if full {
			o.Status = StatusExecuted
			o.Volume = decimal.Zero
		} else {
			o.Status = StatusPartial
			o.Volume = o.Volume.Sub(vol)
		}
		o.PurchaseValue = o.Price.Mul(o.Volume)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger(o).WithFields(logrus.Fields{
		"status":    o.Status,
		"price":     o.Execution.ExecutedPrice.String(),
		"volume":    o.Execution.ExecutedVolume.String(),
		"remaining": o.Volume.String(),
	}).Info("order filled")

	res := &ExecuteResult{
		Order:           o,
		Remaining:       o.Volume,
		PositionOutcome: PositionSkipped,
	}

	create := m.createPosition
	if spec.CreatePosition != nil {
		create = *spec.CreatePosition
	}
	if !full || !create || m.positions == nil {
		return res, nil
	}

	p, err := m.positions.Open(ctx, userID, position.OpenSpec{
		Symbol:        o.Symbol,
		Side:          o.Side,
		Volume:        o.Execution.ExecutedVolume,
		OpenPrice:     o.Execution.ExecutedPrice,
		OpenTime:      o.Execution.ExecutedTime,
		Currency:      o.Currency,
		PortfolioID:   o.PortfolioID,
		Commission:    o.Execution.Commission,
		SourceOrderID: o.ID,
	})
	if err != nil {
		m.logger(o).WithError(err).Warn("order executed but opening its position failed")
		res.PositionOutcome = PositionFailed
		res.PositionErr = err
		return res, nil
	}
	res.Position = p
	res.PositionOutcome = PositionSucceeded

	linked, err := m.mutate(ctx, userID, orderID, "link position", func(o *Order) error {
		if o.Execution == nil || o.Execution.ResultingPositionID != "" {
			return errs.Conflict("order %q already links a position", o.ID)
		}
		o.Execution.ResultingPositionID = p.ID
		return nil
	})
	if err != nil {
		m.logger(o).WithError(err).WithField("position_id", p.ID).Warn("position opened but not linked to its order")
		res.PositionErr = err
		return res, nil
	}
	res.Order = linked
	return res, nil
}
