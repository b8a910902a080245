package journal

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/position"
)

const positionColumns = `id, user_id, portfolio_id, symbol, side, volume, open_time, open_price,
	close_time, close_price, current_price, purchase_value, commission, swap, taxes,
	currency, status, gross_pl, net_pl, stop_loss, take_profit, comment, source_order_id,
	deleted_at, delete_reason, created_at, updated_at, version`

func (j *SQLite) InsertPosition(ctx context.Context, p *position.Position) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO positions (`+positionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		p.ID, p.UserID, p.PortfolioID, p.Symbol, string(p.Side), p.Volume,
		nanos(p.OpenTime), p.OpenPrice, nullNanos(p.CloseTime), nullDecimal(p.ClosePrice),
		p.CurrentPrice, p.PurchaseValue, p.Commission, p.Swap, p.Taxes,
		p.Currency, string(p.Status), p.GrossPL, p.NetPL,
		nullDecimal(p.StopLoss), nullDecimal(p.TakeProfit), p.Comment, p.SourceOrderID,
		nullNanos(p.DeletedAt), p.DeleteReason, nanos(p.CreatedAt), nanos(p.UpdatedAt),
	)
	if err != nil {
		return insertErr(err, "position")
	}
	p.Version = 1
	return nil
}

func (j *SQLite) GetPosition(ctx context.Context, userID, positionID string) (*position.Position, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE id = ? AND user_id = ?`, positionID, userID)

	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("position %q", positionID)
	}
	return p, err
}

// ListPositions returns matching positions in open-time order.
func (j *SQLite) ListPositions(ctx context.Context, userID string, f position.ListFilter) ([]*position.Position, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	w.in("status", strs(f.Statuses))
	if f.Symbol != "" {
		w.add("symbol = ?", f.Symbol)
	}
	if f.PortfolioID != "" {
		w.add("portfolio_id = ?", f.PortfolioID)
	}
	q := `SELECT ` + positionColumns + ` FROM positions` + w.String() +
		` ORDER BY open_time ASC, id ASC` + w.page(f.Limit, f.Offset)

	rows, err := j.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "journal: list positions")
	}
	defer rows.Close()

	var out []*position.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "journal: list positions")
	}
	return out, nil
}

// UpdatePosition writes p if nobody else has since p.Version was read.
func (j *SQLite) UpdatePosition(ctx context.Context, p *position.Position) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE positions SET
			portfolio_id = ?, volume = ?, close_time = ?, close_price = ?, current_price = ?,
			purchase_value = ?, commission = ?, swap = ?, taxes = ?, status = ?,
			gross_pl = ?, net_pl = ?, stop_loss = ?, take_profit = ?, comment = ?,
			deleted_at = ?, delete_reason = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?`,
		p.PortfolioID, p.Volume, nullNanos(p.CloseTime), nullDecimal(p.ClosePrice), p.CurrentPrice,
		p.PurchaseValue, p.Commission, p.Swap, p.Taxes, string(p.Status),
		p.GrossPL, p.NetPL, nullDecimal(p.StopLoss), nullDecimal(p.TakeProfit), p.Comment,
		nullNanos(p.DeletedAt), p.DeleteReason, nanos(p.UpdatedAt),
		p.ID, p.UserID, p.Version,
	)
	if err != nil {
		return errors.Wrap(err, "journal: update position")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "journal: update position")
	}
	if n == 0 {
		return j.staleOrMissing(ctx, "positions", p.UserID, p.ID)
	}
	p.Version++
	return nil
}

func (j *SQLite) DeletePosition(ctx context.Context, userID, positionID string) error {
	return j.deleteRow(ctx, "positions", userID, positionID)
}

func scanPosition(s scanner) (*position.Position, error) {
	var (
		p                                position.Position
		side, status                     string
		openTime, created, updated       int64
		closeTime, deletedAt             sql.NullInt64
		closePrice, stopLoss, takeProfit decimal.NullDecimal
	)
	err := s.Scan(
		&p.ID, &p.UserID, &p.PortfolioID, &p.Symbol, &side, &p.Volume, &openTime, &p.OpenPrice,
		&closeTime, &closePrice, &p.CurrentPrice, &p.PurchaseValue, &p.Commission, &p.Swap, &p.Taxes,
		&p.Currency, &status, &p.GrossPL, &p.NetPL, &stopLoss, &takeProfit, &p.Comment, &p.SourceOrderID,
		&deletedAt, &p.DeleteReason, &created, &updated, &p.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "journal: scan position")
	}
	p.Side = market.Side(side)
	p.Status = position.Status(status)
	p.OpenTime = fromNanos(openTime)
	p.CloseTime = timePtr(closeTime)
	p.ClosePrice = decimalPtr(closePrice)
	p.StopLoss = decimalPtr(stopLoss)
	p.TakeProfit = decimalPtr(takeProfit)
	p.DeletedAt = timePtr(deletedAt)
	p.CreatedAt = fromNanos(created)
	p.UpdatedAt = fromNanos(updated)
	return &p, nil
}
