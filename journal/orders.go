package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/order"
)

const orderColumns = `id, user_id, portfolio_id, symbol, kind, side, volume, original_volume,
	price, stop_price, purchase_value, currency, status, expiry_time, comment, execution,
	cancelled_at, cancel_reason, expired_at, created_at, updated_at, version`

func (j *SQLite) InsertOrder(ctx context.Context, o *order.Order) error {
	exec, err := marshalJSON(o.Execution)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		o.ID, o.UserID, o.PortfolioID, o.Symbol, string(o.Kind), string(o.Side), o.Volume, o.OriginalVolume,
		o.Price, o.StopPrice, o.PurchaseValue, o.Currency, string(o.Status), nullNanos(o.ExpiryTime), o.Comment, exec,
		nullNanos(o.CancelledAt), o.CancelReason, nullNanos(o.ExpiredAt), nanos(o.CreatedAt), nanos(o.UpdatedAt),
	)
	if err != nil {
		return insertErr(err, "order")
	}
	o.Version = 1
	return nil
}

func (j *SQLite) GetOrder(ctx context.Context, userID, orderID string) (*order.Order, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = ? AND user_id = ?`, orderID, userID)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("order %q", orderID)
	}
	return o, err
}

func (j *SQLite) ListOrders(ctx context.Context, userID string, f order.ListFilter) ([]*order.Order, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	w.in("status", strs(f.Statuses))
	if f.Symbol != "" {
		w.add("symbol = ?", f.Symbol)
	}
	if f.PortfolioID != "" {
		w.add("portfolio_id = ?", f.PortfolioID)
	}
	return j.queryOrders(ctx, w, ` ORDER BY created_at ASC, id ASC`+w.page(f.Limit, f.Offset))
}

func (j *SQLite) ListExpirable(ctx context.Context, now time.Time) ([]*order.Order, error) {
	w := &where{}
	w.in("status", strs([]order.Status{order.StatusPending, order.StatusPartial}))
	w.add("expiry_time IS NOT NULL AND expiry_time < ?", nanos(now))
	return j.queryOrders(ctx, w, ` ORDER BY expiry_time ASC, id ASC`)
}

func (j *SQLite) queryOrders(ctx context.Context, w *where, tail string) ([]*order.Order, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`+w.String()+tail, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "journal: list orders")
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "journal: list orders")
	}
	return out, nil
}

// UpdateOrder writes o if nobody else has since o.Version was read.
func (j *SQLite) UpdateOrder(ctx context.Context, o *order.Order) error {
	exec, err := marshalJSON(o.Execution)
	if err != nil {
		return err
	}
	res, err := j.db.ExecContext(ctx, `
		UPDATE orders SET
			volume = ?, original_volume = ?, price = ?, stop_price = ?, purchase_value = ?,
			status = ?, expiry_time = ?, comment = ?, execution = ?, cancelled_at = ?,
			cancel_reason = ?, expired_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?`,
		o.Volume, o.OriginalVolume, o.Price, o.StopPrice, o.PurchaseValue,
		string(o.Status), nullNanos(o.ExpiryTime), o.Comment, exec, nullNanos(o.CancelledAt),
		o.CancelReason, nullNanos(o.ExpiredAt), nanos(o.UpdatedAt),
		o.ID, o.UserID, o.Version,
	)
	if err != nil {
		return errors.Wrap(err, "journal: update order")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "journal: update order")
	}
	if n == 0 {
		return j.staleOrMissing(ctx, "orders", o.UserID, o.ID)
	}
	o.Version++
	return nil
}

func scanOrder(s scanner) (*order.Order, error) {
	var (
		o                              order.Order
		kind, side, status             string
		exec                           sql.NullString
		created, updated               int64
		expiry, cancelledAt, expiredAt sql.NullInt64
	)
	err := s.Scan(
		&o.ID, &o.UserID, &o.PortfolioID, &o.Symbol, &kind, &side, &o.Volume, &o.OriginalVolume,
		&o.Price, &o.StopPrice, &o.PurchaseValue, &o.Currency, &status, &expiry, &o.Comment, &exec,
		&cancelledAt, &o.CancelReason, &expiredAt, &created, &updated, &o.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "journal: scan order")
	}
	o.Kind = order.Kind(kind)
	o.Side = market.Side(side)
	o.Status = order.Status(status)
	o.ExpiryTime = timePtr(expiry)
	o.CancelledAt = timePtr(cancelledAt)
	o.ExpiredAt = timePtr(expiredAt)
	o.CreatedAt = fromNanos(created)
	o.UpdatedAt = fromNanos(updated)
	if exec.Valid {
		o.Execution = &order.Execution{}
		if err := sonic.UnmarshalString(exec.String, o.Execution); err != nil {
			return nil, errors.Wrapf(err, "journal: decode execution of order %q", o.ID)
		}
		o.Execution.ExecutedTime = o.Execution.ExecutedTime.UTC()
	}
	return &o, nil
}
