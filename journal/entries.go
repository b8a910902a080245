package journal

import (
	"context"
	"database/sql"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/ledger"
)

const entryColumns = `id, user_id, type, amount, currency, occurred_at, status, comment, symbol, tax, created_at, updated_at, version`

func (j *SQLite) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	tax, err := marshalJSON(e.Tax)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		e.ID, e.UserID, string(e.Type), e.Amount, e.Currency, nanos(e.OccurredAt),
		string(e.Status), e.Comment, e.Symbol, tax, nanos(e.CreatedAt), nanos(e.UpdatedAt),
	)
	if err != nil {
		return insertErr(err, "ledger entry")
	}
	e.Version = 1
	return nil
}

func (j *SQLite) GetEntry(ctx context.Context, userID, entryID string) (*ledger.Entry, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE id = ? AND user_id = ?`, entryID, userID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("ledger entry %q", entryID)
	}
	return e, err
}

// ListEntries returns matching entries oldest first.
func (j *SQLite) ListEntries(ctx context.Context, userID string, f ledger.Filter) ([]*ledger.Entry, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	w.in("type", strs(f.Types))
	w.in("status", strs(f.Statuses))
	if f.Currency != "" {
		w.add("currency = ?", f.Currency)
	}
	if f.Symbol != "" {
		w.add("symbol = ?", f.Symbol)
	}
	if f.From != nil {
		w.add("occurred_at >= ?", nanos(*f.From))
	}
	if f.UpTo != nil {
		w.add("occurred_at <= ?", nanos(*f.UpTo))
	}
	q := `SELECT ` + entryColumns + ` FROM ledger_entries` + w.String() +
		` ORDER BY occurred_at ASC, id ASC` + w.page(f.Limit, f.Offset)

	rows, err := j.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "journal: list ledger entries")
	}
	defer rows.Close()

	var out []*ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "journal: list ledger entries")
	}
	return out, nil
}

// UpdateEntry writes e if nobody else has since e.Version was read.
func (j *SQLite) UpdateEntry(ctx context.Context, e *ledger.Entry) error {
	tax, err := marshalJSON(e.Tax)
	if err != nil {
		return err
	}
	res, err := j.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET amount = ?, occurred_at = ?, status = ?, comment = ?, symbol = ?, tax = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?`,
		e.Amount, nanos(e.OccurredAt), string(e.Status), e.Comment, e.Symbol, tax, nanos(e.UpdatedAt),
		e.ID, e.UserID, e.Version,
	)
	if err != nil {
		return errors.Wrap(err, "journal: update ledger entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "journal: update ledger entry")
	}
	if n == 0 {
		return j.staleOrMissing(ctx, "ledger_entries", e.UserID, e.ID)
	}
	e.Version++
	return nil
}

func (j *SQLite) DeleteEntry(ctx context.Context, userID, entryID string) error {
	return j.deleteRow(ctx, "ledger_entries", userID, entryID)
}

func scanEntry(s scanner) (*ledger.Entry, error) {
	var (
		e                          ledger.Entry
		typ, status                string
		tax                        sql.NullString
		occurred, created, updated int64
	)
	err := s.Scan(&e.ID, &e.UserID, &typ, &e.Amount, &e.Currency, &occurred,
		&status, &e.Comment, &e.Symbol, &tax, &created, &updated, &e.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "journal: scan ledger entry")
	}
	e.Type = ledger.EntryType(typ)
	e.Status = ledger.EntryStatus(status)
	e.OccurredAt = fromNanos(occurred)
	e.CreatedAt = fromNanos(created)
	e.UpdatedAt = fromNanos(updated)
	if tax.Valid {
		e.Tax = &ledger.Tax{}
		if err := sonic.UnmarshalString(tax.String, e.Tax); err != nil {
			return nil, errors.Wrapf(err, "journal: decode tax of ledger entry %q", e.ID)
		}
	}
	return &e, nil
}

// marshalJSON encodes an optional sub-record for a TEXT column; nil stays
// NULL.
func marshalJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, err := sonic.MarshalString(v)
	if err != nil {
		return nil, errors.Wrap(err, "journal: encode json column")
	}
	return s, nil
}
