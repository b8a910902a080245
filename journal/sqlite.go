package journal

import (
	"context"
	"database/sql"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/rustyeddy/tradebook/errs"
)

type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the journal at path and applies the
// schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "journal: open %s", path)
	}
	// One connection keeps writers from tripping over SQLITE_BUSY and makes
	// ":memory:" behave like a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "journal: apply schema")
	}

	return &SQLite{db: db}, nil
}

// DB exposes the underlying handle for tooling and tests.
func (j *SQLite) DB() *sql.DB { return j.db }

func (j *SQLite) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// insertErr turns a uniqueness violation into errs.ErrDuplicateID.
func insertErr(err error, what string) error {
	var se sqlite3.Error
	if errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique) {
		return errs.ErrDuplicateID
	}
	return errors.Wrapf(err, "journal: insert %s", what)
}

// staleOrMissing explains an optimistic update that touched no rows.
func (j *SQLite) staleOrMissing(ctx context.Context, table, userID, id string) error {
	var one int
	err := j.db.QueryRowContext(ctx,
		`SELECT 1 FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errs.NotFound("%s %q", singular(table), id)
	case err != nil:
		return errors.Wrapf(err, "journal: check %s", singular(table))
	}
	return errs.ErrStale
}

func (j *SQLite) deleteRow(ctx context.Context, table, userID, id string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return errors.Wrapf(err, "journal: delete %s", singular(table))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "journal: delete %s", singular(table))
	}
	if n == 0 {
		return errs.NotFound("%s %q", singular(table), id)
	}
	return nil
}

func singular(table string) string {
	switch table {
	case "ledger_entries":
		return "ledger entry"
	case "positions":
		return "position"
	case "orders":
		return "order"
	}
	return table
}
