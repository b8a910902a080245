// Package errs defines the error kinds shared by the managers, the journal
// store and the transports. Callers classify errors with errors.Is.
package errs

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

var (
	// ErrValidation marks malformed or out-of-range input. Nothing was written.
	ErrValidation = stderrors.New("validation failed")

	// ErrNotFound marks a missing record, or one owned by another user.
	ErrNotFound = stderrors.New("not found")

	// ErrConflict marks an invalid state transition or an exhausted retry.
	ErrConflict = stderrors.New("conflict")

	// ErrInvariant marks a request that would break a record invariant,
	// such as filling more volume than remains on an order.
	ErrInvariant = stderrors.New("invariant violation")
)

// Store level sentinels. Managers retry on these before surfacing a conflict.
var (
	ErrDuplicateID = errors.Wrap(ErrConflict, "duplicate id")
	ErrStale       = errors.Wrap(ErrConflict, "stale version")
)

func Validation(format string, args ...any) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

func Invariant(format string, args ...any) error {
	return errors.Wrapf(ErrInvariant, format, args...)
}

// Kind returns the sentinel kind of err, or nil when err carries none.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrInvariant, ErrConflict} {
		if stderrors.Is(err, k) {
			return k
		}
	}
	return nil
}
