package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/pkg/id"
)

// Reader is the read side of the ledger store.
type Reader interface {
	ListEntries(ctx context.Context, userID string, f Filter) ([]*Entry, error)
}

// Store persists ledger entries. InsertEntry reports errs.ErrDuplicateID on an
// id collision; lookups report errs.ErrNotFound for missing or foreign ids.
// UpdateEntry writes only when the stored version equals e.Version, bumps
// e.Version on success and reports errs.ErrStale otherwise.
type Store interface {
	Reader
	InsertEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, userID, entryID string) (*Entry, error)
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, userID, entryID string) error
}

// NewEntry is the validated payload for Book.Record.
type NewEntry struct {
	Type       EntryType
	Amount     decimal.Decimal
	Currency   string
	OccurredAt time.Time   // defaults to now
	Status     EntryStatus // defaults to completed
	Comment    string
	Symbol     string
	Tax        *Tax
}

// Patch lists the fields of an entry that may change after it is recorded.
// Nil fields are left alone.
type Patch struct {
	Amount     *decimal.Decimal
	OccurredAt *time.Time
	Status     *EntryStatus
	Comment    *string
	Symbol     *string
	Tax        *Tax
	ClearTax   bool
}

// Book records and edits ledger entries.
type Book struct {
	store           Store
	ids             id.Generator
	log             logrus.FieldLogger
	maxAttempts     int
	maxStaleRetries int
	now             func() time.Time
}

type Option func(*Book)

func WithClock(now func() time.Time) Option { return func(b *Book) { b.now = now } }
func WithIDs(g id.Generator) Option { return func(b *Book) { b.ids = g } }
func WithMaxIDAttempts(n int) Option { return func(b *Book) { b.maxAttempts = n } }
func WithLogger(l logrus.FieldLogger) Option { return func(b *Book) { b.log = l } }
func WithMaxStaleRetries(n int) Option { return func(b *Book) { b.maxStaleRetries = n } }

func NewBook(store Store, opts ...Option) *Book {
	b := &Book{
		store:           store,
		ids:             id.GeneratorFunc(id.New),
		log:             logrus.StandardLogger(),
		maxAttempts:     3,
		maxStaleRetries: 5,
		now:             time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Record validates and appends a new entry.
func (b *Book) Record(ctx context.Context, userID string, in NewEntry) (*Entry, error) {
	if userID == "" {
		return nil, errs.Validation("user id is required")
	}
	if !in.Type.Valid() {
		return nil, errs.Validation("unknown entry type %q", in.Type)
	}
	if err := checkAmount(in.Type, in.Amount); err != nil {
		return nil, err
	}
	cur, ok := market.NormalizeCurrency(in.Currency)
	if !ok {
		return nil, errs.Validation("unknown currency %q", in.Currency)
	}
	status := in.Status
	if status == "" {
		status = StatusCompleted
	}
	if !status.Valid() {
		return nil, errs.Validation("unknown entry status %q", in.Status)
	}
	if err := checkTax(in.Tax); err != nil {
		return nil, err
	}

	now := b.now().UTC()
	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	e := &Entry{
		UserID:     userID,
		Type:       in.Type,
		Amount:     in.Amount,
		Currency:   cur,
		OccurredAt: occurred.UTC(),
		Status:     status,
		Comment:    in.Comment,
		Symbol:     in.Symbol,
		Tax:        in.Tax,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for attempt := 1; ; attempt++ {
		e.ID = b.ids.NewID()
		err := b.store.InsertEntry(ctx, e)
		if err == nil {
			break
		}
		if !errors.Is(err, errs.ErrDuplicateID) {
			return nil, err
		}
		if attempt >= b.maxAttempts {
			return nil, errs.Conflict("ledger entry id allocation failed after %d attempts", attempt)
		}
		b.log.WithField("entry_id", e.ID).Warn("ledger entry id collision, retrying")
	}

	b.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"entry_id": e.ID,
		"type":     e.Type,
		"currency": e.Currency,
	}).Debug("ledger entry recorded")
	return e, nil
}

func (b *Book) Get(ctx context.Context, userID, entryID string) (*Entry, error) {
	return b.store.GetEntry(ctx, userID, entryID)
}

func (b *Book) List(ctx context.Context, userID string, f Filter) ([]*Entry, error) {
	return b.store.ListEntries(ctx, userID, f)
}

// Update applies an allow-listed patch. Type, currency and owner never change.
// A write that lost a race is redone from a fresh read.
func (b *Book) Update(ctx context.Context, userID, entryID string, p Patch) (*Entry, error) {
	if p.OccurredAt != nil && p.OccurredAt.IsZero() {
		return nil, errs.Validation("occurred at must be set")
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, errs.Validation("unknown entry status %q", *p.Status)
	}
	if !p.ClearTax {
		if err := checkTax(p.Tax); err != nil {
			return nil, err
		}
	}

	for attempt := 1; ; attempt++ {
		e, err := b.store.GetEntry(ctx, userID, entryID)
		if err != nil {
			return nil, err
		}
		if err := p.apply(e); err != nil {
			return nil, err
		}
		e.UpdatedAt = b.now().UTC()

		err = b.store.UpdateEntry(ctx, e)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, errs.ErrStale) {
			return nil, err
		}
		if attempt >= b.maxStaleRetries {
			return nil, errs.Conflict("update ledger entry %q: concurrent updates, gave up after %d attempts", entryID, attempt)
		}
		b.log.WithFields(logrus.Fields{"entry_id": entryID, "attempt": attempt}).Debug("stale ledger entry version, retrying update")
	}
}

func (p Patch) apply(e *Entry) error {
	if p.Amount != nil {
		if err := checkAmount(e.Type, *p.Amount); err != nil {
			return err
		}
		e.Amount = *p.Amount
	}
	if p.OccurredAt != nil {
		e.OccurredAt = p.OccurredAt.UTC()
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Comment != nil {
		e.Comment = *p.Comment
	}
	if p.Symbol != nil {
		e.Symbol = *p.Symbol
	}
	if p.ClearTax {
		e.Tax = nil
	} else if p.Tax != nil {
		e.Tax = p.Tax
	}
	return nil
}

// Delete removes the entry for good.
func (b *Book) Delete(ctx context.Context, userID, entryID string) error {
	if err := b.store.DeleteEntry(ctx, userID, entryID); err != nil {
		return err
	}
	b.log.WithFields(logrus.Fields{"user_id": userID, "entry_id": entryID}).Info("ledger entry deleted")
	return nil
}

func checkAmount(t EntryType, amount decimal.Decimal) error {
	if t.CallerSigned() {
		if amount.IsZero() {
			return errs.Validation("%s amount must not be zero", t)
		}
		return nil
	}
	if !amount.IsPositive() {
		return errs.Validation("%s amount must be positive", t)
	}
	return nil
}

func checkTax(t *Tax) error {
	if t == nil {
		return nil
	}
	if t.Amount.IsNegative() {
		return errs.Validation("tax amount must not be negative")
	}
	// Rate is stored as reported, fraction or percent.
	if t.Rate.IsNegative() {
		return errs.Validation("tax rate must not be negative")
	}
	return nil
}
