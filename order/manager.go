package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/pkg/id"
	"github.com/rustyeddy/tradebook/position"
)

type CreateSpec struct {
	Symbol      string
	Kind        Kind
	Side        market.Side
	Volume      decimal.Decimal
	Price       decimal.Decimal
	StopPrice   decimal.Decimal
	Currency    string
	PortfolioID string
	ExpiryTime  *time.Time
	Comment     string
}

// Patch lists the fields that may change while an order is active. Nil
// fields are preserved.
type Patch struct {
	Price       *decimal.Decimal
	StopPrice   *decimal.Decimal
	Volume      *decimal.Decimal
	ExpiryTime  *time.Time
	ClearExpiry bool
	Comment     *string
}

type Manager struct {
	store      Store
	positions  PositionOpener
	portfolios position.PortfolioChecker
	ids        id.Generator
	log        logrus.FieldLogger
	now        func() time.Time

	createPosition  bool
	maxIDAttempts   int
	maxStaleRetries int
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }
func WithIDs(g id.Generator) Option { return func(m *Manager) { m.ids = g } }
func WithLogger(l logrus.FieldLogger) Option { return func(m *Manager) { m.log = l } }
func WithPortfolios(c position.PortfolioChecker) Option { return func(m *Manager) { m.portfolios = c } }
func WithMaxIDAttempts(n int) Option { return func(m *Manager) { m.maxIDAttempts = n } }
func WithMaxStaleRetries(n int) Option { return func(m *Manager) { m.maxStaleRetries = n } }

// WithCreatePosition sets whether a full fill opens a position when the
// caller does not say.
func WithCreatePosition(v bool) Option { return func(m *Manager) { m.createPosition = v } }

// NewManager returns a Manager backed by store. positions may be nil, in
// which case fills never open positions.
func NewManager(store Store, positions PositionOpener, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		positions:       positions,
		ids:             id.GeneratorFunc(id.New),
		log:             logrus.StandardLogger(),
		now:             time.Now,
		createPosition:  true,
		maxIDAttempts:   3,
		maxStaleRetries: 5,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Create(ctx context.Context, userID string, spec CreateSpec) (*Order, error) {
	if userID == "" {
		return nil, errs.Validation("user id is required")
	}
	if strings.TrimSpace(spec.Symbol) == "" {
		return nil, errs.Validation("symbol is required")
	}
	if !spec.Kind.Valid() {
		return nil, errs.Validation("unknown order kind %q", spec.Kind)
	}
	if !spec.Side.Valid() {
		return nil, errs.Validation("side must be BUY or SELL, got %q", spec.Side)
	}
	if !spec.Volume.IsPositive() {
		return nil, errs.Validation("volume must be positive")
	}
	if err := checkPrices(spec.Kind, spec.Price, spec.StopPrice); err != nil {
		return nil, err
	}
	cur, ok := market.NormalizeCurrency(spec.Currency)
	if !ok {
		return nil, errs.Validation("unknown currency %q", spec.Currency)
	}
	now := m.now().UTC()
	if err := checkExpiry(spec.ExpiryTime, now); err != nil {
		return nil, err
	}
	if err := m.checkPortfolio(ctx, userID, spec.PortfolioID); err != nil {
		return nil, err
	}

	o := &Order{
		UserID:         userID,
		PortfolioID:    spec.PortfolioID,
		Symbol:         strings.TrimSpace(spec.Symbol),
		Kind:           spec.Kind,
		Side:           spec.Side,
		Volume:         spec.Volume,
		OriginalVolume: spec.Volume,
		Price:          spec.Price,
		StopPrice:      spec.StopPrice,
		PurchaseValue:  spec.Price.Mul(spec.Volume),
		Currency:       cur,
		Status:         StatusPending,
		ExpiryTime:     utc(spec.ExpiryTime),
		Comment:        spec.Comment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 1; ; attempt++ {
		o.ID = m.ids.NewID()
		err := m.store.InsertOrder(ctx, o)
		if err == nil {
			break
		}
		if !errors.Is(err, errs.ErrDuplicateID) {
			return nil, err
		}
		if attempt >= m.maxIDAttempts {
			return nil, errs.Conflict("order id allocation failed after %d attempts", attempt)
		}
		m.log.WithField("order_id", o.ID).Warn("order id collision, retrying")
	}

	m.logger(o).WithFields(logrus.Fields{
		"symbol": o.Symbol,
		"kind":   o.Kind,
		"side":   o.Side,
		"volume": o.Volume.String(),
	}).Info("order created")
	return o, nil
}

func (m *Manager) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	return m.store.GetOrder(ctx, userID, orderID)
}

func (m *Manager) List(ctx context.Context, userID string, f ListFilter) ([]*Order, error) {
	for _, s := range f.Statuses {
		if !s.Valid() {
			return nil, errs.Validation("unknown order status %q", s)
		}
	}
	return m.store.ListOrders(ctx, userID, f)
}

// Update applies an allow-listed patch to an active order. Volume can only
// shrink. A pending order has had no fills, so its original volume follows.
func (m *Manager) Update(ctx context.Context, userID, orderID string, patch Patch) (*Order, error) {
	if patch.Volume != nil && !patch.Volume.IsPositive() {
		return nil, errs.Validation("volume must be positive")
	}
	if patch.ExpiryTime != nil && patch.ClearExpiry {
		return nil, errs.Validation("expiry time cannot be set and cleared together")
	}
	if err := checkExpiry(patch.ExpiryTime, m.now().UTC()); err != nil {
		return nil, err
	}

	return m.mutate(ctx, userID, orderID, "update", func(o *Order) error {
		if !o.Active() {
			return errs.Conflict("order %q is %s, only active orders can be edited", o.ID, o.Status)
		}

		price, stop := o.Price, o.StopPrice
		if patch.Price != nil {
			price = *patch.Price
		}
		if patch.StopPrice != nil {
			stop = *patch.StopPrice
		}
		if err := checkPrices(o.Kind, price, stop); err != nil {
			return err
		}

		if v := patch.Volume; v != nil {
			if v.GreaterThan(o.Volume) {
				return errs.Invariant("volume %s exceeds remaining %s", v, o.Volume)
			}
			o.Volume = *v
			if o.Status == StatusPending {
				o.OriginalVolume = *v
			}
		}

		o.Price, o.StopPrice = price, stop
		o.PurchaseValue = o.Price.Mul(o.Volume)
		if patch.ExpiryTime != nil {
			o.ExpiryTime = utc(patch.ExpiryTime)
		}
		if patch.ClearExpiry {
			o.ExpiryTime = nil
		}
		if patch.Comment != nil {
			o.Comment = *patch.Comment
		}
		return nil
	})
}

// Cancel stops an active order. Positions opened by earlier fills are left
// alone.
func (m *Manager) Cancel(ctx context.Context, userID, orderID, reason string) (*Order, error) {
	o, err := m.mutate(ctx, userID, orderID, "cancel", func(o *Order) error {
		if !o.Active() {
			return errs.Conflict("order %q is %s, only active orders can be cancelled", o.ID, o.Status)
		}
		at := m.now().UTC()
		o.Status = StatusCancelled
		o.CancelledAt = &at
		o.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger(o).WithField("reason", reason).Info("order cancelled")
	return o, nil
}

// ExpireSweep moves every active order whose expiry is before now to
// expired and returns their ids. Orders that changed state underneath the
// sweep are skipped. Other failures do not stop the sweep; they are joined
// into the returned error.
func (m *Manager) ExpireSweep(ctx context.Context, now time.Time) ([]string, error) {
	now = now.UTC()
	due, err := m.store.ListExpirable(ctx, now)
	if err != nil {
		return nil, err
	}

	var expired []string
	var failures []error
	for _, d := range due {
		o, err := m.mutate(ctx, d.UserID, d.ID, "expire", func(o *Order) error {
			if !o.Active() || o.ExpiryTime == nil || !o.ExpiryTime.Before(now) {
				return errs.Conflict("order %q is no longer due to expire", o.ID)
			}
			at := now
			o.Status = StatusExpired
			o.ExpiredAt = &at
			return nil
		})
		switch {
		case err == nil:
			expired = append(expired, o.ID)
			m.logger(o).Info("order expired")
		case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrNotFound):
			m.logger(d).WithError(err).Debug("skipping expiry")
		default:
			failures = append(failures, err)
		}
	}
	return expired, errors.Join(failures...)
}

// mutate runs a read-modify-write against the store, starting over from
// the read when the write turns out stale.
func (m *Manager) mutate(ctx context.Context, userID, orderID, op string, fn func(o *Order) error) (*Order, error) {
	for attempt := 1; ; attempt++ {
		o, err := m.store.GetOrder(ctx, userID, orderID)
		if err != nil {
			return nil, err
		}
		if err := fn(o); err != nil {
			return nil, err
		}
		o.UpdatedAt = m.now().UTC()

		err = m.store.UpdateOrder(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, errs.ErrStale) {
			return nil, err
		}
		if attempt >= m.maxStaleRetries {
			return nil, errs.Conflict("%s order %q: concurrent updates, gave up after %d attempts", op, orderID, attempt)
		}
		m.logger(o).WithField("attempt", attempt).Debug("stale order version, retrying " + op)
	}
}

func (m *Manager) checkPortfolio(ctx context.Context, userID, portfolioID string) error {
	if portfolioID == "" || m.portfolios == nil {
		return nil
	}
	ok, err := m.portfolios.OwnsPortfolio(ctx, userID, portfolioID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound("portfolio %q", portfolioID)
	}
	return nil
}

func (m *Manager) logger(o *Order) logrus.FieldLogger {
	return m.log.WithFields(logrus.Fields{"user_id": o.UserID, "order_id": o.ID})
}

// checkPrices enforces the prices each kind needs. A zero price means
// none was given.
func checkPrices(kind Kind, price, stop decimal.Decimal) error {
	if price.IsNegative() || stop.IsNegative() {
		return errs.Validation("prices must not be negative")
	}
	switch kind {
	case Limit:
		if !price.IsPositive() {
			return errs.Validation("limit order needs a price")
		}
	case Stop:
		if !stop.IsPositive() {
			return errs.Validation("stop order needs a stop price")
		}
	case StopLimit:
		if !price.IsPositive() || !stop.IsPositive() {
			return errs.Validation("stop limit order needs a price and a stop price")
		}
	}
	return nil
}

func checkExpiry(expiry *time.Time, now time.Time) error {
	if expiry != nil && !expiry.After(now) {
		return errs.Validation("expiry time %s is not in the future", expiry.UTC().Format(time.RFC3339))
	}
	return nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
