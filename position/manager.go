package position

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
)

// OpenSpec is the validated payload for Manager.Open.
type OpenSpec struct {
	Symbol        string
	Side          market.Side
	Volume        decimal.Decimal
	OpenPrice     decimal.Decimal
	OpenTime      time.Time // defaults to now
	Currency      string
	PortfolioID   string
	Commission    decimal.Decimal
	Swap          decimal.Decimal
	Taxes         decimal.Decimal
	StopLoss      *decimal.Decimal
	TakeProfit    *decimal.Decimal
	Comment       string
	SourceOrderID string
}

// CloseSpec is the payload for Manager.Close. Extra costs are added to the
// totals already on the position.
type CloseSpec struct {
	Price           decimal.Decimal
	Time            time.Time // defaults to now
	ExtraCommission decimal.Decimal
	ExtraTaxes      decimal.Decimal
	Note            string
}

// Patch lists the fields that may change on an open position. Nil fields
// are preserved; a zero StopLoss or TakeProfit clears it.
type Patch struct {
	Comment    *string
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Swap       *decimal.Decimal
}

type Manager struct {
	store      Store
	portfolios PortfolioChecker
	ids        id.Generator
	log        logrus.FieldLogger
	now        func() time.Time

	maxIDAttempts   int
	maxStaleRetries int
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }
func WithIDs(g id.Generator) Option { return func(m *Manager) { m.ids = g } }
func WithLogger(l logrus.FieldLogger) Option { return func(m *Manager) { m.log = l } }
func WithPortfolios(c PortfolioChecker) Option { return func(m *Manager) { m.portfolios = c } }
func WithMaxIDAttempts(n int) Option { return func(m *Manager) { m.maxIDAttempts = n } }
func WithMaxStaleRetries(n int) Option { return func(m *Manager) { m.maxStaleRetries = n } }

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		ids:             id.GeneratorFunc(id.New),
		log:             logrus.StandardLogger(),
		now:             time.Now,
		maxIDAttempts:   3,
		maxStaleRetries: 5,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Open records a new open position.
func (m *Manager) Open(ctx context.Context, userID string, spec OpenSpec) (*Position, error) {
	if userID == "" {
		return nil, errs.Validation("user id is required")
	}
	if strings.TrimSpace(spec.Symbol) == "" {
		return nil, errs.Validation("symbol is required")
	}
	if !spec.Side.Valid() {
		return nil, errs.Validation("side must be BUY or SELL, got %q", spec.Side)
	}
	if !spec.Volume.IsPositive() {
		return nil, errs.Validation("volume must be positive")
	}
	if !spec.OpenPrice.IsPositive() {
		return nil, errs.Validation("open price must be positive")
	}
	if spec.Commission.IsNegative() || spec.Taxes.IsNegative() {
		return nil, errs.Validation("commission and taxes must not be negative")
	}
	if err := checkLevel("stop loss", spec.StopLoss); err != nil {
		return nil, err
	}
	if err := checkLevel("take profit", spec.TakeProfit); err != nil {
		return nil, err
	}
	cur, ok := market.NormalizeCurrency(spec.Currency)
	if !ok {
		return nil, errs.Validation("unknown currency %q", spec.Currency)
	}
	if err := m.checkPortfolio(ctx, userID, spec.PortfolioID); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	openTime := spec.OpenTime
	if openTime.IsZero() {
		openTime = now
	}

	p := &Position{
		UserID:        userID,
		PortfolioID:   spec.PortfolioID,
		Symbol:        strings.TrimSpace(spec.Symbol),
		Side:          spec.Side,
		Volume:        spec.Volume,
		OpenTime:      openTime.UTC(),
		OpenPrice:     spec.OpenPrice,
		CurrentPrice:  spec.OpenPrice,
		PurchaseValue: spec.OpenPrice.Mul(spec.Volume),
		Commission:    spec.Commission,
		Swap:          spec.Swap,
		Taxes:         spec.Taxes,
		Currency:      cur,
		Status:        StatusOpen,
		StopLoss:      nonZero(spec.StopLoss),
		TakeProfit:    nonZero(spec.TakeProfit),
		Comment:       spec.Comment,
		SourceOrderID: spec.SourceOrderID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for attempt := 1; ; attempt++ {
		p.ID = m.ids.NewID()
		err := m.store.InsertPosition(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, errs.ErrDuplicateID) {
			return nil, err
		}
		if attempt >= m.maxIDAttempts {
			return nil, errs.Conflict("position id allocation failed after %d attempts", attempt)
		}
		m.log.WithField("position_id", p.ID).Warn("position id collision, retrying")
	}

	m.logger(p).WithFields(logrus.Fields{
		"symbol": p.Symbol,
		"side":   p.Side,
		"volume": p.Volume.String(),
		"price":  p.OpenPrice.String(),
	}).Info("position opened")
	return p, nil
}

func (m *Manager) Get(ctx context.Context, userID, positionID string) (*Position, error) {
	return m.store.GetPosition(ctx, userID, positionID)
}

func (m *Manager) List(ctx context.Context, userID string, f ListFilter) ([]*Position, error) {
	for _, s := range f.Statuses {
		if !s.Valid() {
			return nil, errs.Validation("unknown position status %q", s)
		}
	}
	if len(f.Statuses) == 0 {
		f.Statuses = []Status{StatusOpen, StatusClosed}
	}
	return m.store.ListPositions(ctx, userID, f)
}

// UpdateMarketPrice marks an open position to price. Only the gross P&L
// moves; net P&L is settled once, at close.
func (m *Manager) UpdateMarketPrice(ctx context.Context, userID, positionID string, price decimal.Decimal) (*Position, error) {
	if !price.IsPositive() {
		return nil, errs.Validation("market price must be positive")
	}
	return m.mutate(ctx, userID, positionID, "mark", func(p *Position) error {
		if !p.IsOpen() {
			return errs.Conflict("position %q is %s, only open positions can be marked", p.ID, p.Status)
		}
		p.CurrentPrice = price
		p.GrossPL = UnrealizedPL(p, price)
		return nil
	})
}

// Close realizes the position at spec.Price.
func (m *Manager) Close(ctx context.Context, userID, positionID string, spec CloseSpec) (*Position, error) {
	if !spec.Price.IsPositive() {
		return nil, errs.Validation("close price must be positive")
	}
	if spec.ExtraCommission.IsNegative() || spec.ExtraTaxes.IsNegative() {
		return nil, errs.Validation("extra commission and taxes must not be negative")
	}

	closed, err := m.mutate(ctx, userID, positionID, "close", func(p *Position) error {
		if !p.IsOpen() {
			return errs.Conflict("position %q is %s, only open positions can be closed", p.ID, p.Status)
		}
		closeTime := spec.Time
		if closeTime.IsZero() {
			closeTime = m.now()
		}
		closeTime = closeTime.UTC()
		if closeTime.Before(p.OpenTime) {
			return errs.Validation("close time %s is before open time %s",
				closeTime.Format(time.RFC3339), p.OpenTime.Format(time.RFC3339))
		}

		price := spec.Price
		p.Commission = p.Commission.Add(spec.ExtraCommission)
		p.Taxes = p.Taxes.Add(spec.ExtraTaxes)
		p.ClosePrice = &price
		p.CloseTime = &closeTime
		p.CurrentPrice = price
		p.GrossPL = UnrealizedPL(p, price)
		p.NetPL = NetPL(p.GrossPL, p.Commission, p.Taxes, p.Swap)
		p.Status = StatusClosed
		p.Comment = appendNote(p.Comment, spec.Note)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger(closed).WithFields(logrus.Fields{
		"close_price": closed.ClosePrice.String(),
		"gross_pl":    closed.GrossPL.String(),
		"net_pl":      closed.NetPL.String(),
	}).Info("position closed")
	return closed, nil
}

// Update applies an allow-listed patch to an open position.
func (m *Manager) Update(ctx context.Context, userID, positionID string, patch Patch) (*Position, error) {
	if err := checkLevel("stop loss", patch.StopLoss); err != nil {
		return nil, err
	}
	if err := checkLevel("take profit", patch.TakeProfit); err != nil {
		return nil, err
	}
	return m.mutate(ctx, userID, positionID, "update", func(p *Position) error {
		if !p.IsOpen() {
			return errs.Conflict("position %q is %s, only open positions can be edited", p.ID, p.Status)
		}
		if patch.Comment != nil {
			p.Comment = *patch.Comment
		}
		if patch.StopLoss != nil {
			p.StopLoss = nonZero(patch.StopLoss)
		}
		if patch.TakeProfit != nil {
			p.TakeProfit = nonZero(patch.TakeProfit)
		}
		if patch.Swap != nil {
			p.Swap = *patch.Swap
		}
		return nil
	})
}

// SoftDelete marks the position deleted and keeps the record.
func (m *Manager) SoftDelete(ctx context.Context, userID, positionID, reason string) (*Position, error) {
	deleted, err := m.mutate(ctx, userID, positionID, "delete", func(p *Position) error {
		if p.Status == StatusDeleted {
			return errs.Conflict("position %q is already deleted", p.ID)
		}
		at := m.now().UTC()
		p.Status = StatusDeleted
		p.DeletedAt = &at
		p.DeleteReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger(deleted).WithField("reason", reason).Info("position soft deleted")
	return deleted, nil
}

// HardDelete removes the position record entirely.
func (m *Manager) HardDelete(ctx context.Context, userID, positionID string) error {
	if err := m.store.DeletePosition(ctx, userID, positionID); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"user_id": userID, "position_id": positionID}).Info("position removed")
	return nil
}

// mutate runs a read-modify-write against the store. fn sees a fresh copy
// on each attempt; a stale write is retried from the read.
func (m *Manager) mutate(ctx context.Context, userID, positionID, op string, fn func(p *Position) error) (*Position, error) {
	for attempt := 1; ; attempt++ {
		p, err := m.store.GetPosition(ctx, userID, positionID)
		if err != nil {
			return nil, err
		}
		if err := fn(p); err != nil {
			return nil, err
		}
		p.UpdatedAt = m.now().UTC()

		err = m.store.UpdatePosition(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, errs.ErrStale) {
			return nil, err
		}
		if attempt >= m.maxStaleRetries {
			return nil, errs.Conflict("%s position %q: concurrent updates, gave up after %d attempts", op, positionID, attempt)
		}
		m.logger(p).WithField("attempt", attempt).Debug("stale position version, retrying " + op)
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

func (m *Manager) logger(p *Position) logrus.FieldLogger {
	return m.log.WithFields(logrus.Fields{"user_id": p.UserID, "position_id": p.ID})
}

func checkLevel(name string, v *decimal.Decimal) error {
	if v != nil && v.IsNegative() {
		return errs.Validation("%s must not be negative", name)
	}
	return nil
}

func nonZero(v *decimal.Decimal) *decimal.Decimal {
	if v == nil || v.IsZero() {
		return nil
	}
	c := *v
	return &c
}

func appendNote(comment, note string) string {
	note = strings.TrimSpace(note)
	switch {
	case note == "":
		return comment
	case comment == "":
		return note
	default:
		return comment + "\n" + note
	}
}
