package order

import (
	"context"
	"sync"
	"time"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/position"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]Order

	beforeUpdate func(o *Order)
	updateErr    error
	updates      int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]Order{}}
}

// clone copies o deeply enough that callers cannot reach stored state.
func clone(o Order) *Order {
	if o.Execution != nil {
		e := *o.Execution
		o.Execution = &e
	}
	return &o
}

func (s *memStore) InsertOrder(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[o.ID]; ok {
		return errs.ErrDuplicateID
	}
	o.Version = 1
	s.rows[o.ID] = *clone(*o)
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[orderID]
	if !ok || o.UserID != userID {
		return nil, errs.NotFound("order %q", orderID)
	}
	return clone(o), nil
}

func (s *memStore) ListOrders(ctx context.Context, userID string, f ListFilter) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.rows {
		if o.UserID != userID || (f.Symbol != "" && o.Symbol != f.Symbol) {
			continue
		}
		if len(f.Statuses) > 0 {
			match := false
			for _, st := range f.Statuses {
				match = match || st == o.Status
			}
			if !match {
				continue
			}
		}
		out = append(out, clone(o))
	}
	return out, nil
}

func (s *memStore) ListExpirable(ctx context.Context, now time.Time) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.rows {
		if o.Active() && o.ExpiryTime != nil && o.ExpiryTime.Before(now) {
			out = append(out, clone(o))
		}
	}
	return out, nil
}

func (s *memStore) UpdateOrder(ctx context.Context, o *Order) error {
	if s.beforeUpdate != nil {
		s.beforeUpdate(o)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	cur, ok := s.rows[o.ID]
	if !ok || cur.UserID != o.UserID {
		return errs.NotFound("order %q", o.ID)
	}
	if cur.Version != o.Version {
		return errs.ErrStale
	}
	o.Version++
	s.rows[o.ID] = *clone(*o)
	return nil
}

func (s *memStore) bump(orderID string, mutate func(o *Order)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := *clone(s.rows[orderID])
	if mutate != nil {
		mutate(&o)
	}
	o.Version++
	s.rows[orderID] = o
}

func (s *memStore) get(orderID string) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *clone(s.rows[orderID])
}

// fakeOpener records the specs it is asked to open.
type fakeOpener struct {
	mu    sync.Mutex
	specs []position.OpenSpec
	err   error
}

func (f *fakeOpener) Open(ctx context.Context, userID string, spec position.OpenSpec) (*position.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	return &position.Position{
		ID:            "pos-" + spec.SourceOrderID,
		UserID:        userID,
		Symbol:        spec.Symbol,
		Side:          spec.Side,
		Volume:        spec.Volume,
		OpenPrice:     spec.OpenPrice,
		Commission:    spec.Commission,
		Currency:      spec.Currency,
		Status:        position.StatusOpen,
		SourceOrderID: spec.SourceOrderID,
	}, nil
}
