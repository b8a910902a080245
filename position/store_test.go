package position

import (
	"context"
	"sync"

	"github.com/rustyeddy/tradebook/errs"
)

// memStore mimics the journal's contract: copies in and out, version checks
// on update, duplicate detection on insert.
type memStore struct {
	mu   sync.Mutex
	rows map[string]Position

	// beforeUpdate runs inside UpdatePosition before the version check.
	beforeUpdate func(p *Position)
	updates      int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]Position{}}
}

func (s *memStore) InsertPosition(ctx context.Context, p *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[p.ID]; ok {
		return errs.ErrDuplicateID
	}
	p.Version = 1
	s.rows[p.ID] = *p
	return nil
}

func (s *memStore) GetPosition(ctx context.Context, userID, positionID string) (*Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[positionID]
	if !ok || p.UserID != userID {
		return nil, errs.NotFound("position %q", positionID)
	}
	return &p, nil
}

func (s *memStore) ListPositions(ctx context.Context, userID string, f ListFilter) ([]*Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Position
	for _, p := range s.rows {
		if p.UserID != userID {
			continue
		}
		if len(f.Statuses) > 0 {
			match := false
			for _, st := range f.Statuses {
				match = match || st == p.Status
			}
			if !match {
				continue
			}
		}
		if f.Symbol != "" && p.Symbol != f.Symbol {
			continue
		}
		p := p
		out = append(out, &p)
	}
	return out, nil
}

func (s *memStore) UpdatePosition(ctx context.Context, p *Position) error {
	if s.beforeUpdate != nil {
		s.beforeUpdate(p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	cur, ok := s.rows[p.ID]
	if !ok || cur.UserID != p.UserID {
		return errs.NotFound("position %q", p.ID)
	}
	if cur.Version != p.Version {
		return errs.ErrStale
	}
	p.Version++
	s.rows[p.ID] = *p
	return nil
}

func (s *memStore) DeletePosition(ctx context.Context, userID, positionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[positionID]
	if !ok || p.UserID != userID {
		return errs.NotFound("position %q", positionID)
	}
	delete(s.rows, positionID)
	return nil
}

// bump changes the stored version as if another writer got there first.
func (s *memStore) bump(positionID string, mutate func(p *Position)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.rows[positionID]
	if mutate != nil {
		mutate(&p)
	}
	p.Version++
	s.rows[positionID] = p
}
