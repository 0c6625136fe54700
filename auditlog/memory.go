package auditlog

import (
	"context"
	"sync"
	"time"

	"github.com/authgate/authgate/errors"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: map[string]Record{}}
}

func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	return nil
}

func (s *MemoryStore) MarkLoggedOut(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return errors.WrapPrefix(ErrNotFound, id, 0)
	}
	rec.Event = EventLogout
	rec.LoggedOutAt = &at
	s.recs[id] = rec
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return Record{}, errors.WrapPrefix(ErrNotFound, id, 0)
	}
	return rec, nil
}
