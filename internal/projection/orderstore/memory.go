package orderstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a map-backed Store for tests and the memory transport
// demo. The mutex only guards against readers outside the poll loop (the
// CLI summary, tests); the loop itself is single-threaded.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Record)}
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.orders[rec.OrderID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.orders))
	for _, rec := range s.orders {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
