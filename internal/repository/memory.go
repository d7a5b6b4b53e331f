package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/pkg/fault"
)

// MemoryStore is an OrderStore held in process memory. Records are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]*domain.LocalOrder
	byPOS    map[string]string
	tracking map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*domain.LocalOrder),
		byPOS:    make(map[string]string),
		tracking: make(map[string]string),
	}
}

// Create implements OrderStore.
func (s *MemoryStore) Create(_ context.Context, order *domain.LocalOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return fault.ErrAlreadyExists
	}
	s.put(order.Clone())
	return nil
}

// Get implements OrderStore.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.LocalOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fault.ErrNotFound
	}
	return o.Clone(), nil
}

// GetByPOSOrderID implements OrderStore.
func (s *MemoryStore) GetByPOSOrderID(ctx context.Context, posOrderID string) (*domain.LocalOrder, error) {
	return s.lookup(ctx, s.byPOS, posOrderID)
}

// FindByTrackingNumber implements OrderStore.
func (s *MemoryStore) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.LocalOrder, error) {
	return s.lookup(ctx, s.tracking, trackingNumber)
}

// Update implements OrderStore.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*domain.LocalOrder) error) (*domain.LocalOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return nil, fault.ErrNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id

	if current.POSOrderID != "" && current.POSOrderID != next.POSOrderID {
		delete(s.byPOS, current.POSOrderID)
	}
	if tn := current.Shipping.TrackingNumber; tn != "" && tn != next.Shipping.TrackingNumber {
		delete(s.tracking, tn)
	}
	s.put(next)
	return next.Clone(), nil
}

// List implements OrderStore.
func (s *MemoryStore) List(_ context.Context) ([]*domain.LocalOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.LocalOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

// Close implements OrderStore. The memory store holds no connections.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) lookup(_ context.Context, index map[string]string, key string) (*domain.LocalOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := index[key]
	if !ok || key == "" {
		return nil, fault.ErrNotFound
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, fault.ErrNotFound
	}
	return o.Clone(), nil
}

// put stores o and refreshes its index entries. Callers hold mu.
func (s *MemoryStore) put(o *domain.LocalOrder) {
	s.orders[o.ID] = o
	if o.POSOrderID != "" {
		s.byPOS[o.POSOrderID] = o.ID
	}
	if o.Shipping.TrackingNumber != "" {
		s.tracking[o.Shipping.TrackingNumber] = o.ID
	}
}

func sortNewestFirst(orders []*domain.LocalOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

var _ OrderStore = (*MemoryStore)(nil)
