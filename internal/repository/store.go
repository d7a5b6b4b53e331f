// Package repository persists local order records.
package repository

import (
	"context"

	"github.com/tournevent/storefront/internal/domain"
)

// OrderStore keeps LocalOrders keyed by id, with lookups by POS order id and tracking number.
//
// Implementations return copies: mutating a returned order never changes the stored record.
// Update is the only read-modify-write path and is atomic per order id.
type OrderStore interface {
	// Create stores a new order. It fails with fault.ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, order *domain.LocalOrder) error

	// Get returns the order with the given id or fault.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.LocalOrder, error)

	// GetByPOSOrderID returns the order created for a POS order guid or fault.ErrNotFound.
	GetByPOSOrderID(ctx context.Context, posOrderID string) (*domain.LocalOrder, error)

	// FindByTrackingNumber returns the order a label was bought for or fault.ErrNotFound.
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.LocalOrder, error)

	// Update applies fn to the stored order and saves the result. When fn returns an error
	// nothing is saved and the error is returned.
	Update(ctx context.Context, id string, fn func(*domain.LocalOrder) error) (*domain.LocalOrder, error)

	// List returns all orders, newest first.
	List(ctx context.Context) ([]*domain.LocalOrder, error)

	// Close releases the store's connections.
	Close() error
}
