// Package events publishes order lifecycle events for downstream fulfillment and reconciliation.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an order event.
type Type string

const (
	// OrderPlaced is emitted once a paid order is recorded locally.
	OrderPlaced Type = "order.placed"
	// FulfillmentRequested is emitted when a merchandise order is placed and needs a shipping label.
	FulfillmentRequested Type = "order.fulfillment_requested"
	// LabelCreated is emitted after a shipping label is bought for an order.
	LabelCreated Type = "order.label_created"
	// CompensationRequired is emitted when a remote POS order was created but could not be paid or voided
	// and must be reconciled by hand.
	CompensationRequired Type = "order.compensation_required"
)

// Event is an order lifecycle event.
type Event struct {
	EventID        string    `json:"event_id"`
	Type           Type      `json:"type"`
	OrderID        string    `json:"order_id,omitempty"`
	POSOrderID     string    `json:"pos_order_id,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// New creates an event with a fresh id.
func New(t Type, now time.Time) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      t,
		Timestamp: now,
	}
}

// Key returns the partition key: the local order id, or the POS order id when no local order exists.
func (e Event) Key() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	if e.POSOrderID != "" {
		return e.POSOrderID
	}
	return e.EventID
}

// Publisher delivers events. Publishing is best-effort for callers: a failed publish is logged and
// never fails the order operation that produced it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
