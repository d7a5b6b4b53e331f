package domain

import "strings"

// OrderStatus is the lifecycle status of a local order.
type OrderStatus string

const (
	StatusPlaced    OrderStatus = "placed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// remoteStatuses maps POS status spellings onto the local lifecycle.
var remoteStatuses = map[string]OrderStatus{
	"placed":           StatusPlaced,
	"new":              StatusPlaced,
	"open":             StatusPlaced,
	"approved":         StatusPlaced,
	"preparing":        StatusPreparing,
	"in_progress":      StatusPreparing,
	"in_preparation":   StatusPreparing,
	"ready":            StatusReady,
	"ready_for_pickup": StatusReady,
	"completed":        StatusCompleted,
	"closed":           StatusCompleted,
	"picked_up":        StatusCompleted,
	"fulfilled":        StatusCompleted,
	"cancelled":        StatusCancelled,
	"canceled":         StatusCancelled,
	"void":             StatusCancelled,
	"voided":           StatusCancelled,
}

// ParseOrderStatus maps a POS or webhook status onto the local lifecycle.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	st, ok := remoteStatuses[key]
	return st, ok
}

// ReadyForPickup reports whether the customer can collect the order.
func (s OrderStatus) ReadyForPickup() bool {
	return s == StatusReady
}

// LabelStatus is the fulfillment status of a shipping label.
type LabelStatus string

const (
	LabelPending LabelStatus = "pending"
	LabelPrinted LabelStatus = "printed"
	LabelShipped LabelStatus = "shipped"
)

// ParseLabelStatus accepts only pending, printed and shipped.
func ParseLabelStatus(s string) (LabelStatus, bool) {
	switch st := LabelStatus(s); st {
	case LabelPending, LabelPrinted, LabelShipped:
		return st, true
	}
	return "", false
}
