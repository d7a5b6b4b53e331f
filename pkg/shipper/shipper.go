// Package shipper provides the shipping rate engine and the carrier abstraction behind it.
package shipper

import (
	"context"
)

// Carrier defines the interface that every shipping API variant must implement.
// Exactly one variant is selected at startup.
type Carrier interface {
	// Name returns the carrier identifier (e.g., "usps-legacy", "usps-v3").
	Name() string

	// GetRates returns quotes for every mail class the carrier offers for the parcel.
	GetRates(ctx context.Context, req *RateRequest) ([]Quote, error)

	// ValidateAddress standardizes a destination address.
	ValidateAddress(ctx context.Context, addr Address) (*ValidatedAddress, error)

	// CreateLabel purchases a label and returns the artifact and tracking number.
	CreateLabel(ctx context.Context, req *LabelRequest) (*Label, error)

	// Track returns the latest tracking status for a parcel.
	Track(ctx context.Context, trackingNumber string) (*TrackingInfo, error)
}

// PostageAdjuster is implemented by carriers that report postage reconciliation.
type PostageAdjuster interface {
	PostageAdjustment(ctx context.Context, trackingNumber string) (*PostageAdjustment, error)
}
