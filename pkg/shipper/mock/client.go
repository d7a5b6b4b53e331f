// Package mock provides a fake carrier for tests and local development.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/tournevent/storefront/pkg/shipper"
)

// Client is an in-process carrier. Hooks override the canned behavior.
type Client struct {
	name        string
	labels      atomic.Int64
	RateCalls   atomic.Int64
	LastAddress atomic.Pointer[shipper.Address]

	OnGetRates          func(ctx context.Context, req *shipper.RateRequest) ([]shipper.Quote, error)
	OnValidateAddress   func(ctx context.Context, addr shipper.Address) (*shipper.ValidatedAddress, error)
	OnCreateLabel       func(ctx context.Context, req *shipper.LabelRequest) (*shipper.Label, error)
	OnTrack             func(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error)
	OnPostageAdjustment func(ctx context.Context, trackingNumber string) (*shipper.PostageAdjustment, error)
}

var (
	_ shipper.Carrier         = (*Client)(nil)
	_ shipper.PostageAdjuster = (*Client)(nil)
)

// New creates a fake carrier reporting the given name.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// GetRates returns three canned quotes, deliberately out of price order.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.Quote, error) {
	c.RateCalls.Add(1)
	if c.OnGetRates != nil {
		return c.OnGetRates(ctx, req)
	}

	quote := func(service, name, rate string, days int) shipper.Quote {
		return shipper.Quote{
			Carrier:     c.name,
			Service:     service,
			ServiceName: name,
			Rate:        decimal.RequireFromString(rate),
			TransitDays: days,
			Weight:      req.Weight,
			Dimensions:  req.Dimensions,
		}
	}
	return []shipper.Quote{
		quote(shipper.ServicePriority, "Priority Mail", "10.45", 2),
		quote(shipper.ServiceExpress, "Priority Mail Express", "28.75", 1),
		quote(shipper.ServiceGround, "Ground Advantage", "6.20", 5),
	}, nil
}

// ValidateAddress echoes the address back as valid.
func (c *Client) ValidateAddress(ctx context.Context, addr shipper.Address) (*shipper.ValidatedAddress, error) {
	c.LastAddress.Store(&addr)
	if c.OnValidateAddress != nil {
		return c.OnValidateAddress(ctx, addr)
	}
	return &shipper.ValidatedAddress{
		Address:     addr,
		Valid:       true,
		Corrections: []shipper.Correction{},
		Warnings:    []string{},
	}, nil
}

// CreateLabel returns a label with a sequential tracking number.
func (c *Client) CreateLabel(ctx context.Context, req *shipper.LabelRequest) (*shipper.Label, error) {
	if c.OnCreateLabel != nil {
		return c.OnCreateLabel(ctx, req)
	}
	n := c.labels.Add(1)
	return &shipper.Label{
		TrackingNumber: fmt.Sprintf("9400100000000000%06d", n),
		LabelImage:     "JVBERi0xLjQK",
		Format:         "PDF",
		Postage:        decimal.RequireFromString("10.45"),
	}, nil
}

// Track reports every parcel as in transit.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
	if c.OnTrack != nil {
		return c.OnTrack(ctx, trackingNumber)
	}
	return &shipper.TrackingInfo{
		TrackingNumber: trackingNumber,
		Status:         "In Transit",
		Events:         []shipper.TrackingEvent{{Event: "Accepted at USPS Origin Facility"}},
	}, nil
}

// PostageAdjustment reports no adjustment.
func (c *Client) PostageAdjustment(ctx context.Context, trackingNumber string) (*shipper.PostageAdjustment, error) {
	if c.OnPostageAdjustment != nil {
		return c.OnPostageAdjustment(ctx, trackingNumber)
	}
	return &shipper.PostageAdjustment{
		TrackingNumber:    trackingNumber,
		RootCause:         []string{},
		PostageAdjustment: "0.00",
		Fees:              []shipper.AdjustmentFee{},
	}, nil
}
