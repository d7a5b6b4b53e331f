package uspslegacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnRateV4            func(ctx context.Context, req *RateV4Request) (*RateV4Response, error)
	OnVerify            func(ctx context.Context, req *AddressValidateRequest) (*AddressValidateResponse, error)
	OnEVS               func(ctx context.Context, req *EVSRequest) (*EVSResponse, error)
	OnTrackV2           func(ctx context.Context, req *TrackFieldRequest) (*TrackResponse, error)
	OnPostageAdjustment func(ctx context.Context, req *PostageAdjustmentRequest) (*PostageAdjustmentResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate(ctx context.Context) error {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.SimulateErrors {
		return &APIError{Number: "-2147219401", Description: "Simulated API error"}
	}
	return nil
}

// RateV4 returns canned prices for four mail classes.
func (m *MockAPIClient) RateV4(ctx context.Context, req *RateV4Request) (*RateV4Response, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnRateV4 != nil {
		return m.OnRateV4(ctx, req)
	}

	return &RateV4Response{
		Package: []RateResponsePkg{
			{
				ID:   req.Package.ID,
				Zone: "5",
				Postage: []Postage{
					{ClassID: "1", MailService: "Priority Mail Express 2-Day&lt;sup&gt;&#8482;&lt;/sup&gt;", Rate: "31.40"},
					{ClassID: "3", MailService: "Priority Mail 2-Day&lt;sup&gt;&#8482;&lt;/sup&gt;", Rate: "10.40"},
					{ClassID: "1058", MailService: "USPS Ground Advantage&lt;sup&gt;&#8482;&lt;/sup&gt;", Rate: "7.85"},
					{ClassID: "6", MailService: "Media Mail Parcel", Rate: "4.13"},
				},
			},
		},
	}, nil
}

// Verify echoes the address back with a ZIP+4 and a confirmed delivery point.
func (m *MockAPIClient) Verify(ctx context.Context, req *AddressValidateRequest) (*AddressValidateResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnVerify != nil {
		return m.OnVerify(ctx, req)
	}

	addr := req.Address
	addr.Address2 = strings.ToUpper(addr.Address2)
	addr.City = strings.ToUpper(addr.City)
	addr.State = strings.ToUpper(addr.State)
	if addr.Zip4 == "" {
		addr.Zip4 = "0001"
	}
	addr.DPVConfirmation = "Y"
	return &AddressValidateResponse{Address: addr}, nil
}

// EVS returns a label with a random barcode.
func (m *MockAPIClient) EVS(ctx context.Context, req *EVSRequest) (*EVSResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnEVS != nil {
		return m.OnEVS(ctx, req)
	}

	return &EVSResponse{
		BarcodeNumber: fmt.Sprintf("420%s9400%d", req.ToZip5, uuid.New().ID()),
		LabelImage:    "JVBERi0xLjQKJeLjz9MK",
		Postage:       "10.40",
		Zone:          "05",
	}, nil
}

// TrackV2 reports the parcel as accepted.
func (m *MockAPIClient) TrackV2(ctx context.Context, req *TrackFieldRequest) (*TrackResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnTrackV2 != nil {
		return m.OnTrackV2(ctx, req)
	}

	return &TrackResponse{
		TrackInfo: TrackInfo{
			ID: req.TrackID.ID,
			TrackSummary: TrackEvent{
				Event:      "Accepted at USPS Origin Facility",
				EventDate:  time.Now().Format("January 2, 2006"),
				EventTime:  "9:12 am",
				EventCity:  "LAS VEGAS",
				EventState: "NV",
			},
		},
	}, nil
}

// PostageAdjustment reports no discrepancy.
func (m *MockAPIClient) PostageAdjustment(ctx context.Context, req *PostageAdjustmentRequest) (*PostageAdjustmentResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnPostageAdjustment != nil {
		return m.OnPostageAdjustment(ctx, req)
	}

	return &PostageAdjustmentResponse{
		TrackingNumber:       req.TrackingNumber,
		PostageAdjustment:    "0.00",
		TotalPostageClaimed:  "10.40",
		TotalPostageAssessed: "10.40",
		BasePostageClaimed:   "10.40",
		BasePostageAssessed:  "10.40",
		AdjustmentStatus:     "NO_ADJUSTMENT",
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
