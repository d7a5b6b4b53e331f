package uspsv3

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnSearchTotalRates func(ctx context.Context, req *TotalRatesRequest) (*TotalRatesResponse, error)
	OnGetAddress       func(ctx context.Context, req *AddressQuery) (*AddressResponse, error)
	OnCreateLabel      func(ctx context.Context, req *LabelRequest) (*LabelResponse, error)
	OnGetTracking      func(ctx context.Context, trackingNumber string) (*TrackingResponse, error)
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
		return &APIError{StatusCode: 500, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	return nil
}

// SearchTotalRates returns one canned rate option per requested mail class.
func (m *MockAPIClient) SearchTotalRates(ctx context.Context, req *TotalRatesRequest) (*TotalRatesResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnSearchTotalRates != nil {
		return m.OnSearchTotalRates(ctx, req)
	}

	prices := map[string]float64{
		MailClassGround:   7.65,
		MailClassPriority: 10.20,
		MailClassExpress:  30.45,
	}

	resp := &TotalRatesResponse{}
	for _, class := range req.MailClasses {
		price, ok := prices[class]
		if !ok {
			continue
		}
		total := price
		resp.RateOptions = append(resp.RateOptions, RateOption{
			TotalPrice: &total,
			Rates: []Rate{{
				SKU:         "DXXX0XXXXXC05010",
				Price:       price,
				MailClass:   class,
				Zone:        "05",
				ProductName: mailClassNames[class],
			}},
		})
	}
	return resp, nil
}

// GetAddress echoes the address upper-cased and confirmed.
func (m *MockAPIClient) GetAddress(ctx context.Context, req *AddressQuery) (*AddressResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnGetAddress != nil {
		return m.OnGetAddress(ctx, req)
	}

	zip4 := req.ZIPPlus4
	if zip4 == "" {
		zip4 = "0001"
	}
	return &AddressResponse{
		Address: StandardAddress{
			StreetAddress:    strings.ToUpper(req.StreetAddress),
			SecondaryAddress: strings.ToUpper(req.SecondaryAddress),
			City:             strings.ToUpper(req.City),
			State:            strings.ToUpper(req.State),
			ZIPCode:          req.ZIPCode,
			ZIPPlus4:         zip4,
		},
		AdditionalInfo: AdditionalInfo{DPVConfirmation: "Y", Vacant: "N", Business: "N"},
	}, nil
}

// CreateLabel returns a label with a random tracking number.
func (m *MockAPIClient) CreateLabel(ctx context.Context, req *LabelRequest) (*LabelResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnCreateLabel != nil {
		return m.OnCreateLabel(ctx, req)
	}

	digits := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return &LabelResponse{
		LabelMetadata: &LabelMetadata{
			TrackingNumber: "9205500000" + strings.ToUpper(digits),
			Postage:        10.20,
			SKU:            "DPXX0XXXXX07200",
			Zone:           "05",
		},
		LabelImage: "JVBERi0xLjQKJcfsj6IKbW9jay1sYWJlbA==",
	}, nil
}

// GetTracking returns a parcel that has been accepted.
func (m *MockAPIClient) GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, trackingNumber)
	}

	return &TrackingResponse{
		TrackingNumber: trackingNumber,
		Status:         "Accepted at USPS Origin Facility",
		StatusCategory: "Accepted",
		Events: []TrackingEvent{{
			EventType:      "Accepted at USPS Origin Facility",
			EventTimestamp: time.Now().UTC().Format(time.RFC3339),
			EventCity:      "LAS VEGAS",
			EventState:     "NV",
			EventZIPCode:   "89134",
		}},
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
