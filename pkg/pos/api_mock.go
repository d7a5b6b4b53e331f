package pos

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnAuthenticate   func(ctx context.Context) (string, error)
	OnCreateOrder    func(ctx context.Context, req *OrderRequest) (*OrderResponse, error)
	OnGetOrder       func(ctx context.Context, orderGUID string) (*OrderDetails, error)
	OnVoidOrder      func(ctx context.Context, orderGUID string, reason string) error
	OnProcessPayment func(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error)
	OnFindCustomers  func(ctx context.Context, email string) ([]CustomerRecord, error)
	OnCreateCustomer func(ctx context.Context, req *CustomerRequest) (*CustomerRecord, error)
	OnUpdateCustomer func(ctx context.Context, customerGUID string, req *CustomerRequest) (*CustomerRecord, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 500, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	return nil
}

// Authenticate returns a mock token.
func (m *MockAPIClient) Authenticate(ctx context.Context) (string, error) {
	if err := m.simulate(); err != nil {
		return "", err
	}
	if m.OnAuthenticate != nil {
		return m.OnAuthenticate(ctx)
	}
	return "mock-token", nil
}

// CreateOrder creates a mock order.
func (m *MockAPIClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateOrder != nil {
		return m.OnCreateOrder(ctx, req)
	}
	return &OrderResponse{
		OrderGUID:          "pos-order-" + uuid.New().String()[:8],
		EstimatedReadyTime: req.EstimatedReadyTime,
	}, nil
}

// GetOrder returns a mock order in the "preparing" state.
func (m *MockAPIClient) GetOrder(ctx context.Context, orderGUID string) (*OrderDetails, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetOrder != nil {
		return m.OnGetOrder(ctx, orderGUID)
	}
	return &OrderDetails{
		GUID:               orderGUID,
		Status:             "preparing",
		EstimatedReadyTime: time.Now().Add(10 * time.Minute).UTC().Format(time.RFC3339),
	}, nil
}

// VoidOrder voids a mock order.
func (m *MockAPIClient) VoidOrder(ctx context.Context, orderGUID string, reason string) error {
	if err := m.simulate(); err != nil {
		return err
	}
	if m.OnVoidOrder != nil {
		return m.OnVoidOrder(ctx, orderGUID, reason)
	}
	return nil
}

// ProcessPayment approves every mock payment.
func (m *MockAPIClient) ProcessPayment(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnProcessPayment != nil {
		return m.OnProcessPayment(ctx, req)
	}
	return &PaymentResponse{
		TransactionID: "txn-" + uuid.New().String()[:8],
		Status:        "success",
		Amount:        req.Amount + req.TipAmount,
		PaymentType:   req.PaymentType,
	}, nil
}

// FindCustomers returns no customers.
func (m *MockAPIClient) FindCustomers(ctx context.Context, email string) ([]CustomerRecord, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnFindCustomers != nil {
		return m.OnFindCustomers(ctx, email)
	}
	return nil, nil
}

// CreateCustomer creates a mock customer.
func (m *MockAPIClient) CreateCustomer(ctx context.Context, req *CustomerRequest) (*CustomerRecord, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateCustomer != nil {
		return m.OnCreateCustomer(ctx, req)
	}
	return &CustomerRecord{GUID: "cust-" + uuid.New().String()[:8], Email: req.Email}, nil
}

// UpdateCustomer updates a mock customer.
func (m *MockAPIClient) UpdateCustomer(ctx context.Context, customerGUID string, req *CustomerRequest) (*CustomerRecord, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnUpdateCustomer != nil {
		return m.OnUpdateCustomer(ctx, customerGUID, req)
	}
	return &CustomerRecord{GUID: customerGUID, Email: req.Email}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
