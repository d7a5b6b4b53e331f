package pos_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/pos"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *pos.MockAPIClient) *pos.Client {
	logger := otelzap.New(zap.NewNop())
	return pos.NewWithAPIClient(
		pos.Config{
			RestaurantGUID: "rest-1",
			ModifierGUIDs:  map[string]string{"milk_oat": "mod-oat"},
		},
		mockClient,
		logger,
		nil,
	)
}

func testOrder() *pos.Order {
	return &pos.Order{
		Items: []pos.Item{
			{
				ProductID: "p1",
				Price:     decimal.RequireFromString("3.49"),
				Quantity:  2,
				Customizations: &pos.Customizations{
					Size:   "Large",
					Milk:   "Oat",
					AddOns: "Extra Shot, Whipped Cream",
				},
			},
		},
		Customer:      pos.Customer{FirstName: "Ada", LastName: "L", Email: "a@b.com"},
		PaymentMethod: "CREDIT_CARD",
	}
}

func TestClient_CreateOrder_Success(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	var captured *pos.OrderRequest
	mockAPI.OnCreateOrder = func(ctx context.Context, req *pos.OrderRequest) (*pos.OrderResponse, error) {
		captured = req
		return &pos.OrderResponse{ID: "guid-1"}, nil
	}
	client := newTestClient(mockAPI)

	guid, err := client.CreateOrder(context.Background(), testOrder(), "")

	require.NoError(t, err)
	assert.Equal(t, "guid-1", guid)
	require.NotNil(t, captured)
	assert.Equal(t, "rest-1", captured.RestaurantGUID)
	assert.Equal(t, "PICKUP", captured.OrderType)
	assert.InDelta(t, 6.98, captured.Payment.Amount, 0.0001)
	assert.Nil(t, captured.Payment.TransactionID)
	assert.NotEmpty(t, captured.EstimatedReadyTime)

	mods := captured.Items[0].Modifications
	require.Len(t, mods, 4)
	assert.Equal(t, "Large", mods[0].Name)
	assert.Equal(t, "mod-oat", mods[1].ModificationGUID)
	assert.Equal(t, "Extra Shot", mods[2].Name)
	assert.InDelta(t, 0.80, mods[3].Price, 0.0001)
}

func TestClient_CreateOrder_APIError(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.CreateOrder(context.Background(), testOrder(), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.POSOrder))
}

func TestClient_CreateOrder_AuthErrorKeepsKind(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	mockAPI.OnCreateOrder = func(ctx context.Context, req *pos.OrderRequest) (*pos.OrderResponse, error) {
		return nil, fault.New(fault.KindAuth, "pos", fault.CodeRejected, "bad token")
	}
	client := newTestClient(mockAPI)

	_, err := client.CreateOrder(context.Background(), testOrder(), "")

	assert.True(t, errors.Is(err, fault.Auth))
}

func TestClient_ProcessPayment_Success(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	client := newTestClient(mockAPI)

	result, err := client.ProcessPayment(context.Background(), &pos.Payment{
		OrderGUID:   "guid-1",
		Amount:      decimal.RequireFromString("6.98"),
		TipAmount:   decimal.RequireFromString("1.00"),
		PaymentType: "CREDIT_CARD",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.TransactionID)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "CREDIT_CARD", result.PaymentType)
}

func TestClient_ProcessPayment_Rejected(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	mockAPI.OnProcessPayment = func(ctx context.Context, req *pos.PaymentRequest) (*pos.PaymentResponse, error) {
		return nil, &pos.APIError{StatusCode: 402, Code: "CARD_DECLINED", Message: "Card declined"}
	}
	client := newTestClient(mockAPI)

	_, err := client.ProcessPayment(context.Background(), &pos.Payment{OrderGUID: "guid-1", Amount: decimal.NewFromInt(5)})

	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.Payment))
	var fe *fault.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 402, fe.StatusCode)
	assert.Equal(t, "CARD_DECLINED", fe.Code)
}

func TestClient_ProcessPayment_DeclinedStatus(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	mockAPI.OnProcessPayment = func(ctx context.Context, req *pos.PaymentRequest) (*pos.PaymentResponse, error) {
		return &pos.PaymentResponse{ID: "txn-1", Status: "DECLINED"}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.ProcessPayment(context.Background(), &pos.Payment{OrderGUID: "guid-1", Amount: decimal.NewFromInt(5)})

	assert.True(t, errors.Is(err, fault.Payment))
}

func TestClient_SyncCustomerLoyalty_UpdatesExisting(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	mockAPI.OnFindCustomers = func(ctx context.Context, email string) ([]pos.CustomerRecord, error) {
		return []pos.CustomerRecord{{GUID: "cust-9", Email: email}}, nil
	}
	var updated string
	var fields pos.CustomFields
	mockAPI.OnUpdateCustomer = func(ctx context.Context, guid string, req *pos.CustomerRequest) (*pos.CustomerRecord, error) {
		updated = guid
		fields = req.CustomFields
		return &pos.CustomerRecord{GUID: guid}, nil
	}
	mockAPI.OnCreateCustomer = func(ctx context.Context, req *pos.CustomerRequest) (*pos.CustomerRecord, error) {
		t.Fatal("customer should not be created")
		return nil, nil
	}
	client := newTestClient(mockAPI)

	result := client.SyncCustomerLoyalty(context.Background(), &pos.LoyaltyData{
		Email: "a@b.com", CurrentPoints: 120, LifetimePoints: 400, Tier: "Gold",
	})

	assert.True(t, result.Success)
	assert.Equal(t, "cust-9", result.CustomerGUID)
	assert.Equal(t, "cust-9", updated)
	assert.Equal(t, pos.CustomFields{LoyaltyPoints: 120, LifetimePoints: 400, LoyaltyTier: "Gold"}, fields)
}

func TestClient_SyncCustomerLoyalty_CreatesMissing(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	client := newTestClient(mockAPI)

	result := client.SyncCustomerLoyalty(context.Background(), &pos.LoyaltyData{Email: "new@b.com"})

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.CustomerGUID)
}

func TestClient_SyncCustomerLoyalty_FailureIsReported(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	result := client.SyncCustomerLoyalty(context.Background(), &pos.LoyaltyData{Email: "a@b.com"})

	assert.False(t, result.Success)
	require.Error(t, result.Err)
	assert.True(t, fault.IsBestEffort(result.Err))
}

func TestClient_GetOrderStatus(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	mockAPI.OnGetOrder = func(ctx context.Context, guid string) (*pos.OrderDetails, error) {
		return &pos.OrderDetails{GUID: guid}, nil
	}
	client := newTestClient(mockAPI)

	status, err := client.GetOrderStatus(context.Background(), "guid-1")

	require.NoError(t, err)
	assert.Equal(t, "placed", status.Status)
}

func TestClient_VoidOrder(t *testing.T) {
	mockAPI := pos.NewMockAPIClient()
	var voided string
	mockAPI.OnVoidOrder = func(ctx context.Context, guid, reason string) error {
		voided = guid
		return nil
	}
	client := newTestClient(mockAPI)

	require.NoError(t, client.VoidOrder(context.Background(), "guid-1", "payment failed"))
	assert.Equal(t, "guid-1", voided)
}

func TestOrder_Total(t *testing.T) {
	order := testOrder()
	assert.Equal(t, "6.98", order.Total().String())
}
