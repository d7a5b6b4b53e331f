package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/pkg/shipper"
)

var placedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestNewLocalOrder_Pickup(t *testing.T) {
	req := validRequest()
	req.PaymentToken = "tok_secret"

	o := domain.NewLocalOrder("id-1", req, "guid-1", "tx-1", placedAt)

	assert.Equal(t, domain.StatusPlaced, o.Status)
	assert.Equal(t, "guid-1", o.POSOrderID)
	assert.Equal(t, "tx-1", o.PaymentTransactionID)
	assert.Equal(t, placedAt.Add(15*time.Minute), o.EstimatedReadyTime)
	assert.Equal(t, "a@b.com", o.Customer.Email)
	assert.Nil(t, o.ShippingAddress)
	assert.Empty(t, o.Shipping.LabelStatus)
	assert.False(t, o.Ships())
}

func TestNewLocalOrder_Merchandise(t *testing.T) {
	req := validRequest()
	req.ShippingAddress = &shipper.Address{Street1: "1 Main St", City: "Las Vegas", State: "NV", ZIP: "89134"}
	req.ShippingMethod = "PRIORITY"

	o := domain.NewLocalOrder("id-2", req, "guid-2", "tx-2", placedAt)

	assert.Equal(t, domain.LabelPending, o.Shipping.LabelStatus)
	assert.True(t, o.Ships())
}

func TestLocalOrder_SetLabelStatus(t *testing.T) {
	o := domain.NewLocalOrder("id-3", validRequest(), "", "", placedAt)
	later := placedAt.Add(time.Hour)

	o.SetLabelStatus(domain.LabelPrinted, later)
	require.NotNil(t, o.Shipping.PrintedAt)
	assert.Equal(t, later, *o.Shipping.PrintedAt)
	assert.Nil(t, o.Shipping.ShippedAt)

	o.SetLabelStatus(domain.LabelShipped, later.Add(time.Hour))
	require.NotNil(t, o.Shipping.ShippedAt)
	assert.Equal(t, domain.LabelShipped, o.Shipping.LabelStatus)
}

func TestLocalOrder_ShippingView(t *testing.T) {
	req := validRequest()
	req.Customer = &domain.Customer{Email: "a@b.com", FirstName: "Ada", LastName: "Lovelace"}
	req.ShippingAddress = &shipper.Address{Street1: "1 Main St", City: "Las Vegas", State: "NV", ZIP: "89134"}
	o := domain.NewLocalOrder("0c5e7a1f-aaaa", req, "guid", "tx", placedAt)
	o.OrderNumber = ""
	o.AttachLabel(&shipper.Label{TrackingNumber: "9400", LabelImage: "img", Format: "PDF"}, placedAt)

	view := o.ShippingView()

	assert.Equal(t, "ORD-0C5E7A1F", view.OrderNumber)
	assert.Equal(t, "Ada Lovelace", view.CustomerName)
	assert.Equal(t, "1 Main St, Las Vegas, NV, 89134", view.ShippingAddress)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("6.98")))
	assert.Equal(t, 1, view.ItemCount)
	require.NotNil(t, view.TrackingNumber)
	assert.Equal(t, "9400", *view.TrackingNumber)
	assert.Equal(t, domain.LabelPending, view.LabelStatus)
}

func TestLocalOrder_ShippingViewFallbacks(t *testing.T) {
	o := &domain.LocalOrder{ID: "id", Shipping: domain.ShippingInfo{LabelStatus: domain.LabelPrinted}}

	view := o.ShippingView()

	assert.Equal(t, "Customer", view.CustomerName)
	assert.Equal(t, "No address", view.ShippingAddress)
	assert.Nil(t, view.TrackingNumber)
	assert.Equal(t, domain.LabelPrinted, view.LabelStatus)
}

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want domain.OrderStatus
		ok   bool
	}{
		{"ready_for_pickup", domain.StatusReady, true},
		{"READY", domain.StatusReady, true},
		{"In Progress", domain.StatusPreparing, true},
		{"closed", domain.StatusCompleted, true},
		{"VOIDED", domain.StatusCancelled, true},
		{"placed", domain.StatusPlaced, true},
		{"teleported", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := domain.ParseOrderStatus(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLabelStatus(t *testing.T) {
	for _, s := range []string{"pending", "printed", "shipped"} {
		got, ok := domain.ParseLabelStatus(s)
		assert.True(t, ok)
		assert.Equal(t, domain.LabelStatus(s), got)
	}
	for _, s := range []string{"", "delivered", "PRINTED"} {
		_, ok := domain.ParseLabelStatus(s)
		assert.False(t, ok, s)
	}
}
