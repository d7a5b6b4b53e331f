package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/storefront/pkg/shipper"
)

// LocalOrder is the persisted record of a placed order. The payment token is never stored.
type LocalOrder struct {
	ID                   string           `json:"id"`
	OrderNumber          string           `json:"orderNumber"`
	Items                []LineItem       `json:"items"`
	Customer             Customer         `json:"customer"`
	PaymentMethod        string           `json:"paymentMethod"`
	TipAmount            decimal.Decimal  `json:"tipAmount"`
	RewardsData          *RewardsData     `json:"rewardsData,omitempty"`
	SpecialInstructions  string           `json:"specialInstructions,omitempty"`
	POSOrderID           string           `json:"posOrderId,omitempty"`
	PaymentTransactionID string           `json:"paymentTransactionId,omitempty"`
	Status               OrderStatus      `json:"status"`
	EstimatedReadyTime   time.Time        `json:"estimatedReadyTime"`
	ShippingAddress      *shipper.Address `json:"shippingAddress,omitempty"`
	ShippingMethod       string           `json:"shippingMethod,omitempty"`
	Shipping             ShippingInfo     `json:"shipping"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// ShippingInfo is the label state of a merchandise order.
type ShippingInfo struct {
	LabelStatus    LabelStatus `json:"labelStatus,omitempty"`
	TrackingNumber string      `json:"trackingNumber,omitempty"`
	LabelImage     string      `json:"labelImage,omitempty"`
	LabelFormat    string      `json:"labelFormat,omitempty"`
	LabelCreatedAt *time.Time  `json:"labelCreatedAt,omitempty"`
	PrintedAt      *time.Time  `json:"printedAt,omitempty"`
	ShippedAt      *time.Time  `json:"shippedAt,omitempty"`
}

// NewLocalOrder copies the request into a new record in the placed state.
func NewLocalOrder(id string, req *OrderRequest, posOrderID, paymentTransactionID string, now time.Time) *LocalOrder {
	o := &LocalOrder{
		ID:                   id,
		OrderNumber:          OrderNumber(now),
		Items:                req.Items,
		PaymentMethod:        req.PaymentMethod,
		TipAmount:            req.TipAmount,
		RewardsData:          req.RewardsData,
		SpecialInstructions:  req.SpecialInstructions,
		POSOrderID:           posOrderID,
		PaymentTransactionID: paymentTransactionID,
		Status:               StatusPlaced,
		EstimatedReadyTime:   now.Add(PreparationWindow),
		ShippingAddress:      req.ShippingAddress,
		ShippingMethod:       req.ShippingMethod,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if req.Customer != nil {
		o.Customer = *req.Customer
	}
	if req.Ships() {
		o.Shipping.LabelStatus = LabelPending
	}
	return o
}

// Clone returns a copy of o that shares no mutable state with it.
func (o *LocalOrder) Clone() *LocalOrder {
	c := *o
	c.Items = make([]LineItem, len(o.Items))
	for i, item := range o.Items {
		if item.Customizations != nil {
			cz := *item.Customizations
			item.Customizations = &cz
		}
		c.Items[i] = item
	}
	if o.RewardsData != nil {
		rd := *o.RewardsData
		c.RewardsData = &rd
	}
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		c.ShippingAddress = &addr
	}
	c.Shipping.LabelCreatedAt = cloneTime(o.Shipping.LabelCreatedAt)
	c.Shipping.PrintedAt = cloneTime(o.Shipping.PrintedAt)
	c.Shipping.ShippedAt = cloneTime(o.Shipping.ShippedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Total returns Σ price × quantity.
func (o *LocalOrder) Total() decimal.Decimal {
	return Total(o.Items)
}

// Ships reports whether the order has any shipping state.
func (o *LocalOrder) Ships() bool {
	return o.ShippingAddress != nil || o.Shipping.LabelStatus != "" || o.Shipping.TrackingNumber != ""
}

// SetLabelStatus moves the label to status and stamps the transition time.
func (o *LocalOrder) SetLabelStatus(status LabelStatus, now time.Time) {
	o.Shipping.LabelStatus = status
	switch status {
	case LabelPrinted:
		o.Shipping.PrintedAt = &now
	case LabelShipped:
		o.Shipping.ShippedAt = &now
	}
}

// AttachLabel records a purchased label on the order.
func (o *LocalOrder) AttachLabel(label *shipper.Label, now time.Time) {
	o.Shipping.TrackingNumber = label.TrackingNumber
	o.Shipping.LabelImage = label.LabelImage
	o.Shipping.LabelFormat = label.Format
	o.Shipping.LabelCreatedAt = &now
	if o.Shipping.LabelStatus == "" {
		o.Shipping.LabelStatus = LabelPending
	}
}

// ShippingOrder is the admin view of a merchandise order.
type ShippingOrder struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	OrderNumber     string          `json:"orderNumber"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail"`
	OrderDate       time.Time       `json:"orderDate"`
	Total           decimal.Decimal `json:"total"`
	ItemCount       int             `json:"itemCount"`
	ShippingAddress string          `json:"shippingAddress"`
	TrackingNumber  *string         `json:"trackingNumber"`
	LabelStatus     LabelStatus     `json:"labelStatus"`
	LabelCreatedAt  *time.Time      `json:"labelCreatedAt"`
}

// ShippingView builds the admin view of o.
func (o *LocalOrder) ShippingView() ShippingOrder {
	number := o.OrderNumber
	if number == "" {
		short := o.ID
		if len(short) > 8 {
			short = short[:8]
		}
		number = "ORD-" + strings.ToUpper(short)
	}

	name := o.Customer.Email
	if o.Customer.FirstName != "" && o.Customer.LastName != "" {
		name = o.Customer.FirstName + " " + o.Customer.LastName
	}
	if name == "" {
		name = "Customer"
	}

	status := o.Shipping.LabelStatus
	if status == "" {
		status = LabelPending
	}

	view := ShippingOrder{
		ID:              o.ID,
		OrderID:         o.ID,
		OrderNumber:     number,
		CustomerName:    name,
		CustomerEmail:   o.Customer.Email,
		OrderDate:       o.CreatedAt,
		Total:           o.Total(),
		ItemCount:       len(o.Items),
		ShippingAddress: FormatAddress(o.ShippingAddress),
		LabelStatus:     status,
		LabelCreatedAt:  o.Shipping.LabelCreatedAt,
	}
	if o.Shipping.TrackingNumber != "" {
		tn := o.Shipping.TrackingNumber
		view.TrackingNumber = &tn
	}
	return view
}

// FormatAddress renders an address on one line for display.
func FormatAddress(a *shipper.Address) string {
	if a == nil {
		return "No address"
	}
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street1, a.Street2, a.City, a.State, a.ZIP} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "No address"
	}
	return strings.Join(parts, ", ")
}
