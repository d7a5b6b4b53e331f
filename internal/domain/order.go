// Package domain holds the storefront order model shared by the store, the services and the HTTP layer.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/shipper"
)

// PaymentMethodGiftCard is settled at pickup; orders paid with it skip the payment step.
const PaymentMethodGiftCard = "GIFT_CARD"

// PreparationWindow is added to the placement time to estimate when an order is ready.
const PreparationWindow = 15 * time.Minute

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Customizations are the drink options picked for an item.
type Customizations struct {
	Size   string `json:"size,omitempty"`
	Milk   string `json:"milk,omitempty"`
	Syrup  string `json:"syrup,omitempty"`
	AddOns string `json:"addOns,omitempty"`
}

// LineItem is one product in the cart.
type LineItem struct {
	ProductID           string          `json:"productId"`
	Name                string          `json:"name,omitempty"`
	Price               decimal.Decimal `json:"price"`
	Quantity            int             `json:"quantity" validate:"gt=0"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
	Customizations      *Customizations `json:"customizations,omitempty"`
}

// Subtotal returns price × quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// DisplayName returns the product name, falling back to the product id.
func (li LineItem) DisplayName() string {
	if li.Name != "" {
		return li.Name
	}
	return li.ProductID
}

// Customer identifies who placed the order.
type Customer struct {
	Email     string `json:"email" validate:"required"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// FullName returns first and last name, or the email when both are empty.
func (c Customer) FullName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Email
	}
	return name
}

// RewardsData is the loyalty state reported by the storefront with an order.
type RewardsData struct {
	CurrentPoints  int    `json:"currentPoints"`
	LifetimePoints int    `json:"lifetimePoints"`
	CurrentTier    string `json:"currentTier"`
	PointsEarned   int    `json:"pointsEarned"`
	PointsRedeemed int    `json:"pointsRedeemed"`
}

// OrderRequest is a storefront order.
type OrderRequest struct {
	Items               []LineItem       `json:"items" validate:"required,min=1,dive"`
	Customer            *Customer        `json:"customer" validate:"required"`
	PaymentMethod       string           `json:"paymentMethod"`
	PaymentToken        string           `json:"paymentToken,omitempty"`
	TipAmount           decimal.Decimal  `json:"tipAmount"`
	RewardsData         *RewardsData     `json:"rewardsData,omitempty"`
	ShippingAddress     *shipper.Address `json:"shippingAddress,omitempty"`
	ShippingMethod      string           `json:"shippingMethod,omitempty"`
	SpecialInstructions string           `json:"specialInstructions,omitempty"`
}

// Validate checks the request invariants and returns a validation fault describing the first violation.
func (r *OrderRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fault.Validation(err.Error())
	}

	fe := verrs[0]
	switch {
	case fe.StructField() == "Items":
		return fault.Validation("Invalid order: items array is required and cannot be empty")
	case fe.StructField() == "Customer" || fe.StructField() == "Email":
		return fault.Validation("Invalid order: customer email is required")
	case fe.StructField() == "Quantity":
		return fault.Validation(fmt.Sprintf("Invalid order: %s must have a positive quantity", fe.Namespace()))
	default:
		return fault.Validation(fmt.Sprintf("Invalid order: %s failed %s", fe.Namespace(), fe.Tag()))
	}
}

// Total returns Σ price × quantity. Tips are charged separately.
func (r *OrderRequest) Total() decimal.Decimal {
	return Total(r.Items)
}

// RequiresPayment reports whether the order is charged when placed.
func (r *OrderRequest) RequiresPayment() bool {
	return r.PaymentMethod != PaymentMethodGiftCard
}

// Ships reports whether the order is a merchandise order that needs a label.
func (r *OrderRequest) Ships() bool {
	return r.ShippingAddress != nil || r.ShippingMethod != ""
}

// Total returns Σ price × quantity over items.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// OrderNumber builds the human order number for a placement time.
func OrderNumber(t time.Time) string {
	ms := fmt.Sprintf("%d", t.UnixMilli())
	if len(ms) > 5 {
		ms = ms[5:]
	}
	return "ORD-" + ms
}
