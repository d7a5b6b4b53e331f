package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customizations are the drink options a customer picked for an item.
type Customizations struct {
	Size  string `json:"size,omitempty"`
	Milk  string `json:"milk,omitempty"`
	Syrup string `json:"syrup,omitempty"`
	// AddOns is a comma-separated list, e.g. "Extra Shot, Whipped Cream".
	AddOns string `json:"addOns,omitempty"`
}

// IsZero reports whether no option was picked.
func (c *Customizations) IsZero() bool {
	return c == nil || (c.Size == "" && c.Milk == "" && c.Syrup == "" && c.AddOns == "")
}

// Item is a line item to be sent to the POS.
type Item struct {
	ProductID           string
	Name                string
	Price               decimal.Decimal
	Quantity            int
	SpecialInstructions string
	Customizations      *Customizations
}

// Customer identifies who placed the order.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Order is a pickup order to register with the POS.
type Order struct {
	Items               []Item
	Customer            Customer
	PaymentMethod       string
	SpecialInstructions string
	EstimatedReadyTime  time.Time
}

// Total returns the sum of price × quantity over all items.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Payment is a charge against a POS order.
type Payment struct {
	OrderGUID    string
	Amount       decimal.Decimal
	TipAmount    decimal.Decimal
	PaymentType  string
	PaymentToken string
}

// PaymentResult is the outcome of a successful charge.
type PaymentResult struct {
	TransactionID string
	Status        string
	Amount        decimal.Decimal
	PaymentType   string
}

// LoyaltyData is the rewards state to mirror into the POS customer record.
type LoyaltyData struct {
	Email          string
	FirstName      string
	LastName       string
	Phone          string
	CurrentPoints  int
	LifetimePoints int
	Tier           string
	PointsEarned   int
	PointsRedeemed int
}

// LoyaltyResult reports a loyalty sync. Failures are carried in Err, never returned.
type LoyaltyResult struct {
	CustomerGUID string
	Success      bool
	Err          error
}

// OrderStatus is the POS view of an order's progress.
type OrderStatus struct {
	Status             string
	EstimatedReadyTime string
}
