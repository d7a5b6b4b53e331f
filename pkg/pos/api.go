package pos

import (
	"context"
	"fmt"
)

// APIClient defines the interface for point-of-sale API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// Authenticate obtains (or reuses) a machine-client bearer token
	Authenticate(ctx context.Context) (string, error)

	// CreateOrder submits an order to the POS
	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error)

	// GetOrder retrieves a POS order by GUID
	GetOrder(ctx context.Context, orderGUID string) (*OrderDetails, error)

	// VoidOrder voids an unpaid POS order
	VoidOrder(ctx context.Context, orderGUID string, reason string) error

	// ProcessPayment charges a payment against a POS order
	ProcessPayment(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error)

	// FindCustomers looks up customers by email
	FindCustomers(ctx context.Context, email string) ([]CustomerRecord, error)

	// CreateCustomer creates a customer record
	CreateCustomer(ctx context.Context, req *CustomerRequest) (*CustomerRecord, error)

	// UpdateCustomer updates an existing customer record
	UpdateCustomer(ctx context.Context, customerGUID string, req *CustomerRequest) (*CustomerRecord, error)
}

// ============================================================================
// API Request/Response Types (match the POS REST API structure)
// ============================================================================

// OrderRequest is the POS bulk order payload.
type OrderRequest struct {
	RestaurantGUID      string        `json:"restaurantGuid"`
	OrderType           string        `json:"orderType"`
	Items               []OrderItem   `json:"items"`
	Customer            OrderCustomer `json:"customer"`
	SpecialInstructions *string       `json:"specialInstructions"`
	EstimatedReadyTime  string        `json:"estimatedReadyTime"`
	Payment             OrderPayment  `json:"payment"`
}

// OrderItem is one line of a POS order.
type OrderItem struct {
	MenuItemGUID        string         `json:"menuItemGuid"`
	Quantity            int            `json:"quantity"`
	Price               float64        `json:"price"`
	SpecialInstructions *string        `json:"specialInstructions"`
	Modifications       []Modification `json:"modifications,omitempty"`
}

// Modification is a menu modifier applied to an item.
type Modification struct {
	ModificationGUID string  `json:"modificationGuid,omitempty"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
}

// OrderCustomer is the customer block of an order.
type OrderCustomer struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
}

// OrderPayment describes how an order is paid.
type OrderPayment struct {
	PaymentType   string  `json:"paymentType"`
	Amount        float64 `json:"amount"`
	TransactionID *string `json:"transactionId"`
}

// OrderResponse is returned by the POS when an order is accepted.
type OrderResponse struct {
	OrderGUID          string `json:"orderGuid"`
	ID                 string `json:"id"`
	EstimatedReadyTime string `json:"estimatedReadyTime"`
}

// GUID returns the order identifier, whichever field the POS populated.
func (r *OrderResponse) GUID() string {
	if r.OrderGUID != "" {
		return r.OrderGUID
	}
	return r.ID
}

// OrderDetails is the POS view of an existing order.
type OrderDetails struct {
	GUID               string `json:"guid"`
	Status             string `json:"status"`
	EstimatedReadyTime string `json:"estimatedReadyTime"`
}

// PaymentRequest charges a payment against an order.
type PaymentRequest struct {
	RestaurantGUID string  `json:"restaurantGuid"`
	OrderGUID      string  `json:"orderGuid"`
	Amount         float64 `json:"amount"`
	TipAmount      float64 `json:"tipAmount"`
	PaymentType    string  `json:"paymentType"`
	PaymentToken   string  `json:"paymentToken,omitempty"`
}

// PaymentResponse is the POS payment result.
type PaymentResponse struct {
	TransactionID string  `json:"transactionId"`
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	PaymentType   string  `json:"paymentType"`
}

// CustomerRequest creates or updates a customer with loyalty fields.
type CustomerRequest struct {
	Email        string       `json:"email"`
	FirstName    string       `json:"firstName,omitempty"`
	LastName     string       `json:"lastName,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	CustomFields CustomFields `json:"customFields"`
}

// CustomFields carries loyalty data in POS customer custom fields.
type CustomFields struct {
	LoyaltyPoints  int    `json:"loyaltyPoints"`
	LifetimePoints int    `json:"lifetimePoints"`
	LoyaltyTier    string `json:"loyaltyTier"`
}

// CustomerRecord is a POS customer.
type CustomerRecord struct {
	GUID  string `json:"guid"`
	Email string `json:"email"`
}

// APIError represents an error response from the POS API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
