// Package pos provides integration with the point-of-sale and payment provider.
package pos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const serviceName = "pos"

// addOnPrice is charged for every add-on modification.
var addOnPrice = decimal.RequireFromString("0.80")

// Config holds POS configuration.
type Config struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	Scope          string
	RestaurantGUID string
	AuthURLs       []string
	// ModifierGUIDs maps "<kind>_<value>" (e.g. "milk_oat") to a POS modification GUID.
	ModifierGUIDs map[string]string
	Timeout       time.Duration
	UseMock       bool
}

// Client is the POS client.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new POS client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:        cfg.BaseURL,
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			Scope:          cfg.Scope,
			RestaurantGUID: cfg.RestaurantGUID,
			AuthURLs:       cfg.AuthURLs,
			Timeout:        cfg.Timeout,
		}, logger)
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new POS client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/storefront/pkg/pos")
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Authenticate makes sure a bearer token is available.
func (c *Client) Authenticate(ctx context.Context) error {
	if _, err := c.apiClient.Authenticate(ctx); err != nil {
		c.logger.Error("POS authentication failed", zap.Error(err))
		return toFault(fault.KindAuth, err)
	}
	return nil
}

// CreateOrder registers a pickup order and returns the POS order GUID.
// paymentTransactionID may be empty when the order is not yet paid.
func (c *Client) CreateOrder(ctx context.Context, order *Order, paymentTransactionID string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "pos.CreateOrder")
	defer span.End()

	c.logger.Info("Creating POS order",
		zap.Int("item_count", len(order.Items)),
		zap.String("payment_method", order.PaymentMethod),
	)

	apiReq := c.orderToAPI(order, paymentTransactionID)

	apiResp, err := c.apiClient.CreateOrder(ctx, apiReq)
	if err != nil {
		c.logger.Error("POS API error", zap.String("operation", "create_order"), zap.Error(err))
		span.RecordError(err)
		return "", toFault(fault.KindPOSOrder, err)
	}

	guid := apiResp.GUID()
	if guid == "" {
		return "", fault.New(fault.KindPOSOrder, serviceName, "MISSING_ORDER_ID", "POS accepted the order without an id")
	}
	span.SetAttributes(attribute.String("pos.order_guid", guid))
	return guid, nil
}

// ProcessPayment charges the given amount against a POS order.
func (c *Client) ProcessPayment(ctx context.Context, p *Payment) (*PaymentResult, error) {
	ctx, span := c.tracer.Start(ctx, "pos.ProcessPayment")
	defer span.End()

	c.logger.Info("Processing POS payment",
		zap.String("order_guid", p.OrderGUID),
		zap.String("amount", p.Amount.StringFixed(2)),
		zap.String("payment_type", p.PaymentType),
	)

	apiResp, err := c.apiClient.ProcessPayment(ctx, &PaymentRequest{
		RestaurantGUID: c.config.RestaurantGUID,
		OrderGUID:      p.OrderGUID,
		Amount:         p.Amount.InexactFloat64(),
		TipAmount:      p.TipAmount.InexactFloat64(),
		PaymentType:    p.PaymentType,
		PaymentToken:   p.PaymentToken,
	})
	if err != nil {
		c.logger.Error("POS API error", zap.String("operation", "process_payment"), zap.Error(err))
		span.RecordError(err)
		return nil, toFault(fault.KindPayment, err)
	}

	status := apiResp.Status
	if status == "" {
		status = "success"
	}
	switch strings.ToLower(status) {
	case "declined", "failed", "error":
		return nil, fault.New(fault.KindPayment, serviceName, strings.ToUpper(status), "payment was not approved")
	}

	txID := apiResp.TransactionID
	if txID == "" {
		txID = apiResp.ID
	}
	amount := decimal.NewFromFloat(apiResp.Amount)
	if apiResp.Amount == 0 {
		amount = p.Amount.Add(p.TipAmount)
	}
	paymentType := apiResp.PaymentType
	if paymentType == "" {
		paymentType = p.PaymentType
	}

	return &PaymentResult{
		TransactionID: txID,
		Status:        status,
		Amount:        amount,
		PaymentType:   paymentType,
	}, nil
}

// SyncCustomerLoyalty finds or creates the customer by email and writes the loyalty fields.
// It never returns an error; failures are reported in the result.
func (c *Client) SyncCustomerLoyalty(ctx context.Context, data *LoyaltyData) *LoyaltyResult {
	ctx, span := c.tracer.Start(ctx, "pos.SyncCustomerLoyalty")
	defer span.End()

	req := &CustomerRequest{
		Email:     data.Email,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Phone:     data.Phone,
		CustomFields: CustomFields{
			LoyaltyPoints:  data.CurrentPoints,
			LifetimePoints: data.LifetimePoints,
			LoyaltyTier:    data.Tier,
		},
	}

	fail := func(err error) *LoyaltyResult {
		err = toFault(fault.KindLoyaltySync, err)
		c.logger.Warn("Loyalty sync failed", zap.String("email", data.Email), zap.Error(err))
		span.RecordError(err)
		return &LoyaltyResult{Success: false, Err: err}
	}

	existing, err := c.apiClient.FindCustomers(ctx, data.Email)
	if err != nil {
		return fail(err)
	}

	var record *CustomerRecord
	if len(existing) > 0 && existing[0].GUID != "" {
		record, err = c.apiClient.UpdateCustomer(ctx, existing[0].GUID, req)
	} else {
		record, err = c.apiClient.CreateCustomer(ctx, req)
	}
	if err != nil {
		return fail(err)
	}

	c.logger.Info("Loyalty synced",
		zap.String("customer_guid", record.GUID),
		zap.Int("points", data.CurrentPoints),
		zap.String("tier", data.Tier),
	)
	return &LoyaltyResult{CustomerGUID: record.GUID, Success: true}
}

// GetOrderStatus returns the POS status of an order.
func (c *Client) GetOrderStatus(ctx context.Context, orderGUID string) (*OrderStatus, error) {
	ctx, span := c.tracer.Start(ctx, "pos.GetOrderStatus")
	defer span.End()

	details, err := c.apiClient.GetOrder(ctx, orderGUID)
	if err != nil {
		c.logger.Error("POS API error", zap.String("operation", "get_order"), zap.Error(err))
		span.RecordError(err)
		return nil, toFault(fault.KindPOSOrder, err)
	}

	status := details.Status
	if status == "" {
		status = "placed"
	}
	return &OrderStatus{
		Status:             status,
		EstimatedReadyTime: details.EstimatedReadyTime,
	}, nil
}

// VoidOrder voids an order that could not be paid.
func (c *Client) VoidOrder(ctx context.Context, orderGUID, reason string) error {
	ctx, span := c.tracer.Start(ctx, "pos.VoidOrder")
	defer span.End()

	c.logger.Info("Voiding POS order", zap.String("order_guid", orderGUID), zap.String("reason", reason))

	if err := c.apiClient.VoidOrder(ctx, orderGUID, reason); err != nil {
		c.logger.Error("POS API error", zap.String("operation", "void_order"), zap.Error(err))
		span.RecordError(err)
		return toFault(fault.KindPOSOrder, err)
	}
	return nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func (c *Client) orderToAPI(order *Order, paymentTransactionID string) *OrderRequest {
	items := make([]OrderItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItem{
			MenuItemGUID:        item.ProductID,
			Quantity:            item.Quantity,
			Price:               item.Price.InexactFloat64(),
			SpecialInstructions: optional(item.SpecialInstructions),
			Modifications:       c.modifications(item.Customizations),
		}
	}

	readyAt := order.EstimatedReadyTime
	if readyAt.IsZero() {
		readyAt = time.Now().Add(15 * time.Minute)
	}

	return &OrderRequest{
		RestaurantGUID: c.config.RestaurantGUID,
		OrderType:      "PICKUP",
		Items:          items,
		Customer: OrderCustomer{
			FirstName: order.Customer.FirstName,
			LastName:  order.Customer.LastName,
			Email:     order.Customer.Email,
			Phone:     optional(order.Customer.Phone),
		},
		SpecialInstructions: optional(order.SpecialInstructions),
		EstimatedReadyTime:  readyAt.UTC().Format(time.RFC3339),
		Payment: OrderPayment{
			PaymentType:   order.PaymentMethod,
			Amount:        order.Total().InexactFloat64(),
			TransactionID: optional(paymentTransactionID),
		},
	}
}

func (c *Client) modifications(cz *Customizations) []Modification {
	if cz.IsZero() {
		return nil
	}

	var mods []Modification
	add := func(kind, value string, price decimal.Decimal) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		mods = append(mods, Modification{
			ModificationGUID: c.config.ModifierGUIDs[kind+"_"+strings.ToLower(value)],
			Name:             value,
			Price:            price.InexactFloat64(),
		})
	}

	add("size", cz.Size, decimal.Zero)
	add("milk", cz.Milk, decimal.Zero)
	add("syrup", cz.Syrup, decimal.Zero)
	for _, addOn := range strings.Split(cz.AddOns, ",") {
		add("addon", addOn, addOnPrice)
	}
	return mods
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// toFault converts an API or transport failure into the error kind of the calling operation.
// Auth failures keep their own kind.
func toFault(kind fault.Kind, err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		if fe.Kind == fault.KindAuth {
			return err
		}
		return fault.Recast(kind, err)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fault.New(kind, serviceName, apiErr.Code, apiErr.Message).
			WithStatusCode(apiErr.StatusCode).
			WithCause(apiErr)
	}
	return fault.New(kind, serviceName, "UNKNOWN", err.Error()).WithCause(err)
}
