// Package service sequences the POS, shipping, storage and event collaborators behind the HTTP surface.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/internal/events"
	"github.com/tournevent/storefront/internal/repository"
	"github.com/tournevent/storefront/internal/telemetry"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/pos"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	posService = "pos"

	defaultCallTimeout = 30 * time.Second
	voidTimeout        = 15 * time.Second
)

// POS is the part of the point-of-sale client the order service uses.
type POS interface {
	CreateOrder(ctx context.Context, order *pos.Order, paymentTransactionID string) (string, error)
	ProcessPayment(ctx context.Context, p *pos.Payment) (*pos.PaymentResult, error)
	SyncCustomerLoyalty(ctx context.Context, data *pos.LoyaltyData) *pos.LoyaltyResult
	GetOrderStatus(ctx context.Context, orderGUID string) (*pos.OrderStatus, error)
	VoidOrder(ctx context.Context, orderGUID, reason string) error
}

var _ POS = (*pos.Client)(nil)

// OrderConfig tunes the order service.
type OrderConfig struct {
	// VoidOnPaymentFailure voids the POS order when its payment is declined. When off, the
	// unpaid order is only reported for manual reconciliation.
	VoidOnPaymentFailure bool
	// CallTimeout bounds every remote call made while handling one request.
	CallTimeout time.Duration
}

// PlaceOrderResult is returned for a placed order.
type PlaceOrderResult struct {
	OrderID              string    `json:"orderId"`
	BackendOrderID       string    `json:"backendOrderId"`
	PaymentTransactionID string    `json:"paymentTransactionId"`
	Status               string    `json:"status"`
	EstimatedReadyTime   time.Time `json:"estimatedReadyTime"`
}

// OrderStatusResult is the customer view of an order's progress.
type OrderStatusResult struct {
	OrderID            string             `json:"orderId"`
	Status             domain.OrderStatus `json:"status"`
	EstimatedReadyTime time.Time          `json:"estimatedReadyTime"`
	ReadyForPickup     bool               `json:"readyForPickup"`
}

// OrderService places orders and tracks their progress.
type OrderService struct {
	config    OrderConfig
	pos       POS
	store     repository.OrderStore
	publisher events.Publisher
	metrics   *telemetry.Metrics
	logger    *otelzap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewOrderService creates an OrderService. A nil tracer uses the global provider.
func NewOrderService(cfg OrderConfig, posClient POS, store repository.OrderStore, publisher events.Publisher,
	metrics *telemetry.Metrics, logger *otelzap.Logger, tracer trace.Tracer) *OrderService {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/storefront/internal/service")
	}
	return &OrderService{
		config:    cfg,
		pos:       posClient,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		tracer:    tracer,
		now:       time.Now,
	}
}

// PlaceOrder validates the request, registers and charges it with the POS, syncs loyalty, and records
// the order locally. Nothing is recorded when payment fails.
func (s *OrderService) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*PlaceOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if err := req.Validate(); err != nil {
		s.metrics.RecordOrder(telemetry.OutcomeInvalid)
		return nil, err
	}

	now := s.now()
	total := req.Total()
	span.SetAttributes(
		attribute.Int("order.item_count", len(req.Items)),
		attribute.String("order.payment_method", req.PaymentMethod),
		attribute.String("order.total", total.StringFixed(2)),
	)

	s.logger.Info("Placing order",
		zap.Int("item_count", len(req.Items)),
		zap.String("total", total.StringFixed(2)),
		zap.String("payment_method", req.PaymentMethod),
	)

	var posOrderID string
	err := s.call(ctx, "create_order", func(ctx context.Context) error {
		var err error
		posOrderID, err = s.pos.CreateOrder(ctx, toPOSOrder(req, now), "")
		return err
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.RecordOrder(telemetry.OutcomeFailed)
		return nil, err
	}
	span.SetAttributes(attribute.String("pos.order_guid", posOrderID))

	var paymentTransactionID string
	if req.RequiresPayment() {
		var result *pos.PaymentResult
		err := s.call(ctx, "process_payment", func(ctx context.Context) error {
			var err error
			result, err = s.pos.ProcessPayment(ctx, &pos.Payment{
				OrderGUID:    posOrderID,
				Amount:       total,
				TipAmount:    req.TipAmount,
				PaymentType:  req.PaymentMethod,
				PaymentToken: req.PaymentToken,
			})
			return err
		})
		if err != nil {
			span.RecordError(err)
			s.metrics.RecordOrder(telemetry.OutcomePaymentFailed)
			s.compensate(ctx, posOrderID, err)
			return nil, paymentError(err)
		}
		paymentTransactionID = result.TransactionID
	}

	if req.RewardsData != nil {
		s.syncLoyalty(ctx, req)
	}

	order := domain.NewLocalOrder(uuid.NewString(), req, posOrderID, paymentTransactionID, now)
	if err := s.store.Create(ctx, order); err != nil {
		s.logger.Error("Failed to record paid order",
			zap.String("pos_order_guid", posOrderID),
			zap.String("payment_transaction_id", paymentTransactionID),
			zap.Error(err),
		)
		span.RecordError(err)
		s.metrics.RecordOrder(telemetry.OutcomeFailed)
		return nil, fmt.Errorf("recording order: %w", err)
	}

	placed := events.New(events.OrderPlaced, now)
	placed.OrderID = order.ID
	placed.POSOrderID = posOrderID
	s.publish(ctx, placed)

	if order.Ships() {
		ev := events.New(events.FulfillmentRequested, now)
		ev.OrderID = order.ID
		ev.POSOrderID = posOrderID
		s.publish(ctx, ev)
	}

	s.metrics.RecordOrder(telemetry.OutcomePlaced)
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("pos_order_guid", posOrderID),
		zap.String("payment_transaction_id", paymentTransactionID),
	)

	return &PlaceOrderResult{
		OrderID:              order.ID,
		BackendOrderID:       posOrderID,
		PaymentTransactionID: paymentTransactionID,
		Status:               string(order.Status),
		EstimatedReadyTime:   order.EstimatedReadyTime,
	}, nil
}

// GetOrderStatus refreshes the order from the POS when it has a POS order and returns its status.
// POS failures fall back to the last known local status.
func (s *OrderService) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatusResult, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrderStatus")
	defer span.End()

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.POSOrderID != "" {
		if refreshed, ok := s.refreshStatus(ctx, order); ok {
			order = refreshed
		}
	}

	return &OrderStatusResult{
		OrderID:            order.ID,
		Status:             order.Status,
		EstimatedReadyTime: order.EstimatedReadyTime,
		ReadyForPickup:     order.Status.ReadyForPickup(),
	}, nil
}

// HandlePOSWebhook applies a status pushed by the POS. Orders that are not tracked locally and
// statuses that do not map to the local lifecycle are ignored.
func (s *OrderService) HandlePOSWebhook(ctx context.Context, posOrderID, status string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandlePOSWebhook")
	defer span.End()

	s.logger.Info("POS webhook received", zap.String("pos_order_guid", posOrderID), zap.String("status", status))

	if posOrderID == "" {
		return nil
	}
	mapped, ok := domain.ParseOrderStatus(status)
	if !ok {
		s.logger.Warn("Ignoring unknown POS status", zap.String("pos_order_guid", posOrderID), zap.String("status", status))
		return nil
	}

	order, err := s.store.GetByPOSOrderID(ctx, posOrderID)
	if errors.Is(err, fault.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.store.Update(ctx, order.ID, func(o *domain.LocalOrder) error {
		o.Status = mapped
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil && !errors.Is(err, fault.ErrNotFound) {
		return err
	}
	return nil
}

func (s *OrderService) refreshStatus(ctx context.Context, order *domain.LocalOrder) (*domain.LocalOrder, bool) {
	var remote *pos.OrderStatus
	err := s.call(ctx, "get_order", func(ctx context.Context) error {
		var err error
		remote, err = s.pos.GetOrderStatus(ctx, order.POSOrderID)
		return err
	})
	if err != nil {
		s.logger.Warn("POS status unavailable, using local status",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return nil, false
	}

	mapped, ok := domain.ParseOrderStatus(remote.Status)
	if !ok {
		s.logger.Warn("Unknown POS status", zap.String("order_id", order.ID), zap.String("status", remote.Status))
		mapped = order.Status
	}
	readyAt := order.EstimatedReadyTime
	if t, err := time.Parse(time.RFC3339, remote.EstimatedReadyTime); err == nil {
		readyAt = t
	}

	if mapped == order.Status && readyAt.Equal(order.EstimatedReadyTime) {
		return order, true
	}

	updated, err := s.store.Update(ctx, order.ID, func(o *domain.LocalOrder) error {
		o.Status = mapped
		o.EstimatedReadyTime = readyAt
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to store refreshed status", zap.String("order_id", order.ID), zap.Error(err))
		return nil, false
	}
	return updated, true
}

func (s *OrderService) syncLoyalty(ctx context.Context, req *domain.OrderRequest) {
	rd := req.RewardsData
	var result *pos.LoyaltyResult
	_ = s.call(ctx, "sync_loyalty", func(ctx context.Context) error {
		result = s.pos.SyncCustomerLoyalty(ctx, &pos.LoyaltyData{
			Email:          req.Customer.Email,
			FirstName:      req.Customer.FirstName,
			LastName:       req.Customer.LastName,
			Phone:          req.Customer.Phone,
			CurrentPoints:  rd.CurrentPoints,
			LifetimePoints: rd.LifetimePoints,
			Tier:           rd.CurrentTier,
			PointsEarned:   rd.PointsEarned,
			PointsRedeemed: rd.PointsRedeemed,
		})
		return result.Err
	})
	if result != nil && !result.Success {
		s.logger.Warn("Continuing without loyalty sync", zap.String("email", req.Customer.Email), zap.Error(result.Err))
	}
}

// compensate voids a POS order whose payment failed. When voiding is disabled or fails, the
// unpaid order is reported for manual reconciliation.
func (s *OrderService) compensate(ctx context.Context, posOrderID string, payErr error) {
	ctx = context.WithoutCancel(ctx)

	reason := "payment failed: " + payErr.Error()
	if !s.config.VoidOnPaymentFailure {
		s.requireCompensation(ctx, posOrderID, reason)
		return
	}

	voidCtx, cancel := context.WithTimeout(ctx, voidTimeout)
	defer cancel()

	err := s.call(voidCtx, "void_order", func(ctx context.Context) error {
		return s.pos.VoidOrder(ctx, posOrderID, "Payment failed")
	})
	if err != nil {
		s.requireCompensation(ctx, posOrderID, reason+"; void failed: "+err.Error())
		return
	}
	s.logger.Info("Voided unpaid POS order", zap.String("pos_order_guid", posOrderID))
}

func (s *OrderService) requireCompensation(ctx context.Context, posOrderID, reason string) {
	s.logger.Error("POS order left unpaid, manual reconciliation required",
		zap.String("pos_order_guid", posOrderID),
		zap.String("reason", reason),
	)
	s.metrics.RecordCompensation()

	ev := events.New(events.CompensationRequired, s.now())
	ev.POSOrderID = posOrderID
	ev.Reason = reason
	s.publish(ctx, ev)
}

func (s *OrderService) publish(ctx context.Context, ev events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Order event not delivered", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// call runs fn under the call timeout and records it as a POS request.
func (s *OrderService) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	return timedCall(ctx, s.config.CallTimeout, s.metrics, posService, operation, fn)
}

// paymentError makes sure a failed charge is reported as a payment failure whatever stage rejected it.
func paymentError(err error) error {
	if errors.Is(err, fault.Payment) {
		return err
	}
	return fault.New(fault.KindPayment, posService, fault.CodePaymentFailed, "payment processing failed").WithCause(err)
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := fault.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
