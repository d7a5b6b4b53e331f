package service

import (
	"context"
	"errors"
	"time"

	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/internal/events"
	"github.com/tournevent/storefront/internal/repository"
	"github.com/tournevent/storefront/internal/telemetry"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LabelOrderItem is a cart line sent with a label request.
type LabelOrderItem struct {
	ProductName string `json:"productName"`
	Name        string `json:"name,omitempty"`
	Quantity    int    `json:"quantity"`
}

// LabelOrderData is the order context sent with a label request.
type LabelOrderData struct {
	Items []LabelOrderItem `json:"items,omitempty"`
}

// ShippingData selects how a label is bought.
type ShippingData struct {
	ToAddress  *shipper.Address    `json:"toAddress"`
	Service    string              `json:"service,omitempty"`
	Packaging  string              `json:"packaging,omitempty"`
	Weight     float64             `json:"weight,omitempty"`
	Dimensions *shipper.Dimensions `json:"dimensions,omitempty"`
}

// LabelOrderRequest asks for a label for a local order.
type LabelOrderRequest struct {
	OrderID      string          `json:"orderId"`
	OrderData    *LabelOrderData `json:"orderData,omitempty"`
	ShippingData *ShippingData   `json:"shippingData"`
}

// StoredLabel is a label kept with its order.
type StoredLabel struct {
	OrderID        string     `json:"orderId"`
	TrackingNumber string     `json:"trackingNumber"`
	LabelImage     string     `json:"labelImage"`
	LabelFormat    string     `json:"labelFormat"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
}

// LabelService buys shipping labels for orders and manages their fulfillment status.
type LabelService struct {
	engine      RateEngine
	store       repository.OrderStore
	publisher   events.Publisher
	metrics     *telemetry.Metrics
	logger      *otelzap.Logger
	tracer      trace.Tracer
	callTimeout time.Duration
	now         func() time.Time
}

// NewLabelService creates a LabelService. A nil tracer uses the global provider.
func NewLabelService(engine RateEngine, store repository.OrderStore, publisher events.Publisher,
	metrics *telemetry.Metrics, logger *otelzap.Logger, tracer trace.Tracer, callTimeout time.Duration) *LabelService {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/storefront/internal/service")
	}
	return &LabelService{
		engine:      engine,
		store:       store,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		tracer:      tracer,
		callTimeout: callTimeout,
		now:         time.Now,
	}
}

// CreateLabel buys a label and records it on the order. The order is left untouched when the carrier
// rejects the request. Weight and dimensions not given are computed from the cart.
func (s *LabelService) CreateLabel(ctx context.Context, req *LabelOrderRequest) (*shipper.Label, error) {
	ctx, span := s.tracer.Start(ctx, "LabelService.CreateLabel")
	defer span.End()

	if req.OrderID == "" || req.ShippingData == nil || req.ShippingData.ToAddress == nil {
		return nil, fault.Validation("Order ID and shipping data are required")
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID))

	order, err := s.store.Get(ctx, req.OrderID)
	if err != nil && !errors.Is(err, fault.ErrNotFound) {
		return nil, err
	}
	if order == nil {
		s.logger.Warn("Creating label for an order that is not tracked locally", zap.String("order_id", req.OrderID))
	}

	sd := req.ShippingData
	items := labelItems(req.OrderData, order)
	packaging := sd.Packaging
	if packaging == "" {
		packaging = shipper.PackagingStandardBox
	}
	weight := sd.Weight
	if weight <= 0 {
		weight = shipper.CalculateWeight(items)
	}
	dims := shipper.CalculateDimensions(items, packaging)
	if sd.Dimensions != nil && sd.Dimensions.Max() > 0 {
		dims = *sd.Dimensions
	}

	s.logger.Info("Creating shipping label",
		zap.String("order_id", req.OrderID),
		zap.String("service", sd.Service),
		zap.String("carrier", s.engine.CarrierName()),
	)

	var label *shipper.Label
	err = timedCall(ctx, s.callTimeout, s.metrics, s.engine.CarrierName(), "create_label", func(ctx context.Context) error {
		var err error
		label, err = s.engine.CreateLabel(ctx, &shipper.LabelRequest{
			To:         *sd.ToAddress,
			Service:    sd.Service,
			Packaging:  packaging,
			Weight:     weight,
			Dimensions: dims,
			Reference:  req.OrderID,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.RecordLabel(s.engine.CarrierName(), "error")
		s.logger.Error("Shipping label failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, err
	}
	s.metrics.RecordLabel(s.engine.CarrierName(), "ok")
	span.SetAttributes(attribute.String("label.tracking_number", label.TrackingNumber))

	if order != nil {
		_, err := s.store.Update(ctx, order.ID, func(o *domain.LocalOrder) error {
			o.AttachLabel(label, s.now())
			if o.ShippingAddress == nil {
				addr := *sd.ToAddress
				o.ShippingAddress = &addr
			}
			o.UpdatedAt = s.now()
			return nil
		})
		if err != nil {
			s.logger.Error("Label bought but not recorded on order",
				zap.String("order_id", order.ID),
				zap.String("tracking_number", label.TrackingNumber),
				zap.Error(err),
			)
		}
	}

	ev := events.New(events.LabelCreated, s.now())
	ev.OrderID = req.OrderID
	ev.TrackingNumber = label.TrackingNumber
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("Order event not delivered", zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}

	s.logger.Info("Shipping label created",
		zap.String("order_id", req.OrderID),
		zap.String("tracking_number", label.TrackingNumber),
	)
	return label, nil
}

// ShippingOrders lists merchandise orders, newest first.
func (s *LabelService) ShippingOrders(ctx context.Context) ([]domain.ShippingOrder, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ShippingOrder, 0, len(orders))
	for _, o := range orders {
		if o.Ships() {
			out = append(out, o.ShippingView())
		}
	}
	return out, nil
}

// LabelByTracking returns the stored label for a tracking number.
func (s *LabelService) LabelByTracking(ctx context.Context, trackingNumber string) (*StoredLabel, error) {
	order, err := s.store.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if order.Shipping.LabelImage == "" {
		return nil, fault.ErrNotFound
	}
	return &StoredLabel{
		OrderID:        order.ID,
		TrackingNumber: order.Shipping.TrackingNumber,
		LabelImage:     order.Shipping.LabelImage,
		LabelFormat:    order.Shipping.LabelFormat,
		CreatedAt:      order.Shipping.LabelCreatedAt,
	}, nil
}

// UpdateLabelStatus moves an order's label to pending, printed or shipped.
func (s *LabelService) UpdateLabelStatus(ctx context.Context, orderID, status string) (domain.LabelStatus, error) {
	next, ok := domain.ParseLabelStatus(status)
	if !ok {
		return "", fault.Validation("Invalid status. Must be: pending, printed, or shipped")
	}

	_, err := s.store.Update(ctx, orderID, func(o *domain.LocalOrder) error {
		now := s.now()
		o.SetLabelStatus(next, now)
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Shipping label status updated", zap.String("order_id", orderID), zap.String("status", status))
	return next, nil
}

func labelItems(data *LabelOrderData, order *domain.LocalOrder) []shipper.Item {
	if data != nil && len(data.Items) > 0 {
		items := make([]shipper.Item, len(data.Items))
		for i, item := range data.Items {
			name := item.ProductName
			if name == "" {
				name = item.Name
			}
			items[i] = shipper.Item{ProductName: name, Quantity: item.Quantity}
		}
		return items
	}
	if order != nil {
		return toParcelItems(order.Items)
	}
	return nil
}
