package service

import (
	"context"
	"time"

	"github.com/tournevent/storefront/internal/telemetry"
	"github.com/tournevent/storefront/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// RateEngine is the shipping engine as seen by the services.
type RateEngine interface {
	CarrierName() string
	Quote(ctx context.Context, req *shipper.QuoteRequest) (*shipper.QuoteResult, error)
	CreateLabel(ctx context.Context, req *shipper.LabelRequest) (*shipper.Label, error)
	Track(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error)
	PostageAdjustment(ctx context.Context, trackingNumber string) (*shipper.PostageAdjustment, error)
}

var _ RateEngine = (*shipper.Engine)(nil)

// ShippingService bounds and measures shipping lookups made for storefront requests.
type ShippingService struct {
	engine      RateEngine
	metrics     *telemetry.Metrics
	logger      *otelzap.Logger
	callTimeout time.Duration
}

// NewShippingService creates a ShippingService. A non-positive timeout uses the default.
func NewShippingService(engine RateEngine, metrics *telemetry.Metrics, logger *otelzap.Logger, callTimeout time.Duration) *ShippingService {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &ShippingService{
		engine:      engine,
		metrics:     metrics,
		logger:      logger,
		callTimeout: callTimeout,
	}
}

// CarrierName returns the configured carrier.
func (s *ShippingService) CarrierName() string {
	return s.engine.CarrierName()
}

// Quote returns sorted rates for a cart shipped to an address.
func (s *ShippingService) Quote(ctx context.Context, req *shipper.QuoteRequest) (*shipper.QuoteResult, error) {
	var result *shipper.QuoteResult
	err := s.call(ctx, "rates", func(ctx context.Context) error {
		var err error
		result, err = s.engine.Quote(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Shipping rates calculated",
		zap.String("carrier", s.engine.CarrierName()),
		zap.Int("rate_count", len(result.Rates)),
		zap.Float64("weight", result.Weight),
	)
	return result, nil
}

// Track returns the latest tracking status.
func (s *ShippingService) Track(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
	var info *shipper.TrackingInfo
	err := s.call(ctx, "track", func(ctx context.Context) error {
		var err error
		info, err = s.engine.Track(ctx, trackingNumber)
		return err
	})
	return info, err
}

// PostageAdjustment returns the postage reconciliation for a parcel.
func (s *ShippingService) PostageAdjustment(ctx context.Context, trackingNumber string) (*shipper.PostageAdjustment, error) {
	var adj *shipper.PostageAdjustment
	err := s.call(ctx, "postage_adjustment", func(ctx context.Context) error {
		var err error
		adj, err = s.engine.PostageAdjustment(ctx, trackingNumber)
		return err
	})
	return adj, err
}

func (s *ShippingService) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	return timedCall(ctx, s.callTimeout, s.metrics, s.engine.CarrierName(), operation, fn)
}

// timedCall runs fn under timeout and records it as a request to service.
func timedCall(ctx context.Context, timeout time.Duration, metrics *telemetry.Metrics, service, operation string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordRemote(service, operation, statusLabel(err), time.Since(start).Seconds())
	return err
}
