package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/storefront/internal/service"
	"github.com/tournevent/storefront/internal/telemetry"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/shipper"
	"github.com/tournevent/storefront/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newShippingService(t *testing.T, carrier *mock.Client, timeout time.Duration, opts ...shipper.EngineOption) (*service.ShippingService, *prometheus.Registry) {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	reg := prometheus.NewRegistry()
	engine := shipper.NewEngine(carrier, origin, logger, opts...)
	return service.NewShippingService(engine, telemetry.NewMetrics(reg), logger, timeout), reg
}

func remoteCalls(t *testing.T, reg *prometheus.Registry, service, operation, status string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "storefront_remote_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["service"] == service && labels["operation"] == operation && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func donutQuote(zip string) *shipper.QuoteRequest {
	return &shipper.QuoteRequest{
		To:    shipper.Address{Street1: "1 Main St", City: "Henderson", State: "NV", ZIP: zip},
		Items: []shipper.Item{{ProductName: "Glazed Donut", Quantity: 6}},
	}
}

func TestShippingService_Quote(t *testing.T) {
	carrier := mock.New("usps-v3")
	svc, reg := newShippingService(t, carrier, 0)

	result, err := svc.Quote(context.Background(), donutQuote("89052"))
	require.NoError(t, err)
	require.Len(t, result.Rates, 3)
	assert.Equal(t, "6.2", result.Rates[0].Rate.String())
	assert.Equal(t, "10.45", result.Rates[1].Rate.String())
	assert.Equal(t, "28.75", result.Rates[2].Rate.String())
	// six donuts at 0.15 lb plus packaging
	assert.InDelta(t, 1.1, result.Weight, 0.001)
	assert.Equal(t, "usps-v3", svc.CarrierName())

	assert.Equal(t, 1.0, remoteCalls(t, reg, "usps-v3", "rates", "ok"))
}

func TestShippingService_Quote_RejectsBadZIP(t *testing.T) {
	carrier := mock.New("usps-legacy")
	svc, reg := newShippingService(t, carrier, 0)

	_, err := svc.Quote(context.Background(), donutQuote("1234"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ValidationFailure))
	assert.Zero(t, carrier.RateCalls.Load())
	assert.Equal(t, 1.0, remoteCalls(t, reg, "usps-legacy", "rates", string(fault.KindValidation)))
}

func TestShippingService_Quote_Timeout(t *testing.T) {
	carrier := mock.New("usps-v3")
	carrier.OnGetRates = func(ctx context.Context, req *shipper.RateRequest) ([]shipper.Quote, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	svc, _ := newShippingService(t, carrier, 20*time.Millisecond)

	start := time.Now()
	_, err := svc.Quote(context.Background(), donutQuote("89052"))
	require.Error(t, err)
	assert.True(t, fault.IsTimeout(err))
	assert.True(t, errors.Is(err, fault.ShippingRate))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestShippingService_Track(t *testing.T) {
	svc, reg := newShippingService(t, mock.New("usps-v3"), 0)

	info, err := svc.Track(context.Background(), "9400100000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "In Transit", info.Status)
	assert.Equal(t, 1.0, remoteCalls(t, reg, "usps-v3", "track", "ok"))
}

func TestShippingService_PostageAdjustment(t *testing.T) {
	t.Run("without adjuster", func(t *testing.T) {
		svc, _ := newShippingService(t, mock.New("usps-v3"), 0)

		_, err := svc.PostageAdjustment(context.Background(), "9400100000000000000001")
		assert.True(t, errors.Is(err, fault.ErrUnsupported))
	})

	t.Run("with adjuster", func(t *testing.T) {
		adjuster := mock.New("usps-legacy")
		adjuster.OnPostageAdjustment = func(ctx context.Context, trackingNumber string) (*shipper.PostageAdjustment, error) {
			return &shipper.PostageAdjustment{TrackingNumber: trackingNumber, PostageAdjustment: "1.25"}, nil
		}
		svc, _ := newShippingService(t, mock.New("usps-v3"), 0, shipper.WithPostageAdjuster(adjuster))

		adj, err := svc.PostageAdjustment(context.Background(), "9400100000000000000001")
		require.NoError(t, err)
		assert.Equal(t, "1.25", adj.PostageAdjustment)
	})
}
