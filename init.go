package main

import (
	"context"

	"github.com/tournevent/storefront/internal/config"
	"github.com/tournevent/storefront/internal/events"
	"github.com/tournevent/storefront/internal/repository"
	"github.com/tournevent/storefront/internal/telemetry"
	"github.com/tournevent/storefront/pkg/pos"
	"github.com/tournevent/storefront/pkg/shipper"
	"github.com/tournevent/storefront/pkg/shipper/uspslegacy"
	"github.com/tournevent/storefront/pkg/shipper/uspsv3"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.Version)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return otel.Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}

	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

func initPOS(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) *pos.Client {
	return pos.New(pos.Config{
		BaseURL:        cfg.POSBaseURL,
		ClientID:       cfg.POSClientID,
		ClientSecret:   cfg.POSClientSecret,
		Scope:          cfg.POSScope,
		RestaurantGUID: cfg.POSRestaurantGUID,
		AuthURLs:       cfg.POSAuthURLs,
		Timeout:        cfg.POSTimeout,
		UseMock:        cfg.POSUseMock,
	}, logger, tracer)
}

// initShippingEngine registers both carrier variants and wraps the configured one in an Engine.
// The legacy client always serves postage adjustments. The returned func revokes REST tokens.
func initShippingEngine(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) (*shipper.Engine, func(context.Context), error) {
	legacy := uspslegacy.New(uspslegacy.Config{
		Username:  cfg.USPSUsername,
		Endpoints: cfg.USPSLegacyEndpoints,
		Timeout:   cfg.USPSTimeout,
		UseMock:   cfg.USPSUseMock,
	}, logger, tracer)

	rest := uspsv3.New(uspsv3.Config{
		ClientID:     cfg.USPSClientID,
		ClientSecret: cfg.USPSClientSecret,
		Scope:        cfg.USPSScope,
		TokenURL:     cfg.USPSTokenURL,
		RevokeURL:    cfg.USPSRevokeURL,
		PricesURL:    cfg.USPSPricesURL,
		LabelsURL:    cfg.USPSLabelsURL,
		TrackingURL:  cfg.USPSTrackingURL,
		AddressesURL: cfg.USPSAddressesURL,
		PaymentToken: cfg.USPSPaymentToken,
		Timeout:      cfg.USPSTimeout,
		UseMock:      cfg.USPSUseMock,
	}, logger, tracer)

	registry := shipper.NewRegistry()
	registry.Register(legacy)
	registry.Register(rest)

	carrier, err := registry.Get(cfg.ShippingCarrier)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Shipping carrier selected",
		zap.String("carrier", carrier.Name()),
		zap.Strings("registered", registry.Names()),
	)

	opts := []shipper.EngineOption{shipper.WithPostageAdjuster(legacy)}
	if tracer != nil {
		opts = append(opts, shipper.WithTracer(tracer))
	}
	engine := shipper.NewEngine(carrier, origin(cfg), logger, opts...)

	shutdown := func(ctx context.Context) {
		if err := rest.Revoke(ctx); err != nil {
			logger.Warn("Failed to revoke USPS token", zap.Error(err))
		}
	}
	return engine, shutdown, nil
}

func origin(cfg *config.Config) shipper.Address {
	return shipper.Address{
		Name:    cfg.OriginName,
		Company: cfg.OriginCompany,
		Street1: cfg.OriginStreet,
		City:    cfg.OriginCity,
		State:   cfg.OriginState,
		ZIP:     cfg.OriginZIP,
		Phone:   cfg.OriginPhone,
	}
}

func initStore(ctx context.Context, cfg *config.Config) (repository.OrderStore, error) {
	if cfg.StoreBackend != config.StoreRedis {
		return repository.NewMemoryStore(), nil
	}

	store, err := repository.NewRedisStore(ctx, repository.RedisConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.RedisKeyPrefix,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func initPublisher(cfg *config.Config, logger *otelzap.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLogPublisher(logger)
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}
