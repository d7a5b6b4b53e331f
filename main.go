package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/tournevent/storefront/internal/server"
	"github.com/tournevent/storefront/internal/service"
	"github.com/tournevent/storefront/internal/telemetry"
	"go.uber.org/zap"
)

var version = "0.0.1"

const cleanupTimeout = 10 * time.Second

func main() {
	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "storefront",
	Short:   "Storefront backend - orders, payments and shipping for the coffee and donut shop",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Collaborators
	posClient := initPOS(cfg, logger, tracer)

	engine, shutdownCarrier, err := initShippingEngine(cfg, logger, tracer)
	if err != nil {
		return err
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		shutdownCarrier(cleanupCtx)
	}()

	store, err := initStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher := initPublisher(cfg, logger)
	defer publisher.Close()

	// Services
	orders := service.NewOrderService(service.OrderConfig{
		VoidOnPaymentFailure: cfg.POSVoidOnPaymentFailure,
		CallTimeout:          cfg.CallTimeout,
	}, posClient, store, publisher, metrics, logger, tracer)
	shipping := service.NewShippingService(engine, metrics, logger, cfg.CallTimeout)
	labels := service.NewLabelService(engine, store, publisher, metrics, logger, tracer, cfg.CallTimeout)

	logger.Info("Starting storefront backend",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.String("carrier", engine.CarrierName()),
		zap.String("store", cfg.StoreBackend),
	)

	// Start HTTP server
	srv := server.New(server.Config{Port: cfg.Port, ServiceName: cfg.ServiceName}, orders, shipping, labels, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
