// Package server exposes the storefront services over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/internal/service"
	"github.com/tournevent/storefront/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 30 * time.Second
	maxBodyBytes    = 1 << 20
)

// Orders places orders and reports their progress.
type Orders interface {
	PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*service.PlaceOrderResult, error)
	GetOrderStatus(ctx context.Context, orderID string) (*service.OrderStatusResult, error)
	HandlePOSWebhook(ctx context.Context, posOrderID, status string) error
}

// Shipping prices and tracks parcels.
type Shipping interface {
	CarrierName() string
	Quote(ctx context.Context, req *shipper.QuoteRequest) (*shipper.QuoteResult, error)
	Track(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error)
	PostageAdjustment(ctx context.Context, trackingNumber string) (*shipper.PostageAdjustment, error)
}

// Labels buys labels and serves the fulfillment admin views.
type Labels interface {
	CreateLabel(ctx context.Context, req *service.LabelOrderRequest) (*shipper.Label, error)
	ShippingOrders(ctx context.Context) ([]domain.ShippingOrder, error)
	LabelByTracking(ctx context.Context, trackingNumber string) (*service.StoredLabel, error)
	UpdateLabelStatus(ctx context.Context, orderID, status string) (domain.LabelStatus, error)
}

var (
	_ Orders   = (*service.OrderService)(nil)
	_ Shipping = (*service.ShippingService)(nil)
	_ Labels   = (*service.LabelService)(nil)
)

// Server is the HTTP server for the storefront backend.
type Server struct {
	port        int
	serviceName string
	orders      Orders
	shipping    Shipping
	labels      Labels
	gatherer    prometheus.Gatherer
	logger      *otelzap.Logger
	now         func() time.Time
}

// Config holds server configuration.
type Config struct {
	Port        int
	ServiceName string
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// New creates a new server instance.
func New(cfg Config, orders Orders, shipping Shipping, labels Labels, logger *otelzap.Logger) *Server {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		port:        cfg.Port,
		serviceName: cfg.ServiceName,
		orders:      orders,
		shipping:    shipping,
		labels:      labels,
		gatherer:    gatherer,
		logger:      logger,
		now:         time.Now,
	}
}

// Handler returns the routed HTTP handler. Every API route is also served under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.routes(r)
	r.Route("/api", s.routes)
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Post("/orders", s.handlePlaceOrder)
	r.Get("/orders/{orderId}", s.handleGetOrder)

	r.Route("/shipping", func(r chi.Router) {
		r.Post("/rates", s.handleRates)
		r.Post("/label", s.handleCreateLabel)
		r.Get("/track/{trackingNumber}", s.handleTrack)
		r.Get("/postage-adjustment/{trackingNumber}", s.handlePostageAdjustment)
	})

	r.Post("/webhooks/pos", s.handlePOSWebhook)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/shipping-orders", s.handleShippingOrders)
		r.Get("/shipping-label/{trackingNumber}", s.handleShippingLabel)
		r.Put("/shipping-orders/{orderId}/status", s.handleLabelStatus)
	})
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC(),
		"service":   s.serviceName,
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
