package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/internal/events"
	"github.com/tournevent/storefront/internal/repository"
	"github.com/tournevent/storefront/internal/service"
	"github.com/tournevent/storefront/internal/telemetry"
	"github.com/tournevent/storefront/pkg/pos"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type orderFixture struct {
	api       *pos.MockAPIClient
	store     *repository.MemoryStore
	publisher *recordingPublisher
	metrics   *telemetry.Metrics
	service   *service.OrderService
}

func newOrderFixture(t *testing.T, cfg service.OrderConfig) *orderFixture {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	api := pos.NewMockAPIClient()
	client := pos.NewWithAPIClient(pos.Config{RestaurantGUID: "rest-1"}, api, logger, nil)

	f := &orderFixture{
		api:       api,
		store:     repository.NewMemoryStore(),
		publisher: &recordingPublisher{},
		metrics:   telemetry.NewMetrics(prometheus.NewRegistry()),
	}
	f.service = service.NewOrderService(cfg, client, f.store, f.publisher, f.metrics, logger, nil)
	return f
}

func (f *orderFixture) orderCount(t *testing.T) int {
	t.Helper()
	orders, err := f.store.List(context.Background())
	if err != nil {
		t.Fatalf("listing orders: %v", err)
	}
	return len(orders)
}

func coffeeOrder() *domain.OrderRequest {
	return &domain.OrderRequest{
		Items: []domain.LineItem{
			{ProductID: "p1", Name: "Glazed Donut", Price: decimal.RequireFromString("3.49"), Quantity: 2},
		},
		Customer:      &domain.Customer{Email: "a@b.com", FirstName: "Ada", LastName: "Lovelace"},
		PaymentMethod: "CREDIT_CARD",
		PaymentToken:  "tok_visa",
	}
}
