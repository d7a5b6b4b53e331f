package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/internal/events"
	"github.com/tournevent/storefront/internal/repository"
	"github.com/tournevent/storefront/internal/server"
	"github.com/tournevent/storefront/internal/service"
	"github.com/tournevent/storefront/internal/telemetry"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/pos"
	"github.com/tournevent/storefront/pkg/shipper"
	"github.com/tournevent/storefront/pkg/shipper/mock"
	"github.com/tournevent/storefront/pkg/shipper/uspslegacy"
	"github.com/tournevent/storefront/pkg/shipper/uspsv3"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type testEnv struct {
	api     *pos.MockAPIClient
	carrier *mock.Client
	store   *repository.MemoryStore
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	carrier := mock.New("usps-v3")
	env := newCarrierEnv(t, carrier)
	env.carrier = carrier
	return env
}

// newCarrierEnv wires the server around carrier, so wire clients can be exercised end to end.
func newCarrierEnv(t *testing.T, carrier shipper.Carrier) *testEnv {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	publisher := events.NewLogPublisher(logger)

	api := pos.NewMockAPIClient()
	posClient := pos.NewWithAPIClient(pos.Config{RestaurantGUID: "rest-1"}, api, logger, nil)

	origin := shipper.Address{Name: "Coffee & Donuts", Street1: "10 Shop Way", City: "Las Vegas", State: "NV", ZIP: "89101"}
	engine := shipper.NewEngine(carrier, origin, logger)

	store := repository.NewMemoryStore()
	orders := service.NewOrderService(service.OrderConfig{VoidOnPaymentFailure: true}, posClient, store, publisher, metrics, logger, nil)
	shipping := service.NewShippingService(engine, metrics, logger, 0)
	labels := service.NewLabelService(engine, store, publisher, metrics, logger, nil, 0)

	srv := server.New(server.Config{Port: 8080, ServiceName: "storefront", Gatherer: reg}, orders, shipping, labels, logger)
	return &testEnv{api: api, store: store, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func orderBody() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"productId": "p1", "name": "Glazed Donut", "price": 3.49, "quantity": 2},
		},
		"customer":      map[string]any{"email": "a@b.com", "firstName": "Ada"},
		"paymentMethod": "CREDIT_CARD",
		"paymentToken":  "tok_visa",
	}
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "storefront", body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/orders", orderBody())

	rec := env.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_orders_total")
}

func TestServer_PlaceOrder(t *testing.T) {
	env := newTestEnv(t)

	var charged float64
	env.api.OnProcessPayment = func(ctx context.Context, req *pos.PaymentRequest) (*pos.PaymentResponse, error) {
		charged = req.Amount
		return &pos.PaymentResponse{TransactionID: "txn-1", Status: "success", Amount: req.Amount}, nil
	}

	rec := env.do(t, http.MethodPost, "/orders", orderBody())

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.NotEmpty(t, body["orderId"])
	assert.NotEmpty(t, body["backendOrderId"])
	assert.Equal(t, "txn-1", body["paymentTransactionId"])
	assert.Equal(t, "placed", body["status"])
	assert.NotEmpty(t, body["estimatedReadyTime"])
	assert.InDelta(t, 6.98, charged, 0.0001)

	stored, err := env.store.Get(context.Background(), body["orderId"].(string))
	require.NoError(t, err)
	assert.True(t, stored.Total().Equal(decimal.RequireFromString("6.98")))
}

func TestServer_PlaceOrder_UnderAPIPrefix(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders", orderBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestServer_PlaceOrder_Invalid(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"no items", map[string]any{"customer": map[string]any{"email": "a@b.com"}, "paymentMethod": "CREDIT_CARD"},
			"Invalid order: items array is required and cannot be empty"},
		{"no email", map[string]any{"items": []map[string]any{{"productId": "p1", "price": 1, "quantity": 1}}, "customer": map[string]any{}},
			"Invalid order: customer email is required"},
		{"malformed json", "{", "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode(t, rec)["error"])
		})
	}
}

func TestServer_PlaceOrder_PaymentFailed(t *testing.T) {
	env := newTestEnv(t)

	voided := ""
	env.api.OnProcessPayment = func(ctx context.Context, req *pos.PaymentRequest) (*pos.PaymentResponse, error) {
		return &pos.PaymentResponse{Status: "declined"}, nil
	}
	env.api.OnVoidOrder = func(ctx context.Context, orderGUID, reason string) error {
		voided = orderGUID
		return nil
	}

	rec := env.do(t, http.MethodPost, "/orders", orderBody())

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Payment processing failed", body["error"])
	assert.Equal(t, "PAYMENT_FAILED", body["code"])
	assert.NotEmpty(t, voided)

	orders, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestServer_PlaceOrder_POSFailure(t *testing.T) {
	env := newTestEnv(t)
	env.api.OnCreateOrder = func(ctx context.Context, req *pos.OrderRequest) (*pos.OrderResponse, error) {
		return nil, &pos.APIError{StatusCode: 500, Code: "INTERNAL", Message: "POS unavailable"}
	}

	rec := env.do(t, http.MethodPost, "/orders", orderBody())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to create order", decode(t, rec)["error"])
}

func TestServer_GetOrder(t *testing.T) {
	env := newTestEnv(t)
	env.api.OnGetOrder = func(ctx context.Context, orderGUID string) (*pos.OrderDetails, error) {
		return &pos.OrderDetails{GUID: orderGUID, Status: "ready_for_pickup"}, nil
	}

	placed := decode(t, env.do(t, http.MethodPost, "/orders", orderBody()))

	rec := env.do(t, http.MethodGet, "/orders/"+placed["orderId"].(string), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, placed["orderId"], body["orderId"])
	assert.Equal(t, string(domain.StatusReady), body["status"])
	assert.Equal(t, true, body["readyForPickup"])
}

func TestServer_GetOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/orders/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", decode(t, rec)["error"])
}

func TestServer_POSWebhook(t *testing.T) {
	env := newTestEnv(t)
	placed := decode(t, env.do(t, http.MethodPost, "/orders", orderBody()))

	rec := env.do(t, http.MethodPost, "/webhooks/pos", map[string]any{
		"orderGuid": placed["backendOrderId"],
		"status":    "completed",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["received"])

	stored, err := env.store.Get(context.Background(), placed["orderId"].(string))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestServer_POSWebhook_AlwaysAcknowledges(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []map[string]any{
		{"orderGuid": "unknown", "status": "completed"},
		{"status": "completed"},
		{"orderGuid": "unknown", "status": "teleported"},
	} {
		rec := env.do(t, http.MethodPost, "/webhooks/pos", body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decode(t, rec)["received"])
	}
}

func rateBody(zip string) map[string]any {
	return map[string]any{
		"toAddress": map[string]any{"street1": "1 Main St", "city": "Las Vegas", "state": "NV", "zip": zip},
		"items":     []map[string]any{{"productName": "Glazed Donut", "quantity": 1}},
		"packaging": "standard_box",
	}
}

func TestServer_ShippingRates(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/shipping/rates", rateBody("00000"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result shipper.QuoteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Rates, 3)
	for i := 1; i < len(result.Rates); i++ {
		assert.True(t, result.Rates[i-1].Rate.LessThanOrEqual(result.Rates[i].Rate))
	}
	assert.InDelta(t, 0.35, result.Weight, 0.001)
	assert.Equal(t, shipper.Dimensions{Length: 10, Width: 8, Height: 4}, result.Dimensions)
}

func TestServer_ShippingRates_ZIPValidation(t *testing.T) {
	tests := []struct {
		zip  string
		want int
	}{
		{"1234", http.StatusBadRequest},
		{"abcde", http.StatusBadRequest},
		{"89134", http.StatusOK},
		{"89134-1234", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.zip, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/shipping/rates", rateBody(tt.zip))
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusBadRequest {
				body := decode(t, rec)
				assert.Equal(t, "Invalid ZIP code format", body["error"])
				assert.Equal(t, "Please provide a valid 5-digit US ZIP code", body["details"])
			}
		})
	}
}

func TestServer_ShippingRates_MissingInput(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/shipping/rates", map[string]any{"items": []map[string]any{{"productName": "Mug", "quantity": 1}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please provide a valid shipping address with a ZIP code", decode(t, rec)["details"])

	rec = env.do(t, http.MethodPost, "/shipping/rates", map[string]any{"toAddress": map[string]any{"zip": "89134"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please add items to your cart before calculating shipping", decode(t, rec)["details"])
}

func TestServer_ShippingRates_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "insufficient scope",
			err:        fault.New(fault.KindAuth, "usps-v3", fault.CodeInsufficientScope, "OAuth token lacks the required scope"),
			wantStatus: http.StatusUnauthorized,
			wantError:  "USPS API: Insufficient OAuth Scope",
		},
		{
			name:       "missing credentials",
			err:        fault.New(fault.KindAuth, "usps-v3", fault.CodeMissingCredentials, "client id and secret are required"),
			wantStatus: http.StatusUnauthorized,
			wantError:  "USPS API Authentication Failed",
		},
		{
			name:       "rejected credentials",
			err:        fault.New(fault.KindAuth, "usps-v3", fault.CodeRejected, "invalid_client"),
			wantStatus: http.StatusUnauthorized,
			wantError:  "USPS API Authentication Failed",
		},
		{
			name:       "timeout",
			err:        fault.Transport("usps-v3", context.DeadlineExceeded),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Shipping service timeout",
		},
		{
			name:       "network",
			err:        fault.Transport("usps-v3", errors.New("dial tcp: connection refused")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Cannot connect to shipping service",
		},
		{
			name:       "access denied",
			err:        fault.New(fault.KindAuth, "usps-v3", fault.CodeAccessDenied, "access denied, check API permissions"),
			wantStatus: http.StatusForbidden,
			wantError:  "USPS API Access Denied",
		},
		{
			name:       "media type",
			err:        fault.New(fault.KindAuth, "usps-v3", fault.CodeMediaTypeMismatch, "endpoint rejected the request media type"),
			wantStatus: http.StatusUnauthorized,
			wantError:  "USPS API Authentication Failed",
		},
		{
			name:       "token endpoint outage",
			err:        fault.Unavailable("usps-v3", http.StatusServiceUnavailable, ""),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Shipping service unavailable",
		},
		{
			name:       "generic",
			err:        errors.New("unexpected response"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to calculate shipping rates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.carrier.OnGetRates = func(ctx context.Context, req *shipper.RateRequest) ([]shipper.Quote, error) {
				return nil, tt.err
			}

			rec := env.do(t, http.MethodPost, "/shipping/rates", rateBody("89134"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.wantError, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestServer_ShippingRates_NeverEchoesCredentials(t *testing.T) {
	logger := otelzap.New(zap.NewNop())

	t.Run("legacy user id on network failure", func(t *testing.T) {
		carrier := uspslegacy.New(uspslegacy.Config{
			Username:  "SECRETUSER123",
			Endpoints: []string{"http://127.0.0.1:1/ShippingAPI.dll"},
			Timeout:   2 * time.Second,
		}, logger, nil)
		env := newCarrierEnv(t, carrier)

		rec := env.do(t, http.MethodPost, "/shipping/rates", rateBody("89134"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Cannot connect to shipping service", decode(t, rec)["error"])
		assert.NotContains(t, rec.Body.String(), "SECRETUSER123")
		assert.NotContains(t, rec.Body.String(), "USERID")
	})

	t.Run("client secret on token endpoint outage", func(t *testing.T) {
		var pricesCalls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/oauth2/v3/token" {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"temporarily_unavailable"}`))
				return
			}
			pricesCalls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		env := newCarrierEnv(t, restCarrier(srv.URL, logger))

		rec := env.do(t, http.MethodPost, "/shipping/rates", rateBody("89134"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Shipping service unavailable", decode(t, rec)["error"])
		assert.NotContains(t, rec.Body.String(), "SECRETCLIENTSECRET")
		assert.NotContains(t, rec.Body.String(), "client-id-1")
		assert.Zero(t, pricesCalls.Load())
	})

	t.Run("bearer token on rejected rate request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/oauth2/v3/token":
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"access_token":"SECRETBEARER","token_type":"Bearer","expires_in":3600}`))
			case strings.HasPrefix(r.URL.Path, "/prices/v3"):
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"code":"401","message":"Invalid access token"}}`))
			default:
				w.WriteHeader(http.StatusInternalServerError)
			}
		}))
		defer srv.Close()

		env := newCarrierEnv(t, restCarrier(srv.URL, logger))

		rec := env.do(t, http.MethodPost, "/shipping/rates", rateBody("89134"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotContains(t, rec.Body.String(), "SECRETBEARER")
		assert.NotContains(t, rec.Body.String(), "SECRETCLIENTSECRET")
	})
}

func restCarrier(baseURL string, logger *otelzap.Logger) *uspsv3.Client {
	return uspsv3.New(uspsv3.Config{
		ClientID:     "client-id-1",
		ClientSecret: "SECRETCLIENTSECRET",
		TokenURL:     baseURL + "/oauth2/v3/token",
		RevokeURL:    baseURL + "/oauth2/v3/revoke",
		PricesURL:    baseURL + "/prices/v3",
		LabelsURL:    baseURL + "/labels/v3",
		TrackingURL:  baseURL + "/tracking/v3",
		AddressesURL: baseURL + "/addresses/v3",
		Timeout:      2 * time.Second,
	}, logger, nil)
}

func seedShippingOrder(t *testing.T, env *testEnv, id string) {
	t.Helper()

	req := &domain.OrderRequest{
		Items:           []domain.LineItem{{ProductID: "m1", Name: "Logo Mug", Price: decimal.RequireFromString("14.00"), Quantity: 1}},
		Customer:        &domain.Customer{Email: "a@b.com", FirstName: "Ada", LastName: "Lovelace"},
		PaymentMethod:   "CREDIT_CARD",
		ShippingAddress: &shipper.Address{Street1: "1 Main St", City: "Henderson", State: "NV", ZIP: "89052"},
	}
	o := domain.NewLocalOrder(id, req, "guid-"+id, "txn-"+id, time.Now())
	require.NoError(t, env.store.Create(context.Background(), o))
}

func TestServer_LabelFlow(t *testing.T) {
	env := newTestEnv(t)
	seedShippingOrder(t, env, "o1")

	rec := env.do(t, http.MethodPost, "/shipping/label", map[string]any{
		"orderId": "o1",
		"shippingData": map[string]any{
			"toAddress": map[string]any{"name": "Ada Lovelace", "street1": "1 Main St", "city": "Henderson", "state": "NV", "zip": "89052"},
			"service":   "PRIORITY",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	label := decode(t, rec)
	tracking := label["trackingNumber"].(string)
	assert.NotEmpty(t, tracking)
	assert.Equal(t, "PDF", label["labelFormat"])

	rec = env.do(t, http.MethodGet, "/admin/shipping-orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []domain.ShippingOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].TrackingNumber)
	assert.Equal(t, tracking, *orders[0].TrackingNumber)
	assert.Equal(t, "Ada Lovelace", orders[0].CustomerName)

	rec = env.do(t, http.MethodGet, "/admin/shipping-label/"+tracking, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, label["labelImage"], decode(t, rec)["labelImage"])

	rec = env.do(t, http.MethodPut, "/admin/shipping-orders/o1/status", map[string]string{"status": "printed"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "o1", body["orderId"])
	assert.Equal(t, "printed", body["status"])
}

func TestServer_CreateLabel_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/shipping/label", map[string]any{"orderId": "o1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order ID and shipping data are required", decode(t, rec)["error"])

	env.carrier.OnCreateLabel = func(ctx context.Context, req *shipper.LabelRequest) (*shipper.Label, error) {
		return nil, errors.New("label API down")
	}
	rec = env.do(t, http.MethodPost, "/shipping/label", map[string]any{
		"orderId":      "o1",
		"shippingData": map[string]any{"toAddress": map[string]any{"zip": "89052"}},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Failed to create shipping label", body["error"])
	assert.Equal(t, "label API down", body["message"])
}

func TestServer_AdminErrors(t *testing.T) {
	env := newTestEnv(t)
	seedShippingOrder(t, env, "o1")

	rec := env.do(t, http.MethodGet, "/admin/shipping-label/9400100000000000000099", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Shipping label not found", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPut, "/admin/shipping-orders/o1/status", map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid status. Must be: pending, printed, or shipped", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPut, "/admin/shipping-orders/missing/status", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", decode(t, rec)["error"])
}

func TestServer_Track(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/shipping/track/9400100000000000000001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "In Transit", decode(t, rec)["status"])

	env.carrier.OnTrack = func(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
		return nil, errors.New("tracking API down")
	}
	rec = env.do(t, http.MethodGet, "/shipping/track/9400100000000000000001", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to track package", decode(t, rec)["error"])
}

func TestServer_PostageAdjustment_Unsupported(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/shipping/postage-adjustment/9400100000000000000001", nil)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.True(t, strings.Contains(decode(t, rec)["message"].(string), "usps-v3"))
}
