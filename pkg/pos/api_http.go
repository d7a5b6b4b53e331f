package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/oauth"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP/JSON.
type HTTPAPIClient struct {
	baseURL        string
	restaurantGUID string
	httpClient     *http.Client
	tokens         *oauth.Cache
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	Scope          string
	RestaurantGUID string
	// AuthURLs overrides the login endpoints, in the order they are tried.
	AuthURLs []string
	Timeout  time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig, logger *otelzap.Logger) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	endpoints := cfg.AuthURLs
	if len(endpoints) == 0 {
		endpoints = []string{
			baseURL + "/authentication/v1/authentication/login",
			baseURL + "/authentication/login",
		}
	}

	source := &authSource{
		endpoints:    endpoints,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scope:        cfg.Scope,
		httpClient:   httpClient,
		logger:       logger,
		now:          time.Now,
	}

	return &HTTPAPIClient{
		baseURL:        baseURL,
		restaurantGUID: cfg.RestaurantGUID,
		httpClient:     httpClient,
		tokens:         oauth.NewCache(source, logger),
	}
}

// Authenticate returns a cached token, logging in again when it has expired.
func (c *HTTPAPIClient) Authenticate(ctx context.Context) (string, error) {
	return c.tokens.Token(ctx)
}

// CreateOrder submits an order via the bulk orders endpoint.
func (c *HTTPAPIClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	var result OrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/v2/orders/bulk", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOrder retrieves an order by GUID.
func (c *HTTPAPIClient) GetOrder(ctx context.Context, orderGUID string) (*OrderDetails, error) {
	var result OrderDetails
	path := "/orders/v2/orders/" + url.PathEscape(orderGUID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VoidOrder voids an order that was never paid.
func (c *HTTPAPIClient) VoidOrder(ctx context.Context, orderGUID string, reason string) error {
	body := map[string]string{"voidReason": reason}
	path := "/orders/v2/orders/" + url.PathEscape(orderGUID) + "/void"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// ProcessPayment charges a payment against an order.
func (c *HTTPAPIClient) ProcessPayment(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	var result PaymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments/v2/payments", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FindCustomers searches customers by email.
func (c *HTTPAPIClient) FindCustomers(ctx context.Context, email string) ([]CustomerRecord, error) {
	var result []CustomerRecord
	path := "/customers/v2/customers?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateCustomer creates a customer record.
func (c *HTTPAPIClient) CreateCustomer(ctx context.Context, req *CustomerRequest) (*CustomerRecord, error) {
	var result CustomerRecord
	if err := c.do(ctx, http.MethodPost, "/customers/v2/customers", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateCustomer updates a customer record.
func (c *HTTPAPIClient) UpdateCustomer(ctx context.Context, customerGUID string, req *CustomerRequest) (*CustomerRecord, error) {
	var result CustomerRecord
	path := "/customers/v2/customers/" + url.PathEscape(customerGUID)
	if err := c.do(ctx, http.MethodPut, path, req, &result); err != nil {
		return nil, err
	}
	if result.GUID == "" {
		result.GUID = customerGUID
	}
	return &result, nil
}

// ============================================================================
// HTTP Helpers
// ============================================================================

// do performs an authenticated JSON request. out may be nil when the body is ignored.
func (c *HTTPAPIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Toast-Restaurant-External-ID", c.restaurantGUID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return fault.New(fault.KindAuth, serviceName, fault.CodeRejected,
			"POS rejected bearer token").WithStatusCode(resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		apiErr.StatusCode = resp.StatusCode
		if apiErr.Code == "" {
			apiErr.Code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		return &apiErr
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    strings.TrimSpace(string(body)),
	}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
