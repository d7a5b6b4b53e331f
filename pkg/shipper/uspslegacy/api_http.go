package uspslegacy

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tournevent/storefront/pkg/fallback"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultEndpoints are probed in order when none are configured.
var DefaultEndpoints = []string{
	"https://secure.shippingapis.com/ShippingAPI.dll",
	"https://production.shippingapis.com/ShippingAPI.dll",
}

// HTTPAPIClient is the production implementation of APIClient using HTTP GET with XML payloads.
type HTTPAPIClient struct {
	endpoints  []string
	preferred  atomic.Int64
	userID     string
	httpClient *http.Client
	logger     *otelzap.Logger
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	UserID    string
	Endpoints []string
	Timeout   time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig, logger *otelzap.Logger) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	endpoints := cfg.Endpoints
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}

	return &HTTPAPIClient{
		endpoints: endpoints,
		userID:    cfg.UserID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ============================================================================
// API Implementation
// ============================================================================

// RateV4 prices a parcel for every mail class.
func (c *HTTPAPIClient) RateV4(ctx context.Context, req *RateV4Request) (*RateV4Response, error) {
	var result RateV4Response
	if err := c.call(ctx, "RateV4", req, &result); err != nil {
		return nil, err
	}
	for _, pkg := range result.Package {
		if pkg.Error != nil {
			return nil, pkg.Error
		}
	}
	return &result, nil
}

// Verify standardizes an address.
func (c *HTTPAPIClient) Verify(ctx context.Context, req *AddressValidateRequest) (*AddressValidateResponse, error) {
	var result AddressValidateResponse
	if err := c.call(ctx, "Verify", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EVS purchases an electronic verification label.
func (c *HTTPAPIClient) EVS(ctx context.Context, req *EVSRequest) (*EVSResponse, error) {
	var result EVSResponse
	if err := c.call(ctx, "eVS", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TrackV2 returns the tracking summary for a parcel.
func (c *HTTPAPIClient) TrackV2(ctx context.Context, req *TrackFieldRequest) (*TrackResponse, error) {
	var result TrackResponse
	if err := c.call(ctx, "TrackV2", req, &result); err != nil {
		return nil, err
	}
	if result.TrackInfo.Error != nil {
		return nil, result.TrackInfo.Error
	}
	return &result, nil
}

// PostageAdjustment returns the postage reconciliation for a parcel.
func (c *HTTPAPIClient) PostageAdjustment(ctx context.Context, req *PostageAdjustmentRequest) (*PostageAdjustmentResponse, error) {
	var result PostageAdjustmentResponse
	if err := c.call(ctx, "PostageAdjustment", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============================================================================
// HTTP Helpers
// ============================================================================

// call sends one request document, probing the endpoint list. An endpoint that answers 404
// or cannot be reached is skipped; any other failure is returned as is. The endpoint that
// last answered is tried first on the next call.
func (c *HTTPAPIClient) call(ctx context.Context, api string, doc userIDSetter, out interface{}) error {
	if c.userID == "" {
		return fault.New(fault.KindAuth, carrierName, fault.CodeMissingCredentials,
			"USPS user id not configured")
	}
	doc.setUserID(c.userID)

	payload, err := xml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	start := int(c.preferred.Load())
	attempts := make([]fallback.Attempt[[]byte], 0, len(c.endpoints))
	for i := range c.endpoints {
		idx := (start + i) % len(c.endpoints)
		endpoint := c.endpoints[idx]
		attempts = append(attempts, fallback.Attempt[[]byte]{
			Name: endpoint,
			Run: func(ctx context.Context) ([]byte, error) {
				body, err := c.get(ctx, endpoint, api, payload)
				if err == nil {
					c.preferred.Store(int64(idx))
				}
				return body, err
			},
		})
	}

	chain := fallback.Chain[[]byte]{
		Attempts: attempts,
		Continue: continueProbe,
		OnSkip: func(name string, err error) {
			c.logger.Warn("USPS endpoint unavailable, trying next",
				zap.String("api", api),
				zap.String("endpoint", name),
				zap.Error(err),
			)
		},
	}

	body, err := chain.Do(ctx)
	if err != nil {
		return err
	}

	if apiErr := parseErrorDocument(body); apiErr != nil {
		apiErr.StatusCode = http.StatusOK
		return apiErr
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", api, err)
	}
	return nil
}

func (c *HTTPAPIClient) get(ctx context.Context, endpoint, api string, payload []byte) ([]byte, error) {
	query := url.Values{}
	query.Set("API", api)
	query.Set("XML", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.Transport(carrierName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Transport(carrierName, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fault.New(fault.KindAuth, carrierName, fault.CodeRejected,
			"USPS rejected the user id").WithStatusCode(resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, parseError(resp.StatusCode, body)
	}
	return body, nil
}

// parseErrorDocument returns the error when body is a top-level <Error> document.
func parseErrorDocument(body []byte) *APIError {
	trimmed := bytes.TrimSpace(body)
	if i := bytes.Index(trimmed, []byte("?>")); bytes.HasPrefix(trimmed, []byte("<?xml")) && i >= 0 {
		trimmed = bytes.TrimSpace(trimmed[i+2:])
	}
	if !bytes.HasPrefix(trimmed, []byte("<Error>")) {
		return nil
	}
	var apiErr APIError
	if err := xml.Unmarshal(trimmed, &apiErr); err != nil {
		return &APIError{Description: strings.TrimSpace(string(trimmed))}
	}
	return &apiErr
}

// parseError extracts error information from a non-2xx response.
func parseError(status int, body []byte) *APIError {
	if apiErr := parseErrorDocument(body); apiErr != nil {
		apiErr.StatusCode = status
		return apiErr
	}
	return &APIError{
		StatusCode:  status,
		Description: strings.TrimSpace(string(body)),
	}
}

func continueProbe(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return fault.IsTransport(err)
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
