package uspsv3

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
	"go.uber.org/zap"
)

// Production base URLs.
const (
	DefaultPricesURL    = "https://apis.usps.com/prices/v3"
	DefaultLabelsURL    = "https://apis.usps.com/labels/v3"
	DefaultTrackingURL  = "https://apis.usps.com/tracking/v3"
	DefaultAddressesURL = "https://apis.usps.com/addresses/v3"
	DefaultTokenURL     = "https://apis.usps.com/oauth2/v3/token"
	DefaultRevokeURL    = "https://apis.usps.com/oauth2/v3/revoke"
)

const labelsMediaType = "application/vnd.usps.labels+json"

// HTTPAPIClient is the production implementation of APIClient using HTTP/JSON.
type HTTPAPIClient struct {
	pricesURL    string
	labelsURL    string
	trackingURL  string
	addressesURL string
	paymentToken string
	httpClient   *http.Client
	tokens       *oauth.Cache
	logger       *otelzap.Logger
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	PricesURL    string
	LabelsURL    string
	TrackingURL  string
	AddressesURL string
	// PaymentToken is the payment authorization token required to purchase labels.
	PaymentToken string
	Timeout      time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client authenticated by tokens.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig, tokens *oauth.Cache, logger *otelzap.Logger) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		pricesURL:    strings.TrimRight(orDefault(cfg.PricesURL, DefaultPricesURL), "/"),
		labelsURL:    strings.TrimRight(orDefault(cfg.LabelsURL, DefaultLabelsURL), "/"),
		trackingURL:  strings.TrimRight(orDefault(cfg.TrackingURL, DefaultTrackingURL), "/"),
		addressesURL: strings.TrimRight(orDefault(cfg.AddressesURL, DefaultAddressesURL), "/"),
		paymentToken: cfg.PaymentToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
		logger: logger,
	}
}

// SearchTotalRates prices a parcel for the requested mail classes.
func (c *HTTPAPIClient) SearchTotalRates(ctx context.Context, req *TotalRatesRequest) (*TotalRatesResponse, error) {
	var result TotalRatesResponse
	if err := c.doRequest(ctx, http.MethodPost, c.pricesURL+"/total-rates/search", req, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAddress standardizes an address.
func (c *HTTPAPIClient) GetAddress(ctx context.Context, req *AddressQuery) (*AddressResponse, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("streetAddress", req.StreetAddress)
	set("secondaryAddress", req.SecondaryAddress)
	set("city", req.City)
	set("state", req.State)
	set("ZIPCode", req.ZIPCode)
	set("ZIPPlus4", req.ZIPPlus4)
	set("firm", req.Firm)

	var result AddressResponse
	if err := c.doRequest(ctx, http.MethodGet, c.addressesURL+"/address?"+q.Encode(), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateLabel purchases a domestic label.
func (c *HTTPAPIClient) CreateLabel(ctx context.Context, req *LabelRequest) (*LabelResponse, error) {
	if c.paymentToken == "" {
		return nil, fault.New(fault.KindAuth, carrierName, fault.CodeMissingCredentials,
			"USPS payment authorization token is not configured")
	}

	headers := map[string]string{
		"X-Payment-Authorization-Token": c.paymentToken,
		"Accept":                        labelsMediaType,
	}
	var result LabelResponse
	if err := c.doRequest(ctx, http.MethodPost, c.labelsURL+"/label", req, headers, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTracking returns the tracking status of a parcel.
func (c *HTTPAPIClient) GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error) {
	var result TrackingResponse
	endpoint := c.trackingURL + "/tracking/" + url.PathEscape(trackingNumber)
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============================================================================
// HTTP Helpers
// ============================================================================

func (c *HTTPAPIClient) doRequest(ctx context.Context, method, endpoint string, body interface{}, headers map[string]string, out interface{}) error {
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

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Transport(carrierName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Drop the token so the next call authenticates again.
		c.tokens.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := c.parseError(resp)
		c.logger.Debug("USPS API returned error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseError extracts error information from an HTTP response. USPS nests the
// error under "error"; some gateways answer with a flat {message}.
func (c *HTTPAPIClient) parseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error   *APIError `json:"error"`
		Message string    `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != nil {
			envelope.Error.StatusCode = resp.StatusCode
			if envelope.Error.Code == "" {
				envelope.Error.Code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
			}
			if envelope.Error.Message == "" {
				envelope.Error.Message = envelope.Message
			}
			return envelope.Error
		}
		if envelope.Message != "" {
			return &APIError{
				StatusCode: resp.StatusCode,
				Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
				Message:    envelope.Message,
			}
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    strings.TrimSpace(string(body)),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
