// Package uspsv3 implements the shipping carrier on the versioned USPS REST APIs,
// authenticated with OAuth2 client credentials.
package uspsv3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/oauth"
	"github.com/tournevent/storefront/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "usps-v3"

// Mail classes requested from the prices API.
const (
	MailClassGround       = "USPS_GROUND_ADVANTAGE"
	MailClassPriority     = "PRIORITY_MAIL"
	MailClassExpress      = "PRIORITY_MAIL_EXPRESS"
	MailClassFirstClass   = "FIRST_CLASS_PACKAGE_SERVICE"
	MailClassParcelSelect = "PARCEL_SELECT"
)

// extraServiceTracking is USPS Tracking, included with every rate request.
const extraServiceTracking = 920

var mailClassNames = map[string]string{
	MailClassGround:       "USPS Ground Advantage",
	MailClassPriority:     "Priority Mail",
	MailClassExpress:      "Priority Mail Express",
	MailClassFirstClass:   "First-Class Package Service",
	MailClassParcelSelect: "Parcel Select",
}

var mailClassServices = map[string]string{
	MailClassGround:       shipper.ServiceGround,
	MailClassPriority:     shipper.ServicePriority,
	MailClassExpress:      shipper.ServiceExpress,
	MailClassFirstClass:   shipper.ServiceFirstClass,
	MailClassParcelSelect: shipper.ServiceParcel,
}

var mailClassDays = map[string]int{
	MailClassExpress:      1,
	MailClassPriority:     2,
	MailClassGround:       5,
	MailClassFirstClass:   5,
	MailClassParcelSelect: 7,
}

// Config holds USPS REST API configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	// Scope is optional; when empty the token carries every scope granted to the app.
	Scope        string
	TokenURL     string
	RevokeURL    string
	PricesURL    string
	LabelsURL    string
	TrackingURL  string
	AddressesURL string
	PaymentToken string
	Timeout      time.Duration
	UseMock      bool
}

// Client is the versioned USPS carrier.
type Client struct {
	config    Config
	apiClient APIClient
	tokens    *oauth.Cache
	logger    *otelzap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

var _ shipper.Carrier = (*Client)(nil)

// New creates a new USPS REST client with its own token cache.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.UseMock {
		return NewWithAPIClient(cfg, NewMockAPIClient(), logger, tracer)
	}

	tokens := oauth.NewCache(oauth.NewHTTPSource(oauth.SourceConfig{
		Service:      carrierName,
		TokenURL:     orDefault(cfg.TokenURL, DefaultTokenURL),
		RevokeURL:    orDefault(cfg.RevokeURL, DefaultRevokeURL),
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scope:        cfg.Scope,
		Timeout:      cfg.Timeout,
	}), logger)

	apiClient := NewHTTPAPIClient(HTTPAPIClientConfig{
		PricesURL:    cfg.PricesURL,
		LabelsURL:    cfg.LabelsURL,
		TrackingURL:  cfg.TrackingURL,
		AddressesURL: cfg.AddressesURL,
		PaymentToken: cfg.PaymentToken,
		Timeout:      cfg.Timeout,
	}, tokens, logger)

	c := NewWithAPIClient(cfg, apiClient, logger, tracer)
	c.tokens = tokens
	return c
}

// NewWithAPIClient creates a new USPS REST client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/storefront/pkg/shipper/uspsv3")
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
		now:       time.Now,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// Revoke revokes the cached access token. It is a no-op for mock clients.
func (c *Client) Revoke(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	return c.tokens.Revoke(ctx)
}

// GetRates prices the parcel for Ground Advantage, Priority and Priority Express.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.Quote, error) {
	ctx, span := c.tracer.Start(ctx, "uspsv3.GetRates")
	defer span.End()

	c.logger.Info("Getting USPS rates",
		zap.String("origin_zip", req.OriginZIP),
		zap.String("destination_zip", req.DestinationZIP),
		zap.Float64("weight", req.Weight),
	)

	packaging := strings.ToLower(req.Packaging)
	apiResp, err := c.apiClient.SearchTotalRates(ctx, &TotalRatesRequest{
		OriginZIPCode:                 req.OriginZIP,
		DestinationZIPCode:            req.DestinationZIP,
		Weight:                        req.Weight,
		Length:                        req.Dimensions.Length,
		Width:                         req.Dimensions.Width,
		Height:                        req.Dimensions.Height,
		MailClasses:                   []string{MailClassGround, MailClassPriority, MailClassExpress},
		PriceType:                     "COMMERCIAL",
		MailingDate:                   c.now().Format("2006-01-02"),
		ExtraServices:                 []int{extraServiceTracking},
		HasNonstandardCharacteristics: strings.Contains(packaging, "tube") || strings.Contains(packaging, "roll"),
	})
	if err != nil {
		c.logger.Error("USPS API error", zap.String("api", "total-rates"), zap.Error(err))
		return nil, toFault(fault.KindShippingRate, err)
	}

	quotes := make([]shipper.Quote, 0, len(apiResp.RateOptions))
	for _, opt := range apiResp.RateOptions {
		q, ok := quoteFromOption(opt)
		if !ok {
			continue
		}
		q.Weight = req.Weight
		q.Dimensions = req.Dimensions
		quotes = append(quotes, q)
	}

	if len(quotes) == 0 {
		c.logger.Warn("No shipping rates in USPS response", zap.String("destination_zip", req.DestinationZIP))
	}
	return quotes, nil
}

// ValidateAddress standardizes addr. Unknown or malformed addresses produce an
// invalid result rather than an error.
func (c *Client) ValidateAddress(ctx context.Context, addr shipper.Address) (*shipper.ValidatedAddress, error) {
	ctx, span := c.tracer.Start(ctx, "uspsv3.ValidateAddress")
	defer span.End()

	c.logger.Info("Validating address with USPS",
		zap.String("city", addr.City),
		zap.String("state", addr.State),
		zap.String("zip", addr.ZIP5()),
	)

	apiResp, err := c.apiClient.GetAddress(ctx, &AddressQuery{
		StreetAddress:    addr.Street1,
		SecondaryAddress: addr.Street2,
		City:             addr.City,
		State:            addr.State,
		ZIPCode:          addr.ZIP5(),
		ZIPPlus4:         addr.ZIP4(),
		Firm:             addr.Company,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusNotFound:
				return invalidAddress(addr, "Address not found in USPS database",
					"Address could not be validated. Please verify the address is correct."), nil
			case http.StatusBadRequest:
				return invalidAddress(addr, apiErr.Detail(), ""), nil
			}
		}
		c.logger.Error("USPS API error", zap.String("api", "address"), zap.Error(err))
		return nil, toFault(fault.KindAddressValidation, err)
	}

	return addressResult(addr, apiResp), nil
}

// CreateLabel purchases a domestic label.
func (c *Client) CreateLabel(ctx context.Context, req *shipper.LabelRequest) (*shipper.Label, error) {
	ctx, span := c.tracer.Start(ctx, "uspsv3.CreateLabel")
	defer span.End()

	c.logger.Info("Creating USPS label",
		zap.String("reference", req.Reference),
		zap.String("service", req.Service),
	)

	pkg := PackageDescription{
		MailClass:                    labelMailClass(req.Service),
		RateIndicator:                rateIndicator(req.Packaging),
		WeightUOM:                    "lb",
		Weight:                       req.Weight,
		DimensionsUOM:                "in",
		Length:                       req.Dimensions.Length,
		Width:                        req.Dimensions.Width,
		Height:                       req.Dimensions.Height,
		ProcessingCategory:           processingCategory(req.Weight, req.Dimensions),
		DestinationEntryFacilityType: "NONE",
		MailingDate:                  c.now().Format("2006-01-02"),
		ExtraServices:                []int{extraServiceTracking},
	}
	if req.Reference != "" {
		pkg.CustomerReference = []CustomerReference{{ReferenceNumber: req.Reference, PrintReferenceNumber: true}}
	}

	apiResp, err := c.apiClient.CreateLabel(ctx, &LabelRequest{
		ToAddress:          labelAddress(req.To),
		FromAddress:        labelAddress(req.From),
		PackageDescription: pkg,
		ImageInfo: ImageInfo{
			ImageType:     "PDF",
			LabelType:     "4X6LABEL",
			ReceiptOption: "SEPARATE_PAGE",
		},
	})
	if err != nil {
		c.logger.Error("USPS API error", zap.String("api", "label"), zap.Error(err))
		return nil, toFault(fault.KindLabel, err)
	}

	meta := apiResp.Metadata()
	if meta.TrackingNumber == "" {
		return nil, fault.New(fault.KindLabel, carrierName, "NO_TRACKING_NUMBER", "label response has no tracking number")
	}

	return &shipper.Label{
		TrackingNumber: meta.TrackingNumber,
		LabelImage:     apiResp.LabelImage,
		Format:         "PDF",
		ReceiptImage:   apiResp.ReceiptImage,
		Postage:        decimal.NewFromFloat(meta.Postage),
		Zone:           meta.Zone,
		SKU:            meta.SKU,
	}, nil
}

// Track returns the tracking status of a parcel.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
	ctx, span := c.tracer.Start(ctx, "uspsv3.Track")
	defer span.End()

	c.logger.Info("Tracking USPS package", zap.String("tracking_number", trackingNumber))

	apiResp, err := c.apiClient.GetTracking(ctx, trackingNumber)
	if err != nil {
		c.logger.Error("USPS API error", zap.String("api", "tracking"), zap.Error(err))
		return nil, toFault(fault.KindShippingRate, err)
	}

	info := &shipper.TrackingInfo{
		TrackingNumber: apiResp.TrackingNumber,
		Status:         apiResp.Status,
		Events:         make([]shipper.TrackingEvent, 0, len(apiResp.Events)),
	}
	if info.TrackingNumber == "" {
		info.TrackingNumber = trackingNumber
	}
	if info.Status == "" {
		info.Status = "Unknown"
	}
	for i, e := range apiResp.Events {
		ev := shipper.TrackingEvent{
			Event:    e.EventType,
			Location: joinLocation(e.EventCity, e.EventState),
			Date:     e.EventTimestamp,
		}
		if i == 0 {
			info.Location = ev.Location
			info.Date = ev.Date
		}
		info.Events = append(info.Events, ev)
	}
	return info, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

// quoteFromOption prices one rate option. The total price wins; a base-only
// total has the extra services added back.
func quoteFromOption(opt RateOption) (shipper.Quote, bool) {
	if len(opt.Rates) == 0 {
		return shipper.Quote{}, false
	}
	rate := opt.Rates[0]

	var price decimal.Decimal
	switch {
	case opt.TotalPrice != nil:
		price = decimal.NewFromFloat(*opt.TotalPrice)
	case opt.TotalBasePrice != nil:
		price = decimal.NewFromFloat(*opt.TotalBasePrice)
		for _, es := range opt.ExtraServices {
			price = price.Add(decimal.NewFromFloat(es.Price))
		}
	default:
		price = decimal.NewFromFloat(rate.Price)
	}
	if !price.IsPositive() {
		return shipper.Quote{}, false
	}

	fees := make([]shipper.Fee, 0, len(rate.Fees)+len(opt.ExtraServices))
	for _, f := range rate.Fees {
		fees = append(fees, shipper.Fee{Name: f.Name, Code: f.SKU, Price: decimal.NewFromFloat(f.Price)})
	}
	for _, es := range opt.ExtraServices {
		fees = append(fees, shipper.Fee{Name: es.Name, Code: es.ExtraService, Price: decimal.NewFromFloat(es.Price)})
	}

	service, ok := mailClassServices[rate.MailClass]
	if !ok {
		service = rate.MailClass
	}
	days, ok := mailClassDays[rate.MailClass]
	if !ok {
		days = 5
	}

	return shipper.Quote{
		Carrier:     carrierName,
		Service:     service,
		ServiceName: serviceName(rate),
		Rate:        price.Round(2),
		TransitDays: days,
		MailClass:   rate.MailClass,
		Zone:        rate.Zone,
		Fees:        fees,
	}, true
}

func serviceName(r Rate) string {
	switch {
	case r.ProductName != "":
		return r.ProductName
	case r.Description != "":
		return r.Description
	case mailClassNames[r.MailClass] != "":
		return mailClassNames[r.MailClass]
	default:
		return r.MailClass
	}
}

func invalidAddress(addr shipper.Address, correction, warning string) *shipper.ValidatedAddress {
	result := &shipper.ValidatedAddress{
		Address:     addr,
		Valid:       false,
		Corrections: []shipper.Correction{{Text: correction}},
		Warnings:    []string{},
	}
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	return result
}

func addressResult(original shipper.Address, r *AddressResponse) *shipper.ValidatedAddress {
	if r.Address.ZIPCode == "" {
		return invalidAddress(original, "Address not found", "")
	}

	addr := original
	if r.Address.StreetAddress != "" {
		addr.Street1 = r.Address.StreetAddress
	}
	if r.Address.SecondaryAddress != "" {
		addr.Street2 = r.Address.SecondaryAddress
	}
	if r.Address.City != "" {
		addr.City = r.Address.City
	}
	if r.Address.State != "" {
		addr.State = r.Address.State
	}
	addr.ZIP = r.Address.ZIPCode
	if r.Address.ZIPPlus4 != "" {
		addr.ZIP += "-" + r.Address.ZIPPlus4
	}

	result := &shipper.ValidatedAddress{
		Address:     addr,
		Valid:       true,
		Corrections: make([]shipper.Correction, 0, len(r.Corrections)),
		Warnings:    append([]string{}, r.Warnings...),
	}

	for _, corr := range r.Corrections {
		if corr.Code == "" && corr.Text == "" {
			continue
		}
		result.Corrections = append(result.Corrections, shipper.Correction{Code: corr.Code, Text: corr.Text})
		// 22 and 32: multiple or default matches, more information needed.
		if strings.Contains(corr.Code, "22") || strings.Contains(corr.Code, "32") {
			result.Valid = false
		}
	}

	switch r.AdditionalInfo.DPVConfirmation {
	case "N":
		result.Valid = false
	case "D", "S":
		result.Warnings = append(result.Warnings,
			"Address partially confirmed. Secondary address information may be missing or unconfirmed.")
	}
	if r.AdditionalInfo.Vacant == "Y" {
		result.Warnings = append(result.Warnings, "Address location is currently vacant.")
	}
	if r.AdditionalInfo.Business == "Y" {
		result.Warnings = append(result.Warnings, "This is a business address.")
	}
	return result
}

func labelAddress(a shipper.Address) LabelAddress {
	first, last := a.FirstName, a.LastName
	if first == "" && last == "" && a.Name != "" {
		parts := strings.SplitN(a.Name, " ", 2)
		first = parts[0]
		if len(parts) > 1 {
			last = parts[1]
		}
	}
	return LabelAddress{
		FirstName:        first,
		LastName:         last,
		Firm:             a.Company,
		StreetAddress:    a.Street1,
		SecondaryAddress: a.Street2,
		City:             a.City,
		State:            a.State,
		ZIPCode:          a.ZIP5(),
		ZIPPlus4:         a.ZIP4(),
		Phone:            a.Phone,
		Email:            a.Email,
	}
}

func labelMailClass(service string) string {
	s := strings.ToUpper(service)
	switch {
	case strings.Contains(s, "EXPRESS"):
		return MailClassExpress
	case strings.Contains(s, "PRIORITY"):
		return MailClassPriority
	default:
		return MailClassGround
	}
}

var rateIndicators = map[string]string{
	shipper.PackagingEnvelope:       "FE",
	shipper.PackagingBubbleEnvelope: "FP",
	shipper.PackagingTShirtEnvelope: "FE",
	shipper.PackagingSmallBox:       "FS",
	shipper.PackagingMediumBox:      "FB",
	shipper.PackagingLargeBox:       "PL",
}

func rateIndicator(packaging string) string {
	if ri, ok := rateIndicators[packaging]; ok {
		return ri
	}
	return "SP"
}

func processingCategory(weight float64, d shipper.Dimensions) string {
	if d.Max() > 12 || weight > 70 {
		return "NONSTANDARD"
	}
	return "MACHINABLE"
}

func joinLocation(city, state string) string {
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	default:
		return state
	}
}

// toFault maps REST failures onto the error taxonomy. Credential, scope and media-type
// problems become auth errors with distinct codes; other statuses keep kind.
func toFault(kind fault.Kind, err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fault.Recast(kind, err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return fault.New(kind, carrierName, "INVALID_RESPONSE", err.Error()).WithCause(err)
	}

	detail := apiErr.Detail()
	build := func(k fault.Kind, code, msg string) error {
		if detail != "" {
			msg = msg + ": " + detail
		}
		return fault.New(k, carrierName, code, msg).WithStatusCode(apiErr.StatusCode).WithCause(err)
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		lower := strings.ToLower(detail)
		if strings.Contains(lower, "scope") || strings.Contains(lower, "insufficient") {
			return build(fault.KindAuth, fault.CodeInsufficientScope, "OAuth token lacks the required scope")
		}
		return build(fault.KindAuth, fault.CodeRejected, "USPS rejected the OAuth credentials")
	case http.StatusForbidden:
		return build(fault.KindAuth, fault.CodeAccessDenied, "access denied, check API permissions")
	case http.StatusNotAcceptable, http.StatusUnsupportedMediaType:
		return build(fault.KindAuth, fault.CodeMediaTypeMismatch, "endpoint rejected the request media type")
	case http.StatusBadRequest:
		return build(kind, fault.CodeInvalidRequest, "invalid request")
	case http.StatusTooManyRequests:
		return build(kind, fault.CodeRateLimited, "rate limit exceeded")
	case http.StatusServiceUnavailable:
		return build(kind, fault.CodeUnavailable, "USPS service temporarily unavailable")
	default:
		return build(kind, apiErr.Code, fmt.Sprintf("USPS API returned HTTP %d", apiErr.StatusCode))
	}
}
