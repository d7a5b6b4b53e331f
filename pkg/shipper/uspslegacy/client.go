// Package uspslegacy implements the shipping carrier on the USPS Web Tools XML API.
package uspslegacy

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "usps-legacy"

// Config holds Web Tools configuration.
type Config struct {
	Username  string
	Endpoints []string
	Timeout   time.Duration
	UseMock   bool
}

// Client is the legacy USPS carrier.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

var (
	_ shipper.Carrier         = (*Client)(nil)
	_ shipper.PostageAdjuster = (*Client)(nil)
)

// New creates a new legacy USPS client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			UserID:    cfg.Username,
			Endpoints: cfg.Endpoints,
			Timeout:   cfg.Timeout,
		}, logger)
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new legacy USPS client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/storefront/pkg/shipper/uspslegacy")
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// GetRates prices the parcel for every mail class.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.Quote, error) {
	ctx, span := c.tracer.Start(ctx, "uspslegacy.GetRates")
	defer span.End()

	c.logger.Info("Getting USPS Web Tools rates",
		zap.String("origin_zip", req.OriginZIP),
		zap.String("destination_zip", req.DestinationZIP),
		zap.Float64("weight", req.Weight),
	)

	ounces := weightOunces(req.Weight)
	dims := parcelDimensions(req.Dimensions)
	size := "REGULAR"
	if dims.Max() > 12 {
		size = "LARGE"
	}

	apiResp, err := c.apiClient.RateV4(ctx, &RateV4Request{
		Revision: "2",
		Package: RatePackage{
			ID:             "1",
			Service:        "ALL",
			ZipOrigination: req.OriginZIP,
			ZipDestination: req.DestinationZIP,
			Pounds:         ounces / 16,
			Ounces:         ounces % 16,
			Container:      "RECTANGULAR",
			Size:           size,
			Width:          dims.Width,
			Length:         dims.Length,
			Height:         dims.Height,
			Girth:          girth(dims),
			Machinable:     true,
		},
	})
	if err != nil {
		c.logger.Error("USPS Web Tools API error", zap.String("api", "RateV4"), zap.Error(err))
		return nil, toFault(fault.KindShippingRate, err)
	}

	quotes := make([]shipper.Quote, 0)
	for _, pkg := range apiResp.Package {
		for _, p := range pkg.Postage {
			rate, err := decimal.NewFromString(strings.TrimSpace(p.Rate))
			if err != nil || !rate.IsPositive() {
				continue
			}
			name := cleanServiceName(p.MailService)
			quotes = append(quotes, shipper.Quote{
				Carrier:     carrierName,
				Service:     normalizeService(name),
				ServiceName: name,
				Rate:        rate,
				TransitDays: transitDays(p.ClassID),
				MailClass:   p.ClassID,
				Zone:        pkg.Zone,
				Weight:      req.Weight,
				Dimensions:  req.Dimensions,
			})
		}
	}

	if len(quotes) == 0 {
		c.logger.Warn("No shipping rates in USPS response", zap.String("destination_zip", req.DestinationZIP))
	}
	return quotes, nil
}

// ValidateAddress standardizes addr with the Verify API.
func (c *Client) ValidateAddress(ctx context.Context, addr shipper.Address) (*shipper.ValidatedAddress, error) {
	ctx, span := c.tracer.Start(ctx, "uspslegacy.ValidateAddress")
	defer span.End()

	c.logger.Info("Validating address with USPS Web Tools",
		zap.String("city", addr.City),
		zap.String("state", addr.State),
		zap.String("zip", addr.ZIP5()),
	)

	apiResp, err := c.apiClient.Verify(ctx, &AddressValidateRequest{
		Revision: "1",
		Address: VerifyAddress{
			ID:       "0",
			Address1: addr.Street2,
			Address2: addr.Street1,
			City:     addr.City,
			State:    addr.State,
			Zip5:     addr.ZIP5(),
			Zip4:     addr.ZIP4(),
		},
	})
	if err != nil {
		c.logger.Error("USPS Web Tools API error", zap.String("api", "Verify"), zap.Error(err))
		return nil, toFault(fault.KindAddressValidation, err)
	}

	return verifyResult(addr, &apiResp.Address), nil
}

// CreateLabel purchases an eVS label.
func (c *Client) CreateLabel(ctx context.Context, req *shipper.LabelRequest) (*shipper.Label, error) {
	ctx, span := c.tracer.Start(ctx, "uspslegacy.CreateLabel")
	defer span.End()

	c.logger.Info("Creating USPS Web Tools label",
		zap.String("reference", req.Reference),
		zap.String("service", req.Service),
	)

	dims := parcelDimensions(req.Dimensions)
	apiResp, err := c.apiClient.EVS(ctx, &EVSRequest{
		Option:          "1",
		Revision:        "2",
		ImageParameters: ImageParameters{ImageParameter: "PDF"},

		FromName:     req.From.FullName(),
		FromFirm:     req.From.Company,
		FromAddress1: req.From.Street2,
		FromAddress2: req.From.Street1,
		FromCity:     req.From.City,
		FromState:    req.From.State,
		FromZip5:     req.From.ZIP5(),
		FromZip4:     req.From.ZIP4(),
		FromPhone:    req.From.Phone,

		ToName:     req.To.FullName(),
		ToFirm:     req.To.Company,
		ToAddress1: req.To.Street2,
		ToAddress2: req.To.Street1,
		ToCity:     req.To.City,
		ToState:    req.To.State,
		ToZip5:     req.To.ZIP5(),
		ToZip4:     req.To.ZIP4(),
		ToPhone:    req.To.Phone,

		WeightInOunces: weightOunces(req.Weight),
		ServiceType:    serviceType(req.Service),
		Container:      containerType(req.Packaging),
		Width:          dims.Width,
		Length:         dims.Length,
		Height:         dims.Height,
		Girth:          girth(dims),
		Machinable:     true,
		LabelDate:      time.Now().Format("01/02/2006"),
		CustomerRefNo:  req.Reference,
		SenderName:     req.From.FullName(),
		SenderEMail:    req.From.Email,
		RecipientName:  req.To.FullName(),
		RecipientEMail: req.To.Email,
	})
	if err != nil {
		c.logger.Error("USPS Web Tools API error", zap.String("api", "eVS"), zap.Error(err))
		return nil, toFault(fault.KindLabel, err)
	}
	if apiResp.Tracking() == "" {
		return nil, fault.New(fault.KindLabel, carrierName, "NO_TRACKING_NUMBER", "label response has no tracking number")
	}

	postage, _ := decimal.NewFromString(strings.TrimSpace(apiResp.Postage))
	return &shipper.Label{
		TrackingNumber: apiResp.Tracking(),
		LabelImage:     apiResp.LabelImage,
		Format:         "PDF",
		ReceiptImage:   apiResp.ReceiptImage,
		Postage:        postage,
		Zone:           apiResp.Zone,
	}, nil
}

// Track returns the tracking summary and history of a parcel.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
	ctx, span := c.tracer.Start(ctx, "uspslegacy.Track")
	defer span.End()

	c.logger.Info("Tracking USPS package", zap.String("tracking_number", trackingNumber))

	apiResp, err := c.apiClient.TrackV2(ctx, &TrackFieldRequest{TrackID: TrackID{ID: trackingNumber}})
	if err != nil {
		c.logger.Error("USPS Web Tools API error", zap.String("api", "TrackV2"), zap.Error(err))
		return nil, toFault(fault.KindShippingRate, err)
	}

	summary := apiResp.TrackInfo.TrackSummary
	info := &shipper.TrackingInfo{
		TrackingNumber: apiResp.TrackInfo.ID,
		Status:         summary.Event,
		Location:       location(summary),
		Date:           summary.EventDate,
		Time:           summary.EventTime,
	}
	if info.TrackingNumber == "" {
		info.TrackingNumber = trackingNumber
	}
	if info.Status == "" {
		info.Status = "In Transit"
	}
	for _, d := range apiResp.TrackInfo.TrackDetail {
		info.Events = append(info.Events, shipper.TrackingEvent{
			Event:    d.Event,
			Location: location(d),
			Date:     d.EventDate,
			Time:     d.EventTime,
		})
	}
	return info, nil
}

// PostageAdjustment returns the postage reconciliation for a parcel.
func (c *Client) PostageAdjustment(ctx context.Context, trackingNumber string) (*shipper.PostageAdjustment, error) {
	ctx, span := c.tracer.Start(ctx, "uspslegacy.PostageAdjustment")
	defer span.End()

	c.logger.Info("Checking postage adjustment", zap.String("tracking_number", trackingNumber))

	r, err := c.apiClient.PostageAdjustment(ctx, &PostageAdjustmentRequest{TrackingNumber: trackingNumber})
	if err != nil {
		c.logger.Error("USPS Web Tools API error", zap.String("api", "PostageAdjustment"), zap.Error(err))
		return nil, toFault(fault.KindShippingRate, err)
	}

	adj := &shipper.PostageAdjustment{
		TrackingNumber:         strings.TrimSpace(r.TrackingNumber),
		ManifestNumber:         strings.TrimSpace(r.ManifestNumber),
		RootCause:              make([]string, 0, len(r.RootCause)),
		PricingCharacteristics: make([]shipper.PricingCharacteristic, 0, len(r.PricingCharacteristics)),
		PackagingBarcode:       strings.TrimSpace(r.USPSPackagingBarcode),
		PostageAdjustment:      amount(r.PostageAdjustment),
		TotalPostage:           shipper.ClaimedAssessed{Claimed: amount(r.TotalPostageClaimed), Assessed: amount(r.TotalPostageAssessed)},
		BasePostage:            shipper.ClaimedAssessed{Claimed: amount(r.BasePostageClaimed), Assessed: amount(r.BasePostageAssessed)},
		Fees:                   make([]shipper.AdjustmentFee, 0, len(r.Fees)),
		AccountNumber:          strings.TrimSpace(r.AccountNumber),
		TransactionID:          strings.TrimSpace(r.TransactionID),
		EarliestScanDate:       strings.TrimSpace(r.EarliestScanDate),
		MID:                    strings.TrimSpace(r.MID),
		CRID:                   strings.TrimSpace(r.CRID),
		AdjustmentStatus:       strings.TrimSpace(r.AdjustmentStatus),
	}
	if adj.TrackingNumber == "" {
		adj.TrackingNumber = trackingNumber
	}
	for _, rc := range r.RootCause {
		adj.RootCause = append(adj.RootCause, strings.TrimSpace(rc))
	}
	for _, pc := range r.PricingCharacteristics {
		adj.PricingCharacteristics = append(adj.PricingCharacteristics, shipper.PricingCharacteristic{
			Name:     strings.TrimSpace(pc.Type),
			Claimed:  strings.TrimSpace(pc.Claimed),
			Assessed: strings.TrimSpace(pc.Assessed),
		})
	}
	for _, f := range r.Fees {
		adj.Fees = append(adj.Fees, shipper.AdjustmentFee{
			Name:            strings.TrimSpace(f.Name),
			ClaimedPostage:  amount(f.Claimed),
			AssessedPostage: amount(f.Assessed),
		})
	}
	return adj, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func verifyResult(original shipper.Address, v *VerifyAddress) *shipper.ValidatedAddress {
	result := &shipper.ValidatedAddress{
		Address:     original,
		Valid:       true,
		Corrections: []shipper.Correction{},
		Warnings:    []string{},
	}

	if v.Error != nil {
		result.Valid = false
		result.Corrections = append(result.Corrections, shipper.Correction{
			Code: "ERROR",
			Text: strings.TrimSpace(v.Error.Description),
		})
		return result
	}

	// Verify swaps the lines: Address2 is the primary street line.
	if s := strings.TrimSpace(v.Address2); s != "" {
		result.Address.Street1 = s
	}
	if s := strings.TrimSpace(v.Address1); s != "" {
		result.Address.Street2 = s
	}
	if s := strings.TrimSpace(v.City); s != "" {
		result.Address.City = s
	}
	if s := strings.TrimSpace(v.State); s != "" {
		result.Address.State = s
	}
	if zip5 := strings.TrimSpace(v.Zip5); zip5 != "" {
		result.Address.ZIP = zip5
		if zip4 := strings.TrimSpace(v.Zip4); zip4 != "" {
			result.Address.ZIP = zip5 + "-" + zip4
		}
	}

	if dpv := strings.TrimSpace(v.DPVConfirmation); dpv != "" && dpv != "Y" && dpv != "S" {
		result.Warnings = append(result.Warnings, "Address could not be confirmed by USPS")
	}
	if text := strings.TrimSpace(v.ReturnText); text != "" && !strings.Contains(text, "Default address") {
		result.Corrections = append(result.Corrections, shipper.Correction{Code: "CORRECTION", Text: text})
	}
	return result
}

// toFault maps Web Tools failures onto the error taxonomy. Auth and transport errors keep
// their codes; <Error> documents become kind with the Web Tools error number as code.
func toFault(kind fault.Kind, err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fault.Recast(kind, err)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		desc := strings.TrimSpace(apiErr.Description)
		if strings.Contains(strings.ToLower(desc), "authorization failure") {
			return fault.New(fault.KindAuth, carrierName, fault.CodeRejected, desc).
				WithStatusCode(apiErr.StatusCode).WithCause(err)
		}
		code := apiErr.Number
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", apiErr.StatusCode)
		}
		return fault.New(kind, carrierName, code, desc).WithStatusCode(apiErr.StatusCode).WithCause(err)
	}

	return fault.New(kind, carrierName, "INVALID_RESPONSE", err.Error()).WithCause(err)
}

func weightOunces(pounds float64) int {
	return int(math.Max(1, math.Ceil(pounds*16)))
}

func parcelDimensions(d shipper.Dimensions) shipper.Dimensions {
	if d.Width <= 0 {
		d.Width = 6
	}
	if d.Length <= 0 {
		d.Length = 6
	}
	if d.Height <= 0 {
		d.Height = 4
	}
	return d
}

func girth(d shipper.Dimensions) float64 {
	return (d.Width + d.Height) * 2
}

var markup = regexp.MustCompile(`<[^>]*>`)

// cleanServiceName strips the trademark markup Web Tools embeds in mail service names.
func cleanServiceName(s string) string {
	s = html.UnescapeString(s)
	s = markup.ReplaceAllString(s, "")
	s = strings.NewReplacer("™", "", "®", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func normalizeService(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "express"):
		return shipper.ServiceExpress
	case strings.Contains(n, "first-class"), strings.Contains(n, "first class"):
		return shipper.ServiceFirstClass
	case strings.Contains(n, "ground advantage"):
		return shipper.ServiceGround
	case strings.Contains(n, "media"):
		return shipper.ServiceMediaMail
	case strings.Contains(n, "parcel"):
		return shipper.ServiceParcel
	default:
		return shipper.ServicePriority
	}
}

// transitDays estimates delivery time from the RateV4 class id.
func transitDays(classID string) int {
	switch classID {
	case "1":
		return 1
	case "2", "3":
		return 2
	case "15", "16":
		return 3
	case "4", "5":
		return 5
	default:
		return 3
	}
}

func serviceType(service string) string {
	switch service {
	case shipper.ServiceExpress:
		return "PRIORITY EXPRESS"
	case shipper.ServiceGround, shipper.ServiceFirstClass:
		return "USPS GROUND ADVANTAGE"
	case shipper.ServiceParcel:
		return "PARCEL SELECT GROUND"
	case shipper.ServiceMediaMail:
		return "MEDIA MAIL"
	case shipper.ServicePriority, "":
		return "PRIORITY"
	default:
		return service
	}
}

// containerType maps packaging to a container. Food boxes ship as custom rectangular parcels.
func containerType(packaging string) string {
	switch packaging {
	case shipper.PackagingEnvelope:
		return "FLAT RATE ENVELOPE"
	case shipper.PackagingBubbleEnvelope:
		return "PADDED FLAT RATE ENVELOPE"
	case shipper.PackagingTShirtEnvelope:
		return "TYVEK ENVELOPE"
	case shipper.PackagingSmallBox:
		return "SMALL FLAT RATE BOX"
	case shipper.PackagingMediumBox:
		return "MEDIUM FLAT RATE BOX"
	case shipper.PackagingLargeBox:
		return "LARGE FLAT RATE BOX"
	default:
		return "RECTANGULAR"
	}
}

func location(e TrackEvent) string {
	switch {
	case e.EventCity != "" && e.EventState != "":
		return e.EventCity + ", " + e.EventState
	default:
		return e.EventCity + e.EventState
	}
}

// amount normalizes a money string, defaulting to zero.
func amount(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
