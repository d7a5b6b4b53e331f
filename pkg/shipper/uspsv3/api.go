package uspsv3

import (
	"context"
	"fmt"
)

// APIClient defines the interface for the versioned USPS REST APIs.
type APIClient interface {
	// SearchTotalRates prices a parcel for the requested mail classes.
	SearchTotalRates(ctx context.Context, req *TotalRatesRequest) (*TotalRatesResponse, error)

	// GetAddress standardizes an address.
	GetAddress(ctx context.Context, req *AddressQuery) (*AddressResponse, error)

	// CreateLabel purchases a domestic label.
	CreateLabel(ctx context.Context, req *LabelRequest) (*LabelResponse, error)

	// GetTracking returns the tracking status of a parcel.
	GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error)
}

// ============================================================================
// Request Types
// ============================================================================

// TotalRatesRequest is the body of POST /total-rates/search.
type TotalRatesRequest struct {
	OriginZIPCode                 string   `json:"originZIPCode"`
	DestinationZIPCode            string   `json:"destinationZIPCode"`
	Weight                        float64  `json:"weight"`
	Length                        float64  `json:"length"`
	Width                         float64  `json:"width"`
	Height                        float64  `json:"height"`
	MailClasses                   []string `json:"mailClasses"`
	PriceType                     string   `json:"priceType"`
	MailingDate                   string   `json:"mailingDate"`
	ExtraServices                 []int    `json:"extraServices,omitempty"`
	HasNonstandardCharacteristics bool     `json:"hasNonstandardCharacteristics"`
}

// AddressQuery holds the query parameters of GET /address.
type AddressQuery struct {
	StreetAddress    string
	SecondaryAddress string
	City             string
	State            string
	ZIPCode          string
	ZIPPlus4         string
	Firm             string
}

// LabelAddress is a sender or recipient on a label request.
type LabelAddress struct {
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	Firm             string `json:"firm,omitempty"`
	StreetAddress    string `json:"streetAddress"`
	SecondaryAddress string `json:"secondaryAddress,omitempty"`
	City             string `json:"city"`
	State            string `json:"state"`
	ZIPCode          string `json:"ZIPCode"`
	ZIPPlus4         string `json:"ZIPPlus4,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
}

// CustomerReference is printed on the label.
type CustomerReference struct {
	ReferenceNumber      string `json:"referenceNumber"`
	PrintReferenceNumber bool   `json:"printReferenceNumber"`
}

// PackageDescription describes the parcel being labeled.
type PackageDescription struct {
	MailClass                    string              `json:"mailClass"`
	RateIndicator                string              `json:"rateIndicator"`
	WeightUOM                    string              `json:"weightUOM"`
	Weight                       float64             `json:"weight"`
	DimensionsUOM                string              `json:"dimensionsUOM"`
	Length                       float64             `json:"length"`
	Width                        float64             `json:"width"`
	Height                       float64             `json:"height"`
	ProcessingCategory           string              `json:"processingCategory"`
	DestinationEntryFacilityType string              `json:"destinationEntryFacilityType"`
	MailingDate                  string              `json:"mailingDate"`
	ExtraServices                []int               `json:"extraServices,omitempty"`
	CustomerReference            []CustomerReference `json:"customerReference,omitempty"`
}

// ImageInfo selects the label artifact format.
type ImageInfo struct {
	ImageType     string `json:"imageType"`
	LabelType     string `json:"labelType"`
	ReceiptOption string `json:"receiptOption"`
}

// LabelRequest is the body of POST /label.
type LabelRequest struct {
	ToAddress          LabelAddress       `json:"toAddress"`
	FromAddress        LabelAddress       `json:"fromAddress"`
	PackageDescription PackageDescription `json:"packageDescription"`
	ImageInfo          ImageInfo          `json:"imageInfo"`
}

// ============================================================================
// Response Types
// ============================================================================

// RateFee is a fee line of a rate.
type RateFee struct {
	Name  string  `json:"name"`
	SKU   string  `json:"SKU"`
	Price float64 `json:"price"`
}

// Rate is one priced product within a rate option.
type Rate struct {
	SKU                string    `json:"SKU"`
	Description        string    `json:"description"`
	Price              float64   `json:"price"`
	Fees               []RateFee `json:"fees"`
	MailClass          string    `json:"mailClass"`
	Zone               string    `json:"zone"`
	ProductName        string    `json:"productName"`
	ProcessingCategory string    `json:"processingCategory"`
	RateIndicator      string    `json:"rateIndicator"`
}

// ExtraServicePrice is a priced extra service of a rate option.
type ExtraServicePrice struct {
	ExtraService string  `json:"extraService"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
}

// RateOption is one purchasable combination of rates and extra services.
type RateOption struct {
	TotalBasePrice *float64            `json:"totalBasePrice"`
	TotalPrice     *float64            `json:"totalPrice"`
	Rates          []Rate              `json:"rates"`
	ExtraServices  []ExtraServicePrice `json:"extraServices"`
}

// TotalRatesResponse is the response of POST /total-rates/search.
type TotalRatesResponse struct {
	RateOptions []RateOption `json:"rateOptions"`
}

// StandardAddress is the standardized address returned by the address API.
type StandardAddress struct {
	StreetAddress    string `json:"streetAddress"`
	SecondaryAddress string `json:"secondaryAddress"`
	City             string `json:"city"`
	State            string `json:"state"`
	ZIPCode          string `json:"ZIPCode"`
	ZIPPlus4         string `json:"ZIPPlus4"`
}

// AdditionalInfo carries delivery point validation flags.
type AdditionalInfo struct {
	DPVConfirmation string `json:"DPVConfirmation"`
	Vacant          string `json:"vacant"`
	Business        string `json:"business"`
}

// AddressCorrection is a correction code returned by the address API.
type AddressCorrection struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// AddressResponse is the response of GET /address.
type AddressResponse struct {
	Address        StandardAddress     `json:"address"`
	AdditionalInfo AdditionalInfo      `json:"additionalInfo"`
	Corrections    []AddressCorrection `json:"corrections"`
	Matches        []AddressCorrection `json:"matches"`
	Warnings       []string            `json:"warnings"`
}

// LabelMetadata is the metadata block of a label response.
type LabelMetadata struct {
	TrackingNumber string  `json:"trackingNumber"`
	Postage        float64 `json:"postage"`
	SKU            string  `json:"SKU"`
	Zone           string  `json:"zone"`
}

// LabelResponse is the response of POST /label. Older deployments return the metadata flat.
type LabelResponse struct {
	LabelMetadata  *LabelMetadata `json:"labelMetadata"`
	LabelImage     string         `json:"labelImage"`
	ReceiptImage   string         `json:"receiptImage"`
	TrackingNumber string         `json:"trackingNumber"`
	Postage        float64        `json:"postage"`
	SKU            string         `json:"SKU"`
	Zone           string         `json:"zone"`
}

// Metadata returns the label metadata whichever shape the response used.
func (r *LabelResponse) Metadata() LabelMetadata {
	if r.LabelMetadata != nil {
		return *r.LabelMetadata
	}
	return LabelMetadata{
		TrackingNumber: r.TrackingNumber,
		Postage:        r.Postage,
		SKU:            r.SKU,
		Zone:           r.Zone,
	}
}

// TrackingEvent is a scan event in a tracking response.
type TrackingEvent struct {
	EventType      string `json:"eventType"`
	EventTimestamp string `json:"eventTimestamp"`
	EventCity      string `json:"eventCity"`
	EventState     string `json:"eventState"`
	EventZIPCode   string `json:"eventZIPCode"`
}

// TrackingResponse is the response of GET /tracking/{trackingNumber}.
type TrackingResponse struct {
	TrackingNumber string          `json:"trackingNumber"`
	Status         string          `json:"status"`
	StatusCategory string          `json:"statusCategory"`
	Events         []TrackingEvent `json:"events"`
}

// ============================================================================
// Errors
// ============================================================================

// ErrorDetail is one entry of the errors list in an error body.
type ErrorDetail struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// APIError represents an error response from the USPS REST APIs.
type APIError struct {
	StatusCode int           `json:"-"`
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Errors     []ErrorDetail `json:"errors"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail())
}

// Detail returns the most specific description in the error body.
func (e *APIError) Detail() string {
	if len(e.Errors) > 0 && e.Errors[0].Detail != "" {
		return e.Errors[0].Detail
	}
	return e.Message
}
