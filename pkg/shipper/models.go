package shipper

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Packaging codes accepted by the rate engine.
const (
	PackagingEnvelope       = "envelope"
	PackagingBubbleEnvelope = "bubble_envelope"
	PackagingTShirtEnvelope = "tshirt_envelope"
	PackagingSmallBox       = "small_box"
	PackagingMediumBox      = "medium_box"
	PackagingLargeBox       = "large_box"
	PackagingFoodSmallBox   = "food_small_box"
	PackagingFoodMediumBox  = "food_medium_box"
	PackagingFoodLargeBox   = "food_large_box"
	PackagingInsulatedBox   = "insulated_box"
	PackagingStandardBox    = "standard_box"
)

// Service classes shared by both carrier variants.
const (
	ServicePriority   = "PRIORITY"
	ServiceExpress    = "EXPRESS"
	ServiceFirstClass = "FIRST_CLASS"
	ServiceGround     = "GROUND_ADVANTAGE"
	ServiceParcel     = "PARCEL_SELECT"
	ServiceMediaMail  = "MEDIA_MAIL"
)

// Address represents a US shipping address.
type Address struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Name      string `json:"name,omitempty"`
	Company   string `json:"company,omitempty"`
	Street1   string `json:"street1,omitempty"`
	Street2   string `json:"street2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	ZIP       string `json:"zip"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// FullName returns Name, or first and last name joined.
func (a Address) FullName() string {
	if a.Name != "" {
		return a.Name
	}
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// ZIP5 returns the five-digit part of the ZIP code.
func (a Address) ZIP5() string {
	zip := strings.ReplaceAll(a.ZIP, "-", "")
	if len(zip) > 5 {
		return zip[:5]
	}
	return zip
}

// ZIP4 returns the +4 extension, if present.
func (a Address) ZIP4() string {
	zip := strings.ReplaceAll(a.ZIP, "-", "")
	if len(zip) > 5 {
		return zip[5:]
	}
	return ""
}

// Item is a cart line as seen by the parcel heuristics.
type Item struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

// Dimensions are parcel dimensions in inches.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Max returns the largest side.
func (d Dimensions) Max() float64 {
	m := d.Length
	if d.Width > m {
		m = d.Width
	}
	if d.Height > m {
		m = d.Height
	}
	return m
}

// RateRequest asks a carrier for quotes.
type RateRequest struct {
	OriginZIP      string
	DestinationZIP string
	Weight         float64 // pounds
	Dimensions     Dimensions
	Packaging      string
}

// Fee is one surcharge or extra service included in a quote.
type Fee struct {
	Name  string          `json:"name"`
	Code  string          `json:"code,omitempty"`
	Price decimal.Decimal `json:"price"`
}

// Quote is one priced shipping option.
type Quote struct {
	Carrier     string          `json:"carrier"`
	Service     string          `json:"service"`
	ServiceName string          `json:"serviceName"`
	Rate        decimal.Decimal `json:"rate"`
	TransitDays int             `json:"deliveryDays"`
	MailClass   string          `json:"mailClass,omitempty"`
	Zone        string          `json:"zone,omitempty"`
	Weight      float64         `json:"weight"`
	Dimensions  Dimensions      `json:"dimensions"`
	Fees        []Fee           `json:"fees,omitempty"`
}

// Correction is a change or notice returned by address standardization.
type Correction struct {
	Code string `json:"code,omitempty"`
	Text string `json:"text"`
}

// ValidatedAddress is the advisory result of address validation.
type ValidatedAddress struct {
	Address     Address      `json:"address"`
	Valid       bool         `json:"isValid"`
	Corrections []Correction `json:"corrections"`
	Warnings    []string     `json:"warnings"`
}

// LabelRequest asks a carrier to purchase a label.
type LabelRequest struct {
	From       Address
	To         Address
	Service    string
	Packaging  string
	Weight     float64
	Dimensions Dimensions
	Reference  string
}

// Label is a purchased shipping label.
type Label struct {
	TrackingNumber string          `json:"trackingNumber"`
	LabelImage     string          `json:"labelImage"`
	Format         string          `json:"labelFormat"`
	ReceiptImage   string          `json:"receiptImage,omitempty"`
	Postage        decimal.Decimal `json:"postage"`
	Zone           string          `json:"zone,omitempty"`
	SKU            string          `json:"sku,omitempty"`
}

// TrackingEvent is one scan in a parcel's history.
type TrackingEvent struct {
	Event    string `json:"event"`
	Location string `json:"location,omitempty"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
}

// TrackingInfo is the current status of a parcel.
type TrackingInfo struct {
	TrackingNumber string          `json:"trackingNumber"`
	Status         string          `json:"status"`
	Location       string          `json:"location,omitempty"`
	Date           string          `json:"date,omitempty"`
	Time           string          `json:"time,omitempty"`
	Events         []TrackingEvent `json:"events,omitempty"`
}

// ClaimedAssessed pairs the postage the shipper claimed with what the carrier assessed.
type ClaimedAssessed struct {
	Claimed  string `json:"claimed"`
	Assessed string `json:"assessed"`
}

// PricingCharacteristic is one attribute the carrier re-measured.
type PricingCharacteristic struct {
	Name     string `json:"pricingCharacteristic"`
	Claimed  string `json:"claimed"`
	Assessed string `json:"assessed"`
}

// AdjustmentFee is a fee line of a postage adjustment.
type AdjustmentFee struct {
	Name            string `json:"name"`
	ClaimedPostage  string `json:"claimedPostage"`
	AssessedPostage string `json:"assessedPostage"`
}

// PostageAdjustment reconciles claimed postage against the carrier's assessment.
type PostageAdjustment struct {
	TrackingNumber         string                  `json:"trackingNumber"`
	ManifestNumber         string                  `json:"manifestNumber,omitempty"`
	RootCause              []string                `json:"rootCause"`
	PricingCharacteristics []PricingCharacteristic `json:"pricingCharacteristics"`
	PackagingBarcode       string                  `json:"USPSPackagingBarcode,omitempty"`
	PostageAdjustment      string                  `json:"postageAdjustment"`
	TotalPostage           ClaimedAssessed         `json:"totalPostage"`
	BasePostage            ClaimedAssessed         `json:"basePostage"`
	Fees                   []AdjustmentFee         `json:"fees"`
	AccountNumber          string                  `json:"accountNumber,omitempty"`
	TransactionID          string                  `json:"transactionID,omitempty"`
	EarliestScanDate       string                  `json:"earliestScanDate,omitempty"`
	MID                    string                  `json:"MID,omitempty"`
	CRID                   string                  `json:"CRID,omitempty"`
	AdjustmentStatus       string                  `json:"adjustmentStatus,omitempty"`
}
