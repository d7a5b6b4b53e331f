package uspslegacy

import (
	"context"
	"encoding/xml"
	"fmt"
)

// APIClient defines the Web Tools operations the legacy carrier uses.
// Each method maps to one API= name on the ShippingAPI.dll endpoint.
type APIClient interface {
	// RateV4 prices a parcel for every mail class.
	RateV4(ctx context.Context, req *RateV4Request) (*RateV4Response, error)

	// Verify standardizes an address.
	Verify(ctx context.Context, req *AddressValidateRequest) (*AddressValidateResponse, error)

	// EVS purchases an electronic verification label.
	EVS(ctx context.Context, req *EVSRequest) (*EVSResponse, error)

	// TrackV2 returns the tracking summary for a parcel.
	TrackV2(ctx context.Context, req *TrackFieldRequest) (*TrackResponse, error)

	// PostageAdjustment returns the postage reconciliation for a parcel.
	PostageAdjustment(ctx context.Context, req *PostageAdjustmentRequest) (*PostageAdjustmentResponse, error)
}

// ============================================================================
// Request documents. USERID is filled in by the transport.
// ============================================================================

// RateV4Request is the RateV4 request document.
type RateV4Request struct {
	XMLName  xml.Name    `xml:"RateV4Request"`
	UserID   string      `xml:"USERID,attr"`
	Revision string      `xml:"Revision,omitempty"`
	Package  RatePackage `xml:"Package"`
}

// RatePackage describes the parcel being priced.
type RatePackage struct {
	ID             string  `xml:"ID,attr"`
	Service        string  `xml:"Service"`
	ZipOrigination string  `xml:"ZipOrigination"`
	ZipDestination string  `xml:"ZipDestination"`
	Pounds         int     `xml:"Pounds"`
	Ounces         int     `xml:"Ounces"`
	Container      string  `xml:"Container"`
	Size           string  `xml:"Size"`
	Width          float64 `xml:"Width"`
	Length         float64 `xml:"Length"`
	Height         float64 `xml:"Height"`
	Girth          float64 `xml:"Girth"`
	Machinable     bool    `xml:"Machinable"`
}

// AddressValidateRequest is the Verify request document.
type AddressValidateRequest struct {
	XMLName  xml.Name      `xml:"AddressValidateRequest"`
	UserID   string        `xml:"USERID,attr"`
	Revision string        `xml:"Revision"`
	Address  VerifyAddress `xml:"Address"`
}

// VerifyAddress is the address block of Verify. Address1 is the secondary line.
type VerifyAddress struct {
	ID       string `xml:"ID,attr"`
	Address1 string `xml:"Address1"`
	Address2 string `xml:"Address2"`
	City     string `xml:"City"`
	State    string `xml:"State"`
	Zip5     string `xml:"Zip5"`
	Zip4     string `xml:"Zip4"`

	DPVConfirmation string    `xml:"DPVConfirmation,omitempty"`
	ReturnText      string    `xml:"ReturnText,omitempty"`
	Error           *APIError `xml:"Error,omitempty"`
}

// EVSRequest is the eVS label request document.
type EVSRequest struct {
	XMLName         xml.Name        `xml:"eVSRequest"`
	UserID          string          `xml:"USERID,attr"`
	Option          string          `xml:"Option"`
	Revision        string          `xml:"Revision"`
	ImageParameters ImageParameters `xml:"ImageParameters"`

	FromName     string `xml:"FromName"`
	FromFirm     string `xml:"FromFirm"`
	FromAddress1 string `xml:"FromAddress1"`
	FromAddress2 string `xml:"FromAddress2"`
	FromCity     string `xml:"FromCity"`
	FromState    string `xml:"FromState"`
	FromZip5     string `xml:"FromZip5"`
	FromZip4     string `xml:"FromZip4"`
	FromPhone    string `xml:"FromPhone"`

	ToName     string `xml:"ToName"`
	ToFirm     string `xml:"ToFirm"`
	ToAddress1 string `xml:"ToAddress1"`
	ToAddress2 string `xml:"ToAddress2"`
	ToCity     string `xml:"ToCity"`
	ToState    string `xml:"ToState"`
	ToZip5     string `xml:"ToZip5"`
	ToZip4     string `xml:"ToZip4"`
	ToPhone    string `xml:"ToPhone"`

	WeightInOunces          int     `xml:"WeightInOunces"`
	ServiceType             string  `xml:"ServiceType"`
	Container               string  `xml:"Container"`
	Width                   float64 `xml:"Width"`
	Length                  float64 `xml:"Length"`
	Height                  float64 `xml:"Height"`
	Girth                   float64 `xml:"Girth"`
	Machinable              bool    `xml:"Machinable"`
	LabelDate               string  `xml:"LabelDate"`
	CustomerRefNo           string  `xml:"CustomerRefNo"`
	AddressServiceRequested bool    `xml:"AddressServiceRequested"`
	SenderName              string  `xml:"SenderName"`
	SenderEMail             string  `xml:"SenderEMail"`
	RecipientName           string  `xml:"RecipientName"`
	RecipientEMail          string  `xml:"RecipientEMail"`
}

// ImageParameters selects the label image format.
type ImageParameters struct {
	ImageParameter string `xml:"ImageParameter"`
}

// TrackFieldRequest is the TrackV2 request document.
type TrackFieldRequest struct {
	XMLName xml.Name `xml:"TrackFieldRequest"`
	UserID  string   `xml:"USERID,attr"`
	TrackID TrackID  `xml:"TrackID"`
}

// TrackID names the parcel to track.
type TrackID struct {
	ID string `xml:"ID,attr"`
}

// PostageAdjustmentRequest is the PostageAdjustment request document.
type PostageAdjustmentRequest struct {
	XMLName        xml.Name `xml:"PostageAdjustmentRequest"`
	UserID         string   `xml:"USERID,attr"`
	TrackingNumber string   `xml:"TrackingNumber"`
}

// userIDSetter lets the transport stamp credentials onto any request document.
type userIDSetter interface {
	setUserID(id string)
}

func (r *RateV4Request) setUserID(id string) { r.UserID = id }
func (r *AddressValidateRequest) setUserID(id string) { r.UserID = id }
func (r *EVSRequest) setUserID(id string) { r.UserID = id }
func (r *TrackFieldRequest) setUserID(id string) { r.UserID = id }
func (r *PostageAdjustmentRequest) setUserID(id string) { r.UserID = id }

// ============================================================================
// Response documents
// ============================================================================

// RateV4Response is the RateV4 response document.
type RateV4Response struct {
	XMLName xml.Name          `xml:"RateV4Response"`
	Package []RateResponsePkg `xml:"Package"`
}

// RateResponsePkg carries the priced mail classes for one package.
type RateResponsePkg struct {
	ID      string    `xml:"ID,attr"`
	Zone    string    `xml:"Zone"`
	Postage []Postage `xml:"Postage"`
	Error   *APIError `xml:"Error"`
}

// Postage is one priced mail class.
type Postage struct {
	ClassID     string `xml:"CLASSID,attr"`
	MailService string `xml:"MailService"`
	Rate        string `xml:"Rate"`
}

// AddressValidateResponse is the Verify response document.
type AddressValidateResponse struct {
	XMLName xml.Name      `xml:"AddressValidateResponse"`
	Address VerifyAddress `xml:"Address"`
}

// EVSResponse is the eVS response document.
type EVSResponse struct {
	XMLName        xml.Name `xml:"eVSResponse"`
	BarcodeNumber  string   `xml:"BarcodeNumber"`
	TrackingNumber string   `xml:"TrackingNumber"`
	LabelImage     string   `xml:"LabelImage"`
	ReceiptImage   string   `xml:"ReceiptImage"`
	Postage        string   `xml:"Postage"`
	Zone           string   `xml:"Zone"`
}

// Tracking returns the barcode, falling back to the older TrackingNumber element.
func (r *EVSResponse) Tracking() string {
	if r.BarcodeNumber != "" {
		return r.BarcodeNumber
	}
	return r.TrackingNumber
}

// TrackResponse is the TrackV2 response document.
type TrackResponse struct {
	XMLName   xml.Name  `xml:"TrackResponse"`
	TrackInfo TrackInfo `xml:"TrackInfo"`
}

// TrackInfo carries the latest event and history for one parcel.
type TrackInfo struct {
	ID           string       `xml:"ID,attr"`
	TrackSummary TrackEvent   `xml:"TrackSummary"`
	TrackDetail  []TrackEvent `xml:"TrackDetail"`
	Error        *APIError    `xml:"Error"`
}

// TrackEvent is one tracking scan.
type TrackEvent struct {
	Event      string `xml:"Event"`
	EventDate  string `xml:"EventDate"`
	EventTime  string `xml:"EventTime"`
	EventCity  string `xml:"EventCity"`
	EventState string `xml:"EventState"`
}

// PostageAdjustmentResponse is the PostageAdjustment response document.
type PostageAdjustmentResponse struct {
	XMLName                xml.Name                `xml:"PostageAdjustmentResponse"`
	TrackingNumber         string                  `xml:"TrackingNumber"`
	ManifestNumber         string                  `xml:"ManifestNumber"`
	RootCause              []string                `xml:"RootCause"`
	PricingCharacteristics []PricingCharacteristic `xml:"PricingCharacteristic"`
	USPSPackagingBarcode   string                  `xml:"USPSPackagingBarcode"`
	PostageAdjustment      string                  `xml:"PostageAdjustment"`
	TotalPostageClaimed    string                  `xml:"TotalPostageClaimed"`
	TotalPostageAssessed   string                  `xml:"TotalPostageAssessed"`
	BasePostageClaimed     string                  `xml:"BasePostageClaimed"`
	BasePostageAssessed    string                  `xml:"BasePostageAssessed"`
	Fees                   []AdjustmentFee         `xml:"Fee"`
	AccountNumber          string                  `xml:"AccountNumber"`
	TransactionID          string                  `xml:"TransactionID"`
	EarliestScanDate       string                  `xml:"EarliestScanDate"`
	MID                    string                  `xml:"MID"`
	CRID                   string                  `xml:"CRID"`
	AdjustmentStatus       string                  `xml:"AdjustmentStatus"`
}

// PricingCharacteristic is one re-measured attribute.
type PricingCharacteristic struct {
	Type     string `xml:"PricingCharacteristicType"`
	Claimed  string `xml:"Claimed"`
	Assessed string `xml:"Assessed"`
}

// AdjustmentFee is one fee line of an adjustment.
type AdjustmentFee struct {
	Name     string `xml:"FeeName"`
	Claimed  string `xml:"FeeClaimedPostage"`
	Assessed string `xml:"FeeAssessedPostage"`
}

// APIError is an <Error> document or element, or a non-2xx HTTP status.
type APIError struct {
	XMLName     xml.Name `xml:"Error"`
	StatusCode  int      `xml:"-"`
	Number      string   `xml:"Number"`
	Source      string   `xml:"Source"`
	Description string   `xml:"Description"`
}

func (e *APIError) Error() string {
	if e.Number == "" {
		return fmt.Sprintf("HTTP_%d: %s", e.StatusCode, e.Description)
	}
	return e.Number + ": " + e.Description
}
