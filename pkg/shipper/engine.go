package shipper

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/tournevent/storefront/pkg/fault"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// QuoteRequest is a storefront request for shipping options.
type QuoteRequest struct {
	To        Address
	Items     []Item
	Packaging string
}

// QuoteResult carries the sorted rates together with the parcel inputs used to price them.
type QuoteResult struct {
	Rates             []Quote           `json:"rates"`
	Weight            float64           `json:"weight"`
	Dimensions        Dimensions        `json:"dimensions"`
	AddressValidation *ValidatedAddress `json:"addressValidation,omitempty"`
}

// Engine computes parcels and prices them with the configured carrier.
type Engine struct {
	carrier  Carrier
	adjuster PostageAdjuster
	origin   Address
	logger   *otelzap.Logger
	tracer   trace.Tracer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPostageAdjuster sets the source of postage adjustments when the carrier has none.
func WithPostageAdjuster(pa PostageAdjuster) EngineOption {
	return func(e *Engine) { e.adjuster = pa }
}

// WithTracer sets the tracer used for engine spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine creates a rate engine for carrier, shipping from origin.
func NewEngine(carrier Carrier, origin Address, logger *otelzap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		carrier: carrier,
		origin:  origin,
		logger:  logger,
		tracer:  otel.Tracer("github.com/tournevent/storefront/pkg/shipper"),
	}
	if pa, ok := carrier.(PostageAdjuster); ok {
		e.adjuster = pa
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CarrierName returns the name of the configured carrier.
func (e *Engine) CarrierName() string {
	return e.carrier.Name()
}

// Origin returns the sender address.
func (e *Engine) Origin() Address {
	return e.origin
}

// CalculateWeight estimates the parcel weight in pounds.
func (e *Engine) CalculateWeight(items []Item) float64 {
	return CalculateWeight(items)
}

// CalculateDimensions returns the parcel dimensions for a packaging code.
func (e *Engine) CalculateDimensions(items []Item, packaging string) Dimensions {
	return CalculateDimensions(items, packaging)
}

// ValidateAddress standardizes addr. It never fails: when the carrier cannot validate,
// the original address is returned marked valid with a warning.
func (e *Engine) ValidateAddress(ctx context.Context, addr Address) *ValidatedAddress {
	ctx, span := e.tracer.Start(ctx, "shipper.ValidateAddress")
	defer span.End()

	result, err := e.carrier.ValidateAddress(ctx, addr)
	if err != nil {
		err = fault.New(fault.KindAddressValidation, e.carrier.Name(), fault.CodeOf(err), "address validation failed").WithCause(err)
		e.logger.Warn("Address validation unavailable, using original address",
			zap.String("carrier", e.carrier.Name()),
			zap.Error(err),
		)
		return &ValidatedAddress{
			Address:     addr,
			Valid:       true,
			Corrections: []Correction{},
			Warnings:    []string{"Address validation unavailable: " + fault.RootMessage(err)},
		}
	}
	return result
}

// GetShippingRates prices a parcel to addr and returns quotes sorted by ascending rate.
func (e *Engine) GetShippingRates(ctx context.Context, addr Address, weight float64, dims Dimensions, packaging string) ([]Quote, error) {
	ctx, span := e.tracer.Start(ctx, "shipper.GetShippingRates")
	defer span.End()
	span.SetAttributes(
		attribute.String("carrier", e.carrier.Name()),
		attribute.Float64("parcel.weight_lb", weight),
	)

	e.logger.Info("Getting shipping rates",
		zap.String("carrier", e.carrier.Name()),
		zap.String("destination_zip", addr.ZIP5()),
		zap.Float64("weight", weight),
	)

	quotes, err := e.carrier.GetRates(ctx, &RateRequest{
		OriginZIP:      e.origin.ZIP5(),
		DestinationZIP: addr.ZIP5(),
		Weight:         weight,
		Dimensions:     dims,
		Packaging:      packaging,
	})
	if err != nil {
		span.RecordError(err)
		e.logger.Error("Shipping rate error", zap.String("carrier", e.carrier.Name()), zap.Error(err))
		return nil, rateError(e.carrier.Name(), err)
	}

	SortQuotes(quotes)
	return quotes, nil
}

// Quote validates a storefront request, validates the address, sizes the parcel, and prices it.
func (e *Engine) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResult, error) {
	zip := strings.Join(strings.Fields(req.To.ZIP), "")
	if zip == "" {
		return nil, fault.Validation("Shipping address with zip code is required")
	}
	if len(req.Items) == 0 {
		return nil, fault.Validation("Items are required")
	}
	if !ValidZIP(zip) {
		return nil, fault.Validation("Invalid ZIP code format")
	}

	to := req.To
	to.ZIP = zip

	validation := e.ValidateAddress(ctx, to)
	if validation.Valid && validation.Address.ZIP != "" {
		to = validation.Address
	}

	packaging := req.Packaging
	if packaging == "" {
		packaging = PackagingStandardBox
	}
	weight := e.CalculateWeight(req.Items)
	dims := e.CalculateDimensions(req.Items, packaging)

	rates, err := e.GetShippingRates(ctx, to, weight, dims, packaging)
	if err != nil {
		return nil, err
	}

	return &QuoteResult{
		Rates:             rates,
		Weight:            weight,
		Dimensions:        dims,
		AddressValidation: validation,
	}, nil
}

// CreateLabel purchases a label from the configured carrier.
func (e *Engine) CreateLabel(ctx context.Context, req *LabelRequest) (*Label, error) {
	ctx, span := e.tracer.Start(ctx, "shipper.CreateLabel")
	defer span.End()

	if req.From.ZIP == "" {
		req.From = e.origin
	}
	label, err := e.carrier.CreateLabel(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, typed(fault.KindLabel, e.carrier.Name(), err)
	}
	return label, nil
}

// Track returns tracking information for a parcel.
func (e *Engine) Track(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	ctx, span := e.tracer.Start(ctx, "shipper.Track")
	defer span.End()

	info, err := e.carrier.Track(ctx, trackingNumber)
	if err != nil {
		span.RecordError(err)
		return nil, typed(fault.KindShippingRate, e.carrier.Name(), err)
	}
	return info, nil
}

// PostageAdjustment returns the postage reconciliation for a parcel.
func (e *Engine) PostageAdjustment(ctx context.Context, trackingNumber string) (*PostageAdjustment, error) {
	if e.adjuster == nil {
		return nil, fault.ErrUnsupported
	}
	adj, err := e.adjuster.PostageAdjustment(ctx, trackingNumber)
	if err != nil {
		return nil, typed(fault.KindShippingRate, e.carrier.Name(), err)
	}
	return adj, nil
}

// SortQuotes orders quotes by ascending rate, keeping carrier order for ties.
func SortQuotes(quotes []Quote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Rate.LessThan(quotes[j].Rate)
	})
}

func rateError(carrier string, err error) error {
	return typed(fault.KindShippingRate, carrier, err)
}

// typed gives untyped and transport errors the kind of the failed operation. Auth errors
// keep their kind so callers can tell credential problems apart.
func typed(kind fault.Kind, carrier string, err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		if fe.Kind == fault.KindAuth || fe.Kind == kind {
			return err
		}
		if fe.Kind == fault.KindTransport {
			return fault.Recast(kind, err)
		}
	}
	return fault.New(kind, carrier, "CARRIER_ERROR", fault.RootMessage(err)).WithCause(err)
}
