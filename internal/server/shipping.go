package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/internal/service"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/shipper"
	"go.uber.org/zap"
)

type rateRequest struct {
	ToAddress *shipper.Address `json:"toAddress"`
	Items     []shipper.Item   `json:"items"`
	Packaging string           `json:"packaging,omitempty"`
}

type labelResponse struct {
	TrackingNumber string `json:"trackingNumber"`
	LabelImage     string `json:"labelImage"`
	LabelFormat    string `json:"labelFormat"`
}

type labelStatusRequest struct {
	Status string `json:"status"`
}

type labelStatusResponse struct {
	Success bool               `json:"success"`
	OrderID string             `json:"orderId"`
	Status  domain.LabelStatus `json:"status"`
}

// rateValidationDetails holds the customer-facing hint for each rejected rate request.
var rateValidationDetails = map[string]string{
	"Shipping address with zip code is required": "Please provide a valid shipping address with a ZIP code",
	"Items are required":                          "Please add items to your cart before calculating shipping",
	"Invalid ZIP code format":                     "Please provide a valid 5-digit US ZIP code",
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}

	quote := &shipper.QuoteRequest{Items: req.Items, Packaging: req.Packaging}
	if req.ToAddress != nil {
		quote.To = *req.ToAddress
	}

	result, err := s.shipping.Quote(r.Context(), quote)
	if err != nil {
		status, body := rateFailure(err)
		if status >= http.StatusInternalServerError || status == http.StatusUnauthorized || status == http.StatusForbidden {
			s.logger.Error("Shipping rates failed", zap.String("carrier", s.shipping.CarrierName()), zap.Error(err))
		}
		writeError(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// rateFailure maps a rate lookup error to a status and an actionable message. Credential problems
// are told apart from missing scopes so an operator knows which setting to fix.
func rateFailure(err error) (int, errorResponse) {
	msg := fault.RootMessage(err)

	switch {
	case errors.Is(err, fault.ValidationFailure):
		return http.StatusBadRequest, errorResponse{Error: msg, Details: rateValidationDetails[msg]}
	case errors.Is(err, fault.InsufficientScope):
		return http.StatusUnauthorized, errorResponse{
			Error:   "USPS API: Insufficient OAuth Scope",
			Message: "The USPS app does not have the required scopes enabled. Enable labels, prices, tracking and addresses in the USPS Developer Portal.",
			Details: msg,
		}
	case errors.Is(err, fault.MissingCredentials):
		return http.StatusUnauthorized, errorResponse{
			Error:   "USPS API Authentication Failed",
			Message: "USPS API credentials are not configured. Set USPS_CLIENT_ID and USPS_CLIENT_SECRET.",
			Details: msg,
		}
	case fault.CodeOf(err) == fault.CodeAccessDenied:
		return http.StatusForbidden, errorResponse{
			Error:   "USPS API Access Denied",
			Message: "The USPS app is not permitted to use this API. Check the app's API products and approval in the USPS Developer Portal.",
			Details: msg,
		}
	case fault.CodeOf(err) == fault.CodeMediaTypeMismatch:
		return http.StatusUnauthorized, errorResponse{
			Error:   "USPS API Authentication Failed",
			Message: "The USPS API rejected the request media type. Check the configured API base URLs.",
			Details: msg,
		}
	case errors.Is(err, fault.Auth):
		return http.StatusUnauthorized, errorResponse{
			Error:   "USPS API Authentication Failed",
			Message: "USPS API credentials are invalid or the app is not approved in the USPS Developer Portal.",
			Details: msg,
		}
	case fault.IsTimeout(err) || fault.CodeOf(err) == fault.CodeTimeout:
		return http.StatusInternalServerError, errorResponse{
			Error:   "Shipping service timeout",
			Message: "The shipping service took too long to respond. Please try again.",
			Details: msg,
		}
	case fault.IsTransport(err):
		return http.StatusInternalServerError, errorResponse{
			Error:   "Cannot connect to shipping service",
			Message: "Unable to reach the USPS shipping API.",
			Details: msg,
		}
	case fault.CodeOf(err) == fault.CodeUnavailable || fault.CodeOf(err) == fault.CodeRateLimited:
		return http.StatusInternalServerError, errorResponse{
			Error:   "Shipping service unavailable",
			Message: "The USPS shipping API is temporarily unavailable. Please try again later.",
			Details: msg,
		}
	default:
		return http.StatusInternalServerError, errorResponse{
			Error:   "Failed to calculate shipping rates",
			Message: msg,
			Details: msg,
		}
	}
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req service.LabelOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}

	label, err := s.labels.CreateLabel(r.Context(), &req)
	if err != nil {
		if errors.Is(err, fault.ValidationFailure) {
			writeError(w, http.StatusBadRequest, errorResponse{Error: fault.RootMessage(err)})
			return
		}
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to create shipping label",
			Message: fault.RootMessage(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, labelResponse{
		TrackingNumber: label.TrackingNumber,
		LabelImage:     label.LabelImage,
		LabelFormat:    label.Format,
	})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	trackingNumber := strings.TrimSpace(chi.URLParam(r, "trackingNumber"))

	info, err := s.shipping.Track(r.Context(), trackingNumber)
	if err != nil {
		s.logger.Error("Tracking failed", zap.String("tracking_number", trackingNumber), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to track package",
			Message: fault.RootMessage(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handlePostageAdjustment(w http.ResponseWriter, r *http.Request) {
	trackingNumber := strings.TrimSpace(chi.URLParam(r, "trackingNumber"))

	adj, err := s.shipping.PostageAdjustment(r.Context(), trackingNumber)
	if err != nil {
		if errors.Is(err, fault.ErrUnsupported) {
			writeError(w, http.StatusNotImplemented, errorResponse{
				Error:   "Failed to get postage adjustment",
				Message: "postage adjustments are not available for " + s.shipping.CarrierName(),
			})
			return
		}
		s.logger.Error("Postage adjustment failed", zap.String("tracking_number", trackingNumber), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to get postage adjustment",
			Message: fault.RootMessage(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, adj)
}

func (s *Server) handleShippingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.labels.ShippingOrders(r.Context())
	if err != nil {
		s.logger.Error("Listing shipping orders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to fetch shipping orders",
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleShippingLabel(w http.ResponseWriter, r *http.Request) {
	trackingNumber := chi.URLParam(r, "trackingNumber")

	label, err := s.labels.LabelByTracking(r.Context(), trackingNumber)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorResponse{Error: "Shipping label not found"})
			return
		}
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to fetch shipping label",
			Message: err.Error(),
		})
		return
	}

	format := label.LabelFormat
	if format == "" {
		format = "PDF"
	}
	writeJSON(w, http.StatusOK, labelResponse{
		TrackingNumber: label.TrackingNumber,
		LabelImage:     label.LabelImage,
		LabelFormat:    format,
	})
}

func (s *Server) handleLabelStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req labelStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}

	status, err := s.labels.UpdateLabelStatus(r.Context(), orderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, fault.ValidationFailure):
			writeError(w, http.StatusBadRequest, errorResponse{Error: fault.RootMessage(err)})
		case errors.Is(err, fault.ErrNotFound):
			writeError(w, http.StatusNotFound, errorResponse{Error: "Order not found"})
		default:
			writeError(w, http.StatusInternalServerError, errorResponse{
				Error:   "Failed to update shipping label status",
				Message: err.Error(),
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, labelStatusResponse{Success: true, OrderID: orderID, Status: status})
}
