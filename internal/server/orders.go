package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/pkg/fault"
	"go.uber.org/zap"
)

type posWebhook struct {
	OrderGUID string `json:"orderGuid"`
	Status    string `json:"status"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}

	result, err := s.orders.PlaceOrder(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, fault.ValidationFailure):
			writeError(w, http.StatusBadRequest, errorResponse{Error: fault.RootMessage(err)})
		case errors.Is(err, fault.Payment):
			writeError(w, http.StatusPaymentRequired, errorResponse{
				Error:   "Payment processing failed",
				Message: fault.RootMessage(err),
				Code:    fault.CodePaymentFailed,
			})
		default:
			s.logger.Error("Order failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, errorResponse{
				Error:   "Failed to create order",
				Message: fault.RootMessage(err),
			})
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	status, err := s.orders.GetOrderStatus(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorResponse{Error: "Order not found"})
			return
		}
		s.logger.Error("Order status lookup failed", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to fetch order status",
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handlePOSWebhook acknowledges every well-formed notification. Failures to apply it are only logged.
func (s *Server) handlePOSWebhook(w http.ResponseWriter, r *http.Request) {
	var hook posWebhook
	if err := decodeJSON(w, r, &hook); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}

	if err := s.orders.HandlePOSWebhook(r.Context(), hook.OrderGUID, hook.Status); err != nil {
		s.logger.Error("POS webhook not applied",
			zap.String("pos_order_id", hook.OrderGUID),
			zap.String("status", hook.Status),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
