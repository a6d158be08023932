package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/commerce"
)

// handlePlaceOrder checks out explicit items or the caller's cart.
func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var in commerce.OrderInput
	if !decodeJSON(w, r, &in) {
		return
	}

	order, err := s.commerce.PlaceOrder(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Order created successfully", map[string]any{"order": order})
}

// handleListOrders returns one page of the caller's orders.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	filter := commerce.OrderFilter{
		Page:  q.getInt("page"),
		Limit: q.getInt("limit"),
	}
	if v := q.str("status"); v != "" {
		st, err := commerce.ParseOrderStatus(v)
		q.check(err)
		filter.Status = st
	}
	if err := q.err(); err != nil {
		writeValidationErrors(w, err)
		return
	}

	page, err := s.commerce.Orders(r.Context(), userFrom(r.Context()).ID, filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", page)
}

// handleGetOrder returns one order. Order managers may read any order.
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	anyUser := auth.HasPermission(user.Role, auth.PermOrderManage)

	order, err := s.commerce.Order(r.Context(), user.ID, chi.URLParam(r, "id"), anyUser)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"order": order})
}

// handleCancelOrder cancels a pending or confirmed order and restores stock.
func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.commerce.Cancel(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Order cancelled successfully", map[string]any{"order": order})
}

// handleUpdateOrderStatus is the administrative status/tracking update.
func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var in commerce.StatusUpdate
	if !decodeJSON(w, r, &in) {
		return
	}

	order, err := s.commerce.UpdateStatus(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionStatus, audit.EntityOrder, order.ID, map[string]any{
		"status":         string(order.Status),
		"trackingNumber": order.TrackingNumber,
	})
	writeData(w, http.StatusOK, "Order status updated", map[string]any{"order": order})
}
