package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// handleGetCart returns the caller's cart.
func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.commerce.Cart(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", cart)
}

// handleAddCartItem adds a product; an existing line's quantity grows.
// Quantity defaults to 1.
func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := s.commerce.AddItem(r.Context(), userFrom(r.Context()).ID, req.ProductID, quantity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Item added to cart", cart)
}

// handleUpdateCartItem sets a line's quantity; zero removes it.
func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := s.commerce.UpdateItem(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "itemId"), req.Quantity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Cart updated", cart)
}

// handleRemoveCartItem deletes one line.
func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := s.commerce.RemoveItem(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "itemId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Item removed from cart", cart)
}

// handleClearCart empties the caller's cart.
func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.commerce.ClearCart(r.Context(), userFrom(r.Context()).ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Cart cleared", nil)
}
