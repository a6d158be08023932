package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/catalog"
)

// handleListProducts returns one page of active products.
//
// Query parameters: category, search, minPrice, maxPrice, inStock, sortBy
// (name, price, rating, createdAt), sortOrder (asc, desc), page, limit.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	filter := catalog.Filter{
		Category:  catalog.Category(q.str("category")),
		Search:    q.str("search"),
		MinPrice:  q.getFloat("minPrice"),
		MaxPrice:  q.getFloat("maxPrice"),
		InStock:   q.getBool("inStock"),
		SortBy:    catalog.SortField(q.str("sortBy")),
		SortOrder: q.str("sortOrder"),
		Page:      q.getInt("page"),
		Limit:     q.getInt("limit"),
	}
	if err := q.err(); err != nil {
		writeValidationErrors(w, err)
		return
	}

	page, err := s.catalog.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", page)
}

// handleGetProduct returns an active product with its recent reviews.
func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"product": p})
}

// handleCreateProduct adds a product to the catalog.
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := s.catalog.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionCreate, audit.EntityProduct, p.ID, map[string]any{"name": p.Name})
	writeData(w, http.StatusCreated, "Product created successfully", map[string]any{"product": p})
}

// handleUpdateProduct edits a product, including withdrawn ones.
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductUpdate
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := s.catalog.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionUpdate, audit.EntityProduct, p.ID, nil)
	writeData(w, http.StatusOK, "Product updated successfully", map[string]any{"product": p})
}

// handleDeleteProduct withdraws a product from sale.
func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionDelete, audit.EntityProduct, id, nil)
	writeData(w, http.StatusOK, "Product deleted successfully", nil)
}

// handleAddReview records the caller's review of a product.
func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var in catalog.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}

	rev, err := s.catalog.AddReview(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Review added successfully", map[string]any{"review": rev})
}

// handleListReviews returns one page of a product's reviews.
func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	page, limit := q.getInt("page"), q.getInt("limit")
	if err := q.err(); err != nil {
		writeValidationErrors(w, err)
		return
	}

	reviews, err := s.catalog.Reviews(r.Context(), chi.URLParam(r, "id"), page, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", reviews)
}
