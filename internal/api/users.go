package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/catalog"
)

// User listing bounds.
const (
	defaultUserLimit = 20
	maxUserLimit     = 100
)

type roleRequest struct {
	Role string `json:"role"`
}

type activeRequest struct {
	IsActive *bool `json:"isActive"`
}

// handleListUsers returns one page of accounts, filtered by role and a
// search over email and names.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	page, limit := catalog.ClampPage(q.getInt("page"), q.getInt("limit"), defaultUserLimit, maxUserLimit)
	filter := auth.UserFilter{
		Search: q.str("search"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if v := q.str("role"); v != "" {
		role, err := auth.ParseRole(v)
		q.check(err)
		filter.Role = role
	}
	if err := q.err(); err != nil {
		writeValidationErrors(w, err)
		return
	}

	users, total, err := s.auth.ListUsers(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{
		"users":      users,
		"pagination": catalog.NewPagination(page, limit, defaultUserLimit, maxUserLimit, total),
	})
}

// handleSetUserRole changes another account's role.
func (s *Server) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeValidationErrors(w, err)
		return
	}

	user, err := s.auth.SetRole(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), role)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionRole, audit.EntityUser, user.ID, map[string]any{"role": string(user.Role)})
	writeData(w, http.StatusOK, "User role updated", map[string]any{"user": user})
}

// handleSetUserActive enables or disables another account.
func (s *Server) handleSetUserActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "isActive is required")
		return
	}

	user, err := s.auth.SetActive(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	action := audit.ActionDeactivate
	if user.IsActive {
		action = audit.ActionActivate
	}
	s.recordAudit(r, action, audit.EntityUser, user.ID, nil)
	writeData(w, http.StatusOK, "User status updated", map[string]any{"user": user})
}
