package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/ticket"
)

type ticketStatusRequest struct {
	Status string `json:"status"`
}

type ticketAssignRequest struct {
	TechnicianID  string     `json:"technicianId"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
}

// viewer describes the caller for ticket visibility. Staff see every ticket.
func viewer(user *auth.User) ticket.Viewer {
	return ticket.Viewer{
		UserID: user.ID,
		Staff:  auth.HasPermission(user.Role, auth.PermTicketWork),
	}
}

// handleCreateTicket opens a service ticket, optionally for an owned device.
func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var in ticket.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	t, err := s.tickets.Create(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Service ticket created successfully", map[string]any{"ticket": t})
}

// handleListTickets returns the caller's tickets, or every ticket for staff.
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	filter := ticket.Filter{
		Page:  q.getInt("page"),
		Limit: q.getInt("limit"),
	}
	if v := q.str("status"); v != "" {
		st, err := ticket.ParseStatus(v)
		q.check(err)
		filter.Status = st
	}
	if v := q.str("priority"); v != "" {
		p, err := ticket.ParsePriority(v)
		q.check(err)
		filter.Priority = p
	}
	if err := q.err(); err != nil {
		writeValidationErrors(w, err)
		return
	}

	page, err := s.tickets.List(r.Context(), viewer(userFrom(r.Context())), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", page)
}

// handleTicketStats counts the tickets visible to the caller.
func (s *Server) handleTicketStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tickets.Stats(r.Context(), viewer(userFrom(r.Context())))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", stats)
}

// handleGetTicket returns a ticket visible to the caller.
func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.tickets.Get(r.Context(), viewer(userFrom(r.Context())), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"ticket": t})
}

// handleUpdateTicketStatus moves a ticket along its lifecycle.
func (s *Server) handleUpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	var req ticketStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.tickets.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Ticket status updated", map[string]any{"ticket": t})
}

// handleAssignTicket assigns a technician and an optional visit date.
func (s *Server) handleAssignTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketAssignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.tickets.Assign(r.Context(), chi.URLParam(r, "id"), req.TechnicianID, req.ScheduledDate)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionAssign, audit.EntityTicket, t.ID, map[string]any{"technicianId": req.TechnicianID})
	writeData(w, http.StatusOK, "Technician assigned", map[string]any{"ticket": t})
}

// handleCancelTicket lets the owner withdraw an open ticket.
func (s *Server) handleCancelTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.tickets.Cancel(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Ticket cancelled", map[string]any{"ticket": t})
}
