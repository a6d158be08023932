package api

import (
	"net/http"

	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/catalog"
)

// recordAudit appends an entry for a privileged change made by the caller.
func (s *Server) recordAudit(r *http.Request, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	if id := requestIDFrom(r.Context()); id != "" {
		details["requestId"] = id
	}

	var actorID string
	if u := userFrom(r.Context()); u != nil {
		actorID = u.ID
	}
	s.audit.Record(r.Context(), audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Source:     audit.SourceAPI,
		Details:    details,
	})
}

// handleListAudit returns one page of the audit trail, newest first.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "Audit trail is not enabled")
		return
	}

	q := newQueryParser(r)
	page, limit := catalog.ClampPage(q.getInt("page"), q.getInt("limit"), audit.DefaultLimit, audit.MaxLimit)
	if err := q.err(); err != nil {
		writeValidationErrors(w, err)
		return
	}

	entries, total, err := s.audit.List(r.Context(), audit.Filter{
		Action:     q.str("action"),
		EntityType: q.str("entityType"),
		EntityID:   q.str("entityId"),
		ActorID:    q.str("actorId"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{
		"logs":       entries,
		"pagination": catalog.NewPagination(page, limit, audit.DefaultLimit, audit.MaxLimit, total),
	})
}
