// Package audit records administrative actions in the audit_logs table.
//
// Entries are written by the API layer after a privileged change succeeds
// (role and activation changes, catalog edits, order status updates,
// technician assignments) and by the command line tools. Recording never
// fails the action being audited: write errors are logged and dropped.
package audit

import (
	"context"
	"time"
)

// Source identifies where an audited action originated.
type Source string

// Audit sources.
const (
	SourceAPI    Source = "api"
	SourceCLI    Source = "cli"
	SourceSystem Source = "system"
)

// Actions recorded by Customo Core.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionRole       = "role"
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
	ActionStatus     = "status"
	ActionAssign     = "assign"
)

// Entity types recorded by Customo Core.
const (
	EntityUser    = "user"
	EntityProduct = "product"
	EntityOrder   = "order"
	EntityTicket  = "ticket"
)

// Entry is a single audit trail record.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	ActorID    string         `json:"actorId,omitempty"`
	Source     Source         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Filter narrows an audit listing. Empty fields match everything.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorID    string
	Limit      int
	Offset     int
}

func (f Filter) normalise() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Trail writes and queries audit entries.
type Trail struct {
	repo   Repository
	logger Logger
	now    func() time.Time
}

// NewTrail creates a Trail backed by repo.
func NewTrail(repo Repository) *Trail {
	return &Trail{
		repo:   repo,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger used for failed writes.
func (t *Trail) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Record stores e, stamping CreatedAt when unset. A nil Trail is a no-op.
func (t *Trail) Record(ctx context.Context, e Entry) {
	if t == nil {
		return
	}
	if e.Source == "" {
		e.Source = SourceAPI
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now()
	}
	if err := t.repo.Create(ctx, &e); err != nil {
		t.logger.Error("audit write failed",
			"action", e.Action,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
			"error", err,
		)
	}
}

// List returns one page of entries and the total number of matches.
func (t *Trail) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	return t.repo.List(ctx, filter.normalise())
}
