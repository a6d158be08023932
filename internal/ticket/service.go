package ticket

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tvmmachans/Customo/internal/device"
	"github.com/tvmmachans/Customo/internal/validation"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const (
	maxTitleLength     = 200
	maxIssueTypeLength = 100
)

// Service implements the service-ticket lifecycle.
type Service struct {
	repo      Repository
	logger    Logger
	now       func() time.Time
	observers []Observer
	obsMu     sync.RWMutex
}

// NewService creates a ticket service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// AddObserver registers o for subsequent ticket changes.
func (s *Service) AddObserver(o Observer) {
	s.obsMu.Lock()
	s.observers = append(s.observers, o)
	s.obsMu.Unlock()
}

func (s *Service) emit(kind EventKind, t *Ticket) {
	s.obsMu.RLock()
	observers := s.observers
	s.obsMu.RUnlock()

	e := Event{Kind: kind, Ticket: *t, At: t.UpdatedAt}
	for _, o := range observers {
		o.OnTicketEvent(e)
	}
}

// Create opens a ticket for userID. A referenced device must belong to
// the same user.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Ticket, error) {
	var verr validation.Errors
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLength {
		verr = append(verr, ErrInvalidTitle)
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		verr = append(verr, ErrInvalidDescription)
	}
	issue := strings.TrimSpace(in.IssueType)
	if issue == "" || len(issue) > maxIssueTypeLength {
		verr = append(verr, ErrInvalidIssueType)
	}
	priority := PriorityMedium
	if in.Priority != "" {
		p, err := ParsePriority(in.Priority)
		verr.AddErr(err)
		priority = p
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var deviceID *string
	if id := strings.TrimSpace(in.DeviceID); id != "" {
		owned, err := s.repo.DeviceOwned(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, device.ErrDeviceNotFound
		}
		deviceID = &id
	}

	now := s.now()
	t := &Ticket{
		TicketNumber: newTicketNumber(now),
		UserID:       userID,
		DeviceID:     deviceID,
		Title:        title,
		Description:  desc,
		IssueType:    issue,
		Priority:     priority,
		Status:       StatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("service ticket opened", "ticket", t.TicketNumber, "user", userID, "priority", t.Priority)
	s.emit(EventCreated, t)
	return t, nil
}

// List returns one page of the tickets visible to v.
func (s *Service) List(ctx context.Context, v Viewer, f Filter) (Page, error) {
	var verr validation.Errors
	if f.Status != "" {
		st, err := ParseStatus(string(f.Status))
		verr.AddErr(err)
		f.Status = st
	}
	if f.Priority != "" {
		p, err := ParsePriority(string(f.Priority))
		verr.AddErr(err)
		f.Priority = p
	}
	if err := verr.Err(); err != nil {
		return Page{}, err
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}

	tickets, total, err := s.repo.List(ctx, v.scope(), f)
	if err != nil {
		return Page{}, err
	}
	pages := 0
	if total > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	return Page{Tickets: tickets, Pagination: Pagination{Page: f.Page, Limit: f.Limit, Total: total, Pages: pages}}, nil
}

// scope is the owner filter for v: empty for staff.
func (v Viewer) scope() string {
	if v.Staff {
		return ""
	}
	return v.UserID
}

// Get returns a ticket visible to v.
func (s *Service) Get(ctx context.Context, v Viewer, id string) (*Ticket, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !v.Staff && t.UserID != v.UserID {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

// Stats counts the tickets visible to v.
func (s *Service) Stats(ctx context.Context, v Viewer) (Stats, error) {
	return s.repo.Stats(ctx, v.scope())
}

// UpdateStatus moves a ticket along its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Ticket, error) {
	next, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(next) {
		return nil, fmt.Errorf("%s to %s: %w", t.Status, next, ErrInvalidTransition)
	}
	return s.transition(ctx, t, next)
}

// Cancel cancels userID's own ticket while it is still OPEN.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*Ticket, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrTicketNotFound
	}
	if t.Status != StatusOpen {
		return nil, ErrNotCancellable
	}
	return s.transition(ctx, t, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, t *Ticket, next Status) (*Ticket, error) {
	prev := t.Status
	now := s.now()
	t.Status = next
	t.UpdatedAt = now
	if next == StatusCompleted {
		t.CompletedAt = &now
	}
	if err := s.repo.Save(ctx, t, prev); err != nil {
		return nil, err
	}
	s.logger.Info("service ticket status changed", "ticket", t.TicketNumber, "from", prev, "to", next)
	s.emit(EventStatusChanged, t)
	return t, nil
}

// Assign gives a ticket to a technician, optionally with a visit date.
func (s *Service) Assign(ctx context.Context, id, technicianID string, scheduled *time.Time) (*Ticket, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, ErrInvalidTransition
	}
	staff, err := s.repo.IsStaff(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	if !staff {
		return nil, ErrInvalidTechnician
	}

	t.AssignedTo = &technicianID
	if scheduled != nil {
		at := scheduled.UTC()
		t.ScheduledDate = &at
	}
	t.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, t, t.Status); err != nil {
		return nil, err
	}
	s.logger.Info("service ticket assigned", "ticket", t.TicketNumber, "technician", technicianID)
	s.emit(EventAssigned, t)
	return t, nil
}

// newTicketNumber builds "SRV-<unix millis>-<random>".
func newTicketNumber(now time.Time) string {
	return fmt.Sprintf("SRV-%d-%s", now.UnixMilli(), strings.ToUpper(uuid.NewString()[:6]))
}
