package ticket

import (
	"strings"
	"time"
)

// Priority ranks a ticket's urgency.
type Priority string

// Priority constants.
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ParsePriority accepts priority names in any case.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", ErrInvalidPriority
}

// Status is a ticket's lifecycle state.
type Status string

// Status constants.
const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// ParseStatus accepts status names in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

var transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a ticket may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Ticket is a service request.
type Ticket struct {
	ID            string     `json:"id"`
	TicketNumber  string     `json:"ticketNumber"`
	UserID        string     `json:"userId"`
	DeviceID      *string    `json:"deviceId,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	IssueType     string     `json:"issueType"`
	Priority      Priority   `json:"priority"`
	Status        Status     `json:"status"`
	AssignedTo    *string    `json:"assignedTo,omitempty"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// CreateInput carries a new ticket. Priority defaults to MEDIUM.
type CreateInput struct {
	DeviceID    string `json:"deviceId,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IssueType   string `json:"issueType"`
	Priority    string `json:"priority,omitempty"`
}

// Viewer identifies who is reading tickets. Staff see every ticket.
type Viewer struct {
	UserID string
	Staff  bool
}

// Filter narrows a ticket listing.
type Filter struct {
	Status   Status
	Priority Priority
	Page     int
	Limit    int
}

// Pagination defaults.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Page is one page of tickets.
type Page struct {
	Tickets    []Ticket   `json:"tickets"`
	Pagination Pagination `json:"pagination"`
}

// Stats counts the tickets visible to a viewer.
type Stats struct {
	Total      int `json:"totalTickets"`
	Open       int `json:"openTickets"`
	InProgress int `json:"inProgressTickets"`
	Completed  int `json:"completedTickets"`
	Urgent     int `json:"urgentTickets"`
}

// EventKind names a ticket change.
type EventKind string

// EventKind constants.
const (
	EventCreated       EventKind = "created"
	EventStatusChanged EventKind = "status-changed"
	EventAssigned      EventKind = "assigned"
)

// Event describes one applied ticket change.
type Event struct {
	Kind   EventKind
	Ticket Ticket
	At     time.Time
}

// Observer receives ticket changes. It must not block.
type Observer interface {
	OnTicketEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnTicketEvent calls f(e).
func (f ObserverFunc) OnTicketEvent(e Event) { f(e) }
