package ticket

import (
	"errors"

	"github.com/tvmmachans/Customo/internal/validation"
)

// Domain errors for the ticket package.
var (
	// ErrTicketNotFound is returned when a ticket does not exist or is not
	// visible to the requester.
	ErrTicketNotFound = errors.New("ticket: not found")

	// ErrStatusConflict is returned when the ticket's status changed
	// between reading it and saving it.
	ErrStatusConflict = errors.New("ticket: status changed concurrently")

	ErrInvalidTitle       = validation.New("title", "is required and must not exceed 200 characters")
	ErrInvalidDescription = validation.New("description", "is required")
	ErrInvalidIssueType   = validation.New("issueType", "is required and must not exceed 100 characters")
	ErrInvalidPriority    = validation.New("priority", "must be one of LOW, MEDIUM, HIGH, URGENT")
	ErrInvalidStatus      = validation.New("status", "must be one of OPEN, IN_PROGRESS, COMPLETED, CANCELLED")
	ErrInvalidTransition  = validation.New("status", "transition not allowed from the current status")
	ErrInvalidTechnician  = validation.New("technicianId", "must reference an active technician or admin")
	ErrNotCancellable     = validation.New("status", "only open tickets can be cancelled")
)
