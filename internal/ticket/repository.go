package ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tvmmachans/Customo/internal/infrastructure/database"
)

// Repository defines the persistence operations for tickets.
type Repository interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id string) (*Ticket, error)

	// List returns one page of tickets, newest first. An empty ownerID
	// lists every ticket.
	List(ctx context.Context, ownerID string, filter Filter) ([]Ticket, int, error)

	// Save writes the mutable lifecycle columns, provided the stored
	// status still equals expected.
	Save(ctx context.Context, t *Ticket, expected Status) error

	// Stats counts tickets. An empty ownerID counts every ticket.
	Stats(ctx context.Context, ownerID string) (Stats, error)

	// DeviceOwned reports whether deviceID belongs to userID.
	DeviceOwned(ctx context.Context, userID, deviceID string) (bool, error)

	// IsStaff reports whether userID is an active technician or admin.
	IsStaff(ctx context.Context, userID string) (bool, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const ticketColumns = `id, ticket_number, user_id, device_id, title, description, issue_type, priority,
	status, assigned_to, scheduled_date, completed_at, created_at, updated_at`

// Create inserts a ticket. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, t *Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO service_tickets (`+ticketColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TicketNumber, t.UserID, nullID(t.DeviceID), t.Title, t.Description, t.IssueType,
		string(t.Priority), string(t.Status), nullID(t.AssignedTo),
		database.NullTime(t.ScheduledDate), database.NullTime(t.CompletedAt),
		database.FormatTime(t.CreatedAt), database.FormatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating ticket: %w", err)
	}
	return nil
}

// GetByID retrieves a ticket by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Ticket, error) {
	return scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM service_tickets WHERE id = ?`, id))
}

// List returns one page of tickets.
func (r *SQLiteRepository) List(ctx context.Context, ownerID string, f Filter) ([]Ticket, int, error) {
	where := ` WHERE 1 = 1`
	var args []any
	if ownerID != "" {
		where += ` AND user_id = ?`
		args = append(args, ownerID)
	}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where += ` AND priority = ?`
		args = append(args, string(f.Priority))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_tickets`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting tickets: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM service_tickets`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, f.Limit, (f.Page-1)*f.Limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing tickets: %w", err)
	}
	defer rows.Close()

	tickets := []Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating tickets: %w", err)
	}
	return tickets, total, nil
}

// Save writes status, assignment, schedule and completion. The update is
// conditional on the stored status: ErrStatusConflict means another
// request moved the ticket first.
func (r *SQLiteRepository) Save(ctx context.Context, t *Ticket, expected Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE service_tickets SET status = ?, priority = ?, assigned_to = ?, scheduled_date = ?,
			completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(t.Status), string(t.Priority), nullID(t.AssignedTo), database.NullTime(t.ScheduledDate),
		database.NullTime(t.CompletedAt), database.FormatTime(t.UpdatedAt), t.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("updating ticket: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_tickets WHERE id = ?`, t.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking ticket: %w", err)
	}
	if exists == 0 {
		return ErrTicketNotFound
	}
	return fmt.Errorf("%s expected %s: %w", t.TicketNumber, expected, ErrStatusConflict)
}

// Stats counts tickets by state.
func (r *SQLiteRepository) Stats(ctx context.Context, ownerID string) (Stats, error) {
	query := `SELECT COUNT(*),
			COALESCE(SUM(status = 'OPEN'), 0),
			COALESCE(SUM(status = 'IN_PROGRESS'), 0),
			COALESCE(SUM(status = 'COMPLETED'), 0),
			COALESCE(SUM(priority = 'URGENT' AND status IN ('OPEN', 'IN_PROGRESS')), 0)
		FROM service_tickets`
	var args []any
	if ownerID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, ownerID)
	}
	var s Stats
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.Total, &s.Open, &s.InProgress, &s.Completed, &s.Urgent); err != nil {
		return Stats{}, fmt.Errorf("ticket stats: %w", err)
	}
	return s, nil
}

// DeviceOwned reports whether deviceID belongs to userID.
func (r *SQLiteRepository) DeviceOwned(ctx context.Context, userID, deviceID string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM devices WHERE id = ? AND user_id = ?`, deviceID, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("checking device owner: %w", err)
	}
	return n > 0, nil
}

// IsStaff reports whether userID is an active technician or admin.
func (r *SQLiteRepository) IsStaff(ctx context.Context, userID string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE id = ? AND is_active = 1 AND role IN ('TECHNICIAN', 'ADMIN')`,
		userID).Scan(&n); err != nil {
		return false, fmt.Errorf("checking technician: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(s scanner) (*Ticket, error) {
	var t Ticket
	var priority, status, createdAt, updatedAt string
	var deviceID, assignedTo, scheduled, completed sql.NullString

	err := s.Scan(&t.ID, &t.TicketNumber, &t.UserID, &deviceID, &t.Title, &t.Description, &t.IssueType,
		&priority, &status, &assignedTo, &scheduled, &completed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("scanning ticket: %w", err)
	}

	t.Priority = Priority(priority)
	t.Status = Status(status)
	if deviceID.Valid {
		t.DeviceID = &deviceID.String
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.String
	}
	if t.ScheduledDate, err = database.ParseNullTime(scheduled); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = database.ParseNullTime(completed); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func nullID(id *string) any {
	if id == nil || *id == "" {
		return nil
	}
	return *id
}
