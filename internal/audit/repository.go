package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tvmmachans/Customo/internal/infrastructure/database"
)

// Page size bounds for audit queries.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Repository defines the interface for audit log operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, int, error)
}

// SQLiteRepository stores audit entries in the audit_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new audit entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var details any
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, actor_id, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.EntityType,
		database.NullString(e.EntityID), database.NullString(e.ActorID),
		string(e.Source), details,
		database.FormatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first, and the total
// number of matches.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	filter = filter.normalise()

	var conditions []string
	var args []any
	for col, v := range map[string]string{
		"action":      filter.Action,
		"entity_type": filter.EntityType,
		"entity_id":   filter.EntityID,
		"actor_id":    filter.ActorID,
	} {
		if v != "" {
			conditions = append(conditions, col+" = ?")
			args = append(args, v)
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	//nolint:gosec // WHERE built from fixed column names with ? placeholders
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit logs: %w", err)
	}

	//nolint:gosec // WHERE built from fixed column names with ? placeholders
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, entity_type, entity_id, actor_id, source, details, created_at
		 FROM audit_logs`+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var entityID, actorID, details sql.NullString
		var source, createdAt string

		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType,
			&entityID, &actorID, &source, &details, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scanning audit log: %w", err)
		}
		e.EntityID = entityID.String
		e.ActorID = actorID.String
		e.Source = Source(source)
		if details.Valid && details.String != "" {
			// A malformed details column is dropped rather than failing the page.
			_ = json.Unmarshal([]byte(details.String), &e.Details)
		}
		if e.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, 0, fmt.Errorf("parsing audit log timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating audit logs: %w", err)
	}

	return entries, total, nil
}
