package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tvmmachans/Customo/internal/infrastructure/database"
)

// Repository defines the persistence operations the Registry needs.
// Owner-scoped methods match on both id and owner so a foreign device is
// indistinguishable from a missing one.
type Repository interface {
	// GetByID retrieves a device regardless of owner.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetForOwner retrieves a device owned by ownerID.
	GetForOwner(ctx context.Context, ownerID, id string) (*Device, error)

	// List returns one page of an owner's devices, newest first, and the
	// total match count. The filter must already be normalised.
	List(ctx context.Context, ownerID string, filter ListFilter) ([]Device, int, error)

	// Create inserts a new device.
	Create(ctx context.Context, device *Device) error

	// Save writes every mutable column of device as one row update.
	Save(ctx context.Context, device *Device) error

	// Delete removes an owner's device. Its logs cascade.
	Delete(ctx context.Context, ownerID, id string) error

	// Stats aggregates an owner's fleet.
	Stats(ctx context.Context, ownerID string, lowBattery int) (Stats, error)

	// AppendLog records a device log entry.
	AppendLog(ctx context.Context, entry *LogEntry) error

	// Logs returns the newest entries for a device.
	Logs(ctx context.Context, deviceID string, limit int) ([]LogEntry, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, type, status, battery, location, is_online, tasks,
	last_seen, user_id, product_id, created_at, updated_at`

// GetByID retrieves a device by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	return scanDevice(row)
}

// GetForOwner retrieves a device owned by ownerID.
func (r *SQLiteRepository) GetForOwner(ctx context.Context, ownerID, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ? AND user_id = ?`, id, ownerID)
	return scanDevice(row)
}

// List returns one page of an owner's devices.
func (r *SQLiteRepository) List(ctx context.Context, ownerID string, f ListFilter) ([]Device, int, error) {
	where := ` WHERE user_id = ?`
	args := []any{ownerID}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		where += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.Online != nil {
		where += ` AND is_online = ?`
		args = append(args, database.BoolToInt(*f.Online))
	}
	if f.Search != "" {
		where += ` AND (name LIKE ? ESCAPE '\' OR type LIKE ? ESCAPE '\' OR location LIKE ? ESCAPE '\')`
		like := database.ContainsPattern(f.Search)
		args = append(args, like, like, like)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting devices: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, f.Limit, (f.Page-1)*f.Limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, total, nil
}

// Create inserts a new device. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Type, string(d.Status), d.Battery, database.NullString(d.Location),
		database.BoolToInt(d.IsOnline), database.NullString(d.Tasks),
		database.FormatTime(d.LastSeen), d.UserID, productArg(d.ProductID),
		database.FormatTime(d.CreatedAt), database.FormatTime(d.UpdatedAt),
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrUnknownProduct
		}
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

// Save writes every mutable column in one statement.
func (r *SQLiteRepository) Save(ctx context.Context, d *Device) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET name = ?, type = ?, status = ?, battery = ?, location = ?,
			is_online = ?, tasks = ?, last_seen = ?, product_id = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		d.Name, d.Type, string(d.Status), d.Battery, database.NullString(d.Location),
		database.BoolToInt(d.IsOnline), database.NullString(d.Tasks),
		database.FormatTime(d.LastSeen), productArg(d.ProductID), database.FormatTime(d.UpdatedAt),
		d.ID, d.UserID,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrUnknownProduct
		}
		return fmt.Errorf("updating device: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes an owner's device.
func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Stats aggregates an owner's fleet in one query.
func (r *SQLiteRepository) Stats(ctx context.Context, ownerID string, lowBattery int) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(status = 'ACTIVE'), 0),
			COALESCE(SUM(is_online), 0),
			COALESCE(SUM(status = 'MAINTENANCE'), 0),
			COALESCE(SUM(battery <= ?), 0)
		 FROM devices WHERE user_id = ?`, lowBattery, ownerID,
	).Scan(&s.Total, &s.Active, &s.Online, &s.Maintenance, &s.LowBattery)
	if err != nil {
		return Stats{}, fmt.Errorf("device stats: %w", err)
	}
	return s, nil
}

// AppendLog records a device log entry.
func (r *SQLiteRepository) AppendLog(ctx context.Context, e *LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_logs (id, device_id, level, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.DeviceID, string(e.Level), e.Message, database.NullString(e.Details),
		database.FormatTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("appending device log: %w", err)
	}
	return nil
}

// Logs returns up to limit entries, newest first.
func (r *SQLiteRepository) Logs(ctx context.Context, deviceID string, limit int) ([]LogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, level, message, details, created_at FROM device_logs
		 WHERE device_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing device logs: %w", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		var level, createdAt string
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.DeviceID, &level, &e.Message, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning device log: %w", err)
		}
		e.Level = LogLevel(level)
		e.Details = details.String
		if e.Timestamp, err = database.ParseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device logs: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var status string
	var location, tasks, productID sql.NullString
	var online int
	var lastSeen, createdAt, updatedAt string

	err := s.Scan(&d.ID, &d.Name, &d.Type, &status, &d.Battery, &location, &online, &tasks,
		&lastSeen, &d.UserID, &productID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.Status = Status(status)
	d.IsOnline = online != 0
	d.Location = location.String
	d.Tasks = tasks.String
	if productID.Valid {
		d.ProductID = &productID.String
	}
	if d.LastSeen, err = database.ParseTime(lastSeen); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func productArg(id *string) any {
	if id == nil || *id == "" {
		return nil
	}
	return *id
}
