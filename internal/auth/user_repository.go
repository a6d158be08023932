package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tvmmachans/Customo/internal/infrastructure/database"
)

// UserRepository defines the interface for account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter UserFilter) ([]User, int, error)
	UpdateProfile(ctx context.Context, id string, p Profile) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetRole(ctx context.Context, id string, role Role) error
	SetActive(ctx context.Context, id string, active bool) error
	Count(ctx context.Context) (int, error)
}

// UserFilter narrows an admin user listing.
type UserFilter struct {
	Role   Role
	Search string
	Limit  int
	Offset int
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, company, role, is_active, created_at, updated_at`

// Create inserts a new account. The ID is generated if empty.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	user.CreatedAt, user.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash,
		database.NullString(user.FirstName), database.NullString(user.LastName),
		database.NullString(user.Phone), database.NullString(user.Company),
		string(user.Role), database.BoolToInt(user.IsActive),
		database.FormatTime(now), database.FormatTime(now),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetByEmail retrieves a user by normalised e-mail address.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// List returns one page of users, newest first, plus the total match count.
func (r *SQLiteUserRepository) List(ctx context.Context, filter UserFilter) ([]User, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if filter.Role != "" {
		where += ` AND role = ?`
		args = append(args, string(filter.Role))
	}
	if filter.Search != "" {
		where += ` AND (email LIKE ? ESCAPE '\' OR first_name LIKE ? ESCAPE '\' OR last_name LIKE ? ESCAPE '\' OR company LIKE ? ESCAPE '\')`
		like := database.ContainsPattern(filter.Search)
		args = append(args, like, like, like, like)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating users: %w", err)
	}
	return users, total, nil
}

// UpdateProfile replaces the personal fields.
func (r *SQLiteUserRepository) UpdateProfile(ctx context.Context, id string, p Profile) error {
	return r.exec(ctx, "updating profile",
		`UPDATE users SET first_name = ?, last_name = ?, phone = ?, company = ?, updated_at = ? WHERE id = ?`,
		database.NullString(p.FirstName), database.NullString(p.LastName),
		database.NullString(p.Phone), database.NullString(p.Company),
		database.FormatTime(time.Now()), id)
}

// UpdatePassword changes a user's password hash.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, "updating password",
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, database.FormatTime(time.Now()), id)
}

// SetRole changes a user's role.
func (r *SQLiteUserRepository) SetRole(ctx context.Context, id string, role Role) error {
	return r.exec(ctx, "updating role",
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), database.FormatTime(time.Now()), id)
}

// SetActive enables or disables an account.
func (r *SQLiteUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, "updating active flag",
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		database.BoolToInt(active), database.FormatTime(time.Now()), id)
}

// Count returns the total number of accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func (r *SQLiteUserRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var u User
	var first, last, phone, company sql.NullString
	var role string
	var active int
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &first, &last, &phone, &company,
		&role, &active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.FirstName, u.LastName = first.String, last.String
	u.Phone, u.Company = phone.String, company.String
	u.Role = Role(role)
	u.IsActive = active != 0
	if u.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &u, nil
}
