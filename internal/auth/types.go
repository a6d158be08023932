package auth

import (
	"errors"
	"time"

	"github.com/tvmmachans/Customo/internal/validation"
)

// Role represents an authorisation tier.
type Role string

const (
	// RoleCustomer owns devices, carts, orders and tickets.
	RoleCustomer Role = "CUSTOMER"

	// RoleTechnician additionally works the service-ticket queue and sees
	// fleet-wide device events.
	RoleTechnician Role = "TECHNICIAN"

	// RoleAdmin has full control over catalog, orders and accounts.
	RoleAdmin Role = "ADMIN"
)

var roleRank = map[Role]int{
	RoleCustomer:   1,
	RoleTechnician: 2,
	RoleAdmin:      3,
}

// ValidRoles lists every role in ascending order of privilege.
var ValidRoles = []Role{RoleCustomer, RoleTechnician, RoleAdmin}

// ParseRole rejects unknown role names.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// HasAtLeast reports whether r grants everything required grants.
// Unknown roles grant nothing.
func (r Role) HasAtLeast(required Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[required]
}

// User is an account. PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Company      string    `json:"company,omitempty"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile holds the optional personal fields set at registration or via
// UpdateProfile.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
}

// Session is returned by Register and Login.
type Session struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrEmailExists        = errors.New("user already exists with this email")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrSelfModification   = errors.New("cannot modify own account in this way")

	ErrInvalidEmail    = validation.New("email", "must be a valid email address")
	ErrWeakPassword    = validation.New("password", "must be between 6 and 72 characters")
	ErrInvalidRole     = validation.New("role", "must be one of ADMIN, TECHNICIAN, CUSTOMER")
	ErrWrongPassword   = validation.New("currentPassword", "is incorrect")
	ErrProfileTooLong  = validation.New("profile", "fields must be at most 100 characters")
	ErrMissingPassword = validation.New("password", "is required")
)
