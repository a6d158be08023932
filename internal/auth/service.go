package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

const maxProfileField = 100

// Service implements registration, login and token verification.
type Service struct {
	users      UserRepository
	tokens     TokenConfig
	bcryptCost int
	logger     Logger
	now        func() time.Time
}

// NewService creates an auth service.
func NewService(users UserRepository, tokens TokenConfig, bcryptCost int) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Register creates a CUSTOMER account and returns a session for it.
func (s *Service) Register(ctx context.Context, email, password string, profile Profile) (*Session, error) {
	var verr validation.Errors
	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		verr = append(verr, ErrInvalidEmail)
	}
	if err := ValidatePassword(password); err != nil {
		verr.AddErr(err)
	}
	profile = trimProfile(profile)
	if err := validateProfile(profile); err != nil {
		verr.AddErr(err)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        normalized,
		PasswordHash: hash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Phone:        profile.Phone,
		Company:      profile.Company,
		Role:         RoleCustomer,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.issue(user)
}

// Login verifies credentials. Unknown e-mail, wrong password and inactive
// account are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		return nil, ErrInvalidEmail
	}
	if password == "" {
		return nil, ErrMissingPassword
	}

	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		s.logger.Warn("login for inactive account", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Verify checks a bearer token without touching the database.
func (s *Service) Verify(token string) (*Claims, error) {
	return ParseToken(token, s.tokens)
}

// Authenticate verifies token and loads its user, rejecting deleted or
// deactivated accounts.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrTokenInvalid)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// GetUser returns the account with the given id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile replaces the caller's personal fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, profile Profile) (*User, error) {
	profile = trimProfile(profile)
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, userID, profile); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := ValidatePassword(next); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	match, err := VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return err
	}
	if !match {
		return ErrWrongPassword
	}

	hash, err := HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// ListUsers returns one page of accounts for administrators.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]User, int, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, 0, ErrInvalidRole
	}
	return s.users.List(ctx, filter)
}

// SetRole changes another account's role. Administrators cannot demote
// themselves.
func (s *Service) SetRole(ctx context.Context, actorID, userID string, role Role) (*User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if actorID == userID {
		return nil, ErrSelfModification
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}
	s.logger.Info("user role changed", "user_id", userID, "role", role, "by", actorID)
	return s.users.GetByID(ctx, userID)
}

// SetActive enables or disables another account.
func (s *Service) SetActive(ctx context.Context, actorID, userID string, active bool) (*User, error) {
	if actorID == userID {
		return nil, ErrSelfModification
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return nil, err
	}
	s.logger.Info("user active flag changed", "user_id", userID, "active", active, "by", actorID)
	return s.users.GetByID(ctx, userID)
}

func (s *Service) issue(user *User) (*Session, error) {
	token, expires, err := GenerateToken(user, s.tokens, s.now())
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: expires}, nil
}

func trimProfile(p Profile) Profile {
	return Profile{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Phone:     strings.TrimSpace(p.Phone),
		Company:   strings.TrimSpace(p.Company),
	}
}

func validateProfile(p Profile) error {
	for _, v := range []string{p.FirstName, p.LastName, p.Phone, p.Company} {
		if len(v) > maxProfileField {
			return ErrProfileTooLong
		}
	}
	return nil
}
