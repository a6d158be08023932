package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/tvmmachans/Customo/internal/validation"
)

const seedPasswordBytes = 16

// SeedAdmin creates the first ADMIN account when no users exist. When
// password is empty a random one is generated, logged once, and returned.
// It returns "" when seeding was skipped.
func SeedAdmin(ctx context.Context, users UserRepository, email, password string, bcryptCost int, logger Logger) (string, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	count, err := users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Debug("users exist, skipping admin seed")
		return "", nil
	}

	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		return "", fmt.Errorf("seeding admin: %w", ErrInvalidEmail)
	}

	generated := password == ""
	if generated {
		buf := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(buf); err != nil { //nolint:govet // shadow
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(buf)
	}
	if err := ValidatePassword(password); err != nil {
		return "", fmt.Errorf("seeding admin: %w", err)
	}

	hash, err := HashPassword(password, bcryptCost)
	if err != nil {
		return "", err
	}

	admin := &User{
		Email:        normalized,
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Administrator",
		Role:         RoleAdmin,
		IsActive:     true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated {
		logger.Warn("seed admin account created",
			"email", normalized,
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "email", normalized)
	}
	return password, nil
}
