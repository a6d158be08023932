package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tvmmachans/Customo/internal/infrastructure/database/dbtest"
)

const testPassword = "Passw0rd"

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:   []byte("test-secret-key-for-jwt-signing-32b"),
		Issuer:   "customo-api",
		Audience: "customo-clients",
		TTL:      time.Hour,
	}
}

// testRepo returns a user repository over a fresh migrated database.
func testRepo(t *testing.T) *SQLiteUserRepository {
	t.Helper()
	return NewUserRepository(dbtest.Open(t).DB)
}

func testService(t *testing.T) (*Service, *SQLiteUserRepository) {
	t.Helper()
	repo := testRepo(t)
	return NewService(repo, testTokenConfig(), bcrypt.MinCost), repo
}

// seedTestUser inserts an active user with testPassword.
func seedTestUser(t *testing.T, repo UserRepository, email string, role Role) *User {
	t.Helper()

	hash, err := HashPassword(testPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := repo.Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}
