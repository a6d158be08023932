package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseToken(t *testing.T) {
	user := &User{ID: "usr-001", Email: "alice@example.com", Role: RoleAdmin}
	cfg := testTokenConfig()
	now := time.Now()

	token, expires, err := GenerateToken(user, cfg, now)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}
	if !expires.Equal(now.Add(time.Hour)) {
		t.Errorf("expires = %v, want %v", expires, now.Add(time.Hour))
	}

	claims, err := ParseToken(token, cfg)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "usr-001" {
		t.Errorf("Subject = %q, want usr-001", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want ADMIN", claims.Role)
	}
	if claims.Issuer != "customo-api" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI should not be empty")
	}
}

func TestParseToken_Rejections(t *testing.T) {
	user := &User{ID: "usr-001", Email: "a@example.com", Role: RoleCustomer}
	cfg := testTokenConfig()

	valid, _, err := GenerateToken(user, cfg, time.Now())
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	wrongSecret := cfg
	wrongSecret.Secret = []byte("another-secret-key-of-enough-length")
	wrongIssuer := cfg
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := cfg
	wrongAudience.Audience = "other-clients"

	tests := []struct {
		name  string
		token string
		cfg   TokenConfig
	}{
		{"empty", "", cfg},
		{"garbage", "not-a-valid-jwt", cfg},
		{"two segments", "abc.def", cfg},
		{"wrong secret", valid, wrongSecret},
		{"wrong issuer", valid, wrongIssuer},
		{"wrong audience", valid, wrongAudience},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.cfg)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestParseToken_Expired(t *testing.T) {
	user := &User{ID: "usr-001", Role: RoleCustomer}
	cfg := testTokenConfig()

	token, _, err := GenerateToken(user, cfg, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	_, err = ParseToken(token, cfg)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("ParseToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestParseToken_AlgorithmNone(t *testing.T) {
	cfg := testTokenConfig()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr-001",
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	if _, err := ParseToken(token, cfg); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(alg=none) error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_MissingExpiry(t *testing.T) {
	cfg := testTokenConfig()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "usr-001",
			Issuer:   cfg.Issuer,
			Audience: jwt.ClaimStrings{cfg.Audience},
		},
		Role: RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := ParseToken(token, cfg); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(no exp) error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_UnknownRole(t *testing.T) {
	cfg := testTokenConfig()
	token, _, err := GenerateToken(&User{ID: "usr-001", Role: Role("owner")}, cfg, time.Now())
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := ParseToken(token, cfg); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}
