package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/infrastructure/config"
)

type failingChecker struct{}

func (failingChecker) HealthCheck(context.Context) error { return errors.New("unreachable") }

type okChecker struct{}

func (okChecker) HealthCheck(context.Context) error { return nil }

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("New(Deps{}) should fail")
	}
}

// ─── Health ────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t)
		env.srv.components = map[string]HealthChecker{"mqtt": okChecker{}, "influxdb": failingChecker{}}

		w, _ := env.do(t, http.MethodGet, "/api/health", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var h healthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if h.Status != healthOK {
			t.Errorf("Status = %q, want %q", h.Status, healthOK)
		}
		if h.Environment != config.EnvTest {
			t.Errorf("Environment = %q, want %q", h.Environment, config.EnvTest)
		}
		want := map[string]string{"database": "ok", "mqtt": "ok", "influxdb": "unavailable"}
		for k, v := range want {
			if h.Components[k] != v {
				t.Errorf("Components[%q] = %q, want %q", k, h.Components[k], v)
			}
		}
	})

	t.Run("database down", func(t *testing.T) {
		env := newTestEnv(t)
		env.srv.db = failingChecker{}

		w, _ := env.do(t, http.MethodGet, "/health", "", nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
		var h healthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if h.Status != healthDegraded {
			t.Errorf("Status = %q, want %q", h.Status, healthDegraded)
		}
	})
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	t.Run("generated", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/health", "", nil)
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
			t.Errorf("X-Request-ID = %q, want abc-123", got)
		}
	})

	t.Run("oversized replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		if got := w.Header().Get("X-Request-ID"); len(got) > 128 || got == "" {
			t.Errorf("X-Request-ID length = %d, want a fresh id", len(got))
		}
	})
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/devices", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("unknown origin gets no grant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})
}

func TestNotFoundEnvelope(t *testing.T) {
	env := newTestEnv(t)
	w, resp := env.do(t, http.MethodGet, "/api/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if resp.Success || resp.Message != "Route not found" {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestInvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBodySizeLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.API.MaxBodyBytes = 64 })

	body := `{"email":"a@example.com","password":"` + strings.Repeat("p", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/health", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "customo_http_requests_total") {
		t.Error("metrics output missing customo_http_requests_total")
	}
}

// ─── Rate limiting ─────────────────────────────────────────────────

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.RateLimit.Auth = config.RateLimitRule{Enabled: true, WindowSeconds: 900, MaxRequests: 2}
	})
	creds := map[string]string{"email": "nobody@example.com", "password": "whatever1"}

	for i := 0; i < 2; i++ {
		env.mustDo(t, http.StatusUnauthorized, http.MethodPost, "/api/auth/login", "", creds)
	}
	w, resp := env.do(t, http.MethodPost, "/api/auth/login", "", creds)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if !strings.HasPrefix(resp.Message, "Too many requests") {
		t.Errorf("Message = %q", resp.Message)
	}

	// Other scopes are unaffected.
	env.mustDo(t, http.StatusOK, http.MethodGet, "/api/products", "", nil)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter("test", config.RateLimitRule{Enabled: true, WindowSeconds: 60, MaxRequests: 1}, nil, nil)
	rl.now = func() time.Time { return now }

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("second request inside the window should be refused")
	}

	rl.cleanup()
	if rl.size() != 1 {
		t.Fatalf("size() after early cleanup = %d, want 1", rl.size())
	}

	now = now.Add(3 * limiterCleanupInterval)
	rl.cleanup()
	if rl.size() != 0 {
		t.Errorf("size() after idle cleanup = %d, want 0", rl.size())
	}
}

// ─── Auth ──────────────────────────────────────────────────────────

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register(t, "alice@example.com")

	t.Run("duplicate email", func(t *testing.T) {
		env.mustDo(t, http.StatusConflict, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "ALICE@example.com", "password": testPassword,
		})
	})

	t.Run("weak password", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusBadRequest, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "weak@example.com", "password": "short",
		})
		if len(resp.Errors) == 0 {
			t.Error("expected field errors")
		}
	})

	t.Run("login", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusOK, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": testPassword,
		})
		var session struct {
			Token string `json:"token"`
		}
		decodeData(t, resp, &session)
		if session.Token == "" {
			t.Fatal("login returned no token")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		env.mustDo(t, http.StatusUnauthorized, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "Wrong0000",
		})
	})

	t.Run("me", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusOK, http.MethodGet, "/api/auth/me", token, nil)
		var out struct {
			User auth.User `json:"user"`
		}
		decodeData(t, resp, &out)
		if out.User.ID != userID || out.User.Email != "alice@example.com" {
			t.Errorf("me = %+v, want id %s", out.User, userID)
		}
		if out.User.Role != auth.RoleCustomer {
			t.Errorf("Role = %q, want CUSTOMER", out.User.Role)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
		if w.Code != http.StatusUnauthorized || resp.Message != msgTokenMissing {
			t.Errorf("got %d %q, want 401 %q", w.Code, resp.Message, msgTokenMissing)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/auth/me", "not.a.jwt", nil)
		if w.Code != http.StatusUnauthorized || resp.Message != msgTokenInvalid {
			t.Errorf("got %d %q, want 401 %q", w.Code, resp.Message, msgTokenInvalid)
		}
	})

	t.Run("change password", func(t *testing.T) {
		env.mustDo(t, http.StatusOK, http.MethodPut, "/api/auth/change-password", token, map[string]string{
			"currentPassword": testPassword, "newPassword": "N3wPassword",
		})
		env.mustDo(t, http.StatusOK, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "N3wPassword",
		})
	})
}

func TestDeactivatedUserLosesAccess(t *testing.T) {
	env := newTestEnv(t)
	adminToken, adminID := env.register(t, "admin@example.com")
	env.promote(t, adminID, auth.RoleAdmin)
	token, userID := env.register(t, "bob@example.com")

	env.mustDo(t, http.StatusOK, http.MethodPut, "/api/admin/users/"+userID+"/active", adminToken, map[string]bool{"isActive": false})

	env.mustDo(t, http.StatusUnauthorized, http.MethodGet, "/api/auth/me", token, nil)
}

// ─── Authorization ─────────────────────────────────────────────────

func TestRoleChecks(t *testing.T) {
	env := newTestEnv(t)
	customer, _ := env.register(t, "cust@example.com")
	adminToken, adminID := env.register(t, "admin@example.com")
	env.promote(t, adminID, auth.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"customer creates product", http.MethodPost, "/api/products", customer, http.StatusForbidden},
		{"customer lists users", http.MethodGet, "/api/admin/users", customer, http.StatusForbidden},
		{"anonymous lists users", http.MethodGet, "/api/admin/users", "", http.StatusUnauthorized},
		{"admin lists users", http.MethodGet, "/api/admin/users", adminToken, http.StatusOK},
		{"customer moves ticket", http.MethodPut, "/api/service/tickets/x/status", customer, http.StatusForbidden},
		{"customer updates order", http.MethodPut, "/api/orders/x/status", customer, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, tt.method, tt.path, tt.token, map[string]string{})
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusForbidden && resp.Message != msgForbidden {
				t.Errorf("Message = %q, want %q", resp.Message, msgForbidden)
			}
		})
	}
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t)
	adminToken, adminID := env.register(t, "admin@example.com")
	env.promote(t, adminID, auth.RoleAdmin)
	_, techID := env.register(t, "tech@example.com")

	t.Run("promote to technician", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusOK, http.MethodPut, "/api/admin/users/"+techID+"/role", adminToken, map[string]string{"role": "technician"})
		var out struct {
			User auth.User `json:"user"`
		}
		decodeData(t, resp, &out)
		if out.User.Role != auth.RoleTechnician {
			t.Errorf("Role = %q, want TECHNICIAN", out.User.Role)
		}
	})

	t.Run("filter by role", func(t *testing.T) {
		resp := env.mustDo(t, http.StatusOK, http.MethodGet, "/api/admin/users?role=TECHNICIAN", adminToken, nil)
		var out struct {
			Users []auth.User `json:"users"`
		}
		decodeData(t, resp, &out)
		if len(out.Users) != 1 || out.Users[0].ID != techID {
			t.Errorf("users = %+v, want only the technician", out.Users)
		}
	})

	t.Run("self demotion refused", func(t *testing.T) {
		env.mustDo(t, http.StatusBadRequest, http.MethodPut, "/api/admin/users/"+adminID+"/role", adminToken, map[string]string{"role": "CUSTOMER"})
	})

	t.Run("unknown user", func(t *testing.T) {
		env.mustDo(t, http.StatusNotFound, http.MethodPut, "/api/admin/users/missing/role", adminToken, map[string]string{"role": "CUSTOMER"})
	})

	t.Run("changes are audited", func(t *testing.T) {
		env.mustDo(t, http.StatusOK, http.MethodPut, "/api/admin/users/"+techID+"/active", adminToken, map[string]bool{"isActive": false})

		resp := env.mustDo(t, http.StatusOK, http.MethodGet, "/api/admin/audit?entityType=user", adminToken, nil)
		var out struct {
			Logs []audit.Entry `json:"logs"`
		}
		decodeData(t, resp, &out)
		if len(out.Logs) != 2 {
			t.Fatalf("audit = %d entries, want role change and deactivation", len(out.Logs))
		}
		deactivated, promoted := out.Logs[0], out.Logs[1]
		if deactivated.Action != audit.ActionDeactivate || promoted.Action != audit.ActionRole {
			t.Errorf("actions = %q, %q; want deactivate, role", deactivated.Action, promoted.Action)
		}
		if promoted.EntityID != techID || promoted.ActorID != adminID || promoted.Details["role"] != "TECHNICIAN" {
			t.Errorf("role entry = %+v", promoted)
		}
		if promoted.Details["requestId"] == nil {
			t.Error("role entry has no requestId")
		}
	})
}
