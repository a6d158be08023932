package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/catalog"
	"github.com/tvmmachans/Customo/internal/commerce"
	"github.com/tvmmachans/Customo/internal/device"
	"github.com/tvmmachans/Customo/internal/infrastructure/config"
	"github.com/tvmmachans/Customo/internal/infrastructure/database"
	"github.com/tvmmachans/Customo/internal/infrastructure/database/dbtest"
	"github.com/tvmmachans/Customo/internal/infrastructure/logging"
	"github.com/tvmmachans/Customo/internal/metrics"
	"github.com/tvmmachans/Customo/internal/ticket"
	"github.com/tvmmachans/Customo/internal/validation"
)

const testPassword = "Passw0rd"

// testEnv is a fully wired server over an in-memory database.
type testEnv struct {
	srv      *Server
	handler  http.Handler
	db       *database.DB
	registry *device.Registry
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: config.EnvTest,
		API: config.APIConfig{
			Host:         "127.0.0.1",
			Port:         0,
			Timeouts:     config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
			CORS:         config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
			MaxBodyBytes: 1 << 20,
		},
		WebSocket: config.WebSocketConfig{
			Path:           "/api/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:   "test-secret-key-at-least-32-characters-long",
				TokenTTL: 60,
				Issuer:   "customo-api",
				Audience: "customo-clients",
			},
		},
		Devices: config.DevicesConfig{LowBatteryThreshold: device.DefaultLowBatteryThreshold},
	}
}

// newTestEnv builds the server. mutate, when given, adjusts the config first.
func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	db := dbtest.Open(t)
	tokens := auth.TokenConfig{
		Secret:   []byte(cfg.Security.JWT.Secret),
		Issuer:   cfg.Security.JWT.Issuer,
		Audience: cfg.Security.JWT.Audience,
		TTL:      cfg.GetTokenTTL(),
	}
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	registry.AddObserver(collector)

	srv, err := New(Deps{
		Config:         cfg,
		Logger:         logging.Nop(),
		Database:       db,
		Auth:           auth.NewService(auth.NewUserRepository(db.DB), tokens, bcrypt.MinCost),
		Devices:        registry,
		Catalog:        catalog.NewService(catalog.NewSQLiteRepository(db.DB)),
		Commerce:       commerce.NewService(commerce.NewSQLiteRepository(db.DB)),
		Tickets:        ticket.NewService(ticket.NewSQLiteRepository(db.DB)),
		Audit:          audit.NewTrail(audit.NewSQLiteRepository(db.DB)),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		Version:        "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	return &testEnv{srv: srv, handler: srv.Handler(), db: db, registry: registry}
}

// apiResponse mirrors the envelope with Data left raw.
type apiResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Data    json.RawMessage         `json:"data"`
	Errors  []validation.FieldError `json:"errors"`
}

// do sends a request through the router and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: decoding response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, resp
}

// mustDo is do plus a status assertion.
func (e *testEnv) mustDo(t *testing.T, want int, method, path, token string, body any) apiResponse {
	t.Helper()
	w, resp := e.do(t, method, path, token, body)
	if w.Code != want {
		t.Fatalf("%s %s: status = %d, want %d (body %s)", method, path, w.Code, want, w.Body.String())
	}
	return resp
}

func decodeData(t *testing.T, resp apiResponse, v any) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decoding data %s: %v", resp.Data, err)
	}
}

// register creates an account through the API and returns its token and id.
func (e *testEnv) register(t *testing.T, email string) (token, userID string) {
	t.Helper()
	resp := e.mustDo(t, http.StatusCreated, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":     email,
		"password":  testPassword,
		"firstName": "Test",
	})
	var session struct {
		Token string    `json:"token"`
		User  auth.User `json:"user"`
	}
	decodeData(t, resp, &session)
	return session.Token, session.User.ID
}

// promote changes a user's role directly in storage.
func (e *testEnv) promote(t *testing.T, userID string, role auth.Role) {
	t.Helper()
	if _, err := e.db.Exec(`UPDATE users SET role = ? WHERE id = ?`, string(role), userID); err != nil {
		t.Fatalf("promoting user: %v", err)
	}
}

// createDevice registers a device through the API.
func (e *testEnv) createDevice(t *testing.T, token, name, typ string) device.Device {
	t.Helper()
	resp := e.mustDo(t, http.StatusCreated, http.MethodPost, "/api/devices", token, map[string]any{
		"name": name,
		"type": typ,
	})
	var out struct {
		Device device.Device `json:"device"`
	}
	decodeData(t, resp, &out)
	return out.Device
}

// ─── WebSocket helpers ─────────────────────────────────────────────

// wsFrame is a decoded server → client message.
type wsFrame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (f wsFrame) devicePayload(t *testing.T) DevicePayload {
	t.Helper()
	var p DevicePayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("decoding %s payload: %v", f.Type, err)
	}
	return p
}

// startListener serves the env's router on a real socket.
func (e *testEnv) startListener(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(e.handler)
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

// dialWS connects with a query-string token and consumes the connected
// acknowledgement.
func dialWS(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+token), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	readUntil(t, conn, MsgConnected)
	return conn
}

// sendFrame writes a client → server frame.
func sendFrame(t *testing.T, conn *websocket.Conn, msgType, id string, payload any) {
	t.Helper()
	frame := map[string]any{"type": msgType, "id": id}
	if payload != nil {
		frame["payload"] = payload
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("writing %s frame: %v", msgType, err)
	}
}

// readUntil reads frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) wsFrame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("setting read deadline: %v", err)
		}
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if f.Type == want {
			return f
		}
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for !cond() {
		select {
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
