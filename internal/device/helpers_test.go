package device

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tvmmachans/Customo/internal/infrastructure/database"
	"github.com/tvmmachans/Customo/internal/infrastructure/database/dbtest"
)

// testRegistry returns a registry over a fresh database with a fixed,
// manually advanced clock.
func testRegistry(t *testing.T) (*Registry, *SQLiteRepository, *sql.DB) {
	t.Helper()
	db := dbtest.Open(t).DB
	repo := NewSQLiteRepository(db)
	reg := NewRegistry(repo)

	clock := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	reg.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return reg, repo, db
}

// insertUser creates a bare users row so devices can reference it.
func insertUser(t *testing.T, db *sql.DB, email string) string {
	t.Helper()
	id := uuid.NewString()
	now := database.FormatTime(time.Now())
	_, err := db.ExecContext(t.Context(),
		`INSERT INTO users (id, email, password_hash, role, is_active, created_at, updated_at)
		 VALUES (?, ?, 'x', 'CUSTOMER', 1, ?, ?)`, id, email, now, now)
	if err != nil {
		t.Fatalf("inserting user %s: %v", email, err)
	}
	return id
}

func createDevice(t *testing.T, reg *Registry, owner string, in CreateInput) *Device {
	t.Helper()
	d, err := reg.Create(t.Context(), owner, in)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", in.Name, err)
	}
	return d
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// recorder collects events in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnDeviceEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}
