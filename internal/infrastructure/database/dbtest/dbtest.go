// Package dbtest opens a migrated in-memory database for package tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/tvmmachans/Customo/internal/infrastructure/database"
	_ "github.com/tvmmachans/Customo/migrations" // registers the schema
)

// Open returns a fresh in-memory database with every migration applied.
// It is closed when the test completes.
func Open(tb testing.TB) *database.DB {
	tb.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 5})
	if err != nil {
		tb.Fatalf("opening test database: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		tb.Fatalf("migrating test database: %v", err)
	}
	return db
}
