// Package database provides SQLite connectivity and schema migrations for
// Customo Core.
//
// This package manages:
//   - Database connection with WAL mode and foreign keys enabled
//   - Forward/backward schema migrations from an embedded filesystem
//   - Transaction helpers used by multi-row writes (checkout, cancellation)
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Passing MemoryPath opens a private in-memory database; tests use it with
// the real migrations.
package database
