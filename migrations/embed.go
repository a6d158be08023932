// Package migrations embeds the SQL schema migrations into the binary.
//
// Importing this package (usually for side effects) registers the files
// with the database package so DB.Migrate can apply them.
package migrations

import (
	"embed"

	"github.com/tvmmachans/Customo/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
