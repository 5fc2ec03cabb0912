// Package migrations embeds the SQL migration files for each supported backend.
package migrations

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"

	perr "github.com/shanehull/idxscraper/internal/platform/errors"
)

// FS contains the embedded SQL migration files, one directory per dialect.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Dialect names a migration set
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) goose() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "postgres"
}

// Setup points goose at the embedded files for d and returns the directory to pass to goose commands.
func Setup(d Dialect) (string, error) {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect(d.goose()); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeDB, "set dialect")
	}
	return string(d), nil
}

// Run applies all pending migrations to the given database.
func Run(db *sql.DB, d Dialect) error {
	dir, err := Setup(d)
	if err != nil {
		return err
	}
	if err := goose.Up(db, dir); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "run migrations")
	}
	return nil
}
