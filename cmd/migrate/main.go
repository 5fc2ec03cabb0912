package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/shanehull/idxscraper/internal/platform/config"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/migrations"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	logger.Init(logger.FromEnv())
	log := logger.Named("migrate")

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-config file] <command>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  up          Migrate to the latest version")
		fmt.Fprintln(os.Stderr, "  up-one      Migrate one version up")
		fmt.Fprintln(os.Stderr, "  down        Roll back one version")
		fmt.Fprintln(os.Stderr, "  status      Show migration status")
		fmt.Fprintln(os.Stderr, "  version     Show current version")
		fmt.Fprintln(os.Stderr, "  reset       Roll back all migrations")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath, config.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	var (
		driver, dsn string
		dialect     migrations.Dialect
	)
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		driver, dsn, dialect = "pgx", cfg.Store.DSN, migrations.Postgres
	case config.BackendSQLite:
		driver, dsn, dialect = "sqlite", cfg.Store.SQLitePath, migrations.SQLite
	default:
		log.Fatal().Str("backend", cfg.Store.Backend).Msg("backend has no migrations")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer func() { _ = db.Close() }()

	dir, err := migrations.Setup(dialect)
	if err != nil {
		log.Fatal().Err(err).Msg("set up migrations")
	}

	cmd := args[0]
	switch cmd {
	case "up":
		err = goose.Up(db, dir)
	case "up-one":
		err = goose.UpByOne(db, dir)
	case "down":
		err = goose.Down(db, dir)
	case "status":
		err = goose.Status(db, dir)
	case "version":
		err = goose.Version(db, dir)
	case "reset":
		err = goose.Reset(db, dir)
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command")
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}
}
