// Package store opens the configured filings.Store backend
package store

import (
	"context"
	"net/http"

	"github.com/shanehull/idxscraper/internal/filings"
	"github.com/shanehull/idxscraper/internal/platform/config"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/store/memory"
	"github.com/shanehull/idxscraper/internal/store/postgres"
	"github.com/shanehull/idxscraper/internal/store/postgrest"
	"github.com/shanehull/idxscraper/internal/store/sqlite"
)

// Store is a filings.Store holding a connection that must be released
type Store interface {
	filings.Store
	Close() error
}

var openPostgres = func(ctx context.Context, cfg config.Store) (Store, error) {
	s, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Open returns the backend named by cfg.Backend
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	switch cfg.Backend {
	case config.BackendPostgREST:
		return postgrest.New(&http.Client{}, cfg), nil
	case config.BackendPostgres:
		return openPostgres(ctx, cfg)
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLitePath, cfg.Table)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, perr.WithField(perr.Validationf("unknown store backend %q", cfg.Backend), "Backend")
	}
}
