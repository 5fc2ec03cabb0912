package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shanehull/idxscraper/internal/platform/config"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	kit "github.com/shanehull/idxscraper/internal/platform/testkit"
	"github.com/shanehull/idxscraper/internal/store/memory"
	"github.com/shanehull/idxscraper/internal/store/postgrest"
	"github.com/shanehull/idxscraper/internal/store/sqlite"
)

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Store{Backend: config.BackendMemory})
	if _, ok := s.(*memory.Store); err != nil || !ok {
		t.Fatalf("memory: %T %v", s, err)
	}

	s, err = Open(ctx, config.Store{Backend: config.BackendPostgREST, URL: "http://localhost:3000", Table: "idx_filings"})
	if _, ok := s.(*postgrest.Client); err != nil || !ok {
		t.Fatalf("postgrest: %T %v", s, err)
	}

	s, err = Open(ctx, config.Store{Backend: config.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "f.db"), Table: "idx_filings"})
	if _, ok := s.(*sqlite.Store); err != nil || !ok {
		t.Fatalf("sqlite: %T %v", s, err)
	}
	_ = s.Close()

	_, err = Open(ctx, config.Store{Backend: "mongo"})
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("unknown backend err = %v", err)
	}
}

func TestOpen_PostgresSeam(t *testing.T) {
	called := false
	kit.Swap(t, &openPostgres, func(context.Context, config.Store) (Store, error) {
		called = true
		return memory.New(), nil
	})

	if _, err := Open(context.Background(), config.Store{Backend: config.BackendPostgres, DSN: "postgres://x"}); err != nil || !called {
		t.Fatalf("postgres seam not used: %v", err)
	}
}
