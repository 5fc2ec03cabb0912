package postgres

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	kit "github.com/shanehull/idxscraper/internal/platform/testkit"
)

func TestTracer_LogsQueries(t *testing.T) {
	var buf bytes.Buffer
	root := zerolog.New(&buf).Level(zerolog.ErrorLevel)
	tr := NewTracer(root, 100*time.Millisecond)

	clock := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return clock }

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL:  "select *\n\t from   idx_filings where symbol = $1",
		Args: []any{"BBCA"},
	})
	clock = clock.Add(150 * time.Millisecond)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

	out := buf.String()
	kit.MustContain(t, out, `"level":"warn"`)
	kit.MustContain(t, out, `"slow":true`)
	kit.MustContain(t, out, `"sql":"select * from idx_filings where symbol = $1"`)
	kit.MustContain(t, out, `"elapsed_ms":150`)

	buf.Reset()
	ctx = tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "select 1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})
	kit.MustContain(t, buf.String(), `"error":"boom"`)
}

func TestCompact(t *testing.T) {
	if got := compact("a \n\t  b\r\nc"); got != "a b c" {
		t.Fatalf("compact = %q", got)
	}
}
