package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/shanehull/idxscraper/internal/platform/logger"
)

// Tracer logs every statement pgx runs. Queries slower than slow log at warn.
type Tracer struct {
	log  logger.Logger
	slow time.Duration
	now  func() time.Time
}

type traceKey struct{}

type traceData struct {
	sql   string
	args  []any
	start time.Time
}

// NewTracer returns a tracer that always logs, independent of the root level
func NewTracer(root logger.Logger, slow time.Duration) *Tracer {
	return &Tracer{log: root.Level(zerolog.DebugLevel), slow: slow, now: time.Now}
}

// TraceQueryStart implements pgx.QueryTracer
func (t *Tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceData{sql: data.SQL, args: data.Args, start: t.now()})
}

// TraceQueryEnd implements pgx.QueryTracer
func (t *Tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	td, _ := ctx.Value(traceKey{}).(traceData)
	elapsed := t.now().Sub(td.start)
	slow := t.slow > 0 && elapsed >= t.slow

	evt := t.log.Info()
	if data.Err != nil || slow {
		evt = t.log.Warn()
	}
	evt.Float64("elapsed_ms", float64(elapsed.Microseconds())/1000.0).
		Bool("slow", slow).
		Str("sql", compact(td.sql)).
		Int("args", len(td.args)).
		Str("tag", data.CommandTag.String()).
		Err(data.Err).
		Msg("pg query")
}

func compact(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' || r == ' ' {
			if !space {
				out = append(out, ' ')
				space = true
			}
			continue
		}
		space = false
		out = append(out, r)
	}
	return string(out)
}
