// Package sqlite stores filing rows in a local SQLite database for offline runs
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/shanehull/idxscraper/internal/filings"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/window"
	"github.com/shanehull/idxscraper/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Store implements filings.Store backed by SQLite. Timestamps are stored as
// UTC text so range comparisons are lexical.
type Store struct {
	db    *sql.DB
	table string
}

// Open opens the database at dsn and runs pending migrations
func Open(dsn, table string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "open sqlite")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "set WAL mode")
	}
	if err := migrations.Run(db, migrations.SQLite); err != nil {
		_ = db.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "run migrations")
	}
	return &Store{db: db, table: table}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ident() string {
	return `"` + strings.ReplaceAll(s.table, `"`, `""`) + `"`
}

// QueryByDayRangeAndSymbols implements filings.Store
func (s *Store) QueryByDayRangeAndSymbols(ctx context.Context, from, to time.Time, symbols []string) ([]filings.Row, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE timestamp >= ? AND timestamp < ?`,
		strings.Join(filings.Columns, ", "), s.ident())
	args := []any{from.UTC().Format(timeLayout), to.UTC().Format(timeLayout)}
	if len(symbols) > 0 {
		query += " AND symbol IN (?" + strings.Repeat(", ?", len(symbols)-1) + ")"
		for _, sym := range symbols {
			args = append(args, sym)
		}
	}
	query += " ORDER BY timestamp"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "query filings")
	}
	defer func() { _ = rows.Close() }()

	var out []filings.Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "scan filing")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "iterate filings")
	}
	return out, nil
}

func scanRow(rows *sql.Rows) (filings.Row, error) {
	vals := make([]sql.NullString, len(filings.Columns))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return filings.Row{}, err
	}

	rec := make(map[string]any, len(vals))
	for i, col := range filings.Columns {
		if !vals[i].Valid {
			continue
		}
		switch col {
		case "tags":
			var tags []string
			if err := json.Unmarshal([]byte(vals[i].String), &tags); err != nil {
				return filings.Row{}, perr.Wrap(err, perr.ErrorCodeParse, "decode tags")
			}
			rec[col] = tags
		case "timestamp":
			t, err := time.Parse(timeLayout, vals[i].String)
			if err != nil {
				return filings.Row{}, perr.Wrap(err, perr.ErrorCodeParse, "parse timestamp")
			}
			rec[col] = t.In(window.Zone).Format(time.RFC3339)
		default:
			if _, numeric := numericColumns[col]; numeric {
				d, err := decimal.NewFromString(vals[i].String)
				if err != nil {
					return filings.Row{}, perr.Wrapf(err, perr.ErrorCodeParse, "parse %s", col)
				}
				rec[col] = json.Number(d.String())
				continue
			}
			rec[col] = vals[i].String
		}
	}
	return filings.RowFromRecord(rec)
}

var numericColumns = map[string]struct{}{
	"holding_before": {}, "holding_after": {},
	"share_percentage_before": {}, "share_percentage_after": {},
	"share_percentage_transaction": {}, "amount_transaction": {},
	"price": {}, "transaction_value": {},
}

// InsertRow implements filings.Store
func (s *Store) InsertRow(ctx context.Context, record map[string]any) (json.RawMessage, error) {
	cols := make([]string, 0, len(record))
	args := make([]any, 0, len(record))
	for _, c := range filings.Columns {
		v, ok := record[c]
		if !ok {
			continue
		}
		switch c {
		case "timestamp":
			t, err := window.ParseLocal(fmt.Sprint(v))
			if err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeRejected, "insert row")
			}
			v = t.UTC().Format(timeLayout)
		case "tags":
			b, err := json.Marshal(v)
			if err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeRejected, "encode tags")
			}
			v = string(b)
		default:
			v = fmt.Sprint(v)
		}
		cols = append(cols, c)
		args = append(args, v)
	}
	if len(cols) == 0 {
		return nil, perr.New(perr.ErrorCodeRejected, "insert row: empty record")
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?%s) RETURNING id`,
		s.ident(), strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)-1))

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeRejected, "insert row")
	}

	out := make(map[string]any, len(record)+1)
	for k, v := range record {
		out[k] = v
	}
	out["id"] = id
	body, err := json.Marshal(out)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeParse, "encode inserted row")
	}
	return body, nil
}
