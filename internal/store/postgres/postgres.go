// Package postgres stores filing rows directly in a Postgres table using pgxpool
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shanehull/idxscraper/internal/filings"
	"github.com/shanehull/idxscraper/internal/platform/config"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/window"
)

var numericColumns = map[string]bool{
	"holding_before": true, "holding_after": true,
	"share_percentage_before": true, "share_percentage_after": true,
	"share_percentage_transaction": true, "amount_transaction": true,
	"price": true, "transaction_value": true,
}

var newPool = pgxpool.NewWithConfig

// Store is a filings.Store over a pgx pool
type Store struct {
	Pool    *pgxpool.Pool
	table   string
	timeout time.Duration
}

// Open connects to cfg.DSN. With cfg.LogSQL every statement is logged.
func Open(ctx context.Context, cfg config.Store) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "parse postgres dsn")
	}
	if cfg.LogSQL {
		pcfg.ConnConfig.Tracer = NewTracer(*logger.Named("pg"), 500*time.Millisecond)
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, perr.FromPostgres(err, "open postgres pool")
	}
	return &Store{Pool: pool, table: cfg.Table, timeout: cfg.Timeout}, nil
}

// Close closes the pool
func (s *Store) Close() error {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Store) ident() string { return pgx.Identifier{s.table}.Sanitize() }

func selectColumns() string {
	cols := make([]string, 0, len(filings.Columns))
	for _, c := range filings.Columns {
		switch {
		case numericColumns[c]:
			cols = append(cols, fmt.Sprintf("%s::text", pgx.Identifier{c}.Sanitize()))
		default:
			cols = append(cols, pgx.Identifier{c}.Sanitize())
		}
	}
	return strings.Join(cols, ", ")
}

// QueryByDayRangeAndSymbols implements filings.Store
func (s *Store) QueryByDayRangeAndSymbols(ctx context.Context, from, to time.Time, symbols []string) ([]filings.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sql := fmt.Sprintf(`select %s from %s
		where "timestamp" >= $1 and "timestamp" < $2
		  and (cardinality($3::text[]) = 0 or symbol = any($3))
		order by "timestamp"`, selectColumns(), s.ident())
	if symbols == nil {
		symbols = []string{}
	}

	rows, err := s.Pool.Query(ctx, sql, from, to, symbols)
	if err != nil {
		return nil, perr.FromPostgresf(err, "query %s", s.table)
	}
	out, err := pgx.CollectRows(rows, scanRow)
	if err != nil {
		return nil, perr.FromPostgres(err, "scan filings")
	}
	return out, nil
}

func scanRow(row pgx.CollectableRow) (filings.Row, error) {
	var (
		r                                    filings.Row
		ts                                   time.Time
		txType, holder, holderType           *string
		title, url, sector, subSector        *string
		source, uid                          *string
		hb, ha, pb, pa, pt, amount, price, v *string
	)
	if err := row.Scan(&r.Symbol, &ts, &txType, &holder, &holderType,
		&hb, &ha, &pb, &pa, &pt, &amount, &price, &v,
		&title, &url, &sector, &subSector, &r.Tags, &source, &uid); err != nil {
		return r, err
	}
	r.Timestamp = ts.In(window.Zone).Format(time.RFC3339)
	r.TransactionType, r.HolderName, r.HolderType = deref(txType), deref(holder), deref(holderType)
	r.Title, r.URL, r.Sector, r.SubSector = deref(title), deref(url), deref(sector), deref(subSector)
	r.Source, r.UID = deref(source), deref(uid)

	var err error
	for _, f := range []struct {
		dst **decimal.Decimal
		src *string
	}{
		{&r.HoldingBefore, hb}, {&r.HoldingAfter, ha},
		{&r.SharePercentageBefore, pb}, {&r.SharePercentageAfter, pa},
		{&r.SharePercentageTransaction, pt}, {&r.AmountTransaction, amount},
		{&r.Price, price}, {&r.TransactionValue, v},
	} {
		if *f.dst, err = parseDecimal(f.src); err != nil {
			return r, err
		}
	}
	return r, nil
}

// InsertRow implements filings.Store. Columns not present in record are left to their defaults.
func (s *Store) InsertRow(ctx context.Context, record map[string]any) (json.RawMessage, error) {
	cols := make([]string, 0, len(record))
	placeholders := make([]string, 0, len(record))
	args := make([]any, 0, len(record))

	for _, c := range filings.Columns {
		v, ok := record[c]
		if !ok {
			continue
		}
		n := len(args) + 1
		switch {
		case c == "timestamp":
			t, err := window.ParseLocal(fmt.Sprint(v))
			if err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeRejected, "insert row")
			}
			v = t
			placeholders = append(placeholders, fmt.Sprintf("$%d", n))
		case numericColumns[c]:
			v = fmt.Sprint(v)
			placeholders = append(placeholders, fmt.Sprintf("$%d::text::numeric", n))
		default:
			placeholders = append(placeholders, fmt.Sprintf("$%d", n))
		}
		cols = append(cols, pgx.Identifier{c}.Sanitize())
		args = append(args, v)
	}
	if len(cols) == 0 {
		return nil, perr.New(perr.ErrorCodeRejected, "insert row: empty record")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sql := fmt.Sprintf(`insert into %s as t (%s) values (%s) returning to_jsonb(t)::text`,
		s.ident(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var body string
	if err := s.Pool.QueryRow(ctx, sql, args...).Scan(&body); err != nil {
		return nil, perr.FromPostgresf(err, "insert row into %s", s.table)
	}
	return json.RawMessage(body), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
