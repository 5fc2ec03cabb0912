package filings

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shanehull/idxscraper/internal/platform/logger"
)

// Store is the remote filings table
type Store interface {
	// QueryByDayRangeAndSymbols returns rows with from <= timestamp < to. A
	// nil or empty symbols slice means no symbol filter.
	QueryByDayRangeAndSymbols(ctx context.Context, from, to time.Time, symbols []string) ([]Row, error)
	// InsertRow stores one record and returns the stored representation
	InsertRow(ctx context.Context, record map[string]any) (json.RawMessage, error)
}

// Stats counts rows through the two dedup stages
type Stats struct {
	Input               int `json:"input"`
	IntrarunUnique      int `json:"intrarun_unique"`
	ExistingSameDayRows int `json:"existing_same_day_rows"`
	ToInsert            int `json:"to_insert"`
}

// Deduplicator drops rows whose FilingHash was already seen in the batch or
// already exists in the store
type Deduplicator struct {
	store Store
	opts  HashOptions
}

// NewDeduplicator builds a Deduplicator over store
func NewDeduplicator(store Store, opts HashOptions) *Deduplicator {
	return &Deduplicator{store: store, opts: opts}
}

// Dedup removes in-batch duplicates (first seen wins), then rows already
// stored for the same days and symbols. If the store cannot be queried the
// second stage is skipped and only in-batch duplicates are removed.
func (d *Deduplicator) Dedup(ctx context.Context, rows []Row) ([]Row, Stats) {
	log := logger.C(ctx).With().Str("component", "dedup").Logger()
	stats := Stats{Input: len(rows)}

	seen := make(map[string]struct{}, len(rows))
	unique := make([]Row, 0, len(rows))
	hashes := make([]string, 0, len(rows))
	for _, r := range rows {
		h := Hash(r, d.opts)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		unique = append(unique, r)
		hashes = append(hashes, h)
	}
	stats.IntrarunUnique = len(unique)

	from, to, ok := dayRange(unique)
	if !ok {
		stats.ToInsert = len(unique)
		return unique, stats
	}
	symbols := distinctSymbols(unique)

	existing, err := d.store.QueryByDayRangeAndSymbols(ctx, from, to, symbols)
	if err != nil {
		log.Warn().Err(err).Time("from", from).Time("to", to).Int("symbols", len(symbols)).
			Msg("existing rows unavailable, deduplicating within the batch only")
		stats.ToInsert = len(unique)
		return unique, stats
	}
	stats.ExistingSameDayRows = len(existing)

	stored := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		stored[Hash(r, d.opts)] = struct{}{}
	}

	out := make([]Row, 0, len(unique))
	for i, r := range unique {
		if _, dup := stored[hashes[i]]; dup {
			continue
		}
		out = append(out, r)
	}
	stats.ToInsert = len(out)

	log.Info().Int("input", stats.Input).Int("intrarun_unique", stats.IntrarunUnique).
		Int("existing", stats.ExistingSameDayRows).Int("to_insert", stats.ToInsert).Msg("dedup done")
	return out, stats
}

// dayRange covers every row's day: [min day, max day + 1)
func dayRange(rows []Row) (from, to time.Time, ok bool) {
	for _, r := range rows {
		day, valid := r.Day()
		if !valid {
			continue
		}
		if !ok || day.Before(from) {
			from = day
		}
		if !ok || day.After(to) {
			to = day
		}
		ok = true
	}
	return from, to.AddDate(0, 0, 1), ok
}

func distinctSymbols(rows []Row) []string {
	set := map[string]struct{}{}
	for _, r := range rows {
		if s := strings.ToUpper(strings.TrimSpace(r.Symbol)); s != "" {
			set[s] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
