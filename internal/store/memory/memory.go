// Package memory is an in-process filings store for tests and dry runs
package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/shanehull/idxscraper/internal/filings"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
)

// Store keeps rows in memory. Reject, when set, can refuse an insert.
type Store struct {
	mu     sync.Mutex
	rows   []filings.Row
	Reject func(record map[string]any) error
}

// New returns a store seeded with rows
func New(rows ...filings.Row) *Store {
	return &Store{rows: append([]filings.Row(nil), rows...)}
}

// QueryByDayRangeAndSymbols implements filings.Store
func (s *Store) QueryByDayRangeAndSymbols(_ context.Context, from, to time.Time, symbols []string) ([]filings.Row, error) {
	want := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		want[strings.ToUpper(sym)] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []filings.Row
	for _, r := range s.rows {
		t, err := r.Time()
		if err != nil || t.Before(from) || !t.Before(to) {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[strings.ToUpper(r.Symbol)]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// InsertRow implements filings.Store
func (s *Store) InsertRow(_ context.Context, record map[string]any) (json.RawMessage, error) {
	if s.Reject != nil {
		if err := s.Reject(record); err != nil {
			return nil, perr.WrapIf(err, perr.ErrorCodeRejected, "insert row")
		}
	}
	row, err := filings.RowFromRecord(record)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(record)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeParse, "encode record")
	}

	s.mu.Lock()
	s.rows = append(s.rows, row)
	s.mu.Unlock()
	return body, nil
}

// Rows returns a copy of the stored rows
func (s *Store) Rows() []filings.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]filings.Row(nil), s.rows...)
}

// Close is a no-op
func (s *Store) Close() error { return nil }
