package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shanehull/idxscraper/internal/filings"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "filings.db"), "idx_filings")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	price := decimal.RequireFromString("9875.50")
	row := filings.Row{
		Symbol:          "BBCA",
		Timestamp:       "2025-08-01T10:15:00",
		TransactionType: "buy",
		HolderName:      "PT Dwimuria",
		Price:           &price,
		Tags:            []string{"bank", "insider"},
	}
	body, err := s.InsertRow(ctx, row.ToRecord())
	if err != nil {
		t.Fatalf("InsertRow: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("expected representation")
	}
	if _, err := s.InsertRow(ctx, filings.Row{Symbol: "TLKM", Timestamp: "2025-08-02T00:00:00"}.ToRecord()); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	zone := time.FixedZone("WIB", 7*3600)
	from := time.Date(2025, 8, 1, 0, 0, 0, 0, zone)
	got, err := s.QueryByDayRangeAndSymbols(ctx, from, from.AddDate(0, 0, 1), nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows = %d, want 1", len(got))
	}

	opts := filings.DefaultHashOptions()
	if filings.Hash(got[0], opts) != filings.Hash(row, opts) {
		t.Fatalf("stored row hashes differently: %+v", got[0])
	}
	if len(got[0].Tags) != 2 || got[0].Price.String() != "9875.5" {
		t.Fatalf("unexpected row: %+v", got[0])
	}

	got, _ = s.QueryByDayRangeAndSymbols(ctx, from, from.AddDate(0, 0, 2), []string{"TLKM"})
	if len(got) != 1 || got[0].Symbol != "TLKM" {
		t.Fatalf("symbol filter: %+v", got)
	}
}

func TestStore_RejectsBadRows(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InsertRow(context.Background(), map[string]any{"symbol": "BBCA", "timestamp": "not a time"})
	if !perr.IsCode(err, perr.ErrorCodeRejected) {
		t.Fatalf("err = %v", err)
	}
	_, err = s.InsertRow(context.Background(), map[string]any{"title": "no symbol", "timestamp": "2025-08-01T00:00:00"})
	if !perr.IsCode(err, perr.ErrorCodeRejected) {
		t.Fatalf("err = %v, want NOT NULL rejection", err)
	}
}
