package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shanehull/idxscraper/internal/filings"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
)

func TestStore_QueryAndInsert(t *testing.T) {
	s := New(
		filings.Row{Symbol: "BBCA", Timestamp: "2025-08-01T10:00:00"},
		filings.Row{Symbol: "TLKM", Timestamp: "2025-08-01T23:30:00"},
		filings.Row{Symbol: "BBCA", Timestamp: "2025-08-02T00:00:00"},
	)
	zone := time.FixedZone("WIB", 7*3600)
	from := time.Date(2025, 8, 1, 0, 0, 0, 0, zone)
	to := from.AddDate(0, 0, 1)

	got, _ := s.QueryByDayRangeAndSymbols(context.Background(), from, to, nil)
	if len(got) != 2 {
		t.Fatalf("unfiltered = %d, want 2", len(got))
	}
	got, _ = s.QueryByDayRangeAndSymbols(context.Background(), from, to, []string{"bbca"})
	if len(got) != 1 || got[0].Symbol != "BBCA" {
		t.Fatalf("filtered = %+v", got)
	}

	if _, err := s.InsertRow(context.Background(), map[string]any{"symbol": "ASII", "timestamp": "2025-08-01T12:00:00"}); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}
	if len(s.Rows()) != 4 {
		t.Fatalf("rows = %d", len(s.Rows()))
	}

	s.Reject = func(map[string]any) error { return errors.New("duplicate key") }
	_, err := s.InsertRow(context.Background(), map[string]any{"symbol": "ASII"})
	if !perr.IsCode(err, perr.ErrorCodeRejected) {
		t.Fatalf("err = %v, want rejected", err)
	}
}
