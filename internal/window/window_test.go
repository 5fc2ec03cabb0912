package window

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/types"
)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, Zone)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolve_Modes(t *testing.T) {
	tests := []struct {
		name        string
		params      Params
		wantMode    Mode
		wantFrom    string
		wantTo      string
		wantPrecise *TimeWindow
	}{
		{
			name:     "single day no clock",
			params:   Params{Date: "20250801"},
			wantMode: ModeDay, wantFrom: "20250801", wantTo: "20250801",
		},
		{
			name:     "single day clock range",
			params:   Params{Date: "20250801", StartHHMM: "08:30", EndHHMM: "17:00"},
			wantMode: ModeDay, wantFrom: "20250801", wantTo: "20250801",
			wantPrecise: &TimeWindow{Start: at("2025-08-01 08:30:00"), End: at("2025-08-01 17:00:00")},
		},
		{
			name:     "single day crossing midnight",
			params:   Params{Date: "20250801", StartHHMM: "22:00", EndHHMM: "02:00"},
			wantMode: ModeDay, wantFrom: "20250801", wantTo: "20250802",
			wantPrecise: &TimeWindow{Start: at("2025-08-01 22:00:00"), End: at("2025-08-02 02:00:00")},
		},
		{
			name:     "month end of year crossing",
			params:   Params{Date: "20251231", StartHHMM: "23:00", EndHHMM: "01:00"},
			wantMode: ModeDay, wantFrom: "20251231", wantTo: "20260101",
			wantPrecise: &TimeWindow{Start: at("2025-12-31 23:00:00"), End: at("2026-01-01 01:00:00")},
		},
		{
			name:     "start only runs to end of day",
			params:   Params{Date: "20250801", StartHHMM: "12:00"},
			wantMode: ModeDay, wantFrom: "20250801", wantTo: "20250801",
			wantPrecise: &TimeWindow{Start: at("2025-08-01 12:00:00"), End: at("2025-08-01 23:59:59")},
		},
		{
			name:     "explicit range",
			params:   Params{From: "20250801", To: "20250805"},
			wantMode: ModeRange, wantFrom: "20250801", wantTo: "20250805",
		},
		{
			name:     "same day range",
			params:   Params{From: "20250801", To: "20250801"},
			wantMode: ModeRange, wantFrom: "20250801", wantTo: "20250801",
		},
		{
			name:     "month compact",
			params:   Params{Month: "202402"},
			wantMode: ModeMonth, wantFrom: "20240201", wantTo: "20240229",
		},
		{
			name:     "month dashed",
			params:   Params{Month: "2025-08"},
			wantMode: ModeMonth, wantFrom: "20250801", wantTo: "20250831",
		},
		{
			name:     "hour span",
			params:   Params{SpanStart: "20250801 09", SpanEnd: "20250802 10"},
			wantMode: ModeSpan, wantFrom: "20250801", wantTo: "20250802",
			wantPrecise: &TimeWindow{Start: at("2025-08-01 09:00:00"), End: at("2025-08-02 10:59:59")},
		},
		{
			name:     "single hour span",
			params:   Params{SpanStart: "20250801 23", SpanEnd: "20250801 23"},
			wantMode: ModeSpan, wantFrom: "20250801", wantTo: "20250801",
			wantPrecise: &TimeWindow{Start: at("2025-08-01 23:00:00"), End: at("2025-08-01 23:59:59")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.params)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got.Mode != tt.wantMode || got.DayFrom != tt.wantFrom || got.DayTo != tt.wantTo {
				t.Fatalf("got mode=%s %s..%s, want mode=%s %s..%s",
					got.Mode, got.DayFrom, got.DayTo, tt.wantMode, tt.wantFrom, tt.wantTo)
			}
			if diff := cmp.Diff(tt.wantPrecise, got.Precise); diff != "" {
				t.Errorf("precise window mismatch (-want +got):\n%s", diff)
			}
			b := got.Bounds()
			if !b.Start.Before(b.End) {
				t.Fatalf("bounds not ordered: %s", b)
			}
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr error
	}{
		{"bad day", Params{Date: "2025-08-01"}, perr.ErrInvalidDateFormat},
		{"impossible day", Params{Date: "20250230"}, perr.ErrInvalidDateFormat},
		{"bad clock", Params{Date: "20250801", StartHHMM: "8:30"}, perr.ErrInvalidDateFormat},
		{"clock out of range", Params{Date: "20250801", EndHHMM: "24:00"}, perr.ErrInvalidDateFormat},
		{"equal clocks", Params{Date: "20250801", StartHHMM: "10:00", EndHHMM: "10:00"}, perr.ErrInvalidRange},
		{"range reversed", Params{From: "20250805", To: "20250801"}, perr.ErrInvalidRange},
		{"range bad end", Params{From: "20250801", To: "2025081"}, perr.ErrInvalidDateFormat},
		{"month bad", Params{Month: "2025/08"}, perr.ErrInvalidDateFormat},
		{"month 13", Params{Month: "202513"}, perr.ErrInvalidDateFormat},
		{"span reversed", Params{SpanStart: "20250802 10", SpanEnd: "20250802 09"}, perr.ErrInvalidRange},
		{"span hour 24", Params{SpanStart: "20250801 24", SpanEnd: "20250802 01"}, perr.ErrInvalidRange},
		{"span missing hour", Params{SpanStart: "20250801", SpanEnd: "20250802 01"}, perr.ErrInvalidDateFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.params)
			if err == nil {
				t.Fatal("expected error")
			}
			if !perr.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v in chain", err, tt.wantErr)
			}
			if !perr.IsCode(err, perr.ErrorCodeValidation) {
				t.Fatalf("code = %v, want validation", perr.CodeOf(err))
			}
		})
	}
}

func TestResolve_ModeSelection(t *testing.T) {
	cases := []Params{
		{},
		{Date: "20250801", Month: "202508"},
		{From: "20250801", To: "20250802", SpanStart: "20250801 01", SpanEnd: "20250801 02"},
		{StartHHMM: "10:00"},
		{From: "20250801"},
		{SpanEnd: "20250801 02"},
	}
	for _, p := range cases {
		if _, err := Resolve(p); !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("Resolve(%+v) err = %v, want validation error", p, err)
		}
	}
}

func TestResolve_RangeAlwaysOrdered(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, Zone)
	for i := 0; i < 400; i += 7 {
		from := start.AddDate(0, 0, i)
		for _, span := range []int{0, 1, 30} {
			to := from.AddDate(0, 0, span)
			res, err := Resolve(Params{From: from.Format(dayLayout), To: to.Format(dayLayout)})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			b := res.Bounds()
			if !b.Start.Before(b.End) {
				t.Fatalf("bounds not ordered for %s..%s", res.DayFrom, res.DayTo)
			}
			if _, err := Resolve(Params{From: to.AddDate(0, 0, 1).Format(dayLayout), To: from.Format(dayLayout)}); !perr.Is(err, perr.ErrInvalidRange) {
				t.Fatalf("reversed range should fail with ErrInvalidRange, got %v", err)
			}
		}
	}
}

func TestResolveSince(t *testing.T) {
	last := at("2025-08-01 23:00:00")
	now := at("2025-08-02 06:15:30")

	res, err := ResolveSince(last.UTC(), now)
	if err != nil {
		t.Fatalf("ResolveSince: %v", err)
	}
	if res.Mode != ModeCheckpoint || res.DayFrom != "20250801" || res.DayTo != "20250802" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if !res.Precise.Start.Equal(last.Add(time.Second)) || !res.End().Equal(now) {
		t.Fatalf("unexpected window: %s", res.Precise)
	}

	if _, err := ResolveSince(now, now); !perr.Is(err, perr.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestResolution_End(t *testing.T) {
	res, _ := Resolve(Params{Date: "20250801"})
	if want := at("2025-08-02 00:00:00"); !res.End().Equal(want) {
		t.Fatalf("End = %s, want %s", res.End(), want)
	}
}

func TestParseLocal(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2025-08-01T17:05:12", want: at("2025-08-01 17:05:12")},
		{in: "2025-08-01T17:05:12.337", want: at("2025-08-01 17:05:12").Add(337 * time.Millisecond)},
		{in: " 2025-08-01 17:05:12 ", want: at("2025-08-01 17:05:12")},
		{in: "2025-08-01T10:05:12Z", want: at("2025-08-01 17:05:12")},
		{in: "01/08/2025 17:05", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLocal(tt.in)
		if tt.wantErr {
			if !perr.IsCode(err, perr.ErrorCodeParse) {
				t.Fatalf("ParseLocal(%q) err = %v, want parse error", tt.in, err)
			}
			continue
		}
		if err != nil || !got.Equal(tt.want) {
			t.Fatalf("ParseLocal(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestFilter(t *testing.T) {
	items := []types.Announcement{
		{Code: "AAAA", PublishedAt: "2025-08-01T21:59:59"},
		{Code: "BBBB", PublishedAt: "2025-08-01T22:00:00"},
		{Code: "CCCC", PublishedAt: "garbage"},
		{Code: "DDDD", PublishedAt: "2025-08-02T02:00:00"},
		{Code: "EEEE", PublishedAt: "2025-08-02T02:00:01"},
	}

	res, err := Resolve(Params{Date: "20250801", StartHHMM: "22:00", EndHHMM: "02:00"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	codes := func(in []types.Announcement) []string {
		out := make([]string, 0, len(in))
		for _, a := range in {
			out = append(out, a.Code)
		}
		return out
	}

	if diff := cmp.Diff([]string{"BBBB", "DDDD"}, codes(Filter(items, res.Precise))); diff != "" {
		t.Errorf("windowed filter mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AAAA", "BBBB", "DDDD", "EEEE"}, codes(Filter(items, nil))); diff != "" {
		t.Errorf("open filter mismatch (-want +got):\n%s", diff)
	}
}
