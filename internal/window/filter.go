package window

import (
	"strings"
	"time"

	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/types"
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseLocal parses the source's naive local timestamp as UTC+7. Timestamps
// that carry their own offset are accepted and converted.
func ParseLocal(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, Zone); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(Zone), nil
	}
	return time.Time{}, perr.Parsef("unparsable timestamp %q", s)
}

// Filter keeps announcements whose publish instant lies in w (inclusive).
// A nil window keeps every parseable announcement. Unparsable timestamps are
// dropped with a warning.
func Filter(items []types.Announcement, w *TimeWindow) []types.Announcement {
	log := logger.Named("window")
	out := make([]types.Announcement, 0, len(items))
	for _, it := range items {
		t, err := ParseLocal(it.PublishedAt)
		if err != nil {
			log.Warn().Err(err).Str("ticker", it.Code).Str("title", it.Title).Msg("dropping announcement with bad timestamp")
			continue
		}
		if w != nil && !w.Contains(t) {
			continue
		}
		out = append(out, it)
	}
	return out
}
