/*
Package window resolves user supplied date and time parameters into the day
range used to page the listing source and, when clock or hour bounds are
given, a precise instant window used to filter announcements. All arithmetic
happens in the fixed UTC+7 zone the exchange publishes in.
*/
package window

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	perr "github.com/shanehull/idxscraper/internal/platform/errors"
)

// Zone is the fixed UTC+7 offset of every window
var Zone = time.FixedZone("WIB", 7*60*60)

const (
	dayLayout   = "20060102"
	monthLayout = "200601"
)

var (
	dayPattern   = regexp.MustCompile(`^\d{8}$`)
	clockPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
	monthPattern = regexp.MustCompile(`^\d{4}-?\d{2}$`)
	hourPattern  = regexp.MustCompile(`^\d{1,2}$`)
)

// TimeWindow is an inclusive instant interval in Zone. Start is always before End.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow builds a window, failing with ErrInvalidRange unless start < end
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if !start.Before(end) {
		return TimeWindow{}, perr.InvalidRangef("window start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeWindow{Start: start.In(Zone), End: end.In(Zone)}, nil
}

// Contains reports whether t lies within the window, both ends inclusive
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Mode identifies which input form produced a Resolution
type Mode int

const (
	ModeDay Mode = iota + 1
	ModeRange
	ModeMonth
	ModeSpan
	ModeCheckpoint
)

func (m Mode) String() string {
	switch m {
	case ModeDay:
		return "day"
	case ModeRange:
		return "range"
	case ModeMonth:
		return "month"
	case ModeSpan:
		return "span"
	case ModeCheckpoint:
		return "checkpoint"
	default:
		return "none"
	}
}

// Params carries the raw user input. Exactly one mode may be set:
// Date (+StartHHMM/EndHHMM), From/To, Month, or SpanStart/SpanEnd.
type Params struct {
	Date      string
	StartHHMM string
	EndHHMM   string
	From      string
	To        string
	Month     string
	SpanStart string
	SpanEnd   string
}

// Resolution is the output of Resolve. Precise is nil when no clock or hour
// bounds were given, in which case every record of the day range passes.
type Resolution struct {
	Mode    Mode
	DayFrom string
	DayTo   string
	Precise *TimeWindow
}

// Bounds returns the covering window [DayFrom 00:00, DayTo+1 00:00)
func (r Resolution) Bounds() TimeWindow {
	from, _ := time.ParseInLocation(dayLayout, r.DayFrom, Zone)
	to, _ := time.ParseInLocation(dayLayout, r.DayTo, Zone)
	return TimeWindow{Start: from, End: to.AddDate(0, 0, 1)}
}

// End returns the instant a checkpoint should record for this resolution
func (r Resolution) End() time.Time {
	if r.Precise != nil {
		return r.Precise.End
	}
	return r.Bounds().End
}

// Resolve validates p and converts it into a Resolution
func Resolve(p Params) (Resolution, error) {
	modes := 0
	for _, set := range []bool{
		p.Date != "" || p.StartHHMM != "" || p.EndHHMM != "",
		p.From != "" || p.To != "",
		p.Month != "",
		p.SpanStart != "" || p.SpanEnd != "",
	} {
		if set {
			modes++
		}
	}
	switch {
	case modes == 0:
		return Resolution{}, perr.Validationf("no window given: set a date, a day range, a month or an hour span")
	case modes > 1:
		return Resolution{}, perr.Validationf("window modes are mutually exclusive")
	}

	switch {
	case p.Month != "":
		return resolveMonth(p.Month)
	case p.From != "" || p.To != "":
		return resolveRange(p.From, p.To)
	case p.SpanStart != "" || p.SpanEnd != "":
		return resolveSpan(p.SpanStart, p.SpanEnd)
	default:
		return resolveDay(p.Date, p.StartHHMM, p.EndHHMM)
	}
}

// ResolveSince builds the window that resumes after a checkpoint: (last, now]
func ResolveSince(last, now time.Time) (Resolution, error) {
	start := last.In(Zone).Add(time.Second)
	end := now.In(Zone).Truncate(time.Second)
	w, err := NewTimeWindow(start, end)
	if err != nil {
		return Resolution{}, perr.WithOp(err, "checkpoint")
	}
	return Resolution{
		Mode:    ModeCheckpoint,
		DayFrom: w.Start.Format(dayLayout),
		DayTo:   w.End.Format(dayLayout),
		Precise: &w,
	}, nil
}

func resolveDay(date, startHHMM, endHHMM string) (Resolution, error) {
	if date == "" {
		return Resolution{}, perr.Validationf("clock bounds need a date")
	}
	day, err := ParseDay(date)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{Mode: ModeDay, DayFrom: date, DayTo: date}
	if startHHMM == "" && endHHMM == "" {
		return res, nil
	}

	start := day
	if startHHMM != "" {
		h, m, err := parseClock(startHHMM)
		if err != nil {
			return Resolution{}, err
		}
		start = day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	}
	end := day.Add(24*time.Hour - time.Second)
	if endHHMM != "" {
		h, m, err := parseClock(endHHMM)
		if err != nil {
			return Resolution{}, err
		}
		end = day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	}

	if end.Before(start) {
		// crosses midnight: the clock range ends on the next day
		end = end.AddDate(0, 0, 1)
		res.DayTo = end.Format(dayLayout)
	}
	w, err := NewTimeWindow(start, end)
	if err != nil {
		return Resolution{}, err
	}
	res.Precise = &w
	return res, nil
}

func resolveRange(from, to string) (Resolution, error) {
	if from == "" || to == "" {
		return Resolution{}, perr.Validationf("a day range needs both ends")
	}
	f, err := ParseDay(from)
	if err != nil {
		return Resolution{}, err
	}
	t, err := ParseDay(to)
	if err != nil {
		return Resolution{}, err
	}
	if t.Before(f) {
		return Resolution{}, perr.InvalidRangef("range end %s is before start %s", to, from)
	}
	return Resolution{Mode: ModeRange, DayFrom: from, DayTo: to}, nil
}

func resolveMonth(month string) (Resolution, error) {
	if !monthPattern.MatchString(month) {
		return Resolution{}, perr.InvalidDateFormatf("month %q: want YYYYMM or YYYY-MM", month)
	}
	first, err := time.ParseInLocation(monthLayout, strings.ReplaceAll(month, "-", ""), Zone)
	if err != nil {
		return Resolution{}, perr.InvalidDateFormatf("month %q", month)
	}
	last := first.AddDate(0, 1, -1)
	return Resolution{Mode: ModeMonth, DayFrom: first.Format(dayLayout), DayTo: last.Format(dayLayout)}, nil
}

func resolveSpan(spanStart, spanEnd string) (Resolution, error) {
	if spanStart == "" || spanEnd == "" {
		return Resolution{}, perr.Validationf("an hour span needs both ends")
	}
	start, err := parseDayHour(spanStart)
	if err != nil {
		return Resolution{}, err
	}
	end, err := parseDayHour(spanEnd)
	if err != nil {
		return Resolution{}, err
	}
	if end.Before(start) {
		return Resolution{}, perr.InvalidRangef("span end %q is before start %q", spanEnd, spanStart)
	}
	w, err := NewTimeWindow(start, end.Add(time.Hour-time.Second))
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Mode:    ModeSpan,
		DayFrom: start.Format(dayLayout),
		DayTo:   end.Format(dayLayout),
		Precise: &w,
	}, nil
}

// ParseDay strictly parses YYYYMMDD as midnight in Zone
func ParseDay(s string) (time.Time, error) {
	if !dayPattern.MatchString(s) {
		return time.Time{}, perr.InvalidDateFormatf("date %q: want YYYYMMDD", s)
	}
	t, err := time.ParseInLocation(dayLayout, s, Zone)
	if err != nil {
		return time.Time{}, perr.InvalidDateFormatf("date %q", s)
	}
	return t, nil
}

func parseClock(s string) (hour, minute int, err error) {
	if !clockPattern.MatchString(s) {
		return 0, 0, perr.InvalidDateFormatf("clock %q: want HH:MM", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, perr.InvalidDateFormatf("clock %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// parseDayHour parses "YYYYMMDD HH"
func parseDayHour(s string) (time.Time, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 || !hourPattern.MatchString(parts[1]) {
		return time.Time{}, perr.InvalidDateFormatf("span %q: want \"YYYYMMDD HH\"", s)
	}
	day, err := ParseDay(parts[0])
	if err != nil {
		return time.Time{}, err
	}
	hour, _ := strconv.Atoi(parts[1])
	if hour < 0 || hour > 23 {
		return time.Time{}, perr.InvalidRangef("span %q: hour %d outside 0-23", s, hour)
	}
	return day.Add(time.Duration(hour) * time.Hour), nil
}
