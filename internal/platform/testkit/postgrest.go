package testkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// PostgREST is an in-process fake of a PostgREST table endpoint. It supports
// the subset of the query grammar the filings store uses: gte/lt on
// timestamp, in.(...) on symbol, Range pagination and single object inserts.
type PostgREST struct {
	Server *httptest.Server
	APIKey string

	mu      sync.Mutex
	rows    []map[string]any
	reject  func(row map[string]any) (int, string, bool)
	failGet int
	gets    int
	posts   int
}

// NewPostgREST starts a fake serving /rest/v1/{table}. It is closed on test cleanup.
func NewPostgREST(t *testing.T, apiKey string) *PostgREST {
	t.Helper()
	f := &PostgREST{APIKey: apiKey}

	r := chi.NewRouter()
	r.Use(f.auth)
	r.Get("/rest/v1/{table}", f.handleGet)
	r.Post("/rest/v1/{table}", f.handlePost)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the base URL to configure a client with
func (f *PostgREST) URL() string { return f.Server.URL }

// Seed adds rows as if they were already stored
func (f *PostgREST) Seed(rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rows...)
}

// Rows returns a copy of the stored rows
func (f *PostgREST) Rows() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.rows))
	copy(out, f.rows)
	return out
}

// RejectWhen installs a hook deciding whether an insert is refused, and with which status and body
func (f *PostgREST) RejectWhen(fn func(row map[string]any) (status int, body string, reject bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject = fn
}

// FailQueries makes the next n GET requests answer 503
func (f *PostgREST) FailQueries(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet = n
}

// Calls reports how many GET and POST requests were served
func (f *PostgREST) Calls() (gets, posts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, f.posts
}

func (f *PostgREST) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.APIKey != "" {
			if r.Header.Get("apikey") != f.APIKey || r.Header.Get("Authorization") != "Bearer "+f.APIKey {
				writeErr(w, http.StatusUnauthorized, "PGRST301", "invalid api key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (f *PostgREST) handleGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.gets++
	if f.failGet > 0 {
		f.failGet--
		f.mu.Unlock()
		writeErr(w, http.StatusServiceUnavailable, "PGRST000", "unavailable")
		return
	}
	rows := make([]map[string]any, 0, len(f.rows))
	rows = append(rows, f.rows...)
	f.mu.Unlock()

	q := r.URL.Query()
	var err error
	for _, cond := range q["timestamp"] {
		if rows, err = filterTimestamp(rows, cond); err != nil {
			writeErr(w, http.StatusBadRequest, "PGRST100", err.Error())
			return
		}
	}
	if cond := q.Get("symbol"); cond != "" {
		rows = filterIn(rows, "symbol", cond)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return stamp(rows[i]).Before(stamp(rows[j]))
	})

	from, to := 0, len(rows)-1
	if rg := r.Header.Get("Range"); rg != "" {
		a, b, ok := strings.Cut(rg, "-")
		if !ok {
			writeErr(w, http.StatusBadRequest, "PGRST103", "bad range")
			return
		}
		from, _ = strconv.Atoi(a)
		if n, err := strconv.Atoi(b); err == nil && n < to {
			to = n
		}
	}
	page := []map[string]any{}
	if from < len(rows) && from <= to {
		page = rows[from : to+1]
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Range", fmt.Sprintf("%d-%d/%d", from, from+len(page)-1, len(rows)))
	_ = json.NewEncoder(w).Encode(page)
}

func (f *PostgREST) handlePost(w http.ResponseWriter, r *http.Request) {
	var row map[string]any
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeErr(w, http.StatusBadRequest, "PGRST102", "invalid json body")
		return
	}

	f.mu.Lock()
	f.posts++
	reject := f.reject
	f.mu.Unlock()

	if reject != nil {
		if status, body, ok := reject(row); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
	}

	f.mu.Lock()
	row["id"] = len(f.rows) + 1
	f.rows = append(f.rows, row)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if r.Header.Get("Prefer") == "return=representation" {
		_ = json.NewEncoder(w).Encode([]map[string]any{row})
	}
}

func filterTimestamp(rows []map[string]any, cond string) ([]map[string]any, error) {
	op, val, ok := strings.Cut(cond, ".")
	if !ok {
		return nil, fmt.Errorf("bad filter %q", cond)
	}
	bound, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q", val)
	}
	out := rows[:0:0]
	for _, row := range rows {
		ts := stamp(row)
		var keep bool
		switch op {
		case "gte":
			keep = !ts.Before(bound)
		case "lt":
			keep = ts.Before(bound)
		default:
			return nil, fmt.Errorf("unsupported operator %q", op)
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func filterIn(rows []map[string]any, col, cond string) []map[string]any {
	list := strings.TrimSuffix(strings.TrimPrefix(cond, "in.("), ")")
	want := map[string]bool{}
	for _, v := range strings.Split(list, ",") {
		want[strings.Trim(v, `"`)] = true
	}
	out := rows[:0:0]
	for _, row := range rows {
		if s, _ := row[col].(string); want[s] {
			out = append(out, row)
		}
	}
	return out
}

// stamp reads a row's timestamp the way a UTC Postgres session does: values
// without an offset are taken as UTC
func stamp(row map[string]any) time.Time {
	s, _ := row["timestamp"].(string)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": msg})
}
