/*
Package postgrest stores filing rows through a PostgREST (Supabase) table
endpoint: range-paged reads and one POST per inserted row.
*/
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shanehull/idxscraper/internal/filings"
	"github.com/shanehull/idxscraper/internal/platform/config"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/window"
)

const maxResponseBody = 32 << 20

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RejectedError is a non-2xx insert response. Body is kept verbatim for the report.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client is a filings.Store backed by PostgREST
type Client struct {
	hc       HTTPClient
	endpoint string
	apiKey   string
	pageSize int
	timeout  time.Duration
}

// New builds a client for cfg.Table under cfg.URL
func New(hc HTTPClient, cfg config.Store) *Client {
	return &Client{
		hc:       hc,
		endpoint: strings.TrimRight(cfg.URL, "/") + "/rest/v1/" + url.PathEscape(cfg.Table),
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		timeout:  cfg.Timeout,
	}
}

// QueryByDayRangeAndSymbols pages through rows with from <= timestamp < to
// until a short page comes back
func (c *Client) QueryByDayRangeAndSymbols(ctx context.Context, from, to time.Time, symbols []string) ([]filings.Row, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Add("timestamp", "gte."+from.Format(time.RFC3339))
	q.Add("timestamp", "lt."+to.Format(time.RFC3339))
	if len(symbols) > 0 {
		q.Set("symbol", "in.("+strings.Join(symbols, ",")+")")
	}
	q.Set("order", "timestamp.asc")
	target := c.endpoint + "?" + q.Encode()

	var out []filings.Row
	for offset := 0; ; offset += c.pageSize {
		page, err := c.queryPage(ctx, target, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < c.pageSize {
			break
		}
	}
	logger.C(ctx).Debug().Str("component", "postgrest").Int("rows", len(out)).
		Time("from", from).Time("to", to).Msg("existing rows fetched")
	return out, nil
}

func (c *Client) queryPage(ctx context.Context, target string, offset int) ([]filings.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "create query request")
	}
	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Range-Unit", "items")
	req.Header.Set("Range", fmt.Sprintf("%d-%d", offset, offset+c.pageSize-1))

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, perr.Transportf("query rows: status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var rows []filings.Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeParse, "decode rows")
	}
	return rows, nil
}

// InsertRow posts one record and returns the stored representation. The
// timestamp is sent with an explicit UTC+7 offset; a naive value would be read
// in the server's session zone.
func (c *Client) InsertRow(ctx context.Context, record map[string]any) (json.RawMessage, error) {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}
	if v, ok := record["timestamp"]; ok {
		t, err := window.ParseLocal(fmt.Sprint(v))
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeRejected, "insert row")
		}
		out["timestamp"] = t.In(window.Zone).Format(time.RFC3339)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeParse, "encode record")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "create insert request")
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, perr.Wrap(&RejectedError{Status: status, Body: string(body)}, perr.ErrorCodeRejected, "insert row")
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, perr.Wrapf(err, perr.ErrorCodeTransport, "%s %s", req.Method, req.URL.Path)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, perr.Wrap(err, perr.ErrorCodeTransport, "read response body")
	}
	return body, resp.StatusCode, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// Close is a no-op
func (c *Client) Close() error { return nil }
