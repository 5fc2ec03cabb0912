/*
Package idx talks to the IDX announcement listing and document hosts. Client
pages through the JSON listing for a day range and normalizes each item into
an Announcement; Retriever downloads the attached documents.
*/
package idx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shanehull/idxscraper/internal/platform/config"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/types"
)

const maxListingBody = 10 << 20

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Item is one entry of the listing's Items array
type Item struct {
	PublishDate string           `json:"PublishDate"`
	Title       string           `json:"Title"`
	Code        string           `json:"Code"`
	Attachments []ItemAttachment `json:"Attachments"`
}

// ItemAttachment is a document reference inside a listing item
type ItemAttachment struct {
	FullSavePath     string `json:"FullSavePath"`
	OriginalFilename string `json:"OriginalFilename"`
}

type listingPage struct {
	ResultCount int    `json:"ResultCount"`
	Items       []Item `json:"Items"`
}

// Client pages through the announcement listing
type Client struct {
	hc        HTTPClient
	baseURL   string
	keywords  string
	lang      string
	userAgent string
	pageSize  int
	maxPages  int
	timeout   time.Duration
	now       func() time.Time
}

// NewClient builds a listing client from the source settings
func NewClient(hc HTTPClient, src config.Source, userAgent string) *Client {
	return &Client{
		hc:        hc,
		baseURL:   src.URL,
		keywords:  src.Keywords,
		lang:      src.Lang,
		userAgent: userAgent,
		pageSize:  src.PageSize,
		maxPages:  src.MaxPages,
		timeout:   src.Timeout,
		now:       time.Now,
	}
}

// FetchAnnouncements requests pages 1..N for the inclusive day range until a
// page comes back empty or short. A failure on the first page is returned;
// a failure on a later page ends pagination and keeps what was gathered.
func (c *Client) FetchAnnouncements(ctx context.Context, dayFrom, dayTo string) ([]types.Announcement, error) {
	log := logger.C(ctx).With().Str("component", "idx").Str("from", dayFrom).Str("to", dayTo).Logger()

	var out []types.Announcement
	for page := 1; page <= c.maxPages; page++ {
		items, err := c.fetchPage(ctx, page, dayFrom, dayTo)
		if err != nil {
			if page == 1 {
				return nil, perr.WithOp(err, "listing")
			}
			log.Warn().Err(err).Int("page", page).Int("gathered", len(out)).
				Msg("listing page failed, keeping partial results")
			return out, nil
		}

		kept := 0
		scrapedAt := c.now().UTC()
		for _, it := range items {
			if a, ok := Normalize(it, scrapedAt); ok {
				out = append(out, a)
				kept++
			}
		}
		log.Debug().Int("page", page).Int("items", len(items)).Int("kept", kept).Msg("listing page")

		if len(items) < c.pageSize {
			return out, nil
		}
	}

	log.Warn().Int("max_pages", c.maxPages).Msg("listing page guard reached")
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, page int, dayFrom, dayTo string) ([]Item, error) {
	q := url.Values{}
	q.Set("keywords", c.keywords)
	q.Set("pageNumber", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("dateFrom", dayFrom)
	q.Set("dateTo", dayTo)
	q.Set("lang", c.lang)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "create listing request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9,en;q=0.8")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeTransport, "listing page %d", page)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, perr.Transportf("listing page %d: unexpected status %d", page, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBody))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeTransport, "read listing page %d", page)
	}

	var p listingPage
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeParse, "decode listing page %d", page)
	}
	return p.Items, nil
}

var tickerPrefix = regexp.MustCompile(`^\[?([A-Z]{4})\]?\s*[:\-]`)

// Normalize converts a listing item. The first attachment becomes the main
// link; items without attachments are unusable and reported as false.
func Normalize(it Item, scrapedAt time.Time) (types.Announcement, bool) {
	if len(it.Attachments) == 0 {
		return types.Announcement{}, false
	}

	title := strings.Join(strings.Fields(it.Title), " ")
	code := strings.ToUpper(strings.TrimSpace(it.Code))
	if code == "" {
		if m := tickerPrefix.FindStringSubmatch(title); m != nil {
			code = m[1]
		}
	}

	first := it.Attachments[0]
	a := types.Announcement{
		PublishedAt: strings.TrimSpace(it.PublishDate),
		Title:       title,
		Code:        code,
		MainLink:    strings.TrimSpace(first.FullSavePath),
		MainName:    strings.TrimSpace(first.OriginalFilename),
		Attachments: make([]types.Attachment, 0, len(it.Attachments)-1),
		ScrapedAt:   scrapedAt,
	}
	for _, att := range it.Attachments[1:] {
		a.Attachments = append(a.Attachments, types.Attachment{
			Filename: strings.TrimSpace(att.OriginalFilename),
			URL:      strings.TrimSpace(att.FullSavePath),
		})
	}
	return a, true
}
