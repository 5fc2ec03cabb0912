package idx

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/publicsuffix"

	"github.com/shanehull/idxscraper/internal/platform/config"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/report"
	"github.com/shanehull/idxscraper/internal/types"
	"github.com/shanehull/idxscraper/internal/window"
)

const maxDocumentBody = 64 << 20

// OutcomeKind tags how a document fetch ended
type OutcomeKind int

const (
	OutcomeFailed OutcomeKind = iota
	OutcomeDirect
	OutcomeSeeded
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDirect:
		return "direct"
	case OutcomeSeeded:
		return "seeded"
	default:
		return "failed"
	}
}

// Outcome is the result of Fetch. Body is set on success, Reason on failure.
type Outcome struct {
	Kind   OutcomeKind
	Body   []byte
	Reason error
}

// OK reports whether the document was retrieved
func (o Outcome) OK() bool { return o.Kind != OutcomeFailed }

// Retriever downloads documents. The document host refuses requests that
// arrive without a session cookie, so a failed direct attempt is retried
// once after visiting the seed page to obtain one.
type Retriever struct {
	hc        *http.Client
	seedURL   string
	referer   string
	userAgent string
	timeout   time.Duration
	now       func() time.Time
}

// NewRetriever builds a retriever with its own cookie jar
func NewRetriever(doc config.Documents) (*Retriever, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "create cookie jar")
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if doc.InsecureTLS {
		// the document host has served incomplete certificate chains
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Retriever{
		hc:        &http.Client{Jar: jar, Transport: tr},
		seedURL:   doc.SeedURL,
		referer:   doc.Referer,
		userAgent: doc.UserAgent,
		timeout:   doc.Timeout,
		now:       time.Now,
	}, nil
}

// Fetch downloads url: one direct attempt, then on failure one seed visit
// (its result ignored) and exactly one more direct attempt.
func (r *Retriever) Fetch(ctx context.Context, rawURL string) Outcome {
	log := logger.C(ctx).With().Str("component", "retriever").Str("url", rawURL).Logger()

	body, err := r.get(ctx, rawURL)
	if err == nil {
		return Outcome{Kind: OutcomeDirect, Body: body}
	}
	log.Debug().Err(err).Msg("direct fetch failed, seeding session")

	if serr := r.seed(ctx); serr != nil {
		log.Debug().Err(serr).Msg("seed request failed")
	}

	body, err = r.get(ctx, rawURL)
	if err == nil {
		return Outcome{Kind: OutcomeSeeded, Body: body}
	}
	return Outcome{Kind: OutcomeFailed, Reason: err}
}

func (r *Retriever) seed(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.seedURL, nil)
	if err != nil {
		return err
	}
	r.setHeaders(req)
	resp, err := r.hc.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxListingBody))
	return resp.Body.Close()
}

func (r *Retriever) get(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "bad document url %q", rawURL)
	}
	r.setHeaders(req)

	resp, err := r.hc.Do(req)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeTransport, "document request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, perr.Transportf("document request: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBody))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeTransport, "read document body")
	}
	if len(body) == 0 {
		return nil, perr.Transportf("document request: empty body")
	}
	return body, nil
}

func (r *Retriever) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Referer", r.referer)
}

type document struct {
	url  string
	name string
}

// documents lists what to download for an announcement: its attachments, or
// the main link when there are none
func documents(a types.Announcement) []document {
	if len(a.Attachments) == 0 {
		if a.MainLink == "" {
			return nil
		}
		return []document{{url: a.MainLink, name: a.MainName}}
	}
	docs := make([]document, 0, len(a.Attachments))
	for _, att := range a.Attachments {
		docs = append(docs, document{url: att.URL, name: att.Filename})
	}
	return docs
}

// DownloadAll stores every document of items under dir/<category>/. Each
// stored (or, in dry-run, planned) file yields a DownloadRecord; each failed
// URL yields a download_failed alert and processing continues.
func (r *Retriever) DownloadAll(ctx context.Context, items []types.Classified, dir string, dryRun bool) ([]types.DownloadRecord, []types.Alert) {
	log := logger.C(ctx).With().Str("component", "retriever").Logger()

	records := []types.DownloadRecord{}
	alerts := []types.Alert{}
	for _, c := range items {
		catDir := filepath.Join(dir, c.Label.Dir())
		used := map[string]bool{}
		for _, d := range documents(c.Announcement) {
			dest := filepath.Join(catDir, uniqueName(FileName(c.Announcement, d.name, d.url), used))
			rec := types.DownloadRecord{
				Ticker:    c.Code,
				Title:     c.Title,
				URL:       d.url,
				Filename:  dest,
				Timestamp: c.PublishedAt,
				Category:  c.Label,
			}

			if dryRun {
				log.Info().Str("ticker", c.Code).Str("url", d.url).Str("file", dest).Msg("dry-run: would download")
				records = append(records, rec)
				continue
			}

			out := r.Fetch(ctx, d.url)
			if !out.OK() {
				log.Warn().Err(out.Reason).Str("ticker", c.Code).Str("url", d.url).Msg("download failed")
				alert := types.NewAlert(types.AlertDownloadFailed, c, out.Reason.Error(), r.now().UTC())
				alert.URL = d.url
				alerts = append(alerts, alert)
				continue
			}

			written, err := writeIfChanged(dest, out.Body)
			if err != nil {
				log.Error().Err(err).Str("ticker", c.Code).Str("file", dest).Msg("write document")
				alert := types.NewAlert(types.AlertDownloadFailed, c, err.Error(), r.now().UTC())
				alert.URL = d.url
				alerts = append(alerts, alert)
				continue
			}
			log.Info().Str("ticker", c.Code).Str("outcome", out.Kind.String()).Str("file", dest).
				Bool("unchanged", !written).Int("bytes", len(out.Body)).Msg("downloaded")
			records = append(records, rec)
		}
	}
	return records, alerts
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName builds <TICKER>_<YYYYMMDD-HHMM>_<sanitized original filename>
func FileName(a types.Announcement, original, rawURL string) string {
	ticker := a.Code
	if ticker == "" {
		ticker = "NA"
	}

	stamp := "00000000-0000"
	if t, err := window.ParseLocal(a.PublishedAt); err == nil {
		stamp = t.Format("20060102-1504")
	} else if !a.ScrapedAt.IsZero() {
		stamp = a.ScrapedAt.In(window.Zone).Format("20060102-1504")
	}

	name := strings.TrimSpace(original)
	if name == "" {
		if u, err := url.Parse(rawURL); err == nil {
			name = path.Base(u.Path)
		}
	}
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_.")
	if name == "" {
		name = "document.pdf"
	}
	return fmt.Sprintf("%s_%s_%s", ticker, stamp, name)
}

// uniqueName suffixes a repeated name with _2, _3, ... before its extension.
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		used[name] = true
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		cand := fmt.Sprintf("%s_%d%s", base, i, ext)
		if !used[cand] {
			used[cand] = true
			return cand
		}
	}
}

// writeIfChanged writes body to dest atomically unless an identical file is
// already there. It reports whether anything was written.
func writeIfChanged(dest string, body []byte) (bool, error) {
	if existing, err := os.ReadFile(dest); err == nil && xxhash.Sum64(existing) == xxhash.Sum64(body) {
		return false, nil
	}
	if err := report.WriteFileAtomic(dest, body); err != nil {
		return false, err
	}
	return true, nil
}
