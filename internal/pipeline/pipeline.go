/*
Package pipeline wires the stages of a run together. Scrape turns a window
into downloaded documents plus an alert list; Ingest turns normalized filing
rows into store inserts.
*/
package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/shanehull/idxscraper/internal/classify"
	"github.com/shanehull/idxscraper/internal/filings"
	"github.com/shanehull/idxscraper/internal/notify"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/report"
	"github.com/shanehull/idxscraper/internal/types"
	"github.com/shanehull/idxscraper/internal/window"
)

// Lister pages the announcement listing for an inclusive day range
type Lister interface {
	FetchAnnouncements(ctx context.Context, dayFrom, dayTo string) ([]types.Announcement, error)
}

// Downloader stores the documents of classified announcements
type Downloader interface {
	DownloadAll(ctx context.Context, items []types.Classified, dir string, dryRun bool) ([]types.DownloadRecord, []types.Alert)
}

// Checkpointer persists the end of the last completed window
type Checkpointer interface {
	Load() (time.Time, bool, error)
	Save(end time.Time) error
}

// Deps are the collaborators of a run. Only the ones a stage needs must be set:
// Scrape uses Lister, Downloader, Classifier and optionally Checkpoint, Sender
// and Console; Ingest uses Store.
type Deps struct {
	Lister     Lister
	Downloader Downloader
	Classifier *classify.Classifier
	Checkpoint Checkpointer
	Sender     notify.Sender
	Renderer   notify.Renderer
	Console    io.Writer
	Store      filings.Store
	Now        func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// newRun tags ctx with a fresh run id
func newRun(ctx context.Context) (context.Context, string) {
	id := logger.RunID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logger.WithRun(ctx, id)
	}
	return ctx, id
}

// ScrapeOptions select the window and output locations of a scrape
type ScrapeOptions struct {
	Window        window.Params
	UseCheckpoint bool
	OutDir        string
	DownloadsPath string
	AlertsPath    string
	DryRun        bool
}

// ScrapeSummary counts what a scrape did
type ScrapeSummary struct {
	RunID      string
	Resolution window.Resolution
	Fetched    int
	InWindow   int
	IDX        int
	NonIDX     int
	Unknown    int
	Downloads  []types.DownloadRecord
	Alerts     []types.Alert
}

// Scrape runs one download pass. Validation errors and an unreachable first
// listing page are returned; per-document failures become alerts.
func Scrape(ctx context.Context, deps Deps, opts ScrapeOptions) (ScrapeSummary, error) {
	ctx, runID := newRun(ctx)
	log := logger.C(ctx).With().Str("component", "scrape").Logger()
	sum := ScrapeSummary{RunID: runID}

	res, err := resolve(ctx, deps, opts)
	if err != nil {
		return sum, err
	}
	sum.Resolution = res
	log.Info().Str("mode", res.Mode.String()).Str("from", res.DayFrom).Str("to", res.DayTo).
		Bool("precise", res.Precise != nil).Bool("dry_run", opts.DryRun).Msg("window resolved")

	items, err := deps.Lister.FetchAnnouncements(ctx, res.DayFrom, res.DayTo)
	if err != nil {
		return sum, err
	}
	sum.Fetched = len(items)

	items = window.Filter(items, res.Precise)
	sum.InWindow = len(items)

	idx, nonIDX, unknown := deps.Classifier.Split(items)
	sum.IDX, sum.NonIDX, sum.Unknown = len(idx), len(nonIDX), len(unknown)

	toFetch := make([]types.Classified, 0, len(idx)+len(nonIDX))
	toFetch = append(toFetch, idx...)
	toFetch = append(toFetch, nonIDX...)
	records, failed := deps.Downloader.DownloadAll(ctx, toFetch, opts.OutDir, opts.DryRun)

	alerts := make([]types.Alert, 0, len(unknown)+len(failed))
	now := deps.now().UTC()
	for _, c := range unknown {
		alerts = append(alerts, types.NewAlert(types.AlertUnknownTitle, c, "", now))
	}
	alerts = append(alerts, failed...)
	sum.Downloads, sum.Alerts = records, alerts

	if err := report.WriteJSON(opts.DownloadsPath, records); err != nil {
		return sum, perr.Wrap(err, perr.ErrorCodeUnknown, "write downloads")
	}
	if err := report.WriteJSON(opts.AlertsPath, alerts); err != nil {
		return sum, perr.Wrap(err, perr.ErrorCodeUnknown, "write alerts")
	}

	digest := notify.Digest{
		RunID:     runID,
		Window:    windowLabel(res),
		Fetched:   sum.Fetched,
		Downloads: len(records),
		Alerts:    alerts,
	}
	if deps.Console != nil {
		notify.ReportDigest(deps.Console, digest)
	}
	if !opts.DryRun && deps.Sender != nil && deps.Renderer != nil {
		if err := notify.SendDigest(ctx, deps.Renderer, deps.Sender, digest); err != nil {
			log.Warn().Err(err).Int("alerts", len(alerts)).Msg("alert digest not delivered, run continues")
		}
	}

	if !opts.DryRun && deps.Checkpoint != nil {
		if err := deps.Checkpoint.Save(res.End()); err != nil {
			log.Error().Err(err).Msg("save checkpoint")
		}
	}

	log.Info().
		Int("fetched", sum.Fetched).
		Int("in_window", sum.InWindow).
		Int("idx", sum.IDX).
		Int("non_idx", sum.NonIDX).
		Int("unknown", sum.Unknown).
		Int("downloads", len(records)).
		Int("alerts", len(alerts)).
		Msg("scrape finished")
	return sum, nil
}

// resolve prefers the checkpoint when asked for and present, otherwise the
// explicit window parameters
func resolve(ctx context.Context, deps Deps, opts ScrapeOptions) (window.Resolution, error) {
	if opts.UseCheckpoint && deps.Checkpoint != nil {
		last, ok, err := deps.Checkpoint.Load()
		switch {
		case err != nil:
			logger.C(ctx).Warn().Err(err).Msg("checkpoint unavailable, using explicit window")
		case ok:
			return window.ResolveSince(last, deps.now())
		}
	}
	return window.Resolve(opts.Window)
}

func windowLabel(r window.Resolution) string {
	if r.Precise != nil {
		return r.Precise.String()
	}
	if r.DayFrom == r.DayTo {
		return r.DayFrom
	}
	return r.DayFrom + "-" + r.DayTo
}

// IngestOptions control an upload pass
type IngestOptions struct {
	InputPath        string
	DryRun           bool
	StopOnFirstError bool
	AllowedFields    []string
	Hash             filings.HashOptions
}

// IngestSummary counts what an upload pass did
type IngestSummary struct {
	RunID   string
	Loaded  int
	Invalid int
	Dedup   filings.Stats
	Result  filings.UploadResult
}

// Ingest loads rows from InputPath, drops rows without a symbol or timestamp,
// removes duplicates and uploads the rest. A failing row does not abort the
// pass unless StopOnFirstError is set.
func Ingest(ctx context.Context, deps Deps, opts IngestOptions) (IngestSummary, error) {
	ctx, runID := newRun(ctx)
	log := logger.C(ctx).With().Str("component", "ingest").Logger()
	sum := IngestSummary{RunID: runID, Result: filings.UploadResult{
		Inserted:   []json.RawMessage{},
		FailedRows: []filings.Row{},
		Errors:     []string{},
	}}

	rows, err := report.LoadRows(opts.InputPath)
	if err != nil {
		return sum, err
	}
	sum.Loaded = len(rows)

	valid := make([]filings.Row, 0, len(rows))
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			log.Warn().Err(err).Int("row", i).Msg("dropping invalid row")
			sum.Invalid++
			continue
		}
		valid = append(valid, r)
	}

	hashOpts := opts.Hash
	if hashOpts == (filings.HashOptions{}) {
		hashOpts = filings.DefaultHashOptions()
	}
	survivors, stats := filings.NewDeduplicator(deps.Store, hashOpts).Dedup(ctx, valid)
	sum.Dedup = stats

	if opts.DryRun {
		log.Info().Int("would_insert", len(survivors)).Interface("dedup", stats).Msg("dry-run: upload skipped")
		return sum, nil
	}

	sum.Result = filings.NewUploader(deps.Store, opts.AllowedFields, opts.StopOnFirstError).Upload(ctx, survivors)
	log.Info().
		Int("loaded", sum.Loaded).
		Int("invalid", sum.Invalid).
		Interface("dedup", stats).
		Int("inserted", sum.Result.InsertedCount).
		Int("failed", len(sum.Result.FailedRows)).
		Msg("ingest finished")
	return sum, nil
}
