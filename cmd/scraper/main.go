package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/shanehull/idxscraper/internal/checkpoint"
	"github.com/shanehull/idxscraper/internal/classify"
	"github.com/shanehull/idxscraper/internal/idx"
	"github.com/shanehull/idxscraper/internal/notify"
	"github.com/shanehull/idxscraper/internal/pipeline"
	"github.com/shanehull/idxscraper/internal/platform/config"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/window"
)

var (
	date      = flag.String("date", "", "Day to scrape (YYYYMMDD)")
	startHHMM = flag.String("start", "", "Start clock time on -date (HH:MM, default 00:00)")
	endHHMM   = flag.String("end", "", "End clock time on -date (HH:MM, default 23:59:59)")
	from      = flag.String("from", "", "First day of an inclusive day range (YYYYMMDD)")
	to        = flag.String("to", "", "Last day of an inclusive day range (YYYYMMDD)")
	month     = flag.String("month", "", "Whole month (YYYYMM or YYYY-MM)")
	spanStart = flag.String("span-start", "", "Start of an hour span (\"YYYYMMDD HH\")")
	spanEnd   = flag.String("span-end", "", "End of an hour span (\"YYYYMMDD HH\")")

	outDir        = flag.String("out-dir", "", "Directory for downloaded documents (default from config)")
	downloadsPath = flag.String("downloads", "", "Download metadata JSON file (default from config)")
	alertsPath    = flag.String("alerts", "", "Alerts JSON file (default from config)")
	threshold     = flag.Int("threshold", -1, "Title similarity threshold 0-100 (default from config)")

	dryRun        = flag.Bool("dry-run", false, "Resolve, list and classify without downloading or saving a checkpoint")
	useCheckpoint = flag.Bool("use-checkpoint", false, "Resume from the checkpoint when one exists")
	cpPath        = flag.String("checkpoint", "", "Checkpoint file (default from config)")
	configPath    = flag.String("config", "", "Optional YAML config file")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
		fmt.Fprintln(os.Stderr, "  Pick one window: -date [-start -end] | -from -to | -month | -span-start -span-end | -use-checkpoint")
		flag.PrintDefaults()
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	logger.Init(logger.FromEnv())
	log := logger.Named("scraper")

	cfg, err := config.Load(*configPath, config.Scrape)
	if err != nil {
		log.Error().Err(err).Msg("load config")
		return 1
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *downloadsPath != "" {
		cfg.Output.Downloads = *downloadsPath
	}
	if *alertsPath != "" {
		cfg.Output.Alerts = *alertsPath
	}
	if *cpPath != "" {
		cfg.Output.Checkpoint = *cpPath
	}
	if *threshold >= 0 {
		cfg.Classifier.Threshold = *threshold
	}
	if err := config.Validate(cfg, config.Scrape); err != nil {
		log.Error().Err(err).Msg("invalid flags")
		return 1
	}

	retriever, err := idx.NewRetriever(cfg.Documents)
	if err != nil {
		log.Error().Err(err).Msg("set up document retriever")
		return 1
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", cfg.Output.Dir).Msg("create output directory")
		return 1
	}

	deps := pipeline.Deps{
		Lister:     idx.NewClient(&http.Client{}, cfg.Source, cfg.Documents.UserAgent),
		Downloader: retriever,
		Classifier: classify.New(cfg.Classifier),
		Checkpoint: checkpoint.NewManager(cfg.Output.Checkpoint),
		Console:    os.Stdout,
	}
	if cfg.SMTP.Enabled() {
		deps.Sender = notify.NewEmailSender(cfg.SMTP)
		deps.Renderer = notify.NewHTMLEmailRenderer()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := pipeline.Scrape(ctx, deps, pipeline.ScrapeOptions{
		Window: window.Params{
			Date:      *date,
			StartHHMM: *startHHMM,
			EndHHMM:   *endHHMM,
			From:      *from,
			To:        *to,
			Month:     *month,
			SpanStart: *spanStart,
			SpanEnd:   *spanEnd,
		},
		UseCheckpoint: *useCheckpoint,
		OutDir:        cfg.Output.Dir,
		DownloadsPath: cfg.Output.Downloads,
		AlertsPath:    cfg.Output.Alerts,
		DryRun:        *dryRun,
	})
	if perr.IsFatal(err) {
		log.Error().Err(err).Msg("invalid window")
		flag.Usage()
		return 1
	}
	if err != nil {
		log.Error().Err(err).Str("run_id", sum.RunID).Msg("scrape failed")
		return 1
	}
	return 0
}
