package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/shanehull/idxscraper/internal/filings"
	"github.com/shanehull/idxscraper/internal/pipeline"
	"github.com/shanehull/idxscraper/internal/platform/config"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/report"
	"github.com/shanehull/idxscraper/internal/store"
)

var (
	inPath      = flag.String("in", "", "JSON array of normalized filing rows")
	dryRun      = flag.Bool("dry-run", false, "Deduplicate against the store without inserting")
	stopOnError = flag.Bool("stop-on-error", false, "Abort the batch at the first rejected row")
	resultPath  = flag.String("result", "", "Optional file for the upload result JSON")
	configPath  = flag.String("config", "", "Optional YAML config file")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	logger.Init(logger.FromEnv())
	log := logger.Named("uploader")

	if *inPath == "" {
		log.Error().Msg("-in is required")
		flag.Usage()
		return 1
	}

	cfg, err := config.Load(*configPath, config.Storage)
	if err != nil {
		log.Error().Err(err).Msg("load config")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.Store.Backend).Msg("open store")
		return 1
	}
	defer func() { _ = st.Close() }()

	sum, err := pipeline.Ingest(ctx, pipeline.Deps{Store: st}, pipeline.IngestOptions{
		InputPath:        *inPath,
		DryRun:           *dryRun,
		StopOnFirstError: *stopOnError,
		AllowedFields:    cfg.Store.AllowedFields,
		Hash: filings.HashOptions{
			PercentPrecision: cfg.Store.PercentPrecision,
			PricePrecision:   cfg.Store.PricePrecision,
		},
	})
	if perr.IsFatal(err) {
		log.Error().Err(err).Str("in", *inPath).Msg("input rejected, nothing uploaded")
		return 1
	}
	if err != nil {
		log.Error().Err(err).Msg("ingest failed")
		return 1
	}

	if *resultPath != "" {
		if err := report.WriteJSON(*resultPath, sum.Result); err != nil {
			log.Error().Err(err).Msg("write result")
			return 1
		}
	}
	return 0
}
