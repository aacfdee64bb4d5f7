// Package app wires configuration, storage, the ledger client and the
// stream workers into a runnable process. Which streams a process runs is a
// static entry-point concern: each invocation names its streams on the
// command line and must be the only writer of their checkpoints.
package app

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/graphenedata/ledger-indexer/pkg/config"
	"github.com/graphenedata/ledger-indexer/pkg/database"
	"github.com/graphenedata/ledger-indexer/pkg/ledger"
	"github.com/graphenedata/ledger-indexer/pkg/scraper"
	"github.com/graphenedata/ledger-indexer/pkg/worker"
)

type CLIArgs struct {
	ConfigFile string   `arg:"--config,env:CONFIG_FILE" default:"config.toml"`
	Streams    []string `arg:"positional" help:"streams to run (default: all)"`
}

// Input carries what the caller must supply: a ledger client constructor
// and the defaults for its configuration section.
type Input[C any] struct {
	NewLedgerClient     func(C) (ledger.Client, error)
	DefaultLedgerConfig C
}

func Run[C any](input Input[C]) error {
	var args CLIArgs
	arg.MustParse(&args)

	return runWithArgs(input, args)
}

func runWithArgs[C any](input Input[C], args CLIArgs) error {
	type Config struct {
		config.BaseConfig
		Ledger C `toml:"ledger"`
	}

	cfg := Config{
		BaseConfig: config.DefaultBaseConfig,
		Ledger:     input.DefaultLedgerConfig,
	}
	if err := config.ReadFile(args.ConfigFile, &cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}

	db, err := database.New(&cfg.DB)
	if err != nil {
		return err
	}

	rawClient, err := input.NewLedgerClient(cfg.Ledger)
	if err != nil {
		return err
	}
	client := ledger.WithBackoff(
		rawClient,
		time.Duration(cfg.Timeout.BackoffMaxElapsedTimeSeconds)*time.Second,
		time.Duration(cfg.Timeout.RequestTimeoutMillis)*time.Millisecond,
		log,
	)

	tracked := scraper.NewTrackedSet(cfg.Scraper.TrackedAccounts)
	updater := scraper.NewAccountUpdater(client, db, tracked, cfg.Scraper.QuickBackfillBatch, log)
	posts := scraper.NewPostSyncer(client, db, log)

	streams := map[string]func(context.Context) error{
		"scrape_blocks":     scraper.NewBlockIngestor(client, db, log).Run,
		"scrape_operations": scraper.NewOperationIngestor(client, db, log).Run,
		"post_processing": scraper.NewPostProcessor(client, db, updater, posts, scraper.PostProcessorConfig{
			BatchSize:    cfg.Scraper.BatchSize,
			MaxWorkers:   cfg.Scraper.MaxWorkers,
			PollInterval: time.Duration(cfg.Scraper.PollIntervalMillis) * time.Millisecond,
		}, log).Run,
		"scrape_accounts": scraper.NewAccountScanner(
			db, updater, tracked, cfg.Scraper.QuickScan,
			time.Duration(cfg.Scraper.ScanPauseSeconds)*time.Second, log,
		).Run,
		"refresh_stats": scraper.NewStatsRefresher(
			db, time.Duration(cfg.Scraper.StatsPauseSeconds)*time.Second, log,
		).Run,
	}

	selected := args.Streams
	if len(selected) == 0 {
		for name := range streams {
			selected = append(selected, name)
		}
		sort.Strings(selected)
	}
	for _, name := range selected {
		if _, ok := streams[name]; !ok {
			return errors.Errorf("unknown stream %q (known: %v)", name, streamNames(streams))
		}
	}

	// Shutdown is interrupt driven; in-flight work is abandoned, not
	// quiesced. Idempotent writes make the re-processing on the next
	// start harmless.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retryDelay := time.Duration(cfg.Scraper.RetryDelaySeconds) * time.Second

	eg, ctx := errgroup.WithContext(ctx)
	for _, name := range selected {
		name := name
		fn := streams[name]

		log.Infof("starting worker: %s", name)
		eg.Go(func() error {
			return worker.Run(ctx, log, name, retryDelay, fn)
		})
	}

	return eg.Wait()
}

func streamNames(streams map[string]func(context.Context) error) []string {
	names := make([]string, 0, len(streams))
	for name := range streams {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "bad log level %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}
