package app

import (
	"context"
	"fmt"
	"time"

	"gamewatch/internal/catalog"
	"gamewatch/internal/config"
	"gamewatch/internal/observability/metrics"
	"gamewatch/internal/storage"
	"gamewatch/internal/tracker"
	telegram "gamewatch/internal/transport/telegram/adapter"
	logx "gamewatch/pkg/logx"
)

// NewApp loads cfgPath and builds the production component graph. Missing
// or invalid required settings fail here, before anything connects.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.SetLogger(logx.NewConsole("INFO").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	// The Telegram sink sends through the adapter it logs about.
	logSvc, log := logx.New(mapLogConfig(cfg), ad)

	store, source, err := openBackends(cfg, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	a, err := New(ctx, cfg, Deps{
		Adapter: ad,
		Source:  source,
		Store:   store,
		Config:  cfgm,
		Logs:    logSvc,
		Log:     log,
		Metrics: metrics.New(),
	})
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func openBackends(cfg *config.Config, log logx.Logger) (storage.Store, *catalog.Fetcher, error) {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	cc, err := mapCatalogConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage ready", logx.String("driver", sc.Driver))
	return store, catalog.NewFetcher(cc, nil, log.With(logx.String("comp", "catalog"))), nil
}

// Local is the offline toolset behind the CLI subcommands: it reads the same
// config and state as the bot but never connects to Telegram.
type Local struct {
	Config  *config.Config
	Store   storage.Store
	Fetcher *catalog.Fetcher
	Tracker *tracker.Tracker
	log     logx.Logger
}

// OpenLocal parses cfgPath without requiring the Telegram settings and opens
// the store and fetcher it names.
func OpenLocal(ctx context.Context, cfgPath string, log logx.Logger) (*Local, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfgm := config.NewManager(cfgPath)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfg, err := cfgm.Parse()
	if err != nil {
		return nil, err
	}
	store, fetcher, err := openBackends(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Local{
		Config:  cfg,
		Store:   store,
		Fetcher: fetcher,
		Tracker: tracker.New(ctx, fetcher, store, log),
		log:     log,
	}, nil
}

// Check runs one cycle. With dryRun the known set and store are untouched.
func (l *Local) Check(ctx context.Context, dryRun bool) (tracker.Result, error) {
	if dryRun {
		return l.Tracker.Preview(ctx)
	}
	return l.Tracker.Check(ctx)
}

func (l *Local) Close() error { return l.Store.Close() }
