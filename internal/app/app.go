// Package app wires configuration into the fetcher, cache, collector and engine shared by the
// binaries.
package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"AShareLens/internal/cache"
	"AShareLens/internal/collector"
	"AShareLens/internal/config"
	"AShareLens/internal/strategy"
)

// App holds the components built from a Config.
type App struct {
	Fetcher   collector.Fetcher
	Store     cache.Store
	Collector *collector.Collector
	Engine    *strategy.Engine
}

// NewFetcher builds the configured data source without caching.
func NewFetcher(cfg *config.Config, log zerolog.Logger) (collector.Fetcher, error) {
	ds := cfg.DataSource
	switch ds.Provider {
	case "eastmoney":
		f := collector.NewEastMoneyFetcher(cfg.Proxy, log)
		f.RequestGap = time.Duration(ds.RequestGapMs) * time.Millisecond
		f.MaxRetries = ds.MaxRetries
		return f, nil
	case "yahoo":
		return collector.NewYahooFetcher(cfg.Proxy, log), nil
	case "csv":
		return &collector.CSVFetcher{Dir: ds.CSVDir}, nil
	case "mock":
		return &collector.MockFetcher{Price: 10}, nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", ds.Provider)
	}
}

// New builds the application components. A SQLite cache that cannot be opened is logged and
// replaced with a no-op store.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	macd, err := cfg.MACD()
	if err != nil {
		return nil, err
	}
	adjust, err := cfg.Adjust()
	if err != nil {
		return nil, err
	}
	fetcher, err := NewFetcher(cfg, log)
	if err != nil {
		return nil, err
	}

	var store cache.Store = cache.NewNoopStore()
	if cfg.Cache.SQLitePath != "" {
		s, err := cache.NewSQLiteStore(cfg.Cache.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Cache.SQLitePath).Msg("init sqlite cache failed, using noop")
		} else {
			store = s
		}
	}
	// local files need no cache
	if cfg.DataSource.Provider != "csv" && cfg.DataSource.Provider != "mock" {
		fetcher = collector.NewCachedFetcher(fetcher, store, log)
	}
	log.Info().Str("source", fetcher.Name()).Str("adjust", string(adjust)).Msg("data source ready")

	return &App{
		Fetcher:   fetcher,
		Store:     store,
		Collector: collector.NewCollector(fetcher, cfg.DataSource.LookbackDays, adjust, log),
		Engine:    strategy.NewEngine(macd, cfg.Indicator.MAPeriods, cfg.Indicator.WeeklyMAPeriods, log),
	}, nil
}

// Close releases the store.
func (a *App) Close() error { return a.Store.Close() }
