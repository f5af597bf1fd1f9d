package collector

import (
	"context"

	"github.com/rs/zerolog"

	"AShareLens/internal/cache"
	"AShareLens/internal/metrics"
	"AShareLens/internal/model"
)

// CachedFetcher is a read-through cache in front of another fetcher. Cache errors are logged and
// the request goes to the inner fetcher.
type CachedFetcher struct {
	Inner Fetcher
	Store cache.Store
	log   zerolog.Logger
}

func NewCachedFetcher(inner Fetcher, store cache.Store, log zerolog.Logger) *CachedFetcher {
	return &CachedFetcher{Inner: inner, Store: store, log: log}
}

func (f *CachedFetcher) Name() string { return f.Inner.Name() }

func (f *CachedFetcher) FetchBars(ctx context.Context, req model.BarRequest) (*model.PriceSeries, error) {
	series, ok, err := f.Store.LoadBars(ctx, req)
	if err != nil {
		f.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("cache lookup failed")
	}
	if ok && series.Len() > 0 {
		metrics.CacheTotal.WithLabelValues("hit").Inc()
		return series, nil
	}
	metrics.CacheTotal.WithLabelValues("miss").Inc()

	series, err = f.Inner.FetchBars(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := f.Store.SaveBars(ctx, req, series); err != nil {
		f.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("cache save failed")
	}
	return series, nil
}
