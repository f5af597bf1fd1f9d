package collector

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"AShareLens/internal/metrics"
	"AShareLens/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	// Anchor is the date of the last generated bar. Zero means today.
	Anchor     time.Time
	DailyData  []model.Bar
	WeeklyData []model.Bar
	Err        error

	mu       sync.Mutex
	Requests []model.BarRequest
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, req model.BarRequest) (*model.PriceSeries, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	period := req.Period
	if period == "" {
		period = model.PeriodDaily
	}
	series := &model.PriceSeries{Symbol: req.Symbol, Period: period, Adjust: req.Adjust, Fields: model.OHLCV, FetchedAt: time.Now()}

	switch {
	case period == model.PeriodDaily && m.DailyData != nil:
		series.Bars = append([]model.Bar(nil), m.DailyData...)
	case period == model.PeriodWeekly && m.WeeklyData != nil:
		series.Bars = append([]model.Bar(nil), m.WeeklyData...)
	default:
		daily := &model.PriceSeries{Symbol: req.Symbol, Period: model.PeriodDaily, Adjust: req.Adjust, Fields: model.OHLCV, FetchedAt: series.FetchedAt}
		if m.DailyData != nil {
			daily.Bars = append([]model.Bar(nil), m.DailyData...)
		} else {
			daily.Bars = generateMockBars(m.Price, m.anchor(req), req.Start)
		}
		return Resample(daily.Window(req.Start, req.End), period)
	}
	return series.Window(req.Start, req.End), nil
}

func (m *MockFetcher) anchor(req model.BarRequest) time.Time {
	switch {
	case !req.End.IsZero():
		return req.End
	case !m.Anchor.IsZero():
		return m.Anchor
	default:
		return time.Now()
	}
}

// generateMockBars produces weekday bars from start to end around basePrice: a slow wave with a
// slight upward drift. Without a start, one year is generated.
func generateMockBars(basePrice float64, end, start time.Time) []model.Bar {
	if basePrice <= 0 {
		basePrice = 10
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, model.Shanghai)
	if start.IsZero() {
		start = end.AddDate(-1, 0, 0)
	}
	var dates []time.Time
	for d := end; !d.Before(start); d = d.AddDate(0, 0, -1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			dates = append(dates, d)
		}
	}
	bars := make([]model.Bar, len(dates))
	for i := range dates {
		date := dates[len(dates)-1-i]
		p := basePrice * (1 + 0.08*math.Sin(float64(i)/12) + 0.0005*float64(i))
		bars[i] = model.NewBar(date, p*0.998, p*1.01, p*0.99, p, 1e6)
	}
	return bars
}

// Snapshot holds the price series a report is computed from.
type Snapshot struct {
	Symbol string
	Daily  *model.PriceSeries
	Weekly *model.PriceSeries
}

// Collector fetches the daily and weekly bars for one symbol.
type Collector struct {
	Fetcher Fetcher
	// LookbackDays is the calendar window for daily bars; WeeklyLookbackDays for weekly bars.
	LookbackDays       int
	WeeklyLookbackDays int
	Adjust             model.Adjust

	log zerolog.Logger
	now func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, lookbackDays int, adjust model.Adjust, log zerolog.Logger) *Collector {
	if lookbackDays <= 0 {
		lookbackDays = 600
	}
	return &Collector{
		Fetcher:            fetcher,
		LookbackDays:       lookbackDays,
		WeeklyLookbackDays: 365 * 6,
		Adjust:             adjust,
		log:                log,
		now:                time.Now,
	}
}

// Collect fetches daily bars over the lookback window and weekly bars over the weekly window.
// A failed weekly download falls back to resampling the daily bars.
func (c *Collector) Collect(ctx context.Context, symbol string) (*Snapshot, error) {
	now := c.now().In(model.Shanghai)
	daily, err := c.fetch(ctx, model.BarRequest{
		Symbol: symbol, Start: now.AddDate(0, 0, -c.LookbackDays), Period: model.PeriodDaily, Adjust: c.Adjust,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars: %w", err)
	}
	if daily.Len() == 0 {
		return nil, fmt.Errorf("fetch daily bars: no data for %s", symbol)
	}

	weekly, err := c.fetch(ctx, model.BarRequest{
		Symbol: symbol, Start: now.AddDate(0, 0, -c.WeeklyLookbackDays), Period: model.PeriodWeekly, Adjust: c.Adjust,
	})
	if err != nil || weekly.Len() == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("weekly fetch failed, resampling daily bars")
		weekly, err = Resample(daily, model.PeriodWeekly)
		if err != nil {
			return nil, fmt.Errorf("resample weekly: %w", err)
		}
	}

	return &Snapshot{Symbol: symbol, Daily: daily.SortedByDate(), Weekly: weekly.SortedByDate()}, nil
}

func (c *Collector) fetch(ctx context.Context, req model.BarRequest) (*model.PriceSeries, error) {
	series, err := c.Fetcher.FetchBars(ctx, req)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.FetchesTotal.WithLabelValues(c.Fetcher.Name(), result).Inc()
	if err == nil {
		c.log.Debug().Str("symbol", req.Symbol).Str("period", string(req.Period)).Int("bars", series.Len()).Msg("bars fetched")
	}
	return series, err
}
