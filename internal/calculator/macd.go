package calculator

import (
	"math"

	"AShareLens/internal/model"
)

// MACDConfig holds the MACD periods and conventions.
type MACDConfig struct {
	Fast   int
	Slow   int
	Signal int
	Seed   Seeding
	// HistogramScale multiplies macd-signal. 2 gives the Tonghuashun/Chinese terminal histogram.
	HistogramScale float64
}

// DefaultMACDConfig returns the 12/26/9 configuration seeded with the first close.
func DefaultMACDConfig() MACDConfig {
	return MACDConfig{Fast: 12, Slow: 26, Signal: 9, Seed: SeedFirstValue, HistogramScale: 1}
}

// Validate checks the periods.
func (c MACDConfig) Validate() error {
	switch {
	case c.Fast <= 0:
		return &ConfigurationError{Param: "fast_period", Reason: "must be positive"}
	case c.Slow <= 0:
		return &ConfigurationError{Param: "slow_period", Reason: "must be positive"}
	case c.Signal <= 0:
		return &ConfigurationError{Param: "signal_period", Reason: "must be positive"}
	case c.Fast >= c.Slow:
		return &ConfigurationError{Param: "fast_period", Reason: "must be less than slow_period"}
	case c.HistogramScale <= 0:
		return &ConfigurationError{Param: "histogram_scale", Reason: "must be positive"}
	}
	return nil
}

func (c MACDConfig) params() model.MACDParams {
	return model.MACDParams{
		Fast: c.Fast, Slow: c.Slow, Signal: c.Signal,
		Seed: c.Seed.String(), HistogramScale: c.HistogramScale,
	}
}

// ComputeMACD sorts the series by date and derives ema_fast, ema_slow, macd, signal and histogram.
// The first Slow-1 rows are undefined. The input is not modified.
func ComputeMACD(series *model.PriceSeries, cfg MACDConfig) (*model.MACDResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !series.Has(model.FieldClose) {
		return nil, &MissingColumnError{Column: "close", Available: series.Fields.String()}
	}
	if n := countDefined(series.Closes()); n < cfg.Slow {
		return nil, &InsufficientDataError{What: "macd", Need: cfg.Slow, Got: n}
	}

	sorted := series.SortedByDate()
	closes := sorted.Closes()
	fast := EMASeries(closes, cfg.Fast, cfg.Seed)
	slow := EMASeries(closes, cfg.Slow, cfg.Seed)

	warmup := cfg.Slow - 1
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = math.NaN()
		if i < warmup || math.IsNaN(fast[i]) || math.IsNaN(slow[i]) {
			continue
		}
		macd[i] = fast[i] - slow[i]
	}
	signal := EMASeries(macd, cfg.Signal, cfg.Seed)

	rows := make([]model.MACDRow, len(closes))
	for i, b := range sorted.Bars {
		row := model.MACDRow{
			Date:      b.Date,
			Close:     b.Close,
			EMAFast:   fast[i],
			EMASlow:   slow[i],
			MACD:      macd[i],
			Signal:    signal[i],
			Histogram: math.NaN(),
		}
		if i < warmup {
			row.EMAFast, row.EMASlow = math.NaN(), math.NaN()
		}
		if !math.IsNaN(macd[i]) && !math.IsNaN(signal[i]) {
			row.Histogram = (macd[i] - signal[i]) * cfg.HistogramScale
			row.Valid = true
		}
		rows[i] = row
	}

	return &model.MACDResult{Symbol: series.Symbol, Params: cfg.params(), Rows: rows}, nil
}

// DetectCrossovers scans consecutive valid rows for sign changes of macd-signal.
// A difference of exactly zero counts as the side it leaves: d[i-1] <= 0 && d[i] > 0 is golden,
// d[i-1] >= 0 && d[i] < 0 is death.
func DetectCrossovers(result *model.MACDResult) ([]model.CrossoverEvent, error) {
	if n := result.Defined(); n < 2 {
		return nil, &InsufficientDataError{What: "crossover detection", Need: 2, Got: n}
	}

	events := []model.CrossoverEvent{}
	for i := 1; i < len(result.Rows); i++ {
		prev, cur := result.Rows[i-1], result.Rows[i]
		if !prev.Valid || !cur.Valid {
			continue
		}
		dPrev := prev.MACD - prev.Signal
		d := cur.MACD - cur.Signal

		var kind model.CrossoverKind
		switch {
		case dPrev <= 0 && d > 0:
			kind = model.GoldenCross
		case dPrev >= 0 && d < 0:
			kind = model.DeathCross
		default:
			continue
		}
		events = append(events, model.CrossoverEvent{
			Date: cur.Date, Kind: kind, MACD: cur.MACD, Signal: cur.Signal, Close: cur.Close,
		})
	}
	return events, nil
}

// RecentCrossovers returns the events dated on or after the n-th last valid row.
func RecentCrossovers(result *model.MACDResult, events []model.CrossoverEvent, n int) []model.CrossoverEvent {
	if n <= 0 || len(events) == 0 {
		return nil
	}
	seen := 0
	var cutoffIdx int
	for i := len(result.Rows) - 1; i >= 0; i-- {
		if result.Rows[i].Valid {
			seen++
			cutoffIdx = i
			if seen == n {
				break
			}
		}
	}
	cutoff := result.Rows[cutoffIdx].Date
	var out []model.CrossoverEvent
	for _, e := range events {
		if !e.Date.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func countDefined(values []float64) int {
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
