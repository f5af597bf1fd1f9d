package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"AShareLens/internal/calculator"
	"AShareLens/internal/collector"
	"AShareLens/internal/history"
	"AShareLens/internal/metrics"
	"AShareLens/internal/model"
)

const (
	// recentBars is how many trailing bars count as "recent" for crossovers.
	recentBars    = 3
	trendLookback = 60
)

// Engine turns a snapshot into a report: indicators, crossovers and rule signals.
type Engine struct {
	MACD            calculator.MACDConfig
	MAPeriods       []int
	WeeklyMAPeriods []int
	Rules           []Rule
	RecentBars      int

	log zerolog.Logger
}

// NewEngine creates an engine with the default rule set.
func NewEngine(cfg calculator.MACDConfig, maPeriods, weeklyMAPeriods []int, log zerolog.Logger) *Engine {
	if len(maPeriods) == 0 {
		maPeriods = calculator.DefaultMAPeriods
	}
	if len(weeklyMAPeriods) == 0 {
		weeklyMAPeriods = calculator.DefaultWeeklyMAPeriods
	}
	return &Engine{
		MACD:            cfg,
		MAPeriods:       maPeriods,
		WeeklyMAPeriods: weeklyMAPeriods,
		RecentBars:      recentBars,
		Rules: []Rule{
			NewMA250NoAction(log),
			NewMATrendAlignment(maPeriods, 1, log),
			MACDCrossRule{},
			TDSequentialRule{},
			NewRSIExtremeRule(),
		},
		log: log,
	}
}

// Evaluate computes the report for one snapshot. Only an unusable daily series is fatal; other
// failures are recorded in Report.Errors.
func (e *Engine) Evaluate(runID string, snap *collector.Snapshot) (*model.Report, error) {
	h, err := history.New(snap.Daily)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", snap.Symbol, err)
	}
	cur := h.Current()
	report := &model.Report{RunID: runID, Symbol: snap.Symbol, AsOf: cur.Date, Close: cur.Close}
	logger := e.log.With().Str("symbol", snap.Symbol).Str("run_id", runID).Logger()
	fail := func(what string, err error) {
		logger.Warn().Err(err).Msg(what + " failed")
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", what, err))
	}

	if withMA, err := h.WithMA(append(append([]int(nil), e.MAPeriods...), 250)...); err != nil {
		fail("moving averages", err)
	} else {
		h = withMA
	}

	if withMACD, res, err := h.WithMACD(e.MACD); err != nil {
		fail("macd", err)
	} else {
		h = withMACD
		if row, ok := res.Latest(); ok {
			report.MACD = &row
		}
		events, err := calculator.DetectCrossovers(res)
		if err != nil && !errors.Is(err, calculator.ErrInsufficientData) {
			fail("crossovers", err)
		}
		report.Crossovers = events
		report.RecentCrossovers = calculator.RecentCrossovers(res, events, e.RecentBars)
		for _, ev := range report.RecentCrossovers {
			metrics.CrossoversTotal.WithLabelValues(string(ev.Kind)).Inc()
		}
	}

	if rows, err := calculator.TDSequential(snap.Daily); err != nil {
		fail("td sequential", err)
	} else if len(rows) > 0 {
		last := rows[len(rows)-1]
		report.TD = &last
	}

	if snap.Weekly != nil && snap.Weekly.Len() > 0 {
		report.WeeklyCrosses, report.WeeklyAbove, err = e.weeklyMA(snap.Weekly)
		if err != nil {
			fail("weekly ma crossovers", err)
		}
	}

	bars := h.Tail(h.Len())
	if rsi, err := calculator.CalculateRSI(bars, 14); err != nil {
		fail("rsi", err)
	} else {
		report.RSI = rsi
	}
	if high, low, err := calculator.Calculate52WeekRange(bars); err != nil {
		fail("52-week range", err)
	} else {
		report.High52w, report.Low52w = high, low
		report.Position52w, _ = calculator.RangePosition(cur.Close, high, low)
	}
	if high, low, err := calculator.Calculate30DayRange(bars); err != nil {
		fail("30-day range", err)
	} else {
		report.High30d, report.Low30d = high, low
	}
	if trend, err := calculator.Trend(snap.Daily, trendLookback); err != nil {
		fail("trend", err)
	} else {
		report.Trend = trend
	}

	for _, rule := range e.Rules {
		sig, err := rule.Evaluate(h)
		if err != nil {
			fail("rule "+rule.Name(), err)
			continue
		}
		if sig == nil {
			continue
		}
		report.Signals = append(report.Signals, *sig)
		metrics.SignalsTotal.WithLabelValues(sig.Rule, string(sig.Severity)).Inc()
	}

	logger.Debug().Int("signals", len(report.Signals)).Int("recent_crossovers", len(report.RecentCrossovers)).Msg("evaluated")
	return report, nil
}

// EvaluateWeekly builds a report from the weekly bars only: the recent MA20/MA30 vs MA60
// crossovers and whether MA20 or MA30 is above MA60 on the latest week.
func (e *Engine) EvaluateWeekly(runID string, snap *collector.Snapshot) (*model.Report, error) {
	if snap.Weekly == nil || snap.Weekly.Len() == 0 {
		return nil, fmt.Errorf("%s: no weekly bars", snap.Symbol)
	}
	last, _ := snap.Weekly.SortedByDate().Last()
	report := &model.Report{RunID: runID, Symbol: snap.Symbol, AsOf: last.Date, Close: last.Close}
	crosses, above, err := e.weeklyMA(snap.Weekly)
	if err != nil {
		return nil, fmt.Errorf("%s: weekly ma: %w", snap.Symbol, err)
	}
	report.WeeklyCrosses, report.WeeklyAbove = crosses, above
	e.log.Debug().Str("symbol", snap.Symbol).Str("run_id", runID).Int("weekly_crosses", len(crosses)).Bool("above_ma60", above != nil).Msg("weekly evaluated")
	return report, nil
}

// weeklyMA returns the MA20/MA30 vs MA60 crossovers on the last RecentBars weekly bars and the
// latest bar's MA-above-MA60 state, nil when neither average is above.
func (e *Engine) weeklyMA(weekly *model.PriceSeries) ([]model.MACrossover, *model.MAAbove, error) {
	mas, err := calculator.WeeklyMA(weekly, e.WeeklyMAPeriods)
	if err != nil {
		return nil, nil, err
	}
	crosses, err := calculator.FindMACrossovers(weekly, mas)
	if err != nil {
		return nil, nil, err
	}
	aboves, err := calculator.FindMAAboveMA60(weekly, mas)
	if err != nil {
		return nil, nil, err
	}
	sorted := weekly.SortedByDate()
	latest, _ := sorted.Last()
	var above *model.MAAbove
	if n := len(aboves); n > 0 && aboves[n-1].Date.Equal(latest.Date) {
		above = &aboves[n-1]
	}

	n := e.RecentBars
	if n <= 0 || n > sorted.Len() {
		n = sorted.Len()
	}
	since := sorted.Bars[sorted.Len()-n].Date
	var recent []model.MACrossover
	for _, c := range crosses {
		if !c.Date.Before(since) {
			recent = append(recent, c)
		}
	}
	return recent, above, nil
}

// Summary is a one-line description of a report for logs and chat replies.
func Summary(r *model.Report) string {
	s := fmt.Sprintf("%s %s close=%.2f", r.Symbol, r.AsOf.Format(time.DateOnly), r.Close)
	if r.MACD != nil {
		s += fmt.Sprintf(" dif=%.3f dea=%.3f hist=%.3f", r.MACD.MACD, r.MACD.Signal, r.MACD.Histogram)
	}
	return s + fmt.Sprintf(" signals=%d", len(r.Signals))
}
