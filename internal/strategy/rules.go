package strategy

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"AShareLens/internal/calculator"
	"AShareLens/internal/history"
	"AShareLens/internal/model"
)

// Rule evaluates the latest bar of a history. A nil signal means the rule did not fire.
type Rule interface {
	Name() string
	Evaluate(h *history.History) (*model.Signal, error)
}

// MA250NoAction warns when the daily close is below MA250.
type MA250NoAction struct {
	log zerolog.Logger
}

func NewMA250NoAction(log zerolog.Logger) *MA250NoAction { return &MA250NoAction{log: log} }

func (r *MA250NoAction) Name() string { return "daily_ma250_no_action" }

func (r *MA250NoAction) Evaluate(h *history.History) (*model.Signal, error) {
	name := history.MA(250)
	if !h.HasIndicator(name) {
		r.log.Warn().Str("rule", r.Name()).Str("symbol", h.Symbol()).Msg("MA250 not found in history, add it with WithMA(250)")
		return nil, nil
	}
	if !h.IsBelow(name, 1) {
		return nil, nil
	}
	ma250, _ := h.Indicator(name, 0)
	cur := h.Current()
	distance := math.NaN()
	if ma250 != 0 {
		distance = (cur.Close/ma250 - 1) * 100
	}
	return &model.Signal{
		Rule:      r.Name(),
		Message:   "Daily close is below MA250, no further action should be taken.",
		Severity:  model.SeverityWarning,
		Timestamp: cur.Date,
		Metadata: map[string]any{
			"close":        cur.Close,
			"ma250":        ma250,
			"distance_pct": distance,
		},
	}, nil
}

// MATrendAlignment fires when every MA moved the same way over the lookback.
type MATrendAlignment struct {
	Periods  []int
	Lookback int
	log      zerolog.Logger
}

func NewMATrendAlignment(periods []int, lookback int, log zerolog.Logger) *MATrendAlignment {
	if len(periods) == 0 {
		periods = calculator.DefaultMAPeriods
	}
	if lookback <= 0 {
		lookback = 1
	}
	return &MATrendAlignment{Periods: periods, Lookback: lookback, log: log}
}

func (r *MATrendAlignment) Name() string { return "ma_trend_alignment" }

func (r *MATrendAlignment) Evaluate(h *history.History) (*model.Signal, error) {
	var missing []string
	for _, p := range r.Periods {
		if !h.HasIndicator(history.MA(p)) {
			missing = append(missing, history.MA(p))
		}
	}
	if len(missing) > 0 {
		r.log.Warn().Str("rule", r.Name()).Strs("missing", missing).Msg("required MA indicators not found")
		return nil, nil
	}
	if h.Len() < r.Lookback+1 {
		r.log.Warn().Str("rule", r.Name()).Int("need", r.Lookback+1).Int("got", h.Len()).Msg("insufficient data for trend analysis")
		return nil, nil
	}

	trends := make(map[string]string, len(r.Periods))
	values := make(map[string]float64, len(r.Periods))
	var up, down int
	var slopeSum float64
	var slopes int
	for _, p := range r.Periods {
		name := history.MA(p)
		cur, ok1 := h.Indicator(name, 0)
		prev, ok2 := h.Indicator(name, r.Lookback)
		if !ok1 || !ok2 {
			r.log.Debug().Str("rule", r.Name()).Str("ma", name).Msg("MA undefined on lookback bars")
			return nil, nil
		}
		switch {
		case cur > prev:
			trends[name] = "up"
			up++
		case cur < prev:
			trends[name] = "down"
			down++
		default:
			trends[name] = "flat"
		}
		values[name] = round(cur, 2)
		if prev > 0 {
			slopeSum += (cur/prev - 1) * 100
			slopes++
		}
	}

	var direction string
	var severity model.Severity
	switch len(r.Periods) {
	case up:
		direction, severity = "up", model.SeverityAction
	case down:
		direction, severity = "down", model.SeverityWarning
	default:
		r.log.Debug().Str("rule", r.Name()).Interface("trends", trends).Msg("MAs not aligned")
		return nil, nil
	}
	avgSlope := 0.0
	if slopes > 0 {
		avgSlope = slopeSum / float64(slopes)
	}

	word := "uptrend"
	if direction == "down" {
		word = "downtrend"
	}
	return &model.Signal{
		Rule:      r.Name(),
		Message:   fmt.Sprintf("Strong %s: all %d MAs trending %s", word, len(r.Periods), direction),
		Severity:  severity,
		Timestamp: h.Current().Date,
		Metadata: map[string]any{
			"direction":     direction,
			"ma_periods":    append([]int(nil), r.Periods...),
			"lookback_bars": r.Lookback,
			"avg_slope_pct": round(avgSlope, 4),
			"trends":        trends,
			"ma_values":     values,
		},
	}, nil
}

// MACDCrossRule fires when DIF crossed DEA on the latest bar.
type MACDCrossRule struct{}

func (MACDCrossRule) Name() string { return "macd_cross" }

func (r MACDCrossRule) Evaluate(h *history.History) (*model.Signal, error) {
	dif0, ok0 := h.Indicator(history.DIF, 0)
	dif1, ok1 := h.Indicator(history.DIF, 1)
	dea0, ok2 := h.Indicator(history.DEA, 0)
	dea1, ok3 := h.Indicator(history.DEA, 1)
	if !ok0 || !ok1 || !ok2 || !ok3 {
		return nil, nil
	}
	prev, cur := dif1-dea1, dif0-dea0

	var kind model.CrossoverKind
	var severity model.Severity
	switch {
	case prev <= 0 && cur > 0:
		kind, severity = model.GoldenCross, model.SeverityAction
	case prev >= 0 && cur < 0:
		kind, severity = model.DeathCross, model.SeverityWarning
	default:
		return nil, nil
	}
	hist, _ := h.Indicator(history.MACD, 0)
	bar := h.Current()
	return &model.Signal{
		Rule:      r.Name(),
		Message:   fmt.Sprintf("MACD %s: DIF %.3f, DEA %.3f", strings.ReplaceAll(string(kind), "_", " "), dif0, dea0),
		Severity:  severity,
		Timestamp: bar.Date,
		Metadata: map[string]any{
			"kind":      string(kind),
			"dif":       dif0,
			"dea":       dea0,
			"histogram": hist,
			"close":     bar.Close,
		},
	}, nil
}

// TDSequentialRule fires on a completed setup (9) or countdown (13) on the latest bar.
type TDSequentialRule struct{}

func (TDSequentialRule) Name() string { return "td_sequential" }

func (r TDSequentialRule) Evaluate(h *history.History) (*model.Signal, error) {
	rows, err := calculator.TDSequential(h.Series())
	if err != nil {
		return nil, err
	}
	return r.evaluateRow(rows[len(rows)-1])
}

func (r TDSequentialRule) evaluateRow(row model.TDRow) (*model.Signal, error) {
	sig := &model.Signal{
		Rule:      r.Name(),
		Timestamp: row.Date,
		Metadata: map[string]any{
			"phase":     row.Phase.String(),
			"setup":     row.SetupCount,
			"countdown": row.CountdownCount,
		},
	}
	switch {
	case row.Phase == model.TDBuyCountdown && row.CountdownCount == 13:
		sig.Message, sig.Severity = "TD buy countdown 13 completed", model.SeverityAction
		sig.Metadata["resistance"] = row.Resistance
	case row.Phase == model.TDSellCountdown && row.CountdownCount == 13:
		sig.Message, sig.Severity = "TD sell countdown 13 completed", model.SeverityWarning
		sig.Metadata["support"] = row.Support
	case row.SetupCount == 9:
		side, level, key := "buy", row.Resistance, "resistance"
		if row.Phase == model.TDSellSetup || row.Phase == model.TDSellSetupPerfect {
			side, level, key = "sell", row.Support, "support"
		}
		sig.Metadata[key] = level
		sig.Severity = model.SeverityInfo
		sig.Message = fmt.Sprintf("TD %s setup 9 completed", side)
		if row.Phase == model.TDBuySetupPerfect || row.Phase == model.TDSellSetupPerfect {
			sig.Message = fmt.Sprintf("TD perfect %s setup 9 completed", side)
		}
	default:
		return nil, nil
	}
	return sig, nil
}

// RSIExtremeRule flags overbought and oversold RSI(14) readings on the latest bar.
type RSIExtremeRule struct {
	Period     int
	Overbought float64
	Oversold   float64
}

func NewRSIExtremeRule() *RSIExtremeRule {
	return &RSIExtremeRule{Period: 14, Overbought: 85, Oversold: 25}
}

func (r *RSIExtremeRule) Name() string { return "rsi_extreme" }

func (r *RSIExtremeRule) Evaluate(h *history.History) (*model.Signal, error) {
	rsi := calculator.RSISeries(h.Series().Closes(), r.Period)
	v := rsi[len(rsi)-1]
	if math.IsNaN(v) {
		return nil, nil
	}
	sig := &model.Signal{
		Rule:      r.Name(),
		Timestamp: h.Current().Date,
		Metadata:  map[string]any{"rsi": round(v, 2), "period": r.Period},
	}
	switch {
	case v > r.Overbought:
		sig.Message, sig.Severity = fmt.Sprintf("RSI %.0f above %.0f, consider taking profit", v, r.Overbought), model.SeverityWarning
	case v < r.Oversold:
		sig.Message, sig.Severity = fmt.Sprintf("RSI %.0f below %.0f, oversold", v, r.Oversold), model.SeverityInfo
	default:
		return nil, nil
	}
	return sig, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
