package strategy

import (
	"testing"

	"github.com/rs/zerolog"

	"AShareLens/internal/calculator"
	"AShareLens/internal/collector"
	"AShareLens/internal/model"
)

func snapshot(t *testing.T, closes []float64) *collector.Snapshot {
	t.Helper()
	daily := &model.PriceSeries{Symbol: "600036", Period: model.PeriodDaily, Fields: model.OHLCV}
	for i, c := range closes {
		daily.Bars = append(daily.Bars, model.NewBar(day(i), c, c+0.5, c-0.5, c, 1e6))
	}
	weekly, err := collector.Resample(daily, model.PeriodWeekly)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	return &collector.Snapshot{Symbol: "600036", Daily: daily, Weekly: weekly}
}

func newTestEngine() *Engine {
	return NewEngine(calculator.DefaultMACDConfig(), nil, nil, zerolog.Nop())
}

func findSignal(r *model.Report, rule string) *model.Signal {
	for i := range r.Signals {
		if r.Signals[i].Rule == rule {
			return &r.Signals[i]
		}
	}
	return nil
}

func TestEvaluate_Uptrend(t *testing.T) {
	r, err := newTestEngine().Evaluate("run-1", snapshot(t, rng(10, 0.1, 300)))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if r.RunID != "run-1" || r.Symbol != "600036" || !r.AsOf.Equal(day(299)) {
		t.Errorf("unexpected header: %+v", r)
	}
	if len(r.Errors) != 0 {
		t.Errorf("unexpected errors: %v", r.Errors)
	}
	if r.MACD == nil || !r.MACD.Valid || r.MACD.MACD <= 0 {
		t.Errorf("expected a positive MACD on a rising series: %+v", r.MACD)
	}
	if len(r.Crossovers) != 1 || r.Crossovers[0].Kind != model.GoldenCross {
		t.Errorf("expected the single early golden cross, got %+v", r.Crossovers)
	}
	if len(r.RecentCrossovers) != 0 {
		t.Errorf("no recent crossovers expected")
	}
	if sig := findSignal(r, "ma_trend_alignment"); sig == nil || sig.Severity != model.SeverityAction {
		t.Errorf("expected uptrend alignment, got %+v", r.Signals)
	}
	if findSignal(r, "daily_ma250_no_action") != nil {
		t.Errorf("close is above MA250")
	}
	if findSignal(r, "rsi_extreme") == nil || r.RSI != 100 {
		t.Errorf("expected overbought RSI, got %v", r.RSI)
	}
	if r.Position52w <= 0.9 || r.High52w <= r.Low52w {
		t.Errorf("unexpected range: pos=%v high=%v low=%v", r.Position52w, r.High52w, r.Low52w)
	}
	if r.High30d != r.High52w || r.Low30d <= r.Low52w || r.Low30d < 37 || r.Low30d > 37.5 {
		t.Errorf("unexpected 30-day range: high=%v low=%v", r.High30d, r.Low30d)
	}
	if r.WeeklyAbove == nil || !r.WeeklyAbove.MA20Above || !r.WeeklyAbove.MA30Above {
		t.Errorf("expected weekly MA20 and MA30 above MA60: %+v", r.WeeklyAbove)
	}
	if r.Trend == nil || r.Trend.Slope <= 0 {
		t.Errorf("expected a rising trend: %+v", r.Trend)
	}
	if r.TD == nil {
		t.Errorf("expected a TD row")
	}
	if !r.HasFindings() {
		t.Errorf("report with signals should have findings")
	}
}

func TestEvaluate_BelowMA250(t *testing.T) {
	closes := append(rng(20, 0.02, 270), rng(20, -0.5, 20)...)
	r, err := newTestEngine().Evaluate("run-2", snapshot(t, closes))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	sig := findSignal(r, "daily_ma250_no_action")
	if sig == nil {
		t.Fatalf("expected MA250 warning, got %+v", r.Signals)
	}
	if sig.Metadata["distance_pct"].(float64) >= 0 {
		t.Errorf("distance should be negative: %v", sig.Metadata)
	}
	if r.MACD.MACD >= 0 {
		t.Errorf("expected negative MACD after the drop, got %v", r.MACD.MACD)
	}
	var death bool
	for _, c := range r.Crossovers {
		if c.Kind == model.DeathCross && !c.Date.Before(day(270)) {
			death = true
		}
	}
	if !death {
		t.Errorf("expected a death cross during the drop: %+v", r.Crossovers)
	}
}

func TestEvaluate_ShortHistory(t *testing.T) {
	closes := rng(10, 0.1, 10)
	r, err := newTestEngine().Evaluate("run-3", snapshot(t, closes))
	if err != nil {
		t.Fatalf("short history should not be fatal: %v", err)
	}
	if r.MACD != nil {
		t.Errorf("MACD should be unavailable")
	}
	if len(r.Errors) == 0 {
		t.Errorf("expected the MACD failure to be recorded")
	}
	if r.Close != closes[9] {
		t.Errorf("close = %v", r.Close)
	}
}

func TestEvaluate_EmptySeries(t *testing.T) {
	snap := &collector.Snapshot{Symbol: "600036", Daily: &model.PriceSeries{Fields: model.OHLCV}}
	if _, err := newTestEngine().Evaluate("run-4", snap); err == nil {
		t.Fatal("expected error for empty series")
	}
}

func TestEvaluate_RecentGoldenCross(t *testing.T) {
	// long decline, then a sharp rebound over the final bars
	closes := append(rng(30, -0.05, 80), rng(26, 0.6, 4)...)
	r, err := newTestEngine().Evaluate("run-5", snapshot(t, closes))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(r.RecentCrossovers) == 0 || r.RecentCrossovers[len(r.RecentCrossovers)-1].Kind != model.GoldenCross {
		t.Fatalf("expected a recent golden cross, got %+v", r.Crossovers)
	}
	if !r.HasFindings() {
		t.Errorf("recent crossover should count as a finding")
	}
}

func TestEvaluateWeekly(t *testing.T) {
	snap := snapshot(t, rng(10, 0.1, 300))
	r, err := newTestEngine().EvaluateWeekly("run-6", snap)
	if err != nil {
		t.Fatalf("evaluate weekly: %v", err)
	}
	last, _ := snap.Weekly.Last()
	if !r.AsOf.Equal(last.Date) || r.Close != last.Close {
		t.Errorf("report should be dated at the last weekly bar: %v %v", r.AsOf, r.Close)
	}
	if r.MACD != nil || len(r.Signals) != 0 {
		t.Errorf("weekly report should not carry daily indicators: %+v", r)
	}
	if r.WeeklyAbove == nil || !r.WeeklyAbove.Date.Equal(last.Date) || r.WeeklyAbove.MA20 <= r.WeeklyAbove.MA60 {
		t.Errorf("expected MA20 above MA60 on the last week: %+v", r.WeeklyAbove)
	}
	// MA20 leaves MA60 after twenty weeks, long before the recent window
	if len(r.WeeklyCrosses) != 0 {
		t.Errorf("unexpected recent weekly crosses: %+v", r.WeeklyCrosses)
	}

	falling, err := newTestEngine().EvaluateWeekly("run-7", snapshot(t, rng(40, -0.1, 300)))
	if err != nil {
		t.Fatalf("evaluate weekly: %v", err)
	}
	if falling.WeeklyAbove != nil {
		t.Errorf("falling series should have no MA above MA60: %+v", falling.WeeklyAbove)
	}

	if _, err := newTestEngine().EvaluateWeekly("run-8", &collector.Snapshot{Symbol: "600036"}); err == nil {
		t.Errorf("expected error without weekly bars")
	}
}

func TestSummary(t *testing.T) {
	r := &model.Report{Symbol: "600036", AsOf: day(0), Close: 31.2, MACD: &model.MACDRow{MACD: 0.1, Signal: 0.05, Histogram: 0.05}}
	want := "600036 2024-01-01 close=31.20 dif=0.100 dea=0.050 hist=0.050 signals=0"
	if got := Summary(r); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}
