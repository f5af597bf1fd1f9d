// Package history wraps a sorted price series with named indicator columns and the lookups rules
// need: date access, offsets from the latest bar and price-versus-indicator patterns.
package history

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"AShareLens/internal/calculator"
	"AShareLens/internal/model"
)

var (
	ErrEmpty         = errors.New("empty price history")
	ErrDateNotFound  = errors.New("date not found in history")
	ErrBeforeHistory = errors.New("date is before earliest data")
)

// Indicator column names.
const (
	DIF  = "DIF"  // fast EMA - slow EMA
	DEA  = "DEA"  // signal line
	MACD = "MACD" // histogram
)

func MA(period int) string  { return fmt.Sprintf("MA%d", period) }
func EMA(period int) string { return fmt.Sprintf("EMA%d", period) }

// Inclusive selects which Between bounds are kept.
type Inclusive int

const (
	Both Inclusive = iota
	Left
	Right
	Neither
)

// History is an immutable, date-sorted bar series with indicator columns.
type History struct {
	series  *model.PriceSeries
	columns map[string][]float64
}

// New sorts the series by date and wraps it. Open, high, low and close are required.
func New(series *model.PriceSeries) (*History, error) {
	if series == nil || series.Len() == 0 {
		return nil, ErrEmpty
	}
	required := model.FieldDate | model.FieldOpen | model.FieldHigh | model.FieldLow | model.FieldClose
	if !series.Has(required) {
		return nil, &calculator.MissingColumnError{
			Column:    (required &^ series.Fields).String(),
			Available: series.Fields.String(),
		}
	}
	return &History{series: series.SortedByDate(), columns: map[string][]float64{}}, nil
}

func (h *History) Len() int                   { return h.series.Len() }
func (h *History) Symbol() string             { return h.series.Symbol }
func (h *History) Series() *model.PriceSeries { return h.series.Clone() }
func (h *History) StartDate() time.Time       { return h.series.Bars[0].Date }
func (h *History) EndDate() time.Time         { return h.series.Bars[h.Len()-1].Date }

// Current returns the most recent bar.
func (h *History) Current() model.Bar { return h.series.Bars[h.Len()-1] }

// BarAt returns the bar at index; negative indexes count from the end.
func (h *History) BarAt(index int) (model.Bar, error) {
	i := index
	if i < 0 {
		i += h.Len()
	}
	if i < 0 || i >= h.Len() {
		return model.Bar{}, fmt.Errorf("index %d out of range for history with %d bars", index, h.Len())
	}
	return h.series.Bars[i], nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

func (h *History) indexOf(date time.Time) int {
	for i, b := range h.series.Bars {
		if sameDay(b.Date, date) {
			return i
		}
	}
	return -1
}

// On returns the bar for an exact calendar date.
func (h *History) On(date time.Time) (model.Bar, error) {
	i := h.indexOf(date)
	if i < 0 {
		return model.Bar{}, fmt.Errorf("%s: %w (available %s to %s)", date.Format("2006-01-02"), ErrDateNotFound,
			h.StartDate().Format("2006-01-02"), h.EndDate().Format("2006-01-02"))
	}
	return h.series.Bars[i], nil
}

// HasDate reports whether a bar exists on date.
func (h *History) HasDate(date time.Time) bool { return h.indexOf(date) >= 0 }

// AsOf returns the most recent bar on or before date.
func (h *History) AsOf(date time.Time) (model.Bar, error) {
	if h.indexOf(date) < 0 && date.Before(h.StartDate()) {
		return model.Bar{}, fmt.Errorf("%s: %w (%s)", date.Format("2006-01-02"), ErrBeforeHistory, h.StartDate().Format("2006-01-02"))
	}
	bars := h.series.Bars
	i := sort.Search(len(bars), func(i int) bool {
		return bars[i].Date.After(date) && !sameDay(bars[i].Date, date)
	})
	return bars[i-1], nil
}

// Between returns the bars dated inside [start, end], with bounds kept according to inc.
func (h *History) Between(start, end time.Time, inc Inclusive) []model.Bar {
	var out []model.Bar
	for _, b := range h.series.Bars {
		afterStart := b.Date.After(start) && !sameDay(b.Date, start)
		beforeEnd := b.Date.Before(end) && !sameDay(b.Date, end)
		if sameDay(b.Date, start) && (inc == Both || inc == Left) {
			afterStart = true
		}
		if sameDay(b.Date, end) && (inc == Both || inc == Right) {
			beforeEnd = true
		}
		if afterStart && beforeEnd {
			out = append(out, b)
		}
	}
	return out
}

// Tail returns the last n bars.
func (h *History) Tail(n int) []model.Bar {
	if n > h.Len() {
		n = h.Len()
	}
	if n <= 0 {
		return nil
	}
	return append([]model.Bar(nil), h.series.Bars[h.Len()-n:]...)
}

// WithIndicator returns a copy of h carrying values under name. values must be aligned with the bars.
func (h *History) WithIndicator(name string, values []float64) (*History, error) {
	if len(values) != h.Len() {
		return nil, fmt.Errorf("indicator %s: %d values for %d bars", name, len(values), h.Len())
	}
	cols := make(map[string][]float64, len(h.columns)+1)
	for k, v := range h.columns {
		cols[k] = v
	}
	cols[name] = append([]float64(nil), values...)
	return &History{series: h.series, columns: cols}, nil
}

func (h *History) HasIndicator(name string) bool {
	_, ok := h.columns[name]
	return ok
}

// Indicators lists the column names, sorted.
func (h *History) Indicators() []string {
	names := make([]string, 0, len(h.columns))
	for k := range h.columns {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Column returns a copy of the named column, or nil.
func (h *History) Column(name string) []float64 {
	col, ok := h.columns[name]
	if !ok {
		return nil
	}
	return append([]float64(nil), col...)
}

// Indicator returns the value offset bars before the latest. ok is false for a missing column,
// an out-of-range offset or a NaN value.
func (h *History) Indicator(name string, offset int) (float64, bool) {
	col, ok := h.columns[name]
	if !ok || offset < 0 || offset >= len(col) {
		return 0, false
	}
	v := col[len(col)-1-offset]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// IndicatorOn returns the indicator value on an exact date.
func (h *History) IndicatorOn(name string, date time.Time) (float64, bool) {
	i := h.indexOf(date)
	if i < 0 {
		return 0, false
	}
	return h.Indicator(name, h.Len()-1-i)
}

// IsAbove reports whether close was above the indicator on each of the last bars bars.
func (h *History) IsAbove(name string, bars int) bool {
	return h.all(name, bars, func(c, v float64) bool { return c > v })
}

// IsBelow reports whether close was below the indicator on each of the last bars bars.
func (h *History) IsBelow(name string, bars int) bool {
	return h.all(name, bars, func(c, v float64) bool { return c < v })
}

func (h *History) all(name string, bars int, cmp func(c, v float64) bool) bool {
	col, ok := h.columns[name]
	if !ok || bars <= 0 || h.Len() < bars {
		return false
	}
	for i := h.Len() - bars; i < h.Len(); i++ {
		if !cmp(h.series.Bars[i].Close, col[i]) {
			return false
		}
	}
	return true
}

// CrossedAbove reports whether close was below the indicator within bars ago and is above it now.
func (h *History) CrossedAbove(name string, within int) bool {
	return h.crossed(name, within, func(c, v float64) bool { return c < v }, func(c, v float64) bool { return c > v })
}

// CrossedBelow reports whether close was above the indicator within bars ago and is below it now.
func (h *History) CrossedBelow(name string, within int) bool {
	return h.crossed(name, within, func(c, v float64) bool { return c > v }, func(c, v float64) bool { return c < v })
}

func (h *History) crossed(name string, within int, before, now func(c, v float64) bool) bool {
	col, ok := h.columns[name]
	if !ok || within <= 0 || h.Len() < within+1 {
		return false
	}
	first, last := h.Len()-1-within, h.Len()-1
	return before(h.series.Bars[first].Close, col[first]) && now(h.series.Bars[last].Close, col[last])
}

// WithMA adds MA<p> columns (rolling mean, min_periods=1).
func (h *History) WithMA(periods ...int) (*History, error) {
	mas, err := calculator.MASet(h.series, periods)
	if err != nil {
		return nil, err
	}
	return h.withSet(mas, MA)
}

// WithEMA adds EMA<p> columns (first-value seeded).
func (h *History) WithEMA(periods ...int) (*History, error) {
	emas, err := calculator.EMASet(h.series, periods)
	if err != nil {
		return nil, err
	}
	return h.withSet(emas, EMA)
}

func (h *History) withSet(set map[int][]float64, name func(int) string) (*History, error) {
	out := h
	periods := make([]int, 0, len(set))
	for p := range set {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	for _, p := range periods {
		var err error
		if out, err = out.WithIndicator(name(p), set[p]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WithMACD adds the DIF, DEA and MACD (histogram) columns.
func (h *History) WithMACD(cfg calculator.MACDConfig) (*History, *model.MACDResult, error) {
	res, err := calculator.ComputeMACD(h.series, cfg)
	if err != nil {
		return nil, nil, err
	}
	out := h
	for _, col := range []struct{ name, src string }{{DIF, "macd"}, {DEA, "signal"}, {MACD, "histogram"}} {
		if out, err = out.WithIndicator(col.name, res.Column(col.src)); err != nil {
			return nil, nil, err
		}
	}
	return out, res, nil
}
