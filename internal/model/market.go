package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Bar represents a single candlestick bar. Missing values are NaN.
type Bar struct {
	Date      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Amount    float64
	Amplitude float64
	PctChange float64
	Change    float64
	Turnover  float64
}

// NewBar returns a bar with the optional columns set to NaN.
func NewBar(date time.Time, open, high, low, close, volume float64) Bar {
	nan := math.NaN()
	return Bar{
		Date: date, Open: open, High: high, Low: low, Close: close, Volume: volume,
		Amount: nan, Amplitude: nan, PctChange: nan, Change: nan, Turnover: nan,
	}
}

// Field is a bitmask of the columns a price source supplied.
type Field uint16

const (
	FieldDate Field = 1 << iota
	FieldOpen
	FieldHigh
	FieldLow
	FieldClose
	FieldVolume
	FieldAmount
	FieldAmplitude
	FieldPctChange
	FieldChange
	FieldTurnover
)

// OHLCV is the set of columns every downloader is expected to provide.
const OHLCV = FieldDate | FieldOpen | FieldHigh | FieldLow | FieldClose | FieldVolume

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldDate, "date"},
	{FieldOpen, "open"},
	{FieldHigh, "high"},
	{FieldLow, "low"},
	{FieldClose, "close"},
	{FieldVolume, "volume"},
	{FieldAmount, "amount"},
	{FieldAmplitude, "amplitude"},
	{FieldPctChange, "pct_change"},
	{FieldChange, "change"},
	{FieldTurnover, "turnover"},
}

// String lists the column names set in f.
func (f Field) String() string {
	var names []string
	for _, fn := range fieldNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ",")
}

// FieldByName returns the field for a schema column name.
func FieldByName(name string) (Field, bool) {
	for _, fn := range fieldNames {
		if fn.name == name {
			return fn.f, true
		}
	}
	return 0, false
}

// Period is the bar timeframe.
type Period string

const (
	PeriodDaily     Period = "daily"
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
)

// ParsePeriod validates a period name. Empty means daily.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodDaily, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Adjust is the price adjustment type: unadjusted, forward (qfq) or backward (hfq).
type Adjust string

const (
	AdjustNone     Adjust = ""
	AdjustForward  Adjust = "qfq"
	AdjustBackward Adjust = "hfq"
)

// ParseAdjust validates an adjustment name. "none" is accepted as an alias for unadjusted.
func ParseAdjust(s string) (Adjust, error) {
	switch a := Adjust(strings.ToLower(strings.TrimSpace(s))); a {
	case AdjustNone, "none":
		return AdjustNone, nil
	case AdjustForward, AdjustBackward:
		return a, nil
	default:
		return "", fmt.Errorf("unknown adjust %q", s)
	}
}

// BarRequest describes a download. Zero Start/End mean unbounded.
type BarRequest struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Period Period
	Adjust Adjust
}

// PriceSeries holds raw price data for analysis.
type PriceSeries struct {
	Symbol    string
	Period    Period
	Adjust    Adjust
	Fields    Field
	Bars      []Bar
	FetchedAt time.Time
}

// Has reports whether every column in f was supplied.
func (s *PriceSeries) Has(f Field) bool { return s.Fields&f == f }

func (s *PriceSeries) Len() int { return len(s.Bars) }

// Closes returns the close column.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns the date column.
func (s *PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

// Clone returns a deep copy.
func (s *PriceSeries) Clone() *PriceSeries {
	c := *s
	c.Bars = append([]Bar(nil), s.Bars...)
	return &c
}

// SortedByDate returns a copy ordered by date ascending. Equal dates keep input order.
func (s *PriceSeries) SortedByDate() *PriceSeries {
	c := s.Clone()
	sort.SliceStable(c.Bars, func(i, j int) bool { return c.Bars[i].Date.Before(c.Bars[j].Date) })
	return c
}

// Window returns a copy holding only bars inside [start, end]. Zero bounds are open.
func (s *PriceSeries) Window(start, end time.Time) *PriceSeries {
	c := *s
	c.Bars = make([]Bar, 0, len(s.Bars))
	for _, b := range s.Bars {
		if !start.IsZero() && b.Date.Before(start) {
			continue
		}
		if !end.IsZero() && b.Date.After(end) {
			continue
		}
		c.Bars = append(c.Bars, b)
	}
	return &c
}

// Last returns the final bar, or false when empty.
func (s *PriceSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Shanghai is the exchange timezone. Falls back to a fixed +08:00 zone without tzdata.
var Shanghai = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}()
