package collector

import (
	"fmt"
	"math"
	"time"

	"AShareLens/internal/model"
)

// bucketKey identifies the aggregation bucket a date falls in.
func bucketKey(t time.Time, p model.Period) int {
	switch p {
	case model.PeriodWeekly:
		y, w := t.ISOWeek()
		return y*100 + w
	case model.PeriodMonthly:
		return t.Year()*100 + int(t.Month())
	case model.PeriodQuarterly:
		return t.Year()*100 + (int(t.Month())-1)/3 + 1
	default:
		return t.Year()*10000 + int(t.Month())*100 + t.Day()
	}
}

// Resample aggregates daily bars into weekly (ISO week), monthly or quarterly bars: first open,
// highest high, lowest low, last close, summed volume and amount. A bucket is dated by its last
// trading day. Resampling to daily, or to the series' own period, returns a sorted copy.
func Resample(series *model.PriceSeries, to model.Period) (*model.PriceSeries, error) {
	sorted := series.SortedByDate()
	if to == series.Period || to == model.PeriodDaily {
		return sorted, nil
	}
	if series.Period != model.PeriodDaily && !(series.Period == model.PeriodMonthly && to == model.PeriodQuarterly) {
		return nil, fmt.Errorf("cannot resample %s bars to %s", series.Period, to)
	}

	out := &model.PriceSeries{
		Symbol: series.Symbol, Period: to, Adjust: series.Adjust, FetchedAt: series.FetchedAt,
		// per-bar derived columns do not survive aggregation
		Fields: series.Fields &^ (model.FieldAmplitude | model.FieldPctChange | model.FieldChange | model.FieldTurnover),
	}

	var bucket model.Bar
	var started bool
	currentKey := 0
	for _, d := range sorted.Bars {
		key := bucketKey(d.Date, to)
		if !started || key != currentKey {
			if started {
				out.Bars = append(out.Bars, bucket)
			}
			bucket = model.NewBar(d.Date, d.Open, d.High, d.Low, d.Close, d.Volume)
			bucket.Amount = d.Amount
			currentKey = key
			started = true
			continue
		}
		bucket.Date = d.Date
		if d.High > bucket.High || math.IsNaN(bucket.High) {
			bucket.High = d.High
		}
		if d.Low < bucket.Low || math.IsNaN(bucket.Low) {
			bucket.Low = d.Low
		}
		if !math.IsNaN(d.Close) {
			bucket.Close = d.Close
		}
		bucket.Volume = addNaN(bucket.Volume, d.Volume)
		bucket.Amount = addNaN(bucket.Amount, d.Amount)
	}
	if started {
		out.Bars = append(out.Bars, bucket)
	}
	return out, nil
}

func addNaN(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return a + b
	}
}
