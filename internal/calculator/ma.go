package calculator

import (
	"errors"
	"fmt"
	"math"

	"AShareLens/internal/model"
)

// DefaultMAPeriods are the daily moving average periods.
var DefaultMAPeriods = []int{5, 10, 20, 30, 60}

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries computes a rolling mean. A row is NaN until the window holds minPeriods non-NaN values.
func SMASeries(values []float64, period, minPeriods int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	if minPeriods <= 0 || minPeriods > period {
		minPeriods = period
	}
	var sum float64
	var count int
	for i, v := range values {
		if !math.IsNaN(v) {
			sum += v
			count++
		}
		if i >= period {
			if old := values[i-period]; !math.IsNaN(old) {
				sum -= old
				count--
			}
		}
		if count < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(count)
	}
	return out
}

// MASet computes rolling MAs (min_periods=1) over the sorted close column, keyed by period.
func MASet(series *model.PriceSeries, periods []int) (map[int][]float64, error) {
	closes, err := sortedCloses(series)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		periods = DefaultMAPeriods
	}
	out := make(map[int][]float64, len(periods))
	for _, p := range periods {
		if p <= 0 {
			return nil, &ConfigurationError{Param: fmt.Sprintf("ma period %d", p), Reason: "must be positive"}
		}
		out[p] = SMASeries(closes, p, 1)
	}
	return out, nil
}

// EMASet computes first-value seeded EMAs over the sorted close column, keyed by period.
func EMASet(series *model.PriceSeries, periods []int) (map[int][]float64, error) {
	closes, err := sortedCloses(series)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		periods = DefaultMAPeriods
	}
	out := make(map[int][]float64, len(periods))
	for _, p := range periods {
		if p <= 0 {
			return nil, &ConfigurationError{Param: fmt.Sprintf("ema period %d", p), Reason: "must be positive"}
		}
		out[p] = EMASeries(closes, p, SeedFirstValue)
	}
	return out, nil
}

func sortedCloses(series *model.PriceSeries) ([]float64, error) {
	if !series.Has(model.FieldClose) {
		return nil, &MissingColumnError{Column: "close", Available: series.Fields.String()}
	}
	return series.SortedByDate().Closes(), nil
}

func extractCloses(bars []model.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
