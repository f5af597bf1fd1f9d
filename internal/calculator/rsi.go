package calculator

import (
	"math"

	"AShareLens/internal/model"
)

// RSISeries computes Wilder-smoothed RSI over closes. The first period rows are NaN.
// NaN closes are skipped.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 {
		return out
	}

	var avgGain, avgLoss float64
	prev := math.NaN()
	changes := 0
	for i, c := range closes {
		if math.IsNaN(c) {
			continue
		}
		if math.IsNaN(prev) {
			prev = c
			continue
		}
		change := c - prev
		prev = c
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		changes++

		switch {
		case changes < period:
			avgGain += gain
			avgLoss += loss
			continue
		case changes == period:
			avgGain = (avgGain + gain) / float64(period)
			avgLoss = (avgLoss + loss) / float64(period)
		default:
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}

		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// CalculateRSI returns the latest RSI of the bars, or 50 when there are not enough bars.
func CalculateRSI(bars []model.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, &ConfigurationError{Param: "rsi period", Reason: "must be positive"}
	}
	series := RSISeries(extractCloses(bars), period)
	if len(series) == 0 || math.IsNaN(series[len(series)-1]) {
		return 50.0, nil
	}
	return series[len(series)-1], nil
}
