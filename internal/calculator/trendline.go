package calculator

import (
	"math"

	"AShareLens/internal/model"
)

// LinearTrend fits y = slope*x + intercept by least squares, with x the row index.
// NaN values are skipped. At least two points are required.
func LinearTrend(values []float64) (slope, intercept, rSquared float64, err error) {
	var n, sx, sy, sxx, sxy, syy float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		x := float64(i)
		n++
		sx += x
		sy += v
		sxx += x * x
		sxy += x * v
		syy += v * v
	}
	if n < 2 {
		return 0, 0, 0, &InsufficientDataError{What: "trendline", Need: 2, Got: int(n)}
	}
	varX := n*sxx - sx*sx
	if varX == 0 {
		return 0, sy / n, 0, nil
	}
	slope = (n*sxy - sx*sy) / varX
	intercept = (sy - slope*sx) / n

	varY := n*syy - sy*sy
	if varY <= 0 {
		// A flat line is fit exactly.
		return slope, intercept, 1, nil
	}
	r := (n*sxy - sx*sy) / math.Sqrt(varX*varY)
	return slope, intercept, r * r, nil
}

// SupportResistance marks values equal to the centered rolling min (support) or max
// (resistance). A window <= 0 picks min(20, n/4); windows below 2 yield no levels.
func SupportResistance(values []float64, window int) (support, resistance []float64) {
	if window <= 0 {
		window = len(values) / 4
		if window > 20 {
			window = 20
		}
	}
	if window < 2 {
		return nil, nil
	}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		start := i - window/2
		end := start + window
		if start < 0 || end > len(values) {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		complete := true
		for _, w := range values[start:end] {
			if math.IsNaN(w) {
				complete = false
				break
			}
			lo = math.Min(lo, w)
			hi = math.Max(hi, w)
		}
		if !complete {
			continue
		}
		if v == lo {
			support = append(support, v)
		}
		if v == hi {
			resistance = append(resistance, v)
		}
	}
	return support, resistance
}

// Trend fits a trendline over the last lookback closes and collects support/resistance levels.
func Trend(series *model.PriceSeries, lookback int) (*model.Trend, error) {
	closes, err := sortedCloses(series)
	if err != nil {
		return nil, err
	}
	if lookback > 0 && len(closes) > lookback {
		closes = closes[len(closes)-lookback:]
	}
	slope, intercept, r2, err := LinearTrend(closes)
	if err != nil {
		return nil, err
	}
	sup, res := SupportResistance(closes, 0)
	return &model.Trend{
		Slope: slope, Intercept: intercept, RSquared: r2,
		Support: sup, Resistance: res,
		AvgSupport: mean(sup), AvgResistance: mean(res),
	}, nil
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
