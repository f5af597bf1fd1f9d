package calculator

import (
	"math"
	"testing"
	"time"

	"AShareLens/internal/model"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// seriesFromCloses builds a daily series whose open/high/low hug the close.
func seriesFromCloses(closes []float64) *model.PriceSeries {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.NewBar(day0.AddDate(0, 0, i), c, c+1, c-1, c, 1000)
	}
	return &model.PriceSeries{Symbol: "600036", Period: model.PeriodDaily, Fields: model.OHLCV, Bars: bars}
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func linear(from, to float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(n-1)
	}
	return out
}

func sameFloat(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}
