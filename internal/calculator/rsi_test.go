package calculator

import (
	"math"
	"testing"

	"github.com/markcheno/go-talib"
)

func TestCalculateRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"too few bars", linear(10, 20, 10), 50},
		{"only gains", linear(10, 20, 30), 100},
		{"only losses", linear(20, 10, 30), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateRSI(seriesFromCloses(tt.closes).Bars, 14)
			if err != nil {
				t.Fatalf("CalculateRSI: %v", err)
			}
			assertClose(t, "rsi", got, tt.want, 1e-9)
		})
	}
	if _, err := CalculateRSI(nil, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestRSISeries_MatchesTalib(t *testing.T) {
	closes := wave(80)
	got := RSISeries(closes, 14)
	want := talib.Rsi(closes, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(got[i]) {
			t.Fatalf("row %d: expected NaN during warm-up, got %f", i, got[i])
		}
	}
	assertClose(t, "rsi last", got[len(got)-1], want[len(want)-1], 1e-6)
}

func TestRangePosition(t *testing.T) {
	bars := seriesFromCloses([]float64{10, 20, 15}).Bars
	high, low, err := Calculate52WeekRange(bars)
	if err != nil {
		t.Fatalf("Calculate52WeekRange: %v", err)
	}
	if high != 21 || low != 9 {
		t.Errorf("range = %f/%f, want 21/9", high, low)
	}
	pos, _ := RangePosition(15, high, low)
	assertClose(t, "position", pos, 0.5, 1e-12)
	if pos, _ := RangePosition(100, high, low); pos != 1 {
		t.Errorf("expected clamp to 1, got %f", pos)
	}
	if _, err := RangePosition(1, 1, 2); err == nil {
		t.Error("expected error when high < low")
	}
	if _, _, err := HighLowRange(nil, 10); err == nil {
		t.Error("expected error for empty bars")
	}
}
