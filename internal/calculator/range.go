package calculator

import (
	"errors"
	"math"

	"AShareLens/internal/model"
)

// Trading-day lookbacks for the A-share calendar.
const (
	TradingDays52w = 250
	TradingDays30d = 22
)

// HighLowRange scans the most recent lookback bars and returns the highest high and lowest low.
// NaN highs/lows are ignored.
func HighLowRange(bars []model.Bar, lookback int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	start := len(bars) - lookback
	if start < 0 || lookback <= 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars[start:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	if math.IsInf(high, -1) || math.IsInf(low, 1) {
		return 0, 0, errors.New("no high/low values in range")
	}
	return high, low, nil
}

// Calculate52WeekRange returns the high and low over the last 250 trading days.
func Calculate52WeekRange(dailyBars []model.Bar) (high, low float64, err error) {
	return HighLowRange(dailyBars, TradingDays52w)
}

// Calculate30DayRange returns the high and low over the last 22 trading days.
func Calculate30DayRange(dailyBars []model.Bar) (high, low float64, err error) {
	return HighLowRange(dailyBars, TradingDays30d)
}

// RangePosition returns where current sits within [low, high], clamped to 0.0~1.0.
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	return math.Max(0, math.Min(1, (current-low)/(high-low))), nil
}
