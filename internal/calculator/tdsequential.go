package calculator

import (
	"math"

	"AShareLens/internal/model"
)

const (
	tdSetupLength     = 9
	tdCountdownLength = 13
	tdWarmup          = 6
)

// TDSequential runs the TD Sequential setup/countdown state machine over the sorted series.
//
// Setup: after a price flip, 9 consecutive closes below (buy) or above (sell) the close 4 bars
// earlier. The 9th bar records the setup's highest high (buy) or lowest low (sell) and starts the
// countdown. Countdown: 13 closes, not necessarily consecutive, at or below the low (buy) or at or
// above the high (sell) 2 bars earlier. A close beyond the recorded level cancels the countdown.
func TDSequential(series *model.PriceSeries) ([]model.TDRow, error) {
	need := model.FieldOpen | model.FieldHigh | model.FieldLow | model.FieldClose
	if !series.Has(need) {
		missing := need &^ series.Fields
		return nil, &MissingColumnError{Column: missing.String(), Available: series.Fields.String()}
	}

	bars := series.SortedByDate().Bars
	rows := make([]model.TDRow, len(bars))
	for i, b := range bars {
		rows[i] = model.TDRow{Date: b.Date, Support: math.NaN(), Resistance: math.NaN()}
	}

	phase := model.TDNone
	setup, countdown := 0, 0
	support, resistance := math.NaN(), math.NaN()

	for i := tdWarmup; i < len(bars); i++ {
		cur, back4, back2 := bars[i], bars[i-4], bars[i-2]
		row := &rows[i]

		switch phase {
		case model.TDNone:
			prev, prevBack4 := bars[i-1], bars[i-5]
			if prev.Close > prevBack4.Close && cur.Close < back4.Close {
				phase, setup = model.TDBuySetup, 1
				row.Phase, row.SetupCount = model.TDBuySetup, setup
			} else if prev.Close < prevBack4.Close && cur.Close > back4.Close {
				phase, setup = model.TDSellSetup, 1
				row.Phase, row.SetupCount = model.TDSellSetup, setup
			}

		case model.TDBuySetup:
			if !(cur.Close < back4.Close) {
				phase, setup = model.TDNone, 0
				continue
			}
			setup++
			row.Phase, row.SetupCount = model.TDBuySetup, setup
			if setup < tdSetupLength {
				continue
			}
			window := bars[i-tdSetupLength+1 : i+1]
			if isPerfectBuySetup(window) {
				row.Phase = model.TDBuySetupPerfect
			}
			resistance = highestHigh(window)
			phase, countdown, setup = model.TDBuyCountdown, 0, 0
			if cur.Close < back2.Low {
				countdown = 1
			}
			row.CountdownCount, row.Resistance = countdown, resistance

		case model.TDSellSetup:
			if !(cur.Close > back4.Close) {
				phase, setup = model.TDNone, 0
				continue
			}
			setup++
			row.Phase, row.SetupCount = model.TDSellSetup, setup
			if setup < tdSetupLength {
				continue
			}
			window := bars[i-tdSetupLength+1 : i+1]
			if isPerfectSellSetup(window) {
				row.Phase = model.TDSellSetupPerfect
			}
			support = lowestLow(window)
			phase, countdown, setup = model.TDSellCountdown, 0, 0
			if cur.Close > back2.High {
				countdown = 1
			}
			row.CountdownCount, row.Support = countdown, support

		case model.TDBuyCountdown:
			switch {
			case cur.Close > resistance:
				phase, countdown, resistance = model.TDNone, 0, math.NaN()
			case cur.Close <= back2.Low:
				countdown++
				row.Phase, row.CountdownCount, row.Resistance = model.TDBuyCountdown, countdown, resistance
				if countdown == tdCountdownLength {
					phase, countdown, resistance = model.TDNone, 0, math.NaN()
				}
			default:
				row.Resistance = resistance
			}

		case model.TDSellCountdown:
			switch {
			case cur.Close < support:
				phase, countdown, support = model.TDNone, 0, math.NaN()
			case cur.Close >= back2.High:
				countdown++
				row.Phase, row.CountdownCount, row.Support = model.TDSellCountdown, countdown, support
				if countdown == tdCountdownLength {
					phase, countdown, support = model.TDNone, 0, math.NaN()
				}
			default:
				row.Support = support
			}
		}
	}
	return rows, nil
}

// A buy setup is perfect when bar 8 or 9 has a low below the lows of bars 6 and 7.
func isPerfectBuySetup(w []model.Bar) bool {
	if len(w) < tdSetupLength {
		return false
	}
	b6, b7, b8, b9 := w[5].Low, w[6].Low, w[7].Low, w[8].Low
	return (b8 < b6 && b8 < b7) || (b9 < b6 && b9 < b7)
}

func isPerfectSellSetup(w []model.Bar) bool {
	if len(w) < tdSetupLength {
		return false
	}
	b6, b7, b8, b9 := w[5].High, w[6].High, w[7].High, w[8].High
	return (b8 > b6 && b8 > b7) || (b9 > b6 && b9 > b7)
}

func highestHigh(bars []model.Bar) float64 {
	h := math.Inf(-1)
	for _, b := range bars {
		h = math.Max(h, b.High)
	}
	return h
}

func lowestLow(bars []model.Bar) float64 {
	l := math.Inf(1)
	for _, b := range bars {
		l = math.Min(l, b.Low)
	}
	return l
}
