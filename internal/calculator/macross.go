package calculator

import (
	"fmt"
	"sort"

	"AShareLens/internal/model"
)

// DefaultWeeklyMAPeriods are the weekly moving average periods.
var DefaultWeeklyMAPeriods = []int{20, 30, 60, 120, 250}

// WeeklyMA computes rolling weekly MAs (min_periods=1). It is MASet with the weekly defaults.
func WeeklyMA(series *model.PriceSeries, periods []int) (map[int][]float64, error) {
	if len(periods) == 0 {
		periods = DefaultWeeklyMAPeriods
	}
	return MASet(series, periods)
}

type maTriple struct {
	ma20, ma30, ma60 []float64
}

func requireMA(series *model.PriceSeries, mas map[int][]float64) (maTriple, []model.Bar, error) {
	bars := series.SortedByDate().Bars
	var t maTriple
	for _, p := range []int{20, 30, 60} {
		col, ok := mas[p]
		if !ok {
			return t, nil, &MissingColumnError{Column: fmt.Sprintf("MA%d", p), Available: availableMA(mas)}
		}
		if len(col) != len(bars) {
			return t, nil, fmt.Errorf("MA%d has %d rows, series has %d", p, len(col), len(bars))
		}
	}
	t.ma20, t.ma30, t.ma60 = mas[20], mas[30], mas[60]
	return t, bars, nil
}

// FindMACrossovers detects MA20/MA30 crossing MA60. Golden: previously at or below, now above.
// Death: previously at or above, now below. Events are ordered by date; same-date events keep the
// order golden MA20, death MA20, golden MA30, death MA30.
func FindMACrossovers(series *model.PriceSeries, mas map[int][]float64) ([]model.MACrossover, error) {
	t, bars, err := requireMA(series, mas)
	if err != nil {
		return nil, err
	}

	checks := []struct {
		kind   model.MACrossKind
		line   []float64
		golden bool
	}{
		{model.GoldenMA20, t.ma20, true},
		{model.DeathMA20, t.ma20, false},
		{model.GoldenMA30, t.ma30, true},
		{model.DeathMA30, t.ma30, false},
	}

	out := []model.MACrossover{}
	for _, c := range checks {
		for i := 1; i < len(bars); i++ {
			prev, cur := c.line[i-1], c.line[i]
			prevBase, base := t.ma60[i-1], t.ma60[i]
			var hit bool
			if c.golden {
				hit = cur > base && prev <= prevBase
			} else {
				hit = cur < base && prev >= prevBase
			}
			if !hit {
				continue
			}
			out = append(out, model.MACrossover{
				Date: bars[i].Date, Kind: c.kind,
				MA20: t.ma20[i], MA30: t.ma30[i], MA60: t.ma60[i], Close: bars[i].Close,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// FindMAAboveMA60 returns the bars where MA20 or MA30 is above MA60.
func FindMAAboveMA60(series *model.PriceSeries, mas map[int][]float64) ([]model.MAAbove, error) {
	t, bars, err := requireMA(series, mas)
	if err != nil {
		return nil, err
	}
	out := []model.MAAbove{}
	for i, b := range bars {
		a20, a30 := t.ma20[i] > t.ma60[i], t.ma30[i] > t.ma60[i]
		if !a20 && !a30 {
			continue
		}
		out = append(out, model.MAAbove{
			Date: b.Date, MA20Above: a20, MA30Above: a30,
			MA20: t.ma20[i], MA30: t.ma30[i], MA60: t.ma60[i], Close: b.Close,
		})
	}
	return out, nil
}

func availableMA(mas map[int][]float64) string {
	keys := make([]int, 0, len(mas))
	for k := range mas {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return fmt.Sprint(keys)
}
