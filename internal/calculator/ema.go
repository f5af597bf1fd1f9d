package calculator

import (
	"fmt"
	"math"
	"strings"
)

// Seeding selects how the first EMA value is initialised.
type Seeding int

const (
	// SeedFirstValue starts the recurrence at the first observed value (EMA[0] = x[0]).
	SeedFirstValue Seeding = iota
	// SeedSMA starts the recurrence with the mean of the first period values.
	SeedSMA
)

func (s Seeding) String() string {
	if s == SeedSMA {
		return "sma"
	}
	return "first"
}

// ParseSeeding accepts "first" (default when empty) or "sma".
func ParseSeeding(s string) (Seeding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first", "first_value":
		return SeedFirstValue, nil
	case "sma":
		return SeedSMA, nil
	default:
		return 0, fmt.Errorf("unknown ema seeding %q", s)
	}
}

// EMASeries computes an exponential moving average with k = 2/(period+1).
// NaN inputs produce NaN outputs and leave the running average untouched.
// Outputs before the seed point are NaN.
func EMASeries(values []float64, period int, seed Seeding) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)

	var (
		ema    float64
		seeded bool
		sum    float64
		count  int
	)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !seeded {
			switch seed {
			case SeedSMA:
				sum += v
				count++
				if count < period {
					continue
				}
				ema = sum / float64(period)
			default:
				ema = v
			}
			seeded = true
			out[i] = ema
			continue
		}
		ema += k * (v - ema)
		out[i] = ema
	}
	return out
}
