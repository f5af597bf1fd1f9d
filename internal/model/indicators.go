package model

import "time"

// MACDRow is one row of a MACD computation aligned with its price bar.
// Valid is false during warm-up, in which case the indicator values are NaN.
type MACDRow struct {
	Date      time.Time
	Close     float64
	EMAFast   float64
	EMASlow   float64
	MACD      float64
	Signal    float64
	Histogram float64
	Valid     bool
}

// MACDParams records the parameters a MACDResult was computed with.
type MACDParams struct {
	Fast           int
	Slow           int
	Signal         int
	Seed           string
	HistogramScale float64
}

// MACDResult is the augmented series produced by the MACD engine.
type MACDResult struct {
	Symbol string
	Params MACDParams
	Rows   []MACDRow
}

// Defined returns the number of rows with a valid macd/signal pair.
func (r *MACDResult) Defined() int {
	n := 0
	for _, row := range r.Rows {
		if row.Valid {
			n++
		}
	}
	return n
}

// Latest returns the last valid row.
func (r *MACDResult) Latest() (MACDRow, bool) {
	for i := len(r.Rows) - 1; i >= 0; i-- {
		if r.Rows[i].Valid {
			return r.Rows[i], true
		}
	}
	return MACDRow{}, false
}

// Column returns one indicator column ("ema_fast", "ema_slow", "macd", "signal", "histogram").
func (r *MACDResult) Column(name string) []float64 {
	out := make([]float64, len(r.Rows))
	for i, row := range r.Rows {
		switch name {
		case "ema_fast":
			out[i] = row.EMAFast
		case "ema_slow":
			out[i] = row.EMASlow
		case "macd":
			out[i] = row.MACD
		case "signal":
			out[i] = row.Signal
		case "histogram":
			out[i] = row.Histogram
		}
	}
	return out
}

// CrossoverKind is the direction of a MACD/signal crossing.
type CrossoverKind string

const (
	GoldenCross CrossoverKind = "golden_cross"
	DeathCross  CrossoverKind = "death_cross"
)

// CrossoverEvent marks the bar where macd crossed the signal line.
type CrossoverEvent struct {
	Date   time.Time
	Kind   CrossoverKind
	MACD   float64
	Signal float64
	Close  float64
}

// TDPhase is the TD Sequential state recorded on a bar.
type TDPhase int

const (
	TDNone TDPhase = iota
	TDBuySetup
	TDSellSetup
	TDBuyCountdown
	TDSellCountdown
	TDBuySetupPerfect
	TDSellSetupPerfect
)

func (p TDPhase) String() string {
	switch p {
	case TDBuySetup:
		return "Buy Setup"
	case TDSellSetup:
		return "Sell Setup"
	case TDBuyCountdown:
		return "Buy Countdown"
	case TDSellCountdown:
		return "Sell Countdown"
	case TDBuySetupPerfect:
		return "Buy Setup Perfect"
	case TDSellSetupPerfect:
		return "Sell Setup Perfect"
	default:
		return "None"
	}
}

// TDRow holds the TD Sequential output for one bar. Support/Resistance are NaN when unset.
type TDRow struct {
	Date           time.Time
	Phase          TDPhase
	SetupCount     int
	CountdownCount int
	Support        float64
	Resistance     float64
}

// MACrossKind names a moving average crossover against MA60.
type MACrossKind string

const (
	GoldenMA20 MACrossKind = "golden_ma20"
	DeathMA20  MACrossKind = "death_ma20"
	GoldenMA30 MACrossKind = "golden_ma30"
	DeathMA30  MACrossKind = "death_ma30"
)

// MACrossover is a bar where MA20 or MA30 crossed MA60.
type MACrossover struct {
	Date  time.Time
	Kind  MACrossKind
	MA20  float64
	MA30  float64
	MA60  float64
	Close float64
}

// MAAbove is a bar where MA20 or MA30 sits above MA60.
type MAAbove struct {
	Date      time.Time
	MA20Above bool
	MA30Above bool
	MA20      float64
	MA30      float64
	MA60      float64
	Close     float64
}

// Trend is a least-squares fit over recent closes plus support/resistance levels.
type Trend struct {
	Slope         float64
	Intercept     float64
	RSquared      float64
	Support       []float64
	Resistance    []float64
	AvgSupport    float64
	AvgResistance float64
}
