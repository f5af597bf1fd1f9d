package model

import "time"

// Severity ranks a rule signal.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityAction  Severity = "action"
)

// Signal is a rule finding for the latest bar of a history.
type Signal struct {
	Rule      string
	Message   string
	Severity  Severity
	Timestamp time.Time
	Metadata  map[string]any
}

// Report is the per-symbol output of a scan.
type Report struct {
	RunID  string
	Symbol string
	AsOf   time.Time
	Close  float64

	MACD             *MACDRow
	Crossovers       []CrossoverEvent
	RecentCrossovers []CrossoverEvent
	TD               *TDRow
	WeeklyCrosses    []MACrossover
	// WeeklyAbove is set when MA20 or MA30 sits above MA60 on the latest weekly bar.
	WeeklyAbove *MAAbove
	Signals     []Signal

	RSI         float64
	High52w     float64
	Low52w      float64
	Position52w float64 // 0.0 ~ 1.0
	High30d     float64
	Low30d      float64
	Trend       *Trend

	Errors []string
}

// HasFindings reports whether the report carries anything worth notifying.
func (r *Report) HasFindings() bool {
	return len(r.Signals) > 0 || len(r.RecentCrossovers) > 0
}
