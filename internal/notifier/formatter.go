package notifier

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"time"

	"AShareLens/internal/model"
	"AShareLens/internal/watchlist"
)

const maxMessageLen = 4096

var severityIcon = map[model.Severity]string{
	model.SeverityAction:  "🟢",
	model.SeverityWarning: "🔴",
	model.SeverityInfo:    "🔵",
}

var crossLabel = map[model.CrossoverKind]string{
	model.GoldenCross: "金叉",
	model.DeathCross:  "死叉",
}

var maCrossLabel = map[model.MACrossKind]string{
	model.GoldenMA20: "MA20上穿MA60",
	model.DeathMA20:  "MA20下穿MA60",
	model.GoldenMA30: "MA30上穿MA60",
	model.DeathMA30:  "MA30下穿MA60",
}

func day(t time.Time) string { return t.Format("2006-01-02") }

func num(v float64, format string) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

// FormatReport formats one symbol's scan result.
func FormatReport(r *model.Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", html.EscapeString(watchlist.Label(r.Symbol)), day(r.AsOf)))
	b.WriteString(fmt.Sprintf("收盘价: %.2f\n", r.Close))

	if r.MACD != nil {
		b.WriteString(fmt.Sprintf("MACD: DIF %.3f | DEA %.3f | 柱 %+.3f\n", r.MACD.MACD, r.MACD.Signal, r.MACD.Histogram))
	}
	if r.RSI > 0 {
		b.WriteString(fmt.Sprintf("RSI(14): %.1f\n", r.RSI))
	}
	if r.High52w > 0 {
		b.WriteString(fmt.Sprintf("52周区间: %.2f ~ %.2f (位置 %.0f%%)\n", r.Low52w, r.High52w, r.Position52w*100))
	}
	if r.High30d > 0 {
		b.WriteString(fmt.Sprintf("30日区间: %.2f ~ %.2f\n", r.Low30d, r.High30d))
	}
	if r.Trend != nil {
		b.WriteString(fmt.Sprintf("趋势斜率: %+.4f (R² %.2f)\n", r.Trend.Slope, r.Trend.RSquared))
	}
	if r.TD != nil && r.TD.Phase != model.TDNone {
		b.WriteString(fmt.Sprintf("TD: %s setup %d countdown %d\n", r.TD.Phase, r.TD.SetupCount, r.TD.CountdownCount))
	}

	if len(r.RecentCrossovers) > 0 {
		b.WriteString("\n⚡ <b>近期交叉:</b>\n")
		for _, ev := range r.RecentCrossovers {
			b.WriteString("  " + formatCrossover(ev) + "\n")
		}
	}
	if len(r.WeeklyCrosses) > 0 || r.WeeklyAbove != nil {
		b.WriteString("\n📅 <b>周线均线:</b>\n")
		for _, c := range r.WeeklyCrosses {
			b.WriteString(fmt.Sprintf("  %s %s 收盘 %.2f\n", day(c.Date), maCrossLabel[c.Kind], c.Close))
		}
		if r.WeeklyAbove != nil {
			b.WriteString("  " + aboveLabel(r.WeeklyAbove) + "\n")
		}
	}
	if len(r.Signals) > 0 {
		b.WriteString("\n🔔 <b>信号:</b>\n")
		for _, s := range sortedSignals(r.Signals) {
			b.WriteString(fmt.Sprintf("  %s %s\n", severityIcon[s.Severity], html.EscapeString(s.Message)))
		}
	}
	if len(r.Errors) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ %d 项计算失败\n", len(r.Errors)))
	}
	return b.String()
}

func formatCrossover(ev model.CrossoverEvent) string {
	return fmt.Sprintf("%s MACD%s DIF %.3f DEA %.3f 收盘 %.2f", day(ev.Date), crossLabel[ev.Kind], ev.MACD, ev.Signal, ev.Close)
}

// sortedSignals orders action before warning before info.
func sortedSignals(signals []model.Signal) []model.Signal {
	rank := map[model.Severity]int{model.SeverityAction: 0, model.SeverityWarning: 1, model.SeverityInfo: 2}
	out := append([]model.Signal(nil), signals...)
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i].Severity] < rank[out[j].Severity] })
	return out
}

// FormatDigest summarises a scan: one line per symbol with findings plus failure counts.
func FormatDigest(title string, at time.Time, reports []*model.Report, failed []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s</b> | %s\n\n", html.EscapeString(title), at.Format("2006-01-02 15:04")))

	var hits int
	for _, r := range reports {
		if !r.HasFindings() && len(r.WeeklyCrosses) == 0 {
			continue
		}
		hits++
		b.WriteString(fmt.Sprintf("<b>%s</b> %.2f", html.EscapeString(watchlist.Label(r.Symbol)), r.Close))
		for _, ev := range r.RecentCrossovers {
			b.WriteString(" | MACD" + crossLabel[ev.Kind])
		}
		for _, c := range r.WeeklyCrosses {
			b.WriteString(" | " + maCrossLabel[c.Kind])
		}
		b.WriteString("\n")
		for _, s := range sortedSignals(r.Signals) {
			b.WriteString(fmt.Sprintf("  %s %s\n", severityIcon[s.Severity], html.EscapeString(s.Message)))
		}
	}
	if hits == 0 {
		b.WriteString("无新信号\n")
	}
	writeFooter(&b, len(reports), failed)
	return b.String()
}

// FormatWeeklyDigest summarises a weekly MA scan: recent MA20/MA30 vs MA60 crossovers, then the
// symbols whose MA20 or MA30 is above MA60 on the latest week.
func FormatWeeklyDigest(title string, at time.Time, reports []*model.Report, failed []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>%s</b> | %s\n", html.EscapeString(title), at.Format("2006-01-02 15:04")))

	var crossed, above []*model.Report
	for _, r := range reports {
		if len(r.WeeklyCrosses) > 0 {
			crossed = append(crossed, r)
		}
		if r.WeeklyAbove != nil {
			above = append(above, r)
		}
	}

	b.WriteString("\n⚡ <b>均线交叉:</b>\n")
	if len(crossed) == 0 {
		b.WriteString("  无\n")
	}
	for _, r := range crossed {
		for _, c := range r.WeeklyCrosses {
			b.WriteString(fmt.Sprintf("  %s %s %s 收盘 %.2f\n",
				html.EscapeString(watchlist.Label(r.Symbol)), day(c.Date), maCrossLabel[c.Kind], c.Close))
		}
	}

	b.WriteString(fmt.Sprintf("\n📈 <b>均线在MA60之上 (%d):</b>\n", len(above)))
	for _, r := range above {
		b.WriteString(fmt.Sprintf("  %s %s\n", html.EscapeString(watchlist.Label(r.Symbol)), aboveLabel(r.WeeklyAbove)))
	}
	writeFooter(&b, len(reports), failed)
	return b.String()
}

func aboveLabel(a *model.MAAbove) string {
	var parts []string
	if a.MA20Above {
		parts = append(parts, fmt.Sprintf("MA20 %.2f", a.MA20))
	}
	if a.MA30Above {
		parts = append(parts, fmt.Sprintf("MA30 %.2f", a.MA30))
	}
	return fmt.Sprintf("%s &gt; MA60 %.2f", strings.Join(parts, ", "), a.MA60)
}

func writeFooter(b *strings.Builder, scanned int, failed []string) {
	b.WriteString(fmt.Sprintf("\n扫描 %d 只", scanned+len(failed)))
	if len(failed) > 0 {
		b.WriteString(fmt.Sprintf(", 失败 %d 只: %s", len(failed), html.EscapeString(strings.Join(failed, ", "))))
	}
}

// FormatMACD formats the last n MACD rows and the crossovers of a result.
func FormatMACD(res *model.MACDResult, events []model.CrossoverEvent, n int) string {
	var b strings.Builder
	p := res.Params
	b.WriteString(fmt.Sprintf("📉 <b>%s</b> MACD(%d,%d,%d)\n\n", html.EscapeString(watchlist.Label(res.Symbol)), p.Fast, p.Slow, p.Signal))

	start := len(res.Rows) - n
	if start < 0 {
		start = 0
	}
	b.WriteString("<pre>")
	b.WriteString("日期        收盘     DIF     DEA      柱\n")
	for _, row := range res.Rows[start:] {
		b.WriteString(fmt.Sprintf("%s %7.2f %7s %7s %7s\n", day(row.Date), row.Close,
			num(row.MACD, "%.3f"), num(row.Signal, "%.3f"), num(row.Histogram, "%+.3f")))
	}
	b.WriteString("</pre>\n")

	if len(events) == 0 {
		b.WriteString("无交叉")
		return b.String()
	}
	b.WriteString("<b>交叉:</b>\n")
	from := len(events) - 5
	if from < 0 {
		from = 0
	}
	for _, ev := range events[from:] {
		b.WriteString("  " + formatCrossover(ev) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatWatchlist lists the codes of a watchlist with their names.
func FormatWatchlist(name string, codes []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>%s</b> (%d)\n", html.EscapeString(name), len(codes)))
	for _, c := range codes {
		b.WriteString(html.EscapeString(watchlist.Label(c)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Split breaks text into chunks of at most max bytes, cutting at line boundaries where possible.
func Split(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > max {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			cut := max
			for cut > 0 && !utf8Start(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > max {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
