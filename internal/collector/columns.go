package collector

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"AShareLens/internal/model"
)

// ColumnMapping maps source column headers to schema column names.
// Headers from akshare/eastmoney exports are Chinese; English schema names map to themselves.
var ColumnMapping = map[string]string{
	"日期":  "date",
	"收盘":  "close",
	"开盘":  "open",
	"最高":  "high",
	"最低":  "low",
	"成交量": "volume",
	"成交额": "amount",
	"振幅":  "amplitude",
	"涨跌幅": "pct_change",
	"涨跌额": "change",
	"换手率": "turnover",
}

var ErrNoDateColumn = errors.New("no date column")

var dateLayouts = []string{"2006-01-02", "20060102", "2006/01/02", "2006-01-02 15:04:05", time.RFC3339}

// resolveHeader maps one header to a schema field.
func resolveHeader(h string) (model.Field, bool) {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	name, ok := ColumnMapping[h]
	if !ok {
		name = strings.ToLower(h)
	}
	return model.FieldByName(name)
}

// ParseTable converts a header row plus string rows into a PriceSeries. Headers are resolved once;
// unknown headers are ignored. Empty or unparsable numeric cells become NaN.
func ParseTable(symbol string, headers []string, rows [][]string) (*model.PriceSeries, error) {
	cols := make([]model.Field, len(headers))
	var fields model.Field
	for i, h := range headers {
		f, ok := resolveHeader(h)
		if !ok {
			continue
		}
		cols[i] = f
		fields |= f
	}
	if fields&model.FieldDate == 0 {
		return nil, fmt.Errorf("%s: %w (headers: %v)", symbol, ErrNoDateColumn, headers)
	}

	series := &model.PriceSeries{Symbol: symbol, Period: model.PeriodDaily, Fields: fields}
	series.Bars = make([]model.Bar, 0, len(rows))
	for n, row := range rows {
		bar := model.NewBar(time.Time{}, math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN())
		for i, cell := range row {
			if i >= len(cols) || cols[i] == 0 {
				continue
			}
			if cols[i] == model.FieldDate {
				d, err := parseDate(cell)
				if err != nil {
					return nil, fmt.Errorf("%s row %d: %w", symbol, n+1, err)
				}
				bar.Date = d
				continue
			}
			setField(&bar, cols[i], parseFloat(cell))
		}
		series.Bars = append(series.Bars, bar)
	}
	return series, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, shanghai); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "-" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func setField(b *model.Bar, f model.Field, v float64) {
	switch f {
	case model.FieldOpen:
		b.Open = v
	case model.FieldHigh:
		b.High = v
	case model.FieldLow:
		b.Low = v
	case model.FieldClose:
		b.Close = v
	case model.FieldVolume:
		b.Volume = v
	case model.FieldAmount:
		b.Amount = v
	case model.FieldAmplitude:
		b.Amplitude = v
	case model.FieldPctChange:
		b.PctChange = v
	case model.FieldChange:
		b.Change = v
	case model.FieldTurnover:
		b.Turnover = v
	}
}

var shanghai = model.Shanghai
