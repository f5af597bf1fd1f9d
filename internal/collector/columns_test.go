package collector

import (
	"errors"
	"math"
	"testing"
	"time"

	"AShareLens/internal/model"
)

func TestParseTableChineseHeaders(t *testing.T) {
	headers := []string{"\ufeff日期", "股票代码", "开盘", "收盘", "最高", "最低", "成交量", "成交额", "振幅", "涨跌幅", "涨跌额", "换手率"}
	rows := [][]string{
		{"2024-01-02", "600036", "30.10", "30.50", "30.80", "29.90", "123456", "370000000", "2.99", "1.33%", "0.40", "0.06"},
		{"2024-01-03", "600036", "30.50", "", "30.90", "30.20", "98000", "-", "2.30", "-0.20", "-0.06", "0.05"},
	}
	s, err := ParseTable("600036", headers, rows)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", s.Len())
	}
	want := model.OHLCV | model.FieldAmount | model.FieldAmplitude | model.FieldPctChange | model.FieldChange | model.FieldTurnover
	if s.Fields != want {
		t.Errorf("fields = %s, want %s", s.Fields, want)
	}
	b := s.Bars[0]
	if !b.Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, model.Shanghai)) {
		t.Errorf("date = %v", b.Date)
	}
	if b.Open != 30.10 || b.Close != 30.50 || b.High != 30.80 || b.Low != 29.90 || b.Volume != 123456 {
		t.Errorf("unexpected bar: %+v", b)
	}
	if b.PctChange != 1.33 {
		t.Errorf("percent suffix not stripped: %v", b.PctChange)
	}
	if !math.IsNaN(s.Bars[1].Close) || !math.IsNaN(s.Bars[1].Amount) {
		t.Errorf("empty and dash cells should be NaN: %+v", s.Bars[1])
	}
}

func TestParseTableEnglishAndUnknownHeaders(t *testing.T) {
	s, err := ParseTable("000001", []string{"date", "Open", "high", "low", "close", "volume", "note"},
		[][]string{{"20240105", "9.1", "9.3", "9.0", "9.2", "5000", "x"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Fields != model.OHLCV {
		t.Errorf("fields = %s", s.Fields)
	}
	if s.Bars[0].Close != 9.2 || s.Bars[0].Date.Day() != 5 {
		t.Errorf("unexpected bar: %+v", s.Bars[0])
	}
}

func TestParseTableMissingClose(t *testing.T) {
	s, err := ParseTable("600036", []string{"日期", "开盘"}, [][]string{{"2024/01/02", "10"}})
	if err != nil {
		t.Fatalf("a table without close should still parse: %v", err)
	}
	if s.Has(model.FieldClose) {
		t.Errorf("close should not be marked present")
	}
}

func TestParseTableErrors(t *testing.T) {
	if _, err := ParseTable("600036", []string{"收盘"}, [][]string{{"10"}}); !errors.Is(err, ErrNoDateColumn) {
		t.Errorf("expected ErrNoDateColumn, got %v", err)
	}
	if _, err := ParseTable("600036", []string{"日期", "收盘"}, [][]string{{"yesterday", "10"}}); err == nil {
		t.Errorf("expected date parse error")
	}
}
