package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"AShareLens/internal/config"
	"AShareLens/internal/model"
)

func testConfig(t *testing.T, provider string) *config.Config {
	t.Helper()
	t.Setenv("DATA_PROVIDER", "")
	t.Setenv("SQLITE_PATH", "")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.DataSource.Provider = provider
	return cfg
}

// rampCSV writes n daily bars with closes 10, 11, 12, ...
func rampCSV(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,open,high,low,close,volume\n")
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, model.Shanghai)
	for i := 0; i < n; i++ {
		c := 10 + float64(i)
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,1000\n", d.AddDate(0, 0, i).Format(time.DateOnly), c, c+1, c-1, c)
	}
	path := filepath.Join(t.TempDir(), "ramp.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCSV(t *testing.T) {
	var out bytes.Buffer
	opts := options{symbol: "600036", csv: rampCSV(t, 40), period: model.PeriodDaily, tail: 5}
	if err := run(context.Background(), testConfig(t, "csv"), opts, &out, zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "600036 MACD(12,26,9) seed=first scale=1 rows=40 defined=15") {
		t.Errorf("header:\n%s", text)
	}
	if !strings.Contains(text, "2024-02-09") || strings.Contains(text, "2024-02-04") {
		t.Errorf("expected the last 5 rows only:\n%s", text)
	}
	// a rising ramp crosses once, on the first row where the signal line lags
	if !strings.Contains(text, "crossovers: 1") || !strings.Contains(text, "golden_cross") {
		t.Errorf("crossovers:\n%s", text)
	}
}

func TestRunCSVWeekly(t *testing.T) {
	var out bytes.Buffer
	opts := options{csv: rampCSV(t, 210), period: model.PeriodWeekly, tail: 3}
	if err := run(context.Background(), testConfig(t, "csv"), opts, &out, zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "rows=30 defined=5") {
		t.Errorf("expected 30 weekly rows:\n%s", out.String())
	}
}

func TestRunReport(t *testing.T) {
	var out bytes.Buffer
	opts := options{symbol: "600036", period: model.PeriodDaily, report: true}
	if err := run(context.Background(), testConfig(t, "mock"), opts, &out, zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "600036 ") || !strings.Contains(out.String(), "dif=") || !strings.Contains(out.String(), "30d=[") {
		t.Errorf("report:\n%s", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	cfg := testConfig(t, "mock")
	if err := run(context.Background(), cfg, options{}, &bytes.Buffer{}, zerolog.Nop()); err == nil {
		t.Errorf("expected missing symbol error")
	}
	if err := run(context.Background(), cfg, options{csv: "x.csv", report: true}, &bytes.Buffer{}, zerolog.Nop()); err == nil {
		t.Errorf("expected -report without -symbol error")
	}
	if err := run(context.Background(), cfg, options{csv: filepath.Join(t.TempDir(), "missing.csv")}, &bytes.Buffer{}, zerolog.Nop()); err == nil {
		t.Errorf("expected missing file error")
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-06-28")
	if err != nil || d.Day() != 28 || d.Location() != model.Shanghai {
		t.Errorf("parseDate = %v, %v", d, err)
	}
	if d, err := parseDate(""); err != nil || !d.IsZero() {
		t.Errorf("empty date = %v, %v", d, err)
	}
	if _, err := parseDate("28/06/2024"); err == nil {
		t.Errorf("expected parse error")
	}
}
