package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"AShareLens/internal/calculator"
	"AShareLens/internal/collector"
	"AShareLens/internal/model"
	"AShareLens/internal/strategy"
	"AShareLens/internal/watchlist"
)

// failingFetcher fails for the symbol "bad" and delegates otherwise.
type failingFetcher struct {
	collector.Fetcher
}

func (f failingFetcher) FetchBars(ctx context.Context, req model.BarRequest) (*model.PriceSeries, error) {
	if req.Symbol == "bad" {
		return nil, errors.New("no such symbol")
	}
	return f.Fetcher.FetchBars(ctx, req)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func newTestScheduler(t *testing.T, n Notifier) *Scheduler {
	t.Helper()
	log := zerolog.Nop()
	col := collector.NewCollector(failingFetcher{&collector.MockFetcher{Price: 30}}, 400, model.AdjustForward, log)
	eng := strategy.NewEngine(calculator.DefaultMACDConfig(), nil, nil, log)
	lists := watchlist.New(map[string][]string{"test": {"600036", "bad", "600519"}})
	return NewScheduler(context.Background(), col, eng, n, lists, "test", 2, log)
}

func TestScanKeepsOrderAndCollectsFailures(t *testing.T) {
	s := newTestScheduler(t, nil)

	res := s.Scan(context.Background(), ScanDaily, []string{"600036", "bad", "600519"})
	if _, err := uuid.Parse(res.RunID); err != nil {
		t.Errorf("run id %q is not a uuid: %v", res.RunID, err)
	}
	if len(res.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(res.Reports))
	}
	if res.Reports[0].Symbol != "600036" || res.Reports[1].Symbol != "600519" {
		t.Errorf("report order = %s, %s", res.Reports[0].Symbol, res.Reports[1].Symbol)
	}
	for _, r := range res.Reports {
		if r.RunID != res.RunID {
			t.Errorf("report run id %q, want %q", r.RunID, res.RunID)
		}
		if r.MACD == nil {
			t.Errorf("%s: expected MACD row", r.Symbol)
		}
	}
	if got := res.FailedSymbols(); len(got) != 1 || got[0] != "bad" {
		t.Errorf("failed = %v", got)
	}
}

func TestRunScanNowSendsDigest(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestScheduler(t, n)

	res, err := s.RunScanNow(context.Background(), ScanDaily)
	if err != nil {
		t.Fatalf("run scan: %v", err)
	}
	if len(res.Reports) != 2 {
		t.Errorf("expected 2 reports, got %d", len(res.Reports))
	}
	if len(n.messages) != 1 {
		t.Fatalf("expected one digest, got %d", len(n.messages))
	}
	if !strings.Contains(n.messages[0], "日线扫描") || !strings.Contains(n.messages[0], "失败 1 只: bad") {
		t.Errorf("digest:\n%s", n.messages[0])
	}

	s.Watchlist = "missing"
	if _, err := s.RunScanNow(context.Background(), ScanDaily); err == nil {
		t.Errorf("expected unknown watchlist error")
	}
}

func TestRunScanNowWeeklyDigest(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestScheduler(t, n)

	res, err := s.RunScanNow(context.Background(), ScanWeekly)
	if err != nil {
		t.Fatalf("run scan: %v", err)
	}
	if len(res.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(res.Reports))
	}
	for _, r := range res.Reports {
		if r.MACD != nil || len(r.Signals) != 0 {
			t.Errorf("%s: weekly scan should only evaluate weekly MAs", r.Symbol)
		}
	}
	if len(n.messages) != 1 {
		t.Fatalf("expected one digest, got %d", len(n.messages))
	}
	for _, want := range []string{"周线均线扫描", "均线交叉", "均线在MA60之上", "失败 1 只: bad"} {
		if !strings.Contains(n.messages[0], want) {
			t.Errorf("weekly digest missing %q:\n%s", want, n.messages[0])
		}
	}
}

func TestRunScanNowWithoutNotifier(t *testing.T) {
	s := newTestScheduler(t, nil)
	if _, err := s.RunScanNow(context.Background(), ScanWeekly); err != nil {
		t.Fatalf("run scan: %v", err)
	}
}

func TestRegisterAll(t *testing.T) {
	s := newTestScheduler(t, nil)
	if err := s.RegisterAll("0 30 15 * * 1-5", "0 0 18 * * 5"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := len(s.Cron.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}
	if err := s.RegisterAll("not a cron", "0 0 18 * * 5"); err == nil {
		t.Errorf("expected invalid cron error")
	}
}

func TestHandleCommand(t *testing.T) {
	s := newTestScheduler(t, &fakeNotifier{})
	ctx := context.Background()

	tests := []struct {
		command string
		want    string
	}{
		{"/help", "/scan"},
		{"", "可用命令"},
		{"/unknown", "可用命令"},
		{"/scan", "用法"},
		{"/scan 600036", "600036 招商银行"},
		{"/SCAN 600036", "收盘价"},
		{"/scan bad", "扫描失败"},
		{"/macd@LensBot 600519", "MACD(12,26,9)"},
		{"/macd bad", "数据获取失败"},
		{"/watchlist", "banking"},
		{"/watchlist TEST", "📋 <b>test</b> (3)"},
		{"/watchlist nope", "❌"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got := s.HandleCommand(ctx, tt.command)
			if !strings.Contains(got, tt.want) {
				t.Errorf("HandleCommand(%q) = %q, want it to contain %q", tt.command, got, tt.want)
			}
		})
	}
}
