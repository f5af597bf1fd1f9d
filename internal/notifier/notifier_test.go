package notifier

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"AShareLens/internal/model"
)

type fakeAPI struct {
	mu       sync.Mutex
	failures int
	messages []map[string]any
	paths    []string
}

func (f *fakeAPI) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)
	if f.failures > 0 {
		f.failures--
		http.Error(w, `{"ok":false}`, http.StatusTooManyRequests)
		return
	}
	body, _ := io.ReadAll(r.Body)
	var msg map[string]any
	_ = json.Unmarshal(body, &msg)
	f.messages = append(f.messages, msg)
	w.Write([]byte(`{"ok":true}`))
}

func newTestNotifier(t *testing.T, api *fakeAPI) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", zerolog.Nop())
	n.BaseURL = srv.URL
	n.Client = srv.Client()
	n.RetryBase = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	api := &fakeAPI{}
	n := newTestNotifier(t, api)

	if err := n.Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if api.paths[0] != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", api.paths[0])
	}
	msg := api.messages[0]
	if msg["chat_id"] != "42" || msg["text"] != "<b>hi</b>" || msg["parse_mode"] != "HTML" {
		t.Errorf("payload = %v", msg)
	}
}

func TestSendWithRetry(t *testing.T) {
	api := &fakeAPI{failures: 2}
	n := newTestNotifier(t, api)

	if err := n.SendWithRetry(context.Background(), "x", 3); err != nil {
		t.Fatalf("send with retry: %v", err)
	}
	if len(api.paths) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(api.paths))
	}

	api2 := &fakeAPI{failures: 10}
	n2 := newTestNotifier(t, api2)
	err := n2.SendWithRetry(context.Background(), "x", 1)
	if err == nil || !strings.Contains(err.Error(), "2 retries exhausted") {
		t.Errorf("expected exhausted error, got %v", err)
	}
	if len(api2.paths) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(api2.paths))
	}
}

func TestSendWithRetryCancelled(t *testing.T) {
	api := &fakeAPI{failures: 10}
	n := newTestNotifier(t, api)
	n.RetryBase = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := n.SendWithRetry(ctx, "x", 3); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDispatch(t *testing.T) {
	api := &fakeAPI{}
	n := newTestNotifier(t, api)

	body := []byte(`{"ok":true,"result":[
		{"update_id":7,"message":{"text":" /help ","chat":{"id":42}}},
		{"update_id":8,"message":{"text":"/scan 600036","chat":{"id":99}}},
		{"update_id":9,"edited_message":{"text":"ignored"}}
	]}`)
	var got []string
	offset, err := n.dispatch(context.Background(), body, 0, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "reply to " + cmd
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if offset != 10 {
		t.Errorf("offset = %d, want 10", offset)
	}
	if len(got) != 1 || got[0] != "/help" {
		t.Errorf("handled = %v", got)
	}
	if len(api.messages) != 1 || api.messages[0]["text"] != "reply to /help" {
		t.Errorf("replies = %v", api.messages)
	}

	if off, err := n.dispatch(context.Background(), []byte(`{"ok":false}`), 5, nil); err == nil || off != 5 {
		t.Errorf("expected error and unchanged offset, got %d, %v", off, err)
	}
}

func TestStartPollingStopsOnCancel(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer srv.Close()
	n := NewTelegramNotifier("T", "42", "", zerolog.Nop())
	n.BaseURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(context.Context, string) string { return "" })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Errorf("expected at least one getUpdates call")
	}
}

func sampleReport() *model.Report {
	d := time.Date(2024, 6, 28, 0, 0, 0, 0, model.Shanghai)
	return &model.Report{
		Symbol: "600036",
		AsOf:   d,
		Close:  33.12,
		MACD:   &model.MACDRow{Date: d, MACD: 0.21, Signal: 0.15, Histogram: 0.06, Valid: true},
		RecentCrossovers: []model.CrossoverEvent{
			{Date: d, Kind: model.GoldenCross, MACD: 0.21, Signal: 0.15, Close: 33.12},
		},
		WeeklyCrosses: []model.MACrossover{{Date: d, Kind: model.GoldenMA20, Close: 33.12}},
		Signals: []model.Signal{
			{Rule: "rsi_extreme", Severity: model.SeverityInfo, Message: "RSI 20 below 25, oversold"},
			{Rule: "macd_cross", Severity: model.SeverityAction, Message: "MACD golden cross <now>"},
		},
		RSI:         55.5,
		High52w:     40,
		Low52w:      30,
		Position52w: 0.312,
		High30d:     34.5,
		Low30d:      31.8,
		WeeklyAbove: &model.MAAbove{Date: d, MA20Above: true, MA20: 32.1, MA30: 31.2, MA60: 31.5},
		Errors:      []string{"trend: insufficient data"},
	}
}

func TestFormatReport(t *testing.T) {
	text := FormatReport(sampleReport())
	for _, want := range []string{
		"600036 招商银行",
		"2024-06-28",
		"DIF 0.210 | DEA 0.150 | 柱 +0.060",
		"MACD金叉",
		"MA20上穿MA60",
		"RSI(14): 55.5",
		"位置 31%",
		"30日区间: 31.80 ~ 34.50",
		"MA20 32.10 &gt; MA60 31.50",
		"&lt;now&gt;",
		"1 项计算失败",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "golden cross") > strings.Index(text, "oversold") {
		t.Errorf("action signal should be listed before info")
	}
}

func TestFormatDigest(t *testing.T) {
	quiet := &model.Report{Symbol: "000001", Close: 10}
	at := time.Date(2024, 6, 28, 15, 30, 0, 0, model.Shanghai)

	text := FormatDigest("日线扫描", at, []*model.Report{sampleReport(), quiet}, []string{"600000"})
	if !strings.Contains(text, "600036 招商银行") {
		t.Errorf("digest missing symbol with findings:\n%s", text)
	}
	if strings.Contains(text, "000001") {
		t.Errorf("digest should skip quiet symbols:\n%s", text)
	}
	if !strings.Contains(text, "扫描 3 只, 失败 1 只: 600000") {
		t.Errorf("digest footer:\n%s", text)
	}

	empty := FormatDigest("日线扫描", at, []*model.Report{quiet}, nil)
	if !strings.Contains(empty, "无新信号") {
		t.Errorf("empty digest:\n%s", empty)
	}
}

func TestFormatWeeklyDigest(t *testing.T) {
	at := time.Date(2024, 6, 28, 18, 0, 0, 0, model.Shanghai)
	d := time.Date(2024, 6, 28, 0, 0, 0, 0, model.Shanghai)
	both := &model.Report{Symbol: "600519", Close: 1500,
		WeeklyAbove: &model.MAAbove{Date: d, MA20Above: true, MA30Above: true, MA20: 1520, MA30: 1510, MA60: 1490}}
	quiet := &model.Report{Symbol: "000001", Close: 10}

	text := FormatWeeklyDigest("周线均线扫描", at, []*model.Report{sampleReport(), both, quiet}, []string{"bad"})
	for _, want := range []string{
		"周线均线扫描",
		"600036 招商银行 2024-06-28 MA20上穿MA60 收盘 33.12",
		"均线在MA60之上 (2)",
		"600519 贵州茅台 MA20 1520.00, MA30 1510.00 &gt; MA60 1490.00",
		"扫描 4 只, 失败 1 只: bad",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("weekly digest missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "000001") || strings.Contains(text, "MACD") {
		t.Errorf("weekly digest should list MA findings only:\n%s", text)
	}

	empty := FormatWeeklyDigest("周线均线扫描", at, []*model.Report{quiet}, nil)
	if !strings.Contains(empty, "均线交叉:</b>\n  无") || !strings.Contains(empty, "(0)") {
		t.Errorf("empty weekly digest:\n%s", empty)
	}
}

func TestFormatMACD(t *testing.T) {
	d := time.Date(2024, 6, 24, 0, 0, 0, 0, model.Shanghai)
	res := &model.MACDResult{Symbol: "600519", Params: model.MACDParams{Fast: 12, Slow: 26, Signal: 9}}
	for i := 0; i < 5; i++ {
		row := model.MACDRow{Date: d.AddDate(0, 0, i), Close: 1500 + float64(i), MACD: math.NaN(), Signal: math.NaN(), Histogram: math.NaN()}
		if i >= 3 {
			row.MACD, row.Signal, row.Histogram, row.Valid = 1.5, 1.0, 0.5, true
		}
		res.Rows = append(res.Rows, row)
	}
	text := FormatMACD(res, nil, 3)
	if !strings.Contains(text, "MACD(12,26,9)") || !strings.Contains(text, "贵州茅台") {
		t.Errorf("header:\n%s", text)
	}
	if strings.Contains(text, "2024-06-25") || !strings.Contains(text, "2024-06-26") {
		t.Errorf("expected last 3 rows:\n%s", text)
	}
	if !strings.Contains(text, "      -") || !strings.Contains(text, "+0.500") || !strings.Contains(text, "无交叉") {
		t.Errorf("row formatting:\n%s", text)
	}
}

func TestSplit(t *testing.T) {
	if got := Split("short", 10); len(got) != 1 {
		t.Errorf("Split short = %v", got)
	}
	text := strings.Repeat("abcdefgh\n", 5) // 45 bytes
	chunks := Split(text, 20)
	if strings.Join(chunks, "") != text {
		t.Errorf("chunks lost text: %q", chunks)
	}
	for _, c := range chunks {
		if len(c) > 20 {
			t.Errorf("chunk too long: %q", c)
		}
		if !strings.HasSuffix(c, "\n") {
			t.Errorf("chunk should end at a line boundary: %q", c)
		}
	}
	long := strings.Repeat("招", 10) // 30 bytes, no newline
	for _, c := range Split(long, 8) {
		if len(c) > 8 || len(c)%3 != 0 {
			t.Errorf("multibyte split broke a rune: %q", c)
		}
	}
}
