package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"AShareLens/internal/model"
)

// EastMoneyKLineURL is the historical kline endpoint (the same one akshare's stock_zh_a_hist uses).
const EastMoneyKLineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer        = "https://quote.eastmoney.com/"
	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"

	defaultRetryDelay = 500 * time.Millisecond
	retryDelay429     = 5 * time.Second
)

// klineHeaders is the column order of fields2=f51..f61.
var klineHeaders = []string{"日期", "开盘", "收盘", "最高", "最低", "成交量", "成交额", "振幅", "涨跌幅", "涨跌额", "换手率"}

var klt = map[model.Period]string{
	model.PeriodDaily:   "101",
	model.PeriodWeekly:  "102",
	model.PeriodMonthly: "103",
}

var fqt = map[model.Adjust]string{
	model.AdjustNone:     "0",
	model.AdjustForward:  "1",
	model.AdjustBackward: "2",
}

// EastMoneyFetcher downloads A-share klines from eastmoney with request pacing and retry.
type EastMoneyFetcher struct {
	BaseURL    string
	Client     *http.Client
	RequestGap time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	RetryDelay time.Duration

	log     zerolog.Logger
	mu      sync.Mutex
	lastReq time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEastMoneyFetcher creates a fetcher with optional proxy support.
func NewEastMoneyFetcher(proxyURL string, log zerolog.Logger) *EastMoneyFetcher {
	return &EastMoneyFetcher{
		BaseURL:    EastMoneyKLineURL,
		Client:     newHTTPClient(proxyURL, 10*time.Second),
		RequestGap: 200 * time.Millisecond,
		MaxRetries: 3,
		RetryDelay: defaultRetryDelay,
		log:        log.With().Str("source", "eastmoney").Logger(),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (f *EastMoneyFetcher) Name() string { return "eastmoney" }

// SecID converts a 6-digit code to an eastmoney secid: "1." for Shanghai, "0." for Shenzhen/Beijing.
func SecID(code string) string {
	code = strings.TrimSpace(code)
	if IsShanghai(code) {
		return "1." + code
	}
	return "0." + code
}

func (f *EastMoneyFetcher) FetchBars(ctx context.Context, req model.BarRequest) (*model.PriceSeries, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("eastmoney: empty symbol")
	}
	period := req.Period
	if period == "" {
		period = model.PeriodDaily
	}
	if period == model.PeriodQuarterly {
		monthly := req
		monthly.Period = model.PeriodMonthly
		s, err := f.FetchBars(ctx, monthly)
		if err != nil {
			return nil, err
		}
		return Resample(s, model.PeriodQuarterly)
	}
	kltValue, ok := klt[period]
	if !ok {
		return nil, fmt.Errorf("eastmoney: unsupported period %q", period)
	}
	fqtValue, ok := fqt[req.Adjust]
	if !ok {
		return nil, fmt.Errorf("eastmoney: unsupported adjust %q", req.Adjust)
	}

	q := url.Values{}
	q.Set("secid", SecID(req.Symbol))
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")
	q.Set("klt", kltValue)
	q.Set("fqt", fqtValue)
	q.Set("beg", formatDay(req.Start, "0"))
	q.Set("end", formatDay(req.End, "20500101"))

	body, err := f.doWithRetry(ctx, f.BaseURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("eastmoney fetch %s: %w", req.Symbol, err)
	}
	series, err := parseKlines(body, req.Symbol)
	if err != nil {
		return nil, err
	}
	series.Period = period
	series.Adjust = req.Adjust
	series.FetchedAt = time.Now()
	return series, nil
}

// parseKlines reads data.klines, a list of comma-joined rows in klineHeaders order.
func parseKlines(body []byte, symbol string) (*model.PriceSeries, error) {
	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || !klines.IsArray() {
		return nil, fmt.Errorf("eastmoney: no data.klines for %s", symbol)
	}
	arr := klines.Array()
	rows := make([][]string, 0, len(arr))
	for _, v := range arr {
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		if len(parts) < 5 {
			continue
		}
		rows = append(rows, parts)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("eastmoney: no klines for %s", symbol)
	}
	return ParseTable(symbol, klineHeaders, rows)
}

func (f *EastMoneyFetcher) pace(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if wait := f.RequestGap - time.Since(f.lastReq); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	f.lastReq = time.Now()
	return nil
}

func (f *EastMoneyFetcher) doWithRetry(ctx context.Context, u string) ([]byte, error) {
	attempts := f.MaxRetries + 1
	if attempts <= 0 {
		attempts = 1
	}
	sleep := f.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var lastErr error
	var lastStatus int
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := f.RetryDelay
			if lastStatus == http.StatusTooManyRequests {
				backoff = retryDelay429
			}
			f.log.Debug().Int("attempt", attempt).Dur("backoff", backoff).Err(lastErr).Msg("retrying kline request")
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
		if err := f.pace(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Referer", referer)
		req.Header.Set("Accept", "application/json, text/plain, */*")
		req.Header.Set("Accept-Language", acceptLanguage)

		resp, err := f.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr, lastStatus = err, 0
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr, lastStatus = err, 0
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastStatus = resp.StatusCode
			lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
			continue
		}
		return body, nil
	}
	return nil, lastErr
}

func formatDay(t time.Time, fallback string) string {
	if t.IsZero() {
		return fallback
	}
	return t.In(model.Shanghai).Format("20060102")
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
