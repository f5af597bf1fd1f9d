package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"AShareLens/internal/model"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker

	log zerolog.Logger
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string, log zerolog.Logger) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: yahooChartURL,
		Client:  newHTTPClient(proxyURL, 30*time.Second),
		SymbolMap: map[string]string{
			"sh000001": "000001.SS", // SSE Composite
			"sz399001": "399001.SZ", // SZSE Component
			"sz399006": "399006.SZ", // ChiNext
		},
		log: log.With().Str("source", "yahoo").Logger(),
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// YahooTicker maps an A-share code to its Yahoo ticker (.SS for Shanghai, .SZ otherwise).
func (f *YahooFetcher) YahooTicker(symbol string) string {
	if mapped, ok := f.SymbolMap[strings.ToLower(symbol)]; ok {
		return mapped
	}
	if strings.Contains(symbol, ".") || len(symbol) != 6 {
		return symbol
	}
	if IsShanghai(symbol) {
		return symbol + ".SS"
	}
	return symbol + ".SZ"
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []interface{} `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(vals []interface{}, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return math.NaN()
	}
	switch n := vals[i].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return math.NaN()
	}
}

var yahooInterval = map[model.Period]string{
	model.PeriodDaily:   "1d",
	model.PeriodWeekly:  "1wk",
	model.PeriodMonthly: "1mo",
}

func (f *YahooFetcher) FetchBars(ctx context.Context, req model.BarRequest) (*model.PriceSeries, error) {
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
	interval, ok := yahooInterval[period]
	if !ok {
		return nil, fmt.Errorf("yahoo: unsupported period %q", period)
	}

	start, end := req.Start, req.End
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(-2, 0, 0)
	}
	u := fmt.Sprintf("%s%s?interval=%s&period1=%d&period2=%d",
		f.BaseURL, url.PathEscape(f.YahooTicker(req.Symbol)), interval, start.Unix(), end.Unix())

	bars, err := f.fetchChart(ctx, u, req.Adjust != model.AdjustNone)
	if err != nil {
		return nil, err
	}
	return &model.PriceSeries{
		Symbol: req.Symbol, Period: period, Adjust: req.Adjust,
		Fields: model.OHLCV, Bars: bars, FetchedAt: time.Now(),
	}, nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, u string, adjusted bool) ([]model.Bar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	var adj []interface{}
	if adjusted && len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := toFloat(quote.Open, i), toFloat(quote.High, i), toFloat(quote.Low, i), toFloat(quote.Close, i)
		if math.IsNaN(o) && math.IsNaN(h) && math.IsNaN(l) && math.IsNaN(c) {
			continue // null bars (holidays, suspensions)
		}
		if adj != nil {
			if ac := toFloat(adj, i); !math.IsNaN(ac) && c != 0 && !math.IsNaN(c) {
				ratio := ac / c
				o, h, l, c = o*ratio, h*ratio, l*ratio, ac
			}
		}
		date := time.Unix(ts, 0).In(shanghai)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, shanghai)
		bars = append(bars, model.NewBar(date, o, h, l, c, toFloat(quote.Volume, i)))
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo: no price data")
	}
	f.log.Debug().Int("bars", len(bars)).Msg("chart fetched")
	return bars, nil
}
