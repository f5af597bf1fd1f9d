// cmd/lens computes MACD and crossovers for one symbol and prints them.
//
// Usage:
//
//	go run ./cmd/lens -symbol 600036 -period weekly -tail 20
//	go run ./cmd/lens -csv data/600036.csv -scale 2
//	go run ./cmd/lens -symbol 600036 -report
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"AShareLens/internal/app"
	"AShareLens/internal/calculator"
	"AShareLens/internal/collector"
	"AShareLens/internal/config"
	"AShareLens/internal/model"
	"AShareLens/internal/strategy"
	"AShareLens/internal/util"
)

type options struct {
	symbol string
	period model.Period
	start  time.Time
	end    time.Time
	csv    string
	tail   int
	report bool
}

func main() {
	config.LoadEnv()

	cfgPath := flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "Path to config file")
	symbol := flag.String("symbol", "", "6-digit A-share code, e.g. 600036")
	periodStr := flag.String("period", "daily", "Bar period: daily, weekly, monthly, quarterly")
	startStr := flag.String("start", "", "Start date YYYY-MM-DD (default: provider default)")
	endStr := flag.String("end", "", "End date YYYY-MM-DD (default: today)")
	csvPath := flag.String("csv", "", "Read bars from a local CSV file instead of the data source")
	provider := flag.String("provider", "", "Override data_source.provider")
	adjust := flag.String("adjust", "", "Override data_source.adjust: none, qfq, hfq")
	seed := flag.String("seed", "", "Override EMA seeding: first, sma")
	scale := flag.Float64("scale", 0, "Override histogram scale (2 for Chinese terminals)")
	tail := flag.Int("tail", 10, "Number of trailing rows to print")
	report := flag.Bool("report", false, "Run the full rule engine instead of printing MACD rows")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot := util.NewConsoleLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewConsoleLogger(cfg.LogLevel)

	if *provider != "" {
		cfg.DataSource.Provider = *provider
	}
	if *adjust != "" {
		cfg.DataSource.Adjust = *adjust
	}
	if *seed != "" {
		cfg.Indicator.Seed = *seed
	}
	if *scale != 0 {
		cfg.Indicator.HistogramScale = *scale
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	opts := options{symbol: *symbol, csv: *csvPath, tail: *tail, report: *report}
	if opts.period, err = model.ParsePeriod(*periodStr); err != nil {
		log.Fatal().Err(err).Msg("bad -period")
	}
	if opts.start, err = parseDate(*startStr); err != nil {
		log.Fatal().Err(err).Msg("bad -start")
	}
	if opts.end, err = parseDate(*endStr); err != nil {
		log.Fatal().Err(err).Msg("bad -end")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout, log); err != nil {
		log.Fatal().Err(err).Msg("lens")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, s, model.Shanghai)
}

func run(ctx context.Context, cfg *config.Config, opts options, w io.Writer, log zerolog.Logger) error {
	if opts.symbol == "" && opts.csv == "" {
		return errors.New("one of -symbol or -csv is required")
	}
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.report {
		if opts.symbol == "" {
			return errors.New("-report needs -symbol")
		}
		snap, err := a.Collector.Collect(ctx, opts.symbol)
		if err != nil {
			return err
		}
		r, err := a.Engine.Evaluate("cli", snap)
		if err != nil {
			return err
		}
		printReport(w, r)
		return nil
	}

	series, err := loadSeries(ctx, a, cfg, opts)
	if err != nil {
		return err
	}
	res, err := calculator.ComputeMACD(series, a.Engine.MACD)
	if err != nil {
		return err
	}
	events, err := calculator.DetectCrossovers(res)
	if err != nil && !errors.Is(err, calculator.ErrInsufficientData) {
		return err
	}
	printMACD(w, res, events, opts.tail)
	return nil
}

func loadSeries(ctx context.Context, a *app.App, cfg *config.Config, opts options) (*model.PriceSeries, error) {
	if opts.csv != "" {
		symbol := opts.symbol
		if symbol == "" {
			symbol = "csv"
		}
		series, err := collector.ReadCSV(opts.csv, symbol)
		if err != nil {
			return nil, err
		}
		series = series.Window(opts.start, opts.end)
		if opts.period != series.Period {
			return collector.Resample(series, opts.period)
		}
		return series, nil
	}
	adjust, err := cfg.Adjust()
	if err != nil {
		return nil, err
	}
	return a.Fetcher.FetchBars(ctx, model.BarRequest{
		Symbol: opts.symbol, Start: opts.start, End: opts.end, Period: opts.period, Adjust: adjust,
	})
}

func cell(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

func printMACD(w io.Writer, res *model.MACDResult, events []model.CrossoverEvent, tail int) {
	p := res.Params
	fmt.Fprintf(w, "%s MACD(%d,%d,%d) seed=%s scale=%g rows=%d defined=%d\n\n",
		res.Symbol, p.Fast, p.Slow, p.Signal, p.Seed, p.HistogramScale, len(res.Rows), res.Defined())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "date\tclose\tema_fast\tema_slow\tmacd\tsignal\thistogram\t")
	start := len(res.Rows) - tail
	if start < 0 || tail <= 0 {
		start = 0
	}
	for _, r := range res.Rows[start:] {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%s\t%s\t%s\t\n", r.Date.Format(time.DateOnly), r.Close,
			cell(r.EMAFast), cell(r.EMASlow), cell(r.MACD), cell(r.Signal), cell(r.Histogram))
	}
	tw.Flush()

	fmt.Fprintf(w, "\ncrossovers: %d\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(w, "  %s %-12s macd=%.4f signal=%.4f close=%.2f\n",
			ev.Date.Format(time.DateOnly), ev.Kind, ev.MACD, ev.Signal, ev.Close)
	}
}

func printReport(w io.Writer, r *model.Report) {
	fmt.Fprintln(w, strategy.Summary(r))
	if r.RSI > 0 {
		fmt.Fprintf(w, "rsi14=%.1f 52w=[%.2f, %.2f] position=%.2f\n", r.RSI, r.Low52w, r.High52w, r.Position52w)
	}
	for _, ev := range r.RecentCrossovers {
		fmt.Fprintf(w, "recent %s on %s\n", ev.Kind, ev.Date.Format(time.DateOnly))
	}
	if r.High30d > 0 {
		fmt.Fprintf(w, "30d=[%.2f, %.2f]\n", r.Low30d, r.High30d)
	}
	for _, c := range r.WeeklyCrosses {
		fmt.Fprintf(w, "weekly %s on %s\n", c.Kind, c.Date.Format(time.DateOnly))
	}
	if a := r.WeeklyAbove; a != nil {
		fmt.Fprintf(w, "weekly ma20_above=%t ma30_above=%t ma60=%.2f\n", a.MA20Above, a.MA30Above, a.MA60)
	}
	for _, s := range r.Signals {
		fmt.Fprintf(w, "[%s] %s: %s\n", s.Severity, s.Rule, s.Message)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
}
