package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"AShareLens/internal/calculator"
	"AShareLens/internal/collector"
	"AShareLens/internal/metrics"
	"AShareLens/internal/model"
	"AShareLens/internal/notifier"
	"AShareLens/internal/strategy"
	"AShareLens/internal/watchlist"
)

// ScanKind labels a scan run.
type ScanKind string

const (
	ScanDaily  ScanKind = "daily"
	ScanWeekly ScanKind = "weekly"
	ScanManual ScanKind = "manual"
)

var scanTitle = map[ScanKind]string{
	ScanDaily:  "日线扫描",
	ScanWeekly: "周线均线扫描",
	ScanManual: "手动扫描",
}

// Notifier delivers chat messages.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// ScanResult is the outcome of one watchlist scan.
type ScanResult struct {
	RunID     string
	Kind      ScanKind
	StartedAt time.Time
	Reports   []*model.Report
	Failed    map[string]error
}

// FailedSymbols returns the symbols that could not be scanned, sorted.
func (r *ScanResult) FailedSymbols() []string {
	out := make([]string, 0, len(r.Failed))
	for s := range r.Failed {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Scheduler manages cron scans and chat commands.
type Scheduler struct {
	Cron       *cron.Cron
	Collector  *collector.Collector
	Engine     *strategy.Engine
	Notifier   Notifier
	Watchlists *watchlist.Registry
	// Watchlist is the list scanned by cron jobs.
	Watchlist  string
	Workers    int
	MaxRetries int

	ctx     context.Context
	log     zerolog.Logger
	now     func() time.Time
	running sync.Mutex
}

// NewScheduler creates a new Scheduler. A nil notifier logs digests instead of sending them.
func NewScheduler(ctx context.Context, col *collector.Collector, eng *strategy.Engine, n Notifier,
	lists *watchlist.Registry, list string, workers int, log zerolog.Logger) *Scheduler {
	if workers <= 0 {
		workers = 4
	}
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds(), cron.WithLocation(model.Shanghai)),
		Collector:  col,
		Engine:     eng,
		Notifier:   n,
		Watchlists: lists,
		Watchlist:  list,
		Workers:    workers,
		MaxRetries: 3,
		ctx:        ctx,
		log:        log,
		now:        time.Now,
	}
}

// RegisterAll registers the daily and weekly scans.
func (s *Scheduler) RegisterAll(dailyCron, weeklyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, func() { s.scanTask(ScanDaily) }); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	if _, err := s.Cron.AddFunc(weeklyCron, func() { s.scanTask(ScanWeekly) }); err != nil {
		return fmt.Errorf("register weekly task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunScanNow scans the configured watchlist immediately and sends the digest.
func (s *Scheduler) RunScanNow(ctx context.Context, kind ScanKind) (*ScanResult, error) {
	symbols, err := s.Watchlists.Get(s.Watchlist)
	if err != nil {
		return nil, err
	}
	if !s.running.TryLock() {
		return nil, errors.New("a scan is already running")
	}
	defer s.running.Unlock()

	res := s.Scan(ctx, kind, symbols)
	s.trySend(ctx, Digest(res))
	return res, nil
}

// Digest formats a scan result: weekly scans list MA crossovers and MA-above-MA60 symbols, the
// others list per-symbol findings.
func Digest(res *ScanResult) string {
	if res.Kind == ScanWeekly {
		return notifier.FormatWeeklyDigest(scanTitle[res.Kind], res.StartedAt, res.Reports, res.FailedSymbols())
	}
	return notifier.FormatDigest(scanTitle[res.Kind], res.StartedAt, res.Reports, res.FailedSymbols())
}

func (s *Scheduler) scanTask(kind ScanKind) {
	if _, err := s.RunScanNow(s.ctx, kind); err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("scan failed")
	}
}

// Scan evaluates symbols with at most Workers concurrent fetches. Reports keep the symbol order.
func (s *Scheduler) Scan(ctx context.Context, kind ScanKind, symbols []string) *ScanResult {
	res := &ScanResult{
		RunID:     uuid.NewString(),
		Kind:      kind,
		StartedAt: s.now().In(model.Shanghai),
		Failed:    map[string]error{},
	}
	logger := s.log.With().Str("run_id", res.RunID).Str("kind", string(kind)).Logger()
	logger.Info().Int("symbols", len(symbols)).Msg("scan started")
	start := time.Now()

	reports := make([]*model.Report, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.Workers)

	for i, symbol := range symbols {
		wg.Add(1)
		go func(idx int, symbol string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			report, err := s.evaluate(ctx, kind, res.RunID, symbol)
			if err != nil {
				logger.Warn().Err(err).Str("symbol", symbol).Msg("symbol scan failed")
				mu.Lock()
				res.Failed[symbol] = err
				mu.Unlock()
				return
			}
			reports[idx] = report
		}(i, symbol)
	}
	wg.Wait()

	for _, r := range reports {
		if r != nil {
			res.Reports = append(res.Reports, r)
		}
	}
	metrics.ScansTotal.WithLabelValues(string(kind)).Inc()
	metrics.ScanDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	logger.Info().Int("reports", len(res.Reports)).Int("failed", len(res.Failed)).Dur("took", time.Since(start)).Msg("scan finished")
	return res
}

func (s *Scheduler) evaluate(ctx context.Context, kind ScanKind, runID, symbol string) (*model.Report, error) {
	snap, err := s.Collector.Collect(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if kind == ScanWeekly {
		return s.Engine.EvaluateWeekly(runID, snap)
	}
	return s.Engine.Evaluate(runID, snap)
}

const helpText = `可用命令:
• /scan &lt;代码&gt; 单只股票报告
• /macd &lt;代码&gt; 最近MACD与交叉
• /watchlist [名称] 查看自选列表
• /run 立即扫描自选列表
• /help 帮助`

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// "/scan@MyBot 600036" in group chats
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch cmd {
	case "/scan", "查看":
		if len(args) != 1 {
			return "用法: /scan &lt;代码&gt;"
		}
		report, err := s.evaluate(ctx, ScanManual, uuid.NewString(), args[0])
		if err != nil {
			return fmt.Sprintf("❌ %s 扫描失败: %v", args[0], err)
		}
		return notifier.FormatReport(report)
	case "/macd":
		if len(args) != 1 {
			return "用法: /macd &lt;代码&gt;"
		}
		return s.macd(ctx, args[0])
	case "/watchlist", "自选":
		if len(args) == 0 {
			return "自选列表: " + strings.Join(s.Watchlists.Names(), ", ")
		}
		codes, err := s.Watchlists.Get(args[0])
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatWatchlist(strings.ToLower(args[0]), codes)
	case "/run", "扫描":
		go func() {
			if _, err := s.RunScanNow(s.ctx, ScanManual); err != nil {
				s.log.Error().Err(err).Msg("manual scan")
				s.trySend(s.ctx, fmt.Sprintf("❌ 扫描未执行: %v", err))
			}
		}()
		return fmt.Sprintf("⏳ 开始扫描 %s", s.Watchlist)
	default:
		return helpText
	}
}

func (s *Scheduler) macd(ctx context.Context, symbol string) string {
	snap, err := s.Collector.Collect(ctx, symbol)
	if err != nil {
		return fmt.Sprintf("❌ %s 数据获取失败: %v", symbol, err)
	}
	res, err := calculator.ComputeMACD(snap.Daily, s.Engine.MACD)
	if err != nil {
		return fmt.Sprintf("❌ %s MACD计算失败: %v", symbol, err)
	}
	events, err := calculator.DetectCrossovers(res)
	if err != nil && !errors.Is(err, calculator.ErrInsufficientData) {
		return fmt.Sprintf("❌ %s 交叉检测失败: %v", symbol, err)
	}
	return notifier.FormatMACD(res, events, 10)
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if s.Notifier == nil {
		s.log.Info().Str("message", text).Msg("notification (no notifier configured)")
		return
	}
	for _, chunk := range notifier.Split(text, 4096) {
		if err := s.Notifier.SendWithRetry(ctx, chunk, s.MaxRetries); err != nil {
			s.log.Error().Err(err).Msg("send notification")
			return
		}
	}
}
