package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AShareLens/internal/app"
	"AShareLens/internal/config"
	"AShareLens/internal/metrics"
	"AShareLens/internal/notifier"
	"AShareLens/internal/scheduler"
	"AShareLens/internal/util"
	"AShareLens/internal/watchlist"
)

func main() {
	config.LoadEnv()

	cfgPath := configPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}
	log := util.NewLogger(cfg.LogLevel)
	log.Info().Str("config", cfgPath).Msg("AShareLens starting...")
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init components")
	}
	defer a.Close()

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Serve(cfg.Metrics.Addr, log)
		if err != nil {
			log.Fatal().Err(err).Msg("metrics server")
		}
		log.Info().Str("addr", srv.Addr).Msg("metrics server started")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Telegram is optional: without it digests are only logged
	var tn *notifier.TelegramNotifier
	var sender scheduler.Notifier
	if err := cfg.ValidateTelegram(); err != nil {
		log.Warn().Err(err).Msg("telegram disabled")
	} else {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		sender = tn
	}

	lists := watchlist.New(cfg.Watchlists)
	sched := scheduler.NewScheduler(ctx, a.Collector, a.Engine, sender, lists,
		cfg.Schedule.Watchlist, cfg.Schedule.Workers, log)
	if err := sched.RegisterAll(cfg.Schedule.DailyCron, cfg.Schedule.WeeklyCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, executing daily scan now")
		go func() {
			if _, err := sched.RunScanNow(ctx, scheduler.ScanDaily); err != nil {
				log.Error().Err(err).Msg("startup scan")
			}
		}()
	}

	log.Info().Str("watchlist", cfg.Schedule.Watchlist).Msg("AShareLens is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")
}

// configPath returns CONFIG_PATH or the default config location.
func configPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}
