package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signalbot/internal/broker"
	"signalbot/internal/config"
	"signalbot/internal/engine"
	"signalbot/internal/md"
	"signalbot/internal/metrics"
	"signalbot/internal/retry"
	"signalbot/internal/scheduler"
	"signalbot/internal/strategy"
	"signalbot/internal/trade"
	"signalbot/internal/tracing"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("config error: %v", err)
	}
	setupLogger(cfg.LogLevel, cfg.LogFormat)

	runID := generateRunID()
	if err := tracing.Init(cfg.Tracing, os.Stderr); err != nil {
		log.Fatalf("tracing error: %v", err)
	}
	defer shutdown("tracing", tracing.Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, m)
		srv.Start()
		defer shutdown("metrics server", srv.Stop)
	}

	var decisions *engine.DecisionLogger
	if cfg.DecisionsPath != "" {
		decisions, err = engine.NewDecisionLogger(cfg.DecisionsPath)
		if err != nil {
			log.Fatalf("decision logger error: %v", err)
		}
		defer func() {
			if err := decisions.Close(); err != nil {
				slog.Error("failed to close decision logger", "error", err)
			}
		}()
	}

	mdClient := md.NewClient(cfg.APIKey, cfg.APISecret)
	var store md.Store
	if cfg.Redis.Addr != "" {
		rs := md.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err := rs.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, caching bars in process only", "addr", cfg.Redis.Addr, "error", err)
			_ = rs.Close()
		} else {
			store = rs
			defer rs.Close()
		}
	}
	cache := md.NewCache(md.NewAlpacaBars(mdClient, cfg.Feed), store, m)

	strat, err := strategy.New(cfg.Strategy, cfg.Params)
	if err != nil {
		log.Fatalf("strategy error: %v", err)
	}

	var (
		brokerClient *broker.Client
		brokerage    trade.Brokerage
		quotes       trade.QuoteProvider
	)
	if cfg.Trade {
		brokerClient = broker.New(cfg.APIKey, cfg.APISecret, cfg.BaseURL)
		brokerage = brokerClient
		quotes = md.NewQuotes(mdClient, cfg.Feed)
	}

	eng, err := engine.New(engineConfig(cfg), strat, cache, brokerage, quotes, decisions, m, runID)
	if err != nil {
		log.Fatalf("engine error: %v", err)
	}

	slog.Info("starting bot", "run_id", runID, "mode", cfg.Mode, "strategy", cfg.Strategy, "tickers", len(cfg.Tickers), "trade", cfg.Trade, "feed", cfg.Feed)

	switch cfg.Mode {
	case config.ModeRun:
		runOnce(ctx, eng, brokerClient, cfg.Tickers)
	case config.ModeScan:
		report := eng.Run(ctx, cfg.Tickers)
		for _, ticker := range report.Matching(strategy.Buy) {
			fmt.Println(ticker)
		}
	case config.ModeSchedule:
		sched := scheduler.NewScheduler(ctx)
		if err := sched.Register("run", cfg.Schedule, func(ctx context.Context) {
			runOnce(ctx, eng, brokerClient, cfg.Tickers)
		}); err != nil {
			log.Fatalf("scheduler error: %v", err)
		}
		if cfg.RunOnStart {
			_ = sched.RunNow("run")
		}
		sched.Start()
		<-ctx.Done()
		sched.Stop()
	}

	slog.Info("bot shutdown complete", "run_id", runID)
}

func runOnce(ctx context.Context, eng *engine.Engine, brokerClient *broker.Client, tickers []string) {
	report := eng.Run(ctx, tickers)
	for _, res := range report.Results {
		if res.Action == engine.ActionError {
			slog.Warn("ticker result", "ticker", res.Ticker, "action", res.Action, "error", res.Err)
			continue
		}
		slog.Info("ticker result", "ticker", res.Ticker, "action", res.Action)
	}
	if brokerClient != nil {
		engine.LogAccount(ctx, brokerClient, tickers)
	}
}

func engineConfig(cfg config.Config) engine.Config {
	return engine.Config{
		Workers:      cfg.Workers,
		Trade:        cfg.Trade,
		LookbackDays: cfg.LookbackDays,
		Timeframe:    cfg.Timeframe,
		Buy: trade.BuyRequest{
			Qty:           cfg.Order.Qty,
			Value:         cfg.Order.Value,
			StopLossPct:   cfg.Order.StopLossPct,
			TakeProfitPct: cfg.Order.TakeProfitPct,
		},
		Sell: trade.SellRequest{
			Qty:   cfg.Order.SellQty,
			Value: cfg.Order.SellValue,
		},
		Manager: trade.Config{
			Policy:            retry.Policy{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.Retry.Delay},
			TimeInForce:       parseTimeInForce(cfg.Order.TimeInForce),
			ConfirmProtective: cfg.Order.ConfirmProtective,
			MaxQty:            cfg.Risk.MaxQty,
			MaxNotional:       cfg.Risk.MaxNotional,
			Cooldown:          cfg.Risk.Cooldown,
			KillSwitch:        cfg.Risk.KillSwitch,
		},
	}
}

func parseTimeInForce(value string) broker.TimeInForce {
	if value == "day" {
		return broker.Day
	}
	return broker.GTC
}

func shutdown(name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		slog.Error("shutdown failed", "component", name, "error", err)
	}
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return timestamp
	}
	return timestamp + "-" + hex.EncodeToString(randomBytes)
}
