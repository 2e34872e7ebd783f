package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/logger"
	"llm-perps-trader/internal/settings"
	"llm-perps-trader/internal/store"
	"llm-perps-trader/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		os.Exit(1)
	}

	compressOldLogs(ctx)

	provider := settingsProvider(cfg)
	exchange := initializeExchange(ctx, cfg)
	judge := initializeJudge(ctx, cfg)
	notifier := initializeNotifier(ctx, cfg)
	eng := initializeEngine(cfg, provider, exchange, judge, notifier)

	if err := exchange.Start(ctx, watchedSymbols(provider)); err != nil {
		logger.ErrorWithErr(ctx, "Failed to start exchange client", err)
		os.Exit(1)
	}
	defer exchange.Stop(context.Background())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()

	pause := time.Duration(cfg.Market.AssetPauseSeconds) * time.Second
	logger.Info(ctx, "Bot started",
		"mode", cfg.Mode, "poll_seconds", cfg.PollSeconds, "judge", judge.Name())

	for {
		select {
		case <-tick.C:
			runTick(ctx, eng, provider, pause)
		case <-sigc:
			logger.Info(ctx, "Shutting down...")
			if err := trace.Shutdown(context.Background()); err != nil {
				logger.Warn(ctx, "Tracer shutdown failed", "error", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// runTick runs one signal cycle per active symbol, pausing between symbols
// so automatic mode does not burn through the API budget.
func runTick(ctx context.Context, eng interfaces.Engine, provider settings.Provider, pause time.Duration) {
	symbols := cycleSymbols(provider)
	for i, sym := range symbols {
		if i > 0 && pause > 0 {
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return
			}
		}
		if _, err := eng.Cycle(ctx, sym); err != nil {
			logger.ErrorWithErr(ctx, "Cycle failed", err, "symbol", sym)
		}
	}
}
