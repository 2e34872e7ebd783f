package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"llm-perps-trader/internal/broker/binance"
	"llm-perps-trader/internal/broker/brokerobs"
	"llm-perps-trader/internal/engine"
	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/llm/deepseek"
	"llm-perps-trader/internal/llm/llmobs"
	"llm-perps-trader/internal/llm/noop"
	"llm-perps-trader/internal/logger"
	"llm-perps-trader/internal/notify"
	"llm-perps-trader/internal/order"
	"llm-perps-trader/internal/ratelimit"
	"llm-perps-trader/internal/settings"
	"llm-perps-trader/internal/snapshot"
	"llm-perps-trader/internal/store"
	"llm-perps-trader/internal/trace"
	"llm-perps-trader/internal/tradelog"
)

// initializeSystem initializes env, logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// settingsProvider builds the runtime settings chain: environment variables
// with the TRADER_ prefix shadow the config file defaults.
func settingsProvider(cfg *store.Config) settings.Provider {
	return settings.Chain{
		settings.EnvProvider{Prefix: "TRADER_"},
		settings.MapProvider(cfg.Settings),
	}
}

// initializeExchange initializes the Binance futures client with rate
// limiting and observability. DRY_RUN still needs the client for market data;
// only order placement is gated off.
func initializeExchange(ctx context.Context, cfg *store.Config) interfaces.Exchange {
	gate := ratelimit.New(cfg.Exchange.RateLimitPerSec)
	timeout := time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second
	client := binance.New(
		os.Getenv("BINANCE_API_KEY"),
		os.Getenv("BINANCE_API_SECRET"),
		cfg.Exchange.Testnet,
		gate,
		timeout,
	)

	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will not be placed")
	}
	if cfg.Exchange.Testnet {
		logger.Info(ctx, "Using Binance futures testnet")
	}

	return brokerobs.Wrap(client)
}

// initializeJudge initializes the judgment source with observability.
func initializeJudge(ctx context.Context, cfg *store.Config) interfaces.Judge {
	var judge interfaces.Judge

	switch cfg.LLM.Provider {
	case "DEEPSEEK":
		judge = deepseek.NewJudge(cfg)
	default:
		judge = noop.NewJudge()
		logger.Warn(ctx, "No LLM provider configured - using noop judge (always rejects)")
	}

	return llmobs.Wrap(judge)
}

// initializeNotifier returns the Telegram notifier when configured,
// otherwise reports go to the log stream.
func initializeNotifier(ctx context.Context, cfg *store.Config) interfaces.Notifier {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if !cfg.Telegram.Enabled || token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info(ctx, "Telegram not configured - reports go to stdout")
		return notify.NewStdout()
	}

	tg, err := notify.NewTelegram(token, cfg.Telegram.ChatID)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize Telegram, falling back to stdout", err)
		return notify.NewStdout()
	}
	logger.Info(ctx, "Telegram notifications enabled", "chat_id", cfg.Telegram.ChatID)
	return tg
}

// initializeEngine wires the snapshot builder, submitter and notifier into
// the signal engine.
func initializeEngine(cfg *store.Config, provider settings.Provider,
	exchange interfaces.Exchange, judge interfaces.Judge, notifier interfaces.Notifier) interfaces.Engine {

	builder := snapshot.NewBuilder(exchange, snapshot.Options{
		CandleLimit:         cfg.Market.CandleLimit,
		BookDepth:           cfg.Market.BookDepth,
		LiquidationLookback: time.Duration(cfg.Market.LiquidationHours) * time.Hour,
	})
	submitter := order.NewSubmitter(exchange, cfg.Risk.PerTradeRiskPct)

	return engine.New(cfg, provider, builder, judge, submitter, notifier)
}

// watchedSymbols collects every asset the bot may trade, for the liquidation
// stream subscriptions.
func watchedSymbols(provider settings.Provider) []string {
	seen := map[string]bool{}
	var symbols []string
	add := func(s string) {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}

	if asset, ok := provider.Get("asset"); ok {
		add(asset)
	}
	if raw, ok := provider.Get("automated_assets"); ok {
		for _, a := range strings.Split(raw, ",") {
			add(a)
		}
	}
	return symbols
}

// cycleSymbols decides which assets the next tick runs against. In automatic
// mode every automated asset gets its own cycle; otherwise one cycle runs for
// the configured asset (empty string defers to the settings store).
func cycleSymbols(provider settings.Provider) []string {
	mode, _ := provider.Get("auto_trade")
	if strings.EqualFold(strings.TrimSpace(mode), settings.AutoTradeAutomatic) {
		if raw, ok := provider.Get("automated_assets"); ok {
			var symbols []string
			for _, a := range strings.Split(raw, ",") {
				if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
					symbols = append(symbols, a)
				}
			}
			if len(symbols) > 0 {
				return symbols
			}
		}
	}
	return []string{""}
}
