package brokerobs

import (
	"context"
	"time"

	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/logger"
	"llm-perps-trader/internal/trace"
	"llm-perps-trader/internal/types"
)

// observableExchange wraps an Exchange with logging and tracing.
type observableExchange struct {
	exchange interfaces.Exchange
}

// Compile-time interface check
var _ interfaces.Exchange = (*observableExchange)(nil)

// Wrap wraps an exchange with observability middleware
func Wrap(exchange interfaces.Exchange) interfaces.Exchange {
	return &observableExchange{exchange: exchange}
}

func (oe *observableExchange) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.RecentCandles")
	defer span.End()

	candles, err := oe.exchange.RecentCandles(ctx, symbol, interval, limit)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err,
			"symbol", symbol, "interval", interval)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Candles fetched",
		"symbol", symbol, "interval", interval, "count", len(candles))
	return candles, nil
}

func (oe *observableExchange) OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.OrderBook")
	defer span.End()

	book, err := oe.exchange.OrderBook(ctx, symbol, depth)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch order book", err, "symbol", symbol)
		return types.OrderBook{}, err
	}
	logger.DebugSkip(ctx, 1, "Order book fetched",
		"symbol", symbol, "bids", len(book.Bids), "asks", len(book.Asks))
	return book, nil
}

func (oe *observableExchange) FundingRate(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.FundingRate")
	defer span.End()

	rate, err := oe.exchange.FundingRate(ctx, symbol)
	if err != nil {
		// Funding is soft input; the caller degrades, so log at debug.
		logger.DebugSkip(ctx, 1, "Failed to fetch funding rate", "symbol", symbol, "error", err)
		return 0, err
	}
	logger.DebugSkip(ctx, 1, "Funding rate fetched", "symbol", symbol, "rate", rate)
	return rate, nil
}

func (oe *observableExchange) Liquidations(ctx context.Context, symbol string, lookback time.Duration) ([]types.Liquidation, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.Liquidations")
	defer span.End()

	liqs, err := oe.exchange.Liquidations(ctx, symbol, lookback)
	if err != nil {
		logger.DebugSkip(ctx, 1, "Failed to fetch liquidations", "symbol", symbol, "error", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Liquidations fetched", "symbol", symbol, "count", len(liqs))
	return liqs, nil
}

func (oe *observableExchange) LivePrice(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.LivePrice")
	defer span.End()

	price, err := oe.exchange.LivePrice(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch live price", err, "symbol", symbol)
		return 0, err
	}
	logger.DebugSkip(ctx, 1, "Live price fetched", "symbol", symbol, "price", price)
	return price, nil
}

func (oe *observableExchange) AvailableBalance(ctx context.Context) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.AvailableBalance")
	defer span.End()

	balance, err := oe.exchange.AvailableBalance(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch balance", err)
		return 0, err
	}
	logger.DebugSkip(ctx, 1, "Balance fetched", "available", balance)
	return balance, nil
}

func (oe *observableExchange) TradingRules(ctx context.Context, symbol string) (types.TradingRules, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.TradingRules")
	defer span.End()

	rules, err := oe.exchange.TradingRules(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch trading rules", err, "symbol", symbol)
		return types.TradingRules{}, err
	}
	logger.DebugSkip(ctx, 1, "Trading rules fetched",
		"symbol", symbol,
		"price_tick", rules.PriceTick,
		"qty_step", rules.QtyStep,
		"min_notional", rules.MinNotional)
	return rules, nil
}

func (oe *observableExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	ctx, span := trace.StartSpan(ctx, "exchange.SetLeverage")
	defer span.End()

	if err := oe.exchange.SetLeverage(ctx, symbol, leverage); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to set leverage", err,
			"symbol", symbol, "leverage", leverage)
		return err
	}
	logger.InfoSkip(ctx, 1, "Leverage set", "symbol", symbol, "leverage", leverage)
	return nil
}

func (oe *observableExchange) PlaceBracket(ctx context.Context, ord types.BracketOrder) (types.OrderResult, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.PlaceBracket")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing bracket order",
		"symbol", ord.Symbol,
		"side", string(ord.Side),
		"quantity", ord.Quantity,
		"tp_trigger", ord.TPTrigger,
		"sl_trigger", ord.SLTrigger,
	)

	res, err := oe.exchange.PlaceBracket(ctx, ord)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place bracket order", err,
			"symbol", ord.Symbol, "side", string(ord.Side))
		return res, err
	}
	logger.InfoSkip(ctx, 1, "Bracket order placed",
		"symbol", ord.Symbol,
		"entry_order_id", res.EntryOrderID,
		"tp_order_id", res.TPOrderID,
		"sl_order_id", res.SLOrderID,
	)
	return res, nil
}

func (oe *observableExchange) Start(ctx context.Context, symbols []string) error {
	if err := oe.exchange.Start(ctx, symbols); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to start exchange client", err)
		return err
	}
	logger.InfoSkip(ctx, 1, "Exchange client started", "symbols", symbols)
	return nil
}

func (oe *observableExchange) Stop(ctx context.Context) {
	oe.exchange.Stop(ctx)
	logger.InfoSkip(ctx, 1, "Exchange client stopped")
}
