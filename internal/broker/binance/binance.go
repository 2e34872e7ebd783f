package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/logger"
	"llm-perps-trader/internal/ratelimit"
	"llm-perps-trader/internal/types"
)

// quoteAsset is the margin asset of every USD-M perpetual this bot trades.
const quoteAsset = "USDT"

// staleTriggerCode is Binance's rejection for a stop order whose trigger the
// mark price has already crossed.
const staleTriggerCode = -2021

// Client implements the Exchange interface against Binance USD-M futures.
// Every REST call passes through the shared rate-limit gate and runs under a
// per-call timeout. Liquidations come from the websocket force-order stream,
// recorded in memory while the client is started.
type Client struct {
	futures *futures.Client
	gate    *ratelimit.Gate
	timeout time.Duration
	liqs    *liquidationRecorder
	stops   []chan struct{}
}

var _ interfaces.Exchange = (*Client)(nil)

func New(apiKey, apiSecret string, testnet bool, gate *ratelimit.Gate, timeout time.Duration) *Client {
	fc := futures.NewClient(apiKey, apiSecret)
	if testnet {
		futures.UseTestnet = true
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		futures: fc,
		gate:    gate,
		timeout: timeout,
		liqs:    newLiquidationRecorder(),
	}
}

// call applies the rate limit and the per-call timeout around one REST call.
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.gate.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(ctx)
}

func (c *Client) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	var klines []*futures.Kline
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		klines, err = c.futures.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	candles := make([]types.Candle, 0, len(klines))
	for _, k := range klines {
		candle := types.Candle{Ts: k.OpenTime}
		if candle.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
			return nil, fmt.Errorf("parsing kline open %q: %w", k.Open, err)
		}
		if candle.High, err = strconv.ParseFloat(k.High, 64); err != nil {
			return nil, fmt.Errorf("parsing kline high %q: %w", k.High, err)
		}
		if candle.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
			return nil, fmt.Errorf("parsing kline low %q: %w", k.Low, err)
		}
		if candle.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
			return nil, fmt.Errorf("parsing kline close %q: %w", k.Close, err)
		}
		if candle.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
			return nil, fmt.Errorf("parsing kline volume %q: %w", k.Volume, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func (c *Client) OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error) {
	var res *futures.DepthResponse
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.futures.NewDepthService().
			Symbol(symbol).
			Limit(depth).
			Do(ctx)
		return err
	})
	if err != nil {
		return types.OrderBook{}, fmt.Errorf("depth %s: %w", symbol, err)
	}

	book := types.OrderBook{
		Bids: make([]types.BookLevel, 0, len(res.Bids)),
		Asks: make([]types.BookLevel, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		lvl, err := parseLevel(b.Price, b.Quantity)
		if err != nil {
			return types.OrderBook{}, err
		}
		book.Bids = append(book.Bids, lvl)
	}
	for _, a := range res.Asks {
		lvl, err := parseLevel(a.Price, a.Quantity)
		if err != nil {
			return types.OrderBook{}, err
		}
		book.Asks = append(book.Asks, lvl)
	}
	return book, nil
}

func parseLevel(price, qty string) (types.BookLevel, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return types.BookLevel{}, fmt.Errorf("parsing book price %q: %w", price, err)
	}
	q, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		return types.BookLevel{}, fmt.Errorf("parsing book quantity %q: %w", qty, err)
	}
	return types.BookLevel{Price: p, Qty: q}, nil
}

func (c *Client) FundingRate(ctx context.Context, symbol string) (float64, error) {
	var rates []*futures.PremiumIndex
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		rates, err = c.futures.NewPremiumIndexService().
			Symbol(symbol).
			Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("premium index %s: %w", symbol, err)
	}
	if len(rates) == 0 {
		return 0, fmt.Errorf("no premium index data for %s", symbol)
	}
	rate, err := strconv.ParseFloat(rates[0].LastFundingRate, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing funding rate %q: %w", rates[0].LastFundingRate, err)
	}
	return rate, nil
}

func (c *Client) LivePrice(ctx context.Context, symbol string) (float64, error) {
	var prices []*futures.SymbolPrice
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		prices, err = c.futures.NewListPricesService().
			Symbol(symbol).
			Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("ticker price %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no ticker price for %s", symbol)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing ticker price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

func (c *Client) AvailableBalance(ctx context.Context) (float64, error) {
	var balances []*futures.Balance
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		balances, err = c.futures.NewGetBalanceService().Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("futures balance: %w", err)
	}
	for _, b := range balances {
		if b.Asset != quoteAsset {
			continue
		}
		avail, err := strconv.ParseFloat(b.AvailableBalance, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing balance %q: %w", b.AvailableBalance, err)
		}
		return avail, nil
	}
	return 0, fmt.Errorf("no %s balance found", quoteAsset)
}

func (c *Client) TradingRules(ctx context.Context, symbol string) (types.TradingRules, error) {
	var info *futures.ExchangeInfo
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		info, err = c.futures.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return types.TradingRules{}, fmt.Errorf("exchange info: %w", err)
	}

	rules := types.TradingRules{Symbol: symbol}
	found := false
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != symbol {
			continue
		}
		found = true
		if f := s.PriceFilter(); f != nil {
			if rules.PriceTick, err = strconv.ParseFloat(f.TickSize, 64); err != nil {
				return types.TradingRules{}, fmt.Errorf("parsing tick size %q: %w", f.TickSize, err)
			}
		}
		if f := s.LotSizeFilter(); f != nil {
			if rules.QtyStep, err = strconv.ParseFloat(f.StepSize, 64); err != nil {
				return types.TradingRules{}, fmt.Errorf("parsing step size %q: %w", f.StepSize, err)
			}
			if rules.MinQty, err = strconv.ParseFloat(f.MinQuantity, 64); err != nil {
				return types.TradingRules{}, fmt.Errorf("parsing min qty %q: %w", f.MinQuantity, err)
			}
			if rules.MaxQty, err = strconv.ParseFloat(f.MaxQuantity, 64); err != nil {
				return types.TradingRules{}, fmt.Errorf("parsing max qty %q: %w", f.MaxQuantity, err)
			}
		}
		if f := s.MinNotionalFilter(); f != nil {
			if rules.MinNotional, err = strconv.ParseFloat(f.Notional, 64); err != nil {
				return types.TradingRules{}, fmt.Errorf("parsing min notional %q: %w", f.Notional, err)
			}
		}
		break
	}
	if !found {
		return types.TradingRules{}, fmt.Errorf("symbol %s not in exchange info", symbol)
	}

	// Leverage brackets give the initial margin rate and the notional cap.
	var brackets []*futures.LeverageBracket
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		brackets, err = c.futures.NewGetLeverageBracketService().
			Symbol(symbol).
			Do(ctx)
		return err
	})
	if err != nil {
		return types.TradingRules{}, fmt.Errorf("leverage brackets %s: %w", symbol, err)
	}
	if len(brackets) > 0 && len(brackets[0].Brackets) > 0 {
		first := brackets[0].Brackets[0]
		if first.InitialLeverage > 0 {
			rules.InitialMarginRate = 1 / float64(first.InitialLeverage)
		}
		rules.QuoteMax = first.NotionalCap
	}

	return rules, nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	err := c.call(ctx, func(ctx context.Context) error {
		_, err := c.futures.NewChangeLeverageService().
			Symbol(symbol).
			Leverage(leverage).
			Do(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("changing leverage for %s: %w", symbol, err)
	}
	return nil
}

// PlaceBracket submits a market entry and then reduce-only TP and SL
// triggers off the mark price. A stale trigger on either leg maps to
// ErrStaleTrigger so the caller can refresh and retry; if a leg fails after
// the entry filled, the error is returned with the position unprotected and
// a risk event logged.
func (c *Client) PlaceBracket(ctx context.Context, ord types.BracketOrder) (types.OrderResult, error) {
	side := futures.SideTypeBuy
	exitSide := futures.SideTypeSell
	if ord.Side == types.SideSell {
		side = futures.SideTypeSell
		exitSide = futures.SideTypeBuy
	}
	qty := strconv.FormatFloat(ord.Quantity, 'f', -1, 64)

	var entry *futures.CreateOrderResponse
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		entry, err = c.futures.NewCreateOrderService().
			Symbol(ord.Symbol).
			Side(side).
			Type(futures.OrderTypeMarket).
			Quantity(qty).
			Do(ctx)
		return err
	})
	if err != nil {
		return types.OrderResult{}, mapOrderError(fmt.Errorf("entry order %s: %w", ord.Symbol, err))
	}

	result := types.OrderResult{EntryOrderID: entry.OrderID}

	var tp *futures.CreateOrderResponse
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		tp, err = c.futures.NewCreateOrderService().
			Symbol(ord.Symbol).
			Side(exitSide).
			Type(futures.OrderTypeTakeProfitMarket).
			StopPrice(strconv.FormatFloat(ord.TPTrigger, 'f', -1, 64)).
			ClosePosition(true).
			WorkingType(futures.WorkingTypeMarkPrice).
			Do(ctx)
		return err
	})
	if err != nil {
		logger.Risk(ctx, ord.Symbol, "unprotected_position",
			"entry_order_id", entry.OrderID, "leg", "take_profit")
		return result, mapOrderError(fmt.Errorf("take profit order %s: %w", ord.Symbol, err))
	}
	result.TPOrderID = tp.OrderID

	var sl *futures.CreateOrderResponse
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		sl, err = c.futures.NewCreateOrderService().
			Symbol(ord.Symbol).
			Side(exitSide).
			Type(futures.OrderTypeStopMarket).
			StopPrice(strconv.FormatFloat(ord.SLTrigger, 'f', -1, 64)).
			ClosePosition(true).
			WorkingType(futures.WorkingTypeMarkPrice).
			Do(ctx)
		return err
	})
	if err != nil {
		logger.Risk(ctx, ord.Symbol, "unprotected_position",
			"entry_order_id", entry.OrderID, "leg", "stop_loss")
		return result, mapOrderError(fmt.Errorf("stop loss order %s: %w", ord.Symbol, err))
	}
	result.SLOrderID = sl.OrderID

	return result, nil
}

// mapOrderError translates Binance's stale-trigger rejection into the
// sentinel the submitter retries on.
func mapOrderError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == staleTriggerCode ||
			strings.Contains(strings.ToLower(apiErr.Message), "would immediately trigger") {
			return fmt.Errorf("%w: %v", interfaces.ErrStaleTrigger, err)
		}
	}
	return err
}

// Start opens the force-order websocket streams feeding the liquidation
// recorder, one per symbol.
func (c *Client) Start(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		stop, err := c.watchLiquidations(symbol)
		if err != nil {
			return fmt.Errorf("starting liquidation stream for %s: %w", symbol, err)
		}
		c.stops = append(c.stops, stop)
		logger.Info(ctx, "Liquidation stream started", "symbol", symbol)
	}
	return nil
}

// Stop closes every open websocket stream.
func (c *Client) Stop(ctx context.Context) {
	for _, stop := range c.stops {
		close(stop)
	}
	c.stops = nil
	logger.Info(ctx, "Exchange client stopped")
}

func (c *Client) watchLiquidations(symbol string) (chan struct{}, error) {
	handler := func(event *futures.WsLiquidationOrderEvent) {
		o := event.LiquidationOrder
		price, err := strconv.ParseFloat(o.Price, 64)
		if err != nil {
			return
		}
		qty, _ := strconv.ParseFloat(o.OrigQuantity, 64)
		c.liqs.record(types.Liquidation{
			Symbol: o.Symbol,
			Price:  price,
			Qty:    qty,
			Side:   types.Side(o.Side),
			Ts:     o.TradeTime,
		})
	}
	errHandler := func(err error) {
		logger.ErrorWithErr(context.Background(), "Liquidation stream error", err, "symbol", symbol)
	}

	_, stopC, err := futures.WsLiquidationOrderServe(symbol, handler, errHandler)
	if err != nil {
		return nil, err
	}
	return stopC, nil
}

// Liquidations returns the recorded forced liquidations for a symbol within
// the lookback window. The recorder only holds events observed since Start,
// so early cycles see a short window.
func (c *Client) Liquidations(ctx context.Context, symbol string, lookback time.Duration) ([]types.Liquidation, error) {
	return c.liqs.since(symbol, time.Now().Add(-lookback)), nil
}
