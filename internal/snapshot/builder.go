package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"llm-perps-trader/internal/indicator"
	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/logger"
	"llm-perps-trader/internal/settings"
	"llm-perps-trader/internal/types"
)

// ErrInsufficientHistory signals that too few candle rows survived indicator
// warm-up to make any judgment.
var ErrInsufficientHistory = errors.New("insufficient historical data")

// minRows is the minimum candle rows the decision pipeline needs after
// indicator warm-up.
const minRows = 20

// imbalanceDepth is how many book levels on each side feed the
// bid/ask imbalance ratios.
const imbalanceDepth = 15

// liquidationBand is the price band, as a fraction of the latest close,
// inside which a liquidation counts as nearby.
const liquidationBand = 0.02

// Options tune how much market context a snapshot carries.
type Options struct {
	CandleLimit         int
	BookDepth           int
	LiquidationLookback time.Duration
}

// Builder assembles one immutable market snapshot per signal cycle. Soft
// inputs (funding, liquidations, live price) degrade to defaults on failure;
// candles, order book and balance are required.
type Builder struct {
	exchange interfaces.Exchange
	opts     Options
}

func NewBuilder(exchange interfaces.Exchange, opts Options) *Builder {
	if opts.CandleLimit == 0 {
		opts.CandleLimit = 80
	}
	if opts.BookDepth == 0 {
		opts.BookDepth = 20
	}
	if opts.LiquidationLookback == 0 {
		opts.LiquidationLookback = 24 * time.Hour
	}
	return &Builder{exchange: exchange, opts: opts}
}

// Build fetches market data and computes the decision inputs for one cycle.
func (b *Builder) Build(ctx context.Context, sett settings.SignalSettings) (*types.Snapshot, error) {
	timer := logger.StartOperation(ctx, "snapshot.build", "symbol", sett.Asset, "interval", sett.Interval)
	snap, err := b.build(timer.GetContext(), sett)
	if err != nil {
		timer.EndWithError(err)
		return nil, err
	}
	timer.End("rows", snap.Rows)
	return snap, nil
}

func (b *Builder) build(ctx context.Context, sett settings.SignalSettings) (*types.Snapshot, error) {
	candles, err := b.exchange.RecentCandles(ctx, sett.Asset, sett.Interval, b.opts.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching candles for %s: %w", sett.Asset, err)
	}

	fs, err := indicator.FeaturesFor(sett.Interval, sett.Strategy)
	if err != nil {
		return nil, err
	}
	series := indicator.FromCandles(candles)
	if err := indicator.Apply(ctx, series, fs); err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			return nil, ErrInsufficientHistory
		}
		return nil, err
	}
	if series.Len() < minRows {
		return nil, ErrInsufficientHistory
	}

	snap := &types.Snapshot{
		Symbol:   sett.Asset,
		Interval: sett.Interval,
		Risk: types.RiskParams{
			Leverage:      sett.Leverage,
			RiskLevelPct:  sett.RiskLevelPct,
			MinTPPct:      sett.MinTPPct,
			MinSLPct:      sett.MinSLPct,
			BookThreshold: sett.BookThreshold,
		},
		Rows: series.Len(),
	}

	latestClose, ok := series.Last("close")
	if !ok {
		return nil, ErrInsufficientHistory
	}
	snap.LatestClose = latestClose

	copy(snap.Last3Lows[:], series.Tail("low", 3))
	copy(snap.Last3Highs[:], series.Tail("high", 3))
	snap.RSI, snap.HasRSI = series.Last("rsi_14")
	snap.HistoryCSV = trimCSV(series.CSV())

	// Live price degrades to the candle close when the ticker is unreachable.
	live, err := b.exchange.LivePrice(ctx, sett.Asset)
	if err != nil || live <= 0 {
		logger.Warn(ctx, "Falling back to candle close price", "symbol", sett.Asset, "error", err)
		live = latestClose
	}
	snap.LivePrice = live
	snap.PriceDeltaPct = (live/latestClose - 1) * 100

	book, err := b.exchange.OrderBook(ctx, sett.Asset, b.opts.BookDepth)
	if err != nil {
		return nil, fmt.Errorf("fetching order book for %s: %w", sett.Asset, err)
	}
	snap.Book = book
	snap.BidVolume = sumQty(book.Bids, imbalanceDepth)
	snap.AskVolume = sumQty(book.Asks, imbalanceDepth)
	if snap.AskVolume > 0 {
		snap.BidImbalance = snap.BidVolume / snap.AskVolume
	}
	if snap.BidVolume > 0 {
		snap.AskImbalance = snap.AskVolume / snap.BidVolume
	}

	balance, err := b.exchange.AvailableBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching available balance: %w", err)
	}
	snap.Balance = balance

	if funding, err := b.exchange.FundingRate(ctx, sett.Asset); err != nil {
		logger.Warn(ctx, "Funding rate unavailable, defaulting to 0", "symbol", sett.Asset, "error", err)
	} else {
		snap.FundingRate = funding
	}

	if liqs, err := b.exchange.Liquidations(ctx, sett.Asset, b.opts.LiquidationLookback); err != nil {
		logger.Warn(ctx, "Liquidations unavailable, defaulting to 0", "symbol", sett.Asset, "error", err)
	} else {
		snap.NearbyLiquidations = countNearby(liqs, latestClose)
	}

	return snap, nil
}

func sumQty(levels []types.BookLevel, depth int) float64 {
	if len(levels) < depth {
		depth = len(levels)
	}
	var total float64
	for _, lvl := range levels[:depth] {
		total += lvl.Qty
	}
	return total
}

// countNearby counts liquidations whose price sits within the band around
// the current price.
func countNearby(liqs []types.Liquidation, price float64) int {
	band := price * liquidationBand
	count := 0
	for _, liq := range liqs {
		d := liq.Price - price
		if d < 0 {
			d = -d
		}
		if d <= band {
			count++
		}
	}
	return count
}

// trimCSV keeps the head and tail of a large frame so prompts stay small.
func trimCSV(csv string) string {
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if len(lines) <= 30 {
		return csv
	}
	trimmed := make([]string, 0, 31)
	trimmed = append(trimmed, lines[:20]...)
	trimmed = append(trimmed, "... (middle truncated) ...")
	trimmed = append(trimmed, lines[len(lines)-10:]...)
	return strings.Join(trimmed, "\n") + "\n"
}
