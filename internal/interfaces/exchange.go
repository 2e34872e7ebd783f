package interfaces

import (
	"context"
	"errors"
	"time"

	"llm-perps-trader/internal/types"
)

// ErrStaleTrigger marks an order rejection caused by a trigger price the
// market has already crossed. The submitter may refresh the live price and
// retry once; any other error is terminal for the attempt.
var ErrStaleTrigger = errors.New("trigger price is stale")

type Exchange interface {
	RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error)
	FundingRate(ctx context.Context, symbol string) (float64, error)
	Liquidations(ctx context.Context, symbol string, lookback time.Duration) ([]types.Liquidation, error)
	LivePrice(ctx context.Context, symbol string) (float64, error)
	AvailableBalance(ctx context.Context) (float64, error)
	TradingRules(ctx context.Context, symbol string) (types.TradingRules, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	PlaceBracket(ctx context.Context, ord types.BracketOrder) (types.OrderResult, error)
	Start(ctx context.Context, symbols []string) error
	Stop(ctx context.Context)
}
