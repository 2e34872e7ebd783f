package snapshot

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"llm-perps-trader/internal/settings"
	"llm-perps-trader/internal/types"
)

type fakeExchange struct {
	candles    []types.Candle
	candleErr  error
	book       types.OrderBook
	bookErr    error
	funding    float64
	fundingErr error
	liqs       []types.Liquidation
	liqErr     error
	live       float64
	liveErr    error
	balance    float64
	balanceErr error
}

func (f *fakeExchange) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	return f.candles, f.candleErr
}

func (f *fakeExchange) OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error) {
	return f.book, f.bookErr
}

func (f *fakeExchange) FundingRate(ctx context.Context, symbol string) (float64, error) {
	return f.funding, f.fundingErr
}

func (f *fakeExchange) Liquidations(ctx context.Context, symbol string, lookback time.Duration) ([]types.Liquidation, error) {
	return f.liqs, f.liqErr
}

func (f *fakeExchange) LivePrice(ctx context.Context, symbol string) (float64, error) {
	return f.live, f.liveErr
}

func (f *fakeExchange) AvailableBalance(ctx context.Context) (float64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeExchange) TradingRules(ctx context.Context, symbol string) (types.TradingRules, error) {
	return types.TradingRules{}, nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func (f *fakeExchange) PlaceBracket(ctx context.Context, ord types.BracketOrder) (types.OrderResult, error) {
	return types.OrderResult{}, nil
}

func (f *fakeExchange) Start(ctx context.Context, symbols []string) error { return nil }

func (f *fakeExchange) Stop(ctx context.Context) {}

func testCandles(n int) []types.Candle {
	candles := make([]types.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		move := math.Sin(float64(i)/3) * 2
		open := price
		price = price + move
		candles[i] = types.Candle{
			Ts:     int64(i) * 60_000,
			Open:   open,
			High:   math.Max(open, price) + 0.5,
			Low:    math.Min(open, price) - 0.5,
			Close:  price,
			Volume: 10 + float64(i%7),
		}
	}
	return candles
}

func testSettings() settings.SignalSettings {
	return settings.SignalSettings{
		Asset:         "BTCUSDT",
		Interval:      "5m",
		Strategy:      "Trend-Following",
		MinTPPct:      0.01,
		MinSLPct:      0.005,
		Leverage:      5,
		RiskLevelPct:  0.3,
		BookThreshold: 1.6,
	}
}

func balancedBook() types.OrderBook {
	book := types.OrderBook{}
	for i := 0; i < 20; i++ {
		book.Bids = append(book.Bids, types.BookLevel{Price: 100 - float64(i), Qty: 4})
		book.Asks = append(book.Asks, types.BookLevel{Price: 101 + float64(i), Qty: 2})
	}
	return book
}

func TestBuildFullSnapshot(t *testing.T) {
	ex := &fakeExchange{
		candles: testCandles(80),
		book:    balancedBook(),
		funding: 0.0001,
		balance: 1000,
		live:    0, // forces fallback to candle close
	}
	ex.liqs = []types.Liquidation{
		{Symbol: "BTCUSDT", Price: 0, Qty: 1},
	}

	b := NewBuilder(ex, Options{})
	snap, err := b.Build(context.Background(), testSettings())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if snap.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %s", snap.Symbol)
	}
	if snap.LivePrice != snap.LatestClose {
		t.Errorf("expected live price fallback to close, got %f vs %f", snap.LivePrice, snap.LatestClose)
	}
	if snap.PriceDeltaPct != 0 {
		t.Errorf("delta should be 0 on fallback, got %f", snap.PriceDeltaPct)
	}
	// 15 levels of 4 vs 15 levels of 2.
	if snap.BidImbalance != 2 {
		t.Errorf("bid imbalance = %f, want 2", snap.BidImbalance)
	}
	if snap.AskImbalance != 0.5 {
		t.Errorf("ask imbalance = %f, want 0.5", snap.AskImbalance)
	}
	if !snap.HasRSI {
		t.Error("rsi_14 should be present")
	}
	if snap.Balance != 1000 {
		t.Errorf("balance = %f", snap.Balance)
	}
	if snap.FundingRate != 0.0001 {
		t.Errorf("funding = %f", snap.FundingRate)
	}
	// Liquidation at price 0 is far outside the 2% band.
	if snap.NearbyLiquidations != 0 {
		t.Errorf("nearby liquidations = %d, want 0", snap.NearbyLiquidations)
	}
	if snap.Rows < minRows {
		t.Errorf("rows = %d, want at least %d", snap.Rows, minRows)
	}
}

func TestBuildNearbyLiquidationsCounted(t *testing.T) {
	ex := &fakeExchange{
		candles: testCandles(80),
		book:    balancedBook(),
		balance: 1000,
	}
	b := NewBuilder(ex, Options{})

	// Run once to learn the latest close, then place liquidations around it.
	snap, err := b.Build(context.Background(), testSettings())
	if err != nil {
		t.Fatal(err)
	}
	close := snap.LatestClose
	ex.liqs = []types.Liquidation{
		{Price: close * 1.01},  // inside the band
		{Price: close * 0.995}, // inside
		{Price: close * 1.05},  // outside
	}

	snap, err = b.Build(context.Background(), testSettings())
	if err != nil {
		t.Fatal(err)
	}
	if snap.NearbyLiquidations != 2 {
		t.Errorf("nearby liquidations = %d, want 2", snap.NearbyLiquidations)
	}
}

func TestBuildZeroAskVolume(t *testing.T) {
	ex := &fakeExchange{
		candles: testCandles(80),
		balance: 1000,
	}
	for i := 0; i < 20; i++ {
		ex.book.Bids = append(ex.book.Bids, types.BookLevel{Price: 100, Qty: 3})
	}

	b := NewBuilder(ex, Options{})
	snap, err := b.Build(context.Background(), testSettings())
	if err != nil {
		t.Fatal(err)
	}
	if snap.BidImbalance != 0 {
		t.Errorf("bid imbalance with empty asks should be 0, got %f", snap.BidImbalance)
	}
}

func TestBuildInsufficientHistory(t *testing.T) {
	ex := &fakeExchange{
		candles: testCandles(10),
		book:    balancedBook(),
		balance: 1000,
	}
	b := NewBuilder(ex, Options{})
	_, err := b.Build(context.Background(), testSettings())
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestBuildCandleFetchError(t *testing.T) {
	ex := &fakeExchange{candleErr: errors.New("boom")}
	b := NewBuilder(ex, Options{})
	if _, err := b.Build(context.Background(), testSettings()); err == nil {
		t.Error("expected error when candle fetch fails")
	}
}

func TestBuildSoftFailuresDegrade(t *testing.T) {
	ex := &fakeExchange{
		candles:    testCandles(80),
		book:       balancedBook(),
		balance:    500,
		fundingErr: errors.New("funding down"),
		liqErr:     errors.New("stream down"),
		liveErr:    errors.New("ticker down"),
	}
	b := NewBuilder(ex, Options{})
	snap, err := b.Build(context.Background(), testSettings())
	if err != nil {
		t.Fatalf("soft failures should not abort the build: %v", err)
	}
	if snap.FundingRate != 0 || snap.NearbyLiquidations != 0 {
		t.Error("funding and liquidations should default to 0")
	}
	if snap.LivePrice != snap.LatestClose {
		t.Error("live price should fall back to candle close")
	}
}

func TestTrimCSVKeepsHeadAndTail(t *testing.T) {
	var b strings.Builder
	b.WriteString("header\n")
	for i := 0; i < 80; i++ {
		b.WriteString("row\n")
	}
	out := trimCSV(b.String())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 31 {
		t.Fatalf("trimmed frame should have 31 lines, got %d", len(lines))
	}
	if lines[0] != "header" {
		t.Errorf("header lost: %s", lines[0])
	}
	if lines[20] != "... (middle truncated) ..." {
		t.Errorf("truncation marker missing: %s", lines[20])
	}
}
