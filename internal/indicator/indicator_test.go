package indicator

import (
	"context"
	"math"
	"strings"
	"testing"

	"llm-perps-trader/internal/types"
)

func testCandles(n int) []types.Candle {
	candles := make([]types.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		// Deterministic wiggle so every indicator has real variance.
		move := math.Sin(float64(i)/3) * 2
		open := price
		price = price + move
		high := math.Max(open, price) + 0.5
		low := math.Min(open, price) - 0.5
		candles[i] = types.Candle{
			Ts:     int64(i) * 60_000,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: 10 + float64(i%7),
		}
	}
	return candles
}

func TestFeaturesForKnownStrategy(t *testing.T) {
	fs, err := FeaturesFor("5m", "Trend-Following")
	if err != nil {
		t.Fatalf("FeaturesFor returned error: %v", err)
	}
	if !fs.Force {
		t.Error("Trend-Following should force its features")
	}
	for _, want := range []string{"close", "ema_12", "ema_26", "macd", "adx", "vwap"} {
		found := false
		for _, f := range fs.Features {
			if f == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected feature %s in Trend-Following 5m set", want)
		}
	}
}

func TestFeaturesForUnknownStrategy(t *testing.T) {
	if _, err := FeaturesFor("5m", "Moon Phase"); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if _, err := FeaturesFor("2m", "Hybrid"); err == nil {
		t.Error("expected error for unknown interval")
	}
}

func TestRouterIsAdvisory(t *testing.T) {
	for _, interval := range Intervals() {
		fs, err := FeaturesFor(interval, "Router")
		if err != nil {
			t.Fatalf("Router missing for %s: %v", interval, err)
		}
		if fs.Force {
			t.Errorf("Router on %s should not force features", interval)
		}
	}
}

func TestEMASeededAtFirstClose(t *testing.T) {
	vals := []float64{10, 11, 12, 13}
	got := ema(vals, 3)
	if got[0] != 10 {
		t.Errorf("ema[0] = %f, want seed 10", got[0])
	}
	// alpha = 0.5 for span 3
	want := 0.5*11 + 0.5*10
	if math.Abs(got[1]-want) > 1e-9 {
		t.Errorf("ema[1] = %f, want %f", got[1], want)
	}
}

func TestRSIAllGainsReadsHundred(t *testing.T) {
	close := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	got := rsi(close, 14)
	for i, v := range got {
		if v != 100 {
			t.Errorf("rsi[%d] = %f, want 100 for monotonic gains", i, v)
		}
	}
}

func TestRSIBounded(t *testing.T) {
	candles := testCandles(60)
	close := make([]float64, len(candles))
	for i, c := range candles {
		close[i] = c.Close
	}
	for i, v := range rsi(close, 14) {
		if v < 0 || v > 100 {
			t.Errorf("rsi[%d] = %f out of [0,100]", i, v)
		}
	}
}

func TestRollingMeanWarmup(t *testing.T) {
	got := rollingMean([]float64{1, 2, 3, 4}, 3)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Error("rolling mean should be NaN before a full window")
	}
	if got[2] != 2 || got[3] != 3 {
		t.Errorf("rolling mean = %v, want [NaN NaN 2 3]", got)
	}
}

func TestRollingStdSample(t *testing.T) {
	got := rollingStd([]float64{2, 4, 6}, 3)
	if math.Abs(got[2]-2) > 1e-9 {
		t.Errorf("sample std of 2,4,6 = %f, want 2", got[2])
	}
}

func TestSanitizeDropsWarmupOnly(t *testing.T) {
	s := FromCandles(testCandles(10))
	col := make([]float64, 10)
	for i := range col {
		col[i] = float64(i)
	}
	col[0] = math.NaN()
	col[1] = math.NaN()
	col[5] = math.Inf(1)
	s.set("x", col)

	s.sanitize()

	if s.Len() != 8 {
		t.Fatalf("expected 8 rows after dropping 2 warm-up rows, got %d", s.Len())
	}
	x := s.Column("x")
	// The mid-series Inf forward-fills from the prior value.
	if x[3] != 4 {
		t.Errorf("expected Inf row forward-filled to 4, got %f", x[3])
	}
}

func TestApplyTrendFollowing(t *testing.T) {
	s := FromCandles(testCandles(80))
	fs, err := FeaturesFor("5m", "Trend-Following")
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(context.Background(), s, fs); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for _, f := range fs.Features {
		if !s.Has(f) {
			t.Errorf("forced feature %s missing after Apply", f)
		}
	}
	if !s.Has("rsi_14") {
		t.Error("rsi_14 should be appended even when the strategy omits it")
	}
	if s.Len() == 0 {
		t.Fatal("series should retain rows after sanitize")
	}
}

func TestApplyAdvancedComputesIchimoku(t *testing.T) {
	s := FromCandles(testCandles(120))
	fs, err := FeaturesFor("1h", "Advanced")
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(context.Background(), s, fs); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for _, f := range []string{"tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"} {
		if _, ok := s.Last(f); !ok {
			t.Errorf("latest %s should be finite", f)
		}
	}
}

func TestApplyInsufficientData(t *testing.T) {
	s := FromCandles(testCandles(5))
	fs, err := FeaturesFor("1h", "Advanced")
	if err != nil {
		t.Fatal(err)
	}
	// senkou_span_b needs 52+26 rows; 5 candles sanitize down to nothing.
	err = Apply(context.Background(), s, fs)
	if err == nil {
		t.Fatal("expected error for 5 candles against Ichimoku windows")
	}
	if err != ErrInsufficientData {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestVWAPCumulative(t *testing.T) {
	candles := []types.Candle{
		{Ts: 1, High: 11, Low: 9, Close: 10, Volume: 2},
		{Ts: 2, High: 21, Low: 19, Close: 20, Volume: 2},
	}
	s := FromCandles(candles)
	computeVWAP(s, []string{"vwap"})
	vwap := s.Column("vwap")
	if vwap[0] != 10 {
		t.Errorf("vwap[0] = %f, want 10", vwap[0])
	}
	if vwap[1] != 15 {
		t.Errorf("vwap[1] = %f, want 15", vwap[1])
	}
}

func TestWindowParsing(t *testing.T) {
	if w, err := window("ema_26"); err != nil || w != 26 {
		t.Errorf("window(ema_26) = %d, %v", w, err)
	}
	if w, err := window("stoch_k_14"); err != nil || w != 14 {
		t.Errorf("window(stoch_k_14) = %d, %v", w, err)
	}
	if _, err := window("ema_x"); err == nil {
		t.Error("expected error for non-numeric window")
	}
	if _, err := window("vwap"); err == nil {
		t.Error("expected error for feature without suffix")
	}
}

func TestCSVHeaderOrder(t *testing.T) {
	s := FromCandles(testCandles(3))
	csv := s.CSV()
	header := strings.SplitN(csv, "\n", 2)[0]
	if header != "ts,open,high,low,close,volume" {
		t.Errorf("unexpected header: %s", header)
	}
	if strings.Count(csv, "\n") != 4 {
		t.Errorf("expected header plus 3 rows, got %d lines", strings.Count(csv, "\n"))
	}
}
