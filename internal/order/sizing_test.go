package order

import (
	"context"
	"errors"
	"math"
	"testing"

	"llm-perps-trader/internal/types"
)

func testRules() types.TradingRules {
	return types.TradingRules{
		Symbol:            "BTCUSDT",
		PriceTick:         0.01,
		QtyStep:           0.01,
		MinQty:            0.01,
		MaxQty:            1000,
		MinNotional:       10,
		QuoteMax:          100000,
		InitialMarginRate: 0.05, // max 20x
	}
}

func buyPlan() types.OrderPlan {
	return types.OrderPlan{
		Symbol:     "BTCUSDT",
		Side:       types.SideBuy,
		Entry:      100,
		TakeProfit: 103,
		StopLoss:   99,
		Leverage:   5,
	}
}

func TestSizeRiskBased(t *testing.T) {
	// risk = 1000 * 0.3% = 3; risk per unit = 1 -> 3 units.
	// margin cap = 1000 * 5 * 0.5 / 100 = 25 units, not binding.
	sized, err := Size(context.Background(), buyPlan(), 1000, 100, 0.3, testRules())
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if sized.Quantity != 3 {
		t.Errorf("qty = %f, want 3", sized.Quantity)
	}
	if sized.Leverage != 5 {
		t.Errorf("leverage = %d, want 5", sized.Leverage)
	}
	if sized.Notional != 300 {
		t.Errorf("notional = %f, want 300", sized.Notional)
	}
}

func TestSizeMarginCapBinds(t *testing.T) {
	// qty by risk = 100 * 5% / 1 = 5 units.
	// margin cap = 100 * 1 * 0.5 / 100 = 0.5 units, which binds.
	plan := buyPlan()
	plan.Leverage = 1
	sized, err := Size(context.Background(), plan, 100, 100, 5, testRules())
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if sized.Quantity != 0.5 {
		t.Errorf("qty = %f, want margin-capped 0.5", sized.Quantity)
	}
}

func TestSizeStopTooClose(t *testing.T) {
	plan := buyPlan()
	plan.StopLoss = plan.Entry
	_, err := Size(context.Background(), plan, 1000, 100, 0.3, testRules())
	if !errors.Is(err, ErrStopTooClose) {
		t.Errorf("expected ErrStopTooClose, got %v", err)
	}
}

func TestSizeLeverageClamped(t *testing.T) {
	plan := buyPlan()
	plan.Leverage = 50 // above 1/0.05 = 20
	sized, err := Size(context.Background(), plan, 1000, 100, 0.3, testRules())
	if err != nil {
		t.Fatal(err)
	}
	if sized.Leverage != 20 {
		t.Errorf("leverage = %d, want clamped 20", sized.Leverage)
	}
}

func TestSizeMinNotionalRecovery(t *testing.T) {
	// risk = 10 * 0.3% = 0.03, risk per unit 1 -> 0.03 units, notional 3 < 10.
	// Recovery lifts qty to ceil(10/100 / 0.01) * 0.01 = 0.1 -> notional 10.
	sized, err := Size(context.Background(), buyPlan(), 10, 100, 0.3, testRules())
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if sized.Quantity != 0.1 {
		t.Errorf("qty = %f, want recovered 0.1", sized.Quantity)
	}
	if sized.Notional < 10 {
		t.Errorf("notional = %f, must clear the minimum", sized.Notional)
	}
}

func TestSizeBelowMinQty(t *testing.T) {
	rules := testRules()
	rules.MinQty = 1
	// risk qty = 0.03, rounds to 0.03 < min 1.
	_, err := Size(context.Background(), buyPlan(), 10, 100, 0.3, rules)
	if !errors.Is(err, ErrBelowMinQty) {
		t.Errorf("expected ErrBelowMinQty, got %v", err)
	}
}

func TestSizeQuoteMaxExceeded(t *testing.T) {
	rules := testRules()
	rules.QuoteMax = 100
	_, err := Size(context.Background(), buyPlan(), 1000, 100, 0.3, rules)
	if !errors.Is(err, ErrAboveQuoteMax) {
		t.Errorf("expected ErrAboveQuoteMax, got %v", err)
	}
}

func TestRoundToTick(t *testing.T) {
	if got := RoundDownToTick(1.2345, 0.01); math.Abs(got-1.23) > 1e-12 {
		t.Errorf("RoundDownToTick = %f, want 1.23", got)
	}
	if got := RoundUpToTick(1.2301, 0.01); math.Abs(got-1.24) > 1e-12 {
		t.Errorf("RoundUpToTick = %f, want 1.24", got)
	}
	if got := RoundDownToTick(1.23, 0.01); math.Abs(got-1.23) > 1e-12 {
		t.Errorf("exact multiple should survive round down, got %f", got)
	}
	if got := RoundUpToTick(1.23, 0.01); math.Abs(got-1.23) > 1e-12 {
		t.Errorf("exact multiple should survive round up, got %f", got)
	}
	if got := RoundDownToTick(5, 0); got != 5 {
		t.Errorf("zero tick should pass through, got %f", got)
	}
}

func TestTriggersBuyNudge(t *testing.T) {
	// SL above live and TP below live must both be nudged strictly past it.
	tp, sl := Triggers(types.SideBuy, 99.5, 101, 100, 0.01)
	if sl >= 100 {
		t.Errorf("buy SL trigger %f must be strictly below live 100", sl)
	}
	if tp <= 100 {
		t.Errorf("buy TP trigger %f must be strictly above live 100", tp)
	}
}

func TestTriggersBuyCleanLevelsKept(t *testing.T) {
	tp, sl := Triggers(types.SideBuy, 103, 99, 100, 0.01)
	if tp != 103 || sl != 99 {
		t.Errorf("clean levels changed: tp=%f sl=%f", tp, sl)
	}
}

func TestTriggersSellNudge(t *testing.T) {
	tp, sl := Triggers(types.SideSell, 100.5, 99, 100, 0.01)
	if sl <= 100 {
		t.Errorf("sell SL trigger %f must be strictly above live 100", sl)
	}
	if tp >= 100 {
		t.Errorf("sell TP trigger %f must be strictly below live 100", tp)
	}
}
