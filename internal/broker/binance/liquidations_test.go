package binance

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"

	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/types"
)

func TestRecorderWindowFiltering(t *testing.T) {
	r := newLiquidationRecorder()
	now := time.Now()

	r.record(types.Liquidation{Symbol: "BTCUSDT", Price: 100, Ts: now.Add(-2 * time.Hour).UnixMilli()})
	r.record(types.Liquidation{Symbol: "BTCUSDT", Price: 101, Ts: now.Add(-10 * time.Minute).UnixMilli()})
	r.record(types.Liquidation{Symbol: "ETHUSDT", Price: 50, Ts: now.UnixMilli()})

	got := r.since("BTCUSDT", now.Add(-time.Hour))
	if len(got) != 1 {
		t.Fatalf("expected 1 event inside the window, got %d", len(got))
	}
	if got[0].Price != 101 {
		t.Errorf("wrong event returned: %+v", got[0])
	}

	if all := r.since("BTCUSDT", now.Add(-24*time.Hour)); len(all) != 2 {
		t.Errorf("expected 2 events over 24h, got %d", len(all))
	}
	if none := r.since("SOLUSDT", now.Add(-24*time.Hour)); len(none) != 0 {
		t.Errorf("unknown symbol should be empty, got %d", len(none))
	}
}

func TestRecorderBoundsPerSymbol(t *testing.T) {
	r := newLiquidationRecorder()
	now := time.Now()
	for i := 0; i < maxPerSymbol+50; i++ {
		r.record(types.Liquidation{Symbol: "BTCUSDT", Price: float64(i), Ts: now.UnixMilli()})
	}
	got := r.since("BTCUSDT", now.Add(-time.Minute))
	if len(got) != maxPerSymbol {
		t.Errorf("recorder should cap at %d events, got %d", maxPerSymbol, len(got))
	}
	// Oldest entries are dropped first.
	if got[0].Price != 50 {
		t.Errorf("expected oldest events pruned, first price = %f", got[0].Price)
	}
}

func TestMapOrderErrorStaleTrigger(t *testing.T) {
	apiErr := &common.APIError{Code: staleTriggerCode, Message: "Order would immediately trigger."}
	err := mapOrderError(fmt.Errorf("entry order: %w", apiErr))
	if !errors.Is(err, interfaces.ErrStaleTrigger) {
		t.Errorf("code -2021 should map to ErrStaleTrigger, got %v", err)
	}

	other := &common.APIError{Code: -2019, Message: "Margin is insufficient."}
	err = mapOrderError(fmt.Errorf("entry order: %w", other))
	if errors.Is(err, interfaces.ErrStaleTrigger) {
		t.Error("unrelated API errors must not map to ErrStaleTrigger")
	}

	plain := errors.New("connection reset")
	if errors.Is(mapOrderError(plain), interfaces.ErrStaleTrigger) {
		t.Error("non-API errors must pass through unchanged")
	}
}
