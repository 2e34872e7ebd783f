package binance

import (
	"sync"
	"time"

	"llm-perps-trader/internal/types"
)

// retention bounds how long recorded liquidations are kept before pruning.
const retention = 48 * time.Hour

// maxPerSymbol bounds memory during liquidation cascades.
const maxPerSymbol = 10000

// liquidationRecorder accumulates force-order events from the websocket
// stream. Binance exposes no REST endpoint for historical liquidations, so
// the window only covers what was observed while the stream was up.
type liquidationRecorder struct {
	mu       sync.Mutex
	bySymbol map[string][]types.Liquidation
}

func newLiquidationRecorder() *liquidationRecorder {
	return &liquidationRecorder{bySymbol: make(map[string][]types.Liquidation)}
}

func (r *liquidationRecorder) record(liq types.Liquidation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := append(r.bySymbol[liq.Symbol], liq)

	cutoff := time.Now().Add(-retention).UnixMilli()
	start := 0
	for start < len(events) && events[start].Ts < cutoff {
		start++
	}
	if over := len(events) - start - maxPerSymbol; over > 0 {
		start += over
	}
	r.bySymbol[liq.Symbol] = events[start:]
}

func (r *liquidationRecorder) since(symbol string, from time.Time) []types.Liquidation {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := from.UnixMilli()
	var out []types.Liquidation
	for _, liq := range r.bySymbol[symbol] {
		if liq.Ts >= cutoff {
			out = append(out, liq)
		}
	}
	return out
}
