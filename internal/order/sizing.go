package order

import (
	"context"
	"errors"
	"fmt"

	"llm-perps-trader/internal/logger"
	"llm-perps-trader/internal/types"
)

var (
	// ErrStopTooClose means entry and stop loss are too close to size a
	// position against.
	ErrStopTooClose = errors.New("stop loss too close to entry")
	// ErrBelowMinQty means the risk-derived quantity rounds below the
	// exchange minimum.
	ErrBelowMinQty = errors.New("quantity below exchange minimum")
	// ErrMinNotional means the order cannot reach the exchange's minimum
	// notional even after adjustment.
	ErrMinNotional = errors.New("order below minimum notional")
	// ErrAboveQuoteMax means the order notional exceeds the exchange cap.
	ErrAboveQuoteMax = errors.New("order above maximum notional")
)

// marginUsageCap limits how much of the leveraged buying power a single
// position may consume.
const marginUsageCap = 0.5

// SizedOrder is the outcome of position sizing.
type SizedOrder struct {
	Quantity float64
	Leverage int
	Notional float64
}

// Size computes the order quantity for a trade plan. The quantity risks at
// most riskPct of the balance between entry and stop, capped by half the
// leveraged buying power, snapped down to the quantity step, and then
// adjusted upward if needed to clear the exchange's minimum notional at the
// live price.
func Size(ctx context.Context, plan types.OrderPlan, balance, livePrice, riskPct float64, rules types.TradingRules) (SizedOrder, error) {
	if plan.Entry <= 0 || livePrice <= 0 {
		return SizedOrder{}, fmt.Errorf("invalid prices: entry=%f live=%f", plan.Entry, livePrice)
	}

	leverage := clampLeverage(ctx, plan.Symbol, plan.Leverage, rules)

	riskPerUnit := plan.Entry - plan.StopLoss
	if riskPerUnit < 0 {
		riskPerUnit = -riskPerUnit
	}
	if riskPerUnit <= 0 || riskPerUnit < 1e-10 {
		return SizedOrder{}, ErrStopTooClose
	}

	riskAmount := balance * riskPct / 100
	qtyByRisk := riskAmount / riskPerUnit

	maxNotional := balance * float64(leverage) * marginUsageCap
	qtyByMargin := maxNotional / plan.Entry

	qty := qtyByRisk
	if qtyByMargin < qty {
		qty = qtyByMargin
	}
	qty = RoundDownToTick(qty, rules.QtyStep)

	if rules.MaxQty > 0 && qty > rules.MaxQty {
		qty = RoundDownToTick(rules.MaxQty, rules.QtyStep)
	}
	if qty < rules.MinQty {
		return SizedOrder{}, fmt.Errorf("%w: qty %f < min %f", ErrBelowMinQty, qty, rules.MinQty)
	}

	// Recover a too-small notional by lifting the quantity to the minimum,
	// rounded up so the snapped value still clears the bar.
	notional := livePrice * qty
	if notional < rules.MinNotional {
		adjusted := RoundUpToTick(rules.MinNotional/livePrice, rules.QtyStep)
		logger.Info(ctx, "Adjusted quantity to meet minimum notional",
			"symbol", plan.Symbol, "qty", adjusted, "was", qty)
		qty = adjusted
		notional = livePrice * qty
	}
	if qty <= 0 || notional < rules.MinNotional {
		return SizedOrder{}, fmt.Errorf("%w: notional %.2f < min %.2f", ErrMinNotional, notional, rules.MinNotional)
	}

	if rules.QuoteMax > 0 && notional > rules.QuoteMax {
		return SizedOrder{}, fmt.Errorf("%w: notional %.2f > max %.2f", ErrAboveQuoteMax, notional, rules.QuoteMax)
	}

	return SizedOrder{Quantity: qty, Leverage: leverage, Notional: notional}, nil
}

// clampLeverage caps the requested leverage at what the symbol's initial
// margin rate allows.
func clampLeverage(ctx context.Context, symbol string, leverage int, rules types.TradingRules) int {
	if leverage <= 0 {
		leverage = 1
	}
	if rules.InitialMarginRate <= 0 {
		return leverage
	}
	maxAllowed := int(1 / rules.InitialMarginRate)
	if maxAllowed < 1 {
		maxAllowed = 1
	}
	if leverage > maxAllowed {
		logger.Risk(ctx, symbol, "leverage_capped",
			"requested", leverage, "max_allowed", maxAllowed)
		return maxAllowed
	}
	return leverage
}
