package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/logger"
	"llm-perps-trader/internal/trace"
	"llm-perps-trader/internal/types"
)

// staleRetries is how many extra attempts a stale trigger price gets, each
// with a freshly fetched live price.
const staleRetries = 1

// Submitter sizes an approved plan and places the bracket on the exchange.
type Submitter struct {
	exchange interfaces.Exchange
	riskPct  float64
}

func NewSubmitter(exchange interfaces.Exchange, riskPct float64) *Submitter {
	return &Submitter{exchange: exchange, riskPct: riskPct}
}

// Submit turns an approved plan into a live bracket order: fetch rules and
// balance, size the position, set leverage, compute trigger prices strictly
// past the live price, and place the order. A stale-trigger rejection
// refreshes the live price and retries once.
func (s *Submitter) Submit(ctx context.Context, plan types.OrderPlan) (types.OrderResult, error) {
	ctx, span := trace.StartSpan(ctx, "order.Submit")
	defer span.End()

	rules, err := s.exchange.TradingRules(ctx, plan.Symbol)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("fetching trading rules: %w", err)
	}
	if rules.PriceTick <= 0 || rules.QtyStep <= 0 {
		return types.OrderResult{}, fmt.Errorf("invalid tick sizes for %s: price=%f qty=%f",
			plan.Symbol, rules.PriceTick, rules.QtyStep)
	}

	balance, err := s.exchange.AvailableBalance(ctx)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("fetching balance: %w", err)
	}

	live, err := s.exchange.LivePrice(ctx, plan.Symbol)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("fetching live price: %w", err)
	}

	sized, err := Size(ctx, plan, balance, live, s.riskPct, rules)
	if err != nil {
		return types.OrderResult{}, err
	}

	if err := s.exchange.SetLeverage(ctx, plan.Symbol, sized.Leverage); err != nil {
		return types.OrderResult{}, fmt.Errorf("setting leverage: %w", err)
	}

	var result types.OrderResult
	attempt := 0
	op := func() error {
		attempt++
		tpTrigger, slTrigger := Triggers(plan.Side, plan.TakeProfit, plan.StopLoss, live, rules.PriceTick)
		ord := types.BracketOrder{
			Symbol:    plan.Symbol,
			Side:      plan.Side,
			Quantity:  sized.Quantity,
			TPTrigger: tpTrigger,
			SLTrigger: slTrigger,
			Leverage:  sized.Leverage,
		}
		res, perr := s.exchange.PlaceBracket(ctx, ord)
		if perr != nil {
			if errors.Is(perr, interfaces.ErrStaleTrigger) {
				logger.Warn(ctx, "Trigger price stale, refreshing live price",
					"symbol", plan.Symbol, "attempt", attempt)
				if fresh, ferr := s.exchange.LivePrice(ctx, plan.Symbol); ferr == nil && fresh > 0 {
					live = fresh
				}
				return perr
			}
			return backoff.Permanent(perr)
		}
		result = res
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), staleRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return types.OrderResult{}, fmt.Errorf("placing bracket for %s: %w", plan.Symbol, err)
	}

	result.Quantity = sized.Quantity
	result.Price = live
	result.Notional = sized.Notional

	logger.Trade(ctx, plan.Symbol, string(plan.Side), sized.Quantity, live, result.EntryOrderID,
		"leverage", sized.Leverage,
		"notional", sized.Notional,
		"tp_order_id", result.TPOrderID,
		"sl_order_id", result.SLOrderID,
	)
	return result, nil
}

// Triggers aligns the TP and SL trigger prices to the tick grid and nudges
// any trigger the market has already crossed one tick strictly past the
// live price. The exchange rejects triggers that would fire immediately.
func Triggers(side types.Side, takeProfit, stopLoss, live, tick float64) (tpTrigger, slTrigger float64) {
	nudgeUp := func(px float64) float64 { return RoundUpToTick(px+tick, tick) }
	nudgeDown := func(px float64) float64 { return RoundDownToTick(px-tick, tick) }

	if side == types.SideBuy {
		tpTrigger = RoundUpToTick(takeProfit, tick)
		slTrigger = RoundDownToTick(stopLoss, tick)
		if slTrigger >= live {
			slTrigger = nudgeDown(live)
		}
		if tpTrigger <= live {
			tpTrigger = nudgeUp(live)
		}
		return tpTrigger, slTrigger
	}

	tpTrigger = RoundDownToTick(takeProfit, tick)
	slTrigger = RoundUpToTick(stopLoss, tick)
	if slTrigger <= live {
		slTrigger = nudgeUp(live)
	}
	if tpTrigger >= live {
		tpTrigger = nudgeDown(live)
	}
	return tpTrigger, slTrigger
}
