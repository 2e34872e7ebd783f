package engine

import (
	"context"
	"errors"
	"fmt"

	"llm-perps-trader/internal/decision"
	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/llm"
	"llm-perps-trader/internal/logger"
	"llm-perps-trader/internal/settings"
	"llm-perps-trader/internal/snapshot"
	"llm-perps-trader/internal/store"
	"llm-perps-trader/internal/trace"
	"llm-perps-trader/internal/tradelog"
	"llm-perps-trader/internal/types"
)

// snapshotBuilder and orderSubmitter are satisfied by snapshot.Builder and
// order.Submitter; tests inject fakes.
type snapshotBuilder interface {
	Build(ctx context.Context, sett settings.SignalSettings) (*types.Snapshot, error)
}

type orderSubmitter interface {
	Submit(ctx context.Context, plan types.OrderPlan) (types.OrderResult, error)
}

// Engine runs one full signal cycle: load settings, build the market
// snapshot, ask the judgment source, validate the judgment against the
// structural rules, and, when everything holds and auto-trade allows it,
// submit the bracket order.
type Engine struct {
	cfg       *store.Config
	provider  settings.Provider
	builder   snapshotBuilder
	judge     interfaces.Judge
	submitter orderSubmitter
	notifier  interfaces.Notifier
}

var _ interfaces.Engine = (*Engine)(nil)

func New(cfg *store.Config, provider settings.Provider, builder snapshotBuilder,
	judge interfaces.Judge, submitter orderSubmitter, notifier interfaces.Notifier) *Engine {
	return &Engine{
		cfg:       cfg,
		provider:  provider,
		builder:   builder,
		judge:     judge,
		submitter: submitter,
		notifier:  notifier,
	}
}

// Cycle runs one signal cycle for symbol. An empty symbol falls back to the
// asset configured in the settings store. Pipeline failures that are market
// conditions rather than bugs (thin history, judgment source outage) resolve
// to a rejected decision, not an error, so the polling loop keeps running.
func (e *Engine) Cycle(ctx context.Context, symbol string) (res *types.CycleResult, err error) {
	ctx, span := trace.StartSpan(ctx, "engine.Cycle")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Cycle panicked", "symbol", symbol, "panic", r)
			res, err = nil, fmt.Errorf("cycle panic for %q: %v", symbol, r)
		}
	}()

	sett, err := settings.Load(e.provider, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Settings validation failed", err, "symbol", symbol)
		return nil, err
	}

	timer := logger.StartOperation(ctx, "engine.cycle", "symbol", sett.Asset, "interval", sett.Interval)
	ctx = timer.GetContext()

	snap, err := e.builder.Build(ctx, sett)
	if err != nil {
		if errors.Is(err, snapshot.ErrInsufficientHistory) {
			timer.End("outcome", "rejected")
			return e.finishRejected(ctx, sett, nil,
				"Insufficient historical data after indicator warm-up"), nil
		}
		timer.EndWithError(err)
		return nil, err
	}

	prompt := llm.BuildPrompt(sett, snap)
	if sett.ShowPrompt {
		e.notifier.Send(ctx, "Prompt sent to "+e.judge.Name()+":\n\n"+prompt)
	}

	raw, err := e.judge.Judge(ctx, prompt)
	if err != nil {
		timer.End("outcome", "rejected")
		return e.finishRejected(ctx, sett, snap,
			"Judgment source unavailable: "+err.Error()), nil
	}

	judgment := llm.ParseJudgment(raw)
	d := decision.Evaluate(snap, judgment, sett.PromptMode)
	report := decision.Report(snap, d)

	e.recordDecision(ctx, sett, judgment, d)

	result := &types.CycleResult{Symbol: sett.Asset, Decision: d, Report: report}
	if d.Approved {
		result.Order, report = e.maybeTrade(ctx, sett, snap, d, report)
		result.Report = report
	}

	e.notifier.Send(ctx, report)
	timer.End("outcome", outcome(d), "alignment", d.AlignmentScore)
	return result, nil
}

// maybeTrade submits the approved plan when the run mode and auto-trade
// setting both allow it, and appends the execution outcome to the report.
func (e *Engine) maybeTrade(ctx context.Context, sett settings.SignalSettings,
	snap *types.Snapshot, d types.Decision, report string) (*types.OrderResult, string) {

	if sett.AutoTrade == settings.AutoTradeOff {
		logger.Info(ctx, "Auto-trade off, signal not executed", "symbol", sett.Asset)
		return nil, report + "\n\nAuto-trade is off; no order was placed."
	}
	if e.cfg.Mode != "LIVE" || e.submitter == nil {
		logger.Info(ctx, "Dry run, order not submitted",
			"symbol", sett.Asset, "side", string(d.Side))
		return nil, report + "\n\nDry run; no order was placed."
	}

	plan := types.OrderPlan{
		Symbol:     sett.Asset,
		Side:       d.Side,
		Entry:      d.Entry,
		TakeProfit: d.TakeProfit,
		StopLoss:   d.StopLoss,
		Leverage:   sett.Leverage,
	}
	ord, err := e.submitter.Submit(ctx, plan)
	if err != nil {
		logger.ErrorWithErr(ctx, "Order submission failed", err,
			"symbol", sett.Asset, "side", string(d.Side))
		return nil, report + "\n\nOrder submission failed: " + err.Error()
	}

	if lerr := tradelog.Append(tradelog.Entry{
		Symbol:     sett.Asset,
		Side:       string(d.Side),
		OrderID:    ord.EntryOrderID,
		Qty:        ord.Quantity,
		Price:      ord.Price,
		TakeProfit: d.TakeProfit,
		StopLoss:   d.StopLoss,
		Leverage:   sett.Leverage,
		Notional:   ord.Notional,
	}); lerr != nil {
		logger.Warn(ctx, "Failed to append trade log", "error", lerr)
	}

	report += fmt.Sprintf("\n\nORDER EXECUTED\n- Quantity: %.6f\n- Fill price: %.6f\n- Notional: %.2f USDT\n- Entry order: %d (TP %d / SL %d)",
		ord.Quantity, ord.Price, ord.Notional, ord.EntryOrderID, ord.TPOrderID, ord.SLOrderID)
	return &ord, report
}

// finishRejected closes a cycle that failed before a judgment could be
// evaluated, producing a rejected decision with a single reason.
func (e *Engine) finishRejected(ctx context.Context, sett settings.SignalSettings,
	snap *types.Snapshot, reason string) *types.CycleResult {

	d := types.Decision{
		Approved:         false,
		Side:             types.SideNone,
		RejectionReasons: []string{reason},
		RSIStatus:        "N/A",
	}
	report := decision.Report(snap, d)

	e.recordDecision(ctx, sett, types.Judgment{Side: types.SideNone, Origin: types.OriginNone}, d)
	e.notifier.Send(ctx, report)
	return &types.CycleResult{Symbol: sett.Asset, Decision: d, Report: report}
}

func (e *Engine) recordDecision(ctx context.Context, sett settings.SignalSettings,
	judgment types.Judgment, d types.Decision) {

	logger.Decision(ctx, sett.Asset, string(d.Side), d.Approved, d.AlignmentScore,
		"interval", sett.Interval,
		"mode", sett.PromptMode,
		"origin", string(judgment.Origin),
		"rsi_status", d.RSIStatus,
	)
	if err := tradelog.AppendDecision(tradelog.DecisionEntry{
		Symbol:           sett.Asset,
		Side:             string(d.Side),
		Approved:         d.Approved,
		Entry:            d.Entry,
		TakeProfit:       d.TakeProfit,
		StopLoss:         d.StopLoss,
		AlignmentScore:   d.AlignmentScore,
		RSIStatus:        d.RSIStatus,
		RejectionReasons: d.RejectionReasons,
		Warnings:         d.Warnings,
		Extra: map[string]any{
			"interval": sett.Interval,
			"mode":     sett.PromptMode,
			"origin":   string(judgment.Origin),
		},
	}); err != nil {
		logger.Warn(ctx, "Failed to append decision log", "error", err)
	}
}

func outcome(d types.Decision) string {
	if d.Approved {
		return "approved"
	}
	return "rejected"
}
