package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/types"
)

type fakeExchange struct {
	rules    types.TradingRules
	rulesErr error
	balance  float64
	live     float64

	leverageSet  int
	placed       []types.BracketOrder
	placeErrs    []error // popped per attempt; nil means success
	placeCalls   int
	resultOrder  types.OrderResult
	liveOnRetry  float64
}

func (f *fakeExchange) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	return nil, nil
}

func (f *fakeExchange) OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error) {
	return types.OrderBook{}, nil
}

func (f *fakeExchange) FundingRate(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}

func (f *fakeExchange) Liquidations(ctx context.Context, symbol string, lookback time.Duration) ([]types.Liquidation, error) {
	return nil, nil
}

func (f *fakeExchange) LivePrice(ctx context.Context, symbol string) (float64, error) {
	if f.placeCalls > 0 && f.liveOnRetry > 0 {
		return f.liveOnRetry, nil
	}
	return f.live, nil
}

func (f *fakeExchange) AvailableBalance(ctx context.Context) (float64, error) {
	return f.balance, nil
}

func (f *fakeExchange) TradingRules(ctx context.Context, symbol string) (types.TradingRules, error) {
	return f.rules, f.rulesErr
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.leverageSet = leverage
	return nil
}

func (f *fakeExchange) PlaceBracket(ctx context.Context, ord types.BracketOrder) (types.OrderResult, error) {
	f.placed = append(f.placed, ord)
	var err error
	if f.placeCalls < len(f.placeErrs) {
		err = f.placeErrs[f.placeCalls]
	}
	f.placeCalls++
	if err != nil {
		return types.OrderResult{}, err
	}
	return f.resultOrder, nil
}

func (f *fakeExchange) Start(ctx context.Context, symbols []string) error { return nil }

func (f *fakeExchange) Stop(ctx context.Context) {}

func newFake() *fakeExchange {
	return &fakeExchange{
		rules:       testRules(),
		balance:     1000,
		live:        100,
		resultOrder: types.OrderResult{EntryOrderID: 42, TPOrderID: 43, SLOrderID: 44},
	}
}

func TestSubmitPlacesBracket(t *testing.T) {
	ex := newFake()
	s := NewSubmitter(ex, 0.3)

	res, err := s.Submit(context.Background(), buyPlan())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.EntryOrderID != 42 {
		t.Errorf("entry order id = %d", res.EntryOrderID)
	}
	if res.Quantity != 3 {
		t.Errorf("quantity = %f, want 3", res.Quantity)
	}
	if ex.leverageSet != 5 {
		t.Errorf("leverage set = %d, want 5", ex.leverageSet)
	}
	if len(ex.placed) != 1 {
		t.Fatalf("place calls = %d, want 1", len(ex.placed))
	}
	ord := ex.placed[0]
	if ord.TPTrigger != 103 || ord.SLTrigger != 99 {
		t.Errorf("triggers = %f/%f, want 103/99", ord.TPTrigger, ord.SLTrigger)
	}
}

func TestSubmitRetriesStaleTrigger(t *testing.T) {
	ex := newFake()
	ex.placeErrs = []error{interfaces.ErrStaleTrigger, nil}
	ex.liveOnRetry = 98.5 // price dropped below the 99 stop
	s := NewSubmitter(ex, 0.3)

	res, err := s.Submit(context.Background(), buyPlan())
	if err != nil {
		t.Fatalf("Submit should recover from one stale trigger: %v", err)
	}
	if ex.placeCalls != 2 {
		t.Fatalf("place calls = %d, want 2", ex.placeCalls)
	}
	retry := ex.placed[1]
	// With live now 98.5, the original 99 stop sits above it and must be
	// nudged strictly below.
	if retry.SLTrigger >= 98.5 {
		t.Errorf("retry SL trigger %f not below refreshed live 98.5", retry.SLTrigger)
	}
	if res.EntryOrderID != 42 {
		t.Errorf("entry order id = %d", res.EntryOrderID)
	}
}

func TestSubmitStaleTriggerExhausted(t *testing.T) {
	ex := newFake()
	ex.placeErrs = []error{interfaces.ErrStaleTrigger, interfaces.ErrStaleTrigger}
	s := NewSubmitter(ex, 0.3)

	_, err := s.Submit(context.Background(), buyPlan())
	if !errors.Is(err, interfaces.ErrStaleTrigger) {
		t.Fatalf("expected stale trigger failure after retries, got %v", err)
	}
	if ex.placeCalls != 2 {
		t.Errorf("place calls = %d, want exactly 2 attempts", ex.placeCalls)
	}
}

func TestSubmitPermanentErrorNoRetry(t *testing.T) {
	ex := newFake()
	boom := errors.New("margin insufficient")
	ex.placeErrs = []error{boom}
	s := NewSubmitter(ex, 0.3)

	_, err := s.Submit(context.Background(), buyPlan())
	if !errors.Is(err, boom) {
		t.Fatalf("expected placement error, got %v", err)
	}
	if ex.placeCalls != 1 {
		t.Errorf("permanent errors must not retry, got %d calls", ex.placeCalls)
	}
}

func TestSubmitRejectsInvalidTicks(t *testing.T) {
	ex := newFake()
	ex.rules.PriceTick = 0
	s := NewSubmitter(ex, 0.3)

	if _, err := s.Submit(context.Background(), buyPlan()); err == nil {
		t.Error("expected error for zero price tick")
	}
	if ex.placeCalls != 0 {
		t.Error("no order should be placed with invalid rules")
	}
}

func TestSubmitSizingErrorAborts(t *testing.T) {
	ex := newFake()
	s := NewSubmitter(ex, 0.3)
	plan := buyPlan()
	plan.StopLoss = plan.Entry

	_, err := s.Submit(context.Background(), plan)
	if !errors.Is(err, ErrStopTooClose) {
		t.Fatalf("expected ErrStopTooClose, got %v", err)
	}
	if ex.placeCalls != 0 {
		t.Error("no order should be placed when sizing fails")
	}
}
