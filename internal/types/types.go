package types

// Side is the direction of a proposed or executed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideNone Side = "NONE"
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	}
	return SideNone
}

// Candle is a single OHLCV bar. Ts is the open time in unix milliseconds.
type Candle struct {
	Ts                              int64
	Open, High, Low, Close, Volume float64
}

// BookLevel is one price level of the order book.
type BookLevel struct {
	Price float64
	Qty   float64
}

// OrderBook holds the top levels of a futures order book, best first.
type OrderBook struct {
	Bids []BookLevel
	Asks []BookLevel
}

// Liquidation is a forced-liquidation event observed on the exchange.
type Liquidation struct {
	Symbol string
	Price  float64
	Qty    float64
	Side   Side
	Ts     int64
}

// RiskParams are the caller-supplied risk settings for one signal cycle.
type RiskParams struct {
	Leverage      int
	RiskLevelPct  float64 // account risk per trade, percent
	MinTPPct      float64 // minimum take-profit distance, fraction of entry
	MinSLPct      float64 // minimum stop-loss distance, fraction of entry
	BookThreshold float64 // minimum order-book imbalance ratio
}

// Snapshot is the immutable decision input assembled once per signal cycle.
type Snapshot struct {
	Symbol   string
	Interval string

	LatestClose   float64
	LivePrice     float64
	PriceDeltaPct float64 // live vs. candle close, percent

	Last3Lows  [3]float64
	Last3Highs [3]float64

	RSI    float64
	HasRSI bool

	Book         OrderBook
	BidVolume    float64
	AskVolume    float64
	BidImbalance float64 // bids/asks over the top levels, 0 when asks are empty
	AskImbalance float64

	FundingRate        float64
	NearbyLiquidations int

	Balance float64
	Risk    RiskParams

	// HistoryCSV is the (possibly truncated) candle+indicator frame rendered
	// for the judgment prompt.
	HistoryCSV string
	Rows       int
}

// JudgmentOrigin records how a judgment was recovered from the raw model output.
type JudgmentOrigin string

const (
	OriginParsed   JudgmentOrigin = "parsed"
	OriginFallback JudgmentOrigin = "fallback"
	OriginNone     JudgmentOrigin = "unrecognized"
)

// Judgment is the untrusted opinion returned by the judgment source. The
// decision engine validates or overrides every field in strict mode.
type Judgment struct {
	Side       Side
	Approved   bool
	Entry      float64
	TakeProfit float64
	StopLoss   float64
	Rationale  string
	Origin     JudgmentOrigin
}

// Decision is the final outcome of one signal cycle. Immutable after creation.
type Decision struct {
	Approved   bool
	Side       Side
	Entry      float64
	TakeProfit float64
	StopLoss   float64

	RejectionReasons []string
	Warnings         []string

	// AlignmentScore counts how many independent structural checks held,
	// 25 points each. Observability only, never part of the approval rule.
	AlignmentScore int

	RSIStatus string
	Rationale string
}

// TradingRules are the exchange-imposed constraints for one symbol.
type TradingRules struct {
	Symbol      string
	PriceTick   float64
	QtyStep     float64
	MinQty      float64
	MaxQty      float64
	MinNotional float64
	QuoteMax    float64
	// InitialMarginRate implies the maximum leverage (1/IMR).
	InitialMarginRate float64
}

// OrderPlan is an approved decision handed to the sizing engine.
type OrderPlan struct {
	Symbol     string
	Side       Side
	Entry      float64
	TakeProfit float64
	StopLoss   float64
	Leverage   int
}

// BracketOrder is a fully sized, tick-aligned order ready for submission:
// a market entry plus reduce-only TP and SL triggers off the mark price.
type BracketOrder struct {
	Symbol    string
	Side      Side
	Quantity  float64
	TPTrigger float64
	SLTrigger float64
	Leverage  int
}

// OrderResult reports the exchange identifiers of a submitted bracket.
type OrderResult struct {
	EntryOrderID int64
	TPOrderID    int64
	SLOrderID    int64
	Quantity     float64
	Price        float64
	Notional     float64
}

// CycleResult is everything one signal cycle produced, for reporting.
type CycleResult struct {
	Symbol   string
	Decision Decision
	Report   string
	Order    *OrderResult
}
