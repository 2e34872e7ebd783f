package indicator

import "fmt"

// FeatureSet names the indicator columns a strategy wants on a given
// interval. Force means every listed feature must survive computation;
// advisory sets (Router) tolerate gaps.
type FeatureSet struct {
	Interval string
	Strategy string
	Features []string
	Force    bool
}

var base = []string{"close", "high", "low", "volume"}

func with(extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	out = append(out, extra...)
	return out
}

// strategyFeatures maps interval -> strategy -> feature set. Trend windows
// widen with the interval; volatility and momentum sets are mostly shared.
var strategyFeatures = map[string]map[string]FeatureSet{
	"5m": {
		"Trend-Following":       {Features: with("ema_12", "ema_26", "macd", "macd_signal", "adx", "vwap"), Force: true},
		"Volatility Breakout":   {Features: with("atr_14", "bollinger_hband", "bollinger_lband", "std_20", "vwap"), Force: true},
		"Momentum Reversal":     {Features: with("rsi_14", "stoch_k_14", "stoch_d_14", "roc_10", "momentum_10", "vwap"), Force: true},
		"Momentum + Volatility": {Features: with("rsi_14", "atr_14", "bollinger_hband", "bollinger_lband", "roc_10", "momentum_10", "vwap"), Force: true},
		"Hybrid":                {Features: with("ema_12", "ema_26", "atr_14", "bollinger_hband", "rsi_14", "macd", "vwap"), Force: true},
		"Advanced":              {Features: with("tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"), Force: true},
		"Router":                {Features: []string{"ema_12", "ema_26", "macd", "macd_signal", "adx", "atr_14", "bollinger_hband", "bollinger_lband", "std_20", "rsi_14", "stoch_k_14", "stoch_d_14", "roc_10", "momentum_10", "tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"}},
	},
	"15m": {
		"Trend-Following":       {Features: with("ema_20", "ema_40", "macd", "macd_signal", "adx", "vwap"), Force: true},
		"Volatility Breakout":   {Features: with("atr_14", "bollinger_hband", "bollinger_lband", "std_20", "vwap"), Force: true},
		"Momentum Reversal":     {Features: with("rsi_14", "stoch_k_14", "stoch_d_14", "roc_14", "momentum_14", "vwap"), Force: true},
		"Momentum + Volatility": {Features: with("rsi_14", "atr_14", "bollinger_hband", "bollinger_lband", "roc_14", "momentum_14", "vwap"), Force: true},
		"Hybrid":                {Features: with("ema_20", "ema_40", "atr_14", "bollinger_hband", "rsi_14", "macd", "vwap"), Force: true},
		"Advanced":              {Features: with("tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"), Force: true},
		"Router":                {Features: []string{"ema_20", "ema_40", "macd", "macd_signal", "adx", "atr_14", "bollinger_hband", "bollinger_lband", "std_20", "rsi_14", "stoch_k_14", "stoch_d_14", "roc_14", "momentum_14", "tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"}},
	},
	"30m": {
		"Trend-Following":       {Features: with("ema_30", "ema_60", "macd", "macd_signal", "adx", "vwap"), Force: true},
		"Volatility Breakout":   {Features: with("atr_14", "bollinger_hband", "bollinger_lband", "std_20", "vwap"), Force: true},
		"Momentum Reversal":     {Features: with("rsi_14", "stoch_k_14", "stoch_d_14", "roc_20", "momentum_20", "vwap"), Force: true},
		"Momentum + Volatility": {Features: with("rsi_14", "atr_14", "bollinger_hband", "bollinger_lband", "roc_20", "momentum_20", "vwap"), Force: true},
		"Hybrid":                {Features: with("ema_30", "ema_60", "atr_14", "bollinger_hband", "rsi_14", "macd", "vwap"), Force: true},
		"Advanced":              {Features: with("tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"), Force: true},
		"Router":                {Features: []string{"ema_30", "ema_60", "macd", "macd_signal", "adx", "atr_14", "bollinger_hband", "bollinger_lband", "std_20", "rsi_14", "stoch_k_14", "stoch_d_14", "roc_20", "momentum_20", "tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"}},
	},
	"1h": {
		"Trend-Following":       {Features: with("ema_20", "ema_50", "macd", "macd_signal", "adx", "vwap"), Force: true},
		"Volatility Breakout":   {Features: with("atr_14", "bollinger_hband", "bollinger_lband", "std_20", "vwap"), Force: true},
		"Momentum Reversal":     {Features: with("rsi_14", "stoch_k_14", "stoch_d_14", "roc_10", "momentum_10", "vwap"), Force: true},
		"Momentum + Volatility": {Features: with("rsi_14", "atr_14", "bollinger_hband", "bollinger_lband", "roc_10", "momentum_10", "vwap"), Force: true},
		"Hybrid":                {Features: with("ema_20", "ema_50", "atr_14", "bollinger_hband", "rsi_14", "macd", "vwap"), Force: true},
		"Advanced":              {Features: with("tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"), Force: true},
		"Router":                {Features: []string{"ema_12", "ema_26", "macd", "macd_signal", "adx", "atr_14", "bollinger_hband", "bollinger_lband", "std_20", "rsi_14", "stoch_k_14", "stoch_d_14", "roc_10", "momentum_10", "tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"}},
	},
	"4h": {
		"Trend-Following":       {Features: with("ema_50", "ema_200", "macd", "macd_signal", "adx", "vwap"), Force: true},
		"Volatility Breakout":   {Features: with("atr_14", "bollinger_hband", "bollinger_lband", "std_20", "vwap"), Force: true},
		"Momentum Reversal":     {Features: with("rsi_14", "stoch_k_14", "stoch_d_14", "roc_10", "momentum_10", "vwap"), Force: true},
		"Momentum + Volatility": {Features: with("rsi_14", "atr_14", "bollinger_hband", "bollinger_lband", "roc_10", "momentum_10", "vwap"), Force: true},
		"Hybrid":                {Features: with("ema_50", "ema_200", "atr_14", "bollinger_hband", "rsi_14", "macd", "vwap"), Force: true},
		"Advanced":              {Features: with("tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"), Force: true},
		"Router":                {Features: []string{"ema_12", "ema_26", "macd", "macd_signal", "adx", "atr_14", "bollinger_hband", "bollinger_lband", "std_20", "rsi_14", "stoch_k_14", "stoch_d_14", "roc_10", "momentum_10", "tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"}},
	},
	"1d": {
		"Trend-Following":       {Features: with("ema_50", "ema_200", "macd", "macd_signal", "adx", "vwap"), Force: true},
		"Volatility Breakout":   {Features: with("atr_14", "bollinger_hband", "bollinger_lband", "std_20", "vwap"), Force: true},
		"Momentum Reversal":     {Features: with("rsi_14", "stoch_k_14", "stoch_d_14", "roc_10", "momentum_10", "vwap"), Force: true},
		"Momentum + Volatility": {Features: with("rsi_14", "atr_14", "bollinger_hband", "bollinger_lband", "roc_10", "momentum_10", "vwap"), Force: true},
		"Hybrid":                {Features: with("ema_50", "ema_200", "atr_14", "bollinger_hband", "rsi_14", "macd", "vwap"), Force: true},
		"Advanced":              {Features: with("tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"), Force: true},
		"Router":                {Features: []string{"ema_12", "ema_26", "macd", "macd_signal", "adx", "atr_14", "bollinger_hband", "bollinger_lband", "std_20", "rsi_14", "stoch_k_14", "stoch_d_14", "roc_10", "momentum_10", "tenkan_sen_9", "kijun_sen_26", "senkou_span_a", "senkou_span_b", "sar", "vwap"}},
	},
}

// FeaturesFor returns the feature set for an interval and strategy.
func FeaturesFor(interval, strategy string) (FeatureSet, error) {
	byStrategy, ok := strategyFeatures[interval]
	if !ok {
		return FeatureSet{}, fmt.Errorf("no features defined for interval %q", interval)
	}
	fs, ok := byStrategy[strategy]
	if !ok {
		return FeatureSet{}, fmt.Errorf("no features defined for interval %q and strategy %q", interval, strategy)
	}
	fs.Interval = interval
	fs.Strategy = strategy
	return fs, nil
}

// Intervals returns the supported candle intervals.
func Intervals() []string {
	return []string{"5m", "15m", "30m", "1h", "4h", "1d"}
}

// Strategies returns the supported strategy names.
func Strategies() []string {
	return []string{
		"Trend-Following",
		"Volatility Breakout",
		"Momentum Reversal",
		"Momentum + Volatility",
		"Hybrid",
		"Advanced",
		"Router",
	}
}
