package indicator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"llm-perps-trader/internal/logger"
)

// ErrInsufficientData signals that after computing indicators and dropping
// warm-up rows no complete candle row remained.
var ErrInsufficientData = errors.New("insufficient candle history for requested indicators")

// Apply computes every requested indicator column on the series, then
// sanitizes the frame (non-finite values to NaN, forward fill, drop warm-up
// rows). Feature names with an unparseable window are logged and skipped.
// When the feature set is forced, any requested column missing afterwards is
// an error.
func Apply(ctx context.Context, s *Series, fs FeatureSet) error {
	computeEMAs(ctx, s, fs.Features)
	computeMACD(s, fs.Features)
	computeATRs(ctx, s, fs.Features)
	computeBollinger(s, fs.Features)
	computeStds(ctx, s, fs.Features)
	computeRSIs(ctx, s, fs.Features)
	computeStochastics(ctx, s, fs.Features)
	computeMomentums(ctx, s, fs.Features)
	computeROCs(ctx, s, fs.Features)
	computeADXs(ctx, s, fs.Features)
	computeIchimoku(ctx, s, fs.Features)
	computeSAR(s, fs.Features)
	computeVWAP(s, fs.Features)

	s.sanitize()
	if s.Len() == 0 {
		return ErrInsufficientData
	}

	if fs.Force {
		var missing []string
		for _, f := range fs.Features {
			if !s.Has(f) {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("forced features missing after computation: %s", strings.Join(missing, ", "))
		}
	}

	// rsi_14 backs the RSI veto zones regardless of strategy.
	if !s.Has("rsi_14") {
		s.set("rsi_14", rsi(s.Column("close"), 14))
	}
	return nil
}

// window extracts the trailing integer from names like "ema_26" or
// "stoch_k_14".
func window(feature string) (int, error) {
	idx := strings.LastIndex(feature, "_")
	if idx < 0 || idx == len(feature)-1 {
		return 0, fmt.Errorf("no window suffix in %q", feature)
	}
	w, err := strconv.Atoi(feature[idx+1:])
	if err != nil || w <= 0 {
		return 0, fmt.Errorf("bad window suffix in %q", feature)
	}
	return w, nil
}

func warnWindow(ctx context.Context, feature string) {
	logger.Warn(ctx, "Could not extract window for feature, skipping", "feature", feature)
}

func computeEMAs(ctx context.Context, s *Series, features []string) {
	for _, f := range features {
		if !strings.HasPrefix(f, "ema_") {
			continue
		}
		w, err := window(f)
		if err != nil {
			warnWindow(ctx, f)
			continue
		}
		s.set(f, ema(s.Column("close"), w))
	}
}

func computeMACD(s *Series, features []string) {
	if !contains(features, "macd") && !contains(features, "macd_signal") {
		return
	}
	close := s.Column("close")
	ema12 := ema(close, 12)
	ema26 := ema(close, 26)
	macd := make([]float64, len(close))
	for i := range macd {
		macd[i] = ema12[i] - ema26[i]
	}
	s.set("ema_12", ema12)
	s.set("ema_26", ema26)
	s.set("macd", macd)
	s.set("macd_signal", ema(macd, 9))
}

func computeATRs(ctx context.Context, s *Series, features []string) {
	for _, f := range features {
		if !strings.HasPrefix(f, "atr_") {
			continue
		}
		w, err := window(f)
		if err != nil {
			warnWindow(ctx, f)
			continue
		}
		s.set(f, rollingMean(trueRange(s), w))
	}
}

func computeBollinger(s *Series, features []string) {
	if !contains(features, "bollinger_hband") && !contains(features, "bollinger_lband") {
		return
	}
	const w = 20
	close := s.Column("close")
	mavg := rollingMean(close, w)
	std := rollingStd(close, w)
	hband := make([]float64, len(close))
	lband := make([]float64, len(close))
	for i := range close {
		hband[i] = mavg[i] + 2*std[i]
		lband[i] = mavg[i] - 2*std[i]
	}
	s.set("bollinger_hband", hband)
	s.set("bollinger_lband", lband)
}

func computeStds(ctx context.Context, s *Series, features []string) {
	for _, f := range features {
		if !strings.HasPrefix(f, "std_") {
			continue
		}
		w, err := window(f)
		if err != nil {
			warnWindow(ctx, f)
			continue
		}
		s.set(f, rollingStd(s.Column("close"), w))
	}
}

func computeRSIs(ctx context.Context, s *Series, features []string) {
	for _, f := range features {
		if !strings.HasPrefix(f, "rsi_") {
			continue
		}
		w, err := window(f)
		if err != nil {
			warnWindow(ctx, f)
			continue
		}
		s.set(f, rsi(s.Column("close"), w))
	}
}

func computeStochastics(ctx context.Context, s *Series, features []string) {
	done := make(map[int]bool)
	for _, f := range features {
		if !strings.HasPrefix(f, "stoch_") {
			continue
		}
		w, err := window(f)
		if err != nil {
			warnWindow(ctx, f)
			continue
		}
		if done[w] {
			continue
		}
		done[w] = true
		close := s.Column("close")
		hiMax := rollingMax(s.Column("high"), w)
		loMin := rollingMin(s.Column("low"), w)
		k := make([]float64, len(close))
		for i := range close {
			k[i] = (close[i] - loMin[i]) / (hiMax[i] - loMin[i]) * 100
		}
		s.set(fmt.Sprintf("stoch_k_%d", w), k)
		s.set(fmt.Sprintf("stoch_d_%d", w), rollingMean(k, 3))
	}
}

func computeMomentums(ctx context.Context, s *Series, features []string) {
	for _, f := range features {
		if !strings.HasPrefix(f, "momentum_") {
			continue
		}
		w, err := window(f)
		if err != nil {
			warnWindow(ctx, f)
			continue
		}
		s.set(f, diff(s.Column("close"), w))
	}
}

func computeROCs(ctx context.Context, s *Series, features []string) {
	for _, f := range features {
		if !strings.HasPrefix(f, "roc_") {
			continue
		}
		w, err := window(f)
		if err != nil {
			warnWindow(ctx, f)
			continue
		}
		close := s.Column("close")
		roc := make([]float64, len(close))
		for i := range close {
			if i < w {
				roc[i] = math.NaN()
				continue
			}
			roc[i] = (close[i]/close[i-w] - 1) * 100
		}
		s.set(f, roc)
	}
}

func computeADXs(ctx context.Context, s *Series, features []string) {
	for _, f := range features {
		if !strings.HasPrefix(f, "adx") {
			continue
		}
		w := 14
		if strings.Contains(f, "_") {
			parsed, err := window(f)
			if err != nil {
				warnWindow(ctx, f)
				continue
			}
			w = parsed
		}

		high := s.Column("high")
		low := s.Column("low")
		n := len(high)
		plusDM := make([]float64, n)
		minusDM := make([]float64, n)
		for i := 1; i < n; i++ {
			if d := high[i] - high[i-1]; d > 0 {
				plusDM[i] = d
			}
			if d := low[i] - low[i-1]; d < 0 {
				minusDM[i] = -d
			}
		}
		tr := trueRange(s)
		avgTR := rollingMean(tr, w)
		plusDI := make([]float64, n)
		minusDI := make([]float64, n)
		avgPlus := rollingMean(plusDM, w)
		avgMinus := rollingMean(minusDM, w)
		dx := make([]float64, n)
		for i := 0; i < n; i++ {
			plusDI[i] = 100 * avgPlus[i] / avgTR[i]
			minusDI[i] = 100 * avgMinus[i] / avgTR[i]
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / (plusDI[i] + minusDI[i])
		}
		s.set(f, rollingMean(dx, w))
	}
}

func computeIchimoku(ctx context.Context, s *Series, features []string) {
	line := func(w int) []float64 {
		hiMax := rollingMax(s.Column("high"), w)
		loMin := rollingMin(s.Column("low"), w)
		out := make([]float64, len(hiMax))
		for i := range out {
			out[i] = (hiMax[i] + loMin[i]) / 2
		}
		return out
	}

	for _, f := range features {
		switch {
		case strings.HasPrefix(f, "tenkan_sen_"), strings.HasPrefix(f, "kijun_sen_"):
			w, err := window(f)
			if err != nil {
				warnWindow(ctx, f)
				continue
			}
			s.set(f, line(w))
		case f == "senkou_span_a":
			tenkan := s.Column("tenkan_sen_9")
			if tenkan == nil {
				tenkan = line(9)
			}
			kijun := s.Column("kijun_sen_26")
			if kijun == nil {
				kijun = line(26)
			}
			span := make([]float64, len(tenkan))
			for i := range span {
				span[i] = (tenkan[i] + kijun[i]) / 2
			}
			s.set(f, shiftForward(span, 26))
		case f == "senkou_span_b":
			s.set(f, shiftForward(line(52), 26))
		}
	}
}

// computeSAR runs the sequential parabolic SAR with acceleration 0.02
// stepped up to 0.2, flipping trend when price crosses the stop.
func computeSAR(s *Series, features []string) {
	if !contains(features, "sar") {
		return
	}
	high := s.Column("high")
	low := s.Column("low")
	n := len(high)
	out := make([]float64, n)
	if n == 0 {
		s.set("sar", out)
		return
	}
	out[0] = math.NaN()

	af := 0.02
	const maxAF = 0.2
	ep := high[0]
	sar := low[0]
	trendUp := true
	for i := 1; i < n; i++ {
		sar = sar + af*(ep-sar)
		if trendUp {
			if low[i] < sar {
				trendUp = false
				sar = ep
				ep = low[i]
				af = 0.02
			}
		} else {
			if high[i] > sar {
				trendUp = true
				sar = ep
				ep = high[i]
				af = 0.02
			}
		}
		if af < maxAF {
			af += 0.02
		}
		out[i] = sar
	}
	s.set("sar", out)
}

func computeVWAP(s *Series, features []string) {
	if !contains(features, "vwap") {
		return
	}
	high := s.Column("high")
	low := s.Column("low")
	close := s.Column("close")
	volume := s.Column("volume")
	out := make([]float64, len(close))
	var cumPV, cumV float64
	for i := range close {
		typical := (high[i] + low[i] + close[i]) / 3
		cumPV += volume[i] * typical
		cumV += volume[i]
		out[i] = cumPV / cumV
	}
	s.set("vwap", out)
}

// --- column math ---

func contains(features []string, name string) bool {
	for _, f := range features {
		if f == name {
			return true
		}
	}
	return false
}

// ema is the recursive exponential mean with alpha 2/(span+1), seeded at the
// first value (no SMA warm-up).
func ema(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rollingMean requires a full window; earlier rows, and any window holding
// a NaN, come out NaN.
func rollingMean(vals []float64, w int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i < w-1 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for j := i - w + 1; j <= i; j++ {
			sum += vals[j]
		}
		out[i] = sum / float64(w)
	}
	return out
}

// rollingMeanMin1 averages whatever the window holds so far (min_periods 1).
func rollingMeanMin1(vals []float64, w int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		start := i - w + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for j := start; j <= i; j++ {
			sum += vals[j]
		}
		out[i] = sum / float64(i-start+1)
	}
	return out
}

// rollingStd is the sample standard deviation over a full window.
func rollingStd(vals []float64, w int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i < w-1 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for j := i - w + 1; j <= i; j++ {
			sum += vals[j]
		}
		mean := sum / float64(w)
		var sq float64
		for j := i - w + 1; j <= i; j++ {
			d := vals[j] - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(w-1))
	}
	return out
}

func rollingMax(vals []float64, w int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i < w-1 {
			out[i] = math.NaN()
			continue
		}
		m := vals[i-w+1]
		for j := i - w + 2; j <= i; j++ {
			if vals[j] > m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

func rollingMin(vals []float64, w int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i < w-1 {
			out[i] = math.NaN()
			continue
		}
		m := vals[i-w+1]
		for j := i - w + 2; j <= i; j++ {
			if vals[j] < m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

func diff(vals []float64, n int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i < n {
			out[i] = math.NaN()
			continue
		}
		out[i] = vals[i] - vals[i-n]
	}
	return out
}

// shiftForward moves values n rows later, leaving NaN at the head.
func shiftForward(vals []float64, n int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		if i < n {
			out[i] = math.NaN()
			continue
		}
		out[i] = vals[i-n]
	}
	return out
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|); the first
// row has no previous close and falls back to high-low.
func trueRange(s *Series) []float64 {
	high := s.Column("high")
	low := s.Column("low")
	close := s.Column("close")
	out := make([]float64, len(high))
	for i := range high {
		tr := high[i] - low[i]
		if i > 0 {
			if d := math.Abs(high[i] - close[i-1]); d > tr {
				tr = d
			}
			if d := math.Abs(low[i] - close[i-1]); d > tr {
				tr = d
			}
		}
		out[i] = tr
	}
	return out
}

// rsi computes Wilder-style RSI over simple rolling means, averaging from
// the first bar so early rows are defined. A window with no losses reads
// 100.
func rsi(close []float64, w int) []float64 {
	n := len(close)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := close[i] - close[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := rollingMeanMin1(gains, w)
	avgLoss := rollingMeanMin1(losses, w)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if avgLoss[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
