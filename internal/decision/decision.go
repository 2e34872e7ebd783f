package decision

import (
	"fmt"

	"llm-perps-trader/internal/settings"
	"llm-perps-trader/internal/types"
)

// priceAlignTolerancePct is how far the live price may move against the
// trade direction, relative to the candle close, before the signal is vetoed.
const priceAlignTolerancePct = 0.1

// IsBuyStructure reports whether the last three lows are non-decreasing.
func IsBuyStructure(lows [3]float64) bool {
	return lows[0] <= lows[1] && lows[1] <= lows[2]
}

// IsSellStructure reports whether the last three highs are non-increasing.
func IsSellStructure(highs [3]float64) bool {
	return highs[0] >= highs[1] && highs[1] >= highs[2]
}

// rsiZone classifies the RSI for a proposed direction.
type rsiZone struct {
	veto    bool
	warning bool
	status  string
}

func classifyRSI(snap *types.Snapshot, side types.Side) rsiZone {
	if !snap.HasRSI {
		return rsiZone{status: "OK"}
	}
	rsi := snap.RSI
	switch side {
	case types.SideBuy:
		switch {
		case rsi > 80:
			return rsiZone{veto: true, status: fmt.Sprintf("VETO - RSI %.1f > 80 (dangerous extreme)", rsi)}
		case rsi > 70:
			return rsiZone{warning: true, status: fmt.Sprintf("WARNING - RSI %.1f in 70-80 (moderately overbought)", rsi)}
		default:
			return rsiZone{status: fmt.Sprintf("OK - RSI %.1f < 70", rsi)}
		}
	case types.SideSell:
		switch {
		case rsi < 20:
			return rsiZone{veto: true, status: fmt.Sprintf("VETO - RSI %.1f < 20 (dangerous extreme)", rsi)}
		case rsi < 30:
			return rsiZone{warning: true, status: fmt.Sprintf("WARNING - RSI %.1f in 20-30 (moderately oversold)", rsi)}
		default:
			return rsiZone{status: fmt.Sprintf("OK - RSI %.1f > 30", rsi)}
		}
	}
	return rsiZone{status: "OK"}
}

// Evaluate reconciles the untrusted judgment with the structural veto rules
// and computes final trade levels. It is a pure function of its inputs: the
// same snapshot and judgment always yield the same decision.
//
// In strict mode every veto rule is checked and ALL failures are collected,
// and the entry/TP/SL come from the engine's own formulas, never from the
// model. Permissive mode trusts the model's verdict and levels, deriving
// levels only when the model omitted them.
func Evaluate(snap *types.Snapshot, judgment types.Judgment, mode string) types.Decision {
	if mode == settings.PromptModePermissive {
		return evaluatePermissive(snap, judgment)
	}
	return evaluateStrict(snap, judgment)
}

func evaluateStrict(snap *types.Snapshot, judgment types.Judgment) types.Decision {
	d := types.Decision{
		Side:      types.SideNone,
		Entry:     snap.LatestClose,
		Rationale: judgment.Rationale,
		RSIStatus: "OK",
	}
	d.TakeProfit = d.Entry
	d.StopLoss = d.Entry

	zone := classifyRSI(snap, judgment.Side)
	d.RSIStatus = zone.status

	switch {
	case judgment.Side == types.SideBuy && judgment.Approved:
		if !IsBuyStructure(snap.Last3Lows) {
			d.RejectionReasons = append(d.RejectionReasons,
				fmt.Sprintf("Structure not bullish (lows %.6f, %.6f, %.6f not ascending)",
					snap.Last3Lows[0], snap.Last3Lows[1], snap.Last3Lows[2]))
		}
		if snap.BidImbalance < snap.Risk.BookThreshold {
			d.RejectionReasons = append(d.RejectionReasons,
				fmt.Sprintf("Order book imbalance insufficient (%.2fx < %.2fx)",
					snap.BidImbalance, snap.Risk.BookThreshold))
		}
		if zone.veto {
			d.RejectionReasons = append(d.RejectionReasons,
				fmt.Sprintf("RSI in dangerous extreme (%.1f > 80)", snap.RSI))
		} else if zone.warning {
			d.Warnings = append(d.Warnings,
				fmt.Sprintf("RSI elevated (%.1f), trade with caution", snap.RSI))
		}
		if snap.PriceDeltaPct < -priceAlignTolerancePct {
			d.RejectionReasons = append(d.RejectionReasons,
				fmt.Sprintf("Live price falling (%.2f%% < -%.1f%%)", snap.PriceDeltaPct, priceAlignTolerancePct))
		}

		if len(d.RejectionReasons) == 0 {
			d.Approved = true
			d.Side = types.SideBuy
			d.StopLoss, d.TakeProfit = buyLevels(d.Entry, snap.Last3Lows, snap.Risk)
		}

	case judgment.Side == types.SideSell && judgment.Approved:
		if !IsSellStructure(snap.Last3Highs) {
			d.RejectionReasons = append(d.RejectionReasons,
				fmt.Sprintf("Structure not bearish (highs %.6f, %.6f, %.6f not descending)",
					snap.Last3Highs[0], snap.Last3Highs[1], snap.Last3Highs[2]))
		}
		if snap.AskImbalance < snap.Risk.BookThreshold {
			d.RejectionReasons = append(d.RejectionReasons,
				fmt.Sprintf("Order book ask pressure insufficient (%.2fx < %.2fx)",
					snap.AskImbalance, snap.Risk.BookThreshold))
		}
		if zone.veto {
			d.RejectionReasons = append(d.RejectionReasons,
				fmt.Sprintf("RSI in dangerous extreme (%.1f < 20)", snap.RSI))
		} else if zone.warning {
			d.Warnings = append(d.Warnings,
				fmt.Sprintf("RSI depressed (%.1f), trade with caution", snap.RSI))
		}
		if snap.PriceDeltaPct > priceAlignTolerancePct {
			d.RejectionReasons = append(d.RejectionReasons,
				fmt.Sprintf("Live price rising (%.2f%% > %.1f%%)", snap.PriceDeltaPct, priceAlignTolerancePct))
		}

		if len(d.RejectionReasons) == 0 {
			d.Approved = true
			d.Side = types.SideSell
			d.StopLoss, d.TakeProfit = sellLevels(d.Entry, snap.Last3Highs, snap.Risk)
		}

	default:
		if judgment.Side != types.SideNone {
			d.RejectionReasons = append(d.RejectionReasons, "Judgment source did not approve the signal")
		} else {
			d.RejectionReasons = append(d.RejectionReasons, "Judgment source found no clear direction")
		}
	}

	d.AlignmentScore = alignmentScore(snap, judgment.Side, zone)
	return d
}

func evaluatePermissive(snap *types.Snapshot, judgment types.Judgment) types.Decision {
	d := types.Decision{
		Side:      types.SideNone,
		Entry:     snap.LatestClose,
		Rationale: judgment.Rationale,
		RSIStatus: classifyRSI(snap, judgment.Side).status,
	}
	d.TakeProfit = d.Entry
	d.StopLoss = d.Entry

	if !judgment.Approved || (judgment.Side != types.SideBuy && judgment.Side != types.SideSell) {
		if judgment.Side != types.SideNone {
			d.RejectionReasons = append(d.RejectionReasons, "Judgment source did not approve the signal")
		} else {
			d.RejectionReasons = append(d.RejectionReasons, "Judgment source found no clear direction")
		}
		d.AlignmentScore = alignmentScore(snap, judgment.Side, classifyRSI(snap, judgment.Side))
		return d
	}

	d.Approved = true
	d.Side = judgment.Side

	// Trust the model's levels when plausible; derive them otherwise.
	if validLevels(judgment, d.Entry) {
		d.TakeProfit = judgment.TakeProfit
		d.StopLoss = judgment.StopLoss
	} else if judgment.Side == types.SideBuy {
		d.StopLoss, d.TakeProfit = buyLevels(d.Entry, snap.Last3Lows, snap.Risk)
	} else {
		d.StopLoss, d.TakeProfit = sellLevels(d.Entry, snap.Last3Highs, snap.Risk)
	}

	d.AlignmentScore = alignmentScore(snap, judgment.Side, classifyRSI(snap, judgment.Side))
	return d
}

func validLevels(j types.Judgment, entry float64) bool {
	if j.TakeProfit <= 0 || j.StopLoss <= 0 {
		return false
	}
	if j.Side == types.SideBuy {
		return j.StopLoss < entry && j.TakeProfit > entry
	}
	return j.StopLoss > entry && j.TakeProfit < entry
}

// buyLevels anchors the stop under the recent swing low with a small buffer,
// widened to the configured minimum distance; the target keeps at least a
// 1:3 risk-reward and the configured minimum take-profit distance.
func buyLevels(entry float64, lows [3]float64, risk types.RiskParams) (stopLoss, takeProfit float64) {
	swingLow := min3(lows)
	stopLoss = minF(swingLow*0.999, entry-entry*risk.MinSLPct)
	takeProfit = entry + maxF(3*(entry-stopLoss), entry*risk.MinTPPct)
	return stopLoss, takeProfit
}

func sellLevels(entry float64, highs [3]float64, risk types.RiskParams) (stopLoss, takeProfit float64) {
	swingHigh := max3(highs)
	stopLoss = maxF(swingHigh*1.001, entry+entry*risk.MinSLPct)
	takeProfit = entry - maxF(3*(stopLoss-entry), entry*risk.MinTPPct)
	return stopLoss, takeProfit
}

// alignmentScore counts how many structural checks agree with the proposed
// direction, 25 points each. Only an RSI veto costs points, a warning does
// not. The score is observability only.
func alignmentScore(snap *types.Snapshot, side types.Side, zone rsiZone) int {
	score := 0
	switch side {
	case types.SideBuy:
		if IsBuyStructure(snap.Last3Lows) {
			score += 25
		}
		if snap.BidImbalance >= snap.Risk.BookThreshold {
			score += 25
		}
		if !zone.veto {
			score += 25
		}
		if snap.PriceDeltaPct >= -priceAlignTolerancePct {
			score += 25
		}
	case types.SideSell:
		if IsSellStructure(snap.Last3Highs) {
			score += 25
		}
		if snap.AskImbalance >= snap.Risk.BookThreshold {
			score += 25
		}
		if !zone.veto {
			score += 25
		}
		if snap.PriceDeltaPct <= priceAlignTolerancePct {
			score += 25
		}
	}
	return score
}

func min3(v [3]float64) float64 {
	m := v[0]
	if v[1] < m {
		m = v[1]
	}
	if v[2] < m {
		m = v[2]
	}
	return m
}

func max3(v [3]float64) float64 {
	m := v[0]
	if v[1] > m {
		m = v[1]
	}
	if v[2] > m {
		m = v[2]
	}
	return m
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
