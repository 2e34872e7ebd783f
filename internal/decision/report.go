package decision

import (
	"fmt"
	"strings"

	"llm-perps-trader/internal/types"
)

// Report renders the user-facing summary of a decision, sent to the
// notification channel after every cycle.
func Report(snap *types.Snapshot, d types.Decision) string {
	if d.Approved {
		return approvedReport(snap, d)
	}
	return rejectedReport(d)
}

func approvedReport(snap *types.Snapshot, d types.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TRADE APPROVED (%s)\n", d.Side)
	fmt.Fprintf(&b, "- Symbol: %s\n", snap.Symbol)
	fmt.Fprintf(&b, "- Entry: %.6f\n", d.Entry)
	fmt.Fprintf(&b, "- Take profit: %.6f\n", d.TakeProfit)
	fmt.Fprintf(&b, "- Stop loss: %.6f\n", d.StopLoss)

	if d.Side == types.SideBuy {
		fmt.Fprintf(&b, "- Bullish structure confirmed: %.6f <= %.6f <= %.6f\n",
			snap.Last3Lows[0], snap.Last3Lows[1], snap.Last3Lows[2])
		fmt.Fprintf(&b, "- Strong bid demand: %.1fx more bids than asks\n", snap.BidImbalance)
	} else {
		fmt.Fprintf(&b, "- Bearish structure confirmed: %.6f >= %.6f >= %.6f\n",
			snap.Last3Highs[0], snap.Last3Highs[1], snap.Last3Highs[2])
		fmt.Fprintf(&b, "- Strong ask supply: %.1fx more asks than bids\n", snap.AskImbalance)
	}
	fmt.Fprintf(&b, "- RSI: %s\n", d.RSIStatus)
	fmt.Fprintf(&b, "- Live price aligned: %+.2f%% from close\n", snap.PriceDeltaPct)
	b.WriteString("- TP/SL computed with 1:3 risk management")

	if len(d.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings: %s", strings.Join(d.Warnings, "; "))
	}
	if d.Rationale != "" {
		fmt.Fprintf(&b, "\nAnalysis: %s", d.Rationale)
	}
	return b.String()
}

func rejectedReport(d types.Decision) string {
	var b strings.Builder
	b.WriteString("TRADE REJECTED")
	if d.Side != types.SideNone {
		fmt.Fprintf(&b, " (%s)", d.Side)
	}
	b.WriteByte('\n')
	for _, r := range d.RejectionReasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	if d.Rationale != "" {
		fmt.Fprintf(&b, "Analysis: %s\n", d.Rationale)
	}
	b.WriteString("-> Waiting for structural alignment.")
	return b.String()
}
