package llm

import (
	"fmt"
	"strings"

	"llm-perps-trader/internal/decision"
	"llm-perps-trader/internal/settings"
	"llm-perps-trader/internal/types"
)

// responseFormatStrict is the JSON shape requested in strict mode, with the
// checklist the model should fill into its analysis summary.
const responseFormatStrict = `{
  "side": "BUY" or "SELL" or "NONE",
  "approved": true or false,
  "entry": 0.0,
  "take_profit": 0.0,
  "stop_loss": 0.0,
  "resume_of_analysis": "1. Structural requirements (one line per item, pass/fail)\n2. Technical analysis (brief)\n3. RSI value and context\n4. Other risks (funding, volume, liquidations)\n5. Conclusion"
}`

const responseFormatPermissive = `{
  "side": "BUY" or "SELL" or "NONE",
  "approved": true or false,
  "entry": 0.0,
  "take_profit": 0.0,
  "stop_loss": 0.0,
  "resume_of_analysis": "numbered sections separated by blank lines, neutral tone"
}`

// BuildPrompt renders the judgment prompt for one snapshot. Strict mode
// spells out the hard structural rules the decision engine will enforce
// anyway, so the model's verdict tends to agree with the veto layer.
// Permissive mode sends the user's prompt and raw market data only.
func BuildPrompt(sett settings.SignalSettings, snap *types.Snapshot) string {
	if sett.PromptMode == settings.PromptModePermissive {
		return buildPermissive(sett, snap)
	}
	return buildStrict(sett, snap)
}

func buildStrict(sett settings.SignalSettings, snap *types.Snapshot) string {
	var b strings.Builder

	if sett.PromptText != "" {
		b.WriteString(sett.PromptText)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, `CRITICAL STRUCTURAL RULES - verify before approving.

For a BUY signal, ALL of these must hold:
1. Bullish structure: last 3 lows ascending (non-decreasing)
2. Strong order book: total bids >= %.2fx total asks (top 15 levels)
3. RSI not in the danger zone: RSI < 80
4. Live price aligned: current price not more than 0.1%% below the candle close

For a SELL signal, ALL of these must hold:
1. Bearish structure: last 3 highs descending (non-increasing)
2. Strong order book: total asks >= %.2fx total bids (top 15 levels)
3. RSI not in the danger zone: RSI > 20
4. Live price aligned: current price not more than 0.1%% above the candle close

About RSI:
- RSI 70-80: warning (moderately overbought), weigh the context
- RSI 20-30: warning (moderately oversold), weigh the context
- RSI >80 or <20: VETO, reject the signal
- RSI-price divergences carry more weight than the absolute level

Do not approve if any structural condition fails.
Secondary indicators (EMA, MACD, ...) support the decision, they never override these rules.

`, sett.BookThreshold, sett.BookThreshold)

	fmt.Fprintf(&b, `CURRENT STRUCTURAL DATA:

Price structure:
- Last 3 lows: %.6f, %.6f, %.6f (ascending required for BUY: %s)
- Last 3 highs: %.6f, %.6f, %.6f (descending required for SELL: %s)

Order book (top 15 levels):
- Total bids: %.2f
- Total asks: %.2f
- Bids/asks ratio: %.2fx (>= %.2fx required for BUY)
- Asks/bids ratio: %.2fx (>= %.2fx required for SELL)

Momentum:
- RSI: %s
- Live price alignment: %+.3f%% (BUY: >= -0.1%%, SELL: <= +0.1%%)

`,
		snap.Last3Lows[0], snap.Last3Lows[1], snap.Last3Lows[2], yesNo(decision.IsBuyStructure(snap.Last3Lows)),
		snap.Last3Highs[0], snap.Last3Highs[1], snap.Last3Highs[2], yesNo(decision.IsSellStructure(snap.Last3Highs)),
		snap.BidVolume, snap.AskVolume,
		snap.BidImbalance, sett.BookThreshold,
		snap.AskImbalance, sett.BookThreshold,
		rsiText(snap), snap.PriceDeltaPct,
	)

	b.WriteString(marketContext(sett, snap, true))

	fmt.Fprintf(&b, `
FINAL INSTRUCTION:
1. Check the structural requirements above first.
2. Only approve when every critical requirement for BUY or SELL holds.
3. RSI: absolute veto above 80 (BUY) or below 20 (SELL); 70-80 and 20-30 are warnings, not vetoes.
4. Look for RSI-price divergences in the candle history.
5. Use technical analysis to support the verdict.

Respond EXCLUSIVELY with this JSON format:
%s`, responseFormatStrict)

	return b.String()
}

func buildPermissive(sett settings.SignalSettings, snap *types.Snapshot) string {
	var b strings.Builder

	if sett.PromptText != "" {
		b.WriteString(sett.PromptText)
		b.WriteString("\n\n")
	}

	b.WriteString(marketContext(sett, snap, false))

	fmt.Fprintf(&b, `
FINAL INSTRUCTION:
Analyze the signal using the market data above.

Respond EXCLUSIVELY with this JSON format:
%s`, responseFormatPermissive)

	return b.String()
}

func marketContext(sett settings.SignalSettings, snap *types.Snapshot, full bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Asset: %s\n", snap.Symbol)
	fmt.Fprintf(&b, "Last candle close: %.6f\n", snap.LatestClose)
	if full {
		fmt.Fprintf(&b, "Live price (last trade): %.6f\n", snap.LivePrice)
		fmt.Fprintf(&b, "Intra-candle delta: %+.3f%%\n", snap.PriceDeltaPct)
	}
	fmt.Fprintf(&b, "Available balance: %.2f USDT\n", snap.Balance)
	fmt.Fprintf(&b, "Leverage: %dx\n", snap.Risk.Leverage)
	fmt.Fprintf(&b, "Risk level: %g%%\n", snap.Risk.RiskLevelPct)
	if full {
		fmt.Fprintf(&b, "Current funding rate: %.6f\n", snap.FundingRate)
		fmt.Fprintf(&b, "Nearby liquidations (within 2%%): %d\n", snap.NearbyLiquidations)
		b.WriteString("\nORDER BOOK (top levels):\n")
		b.WriteString(formatBook(snap.Book))
	}
	fmt.Fprintf(&b, "\nCANDLE HISTORY (%d rows):\n%s", snap.Rows, snap.HistoryCSV)
	return b.String()
}

func formatBook(book types.OrderBook) string {
	var b strings.Builder
	b.WriteString("Top bids (price, quantity):\n")
	for i, lvl := range book.Bids {
		if i >= 15 {
			break
		}
		fmt.Fprintf(&b, "%g,%g\n", lvl.Price, lvl.Qty)
	}
	b.WriteString("\nTop asks (price, quantity):\n")
	for i, lvl := range book.Asks {
		if i >= 15 {
			break
		}
		fmt.Fprintf(&b, "%g,%g\n", lvl.Price, lvl.Qty)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

func rsiText(snap *types.Snapshot) string {
	if !snap.HasRSI {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", snap.RSI)
}
