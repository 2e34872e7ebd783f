package llm

import (
	"encoding/json"
	"strings"

	"llm-perps-trader/internal/types"
)

// rawJudgment is the wire shape requested from the model.
type rawJudgment struct {
	Side       string   `json:"side"`
	Approved   *bool    `json:"approved"`
	Entry      float64  `json:"entry"`
	TakeProfit float64  `json:"take_profit"`
	StopLoss   float64  `json:"stop_loss"`
	Resume     *string  `json:"resume_of_analysis"`
}

// ParseJudgment recovers a judgment from raw model output. It first tries
// the JSON between the outermost braces; when that fails it falls back to a
// keyword scan, and when even that finds nothing the judgment is an
// unapproved NONE tagged unrecognized. ParseJudgment never returns an error:
// unusable output is a rejection, not a crash.
func ParseJudgment(content string) types.Judgment {
	if j, ok := parseJSON(content); ok {
		return j
	}
	return parseFallback(content)
}

func parseJSON(content string) (types.Judgment, bool) {
	candidate := strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		candidate = content[start : end+1]
	}

	var raw rawJudgment
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return types.Judgment{}, false
	}
	// Required fields; a blob without them is not a judgment.
	if raw.Side == "" || raw.Approved == nil || raw.Resume == nil {
		return types.Judgment{}, false
	}

	side := types.Side(strings.ToUpper(strings.TrimSpace(raw.Side)))
	if side != types.SideBuy && side != types.SideSell {
		side = types.SideNone
	}

	return types.Judgment{
		Side:       side,
		Approved:   *raw.Approved,
		Entry:      raw.Entry,
		TakeProfit: raw.TakeProfit,
		StopLoss:   raw.StopLoss,
		Rationale:  *raw.Resume,
		Origin:     types.OriginParsed,
	}, true
}

// parseFallback scans free text for a direction plus an approval word.
func parseFallback(content string) types.Judgment {
	lower := strings.ToLower(content)
	approvedWord := strings.Contains(lower, "approved") || strings.Contains(lower, "true")

	switch {
	case strings.Contains(lower, "buy") && approvedWord:
		return types.Judgment{
			Side:      types.SideBuy,
			Approved:  true,
			Rationale: "Analysis approved (fallback after JSON parse error)",
			Origin:    types.OriginFallback,
		}
	case strings.Contains(lower, "sell") && approvedWord:
		return types.Judgment{
			Side:      types.SideSell,
			Approved:  true,
			Rationale: "Analysis approved (fallback after JSON parse error)",
			Origin:    types.OriginFallback,
		}
	default:
		return types.Judgment{
			Side:      types.SideNone,
			Approved:  false,
			Rationale: "Signal rejected (unrecognized model output)",
			Origin:    types.OriginNone,
		}
	}
}
