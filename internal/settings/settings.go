package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Provider is the seam over the external key-value settings store. The core
// never reads process-wide state directly; tests inject a MapProvider with
// fixed values.
type Provider interface {
	Get(key string) (string, bool)
}

// MapProvider serves settings from an in-memory map.
type MapProvider map[string]string

func (m MapProvider) Get(key string) (string, bool) {
	v, ok := m[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// EnvProvider serves settings from environment variables, uppercased with a
// prefix (e.g. asset -> TRADER_ASSET).
type EnvProvider struct {
	Prefix string
}

func (e EnvProvider) Get(key string) (string, bool) {
	v := os.Getenv(e.Prefix + strings.ToUpper(key))
	if strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Chain consults providers in order and returns the first hit. Used to let a
// runtime override file shadow config defaults.
type Chain []Provider

func (c Chain) Get(key string) (string, bool) {
	for _, p := range c {
		if v, ok := p.Get(key); ok {
			return v, true
		}
	}
	return "", false
}

// AutoTrade modes.
const (
	AutoTradeOff       = "off"
	AutoTradeOn        = "on"
	AutoTradeAutomatic = "automatic"
)

// Prompt modes.
const (
	PromptModeStrict     = "strict"
	PromptModePermissive = "permissive"
)

// SignalSettings are the validated per-cycle settings. All values arrive as
// untyped strings from the store and are parsed exactly once, before any
// network call is made.
type SignalSettings struct {
	Asset    string
	Interval string
	Strategy string

	MinTPPct     float64 // fraction of entry (store holds percent)
	MinSLPct     float64
	Leverage     int
	RiskLevelPct float64

	BookThreshold float64
	AutoTrade     string
	PromptMode    string
	PromptText    string
	ShowPrompt    bool
	Model         string

	AutomatedAssets []string
}

// ValidationError enumerates every missing or invalid key found during
// parsing, so the user can fix them all at once.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing settings: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// Load reads and validates the settings for one signal cycle. assetOverride,
// when non-empty, replaces the stored asset (used by the auto-trade loop).
func Load(p Provider, assetOverride string) (SignalSettings, error) {
	verr := &ValidationError{}

	s := SignalSettings{
		Asset:    assetOverride,
		Strategy: "Trend-Following",

		BookThreshold: 1.6,
		AutoTrade:     AutoTradeOff,
		PromptMode:    PromptModeStrict,
	}

	if s.Asset == "" {
		s.Asset = requireString(p, "asset", verr)
	}
	s.Interval = requireString(p, "interval", verr)

	if minTP := requireFloat(p, "min_tp", verr); minTP > 0 {
		s.MinTPPct = minTP / 100
	}
	if minSL := requireFloat(p, "min_sl", verr); minSL > 0 {
		s.MinSLPct = minSL / 100
	}
	s.RiskLevelPct = requireFloat(p, "risk_level", verr)

	if raw, ok := p.Get("leverage"); !ok {
		verr.Missing = append(verr.Missing, "leverage")
	} else if lev, err := strconv.Atoi(strings.TrimSpace(raw)); err != nil || lev <= 0 {
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("leverage (%q)", raw))
	} else {
		s.Leverage = lev
	}

	if v, ok := p.Get("indicator"); ok {
		s.Strategy = v
	}
	if raw, ok := p.Get("order_book_threshold"); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil || f <= 0 {
			verr.Invalid = append(verr.Invalid, fmt.Sprintf("order_book_threshold (%q)", raw))
		} else {
			s.BookThreshold = f
		}
	}
	if v, ok := p.Get("auto_trade"); ok {
		switch mode := strings.ToLower(strings.TrimSpace(v)); mode {
		case AutoTradeOff, AutoTradeOn, AutoTradeAutomatic:
			s.AutoTrade = mode
		default:
			verr.Invalid = append(verr.Invalid, fmt.Sprintf("auto_trade (%q)", v))
		}
	}
	if v, ok := p.Get("prompt_mode"); ok {
		switch mode := strings.ToLower(strings.TrimSpace(v)); mode {
		case PromptModeStrict, PromptModePermissive:
			s.PromptMode = mode
		default:
			verr.Invalid = append(verr.Invalid, fmt.Sprintf("prompt_mode (%q)", v))
		}
	}
	if v, ok := p.Get("prompt_text"); ok {
		s.PromptText = v
	}
	if v, ok := p.Get("show_prompt"); ok {
		s.ShowPrompt = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v, ok := p.Get("llm_model"); ok {
		s.Model = v
	}
	if v, ok := p.Get("automated_assets"); ok {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				s.AutomatedAssets = append(s.AutomatedAssets, a)
			}
		}
	}

	if !verr.empty() {
		return SignalSettings{}, verr
	}
	return s, nil
}

func requireString(p Provider, key string, verr *ValidationError) string {
	v, ok := p.Get(key)
	if !ok {
		verr.Missing = append(verr.Missing, key)
		return ""
	}
	return strings.TrimSpace(v)
}

func requireFloat(p Provider, key string, verr *ValidationError) float64 {
	raw, ok := p.Get(key)
	if !ok {
		verr.Missing = append(verr.Missing, key)
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f <= 0 {
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("%s (%q)", key, raw))
		return 0
	}
	return f
}
