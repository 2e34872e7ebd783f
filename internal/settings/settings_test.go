package settings

import (
	"errors"
	"strings"
	"testing"
)

func fullMap() MapProvider {
	return MapProvider{
		"asset":      "BTCUSDT",
		"interval":   "5m",
		"min_tp":     "1.0",
		"min_sl":     "0.5",
		"leverage":   "5",
		"risk_level": "2",
	}
}

func TestLoadParsesAndConverts(t *testing.T) {
	s, err := Load(fullMap(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Asset != "BTCUSDT" || s.Interval != "5m" || s.Leverage != 5 {
		t.Errorf("settings = %+v", s)
	}
	if s.MinTPPct != 0.01 || s.MinSLPct != 0.005 {
		t.Errorf("percent conversion: tp=%f sl=%f", s.MinTPPct, s.MinSLPct)
	}
	if s.Strategy != "Trend-Following" || s.BookThreshold != 1.6 ||
		s.AutoTrade != AutoTradeOff || s.PromptMode != PromptModeStrict {
		t.Errorf("defaults not applied: %+v", s)
	}
}

func TestLoadCollectsAllMissingKeys(t *testing.T) {
	_, err := Load(MapProvider{}, "")
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T", err)
	}
	for _, key := range []string{"asset", "interval", "min_tp", "min_sl", "leverage", "risk_level"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q missing key %s", err.Error(), key)
		}
	}
}

func TestLoadAssetOverride(t *testing.T) {
	m := fullMap()
	s, err := Load(m, "ETHUSDT")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Asset != "ETHUSDT" {
		t.Errorf("Asset = %q, want override", s.Asset)
	}
}

func TestLoadInvalidLeverage(t *testing.T) {
	m := fullMap()
	m["leverage"] = "zero"
	if _, err := Load(m, ""); err == nil || !strings.Contains(err.Error(), "leverage") {
		t.Errorf("err = %v", err)
	}
	m["leverage"] = "-3"
	if _, err := Load(m, ""); err == nil {
		t.Error("negative leverage accepted")
	}
}

func TestLoadInvalidModeValues(t *testing.T) {
	m := fullMap()
	m["auto_trade"] = "sometimes"
	if _, err := Load(m, ""); err == nil {
		t.Error("bad auto_trade accepted")
	}

	m = fullMap()
	m["prompt_mode"] = "yolo"
	if _, err := Load(m, ""); err == nil {
		t.Error("bad prompt_mode accepted")
	}
}

func TestLoadAutomatedAssets(t *testing.T) {
	m := fullMap()
	m["automated_assets"] = " BTCUSDT, ETHUSDT ,,SOLUSDT "
	s, err := Load(m, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if len(s.AutomatedAssets) != len(want) {
		t.Fatalf("AutomatedAssets = %v", s.AutomatedAssets)
	}
	for i := range want {
		if s.AutomatedAssets[i] != want[i] {
			t.Errorf("AutomatedAssets[%d] = %q, want %q", i, s.AutomatedAssets[i], want[i])
		}
	}
}

func TestChainPrecedence(t *testing.T) {
	c := Chain{
		MapProvider{"asset": "ETHUSDT"},
		MapProvider{"asset": "BTCUSDT", "interval": "1h"},
	}
	if v, _ := c.Get("asset"); v != "ETHUSDT" {
		t.Errorf("asset = %q, want first provider to win", v)
	}
	if v, _ := c.Get("interval"); v != "1h" {
		t.Errorf("interval = %q", v)
	}
	if _, ok := c.Get("leverage"); ok {
		t.Error("unknown key reported as present")
	}
}

func TestMapProviderBlankIsMissing(t *testing.T) {
	m := MapProvider{"asset": "   "}
	if _, ok := m.Get("asset"); ok {
		t.Error("blank value should read as missing")
	}
}
