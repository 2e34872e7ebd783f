package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode        string `yaml:"mode"` // DRY_RUN or LIVE
	PollSeconds int    `yaml:"poll_seconds"`

	Exchange struct {
		Testnet         bool `yaml:"testnet"`
		RateLimitPerSec int  `yaml:"rate_limit_per_sec"`
		TimeoutSeconds  int  `yaml:"timeout_seconds"`
	} `yaml:"exchange"`

	Market struct {
		CandleLimit       int `yaml:"candle_limit"`
		BookDepth         int `yaml:"book_depth"`
		LiquidationHours  int `yaml:"liquidation_lookback_hours"`
		AssetPauseSeconds int `yaml:"asset_pause_seconds"`
	} `yaml:"market"`

	Risk struct {
		PerTradeRiskPct float64 `yaml:"per_trade_risk_pct"`
	} `yaml:"risk"`

	LLM struct {
		Provider       string  `yaml:"provider"` // DEEPSEEK or NOOP
		Model          string  `yaml:"model"`
		Endpoint       string  `yaml:"endpoint"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float32 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"llm"`

	Telegram struct {
		Enabled bool  `yaml:"enabled"`
		ChatID  int64 `yaml:"chat_id"`
	} `yaml:"telegram"`

	// Settings holds the runtime key-value defaults (asset, interval,
	// min_tp, min_sl, leverage, risk_level, ...). Environment variables
	// with the TRADER_ prefix shadow these at cycle time.
	Settings map[string]string `yaml:"settings"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Risk.PerTradeRiskPct <= 0 || c.Risk.PerTradeRiskPct > 100 {
		return fmt.Errorf("risk.per_trade_risk_pct must be between 0-100, got %.2f", c.Risk.PerTradeRiskPct)
	}
	if c.Exchange.RateLimitPerSec <= 0 {
		return fmt.Errorf("exchange.rate_limit_per_sec must be positive, got %d", c.Exchange.RateLimitPerSec)
	}
	if c.Market.CandleLimit < 50 || c.Market.CandleLimit > 500 {
		return fmt.Errorf("market.candle_limit must be within 50-500, got %d", c.Market.CandleLimit)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.Exchange.RateLimitPerSec == 0 {
		c.Exchange.RateLimitPerSec = 10
	}
	if c.Exchange.TimeoutSeconds == 0 {
		c.Exchange.TimeoutSeconds = 10
	}
	if c.Market.CandleLimit == 0 {
		c.Market.CandleLimit = 80
	}
	if c.Market.BookDepth == 0 {
		c.Market.BookDepth = 20
	}
	if c.Market.LiquidationHours == 0 {
		c.Market.LiquidationHours = 24
	}
	if c.Market.AssetPauseSeconds == 0 {
		c.Market.AssetPauseSeconds = 10
	}
	if c.Risk.PerTradeRiskPct == 0 {
		c.Risk.PerTradeRiskPct = 0.3
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "deepseek-chat"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1000
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.1
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 30
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
