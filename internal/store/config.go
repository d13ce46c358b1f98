package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RiskConfig bounds what the risk guard will let through to the brokerage.
type RiskConfig struct {
	MinConfidence       float64 `yaml:"min_confidence"`
	MaxPositionQty      int64   `yaml:"max_position_qty"`
	AllowPartialFills   bool    `yaml:"allow_partial_fills"`
	CapBuyToBuyingPower bool    `yaml:"cap_buy_to_buying_power"`
}

type Config struct {
	Mode        string   `yaml:"mode"`
	PollSeconds int      `yaml:"poll_seconds"`
	Watchlist   []string `yaml:"watchlist"`

	Aggregator struct {
		EngineTimeoutSeconds int     `yaml:"engine_timeout_seconds"`
		MaxFailureFraction   float64 `yaml:"max_failure_fraction"`
		// HistoryDays sizes the data window when a symbol has no prior
		// successful cycle to anchor on.
		HistoryDays int `yaml:"history_days"`
	} `yaml:"aggregator"`

	Risk RiskConfig `yaml:"risk"`

	LLM struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
		Retry       struct {
			MaxAttempts   int `yaml:"max_attempts"`
			InitialWaitMS int `yaml:"initial_wait_ms"`
			MaxWaitMS     int `yaml:"max_wait_ms"`
		} `yaml:"retry"`
	} `yaml:"llm"`

	Executor struct {
		SubmitTimeoutSeconds int `yaml:"submit_timeout_seconds"`
		PollIntervalMS       int `yaml:"poll_interval_ms"`
	} `yaml:"executor"`

	News struct {
		Enabled        bool `yaml:"enabled"`
		MaxHeadlines   int  `yaml:"max_headlines"`
		ScrapeArticles bool `yaml:"scrape_articles"`
	} `yaml:"news"`

	// SuppressAfterFailures disables a symbol after this many consecutive
	// failed cycles, to stop infinite retries against a dead provider.
	SuppressAfterFailures int `yaml:"suppress_after_failures"`
}

func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Aggregator.EngineTimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Executor.SubmitTimeoutSeconds) * time.Second
}

func (c *Config) StatusPollInterval() time.Duration {
	return time.Duration(c.Executor.PollIntervalMS) * time.Millisecond
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Watchlist) == 0 {
		return errors.New("watchlist cannot be empty")
	}
	if c.Aggregator.MaxFailureFraction <= 0 || c.Aggregator.MaxFailureFraction > 1 {
		return fmt.Errorf("aggregator.max_failure_fraction must be in (0,1], got %.2f", c.Aggregator.MaxFailureFraction)
	}
	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 1 {
		return fmt.Errorf("risk.min_confidence must be in [0,1], got %.2f", c.Risk.MinConfidence)
	}
	if c.Risk.MaxPositionQty <= 0 {
		return fmt.Errorf("risk.max_position_qty must be positive, got %d", c.Risk.MaxPositionQty)
	}
	if c.LLM.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("llm.retry.max_attempts must be positive, got %d", c.LLM.Retry.MaxAttempts)
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
		c.PollSeconds = 300
	}
	if c.Aggregator.EngineTimeoutSeconds == 0 {
		c.Aggregator.EngineTimeoutSeconds = 20
	}
	if c.Aggregator.MaxFailureFraction == 0 {
		c.Aggregator.MaxFailureFraction = 0.5
	}
	if c.Aggregator.HistoryDays == 0 {
		c.Aggregator.HistoryDays = 7
	}
	if c.LLM.Retry.MaxAttempts == 0 {
		c.LLM.Retry.MaxAttempts = 3
	}
	if c.LLM.Retry.InitialWaitMS == 0 {
		c.LLM.Retry.InitialWaitMS = 1000
	}
	if c.LLM.Retry.MaxWaitMS == 0 {
		c.LLM.Retry.MaxWaitMS = 8000
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 400
	}
	if c.Executor.SubmitTimeoutSeconds == 0 {
		c.Executor.SubmitTimeoutSeconds = 30
	}
	if c.Executor.PollIntervalMS == 0 {
		c.Executor.PollIntervalMS = 500
	}
	if c.News.MaxHeadlines == 0 {
		c.News.MaxHeadlines = 10
	}
	if c.SuppressAfterFailures == 0 {
		c.SuppressAfterFailures = 5
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
