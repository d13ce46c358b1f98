package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"llm-paper-trader/internal/broker"
	"llm-paper-trader/internal/broker/alpaca"
	"llm-paper-trader/internal/broker/brokerobs"
	"llm-paper-trader/internal/engine"
	"llm-paper-trader/internal/engine/engineobs"
	"llm-paper-trader/internal/eod"
	"llm-paper-trader/internal/eod/eodobs"
	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/llm"
	"llm-paper-trader/internal/llm/anthropic"
	"llm-paper-trader/internal/llm/llmobs"
	"llm-paper-trader/internal/llm/openai"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/marketdata"
	"llm-paper-trader/internal/marketdata/fundamentals"
	"llm-paper-trader/internal/marketdata/news"
	"llm-paper-trader/internal/marketdata/prices"
	"llm-paper-trader/internal/risk"
	"llm-paper-trader/internal/store"
	"llm-paper-trader/internal/trace"
	"llm-paper-trader/internal/tradelog"
)

// initializeSystem initializes env, logger, tracer, and the EOD summarizer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	initializeEOD()

	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeAggregator registers the configured data engines. Prices and
// fundamentals are always on; the news engine needs an AlphaVantage key.
func initializeAggregator(ctx context.Context, cfg *store.Config) (*marketdata.Aggregator, error) {
	agg := marketdata.NewAggregator(cfg.EngineTimeout(), cfg.Aggregator.MaxFailureFraction)

	if err := agg.Register(prices.New()); err != nil {
		return nil, err
	}
	if err := agg.Register(fundamentals.New()); err != nil {
		return nil, err
	}

	if cfg.News.Enabled {
		key := os.Getenv("ALPHA_VANTAGE_API_KEY")
		if key == "" {
			logger.Warn(ctx, "News engine enabled but ALPHA_VANTAGE_API_KEY is unset - skipping")
		} else {
			opts := []news.Option{}
			if cfg.News.ScrapeArticles {
				opts = append(opts, news.WithScraper(news.NewScraper(cfg.EngineTimeout())))
			}
			if err := agg.Register(news.New(key, cfg.News.MaxHeadlines, cfg.EngineTimeout(), opts...)); err != nil {
				return nil, err
			}
		}
	}

	logger.Info(ctx, "Data engines registered", "count", agg.Engines())
	return agg, nil
}

// initializeBrokerage initializes the Alpaca client with observability
func initializeBrokerage(ctx context.Context, cfg *store.Config) interfaces.Brokerage {
	client := alpaca.NewClient(alpaca.Params{
		Mode:      cfg.Mode,
		APIKey:    os.Getenv("ALPACA_API_KEY"),
		APISecret: os.Getenv("ALPACA_API_SECRET"),
	})

	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	return brokerobs.Wrap(client)
}

// initializeDecider initializes the LLM decider with observability
func initializeDecider(ctx context.Context, cfg *store.Config) interfaces.Decider {
	var decider interfaces.Decider

	switch cfg.LLM.Provider {
	case "OPENAI":
		decider = openai.NewDecider(cfg)
	case "CLAUDE":
		decider = anthropic.NewDecider(cfg)
	default:
		decider = llm.NewNoopDecider()
		logger.Warn(ctx, "No LLM provider configured - using Noop decider (always HOLD)")
	}

	return llmobs.Wrap(decider)
}

// initializeEngine assembles the pipeline with observability
func initializeEngine(cfg *store.Config, agg *marketdata.Aggregator, decider interfaces.Decider, brokerage interfaces.Brokerage) interfaces.Engine {
	guard := risk.NewGuard(cfg.Risk)
	executor := broker.NewExecutor(brokerage, cfg.SubmitTimeout(), cfg.StatusPollInterval())
	pipeline := engine.NewPipeline(cfg, agg, decider, guard, executor, brokerage)

	return engineobs.Wrap(pipeline)
}

// initializeEOD wraps the default EOD summarizer with observability
func initializeEOD() {
	eod.SetDefaultSummarizer(eodobs.Wrap(eod.NewSummarizer()))
}
