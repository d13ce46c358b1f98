package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm-paper-trader/internal/engine"
	"llm-paper-trader/internal/eod"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	must(initializeSystem())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() { _ = trace.Shutdown(context.Background()) }()

	cfg, err := loadConfig(ctx, *configPath)
	must(err)

	compressOldLogs(ctx)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	agg, err := initializeAggregator(ctx, cfg)
	must(err)
	brokerage := initializeBrokerage(ctx, cfg)
	decider := initializeDecider(ctx, cfg)
	eng := initializeEngine(cfg, agg, decider, brokerage)

	runner := engine.NewRunner(cfg, eng)
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(ctx)
	}()

	eodTick := time.NewTicker(60 * time.Second)
	defer eodTick.Stop()

	logger.Info(ctx, "Trader started",
		"mode", cfg.Mode,
		"watchlist", cfg.Watchlist,
		"poll_interval", cfg.PollInterval().String(),
	)

	for {
		select {
		case <-eodTick.C:
			if ok, _ := eod.ShouldRunNow(); ok {
				if p, err := eod.SummarizeToday(); err == nil && p != "" {
					logger.Info(ctx, "EOD CSV written", "path", p)
				}
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			cancel()
			<-runnerDone
			if p, err := eod.SummarizeToday(); err == nil && p != "" {
				logger.Info(ctx, "EOD CSV written", "path", p)
			}
			return
		case <-ctx.Done():
			<-runnerDone
			return
		}
	}
}
