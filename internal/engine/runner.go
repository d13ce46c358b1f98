package engine

import (
	"context"
	"sync"
	"time"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/store"
	"llm-paper-trader/internal/types"
)

// Runner drives the pipeline for every watchlist symbol on a fixed
// interval. Symbols run concurrently with each other, but at most one cycle
// is ever in flight per symbol. A symbol that fails enough consecutive
// cycles is suppressed so a permanently broken provider cannot generate
// noise forever.
type Runner struct {
	cfg *store.Config
	eng interfaces.Engine

	mu         sync.Mutex
	inFlight   map[types.Symbol]bool
	failures   map[types.Symbol]int
	suppressed map[types.Symbol]bool
}

func NewRunner(cfg *store.Config, eng interfaces.Engine) *Runner {
	return &Runner{
		cfg:        cfg,
		eng:        eng,
		inFlight:   make(map[types.Symbol]bool),
		failures:   make(map[types.Symbol]int),
		suppressed: make(map[types.Symbol]bool),
	}
}

// Run blocks until ctx is canceled. The first pass starts immediately;
// subsequent passes follow the configured poll interval.
func (r *Runner) Run(ctx context.Context) {
	tick := time.NewTicker(r.cfg.PollInterval())
	defer tick.Stop()

	r.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			r.runPass(ctx)
		}
	}
}

func (r *Runner) runPass(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range r.cfg.Watchlist {
		symbol := types.Symbol(s)
		if !r.claim(symbol) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.release(symbol)
			r.runSymbol(ctx, symbol)
		}()
	}
	wg.Wait()
}

// claim marks a symbol in flight. It refuses suppressed symbols and symbols
// whose previous cycle has not finished.
func (r *Runner) claim(symbol types.Symbol) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.suppressed[symbol] || r.inFlight[symbol] {
		return false
	}
	r.inFlight[symbol] = true
	return true
}

func (r *Runner) release(symbol types.Symbol) {
	r.mu.Lock()
	delete(r.inFlight, symbol)
	r.mu.Unlock()
}

func (r *Runner) runSymbol(ctx context.Context, symbol types.Symbol) {
	res, err := r.eng.Cycle(ctx, symbol)
	if err != nil {
		r.recordFailure(ctx, symbol, err)
		return
	}

	r.mu.Lock()
	r.failures[symbol] = 0
	r.mu.Unlock()

	fields := []any{
		"symbol", symbol,
		"cycle_id", res.CycleID,
		"action", string(res.Decision.Action),
		"confidence", res.Decision.Confidence,
	}
	if res.Receipt != nil {
		fields = append(fields, "order_id", res.Receipt.OrderID, "order_status", res.Receipt.Status)
	}
	logger.Info(ctx, "Cycle completed", fields...)
}

func (r *Runner) recordFailure(ctx context.Context, symbol types.Symbol, err error) {
	r.mu.Lock()
	r.failures[symbol]++
	n := r.failures[symbol]
	suppress := n >= r.cfg.SuppressAfterFailures
	if suppress {
		r.suppressed[symbol] = true
	}
	r.mu.Unlock()

	logger.ErrorWithErr(ctx, "Cycle failed", err, "symbol", symbol, "consecutive_failures", n)
	if suppress {
		logger.Error(ctx, "Symbol suppressed after repeated cycle failures",
			"symbol", symbol, "consecutive_failures", n)
	}
}

// Suppressed reports whether a symbol has been disabled by repeated failure.
func (r *Runner) Suppressed(symbol types.Symbol) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppressed[symbol]
}
