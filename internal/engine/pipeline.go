package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/marketdata"
	"llm-paper-trader/internal/marketdata/prices"
	"llm-paper-trader/internal/risk"
	"llm-paper-trader/internal/store"
	"llm-paper-trader/internal/tradelog"
	"llm-paper-trader/internal/types"
)

// Pipeline runs one full decision cycle for a symbol: collect market data,
// ask the model, validate against the account, execute. Stages are strictly
// sequential; any stage failure aborts the cycle and nothing downstream of
// the failed stage runs.
type Pipeline struct {
	cfg       *store.Config
	agg       *marketdata.Aggregator
	decider   interfaces.Decider
	guard     *risk.Guard
	executor  Submitter
	brokerage interfaces.Brokerage

	mu          sync.Mutex
	lastSuccess map[types.Symbol]time.Time
}

// Submitter is the executor seam; satisfied by *broker.Executor.
type Submitter interface {
	Submit(ctx context.Context, order *types.ValidatedOrder) (*types.OrderReceipt, error)
}

var _ interfaces.Engine = (*Pipeline)(nil)

func NewPipeline(cfg *store.Config, agg *marketdata.Aggregator, decider interfaces.Decider, guard *risk.Guard, executor Submitter, brokerage interfaces.Brokerage) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		agg:         agg,
		decider:     decider,
		guard:       guard,
		executor:    executor,
		brokerage:   brokerage,
		lastSuccess: make(map[types.Symbol]time.Time),
	}
}

func (p *Pipeline) Cycle(ctx context.Context, symbol types.Symbol) (*types.CycleResult, error) {
	cycleID := uuid.NewString()
	now := time.Now().UTC()
	window := p.windowFor(symbol, now)

	logger.Debug(ctx, "Starting cycle",
		"symbol", symbol, "cycle_id", cycleID,
		"window_start", window.Start, "window_end", window.End)

	account, err := p.brokerage.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("account refresh for %s: %w", symbol, err)
	}

	snap, err := p.agg.Collect(ctx, symbol, window)
	if err != nil {
		return nil, fmt.Errorf("collect for %s: %w", symbol, err)
	}

	dec, err := p.decider.Decide(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("decide for %s: %w", symbol, err)
	}
	_ = tradelog.AppendDecision(cycleID, dec, snap.Gaps)

	lastPrice, err := lastPriceOf(snap, dec.Action)
	if err != nil {
		return nil, fmt.Errorf("price lookup for %s: %w", symbol, err)
	}

	order, err := p.guard.Validate(ctx, cycleID, dec, account, lastPrice)
	if err != nil {
		var rej *types.RiskRejection
		if errors.As(err, &rej) {
			// An explicit no-action outcome: nothing is submitted, the
			// cycle itself succeeded.
			logger.Info(ctx, "Decision rejected by risk guard, no order placed",
				"symbol", symbol, "cycle_id", cycleID, "reason", string(rej.Reason))
			p.markSuccess(symbol, now)
			return &types.CycleResult{Symbol: symbol, CycleID: cycleID, Decision: dec, Ts: now.Unix()}, nil
		}
		return nil, fmt.Errorf("validate for %s: %w", symbol, err)
	}

	receipt, err := p.executor.Submit(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("execute for %s: %w", symbol, err)
	}
	if receipt.Status != "noop" {
		_ = tradelog.AppendReceipt(order, receipt)
	}

	p.markSuccess(symbol, now)
	return &types.CycleResult{
		Symbol:   symbol,
		CycleID:  cycleID,
		Decision: dec,
		Receipt:  receipt,
		Ts:       now.Unix(),
	}, nil
}

// windowFor sizes the data window from the last successful cycle, falling
// back to the configured history span for a cold start.
func (p *Pipeline) windowFor(symbol types.Symbol, now time.Time) types.Window {
	p.mu.Lock()
	last, ok := p.lastSuccess[symbol]
	p.mu.Unlock()

	start := now.AddDate(0, 0, -p.cfg.Aggregator.HistoryDays)
	if ok && last.Before(start) {
		start = last
	}
	return types.Window{Start: start, End: now}
}

func (p *Pipeline) markSuccess(symbol types.Symbol, at time.Time) {
	p.mu.Lock()
	p.lastSuccess[symbol] = at
	p.mu.Unlock()
}

// lastPriceOf pulls the last traded price out of the snapshot. BUY and SELL
// cannot be risk-checked without it; HOLD does not need a price.
func lastPriceOf(snap *types.Snapshot, action types.Action) (decimal.Decimal, error) {
	sig, ok := snap.Signals[prices.SignalLast]
	if !ok {
		if action == types.Hold {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("snapshot carries no %s signal", prices.SignalLast)
	}
	return decimal.NewFromFloat(sig.Scalar), nil
}
