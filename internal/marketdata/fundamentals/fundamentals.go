// Package fundamentals exposes a small set of valuation figures from the
// Yahoo Finance quote endpoint.
package fundamentals

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/equity"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/types"
)

const (
	SignalMarketCap = "fundamentals.market_cap"
	SignalPE        = "fundamentals.trailing_pe"
	SignalEPS       = "fundamentals.eps_ttm"
	SignalYearHigh  = "fundamentals.52wk_high"
	SignalYearLow   = "fundamentals.52wk_low"
)

type Engine struct{}

var _ interfaces.DataEngine = (*Engine)(nil)

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return "fundamentals" }

func (e *Engine) Signals() []string {
	return []string{SignalMarketCap, SignalPE, SignalEPS, SignalYearHigh, SignalYearLow}
}

func (e *Engine) Fetch(ctx context.Context, symbol types.Symbol, _ types.Window) (map[string]types.Signal, error) {
	type result struct {
		signals map[string]types.Signal
		err     error
	}
	ch := make(chan result, 1)

	go func() {
		signals, err := e.fetch(symbol)
		ch <- result{signals: signals, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fundamentals fetch for %s: %v: %w", symbol, ctx.Err(), types.ErrDataUnavailable)
	case r := <-ch:
		return r.signals, r.err
	}
}

func (e *Engine) fetch(symbol types.Symbol) (map[string]types.Signal, error) {
	q, err := equity.Get(string(symbol))
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %v: %w", symbol, err, types.ErrDataUnavailable)
	}
	if q == nil {
		return nil, fmt.Errorf("empty quote for %s: %w", symbol, types.ErrDataUnavailable)
	}

	now := time.Now().UTC()
	scalar := func(v float64) types.Signal {
		return types.Signal{Engine: e.Name(), Kind: types.SignalScalar, Scalar: v, FetchedAt: now}
	}

	// The provider omits figures for some instruments (ETFs, fresh listings);
	// emit only what it actually reported.
	signals := make(map[string]types.Signal)
	if q.MarketCap > 0 {
		signals[SignalMarketCap] = scalar(float64(q.MarketCap))
	}
	if q.TrailingPE > 0 {
		signals[SignalPE] = scalar(q.TrailingPE)
	}
	if q.EpsTrailingTwelveMonths != 0 {
		signals[SignalEPS] = scalar(q.EpsTrailingTwelveMonths)
	}
	if q.FiftyTwoWeekHigh > 0 {
		signals[SignalYearHigh] = scalar(q.FiftyTwoWeekHigh)
	}
	if q.FiftyTwoWeekLow > 0 {
		signals[SignalYearLow] = scalar(q.FiftyTwoWeekLow)
	}
	if len(signals) == 0 {
		return nil, fmt.Errorf("quote for %s carries no fundamentals: %w", symbol, types.ErrDataUnavailable)
	}
	return signals, nil
}
