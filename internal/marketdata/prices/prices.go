// Package prices fetches daily price history and the last trade price from
// Yahoo Finance.
package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/types"
)

const (
	SignalHistory = "price.history"
	SignalLast    = "price.last"
)

type Engine struct{}

var _ interfaces.DataEngine = (*Engine)(nil)

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return "prices" }

func (e *Engine) Signals() []string {
	return []string{SignalHistory, SignalLast}
}

// Fetch pulls daily closes over the window plus the current quote. The
// finance-go calls are not context-aware, so they run in a helper goroutine
// and the engine gives up when the collection context expires.
func (e *Engine) Fetch(ctx context.Context, symbol types.Symbol, window types.Window) (map[string]types.Signal, error) {
	type result struct {
		signals map[string]types.Signal
		err     error
	}
	ch := make(chan result, 1)

	go func() {
		signals, err := e.fetch(symbol, window)
		ch <- result{signals: signals, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("price fetch for %s: %v: %w", symbol, ctx.Err(), types.ErrDataUnavailable)
	case r := <-ch:
		return r.signals, r.err
	}
}

func (e *Engine) fetch(symbol types.Symbol, window types.Window) (map[string]types.Signal, error) {
	start := window.Start
	end := window.End

	iter := chart.Get(&chart.Params{
		Symbol:   string(symbol),
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var closes []float64
	for iter.Next() {
		bar := iter.Bar()
		closes = append(closes, bar.Close.InexactFloat64())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("price history for %s: %v: %w", symbol, err, types.ErrDataUnavailable)
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no price bars for %s in window: %w", symbol, types.ErrDataUnavailable)
	}

	q, err := quote.Get(string(symbol))
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %v: %w", symbol, err, types.ErrDataUnavailable)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("quote for %s has no market price: %w", symbol, types.ErrDataMalformed)
	}

	now := time.Now().UTC()
	return map[string]types.Signal{
		SignalHistory: {Engine: e.Name(), Kind: types.SignalSeries, Series: closes, FetchedAt: now},
		SignalLast:    {Engine: e.Name(), Kind: types.SignalScalar, Scalar: q.RegularMarketPrice, FetchedAt: now},
	}, nil
}
