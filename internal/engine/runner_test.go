package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"llm-paper-trader/internal/store"
	"llm-paper-trader/internal/types"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls map[types.Symbol]int
	fail  map[types.Symbol]bool
	// failOnce fails the first cycle for a symbol, then succeeds
	failOnce map[types.Symbol]bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		calls:    make(map[types.Symbol]int),
		fail:     make(map[types.Symbol]bool),
		failOnce: make(map[types.Symbol]bool),
	}
}

func (f *fakeEngine) Cycle(ctx context.Context, symbol types.Symbol) (*types.CycleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if f.fail[symbol] {
		return nil, errors.New("provider down")
	}
	if f.failOnce[symbol] {
		f.failOnce[symbol] = false
		return nil, errors.New("transient failure")
	}
	return &types.CycleResult{
		Symbol:   symbol,
		CycleID:  "cyc",
		Decision: types.Decision{Symbol: symbol, Action: types.Hold, Confidence: 0.5},
	}, nil
}

func (f *fakeEngine) callCount(symbol types.Symbol) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

func runnerConfig(watchlist ...string) *store.Config {
	cfg := &store.Config{}
	cfg.Watchlist = watchlist
	cfg.PollSeconds = 300
	cfg.SuppressAfterFailures = 2
	return cfg
}

func TestRunnerSuppressesAfterConsecutiveFailures(t *testing.T) {
	eng := newFakeEngine()
	eng.fail["AAPL"] = true
	r := NewRunner(runnerConfig("AAPL"), eng)

	for i := 0; i < 4; i++ {
		r.runPass(context.Background())
	}
	if !r.Suppressed("AAPL") {
		t.Fatal("symbol should be suppressed")
	}
	if got := eng.callCount("AAPL"); got != 2 {
		t.Fatalf("cycle calls = %d, want 2 (suppressed after threshold)", got)
	}
}

func TestRunnerSymbolFailureIsIsolated(t *testing.T) {
	eng := newFakeEngine()
	eng.fail["AAPL"] = true
	r := NewRunner(runnerConfig("AAPL", "MSFT"), eng)

	for i := 0; i < 3; i++ {
		r.runPass(context.Background())
	}
	if got := eng.callCount("MSFT"); got != 3 {
		t.Fatalf("healthy symbol ran %d times, want 3", got)
	}
	if r.Suppressed("MSFT") {
		t.Fatal("healthy symbol must not be suppressed")
	}
}

func TestRunnerSuccessResetsFailureCount(t *testing.T) {
	eng := newFakeEngine()
	eng.failOnce["AAPL"] = true
	r := NewRunner(runnerConfig("AAPL"), eng)

	r.runPass(context.Background()) // fails
	r.runPass(context.Background()) // succeeds, resets
	eng.mu.Lock()
	eng.failOnce["AAPL"] = true
	eng.mu.Unlock()
	r.runPass(context.Background()) // fails again, count back to 1

	if r.Suppressed("AAPL") {
		t.Fatal("non-consecutive failures must not suppress")
	}
}

func TestRunnerOneCycleInFlightPerSymbol(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	eng := &blockingEngine{block: block, started: started}
	r := NewRunner(runnerConfig("AAPL"), eng)

	go r.runPass(context.Background())
	<-started

	// Second pass while the first cycle is still running must skip the symbol.
	r.runPass(context.Background())
	close(block)

	if got := eng.count(); got != 1 {
		t.Fatalf("cycle calls = %d, want 1", got)
	}
}

type blockingEngine struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingEngine) Cycle(ctx context.Context, symbol types.Symbol) (*types.CycleResult, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.once.Do(func() { close(b.started) })
	<-b.block
	return &types.CycleResult{Symbol: symbol, CycleID: "cyc"}, nil
}

func (b *blockingEngine) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
