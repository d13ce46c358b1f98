package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/trace"
	"llm-paper-trader/internal/types"
)

// Aggregator fans a collection request out to every registered engine and
// merges the results into one snapshot. Engine failures are isolated: a
// failed engine becomes a gap, and the whole collection fails only when the
// failed fraction exceeds the configured threshold.
type Aggregator struct {
	engines       []interfaces.DataEngine
	signalOwner   map[string]string // signal name -> engine name
	engineTimeout time.Duration
	maxFailFrac   float64
}

func NewAggregator(engineTimeout time.Duration, maxFailureFraction float64) *Aggregator {
	return &Aggregator{
		signalOwner:   make(map[string]string),
		engineTimeout: engineTimeout,
		maxFailFrac:   maxFailureFraction,
	}
}

// Register adds an engine, rejecting signal-name collisions up front so a
// snapshot can never contain a signal contributed by two engines.
func (a *Aggregator) Register(e interfaces.DataEngine) error {
	for _, name := range e.Signals() {
		if owner, taken := a.signalOwner[name]; taken {
			return fmt.Errorf("signal %q already declared by engine %q, cannot register %q", name, owner, e.Name())
		}
	}
	for _, name := range e.Signals() {
		a.signalOwner[name] = e.Name()
	}
	a.engines = append(a.engines, e)
	return nil
}

// Engines returns the number of registered engines.
func (a *Aggregator) Engines() int { return len(a.engines) }

type fetchResult struct {
	engine  string
	signals map[string]types.Signal
	err     error
}

// Collect runs every engine concurrently with a per-engine timeout and merges
// the surviving signals. A timed-out engine counts as DataUnavailable.
func (a *Aggregator) Collect(ctx context.Context, symbol types.Symbol, window types.Window) (*types.Snapshot, error) {
	ctx, span := trace.StartSpan(ctx, "aggregator.Collect")
	defer span.End()

	if len(a.engines) == 0 {
		return nil, errors.New("no data engines registered")
	}

	results := make(chan fetchResult, len(a.engines))
	for _, e := range a.engines {
		e := e
		go func() {
			fctx, cancel := context.WithTimeout(ctx, a.engineTimeout)
			defer cancel()
			signals, err := e.Fetch(fctx, symbol, window)
			if err == nil {
				err = a.checkDeclared(e, signals)
			}
			results <- fetchResult{engine: e.Name(), signals: signals, err: err}
		}()
	}

	snap := &types.Snapshot{
		Symbol:  symbol,
		TakenAt: time.Now().UTC(),
		Signals: make(map[string]types.Signal),
	}
	failed := make(map[string]error)

	for range a.engines {
		res := <-results
		if res.err != nil {
			failed[res.engine] = classify(res.err)
			logger.Warn(ctx, "Data engine failed",
				"symbol", symbol,
				"engine", res.engine,
				"retryable", errors.Is(failed[res.engine], types.ErrDataUnavailable),
				"error", res.err,
			)
			continue
		}
		for name, sig := range res.signals {
			snap.Signals[name] = sig
		}
	}

	if frac := float64(len(failed)) / float64(len(a.engines)); frac > a.maxFailFrac {
		return nil, &types.PartialSnapshotError{
			Symbol:  symbol,
			Total:   len(a.engines),
			Failed:  failed,
			MaxFrac: a.maxFailFrac,
		}
	}

	// Record gaps: every declared signal whose owning engine failed.
	for name, owner := range a.signalOwner {
		if _, bad := failed[owner]; bad {
			snap.Gaps = append(snap.Gaps, name)
		}
	}
	sort.Strings(snap.Gaps)

	logger.Debug(ctx, "Snapshot assembled",
		"symbol", symbol,
		"signals", len(snap.Signals),
		"gaps", len(snap.Gaps),
		"engines_failed", len(failed),
	)
	return snap, nil
}

// checkDeclared rejects signals an engine did not declare at registration.
// An engine emitting outside its declared set is producing malformed data.
func (a *Aggregator) checkDeclared(e interfaces.DataEngine, signals map[string]types.Signal) error {
	declared := make(map[string]bool, len(e.Signals()))
	for _, name := range e.Signals() {
		declared[name] = true
	}
	for name := range signals {
		if !declared[name] {
			return fmt.Errorf("engine %q emitted undeclared signal %q: %w", e.Name(), name, types.ErrDataMalformed)
		}
	}
	return nil
}

// classify folds timeouts and cancellations into DataUnavailable and keeps
// explicit classifications as-is. Anything unclassified is treated as
// unavailable (retryable) rather than malformed.
func classify(err error) error {
	switch {
	case errors.Is(err, types.ErrDataMalformed):
		return err
	case errors.Is(err, types.ErrDataUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%v: %w", err, types.ErrDataUnavailable)
	default:
		return fmt.Errorf("%v: %w", err, types.ErrDataUnavailable)
	}
}
