package backoff

import (
	"context"
	"time"
)

// Policy is a bounded exponential backoff: Initial * 2^attempt, capped at Max,
// for at most MaxAttempts tries.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// Default matches the retry surface we ship in config defaults.
func Default() Policy {
	return Policy{MaxAttempts: 3, Initial: 1 * time.Second, Max: 8 * time.Second}
}

// Delay returns the wait before retry number attempt (0-based: the delay
// applied after the first failed try is Delay(0)).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		return p.Initial
	}
	// 1<<attempt overflows long before this guard matters; cap early.
	if attempt > 30 {
		return p.Max
	}
	d := p.Initial * time.Duration(1<<attempt)
	if d > p.Max {
		return p.Max
	}
	return d
}

// Wait sleeps for Delay(attempt) or until the context is done.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
