package llmobs

import (
	"context"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/trace"
	"llm-paper-trader/internal/types"
)

// observableDecider wraps a Decider with observability (logging & tracing)
type observableDecider struct {
	decider interfaces.Decider
}

var _ interfaces.Decider = (*observableDecider)(nil)

// Wrap wraps a decider with observability middleware
func Wrap(decider interfaces.Decider) interfaces.Decider {
	return &observableDecider{
		decider: decider,
	}
}

func (od *observableDecider) Decide(ctx context.Context, snap *types.Snapshot) (types.Decision, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Decide")
	defer span.End()

	logger.Debug(ctx, "Requesting trading decision",
		"symbol", snap.Symbol,
		"signals", len(snap.Signals),
		"gaps", len(snap.Gaps),
	)

	decision, err := od.decider.Decide(ctx, snap)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to get trading decision", err,
			"symbol", snap.Symbol,
		)
		return types.Decision{}, err
	}

	logger.Decision(ctx, string(decision.Symbol), string(decision.Action), decision.Confidence, decision.Rationale,
		"qty", decision.Qty,
	)

	return decision, nil
}
