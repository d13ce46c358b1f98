package llm

import (
	"context"

	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/types"
)

// NoopDecider is the fallback used when no model provider is configured.
// It always holds.
type NoopDecider struct{}

func NewNoopDecider() *NoopDecider {
	return &NoopDecider{}
}

func (d *NoopDecider) Decide(ctx context.Context, snap *types.Snapshot) (types.Decision, error) {
	logger.Debug(ctx, "Noop decider called, holding", "symbol", snap.Symbol)
	return types.Decision{
		Symbol:     snap.Symbol,
		Action:     types.Hold,
		Qty:        0,
		Confidence: 0,
		Rationale:  "no model provider configured",
	}, nil
}
