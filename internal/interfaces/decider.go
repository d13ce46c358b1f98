package interfaces

import (
	"context"

	"llm-paper-trader/internal/types"
)

// Decider turns a market snapshot into a structured trading decision. It
// never sees account state, so its output is reproducible from the snapshot
// alone (modulo model non-determinism).
type Decider interface {
	Decide(ctx context.Context, snap *types.Snapshot) (types.Decision, error)
}
