package interfaces

import (
	"context"

	"llm-paper-trader/internal/types"
)

// DataEngine fetches one category of market data for a symbol. Engines are
// stateless across calls and declare the signal names they can produce up
// front, so the aggregator can detect naming collisions at registration time.
//
// Fetch failures are classified with types.ErrDataUnavailable (retryable) or
// types.ErrDataMalformed (not retryable), wrapped so errors.Is matches.
type DataEngine interface {
	Name() string
	Signals() []string
	Fetch(ctx context.Context, symbol types.Symbol, window types.Window) (map[string]types.Signal, error)
}
