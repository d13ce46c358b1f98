package interfaces

import (
	"context"

	"llm-paper-trader/internal/types"
)

// Engine runs one full decision cycle for one symbol:
// collect -> decide -> validate -> execute.
type Engine interface {
	Cycle(ctx context.Context, symbol types.Symbol) (*types.CycleResult, error)
}
